package usecase

import (
	"context"
	"strconv"
	"sync"
	"testing"
	"time"

	"github.com/jacem/otpgate/internal/otp/entity"
	"github.com/jacem/otpgate/internal/otp/lifecycle"
	"github.com/jacem/otpgate/internal/pkg/goerror"
	"github.com/jacem/otpgate/internal/pkg/goroutine"
	"github.com/jacem/otpgate/internal/pkg/idempotency"
	"github.com/jacem/otpgate/internal/pkg/instrument"
	"github.com/jacem/otpgate/internal/pkg/otpgen"
	"github.com/jacem/otpgate/internal/pkg/validator"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time {
	return c.now
}

// memSessions is an in-memory session store. The real passcode engine is run
// on top of it so usecase tests exercise the genuine note keys and expiry
// handling instead of a scripted engine.
type memSessions struct {
	sessions map[string]string
	users    map[string]int64
	notes    map[string]map[string]string
	pending  map[string]string

	createErr error
}

func newMemSessions() *memSessions {
	return &memSessions{
		sessions: map[string]string{},
		users:    map[string]int64{},
		notes:    map[string]map[string]string{},
		pending:  map[string]string{},
	}
}

var sessionSeq int

func (m *memSessions) Create(_ context.Context, realm, _ string) (entity.SessionHandle, error) {
	if m.createErr != nil {
		return entity.SessionHandle{}, m.createErr
	}
	sessionSeq++
	id := "sess-" + strconv.Itoa(sessionSeq)
	m.sessions[realm+":"+id] = realm
	return entity.SessionHandle{Realm: realm, ID: id}, nil
}

func (m *memSessions) Get(_ context.Context, realm, id string) (entity.SessionHandle, error) {
	if _, ok := m.sessions[realm+":"+id]; !ok {
		return entity.SessionHandle{}, goerror.ErrNotFound
	}
	return entity.SessionHandle{Realm: realm, ID: id}, nil
}

func (m *memSessions) BindUser(_ context.Context, h entity.SessionHandle, userID int64) error {
	m.users[h.Realm+":"+h.ID] = userID
	return nil
}

func (m *memSessions) User(_ context.Context, h entity.SessionHandle) (int64, error) {
	id, ok := m.users[h.Realm+":"+h.ID]
	if !ok {
		return 0, goerror.ErrNotFound
	}
	return id, nil
}

func (m *memSessions) bag(h entity.SessionHandle) map[string]string {
	key := h.Realm + ":" + h.ID
	if m.notes[key] == nil {
		m.notes[key] = map[string]string{}
	}
	return m.notes[key]
}

func (m *memSessions) GetNote(_ context.Context, h entity.SessionHandle, name string) (string, error) {
	v, ok := m.bag(h)[name]
	if !ok {
		return "", goerror.ErrNotFound
	}
	return v, nil
}

func (m *memSessions) SetNote(_ context.Context, h entity.SessionHandle, name, value string) error {
	m.bag(h)[name] = value
	return nil
}

func (m *memSessions) RemoveNote(_ context.Context, h entity.SessionHandle, name string) error {
	delete(m.bag(h), name)
	return nil
}

func (m *memSessions) SetPendingLogin(_ context.Context, realm, email, sessionID string) error {
	m.pending[realm+":"+email] = sessionID
	return nil
}

func (m *memSessions) PendingLogin(_ context.Context, realm, email string) (string, error) {
	id, ok := m.pending[realm+":"+email]
	if !ok {
		return "", goerror.ErrNotFound
	}
	return id, nil
}

func (m *memSessions) ClearPendingLogin(_ context.Context, realm, email string) error {
	delete(m.pending, realm+":"+email)
	return nil
}

type mockDB struct {
	users []*entity.User
	flows []entity.FlowExecution

	created        []entity.NewUser
	emailVerified  []int64
	lastLogin      map[int64]time.Time
	createErr      error
	getFlowErr     error
	stampLoginErr  error
	setVerifiedErr error
}

func newMockDB(users ...*entity.User) *mockDB {
	return &mockDB{users: users, lastLogin: map[int64]time.Time{}}
}

func (m *mockDB) GetUserByEmail(_ context.Context, realm, email string) (*entity.User, error) {
	for _, u := range m.users {
		if u.Realm == realm && u.Email == email {
			return u, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (m *mockDB) GetUserByPhone(_ context.Context, realm, phone string) (*entity.User, error) {
	for _, u := range m.users {
		if u.Realm == realm && u.PhoneNumber == phone {
			return u, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (m *mockDB) GetUserByID(_ context.Context, realm string, id int64) (*entity.User, error) {
	for _, u := range m.users {
		if u.Realm == realm && u.ID == id {
			return u, nil
		}
	}
	return nil, goerror.ErrNotFound
}

func (m *mockDB) CreateUser(_ context.Context, in entity.NewUser) error {
	if m.createErr != nil {
		return m.createErr
	}
	m.created = append(m.created, in)
	m.users = append(m.users, &entity.User{
		ID:      in.ID,
		Realm:   in.Realm,
		Email:   in.Email,
		Enabled: in.Enabled,
	})
	return nil
}

func (m *mockDB) SetEmailVerified(_ context.Context, id int64) error {
	if m.setVerifiedErr != nil {
		return m.setVerifiedErr
	}
	m.emailVerified = append(m.emailVerified, id)
	return nil
}

func (m *mockDB) StampLastLogin(_ context.Context, id int64, at time.Time) error {
	if m.stampLoginErr != nil {
		return m.stampLoginErr
	}
	m.lastLogin[id] = at
	return nil
}

func (m *mockDB) GetFlowExecutions(_ context.Context, realm, flowAlias string) ([]entity.FlowExecution, error) {
	if m.getFlowErr != nil {
		return nil, m.getFlowErr
	}
	var out []entity.FlowExecution
	for _, e := range m.flows {
		if e.Realm == realm && e.FlowAlias == flowAlias {
			out = append(out, e)
		}
	}
	return out, nil
}

type sentMail struct {
	to   string
	code string
}

type mockNotifier struct {
	sent []sentMail
	err  error
}

func (m *mockNotifier) SendCode(_ context.Context, to, code string, _ time.Duration) error {
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMail{to: to, code: code})
	return nil
}

func (m *mockNotifier) lastCode(t *testing.T) string {
	t.Helper()
	if len(m.sent) == 0 {
		t.Fatal("no mail was sent")
	}
	return m.sent[len(m.sent)-1].code
}

// mockMessaging is written to from the audit goroutine, so it locks.
type mockMessaging struct {
	mu     sync.Mutex
	sms    []SMSDeliveryEvent
	audits []AuditEvent
	smsErr error
}

func (m *mockMessaging) PublishSMSDelivery(_ context.Context, msg SMSDeliveryEvent) error {
	if m.smsErr != nil {
		return m.smsErr
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.sms = append(m.sms, msg)
	return nil
}

func (m *mockMessaging) PublishAudit(_ context.Context, msg AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.audits = append(m.audits, msg)
	return nil
}

type mockAuthCodes struct {
	issued []entity.AuthorizationCode
	code   string
	err    error
}

func (m *mockAuthCodes) Issue(_ context.Context, payload entity.AuthorizationCode, _ time.Duration) (string, error) {
	if m.err != nil {
		return "", m.err
	}
	m.issued = append(m.issued, payload)
	return m.code, nil
}

type mockIdempotency struct {
	done map[string]bool
}

func (m *mockIdempotency) Acquire(_ context.Context, key string, _ time.Duration) (idempotency.State, error) {
	if m.done[key] {
		return idempotency.StateCompleted, idempotency.ErrAlreadyCompleted
	}
	return idempotency.StateNone, nil
}

func (m *mockIdempotency) MarkCompleted(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

func (m *mockIdempotency) MarkFailed(_ context.Context, _ string, _ time.Duration) error {
	return nil
}

func (m *mockIdempotency) Exec(ctx context.Context, key string, fn func(context.Context) error, _ ...idempotency.Option) error {
	if m.done == nil {
		m.done = map[string]bool{}
	}
	if m.done[key] {
		return idempotency.ErrAlreadyCompleted
	}
	if err := fn(ctx); err != nil {
		return err
	}
	m.done[key] = true
	return nil
}

type mockUID struct {
	next int64
}

func (m *mockUID) Generate() int64 {
	m.next++
	return m.next
}

type fixture struct {
	uc        *Usecase
	db        *mockDB
	sessions  *memSessions
	notifier  *mockNotifier
	messaging *mockMessaging
	authCodes *mockAuthCodes
	clock     *fakeClock
}

func newFixture(t *testing.T, users ...*entity.User) *fixture {
	t.Helper()

	v, err := validator.NewV10Validator()
	if err != nil {
		t.Fatalf("validator: %v", err)
	}

	f := &fixture{
		db:        newMockDB(users...),
		sessions:  newMemSessions(),
		notifier:  &mockNotifier{},
		messaging: &mockMessaging{},
		authCodes: &mockAuthCodes{code: "auth-code-1"},
		clock:     &fakeClock{now: time.Unix(1_700_000_000, 0)},
	}

	f.uc = New(Dependency{
		RepoDB:        f.db,
		RepoMessaging: f.messaging,
		Sessions:      f.sessions,
		Engine:        lifecycle.NewEngine(f.sessions, otpgen.NewRandom(), f.clock),
		AuthCodes:     f.authCodes,
		Notifier:      f.notifier,
		Idempotency:   &mockIdempotency{},
		Validator:     v,
		UID:           &mockUID{},
		Clock:         f.clock,
		Instrument:    instrument.NewNoop(),
		Goroutine:     goroutine.NewManager(4),
		Options:       Options{},
	})

	return f
}

func wantBusiness(t *testing.T, err error, msg string) {
	t.Helper()
	if err == nil {
		t.Fatalf("expected error %q, got nil", msg)
	}
	gerr, ok := err.(*goerror.Error)
	if !ok {
		t.Fatalf("expected goerror, got %T: %v", err, err)
	}
	if gerr.Msg() != msg {
		t.Fatalf("error message = %q, want %q", gerr.Msg(), msg)
	}
}

func TestMaskPhone(t *testing.T) {
	tests := []struct {
		phone string
		want  string
	}{
		{"+6281234567890", "+62*********90"},
		{"12345", "*****"},
		{"123456", "123*56"},
		{"", ""},
	}

	for _, tt := range tests {
		if got := maskPhone(tt.phone); got != tt.want {
			t.Errorf("maskPhone(%q) = %q, want %q", tt.phone, got, tt.want)
		}
	}
}

func TestOptionsEnsure(t *testing.T) {
	got := Options{}.ensure()
	if got.ClientID != "email-otp-api-client" {
		t.Errorf("ClientID = %q", got.ClientID)
	}
	if got.CodeLength != 6 {
		t.Errorf("CodeLength = %d, want 6", got.CodeLength)
	}
	if got.CodeTTL != 10*time.Minute {
		t.Errorf("CodeTTL = %v, want 10m", got.CodeTTL)
	}
	if got.AuthCodeTTL != 5*time.Minute {
		t.Errorf("AuthCodeTTL = %v, want 5m", got.AuthCodeTTL)
	}
	if got.FlowAlias != "browser-otp" {
		t.Errorf("FlowAlias = %q", got.FlowAlias)
	}

	clamped := Options{CodeLength: 2}.ensure()
	if clamped.CodeLength != 4 {
		t.Errorf("clamped low CodeLength = %d, want 4", clamped.CodeLength)
	}
	clamped = Options{CodeLength: 64}.ensure()
	if clamped.CodeLength != 10 {
		t.Errorf("clamped high CodeLength = %d, want 10", clamped.CodeLength)
	}
}
