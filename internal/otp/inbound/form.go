package inbound

import (
	"embed"
	"errors"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/julienschmidt/httprouter"

	"github.com/jacem/otpgate/internal/otp/usecase"
	"github.com/jacem/otpgate/internal/pkg/goerror"
)

//go:embed templates/*.html
var templateFS embed.FS

var formTemplates = template.Must(template.ParseFS(templateFS, "templates/*.html"))

// FormEndpoint serves the interactive OTP verification pages.
type FormEndpoint struct {
	uc uc
}

type formPage struct {
	Realm     string
	SessionID string
	Email     string
	Error     string
	Notice    string
}

// Show enters the form flow: it challenges the user identified by the email
// query parameter and renders the code entry form.
func (f *FormEndpoint) Show() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		realm := httprouter.ParamsFromContext(r.Context()).ByName("realm")
		email := r.URL.Query().Get("email")

		state, err := f.uc.FormChallenge(r.Context(), usecase.FormChallengeInput{
			Realm: realm,
			Email: email,
		})
		if err != nil {
			f.renderError(w, realm, err)
			return
		}

		if !state.Required || state.Done {
			f.render(w, "otp_success.html", formPage{Realm: realm, Email: state.Email})
			return
		}

		f.render(w, "otp_form.html", formPage{
			Realm:     realm,
			SessionID: state.SessionID,
			Email:     state.Email,
		})
	})
}

// Submit handles both code submission and resend, discriminated by the
// "action" form field.
func (f *FormEndpoint) Submit() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		realm := httprouter.ParamsFromContext(r.Context()).ByName("realm")
		sessionID := r.FormValue("sessionId")

		var state *usecase.FormState
		var err error
		if r.FormValue("action") == "resend" {
			state, err = f.uc.FormResend(r.Context(), usecase.FormResendInput{
				Realm:     realm,
				SessionID: sessionID,
			})
		} else {
			state, err = f.uc.FormSubmit(r.Context(), usecase.FormSubmitInput{
				Realm:     realm,
				SessionID: sessionID,
				Code:      r.FormValue("code"),
			})
		}
		if err != nil {
			f.renderError(w, realm, err)
			return
		}

		if state.Done {
			f.render(w, "otp_success.html", formPage{Realm: realm, Email: state.Email})
			return
		}

		f.render(w, "otp_form.html", formPage{
			Realm:     realm,
			SessionID: state.SessionID,
			Email:     state.Email,
			Error:     state.ErrorMessage,
			Notice:    state.NoticeMessage,
		})
	})
}

func (f *FormEndpoint) render(w http.ResponseWriter, name string, page formPage) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	if err := formTemplates.ExecuteTemplate(w, name, page); err != nil {
		slog.Error("failed to render otp form template", "template", name, "error", err)
	}
}

func (f *FormEndpoint) renderError(w http.ResponseWriter, realm string, err error) {
	msg := "Something went wrong. Please start over."
	var gerr *goerror.Error
	if errors.As(err, &gerr) && gerr.Type() != goerror.TypeServer {
		msg = gerr.Msg()
	}

	w.WriteHeader(http.StatusBadRequest)
	f.render(w, "otp_error.html", formPage{Realm: realm, Error: msg})
}
