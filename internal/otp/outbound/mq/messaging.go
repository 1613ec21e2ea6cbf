package mq

import (
	"context"
	"encoding/json"

	"go.opentelemetry.io/otel/codes"

	"github.com/jacem/otpgate/internal/otp/usecase"
	"github.com/jacem/otpgate/internal/pkg/instrument"
	"github.com/jacem/otpgate/internal/pkg/messaging"
	"github.com/jacem/otpgate/internal/shared/event"
)

const keyOfCorrelationID string = "cID"

type Messaging struct {
	client messaging.Publisher
	ins    instrument.Instrumentation
}

func NewMessaging(client messaging.Publisher, ins instrument.Instrumentation) *Messaging {
	return &Messaging{client: client, ins: ins}
}

func (m *Messaging) PublishSMSDelivery(ctx context.Context, msg usecase.SMSDeliveryEvent) error {
	ctx, span := m.ins.Tracer("otp.outbound.mq").Start(ctx, "PublishSMSDelivery")
	defer span.End()

	body, err := json.Marshal(event.OTPSMSDeliveryMessage{
		Realm:         msg.Realm,
		SessionID:     msg.SessionID,
		PhoneNumber:   msg.PhoneNumber,
		Code:          msg.Code,
		ExpirySeconds: msg.ExpirySeconds,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.OTPSMSDeliveryDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(msg.SessionID),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}

func (m *Messaging) PublishAudit(ctx context.Context, msg usecase.AuditEvent) error {
	ctx, span := m.ins.Tracer("otp.outbound.mq").Start(ctx, "PublishAudit")
	defer span.End()

	body, err := json.Marshal(event.OTPAuditMessage{
		Realm:      msg.Realm,
		SessionID:  msg.SessionID,
		UserID:     msg.UserID,
		Purpose:    msg.Purpose,
		Event:      msg.Event,
		OccurredAt: msg.OccurredAt,
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	cID := instrument.GetCorrelationID(ctx)
	if _, err := m.client.Publish(ctx, event.OTPAuditDestination, messaging.OutgoingMessage{
		Body:    body,
		Key:     []byte(msg.SessionID),
		Headers: []messaging.Header{{Key: keyOfCorrelationID, Value: []byte(cID)}},
	}); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return err
	}

	return nil
}
