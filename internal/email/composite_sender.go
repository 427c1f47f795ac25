package email

import (
	"context"
	"errors"
	"fmt"
	"log"
)

// CompositeEmailSender fans a notification out to every configured Sender.
type CompositeEmailSender struct {
	senders []Sender
}

// NewCompositeEmailSender returns the concrete type so main can AddSender after construction.
func NewCompositeEmailSender(senders ...Sender) *CompositeEmailSender {
	cs := &CompositeEmailSender{}
	for _, s := range senders {
		cs.AddSender(s)
	}
	return cs
}

func (cs *CompositeEmailSender) AddSender(sender Sender) {
	if sender != nil {
		cs.senders = append(cs.senders, sender)
	}
}

// Send tries every sender even after a failure and joins the errors.
// A notification counts as delivered only when every sender took it.
func (cs *CompositeEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if len(cs.senders) == 0 {
		return errors.New("no email senders configured")
	}

	templateID := TemplateIDFromMessage(rawMessage)
	var errs []error
	for i, sender := range cs.senders {
		if err := sender.Send(ctx, to, subject, rawMessage); err != nil {
			log.Printf("Warning: email sender %d/%d failed for template %s to %v: %v", i+1, len(cs.senders), templateID, to, err)
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d of %d senders failed for template %s: %w", len(errs), len(cs.senders), templateID, errors.Join(errs...))
	}
	return nil
}
