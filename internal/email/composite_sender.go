package email

import (
	"context"
	"errors"
	"log"
)

// CompositeEmailSender delivers through a primary sender and copies every delivered
// message to the mirrors. Only the primary's error is returned, so a task retry
// never happens because an outbox copy failed.
type CompositeEmailSender struct {
	primary Sender
	mirrors []Sender
}

func NewCompositeEmailSender(primary Sender, mirrors ...Sender) *CompositeEmailSender {
	cs := &CompositeEmailSender{primary: primary}
	for _, m := range mirrors {
		if m != nil {
			cs.mirrors = append(cs.mirrors, m)
		}
	}
	return cs
}

// Send mirrors only after the primary accepted the message.
func (cs *CompositeEmailSender) Send(ctx context.Context, to []string, subject string, rawMessage []byte) error {
	if cs.primary == nil {
		return errors.New("no primary email sender configured")
	}
	if err := cs.primary.Send(ctx, to, subject, rawMessage); err != nil {
		return err
	}
	for _, m := range cs.mirrors {
		if err := m.Send(ctx, to, subject, rawMessage); err != nil {
			log.Printf("Warning: failed to mirror email to %v (%s): %v", to, subject, err)
		}
	}
	return nil
}
