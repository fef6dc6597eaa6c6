package notify

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// SendAll sends every message concurrently and waits for all of them. The
// first failure is returned; the other sends still run to completion.
func SendAll(ctx context.Context, sender EmailSender, msgs ...EmailMessage) error {
	if sender == nil {
		return fmt.Errorf("notify: no email sender configured")
	}
	var g errgroup.Group
	for i := range msgs {
		msg := msgs[i]
		g.Go(func() error {
			if err := sender.Send(ctx, msg); err != nil {
				return fmt.Errorf("notify: send %q: %w", msg.Subject, err)
			}
			return nil
		})
	}
	return g.Wait()
}
