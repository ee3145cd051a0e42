package application

import (
	"context"
	"time"

	domoutbox "github.com/henoc97/ecommerce-backend-sub001/internal/domain/outbox"
)

const (
	publishPeer    = "outbox"
	publishTimeout = 300 * time.Millisecond
)

// Publish hands event to publisher under a short deadline and reports it as an external call.
// A nil publisher or event is a no-op.
func (in *Instrumentation) Publish(ctx context.Context, publisher domoutbox.Publisher, event domoutbox.Event) error {
	if publisher == nil || event == nil {
		return nil
	}

	pubCtx, cancel := context.WithTimeout(ctx, publishTimeout)
	start := time.Now()
	err := publisher.Publish(pubCtx, event)
	outcome := OutcomeLabelSuccess
	if err != nil {
		outcome = OutcomeLabelError
	} else if pubCtx.Err() != nil {
		outcome = "canceled"
		err = pubCtx.Err()
	}
	cancel()

	in.ObserveExternal(publishPeer, event.EventName(), outcome, start)
	return err
}
