package engine

import (
	"time"

	"github.com/namn-grg/dual-channel-bot/internal/observability"
)

// drain stops desired transitions, cancels every working order and keeps processing
// events until all channels are drained or the shutdown timeout elapses.
func (e *Engine) drain() {
	e.closing = true
	for _, ch := range e.channels {
		e.recon.Apply(ch.Shutdown())
	}
	e.logger.Info("shutdown: cancelling working orders", observability.F("timeout", e.cfg.ShutdownTimeout.String()))

	deadline := time.NewTimer(e.cfg.ShutdownTimeout)
	defer deadline.Stop()
	for !e.drained() {
		e.recon.Pump(e.now())
		select {
		case ev := <-e.events:
			e.handle(ev)
		case <-deadline.C:
			e.report()
			return
		}
	}
	e.logger.Info("shutdown: all channels idle")
}

func (e *Engine) drained() bool {
	for _, ch := range e.channels {
		if !ch.Drained() {
			return false
		}
	}
	return len(e.recon.Orphans()) == 0
}

// report logs every order that was not confirmed cancelled, for manual reconciliation.
func (e *Engine) report() {
	e.unconfirmed = e.unconfirmed[:0]
	for _, ch := range e.channels {
		order, ok := ch.Working()
		if !ok {
			if !ch.Drained() {
				e.logger.Error("unconfirmed",
					observability.F("channel", string(ch.ID())),
					observability.F("state", ch.State().String()))
			}
			continue
		}
		order.Channel = ch.ID()
		e.unconfirmed = append(e.unconfirmed, order)
		e.logger.Error("unconfirmed",
			observability.F("channel", string(ch.ID())),
			observability.F("order", order.Ref()),
			observability.F("client_id", order.ClientID),
			observability.F("state", ch.State().String()))
	}
	for _, o := range e.recon.Orphans() {
		e.unconfirmed = append(e.unconfirmed, o)
		e.logger.Error("unconfirmed",
			observability.F("channel", string(o.Channel)),
			observability.F("order", o.Ref()),
			observability.F("client_id", o.ClientID),
			observability.F("state", "orphan"))
	}
	e.metrics.unconfirmedOrders(len(e.unconfirmed))
}
