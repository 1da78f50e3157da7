package engine

import (
	"context"

	"github.com/namn-grg/dual-channel-bot/internal/channel"
	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
	"github.com/namn-grg/dual-channel-bot/internal/reconciler"
)

func (e *Engine) handle(ev event) {
	switch ev.kind {
	case kindResult:
		e.recon.Complete(ev.res, e.now())
		if ev.res.Command.Kind == reconciler.KindQuery && ev.res.Err == nil {
			e.evaluate("reconciled")
		}
	case kindWake:
	case kindInspect:
		ev.inspect <- e.status()
	case kindExchange:
		e.metrics.event(ev.ex.Kind.String())
		switch ev.ex.Kind {
		case schema.EventTick:
			e.onTick(ev.ex.Tick)
		case schema.EventOrderUpdate:
			e.onUpdate(ev.ex.Update)
		case schema.EventFill:
			e.onFill(ev.ex.Fill)
		case schema.EventDisconnect:
			e.disconnected = true
			e.recon.SetPaused(true)
			e.logger.Warn("exchange disconnected; dispatch paused", observability.F("reason", ev.ex.Reason))
		case schema.EventReconnect:
			e.disconnected = false
			e.recon.SetPaused(false)
			e.logger.Info("exchange reconnected")
			e.recon.RequestQuery("reconnect")
		default:
			e.logger.Debug("ignoring event", observability.F("kind", ev.ex.Kind.String()))
		}
	}
}

func (e *Engine) onTick(tick schema.Tick) {
	if tick.Time.IsZero() {
		tick.Time = e.now()
	}
	if err := e.cache.Update(tick); err != nil {
		e.logger.Debug("tick rejected", observability.F("error", err))
		return
	}
	if e.recorder != nil {
		if err := e.recorder.Record(tick); err != nil {
			e.logger.Warn("tick record failed", observability.F("error", err))
		}
	}
	e.evaluate("tick")
}

// evaluate asks the policy for targets and lets every channel converge on its target,
// in configuration order.
func (e *Engine) evaluate(reason string) {
	switch {
	case e.closing:
		return
	case !e.recon.Ready() || e.recon.QueryPending():
		e.metrics.skipped("reconciling")
		return
	case e.disconnected:
		e.metrics.skipped("disconnected")
		return
	case !e.cache.Fresh(e.now()):
		e.metrics.skipped("stale")
		e.logger.Debug("requote skipped: no fresh snapshot", observability.F("trigger", reason))
		return
	}
	snap, _ := e.cache.Read()
	targets, err := e.policy.ComputeTargets(snap, e.tracker.Snapshot())
	if err != nil {
		e.metrics.skipped("policy_error")
		e.logger.Warn("policy failed", observability.F("policy", e.policy.Name()), observability.F("error", err))
		return
	}
	byChannel := e.validate(targets)
	for _, ch := range e.channels {
		e.recon.Apply(ch.Evaluate(byChannel[ch.ID()], e.cfg.Tolerance))
	}
}

// validate treats policy output as untrusted: unknown channels, duplicates and
// non-positive prices are dropped, which pauses the affected channel.
func (e *Engine) validate(targets []schema.Target) map[schema.ChannelID]schema.Target {
	out := make(map[schema.ChannelID]schema.Target, len(targets))
	for _, t := range targets {
		if _, ok := e.recon.Channel(t.Channel); !ok {
			e.logger.Warn("target for unknown channel dropped", observability.F("channel", string(t.Channel)))
			continue
		}
		if _, dup := out[t.Channel]; dup {
			e.logger.Warn("duplicate target dropped", observability.F("channel", string(t.Channel)))
			continue
		}
		if t.Size.IsPositive() && !t.Price.IsPositive() {
			e.logger.Warn("target without price dropped", observability.F("channel", string(t.Channel)))
			continue
		}
		out[t.Channel] = t
	}
	return out
}

// owner finds the channel an order belongs to, by exchange id first.
func (e *Engine) owner(exchangeID, clientID string) *channel.Channel {
	if exchangeID != "" {
		for _, ch := range e.channels {
			if ch.Owns(exchangeID, "") {
				return ch
			}
		}
	}
	if clientID != "" {
		for _, ch := range e.channels {
			if ch.Owns("", clientID) {
				return ch
			}
		}
	}
	return nil
}

func (e *Engine) onUpdate(u schema.OrderUpdate) {
	ch := e.owner(u.OrderID, u.ClientID)
	if ch == nil {
		if u.Status.Working() {
			e.logger.Warn("update for unknown order",
				observability.F("order", u.OrderID),
				observability.F("client_id", u.ClientID),
				observability.F("status", string(u.Status)))
			e.recon.RequestQuery("unknown order")
		}
		return
	}
	if u.Status == schema.OrderRejected {
		e.logger.Warn("order rejected by exchange",
			observability.F("channel", string(ch.ID())),
			observability.F("order", u.OrderID),
			observability.F("reason", u.Reason))
	}
	e.recon.Apply(ch.OnStatus(u))
}

func (e *Engine) onFill(f schema.Fill) {
	ch := e.owner(f.OrderID, f.ClientID)
	var id schema.ChannelID
	if ch != nil {
		id = ch.ID()
		if f.Side == "" {
			f.Side = ch.Side()
		}
	}
	if !f.Side.Valid() {
		e.logger.Error("fill without side dropped", observability.F("trade", f.TradeID), observability.F("order", f.OrderID))
		return
	}
	if ch != nil && ch.Duplicate(f) {
		e.logger.Debug("duplicate fill ignored",
			observability.F("channel", string(id)),
			observability.F("trade", f.TradeID),
			observability.F("order", f.OrderID))
		return
	}
	if !e.tracker.ApplyFill(id, f) {
		e.logger.Debug("duplicate fill ignored", observability.F("trade", f.TradeID))
		return
	}
	if err := e.journal.RecordFill(context.Background(), id, f); err != nil {
		e.logger.Debug("journal fill skipped", observability.F("trade", f.TradeID), observability.F("error", err))
	}
	snap := e.tracker.Snapshot()
	e.logger.Info("fill",
		observability.F("channel", string(id)),
		observability.F("order", f.OrderID),
		observability.F("side", string(f.Side)),
		observability.F("price", f.Price.String()),
		observability.F("size", f.Size.String()),
		observability.F("net_size", snap.NetSize.String()))
	if ch == nil {
		e.logger.Warn("fill for unowned order", observability.F("order", f.OrderID), observability.F("client_id", f.ClientID))
		return
	}
	e.recon.Apply(ch.OnFill(f))
}
