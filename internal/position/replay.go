package position

import "github.com/namn-grg/dual-channel-bot/internal/domain/schema"

// logged is an applied fill kept for replay onto a later exchange snapshot.
type logged struct {
	seq     uint64
	channel schema.ChannelID
	fill    schema.Fill
}

func (t *Tracker) remember(channel schema.ChannelID, fill schema.Fill) {
	if len(t.replay) == defaultReplayMemory {
		copy(t.replay, t.replay[1:])
		t.replay = t.replay[:len(t.replay)-1]
	}
	t.replay = append(t.replay, logged{seq: t.fills, channel: channel, fill: fill})
}

// covered reports whether a fill executed before the last applied snapshot and is already counted in it.
func (t *Tracker) covered(fill schema.Fill) bool {
	return !t.asOf.IsZero() && !fill.Time.IsZero() && fill.Time.Before(t.asOf)
}

// Mark returns the fill sequence to pass to Rebase once a position query sent now returns.
func (t *Tracker) Mark() uint64 {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return t.fills
}

// Rebase makes snap authoritative, then re-applies fills that were applied locally after mark
// but executed after the snapshot was taken. Fills with no time, or a snapshot with no AsOf,
// are treated as later than the snapshot. Later deliveries of fills executed before AsOf
// are counted without moving the position. It reports whether the local net disagreed.
func (t *Tracker) Rebase(snap schema.PositionSnapshot, mark uint64) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	var later []logged
	expected := snap.NetSize
	for _, l := range t.replay {
		if l.seq <= mark {
			continue
		}
		if !snap.AsOf.IsZero() && !l.fill.Time.IsZero() && l.fill.Time.Before(snap.AsOf) {
			continue
		}
		later = append(later, l)
		expected = expected.Add(l.fill.Side.Signed(l.fill.Size))
	}
	diverged := !t.net.Equal(expected)
	if diverged {
		clear(t.channels)
	} else {
		for _, l := range later {
			if l.channel != "" {
				t.channels[l.channel] = t.channels[l.channel].Sub(l.fill.Side.Signed(l.fill.Size))
			}
		}
	}
	realized := t.realized
	t.reset(snap)
	for _, l := range later {
		t.apply(l.channel, l.fill)
	}
	if snap.RealizedPnL.IsZero() {
		t.realized = realized
	}
	return diverged
}
