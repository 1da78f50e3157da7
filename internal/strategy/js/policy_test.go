package js

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
	"github.com/namn-grg/dual-channel-bot/internal/observability"
)

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

const spreadModule = `
module.exports = {
  metadata: { name: "Spread", version: "1.0.0" },
  computeTargets(snapshot, position, config) {
    const off = config.offset || 0.005;
    const out = [{ channel: "A", price: snapshot.mid * (1 - off), size: config.size }];
    if (position.netSize > -config.size) {
      out.push({ channel: "B", price: String(snapshot.mid * (1 + off)), size: config.size });
    }
    return out;
  },
};
`

func snapshot(mid string) schema.MarketSnapshot {
	return schema.MarketSnapshot{Mid: dec(mid), Time: time.UnixMilli(1_700_000_000_000)}
}

func TestPolicyComputesTargets(t *testing.T) {
	p, err := New("spread.js", spreadModule,
		WithConfig(map[string]any{"offset": 0.005, "size": 10}),
		WithInstrument(dec("0.01"), dec("0.1")))
	require.NoError(t, err)
	require.Equal(t, "spread", p.Name())
	require.Equal(t, "1.0.0", p.Metadata().Version)
	require.Len(t, p.Hash(), 64)

	targets, err := p.ComputeTargets(snapshot("100"), schema.PositionSnapshot{})
	require.NoError(t, err)
	require.Len(t, targets, 2)
	require.Equal(t, schema.ChannelID("A"), targets[0].Channel)
	require.True(t, targets[0].Price.Equal(dec("99.5")), targets[0].Price.String())
	require.True(t, targets[0].Size.Equal(dec("10")))
	require.True(t, targets[1].Price.Equal(dec("100.5")), targets[1].Price.String())

	targets, err = p.ComputeTargets(snapshot("100"), schema.PositionSnapshot{NetSize: dec("-10")})
	require.NoError(t, err)
	require.Len(t, targets, 1)
}

func TestPolicySeesPositionAge(t *testing.T) {
	p, err := New("hold.js", `
module.exports = {
  computeTargets(snapshot, position, config) {
    const held = position.openedAt > 0 ? snapshot.time - position.openedAt : 0;
    if (held >= config.maxHoldMs) {
      return [{ channel: "B", price: snapshot.mid, size: position.netSize }];
    }
    return [
      { channel: "A", price: snapshot.mid - 1, size: 1 },
      { channel: "B", price: snapshot.mid + 1, size: 1 },
    ];
  },
};
`, WithConfig(map[string]any{"maxHoldMs": 60_000}))
	require.NoError(t, err)

	snap := snapshot("100")
	pos := schema.PositionSnapshot{NetSize: dec("2"), AvgEntryPrice: dec("100"), OpenedAt: snap.Time.Add(-30 * time.Second)}
	targets, err := p.ComputeTargets(snap, pos)
	require.NoError(t, err)
	require.Len(t, targets, 2)

	pos.OpenedAt = snap.Time.Add(-time.Minute)
	targets, err = p.ComputeTargets(snap, pos)
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.True(t, targets[0].Size.Equal(dec("2")))

	// flat: no open time is passed as zero
	targets, err = p.ComputeTargets(snap, schema.PositionSnapshot{})
	require.NoError(t, err)
	require.Len(t, targets, 2)
}

func TestPolicyDropsMalformedTargets(t *testing.T) {
	rec := observability.NewRecorder()
	p, err := New("bad.js", `
module.exports = {
  metadata: { name: "bad" },
  computeTargets() {
    return [
      { channel: "", price: 1, size: 1 },
      { channel: "A", price: -1, size: 1 },
      { channel: "B", price: "abc", size: 1 },
      { channel: "C", price: NaN, size: 1 },
      { channel: "D", price: 10, size: 2 },
    ];
  },
};`, WithLogger(rec))
	require.NoError(t, err)

	targets, err := p.ComputeTargets(snapshot("10"), schema.PositionSnapshot{})
	require.NoError(t, err)
	require.Len(t, targets, 1)
	require.Equal(t, schema.ChannelID("D"), targets[0].Channel)
	require.Len(t, rec.Find("js policy target dropped"), 4)
}

func TestPolicyRejectsDuplicateChannel(t *testing.T) {
	p, err := New("dup.js", `
module.exports = {
  metadata: { name: "dup" },
  computeTargets() { return [{ channel: "A", price: 1, size: 1 }, { channel: "A", price: 2, size: 1 }]; },
};`)
	require.NoError(t, err)
	_, err = p.ComputeTargets(snapshot("1"), schema.PositionSnapshot{})
	require.ErrorContains(t, err, "duplicate target")
}

func TestPolicyEmptyResultPausesEverything(t *testing.T) {
	p, err := New("pause.js", `
module.exports = { metadata: { name: "pause" }, computeTargets() { return null; } };`)
	require.NoError(t, err)
	targets, err := p.ComputeTargets(snapshot("1"), schema.PositionSnapshot{})
	require.NoError(t, err)
	require.Empty(t, targets)
}

func TestPolicySurfacesExceptions(t *testing.T) {
	p, err := New("throw.js", `
module.exports = { metadata: { name: "throw" }, computeTargets() { throw new Error("boom"); } };`)
	require.NoError(t, err)
	_, err = p.ComputeTargets(snapshot("1"), schema.PositionSnapshot{})
	require.ErrorContains(t, err, "boom")

	p, err = New("shape.js", `
module.exports = { metadata: { name: "shape" }, computeTargets() { return 42; } };`)
	require.NoError(t, err)
	_, err = p.ComputeTargets(snapshot("1"), schema.PositionSnapshot{})
	require.Error(t, err)
}

func TestPolicyInterruptsRunawayScripts(t *testing.T) {
	p, err := New("loop.js", `
module.exports = {
  metadata: { name: "loop" },
  computeTargets(snapshot) {
    if (snapshot.mid > 1) { for (;;) {} }
    return [{ channel: "A", price: 1, size: 1 }];
  },
};`, WithTimeout(20*time.Millisecond))
	require.NoError(t, err)

	_, err = p.ComputeTargets(snapshot("2"), schema.PositionSnapshot{})
	require.ErrorIs(t, err, ErrTimeout)

	targets, err := p.ComputeTargets(snapshot("1"), schema.PositionSnapshot{})
	require.NoError(t, err)
	require.Len(t, targets, 1)
}

func TestPolicyConsoleRoutesToLogger(t *testing.T) {
	rec := observability.NewRecorder()
	p, err := New("log.js", `
module.exports = {
  metadata: { name: "log" },
  computeTargets(snapshot) { console.info("mid", snapshot.mid); return []; },
};`, WithLogger(rec))
	require.NoError(t, err)
	_, err = p.ComputeTargets(snapshot("7"), schema.PositionSnapshot{})
	require.NoError(t, err)
	entries := rec.Find("js console")
	require.Len(t, entries, 1)
	require.Equal(t, "mid 7", entries[0].Fields["message"])
}

func TestNewValidatesModule(t *testing.T) {
	_, err := New("syntax.js", `module.exports = {`)
	require.Error(t, err)

	_, err = New("nometa.js", `module.exports = { computeTargets() { return []; } };`)
	require.ErrorContains(t, err, "metadata")

	_, err = New("nofn.js", `module.exports = { metadata: { name: "x" } };`)
	require.ErrorIs(t, err, ErrFunctionMissing)
}

func TestLoadReadsFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "spread.js")
	require.NoError(t, os.WriteFile(path, []byte(spreadModule), 0o600))
	p, err := Load(path, WithConfig(map[string]any{"size": 1}))
	require.NoError(t, err)
	require.Equal(t, "spread", p.Name())

	_, err = Load(filepath.Join(t.TempDir(), "missing.js"))
	require.Error(t, err)
}
