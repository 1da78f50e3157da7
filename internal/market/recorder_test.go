package market

import (
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/namn-grg/dual-channel-bot/internal/domain/schema"
)

func TestRecorderAppendsAndLoads(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ticks.jsonl")
	at := time.Date(2025, 1, 2, 3, 4, 5, 0, time.UTC)

	rec, err := OpenRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(schema.Tick{Symbol: "HYPE", BestBid: dec("20.1"), BestAsk: dec("20.3"), Mid: dec("20.2"), Time: at}))
	require.NoError(t, rec.Close())

	rec, err = OpenRecorder(path)
	require.NoError(t, err)
	require.NoError(t, rec.Record(schema.Tick{Symbol: "HYPE", BestBid: dec("20.2"), BestAsk: dec("20.4"), Time: at.Add(time.Second)}))
	require.NoError(t, rec.Close())
	require.Error(t, rec.Record(schema.Tick{}))

	ticks, err := LoadTickFile(path)
	require.NoError(t, err)
	require.Len(t, ticks, 2)
	require.Equal(t, schema.Symbol("HYPE"), ticks[0].Symbol)
	require.True(t, ticks[0].Mid.Equal(dec("20.2")))
	require.True(t, ticks[1].BestAsk.Equal(dec("20.4")))
	require.True(t, ticks[1].Time.Equal(at.Add(time.Second)))
}

func TestLoadTicksReportsMalformedLine(t *testing.T) {
	input := `{"symbol":"HYPE","bestBid":"1","bestAsk":"2","mid":"1.5","time":"2025-01-01T00:00:00Z"}` + "\n\nnot-json\n"
	ticks, err := LoadTicks(strings.NewReader(input))
	require.Error(t, err)
	require.Contains(t, err.Error(), "line 3")
	require.Len(t, ticks, 1)
}
