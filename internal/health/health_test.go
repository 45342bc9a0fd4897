package health

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/suykerbuyk/focusbot/internal/index"
)

type fakeLedger struct {
	stats index.Stats
	err   error
}

func (f fakeLedger) Stats(context.Context) (index.Stats, error) { return f.stats, f.err }

func fixedSource(ledger LedgerStats) *Source {
	start := time.Date(2026, 1, 2, 3, 0, 0, 0, time.UTC)
	return &Source{
		Started:  start,
		Sessions: func() int { return 2 },
		Pending:  func() int64 { return 3 },
		Ledger:   ledger,
		Logger:   zap.NewNop(),
		now:      func() time.Time { return start.Add(26*time.Hour + 5*time.Minute + 30*time.Second) },
	}
}

func TestFormatUptime(t *testing.T) {
	cases := map[time.Duration]string{
		0:                             "0m",
		59 * time.Second:              "0m",
		42 * time.Minute:              "42m",
		3*time.Hour + 7*time.Minute:   "3h 7m",
		50*time.Hour + 90*time.Second: "2d 2h 1m",
	}
	for d, want := range cases {
		assert.Equal(t, want, FormatUptime(d), "uptime %s", d)
	}
}

func TestStatusText(t *testing.T) {
	st := fixedSource(fakeLedger{stats: index.Stats{Notes: 10, Enriched: 4, Published: 1}}).Status(context.Background())
	assert.Equal(t, "✅ Focus Bot is running\nUptime: 1d 2h 5m\nActive drafts: 2\nPending enrichments: 3\nNotes: 10 (4 enriched, 1 published)", st.Text())
}

func TestStatusLedgerErrorOmitsStats(t *testing.T) {
	st := fixedSource(fakeLedger{err: errors.New("locked")}).Status(context.Background())
	assert.Nil(t, st.Ledger)
	assert.Equal(t, 2, st.ActiveSessions)
}

func TestHealthz(t *testing.T) {
	srv := NewServer("127.0.0.1:0", fixedSource(nil), zap.NewNop())

	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/healthz", nil), -1)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body map[string]any
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.EqualValues(t, 26*3600+5*60+30, body["uptime_seconds"])
	assert.EqualValues(t, 2, body["active_sessions"])
	assert.EqualValues(t, 3, body["pending_enrichments"])
	assert.NotContains(t, body, "ledger")
}

func TestHealthzUnknownRoute(t *testing.T) {
	srv := NewServer("127.0.0.1:0", fixedSource(nil), zap.NewNop())
	resp, err := srv.App().Test(httptest.NewRequest(http.MethodGet, "/nope", nil), -1)
	require.NoError(t, err)
	resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}
