package monitor

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/spf13/afero"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/IronFox/AVS-sub001/internal/worker"
)

type fakeSource struct{ snap worker.Snapshot }

func (f fakeSource) Snapshot() worker.Snapshot { return f.snap }

type fakeStats struct {
	pending int
	last    time.Duration
}

func (f fakeStats) Pending() int                     { return f.pending }
func (f fakeStats) LastWriteDuration() time.Duration { return f.last }

func TestGetStatus(t *testing.T) {
	tests := []struct {
		name        string
		stats       *fakeStats
		wantPending int
		wantMs      float64
		wantWrite   string
	}{
		{name: "without journal stats"},
		{
			name:        "with journal stats",
			stats:       &fakeStats{pending: 7, last: 1500 * time.Microsecond},
			wantPending: 7,
			wantMs:      1.5,
			wantWrite:   "1.5ms",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			deps := Dependencies{Source: fakeSource{worker.Snapshot{Entities: 3, Docked: 1}}}
			if tt.stats != nil {
				deps.Stats = *tt.stats
			}
			st := NewService(deps).GetStatus()

			assert.Equal(t, 3, st.Entities)
			assert.Equal(t, 1, st.Docked)
			assert.Equal(t, tt.wantPending, st.JournalPending)
			assert.InDelta(t, tt.wantMs, st.LastWriteDurationMs, 1e-9)
			assert.Equal(t, tt.wantWrite, st.LastWrite)
			assert.NotEmpty(t, st.Uptime)
		})
	}
}

func TestWriteStatus(t *testing.T) {
	fs := afero.NewMemMapFs()
	svc := NewService(Dependencies{
		Source:     fakeSource{worker.Snapshot{Ticks: 42, Boarded: 1}},
		Fs:         fs,
		StatusFile: "/logs/status.json",
	})

	_, err := svc.WriteStatus()
	require.NoError(t, err)

	data, err := afero.ReadFile(fs, "/logs/status.json")
	require.NoError(t, err)
	var doc map[string]any
	require.NoError(t, json.Unmarshal(data, &doc))
	assert.EqualValues(t, 42, doc["ticks"])
	assert.EqualValues(t, 1, doc["boarded"])
	assert.Contains(t, doc, "uptime")
}

func TestWriteStatus_NoFile(t *testing.T) {
	fs := afero.NewMemMapFs()
	svc := NewService(Dependencies{Fs: fs})

	_, err := svc.WriteStatus()
	require.NoError(t, err)

	entries, err := afero.ReadDir(fs, "/")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestStartStop(t *testing.T) {
	fs := afero.NewMemMapFs()
	svc := NewService(Dependencies{
		Source:     fakeSource{},
		Fs:         fs,
		StatusFile: "/status.json",
		Interval:   10 * time.Millisecond,
	})

	assert.False(t, svc.IsRunning())
	require.NoError(t, svc.Start())
	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())

	assert.Eventually(t, func() bool {
		ok, _ := afero.Exists(fs, "/status.json")
		return ok
	}, time.Second, 5*time.Millisecond)

	svc.Stop()
	svc.Stop()
	assert.False(t, svc.IsRunning())

	require.NoError(t, svc.Start())
	assert.True(t, svc.IsRunning())
	svc.Stop()
}
