package metrics

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

func TestRecorderCounts(t *testing.T) {
	t.Parallel()

	r := New()
	r.Resolution("alias")
	r.Resolution("alias")
	r.Resolution("fuzzy")
	r.DrawRetry()
	r.Restart()
	r.Objective(12.5)

	require.InDelta(t, 2, testutil.ToFloat64(r.resolutions.WithLabelValues("alias")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.resolutions.WithLabelValues("fuzzy")), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.drawRetries), 0)
	require.InDelta(t, 1, testutil.ToFloat64(r.restarts), 0)
	require.InDelta(t, 12.5, testutil.ToFloat64(r.objective), 0)
}

func TestNilRecorder(t *testing.T) {
	t.Parallel()

	var r *Recorder
	r.Resolution("exact")
	r.Prompt("rank")
	r.Assignment("random")
	require.NoError(t, r.WriteTextfile(filepath.Join(t.TempDir(), "x.prom")))
	mfs, err := r.Gatherer().Gather()
	require.NoError(t, err)
	require.Empty(t, mfs)
}

func TestWriteTextfile(t *testing.T) {
	t.Parallel()

	r := New()
	r.Assignment("optimized")
	path := filepath.Join(t.TempDir(), "admissions.prom")
	require.NoError(t, r.WriteTextfile(path))

	b, err := os.ReadFile(path)
	require.NoError(t, err)
	require.True(t, strings.Contains(string(b), `admissions_assignments_total{method="optimized"} 1`))
}
