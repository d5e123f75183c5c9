package storage

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang/geo/r2"
	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/san-kum/motionlab/internal/config"
	"github.com/san-kum/motionlab/internal/geom"
	"github.com/san-kum/motionlab/internal/metrics"
	"github.com/san-kum/motionlab/internal/motion"
)

func sampleTrace() []motion.Tick {
	start := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	return []motion.Tick{
		{
			Seq: 1, Time: start, Pose: geom.NewPose(0, 0, 0), Target: r2.Point{X: 10},
			LinearError: 10, CosineLinearError: 10, LinearOutput: 1, Left: 1, Right: 1,
		},
		{
			Seq: 1, Time: start.Add(5 * time.Millisecond), Pose: geom.NewPose(0.5, 0.25, 0.125),
			Target: r2.Point{X: 10}, LinearError: 9.5, CosineLinearError: 9.4, AngularError: -0.2,
			LinearOutput: 1, AngularOutput: -0.1, Left: 1, Right: 0.8, Near: true, Distance: 0.559017,
		},
	}
}

func TestStoreSaveLoad(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())
	defer st.Close()

	meta := RunMetadata{
		Name:     "straight",
		Seed:     42,
		Estimate: geom.NewPose(9.5, 0, 0),
		Truth:    geom.NewPose(9.4, 0.1, 0.01),
		Drift:    0.141421,
		Motions:  []metrics.Summary{{Seq: 1, Reason: "early_exit", Values: map[string]float64{"ticks": 2}}},
	}
	cfg := config.GetPreset("straight")

	runID, err := st.Save(meta, cfg, sampleTrace())
	require.NoError(t, err)
	assert.Contains(t, runID, "straight_")

	loaded, err := st.Load(runID)
	require.NoError(t, err)
	assert.Equal(t, runID, loaded.ID)
	assert.Equal(t, int64(42), loaded.Seed)
	assert.Equal(t, 2, loaded.Ticks)
	assert.Equal(t, meta.Truth, loaded.Truth)
	assert.Equal(t, meta.Motions, loaded.Motions)

	loadedCfg, err := st.LoadConfig(runID)
	require.NoError(t, err)
	assert.Equal(t, cfg.Steps, loadedCfg.Steps)

	for _, name := range []string{metadataFile, configFile, traceFile} {
		_, err := os.Stat(filepath.Join(st.baseDir, runID, name))
		assert.NoError(t, err, name)
	}
}

func TestStoreTraceRoundTrip(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())
	defer st.Close()

	want := sampleTrace()
	runID, err := st.Save(RunMetadata{Name: "trace"}, nil, want)
	require.NoError(t, err)

	got, err := st.LoadTrace(runID)
	require.NoError(t, err)
	require.Len(t, got, len(want))
	for i := range want {
		assert.Equal(t, want[i].Seq, got[i].Seq)
		assert.Equal(t, want[i].Pose, got[i].Pose)
		assert.Equal(t, want[i].Target, got[i].Target)
		assert.Equal(t, want[i].Near, got[i].Near)
		assert.InDelta(t, want[i].Distance, got[i].Distance, 1e-6)
		assert.InDelta(t, want[i].AngularOutput, got[i].AngularOutput, 1e-6)
	}
	assert.Equal(t, 5*time.Millisecond, got[1].Time.Sub(got[0].Time))
}

func TestStoreList(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())
	defer st.Close()

	runs, err := st.List()
	require.NoError(t, err)
	assert.Empty(t, runs)

	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	first, err := st.Save(RunMetadata{Name: "a", Timestamp: base}, nil, nil)
	require.NoError(t, err)
	second, err := st.Save(RunMetadata{Name: "b", Timestamp: base.Add(time.Second), Drift: 0.5}, nil, sampleTrace())
	require.NoError(t, err)

	runs, err = st.List()
	require.NoError(t, err)
	require.Len(t, runs, 2)
	assert.Equal(t, first, runs[0].ID)
	assert.Equal(t, second, runs[1].ID)
	assert.Equal(t, 2, runs[1].Ticks)
	assert.Equal(t, 0.5, runs[1].Drift)
	assert.True(t, runs[1].Timestamp.Equal(base.Add(time.Second)))
}

func TestStoreIndexSurvivesReopen(t *testing.T) {
	dir := t.TempDir()
	st := New(dir)
	require.NoError(t, st.Init())
	_, err := st.Save(RunMetadata{Name: "persisted"}, nil, nil)
	require.NoError(t, err)
	require.NoError(t, st.Close())

	reopened := New(dir)
	require.NoError(t, reopened.Init())
	defer reopened.Close()
	runs, err := reopened.List()
	require.NoError(t, err)
	assert.Len(t, runs, 1)
}

func TestStoreNotFound(t *testing.T) {
	st := New(t.TempDir())
	require.NoError(t, st.Init())
	defer st.Close()

	_, err := st.Load("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
	_, err = st.LoadTrace("missing")
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStoreRequiresInit(t *testing.T) {
	st := New(t.TempDir())
	_, err := st.Save(RunMetadata{Name: "x"}, nil, nil)
	assert.Error(t, err)
}
