package domain

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestProgressStore_ReportAndGet(t *testing.T) {
	store := NewProgressStore()
	reporter := store.Reporter("run-1")

	reporter.Report(StageExtracting, 5, "extracting slides")
	reporter.Report(StageRewriting, 30, "rewriting slide content")

	snap, ok := store.Get("run-1")
	require.True(t, ok)
	assert.Equal(t, StageRewriting, snap.Stage)
	assert.Equal(t, 30, snap.Percent)
	assert.False(t, snap.UpdatedAt.IsZero())

	_, ok = store.Get("run-2")
	assert.False(t, ok)
}

func TestProgressStore_Clear(t *testing.T) {
	store := NewProgressStore()
	store.Reporter("run-1").Report(StageComplete, 100, "")

	store.Clear("run-1")

	_, ok := store.Get("run-1")
	assert.False(t, ok)
}

func TestProgressStore_Observer(t *testing.T) {
	store := NewProgressStore()

	var stages []string
	store.Observe(func(stage string, percent int, detail string) {
		stages = append(stages, stage)
	})

	reporter := store.Reporter("run-1")
	reporter.Report(StageExtracting, 5, "")
	reporter.Report(StageComplete, 100, "")

	assert.Equal(t, []string{StageExtracting, StageComplete}, stages)
}
