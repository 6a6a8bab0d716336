package sync

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"syncqueue-client/internal/config"
)

func TestScheduler_TriggerRefreshLoads(t *testing.T) {
	q := &fakeQueue{items: sampleItems()}
	h := newHarness(q)
	s := NewScheduler(config.SchedulerConfig{Enabled: true, Interval: "@every 1h"}, h.m)

	s.triggerRefresh()
	assert.Equal(t, 1, q.listCalls)
	assert.Len(t, h.m.Items(), 3)
}

func TestScheduler_SkipsWhileLoading(t *testing.T) {
	q := &fakeQueue{}
	h := newHarness(q)
	s := NewScheduler(config.SchedulerConfig{Enabled: true, Interval: "@every 1h"}, h.m)

	h.m.loads.Add(1)
	s.triggerRefresh()
	assert.Equal(t, 0, q.listCalls)
}

func TestScheduler_StartStop(t *testing.T) {
	h := newHarness(&fakeQueue{})

	disabled := NewScheduler(config.SchedulerConfig{Enabled: false, Interval: "not a spec"}, h.m)
	require.NoError(t, disabled.Start())
	disabled.Stop()

	bad := NewScheduler(config.SchedulerConfig{Enabled: true, Interval: "every now and then"}, h.m)
	assert.Error(t, bad.Start())

	ok := NewScheduler(config.SchedulerConfig{Enabled: true, Interval: "@every 1h"}, h.m)
	require.NoError(t, ok.Start())
	assert.NotZero(t, ok.entryID)
	ok.Stop()
}
