package telemetry

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/visionflowai/visionflow-oss/pkg/domain"
)

func TestRegistryRegisterStartsLoaded(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("detect")

	snap, ok := r.Snapshot("detect")
	require.True(t, ok)
	assert.Equal(t, domain.LifecycleLoaded, snap.Lifecycle)
	assert.Equal(t, uint64(0), snap.Invocations())
	assert.True(t, snap.LastUsedAt.IsZero())
}

func TestRegistryRegisterIsIdempotent(t *testing.T) {
	r := NewRegistry(nil)
	r.Register("detect")
	r.Record("detect", 10*time.Millisecond, true, domain.LifecycleInitialized)

	// Re-registration on manifest reload must not reset counters.
	r.Register("detect")

	snap, ok := r.Snapshot("detect")
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.SuccessCount)
	assert.Equal(t, domain.LifecycleInitialized, snap.Lifecycle)
}

func TestRegistryRecordCounts(t *testing.T) {
	r := NewRegistry(nil)

	r.Record("detect", 10*time.Millisecond, true, domain.LifecycleInitialized)
	r.Record("detect", 20*time.Millisecond, false, domain.LifecycleFailed)
	r.Record("detect", 30*time.Millisecond, true, domain.LifecycleInitialized)

	snap, ok := r.Snapshot("detect")
	require.True(t, ok)
	assert.Equal(t, uint64(2), snap.SuccessCount)
	assert.Equal(t, uint64(1), snap.ErrorCount)
	assert.Equal(t, uint64(3), snap.Invocations())
	assert.Equal(t, 30*time.Millisecond, snap.LastDuration)
	assert.Equal(t, domain.LifecycleInitialized, snap.Lifecycle)
	assert.False(t, snap.LastUsedAt.IsZero())
}

func TestRegistryRunningAverage(t *testing.T) {
	r := NewRegistry(nil)

	r.Record("detect", 10*time.Millisecond, true, domain.LifecycleInitialized)
	r.Record("detect", 20*time.Millisecond, true, domain.LifecycleInitialized)
	r.Record("detect", 30*time.Millisecond, true, domain.LifecycleInitialized)

	snap, _ := r.Snapshot("detect")
	assert.InDelta(t, float64(20*time.Millisecond), float64(snap.AvgDuration),
		float64(time.Millisecond))
}

func TestRegistryLazyEntryForUnknownTool(t *testing.T) {
	r := NewRegistry(nil)

	// The runner records rejections for tools nobody registered.
	r.Record("ghost", time.Millisecond, false, domain.LifecycleFailed)

	snap, ok := r.Snapshot("ghost")
	require.True(t, ok)
	assert.Equal(t, uint64(1), snap.ErrorCount)
	assert.Equal(t, domain.LifecycleFailed, snap.Lifecycle)
}

func TestRegistrySnapshotMissing(t *testing.T) {
	r := NewRegistry(nil)
	_, ok := r.Snapshot("never-seen")
	assert.False(t, ok)
}

func TestRegistryAll(t *testing.T) {
	r := NewRegistry(nil)
	r.Record("a", time.Millisecond, true, domain.LifecycleInitialized)
	r.Record("b", time.Millisecond, false, domain.LifecycleFailed)

	all := r.All()
	require.Len(t, all, 2)
	assert.Equal(t, uint64(1), all["a"].SuccessCount)
	assert.Equal(t, uint64(1), all["b"].ErrorCount)
}

func TestRegistryConcurrentRecords(t *testing.T) {
	r := NewRegistry(nil)

	const workers = 8
	const perWorker = 200

	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(failures bool) {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				r.Record("shared", time.Millisecond, !failures, domain.LifecycleInitialized)
			}
		}(w%2 == 0)
	}
	wg.Wait()

	snap, ok := r.Snapshot("shared")
	require.True(t, ok)
	assert.Equal(t, uint64(workers*perWorker), snap.Invocations(),
		"no update may be lost under concurrency")
}

func TestRegistryWithPrometheusExporter(t *testing.T) {
	prom := NewMetrics()
	r := NewRegistry(prom)

	r.Register("detect")
	r.Record("detect", 5*time.Millisecond, true, domain.LifecycleInitialized)
	r.Record("detect", 5*time.Millisecond, false, domain.LifecycleUnavailable)

	// The exporter shares the registry's view; a handler must be servable.
	require.NotNil(t, prom.Handler())

	snap, _ := r.Snapshot("detect")
	assert.Equal(t, uint64(2), snap.Invocations())
	assert.Equal(t, domain.LifecycleUnavailable, snap.Lifecycle)
}
