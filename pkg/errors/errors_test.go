package errors

import (
	"os"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingReporter struct {
	mu   sync.Mutex
	errs []error
}

func (r *recordingReporter) Report(err error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.errs = append(r.errs, err)
}

func TestWrapAndReport(t *testing.T) {
	require.NoError(t, os.Unsetenv(debugMode))
	defer ResetReporters()
	rec := &recordingReporter{}
	addReporter(rec)

	assert.Nil(t, WrapAndReport(nil, "nothing"))

	base := New("relay closed")
	err := WrapAndReport(base, "read session response")
	require.Error(t, err)
	assert.Equal(t, "read session response: relay closed", err.Error())
	assert.True(t, Is(err, base))
	assert.Equal(t, base, Cause(err))
	require.Len(t, rec.errs, 1)
	assert.Equal(t, err, rec.errs[0])
}

func TestReportDisabledInDebugMode(t *testing.T) {
	require.NoError(t, os.Setenv(debugMode, "1"))
	defer os.Unsetenv(debugMode)
	defer ResetReporters()
	rec := &recordingReporter{}
	addReporter(rec)

	_ = NewWithReport("silent")
	assert.Empty(t, rec.errs)
}

func TestCallersOrigin(t *testing.T) {
	lines := callers().fullStack()
	require.NotEmpty(t, lines)
	assert.NotContains(t, origin(lines), "fungily-score/pkg/errors.callers")
}

func TestRateLimiter(t *testing.T) {
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	rl := newRateLimiter(time.Minute)
	rl.now = func() time.Time { return now }

	limited, stats := rl.StackBasedRateLimited("a.go:1")
	assert.False(t, limited)
	assert.Nil(t, stats.lastReportTime)

	now = now.Add(10 * time.Second)
	limited, _ = rl.StackBasedRateLimited("a.go:1")
	assert.True(t, limited)
	limited, _ = rl.StackBasedRateLimited("b.go:2")
	assert.False(t, limited, "other call sites are tracked separately")

	now = now.Add(time.Minute)
	limited, stats = rl.StackBasedRateLimited("a.go:1")
	assert.False(t, limited)
	assert.Equal(t, 1, stats.occurCountSinceLastReport)
	assert.Equal(t, 2, stats.totalOccurCount)
}
