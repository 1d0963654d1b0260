package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/atomic"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/orchestrator"
)

type fakeRefresher struct {
	calls *atomic.Int32
	err   error
}

func (f *fakeRefresher) Refresh() error {
	f.calls.Inc()
	return f.err
}

type fakeSweeper struct{ calls *atomic.Int32 }

func (f *fakeSweeper) Sweep() int {
	f.calls.Inc()
	return 1
}

func TestSchedulerRunsJobs(t *testing.T) {
	r := &fakeRefresher{calls: atomic.NewInt32(0)}
	sw := &fakeSweeper{calls: atomic.NewInt32(0)}

	s := New(r, sw, time.Second, time.Second)
	require.NoError(t, s.Start())
	defer s.Stop()

	// Jobs wait for their first interval.
	assert.Zero(t, r.calls.Load())

	assert.Eventually(t, func() bool {
		return r.calls.Load() > 0 && sw.calls.Load() > 0
	}, 3*time.Second, 50*time.Millisecond)
}

func TestSchedulerDisabledJobs(t *testing.T) {
	s := New(nil, nil, 0, 0)
	require.NoError(t, s.Start())
	s.Stop()
}

func TestRefreshToleratesExpectedErrors(t *testing.T) {
	for _, err := range []error{nil, orchestrator.ErrNothingSelected, orchestrator.ErrInvalidTransition, errors.New("boom")} {
		r := &fakeRefresher{calls: atomic.NewInt32(0), err: err}
		s := New(r, nil, time.Minute, 0)
		s.refresh()
		assert.Equal(t, int32(1), r.calls.Load())
	}
}
