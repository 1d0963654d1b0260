package orchestrator

import (
	"go.uber.org/atomic"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/logger"
)

// SessionSignal is a one-shot session-expired notification. It fires at most
// once until re-armed; the orchestrator re-arms it on Reset and whenever a new
// cascade starts. Navigation is left to whoever reads C.
type SessionSignal struct {
	armed    *atomic.Bool
	emitted  *atomic.Int64
	ch       chan struct{}
	expiries *Publisher[int64]
}

func NewSessionSignal() *SessionSignal {
	return &SessionSignal{
		armed:    atomic.NewBool(true),
		emitted:  atomic.NewInt64(0),
		ch:       make(chan struct{}, 1),
		expiries: NewPublisher(int64(0)),
	}
}

// NotifySessionExpired implements telemetry.SessionNotifier.
func (s *SessionSignal) NotifySessionExpired() {
	if !s.armed.CAS(true, false) {
		return
	}
	n := s.emitted.Inc()
	logger.Warn().Int64("count", n).Msg("session expired; signalling observers")
	s.expiries.publish(n)

	select {
	case s.ch <- struct{}{}:
	default:
	}
}

// C delivers one value per emission.
func (s *SessionSignal) C() <-chan struct{} { return s.ch }

// Expirations publishes the running emission count, for observers that need
// their own copy of the signal.
func (s *SessionSignal) Expirations() *Publisher[int64] { return s.expiries }

// Emitted returns how many times the signal fired.
func (s *SessionSignal) Emitted() int64 { return s.emitted.Load() }

func (s *SessionSignal) rearm() { s.armed.Store(true) }
