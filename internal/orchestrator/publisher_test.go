package orchestrator

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPublisherSubscribeReceivesSnapshot(t *testing.T) {
	p := NewPublisher(1)
	updates, cancel := p.Subscribe()
	defer cancel()

	assert.Equal(t, 1, <-updates)
	assert.Equal(t, 1, p.Subscribers())

	p.publish(2)
	assert.Equal(t, 2, <-updates)
	assert.Equal(t, 2, p.Get())
}

func TestPublisherConflatesSlowSubscribers(t *testing.T) {
	p := NewPublisher("a")
	updates, cancel := p.Subscribe()
	defer cancel()

	p.publish("b")
	p.publish("c")
	p.publish("d")

	assert.Equal(t, "d", <-updates)
	select {
	case v := <-updates:
		t.Fatalf("unexpected extra value %q", v)
	default:
	}
}

func TestPublisherCancelClosesChannel(t *testing.T) {
	p := NewPublisher(0)
	updates, cancel := p.Subscribe()
	<-updates

	cancel()
	cancel()

	_, ok := <-updates
	assert.False(t, ok)
	assert.Zero(t, p.Subscribers())

	// Publishing after cancel must not panic.
	p.publish(1)
}

func TestSessionSignalFiresOnceUntilRearmed(t *testing.T) {
	s := NewSessionSignal()

	for i := 0; i < 5; i++ {
		s.NotifySessionExpired()
	}
	assert.Equal(t, int64(1), s.Emitted())

	select {
	case <-s.C():
	case <-time.After(time.Second):
		t.Fatal("expected a signal")
	}
	select {
	case <-s.C():
		t.Fatal("signal delivered twice")
	default:
	}

	s.rearm()
	s.NotifySessionExpired()
	require.Equal(t, int64(2), s.Emitted())
	<-s.C()
}
