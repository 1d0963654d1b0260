package telemetry

import (
	"context"
	"fmt"
	"time"
)

// ResourceKind names one remote resource type.
type ResourceKind string

const (
	ResourceStations ResourceKind = "stations"
	ResourceWidget   ResourceKind = "widget"
	ResourceHistory  ResourceKind = "history"
	ResourceChart    ResourceKind = "chart"
)

// Authenticated reports whether the resource is only served to signed-in sessions.
func (k ResourceKind) Authenticated() bool {
	return k != ResourceStations
}

// Request describes one remote resource to fetch.
type Request struct {
	Kind      ResourceKind
	StationID string
	From      time.Time
	To        time.Time
}

// CacheKey returns the canonical key addressing the request's resource.
func (r Request) CacheKey() string {
	switch r.Kind {
	case ResourceStations:
		return string(ResourceStations)
	case ResourceWidget:
		return fmt.Sprintf("%s:%s", r.Kind, r.StationID)
	default:
		return fmt.Sprintf("%s:%s:%d:%d", r.Kind, r.StationID, r.From.Unix(), r.To.Unix())
	}
}

// Transport performs a request against the remote API and returns the raw
// JSON payload. Non-2xx responses are reported as *resource.StatusError;
// connectivity failures as the underlying network error.
type Transport interface {
	Perform(ctx context.Context, req Request) ([]byte, error)
}

// TransportFunc adapts a function to Transport.
type TransportFunc func(ctx context.Context, req Request) ([]byte, error)

func (f TransportFunc) Perform(ctx context.Context, req Request) ([]byte, error) {
	return f(ctx, req)
}

// Session exposes the read-only authentication state.
type Session interface {
	IsAuthenticated() bool
}

// SessionNotifier is told when the remote API rejects the session.
type SessionNotifier interface {
	NotifySessionExpired()
}

// TokenSession is a Session backed by a static bearer token.
type TokenSession struct {
	token string
}

func NewTokenSession(token string) TokenSession {
	return TokenSession{token: token}
}

func (s TokenSession) IsAuthenticated() bool { return s.token != "" }
func (s TokenSession) Token() string         { return s.token }
