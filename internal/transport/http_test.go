package transport

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/telemetry"
)

func TestPerformBuildsRequests(t *testing.T) {
	from := time.Date(2026, 10, 14, 12, 0, 0, 0, time.UTC)
	to := from.Add(24 * time.Hour)

	tests := []struct {
		name      string
		req       telemetry.Request
		wantPath  string
		wantQuery string
		wantAuth  string
	}{
		{
			name:     "stations are public",
			req:      telemetry.Request{Kind: telemetry.ResourceStations},
			wantPath: "/api/stations",
		},
		{
			name:     "widget",
			req:      telemetry.Request{Kind: telemetry.ResourceWidget, StationID: "ST-01"},
			wantPath: "/api/stations/ST-01/widget",
			wantAuth: "Bearer secret",
		},
		{
			name:      "history",
			req:       telemetry.Request{Kind: telemetry.ResourceHistory, StationID: "ST-01", From: from, To: to},
			wantPath:  "/api/stations/ST-01/history",
			wantQuery: "from=2026-10-14T12%3A00%3A00Z&to=2026-10-15T12%3A00%3A00Z",
			wantAuth:  "Bearer secret",
		},
		{
			name:      "chart",
			req:       telemetry.Request{Kind: telemetry.ResourceChart, StationID: "ST-01", From: from, To: to},
			wantPath:  "/api/stations/ST-01/chart",
			wantQuery: "from=2026-10-14T12%3A00%3A00Z&to=2026-10-15T12%3A00%3A00Z",
			wantAuth:  "Bearer secret",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				assert.Equal(t, tt.wantPath, r.URL.Path)
				assert.Equal(t, tt.wantQuery, r.URL.RawQuery)
				assert.Equal(t, tt.wantAuth, r.Header.Get("Authorization"))
				_, _ = w.Write([]byte(`{"ok":true}`))
			}))
			defer srv.Close()

			tr, err := NewHTTPTransport(srv.URL+"/api/", time.Second, telemetry.NewTokenSession("secret"))
			require.NoError(t, err)

			body, err := tr.Perform(context.Background(), tt.req)
			require.NoError(t, err)
			assert.JSONEq(t, `{"ok":true}`, string(body))
		})
	}
}

func TestPerformStatusError(t *testing.T) {
	for _, code := range []int{401, 404, 503} {
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(code)
		}))

		tr, err := NewHTTPTransport(srv.URL, time.Second, nil)
		require.NoError(t, err)

		_, err = tr.Perform(context.Background(), telemetry.Request{Kind: telemetry.ResourceWidget, StationID: "A"})
		srv.Close()

		var se *resource.StatusError
		require.True(t, errors.As(err, &se), "code %d", code)
		assert.Equal(t, code, se.Code)
	}
}

func TestPerformUnwrapsDataEnvelope(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{"data":[{"id":"A"},{"id":"B"}],"meta":{"count":2}}`))
	}))
	defer srv.Close()

	tr, err := NewHTTPTransport(srv.URL, time.Second, nil)
	require.NoError(t, err)

	body, err := tr.Perform(context.Background(), telemetry.Request{Kind: telemetry.ResourceStations})
	require.NoError(t, err)
	assert.JSONEq(t, `[{"id":"A"},{"id":"B"}]`, string(body))
}

func TestPerformConnectionFailureClassifiesAsNetwork(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	addr := srv.URL
	srv.Close()

	tr, err := NewHTTPTransport(addr, time.Second, nil)
	require.NoError(t, err)

	_, err = tr.Perform(context.Background(), telemetry.Request{Kind: telemetry.ResourceStations})
	require.Error(t, err)
	assert.Equal(t, resource.KindNetwork, resource.Classify(err).Kind)
}

func TestNewHTTPTransportRejectsRelativeURL(t *testing.T) {
	_, err := NewHTTPTransport("stations.local/api", time.Second, nil)
	assert.Error(t, err)
}

func TestUnwrapLeavesPlainPayloads(t *testing.T) {
	assert.Equal(t, `{"data":"text"}`, string(unwrap([]byte(`{"data":"text"}`))))
	assert.Equal(t, `[1,2]`, string(unwrap([]byte(`[1,2]`))))
	assert.Equal(t, `not json`, string(unwrap([]byte(`not json`))))
}
