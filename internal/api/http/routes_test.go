package httpapi

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/orchestrator"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/retry"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/telemetry"
)

func stationsHandler(ctx context.Context, req telemetry.Request) ([]byte, error) {
	switch req.Kind {
	case telemetry.ResourceStations:
		return json.Marshal([]telemetry.Station{
			{ID: "A", Name: "Alpha", LastCommunication: time.Now().Add(-3 * time.Minute)},
			{ID: "B", Name: "Bravo"},
		})
	case telemetry.ResourceWidget:
		return json.Marshal(telemetry.WidgetSnapshot{
			Timestamp: time.Now().Add(-time.Minute),
			Values:    []telemetry.WidgetValue{{Parameter: "temperature", Value: 20.1, Unit: "C"}},
		})
	case telemetry.ResourceHistory:
		return json.Marshal(telemetry.HistoricalSeries{})
	default:
		return json.Marshal(telemetry.ChartSeries{})
	}
}

func newTestApp(t *testing.T, tr telemetry.TransportFunc) (*fiber.App, *orchestrator.Orchestrator) {
	t.Helper()
	signal := orchestrator.NewSessionSignal()
	repo := telemetry.NewRepository(tr, telemetry.NewTokenSession("token"),
		telemetry.WithRetryPolicy(retry.Policy{MaxAttempts: 2, Base: time.Millisecond, MaxDelay: time.Millisecond}),
		telemetry.WithBreaker(telemetry.BreakerConfig{}),
		telemetry.WithSessionNotifier(signal),
	)
	orch := orchestrator.New(repo, signal, orchestrator.Config{})
	t.Cleanup(orch.Close)

	shutdown := make(chan struct{})
	t.Cleanup(func() { close(shutdown) })

	app := fiber.New(fiber.Config{ErrorHandler: ErrorHandler})
	RegisterRoutes(app, orch, shutdown)
	return app, orch
}

func doJSON(t *testing.T, app *fiber.App, method, path, body string) (int, map[string]any) {
	t.Helper()
	var rdr io.Reader
	if body != "" {
		rdr = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, rdr)
	if body != "" {
		req.Header.Set(fiber.HeaderContentType, fiber.MIMEApplicationJSON)
	}
	resp, err := app.Test(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	raw, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	out := map[string]any{}
	if len(raw) > 0 {
		require.NoError(t, json.Unmarshal(raw, &out), string(raw))
	}
	return resp.StatusCode, out
}

func TestStationsLifecycle(t *testing.T) {
	app, orch := newTestApp(t, stationsHandler)

	code, body := doJSON(t, app, http.MethodGet, "/api/v1/stations", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "loading", body["status"])

	code, body = doJSON(t, app, http.MethodPost, "/api/v1/stations/reload", "")
	require.Equal(t, http.StatusAccepted, code)
	assert.Equal(t, "A", body["stationId"])
	orch.Wait()

	code, body = doJSON(t, app, http.MethodGet, "/api/v1/stations", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	stations := body["data"].([]any)
	require.Len(t, stations, 2)
	first := stations[0].(map[string]any)
	assert.Equal(t, "A", first["id"])
	assert.Equal(t, "3 minutes ago", first["lastSeen"])

	code, body = doJSON(t, app, http.MethodGet, "/api/v1/widget", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "success", body["status"])
	assert.Equal(t, "A", body["stationId"])
	widget := body["data"].(map[string]any)
	assert.Equal(t, "1 minute ago", widget["updated"])

	code, body = doJSON(t, app, http.MethodGet, "/api/v1/history", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "1 day", body["data"].(map[string]any)["span"])

	code, body = doJSON(t, app, http.MethodGet, "/api/v1/selection", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "dependents_ready", body["status"])
}

func TestSelectStation(t *testing.T) {
	app, orch := newTestApp(t, stationsHandler)
	require.NoError(t, orch.LoadStations(context.Background()))
	orch.Wait()

	tests := []struct {
		name string
		body string
		want int
	}{
		{name: "malformed body", body: `{`, want: http.StatusBadRequest},
		{name: "missing id", body: `{}`, want: http.StatusBadRequest},
		{name: "id too long", body: `{"stationId":"` + strings.Repeat("x", 65) + `"}`, want: http.StatusBadRequest},
		{name: "unknown station", body: `{"stationId":"Z"}`, want: http.StatusNotFound},
		{name: "known station", body: `{"stationId":"B"}`, want: http.StatusAccepted},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			code, body := doJSON(t, app, http.MethodPut, "/api/v1/selection", tt.body)
			assert.Equal(t, tt.want, code, body)
			if code >= 400 {
				assert.Equal(t, true, body["error"])
			}
		})
	}

	orch.Wait()
	assert.Equal(t, "B", orch.Selection().StationID)
	assert.Equal(t, "B", orch.Widget.Get().StationID)
}

func TestRefreshWithoutSelectionConflicts(t *testing.T) {
	app, _ := newTestApp(t, stationsHandler)

	code, body := doJSON(t, app, http.MethodPost, "/api/v1/refresh", "")
	assert.Equal(t, http.StatusConflict, code)
	assert.Equal(t, orchestrator.ErrNothingSelected.Error(), body["message"])
}

func TestReloadFailureMapsToBadGateway(t *testing.T) {
	app, _ := newTestApp(t, func(ctx context.Context, req telemetry.Request) ([]byte, error) {
		return nil, &resource.StatusError{Code: 503}
	})

	code, body := doJSON(t, app, http.MethodPost, "/api/v1/stations/reload", "")
	assert.Equal(t, http.StatusBadGateway, code)
	assert.Equal(t, resource.Message(resource.KindNetwork, 503), body["message"])

	code, body = doJSON(t, app, http.MethodGet, "/api/v1/stations", "")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "error", body["status"])
	assert.Equal(t, "network", body["error"].(map[string]any)["kind"])
}

func TestToFiberError(t *testing.T) {
	tests := []struct {
		err  error
		want int
	}{
		{orchestrator.ErrInvalidTransition, fiber.StatusConflict},
		{resource.Validation("bad id"), fiber.StatusBadRequest},
		{resource.New(resource.KindAuthExpired, 401, nil), fiber.StatusUnauthorized},
		{resource.New(resource.KindHTTP, 404, nil), fiber.StatusBadGateway},
		{resource.New(resource.KindUnknown, 0, nil), fiber.StatusInternalServerError},
	}
	for _, tt := range tests {
		var fe *fiber.Error
		require.ErrorAs(t, toFiberError(tt.err), &fe)
		assert.Equal(t, tt.want, fe.Code, tt.err.Error())
	}
}

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func TestStreamEvents(t *testing.T) {
	_, orch := newTestApp(t, stationsHandler)

	out := &syncBuffer{}
	done := make(chan struct{})
	finished := make(chan struct{})
	go func() {
		defer close(finished)
		streamEvents(bufio.NewWriter(out), orch, done, time.Hour)
	}()

	assert.Eventually(t, func() bool {
		return strings.Contains(out.String(), "event: status\ndata: ")
	}, time.Second, 5*time.Millisecond)

	require.NoError(t, orch.LoadStations(context.Background()))
	orch.Wait()

	assert.Eventually(t, func() bool {
		s := out.String()
		return strings.Contains(s, `"status":"dependents_ready"`) &&
			strings.Contains(s, "event: widget\n") &&
			strings.Contains(s, `"stationId":"A"`)
	}, 2*time.Second, 5*time.Millisecond)

	close(done)
	select {
	case <-finished:
	case <-time.After(time.Second):
		t.Fatal("stream did not stop")
	}
	assert.Zero(t, orch.Status.Subscribers())
}
