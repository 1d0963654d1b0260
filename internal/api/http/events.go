package httpapi

import (
	"bufio"
	"fmt"
	"time"

	"github.com/bytedance/sonic"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/logger"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/orchestrator"
)

// streamEvents writes server-sent events for every orchestrator change until
// the client goes away or done is closed. Each stream first receives the
// current snapshot of every view.
func streamEvents(w *bufio.Writer, orch *orchestrator.Orchestrator, done <-chan struct{}, heartbeat time.Duration) {
	status, cancelStatus := orch.Status.Subscribe()
	defer cancelStatus()
	stations, cancelStations := orch.Stations.Subscribe()
	defer cancelStations()
	widget, cancelWidget := orch.Widget.Subscribe()
	defer cancelWidget()
	history, cancelHistory := orch.History.Subscribe()
	defer cancelHistory()
	chart, cancelChart := orch.Chart.Subscribe()
	defer cancelChart()
	expiries, cancelExpiries := orch.SessionExpirations().Subscribe()
	defer cancelExpiries()

	// Expirations before the stream opened are not replayed.
	seen := <-expiries

	ticker := time.NewTicker(heartbeat)
	defer ticker.Stop()

	for {
		var err error
		select {
		case <-done:
			return
		case s := <-status:
			err = writeEvent(w, "status", map[string]any{"status": s, "generation": orch.Generation()})
		case r := <-stations:
			err = writeEvent(w, "stations", stationsEnvelope(r))
		case v := <-widget:
			err = writeEvent(w, "widget", viewEnvelope(v, widgetData))
		case v := <-history:
			err = writeEvent(w, "history", viewEnvelope(v, historyData))
		case v := <-chart:
			err = writeEvent(w, "chart", viewEnvelope(v, chartData))
		case n := <-expiries:
			if n > seen {
				seen = n
				err = writeEvent(w, "session_expired", map[string]any{"count": n})
			}
		case <-ticker.C:
			if _, err = w.WriteString(": ping\n\n"); err == nil {
				err = w.Flush()
			}
		}
		if err != nil {
			logger.Debug().Err(err).Msg("events: client disconnected")
			return
		}
	}
}

func writeEvent(w *bufio.Writer, event string, payload any) error {
	data, err := sonic.Marshal(payload)
	if err != nil {
		return fmt.Errorf("encode %s event: %w", event, err)
	}
	if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event, data); err != nil {
		return err
	}
	return w.Flush()
}
