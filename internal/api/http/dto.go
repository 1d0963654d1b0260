package httpapi

import (
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/orchestrator"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/telemetry"
)

// envelopeDTO is the JSON form of a resource envelope.
type envelopeDTO struct {
	Status     string    `json:"status"`
	Stale      bool      `json:"stale,omitempty"`
	Generation uint64    `json:"generation,omitempty"`
	StationID  string    `json:"stationId,omitempty"`
	Data       any       `json:"data,omitempty"`
	Error      *errorDTO `json:"error,omitempty"`
}

type errorDTO struct {
	Kind    string `json:"kind"`
	Code    int    `json:"code,omitempty"`
	Message string `json:"message"`
}

func envelope[T any](r resource.Resource[T], data func(T) any) envelopeDTO {
	out := envelopeDTO{Status: r.Status().String(), Stale: r.IsStale()}
	if v, ok := r.Value(); ok {
		out.Data = data(v)
	}
	if e := r.Err(); e != nil {
		out.Error = &errorDTO{Kind: e.Kind.String(), Code: e.Code, Message: e.Message}
	}
	return out
}

func viewEnvelope[T any](v orchestrator.View[T], data func(T) any) envelopeDTO {
	out := envelope(v.Resource, data)
	out.Generation = v.Generation
	out.StationID = v.StationID
	return out
}

type stationDTO struct {
	telemetry.Station
	LastSeen string `json:"lastSeen,omitempty"`
}

func stationsEnvelope(r resource.Resource[[]telemetry.Station]) envelopeDTO {
	return envelope(r, func(stations []telemetry.Station) any {
		out := make([]stationDTO, 0, len(stations))
		for _, s := range stations {
			out = append(out, stationDTO{Station: s, LastSeen: ago(s.LastCommunication)})
		}
		return out
	})
}

type widgetDTO struct {
	telemetry.WidgetSnapshot
	Updated string `json:"updated,omitempty"`
}

func widgetData(w telemetry.WidgetSnapshot) any {
	return widgetDTO{WidgetSnapshot: w, Updated: ago(w.Timestamp)}
}

type seriesDTO[T any] struct {
	Series T      `json:"series"`
	Span   string `json:"span"`
}

func historyData(h telemetry.HistoricalSeries) any {
	return seriesDTO[telemetry.HistoricalSeries]{Series: h, Span: span(h.From, h.To)}
}

func chartData(c telemetry.ChartSeries) any {
	return seriesDTO[telemetry.ChartSeries]{Series: c, Span: span(c.From, c.To)}
}

func ago(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return humanize.Time(t)
}

// span renders a range as e.g. "1 day".
func span(from, to time.Time) string {
	if from.IsZero() || to.IsZero() {
		return ""
	}
	return strings.TrimSpace(humanize.RelTime(from, to, "", ""))
}
