package orchestrator

import (
	"errors"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
)

// Status is the orchestrator's position in its state machine.
type Status int

const (
	StatusIdle Status = iota
	StatusLoadingStations
	StatusStationsReady
	StatusLoadingDependents
	StatusDependentsReady
	StatusError
)

func (s Status) String() string {
	switch s {
	case StatusIdle:
		return "idle"
	case StatusLoadingStations:
		return "loading_stations"
	case StatusStationsReady:
		return "stations_ready"
	case StatusLoadingDependents:
		return "loading_dependents"
	case StatusDependentsReady:
		return "dependents_ready"
	case StatusError:
		return "error"
	default:
		return "unknown"
	}
}

func (s Status) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Selection is the currently selected station. Generation increases on every
// selection change, refresh and reset and is never reused.
type Selection struct {
	StationID  string `json:"stationId,omitempty"`
	Selected   bool   `json:"selected"`
	Generation uint64 `json:"generation"`
}

// View is a published envelope tagged with the selection it belongs to.
type View[T any] struct {
	Generation uint64
	StationID  string
	Resource   resource.Resource[T]
}

var (
	// ErrNothingSelected is returned by Refresh when no station is selected.
	ErrNothingSelected = errors.New("no station selected")
	// ErrInvalidTransition is returned when an operation is not allowed in the current status.
	ErrInvalidTransition = errors.New("operation not allowed in current state")
	// ErrStationNotFound is wrapped by the validation error of SelectStation.
	ErrStationNotFound = errors.New("station not found")
)

func stationNotFound() *resource.Error {
	return &resource.Error{Kind: resource.KindValidation, Message: "Station not found.", Err: ErrStationNotFound}
}
