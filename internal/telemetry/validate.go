package telemetry

import (
	"regexp"
	"time"

	"github.com/go-playground/validator/v10"

	"github.com/didttdevs/RAMF-MOBILE-sub001/internal/resource"
)

// MaxStationIDLength bounds accepted station identifiers.
const MaxStationIDLength = 64

var stationIDPattern = regexp.MustCompile(`^[A-Za-z0-9_.\-]+$`)

var validate = newValidator()

func newValidator() *validator.Validate {
	v := validator.New()
	_ = v.RegisterValidation("stationid", func(fl validator.FieldLevel) bool {
		id := fl.Field().String()
		return len(id) <= MaxStationIDLength && stationIDPattern.MatchString(id)
	})
	return v
}

// IDValidator rejects malformed station identifiers before any cache or
// network access.
type IDValidator func(id string) error

// ValidateStationID is the default IDValidator.
func ValidateStationID(id string) error {
	if err := validate.Var(id, "required,stationid"); err != nil {
		return resource.Validation("invalid station id")
	}
	return nil
}

type rangeQuery struct {
	From time.Time `validate:"required"`
	To   time.Time `validate:"required,gtefield=From"`
}

func validateRange(from, to time.Time) error {
	if err := validate.Struct(rangeQuery{From: from, To: to}); err != nil {
		return resource.Validation("invalid time range")
	}
	return nil
}
