package dispatch

import (
	"errors"
	"fmt"
)

// ErrDeclined marks a builder's "not applicable" outcome. Declined entries are
// dropped from the result set; they never fail a pipeline run.
var ErrDeclined = errors.New("declined")

var (
	// ErrUnsupportedType means no builder is registered for the type tag.
	ErrUnsupportedType = fmt.Errorf("%w: unsupported credential type", ErrDeclined)

	// ErrIntegrationUnavailable means the type needs an external integration
	// that is not configured.
	ErrIntegrationUnavailable = fmt.Errorf("%w: host integration unavailable", ErrDeclined)

	// ErrMissingTag means a tag the type requires is absent or empty.
	ErrMissingTag = fmt.Errorf("%w: mandatory tag missing", ErrDeclined)

	// ErrInvalidTag means a tag value could not be parsed.
	ErrInvalidTag = fmt.Errorf("%w: invalid tag value", ErrDeclined)
)

// DeclineReason returns a short, stable label for a decline error, suitable
// for metrics. Non-decline errors return "".
func DeclineReason(err error) string {
	switch {
	case errors.Is(err, ErrUnsupportedType):
		return "unsupported_type"
	case errors.Is(err, ErrIntegrationUnavailable):
		return "integration_unavailable"
	case errors.Is(err, ErrMissingTag):
		return "missing_tag"
	case errors.Is(err, ErrInvalidTag):
		return "invalid_tag"
	case errors.Is(err, ErrDeclined):
		return "other"
	}
	return ""
}

// IsDeclined reports whether err is a decline rather than a failure.
func IsDeclined(err error) bool {
	return errors.Is(err, ErrDeclined)
}
