package allocation

import (
	"errors"
	"fmt"

	topicstore "github.com/dalemusser/stratatopics/internal/app/store/topics"
)

var (
	ErrTopicNotFound          = errors.New("topic not found")
	ErrTeamNotFound           = errors.New("team not found")
	ErrNotSignedUp            = errors.New("team is not signed up for this topic")
	ErrTeamHoldsTopic         = errors.New("team already holds a confirmed topic in this assignment")
	ErrTopicRestricted        = errors.New("topic is reserved for another team")
	ErrCapacityBelowConfirmed = errors.New("capacity cannot be lower than the number of confirmed teams")
	ErrInvalidCapacity        = errors.New("capacity must not be negative")
	ErrAllocationUnavailable  = errors.New("allocation is busy; please retry")
)

// Kind groups errors by how a caller should react to them.
type Kind int

const (
	KindUnknown Kind = iota
	KindNotFound
	KindConflict
	KindForbidden
	KindInvalid
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindNotFound:
		return "not_found"
	case KindConflict:
		return "conflict"
	case KindForbidden:
		return "forbidden"
	case KindInvalid:
		return "invalid"
	case KindTransient:
		return "unavailable"
	default:
		return "internal"
	}
}

// KindOf classifies err. Unrecognized errors are KindUnknown.
func KindOf(err error) Kind {
	switch {
	case err == nil:
		return KindUnknown
	case errors.Is(err, ErrTopicNotFound), errors.Is(err, ErrTeamNotFound), errors.Is(err, ErrNotSignedUp):
		return KindNotFound
	case errors.Is(err, ErrTeamHoldsTopic), errors.Is(err, ErrCapacityBelowConfirmed),
		errors.Is(err, topicstore.ErrDuplicateIdentifier):
		return KindConflict
	case errors.Is(err, ErrTopicRestricted):
		return KindForbidden
	case errors.Is(err, ErrInvalidCapacity), errors.Is(err, topicstore.ErrInvalidCapacity):
		return KindInvalid
	case errors.Is(err, ErrAllocationUnavailable):
		return KindTransient
	default:
		return KindUnknown
	}
}

// Invariant names.
const (
	InvariantCapacity    = "capacity"
	InvariantSingleClaim = "single_claim"
)

// InvariantError is the panic value raised when the ledger is found in a
// state the engine must never produce.
type InvariantError struct {
	Invariant string
	Detail    string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("allocation invariant %q violated: %s", e.Invariant, e.Detail)
}
