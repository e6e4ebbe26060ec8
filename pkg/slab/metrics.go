package slab

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	resizesTotal = promauto.NewCounter(prometheus.CounterOpts{
		Name: "slab_list_resizes_total",
		Help: "Total number of slab list arena doublings.",
	})
	operationFailures = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "slab_list_operation_failures_total",
		Help: "Total number of failed slab list operations.",
	}, []string{
		"operation", // insert | erase | set | clear | destroy.
		"reason",    // See failureReason.
	})
)

// failureReason maps an operation error to a low cardinality metric label.
func failureReason(err error) string {
	switch {
	case errors.Is(err, ErrCorrupted):
		return "corrupted"
	case errors.Is(err, ErrAllocation):
		return "allocation"
	case errors.Is(err, ErrInvalidPosition):
		return "position"
	case errors.Is(err, ErrElementSize), errors.Is(err, ErrNilArgument):
		return "argument"
	case errors.Is(err, ErrUninitialized), errors.Is(err, ErrDestroyed), errors.Is(err, ErrNilList):
		return "state"
	default:
		return "other"
	}
}
