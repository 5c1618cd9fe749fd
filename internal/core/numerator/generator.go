// Package numerator provides domain contracts for document numbering.
// Implementations live in the infrastructure layer.
package numerator

import (
	"context"
)

// Options controls how a document number is built.
type Options struct {
	// WithYear scopes the counter to the current year and prints it.
	WithYear bool
	// PadWidth is the minimum width of the zero-padded sequence.
	PadWidth int
	// Separator joins prefix, year and sequence.
	Separator string
}

// DefaultOptions returns PREFIX-YYYY-NNN numbering.
func DefaultOptions() Options {
	return Options{WithYear: true, PadWidth: 3, Separator: "-"}
}

// Counter identifies one sequence counter: a prefix, optionally scoped to a year.
type Counter struct {
	Key    string
	Prefix string
	Year   *int
}

// Generator issues document numbers.
//
// Numbers are never reused. A number handed out to an operation that later
// aborts is lost, leaving a gap.
type Generator interface {
	// Next atomically increments the counter and returns the formatted number.
	Next(ctx context.Context, prefix string, opts Options) (string, error)

	// SyncTo raises the counter to at least minimumSeq. It never lowers it.
	SyncTo(ctx context.Context, prefix string, opts Options, minimumSeq int64) (int64, error)
}

// CounterStore is the atomic storage behind a Generator.
type CounterStore interface {
	// Increment creates the counter at 1 or adds one, returning the new value.
	Increment(ctx context.Context, c Counter) (int64, error)

	// RaiseTo sets the counter to max(current, minimum), returning the stored value.
	RaiseTo(ctx context.Context, c Counter, minimum int64) (int64, error)
}
