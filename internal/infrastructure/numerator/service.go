// Package numerator implements document numbering on top of an atomic counter store.
package numerator

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"merchledger/internal/core/apperror"
	corenumerator "merchledger/internal/core/numerator"
)

// Service formats document numbers from counters kept in a CounterStore.
//
// The store is expected to run its increment outside the caller's business
// transaction, so a number issued to an aborted operation is never handed out again.
type Service struct {
	store corenumerator.CounterStore
	now   func() time.Time
}

var _ corenumerator.Generator = (*Service)(nil)

// New creates a numbering service over store.
func New(store corenumerator.CounterStore) *Service {
	return &Service{store: store, now: time.Now}
}

// WithClock overrides the clock used to pick the counter year.
func (s *Service) WithClock(now func() time.Time) *Service {
	s.now = now
	return s
}

// Next implements corenumerator.Generator.
func (s *Service) Next(ctx context.Context, prefix string, opts corenumerator.Options) (string, error) {
	if s == nil {
		return "", fmt.Errorf("numerator service is not initialized")
	}
	if err := validate(prefix, opts); err != nil {
		return "", err
	}

	counter := s.counter(prefix, opts)
	seq, err := s.store.Increment(ctx, counter)
	if err != nil {
		return "", fmt.Errorf("next %s: %w", counter.Key, err)
	}

	return Format(counter, opts, seq), nil
}

// SyncTo implements corenumerator.Generator.
func (s *Service) SyncTo(ctx context.Context, prefix string, opts corenumerator.Options, minimumSeq int64) (int64, error) {
	if err := validate(prefix, opts); err != nil {
		return 0, err
	}
	if minimumSeq < 0 {
		return 0, apperror.NewValidation("minimum sequence must not be negative").
			WithDetail("minimumSeq", minimumSeq)
	}

	counter := s.counter(prefix, opts)
	seq, err := s.store.RaiseTo(ctx, counter, minimumSeq)
	if err != nil {
		return 0, fmt.Errorf("sync %s: %w", counter.Key, err)
	}
	return seq, nil
}

// counter builds the counter identity: prefix[sep]year, or prefix alone.
func (s *Service) counter(prefix string, opts corenumerator.Options) corenumerator.Counter {
	if !opts.WithYear {
		return corenumerator.Counter{Key: prefix, Prefix: prefix}
	}
	year := s.now().Year()
	return corenumerator.Counter{
		Key:    prefix + opts.Separator + strconv.Itoa(year),
		Prefix: prefix,
		Year:   &year,
	}
}

// Format renders prefix[sep][year[sep]]seq with seq zero-padded to PadWidth.
func Format(c corenumerator.Counter, opts corenumerator.Options, seq int64) string {
	var b strings.Builder
	b.WriteString(c.Prefix)
	b.WriteString(opts.Separator)
	if c.Year != nil {
		b.WriteString(strconv.Itoa(*c.Year))
		b.WriteString(opts.Separator)
	}
	fmt.Fprintf(&b, "%0*d", opts.PadWidth, seq)
	return b.String()
}

// ParseSeq extracts the trailing sequence from a formatted number.
// Returns -1 if parsing fails.
func ParseSeq(formatted string, opts corenumerator.Options) int64 {
	tail := formatted
	if opts.Separator != "" {
		if i := strings.LastIndex(formatted, opts.Separator); i >= 0 {
			tail = formatted[i+len(opts.Separator):]
		}
	} else {
		i := len(formatted)
		for i > 0 && formatted[i-1] >= '0' && formatted[i-1] <= '9' {
			i--
		}
		tail = formatted[i:]
	}

	n, err := strconv.ParseInt(tail, 10, 64)
	if err != nil {
		return -1
	}
	return n
}

func validate(prefix string, opts corenumerator.Options) error {
	if prefix == "" {
		return apperror.NewValidation("sequence prefix is required")
	}
	if opts.PadWidth < 0 {
		return apperror.NewValidation("pad width must not be negative").
			WithDetail("padWidth", opts.PadWidth)
	}
	return nil
}
