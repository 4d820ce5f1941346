// Package history implements the per-channel "last error" ring that legacy
// clients depend on: getlasterror / getpreverror / reseterror, per
// spec.md §4.2. Each channel gets a bounded ring of capacity 10 whose
// entries are either a recorded result document or the nil "pending"
// sentinel for a command still in flight.
package history

import (
	"github.com/spf13/cast"

	"github.com/autom8ter/nanomongo/document"
	nanoerrors "github.com/autom8ter/nanomongo/errors"
	"github.com/autom8ter/nanomongo/internal/safe"
)

// Capacity is the maximum number of entries retained per channel.
const Capacity = 10

// Store tracks one bounded error-history ring per channel.
type Store struct {
	rings *safe.Map[*safe.Ring[document.Doc]]
}

// NewStore constructs an empty history store.
func NewStore() *Store {
	return &Store{rings: safe.NewMap[*safe.Ring[document.Doc]](nil)}
}

// ringFor returns the channel's ring, creating it lazily on first use.
func (s *Store) ringFor(channel string) *safe.Ring[document.Doc] {
	return s.rings.GetOrCreate(channel, func() *safe.Ring[document.Doc] {
		return safe.NewRing[document.Doc](Capacity)
	})
}

// Begin appends the pending sentinel for channel ahead of dispatching any
// command other than getlasterror/getpreverror/reseterror.
func (s *Store) Begin(channel string) {
	s.ringFor(channel).Push(nil)
}

// Complete replaces the most recently pushed entry with result. The slot it
// replaces must be the pending sentinel; if it is not, that is a programmer
// error in the caller, not a client-facing one.
func (s *Store) Complete(channel string, result document.Doc) error {
	previous, ok := s.ringFor(channel).SetLast(result)
	if !ok {
		return nanoerrors.Generic("history: no pending entry for channel %q", channel)
	}
	if previous != nil {
		return nanoerrors.Generic("history: slot for channel %q was not the pending sentinel", channel)
	}
	return nil
}

// GetLastError returns the last recorded entry for channel, or {err: null}
// if the channel has no history yet or its newest entry is still pending.
// It never mutates the history.
func (s *Store) GetLastError(channel string) document.Doc {
	if !s.rings.Exists(channel) {
		return nullErrDoc()
	}
	ring := s.rings.Get(channel)
	value, ok := ring.Newest()
	if !ok || value == nil {
		return nullErrDoc()
	}
	return value
}

// GetPrevError scans channel's history from newest to oldest, excluding
// only the single oldest entry, and returns the first entry carrying a
// non-null err or a non-zero n, tagged with nPrev = its 1-based distance
// from the top (distance 1 is the newest entry). If none is found, it
// returns {nPrev: -1}.
func (s *Store) GetPrevError(channel string) document.Doc {
	if !s.rings.Exists(channel) {
		return document.New("nPrev", -1)
	}
	ring := s.rings.Get(channel)
	value, distance, found := ring.ScanFromNewest(func(_ int, value document.Doc) bool {
		return isErrorOrNonZeroCount(value)
	})
	if !found {
		return document.New("nPrev", -1)
	}
	return value.Clone().Set("nPrev", distance)
}

// ResetError truncates channel's history.
func (s *Store) ResetError(channel string) {
	if !s.rings.Exists(channel) {
		return
	}
	s.rings.Get(channel).Clear()
}

// Close removes channel's history entirely, per a channel close removing
// only the error history (the owning database is untouched).
func (s *Store) Close(channel string) {
	s.rings.Del(channel)
}

func isErrorOrNonZeroCount(value document.Doc) bool {
	if value == nil {
		return false
	}
	if errVal, ok := value.Get("err"); ok && errVal != nil {
		return true
	}
	if n, ok := value.Get("n"); ok && cast.ToFloat64(n) != 0 {
		return true
	}
	return false
}

func nullErrDoc() document.Doc {
	return document.New("err", nil, "ok", 1)
}
