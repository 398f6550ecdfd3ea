// Package position implements the 20-digit sort keys used to order
// sibling tasks. Two disjoint encodings share one string representation:
// pending tasks encode a manual index, completed tasks encode completion
// recency. Because every value is a fixed-width, zero-padded decimal
// string, lexicographic comparison agrees with numeric comparison, and
// every pending value sorts before every completed value.
//
// The encoding is a wire-compatibility requirement with the remote task
// service, which produces the same strings, so locally recomputed and
// remotely returned positions stay comparable.
package position

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Width is the fixed length of every encoded position.
const Width = 20

// upperBound is the largest value the completed encoding can produce.
// It is a 19-digit constant, so every completed value fits in 20 digits
// and sorts after any pending value derived from a 32-bit index.
const upperBound uint64 = 1e19 - 1

// maxPendingValue is the classification boundary: values at or below it
// decode as pending positions, values above it as completed positions.
const maxPendingValue uint64 = 1<<31 - 1

// Position is a 20-digit sort key produced by one of the two codecs.
// The concrete type is either Pending or Completed.
type Position interface {
	// Value returns the 20-digit zero-padded string form.
	Value() string

	isPosition()
}

// Pending is the position of a not-yet-completed task: its zero-based
// manual index within the sibling group, zero-padded to 20 digits.
type Pending struct {
	value string
}

// Completed is the position of a completed task. It encodes the
// completion time so that more recently completed tasks sort first when
// positions are compared ascending.
type Completed struct {
	value string
}

func (p Pending) isPosition()   {}
func (c Completed) isPosition() {}

// Value returns the 20-digit string form.
func (p Pending) Value() string { return p.value }

// Value returns the 20-digit string form.
func (c Completed) Value() string { return c.value }

func (p Pending) String() string   { return p.value }
func (c Completed) String() string { return c.value }

// FromIndex encodes a zero-based sibling index as a pending position.
// Smaller index means smaller string means sorts earlier.
// A negative index is a programmer error and panics.
func FromIndex(i int) Pending {
	if i < 0 {
		panic(fmt.Sprintf("position: negative index %d", i))
	}
	return Pending{value: pad(uint64(i))}
}

// FromCompletionDate encodes a completion timestamp as a completed
// position. The timestamp is truncated to whole seconds first, matching
// the remote service's own truncation, so positions derived from
// timestamps differing only in sub-second precision compare equal.
// Later completion times yield smaller values, so the most recently
// completed task sorts first.
func FromCompletionDate(t time.Time) Completed {
	millis := t.Truncate(time.Second).UnixMilli()
	if millis < 0 {
		millis = 0
	}
	return Completed{value: pad(upperBound - uint64(millis))}
}

// Index returns the sibling index this pending position encodes.
func (p Pending) Index() int {
	n, _ := strconv.ParseUint(p.value, 10, 64)
	return int(n)
}

// CompletionDate returns the (second-truncated) completion time this
// completed position encodes, in UTC.
func (c Completed) CompletionDate() time.Time {
	n, _ := strconv.ParseUint(c.value, 10, 64)
	return time.UnixMilli(int64(upperBound - n)).UTC()
}

// InvalidPositionError reports a string that is not a valid encoded
// position.
type InvalidPositionError struct {
	Value  string
	Reason string
}

func (e *InvalidPositionError) Error() string {
	return fmt.Sprintf("invalid position %q: %s", e.Value, e.Reason)
}

// WrongKindError reports a position accessed through the wrong codec.
type WrongKindError struct {
	Want string
	Got  Position
}

func (e *WrongKindError) Error() string {
	return fmt.Sprintf("position %q is not a %s position", e.Got.Value(), e.Want)
}

// FromString decodes a previously produced position value. It returns an
// *InvalidPositionError unless s is exactly 20 ASCII digits within the
// codec's value range.
func FromString(s string) (Position, error) {
	if len(s) != Width {
		return nil, &InvalidPositionError{Value: s, Reason: fmt.Sprintf("length %d, want %d", len(s), Width)}
	}
	for i := 0; i < len(s); i++ {
		if s[i] < '0' || s[i] > '9' {
			return nil, &InvalidPositionError{Value: s, Reason: fmt.Sprintf("non-digit byte %q at offset %d", s[i], i)}
		}
	}
	n, err := strconv.ParseUint(s, 10, 64)
	if err != nil || n > upperBound {
		return nil, &InvalidPositionError{Value: s, Reason: "exceeds encodable range"}
	}
	if n > maxPendingValue {
		return Completed{value: s}, nil
	}
	return Pending{value: s}, nil
}

// AsPending asserts that p was built by the pending codec. Using a
// completed value where a pending one is required is a programmer error
// and is reported as a *WrongKindError rather than silently producing a
// wrong ordering.
func AsPending(p Position) (Pending, error) {
	v, ok := p.(Pending)
	if !ok {
		return Pending{}, &WrongKindError{Want: "pending", Got: p}
	}
	return v, nil
}

// AsCompleted asserts that p was built by the completed codec.
func AsCompleted(p Position) (Completed, error) {
	v, ok := p.(Completed)
	if !ok {
		return Completed{}, &WrongKindError{Want: "completed", Got: p}
	}
	return v, nil
}

// Compare orders two positions. Any pending position compares below any
// completed position; within one encoding the underlying index or
// recency order applies.
func Compare(a, b Position) int {
	return strings.Compare(a.Value(), b.Value())
}

func pad(n uint64) string {
	return fmt.Sprintf("%0*d", Width, n)
}
