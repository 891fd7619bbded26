package table

import (
	"iter"
	"math"
	"slices"

	"github.com/tuannm99/novats/internal/record"
)

// Direction selects which side of a bound Resolve searches for.
type Direction uint8

const (
	// Left finds the first line whose stamp is >= bound (range start).
	Left Direction = iota
	// Right finds the last line whose stamp is <= bound (range end).
	Right
)

// End is an open upper index for Slice.
const End = math.MaxInt

// Resolve locates a line by binary search over the index log. A nil bound
// is unbounded: line 0 for Left, the last line for Right. ok is false when
// the table is empty or no line lies on the requested side of bound.
// Stamps are assumed non-decreasing by line.
func (t *Table) Resolve(bound *float64, dir Direction) (line int, ok bool, err error) {
	n := t.index.Count()
	if n == 0 {
		return 0, false, nil
	}
	if bound == nil {
		if dir == Left {
			return 0, true, nil
		}
		return n - 1, true, nil
	}
	b := *bound
	if math.IsNaN(b) {
		return 0, false, nil
	}

	first, err := t.index.Stamp(0)
	if err != nil {
		return 0, false, err
	}
	last, err := t.index.Stamp(n - 1)
	if err != nil {
		return 0, false, err
	}

	switch dir {
	case Left:
		if b <= first {
			return 0, true, nil
		}
		if b > last {
			return 0, false, nil
		}
	case Right:
		if b >= last {
			return n - 1, true, nil
		}
		if b < first {
			return 0, false, nil
		}
	}

	// Left: smallest i with stamp(i) >= b.
	// Right: smallest i with stamp(i) > b, minus one.
	lo, hi := 0, n-1
	for lo < hi {
		mid := int(uint(lo+hi) >> 1)
		st, err := t.index.Stamp(mid)
		if err != nil {
			return 0, false, err
		}
		if st < b || (dir == Right && st == b) {
			lo = mid + 1
		} else {
			hi = mid
		}
	}
	if dir == Right {
		return lo - 1, true, nil
	}
	return lo, true, nil
}

// Cursor is a lazy view over the records of a table between two timestamps.
// Building one is free; the line range is resolved on first use and cached.
type Cursor struct {
	t          *Table
	start, end *float64
	eq         map[string]any

	resolved bool
	lines    lineRange
}

type lineRange struct {
	start, end int
	ok         bool
}

// Resolve returns the inclusive line range of the cursor. ok is false when
// the range holds no lines.
func (c *Cursor) Resolve() (start, end int, ok bool, err error) {
	if c.resolved {
		return c.lines.start, c.lines.end, c.lines.ok, nil
	}
	s, sok, err := c.t.Resolve(c.start, Left)
	if err != nil {
		return 0, 0, false, err
	}
	e, eok, err := c.t.Resolve(c.end, Right)
	if err != nil {
		return 0, 0, false, err
	}
	c.lines = lineRange{start: s, end: e, ok: sok && eok && s <= e}
	c.resolved = true
	return c.lines.start, c.lines.end, c.lines.ok, nil
}

// Filtered reports whether an equality filter is applied.
func (c *Cursor) Filtered() bool { return c.eq != nil }

// All yields matching records in line order. The sequence can be ranged
// over more than once.
func (c *Cursor) All() iter.Seq2[record.Record, error] { return c.scan(false) }

// Backward yields matching records from the last line to the first.
func (c *Cursor) Backward() iter.Seq2[record.Record, error] { return c.scan(true) }

func (c *Cursor) scan(reverse bool) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		lo, hi, ok, err := c.Resolve()
		if err != nil {
			yield(nil, err)
			return
		}
		if !ok {
			return
		}
		i, step := lo, 1
		if reverse {
			i, step = hi, -1
		}
		for ; i >= lo && i <= hi; i += step {
			r, err := c.t.Read(i)
			if err != nil {
				yield(nil, err)
				return
			}
			c.t.scanned.Inc()
			if c.eq != nil && !r.Matches(c.eq) {
				continue
			}
			if !yield(r, nil) {
				return
			}
		}
	}
}

// Count returns the number of matching records: line arithmetic without a
// filter, a full scan with one.
func (c *Cursor) Count() (int, error) {
	if c.eq == nil {
		lo, hi, ok, err := c.Resolve()
		if err != nil || !ok {
			return 0, err
		}
		return hi - lo + 1, nil
	}
	n := 0
	for _, err := range c.All() {
		if err != nil {
			return 0, err
		}
		n++
	}
	return n, nil
}

// First returns the first matching record.
func (c *Cursor) First() (record.Record, bool, error) { return nth(c.All(), 0) }

// Last returns the last matching record.
func (c *Cursor) Last() (record.Record, bool, error) { return nth(c.Backward(), 0) }

// At returns the i-th record of the range; negative i counts from the end.
// With a filter, i counts matches and negative i scans backwards.
func (c *Cursor) At(i int) (record.Record, bool, error) {
	if c.eq != nil {
		if i >= 0 {
			return nth(c.All(), i)
		}
		return nth(c.Backward(), -i-1)
	}

	lo, hi, ok, err := c.Resolve()
	if err != nil || !ok {
		return nil, false, err
	}
	line := lo + i
	if i < 0 {
		line = hi + 1 + i
	}
	if line < lo || line > hi {
		return nil, false, nil
	}
	r, err := c.t.Read(line)
	if err != nil {
		return nil, false, err
	}
	c.t.scanned.Inc()
	return r, true, nil
}

// Slice yields records [lo, hi) of the range. Negative indices count from
// the end and both ends are clamped; pass End for an open upper bound.
//
// With a filter the number of matches is unknown until a full scan. A
// negative lo then yields the last -lo matches (found by scanning
// backwards) and a non-negative hi is ignored; a negative hi alone holds
// back the last -hi matches of a forward scan.
func (c *Cursor) Slice(lo, hi int) iter.Seq2[record.Record, error] {
	if c.eq != nil {
		return c.sliceFiltered(lo, hi)
	}
	return func(yield func(record.Record, error) bool) {
		n, err := c.Count()
		if err != nil {
			yield(nil, err)
			return
		}
		lo, hi := clampIndex(lo, n), clampIndex(hi, n)
		if lo >= hi {
			return
		}
		start, _, _, _ := c.Resolve()
		for line := start + lo; line < start+hi; line++ {
			r, err := c.t.Read(line)
			if err != nil {
				yield(nil, err)
				return
			}
			c.t.scanned.Inc()
			if !yield(r, nil) {
				return
			}
		}
	}
}

func (c *Cursor) sliceFiltered(lo, hi int) iter.Seq2[record.Record, error] {
	return func(yield func(record.Record, error) bool) {
		if lo < 0 {
			tail := make([]record.Record, 0, -lo)
			for r, err := range c.Backward() {
				if err != nil {
					yield(nil, err)
					return
				}
				tail = append(tail, r)
				if len(tail) == -lo {
					break
				}
			}
			slices.Reverse(tail)
			if hi < 0 {
				tail = tail[:max(0, len(tail)+hi)]
			}
			for _, r := range tail {
				if !yield(r, nil) {
					return
				}
			}
			return
		}

		// hold back the last -hi matches when hi is negative
		lag := 0
		if hi < 0 {
			lag = -hi
		}
		var pending []record.Record
		skip, taken := lo, 0
		for r, err := range c.All() {
			if err != nil {
				yield(nil, err)
				return
			}
			if skip > 0 {
				skip--
				continue
			}
			if hi >= 0 && taken >= hi-lo {
				return
			}
			if lag == 0 {
				taken++
				if !yield(r, nil) {
					return
				}
				continue
			}
			pending = append(pending, r)
			if len(pending) > lag {
				if !yield(pending[0], nil) {
					return
				}
				pending = pending[1:]
			}
		}
	}
}

func clampIndex(i, n int) int {
	if i < 0 {
		i += n
	}
	return min(max(i, 0), n)
}

func nth(seq iter.Seq2[record.Record, error], skip int) (record.Record, bool, error) {
	for r, err := range seq {
		if err != nil {
			return nil, false, err
		}
		if skip == 0 {
			return r, true, nil
		}
		skip--
	}
	return nil, false, nil
}
