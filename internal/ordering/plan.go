// Package ordering keeps sibling rows (modules of a course, lessons of a
// module) numbered 1..N with no gaps or duplicates.
//
// Planning is pure: the Plan* functions take the current sibling positions and
// return the exact sequence of single-row writes to perform. Every step moves
// a row into a slot that is free at that moment, so the sequence is safe
// against a unique (parent, ordering) index. Manager executes plans inside a
// transaction.
package ordering

import (
	"errors"
	"sort"
)

// ParkingPosition is the transient slot a moved row occupies while its
// siblings shift. It is outside 1..N so it never collides.
const ParkingPosition = 0

var ErrItemNotFound = errors.New("ordering: item not in sibling set")

type Item struct {
	ID       uint `gorm:"column:id"`
	Position int  `gorm:"column:ordering"`
}

// Step is one single-row write.
type Step struct {
	ID   uint
	From int
	To   int
}

// Sorted returns a copy of items ordered by position, then id.
func Sorted(items []Item) []Item {
	out := make([]Item, len(items))
	copy(out, items)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].Position != out[j].Position {
			return out[i].Position < out[j].Position
		}
		return out[i].ID < out[j].ID
	})
	return out
}

// Dense reports whether positions are exactly 1..len(items).
func Dense(items []Item) bool {
	seen := make(map[int]bool, len(items))
	for _, it := range items {
		if it.Position < 1 || it.Position > len(items) || seen[it.Position] {
			return false
		}
		seen[it.Position] = true
	}
	return true
}

// ClampInsert bounds a desired insert position to [1, count+1].
func ClampInsert(desired, count int) int {
	return clamp(desired, 1, count+1)
}

// ClampMove bounds a desired move target to [1, count].
func ClampMove(desired, count int) int {
	return clamp(desired, 1, count)
}

func clamp(v, lo, hi int) int {
	if hi < lo {
		return lo
	}
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// PlanCompact renumbers items to 1..N keeping their relative order. Rows
// that move up (legacy positions below their rank, including zero or
// negative ones) go first, highest rank first; rows that move down follow in
// ascending order. Either way each target slot is already vacated or was
// never used.
func PlanCompact(items []Item) []Step {
	sorted := Sorted(items)
	var up, down []Step
	for i, it := range sorted {
		switch target := i + 1; {
		case it.Position < target:
			up = append(up, Step{ID: it.ID, From: it.Position, To: target})
		case it.Position > target:
			down = append(down, Step{ID: it.ID, From: it.Position, To: target})
		}
	}
	steps := make([]Step, 0, len(up)+len(down))
	for i := len(up) - 1; i >= 0; i-- {
		steps = append(steps, up[i])
	}
	return append(steps, down...)
}

// PlanInsert returns the clamped position for a new row and the shifts that
// open its slot. Siblings at or after the position move up by one, highest
// first. items must be dense.
func PlanInsert(items []Item, desired int) (int, []Step) {
	pos := ClampInsert(desired, len(items))
	sorted := Sorted(items)
	var steps []Step
	for i := len(sorted) - 1; i >= 0; i-- {
		it := sorted[i]
		if it.Position < pos {
			break
		}
		steps = append(steps, Step{ID: it.ID, From: it.Position, To: it.Position + 1})
	}
	return pos, steps
}

// PlanAppend is PlanInsert at the end of the set.
func PlanAppend(items []Item) int {
	return len(items) + 1
}

// PlanMove returns the steps that move id to desired (clamped to [1, N]).
// The moved row is parked first, the interval between the old and the new
// position shifts by one, then the row lands on its target. items must be
// dense. No steps are returned when the row is already in place.
func PlanMove(items []Item, id uint, desired int) (from, to int, steps []Step, err error) {
	sorted := Sorted(items)
	from = -1
	for _, it := range sorted {
		if it.ID == id {
			from = it.Position
			break
		}
	}
	if from < 0 {
		return 0, 0, nil, ErrItemNotFound
	}
	to = ClampMove(desired, len(sorted))
	if to == from {
		return from, to, nil, nil
	}

	steps = append(steps, Step{ID: id, From: from, To: ParkingPosition})
	if to < from {
		// [to, from) moves up, highest first
		for i := len(sorted) - 1; i >= 0; i-- {
			it := sorted[i]
			if it.ID != id && it.Position >= to && it.Position < from {
				steps = append(steps, Step{ID: it.ID, From: it.Position, To: it.Position + 1})
			}
		}
	} else {
		// (from, to] moves down, lowest first
		for _, it := range sorted {
			if it.ID != id && it.Position > from && it.Position <= to {
				steps = append(steps, Step{ID: it.ID, From: it.Position, To: it.Position - 1})
			}
		}
	}
	steps = append(steps, Step{ID: id, From: ParkingPosition, To: to})
	return from, to, steps, nil
}

// PlanRemove returns the steps that close the gap left by id once its row has
// been deleted. items must include id and be dense.
func PlanRemove(items []Item, id uint) ([]Step, error) {
	sorted := Sorted(items)
	pos := -1
	for _, it := range sorted {
		if it.ID == id {
			pos = it.Position
			break
		}
	}
	if pos < 0 {
		return nil, ErrItemNotFound
	}
	var steps []Step
	for _, it := range sorted {
		if it.Position > pos {
			steps = append(steps, Step{ID: it.ID, From: it.Position, To: it.Position - 1})
		}
	}
	return steps, nil
}

// Apply runs steps against items in memory and returns the result. It fails
// if a step would place a row on an occupied slot (other than the parking
// slot), which is what a unique index would reject.
func Apply(items []Item, steps []Step) ([]Item, error) {
	byID := make(map[uint]int, len(items))
	occupied := make(map[int]uint, len(items))
	for _, it := range items {
		byID[it.ID] = it.Position
		occupied[it.Position] = it.ID
	}
	for _, s := range steps {
		cur, ok := byID[s.ID]
		if !ok {
			return nil, ErrItemNotFound
		}
		if other, taken := occupied[s.To]; taken && other != s.ID {
			return nil, &CollisionError{Step: s, Holder: other}
		}
		if occupied[cur] == s.ID {
			delete(occupied, cur)
		}
		byID[s.ID] = s.To
		occupied[s.To] = s.ID
	}
	out := make([]Item, 0, len(byID))
	for id, pos := range byID {
		out = append(out, Item{ID: id, Position: pos})
	}
	return Sorted(out), nil
}

type CollisionError struct {
	Step   Step
	Holder uint
}

func (e *CollisionError) Error() string {
	return "ordering: step would collide with an occupied slot"
}
