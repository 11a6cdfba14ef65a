package room

import (
	"errors"
	"fmt"
	"slices"

	"github.com/samber/lo"

	"seating/solver"
)

var (
	ErrInvalidSize  = errors.New("rows and cols must be at least 1")
	ErrOutOfRange   = errors.New("cell out of range")
	ErrUnknownBrush = errors.New("unknown brush")
	ErrNotSeat      = errors.New("cell is not a seat")
)

const (
	BrushSingle = "single"
	BrushPair   = "pair"
	BrushGroup4 = "group4"
	BrushGroup5 = "group5"
	BrushGroup6 = "group6"
	BrushEraser = "eraser"
)

// brushes lists the (row, col) offsets each brush turns into seats.
var brushes = map[string][][2]int{
	BrushSingle: {{0, 0}},
	BrushPair:   {{0, 0}, {0, 1}},
	BrushGroup4: {{0, 0}, {0, 1}, {1, 0}, {1, 1}},
	BrushGroup5: {{0, 0}, {0, 1}, {1, 0}, {1, 1}, {0, 2}},
	BrushGroup6: {{0, 0}, {0, 1}, {0, 2}, {1, 0}, {1, 1}, {1, 2}},
	BrushEraser: {{0, 0}},
}

// Room is the editable state of a classroom: which cells are seats, who sits
// where, and which seats are locked.
type Room struct {
	Rows    int         `json:"rows"`
	Cols    int         `json:"cols"`
	SeatMap []bool      `json:"seatMap"`
	Layout  solver.Grid `json:"layout"`
	Locked  []int       `json:"locked"`
}

func New(rows, cols int) (*Room, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("new room %dx%d: %w", rows, cols, ErrInvalidSize)
	}
	return &Room{
		Rows:    rows,
		Cols:    cols,
		SeatMap: make([]bool, rows*cols),
		Layout:  make(solver.Grid, rows*cols),
		Locked:  []int{},
	}, nil
}

// Restore rebuilds a room from stored parts, such as a saved plan or a room
// template. A nil layout gives a room with no occupants.
func Restore(rows, cols int, seatMap []bool, layout solver.Grid, locked []int) (*Room, error) {
	if rows < 1 || cols < 1 {
		return nil, fmt.Errorf("restore room %dx%d: %w", rows, cols, ErrInvalidSize)
	}
	r := &Room{
		Rows:    rows,
		Cols:    cols,
		SeatMap: slices.Clone(seatMap),
		Layout:  layout.Clone(),
		Locked:  slices.Clone(locked),
	}
	r.Normalize()
	return r, nil
}

// Normalize pads or truncates SeatMap and Layout to Rows*Cols and drops
// locks that fall outside the grid. Rooms loaded from storage go through it.
func (r *Room) Normalize() {
	n := max(r.Rows, 0) * max(r.Cols, 0)
	seats := make([]bool, n)
	copy(seats, r.SeatMap)
	layout := make(solver.Grid, n)
	copy(layout, r.Layout)
	for i := range layout {
		if !seats[i] {
			layout[i] = nil
		}
	}
	r.SeatMap, r.Layout = seats, layout
	r.Locked = lo.Filter(r.Locked, func(idx int, _ int) bool { return idx >= 0 && idx < n })
	slices.Sort(r.Locked)
	r.Locked = slices.Compact(r.Locked)
}

func (r *Room) ApplyBrush(idx int, brush string) error {
	offsets, ok := brushes[brush]
	if !ok {
		return fmt.Errorf("apply %q: %w", brush, ErrUnknownBrush)
	}
	if idx < 0 || idx >= len(r.SeatMap) {
		return fmt.Errorf("apply %q at %d: %w", brush, idx, ErrOutOfRange)
	}
	row, col := idx/r.Cols, idx%r.Cols
	for _, off := range offsets {
		rr, cc := row+off[0], col+off[1]
		if rr >= r.Rows || cc >= r.Cols {
			continue
		}
		r.setSeat(rr*r.Cols+cc, brush != BrushEraser)
	}
	return nil
}

func (r *Room) setSeat(idx int, seat bool) {
	r.SeatMap[idx] = seat
	if !seat {
		r.Layout[idx] = nil
		r.Locked = slices.DeleteFunc(r.Locked, func(i int) bool { return i == idx })
	}
}

// Resize keeps whatever overlaps the new top-left block at the same row and
// column.
func (r *Room) Resize(rows, cols int) error {
	if rows < 1 || cols < 1 {
		return fmt.Errorf("resize to %dx%d: %w", rows, cols, ErrInvalidSize)
	}
	seats := make([]bool, rows*cols)
	layout := make(solver.Grid, rows*cols)
	locked := []int{}
	isLocked := lo.SliceToMap(r.Locked, func(i int) (int, bool) { return i, true })

	for rr := range min(r.Rows, rows) {
		for cc := range min(r.Cols, cols) {
			oldIdx, newIdx := rr*r.Cols+cc, rr*cols+cc
			if oldIdx >= len(r.SeatMap) {
				continue
			}
			seats[newIdx] = r.SeatMap[oldIdx]
			if oldIdx < len(r.Layout) {
				layout[newIdx] = r.Layout[oldIdx]
			}
			if isLocked[oldIdx] {
				locked = append(locked, newIdx)
			}
		}
	}
	slices.Sort(locked)
	r.Rows, r.Cols, r.SeatMap, r.Layout, r.Locked = rows, cols, seats, layout, locked
	return nil
}

func (r *Room) Clear() {
	r.SeatMap = make([]bool, r.Rows*r.Cols)
	r.Layout = make(solver.Grid, r.Rows*r.Cols)
	r.Locked = []int{}
}

// ClearOccupants empties every seat but keeps the seat map and locks.
func (r *Room) ClearOccupants() {
	r.Layout = make(solver.Grid, r.Rows*r.Cols)
}

func (r *Room) ToggleLock(idx int) error {
	if idx < 0 || idx >= r.Rows*r.Cols {
		return fmt.Errorf("lock %d: %w", idx, ErrOutOfRange)
	}
	if i, found := slices.BinarySearch(r.Locked, idx); found {
		r.Locked = slices.Delete(r.Locked, i, i+1)
	} else {
		r.Locked = slices.Insert(r.Locked, i, idx)
	}
	return nil
}

// Swap exchanges the occupants of two seats. Locks stay with the seat, not
// the student.
func (r *Room) Swap(i, j int) error {
	for _, idx := range []int{i, j} {
		if idx < 0 || idx >= len(r.SeatMap) || idx >= len(r.Layout) {
			return fmt.Errorf("swap %d and %d: %w", i, j, ErrOutOfRange)
		}
		if !r.SeatMap[idx] {
			return fmt.Errorf("swap %d and %d: cell %d: %w", i, j, idx, ErrNotSeat)
		}
	}
	r.Layout[i], r.Layout[j] = r.Layout[j], r.Layout[i]
	return nil
}

func (r *Room) SeatCount() int {
	return lo.Count(r.SeatMap, true)
}

// CapacityWarning is empty when n students fit.
func (r *Room) CapacityWarning(n int) string {
	seats := r.SeatCount()
	if n <= seats {
		return ""
	}
	return fmt.Sprintf("%d students but only %d seats; %d will not be seated", n, seats, n-seats)
}

// Optimizer configures a seating run for this room. Occupants of locked seats
// are taken from the current layout.
func (r *Room) Optimizer(students []solver.Student, constraints []solver.Constraint, plans []solver.Plan, params solver.Params) *solver.Optimizer {
	return solver.NewOptimizer(solver.Input{
		Students:    students,
		Constraints: constraints,
		SeatMap:     r.SeatMap,
		Plans:       plans,
		Locked:      r.Locked,
		Current:     r.Layout,
		Rows:        r.Rows,
		Cols:        r.Cols,
	}, params)
}
