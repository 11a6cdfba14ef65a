package solver

import (
	"maps"
	"math/rand"
	"slices"

	"github.com/samber/lo"
)

// Input is a snapshot of everything one seating run needs. Current holds the
// occupants of the room as it is now; only its locked cells are read.
type Input struct {
	Students    []Student
	Constraints []Constraint
	SeatMap     []bool
	Plans       []Plan
	Locked      []int
	Current     Grid
	Rows        int
	Cols        int
}

type Optimizer struct {
	students    []Student
	constraints []Constraint
	seatMap     []bool
	plans       []Plan
	locked      map[int]bool
	current     Grid
	rows        int
	cols        int
	size        int

	validIndices []int
	params       Params
}

func NewOptimizer(in Input, params Params) *Optimizer {
	o := &Optimizer{
		students:    lo.UniqBy(in.Students, func(s Student) string { return s.ID }),
		constraints: in.Constraints,
		plans:       in.Plans,
		locked:      map[int]bool{},
		current:     in.Current,
		rows:        max(in.Rows, 1),
		cols:        max(in.Cols, 1),
		params:      params,
	}
	if in.Rows >= 1 && in.Cols >= 1 {
		o.size = in.Rows * in.Cols
	}

	o.seatMap = make([]bool, o.size)
	copy(o.seatMap, in.SeatMap)
	for i, seat := range o.seatMap {
		if seat {
			o.validIndices = append(o.validIndices, i)
		}
	}
	for _, idx := range in.Locked {
		if idx >= 0 && idx < o.size {
			o.locked[idx] = true
		}
	}
	return o
}

func (o *Optimizer) ValidIndices() []int {
	return slices.Clone(o.validIndices)
}

// Generate produces a seating. The run is deterministic for a given rng seed.
// Occupants of locked seats stay where they are, even when the roster is empty.
func (o *Optimizer) Generate(rng *rand.Rand) Result {
	grid := make(Grid, o.size)
	if len(o.validIndices) == 0 {
		return Result{Grid: grid, Unplaced: slices.Clone(o.students)}
	}

	history := BuildHistory(o.plans)
	taken := make([]bool, o.size)

	seated := map[string]bool{}
	for _, idx := range slices.Sorted(maps.Keys(o.locked)) {
		if !o.seatMap[idx] || idx >= len(o.current) || o.current[idx] == nil {
			continue
		}
		s := o.current[idx]
		if seated[s.ID] {
			continue
		}
		seated[s.ID] = true
		grid[idx] = s
		taken[idx] = true
	}

	pool := lo.Reject(o.students, func(s Student, _ int) bool { return seated[s.ID] })
	rng.Shuffle(len(pool), func(i, j int) {
		pool[i], pool[j] = pool[j], pool[i]
	})

	unplaced := o.placeByPriority(grid, taken, pool)
	grid, score := o.optimize(grid, history, rng)

	return Result{
		Grid:          grid,
		Score:         score,
		HardConflicts: o.HardConflicts(grid),
		Unplaced:      unplaced,
	}
}

func (o *Optimizer) placeByPriority(grid Grid, taken []bool, pool []Student) []Student {
	place := func(s *Student, want func(int) bool) bool {
		for _, idx := range o.validIndices {
			if taken[idx] || (want != nil && !want(idx)) {
				continue
			}
			grid[idx] = s
			taken[idx] = true
			return true
		}
		return false
	}
	inFront := func(idx int) bool { return idx/o.cols == 0 }
	atWall := func(idx int) bool {
		c := idx % o.cols
		return c == 0 || c == o.cols-1
	}

	front := lo.Filter(pool, func(s Student, _ int) bool { return s.NeedsFront })
	rest := lo.Reject(pool, func(s Student, _ int) bool { return s.NeedsFront })
	wall := lo.Filter(rest, func(s Student, _ int) bool { return s.NeedsWall })
	rest = lo.Reject(rest, func(s Student, _ int) bool { return s.NeedsWall })

	var unplaced []Student
	for _, phase := range []struct {
		group []Student
		want  func(int) bool
	}{
		{front, inFront},
		{wall, atWall},
		{rest, nil},
	} {
		for i := range phase.group {
			s := &phase.group[i]
			if phase.want != nil && place(s, phase.want) {
				continue
			}
			if !place(s, nil) {
				unplaced = append(unplaced, *s)
			}
		}
	}
	return unplaced
}

// optimize runs random pairwise swaps. A swap is kept when it beats the best
// score so far, or ties it and wins an AcceptProb draw. Every kept grid scores
// at most the previous best, so the working grid is always a best grid.
func (o *Optimizer) optimize(grid Grid, history History, rng *rand.Rand) (Grid, int) {
	best := o.Score(grid, history)
	n := len(o.validIndices)

	for range o.params.Iterations {
		i1 := o.validIndices[rng.Intn(n)]
		i2 := o.validIndices[rng.Intn(n)]
		if i1 == i2 || o.locked[i1] || o.locked[i2] {
			continue
		}
		s1, s2 := grid[i1], grid[i2]
		if !o.Fits(s1, i2) || !o.Fits(s2, i1) {
			continue
		}

		grid[i1], grid[i2] = s2, s1
		score := o.Score(grid, history)
		if score < best || (score == best && rng.Float64() < o.params.AcceptProb) {
			best = score
			continue
		}
		grid[i1], grid[i2] = s1, s2
	}
	return grid, best
}
