package solver

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	anna    = Student{ID: "1", Name: "Anna"}
	bertil  = Student{ID: "2", Name: "Bertil", NeedsFront: true}
	cecilia = Student{ID: "3", Name: "Cecilia", NeedsWall: true}

	// 3x3 room with only the top two rows usable.
	sixSeats = []bool{
		true, true, true,
		true, true, true,
		false, false, false,
	}
)

func roster() []Student {
	return []Student{anna, bertil, cecilia}
}

func newTestOptimizer(constraints []Constraint) *Optimizer {
	return NewOptimizer(Input{
		Students:    roster(),
		Constraints: constraints,
		SeatMap:     sixSeats,
		Rows:        3,
		Cols:        3,
	}, DefaultParams)
}

func ids(g Grid) map[string]int {
	out := map[string]int{}
	for i, s := range g {
		if s != nil {
			out[s.ID] = i
		}
	}
	return out
}

func TestGenerate(t *testing.T) {
	t.Run("places everyone on real seats", func(t *testing.T) {
		// Arrange
		o := newTestOptimizer(nil)

		// Act
		res := o.Generate(rand.New(rand.NewSource(1)))

		// Assert
		require.Len(t, res.Grid, 9)
		assert.Equal(t, 3, res.Grid.Placed())
		assert.Empty(t, res.Unplaced)
		for i := 6; i < 9; i++ {
			assert.Nil(t, res.Grid[i], "void cell %d is occupied", i)
		}
		assert.Len(t, ids(res.Grid), 3)
	})

	t.Run("honors front and wall needs", func(t *testing.T) {
		for seed := range int64(20) {
			res := newTestOptimizer(nil).Generate(rand.New(rand.NewSource(seed)))
			pos := ids(res.Grid)

			assert.Less(t, pos[bertil.ID], 3, "seed %d", seed)
			col := pos[cecilia.ID] % 3
			assert.True(t, col == 0 || col == 2, "seed %d: wall student in column %d", seed, col)
			assert.Less(t, pos[anna.ID], 6, "seed %d", seed)
		}
	})

	t.Run("is deterministic for a seed", func(t *testing.T) {
		a := newTestOptimizer(nil).Generate(rand.New(rand.NewSource(7)))
		b := newTestOptimizer(nil).Generate(rand.New(rand.NewSource(7)))

		assert.Equal(t, ids(a.Grid), ids(b.Grid))
		assert.Equal(t, a.Score, b.Score)
	})

	t.Run("keeps locked occupants", func(t *testing.T) {
		// Arrange
		current := make(Grid, 9)
		locked := anna
		current[4] = &locked
		o := NewOptimizer(Input{
			Students: roster(),
			SeatMap:  sixSeats,
			Locked:   []int{4},
			Current:  current,
			Rows:     3,
			Cols:     3,
		}, DefaultParams)

		for seed := range int64(10) {
			// Act
			res := o.Generate(rand.New(rand.NewSource(seed)))

			// Assert
			require.NotNil(t, res.Grid[4])
			assert.Same(t, &locked, res.Grid[4])
			assert.Equal(t, 3, res.Grid.Placed())
			assert.Len(t, ids(res.Grid), 3)
		}
	})

	t.Run("ignores locks on voids and empty cells", func(t *testing.T) {
		current := make(Grid, 9)
		current[7] = &anna
		o := NewOptimizer(Input{
			Students: roster(),
			SeatMap:  sixSeats,
			Locked:   []int{1, 7, 42, -1},
			Current:  current,
			Rows:     3,
			Cols:     3,
		}, DefaultParams)

		res := o.Generate(rand.New(rand.NewSource(3)))

		assert.Nil(t, res.Grid[7])
		assert.Equal(t, 3, res.Grid.Placed())
	})

	t.Run("seats a locked student only once", func(t *testing.T) {
		current := make(Grid, 9)
		current[0] = &anna
		current[5] = &anna
		o := NewOptimizer(Input{
			Students: roster(),
			SeatMap:  sixSeats,
			Locked:   []int{5, 0},
			Current:  current,
			Rows:     3,
			Cols:     3,
		}, DefaultParams)

		res := o.Generate(rand.New(rand.NewSource(3)))

		assert.Equal(t, anna.ID, res.Grid[0].ID)
		assert.Len(t, ids(res.Grid), 3)
		assert.Equal(t, 3, res.Grid.Placed())
	})

	t.Run("reports students that do not fit", func(t *testing.T) {
		students := append(roster(), Student{ID: "4"}, Student{ID: "5"})
		o := NewOptimizer(Input{
			Students: students,
			SeatMap:  []bool{true, true, false, true},
			Rows:     2,
			Cols:     2,
		}, DefaultParams)

		res := o.Generate(rand.New(rand.NewSource(1)))

		assert.Equal(t, 3, res.Grid.Placed())
		assert.Len(t, res.Unplaced, 2)
		assert.Nil(t, res.Grid[2])
	})

	t.Run("empty roster", func(t *testing.T) {
		o := NewOptimizer(Input{SeatMap: sixSeats, Rows: 3, Cols: 3}, DefaultParams)

		res := o.Generate(rand.New(rand.NewSource(1)))

		assert.Len(t, res.Grid, 9)
		assert.Zero(t, res.Grid.Placed())
		assert.Zero(t, res.HardConflicts)
		assert.Empty(t, res.Unplaced)
	})

	t.Run("empty roster keeps locked occupants", func(t *testing.T) {
		current := make(Grid, 9)
		current[4] = &cecilia
		o := NewOptimizer(Input{
			SeatMap: sixSeats,
			Locked:  []int{4},
			Current: current,
			Rows:    3,
			Cols:    3,
		}, DefaultParams)

		res := o.Generate(rand.New(rand.NewSource(1)))

		assert.Same(t, &cecilia, res.Grid[4])
		assert.Equal(t, 1, res.Grid.Placed())
	})

	t.Run("no seats", func(t *testing.T) {
		o := NewOptimizer(Input{Students: roster(), SeatMap: make([]bool, 4), Rows: 2, Cols: 2}, DefaultParams)

		res := o.Generate(rand.New(rand.NewSource(1)))

		assert.Len(t, res.Grid, 4)
		assert.Zero(t, res.Grid.Placed())
		assert.Zero(t, res.HardConflicts)
		assert.Len(t, res.Unplaced, 3)
	})

	t.Run("resolves relationship constraints", func(t *testing.T) {
		students := []Student{{ID: "a"}, {ID: "b"}, {ID: "c"}, {ID: "d"}}
		seats := make([]bool, 8)
		for i := range seats {
			seats[i] = true
		}
		o := NewOptimizer(Input{
			Students: students,
			Constraints: []Constraint{
				{Student1: "a", Student2: "d", Kind: KindPair},
				{Student1: "a", Student2: "b", Kind: KindAvoid},
				{Student1: "zz", Student2: "a", Kind: KindPair},
			},
			SeatMap: seats,
			Rows:    2,
			Cols:    4,
		}, DefaultParams)

		res := o.Generate(rand.New(rand.NewSource(1)))

		assert.Zero(t, res.HardConflicts)
		assert.Equal(t, 4, res.Grid.Placed())
		assert.Less(t, res.Score, DefaultParams.HardPenalty)
	})

	t.Run("breaks up pairs from earlier plans", func(t *testing.T) {
		// Arrange
		a, b, c, d := Student{ID: "a"}, Student{ID: "b"}, Student{ID: "c"}, Student{ID: "d"}
		o := NewOptimizer(Input{
			Students: []Student{a, b, c, d},
			SeatMap:  []bool{true, true, true, true},
			Plans:    []Plan{{Rows: 1, Cols: 4, Layout: Grid{&a, &b, &c, &d}}},
			Rows:     1,
			Cols:     4,
		}, DefaultParams)
		history := BuildHistory([]Plan{{Rows: 1, Cols: 4, Layout: Grid{&a, &b, &c, &d}}})

		for seed := range int64(50) {
			// Act
			res := o.Generate(rand.New(rand.NewSource(seed)))

			// Assert
			assert.Zero(t, res.Score, "seed %d: %v", seed, ids(res.Grid))
			for i := range 3 {
				assert.False(t, history.Has(res.Grid[i].ID, res.Grid[i+1].ID), "seed %d: repeat at %d", seed, i)
			}
		}
	})

	t.Run("accepts ties only by draw", func(t *testing.T) {
		// In a full 1x2 room every arrangement scores 0, so every swap ties.
		newOpt := func(iterations int, accept float64) *Optimizer {
			p := DefaultParams
			p.Iterations = iterations
			p.AcceptProb = accept
			return NewOptimizer(Input{
				Students: []Student{anna, {ID: "4"}},
				SeatMap:  []bool{true, true},
				Rows:     1,
				Cols:     2,
			}, p)
		}
		greedy := func(seed int64) Grid {
			return newOpt(0, 0).Generate(rand.New(rand.NewSource(seed))).Grid
		}

		moved := 0
		for seed := range int64(20) {
			never := newOpt(3000, 0).Generate(rand.New(rand.NewSource(seed)))
			always := newOpt(3000, 1).Generate(rand.New(rand.NewSource(seed)))

			assert.Equal(t, ids(greedy(seed)), ids(never.Grid), "seed %d", seed)
			assert.Zero(t, always.Score)
			if ids(always.Grid)["1"] != ids(greedy(seed))["1"] {
				moved++
			}
		}
		assert.Positive(t, moved)
	})
}

func TestAdjacent(t *testing.T) {
	o := newTestOptimizer(nil)

	assert.True(t, o.Adjacent(0, 1))
	assert.True(t, o.Adjacent(0, 3))
	assert.False(t, o.Adjacent(0, 2))
	assert.False(t, o.Adjacent(0, 4))
	assert.False(t, o.Adjacent(2, 3), "row wrap is not adjacency")
	assert.False(t, o.Adjacent(4, 4))
}

func TestFits(t *testing.T) {
	o := newTestOptimizer(nil)

	assert.True(t, o.Fits(&bertil, 0))
	assert.False(t, o.Fits(&bertil, 3))

	assert.True(t, o.Fits(&cecilia, 0))
	assert.True(t, o.Fits(&cecilia, 2))
	assert.False(t, o.Fits(&cecilia, 1))

	assert.True(t, o.Fits(&anna, 4))
	assert.True(t, o.Fits(nil, 4))
}

func TestHardConflicts(t *testing.T) {
	tests := []struct {
		name     string
		kind     string
		bertilAt int
		want     int
	}{
		{"avoid but adjacent", KindAvoid, 1, 1},
		{"untyped but adjacent", "", 1, 1},
		{"avoid and apart", KindAvoid, 2, 0},
		{"pair and adjacent", KindPair, 1, 0},
		{"pair but apart", KindPair, 2, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := newTestOptimizer([]Constraint{{Student1: "1", Student2: "2", Kind: tt.kind}})
			grid := make(Grid, 9)
			grid[0] = &anna
			grid[tt.bertilAt] = &bertil

			assert.Equal(t, tt.want, o.HardConflicts(grid))
		})
	}

	t.Run("unknown students are inert", func(t *testing.T) {
		o := newTestOptimizer([]Constraint{{Student1: "1", Student2: "99", Kind: KindPair}})
		grid := make(Grid, 9)
		grid[0] = &anna

		assert.Zero(t, o.HardConflicts(grid))
	})
}

func TestScore(t *testing.T) {
	allSeats := []bool{true, true, true, true, true, true}
	o := NewOptimizer(Input{Students: roster(), SeatMap: allSeats, Rows: 2, Cols: 3}, DefaultParams)

	t.Run("isolated back row student", func(t *testing.T) {
		grid := make(Grid, 6)
		grid[3] = &anna

		assert.Equal(t, 20+500, o.Score(grid, History{}))
	})

	t.Run("neighbors in front row", func(t *testing.T) {
		grid := make(Grid, 6)
		grid[0] = &anna
		grid[1] = &cecilia

		assert.Zero(t, o.Score(grid, History{}))
	})

	t.Run("repeat pairing", func(t *testing.T) {
		grid := make(Grid, 6)
		grid[0] = &anna
		grid[1] = &cecilia
		history := BuildHistory([]Plan{{Rows: 1, Cols: 2, Layout: Grid{&cecilia, &anna}}})

		assert.Equal(t, 50, o.Score(grid, history))
		assert.Equal(t, o.Score(grid, history), o.Score(grid, history))
	})

	t.Run("vertical repeat is not penalized", func(t *testing.T) {
		grid := make(Grid, 6)
		grid[0] = &anna
		grid[3] = &cecilia
		history := BuildHistory([]Plan{{Rows: 1, Cols: 2, Layout: Grid{&cecilia, &anna}}})

		assert.Equal(t, 20, o.Score(grid, history))
	})

	t.Run("hard constraint", func(t *testing.T) {
		o := NewOptimizer(Input{
			Students:    roster(),
			Constraints: []Constraint{{Student1: "1", Student2: "3", Kind: KindAvoid}},
			SeatMap:     allSeats,
			Rows:        2,
			Cols:        3,
		}, DefaultParams)
		grid := make(Grid, 6)
		grid[0] = &anna
		grid[1] = &cecilia

		assert.Equal(t, 5000, o.Score(grid, History{}))
	})

	t.Run("neighbors across a void do not count", func(t *testing.T) {
		o := NewOptimizer(Input{
			Students: roster(),
			SeatMap:  []bool{true, false, true, true, true, true},
			Rows:     2,
			Cols:     3,
		}, DefaultParams)
		grid := make(Grid, 6)
		grid[0] = &anna

		assert.Equal(t, 500, o.Score(grid, History{}))
	})
}

func TestBuildHistory(t *testing.T) {
	a, b, c, d := &Student{ID: "a"}, &Student{ID: "b"}, &Student{ID: "c"}, &Student{ID: "d"}

	t.Run("uses each plan's own columns", func(t *testing.T) {
		h := BuildHistory([]Plan{{Rows: 2, Cols: 2, Layout: Grid{a, b, c, d}}})

		assert.True(t, h.Has("a", "b"))
		assert.True(t, h.Has("d", "c"))
		assert.False(t, h.Has("b", "c"))
		assert.False(t, h.Has("a", "c"))
	})

	t.Run("counts repeats across plans", func(t *testing.T) {
		h := BuildHistory([]Plan{
			{Rows: 1, Cols: 4, Layout: Grid{a, b, c, d}},
			{Rows: 1, Cols: 3, Layout: Grid{b, a, nil}},
			{Rows: 1, Cols: 0, Layout: Grid{a, b}},
		})

		assert.Equal(t, 2, h.Count("a", "b"))
		assert.Equal(t, 1, h.Count("c", "b"))
		assert.Equal(t, 1, h.Count("c", "d"))
	})

	t.Run("skips gaps and short layouts", func(t *testing.T) {
		h := BuildHistory([]Plan{{Rows: 1, Cols: 4, Layout: Grid{a, nil, b}}})

		assert.Empty(t, h)
	})
}
