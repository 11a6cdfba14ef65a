package solver

// Adjacent reports whether two cells share an edge. Diagonals do not count.
func (o *Optimizer) Adjacent(a, b int) bool {
	r1, c1 := a/o.cols, a%o.cols
	r2, c2 := b/o.cols, b%o.cols
	return abs(r1-r2)+abs(c1-c2) == 1
}

// Fits reports whether s may sit at idx given its front/wall needs.
// An empty seat fits anywhere.
func (o *Optimizer) Fits(s *Student, idx int) bool {
	if s == nil {
		return true
	}
	r, c := idx/o.cols, idx%o.cols
	if s.NeedsFront && r != 0 {
		return false
	}
	if s.NeedsWall && c != 0 && c != o.cols-1 {
		return false
	}
	return true
}

func (o *Optimizer) HardConflicts(grid Grid) int {
	pos := positions(grid)
	n := 0
	for _, c := range o.constraints {
		i1, ok1 := pos[c.Student1]
		i2, ok2 := pos[c.Student2]
		if !ok1 || !ok2 {
			continue
		}
		if o.Adjacent(i1, i2) != c.wantsAdjacent() {
			n++
		}
	}
	return n
}

// Score is the penalty of grid under history; lower is better.
func (o *Optimizer) Score(grid Grid, history History) int {
	p := o.params
	sc := o.HardConflicts(grid) * p.HardPenalty

	for i, s := range grid {
		if s == nil {
			continue
		}
		r, c := i/o.cols, i%o.cols
		sc += r * p.RowPenalty

		if o.occupiedNeighbors(grid, i) == 0 {
			sc += p.IsolationPenalty
		}

		if c < o.cols-1 && o.occupied(grid, i+1) && history.Has(s.ID, grid[i+1].ID) {
			sc += p.HistoryPenalty
		}
	}
	return sc
}

func (o *Optimizer) occupied(grid Grid, idx int) bool {
	return idx >= 0 && idx < len(grid) && o.seatMap[idx] && grid[idx] != nil
}

func (o *Optimizer) occupiedNeighbors(grid Grid, i int) int {
	r, c := i/o.cols, i%o.cols
	n := 0
	if c < o.cols-1 && o.occupied(grid, i+1) {
		n++
	}
	if c > 0 && o.occupied(grid, i-1) {
		n++
	}
	if r < o.rows-1 && o.occupied(grid, i+o.cols) {
		n++
	}
	if r > 0 && o.occupied(grid, i-o.cols) {
		n++
	}
	return n
}

// positions maps each seated student id to its first cell.
func positions(grid Grid) map[string]int {
	pos := make(map[string]int, len(grid))
	for i, s := range grid {
		if s == nil {
			continue
		}
		if _, ok := pos[s.ID]; !ok {
			pos[s.ID] = i
		}
	}
	return pos
}

func abs(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
