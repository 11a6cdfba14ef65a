package solver

type Student struct {
	ID         string `json:"id"`
	Name       string `json:"name"`
	NeedsFront bool   `json:"needsFront"`
	NeedsWall  bool   `json:"needsWall"`
}

const (
	KindAvoid = "avoid"
	KindPair  = "pair"
)

// Constraint is a relationship between two students. Any Kind other than
// KindPair, including the empty string, is treated as KindAvoid.
type Constraint struct {
	Student1 string `json:"student1"`
	Student2 string `json:"student2"`
	Kind     string `json:"type"`
}

func (c Constraint) wantsAdjacent() bool {
	return c.Kind == KindPair
}

// Grid is a row-major seating assignment; nil cells are empty.
type Grid []*Student

func (g Grid) Clone() Grid {
	out := make(Grid, len(g))
	copy(out, g)
	return out
}

func (g Grid) Placed() int {
	n := 0
	for _, s := range g {
		if s != nil {
			n++
		}
	}
	return n
}

// Plan is a previously saved seating, used only for pairing history.
type Plan struct {
	Rows   int  `json:"rows"`
	Cols   int  `json:"cols"`
	Layout Grid `json:"layout"`
}

type Params struct {
	Iterations       int
	HardPenalty      int
	IsolationPenalty int
	HistoryPenalty   int
	RowPenalty       int
	AcceptProb       float64
}

var DefaultParams = Params{
	Iterations:       3000,
	HardPenalty:      5000,
	IsolationPenalty: 500,
	HistoryPenalty:   50,
	RowPenalty:       20,
	AcceptProb:       0.05,
}

type Result struct {
	Grid          Grid      `json:"grid"`
	Score         int       `json:"score"`
	HardConflicts int       `json:"hard_conflicts"`
	Unplaced      []Student `json:"unplaced"`
}
