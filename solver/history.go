package solver

type pairKey [2]string

func newPairKey(a, b string) pairKey {
	if a > b {
		a, b = b, a
	}
	return pairKey{a, b}
}

// History counts how often two students sat side by side in earlier plans.
type History map[pairKey]int

// BuildHistory scans each plan with its own column count, so plans saved
// for differently shaped rooms are indexed correctly.
func BuildHistory(plans []Plan) History {
	h := History{}
	for _, p := range plans {
		if p.Cols <= 0 {
			continue
		}
		for i, s := range p.Layout {
			if s == nil || i%p.Cols == p.Cols-1 || i+1 >= len(p.Layout) {
				continue
			}
			if next := p.Layout[i+1]; next != nil {
				h[newPairKey(s.ID, next.ID)]++
			}
		}
	}
	return h
}

func (h History) Count(a, b string) int {
	return h[newPairKey(a, b)]
}

func (h History) Has(a, b string) bool {
	return h.Count(a, b) > 0
}
