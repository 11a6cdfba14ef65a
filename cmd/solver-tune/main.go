package main

import (
	"flag"
	"fmt"
	"math/rand"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/fatih/color"

	"seating/solver"
)

func gridKey(g solver.Grid) string {
	var buf strings.Builder
	for i, s := range g {
		if i > 0 {
			buf.WriteByte(',')
		}
		if s != nil {
			buf.WriteString(s.ID)
		}
	}
	return buf.String()
}

type runResult struct {
	score     int
	conflicts int
	unplaced  int
	key       string
	elapsed   time.Duration
}

type countEntry struct {
	value int
	count int
}

func distribution(results []runResult, value func(runResult) int) []countEntry {
	counts := map[int]int{}
	for _, r := range results {
		counts[value(r)]++
	}
	var out []countEntry
	for v, c := range counts {
		out = append(out, countEntry{v, c})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].value < out[j].value })
	return out
}

func printStats(label string, results []runResult, runs int) {
	var totalTime time.Duration
	layouts := map[string]int{}
	for _, r := range results {
		totalTime += r.elapsed
		layouts[r.key]++
	}

	fmt.Printf("--- %s ---\n", label)
	fmt.Printf("  avg time: %v\n", totalTime/time.Duration(runs))

	fmt.Printf("  score distribution:\n")
	for _, sc := range distribution(results, func(r runResult) int { return r.score }) {
		fmt.Printf("    score %d: %d/%d runs (%.0f%%)\n", sc.value, sc.count, runs, float64(sc.count)/float64(runs)*100)
	}

	fmt.Printf("  hard conflicts:\n")
	for _, hc := range distribution(results, func(r runResult) int { return r.conflicts }) {
		line := fmt.Sprintf("    %d conflicts: %d/%d runs", hc.value, hc.count, runs)
		if hc.value > 0 {
			fmt.Println(color.RedString("%s", line))
		} else {
			fmt.Println(color.GreenString("%s", line))
		}
	}

	for _, u := range distribution(results, func(r runResult) int { return r.unplaced }) {
		if u.value > 0 {
			fmt.Println(color.YellowString("  %d unplaced: %d/%d runs", u.value, u.count, runs))
		}
	}

	fmt.Printf("  unique layouts seen: %d\n", len(layouts))
	fmt.Println()
}

func main() {
	dir := flag.String("dir", "tmp", "directory with room/students/constraints/plans JSON files")
	runs := flag.Int("runs", 20, "number of runs per parameter set")
	iters := flag.String("iters", strconv.Itoa(solver.DefaultParams.Iterations), "comma-separated swap iteration counts")
	accept := flag.String("accept", strconv.FormatFloat(solver.DefaultParams.AcceptProb, 'f', -1, 64), "comma-separated tie acceptance probabilities")
	flag.Parse()

	d, err := loadDump(*dir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Room: %dx%d, Seats: %d\n", d.Room.Rows, d.Room.Cols, d.Room.SeatCount())
	fmt.Printf("Students: %d, Constraints: %d, Plans: %d, Locked: %d\n", len(d.Students), len(d.Constraints), len(d.Plans), len(d.Room.Locked))
	if w := d.Room.CapacityWarning(len(d.Students)); w != "" {
		fmt.Println(color.YellowString("%s", w))
	}
	fmt.Printf("Runs per config: %d\n\n", *runs)

	iterCounts := parseIntList(*iters)
	acceptProbs := parseFloatList(*accept)
	if *runs < 1 || len(iterCounts) == 0 || len(acceptProbs) == 0 {
		fmt.Fprintln(os.Stderr, "need -runs >= 1 and at least one -iters and -accept value")
		os.Exit(1)
	}

	for _, ni := range iterCounts {
		for _, ap := range acceptProbs {
			params := solver.DefaultParams
			params.Iterations = ni
			params.AcceptProb = ap
			opt := d.Room.Optimizer(d.Students, d.Constraints, d.Plans, params)

			var results []runResult
			for run := range *runs {
				rng := rand.New(rand.NewSource(int64(run * 31337)))
				start := time.Now()
				res := opt.Generate(rng)
				elapsed := time.Since(start)
				results = append(results, runResult{
					score:     res.Score,
					conflicts: res.HardConflicts,
					unplaced:  len(res.Unplaced),
					key:       gridKey(res.Grid),
					elapsed:   elapsed,
				})
			}
			printStats(fmt.Sprintf("iters=%d accept=%.3f", ni, ap), results, *runs)
		}
	}
}

func parseIntList(s string) []int {
	parts := strings.Split(s, ",")
	var result []int
	for _, p := range parts {
		v, err := strconv.Atoi(strings.TrimSpace(p))
		if err == nil && v >= 0 {
			result = append(result, v)
		}
	}
	return result
}

func parseFloatList(s string) []float64 {
	parts := strings.Split(s, ",")
	var result []float64
	for _, p := range parts {
		v, err := strconv.ParseFloat(strings.TrimSpace(p), 64)
		if err == nil && v >= 0 && v <= 1 {
			result = append(result, v)
		}
	}
	return result
}
