package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/lib/pq"
	"github.com/samber/lo"

	"seating/room"
	"seating/solver"
)

const (
	defaultRows = 10
	defaultCols = 12
)

// pq scans integer arrays into []int64 only.
func toInts(a []int64) []int {
	return lo.Map(a, func(v int64, _ int) int { return int(v) })
}

func toInt64s(a []int) []int64 {
	return lo.Map(a, func(v int, _ int) int64 { return int64(v) })
}

// loadRoom returns the class's active plan, or an empty default-sized room
// when none has been saved yet.
func loadRoom(db *sql.DB, classID string) (*room.Room, error) {
	var rows, cols int
	var layoutJSON []byte
	var seatMap []bool
	var locked []int64
	err := db.QueryRow("SELECT rows, cols, layout, seat_map, locked FROM active_plans WHERE class_id = $1", classID).
		Scan(&rows, &cols, &layoutJSON, pq.Array(&seatMap), pq.Array(&locked))
	if errors.Is(err, sql.ErrNoRows) {
		return room.New(defaultRows, defaultCols)
	}
	if err != nil {
		return nil, fmt.Errorf("load active plan: %w", err)
	}
	rm := &room.Room{Rows: rows, Cols: cols, SeatMap: seatMap, Locked: toInts(locked)}
	if err := json.Unmarshal(layoutJSON, &rm.Layout); err != nil {
		return nil, fmt.Errorf("decode active layout: %w", err)
	}
	rm.Normalize()
	return rm, nil
}

func saveRoom(db *sql.DB, classID string, rm *room.Room) error {
	layoutJSON, err := json.Marshal(rm.Layout)
	if err != nil {
		return fmt.Errorf("encode layout: %w", err)
	}
	_, err = db.Exec(`
		INSERT INTO active_plans (class_id, rows, cols, layout, seat_map, locked)
		VALUES ($1, $2, $3, $4, $5, $6)
		ON CONFLICT (class_id) DO UPDATE SET
			rows = EXCLUDED.rows, cols = EXCLUDED.cols, layout = EXCLUDED.layout,
			seat_map = EXCLUDED.seat_map, locked = EXCLUDED.locked`,
		classID, rm.Rows, rm.Cols, string(layoutJSON), pq.Array(rm.SeatMap), pq.Array(toInt64s(rm.Locked)))
	if err != nil {
		return fmt.Errorf("save active plan: %w", err)
	}
	return nil
}

func loadStudents(db *sql.DB, classID string) ([]solver.Student, error) {
	rows, err := db.Query("SELECT id, name, needs_front, needs_wall FROM students WHERE class_id = $1 ORDER BY name", classID)
	if err != nil {
		return nil, fmt.Errorf("load students: %w", err)
	}
	defer rows.Close()
	students := []solver.Student{}
	for rows.Next() {
		var s solver.Student
		if err := rows.Scan(&s.ID, &s.Name, &s.NeedsFront, &s.NeedsWall); err != nil {
			return nil, fmt.Errorf("scan student: %w", err)
		}
		students = append(students, s)
	}
	return students, rows.Err()
}

type constraintRow struct {
	ID string `json:"id"`
	solver.Constraint
}

func loadConstraints(db *sql.DB, classID string) ([]constraintRow, error) {
	rows, err := db.Query("SELECT id, student1, student2, kind::text FROM seating_constraints WHERE class_id = $1 ORDER BY id", classID)
	if err != nil {
		return nil, fmt.Errorf("load constraints: %w", err)
	}
	defer rows.Close()
	constraints := []constraintRow{}
	for rows.Next() {
		var c constraintRow
		if err := rows.Scan(&c.ID, &c.Student1, &c.Student2, &c.Kind); err != nil {
			return nil, fmt.Errorf("scan constraint: %w", err)
		}
		constraints = append(constraints, c)
	}
	return constraints, rows.Err()
}

type savedPlan struct {
	ID        string      `json:"id"`
	ClassID   string      `json:"classId"`
	Name      string      `json:"name"`
	Rows      int         `json:"rows"`
	Cols      int         `json:"cols"`
	Layout    solver.Grid `json:"layout"`
	SeatMap   []bool      `json:"seatMap"`
	Locked    []int       `json:"locked"`
	CreatedAt int64       `json:"createdAt"`
}

const planColumns = `id, class_id, name, rows, cols, layout, seat_map, locked, (extract(epoch FROM created_at) * 1000)::bigint`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanPlan(row rowScanner) (savedPlan, error) {
	var p savedPlan
	var layoutJSON []byte
	var locked []int64
	if err := row.Scan(&p.ID, &p.ClassID, &p.Name, &p.Rows, &p.Cols, &layoutJSON, pq.Array(&p.SeatMap), pq.Array(&locked), &p.CreatedAt); err != nil {
		return p, err
	}
	if err := json.Unmarshal(layoutJSON, &p.Layout); err != nil {
		return p, fmt.Errorf("decode plan %s: %w", p.ID, err)
	}
	p.Locked = toInts(locked)
	return p, nil
}

// loadPlans lists a class's saved plans, newest first.
func loadPlans(db *sql.DB, classID string) ([]savedPlan, error) {
	rows, err := db.Query("SELECT "+planColumns+" FROM plans WHERE class_id = $1 ORDER BY created_at DESC", classID)
	if err != nil {
		return nil, fmt.Errorf("load plans: %w", err)
	}
	defer rows.Close()
	plans := []savedPlan{}
	for rows.Next() {
		p, err := scanPlan(rows)
		if err != nil {
			return nil, fmt.Errorf("scan plan: %w", err)
		}
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// loadPlan returns sql.ErrNoRows, wrapped, when the plan is not in the class.
func loadPlan(db *sql.DB, classID, planID string) (savedPlan, error) {
	p, err := scanPlan(db.QueryRow("SELECT "+planColumns+" FROM plans WHERE id = $1 AND class_id = $2", planID, classID))
	if err != nil {
		return p, fmt.Errorf("load plan %s: %w", planID, err)
	}
	return p, nil
}

func historyPlans(plans []savedPlan) []solver.Plan {
	out := make([]solver.Plan, len(plans))
	for i, p := range plans {
		out[i] = solver.Plan{Rows: p.Rows, Cols: p.Cols, Layout: p.Layout}
	}
	return out
}
