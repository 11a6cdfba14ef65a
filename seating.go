package main

import (
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"seating/room"
	"seating/solver"
)

func handleGetActive(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		rm, err := loadRoom(db, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, rm)
	}
}

type roomEdit struct {
	Rows           *int    `json:"rows"`
	Cols           *int    `json:"cols"`
	Brush          *string `json:"brush"`
	Index          *int    `json:"index"`
	ToggleLock     *int    `json:"toggleLock"`
	Swap           *[2]int `json:"swap"`
	Clear          bool    `json:"clear"`
	ClearOccupants bool    `json:"clearOccupants"`
}

// apply runs the edits in a fixed order: clear, resize, brush, lock, swap.
func (e roomEdit) apply(rm *room.Room) error {
	if e.Clear {
		rm.Clear()
	}
	if e.ClearOccupants {
		rm.ClearOccupants()
	}
	if e.Rows != nil || e.Cols != nil {
		rows, cols := rm.Rows, rm.Cols
		if e.Rows != nil {
			rows = *e.Rows
		}
		if e.Cols != nil {
			cols = *e.Cols
		}
		if err := rm.Resize(rows, cols); err != nil {
			return err
		}
	}
	if e.Brush != nil {
		if e.Index == nil {
			return fmt.Errorf("brush %q: index is required", *e.Brush)
		}
		if err := rm.ApplyBrush(*e.Index, *e.Brush); err != nil {
			return err
		}
	}
	if e.ToggleLock != nil {
		if err := rm.ToggleLock(*e.ToggleLock); err != nil {
			return err
		}
	}
	if e.Swap != nil {
		if err := rm.Swap(e.Swap[0], e.Swap[1]); err != nil {
			return err
		}
	}
	return nil
}

func handleUpdateActive(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		var edit roomEdit
		if err := json.NewDecoder(r.Body).Decode(&edit); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		rm, err := loadRoom(db, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := edit.apply(rm); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		if err := saveRoom(db, classID, rm); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, rm)
	}
}

// refreshLayout swaps each occupant for the roster's current record and
// empties seats whose student has left the class.
func refreshLayout(rm *room.Room, students []solver.Student) {
	byID := make(map[string]*solver.Student, len(students))
	for i := range students {
		byID[students[i].ID] = &students[i]
	}
	for i, s := range rm.Layout {
		if s != nil {
			rm.Layout[i] = byID[s.ID]
		}
	}
}

func generateWarnings(rm *room.Room, students []solver.Student, res solver.Result) []string {
	warnings := []string{}
	if len(students) == 0 {
		warnings = append(warnings, "no students in this class")
	}
	if msg := rm.CapacityWarning(len(students)); msg != "" {
		warnings = append(warnings, msg)
	}
	if res.HardConflicts > 0 {
		warnings = append(warnings, fmt.Sprintf("%d seating rules could not be satisfied", res.HardConflicts))
	}
	return warnings
}

func handleGenerate(db *sql.DB, params solver.Params) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		rm, err := loadRoom(db, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if rm.SeatCount() == 0 {
			http.Error(w, "the room has no seats, add seats before generating", http.StatusBadRequest)
			return
		}
		students, err := loadStudents(db, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		constraintRows, err := loadConstraints(db, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		constraints := make([]solver.Constraint, len(constraintRows))
		for i, c := range constraintRows {
			constraints[i] = c.Constraint
		}
		plans, err := loadPlans(db, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		refreshLayout(rm, students)
		start := time.Now()
		res := rm.Optimizer(students, constraints, historyPlans(plans), params).Generate(newRNG())
		elapsed := time.Since(start)
		observeGenerate(res, elapsed)
		log.Printf("class %s: seated %d/%d students, score %d, %d hard conflicts in %v",
			classID, res.Grid.Placed(), len(students), res.Score, res.HardConflicts, elapsed)

		rm.Layout = res.Grid
		if err := saveRoom(db, classID, rm); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}

		unplaced := res.Unplaced
		if unplaced == nil {
			unplaced = []solver.Student{}
		}
		writeJSON(w, map[string]any{
			"grid":           res.Grid,
			"score":          res.Score,
			"hard_conflicts": res.HardConflicts,
			"unplaced":       unplaced,
			"warnings":       generateWarnings(rm, students, res),
		})
	}
}

func defaultPlanName(now time.Time) string {
	return "Seating " + now.Format("2006-01-02")
}

func handleListPlans(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		plans, err := loadPlans(db, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, plans)
	}
}

func handleSavePlan(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil && !errors.Is(err, io.EOF) {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		rm, err := loadRoom(db, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		now := time.Now()
		p := savedPlan{
			ID:        uuid.NewString(),
			ClassID:   classID,
			Name:      strings.TrimSpace(body.Name),
			Rows:      rm.Rows,
			Cols:      rm.Cols,
			Layout:    rm.Layout,
			SeatMap:   rm.SeatMap,
			Locked:    rm.Locked,
			CreatedAt: now.UnixMilli(),
		}
		if p.Name == "" {
			p.Name = defaultPlanName(now)
		}
		layoutJSON, err := json.Marshal(p.Layout)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		_, err = db.Exec(`
			INSERT INTO plans (id, class_id, name, rows, cols, layout, seat_map, locked, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`,
			p.ID, classID, p.Name, p.Rows, p.Cols, string(layoutJSON), pq.Array(p.SeatMap), pq.Array(toInt64s(p.Locked)), now)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, p)
	}
}

func handleDeletePlan(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		result, err := db.Exec("DELETE FROM plans WHERE id = $1 AND class_id = $2", r.PathValue("planID"), classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

// handleLoadPlan makes a saved plan the active room again, occupants
// included. Students who have since left are dropped on the next generate.
func handleLoadPlan(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		p, err := loadPlan(db, classID, r.PathValue("planID"))
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "plan not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		rm, err := room.Restore(p.Rows, p.Cols, p.SeatMap, p.Layout, p.Locked)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := saveRoom(db, classID, rm); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		log.Printf("class %s: loaded plan %q", classID, p.Name)
		writeJSON(w, rm)
	}
}

type roomLayout struct {
	ID      string `json:"id"`
	Name    string `json:"name"`
	Rows    int    `json:"rows"`
	Cols    int    `json:"cols"`
	SeatMap []bool `json:"seatMap"`
	Locked  []int  `json:"locked"`
}

func handleListLayouts(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		rows, err := db.Query("SELECT id, name, rows, cols, seat_map, locked FROM room_layouts WHERE class_id = $1 ORDER BY name", classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()
		layouts := []roomLayout{}
		for rows.Next() {
			var l roomLayout
			var locked []int64
			if err := rows.Scan(&l.ID, &l.Name, &l.Rows, &l.Cols, pq.Array(&l.SeatMap), pq.Array(&locked)); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			l.Locked = toInts(locked)
			layouts = append(layouts, l)
		}
		writeJSON(w, layouts)
	}
}

func handleSaveLayout(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		rm, err := loadRoom(db, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		l := roomLayout{
			ID:      uuid.NewString(),
			Name:    strings.TrimSpace(body.Name),
			Rows:    rm.Rows,
			Cols:    rm.Cols,
			SeatMap: rm.SeatMap,
			Locked:  rm.Locked,
		}
		_, err = db.Exec("INSERT INTO room_layouts (id, class_id, name, rows, cols, seat_map, locked) VALUES ($1, $2, $3, $4, $5, $6, $7)",
			l.ID, classID, l.Name, l.Rows, l.Cols, pq.Array(l.SeatMap), pq.Array(toInt64s(l.Locked)))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, l)
	}
}

func handleLoadLayout(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		var l roomLayout
		var locked []int64
		err := db.QueryRow("SELECT rows, cols, seat_map, locked FROM room_layouts WHERE id = $1 AND class_id = $2", r.PathValue("layoutID"), classID).
			Scan(&l.Rows, &l.Cols, pq.Array(&l.SeatMap), pq.Array(&locked))
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "layout not found", http.StatusNotFound)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		rm, err := room.Restore(l.Rows, l.Cols, l.SeatMap, nil, toInts(locked))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if err := saveRoom(db, classID, rm); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, rm)
	}
}

func handleDeleteLayout(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		result, err := db.Exec("DELETE FROM room_layouts WHERE id = $1 AND class_id = $2", r.PathValue("layoutID"), classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "layout not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
