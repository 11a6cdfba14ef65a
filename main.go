package main

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"database/sql"
	_ "embed"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"slices"
	"strings"

	"github.com/google/uuid"
	_ "github.com/lib/pq"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"google.golang.org/api/idtoken"

	"seating/solver"
)

//go:embed schema.sql
var schema string

func main() {
	loadEnv()
	if missing := missingEnv(); len(missing) > 0 {
		log.Fatalf("%s environment variable is required", missing[0])
	}

	db, err := sql.Open("postgres", os.Getenv("PGCONN"))
	if err != nil {
		log.Fatalf("failed to open database: %v", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		log.Fatalf("failed to connect to database: %v", err)
	}
	log.Println("connected to database")

	if _, err := db.Exec(schema); err != nil {
		log.Fatalf("failed to apply schema: %v", err)
	}

	params := solverParams()

	http.HandleFunc("POST /auth/google/callback", handleGoogleCallback)
	http.HandleFunc("GET /api/me", handleMe)
	http.HandleFunc("GET /api/classes", handleListClasses(db))
	http.HandleFunc("POST /api/classes", handleCreateClass(db))
	http.HandleFunc("DELETE /api/classes/{classID}", handleDeleteClass(db))
	http.HandleFunc("GET /api/classes/{classID}/students", handleListStudents(db))
	http.HandleFunc("POST /api/classes/{classID}/students", handleCreateStudent(db))
	http.HandleFunc("POST /api/classes/{classID}/students/import", handleImportStudents(db))
	http.HandleFunc("PATCH /api/classes/{classID}/students/{studentID}", handleUpdateStudent(db))
	http.HandleFunc("DELETE /api/classes/{classID}/students/{studentID}", handleDeleteStudent(db))
	http.HandleFunc("GET /api/classes/{classID}/constraints", handleListConstraints(db))
	http.HandleFunc("POST /api/classes/{classID}/constraints", handleCreateConstraint(db))
	http.HandleFunc("DELETE /api/classes/{classID}/constraints/{constraintID}", handleDeleteConstraint(db))
	http.HandleFunc("GET /api/classes/{classID}/active", handleGetActive(db))
	http.HandleFunc("PATCH /api/classes/{classID}/active", handleUpdateActive(db))
	http.HandleFunc("POST /api/classes/{classID}/generate", handleGenerate(db, params))
	http.HandleFunc("GET /api/classes/{classID}/plans", handleListPlans(db))
	http.HandleFunc("POST /api/classes/{classID}/plans", handleSavePlan(db))
	http.HandleFunc("POST /api/classes/{classID}/plans/{planID}/load", handleLoadPlan(db))
	http.HandleFunc("DELETE /api/classes/{classID}/plans/{planID}", handleDeletePlan(db))
	http.HandleFunc("GET /api/classes/{classID}/layouts", handleListLayouts(db))
	http.HandleFunc("POST /api/classes/{classID}/layouts", handleSaveLayout(db))
	http.HandleFunc("POST /api/classes/{classID}/layouts/{layoutID}/load", handleLoadLayout(db))
	http.HandleFunc("DELETE /api/classes/{classID}/layouts/{layoutID}", handleDeleteLayout(db))
	http.Handle("GET /metrics", promhttp.Handler())
	http.HandleFunc("/healthz", func(w http.ResponseWriter, r *http.Request) {
		if err := db.Ping(); err != nil {
			http.Error(w, "db unhealthy", http.StatusServiceUnavailable)
			return
		}
		fmt.Fprintln(w, "ok")
	})

	addr := listenAddr()
	log.Printf("listening on %s", addr)
	log.Fatal(http.ListenAndServe(addr, nil))
}

func writeJSON(w http.ResponseWriter, v any) {
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(v)
}

func handleGoogleCallback(w http.ResponseWriter, r *http.Request) {
	credential := r.FormValue("credential")
	if credential == "" {
		http.Error(w, "missing credential", http.StatusBadRequest)
		return
	}

	payload, err := idtoken.Validate(context.Background(), credential, os.Getenv("CLIENT_ID"))
	if err != nil {
		log.Println("failed to validate token:", err)
		http.Error(w, "invalid token", http.StatusUnauthorized)
		return
	}

	email, _ := payload.Claims["email"].(string)
	if email == "" {
		http.Error(w, "token has no email", http.StatusUnauthorized)
		return
	}

	writeJSON(w, map[string]any{
		"email":   email,
		"name":    payload.Claims["name"],
		"picture": payload.Claims["picture"],
		"token":   signEmail(email),
	})
}

func signEmail(email string) string {
	h := hmac.New(sha256.New, []byte(os.Getenv("CLIENT_SECRET")))
	h.Write([]byte(email))
	sig := base64.RawURLEncoding.EncodeToString(h.Sum(nil))
	return base64.RawURLEncoding.EncodeToString([]byte(email)) + "." + sig
}

func authorize(r *http.Request) (string, bool) {
	token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
	parts := strings.SplitN(token, ".", 2)
	if len(parts) != 2 {
		return "", false
	}
	emailBytes, err := base64.RawURLEncoding.DecodeString(parts[0])
	if err != nil {
		return "", false
	}
	email := string(emailBytes)
	if !hmac.Equal([]byte(signEmail(email)), []byte(token)) {
		return "", false
	}
	return email, true
}

func isAdmin(email string) bool {
	return slices.ContainsFunc(strings.Split(os.Getenv("ADMINS"), ","), func(a string) bool {
		return strings.TrimSpace(a) == email
	})
}

func handleMe(w http.ResponseWriter, r *http.Request) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return
	}
	writeJSON(w, map[string]any{"email": email, "admin": isAdmin(email)})
}

// requireClass checks that the caller owns the class in the path, or is an
// admin.
func requireClass(db *sql.DB, w http.ResponseWriter, r *http.Request) (string, string, bool) {
	email, ok := authorize(r)
	if !ok {
		http.Error(w, "unauthorized", http.StatusUnauthorized)
		return "", "", false
	}
	classID := r.PathValue("classID")
	var owner string
	err := db.QueryRow("SELECT owner FROM classes WHERE id = $1", classID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) {
		http.Error(w, "class not found", http.StatusNotFound)
		return "", "", false
	}
	if err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return "", "", false
	}
	if owner != email && !isAdmin(email) {
		http.Error(w, "forbidden", http.StatusForbidden)
		return "", "", false
	}
	return email, classID, true
}

func handleListClasses(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := authorize(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		rows, err := db.Query(`
			SELECT c.id, c.name, c.owner, COUNT(s.id)
			FROM classes c
			LEFT JOIN students s ON s.class_id = c.id
			WHERE c.owner = $1 OR $2
			GROUP BY c.id, c.name, c.owner
			ORDER BY c.name`, email, isAdmin(email))
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		defer rows.Close()

		type class struct {
			ID       string `json:"id"`
			Name     string `json:"name"`
			Owner    string `json:"owner"`
			Students int    `json:"students"`
		}
		classes := []class{}
		for rows.Next() {
			var c class
			if err := rows.Scan(&c.ID, &c.Name, &c.Owner, &c.Students); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			classes = append(classes, c)
		}
		writeJSON(w, classes)
	}
}

func handleCreateClass(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		email, ok := authorize(r)
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var body struct {
			Name string `json:"name"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil || strings.TrimSpace(body.Name) == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		id := uuid.NewString()
		name := strings.TrimSpace(body.Name)
		if _, err := db.Exec("INSERT INTO classes (id, name, owner) VALUES ($1, $2, $3)", id, name, email); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, map[string]any{"id": id, "name": name, "owner": email})
	}
}

func handleDeleteClass(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		if _, err := db.Exec("DELETE FROM classes WHERE id = $1", classID); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListStudents(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		students, err := loadStudents(db, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, students)
	}
}

func insertStudent(db *sql.DB, classID string, s *solver.Student) error {
	s.ID = uuid.NewString()
	_, err := db.Exec("INSERT INTO students (id, class_id, name, needs_front, needs_wall) VALUES ($1, $2, $3, $4, $5)",
		s.ID, classID, s.Name, s.NeedsFront, s.NeedsWall)
	return err
}

func handleCreateStudent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		var s solver.Student
		if err := json.NewDecoder(r.Body).Decode(&s); err != nil || strings.TrimSpace(s.Name) == "" {
			http.Error(w, "name is required", http.StatusBadRequest)
			return
		}
		s.Name = strings.TrimSpace(s.Name)
		if err := insertStudent(db, classID, &s); err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, s)
	}
}

// parseNames splits pasted roster text on newlines and commas.
func parseNames(text string) []string {
	fields := strings.FieldsFunc(text, func(r rune) bool {
		return r == '\n' || r == '\r' || r == ','
	})
	names := []string{}
	for _, f := range fields {
		if name := strings.TrimSpace(f); name != "" {
			names = append(names, name)
		}
	}
	return names
}

func handleImportStudents(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		var body struct {
			Text string `json:"text"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		names := parseNames(body.Text)
		if len(names) == 0 {
			http.Error(w, "no names found", http.StatusBadRequest)
			return
		}
		students := make([]solver.Student, 0, len(names))
		for _, name := range names {
			s := solver.Student{Name: name}
			if err := insertStudent(db, classID, &s); err != nil {
				http.Error(w, err.Error(), http.StatusInternalServerError)
				return
			}
			students = append(students, s)
		}
		log.Printf("imported %d students into class %s", len(students), classID)
		writeJSON(w, students)
	}
}

func handleUpdateStudent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		var body struct {
			Name       *string `json:"name"`
			NeedsFront *bool   `json:"needsFront"`
			NeedsWall  *bool   `json:"needsWall"`
		}
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if body.Name != nil && strings.TrimSpace(*body.Name) == "" {
			http.Error(w, "name must not be empty", http.StatusBadRequest)
			return
		}
		var name *string
		if body.Name != nil {
			trimmed := strings.TrimSpace(*body.Name)
			name = &trimmed
		}
		result, err := db.Exec(`
			UPDATE students SET
				name = COALESCE($3, name),
				needs_front = COALESCE($4, needs_front),
				needs_wall = COALESCE($5, needs_wall)
			WHERE id = $1 AND class_id = $2`,
			r.PathValue("studentID"), classID, name, body.NeedsFront, body.NeedsWall)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "student not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleDeleteStudent(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		result, err := db.Exec("DELETE FROM students WHERE id = $1 AND class_id = $2", r.PathValue("studentID"), classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "student not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

func handleListConstraints(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		constraints, err := loadConstraints(db, classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, constraints)
	}
}

func handleCreateConstraint(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		var c solver.Constraint
		if err := json.NewDecoder(r.Body).Decode(&c); err != nil {
			http.Error(w, "invalid request body", http.StatusBadRequest)
			return
		}
		if c.Kind == "" {
			c.Kind = solver.KindAvoid
		}
		if c.Kind != solver.KindAvoid && c.Kind != solver.KindPair {
			http.Error(w, "type must be avoid or pair", http.StatusBadRequest)
			return
		}
		if c.Student1 == c.Student2 {
			http.Error(w, "students must be different", http.StatusBadRequest)
			return
		}
		id := uuid.NewString()
		err := db.QueryRow(`
			INSERT INTO seating_constraints (id, class_id, student1, student2, kind)
			SELECT $1, $2, $3, $4, $5::seating_kind
			FROM students s1
			JOIN students s2 ON s2.id = $4 AND s2.class_id = $2
			WHERE s1.id = $3 AND s1.class_id = $2
			ON CONFLICT (student1, student2) DO UPDATE SET kind = EXCLUDED.kind
			RETURNING id`, id, classID, c.Student1, c.Student2, c.Kind).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			http.Error(w, "student not found", http.StatusBadRequest)
			return
		}
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		writeJSON(w, constraintRow{ID: id, Constraint: c})
	}
}

func handleDeleteConstraint(db *sql.DB) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		_, classID, ok := requireClass(db, w, r)
		if !ok {
			return
		}
		result, err := db.Exec("DELETE FROM seating_constraints WHERE id = $1 AND class_id = $2", r.PathValue("constraintID"), classID)
		if err != nil {
			http.Error(w, err.Error(), http.StatusInternalServerError)
			return
		}
		if n, _ := result.RowsAffected(); n == 0 {
			http.Error(w, "constraint not found", http.StatusNotFound)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
