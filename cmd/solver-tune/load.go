package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/mitchellh/mapstructure"

	"seating/room"
	"seating/solver"
)

// dump is one class exported from the service: the GET responses for the
// active room, students, constraints and plans, each in its own file.
type dump struct {
	Room        room.Room
	Students    []solver.Student
	Constraints []solver.Constraint
	Plans       []solver.Plan
}

func decodeFile(path string, out any) error {
	bytes, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	var raw any
	if err := json.Unmarshal(bytes, &raw); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	dec, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName: "json",
		Result:  out,
	})
	if err != nil {
		return err
	}
	if err := dec.Decode(raw); err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}
	return nil
}

func loadDump(dir string) (*dump, error) {
	d := &dump{}
	if err := decodeFile(filepath.Join(dir, "room"), &d.Room); err != nil {
		return nil, fmt.Errorf("reading room: %w", err)
	}
	d.Room.Normalize()
	if err := decodeFile(filepath.Join(dir, "students"), &d.Students); err != nil {
		return nil, fmt.Errorf("reading students: %w", err)
	}
	if err := decodeFile(filepath.Join(dir, "constraints"), &d.Constraints); err != nil {
		return nil, fmt.Errorf("reading constraints: %w", err)
	}
	// plans are optional; without them there is no history
	err := decodeFile(filepath.Join(dir, "plans"), &d.Plans)
	if err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("reading plans: %w", err)
	}
	return d, nil
}
