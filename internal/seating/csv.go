// Package seating renders a weekly seating plan as CSV.
package seating

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/caat/supper/internal/plan"
)

// Render writes the plan for users to w: a header of weekday names, then one
// row per user with the name in every day they are in and an empty cell on
// days they are out. Users are written in case-insensitive order.
func Render(w io.Writer, absences plan.Absences, users []string) error {
	cw := csv.NewWriter(w)

	header := make([]string, plan.Days)
	copy(header, plan.DayNames[:])
	if err := cw.Write(header); err != nil {
		return fmt.Errorf("write header: %w", err)
	}

	for _, user := range sortedUsers(users) {
		row := make([]string, plan.Days)
		for day := range row {
			if !absences.IsAbsent(day, strings.ToLower(user)) {
				row[day] = user
			}
		}
		if err := cw.Write(row); err != nil {
			return fmt.Errorf("write row for %s: %w", user, err)
		}
	}

	cw.Flush()
	return cw.Error()
}

// WriteCSV renders the plan to path atomically.
// It writes to a temp file first, then renames to the final path.
func WriteCSV(path string, absences plan.Absences, users []string) error {
	var buf bytes.Buffer
	if err := Render(&buf, absences, users); err != nil {
		return err
	}

	// Ensure directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("create directory: %w", err)
	}

	tmpPath := path + ".tmp"
	if err := os.WriteFile(tmpPath, buf.Bytes(), 0644); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("write temp file: %w", err)
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath) // Clean up temp file on error
		return fmt.Errorf("rename temp file: %w", err)
	}

	return nil
}

func sortedUsers(users []string) []string {
	sorted := make([]string, len(users))
	copy(sorted, users)
	sort.SliceStable(sorted, func(i, j int) bool {
		return strings.ToLower(sorted[i]) < strings.ToLower(sorted[j])
	})
	return sorted
}
