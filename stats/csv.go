// Package stats writes the append-only final-statistics CSV file the
// driver produces after each query: name, status, totalMillis, HH:MM:SS,
// maxStackDepth, visitedStates.
package stats

import (
	"encoding/csv"
	"fmt"
	"os"
	"time"
)

// Row is one line of the final-statistics file.
type Row struct {
	Name          string
	Status        string
	TotalMillis   int64
	MaxStackDepth int
	VisitedStates int
}

func (r Row) record() []string {
	d := time.Duration(r.TotalMillis) * time.Millisecond
	hh := int(d.Hours())
	mm := int(d.Minutes()) % 60
	ss := int(d.Seconds()) % 60
	return []string{
		r.Name,
		r.Status,
		fmt.Sprintf("%d", r.TotalMillis),
		fmt.Sprintf("%02d:%02d:%02d", hh, mm, ss),
		fmt.Sprintf("%d", r.MaxStackDepth),
		fmt.Sprintf("%d", r.VisitedStates),
	}
}

// AppendCSV opens path for append (creating it if absent) and writes one
// record for row. A small third-party CSV layer was weighed against
// stdlib encoding/csv and rejected: every example repo this size either
// has no CSV at all or, where one exists, reaches for encoding/csv
// directly — see DESIGN.md.
func AppendCSV(path string, row Row) error {
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	w := csv.NewWriter(f)
	if err := w.Write(row.record()); err != nil {
		return err
	}
	w.Flush()
	return w.Error()
}
