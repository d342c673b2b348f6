// Package availability folds availability records into week-grid state and
// computes minimal selection diffs.
package availability

import (
	"errors"
	"fmt"
	"time"

	"github.com/example/opsboard/internal/timegrid"
)

// ErrRecordOutsideWindow indicates a record whose timestamp does not fall in
// the aggregated week window. Filtering is the caller's responsibility; an
// out-of-window record is a contract violation, not input to be dropped.
var ErrRecordOutsideWindow = errors.New("availability: record outside week window")

// Record is the slice of an availability record the grid logic needs.
type Record struct {
	ID        string
	UserID    string
	Timestamp time.Time
}

// Heatmap counts overlapping availability records per grid cell.
type Heatmap map[timegrid.CellID]int

// Aggregate buckets records into a heatmap and collects the cells owned by the
// viewer. Every record must fall inside window. When the viewer has two
// records in one cell the later record by input order wins the owned slot;
// the heatmap still counts both.
func Aggregate(records []Record, viewerID string, loc *time.Location, window timegrid.WeekWindow) (Heatmap, map[timegrid.CellID]Record, error) {
	heatmap := make(Heatmap, len(records))
	owned := make(map[timegrid.CellID]Record)

	for _, record := range records {
		if !window.Contains(record.Timestamp) {
			return nil, nil, fmt.Errorf("%w: record %s at %s", ErrRecordOutsideWindow, record.ID, record.Timestamp.Format(time.RFC3339))
		}
		cell, err := timegrid.ToCell(record.Timestamp, loc, window.Start)
		if err != nil {
			return nil, nil, err
		}
		heatmap[cell]++
		if record.UserID == viewerID {
			owned[cell] = record
		}
	}

	return heatmap, owned, nil
}

// Total returns the number of records folded into the heatmap.
func (h Heatmap) Total() int {
	total := 0
	for _, count := range h {
		total += count
	}
	return total
}
