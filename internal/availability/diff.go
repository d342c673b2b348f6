package availability

import (
	"sort"

	"github.com/example/opsboard/internal/timegrid"
)

// Diff computes the minimal change set turning the viewer's owned cells into
// the requested selection. Cells present on both sides are untouched, so
// re-running Diff against an already applied selection yields two empty sets.
//
// toCreate holds the newly selected cells; the caller reconstructs their
// timestamps through the grid indexer. toDelete holds the stored records for
// deselected cells, referenced by their own ids. Both results are ordered by
// cell for deterministic batching.
func Diff(owned map[timegrid.CellID]Record, selected map[timegrid.CellID]struct{}) (toCreate []timegrid.CellID, toDelete []Record) {
	for cell := range selected {
		if _, ok := owned[cell]; !ok {
			toCreate = append(toCreate, cell)
		}
	}

	removed := make([]timegrid.CellID, 0)
	for cell := range owned {
		if _, ok := selected[cell]; !ok {
			removed = append(removed, cell)
		}
	}

	sortCells(toCreate)
	sortCells(removed)

	toDelete = make([]Record, 0, len(removed))
	for _, cell := range removed {
		toDelete = append(toDelete, owned[cell])
	}

	return toCreate, toDelete
}

func sortCells(cells []timegrid.CellID) {
	sort.Slice(cells, func(i, j int) bool {
		if cells[i].Day == cells[j].Day {
			return cells[i].Hour < cells[j].Hour
		}
		return cells[i].Day < cells[j].Day
	})
}
