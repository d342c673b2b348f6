package timegrid

import "testing"

func TestSessionDrag(t *testing.T) {
	t.Parallel()

	t.Run("drag from an empty cell selects swept cells", func(t *testing.T) {
		t.Parallel()
		s := NewSession(nil)

		s.BeginDrag(CellID{Day: 1, Hour: 9})
		s.Hover(CellID{Day: 1, Hour: 10})
		s.Hover(CellID{Day: 1, Hour: 11})
		s.EndDrag()

		selected := s.Selected()
		if len(selected) != 3 {
			t.Fatalf("expected 3 selected cells, got %d", len(selected))
		}
		for _, cell := range []CellID{{1, 9}, {1, 10}, {1, 11}} {
			if _, ok := selected[cell]; !ok {
				t.Fatalf("cell %v missing from selection", cell)
			}
		}
	})

	t.Run("drag from a selected cell clears swept cells", func(t *testing.T) {
		t.Parallel()
		s := NewSession([]CellID{{2, 8}, {2, 9}, {2, 10}})

		s.BeginDrag(CellID{Day: 2, Hour: 8})
		s.Hover(CellID{Day: 2, Hour: 9})
		s.EndDrag()

		selected := s.Selected()
		if len(selected) != 1 {
			t.Fatalf("expected 1 remaining cell, got %d", len(selected))
		}
		if _, ok := selected[CellID{Day: 2, Hour: 10}]; !ok {
			t.Fatalf("untouched cell should remain selected")
		}
	})

	t.Run("hover without a drag only tracks the pointer", func(t *testing.T) {
		t.Parallel()
		s := NewSession(nil)

		s.Hover(CellID{Day: 3, Hour: 12})

		if hovered, ok := s.Hovered(); !ok || hovered != (CellID{Day: 3, Hour: 12}) {
			t.Fatalf("hovered = %v/%v", hovered, ok)
		}
		if len(s.Selected()) != 0 {
			t.Fatalf("hover must not change the selection")
		}
	})

	t.Run("invalid cells are ignored", func(t *testing.T) {
		t.Parallel()
		s := NewSession([]CellID{{0, 0}, {7, 0}})

		if len(s.Selected()) != 1 {
			t.Fatalf("invalid seed cell must be dropped")
		}
		s.Toggle(CellID{Day: -1, Hour: 3})
		if len(s.Selected()) != 1 {
			t.Fatalf("invalid toggle must be ignored")
		}
	})
}
