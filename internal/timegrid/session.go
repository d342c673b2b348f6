package timegrid

// DragMode describes what a drag gesture does to the cells it sweeps.
type DragMode int

const (
	// DragNone means no drag is in progress.
	DragNone DragMode = iota
	// DragSelect adds swept cells to the selection.
	DragSelect
	// DragClear removes swept cells from the selection.
	DragClear
)

// Session holds the mutable interaction state of one calendar view: the
// current selection, the cell under the pointer and the active drag gesture.
// It is owned by a single view and passed explicitly; nothing here is shared
// process-wide state.
type Session struct {
	selected map[CellID]struct{}
	hovered  *CellID
	mode     DragMode
}

// NewSession starts a session seeded with the viewer's currently owned cells.
func NewSession(owned []CellID) *Session {
	s := &Session{selected: make(map[CellID]struct{}, len(owned))}
	for _, cell := range owned {
		if cell.Valid() {
			s.selected[cell] = struct{}{}
		}
	}
	return s
}

// Hovered returns the cell under the pointer, or false when none is.
func (s *Session) Hovered() (CellID, bool) {
	if s.hovered == nil {
		return CellID{}, false
	}
	return *s.hovered, true
}

// BeginDrag starts a drag gesture on the given cell. The mode is derived from
// the cell's current membership: dragging from a selected cell clears, from an
// empty cell selects.
func (s *Session) BeginDrag(cell CellID) {
	if !cell.Valid() {
		return
	}
	if _, ok := s.selected[cell]; ok {
		s.mode = DragClear
	} else {
		s.mode = DragSelect
	}
	s.apply(cell)
}

// Hover updates the hovered cell, applying the active drag mode when a drag
// is in progress.
func (s *Session) Hover(cell CellID) {
	if !cell.Valid() {
		return
	}
	c := cell
	s.hovered = &c
	if s.mode != DragNone {
		s.apply(cell)
	}
}

// EndDrag finishes the active drag gesture.
func (s *Session) EndDrag() {
	s.mode = DragNone
}

// Toggle flips one cell's membership outside of a drag gesture.
func (s *Session) Toggle(cell CellID) {
	if !cell.Valid() {
		return
	}
	if _, ok := s.selected[cell]; ok {
		delete(s.selected, cell)
		return
	}
	s.selected[cell] = struct{}{}
}

// Selected returns the current selection as a set.
func (s *Session) Selected() map[CellID]struct{} {
	out := make(map[CellID]struct{}, len(s.selected))
	for cell := range s.selected {
		out[cell] = struct{}{}
	}
	return out
}

func (s *Session) apply(cell CellID) {
	switch s.mode {
	case DragSelect:
		s.selected[cell] = struct{}{}
	case DragClear:
		delete(s.selected, cell)
	}
}
