package selection

import "github.com/joeblew999/plat-parcels/internal/feature"

// Engine owns the individual-mode selection set: at most MaxIndividual
// entries of one overlay type, oldest first.
type Engine struct {
	entries []Entry
	marks   *Marks
	sync    Syncer
}

// NewEngine returns an empty engine that marks features on marks and
// reports every mutation to sync.
func NewEngine(marks *Marks, sync Syncer) *Engine {
	if sync == nil {
		sync = nopSyncer{}
	}
	return &Engine{marks: marks, sync: sync}
}

// HandleClick toggles f. A new selection of a different overlay type is
// rejected with ErrOverlayMismatch; a third selection evicts the oldest.
func (e *Engine) HandleClick(f feature.Feature) error {
	if i := indexOf(e.entries, f.FeatureID); i >= 0 {
		old := e.entries[i]
		e.entries = append(e.entries[:i], e.entries[i+1:]...)
		e.marks.Set(old.ID, Unmarked)
		e.sync.SyncIndividual(e.Entries())
		return nil
	}

	if len(e.entries) > 0 && e.entries[0].OverlayType != f.OverlayType {
		return ErrOverlayMismatch
	}

	if len(e.entries) >= MaxIndividual {
		oldest := e.entries[0]
		e.entries = append(e.entries[:0:0], e.entries[1:]...)
		e.marks.Set(oldest.ID, Unmarked)
	}

	e.entries = append(e.entries, EntryFrom(f))
	e.marks.Set(f.ID, Selected)
	e.sync.SyncIndividual(e.Entries())
	return nil
}

// ClearAll empties the set and unmarks its features.
func (e *Engine) ClearAll() {
	for _, entry := range e.entries {
		e.marks.Set(entry.ID, Unmarked)
	}
	e.entries = nil
	e.sync.SyncIndividual(e.Entries())
}

// Entries returns a copy of the set, oldest first.
func (e *Engine) Entries() []Entry {
	return cloneEntries(e.entries)
}

// Len returns the set size.
func (e *Engine) Len() int { return len(e.entries) }
