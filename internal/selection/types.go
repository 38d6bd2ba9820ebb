// Package selection implements the map widget's selection model: the
// individual-mode engine, the two-group comparison state machine, and the
// controller that routes surface events between them.
//
// A Controller is not safe for concurrent use. Callers serialize events so
// that each one is processed to completion before the next.
package selection

import (
	"errors"

	"github.com/joeblew999/plat-parcels/internal/feature"
)

// Mode is the widget-wide selection mode.
type Mode string

const (
	Individual Mode = "individual"
	Group      Mode = "group"
)

// ParseMode validates a mode string.
func ParseMode(s string) (Mode, error) {
	switch Mode(s) {
	case Individual, Group:
		return Mode(s), nil
	}
	return "", ErrUnknownMode
}

// MaxIndividual is the capacity of the individual selection set.
const MaxIndividual = 2

// Rejections. State is unchanged whenever one of these is returned.
var (
	ErrOverlayMismatch     = errors.New("cannot compare features from different overlay types")
	ErrClaimedByOtherGroup = errors.New("feature already belongs to the confirmed group")
	ErrEmptyGroup          = errors.New("cannot confirm an empty group")
	ErrNotRouted           = errors.New("clicks are not routed while both groups are confirmed")
	ErrUnknownFeature      = errors.New("unknown feature")
	ErrInvalidTransition   = errors.New("action not allowed in current state")
	ErrWrongMode           = errors.New("action not available in current mode")
	ErrUnknownMode         = errors.New("unknown selection mode")
)

// Entry is a snapshot of a feature taken at click time.
type Entry struct {
	ID          int64 // surface identity, used to unmark
	FeatureID   string
	Label       string
	OverlayType feature.OverlayType
	Metrics     feature.Metrics
}

// EntryFrom copies the selectable fields of f.
func EntryFrom(f feature.Feature) Entry {
	return Entry{
		ID:          f.ID,
		FeatureID:   f.FeatureID,
		Label:       f.Label,
		OverlayType: f.OverlayType,
		Metrics:     f.Metrics,
	}
}

// Syncer pushes selection state to the host application. Implementations
// must not block; delivery is best effort.
type Syncer interface {
	SetMode(mode Mode)
	SyncIndividual(entries []Entry)
	SyncGroups(group1, group2 *ConfirmedGroup)
}

type nopSyncer struct{}

func (nopSyncer) SetMode(Mode)                    {}
func (nopSyncer) SyncIndividual([]Entry)          {}
func (nopSyncer) SyncGroups(_, _ *ConfirmedGroup) {}

func indexOf(entries []Entry, featureID string) int {
	for i, e := range entries {
		if e.FeatureID == featureID {
			return i
		}
	}
	return -1
}

func cloneEntries(entries []Entry) []Entry {
	out := make([]Entry, len(entries))
	copy(out, entries)
	return out
}
