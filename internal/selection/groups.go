package selection

import "github.com/joeblew999/plat-parcels/internal/feature"

var groupMarks = [2]Mark{Group1Member, Group2Member}

// GroupMachine drives the two-group building, confirm and compare workflow.
type GroupMachine struct {
	state     State
	groups    [2][]Entry
	confirmed [2]*ConfirmedGroup
	marks     *Marks
	sync      Syncer
}

// NewGroupMachine returns a machine in Idle.
func NewGroupMachine(marks *Marks, sync Syncer) *GroupMachine {
	if sync == nil {
		sync = nopSyncer{}
	}
	return &GroupMachine{marks: marks, sync: sync}
}

// State returns the current workflow state.
func (m *GroupMachine) State() State { return m.state }

// Group returns a copy of working group i (0 or 1).
func (m *GroupMachine) Group(i int) []Entry { return cloneEntries(m.groups[i]) }

// Confirmed returns the snapshot of group i, or nil.
func (m *GroupMachine) Confirmed(i int) *ConfirmedGroup { return m.confirmed[i] }

// ActiveGroup returns the index clicks are routed to, or -1 when Complete.
func (m *GroupMachine) ActiveGroup() int { return activeGroup(m.state) }

func (m *GroupMachine) apply(a Action) bool {
	next, ok := transition(m.state, a)
	if ok {
		m.state = next
	}
	return ok
}

// Start enters SelectingG1 from Idle.
func (m *GroupMachine) Start() error {
	if !m.apply(StartSelecting) {
		return ErrInvalidTransition
	}
	return nil
}

// HandleClick toggles f in the active group.
func (m *GroupMachine) HandleClick(f feature.Feature) error {
	active := activeGroup(m.state)
	if active < 0 {
		return ErrNotRouted
	}
	group := m.groups[active]

	if i := indexOf(group, f.FeatureID); i >= 0 {
		old := group[i]
		m.groups[active] = append(group[:i], group[i+1:]...)
		m.marks.Set(old.ID, Unmarked)
		return nil
	}

	if t, ok := m.establishedType(); ok && t != f.OverlayType {
		return ErrOverlayMismatch
	}
	other := 1 - active
	if m.confirmed[other].Contains(f.FeatureID) {
		return ErrClaimedByOtherGroup
	}

	m.groups[active] = append(group, EntryFrom(f))
	m.marks.Set(f.ID, groupMarks[active])
	return nil
}

// establishedType returns the overlay type of whichever group has entries.
func (m *GroupMachine) establishedType() (feature.OverlayType, bool) {
	for _, g := range m.groups {
		if len(g) > 0 {
			return g[0].OverlayType, true
		}
	}
	return "", false
}

// CanConfirm reports whether Confirm would succeed.
func (m *GroupMachine) CanConfirm() bool {
	active := activeGroup(m.state)
	if active < 0 || len(m.groups[active]) == 0 {
		return false
	}
	_, ok := transition(m.state, Confirm)
	return ok
}

// Confirm snapshots the active group with its aggregate and advances.
// The working list is kept as is.
func (m *GroupMachine) Confirm() error {
	active := activeGroup(m.state)
	if _, ok := transition(m.state, Confirm); !ok || active < 0 {
		return ErrInvalidTransition
	}
	if len(m.groups[active]) == 0 {
		return ErrEmptyGroup
	}
	m.confirmed[active] = confirmGroup(m.groups[active])
	m.apply(Confirm)
	return nil
}

// Reset clears both groups and snapshots, unmarks their features and
// returns to Idle; with restart it re-enters SelectingG1.
func (m *GroupMachine) Reset(restart bool) {
	for _, g := range m.groups {
		for _, e := range g {
			m.marks.Set(e.ID, Unmarked)
		}
	}
	m.groups = [2][]Entry{}
	m.confirmed = [2]*ConfirmedGroup{}
	if !m.apply(Reset) {
		m.state = Idle
	}
	if restart {
		m.apply(StartSelecting)
	}
}

// Compare pushes both confirmed groups to the host. It is the only path
// by which group data leaves the widget.
func (m *GroupMachine) Compare() error {
	if !m.apply(Compare) {
		return ErrInvalidTransition
	}
	m.sync.SyncGroups(m.confirmed[0], m.confirmed[1])
	return nil
}
