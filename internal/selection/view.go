package selection

// View is a plain snapshot of the controller for rendering controls.
type View struct {
	Mode           Mode
	State          State
	Entries        []Entry
	Groups         [2][]Entry
	Confirmed      [2]*ConfirmedGroup
	ConfirmLabel   string
	ConfirmEnabled bool
	CompareVisible bool
	Marks          map[int64]Mark
}

// View captures the current state.
func (c *Controller) View() View {
	v := View{
		Mode:    c.mode,
		State:   c.groups.State(),
		Entries: c.engine.Entries(),
		Marks:   c.marks.Snapshot(),
	}
	if c.mode != Group {
		return v
	}
	v.Groups = [2][]Entry{c.groups.Group(0), c.groups.Group(1)}
	v.Confirmed = [2]*ConfirmedGroup{c.groups.Confirmed(0), c.groups.Confirmed(1)}
	v.ConfirmEnabled = c.groups.CanConfirm()
	v.CompareVisible = c.groups.State() == Complete
	switch c.groups.ActiveGroup() {
	case 0:
		v.ConfirmLabel = "Confirm Group 1"
	case 1:
		v.ConfirmLabel = "Confirm Group 2"
	default:
		v.ConfirmLabel = "Groups confirmed"
	}
	return v
}
