package selection

// Mark is the visual selection state of one feature on the surface.
type Mark int

const (
	Unmarked Mark = iota
	Selected
	Group1Member
	Group2Member
)

func (m Mark) String() string {
	switch m {
	case Selected:
		return "selected"
	case Group1Member:
		return "group1"
	case Group2Member:
		return "group2"
	}
	return "none"
}

// Marks is the surface's feature-state table, keyed by feature ID.
// Unmarked features are absent.
type Marks struct {
	m map[int64]Mark
}

// NewMarks returns an empty table.
func NewMarks() *Marks {
	return &Marks{m: make(map[int64]Mark)}
}

// Set marks id. Setting Unmarked removes it.
func (s *Marks) Set(id int64, mark Mark) {
	if mark == Unmarked {
		delete(s.m, id)
		return
	}
	s.m[id] = mark
}

// Get returns the mark for id.
func (s *Marks) Get(id int64) Mark {
	return s.m[id]
}

// Len returns the number of marked features.
func (s *Marks) Len() int { return len(s.m) }

// Snapshot copies the table.
func (s *Marks) Snapshot() map[int64]Mark {
	out := make(map[int64]Mark, len(s.m))
	for k, v := range s.m {
		out[k] = v
	}
	return out
}

// Paint is the rendered style for one mark.
type Paint struct {
	LineColor   string  `json:"lineColor"`
	LineWidth   float64 `json:"lineWidth"`
	LineOpacity float64 `json:"lineOpacity"`
	FillOpacity float64 `json:"fillOpacity"`
}

// Outline colors.
const (
	SelectedOutline = "#000000"
	Group1Outline   = "#2563eb"
	Group2Outline   = "#f97316"
	DefaultOutline  = "#ffffff"
)

// PaintFor returns the style of a mark.
func PaintFor(m Mark) Paint {
	switch m {
	case Selected:
		return Paint{LineColor: SelectedOutline, LineWidth: 3, LineOpacity: 1, FillOpacity: 0.9}
	case Group1Member:
		return Paint{LineColor: Group1Outline, LineWidth: 3, LineOpacity: 1, FillOpacity: 0.9}
	case Group2Member:
		return Paint{LineColor: Group2Outline, LineWidth: 3, LineOpacity: 1, FillOpacity: 0.9}
	}
	return Paint{LineColor: DefaultOutline, LineWidth: 0.5, LineOpacity: 0.3, FillOpacity: 0.7}
}
