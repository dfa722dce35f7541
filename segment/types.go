package segment

// DefaultCurrency is applied to new segments that do not name a currency.
const DefaultCurrency = "EUR"

// TeamID identifies one of the racing teams.
type TeamID string

// LegNo is the number of a journey leg.
type LegNo int

// Type is the kind of activity a segment represents.
type Type string

const (
	TypeBus         Type = "bus"
	TypeTaxi        Type = "taxi"
	TypePrivateLift Type = "privateLift"
	TypeTrain       Type = "train"
	TypeBoat        Type = "boat"
	TypeWalk        Type = "walk"
	TypeBreak       Type = "break"
	TypeOvernight   Type = "overnight"
	TypeWaiting     Type = "waiting"
	TypeJob         Type = "job"
)

var (
	TeamIDs    = []TeamID{"A", "B", "C", "D", "E"}
	LegNumbers = []LegNo{1, 2, 3, 4, 5, 6}
	Types      = []Type{
		TypeBus, TypeTaxi, TypePrivateLift, TypeTrain, TypeBoat, TypeWalk,
		TypeBreak, TypeOvernight, TypeWaiting, TypeJob,
	}
)

// IsMovement reports whether the type counts towards elapsed movement time.
func (t Type) IsMovement() bool {
	switch t {
	case TypeBreak, TypeOvernight, TypeWaiting, TypeJob:
		return false
	}
	return true
}

func (t Type) Valid() bool {
	for _, known := range Types {
		if t == known {
			return true
		}
	}
	return false
}

func (id TeamID) Valid() bool {
	for _, known := range TeamIDs {
		if id == known {
			return true
		}
	}
	return false
}

func (n LegNo) Valid() bool {
	for _, known := range LegNumbers {
		if n == known {
			return true
		}
	}
	return false
}

// GroupKey partitions segments; ordering and overlap checks never cross groups.
type GroupKey struct {
	TeamID TeamID
	LegNo  LegNo
}

// Segment is one time-bounded block of a team's leg.
type Segment struct {
	ID       string   `json:"id"`
	TeamID   TeamID   `json:"teamId"`
	LegNo    LegNo    `json:"legNo"`
	Type     Type     `json:"type"`
	FromCity string   `json:"fromCity"`
	ToCity   string   `json:"toCity"`
	DepTime  string   `json:"depTime"`
	ArrTime  string   `json:"arrTime"`
	Cost     *float64 `json:"cost,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Notes    string   `json:"notes,omitempty"`
	OrderIdx int      `json:"orderIdx"`
}

func (s Segment) Group() GroupKey {
	return GroupKey{TeamID: s.TeamID, LegNo: s.LegNo}
}

// Input is a Segment without the fields the ordering engine assigns.
type Input struct {
	TeamID   TeamID   `json:"teamId"`
	LegNo    LegNo    `json:"legNo"`
	Type     Type     `json:"type"`
	FromCity string   `json:"fromCity"`
	ToCity   string   `json:"toCity"`
	DepTime  string   `json:"depTime"`
	ArrTime  string   `json:"arrTime"`
	Cost     *float64 `json:"cost,omitempty"`
	Currency string   `json:"currency,omitempty"`
	Notes    string   `json:"notes,omitempty"`
}

func (in Input) Group() GroupKey {
	return GroupKey{TeamID: in.TeamID, LegNo: in.LegNo}
}

// Changes is a partial update. Nil fields are left untouched.
type Changes struct {
	TeamID   *TeamID
	LegNo    *LegNo
	Type     *Type
	FromCity *string
	ToCity   *string
	DepTime  *string
	ArrTime  *string
	Cost     *float64
	Currency *string
	Notes    *string
	OrderIdx *int
}

// Apply merges c into s. The id is never changed.
func (c Changes) Apply(s Segment) Segment {
	if c.TeamID != nil {
		s.TeamID = *c.TeamID
	}
	if c.LegNo != nil {
		s.LegNo = *c.LegNo
	}
	if c.Type != nil {
		s.Type = *c.Type
	}
	if c.FromCity != nil {
		s.FromCity = *c.FromCity
	}
	if c.ToCity != nil {
		s.ToCity = *c.ToCity
	}
	if c.DepTime != nil {
		s.DepTime = *c.DepTime
	}
	if c.ArrTime != nil {
		s.ArrTime = *c.ArrTime
	}
	if c.Cost != nil {
		cost := *c.Cost
		s.Cost = &cost
	}
	if c.Currency != nil {
		s.Currency = *c.Currency
	}
	if c.Notes != nil {
		s.Notes = *c.Notes
	}
	if c.OrderIdx != nil {
		s.OrderIdx = *c.OrderIdx
	}
	return s
}

// Clone returns a deep copy of segments.
func Clone(segments []Segment) []Segment {
	if segments == nil {
		return nil
	}
	out := make([]Segment, len(segments))
	for i, s := range segments {
		if s.Cost != nil {
			cost := *s.Cost
			s.Cost = &cost
		}
		out[i] = s
	}
	return out
}

// FilterGroup returns the segments of one group in their input order.
func FilterGroup(segments []Segment, teamID TeamID, legNo LegNo) []Segment {
	var group []Segment
	for _, s := range segments {
		if s.TeamID == teamID && s.LegNo == legNo {
			group = append(group, s)
		}
	}
	return group
}
