package model

import "time"

// OutcomeKind is the classification result for one instrument.
type OutcomeKind int

const (
	NoMatch OutcomeKind = iota
	Match
	NotEvaluable
)

func (k OutcomeKind) String() string {
	switch k {
	case Match:
		return "match"
	case NotEvaluable:
		return "not_evaluable"
	default:
		return "no_match"
	}
}

// Outcome is produced once per instrument. Err is set when the history
// fetch failed; such outcomes never match.
type Outcome struct {
	Kind   OutcomeKind
	Latest float64
	High   float64
	Name   string
	Err    error
}

// MatchRecord is an instrument found trading at or near its high.
type MatchRecord struct {
	InstrumentID string    `json:"symbol"`
	DisplayName  string    `json:"name"`
	Exchange     string    `json:"exchange"`
	Class        string    `json:"series"`
	LatestPrice  float64   `json:"price"`
	AllTimeHigh  float64   `json:"ath"`
	EvaluatedAt  time.Time `json:"evaluated_at"`
}

// NewMatchRecord builds the record for a Match outcome.
func NewMatchRecord(inst Instrument, o Outcome, at time.Time) MatchRecord {
	name := inst.DisplayName
	if name == "" {
		name = o.Name
	}
	if name == "" {
		name = inst.ID
	}
	return MatchRecord{
		InstrumentID: inst.ID,
		DisplayName:  name,
		Exchange:     inst.Exchange,
		Class:        inst.Class,
		LatestPrice:  o.Latest,
		AllTimeHigh:  o.High,
		EvaluatedAt:  at,
	}
}

// ScanProgress is a point-in-time view of a running or finished scan.
type ScanProgress struct {
	ScanID     string        `json:"scan_id,omitempty"`
	Running    bool          `json:"running"`
	Total      int           `json:"total"`
	Processed  int           `json:"progress"`
	Matched    int           `json:"found"`
	Failed     int           `json:"failed"`
	Message    string        `json:"message"`
	StartedAt  *time.Time    `json:"started_at"`
	FinishedAt *time.Time    `json:"finished_at,omitempty"`
	ETA        time.Duration `json:"eta_ns,omitempty"`
}

// ScanReport is the immutable result of one completed scan.
type ScanReport struct {
	ScanID        string
	ScanTimestamp time.Time
	TotalScanned  int
	Matches       []MatchRecord
	SourceLabel   string
	Duration      time.Duration
}
