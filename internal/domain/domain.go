package domain

import "time"

// Service identifies a status-bearing backend.
type Service string

const (
	Slack  Service = "slack"
	GitHub Service = "github"
	Asana  Service = "asana"
)

// Services lists all known backends in dispatch order.
func Services() []Service {
	return []Service{Slack, GitHub, Asana}
}

// Intent is one backend's concrete instruction for the current invocation.
// Variants are immutable once constructed and consumed exactly once by the
// target service's adapter.
type Intent interface {
	intent()
}

// SetStatus sets the user-visible status text and emoji. A zero ExpiresAt
// means the status does not expire.
type SetStatus struct {
	Text      string    `json:"text"`
	Emoji     string    `json:"emoji,omitempty"`
	ExpiresAt time.Time `json:"expires_at"`
}

// SetDoNotDisturb turns notification snoozing on. A zero Until means the
// backend's default snooze window.
type SetDoNotDisturb struct {
	Until time.Time `json:"until"`
}

// ClearDoNotDisturb ends an active snooze; ending an inactive one is not an
// error.
type ClearDoNotDisturb struct{}

// SetBusy marks the user as having limited availability, scoped to an
// organization when the adapter is configured with one.
type SetBusy struct {
	Message string    `json:"message"`
	Emoji   string    `json:"emoji,omitempty"`
	Until   time.Time `json:"until"`
}

// ClearBusy removes the limited-availability marker.
type ClearBusy struct{}

// RemindOutOfOffice asks the adapter to check the backend's out-of-office
// state and produce a reminder to set or clear it by hand.
type RemindOutOfOffice struct {
	Clear bool `json:"clear"`
}

func (SetStatus) intent()         {}
func (SetDoNotDisturb) intent()   {}
func (ClearDoNotDisturb) intent() {}
func (SetBusy) intent()           {}
func (ClearBusy) intent()         {}
func (RemindOutOfOffice) intent() {}

// ResultState classifies one service's outcome.
type ResultState string

const (
	StateOK      ResultState = "ok"
	StateSkipped ResultState = "skipped"
	StateFailed  ResultState = "failed"
)

// Outcome is one service's slot in the report.
type Outcome struct {
	Service Service     `json:"service"`
	State   ResultState `json:"state"`
	Detail  string      `json:"detail,omitempty"`
	Err     string      `json:"error,omitempty"`
}

// Report is the ordered per-service result of one invocation. Entry order
// is the registry's declared order for the keyword; services with no
// mapping are absent, services mapped but not attempted are skipped.
type Report struct {
	Keyword  string     `json:"keyword"`
	Deadline *time.Time `json:"deadline,omitempty"`
	Entries  []Outcome  `json:"entries"`
}

// Failed reports whether any attempted service failed.
func (r Report) Failed() bool {
	for _, e := range r.Entries {
		if e.State == StateFailed {
			return true
		}
	}
	return false
}

// HistoryEntry is one persisted invocation record.
type HistoryEntry struct {
	ID       string  `json:"id"`
	TS       string  `json:"ts" format:"date-time"`
	Keyword  string  `json:"keyword"`
	Deadline *string `json:"deadline,omitempty" format:"date-time"`
	Report   Report  `json:"report"`
}
