// Package registry holds the static keyword table: which backends a
// presence keyword touches and with what intent.
package registry

import (
	"fmt"
	"strings"
	"time"

	"statline/internal/domain"
)

// UnknownKeywordError reports a keyword with no registry entry.
type UnknownKeywordError struct {
	Keyword string
}

func (e UnknownKeywordError) Error() string {
	return fmt.Sprintf("unknown keyword %q (available: %s)", e.Keyword, strings.Join(Keywords(), ", "))
}

// Template builds the ordered intents for one service. Build is only given
// a meaningful deadline when NeedsDeadline is true.
type Template struct {
	Service       domain.Service
	NeedsDeadline bool
	Build         func(deadline time.Time) []domain.Intent
}

// Entry is one keyword's declarative mapping. Services the keyword does not
// touch are simply absent from Templates. Offset is added to the rounded-up
// invocation time when the user gives no date or time tokens.
type Entry struct {
	Keyword   string
	About     string
	Offset    time.Duration
	Templates []Template
}

// NeedsDeadline reports whether any of the entry's templates consume the
// resolved deadline.
func (e Entry) NeedsDeadline() bool {
	for _, t := range e.Templates {
		if t.NeedsDeadline {
			return true
		}
	}
	return false
}

// Services returns the entry's target services in declaration order.
func (e Entry) Services() []domain.Service {
	out := make([]domain.Service, 0, len(e.Templates))
	for _, t := range e.Templates {
		out = append(out, t.Service)
	}
	return out
}

var entries = []Entry{
	{
		Keyword: "lunch",
		About:   "Lunch break, roughly an hour",
		Offset:  time.Hour,
		Templates: []Template{
			slackDeadline(func(d time.Time) []domain.Intent {
				return []domain.Intent{
					domain.SetStatus{Text: "Lunchin'", Emoji: ":fork_and_knife:", ExpiresAt: d},
					domain.SetDoNotDisturb{Until: d},
				}
			}),
		},
	},
	{
		Keyword:   "zoom",
		About:     "In a Zoom meeting",
		Templates: []Template{slackStatus("In a meeting (Zoom)", ":video_camera:")},
	},
	{
		Keyword:   "tuple",
		About:     "Pairing over Tuple",
		Templates: []Template{slackStatus("Pairing (Tuple)", ":couple:")},
	},
	{
		Keyword:   "meet",
		About:     "In a meeting",
		Templates: []Template{slackStatus("In a meeting", ":calendar:")},
	},
	{
		Keyword: "eod",
		About:   "Done for the day",
		Templates: []Template{
			{Service: domain.Slack, Build: func(time.Time) []domain.Intent {
				return []domain.Intent{
					domain.SetStatus{Text: "Done for the day", Emoji: ":wave:"},
					domain.SetDoNotDisturb{},
				}
			}},
		},
	},
	{
		Keyword: "vacation",
		About:   "On vacation until the given date",
		Offset:  24 * time.Hour,
		Templates: []Template{
			slackDeadline(func(d time.Time) []domain.Intent {
				return []domain.Intent{
					domain.SetStatus{Text: "Vacation", Emoji: ":desert_island:", ExpiresAt: d},
					domain.SetDoNotDisturb{Until: d},
				}
			}),
			githubBusy("Vacation", ":desert_island:"),
			asanaRemind(false),
		},
	},
	{
		Keyword: "sick",
		About:   "Out sick",
		Offset:  24 * time.Hour,
		Templates: []Template{
			slackDeadline(func(d time.Time) []domain.Intent {
				return []domain.Intent{
					domain.SetStatus{Text: "Out sick", Emoji: ":face_with_thermometer:", ExpiresAt: d},
					domain.SetDoNotDisturb{Until: d},
				}
			}),
			asanaRemind(false),
		},
	},
	{
		Keyword: "away",
		About:   "Out of office until the given date",
		Offset:  24 * time.Hour,
		Templates: []Template{
			slackDeadline(func(d time.Time) []domain.Intent {
				return []domain.Intent{
					domain.SetStatus{Text: "Out of office", Emoji: ":no_entry:", ExpiresAt: d},
					domain.SetDoNotDisturb{Until: d},
				}
			}),
			githubBusy("Out of office", ":no_entry:"),
			asanaRemind(false),
		},
	},
	{
		Keyword: "back",
		About:   "Back at the desk, catching up",
		Offset:  5 * time.Minute,
		Templates: []Template{
			slackDeadline(func(d time.Time) []domain.Intent {
				return []domain.Intent{
					domain.ClearDoNotDisturb{},
					domain.SetStatus{Text: "Catching up", Emoji: ":inbox_tray:", ExpiresAt: d},
				}
			}),
			{Service: domain.GitHub, Build: clearBusy},
			asanaRemind(true),
		},
	},
	{
		Keyword: "clear",
		About:   "Clear status and DND everywhere",
		Templates: []Template{
			{Service: domain.Slack, Build: func(time.Time) []domain.Intent {
				return []domain.Intent{
					domain.SetStatus{},
					domain.ClearDoNotDisturb{},
				}
			}},
			{Service: domain.GitHub, Build: clearBusy},
			asanaRemind(true),
		},
	},
}

// Lookup finds the entry for a keyword, case-insensitively and exactly.
func Lookup(keyword string) (Entry, error) {
	for _, e := range entries {
		if strings.EqualFold(e.Keyword, keyword) {
			return e, nil
		}
	}
	return Entry{}, UnknownKeywordError{Keyword: keyword}
}

// Keywords lists all registered keywords in declaration order.
func Keywords() []string {
	out := make([]string, 0, len(entries))
	for _, e := range entries {
		out = append(out, e.Keyword)
	}
	return out
}

// All returns the full table in declaration order.
func All() []Entry {
	return entries
}

func slackStatus(text, emoji string) Template {
	return Template{Service: domain.Slack, Build: func(time.Time) []domain.Intent {
		return []domain.Intent{domain.SetStatus{Text: text, Emoji: emoji}}
	}}
}

func slackDeadline(build func(time.Time) []domain.Intent) Template {
	return Template{Service: domain.Slack, NeedsDeadline: true, Build: build}
}

func githubBusy(message, emoji string) Template {
	return Template{Service: domain.GitHub, NeedsDeadline: true, Build: func(d time.Time) []domain.Intent {
		return []domain.Intent{domain.SetBusy{Message: message, Emoji: emoji, Until: d}}
	}}
}

func asanaRemind(clear bool) Template {
	return Template{Service: domain.Asana, Build: func(time.Time) []domain.Intent {
		return []domain.Intent{domain.RemindOutOfOffice{Clear: clear}}
	}}
}

func clearBusy(time.Time) []domain.Intent {
	return []domain.Intent{domain.ClearBusy{}}
}
