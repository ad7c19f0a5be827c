// Package adapter holds the per-service clients that apply presence
// intents against backend APIs.
package adapter

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"statline/internal/domain"
)

// ErrorKind classifies a service-local failure.
type ErrorKind string

const (
	AuthRejected       ErrorKind = "auth_rejected"
	NetworkFailure     ErrorKind = "network_failure"
	UnexpectedResponse ErrorKind = "unexpected_response"
)

// Error is a failure local to one backend. It never aborts sibling
// services; the dispatcher converts it into a report entry.
type Error struct {
	Service domain.Service
	Kind    ErrorKind
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s: %s: %v", e.Service, e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// Adapter applies intents for one backend. Apply returns a short human
// note describing what happened, used to build the report line.
type Adapter interface {
	Service() domain.Service
	Apply(ctx context.Context, in domain.Intent) (string, error)
}

const defaultTimeout = 10 * time.Second

func httpClient(c *http.Client) *http.Client {
	if c != nil {
		return c
	}
	return &http.Client{Timeout: defaultTimeout}
}

func classifyStatus(service domain.Service, status int, body string) error {
	kind := UnexpectedResponse
	if status == http.StatusUnauthorized || status == http.StatusForbidden {
		kind = AuthRejected
	}
	return &Error{Service: service, Kind: kind, Err: fmt.Errorf("status=%d body=%s", status, body)}
}

// clockLabel renders an instant the way a human reads a deadline: bare
// clock time for today, weekday-qualified otherwise.
func clockLabel(now, t time.Time) string {
	hour := t.Hour() % 12
	if hour == 0 {
		hour = 12
	}
	meridiem := "am"
	if t.Hour() >= 12 {
		meridiem = "pm"
	}
	clock := fmt.Sprintf("%d:%02d%s", hour, t.Minute(), meridiem)
	if t.Minute() == 0 {
		clock = fmt.Sprintf("%d%s", hour, meridiem)
	}
	if now.Year() == t.Year() && now.YearDay() == t.YearDay() {
		return clock
	}
	if t.Sub(now) <= 7*24*time.Hour {
		return t.Weekday().String() + " " + clock
	}
	return fmt.Sprintf("%d/%d %s", int(t.Month()), t.Day(), clock)
}
