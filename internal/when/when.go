// Package when resolves the CLI's free-form date and time tokens into an
// absolute instant in the local wall clock.
package when

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// DefaultHour is the clock hour used when a date token is given without a
// time token.
const DefaultHour = 7

// UnparseableDateError reports a date token matching no supported form.
type UnparseableDateError struct {
	Token string
}

func (e UnparseableDateError) Error() string {
	return fmt.Sprintf("could not parse date %q (examples: friday, tomorrow, 3/10, 3-10-2026)", e.Token)
}

// UnparseableTimeError reports a time token matching no supported form.
type UnparseableTimeError struct {
	Token string
}

func (e UnparseableTimeError) Error() string {
	return fmt.Sprintf("could not parse time %q (examples: 8am, 9:30am, 15:00)", e.Token)
}

// Resolve turns optional date and time tokens into an absolute instant
// relative to now. Empty strings mean the token was absent.
//
//   - both absent: now rounded up to the next quarter hour (the caller adds
//     any keyword-specific offset)
//   - time only: today at that time, or tomorrow if it has already passed
//   - date only: that date at 7:00am
//   - both: that date at that time
func Resolve(now time.Time, dateToken, timeToken string) (time.Time, error) {
	if dateToken == "" && timeToken == "" {
		return RoundUpQuarter(now), nil
	}
	if dateToken == "" {
		c, err := parseClock(timeToken)
		if err != nil {
			return time.Time{}, err
		}
		at := onDay(now, now, c)
		if !at.After(now) {
			at = at.AddDate(0, 0, 1)
		}
		return at, nil
	}
	day, err := parseDay(now, dateToken)
	if err != nil {
		return time.Time{}, err
	}
	c := clock{Hour: DefaultHour}
	if timeToken != "" {
		c, err = parseClock(timeToken)
		if err != nil {
			return time.Time{}, err
		}
	}
	return onDay(now, day, c), nil
}

// SplitTokens assigns the positional arguments after the keyword to the
// date and time slots. A single argument that is no recognizable date but
// parses as a clock time is treated as time-only, so `back 3:30pm` means
// today (or tomorrow) at 3:30 PM rather than a bad date.
func SplitTokens(tokens []string) (dateToken, timeToken string) {
	switch len(tokens) {
	case 0:
		return "", ""
	case 1:
		tok := tokens[0]
		if !parsesAsDay(tok) && parsesAsClock(tok) {
			return "", tok
		}
		return tok, ""
	default:
		return tokens[0], tokens[1]
	}
}

func parsesAsDay(token string) bool {
	_, err := parseDay(time.Now(), token)
	return err == nil
}

func parsesAsClock(token string) bool {
	_, err := parseClock(token)
	return err == nil
}

// RoundUpQuarter returns now advanced to the next quarter-hour boundary,
// always strictly in the future.
func RoundUpQuarter(now time.Time) time.Time {
	t := now.Truncate(time.Minute)
	next := ((t.Minute() / 15) + 1) * 15
	return t.Add(time.Duration(next-t.Minute()) * time.Minute)
}

type clock struct {
	Hour   int
	Minute int
}

func onDay(now, day time.Time, c clock) time.Time {
	return time.Date(day.Year(), day.Month(), day.Day(), c.Hour, c.Minute, 0, 0, now.Location())
}

var weekdays = map[string]time.Weekday{
	"monday": time.Monday, "mon": time.Monday,
	"tuesday": time.Tuesday, "tue": time.Tuesday, "tues": time.Tuesday,
	"wednesday": time.Wednesday, "wed": time.Wednesday,
	"thursday": time.Thursday, "thu": time.Thursday, "thurs": time.Thursday,
	"friday": time.Friday, "fri": time.Friday,
	"saturday": time.Saturday, "sat": time.Saturday,
	"sunday": time.Sunday, "sun": time.Sunday,
}

// parseDay resolves a date token to a calendar day. Weekday names always
// land strictly after today; M/D without a year rolls to next year once the
// day has passed.
func parseDay(now time.Time, token string) (time.Time, error) {
	lower := strings.ToLower(strings.TrimSpace(token))
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())

	if wd, ok := weekdays[lower]; ok {
		delta := (int(wd) - int(today.Weekday()) + 7) % 7
		if delta == 0 {
			delta = 7
		}
		return today.AddDate(0, 0, delta), nil
	}
	if lower == "tomorrow" {
		return today.AddDate(0, 0, 1), nil
	}

	parts := strings.FieldsFunc(lower, func(r rune) bool { return r == '/' || r == '-' })
	switch len(parts) {
	case 2:
		month, err1 := strconv.Atoi(parts[0])
		day, err2 := strconv.Atoi(parts[1])
		if err1 != nil || err2 != nil || !validDay(now.Year(), month, day) {
			return time.Time{}, UnparseableDateError{Token: token}
		}
		d := time.Date(now.Year(), time.Month(month), day, 0, 0, 0, 0, now.Location())
		if d.Before(today) {
			d = time.Date(now.Year()+1, time.Month(month), day, 0, 0, 0, 0, now.Location())
		}
		return d, nil
	case 3:
		month, err1 := strconv.Atoi(parts[0])
		day, err2 := strconv.Atoi(parts[1])
		year, err3 := strconv.Atoi(parts[2])
		if err1 != nil || err2 != nil || err3 != nil {
			return time.Time{}, UnparseableDateError{Token: token}
		}
		if year < 100 {
			year += 2000
		}
		if !validDay(year, month, day) {
			return time.Time{}, UnparseableDateError{Token: token}
		}
		return time.Date(year, time.Month(month), day, 0, 0, 0, 0, now.Location()), nil
	}
	return time.Time{}, UnparseableDateError{Token: token}
}

// validDay guards against time.Date's silent normalization of out-of-range
// months and days.
func validDay(year, month, day int) bool {
	if month < 1 || month > 12 || day < 1 {
		return false
	}
	lastOfMonth := time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
	return day <= lastOfMonth
}

// parseClock parses H or H:MM with an optional am/pm suffix. Without a
// suffix, hours up to 23 are taken as 24-hour time, so 9:00 means 9:00 AM
// and 15:00 means 3:00 PM.
func parseClock(token string) (clock, error) {
	s := strings.ToLower(strings.TrimSpace(token))

	var meridiem string
	for _, suffix := range []string{"a.m.", "p.m.", "am", "pm"} {
		if rest, ok := strings.CutSuffix(s, suffix); ok {
			meridiem = string(suffix[0])
			s = strings.TrimSpace(rest)
			break
		}
	}

	hourPart, minutePart, hasMinute := strings.Cut(s, ":")
	hour, err := strconv.Atoi(hourPart)
	if err != nil || hour < 0 {
		return clock{}, UnparseableTimeError{Token: token}
	}
	minute := 0
	if hasMinute {
		minute, err = strconv.Atoi(minutePart)
		if err != nil || minute < 0 || minute > 59 {
			return clock{}, UnparseableTimeError{Token: token}
		}
	}

	switch meridiem {
	case "p":
		if hour < 1 || hour > 12 {
			return clock{}, UnparseableTimeError{Token: token}
		}
		if hour < 12 {
			hour += 12
		}
	case "a":
		if hour < 1 || hour > 12 {
			return clock{}, UnparseableTimeError{Token: token}
		}
		if hour == 12 {
			hour = 0
		}
	default:
		if hour > 23 {
			return clock{}, UnparseableTimeError{Token: token}
		}
	}
	return clock{Hour: hour, Minute: minute}, nil
}
