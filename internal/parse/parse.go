package parse

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/danpung/yeyakbot/internal/kst"
)

// ErrNoMatch indicates that the expression matched none of the grammar rules.
var ErrNoMatch = fmt.Errorf("expression matches no known time format")

// ValueError indicates that an expression matched a grammar rule but named
// a time that cannot exist.
type ValueError struct {
	Expression string
	Reason     string
}

func (e *ValueError) Error() string {
	return fmt.Sprintf("invalid time value in %q: %s", e.Expression, e.Reason)
}

var _ error = (*ValueError)(nil)

// Rule is a single grammar rule. It reports matched=false when the
// expression is not in its grammar at all; a non-nil error means the
// expression was in its grammar but named an invalid time.
type Rule func(expression string, now time.Time) (t time.Time, matched bool, err error)

// rules are tried in order; the first rule that matches governs, even if a
// later rule could also have matched.
var rules = []Rule{
	parseRelative,
	parseDayRelative,
	parseAbsolute,
	parseRawDatetime,
}

// Parse resolves a Korean time expression against the reference instant now.
// now is converted to Korea Standard Time before any date arithmetic.
func Parse(expression string, now time.Time) (time.Time, error) {
	expression = strings.TrimSpace(expression)
	now = now.In(kst.Location)

	for _, rule := range rules {
		t, matched, err := rule(expression, now)
		if err != nil {
			return time.Time{}, err
		}
		if matched {
			return t, nil
		}
	}
	return time.Time{}, ErrNoMatch
}

var relativePattern = regexp.MustCompile(`^(\d+)(시간|분|초)\s*후$`)

func parseRelative(expression string, now time.Time) (time.Time, bool, error) {
	m := relativePattern.FindStringSubmatch(expression)
	if m == nil {
		return time.Time{}, false, nil
	}

	n, err := strconv.Atoi(m[1])
	if err != nil {
		return time.Time{}, false, &ValueError{Expression: expression, Reason: "offset too large"}
	}

	var unit time.Duration
	switch m[2] {
	case "시간":
		unit = time.Hour
	case "분":
		unit = time.Minute
	case "초":
		unit = time.Second
	}

	return now.Add(time.Duration(n) * unit), true, nil
}

var dayRelativePattern = regexp.MustCompile(`^(오늘|내일)\s+(오전|오후)\s+(\d{1,2})시\s+(\d{1,2})분\s+(\d{1,2})초$`)

func parseDayRelative(expression string, now time.Time) (time.Time, bool, error) {
	m := dayRelativePattern.FindStringSubmatch(expression)
	if m == nil {
		return time.Time{}, false, nil
	}

	date := now
	if m[1] == "내일" {
		date = date.AddDate(0, 0, 1)
	}

	clock, err := resolveClock(expression, m[2], m[3], m[4], m[5])
	if err != nil {
		return time.Time{}, false, err
	}

	t := time.Date(date.Year(), date.Month(), date.Day(), clock.hour, clock.minute, clock.second, 0, kst.Location)
	return t, true, nil
}

var absolutePattern = regexp.MustCompile(`^(\d{4})년\s+(\d{1,2})월\s+(\d{1,2})일\s+(오전|오후)\s+(\d{1,2})시\s+(\d{1,2})분\s+(\d{1,2})초$`)

func parseAbsolute(expression string, now time.Time) (time.Time, bool, error) {
	m := absolutePattern.FindStringSubmatch(expression)
	if m == nil {
		return time.Time{}, false, nil
	}

	year, _ := strconv.Atoi(m[1])
	month, _ := strconv.Atoi(m[2])
	day, _ := strconv.Atoi(m[3])

	clock, err := resolveClock(expression, m[4], m[5], m[6], m[7])
	if err != nil {
		return time.Time{}, false, err
	}

	if month < 1 || month > 12 {
		return time.Time{}, false, &ValueError{Expression: expression, Reason: fmt.Sprintf("month %d out of range", month)}
	}

	t := time.Date(year, time.Month(month), day, clock.hour, clock.minute, clock.second, 0, kst.Location)

	// time.Date normalizes impossible dates (February 30 becomes March 2),
	// so an unchanged round trip is the existence check.
	if t.Year() != year || t.Month() != time.Month(month) || t.Day() != day {
		return time.Time{}, false, &ValueError{
			Expression: expression,
			Reason:     fmt.Sprintf("day %d does not exist in %d-%02d", day, year, month),
		}
	}

	return t, true, nil
}

var rawDatetimePattern = regexp.MustCompile(`^\d{4}-\d{2}-\d{2} \d{2}:\d{2}:\d{2}$`)

// parseRawDatetime accepts the bare "2026-02-20 18:30:00" form so that input
// written for the persisted layout keeps working.
func parseRawDatetime(expression string, now time.Time) (time.Time, bool, error) {
	if !rawDatetimePattern.MatchString(expression) {
		return time.Time{}, false, nil
	}

	t, err := kst.Parse(expression)
	if err != nil {
		return time.Time{}, false, &ValueError{Expression: expression, Reason: err.Error()}
	}
	return t, true, nil
}

type clockTime struct {
	hour, minute, second int
}

// resolveClock converts a 12-hour 오전/오후 clock reading to 24-hour form.
// 오후 with hour other than 12 adds 12; 오전 12시 is midnight.
func resolveClock(expression, meridiem, hourText, minuteText, secondText string) (clockTime, error) {
	hour, _ := strconv.Atoi(hourText)
	minute, _ := strconv.Atoi(minuteText)
	second, _ := strconv.Atoi(secondText)

	if hour < 1 || hour > 12 {
		return clockTime{}, &ValueError{Expression: expression, Reason: fmt.Sprintf("hour %d out of 12-hour range", hour)}
	}
	if minute > 59 {
		return clockTime{}, &ValueError{Expression: expression, Reason: fmt.Sprintf("minute %d out of range", minute)}
	}
	if second > 59 {
		return clockTime{}, &ValueError{Expression: expression, Reason: fmt.Sprintf("second %d out of range", second)}
	}

	switch {
	case meridiem == "오후" && hour != 12:
		hour += 12
	case meridiem == "오전" && hour == 12:
		hour = 0
	}

	return clockTime{hour: hour, minute: minute, second: second}, nil
}
