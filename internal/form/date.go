package form

import (
	"fmt"
	"strings"
	"time"

	"github.com/Veraticus/till/internal/model"
)

// PickerSemantics says how a date picker encodes the calendar day the user
// chose as a time.Time.
type PickerSemantics int

const (
	// PickerUTCMidnight pickers return the chosen day at 00:00 UTC.
	PickerUTCMidnight PickerSemantics = iota
	// PickerLocalMidnight pickers return the chosen day at 00:00 in the
	// device's own zone, carried in the value's Location.
	PickerLocalMidnight
	// PickerInstant values are real instants (such as "now"); the day is
	// whatever the business timezone's calendar shows at that instant.
	PickerInstant
)

func (p PickerSemantics) String() string {
	switch p {
	case PickerUTCMidnight:
		return "utc-midnight"
	case PickerLocalMidnight:
		return "local-midnight"
	case PickerInstant:
		return "instant"
	default:
		return fmt.Sprintf("picker(%d)", int(p))
	}
}

// LegacyOffset is the fixed shift older clients applied before truncating.
const LegacyOffset = 8 * time.Hour

// NormalizeDate returns the date-only string submitted for picked. target is
// the business timezone and is only consulted for PickerInstant; nil means UTC.
func NormalizeDate(picked time.Time, semantics PickerSemantics, target *time.Location) string {
	switch semantics {
	case PickerLocalMidnight:
		return picked.Format(model.DateLayout)
	case PickerInstant:
		if target == nil {
			target = time.UTC
		}
		return picked.In(target).Format(model.DateLayout)
	default:
		return picked.UTC().Format(model.DateLayout)
	}
}

// LegacyShift reproduces the fixed +8h shift: correct for UTC-midnight
// pickers and for local-midnight pickers east of UTC up to +8, wrong
// elsewhere.
func LegacyShift(picked time.Time) string {
	return picked.Add(LegacyOffset).UTC().Format(model.DateLayout)
}

// ParseDate reads a command-line date ("2024-05-01", "today", "yesterday")
// as local midnight in loc, suitable for PickerLocalMidnight.
func ParseDate(input string, now time.Time, loc *time.Location) (time.Time, error) {
	if loc == nil {
		loc = time.UTC
	}
	today := now.In(loc)
	midnight := time.Date(today.Year(), today.Month(), today.Day(), 0, 0, 0, 0, loc)

	switch strings.ToLower(strings.TrimSpace(input)) {
	case "", "today":
		return midnight, nil
	case "yesterday":
		return midnight.AddDate(0, 0, -1), nil
	}

	t, err := time.ParseInLocation(model.DateLayout, strings.TrimSpace(input), loc)
	if err != nil {
		return time.Time{}, fmt.Errorf("invalid date %q (want YYYY-MM-DD): %w", input, err)
	}
	return t, nil
}
