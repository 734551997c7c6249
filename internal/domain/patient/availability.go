package patient

import (
	"fmt"
	"time"
)

const minutesPerDay = 24 * 60

// AvailabilityWindow is a weekly slot in which a doctor accepts
// appointments. Minutes are counted from midnight; To is exclusive.
type AvailabilityWindow struct {
	Weekday    time.Weekday `json:"weekday" bson:"weekday"`
	FromMinute int          `json:"fromMinute" bson:"fromMinute"`
	ToMinute   int          `json:"toMinute" bson:"toMinute"`
}

func (w AvailabilityWindow) validate() error {
	if w.Weekday < time.Sunday || w.Weekday > time.Saturday {
		return fmt.Errorf("weekday must be between 0 and 6, got %d", w.Weekday)
	}
	if w.FromMinute < 0 || w.ToMinute > minutesPerDay || w.FromMinute >= w.ToMinute {
		return fmt.Errorf("window %d-%d is not a valid range of minutes", w.FromMinute, w.ToMinute)
	}
	return nil
}

// Contains reports whether at (in its own location) falls inside the window.
func (w AvailabilityWindow) Contains(at time.Time) bool {
	if at.Weekday() != w.Weekday {
		return false
	}
	minute := at.Hour()*60 + at.Minute()
	return minute >= w.FromMinute && minute < w.ToMinute
}

// Accepts reports whether the doctor takes appointments at the given
// instant. A doctor without declared windows accepts any time.
func (p *Profile) Accepts(at time.Time) bool {
	if len(p.Availability) == 0 {
		return true
	}
	for _, w := range p.Availability {
		if w.Contains(at) {
			return true
		}
	}
	return false
}
