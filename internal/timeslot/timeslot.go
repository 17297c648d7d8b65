// Package timeslot holds the pure time arithmetic behind window splitting
// and concrete slot generation. All wall-clock math is done in a fixed UTC+9
// zone regardless of the host timezone.
package timeslot

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/aozora-juku/lesson-match-api/internal/models"
)

// Zone is the fixed timezone all recurring windows are interpreted in.
var Zone = time.FixedZone("JST", 9*60*60)

// Validation errors raised before any persistence happens. Callers surface
// the message verbatim.
var (
	ErrInvalidClock  = errors.New("time must be formatted as HH:MM")
	ErrInvalidDay    = errors.New("day of week must be between 0 (Sunday) and 6 (Saturday)")
	ErrReversedRange = errors.New("start time must be before end time")
	ErrRangeTooShort = errors.New("time range is shorter than one lesson")
	ErrNotDivisible  = errors.New("time range is not a multiple of the lesson duration")
)

// Range is a wall-clock interval on a single weekday.
type Range struct {
	DayOfWeek int
	StartTime string
	EndTime   string
}

// SplitWindowByDuration slices a day-of-week time range into consecutive
// slots of exactly durationMinutes. Slot N's end equals slot N+1's start and
// the slots cover [start, end) with no gaps.
//
// Two almost-full-range inputs are deliberately not split and come back as a
// single slot: a 59-minute block for 60-minute lessons starting on the hour,
// and an 89-minute block for 90-minute lessons starting at :30. They absorb
// a fencepost case in admin-entered ranges.
func SplitWindowByDuration(r Range, durationMinutes int) ([]Range, error) {
	if r.DayOfWeek < 0 || r.DayOfWeek > 6 {
		return nil, ErrInvalidDay
	}
	if durationMinutes <= 0 {
		return nil, fmt.Errorf("lesson duration must be positive, got %d", durationMinutes)
	}
	start, err := parseClock(r.StartTime)
	if err != nil {
		return nil, err
	}
	end, err := parseClock(r.EndTime)
	if err != nil {
		return nil, err
	}
	if start >= end {
		return nil, ErrReversedRange
	}

	length := end - start
	if isAlmostFullRange(start, length, durationMinutes) {
		return []Range{r}, nil
	}
	if length < durationMinutes {
		return nil, ErrRangeTooShort
	}
	if length%durationMinutes != 0 {
		return nil, ErrNotDivisible
	}

	slots := make([]Range, 0, length/durationMinutes)
	for at := start; at < end; at += durationMinutes {
		slots = append(slots, Range{
			DayOfWeek: r.DayOfWeek,
			StartTime: formatClock(at),
			EndTime:   formatClock(at + durationMinutes),
		})
	}
	return slots, nil
}

// ValidateClockRange checks that both clocks parse and run forwards. Used for
// free-form time requests that are stored without being split.
func ValidateClockRange(startTime, endTime string) error {
	start, err := parseClock(startTime)
	if err != nil {
		return err
	}
	end, err := parseClock(endTime)
	if err != nil {
		return err
	}
	if start >= end {
		return ErrReversedRange
	}
	return nil
}

func isAlmostFullRange(startMinutes, length, durationMinutes int) bool {
	switch durationMinutes {
	case 60:
		return length == 59 && startMinutes%60 == 0
	case 90:
		return length == 89 && startMinutes%60 == 30
	}
	return false
}

// CombineDayAndTime maps a recurring (weekday, wall-clock) pair onto the next
// concrete instant at or after the reference day, in the fixed zone. A target
// weekday earlier in the week than the reference wraps to next week; the same
// weekday resolves to the reference day itself even if the clock time has
// already passed (slot generation filters past instants).
func CombineDayAndTime(dayOfWeek int, clock string, ref time.Time) (time.Time, error) {
	if dayOfWeek < 0 || dayOfWeek > 6 {
		return time.Time{}, ErrInvalidDay
	}
	minutes, err := parseClock(clock)
	if err != nil {
		return time.Time{}, err
	}

	local := ref.In(Zone)
	daysAhead := (dayOfWeek - int(local.Weekday()) + 7) % 7
	target := local.AddDate(0, 0, daysAhead)
	return time.Date(target.Year(), target.Month(), target.Day(), minutes/60, minutes%60, 0, 0, Zone), nil
}

// GenerateOptions tunes concrete slot expansion.
type GenerateOptions struct {
	// DaysAhead is the rolling horizon; 14 days when zero.
	DaysAhead int
	// DurationMinutes is the fallback slot length when a window carries no
	// parseable end time.
	DurationMinutes int
	// From anchors the horizon; time.Now in the fixed zone when zero.
	From time.Time
}

// Sequence is a restartable, finite iteration over generated slots, sorted
// ascending by start time.
type Sequence struct {
	slots []models.SlotInstant
	pos   int
}

// Next returns the next slot in order, reporting false when exhausted.
func (s *Sequence) Next() (models.SlotInstant, bool) {
	if s.pos >= len(s.slots) {
		return models.SlotInstant{}, false
	}
	slot := s.slots[s.pos]
	s.pos++
	return slot, true
}

// Reset rewinds the sequence to the first slot.
func (s *Sequence) Reset() { s.pos = 0 }

// Collect drains the remaining slots into a slice.
func (s *Sequence) Collect() []models.SlotInstant {
	out := make([]models.SlotInstant, 0, len(s.slots)-s.pos)
	for {
		slot, ok := s.Next()
		if !ok {
			return out
		}
		out = append(out, slot)
	}
}

// GenerateSlotsFromWindows expands recurring windows into concrete future
// instants over the rolling horizon, discarding slots whose start has
// already passed relative to the anchor.
func GenerateSlotsFromWindows(windows []models.TimeWindow, opts GenerateOptions) (*Sequence, error) {
	daysAhead := opts.DaysAhead
	if daysAhead <= 0 {
		daysAhead = 14
	}
	from := opts.From
	if from.IsZero() {
		from = time.Now()
	}
	from = from.In(Zone)
	horizon := from.AddDate(0, 0, daysAhead)

	var slots []models.SlotInstant
	for _, w := range windows {
		first, err := CombineDayAndTime(w.DayOfWeek, w.StartTime, from)
		if err != nil {
			return nil, err
		}

		length, err := windowLength(w, opts.DurationMinutes)
		if err != nil {
			return nil, err
		}

		for start := first; start.Before(horizon); start = start.AddDate(0, 0, 7) {
			if start.Before(from) {
				continue
			}
			slots = append(slots, models.SlotInstant{
				WindowID: w.ID,
				StartAt:  start,
				EndAt:    start.Add(length),
			})
		}
	}

	sort.Slice(slots, func(i, j int) bool {
		if slots[i].StartAt.Equal(slots[j].StartAt) {
			return slots[i].WindowID < slots[j].WindowID
		}
		return slots[i].StartAt.Before(slots[j].StartAt)
	})
	return &Sequence{slots: slots}, nil
}

func windowLength(w models.TimeWindow, fallbackMinutes int) (time.Duration, error) {
	start, err := parseClock(w.StartTime)
	if err != nil {
		return 0, err
	}
	end, endErr := parseClock(w.EndTime)
	if endErr != nil || end <= start {
		if fallbackMinutes > 0 {
			return time.Duration(fallbackMinutes) * time.Minute, nil
		}
		if endErr != nil {
			return 0, endErr
		}
		return 0, ErrReversedRange
	}
	return time.Duration(end-start) * time.Minute, nil
}

func parseClock(clock string) (int, error) {
	if len(clock) != 5 || clock[2] != ':' {
		return 0, ErrInvalidClock
	}
	hour, ok1 := atoi2(clock[0], clock[1])
	minute, ok2 := atoi2(clock[3], clock[4])
	if !ok1 || !ok2 || hour > 23 || minute > 59 {
		return 0, ErrInvalidClock
	}
	return hour*60 + minute, nil
}

func atoi2(a, b byte) (int, bool) {
	if a < '0' || a > '9' || b < '0' || b > '9' {
		return 0, false
	}
	return int(a-'0')*10 + int(b-'0'), true
}

func formatClock(minutes int) string {
	return fmt.Sprintf("%02d:%02d", minutes/60, minutes%60)
}
