// Package scheduling holds the weekly time-slot overlap rules shared by
// schedule management and enrollment.
package scheduling

import "github.com/noah-isme/tutorhub-api/internal/models"

// Slot is a weekly interval: day of week plus a half-open [Start, End) range.
type Slot struct {
	Day   int
	Start models.ClockTime
	End   models.ClockTime
}

// SlotOf projects a schedule onto its weekly interval.
func SlotOf(s models.Schedule) Slot {
	return Slot{Day: s.DayOfWeek, Start: s.StartTime, End: s.EndTime}
}

// Valid reports whether the slot names a real weekday and a non-empty range.
func (s Slot) Valid() bool {
	return s.Day >= 1 && s.Day <= 7 && s.Start.Valid() && s.End.ValidEnd() && s.Start < s.End
}

// Conflicts reports whether a and b overlap. Ranges that only share an
// endpoint do not conflict.
func Conflicts(a, b Slot) bool {
	if a.Day != b.Day {
		return false
	}
	return (b.Start >= a.Start && b.Start < a.End) ||
		(b.End > a.Start && b.End <= a.End) ||
		(b.Start <= a.Start && b.End >= a.End)
}

// Conflict pairs a candidate schedule with the existing one it overlaps.
type Conflict struct {
	Candidate models.Schedule
	Existing  models.Schedule
}

// DetectConflicts returns every overlapping (candidate, existing) pair.
// Existing entries sharing an id with the candidate are skipped so an entry
// never conflicts with its own stored version.
func DetectConflicts(candidates, existing []models.Schedule) []Conflict {
	var conflicts []Conflict
	for _, c := range candidates {
		cs := SlotOf(c)
		for _, e := range existing {
			if c.ID != 0 && c.ID == e.ID {
				continue
			}
			if Conflicts(cs, SlotOf(e)) {
				conflicts = append(conflicts, Conflict{Candidate: c, Existing: e})
			}
		}
	}
	return conflicts
}

// FirstConflict is DetectConflicts that stops at the first hit.
func FirstConflict(candidates, existing []models.Schedule) (Conflict, bool) {
	for _, c := range candidates {
		cs := SlotOf(c)
		for _, e := range existing {
			if c.ID != 0 && c.ID == e.ID {
				continue
			}
			if Conflicts(cs, SlotOf(e)) {
				return Conflict{Candidate: c, Existing: e}, true
			}
		}
	}
	return Conflict{}, false
}
