package core

import "slices"

// Query is the filter state a facility is classified against.
// A nil Age or empty Weekday means that filter is not selected.
type Query struct {
	Age     *int
	Weekday string
}

// Selection records which filters a Query carries.
type Selection string

const (
	SelectionAll           Selection = "all"
	SelectionAgeOnly       Selection = "age_only"
	SelectionWeekdayOnly   Selection = "weekday_only"
	SelectionAgeAndWeekday Selection = "age_and_weekday"
)

// Outcome is the availability verdict for one facility.
type Outcome string

const (
	OutcomeNoFilter    Outcome = "no_filter"
	OutcomeAgeMismatch Outcome = "age_mismatch"
	OutcomeNoData      Outcome = "no_data"
	OutcomeClosed      Outcome = "closed"
	OutcomeOpen        Outcome = "open"
)

// Status is the result of Classify.
type Status struct {
	Selection Selection `json:"selection"`
	Outcome   Outcome   `json:"outcome"`
}

// Selection derives the selection kind of q.
func (q Query) Selection() Selection {
	switch {
	case q.Age != nil && q.Weekday != "":
		return SelectionAgeAndWeekday
	case q.Age != nil:
		return SelectionAgeOnly
	case q.Weekday != "":
		return SelectionWeekdayOnly
	default:
		return SelectionAll
	}
}

// Classify decides how facility f answers q.
//
// Rules apply in order: no filter, no availability data, age mismatch,
// then the weekday map. An age filter that matches with no weekday
// selected reports OutcomeNoFilter; the Selection tells the caller an age
// filter was applied. A nil facility is treated as having no data.
func Classify(f *Facility, q Query) Status {
	st := Status{Selection: q.Selection(), Outcome: OutcomeNoFilter}
	if st.Selection == SelectionAll {
		return st
	}
	if f == nil || !f.HasAvailability {
		st.Outcome = OutcomeNoData
		return st
	}
	if q.Age != nil && !MatchesAge(f, *q.Age) {
		st.Outcome = OutcomeAgeMismatch
		return st
	}
	if q.Weekday != "" {
		if f.WeekdayAvailability[q.Weekday] {
			st.Outcome = OutcomeOpen
		} else {
			st.Outcome = OutcomeClosed
		}
	}
	return st
}

// MatchesAge reports whether age is in the facility's age set.
func MatchesAge(f *Facility, age int) bool {
	if f == nil {
		return false
	}
	_, found := slices.BinarySearch(f.Ages, age)
	return found
}
