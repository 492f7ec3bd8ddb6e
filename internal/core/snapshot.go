package core

import (
	"slices"
	"time"
)

// NewSnapshot indexes a merge result as an immutable snapshot.
// The snapshot takes ownership of res.Facilities.
func NewSnapshot(id string, builtAt time.Time, weekdays []string, res MergeResult) *Snapshot {
	s := &Snapshot{
		ID:         id,
		BuiltAt:    builtAt,
		Weekdays:   slices.Clone(weekdaysOrDefault(weekdays)),
		Facilities: res.Facilities,
		Stats:      res.Stats,
		byNo:       make(map[string]int, len(res.Facilities)),
	}
	if s.Facilities == nil {
		s.Facilities = []Facility{}
	}
	if s.Stats.Skipped == nil {
		s.Stats.Skipped = make(map[SkipReason]int)
	}

	ages := []int{}
	for i := range s.Facilities {
		s.byNo[s.Facilities[i].No] = i
		ages = append(ages, s.Facilities[i].Ages...)
	}
	slices.Sort(ages)
	s.Ages = slices.Compact(ages)
	return s
}

// Len returns the number of facilities.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Facilities)
}

// Facility looks up a facility by raw or normalized number.
func (s *Snapshot) Facility(no string) (*Facility, bool) {
	if s == nil {
		return nil, false
	}
	i, ok := s.byNo[NormalizeNo(no)]
	if !ok {
		return nil, false
	}
	return &s.Facilities[i], true
}

// HasWeekday reports whether day is one of the snapshot's weekdays.
func (s *Snapshot) HasWeekday(day string) bool {
	return s != nil && slices.Contains(s.Weekdays, day)
}

// FacilityFilter selects and classifies facilities.
// An empty Types list selects every type.
type FacilityFilter struct {
	Query
	Types []TypeKey
}

// FacilityStatus is one facility with its classification.
type FacilityStatus struct {
	Facility *Facility
	Status   Status
}

// Summary counts the result of a Select call. Open and Closed are only
// counted when both an age and a weekday are selected.
type Summary struct {
	Visible int `json:"visible"`
	Open    int `json:"open"`
	Closed  int `json:"closed"`
}

// Select returns the facilities whose type passes the filter, each
// classified against the filter's query, in snapshot order.
func (s *Snapshot) Select(filter FacilityFilter) ([]FacilityStatus, Summary) {
	var sum Summary
	if s == nil {
		return []FacilityStatus{}, sum
	}

	counting := filter.Selection() == SelectionAgeAndWeekday
	out := make([]FacilityStatus, 0, len(s.Facilities))
	for i := range s.Facilities {
		f := &s.Facilities[i]
		if len(filter.Types) > 0 && !slices.Contains(filter.Types, f.TypeKey) {
			continue
		}
		st := Classify(f, filter.Query)
		out = append(out, FacilityStatus{Facility: f, Status: st})
		sum.Visible++
		if counting {
			switch st.Outcome {
			case OutcomeOpen:
				sum.Open++
			case OutcomeClosed:
				sum.Closed++
			}
		}
	}
	return out, sum
}
