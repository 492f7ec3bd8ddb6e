package core

import (
	"errors"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
)

func testSnapshot() *Snapshot {
	weekdays := []string{"月", "火"}
	mk := func(no string, key TypeKey, ages []int, mon, hasData bool) Facility {
		f := *newFacility(no, no, 34, 137, weekdays)
		f.TypeKey = key
		f.Ages = ages
		f.WeekdayAvailability["月"] = mon
		f.HasAvailability = hasData
		return f
	}
	return NewSnapshot("snap-1", time.Unix(0, 0), weekdays, MergeResult{
		Facilities: []Facility{
			mk("1", TypePrivate, []int{1, 2}, true, true),
			mk("2", TypePrivate, []int{2, 3}, false, true),
			mk("3", TypeSmall, []int{0}, true, true),
			mk("4", TypeMunicipal, []int{}, false, false),
		},
	})
}

func TestNewSnapshot(t *testing.T) {
	s := testSnapshot()
	if diff := cmp.Diff([]int{0, 1, 2, 3}, s.Ages); diff != "" {
		t.Errorf("ages (-want +got):\n%s", diff)
	}
	if f, ok := s.Facility("００２"); !ok || f.No != "2" {
		t.Errorf("Facility(００２) = %v, %v", f, ok)
	}
	if s.Stats.Skipped == nil {
		t.Error("Stats.Skipped should be initialized")
	}

	empty := NewSnapshot("e", time.Now(), nil, MergeResult{})
	if empty.Len() != 0 || empty.Facilities == nil || len(empty.Weekdays) != len(DefaultWeekdays) {
		t.Errorf("empty snapshot = %+v", empty)
	}
}

func TestSnapshot_Select(t *testing.T) {
	s := testSnapshot()

	tests := []struct {
		name    string
		filter  FacilityFilter
		wantNos []string
		want    Summary
	}{
		{
			name:    "no filter",
			filter:  FacilityFilter{},
			wantNos: []string{"1", "2", "3", "4"},
			want:    Summary{Visible: 4},
		},
		{
			name:    "type filter",
			filter:  FacilityFilter{Types: []TypeKey{TypePrivate}},
			wantNos: []string{"1", "2"},
			want:    Summary{Visible: 2},
		},
		{
			name:    "weekday only does not count",
			filter:  FacilityFilter{Query: Query{Weekday: "月"}},
			wantNos: []string{"1", "2", "3", "4"},
			want:    Summary{Visible: 4},
		},
		{
			name:    "age and weekday counts",
			filter:  FacilityFilter{Query: Query{Age: intPtr(2), Weekday: "月"}},
			wantNos: []string{"1", "2", "3", "4"},
			want:    Summary{Visible: 4, Open: 1, Closed: 1},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, sum := s.Select(tt.filter)
			var nos []string
			for _, fs := range got {
				nos = append(nos, fs.Facility.No)
			}
			if diff := cmp.Diff(tt.wantNos, nos); diff != "" {
				t.Errorf("facilities (-want +got):\n%s", diff)
			}
			if sum != tt.want {
				t.Errorf("summary = %+v, want %+v", sum, tt.want)
			}
		})
	}
}

func TestSnapshot_NilSafe(t *testing.T) {
	var s *Snapshot
	if s.Len() != 0 {
		t.Error("nil Len != 0")
	}
	if _, ok := s.Facility("1"); ok {
		t.Error("nil Facility found something")
	}
	got, sum := s.Select(FacilityFilter{})
	if len(got) != 0 || sum != (Summary{}) {
		t.Errorf("nil Select = %v, %+v", got, sum)
	}
}

func TestSnapshot_ParseQuery(t *testing.T) {
	s := testSnapshot()

	tests := []struct {
		name        string
		age, day    string
		wantAge     *int
		wantWeekday string
		wantErr     error
	}{
		{name: "empty", wantAge: nil},
		{name: "age", age: "3", wantAge: intPtr(3)},
		{name: "age with suffix", age: "３歳", wantAge: intPtr(3)},
		{name: "zero age", age: "0", wantAge: intPtr(0)},
		{name: "weekday", day: "火", wantWeekday: "火"},
		{name: "negative age", age: "-1", wantErr: ErrInvalidAge},
		{name: "text age", age: "three", wantErr: ErrInvalidAge},
		{name: "unknown weekday", day: "日", wantErr: ErrUnknownWeekday},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q, err := s.ParseQuery(tt.age, tt.day)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("ParseQuery: %v", err)
			}
			if diff := cmp.Diff(tt.wantAge, q.Age); diff != "" {
				t.Errorf("age (-want +got):\n%s", diff)
			}
			if q.Weekday != tt.wantWeekday {
				t.Errorf("weekday = %q, want %q", q.Weekday, tt.wantWeekday)
			}
		})
	}
}

func TestParseTypeKeys(t *testing.T) {
	got, err := ParseTypeKeys(" private, small ,,")
	if err != nil {
		t.Fatalf("ParseTypeKeys: %v", err)
	}
	if diff := cmp.Diff([]TypeKey{TypePrivate, TypeSmall}, got); diff != "" {
		t.Errorf("keys (-want +got):\n%s", diff)
	}

	if got, err := ParseTypeKeys(""); err != nil || got != nil {
		t.Errorf("empty = %v, %v", got, err)
	}
	if _, err := ParseTypeKeys("private,nursery"); !errors.Is(err, ErrUnknownTypeKey) {
		t.Errorf("error = %v, want ErrUnknownTypeKey", err)
	}
}
