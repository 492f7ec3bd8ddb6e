package core

import (
	"fmt"
	"strconv"
	"strings"

	"golang.org/x/text/width"
)

// ParseQuery validates raw age and weekday filter values against the
// snapshot. Empty values leave the filter unselected.
func (s *Snapshot) ParseQuery(age, weekday string) (Query, error) {
	var q Query

	age = strings.TrimSpace(width.Narrow.String(age))
	age = strings.TrimSuffix(age, "歳")
	if age != "" {
		n, err := strconv.Atoi(age)
		if err != nil || n < 0 {
			return Query{}, fmt.Errorf("%w: %q", ErrInvalidAge, age)
		}
		q.Age = &n
	}

	weekday = strings.TrimSpace(weekday)
	if weekday != "" {
		if !s.HasWeekday(weekday) {
			return Query{}, fmt.Errorf("%w: %q", ErrUnknownWeekday, weekday)
		}
		q.Weekday = weekday
	}
	return q, nil
}

// ParseTypeKeys parses a comma-separated type key list. Empty input selects
// every type.
func ParseTypeKeys(raw string) ([]TypeKey, error) {
	var keys []TypeKey
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		k, ok := ParseTypeKey(part)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownTypeKey, part)
		}
		keys = append(keys, k)
	}
	return keys, nil
}
