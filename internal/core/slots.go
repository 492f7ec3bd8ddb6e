package core

import (
	"fmt"

	"github.com/JonMunkholm/nurserymap/internal/tabular"
)

// slotColumns holds the resolved column positions of one slot family.
type slotColumns struct {
	label int
	days  map[string]int
}

// slotLayout resolves the slot column families present in a header.
// Families with neither a label column nor any weekday column are omitted.
func slotLayout(h HeaderIndex, weekdays []string) []slotColumns {
	var layout []slotColumns
	for i := 1; i <= MaxSlots; i++ {
		sc := slotColumns{
			label: h.Index(fmt.Sprintf("%s%d", slotColumnPrefix, i)),
			days:  make(map[string]int, len(weekdays)),
		}
		present := sc.label >= 0
		for _, day := range weekdays {
			idx := h.Index(fmt.Sprintf("%s%d_%s", slotColumnPrefix, i, day))
			sc.days[day] = idx
			if idx >= 0 {
				present = true
			}
		}
		if present {
			layout = append(layout, sc)
		}
	}
	return layout
}

// BuildSlots extracts up to MaxSlots slots from a row.
//
// A slot exists when the header carries its label column or any of its
// per-weekday columns. Absent columns read as "". Slots whose label and
// markers are all empty are dropped.
func BuildSlots(h HeaderIndex, row tabular.Row, weekdays []string) []Slot {
	weekdays = weekdaysOrDefault(weekdays)
	return buildSlots(slotLayout(h, weekdays), row, weekdays)
}

func buildSlots(layout []slotColumns, row tabular.Row, weekdays []string) []Slot {
	slots := []Slot{}
	for _, sc := range layout {
		slot := Slot{
			Label: Cell(row, sc.label),
			Days:  make(map[string]string, len(weekdays)),
		}
		keep := slot.Label != ""
		for _, day := range weekdays {
			v := Cell(row, sc.days[day])
			slot.Days[day] = v
			if v != "" {
				keep = true
			}
		}
		if keep {
			slots = append(slots, slot)
		}
	}
	return slots
}

// DeriveAvailability folds slots into the two weekday-indexed maps.
//
// Every weekday is present in both maps. A weekday is available when any
// slot's marker for it satisfies isOpen; the labels of those slots are
// listed in slot order, duplicates kept, empty labels skipped.
func DeriveAvailability(slots []Slot, weekdays []string, isOpen MarkerPredicate) (map[string]bool, map[string][]string) {
	weekdays = weekdaysOrDefault(weekdays)
	if isOpen == nil {
		isOpen = NewMarkerSet()
	}
	avail, labels := emptyWeekdayMaps(weekdays)
	for _, slot := range slots {
		for _, day := range weekdays {
			if !isOpen(slot.Days[day]) {
				continue
			}
			avail[day] = true
			if slot.Label != "" {
				labels[day] = append(labels[day], slot.Label)
			}
		}
	}
	return avail, labels
}

func emptyWeekdayMaps(weekdays []string) (map[string]bool, map[string][]string) {
	avail := make(map[string]bool, len(weekdays))
	labels := make(map[string][]string, len(weekdays))
	for _, day := range weekdays {
		avail[day] = false
		labels[day] = []string{}
	}
	return avail, labels
}

func weekdaysOrDefault(weekdays []string) []string {
	if len(weekdays) == 0 {
		return DefaultWeekdays
	}
	return weekdays
}
