package core

import (
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/nurserymap/internal/tabular"
)

// Merger reconciles base registries with the availability dataset.
// The zero value uses DefaultWeekdays, the default marker set and
// slog.Default.
type Merger struct {
	Weekdays []string
	IsOpen   MarkerPredicate
	Logger   *slog.Logger
}

// arena is the identity-keyed working set of a single Merge call.
type arena struct {
	byNo  map[string]*Facility
	order []*Facility
}

func newArena() *arena {
	return &arena{byNo: make(map[string]*Facility)}
}

func (a *arena) get(no string) *Facility {
	return a.byNo[no]
}

func (a *arena) add(f *Facility) {
	a.byNo[f.No] = f
	a.order = append(a.order, f)
}

// baseColumns are the resolved column positions of one dataset.
type baseColumns struct {
	no, name, lat, lon int

	kana, addr1, addr2, phone, ward, district int
}

func resolveBaseColumns(h HeaderIndex) (baseColumns, error) {
	var (
		c    baseColumns
		errs []error
	)
	required := []struct {
		name string
		dst  *int
	}{
		{ColNo, &c.no},
		{ColName, &c.name},
		{ColLat, &c.lat},
		{ColLon, &c.lon},
	}
	for _, r := range required {
		idx, err := h.Require(r.name)
		if err != nil {
			errs = append(errs, err)
		}
		*r.dst = idx
	}
	if len(errs) > 0 {
		return c, errors.Join(errs...)
	}

	c.kana = h.Index(ColNameKana)
	c.addr1 = h.Index(ColAddress1)
	c.addr2 = h.Index(ColAddress2)
	c.phone = h.Index(ColPhone)
	c.ward = h.Index(ColWard)
	c.district = h.Index(ColDistrict)
	return c, nil
}

// availabilityColumns extends baseColumns with the fields the availability
// dataset owns.
type availabilityColumns struct {
	baseColumns

	typ, ages, message, notes int
	slots                     []slotColumns
}

// Merge builds the facility collection.
//
// Base datasets are applied first, in order, with first-seen-wins identity.
// A base dataset lacking a required column is skipped and reported in
// Stats.SourceErrors. The availability dataset then fills empty contact
// fields, refreshes coordinates and replaces every availability-owned field.
// A missing required column in the availability dataset is returned as an
// error wrapping *MissingColumnError.
func (m Merger) Merge(bases []BaseDataset, availability tabular.Dataset) (MergeResult, error) {
	weekdays := weekdaysOrDefault(m.Weekdays)
	isOpen := m.IsOpen
	if isOpen == nil {
		isOpen = NewMarkerSet()
	}
	log := m.logger()

	stats := MergeStats{Skipped: make(map[SkipReason]int)}
	a := newArena()

	for _, base := range bases {
		if base.Dataset.Empty() {
			continue
		}
		if err := m.addBase(a, base, weekdays, &stats); err != nil {
			msg := fmt.Sprintf("%s: %v", base.Source.Key, err)
			stats.SourceErrors = append(stats.SourceErrors, msg)
			log.Warn("skipping base dataset",
				"source", base.Source.Key,
				"label", base.Source.Label,
				"error", err,
			)
		}
	}

	if !availability.Empty() {
		if err := m.mergeAvailability(a, availability, weekdays, isOpen, &stats); err != nil {
			return MergeResult{}, fmt.Errorf("availability dataset: %w", err)
		}
	}

	facilities := make([]Facility, len(a.order))
	for i, f := range a.order {
		facilities[i] = *f
	}

	log.Info("merge complete",
		"facilities", len(facilities),
		"base_rows", stats.BaseRows,
		"availability_rows", stats.AvailabilityRows,
		"created", stats.Created,
		"merged", stats.MergedAvailability,
		"synthesized", stats.SynthesizedAvailability,
		"duplicate_availability_rows", stats.DuplicateAvailabilityRows,
		"skipped", stats.Skipped,
	)

	return MergeResult{Facilities: facilities, Stats: stats}, nil
}

func (m Merger) addBase(a *arena, base BaseDataset, weekdays []string, stats *MergeStats) error {
	cols, err := resolveBaseColumns(MakeHeaderIndex(base.Dataset.Header))
	if err != nil {
		return err
	}

	key := base.Source.Key
	if key == "" {
		key = TypeOther
	}

	for _, row := range base.Dataset.Rows {
		stats.BaseRows++

		noRaw := Cell(row, cols.no)
		no := NormalizeNo(noRaw)
		if no == "" {
			stats.Skipped[SkipNoIdentity]++
			continue
		}
		if a.get(no) != nil {
			stats.Skipped[SkipDuplicateBase]++
			continue
		}
		lat, okLat := ParseCoordinate(Cell(row, cols.lat))
		lon, okLon := ParseCoordinate(Cell(row, cols.lon))
		if !okLat || !okLon {
			stats.Skipped[SkipBadCoordinates]++
			continue
		}

		f := newFacility(no, noRaw, lat, lon, weekdays)
		f.Name = Cell(row, cols.name)
		f.NameKana = Cell(row, cols.kana)
		f.Address = JoinAddress(Cell(row, cols.addr1), Cell(row, cols.addr2))
		f.Phone = Cell(row, cols.phone)
		f.Ward = Cell(row, cols.ward)
		f.District = Cell(row, cols.district)
		f.Type = base.Source.Label
		f.TypeKey = key

		a.add(f)
		stats.Created++
	}
	return nil
}

func (m Merger) mergeAvailability(a *arena, ds tabular.Dataset, weekdays []string, isOpen MarkerPredicate, stats *MergeStats) error {
	h := MakeHeaderIndex(ds.Header)
	base, err := resolveBaseColumns(h)
	if err != nil {
		return err
	}
	cols := availabilityColumns{
		baseColumns: base,
		typ:         h.Index(ColType),
		ages:        h.Index(ColAges),
		message:     h.Index(ColMessage),
		notes:       h.Index(ColNotes),
		slots:       slotLayout(h, weekdays),
	}

	seen := make(map[string]bool)
	for _, row := range ds.Rows {
		stats.AvailabilityRows++

		noRaw := Cell(row, cols.no)
		no := NormalizeNo(noRaw)
		if no == "" {
			stats.Skipped[SkipNoIdentity]++
			continue
		}

		lat, okLat := ParseCoordinate(Cell(row, cols.lat))
		lon, okLon := ParseCoordinate(Cell(row, cols.lon))
		hasLatLon := okLat && okLon

		f := a.get(no)
		switch {
		case f == nil && !hasLatLon:
			stats.Skipped[SkipBadCoordinates]++
			continue
		case f == nil:
			f = newFacility(no, noRaw, lat, lon, weekdays)
			f.TypeKey = TypeOther
			a.add(f)
			stats.SynthesizedAvailability++
		case seen[no]:
			stats.DuplicateAvailabilityRows++
		default:
			stats.MergedAvailability++
		}
		seen[no] = true

		fillIfEmpty(&f.NoRaw, noRaw)
		fillIfEmpty(&f.Name, Cell(row, cols.name))
		fillIfEmpty(&f.NameKana, Cell(row, cols.kana))
		fillIfEmpty(&f.Address, JoinAddress(Cell(row, cols.addr1), Cell(row, cols.addr2)))
		fillIfEmpty(&f.Phone, Cell(row, cols.phone))
		fillIfEmpty(&f.Ward, Cell(row, cols.ward))
		fillIfEmpty(&f.District, Cell(row, cols.district))

		if hasLatLon {
			f.Lat, f.Lon = lat, lon
		}

		if cols.typ >= 0 {
			f.Type = Cell(row, cols.typ)
			f.TypeKey = TypeKeyForLabel(f.Type)
		}
		f.AgesRaw = Cell(row, cols.ages)
		f.Ages = ParseAges(f.AgesRaw)
		f.Slots = buildSlots(cols.slots, row, weekdays)
		f.WeekdayAvailability, f.SlotLabelsByWeekday = DeriveAvailability(f.Slots, weekdays, isOpen)
		f.Message = Cell(row, cols.message)
		f.Notes = Cell(row, cols.notes)
		f.HasAvailability = true
	}

	if stats.DuplicateAvailabilityRows > 0 {
		m.logger().Warn("availability dataset repeats facility numbers; last row wins",
			"rows", stats.DuplicateAvailabilityRows,
		)
	}
	return nil
}

func (m Merger) logger() *slog.Logger {
	if m.Logger != nil {
		return m.Logger
	}
	return slog.Default()
}

// newFacility returns a facility with availability fields defaulted.
func newFacility(no, noRaw string, lat, lon float64, weekdays []string) *Facility {
	avail, labels := emptyWeekdayMaps(weekdays)
	return &Facility{
		No:                  no,
		NoRaw:               noRaw,
		Lat:                 lat,
		Lon:                 lon,
		Ages:                []int{},
		Slots:               []Slot{},
		WeekdayAvailability: avail,
		SlotLabelsByWeekday: labels,
	}
}

func fillIfEmpty(dst *string, v string) {
	if *dst == "" && v != "" {
		*dst = v
	}
}
