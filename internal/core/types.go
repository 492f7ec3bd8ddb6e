package core

import (
	"time"

	"github.com/JonMunkholm/nurserymap/internal/tabular"
)

// TypeKey classifies a facility's category.
type TypeKey string

const (
	TypeCertified    TypeKey = "certified"
	TypePrivate      TypeKey = "private"
	TypeMunicipal    TypeKey = "municipal"
	TypeSmall        TypeKey = "small"
	TypeOnsite       TypeKey = "onsite"
	TypeKindergarten TypeKey = "kindergarten"
	TypeOther        TypeKey = "other"
)

// DefaultWeekdays is the weekday list used when none is configured.
var DefaultWeekdays = []string{"月", "火", "水", "木", "金", "土"}

// MaxSlots is the number of slot column families probed per row.
const MaxSlots = 5

// Column names shared by the base registries and the availability dataset.
const (
	ColNo       = "NO"
	ColName     = "名称"
	ColNameKana = "名称_カナ"
	ColLat      = "緯度"
	ColLon      = "経度"
	ColType     = "施設種類"
	ColAddress1 = "所在地1"
	ColAddress2 = "所在地2"
	ColPhone    = "電話番号"
	ColAges     = "利用できる歳児"
	ColWard     = "区"
	ColDistrict = "地区"
	ColMessage  = "施設からのメッセージ"
	ColNotes    = "備考"

	// slotColumnPrefix is followed by the slot index, and optionally by
	// "_" and a weekday name.
	slotColumnPrefix = "受入枠"
)

// Slot is one named capacity unit with a raw status marker per weekday.
type Slot struct {
	Label string            `json:"label"`
	Days  map[string]string `json:"days"`
}

// Facility is the canonical queryable record, keyed by its normalized number.
type Facility struct {
	No       string  `json:"no"`
	NoRaw    string  `json:"noRaw"`
	Name     string  `json:"name"`
	NameKana string  `json:"nameKana"`
	Lat      float64 `json:"lat"`
	Lon      float64 `json:"lon"`
	Address  string  `json:"address"`
	Phone    string  `json:"phone"`
	Ward     string  `json:"ward"`
	District string  `json:"district"`

	Type    string  `json:"type"`
	TypeKey TypeKey `json:"typeKey"`

	AgesRaw string `json:"agesRaw"`
	Ages    []int  `json:"ages"`

	Slots               []Slot              `json:"slots"`
	WeekdayAvailability map[string]bool     `json:"weekdayAvailability"`
	SlotLabelsByWeekday map[string][]string `json:"slotLabelsByWeekday"`

	Message string `json:"message"`
	Notes   string `json:"notes"`

	HasAvailability bool `json:"hasAvailability"`
}

// SlotLabels returns the labels of slots open on weekday, or nil.
func (f *Facility) SlotLabels(weekday string) []string {
	if f == nil || f.SlotLabelsByWeekday == nil {
		return nil
	}
	return f.SlotLabelsByWeekday[weekday]
}

// SourceDescriptor identifies the category of one base registry.
type SourceDescriptor struct {
	Key   TypeKey `json:"key"`
	Label string  `json:"label"`
}

// BaseDataset pairs a parsed base registry with its descriptor.
type BaseDataset struct {
	Dataset tabular.Dataset
	Source  SourceDescriptor
}

// SkipReason names why a row did not produce or update a facility.
type SkipReason string

const (
	SkipNoIdentity     SkipReason = "no_identity"
	SkipBadCoordinates SkipReason = "bad_coordinates"
	SkipDuplicateBase  SkipReason = "duplicate_base"
)

// MergeStats summarises one merge pass.
type MergeStats struct {
	BaseRows                  int                `json:"baseRows"`
	AvailabilityRows          int                `json:"availabilityRows"`
	Created                   int                `json:"created"`
	MergedAvailability        int                `json:"mergedAvailability"`
	SynthesizedAvailability   int                `json:"synthesizedAvailability"`
	DuplicateAvailabilityRows int                `json:"duplicateAvailabilityRows"`
	Skipped                   map[SkipReason]int `json:"skipped"`
	SourceErrors              []string           `json:"sourceErrors,omitempty"`
}

// MergeResult is the output of a merge pass.
type MergeResult struct {
	Facilities []Facility
	Stats      MergeStats
}

// Snapshot is an immutable, fully merged facility collection.
type Snapshot struct {
	ID         string
	BuiltAt    time.Time
	Weekdays   []string
	Facilities []Facility
	Ages       []int
	Stats      MergeStats

	byNo map[string]int
}
