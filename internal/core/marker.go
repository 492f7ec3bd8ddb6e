package core

import (
	"strings"

	"golang.org/x/text/width"
)

// MarkerPredicate reports whether a raw slot marker means "open".
type MarkerPredicate func(marker string) bool

// DefaultOpenMarkers is the publisher's open-marker convention used when
// none is configured.
var DefaultOpenMarkers = []string{"○", "◯", "〇", "◎"}

// NewMarkerSet returns a predicate that accepts exactly the given markers.
// Markers and candidates are compared after trimming and width folding.
// Empty markers are ignored; an empty set falls back to DefaultOpenMarkers.
func NewMarkerSet(markers ...string) MarkerPredicate {
	set := make(map[string]struct{}, len(markers))
	for _, m := range markers {
		if m = foldMarker(m); m != "" {
			set[m] = struct{}{}
		}
	}
	if len(set) == 0 {
		for _, m := range DefaultOpenMarkers {
			set[foldMarker(m)] = struct{}{}
		}
	}
	return func(marker string) bool {
		m := foldMarker(marker)
		if m == "" {
			return false
		}
		_, ok := set[m]
		return ok
	}
}

func foldMarker(s string) string {
	return strings.TrimSpace(width.Fold.String(s))
}
