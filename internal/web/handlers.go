package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/JonMunkholm/nurserymap/internal/core"
	"github.com/JonMunkholm/nurserymap/internal/logging"
	"github.com/JonMunkholm/nurserymap/internal/web/templates"
)

// facilityView is a facility with its classification for the request's
// filter.
type facilityView struct {
	*core.Facility
	Status      core.Status `json:"status"`
	SlotsForDay []string    `json:"slotsForDay,omitempty"`
}

// queryView echoes the filter a response was computed for.
type queryView struct {
	Age       *int           `json:"age"`
	Weekday   string         `json:"weekday,omitempty"`
	Types     []core.TypeKey `json:"types,omitempty"`
	Selection core.Selection `json:"selection"`
}

type facilitiesResponse struct {
	Snapshot   string         `json:"snapshot"`
	BuiltAt    time.Time      `json:"builtAt"`
	Query      queryView      `json:"query"`
	Summary    core.Summary   `json:"summary"`
	Facilities []facilityView `json:"facilities"`
}

type typeOption struct {
	Key   core.TypeKey `json:"key"`
	Label string       `json:"label"`
}

type filtersResponse struct {
	Ages     []int        `json:"ages"`
	Weekdays []string     `json:"weekdays"`
	Types    []typeOption `json:"types"`
}

type sourceView struct {
	Key      core.TypeKey `json:"key"`
	Label    string       `json:"label"`
	Location string       `json:"location"`
}

type snapshotResponse struct {
	ID         string                  `json:"id"`
	BuiltAt    time.Time               `json:"builtAt"`
	Facilities int                     `json:"facilities"`
	Weekdays   []string                `json:"weekdays"`
	Stats      core.MergeStats         `json:"stats"`
	Sources    []sourceView            `json:"sources"`
	Refresh    core.RefreshStatus      `json:"refresh"`
	Fetches    core.FetchLimiterStatus `json:"fetches"`
}

type healthResponse struct {
	Status     string             `json:"status"`
	Ready      bool               `json:"ready"`
	Snapshot   string             `json:"snapshot,omitempty"`
	Facilities int                `json:"facilities"`
	Refresh    core.RefreshStatus `json:"refresh"`
}

// snapshot returns the published snapshot or writes a 503.
func (s *Server) snapshot(w http.ResponseWriter, r *http.Request) (*core.Snapshot, bool) {
	snap := s.service.Snapshot()
	if snap == nil {
		respondError(w, r, core.ErrNoSnapshot, http.StatusServiceUnavailable)
		return nil, false
	}
	return snap, true
}

// handleHealth reports liveness. Ready is false until a snapshot exists.
func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	snap := s.service.Snapshot()
	resp := healthResponse{
		Status:     "ok",
		Ready:      snap != nil,
		Facilities: snap.Len(),
		Refresh:    s.service.Status(),
	}
	if snap != nil {
		resp.Snapshot = snap.ID
	}
	writeJSON(w, http.StatusOK, resp)
}

// handleListFacilities returns facilities filtered by type and classified
// against the optional age and weekday filters.
func (s *Server) handleListFacilities(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	params := r.URL.Query()
	q, err := snap.ParseQuery(params.Get("age"), params.Get("weekday"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}
	types, err := core.ParseTypeKeys(params.Get("type"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	selected, summary := snap.Select(core.FacilityFilter{Query: q, Types: types})
	views := make([]facilityView, len(selected))
	for i, fs := range selected {
		views[i] = facilityView{Facility: fs.Facility, Status: fs.Status}
	}

	writeJSON(w, http.StatusOK, facilitiesResponse{
		Snapshot:   snap.ID,
		BuiltAt:    snap.BuiltAt,
		Query:      queryView{Age: q.Age, Weekday: q.Weekday, Types: types, Selection: q.Selection()},
		Summary:    summary,
		Facilities: views,
	})
}

// handleGetFacility returns one facility with its status and the slot
// labels open on the selected weekday. HTMX requests get a details card.
func (s *Server) handleGetFacility(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	no := chi.URLParam(r, "no")
	f, found := snap.Facility(no)
	if !found {
		respondError(w, r, core.ErrFacilityNotFound, http.StatusNotFound)
		return
	}

	q, err := snap.ParseQuery(r.URL.Query().Get("age"), r.URL.Query().Get("weekday"))
	if err != nil {
		respondError(w, r, err, statusFor(err))
		return
	}

	view := facilityView{
		Facility:    f,
		Status:      core.Classify(f, q),
		SlotsForDay: f.SlotLabels(q.Weekday),
	}

	if isHTMX(r) {
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		if err := templates.FacilityCard(f, view.Status, q.Weekday, view.SlotsForDay).Render(r.Context(), w); err != nil {
			logging.FromContext(r.Context()).Error("render facility card", "no", f.No, "error", err)
		}
		return
	}
	writeJSON(w, http.StatusOK, view)
}

// handleFilters lists the values the filter controls offer.
func (s *Server) handleFilters(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}

	keys := core.TypeKeys()
	types := make([]typeOption, len(keys))
	for i, k := range keys {
		types[i] = typeOption{Key: k, Label: core.LabelForTypeKey(k)}
	}

	writeJSON(w, http.StatusOK, filtersResponse{
		Ages:     snap.Ages,
		Weekdays: snap.Weekdays,
		Types:    types,
	})
}

// handleSnapshot describes the published snapshot and the refresh state.
func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	snap, ok := s.snapshot(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, s.describe(snap))
}

func (s *Server) describe(snap *core.Snapshot) snapshotResponse {
	defs := s.service.Sources()
	sources := make([]sourceView, len(defs))
	for i, d := range defs {
		desc := d.Descriptor()
		sources[i] = sourceView{Key: desc.Key, Label: desc.Label, Location: d.Location}
	}
	return snapshotResponse{
		ID:         snap.ID,
		BuiltAt:    snap.BuiltAt,
		Facilities: snap.Len(),
		Weekdays:   snap.Weekdays,
		Stats:      snap.Stats,
		Sources:    sources,
		Refresh:    s.service.Status(),
		Fetches:    s.service.Limiter().Status(),
	}
}

// handleRefresh rebuilds the snapshot synchronously.
func (s *Server) handleRefresh(w http.ResponseWriter, r *http.Request) {
	logger := logging.WithFields(r.Context(), "trigger", core.TriggerAPI)
	logger.Info("refresh requested")

	if deadline := s.refreshWriteDeadline(); !deadline.IsZero() {
		if err := http.NewResponseController(w).SetWriteDeadline(deadline); err != nil {
			logger.Warn("could not extend write deadline", "error", err)
		}
	}

	snap, err := s.service.Refresh(refreshContext(r))
	if err != nil {
		status := http.StatusBadGateway
		if errors.Is(err, core.ErrRefreshInProgress) {
			status = http.StatusConflict
		}
		respondError(w, r, err, status)
		return
	}
	writeJSON(w, http.StatusOK, s.describe(snap))
}

// refreshWriteDeadline covers a refresh that runs for the full refresh
// timeout plus the usual time to write the response. The zero time means
// the server's WriteTimeout already allows it.
func (s *Server) refreshWriteDeadline() time.Time {
	if s.cfg.Server.WriteTimeout <= 0 || s.cfg.Refresh.Timeout <= 0 {
		return time.Time{}
	}
	return time.Now().Add(s.cfg.Refresh.Timeout + s.cfg.Server.WriteTimeout)
}
