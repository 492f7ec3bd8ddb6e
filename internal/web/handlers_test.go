package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/JonMunkholm/nurserymap/internal/config"
	"github.com/JonMunkholm/nurserymap/internal/core"
	"github.com/JonMunkholm/nurserymap/internal/metrics"
)

const (
	availabilityCSV = "NO,名称,緯度,経度,施設種類,利用できる歳児,受入枠1,受入枠1_月,受入枠1_火\n" +
		"1,,,,私立認可保育園,1歳2歳,午前,○,×\n" +
		"3,Cハウス,34.9,137.9,私立幼稚園,3歳,午後,,◎\n"
	privateCSV   = "NO,名称,緯度,経度\n001,Aホーム,34.7,137.7\n002,Bホーム,34.8,137.8\n"
	municipalCSV = "NO,名称,緯度,経度\n9,Z,35,138\n"
)

// mapLoader serves texts by location and can be made to block.
type mapLoader struct {
	mu    sync.Mutex
	texts map[string]string
	gate  chan struct{}
}

func (l *mapLoader) Load(ctx context.Context, location, _ string) (string, error) {
	l.mu.Lock()
	gate := l.gate
	l.mu.Unlock()
	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return "", ctx.Err()
		}
	}
	text, ok := l.texts[location]
	if !ok {
		return "", errors.New("source not found")
	}
	return text, nil
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{RequestTimeout: 5 * time.Second},
		Rate:   config.RateLimitConfig{Enabled: false},
	}
}

func newTestServer(t *testing.T, loader *mapLoader, cfg *config.Config, refresh bool) (*Server, *core.Service) {
	t.Helper()
	reg := core.NewRegistry()
	for _, d := range []core.SourceDefinition{
		{Key: core.TypePrivate, Location: "private.csv"},
		{Key: core.TypeMunicipal, Location: "municipal.csv"},
	} {
		if err := reg.Register(d); err != nil {
			t.Fatalf("Register: %v", err)
		}
	}
	svc := core.NewService(loader, reg, core.ServiceConfig{
		AvailabilityLocation: "availability.csv",
		Weekdays:             []string{"月", "火"},
		ParseWorkers:         2,
	}, core.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))))

	if refresh {
		if _, err := svc.Refresh(context.Background()); err != nil {
			t.Fatalf("Refresh: %v", err)
		}
	}

	srv := NewServer(svc, cfg, metrics.New())
	t.Cleanup(func() { _ = srv.Shutdown(context.Background()) })
	return srv, svc
}

func defaultLoader() *mapLoader {
	return &mapLoader{texts: map[string]string{
		"availability.csv": availabilityCSV,
		"private.csv":      privateCSV,
		"municipal.csv":    municipalCSV,
	}}
}

func do(t *testing.T, srv *Server, method, target string, header map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, target, nil)
	for k, v := range header {
		req.Header.Set(k, v)
	}
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.Unmarshal(rec.Body.Bytes(), &v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

// listResponse mirrors the JSON shape of /api/facilities.
type listResponse struct {
	Snapshot string `json:"snapshot"`
	Query    struct {
		Age       *int   `json:"age"`
		Weekday   string `json:"weekday"`
		Selection string `json:"selection"`
	} `json:"query"`
	Summary    core.Summary `json:"summary"`
	Facilities []struct {
		No      string      `json:"no"`
		Name    string      `json:"name"`
		TypeKey string      `json:"typeKey"`
		Status  core.Status `json:"status"`
	} `json:"facilities"`
}

// ---- Facilities Tests ----

func TestListFacilities(t *testing.T) {
	srv, svc := newTestServer(t, defaultLoader(), testConfig(), true)

	tests := []struct {
		name        string
		query       string
		wantNos     []string
		wantOutcome map[string]core.Outcome
		wantSummary core.Summary
	}{
		{
			name:        "no filter",
			query:       "",
			wantNos:     []string{"1", "2", "9", "3"},
			wantOutcome: map[string]core.Outcome{"1": core.OutcomeNoFilter, "3": core.OutcomeNoFilter},
			wantSummary: core.Summary{Visible: 4},
		},
		{
			name:    "age and weekday",
			query:   "?age=1&weekday=月",
			wantNos: []string{"1", "2", "9", "3"},
			wantOutcome: map[string]core.Outcome{
				"1": core.OutcomeOpen,
				"2": core.OutcomeNoData,
				"9": core.OutcomeNoData,
				"3": core.OutcomeAgeMismatch,
			},
			wantSummary: core.Summary{Visible: 4, Open: 1},
		},
		{
			name:        "weekday only does not count",
			query:       "?weekday=火",
			wantNos:     []string{"1", "2", "9", "3"},
			wantOutcome: map[string]core.Outcome{"1": core.OutcomeClosed, "3": core.OutcomeOpen},
			wantSummary: core.Summary{Visible: 4},
		},
		{
			name:        "full-width age with suffix",
			query:       "?age=３歳&weekday=火",
			wantNos:     []string{"1", "2", "9", "3"},
			wantOutcome: map[string]core.Outcome{"1": core.OutcomeAgeMismatch, "3": core.OutcomeOpen},
			wantSummary: core.Summary{Visible: 4, Open: 1},
		},
		{
			name:        "type filter",
			query:       "?type=private,municipal",
			wantNos:     []string{"1", "2", "9"},
			wantSummary: core.Summary{Visible: 3},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/api/facilities"+tt.query, nil)
			if rec.Code != http.StatusOK {
				t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
			}
			resp := decode[listResponse](t, rec)

			if resp.Snapshot != svc.Snapshot().ID {
				t.Errorf("snapshot = %q, want %q", resp.Snapshot, svc.Snapshot().ID)
			}
			var nos []string
			for _, f := range resp.Facilities {
				nos = append(nos, f.No)
				if want, ok := tt.wantOutcome[f.No]; ok && f.Status.Outcome != want {
					t.Errorf("facility %s outcome = %q, want %q", f.No, f.Status.Outcome, want)
				}
			}
			if diff := cmp.Diff(tt.wantNos, nos); diff != "" {
				t.Errorf("facility order mismatch (-want +got):\n%s", diff)
			}
			if resp.Summary != tt.wantSummary {
				t.Errorf("summary = %+v, want %+v", resp.Summary, tt.wantSummary)
			}
		})
	}
}

func TestListFacilities_BadQuery(t *testing.T) {
	srv, _ := newTestServer(t, defaultLoader(), testConfig(), true)

	tests := []struct {
		query    string
		wantCode string
	}{
		{"?age=abc", "QRY001"},
		{"?age=-1", "QRY001"},
		{"?weekday=日", "QRY002"},
		{"?type=castle", "QRY003"},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			rec := do(t, srv, http.MethodGet, "/api/facilities"+tt.query, nil)
			if rec.Code != http.StatusBadRequest {
				t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadRequest)
			}
			resp := decode[ErrorResponse](t, rec)
			if resp.Code != tt.wantCode {
				t.Errorf("code = %q, want %q", resp.Code, tt.wantCode)
			}
		})
	}
}

func TestGetFacility(t *testing.T) {
	srv, _ := newTestServer(t, defaultLoader(), testConfig(), true)

	rec := do(t, srv, http.MethodGet, "/api/facilities/001?weekday=月", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decode[struct {
		No          string      `json:"no"`
		Name        string      `json:"name"`
		Ages        []int       `json:"ages"`
		Status      core.Status `json:"status"`
		SlotsForDay []string    `json:"slotsForDay"`
	}](t, rec)

	if got.No != "1" || got.Name != "Aホーム" {
		t.Errorf("facility = %q %q", got.No, got.Name)
	}
	if diff := cmp.Diff([]int{1, 2}, got.Ages); diff != "" {
		t.Errorf("ages mismatch (-want +got):\n%s", diff)
	}
	want := core.Status{Selection: core.SelectionWeekdayOnly, Outcome: core.OutcomeOpen}
	if got.Status != want {
		t.Errorf("status = %+v, want %+v", got.Status, want)
	}
	if diff := cmp.Diff([]string{"午前"}, got.SlotsForDay); diff != "" {
		t.Errorf("slotsForDay mismatch (-want +got):\n%s", diff)
	}
}

func TestGetFacility_NotFound(t *testing.T) {
	srv, _ := newTestServer(t, defaultLoader(), testConfig(), true)

	rec := do(t, srv, http.MethodGet, "/api/facilities/404", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusNotFound)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "FAC001" {
		t.Errorf("code = %q, want FAC001", resp.Code)
	}
}

func TestGetFacility_HTMX(t *testing.T) {
	srv, _ := newTestServer(t, defaultLoader(), testConfig(), true)

	rec := do(t, srv, http.MethodGet, "/api/facilities/3?age=3&weekday=火", map[string]string{"HX-Request": "true"})
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	if ct := rec.Header().Get("Content-Type"); !strings.HasPrefix(ct, "text/html") {
		t.Errorf("Content-Type = %q", ct)
	}
	body := rec.Body.String()
	for _, want := range []string{"Cハウス", `data-outcome="open"`, "<li>午後</li>"} {
		if !strings.Contains(body, want) {
			t.Errorf("body missing %q: %s", want, body)
		}
	}

	rec = do(t, srv, http.MethodGet, "/api/facilities/404", map[string]string{"HX-Request": "true"})
	if rec.Code != http.StatusNotFound || !strings.Contains(rec.Body.String(), "FAC001") {
		t.Errorf("htmx error = %d %s", rec.Code, rec.Body.String())
	}
}

// ---- Filters & Snapshot Tests ----

func TestFilters(t *testing.T) {
	srv, _ := newTestServer(t, defaultLoader(), testConfig(), true)

	rec := do(t, srv, http.MethodGet, "/api/filters", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[filtersResponse](t, rec)

	if diff := cmp.Diff([]int{1, 2, 3}, got.Ages); diff != "" {
		t.Errorf("ages mismatch (-want +got):\n%s", diff)
	}
	if diff := cmp.Diff([]string{"月", "火"}, got.Weekdays); diff != "" {
		t.Errorf("weekdays mismatch (-want +got):\n%s", diff)
	}
	if len(got.Types) != len(core.TypeKeys()) {
		t.Fatalf("types = %d, want %d", len(got.Types), len(core.TypeKeys()))
	}
	if got.Types[len(got.Types)-1].Key != core.TypeOther {
		t.Errorf("last type = %q, want other", got.Types[len(got.Types)-1].Key)
	}
}

func TestSnapshot(t *testing.T) {
	srv, svc := newTestServer(t, defaultLoader(), testConfig(), true)

	rec := do(t, srv, http.MethodGet, "/api/snapshot", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	got := decode[snapshotResponse](t, rec)
	if got.ID != svc.Snapshot().ID {
		t.Errorf("id = %q, want %q", got.ID, svc.Snapshot().ID)
	}
	if got.Facilities != 4 {
		t.Errorf("facilities = %d, want 4", got.Facilities)
	}
	if got.Stats.SynthesizedAvailability != 1 || got.Stats.MergedAvailability != 1 {
		t.Errorf("stats = %+v", got.Stats)
	}
	if len(got.Sources) != 2 || got.Sources[0].Key != core.TypePrivate {
		t.Errorf("sources = %+v", got.Sources)
	}
}

func TestNoSnapshot(t *testing.T) {
	srv, _ := newTestServer(t, defaultLoader(), testConfig(), false)

	for _, path := range []string{"/api/facilities", "/api/facilities/1", "/api/filters", "/api/snapshot"} {
		rec := do(t, srv, http.MethodGet, path, nil)
		if rec.Code != http.StatusServiceUnavailable {
			t.Errorf("%s status = %d, want %d", path, rec.Code, http.StatusServiceUnavailable)
			continue
		}
		if resp := decode[ErrorResponse](t, rec); resp.Code != "REF002" {
			t.Errorf("%s code = %q, want REF002", path, resp.Code)
		}
	}

	rec := do(t, srv, http.MethodGet, "/healthz", nil)
	health := decode[healthResponse](t, rec)
	if rec.Code != http.StatusOK || health.Ready {
		t.Errorf("healthz = %d %+v", rec.Code, health)
	}
}

// ---- Refresh Tests ----

func TestRefresh(t *testing.T) {
	srv, svc := newTestServer(t, defaultLoader(), testConfig(), false)

	rec := do(t, srv, http.MethodPost, "/api/refresh", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, body = %s", rec.Code, rec.Body.String())
	}
	got := decode[snapshotResponse](t, rec)
	if svc.Snapshot() == nil || got.ID != svc.Snapshot().ID {
		t.Errorf("refresh did not publish the returned snapshot")
	}

	health := decode[healthResponse](t, do(t, srv, http.MethodGet, "/healthz", nil))
	if !health.Ready || health.Facilities != 4 {
		t.Errorf("healthz = %+v", health)
	}
}

func TestRefresh_InProgress(t *testing.T) {
	loader := defaultLoader()
	loader.gate = make(chan struct{})
	srv, svc := newTestServer(t, loader, testConfig(), false)

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = svc.Refresh(context.Background())
	}()

	deadline := time.Now().Add(2 * time.Second)
	for !svc.Status().Running {
		if time.Now().After(deadline) {
			t.Fatal("refresh never started")
		}
		time.Sleep(time.Millisecond)
	}

	rec := do(t, srv, http.MethodPost, "/api/refresh", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusConflict)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "REF001" {
		t.Errorf("code = %q, want REF001", resp.Code)
	}

	close(loader.gate)
	<-done
}

func TestRefresh_OutlastsWriteTimeout(t *testing.T) {
	loader := defaultLoader()
	loader.gate = make(chan struct{})
	cfg := testConfig()
	cfg.Server.WriteTimeout = 50 * time.Millisecond
	cfg.Refresh.Timeout = 5 * time.Second
	srv, _ := newTestServer(t, loader, cfg, false)

	ts := httptest.NewUnstartedServer(srv.Router())
	ts.Config.WriteTimeout = cfg.Server.WriteTimeout
	ts.Start()
	defer ts.Close()

	time.AfterFunc(300*time.Millisecond, func() { close(loader.gate) })

	resp, err := ts.Client().Post(ts.URL+"/api/refresh", "application/json", nil)
	if err != nil {
		t.Fatalf("POST /api/refresh: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want %d", resp.StatusCode, http.StatusOK)
	}
	var got snapshotResponse
	if err := json.NewDecoder(resp.Body).Decode(&got); err != nil {
		t.Fatalf("decode body: %v", err)
	}
	if got.ID == "" {
		t.Error("response carries no snapshot ID")
	}
}

func TestRefresh_SourceFailure(t *testing.T) {
	loader := &mapLoader{texts: map[string]string{}}
	srv, _ := newTestServer(t, loader, testConfig(), false)

	rec := do(t, srv, http.MethodPost, "/api/refresh", nil)
	if rec.Code != http.StatusBadGateway {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusBadGateway)
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "SRC004" {
		t.Errorf("code = %q, want SRC004", resp.Code)
	}
}

func TestRefresh_RequiresToken(t *testing.T) {
	cfg := testConfig()
	cfg.Security.RefreshToken = "s3cret"
	srv, _ := newTestServer(t, defaultLoader(), cfg, false)

	if rec := do(t, srv, http.MethodPost, "/api/refresh", nil); rec.Code != http.StatusUnauthorized {
		t.Errorf("without token status = %d, want %d", rec.Code, http.StatusUnauthorized)
	}
	rec := do(t, srv, http.MethodPost, "/api/refresh", map[string]string{"Authorization": "Bearer s3cret"})
	if rec.Code != http.StatusOK {
		t.Errorf("with token status = %d, want %d", rec.Code, http.StatusOK)
	}
}

// ---- Middleware Tests ----

func TestServer_ShutdownBeforeStart(t *testing.T) {
	srv := NewServer(nil, testConfig(), nil)
	if err := srv.Shutdown(context.Background()); err != nil {
		t.Fatalf("Shutdown() error = %v", err)
	}
	if err := srv.Start("127.0.0.1:0"); !errors.Is(err, http.ErrServerClosed) {
		t.Errorf("Start() after Shutdown error = %v, want %v", err, http.ErrServerClosed)
	}
}

func TestRateLimit(t *testing.T) {
	cfg := testConfig()
	cfg.Rate = config.RateLimitConfig{Enabled: true, RequestsPerMinute: 2, RefreshLimit: 1}
	srv, _ := newTestServer(t, defaultLoader(), cfg, true)

	for i := 0; i < 2; i++ {
		if rec := do(t, srv, http.MethodGet, "/healthz", nil); rec.Code != http.StatusOK {
			t.Fatalf("request %d status = %d", i, rec.Code)
		}
	}
	rec := do(t, srv, http.MethodGet, "/api/filters", nil)
	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}
	if rec.Header().Get("Retry-After") != "60" {
		t.Errorf("Retry-After = %q", rec.Header().Get("Retry-After"))
	}
	if resp := decode[ErrorResponse](t, rec); resp.Code != "RATE001" {
		t.Errorf("code = %q, want RATE001", resp.Code)
	}
}

func TestRateLimiter_WindowReset(t *testing.T) {
	now := time.Unix(0, 0)
	rl := &rateLimiter{
		visitors: make(map[string]*visitor),
		rate:     1,
		window:   time.Minute,
		now:      func() time.Time { return now },
	}

	if !rl.allow("a") {
		t.Fatal("first request denied")
	}
	if rl.allow("a") {
		t.Fatal("second request allowed within window")
	}
	if !rl.allow("b") {
		t.Fatal("other client denied")
	}
	now = now.Add(time.Minute + time.Second)
	if !rl.allow("a") {
		t.Fatal("request denied after window reset")
	}
}

func TestSecurityHeadersAndMetrics(t *testing.T) {
	srv, _ := newTestServer(t, defaultLoader(), testConfig(), true)

	rec := do(t, srv, http.MethodGet, "/api/filters", nil)
	if rec.Header().Get("X-Content-Type-Options") != "nosniff" {
		t.Error("missing X-Content-Type-Options")
	}

	rec = do(t, srv, http.MethodGet, "/metrics", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("metrics status = %d", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), `route="/api/filters"`) {
		t.Errorf("metrics missing request counter for /api/filters")
	}
}
