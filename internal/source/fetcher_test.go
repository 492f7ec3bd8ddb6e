package source

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok.csv":
			if ua := r.Header.Get("User-Agent"); ua != "nurserymap-test" {
				t.Errorf("User-Agent = %q", ua)
			}
			_, _ = w.Write([]byte("NO,名称\n"))
		case "/big.csv":
			_, _ = w.Write([]byte(strings.Repeat("x", 100)))
		case "/gone.csv":
			w.WriteHeader(http.StatusGone)
		case "/boom.csv":
			w.WriteHeader(http.StatusServiceUnavailable)
		default:
			http.NotFound(w, r)
		}
	}))
	defer srv.Close()

	f := &HTTPFetcher{Client: srv.Client(), UserAgent: "nurserymap-test", MaxBytes: 50}

	tests := []struct {
		name    string
		path    string
		want    string
		wantErr error
	}{
		{name: "ok", path: "/ok.csv", want: "NO,名称\n"},
		{name: "not found", path: "/missing.csv", wantErr: ErrSourceNotFound},
		{name: "gone", path: "/gone.csv", wantErr: ErrSourceNotFound},
		{name: "server error", path: "/boom.csv", wantErr: ErrFetch},
		{name: "too large", path: "/big.csv", wantErr: ErrSourceTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := f.Fetch(context.Background(), srv.URL+tt.path)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Fetch: %v", err)
			}
			if string(got) != tt.want {
				t.Errorf("body = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestHTTPFetcher_ContextCancelled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte("x"))
	}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := (&HTTPFetcher{Client: srv.Client()}).Fetch(ctx, srv.URL)
	if !errors.Is(err, context.Canceled) || !errors.Is(err, ErrFetch) {
		t.Errorf("error = %v, want ErrFetch wrapping context.Canceled", err)
	}
}

func TestFileFetcher(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "avail.csv")
	if err := os.WriteFile(path, []byte("NO\n1\n"), 0o600); err != nil {
		t.Fatalf("write: %v", err)
	}

	f := &FileFetcher{Root: dir}
	for _, loc := range []string{path, "file://" + path, "avail.csv"} {
		got, err := f.Fetch(context.Background(), loc)
		if err != nil {
			t.Errorf("Fetch(%q): %v", loc, err)
			continue
		}
		if string(got) != "NO\n1\n" {
			t.Errorf("Fetch(%q) = %q", loc, got)
		}
	}

	if _, err := f.Fetch(context.Background(), "missing.csv"); !errors.Is(err, ErrSourceNotFound) {
		t.Errorf("missing file error = %v, want ErrSourceNotFound", err)
	}
}

func TestScheme(t *testing.T) {
	tests := map[string]string{
		"https://example.test/a.csv": "https",
		"HTTP://example.test/a.csv":  "http",
		"s3://bucket/key.csv":        "s3",
		"file:///data/a.csv":         "file",
		"/data/a.csv":                "file",
		"data/a.csv":                 "file",
		`C:\data\a.csv`:              "file",
		"ftp://example.test/a.csv":   "ftp",
	}
	for loc, want := range tests {
		if got := Scheme(loc); got != want {
			t.Errorf("Scheme(%q) = %q, want %q", loc, got, want)
		}
	}
}

type stubFetcher struct {
	data  string
	calls int
}

func (s *stubFetcher) Fetch(context.Context, string) ([]byte, error) {
	s.calls++
	return []byte(s.data), nil
}

func TestMux(t *testing.T) {
	web := &stubFetcher{data: "web"}
	disk := &stubFetcher{data: "disk"}

	m := NewMux(nil)
	m.Handle(web, "http", "https")
	m.Handle(disk, "file")

	tests := []struct {
		loc  string
		want string
	}{
		{"https://example.test/a.csv", "web"},
		{"http://example.test/a.csv", "web"},
		{"/tmp/a.csv", "disk"},
	}
	for _, tt := range tests {
		got, err := m.Fetch(context.Background(), tt.loc)
		if err != nil {
			t.Errorf("Fetch(%q): %v", tt.loc, err)
			continue
		}
		if string(got) != tt.want {
			t.Errorf("Fetch(%q) = %q, want %q", tt.loc, got, tt.want)
		}
	}

	if _, err := m.Fetch(context.Background(), "s3://bucket/key"); !errors.Is(err, ErrUnsupportedScheme) {
		t.Errorf("error = %v, want ErrUnsupportedScheme", err)
	}
}
