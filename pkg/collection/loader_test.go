package collection

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync/atomic"
	"testing"
	"time"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name    string
		doc     string
		wantErr error
	}{
		{name: "minimal", doc: `{"item": []}`},
		{name: "exec as string", doc: `{"item": [{"name": "a", "request": {"method": "GET"}, "event": [{"listen": "test", "script": {"exec": "a\nb"}}]}]}`},
		{name: "invalid json", doc: `{"item": [`, wantErr: ErrMalformed},
		{name: "missing item", doc: `{"info": {"name": "x"}}`, wantErr: ErrMalformed},
		{name: "item not array", doc: `{"item": "nope"}`, wantErr: ErrMalformed},
		{name: "exec wrong type", doc: `{"item": [{"name": "a", "event": [{"listen": "test", "script": {"exec": 5}}]}]}`, wantErr: ErrMalformed},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := Parse([]byte(tt.doc))
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Parse() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Parse() unexpected error: %v", err)
			}
			if c.Items == nil {
				t.Error("Items should never be nil after Parse")
			}
		})
	}
}

func TestParse_Normalizes(t *testing.T) {
	c := mustParse(t, `{"item": [{
  "name": "a",
  "request": {"method": "GET", "url": {"raw": "https://x/a"}},
  "event": [
    {"listen": "test", "script": {"exec": ["one"]}},
    {"listen": "prerequest", "script": {"exec": []}},
    {"listen": "test", "script": {"exec": "two\nthree"}}
  ]
}]}`)

	it := c.Items[0]
	if string(it.Request.URL) != `{"raw": "https://x/a"}` {
		t.Errorf("URL = %s, want the object kept verbatim", it.Request.URL)
	}
	if it.Request.Header == nil {
		t.Error("Header should default to an empty slice")
	}

	tests := 0
	for _, ev := range it.Events {
		if ev.Listen == ListenTest {
			tests++
		}
	}
	if tests != 1 {
		t.Fatalf("test events = %d, want 1", tests)
	}

	ev := testEvent(it)
	if !equalLines(ev.Script.Exec, Lines{"one", "two", "three"}) {
		t.Errorf("merged exec = %q", ev.Script.Exec)
	}
	if ev.Script.Type != DefaultScriptType {
		t.Errorf("Type = %q, want %q", ev.Script.Type, DefaultScriptType)
	}
}

func TestSaveAndLoadFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "c.json")

	c := mustParse(t, twoItemDoc)
	NewMutator(testBlocks, ModeAppend, nil).Apply(c)
	if err := Save(c, path); err != nil {
		t.Fatalf("Save() error = %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if !strings.Contains(string(data), "\n    \"item\"") {
		t.Errorf("expected four-space indentation, got:\n%s", data)
	}
	if strings.Contains(string(data), `\u0026`) {
		t.Error("HTML characters should not be escaped")
	}

	loaded, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile() error = %v", err)
	}
	if got, want := snapshotExec(loaded), snapshotExec(c); len(got) != len(want) {
		t.Errorf("round trip lost events: %v vs %v", got, want)
	}
}

func TestLoadFile_NotFound(t *testing.T) {
	_, err := LoadFile(filepath.Join(t.TempDir(), "missing.json"))
	if !errors.Is(err, ErrUnavailable) {
		t.Fatalf("error = %v, want ErrUnavailable", err)
	}
}

func TestLoader_Fetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			w.Write([]byte(twoItemDoc))
		case "/bad-json":
			w.Write([]byte("<html>"))
		default:
			w.WriteHeader(http.StatusNotFound)
		}
	}))
	defer srv.Close()

	l := NewLoader()
	ctx := context.Background()

	c, err := l.Load(ctx, srv.URL+"/ok")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if len(c.Items) != 2 {
		t.Errorf("items = %d, want 2", len(c.Items))
	}

	if _, err := l.Load(ctx, srv.URL+"/missing"); !errors.Is(err, ErrUnavailable) {
		t.Errorf("404 error = %v, want ErrUnavailable", err)
	}
	if _, err := l.Load(ctx, srv.URL+"/bad-json"); !errors.Is(err, ErrMalformed) {
		t.Errorf("bad body error = %v, want ErrMalformed", err)
	}
}

func TestLoader_FetchRetriesServerErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if calls.Add(1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.Write([]byte(twoItemDoc))
	}))
	defer srv.Close()

	l := NewLoader(WithRetries(2, 10*time.Millisecond))
	if _, err := l.Fetch(context.Background(), srv.URL); err != nil {
		t.Fatalf("Fetch() error = %v", err)
	}
	if got := calls.Load(); got != 3 {
		t.Errorf("calls = %d, want 3", got)
	}
}

func TestLoader_FetchDoesNotRetryClientErrors(t *testing.T) {
	var calls atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	l := NewLoader(WithRetries(3, 10*time.Millisecond))
	if _, err := l.Fetch(context.Background(), srv.URL); !errors.Is(err, ErrUnavailable) {
		t.Fatalf("Fetch() error = %v, want ErrUnavailable", err)
	}
	if got := calls.Load(); got != 1 {
		t.Errorf("calls = %d, want 1", got)
	}
}

func TestLoader_EmptySource(t *testing.T) {
	if _, err := NewLoader().Load(context.Background(), ""); !errors.Is(err, ErrUnavailable) {
		t.Errorf("error = %v, want ErrUnavailable", err)
	}
}
