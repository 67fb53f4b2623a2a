package indexer

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog"
	"github.com/seanblong/siteanswer/internal/extract"
	"github.com/seanblong/siteanswer/pkg/models"
)

func init() {
	// Suppress logs during testing
	zerolog.SetGlobalLevel(zerolog.Disabled)
}

// MockFileSystemWalker implements FileSystemWalker for testing
type MockFileSystemWalker struct {
	FilesToProcess []string // List of file paths to process
	WalkError      error    // Error to return from Walk
}

func (m *MockFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	if m.WalkError != nil {
		return m.WalkError
	}
	// The callback accepts a nil Dirent, which stands for a regular file.
	for _, filePath := range m.FilesToProcess {
		if err := options.Callback(filePath, nil); err != nil {
			return err
		}
	}
	return nil
}

// MockFileReader implements FileReader for testing
type MockFileReader struct {
	ReadFileFunc func(filename string) ([]byte, error)
	Files        map[string]string // path -> content
}

func (m *MockFileReader) ReadFile(filename string) ([]byte, error) {
	if m.ReadFileFunc != nil {
		return m.ReadFileFunc(filename)
	}
	if content, exists := m.Files[filename]; exists {
		return []byte(content), nil
	}
	return nil, errors.New("file not found")
}

const indexPage = `<html><body>
<section id="home"><h1>Welcome</h1><p>We are a youth robotics team.</p></section>
<section id="about"><h2>About Us</h2><p>Short.</p></section>
<section id="robot"><h2>Robot</h2><p>Our robot uses two motors.</p></section>
</body></html>`

const aboutPage = `<html><body>
<section id="about"><h2>About the Team</h2><p>We are eight students who meet twice a week to build and code.</p></section>
</body></html>`

func TestIndexer_Run(t *testing.T) {
	tests := []struct {
		name       string
		files      map[string]string
		walk       []string
		walkErr    error
		wantIDs    []string
		wantHrefs  map[string]string
		wantTitles map[string]string
		wantErr    bool
	}{
		{
			name:      "single page keeps section order and drops empty sections",
			files:     map[string]string{"/site/index.html": indexPage},
			walk:      []string{"/site/index.html"},
			wantIDs:   []string{"home", "about", "robot"},
			wantHrefs: map[string]string{"home": "#home", "robot": "#robot"},
		},
		{
			name: "longest section text wins across pages",
			files: map[string]string{
				"/site/index.html":       indexPage,
				"/site/about/index.html": aboutPage,
			},
			walk:       []string{"/site/about/index.html", "/site/index.html"},
			wantIDs:    []string{"home", "about", "robot"},
			wantHrefs:  map[string]string{"about": "/about/index.html#about", "home": "#home"},
			wantTitles: map[string]string{"about": "About the Team"},
		},
		{
			name:    "non-page files are ignored",
			files:   map[string]string{"/site/index.html": indexPage},
			walk:    []string{"/site/app.js", "/site/logo.png", "/site/index.html"},
			wantIDs: []string{"home", "about", "robot"},
		},
		{
			name:    "unreadable page is skipped",
			files:   map[string]string{},
			walk:    []string{"/site/missing.html"},
			wantIDs: []string{},
		},
		{
			name:    "walk error",
			walkErr: errors.New("walk failed"),
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ix := NewWithDependencies("/site", extract.New(nil),
				&MockFileSystemWalker{FilesToProcess: tt.walk, WalkError: tt.walkErr},
				&MockFileReader{Files: tt.files})

			chunks, err := ix.Run(context.Background())
			if (err != nil) != tt.wantErr {
				t.Fatalf("Run() error = %v, wantErr %v", err, tt.wantErr)
			}
			if tt.wantErr {
				return
			}

			ids := make([]string, 0, len(chunks))
			byID := map[string]models.Chunk{}
			for _, c := range chunks {
				ids = append(ids, c.ID)
				byID[c.ID] = c
			}
			if !reflect.DeepEqual(ids, tt.wantIDs) {
				t.Errorf("Expected ids %v, got %v", tt.wantIDs, ids)
			}
			for id, href := range tt.wantHrefs {
				if byID[id].Href != href {
					t.Errorf("Expected %s href %q, got %q", id, href, byID[id].Href)
				}
			}
			for id, title := range tt.wantTitles {
				if byID[id].Title != title {
					t.Errorf("Expected %s title %q, got %q", id, title, byID[id].Title)
				}
			}
		})
	}
}

func TestIndexer_RunOnDisk(t *testing.T) {
	root := t.TempDir()
	if err := os.WriteFile(filepath.Join(root, "index.html"), []byte(indexPage), 0644); err != nil {
		t.Fatal(err)
	}
	skipped := filepath.Join(root, "node_modules", "pkg")
	if err := os.MkdirAll(skipped, 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(skipped, "index.html"), []byte(aboutPage), 0644); err != nil {
		t.Fatal(err)
	}

	chunks, err := New(root, nil).Run(context.Background())
	if err != nil {
		t.Fatalf("Run failed: %v", err)
	}
	for _, c := range chunks {
		if c.ID == "about" && c.Title != "About Us" {
			t.Errorf("Expected node_modules to be skipped, got about title %q", c.Title)
		}
	}
	if len(chunks) != 3 {
		t.Errorf("Expected 3 chunks, got %d", len(chunks))
	}
}

func TestWriteAndLoadChunks(t *testing.T) {
	chunks := []models.Chunk{{ID: "home", Title: "Welcome", Text: "We build robots.", Href: "#home"}}

	var buf bytes.Buffer
	if err := WriteJSON(&buf, chunks); err != nil {
		t.Fatalf("WriteJSON failed: %v", err)
	}
	path := filepath.Join(t.TempDir(), "chunks.json")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatal(err)
	}

	got, err := LoadFile(path)
	if err != nil {
		t.Fatalf("LoadFile failed: %v", err)
	}
	if !reflect.DeepEqual(got, chunks) {
		t.Errorf("Expected %v, got %v", chunks, got)
	}

	buf.Reset()
	if err := WriteJSON(&buf, nil); err != nil {
		t.Fatal(err)
	}
	if buf.String() != "[]\n" {
		t.Errorf("Expected empty array for nil chunks, got %q", buf.String())
	}
}

func TestLoadFileErrors(t *testing.T) {
	if _, err := LoadFile(filepath.Join(t.TempDir(), "missing.json")); err == nil {
		t.Error("Expected error for missing file")
	}
	bad := filepath.Join(t.TempDir(), "bad.json")
	if err := os.WriteFile(bad, []byte("{"), 0644); err != nil {
		t.Fatal(err)
	}
	if _, err := LoadFile(bad); err == nil {
		t.Error("Expected error for invalid json")
	}
}

func TestUtilityFunctions(t *testing.T) {
	pages := map[string]bool{"a.html": true, "B.HTM": true, "a.js": false, "index": false}
	for p, want := range pages {
		if got := isPage(p); got != want {
			t.Errorf("isPage(%q) = %v, want %v", p, got, want)
		}
	}
	dirs := map[string]bool{"/site/node_modules": true, "/site/.git": true, "/site/team": false}
	for d, want := range dirs {
		if got := shouldSkipDir(d); got != want {
			t.Errorf("shouldSkipDir(%q) = %v, want %v", d, got, want)
		}
	}
	if got := pageHref("index.html", "robot"); got != "#robot" {
		t.Errorf("Unexpected root href %q", got)
	}
	if got := pageHref(filepath.Join("team", "index.html"), "about"); got != "/team/index.html#about" {
		t.Errorf("Unexpected page href %q", got)
	}
}

// Test interface compliance
func TestInterfaceCompliance(t *testing.T) {
	var _ FileSystemWalker = &MockFileSystemWalker{}
	var _ FileReader = &MockFileReader{}
}
