// Package indexer walks a built site and collects section chunks from its
// HTML pages.
package indexer

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"runtime"
	"strings"
	"sync"

	"github.com/karrick/godirwalk"
	"github.com/rs/zerolog/log"
	"github.com/seanblong/siteanswer/internal/extract"
	"github.com/seanblong/siteanswer/pkg/models"
)

// FileSystemWalker defines the interface for walking directories
type FileSystemWalker interface {
	Walk(root string, options *godirwalk.Options) error
}

// FileReader defines the interface for reading files
type FileReader interface {
	ReadFile(filename string) ([]byte, error)
}

// DefaultFileSystemWalker implements FileSystemWalker using godirwalk
type DefaultFileSystemWalker struct{}

func (d *DefaultFileSystemWalker) Walk(root string, options *godirwalk.Options) error {
	return godirwalk.Walk(root, options)
}

// DefaultFileReader implements FileReader using os
type DefaultFileReader struct{}

func (d *DefaultFileReader) ReadFile(filename string) ([]byte, error) {
	return os.ReadFile(filename)
}

// Indexer extracts chunks from every page under SiteRoot.
type Indexer struct {
	SiteRoot   string
	Extractor  *extract.Extractor
	Walker     FileSystemWalker
	FileReader FileReader
}

// New creates a new Indexer for the given section ids.
func New(siteRoot string, sections []string) *Indexer {
	return &Indexer{
		SiteRoot:   siteRoot,
		Extractor:  extract.New(sections),
		Walker:     &DefaultFileSystemWalker{},
		FileReader: &DefaultFileReader{},
	}
}

// NewWithDependencies creates a new Indexer instance with custom dependencies for testing
func NewWithDependencies(siteRoot string, ex *extract.Extractor, walker FileSystemWalker, fileReader FileReader) *Indexer {
	return &Indexer{
		SiteRoot:   siteRoot,
		Extractor:  ex,
		Walker:     walker,
		FileReader: fileReader,
	}
}

// workItem represents a page to be processed
type workItem struct {
	path    string
	content []byte
}

type pageChunk struct {
	page  string
	chunk models.Chunk
}

// processWorkItem extracts the non-empty sections of a single page.
func (ix *Indexer) processWorkItem(item workItem) ([]pageChunk, error) {
	chunks, err := ix.Extractor.Extract(bytes.NewReader(item.content))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", item.path, err)
	}
	page := rel(ix.SiteRoot, item.path)
	out := make([]pageChunk, 0, len(chunks))
	for _, c := range chunks {
		if strings.TrimSpace(c.Text) == "" {
			continue
		}
		c.Href = pageHref(page, c.ID)
		out = append(out, pageChunk{page: page, chunk: c})
	}
	log.Debug().Str("page", page).Int("sections", len(out)).Msg("extracted page")
	return out, nil
}

// Run walks SiteRoot and returns one chunk per section id, in section
// order. When several pages carry the same section, the longest text wins.
func (ix *Indexer) Run(ctx context.Context) ([]models.Chunk, error) {
	numWorkers := runtime.NumCPU()
	if numWorkers > 8 {
		numWorkers = 8
	}

	log.Info().Int("workers", numWorkers).Str("root", ix.SiteRoot).Msg("starting site indexing")

	workChan := make(chan workItem, numWorkers*2)
	resultChan := make(chan []pageChunk, numWorkers*2)
	errorChan := make(chan error, 1)

	var wg sync.WaitGroup
	for i := 0; i < numWorkers; i++ {
		wg.Add(1)
		go func(workerID int) {
			defer wg.Done()
			for item := range workChan {
				found, err := ix.processWorkItem(item)
				if err != nil {
					select {
					case errorChan <- err:
					default:
						log.Error().Err(err).Str("path", item.path).Msg("worker processing error")
					}
					continue
				}
				resultChan <- found
			}
		}(i)
	}

	best := make(map[string]pageChunk)
	done := make(chan struct{})
	go func() {
		defer close(done)
		for found := range resultChan {
			for _, pc := range found {
				if cur, ok := best[pc.chunk.ID]; !ok || better(pc, cur) {
					best[pc.chunk.ID] = pc
				}
			}
		}
	}()

	walkErr := ix.Walker.Walk(ix.SiteRoot, &godirwalk.Options{
		Unsorted: true,
		Callback: func(path string, de *godirwalk.Dirent) error {
			// de is nil when driven by a test walker
			if de != nil && de.IsDir() {
				if shouldSkipDir(path) {
					return godirwalk.SkipThis
				}
				return nil
			}
			if !isPage(path) {
				return nil
			}

			b, err := ix.FileReader.ReadFile(path)
			if err != nil {
				log.Warn().Err(err).Str("path", path).Msg("failed to read file")
				return nil
			}

			select {
			case workChan <- workItem{path: path, content: b}:
			case <-ctx.Done():
				return ctx.Err()
			}
			return nil
		},
	})

	close(workChan)
	wg.Wait()
	close(resultChan)
	<-done

	select {
	case err := <-errorChan:
		if err != nil {
			return nil, err
		}
	default:
	}
	if walkErr != nil {
		return nil, walkErr
	}

	chunks := make([]models.Chunk, 0, len(best))
	for _, id := range ix.Extractor.Sections {
		if pc, ok := best[id]; ok {
			chunks = append(chunks, pc.chunk)
		}
	}
	log.Info().Int("chunks", len(chunks)).Msg("site indexing finished")
	return chunks, nil
}

// better orders candidates for one section: longer text, then page path.
func better(a, b pageChunk) bool {
	if len(a.chunk.Text) != len(b.chunk.Text) {
		return len(a.chunk.Text) > len(b.chunk.Text)
	}
	return a.page < b.page
}

// WriteJSON encodes chunks as an indented JSON array.
func WriteJSON(w io.Writer, chunks []models.Chunk) error {
	if chunks == nil {
		chunks = []models.Chunk{}
	}
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(chunks)
}

// LoadFile reads a chunks file written by WriteJSON.
func LoadFile(path string) ([]models.Chunk, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var chunks []models.Chunk
	if err := json.Unmarshal(b, &chunks); err != nil {
		return nil, fmt.Errorf("decode chunks %s: %w", path, err)
	}
	return chunks, nil
}

// pageHref links a section of the root page by fragment and any other page
// by path and fragment.
func pageHref(page, id string) string {
	page = filepath.ToSlash(page)
	if page == "index.html" {
		return "#" + id
	}
	return "/" + page + "#" + id
}

func isPage(path string) bool {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".html", ".htm":
		return true
	}
	return false
}

// shouldSkipDir returns true for directories that never hold site pages.
func shouldSkipDir(path string) bool {
	switch strings.ToLower(filepath.Base(path)) {
	case "node_modules", ".git", ".cache", "assets":
		return true
	}
	return false
}

func rel(root, p string) string {
	r, err := filepath.Rel(root, p)
	if err != nil {
		return p
	}
	return r
}
