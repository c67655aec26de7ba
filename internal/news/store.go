// Package news reads and writes scraped news snapshots and ranks them for retrieval.
package news

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

const (
	metadataFile    = "metadata.json"
	defaultSource   = "Financial News"
	digestFiles     = 5
	digestHeadlines = 20
	digestSnippets  = 10
	snippetsPerFile = 3
)

// Snapshot is one scraped page.
type Snapshot struct {
	SourceURL string   `json:"source_url"`
	Source    string   `json:"source,omitempty"`
	Timestamp string   `json:"timestamp"`
	Headlines []string `json:"headlines"`
	Snippets  []string `json:"snippets"`
	FullText  string   `json:"full_text"`
}

// SourceName returns the best label for where the snapshot came from.
func (s Snapshot) SourceName() string {
	if s.Source != "" {
		return s.Source
	}
	if s.SourceURL != "" {
		return s.SourceURL
	}
	return defaultSource
}

// Metadata summarizes the latest scrape.
type Metadata struct {
	LastScrape      string   `json:"last_scrape"`
	LatestHeadlines []string `json:"latest_headlines"`
}

// Digest is the headline feed shown on the live news page.
type Digest struct {
	Headlines  []string
	Snippets   []string
	LastScrape string
}

// Document is a retrievable piece of news text with its origin.
type Document struct {
	Content   string
	Source    string
	Timestamp string
	Kind      string
}

// Store is a directory of snapshot files.
type Store struct {
	dir string
	now func() time.Time
}

// NewStore returns a store rooted at dir.
func NewStore(dir string) *Store {
	return &Store{dir: filepath.Clean(dir), now: time.Now}
}

// Dir returns the snapshot directory.
func (s *Store) Dir() string {
	return s.dir
}

// ReadMetadata loads metadata.json. A missing file returns nil without error.
func (s *Store) ReadMetadata() (*Metadata, error) {
	data, err := os.ReadFile(filepath.Join(s.dir, metadataFile))
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read metadata: %w", err)
	}
	var meta Metadata
	if err := json.Unmarshal(data, &meta); err != nil {
		return nil, fmt.Errorf("decode metadata: %w", err)
	}
	return &meta, nil
}

// Latest returns up to limit snapshots, newest file first. Unreadable files are skipped.
func (s *Store) Latest(limit int) ([]Snapshot, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read news dir: %w", err)
	}

	type candidate struct {
		path    string
		modTime time.Time
	}
	files := make([]candidate, 0, len(entries))
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasSuffix(name, ".json") || name == metadataFile {
			continue
		}
		info, err := entry.Info()
		if err != nil {
			continue
		}
		files = append(files, candidate{path: filepath.Join(s.dir, name), modTime: info.ModTime()})
	}
	sort.SliceStable(files, func(i, j int) bool {
		if files[i].modTime.Equal(files[j].modTime) {
			return files[i].path < files[j].path
		}
		return files[i].modTime.After(files[j].modTime)
	})
	if limit > 0 && len(files) > limit {
		files = files[:limit]
	}

	snapshots := make([]Snapshot, 0, len(files))
	for _, f := range files {
		data, err := os.ReadFile(f.path)
		if err != nil {
			continue
		}
		var snap Snapshot
		if err := json.Unmarshal(data, &snap); err != nil {
			continue
		}
		snapshots = append(snapshots, snap)
	}
	return snapshots, nil
}

// Digest returns the live headline feed: metadata headlines when present, otherwise
// deduplicated headlines and a few snippets from the newest snapshots.
func (s *Store) Digest() (Digest, error) {
	meta, err := s.ReadMetadata()
	if err == nil && meta != nil && len(meta.LatestHeadlines) > 0 {
		return Digest{Headlines: meta.LatestHeadlines, LastScrape: meta.LastScrape}, nil
	}

	snapshots, err := s.Latest(digestFiles)
	if err != nil {
		return Digest{}, err
	}
	digest := Digest{LastScrape: s.now().UTC().Format(time.RFC3339)}
	seen := map[string]struct{}{}
	for _, snap := range snapshots {
		for _, headline := range snap.Headlines {
			headline = strings.TrimSpace(headline)
			if headline == "" {
				continue
			}
			if _, ok := seen[headline]; ok {
				continue
			}
			seen[headline] = struct{}{}
			digest.Headlines = append(digest.Headlines, headline)
		}
		n := min(len(snap.Snippets), snippetsPerFile)
		digest.Snippets = append(digest.Snippets, snap.Snippets[:n]...)
	}
	if len(digest.Headlines) > digestHeadlines {
		digest.Headlines = digest.Headlines[:digestHeadlines]
	}
	if len(digest.Snippets) > digestSnippets {
		digest.Snippets = digest.Snippets[:digestSnippets]
	}
	return digest, nil
}

// Documents flattens the newest limit snapshots into headline and snippet documents.
func (s *Store) Documents(limit int) ([]Document, error) {
	snapshots, err := s.Latest(limit)
	if err != nil {
		return nil, err
	}
	var docs []Document
	for _, snap := range snapshots {
		timestamp := snap.Timestamp
		if timestamp == "" {
			timestamp = s.now().UTC().Format(time.RFC3339)
		}
		source := snap.SourceName()
		for _, headline := range snap.Headlines {
			if text := strings.TrimSpace(headline); text != "" {
				docs = append(docs, Document{Content: "HEADLINE: " + text, Source: source, Timestamp: timestamp, Kind: "headline"})
			}
		}
		for _, snippet := range snap.Snippets {
			if text := strings.TrimSpace(snippet); text != "" {
				docs = append(docs, Document{Content: "NEWS SNIPPET: " + text, Source: source, Timestamp: timestamp, Kind: "snippet"})
			}
		}
	}
	return docs, nil
}

// WriteSnapshot stores snap as news_{index}.json.
func (s *Store) WriteSnapshot(index int, snap Snapshot) error {
	return s.writeJSON(fmt.Sprintf("news_%d.json", index), snap)
}

// WriteMetadata replaces metadata.json.
func (s *Store) WriteMetadata(meta Metadata) error {
	return s.writeJSON(metadataFile, meta)
}

// writeJSON writes through a temp file and rename so readers never see partial files.
func (s *Store) writeJSON(name string, v any) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create news dir: %w", err)
	}
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("encode %s: %w", name, err)
	}
	tmp, err := os.CreateTemp(s.dir, "."+name+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		_ = os.Remove(tmpName)
		return fmt.Errorf("write %s: %w", name, err)
	}
	if err := tmp.Close(); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("close %s: %w", name, err)
	}
	if err := os.Chmod(tmpName, 0o644); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("chmod %s: %w", name, err)
	}
	if err := os.Rename(tmpName, filepath.Join(s.dir, name)); err != nil {
		_ = os.Remove(tmpName)
		return fmt.Errorf("rename %s: %w", name, err)
	}
	return nil
}
