package recognition

import (
	"encoding/gob"
	"errors"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/coder/hnsw"
)

// maxNeighbors is the HNSW graph's M parameter.
const maxNeighbors = 16

// ErrIndexNotLoaded is returned by Search when no index data is in memory.
var ErrIndexNotLoaded = errors.New("index not loaded")

// IndexEntry maps one indexed enrollment image to its embedding. Path is
// relative to the training root with forward slashes, so its first segment is
// the identity's directory name.
type IndexEntry struct {
	ID        int64
	Path      string
	Embedding []float32
}

// Match is one nearest-neighbor result for a query embedding.
type Match struct {
	Path     string
	Distance float64
}

// Index is the file-backed embedding index. The artifact on disk is the
// gob-encoded entry list; the HNSW search graph is rebuilt in memory when the
// artifact is loaded. The artifact is a cache: the image store remains the
// source of truth and the index is discarded wholesale on every rebuild.
type Index struct {
	path string

	mu         sync.RWMutex
	graph      *hnsw.Graph[int64]
	entries    map[int64]*IndexEntry
	loadedAt   time.Time // artifact mtime at load, for staleness detection
	loadedSize int64     // artifact size at load; catches rewrites within mtime resolution
}

// NewIndex creates an index handle for the artifact at path. Nothing is
// loaded until Load or Build is called.
func NewIndex(path string) *Index {
	return &Index{
		path:    path,
		entries: make(map[int64]*IndexEntry),
	}
}

// Path returns the artifact path.
func (ix *Index) Path() string {
	return ix.path
}

// Exists reports whether the artifact file is present on disk. An absent
// artifact is the normal "untrained" state, not an error.
func (ix *Index) Exists() bool {
	_, err := os.Stat(ix.path)
	return err == nil
}

// Delete removes the artifact file and clears any in-memory state. A missing
// file is not an error.
func (ix *Index) Delete() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	ix.graph = nil
	ix.entries = make(map[int64]*IndexEntry)
	ix.loadedAt = time.Time{}
	ix.loadedSize = 0

	if err := os.Remove(ix.path); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to delete index artifact '%s': %w", ix.path, err)
	}
	return nil
}

// Build replaces the in-memory index with the given entries. Entries with
// empty embeddings are skipped.
func (ix *Index) Build(entries []IndexEntry) {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.buildLocked(entries)
}

func (ix *Index) buildLocked(entries []IndexEntry) {
	g := hnsw.NewGraph[int64]()
	g.M = maxNeighbors
	g.Ml = 1.0 / float64(maxNeighbors)
	g.Distance = hnsw.CosineDistance

	ix.entries = make(map[int64]*IndexEntry, len(entries))
	for i := range entries {
		entry := &entries[i]
		if len(entry.Embedding) == 0 {
			continue
		}
		g.Add(hnsw.MakeNode(entry.ID, entry.Embedding))
		ix.entries[entry.ID] = entry
	}
	ix.graph = g
}

// Save writes the in-memory entries to a temporary file next to the artifact
// and renames it into place, so a concurrent reader never observes a partial
// artifact and overlapping writers end with one writer's complete output.
func (ix *Index) Save() error {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	entries := make([]IndexEntry, 0, len(ix.entries))
	for _, entry := range ix.entries {
		entries = append(entries, *entry)
	}

	tmp, err := os.CreateTemp(filepath.Dir(ix.path), filepath.Base(ix.path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary index file: %w", err)
	}
	tmpPath := tmp.Name()

	if err := gob.NewEncoder(tmp).Encode(entries); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to encode index entries: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close temporary index file: %w", err)
	}

	if err := os.Rename(tmpPath, ix.path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to move index artifact into place: %w", err)
	}
	return nil
}

// Load reads the artifact and rebuilds the search graph in memory.
func (ix *Index) Load() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()

	info, err := os.Stat(ix.path)
	if err != nil {
		return fmt.Errorf("failed to stat index artifact '%s': %w", ix.path, err)
	}

	f, err := os.Open(ix.path)
	if err != nil {
		return fmt.Errorf("failed to open index artifact '%s': %w", ix.path, err)
	}
	defer f.Close()

	var entries []IndexEntry
	if err := gob.NewDecoder(f).Decode(&entries); err != nil {
		return fmt.Errorf("failed to decode index artifact '%s': %w", ix.path, err)
	}

	ix.buildLocked(entries)
	ix.loadedAt = info.ModTime()
	ix.loadedSize = info.Size()
	return nil
}

// EnsureLoaded loads (or reloads) the artifact when the in-memory state is
// missing or the file has changed since the last load.
func (ix *Index) EnsureLoaded() error {
	info, err := os.Stat(ix.path)
	if err != nil {
		return fmt.Errorf("failed to stat index artifact '%s': %w", ix.path, err)
	}

	ix.mu.RLock()
	current := ix.graph != nil &&
		info.ModTime().Equal(ix.loadedAt) &&
		info.Size() == ix.loadedSize
	ix.mu.RUnlock()
	if current {
		return nil
	}
	return ix.Load()
}

// Search returns the k nearest indexed images to the query embedding, with
// exact cosine distances recomputed from the stored vectors.
func (ix *Index) Search(query []float32, k int) ([]Match, error) {
	ix.mu.RLock()
	defer ix.mu.RUnlock()

	if ix.graph == nil {
		return nil, ErrIndexNotLoaded
	}

	neighbors := ix.graph.Search(query, k)
	matches := make([]Match, 0, len(neighbors))
	for _, n := range neighbors {
		entry, ok := ix.entries[n.Key]
		if !ok || len(entry.Embedding) == 0 {
			continue
		}
		matches = append(matches, Match{
			Path:     entry.Path,
			Distance: CosineDistance(query, entry.Embedding),
		})
	}
	return matches, nil
}

// Count returns the number of indexed entries in memory.
func (ix *Index) Count() int {
	ix.mu.RLock()
	defer ix.mu.RUnlock()
	return len(ix.entries)
}

// CosineDistance computes the cosine distance between two vectors: 0 for
// identical direction, 2 for opposite. Invalid input yields the maximum.
func CosineDistance(a, b []float32) float64 {
	if len(a) != len(b) || len(a) == 0 {
		return 2.0
	}

	var dotProduct, normA, normB float64
	for i := range a {
		dotProduct += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 2.0
	}

	similarity := dotProduct / (math.Sqrt(normA) * math.Sqrt(normB))
	if similarity > 1 {
		similarity = 1
	}
	if similarity < -1 {
		similarity = -1
	}
	return 1 - similarity
}
