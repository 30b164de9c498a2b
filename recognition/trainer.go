package recognition

import (
	"fmt"
	"log"
	"path/filepath"
	"sync"

	"github.com/disintegration/imaging"
)

// Trainer rebuilds the embedding index from the full enrollment corpus. The
// index is never updated incrementally: every run deletes the artifact first
// and rebuilds from scratch, so the artifact can never drift from the store.
type Trainer struct {
	store  *ImageStore
	engine FaceEngine
	index  *Index

	// serializes the delete+rebuild sequence for the store root so
	// overlapping training requests are last-writer-wins
	mu sync.Mutex
}

// NewTrainer creates a trainer over the given store, engine and index.
func NewTrainer(store *ImageStore, engine FaceEngine, index *Index) *Trainer {
	return &Trainer{store: store, engine: engine, index: index}
}

// Train rebuilds the index artifact. Returns (ok, message) where message is
// user-displayable. The artifact is deleted up front, so after a failed run
// the system is in the normal untrained state, not a corrupted one.
func (t *Trainer) Train() (bool, string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if err := t.index.Delete(); err != nil {
		return false, fmt.Sprintf("failed to remove previous index: %v", err)
	}

	identities, err := t.store.IdentityDirs()
	if err != nil {
		return false, fmt.Sprintf("failed to enumerate student directories: %v", err)
	}
	if len(identities) == 0 {
		return false, "No student images found for training."
	}

	totalFiles, totalImages := 0, 0
	for _, identity := range identities {
		files, err := t.store.CountFiles(identity)
		if err != nil {
			return false, fmt.Sprintf("failed to inspect directory for '%s': %v", identity, err)
		}
		images, err := t.store.CountImages(identity)
		if err != nil {
			return false, fmt.Sprintf("failed to inspect directory for '%s': %v", identity, err)
		}
		totalFiles += files
		totalImages += images
	}
	if totalFiles == 0 {
		return false, "Student folders are empty, cannot train."
	}
	if totalImages == 0 {
		return false, "Could not find valid sample image to initiate training."
	}

	entries, err := t.embedCorpus(identities)
	if err != nil {
		return false, fmt.Sprintf("training failed: %v", err)
	}

	t.index.Build(entries)
	if err := t.index.Save(); err != nil {
		return false, fmt.Sprintf("training failed: %v", err)
	}

	log.Printf("trainer: rebuilt index with %d embeddings from %d students", len(entries), len(identities))
	return true, "Model (re)trained successfully!"
}

// embedCorpus walks every identity directory and embeds each enrollment
// image. Images where the engine finds no face are skipped; engine faults
// abort the build.
func (t *Trainer) embedCorpus(identities []string) ([]IndexEntry, error) {
	var entries []IndexEntry
	var nextID int64

	for _, identity := range identities {
		names, err := t.store.ListImages(identity)
		if err != nil {
			return nil, err
		}
		dir, err := t.store.IdentityDir(identity)
		if err != nil {
			return nil, err
		}

		for _, name := range names {
			path := filepath.Join(dir, name)
			img, err := imaging.Open(path)
			if err != nil {
				log.Printf("trainer: skipping unreadable image %s: %v", path, err)
				continue
			}

			faces, err := t.engine.DetectAndEmbed(img)
			if err != nil {
				return nil, fmt.Errorf("embedding failed for '%s': %w", path, err)
			}
			if len(faces) == 0 {
				log.Printf("trainer: no face found in %s, skipping", path)
				continue
			}

			// enrollment images hold a single subject; take the top face
			entries = append(entries, IndexEntry{
				ID:        nextID,
				Path:      filepath.ToSlash(filepath.Join(identity, name)),
				Embedding: faces[0].Embedding,
			})
			nextID++
		}
	}
	return entries, nil
}
