package recognition

import (
	"fmt"
	"io"
	"log"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/facette/natsort"
)

// ImageStore manages the enrollment corpus on disk: one directory per student
// identity under a single training root, images named by sequence number.
// Captured images occupy 1..rawCount, synthetic ones the range above it.
type ImageStore struct {
	root string // absolute path to the training root
}

// NewImageStore creates the training root if needed and returns a store
// rooted there.
func NewImageStore(root string) (*ImageStore, error) {
	absRoot, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("invalid training root '%s': %w", root, err)
	}
	if err := os.MkdirAll(absRoot, 0755); err != nil {
		return nil, fmt.Errorf("failed to create training root '%s': %w", absRoot, err)
	}
	log.Printf("store: initialized image store at %s", absRoot)
	return &ImageStore{root: absRoot}, nil
}

// Root returns the absolute training root path.
func (s *ImageStore) Root() string {
	return s.root
}

// IdentityDir resolves the directory for an identity, rejecting names that
// would escape the training root.
func (s *ImageStore) IdentityDir(identity string) (string, error) {
	if identity == "" || strings.ContainsAny(identity, `/\`) || identity != filepath.Clean(identity) {
		return "", fmt.Errorf("invalid identity '%s'", identity)
	}
	dir := filepath.Join(s.root, identity)
	if !strings.HasPrefix(filepath.Clean(dir), s.root) {
		return "", fmt.Errorf("identity '%s' resolves outside training root", identity)
	}
	return dir, nil
}

// EnsureIdentityDir creates the identity's directory if it does not exist.
func (s *ImageStore) EnsureIdentityDir(identity string) (string, error) {
	dir, err := s.IdentityDir(identity)
	if err != nil {
		return "", err
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create identity directory '%s': %w", dir, err)
	}
	return dir, nil
}

// ImagePath returns the path of the image with the given sequence number.
func (s *ImageStore) ImagePath(identity string, seq int) (string, error) {
	dir, err := s.IdentityDir(identity)
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, fmt.Sprintf("%d.jpg", seq)), nil
}

// SaveCapture stores a raw enrollment capture under the given sequence number.
func (s *ImageStore) SaveCapture(identity string, seq int, data io.Reader) (string, error) {
	if seq < 1 {
		return "", fmt.Errorf("invalid capture sequence %d", seq)
	}
	if _, err := s.EnsureIdentityDir(identity); err != nil {
		return "", err
	}
	path, err := s.ImagePath(identity, seq)
	if err != nil {
		return "", err
	}

	outFile, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("failed to create capture file '%s': %w", path, err)
	}

	if _, err := io.Copy(outFile, data); err != nil {
		outFile.Close()
		os.Remove(path)
		return "", fmt.Errorf("failed to write capture '%s': %w", path, err)
	}
	if err := outFile.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("failed to finalize capture '%s': %w", path, err)
	}

	log.Printf("store: saved capture %d for %s", seq, identity)
	return path, nil
}

// ListImages returns the image filenames of an identity in natural order
// (1.jpg, 2.jpg, ..., 10.jpg). Non-image files are skipped.
func (s *ImageStore) ListImages(identity string) ([]string, error) {
	dir, err := s.IdentityDir(identity)
	if err != nil {
		return nil, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("failed to read identity directory '%s': %w", dir, err)
	}
	names := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() || !isRasterImage(entry.Name()) {
			continue
		}
		names = append(names, entry.Name())
	}
	natsort.Sort(names)
	return names, nil
}

// CountImages returns the number of images stored for an identity.
func (s *ImageStore) CountImages(identity string) (int, error) {
	names, err := s.ListImages(identity)
	if err != nil {
		return 0, err
	}
	return len(names), nil
}

// CountFiles returns the number of regular files stored for an identity,
// whether or not they are recognizable images.
func (s *ImageStore) CountFiles(identity string) (int, error) {
	dir, err := s.IdentityDir(identity)
	if err != nil {
		return 0, err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return 0, fmt.Errorf("failed to read identity directory '%s': %w", dir, err)
	}
	count := 0
	for _, entry := range entries {
		if !entry.IsDir() {
			count++
		}
	}
	return count, nil
}

// IdentityDirs returns the names of all identity directories under the root.
func (s *ImageStore) IdentityDirs() ([]string, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		return nil, fmt.Errorf("failed to read training root '%s': %w", s.root, err)
	}
	dirs := make([]string, 0, len(entries))
	for _, entry := range entries {
		if entry.IsDir() {
			dirs = append(dirs, entry.Name())
		}
	}
	natsort.Sort(dirs)
	return dirs, nil
}

// RemoveIdentity deletes an identity's directory and everything in it.
func (s *ImageStore) RemoveIdentity(identity string) error {
	dir, err := s.IdentityDir(identity)
	if err != nil {
		return err
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("failed to remove identity directory '%s': %w", dir, err)
	}
	log.Printf("store: removed identity %s", identity)
	return nil
}

// RemoveAboveSequence deletes every image whose numeric stem exceeds maxSeq.
// Synthetic images are fully derived, so this is always safe; files whose
// names are not plain sequence numbers are left alone.
func (s *ImageStore) RemoveAboveSequence(identity string, maxSeq int) error {
	dir, err := s.IdentityDir(identity)
	if err != nil {
		return err
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return fmt.Errorf("failed to read identity directory '%s': %w", dir, err)
	}
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		stem := strings.TrimSuffix(entry.Name(), filepath.Ext(entry.Name()))
		seq, err := strconv.Atoi(stem)
		if err != nil {
			continue
		}
		if seq > maxSeq {
			if err := os.Remove(filepath.Join(dir, entry.Name())); err != nil {
				return fmt.Errorf("failed to remove synthetic image '%s': %w", entry.Name(), err)
			}
		}
	}
	return nil
}

var rasterExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

func isRasterImage(filename string) bool {
	return rasterExtensions[strings.ToLower(filepath.Ext(filename))]
}
