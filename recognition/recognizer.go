package recognition

import (
	"image"
	"log"
	"math"
	"strings"

	"github.com/disintegration/imaging"
)

// Recognizer matches a probe photograph against the embedding index and
// resolves matches to enrolled students. It never returns an error to its
// caller: every fault degrades to empty results, with the cause logged.
type Recognizer struct {
	engine FaceEngine
	index  *Index
	roster Roster
	topK   int
	pad    int
}

// NewRecognizer creates a recognizer. topK is the number of nearest matches
// fetched per detected face; pad the pixel padding applied to face crops
// before the liveness check.
func NewRecognizer(engine FaceEngine, index *Index, roster Roster, topK, pad int) *Recognizer {
	if topK < 1 {
		topK = 1
	}
	return &Recognizer{engine: engine, index: index, roster: roster, topK: topK, pad: pad}
}

// Recognize detects faces in the probe and returns every roster-resolved
// candidate plus the de-duplicated list of students considered present. An
// absent index artifact is the normal untrained state and yields two empty
// slices.
func (r *Recognizer) Recognize(probe image.Image) ([]Candidate, []PresentStudent) {
	candidates := []Candidate{}
	present := []PresentStudent{}

	if !r.index.Exists() {
		log.Printf("recognition: index artifact missing, model not trained yet")
		return candidates, present
	}
	if err := r.index.EnsureLoaded(); err != nil {
		log.Printf("recognition: failed to load index: %v", err)
		return candidates, present
	}

	students, err := r.roster.ListStudents()
	if err != nil {
		log.Printf("recognition: failed to load roster: %v", err)
		return candidates, present
	}
	if len(students) == 0 {
		return candidates, present
	}
	names := make(map[string]string, len(students))
	for _, s := range students {
		names[s.Enrollment] = s.Name
	}

	faces, err := r.engine.DetectAndEmbed(probe)
	if err != nil {
		log.Printf("recognition: detection failed: %v", err)
		return candidates, present
	}

	for _, face := range faces {
		matches, err := r.index.Search(face.Embedding, r.topK)
		if err != nil {
			log.Printf("recognition: index search failed: %v", err)
			continue
		}

		for _, match := range matches {
			enrollment := identityFromPath(match.Path)
			if enrollment == "" {
				continue
			}
			// a stale index may still reference deleted students; they are
			// filtered out so output stays coherent with the live roster
			name, onRoster := names[enrollment]
			if !onRoster {
				continue
			}

			crop, ok := r.cropFace(probe, face.Box)
			if !ok {
				continue
			}
			isReal := r.engine.Liveness(crop)

			candidates = append(candidates, Candidate{
				Enrollment: enrollment,
				Name:       name,
				Distance:   math.Round(match.Distance*1000) / 1000,
				Box:        face.Box,
				IsReal:     isReal,
			})
		}
	}

	seen := make(map[string]bool)
	for _, c := range candidates {
		if !c.IsReal || seen[c.Enrollment] {
			continue
		}
		seen[c.Enrollment] = true
		present = append(present, PresentStudent{Enrollment: c.Enrollment, Name: c.Name})
	}

	return candidates, present
}

// cropFace extracts the padded face region, clamped to image bounds. An empty
// clamped region means the detection was degenerate and the match is skipped.
func (r *Recognizer) cropFace(probe image.Image, box BoundingBox) (image.Image, bool) {
	bounds := probe.Bounds()
	rect := image.Rect(box.X-r.pad, box.Y-r.pad, box.X+box.W+r.pad, box.Y+box.H+r.pad)
	rect = rect.Intersect(bounds)
	if rect.Empty() {
		return nil, false
	}
	return imaging.Crop(probe, rect), true
}

// identityFromPath extracts the enclosing directory name from an index entry
// path ("<identity>/<seq>.jpg").
func identityFromPath(path string) string {
	parts := strings.Split(path, "/")
	if len(parts) < 2 {
		return ""
	}
	return parts[len(parts)-2]
}
