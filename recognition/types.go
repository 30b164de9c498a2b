package recognition

import "image"

// BoundingBox locates a detected face inside a probe image, in pixels.
type BoundingBox struct {
	X int `json:"x"`
	Y int `json:"y"`
	W int `json:"w"`
	H int `json:"h"`
}

// Rect converts the box to an image.Rectangle.
func (b BoundingBox) Rect() image.Rectangle {
	return image.Rect(b.X, b.Y, b.X+b.W, b.Y+b.H)
}

// Face is one detected face with its embedding vector.
type Face struct {
	Box        BoundingBox
	Embedding  []float32
	Confidence float32
}

// FaceEngine is the external detection/embedding capability. Implementations
// must be safe for use from a single request goroutine at a time.
type FaceEngine interface {
	// DetectAndEmbed finds faces in the image and computes an embedding for
	// each. An image with no faces yields an empty slice, not an error.
	DetectAndEmbed(img image.Image) ([]Face, error)
	// Liveness is an advisory anti-spoofing check on a face crop. The result
	// is carried as metadata on candidates and never gates a match.
	Liveness(crop image.Image) bool
}

// RosterEntry identifies one enrolled student.
type RosterEntry struct {
	Enrollment string
	Name       string
}

// Roster provides the live student roster. Recognition output is filtered
// against it so a stale index never surfaces deleted students.
type Roster interface {
	ListStudents() ([]RosterEntry, error)
}

// Candidate is one match produced for a probe image. Not persisted.
type Candidate struct {
	Enrollment string      `json:"enrollment"`
	Name       string      `json:"name"`
	Distance   float64     `json:"distance"` // cosine distance, rounded to 3 decimals
	Box        BoundingBox `json:"box"`
	IsReal     bool        `json:"is_real"`
}

// PresentStudent is one de-duplicated, liveness-affirmative identity
// recognized in a probe image.
type PresentStudent struct {
	Enrollment string `json:"enrollment"`
	Name       string `json:"name"`
}
