package recognition

import (
	"errors"
	"image"
	"path/filepath"
	"testing"
)

var errDetectorDown = errors.New("detector unavailable")

// scriptedEngine returns a fixed detection result regardless of input.
type scriptedEngine struct {
	faces []Face
	err   error
	live  bool
}

func (e *scriptedEngine) DetectAndEmbed(img image.Image) ([]Face, error) {
	return e.faces, e.err
}

func (e *scriptedEngine) Liveness(crop image.Image) bool { return e.live }

// staticRoster serves a fixed student list.
type staticRoster struct {
	entries []RosterEntry
	err     error
}

func (r *staticRoster) ListStudents() ([]RosterEntry, error) {
	return r.entries, r.err
}

func testProbe() image.Image {
	return image.NewNRGBA(image.Rect(0, 0, 200, 200))
}

func savedTestIndex(t *testing.T) *Index {
	t.Helper()
	ix := NewIndex(filepath.Join(t.TempDir(), "representations.idx"))
	ix.Build(testEntries())
	if err := ix.Save(); err != nil {
		t.Fatalf("Save failed: %v", err)
	}
	return ix
}

func TestRecognizeWithoutArtifact(t *testing.T) {
	ix := NewIndex(filepath.Join(t.TempDir(), "representations.idx"))
	engine := &scriptedEngine{live: true}
	roster := &staticRoster{entries: []RosterEntry{{Enrollment: "alice", Name: "Alice"}}}

	rec := NewRecognizer(engine, ix, roster, 4, 10)
	candidates, present := rec.Recognize(testProbe())

	if candidates == nil || present == nil {
		t.Fatal("Recognize returned nil slices for untrained state")
	}
	if len(candidates) != 0 || len(present) != 0 {
		t.Errorf("Recognize returned %d candidates, %d present for untrained state, want 0, 0",
			len(candidates), len(present))
	}
}

func TestRecognizeTrainedIndexNoFaces(t *testing.T) {
	ix := savedTestIndex(t)
	roster := &staticRoster{entries: []RosterEntry{{Enrollment: "alice", Name: "Alice"}}}

	engine := &scriptedEngine{faces: nil, live: true}
	rec := NewRecognizer(engine, ix, roster, 4, 10)
	candidates, present := rec.Recognize(testProbe())

	if candidates == nil || present == nil {
		t.Fatal("Recognize returned nil slices for a faceless probe")
	}
	if len(candidates) != 0 || len(present) != 0 {
		t.Errorf("Recognize returned %d candidates, %d present for a faceless probe, want 0, 0",
			len(candidates), len(present))
	}
}

func TestRecognizeDetectionFailure(t *testing.T) {
	ix := savedTestIndex(t)
	roster := &staticRoster{entries: []RosterEntry{{Enrollment: "alice", Name: "Alice"}}}

	engine := &scriptedEngine{err: errDetectorDown, live: true}
	rec := NewRecognizer(engine, ix, roster, 4, 10)
	candidates, present := rec.Recognize(testProbe())

	if candidates == nil || present == nil {
		t.Fatal("Recognize returned nil slices on engine failure")
	}
	if len(candidates) != 0 || len(present) != 0 {
		t.Errorf("Recognize returned %d candidates, %d present on engine failure, want 0, 0",
			len(candidates), len(present))
	}
}

func TestRecognizeFiltersByRoster(t *testing.T) {
	ix := savedTestIndex(t)
	face := Face{
		Box:       BoundingBox{X: 40, Y: 40, W: 50, H: 50},
		Embedding: []float32{1, 0, 0}, // exactly alice
	}
	engine := &scriptedEngine{faces: []Face{face}, live: true}

	// bob and carol are indexed but no longer on the roster
	roster := &staticRoster{entries: []RosterEntry{{Enrollment: "alice", Name: "Alice"}}}

	rec := NewRecognizer(engine, ix, roster, 4, 10)
	candidates, present := rec.Recognize(testProbe())

	if len(candidates) == 0 {
		t.Fatal("Recognize returned no candidates")
	}
	for _, c := range candidates {
		if c.Enrollment != "alice" {
			t.Errorf("candidate %q leaked past the roster filter", c.Enrollment)
		}
	}
	if len(present) != 1 || present[0].Enrollment != "alice" {
		t.Errorf("present = %v, want exactly alice", present)
	}
	if present[0].Name != "Alice" {
		t.Errorf("present name = %q, want %q", present[0].Name, "Alice")
	}
}

func TestRecognizeDeduplicatesPresent(t *testing.T) {
	ix := savedTestIndex(t)
	// two detected faces both nearest to alice's images
	faces := []Face{
		{Box: BoundingBox{X: 10, Y: 10, W: 40, H: 40}, Embedding: []float32{1, 0, 0}},
		{Box: BoundingBox{X: 100, Y: 100, W: 40, H: 40}, Embedding: []float32{0.9, 0.1, 0}},
	}
	engine := &scriptedEngine{faces: faces, live: true}
	roster := &staticRoster{entries: []RosterEntry{
		{Enrollment: "alice", Name: "Alice"},
		{Enrollment: "bob", Name: "Bob"},
		{Enrollment: "carol", Name: "Carol"},
	}}

	rec := NewRecognizer(engine, ix, roster, 2, 10)
	candidates, present := rec.Recognize(testProbe())

	if len(candidates) < 2 {
		t.Fatalf("got %d candidates, want at least 2", len(candidates))
	}
	seen := make(map[string]int)
	for _, p := range present {
		seen[p.Enrollment]++
	}
	for enrollment, count := range seen {
		if count > 1 {
			t.Errorf("%q appears %d times in present list", enrollment, count)
		}
	}
}

func TestRecognizeLivenessGatesPresentOnly(t *testing.T) {
	ix := savedTestIndex(t)
	face := Face{
		Box:       BoundingBox{X: 40, Y: 40, W: 50, H: 50},
		Embedding: []float32{1, 0, 0},
	}
	engine := &scriptedEngine{faces: []Face{face}, live: false}
	roster := &staticRoster{entries: []RosterEntry{{Enrollment: "alice", Name: "Alice"}}}

	rec := NewRecognizer(engine, ix, roster, 4, 10)
	candidates, present := rec.Recognize(testProbe())

	if len(candidates) == 0 {
		t.Fatal("suspected spoof must still appear as a candidate")
	}
	for _, c := range candidates {
		if c.IsReal {
			t.Errorf("candidate %q flagged real by a non-live engine", c.Enrollment)
		}
	}
	if len(present) != 0 {
		t.Errorf("present = %v, want empty when liveness fails", present)
	}
}

func TestRecognizeRoundsDistances(t *testing.T) {
	ix := savedTestIndex(t)
	face := Face{
		Box:       BoundingBox{X: 40, Y: 40, W: 50, H: 50},
		Embedding: []float32{0.7, 0.3, 0.1},
	}
	engine := &scriptedEngine{faces: []Face{face}, live: true}
	roster := &staticRoster{entries: []RosterEntry{
		{Enrollment: "alice", Name: "Alice"},
		{Enrollment: "bob", Name: "Bob"},
	}}

	rec := NewRecognizer(engine, ix, roster, 4, 10)
	candidates, _ := rec.Recognize(testProbe())

	for _, c := range candidates {
		rounded := float64(int(c.Distance*1000+0.5)) / 1000
		if c.Distance != rounded {
			t.Errorf("distance %v is not rounded to 3 decimals", c.Distance)
		}
	}
}

func TestRecognizeClampsDegenerateBoxes(t *testing.T) {
	ix := savedTestIndex(t)
	// box entirely outside the probe bounds
	face := Face{
		Box:       BoundingBox{X: 500, Y: 500, W: 40, H: 40},
		Embedding: []float32{1, 0, 0},
	}
	engine := &scriptedEngine{faces: []Face{face}, live: true}
	roster := &staticRoster{entries: []RosterEntry{{Enrollment: "alice", Name: "Alice"}}}

	rec := NewRecognizer(engine, ix, roster, 4, 10)
	candidates, present := rec.Recognize(testProbe())

	if len(candidates) != 0 || len(present) != 0 {
		t.Errorf("degenerate box produced %d candidates, %d present; want none",
			len(candidates), len(present))
	}
}
