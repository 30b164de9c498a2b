package handlers

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"net/http"
	"path/filepath"

	"github.com/disintegration/imaging"
	"golang.org/x/image/font"
	"golang.org/x/image/font/basicfont"
	"golang.org/x/image/math/fixed"

	"github.com/hajri-app/hajriback/recognition"
	"github.com/hajri-app/hajriback/utils"
)

var (
	liveColor  = color.NRGBA{R: 0, G: 200, B: 0, A: 255}
	spoofColor = color.NRGBA{R: 220, G: 0, B: 0, A: 255}
)

// Preview re-serves a stored probe upload with recognition results drawn on
// it: a box per candidate, labeled with name and distance, green for live
// faces and red for suspected spoofs.
func (rh *RecognitionHandler) Preview(w http.ResponseWriter, r *http.Request) {
	upload := filepath.Base(r.URL.Query().Get("upload"))
	if upload == "." || upload == "/" || !utils.IsRasterImage(upload) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing or invalid upload parameter"})
		return
	}

	probePath := filepath.Join(rh.Cfg.ProbeUploadsPath, upload)
	probe, err := imaging.Open(probePath)
	if err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Upload not found"})
		return
	}

	candidates, _ := rh.Recognizer.Recognize(probe)
	canvas := drawOverlay(probe, candidates)

	w.Header().Set("Content-Type", "image/jpeg")
	if err := imaging.Encode(w, canvas, imaging.JPEG, imaging.JPEGQuality(90)); err != nil {
		log.Printf("Error encoding preview for %s: %v", upload, err)
	}
}

// drawOverlay clones the probe and draws each candidate's box and label.
func drawOverlay(probe image.Image, candidates []recognition.Candidate) *image.NRGBA {
	canvas := imaging.Clone(probe)
	for _, candidate := range candidates {
		col := liveColor
		if !candidate.IsReal {
			col = spoofColor
		}
		drawRect(canvas, candidate.Box.Rect(), col, 3)

		label := fmt.Sprintf("%s (%.3f)", candidate.Name, candidate.Distance)
		labelY := candidate.Box.Y - 5
		if labelY < basicfont.Face7x13.Ascent {
			labelY = candidate.Box.Y + candidate.Box.H + basicfont.Face7x13.Height
		}
		drawLabel(canvas, candidate.Box.X, labelY, label, col)
	}
	return canvas
}

// drawRect paints a rectangle outline of the given thickness, clamped to the
// canvas bounds.
func drawRect(canvas *image.NRGBA, rect image.Rectangle, col color.NRGBA, thickness int) {
	bounds := canvas.Bounds()
	for t := 0; t < thickness; t++ {
		outer := rect.Inset(-t).Intersect(bounds)
		if outer.Empty() {
			continue
		}
		for x := outer.Min.X; x < outer.Max.X; x++ {
			canvas.SetNRGBA(x, outer.Min.Y, col)
			canvas.SetNRGBA(x, outer.Max.Y-1, col)
		}
		for y := outer.Min.Y; y < outer.Max.Y; y++ {
			canvas.SetNRGBA(outer.Min.X, y, col)
			canvas.SetNRGBA(outer.Max.X-1, y, col)
		}
	}
}

func drawLabel(canvas *image.NRGBA, x, y int, label string, col color.NRGBA) {
	drawer := &font.Drawer{
		Dst:  canvas,
		Src:  image.NewUniform(col),
		Face: basicfont.Face7x13,
		Dot:  fixed.P(x, y),
	}
	drawer.DrawString(label)
}
