package recognition

import (
	"fmt"
	"image"
	"image/color"
	"log"
	"math/rand"
	"os"
	"time"

	"github.com/disintegration/imaging"
)

// Transform activation probabilities, mirroring the enrollment pipeline's
// original augmentation recipe. Each transform fires independently, so any
// subset may apply to a given sample.
const (
	flipProbability       = 0.5
	jitterProbability     = 0.3
	shiftScaleProbability = 0.4
	noiseProbability      = 0.2
	blurProbability       = 0.2
)

// Augmenter expands a student's raw capture set into a larger synthetic
// training corpus with randomized transforms. It only writes image files;
// rebuilding the embedding index is the caller's responsibility.
type Augmenter struct {
	store       *ImageStore
	rawCount    int
	targetCount int
	outputSize  int
	rng         *rand.Rand
}

// NewAugmenter creates an augmenter over the given store. rawCount is the
// number of captured images per student, targetCount the corpus size to reach,
// outputSize the side length of the square augmented output.
func NewAugmenter(store *ImageStore, rawCount, targetCount, outputSize int) *Augmenter {
	return &Augmenter{
		store:       store,
		rawCount:    rawCount,
		targetCount: targetCount,
		outputSize:  outputSize,
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Augment regenerates the synthetic portion of an identity's corpus. Any
// existing image above the raw capture range is deleted first; new images are
// derived from randomly sampled raw captures until the corpus target is met.
// Returns (ok, message) where message is user-displayable.
func (a *Augmenter) Augment(identity string) (bool, string) {
	dir, err := a.store.IdentityDir(identity)
	if err != nil {
		return false, err.Error()
	}
	if _, err := os.Stat(dir); os.IsNotExist(err) {
		return false, fmt.Sprintf("no image directory for '%s'", identity)
	}

	// synthetic images are disposable; clear them so regeneration starts clean
	if err := a.store.RemoveAboveSequence(identity, a.rawCount); err != nil {
		return false, fmt.Sprintf("failed to clear synthetic images: %v", err)
	}

	originals := a.loadOriginals(identity)
	if len(originals) == 0 {
		return false, "No original images found."
	}

	toGenerate := a.targetCount - len(originals)
	if toGenerate <= 0 {
		return true, "Sufficient images exist."
	}

	seq := a.rawCount + 1
	for i := 0; i < toGenerate; i++ {
		base := originals[a.rng.Intn(len(originals))]
		augmented := a.applyTransforms(base)

		path, err := a.store.ImagePath(identity, seq)
		if err != nil {
			return false, err.Error()
		}
		if err := imaging.Save(augmented, path, imaging.JPEGQuality(90)); err != nil {
			return false, fmt.Sprintf("failed to save augmented image %d: %v", seq, err)
		}
		seq++
	}

	log.Printf("augment: generated %d synthetic images for %s", toGenerate, identity)
	return true, fmt.Sprintf("Generated %d new images.", toGenerate)
}

// loadOriginals loads the raw captures 1..rawCount that exist and are
// readable. Unreadable files are skipped, not fatal.
func (a *Augmenter) loadOriginals(identity string) []image.Image {
	var originals []image.Image
	for i := 1; i <= a.rawCount; i++ {
		path, err := a.store.ImagePath(identity, i)
		if err != nil {
			continue
		}
		img, err := imaging.Open(path)
		if err != nil {
			if !os.IsNotExist(err) {
				log.Printf("augment: skipping unreadable capture %s: %v", path, err)
			}
			continue
		}
		originals = append(originals, img)
	}
	return originals
}

// applyTransforms runs the randomized pipeline on one sample. The final
// resize always applies so every synthetic image has uniform dimensions.
func (a *Augmenter) applyTransforms(img image.Image) image.Image {
	out := img

	if a.rng.Float64() < flipProbability {
		out = imaging.FlipH(out)
	}
	if a.rng.Float64() < jitterProbability {
		out = imaging.AdjustBrightness(out, a.rng.Float64()*40-20) // +-20%
		out = imaging.AdjustContrast(out, a.rng.Float64()*40-20)
	}
	if a.rng.Float64() < shiftScaleProbability {
		out = a.shiftScaleRotate(out)
	}
	if a.rng.Float64() < noiseProbability {
		out = a.addGaussianNoise(out)
	}
	if a.rng.Float64() < blurProbability {
		out = imaging.Blur(out, 1.0+a.rng.Float64()*2.0)
	}

	return imaging.Resize(out, a.outputSize, a.outputSize, imaging.Lanczos)
}

// shiftScaleRotate rotates by up to +-15 degrees, scales by 0.9..1.1 and
// shifts by up to +-10% of each dimension, pasting back onto a canvas of the
// original size.
func (a *Augmenter) shiftScaleRotate(img image.Image) image.Image {
	bounds := img.Bounds()
	w, h := bounds.Dx(), bounds.Dy()

	angle := a.rng.Float64()*30 - 15
	rotated := imaging.Rotate(img, angle, color.NRGBA{0, 0, 0, 255})

	scale := 0.9 + a.rng.Float64()*0.2
	scaled := imaging.Resize(rotated, int(float64(rotated.Bounds().Dx())*scale), 0, imaging.Lanczos)

	dx := int(float64(w) * (a.rng.Float64()*0.2 - 0.1))
	dy := int(float64(h) * (a.rng.Float64()*0.2 - 0.1))

	canvas := imaging.New(w, h, color.NRGBA{0, 0, 0, 255})
	offsetX := (w-scaled.Bounds().Dx())/2 + dx
	offsetY := (h-scaled.Bounds().Dy())/2 + dy
	return imaging.Paste(canvas, scaled, image.Pt(offsetX, offsetY))
}

// addGaussianNoise adds per-channel Gaussian noise. imaging carries no noise
// primitive, so the pixels are perturbed directly.
func (a *Augmenter) addGaussianNoise(img image.Image) image.Image {
	const sigma = 12.0
	nrgba := imaging.Clone(img)
	for i := 0; i < len(nrgba.Pix); i += 4 {
		for c := 0; c < 3; c++ {
			v := float64(nrgba.Pix[i+c]) + a.rng.NormFloat64()*sigma
			if v < 0 {
				v = 0
			} else if v > 255 {
				v = 255
			}
			nrgba.Pix[i+c] = uint8(v)
		}
	}
	return nrgba
}
