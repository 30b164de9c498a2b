package recognition

import (
	"fmt"
	"image"
	"log"
	"math"
	"os"

	"gocv.io/x/gocv"
)

// GoCVEngine implements FaceEngine with OpenCV DNN models: an SSD face
// detector and an embedding network (SFace/ArcFace style, 112x112 input).
type GoCVEngine struct {
	detector gocv.Net
	embedder gocv.Net
	Enabled  bool

	modelName     string
	detectSizeW   int
	detectSizeH   int
	detectMean    gocv.Scalar
	confThreshold float32
	embedSizeW    int
	embedSizeH    int
}

// NewGoCVEngine loads the detection and embedding networks. Missing model
// files disable the engine rather than failing startup, matching how the
// image workers treat an absent detector.
func NewGoCVEngine(detectorConfigPath, detectorModelPath, embedderModelPath, modelName string) *GoCVEngine {
	engine := &GoCVEngine{
		modelName:     modelName,
		detectSizeW:   300,
		detectSizeH:   300,
		detectMean:    gocv.NewScalar(104.0, 177.0, 123.0, 0),
		confThreshold: 0.5,
		embedSizeW:    112,
		embedSizeH:    112,
	}

	for _, path := range []string{detectorConfigPath, detectorModelPath, embedderModelPath} {
		if path == "" {
			log.Println("engine: model path empty, disabling face engine")
			return engine
		}
		if _, err := os.Stat(path); os.IsNotExist(err) {
			log.Printf("engine: model file does not exist: %s, disabling face engine", path)
			return engine
		}
	}

	detector := gocv.ReadNet(detectorModelPath, detectorConfigPath)
	if detector.Empty() {
		log.Printf("engine: ERROR loading detector: config=%s, model=%s", detectorConfigPath, detectorModelPath)
		return engine
	}
	embedder := gocv.ReadNet(embedderModelPath, "")
	if embedder.Empty() {
		log.Printf("engine: ERROR loading %s embedder: %s", modelName, embedderModelPath)
		detector.Close()
		return engine
	}

	for _, net := range []*gocv.Net{&detector, &embedder} {
		if net.SetPreferableBackend(gocv.NetBackendCUDA) != nil || net.SetPreferableTarget(gocv.NetTargetCUDA) != nil {
			net.SetPreferableBackend(gocv.NetBackendDefault)
			net.SetPreferableTarget(gocv.NetTargetCPU)
		}
	}

	engine.detector = detector
	engine.embedder = embedder
	engine.Enabled = true
	log.Printf("engine: loaded face detector and %s embedder", modelName)
	return engine
}

// Close releases the loaded networks.
func (e *GoCVEngine) Close() {
	if e != nil && e.Enabled {
		e.detector.Close()
		e.embedder.Close()
		e.Enabled = false
		log.Println("engine: closed networks")
	}
}

// DetectAndEmbed finds faces in the image and computes a normalized embedding
// for each.
func (e *GoCVEngine) DetectAndEmbed(img image.Image) ([]Face, error) {
	if e == nil || !e.Enabled {
		return nil, fmt.Errorf("face engine is not available")
	}

	mat, err := gocv.ImageToMatRGB(img)
	if err != nil {
		return nil, fmt.Errorf("failed to convert image: %w", err)
	}
	defer mat.Close()

	bgr := gocv.NewMat()
	defer bgr.Close()
	gocv.CvtColor(mat, &bgr, gocv.ColorRGBToBGR)

	boxes := e.detectFaces(bgr)
	faces := make([]Face, 0, len(boxes))
	for _, box := range boxes {
		rect := box.Rect().Intersect(image.Rect(0, 0, bgr.Cols(), bgr.Rows()))
		if rect.Empty() {
			continue
		}
		region := bgr.Region(rect)
		embedding := e.embedFace(region)
		region.Close()
		if len(embedding) == 0 {
			continue
		}
		faces = append(faces, Face{Box: box, Embedding: embedding})
	}
	return faces, nil
}

// Liveness is advisory: this engine carries no anti-spoofing model and
// reports every face live. A dedicated implementation can replace it without
// touching the recognizer.
func (e *GoCVEngine) Liveness(crop image.Image) bool {
	return true
}

// detectFaces runs the SSD detector over the BGR image.
func (e *GoCVEngine) detectFaces(bgr gocv.Mat) []BoundingBox {
	imgWidth := float32(bgr.Cols())
	imgHeight := float32(bgr.Rows())

	blob := gocv.BlobFromImage(bgr, 1.0, image.Pt(e.detectSizeW, e.detectSizeH), e.detectMean, false, false)
	defer blob.Close()

	e.detector.SetInput(blob, "")
	output := e.detector.Forward("")
	defer output.Close()

	var boxes []BoundingBox
	sizes := output.Size()
	if len(sizes) < 3 {
		log.Printf("engine: unexpected detector output dimensions: %v", sizes)
		return boxes
	}
	numDetections := sizes[2]
	if numDetections == 0 {
		return boxes
	}

	// reshape to [N, 7] rows of (batch, class, confidence, x1, y1, x2, y2)
	detections2D := output.Reshape(1, numDetections*sizes[3])
	detections := detections2D.Reshape(1, numDetections)
	defer detections2D.Close()
	defer detections.Close()

	for i := 0; i < numDetections; i++ {
		confidence := detections.GetFloatAt(i, 2)
		if confidence <= e.confThreshold {
			continue
		}
		x1 := clampFloat(detections.GetFloatAt(i, 3)*imgWidth, 0, imgWidth)
		y1 := clampFloat(detections.GetFloatAt(i, 4)*imgHeight, 0, imgHeight)
		x2 := clampFloat(detections.GetFloatAt(i, 5)*imgWidth, 0, imgWidth)
		y2 := clampFloat(detections.GetFloatAt(i, 6)*imgHeight, 0, imgHeight)
		if x2 <= x1 || y2 <= y1 {
			continue
		}
		boxes = append(boxes, BoundingBox{
			X: int(x1),
			Y: int(y1),
			W: int(x2 - x1),
			H: int(y2 - y1),
		})
	}
	return boxes
}

// embedFace computes the L2-normalized embedding for a BGR face region.
func (e *GoCVEngine) embedFace(region gocv.Mat) []float32 {
	if region.Empty() {
		return nil
	}

	rgb := gocv.NewMat()
	defer rgb.Close()
	gocv.CvtColor(region, &rgb, gocv.ColorBGRToRGB)

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(rgb, &resized, image.Pt(e.embedSizeW, e.embedSizeH), 0, 0, gocv.InterpolationLinear)

	blob := gocv.BlobFromImage(resized, 1.0/255.0, image.Pt(e.embedSizeW, e.embedSizeH), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	e.embedder.SetInput(blob, "")
	output := e.embedder.Forward("")
	defer output.Close()

	flattened := output.Reshape(1, 1)
	defer flattened.Close()

	embedding := make([]float32, flattened.Cols())
	for i := range embedding {
		embedding[i] = flattened.GetFloatAt(0, i)
	}
	return normalizeEmbedding(embedding)
}

// normalizeEmbedding scales the vector to unit length.
func normalizeEmbedding(embedding []float32) []float32 {
	var norm float32
	for _, v := range embedding {
		norm += v * v
	}
	norm = float32(math.Sqrt(float64(norm)))
	if norm == 0 {
		return embedding
	}
	for i := range embedding {
		embedding[i] /= norm
	}
	return embedding
}

func clampFloat(v, lo, hi float32) float32 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
