package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strconv"
)

const (
	DefaultIndexArtifactName = "representations.idx"
	DefaultTrainingSubDir    = "training_images"
)

const (
	defaultRawCaptureCount = 10
	defaultCorpusTarget    = 50
	defaultAugmentedSize   = 224
	defaultRecognitionTopK = 4
	defaultCropPadding     = 10
)

type Config struct {
	// data root (database, training corpus, probe uploads)
	DataDirectory string

	// database path
	DatabasePath string

	// enrollment corpus configuration
	TrainingImagesPath string // per-student image directories
	ProbeUploadsPath   string // attendance probe photographs
	IndexArtifactName  string // single derived index file under TrainingImagesPath

	// enrollment pipeline settings
	RawCaptureCount int // images captured per student before augmentation
	CorpusTarget    int // total images per student after augmentation
	AugmentedSize   int // augmented images are square, this many pixels a side

	// recognition settings
	RecognitionTopK int // nearest matches fetched per detected face
	CropPadding     int // pixel padding around a face crop for liveness

	// face model paths (DNN)
	FaceDetectorConfigPath string
	FaceDetectorModelPath  string
	FaceEmbedderModelPath  string
	FaceEmbedderModelName  string
}

func getEnvOrDefault(key, defaultValue string) string {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}
	return value
}

func getEnvIntOrDefault(envVar string, defaultVal int) int {
	valStr := os.Getenv(envVar)
	if valStr == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(valStr)
	if err != nil || val <= 0 {
		log.Printf("Warning: Invalid %s '%s'. Using default %d. Error: %v", envVar, valStr, defaultVal, err)
		return defaultVal
	}
	return val
}

func LoadConfig() (Config, error) {
	dataDir := getEnvOrDefault("DATA_DIRECTORY", "data")
	absDataDir, err := filepath.Abs(dataDir)
	if err != nil {
		return Config{}, fmt.Errorf("failed to get absolute path for data directory '%s': %w", dataDir, err)
	}

	dbPath := getEnvOrDefault("DATABASE_PATH", filepath.Join(absDataDir, "hajri.db"))

	trainingSubDir := getEnvOrDefault("TRAINING_IMAGES_SUBDIR", DefaultTrainingSubDir)
	absTrainingPath := filepath.Join(absDataDir, trainingSubDir)

	probeSubDir := getEnvOrDefault("PROBE_UPLOADS_SUBDIR", "probes")
	absProbePath := filepath.Join(absDataDir, probeSubDir)

	rawCount := getEnvIntOrDefault("RAW_CAPTURE_COUNT", defaultRawCaptureCount)
	corpusTarget := getEnvIntOrDefault("CORPUS_TARGET", defaultCorpusTarget)
	if corpusTarget < rawCount {
		log.Printf("Warning: CORPUS_TARGET %d below RAW_CAPTURE_COUNT %d; augmentation will be a no-op", corpusTarget, rawCount)
	}

	detectorConfig := getEnvOrDefault("FACE_DETECTOR_CONFIG_PATH", "./models/deploy.prototxt.txt")
	detectorModel := getEnvOrDefault("FACE_DETECTOR_MODEL_PATH", "./models/res10_300x300_ssd_iter_140000_fp16.caffemodel")
	embedderModel := getEnvOrDefault("FACE_EMBEDDER_MODEL_PATH", "./models/face_recognition_sface_2021dec.onnx")
	embedderName := getEnvOrDefault("FACE_EMBEDDER_MODEL_NAME", "sface")

	cfg := Config{
		DataDirectory:          absDataDir,
		DatabasePath:           dbPath,
		TrainingImagesPath:     absTrainingPath,
		ProbeUploadsPath:       absProbePath,
		IndexArtifactName:      getEnvOrDefault("INDEX_ARTIFACT_NAME", DefaultIndexArtifactName),
		RawCaptureCount:        rawCount,
		CorpusTarget:           corpusTarget,
		AugmentedSize:          getEnvIntOrDefault("AUGMENTED_IMAGE_SIZE", defaultAugmentedSize),
		RecognitionTopK:        getEnvIntOrDefault("RECOGNITION_TOP_K", defaultRecognitionTopK),
		CropPadding:            getEnvIntOrDefault("CROP_PADDING", defaultCropPadding),
		FaceDetectorConfigPath: detectorConfig,
		FaceDetectorModelPath:  detectorModel,
		FaceEmbedderModelPath:  embedderModel,
		FaceEmbedderModelName:  embedderName,
	}

	return cfg, nil
}

// IndexArtifactPath returns the absolute path of the embedding index artifact
func (c Config) IndexArtifactPath() string {
	return filepath.Join(c.TrainingImagesPath, c.IndexArtifactName)
}
