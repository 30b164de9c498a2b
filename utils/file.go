package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"
)

var supportedImageExtensions = map[string]bool{
	".jpg":  true,
	".jpeg": true,
	".png":  true,
	".bmp":  true,
	".tif":  true,
	".tiff": true,
}

// IsRasterImage checks if the filename has a common raster image extension
func IsRasterImage(filename string) bool {
	ext := strings.ToLower(filepath.Ext(filename))
	return supportedImageExtensions[ext]
}

// SaveUploadedImage writes an uploaded image into dir under a UUID filename,
// keeping the original extension. Returns the full path of the saved file.
func SaveUploadedImage(dir, originalFilename string, data io.Reader) (string, error) {
	if !IsRasterImage(originalFilename) {
		return "", fmt.Errorf("unsupported image type: %s", filepath.Ext(originalFilename))
	}
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("failed to create upload directory %s: %w", dir, err)
	}

	id, err := uuid.NewRandom()
	if err != nil {
		return "", fmt.Errorf("failed to generate upload ID: %w", err)
	}
	savePath := filepath.Join(dir, id.String()+strings.ToLower(filepath.Ext(originalFilename)))

	out, err := os.Create(savePath)
	if err != nil {
		return "", fmt.Errorf("failed to create %s: %w", savePath, err)
	}
	defer out.Close()

	if _, err := io.Copy(out, data); err != nil {
		os.Remove(savePath)
		return "", fmt.Errorf("failed to write %s: %w", savePath, err)
	}
	return savePath, nil
}
