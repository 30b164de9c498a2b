package handlers

import (
	"log"
	"net/http"
	"path/filepath"
	"strconv"

	"github.com/disintegration/imaging"

	"github.com/hajri-app/hajriback/config"
	"github.com/hajri-app/hajriback/models"
	"github.com/hajri-app/hajriback/recognition"
	"github.com/hajri-app/hajriback/repository"
	"github.com/hajri-app/hajriback/services"
	"github.com/hajri-app/hajriback/utils"
)

type RecognitionHandler struct {
	Cfg           config.Config
	Recognizer    *recognition.Recognizer
	LectureRepo   repository.LectureRepositoryInterface
	AttendanceSvc *services.AttendanceService
}

// Recognize accepts a classroom photo, runs recognition, and returns every
// candidate match plus the de-duplicated present list. When a lecture_id form
// value is supplied the photo is attached to that lecture and the response
// carries pre-seeded review rows; the ledger is only written when the
// reviewed rows are submitted back through the attendance review endpoint.
func (rh *RecognitionHandler) Recognize(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to parse multipart form"})
		return
	}

	file, header, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing image file"})
		return
	}
	defer file.Close()

	savedPath, err := utils.SaveUploadedImage(rh.Cfg.ProbeUploadsPath, header.Filename, file)
	if err != nil {
		log.Printf("Error saving probe upload: %v", err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Could not save uploaded image"})
		return
	}

	probe, err := imaging.Open(savedPath)
	if err != nil {
		log.Printf("Error decoding probe %s: %v", savedPath, err)
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Uploaded file is not a decodable image"})
		return
	}

	candidates, present := rh.Recognizer.Recognize(probe)

	response := map[string]interface{}{
		"upload":     filepath.Base(savedPath),
		"candidates": candidates,
		"present":    present,
	}

	if lectureIDStr := r.FormValue("lecture_id"); lectureIDStr != "" {
		lectureID, err := strconv.ParseUint(lectureIDStr, 10, 32)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid lecture_id"})
			return
		}
		if _, err := rh.LectureRepo.GetByID(uint(lectureID)); err != nil {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Lecture not found"})
			return
		}

		photo := &models.LecturePhoto{LectureID: uint(lectureID), StoredPath: savedPath}
		if meta, err := utils.GetProbeMetadata(savedPath); err == nil {
			photo.TakenAt = meta.TakenAt
			photo.CameraModel = meta.CameraModel
		}
		if err := rh.LectureRepo.AddPhoto(photo); err != nil {
			log.Printf("Error attaching photo to lecture %d: %v", lectureID, err)
		}

		review, err := rh.AttendanceSvc.SuggestReview(uint(lectureID), present)
		if err != nil {
			log.Printf("Error building review for lecture %d: %v", lectureID, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to build attendance review"})
			return
		}
		response["review"] = review
	}

	writeJSON(w, http.StatusOK, response)
}
