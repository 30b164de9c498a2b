package handlers

import (
	"encoding/json"
	"log"
	"net/http"
	"strings"

	"github.com/hajri-app/hajriback/repository"
	"github.com/hajri-app/hajriback/services"
)

type AttendanceHandler struct {
	LectureRepo   repository.LectureRepositoryInterface
	AttendanceSvc *services.AttendanceService
}

func (ah *AttendanceHandler) lectureExists(w http.ResponseWriter, r *http.Request) (uint, bool) {
	lectureID, err := parseIDParam(r, "lecture_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid lecture ID format"})
		return 0, false
	}
	if _, err := ah.LectureRepo.GetByID(lectureID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Lecture not found"})
		return 0, false
	}
	return lectureID, true
}

// ListAttendance returns the lecture's ledger ordered by student name.
func (ah *AttendanceHandler) ListAttendance(w http.ResponseWriter, r *http.Request) {
	lectureID, ok := ah.lectureExists(w, r)
	if !ok {
		return
	}

	records, err := ah.AttendanceSvc.ListForLecture(lectureID)
	if err != nil {
		log.Printf("Error listing attendance for lecture %d: %v", lectureID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve attendance"})
		return
	}
	writeJSON(w, http.StatusOK, records)
}

// ReviewAttendance applies a teacher's bulk review. Each entry may flip a
// record to Present or back to Absent.
func (ah *AttendanceHandler) ReviewAttendance(w http.ResponseWriter, r *http.Request) {
	lectureID, ok := ah.lectureExists(w, r)
	if !ok {
		return
	}

	var req struct {
		Records []struct {
			UserID  uint `json:"user_id"`
			Present bool `json:"present"`
		} `json:"records"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if len(req.Records) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: records"})
		return
	}

	decisions := make(map[uint]bool, len(req.Records))
	for _, record := range req.Records {
		decisions[record.UserID] = record.Present
	}

	if err := ah.AttendanceSvc.ApplyReview(lectureID, decisions); err != nil {
		log.Printf("Error applying review for lecture %d: %v", lectureID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to update attendance"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"message": "Attendance updated"})
}

// MarkManual marks one student Present by enrollment number. Manual marking
// never sets a student back to Absent.
func (ah *AttendanceHandler) MarkManual(w http.ResponseWriter, r *http.Request) {
	lectureID, ok := ah.lectureExists(w, r)
	if !ok {
		return
	}

	var req struct {
		Enrollment string `json:"enrollment"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	req.Enrollment = strings.TrimSpace(req.Enrollment)
	if req.Enrollment == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: enrollment"})
		return
	}

	marked, message := ah.AttendanceSvc.MarkManual(lectureID, req.Enrollment)
	status := http.StatusOK
	if !marked {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]interface{}{"success": marked, "message": message})
}
