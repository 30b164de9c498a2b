package handlers

import (
	"database/sql"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"gorm.io/gorm"

	"github.com/hajri-app/hajriback/config"
	"github.com/hajri-app/hajriback/database"
	"github.com/hajri-app/hajriback/models"
	"github.com/hajri-app/hajriback/recognition"
	"github.com/hajri-app/hajriback/repository"
	"github.com/hajri-app/hajriback/services"
)

type StudentHandler struct {
	Cfg           config.Config
	DB            *sql.DB
	UserRepo      repository.UserRepositoryInterface
	EnrollmentSvc *services.EnrollmentService
	Store         *recognition.ImageStore
	Augmenter     *recognition.Augmenter
}

type studentResponse struct {
	ID           uint    `json:"id"`
	Enrollment   string  `json:"enrollment"`
	Name         string  `json:"name"`
	Email        *string `json:"email,omitempty"`
	CaptureCount int     `json:"capture_count"`
}

func (sh *StudentHandler) toResponse(user models.User) studentResponse {
	count, err := sh.Store.CountImages(user.Username)
	if err != nil {
		count = 0
	}
	return studentResponse{
		ID:           user.ID,
		Enrollment:   user.Username,
		Name:         user.Name,
		Email:        user.Email,
		CaptureCount: count,
	}
}

func (sh *StudentHandler) CreateStudent(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Enrollment string `json:"enrollment"`
		Name       string `json:"name"`
		Email      string `json:"email"`
		Password   string `json:"password"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	req.Enrollment = strings.TrimSpace(req.Enrollment)
	if req.Enrollment == "" || strings.TrimSpace(req.Name) == "" || req.Password == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: enrollment, name and password are required"})
		return
	}

	user, err := sh.EnrollmentSvc.CreateStudent(req.Enrollment, req.Name, req.Email, req.Password)
	if err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "A student with this enrollment number already exists"})
			return
		}
		log.Printf("Error creating student '%s': %v", req.Enrollment, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create student"})
		return
	}

	writeJSON(w, http.StatusCreated, sh.toResponse(*user))
}

func (sh *StudentHandler) ListStudents(w http.ResponseWriter, r *http.Request) {
	users, err := sh.UserRepo.ListByRole(models.RoleStudent)
	if err != nil {
		log.Printf("Error listing students: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve students"})
		return
	}

	students := make([]studentResponse, 0, len(users))
	for _, user := range users {
		students = append(students, sh.toResponse(user))
	}
	writeJSON(w, http.StatusOK, students)
}

func (sh *StudentHandler) DeleteStudent(w http.ResponseWriter, r *http.Request) {
	enrollment := chi.URLParam(r, "enrollment")

	user, err := sh.UserRepo.GetByUsername(enrollment)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Student not found"})
		} else {
			log.Printf("Error looking up student '%s': %v", enrollment, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve student"})
		}
		return
	}

	trainMessage, err := sh.EnrollmentSvc.DeleteStudent(user.ID)
	if err != nil {
		log.Printf("Error deleting student '%s': %v", enrollment, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to delete student"})
		return
	}

	writeJSON(w, http.StatusOK, map[string]string{
		"message":  "Student deleted",
		"training": trainMessage,
	})
}

// UploadCapture stores one raw webcam capture for a student. The seq form
// value places the file in the student's capture sequence; only slots below
// the raw capture count are accepted so synthetic images are never displaced.
func (sh *StudentHandler) UploadCapture(w http.ResponseWriter, r *http.Request) {
	enrollment := chi.URLParam(r, "enrollment")

	if _, err := sh.UserRepo.GetByUsername(enrollment); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Student not found"})
		return
	}

	if err := r.ParseMultipartForm(maxUploadSize); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Failed to parse multipart form"})
		return
	}

	seq, err := strconv.Atoi(r.FormValue("seq"))
	if err != nil || seq < 1 || seq > sh.Cfg.RawCaptureCount {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "seq must be between 1 and " + strconv.Itoa(sh.Cfg.RawCaptureCount)})
		return
	}

	file, _, err := r.FormFile("image")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing image file"})
		return
	}
	defer file.Close()

	savedPath, err := sh.Store.SaveCapture(enrollment, seq, file)
	if err != nil {
		log.Printf("Error saving capture %d for '%s': %v", seq, enrollment, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to save capture"})
		return
	}

	writeJSON(w, http.StatusCreated, map[string]interface{}{"path": savedPath, "seq": seq})
}

// AugmentStudent expands the student's raw captures into the full training
// corpus. Blocks until generation finishes.
func (sh *StudentHandler) AugmentStudent(w http.ResponseWriter, r *http.Request) {
	enrollment := chi.URLParam(r, "enrollment")

	if _, err := sh.UserRepo.GetByUsername(enrollment); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Student not found"})
		return
	}

	ok, message := sh.Augmenter.Augment(enrollment)
	status := http.StatusOK
	if !ok {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, map[string]interface{}{"success": ok, "message": message})
}

// GetReport returns the student's own attendance aggregation: per-subject
// lecture totals, present counts, and percentages.
func (sh *StudentHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	enrollment := chi.URLParam(r, "enrollment")

	user, err := sh.UserRepo.GetByUsername(enrollment)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "Student not found"})
		} else {
			log.Printf("Error looking up student '%s': %v", enrollment, err)
			writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve student"})
		}
		return
	}
	if !user.IsStudent() {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Student not found"})
		return
	}

	report, err := database.GetStudentReport(sh.DB, user.ID)
	if err != nil {
		log.Printf("Error building report for student '%s': %v", enrollment, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to build report"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
