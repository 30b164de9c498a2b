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

	"github.com/hajri-app/hajriback/database"
	"github.com/hajri-app/hajriback/models"
	"github.com/hajri-app/hajriback/repository"
	"github.com/hajri-app/hajriback/services"
)

// defaultDefaulterThreshold is the attendance percentage below which a
// student appears in the defaulter list.
const defaultDefaulterThreshold = 75.0

type SubjectHandler struct {
	DB            *sql.DB
	SubjectRepo   repository.SubjectRepositoryInterface
	LectureRepo   repository.LectureRepositoryInterface
	UserRepo      repository.UserRepositoryInterface
	EnrollmentSvc *services.EnrollmentService
	AttendanceSvc *services.AttendanceService
}

func parseIDParam(r *http.Request, name string) (uint, error) {
	id, err := strconv.ParseUint(chi.URLParam(r, name), 10, 32)
	return uint(id), err
}

func (sh *SubjectHandler) CreateSubject(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name string `json:"name"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: name"})
		return
	}

	subject := &models.Subject{Name: req.Name}
	if err := sh.SubjectRepo.Create(subject); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "A subject with this name already exists"})
			return
		}
		log.Printf("Error creating subject '%s': %v", req.Name, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create subject"})
		return
	}
	writeJSON(w, http.StatusCreated, subject)
}

func (sh *SubjectHandler) ListSubjects(w http.ResponseWriter, r *http.Request) {
	subjects, err := sh.SubjectRepo.ListAll()
	if err != nil {
		log.Printf("Error listing subjects: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve subjects"})
		return
	}
	if subjects == nil {
		subjects = []models.Subject{}
	}
	writeJSON(w, http.StatusOK, subjects)
}

// EnrollStudents adds students to the subject by enrollment number and
// back-fills Absent records for the subject's existing lectures.
func (sh *SubjectHandler) EnrollStudents(w http.ResponseWriter, r *http.Request) {
	subjectID, err := parseIDParam(r, "subject_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid subject ID format"})
		return
	}

	var req struct {
		Enrollments []string `json:"enrollments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if len(req.Enrollments) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: enrollments"})
		return
	}

	enrolled := []string{}
	skipped := []string{}
	for _, enrollment := range req.Enrollments {
		user, err := sh.UserRepo.GetByUsername(strings.TrimSpace(enrollment))
		if err != nil || !user.IsStudent() {
			skipped = append(skipped, enrollment)
			continue
		}
		if err := sh.EnrollmentSvc.EnrollInSubject(user.ID, subjectID); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				writeJSON(w, http.StatusNotFound, map[string]string{"error": "Subject not found"})
				return
			}
			log.Printf("Error enrolling '%s' in subject %d: %v", enrollment, subjectID, err)
			skipped = append(skipped, enrollment)
			continue
		}
		enrolled = append(enrolled, enrollment)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{"enrolled": enrolled, "skipped": skipped})
}

// UnenrollStudents removes students from the subject and clears their
// attendance for its lectures.
func (sh *SubjectHandler) UnenrollStudents(w http.ResponseWriter, r *http.Request) {
	subjectID, err := parseIDParam(r, "subject_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid subject ID format"})
		return
	}

	var req struct {
		Enrollments []string `json:"enrollments"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	if len(req.Enrollments) == 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: enrollments"})
		return
	}

	userIDs := make([]uint, 0, len(req.Enrollments))
	for _, enrollment := range req.Enrollments {
		user, err := sh.UserRepo.GetByUsername(strings.TrimSpace(enrollment))
		if err == nil {
			userIDs = append(userIDs, user.ID)
		}
	}

	removed, err := sh.EnrollmentSvc.UnenrollFromSubject(subjectID, userIDs)
	if err != nil {
		log.Printf("Error unenrolling students from subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to unenroll students"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"removed": removed})
}

// CreateLecture creates a lecture and seeds an Absent record for every
// enrolled student.
func (sh *SubjectHandler) CreateLecture(w http.ResponseWriter, r *http.Request) {
	subjectID, err := parseIDParam(r, "subject_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid subject ID format"})
		return
	}
	if _, err := sh.SubjectRepo.GetByID(subjectID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Subject not found"})
		return
	}

	var req struct {
		Name string `json:"name"`
		Date string `json:"date"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid request body: " + err.Error()})
		return
	}
	req.Name = strings.TrimSpace(req.Name)
	if req.Name == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Missing required field: name"})
		return
	}
	if req.Date == "" {
		req.Date = models.NowLectureDate()
	}

	lecture := &models.Lecture{SubjectID: subjectID, Name: req.Name, Date: req.Date}
	if err := sh.LectureRepo.Create(lecture); err != nil {
		if strings.Contains(err.Error(), "UNIQUE constraint failed") {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "A lecture with this name already exists for the subject"})
			return
		}
		log.Printf("Error creating lecture '%s' for subject %d: %v", req.Name, subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to create lecture"})
		return
	}

	if err := sh.AttendanceSvc.SeedLecture(lecture); err != nil {
		log.Printf("Error seeding attendance for lecture %d: %v", lecture.ID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Lecture created but attendance seeding failed"})
		return
	}

	writeJSON(w, http.StatusCreated, lecture)
}

func (sh *SubjectHandler) ListLectures(w http.ResponseWriter, r *http.Request) {
	subjectID, err := parseIDParam(r, "subject_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid subject ID format"})
		return
	}

	lectures, err := sh.LectureRepo.ListBySubject(subjectID)
	if err != nil {
		log.Printf("Error listing lectures for subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to retrieve lectures"})
		return
	}
	if lectures == nil {
		lectures = []models.Lecture{}
	}
	writeJSON(w, http.StatusOK, lectures)
}

// GetReport serves the subject dashboard aggregation. The threshold query
// parameter overrides the default defaulter cutoff.
func (sh *SubjectHandler) GetReport(w http.ResponseWriter, r *http.Request) {
	subjectID, err := parseIDParam(r, "subject_id")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "Invalid subject ID format"})
		return
	}
	if _, err := sh.SubjectRepo.GetByID(subjectID); err != nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "Subject not found"})
		return
	}

	threshold := defaultDefaulterThreshold
	if thresholdStr := r.URL.Query().Get("threshold"); thresholdStr != "" {
		parsed, err := strconv.ParseFloat(thresholdStr, 64)
		if err != nil || parsed < 0 || parsed > 100 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "threshold must be a percentage between 0 and 100"})
			return
		}
		threshold = parsed
	}

	report, err := database.GetSubjectReport(sh.DB, subjectID, threshold)
	if err != nil {
		log.Printf("Error building report for subject %d: %v", subjectID, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "Failed to build report"})
		return
	}
	writeJSON(w, http.StatusOK, report)
}
