package services

import (
	"errors"
	"fmt"
	"log"
	"sort"

	"gorm.io/gorm"

	"github.com/hajri-app/hajriback/models"
	"github.com/hajri-app/hajriback/recognition"
	"github.com/hajri-app/hajriback/repository"
)

// AttendanceService maintains the attendance ledger: every enrolled student
// holds exactly one record per lecture, created Absent and flipped Present by
// recognition review or manual marking.
type AttendanceService struct {
	userRepo       repository.UserRepositoryInterface
	subjectRepo    repository.SubjectRepositoryInterface
	lectureRepo    repository.LectureRepositoryInterface
	attendanceRepo repository.AttendanceRepositoryInterface
}

// NewAttendanceService creates a new attendance service
func NewAttendanceService(
	userRepo repository.UserRepositoryInterface,
	subjectRepo repository.SubjectRepositoryInterface,
	lectureRepo repository.LectureRepositoryInterface,
	attendanceRepo repository.AttendanceRepositoryInterface,
) *AttendanceService {
	return &AttendanceService{
		userRepo:       userRepo,
		subjectRepo:    subjectRepo,
		lectureRepo:    lectureRepo,
		attendanceRepo: attendanceRepo,
	}
}

// SeedLecture creates an Absent record for every student enrolled in the
// lecture's subject. Existing records are left untouched, so re-seeding a
// lecture is harmless.
func (s *AttendanceService) SeedLecture(lecture *models.Lecture) error {
	studentIDs, err := s.subjectRepo.ListStudentIDs(lecture.SubjectID)
	if err != nil {
		return fmt.Errorf("failed to list enrolled students for subject %d: %w", lecture.SubjectID, err)
	}
	if len(studentIDs) == 0 {
		return nil
	}
	if err := s.attendanceRepo.Seed(lecture.ID, studentIDs); err != nil {
		return fmt.Errorf("failed to seed attendance for lecture %d: %w", lecture.ID, err)
	}
	return nil
}

// ApplyReview writes a teacher's reviewed decisions for a lecture. Each entry
// maps a student ID to present (true) or absent (false); review may flip a
// record in either direction.
func (s *AttendanceService) ApplyReview(lectureID uint, decisions map[uint]bool) error {
	// stable order so a partial failure is reproducible
	userIDs := make([]uint, 0, len(decisions))
	for userID := range decisions {
		userIDs = append(userIDs, userID)
	}
	sort.Slice(userIDs, func(i, j int) bool { return userIDs[i] < userIDs[j] })

	for _, userID := range userIDs {
		status := models.StatusAbsent
		if decisions[userID] {
			status = models.StatusPresent
		}
		if err := s.attendanceRepo.SetStatus(lectureID, userID, status); err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				log.Printf("attendance: no record for lecture %d student %d, skipping review entry", lectureID, userID)
				continue
			}
			return fmt.Errorf("failed to update attendance for student %d: %w", userID, err)
		}
	}
	return nil
}

// ReviewSuggestion is one row of the editable attendance review: the
// lecture's roster with a proposed Present flag. Nothing is written to the
// ledger until the reviewed rows are submitted through ApplyReview.
type ReviewSuggestion struct {
	UserID     uint   `json:"user_id"`
	Enrollment string `json:"enrollment"`
	Name       string `json:"name"`
	Present    bool   `json:"present"`
}

// SuggestReview pre-seeds the review rows for a lecture from recognition
// output. A student is proposed Present when recognition saw them or when the
// ledger already records them Present; recognized enrollments outside the
// lecture's roster are ignored. The ledger itself is not touched.
func (s *AttendanceService) SuggestReview(lectureID uint, present []recognition.PresentStudent) ([]ReviewSuggestion, error) {
	records, err := s.attendanceRepo.ListByLecture(lectureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance for lecture %d: %w", lectureID, err)
	}

	recognized := make(map[string]bool, len(present))
	for _, student := range present {
		recognized[student.Enrollment] = true
	}

	suggestions := make([]ReviewSuggestion, 0, len(records))
	for _, record := range records {
		if record.User == nil {
			log.Printf("attendance: record %d for lecture %d has no user, skipping", record.ID, lectureID)
			continue
		}
		suggestions = append(suggestions, ReviewSuggestion{
			UserID:     record.UserID,
			Enrollment: record.User.Username,
			Name:       record.User.Name,
			Present:    record.Status == models.StatusPresent || recognized[record.User.Username],
		})
	}
	return suggestions, nil
}

// MarkManual marks a single student Present by enrollment number. The boolean
// reports whether the mark was applied; the message is suitable for direct
// display. Manual marking only ever promotes to Present.
func (s *AttendanceService) MarkManual(lectureID uint, enrollment string) (bool, string) {
	lecture, err := s.lectureRepo.GetByID(lectureID)
	if err != nil {
		return false, "Lecture not found."
	}

	user, err := s.userRepo.GetByUsername(enrollment)
	if err != nil {
		return false, fmt.Sprintf("Student '%s' not found.", enrollment)
	}
	if !user.IsStudent() {
		return false, fmt.Sprintf("Student '%s' not found.", enrollment)
	}

	enrolled, err := s.subjectRepo.IsEnrolled(user.ID, lecture.SubjectID)
	if err != nil {
		return false, "Could not verify enrollment."
	}
	if !enrolled {
		return false, fmt.Sprintf("Student '%s' is not enrolled in this subject.", enrollment)
	}

	if err := s.attendanceRepo.SetStatus(lectureID, user.ID, models.StatusPresent); err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			// record should exist once seeded; backfill and retry once
			if seedErr := s.attendanceRepo.Seed(lectureID, []uint{user.ID}); seedErr == nil {
				if err = s.attendanceRepo.SetStatus(lectureID, user.ID, models.StatusPresent); err == nil {
					return true, fmt.Sprintf("Marked %s (%s) as Present.", user.Name, enrollment)
				}
			}
		}
		log.Printf("attendance: manual mark failed for lecture %d student %q: %v", lectureID, enrollment, err)
		return false, "Could not update attendance."
	}
	return true, fmt.Sprintf("Marked %s (%s) as Present.", user.Name, enrollment)
}

// ListForLecture returns the lecture's ledger with student details attached.
func (s *AttendanceService) ListForLecture(lectureID uint) ([]models.AttendanceRecord, error) {
	records, err := s.attendanceRepo.ListByLecture(lectureID)
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance for lecture %d: %w", lectureID, err)
	}
	return records, nil
}
