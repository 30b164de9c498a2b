package services

import (
	"fmt"
	"log"

	"github.com/hajri-app/hajriback/models"
	"github.com/hajri-app/hajriback/recognition"
	"github.com/hajri-app/hajriback/repository"
)

// EnrollmentService manages the student roster and subject membership, and
// keeps the image store and attendance ledger consistent with both.
type EnrollmentService struct {
	userRepo       repository.UserRepositoryInterface
	subjectRepo    repository.SubjectRepositoryInterface
	lectureRepo    repository.LectureRepositoryInterface
	attendanceRepo repository.AttendanceRepositoryInterface
	store          *recognition.ImageStore
	trainer        *recognition.Trainer
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(
	userRepo repository.UserRepositoryInterface,
	subjectRepo repository.SubjectRepositoryInterface,
	lectureRepo repository.LectureRepositoryInterface,
	attendanceRepo repository.AttendanceRepositoryInterface,
	store *recognition.ImageStore,
	trainer *recognition.Trainer,
) *EnrollmentService {
	return &EnrollmentService{
		userRepo:       userRepo,
		subjectRepo:    subjectRepo,
		lectureRepo:    lectureRepo,
		attendanceRepo: attendanceRepo,
		store:          store,
		trainer:        trainer,
	}
}

// CreateStudent registers a student and prepares their capture directory in
// the image store. The username doubles as the enrollment number and names
// the directory.
func (s *EnrollmentService) CreateStudent(username, name, email, password string) (*models.User, error) {
	user := &models.User{
		Username: username,
		Name:     name,
		Role:     models.RoleStudent,
	}
	if email != "" {
		user.Email = &email
	}
	if err := user.SetPassword(password); err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	if err := s.userRepo.Create(user); err != nil {
		return nil, fmt.Errorf("failed to create student %q: %w", username, err)
	}
	if _, err := s.store.EnsureIdentityDir(username); err != nil {
		return nil, fmt.Errorf("failed to create image directory for %q: %w", username, err)
	}
	return user, nil
}

// DeleteStudent removes the student record, their captured images, and
// retrains the index so the deleted face cannot be recognized again. Database
// cascades clear enrollment and attendance rows.
func (s *EnrollmentService) DeleteStudent(id uint) (string, error) {
	user, err := s.userRepo.GetByID(id)
	if err != nil {
		return "", fmt.Errorf("student %d not found: %w", id, err)
	}
	if !user.IsStudent() {
		return "", fmt.Errorf("user %d is not a student", id)
	}

	if err := s.userRepo.Delete(id); err != nil {
		return "", fmt.Errorf("failed to delete student %d: %w", id, err)
	}
	if err := s.store.RemoveIdentity(user.Username); err != nil {
		log.Printf("enrollment: failed to remove images for %q: %v", user.Username, err)
	}

	// retrain so the stale embeddings are gone before the next probe
	_, message := s.trainer.Train()
	return message, nil
}

// EnrollInSubject adds the student to the subject and back-fills an Absent
// record for every lecture the subject already has.
func (s *EnrollmentService) EnrollInSubject(userID, subjectID uint) error {
	user, err := s.userRepo.GetByID(userID)
	if err != nil {
		return fmt.Errorf("student %d not found: %w", userID, err)
	}
	if !user.IsStudent() {
		return fmt.Errorf("user %d is not a student", userID)
	}
	if _, err := s.subjectRepo.GetByID(subjectID); err != nil {
		return fmt.Errorf("subject %d not found: %w", subjectID, err)
	}

	if err := s.subjectRepo.EnrollStudent(userID, subjectID); err != nil {
		return fmt.Errorf("failed to enroll student %d in subject %d: %w", userID, subjectID, err)
	}

	lectureIDs, err := s.lectureRepo.ListIDsBySubject(subjectID)
	if err != nil {
		return fmt.Errorf("failed to list lectures for subject %d: %w", subjectID, err)
	}
	for _, lectureID := range lectureIDs {
		if err := s.attendanceRepo.Seed(lectureID, []uint{userID}); err != nil {
			return fmt.Errorf("failed to back-fill attendance for lecture %d: %w", lectureID, err)
		}
	}
	return nil
}

// UnenrollFromSubject removes the students from the subject and deletes their
// attendance records for the subject's lectures.
func (s *EnrollmentService) UnenrollFromSubject(subjectID uint, userIDs []uint) (int64, error) {
	removed, err := s.subjectRepo.UnenrollStudents(subjectID, userIDs)
	if err != nil {
		return 0, fmt.Errorf("failed to unenroll students from subject %d: %w", subjectID, err)
	}
	if removed == 0 {
		return 0, nil
	}

	lectureIDs, err := s.lectureRepo.ListIDsBySubject(subjectID)
	if err != nil {
		return removed, fmt.Errorf("failed to list lectures for subject %d: %w", subjectID, err)
	}
	if len(lectureIDs) > 0 {
		if err := s.attendanceRepo.DeleteForLecturesAndStudents(lectureIDs, userIDs); err != nil {
			return removed, fmt.Errorf("failed to clear attendance after unenroll: %w", err)
		}
	}
	return removed, nil
}
