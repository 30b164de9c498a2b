package repository

import (
	"fmt"
	"time"

	"github.com/hajri-app/hajriback/models"
	"gorm.io/gorm"
)

// LectureRepository handles database operations for Lecture entities
type LectureRepository struct {
	DB *gorm.DB
}

// Ensure LectureRepository implements LectureRepositoryInterface
var _ LectureRepositoryInterface = (*LectureRepository)(nil)

// NewLectureRepository creates a new instance of LectureRepository
func NewLectureRepository(db *gorm.DB) *LectureRepository {
	return &LectureRepository{DB: db}
}

// Create creates a new lecture record. The (subject, name) pair is unique; a
// duplicate is surfaced to the caller.
func (r *LectureRepository) Create(lecture *models.Lecture) error {
	now := time.Now().Unix()
	if lecture.CreatedAt == 0 {
		lecture.CreatedAt = now
	}
	lecture.UpdatedAt = now
	if lecture.Date == "" {
		lecture.Date = models.NowLectureDate()
	}

	if err := r.DB.Create(lecture).Error; err != nil {
		return fmt.Errorf("failed to create lecture '%s' for subject %d: %w", lecture.Name, lecture.SubjectID, err)
	}
	return nil
}

// GetByID retrieves a lecture by its ID
func (r *LectureRepository) GetByID(id uint) (*models.Lecture, error) {
	var lecture models.Lecture
	if err := r.DB.First(&lecture, id).Error; err != nil {
		return nil, err
	}
	return &lecture, nil
}

// ListBySubject retrieves all lectures of a subject, newest first
func (r *LectureRepository) ListBySubject(subjectID uint) ([]models.Lecture, error) {
	var lectures []models.Lecture
	err := r.DB.Where("subject_id = ?", subjectID).Order("date DESC").Find(&lectures).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list lectures for subject %d: %w", subjectID, err)
	}
	return lectures, nil
}

// ListIDsBySubject retrieves the IDs of all lectures of a subject
func (r *LectureRepository) ListIDsBySubject(subjectID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&models.Lecture{}).
		Where("subject_id = ?", subjectID).
		Pluck("id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list lecture IDs for subject %d: %w", subjectID, err)
	}
	return ids, nil
}

// Delete removes a lecture by its ID
func (r *LectureRepository) Delete(id uint) error {
	result := r.DB.Delete(&models.Lecture{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete lecture ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// AddPhoto records a probe photograph submitted for a lecture
func (r *LectureRepository) AddPhoto(photo *models.LecturePhoto) error {
	if photo.CreatedAt == 0 {
		photo.CreatedAt = time.Now().Unix()
	}
	if err := r.DB.Create(photo).Error; err != nil {
		return fmt.Errorf("failed to record photo for lecture %d: %w", photo.LectureID, err)
	}
	return nil
}
