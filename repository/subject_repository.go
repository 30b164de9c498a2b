package repository

import (
	"fmt"
	"time"

	"github.com/hajri-app/hajriback/models"
	"gorm.io/gorm"
)

// SubjectRepository handles database operations for Subject entities and
// student enrollment links
type SubjectRepository struct {
	DB *gorm.DB
}

// Ensure SubjectRepository implements SubjectRepositoryInterface
var _ SubjectRepositoryInterface = (*SubjectRepository)(nil)

// NewSubjectRepository creates a new instance of SubjectRepository
func NewSubjectRepository(db *gorm.DB) *SubjectRepository {
	return &SubjectRepository{DB: db}
}

// Create creates a new subject record in the database
func (r *SubjectRepository) Create(subject *models.Subject) error {
	now := time.Now().Unix()
	if subject.CreatedAt == 0 {
		subject.CreatedAt = now
	}
	subject.UpdatedAt = now

	if err := r.DB.Create(subject).Error; err != nil {
		return fmt.Errorf("failed to create subject '%s': %w", subject.Name, err)
	}
	return nil
}

// GetByID retrieves a subject by its ID
func (r *SubjectRepository) GetByID(id uint) (*models.Subject, error) {
	var subject models.Subject
	if err := r.DB.First(&subject, id).Error; err != nil {
		return nil, err
	}
	return &subject, nil
}

// ListAll retrieves all subjects ordered by name
func (r *SubjectRepository) ListAll() ([]models.Subject, error) {
	var subjects []models.Subject
	if err := r.DB.Order("name").Find(&subjects).Error; err != nil {
		return nil, fmt.Errorf("failed to list subjects: %w", err)
	}
	return subjects, nil
}

// Delete removes a subject by its ID
func (r *SubjectRepository) Delete(id uint) error {
	result := r.DB.Delete(&models.Subject{}, id)
	if result.Error != nil {
		return fmt.Errorf("failed to delete subject ID %d: %w", id, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// EnrollStudent links a student to a subject. A duplicate link is an error
// surfaced to the caller (unique primary key on the join table).
func (r *SubjectRepository) EnrollStudent(userID, subjectID uint) error {
	link := models.StudentSubject{
		UserID:    userID,
		SubjectID: subjectID,
		CreatedAt: time.Now().Unix(),
	}
	if err := r.DB.Create(&link).Error; err != nil {
		return fmt.Errorf("failed to enroll student %d in subject %d: %w", userID, subjectID, err)
	}
	return nil
}

// UnenrollStudents removes enrollment links for the given students and returns
// how many links were removed
func (r *SubjectRepository) UnenrollStudents(subjectID uint, userIDs []uint) (int64, error) {
	result := r.DB.Where("subject_id = ? AND user_id IN ?", subjectID, userIDs).
		Delete(&models.StudentSubject{})
	if result.Error != nil {
		return 0, fmt.Errorf("failed to unenroll students from subject %d: %w", subjectID, result.Error)
	}
	return result.RowsAffected, nil
}

// ListStudents retrieves all students enrolled in a subject, ordered by name
func (r *SubjectRepository) ListStudents(subjectID uint) ([]models.User, error) {
	var users []models.User
	err := r.DB.Joins("JOIN student_subjects ss ON ss.user_id = users.id").
		Where("ss.subject_id = ? AND users.role = ?", subjectID, models.RoleStudent).
		Order("users.name").
		Find(&users).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list students for subject %d: %w", subjectID, err)
	}
	return users, nil
}

// ListStudentIDs retrieves the user IDs of all students enrolled in a subject
func (r *SubjectRepository) ListStudentIDs(subjectID uint) ([]uint, error) {
	var ids []uint
	err := r.DB.Model(&models.StudentSubject{}).
		Where("subject_id = ?", subjectID).
		Pluck("user_id", &ids).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list student IDs for subject %d: %w", subjectID, err)
	}
	return ids, nil
}

// IsEnrolled reports whether the student is enrolled in the subject
func (r *SubjectRepository) IsEnrolled(userID, subjectID uint) (bool, error) {
	var count int64
	err := r.DB.Model(&models.StudentSubject{}).
		Where("user_id = ? AND subject_id = ?", userID, subjectID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("failed to check enrollment of student %d in subject %d: %w", userID, subjectID, err)
	}
	return count > 0, nil
}
