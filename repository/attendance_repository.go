package repository

import (
	"fmt"
	"time"

	"github.com/hajri-app/hajriback/models"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// AttendanceRepository handles database operations for the attendance ledger
type AttendanceRepository struct {
	DB *gorm.DB
}

// Ensure AttendanceRepository implements AttendanceRepositoryInterface
var _ AttendanceRepositoryInterface = (*AttendanceRepository)(nil)

// NewAttendanceRepository creates a new instance of AttendanceRepository
func NewAttendanceRepository(db *gorm.DB) *AttendanceRepository {
	return &AttendanceRepository{DB: db}
}

// Seed inserts one Absent record per student for the lecture. Existing
// (lecture, student) rows are left untouched, so seeding twice is a no-op.
func (r *AttendanceRepository) Seed(lectureID uint, userIDs []uint) error {
	if len(userIDs) == 0 {
		return nil
	}
	now := time.Now().Unix()
	records := make([]models.AttendanceRecord, 0, len(userIDs))
	for _, userID := range userIDs {
		records = append(records, models.AttendanceRecord{
			LectureID: lectureID,
			UserID:    userID,
			Status:    models.StatusAbsent,
			CreatedAt: now,
			UpdatedAt: now,
		})
	}
	err := r.DB.Clauses(clause.OnConflict{DoNothing: true}).Create(&records).Error
	if err != nil {
		return fmt.Errorf("failed to seed attendance for lecture %d: %w", lectureID, err)
	}
	return nil
}

// SetStatus updates one student's status for a lecture
func (r *AttendanceRepository) SetStatus(lectureID, userID uint, status string) error {
	result := r.DB.Model(&models.AttendanceRecord{}).
		Where("lecture_id = ? AND user_id = ?", lectureID, userID).
		Updates(map[string]interface{}{
			"status":     status,
			"updated_at": time.Now().Unix(),
		})
	if result.Error != nil {
		return fmt.Errorf("failed to set attendance status for lecture %d, user %d: %w", lectureID, userID, result.Error)
	}
	if result.RowsAffected == 0 {
		return gorm.ErrRecordNotFound
	}
	return nil
}

// GetRecord retrieves the attendance record for one student in one lecture
func (r *AttendanceRepository) GetRecord(lectureID, userID uint) (*models.AttendanceRecord, error) {
	var record models.AttendanceRecord
	err := r.DB.Where("lecture_id = ? AND user_id = ?", lectureID, userID).First(&record).Error
	if err != nil {
		return nil, err
	}
	return &record, nil
}

// ListByLecture retrieves all attendance records for a lecture with the
// student preloaded, ordered by student name
func (r *AttendanceRepository) ListByLecture(lectureID uint) ([]models.AttendanceRecord, error) {
	var records []models.AttendanceRecord
	err := r.DB.Preload("User").
		Joins("JOIN users u ON u.id = attendance_records.user_id").
		Where("attendance_records.lecture_id = ?", lectureID).
		Order("u.name").
		Find(&records).Error
	if err != nil {
		return nil, fmt.Errorf("failed to list attendance for lecture %d: %w", lectureID, err)
	}
	return records, nil
}

// DeleteForLecturesAndStudents removes the attendance rows of the given
// students across the given lectures. Used when students are unenrolled from
// a subject.
func (r *AttendanceRepository) DeleteForLecturesAndStudents(lectureIDs []uint, userIDs []uint) error {
	if len(lectureIDs) == 0 || len(userIDs) == 0 {
		return nil
	}
	err := r.DB.Where("lecture_id IN ? AND user_id IN ?", lectureIDs, userIDs).
		Delete(&models.AttendanceRecord{}).Error
	if err != nil {
		return fmt.Errorf("failed to delete attendance rows: %w", err)
	}
	return nil
}
