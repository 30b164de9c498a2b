package repository

import (
	"github.com/hajri-app/hajriback/models"
)

// UserRepositoryInterface defines the methods for user data operations
type UserRepositoryInterface interface {
	Create(user *models.User) error
	GetByID(id uint) (*models.User, error)
	GetByUsername(username string) (*models.User, error)
	ListByRole(role string) ([]models.User, error)
	Delete(id uint) error
}

// SubjectRepositoryInterface defines the methods for subject data operations
type SubjectRepositoryInterface interface {
	Create(subject *models.Subject) error
	GetByID(id uint) (*models.Subject, error)
	ListAll() ([]models.Subject, error)
	Delete(id uint) error

	EnrollStudent(userID, subjectID uint) error
	UnenrollStudents(subjectID uint, userIDs []uint) (int64, error)
	ListStudents(subjectID uint) ([]models.User, error)
	ListStudentIDs(subjectID uint) ([]uint, error)
	IsEnrolled(userID, subjectID uint) (bool, error)
}

// LectureRepositoryInterface defines the methods for lecture data operations
type LectureRepositoryInterface interface {
	Create(lecture *models.Lecture) error
	GetByID(id uint) (*models.Lecture, error)
	ListBySubject(subjectID uint) ([]models.Lecture, error)
	ListIDsBySubject(subjectID uint) ([]uint, error)
	Delete(id uint) error
	AddPhoto(photo *models.LecturePhoto) error
}

// AttendanceRepositoryInterface defines the methods for the attendance ledger
type AttendanceRepositoryInterface interface {
	Seed(lectureID uint, userIDs []uint) error
	SetStatus(lectureID, userID uint, status string) error
	GetRecord(lectureID, userID uint) (*models.AttendanceRecord, error)
	ListByLecture(lectureID uint) ([]models.AttendanceRecord, error)
	DeleteForLecturesAndStudents(lectureIDs []uint, userIDs []uint) error
}
