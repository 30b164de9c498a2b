package models

import "time"

// LectureDateLayout is the display format lecture dates are stored in.
const LectureDateLayout = "2006-01-02 15:04"

// NowLectureDate formats the current time in the lecture date layout.
func NowLectureDate() string {
	return time.Now().Format(LectureDateLayout)
}

// Lecture represents one held lecture of a subject.
// It corresponds to the 'lectures' table.
type Lecture struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	SubjectID uint   `gorm:"not null;index:idx_subject_lecture,unique" json:"subject_id"`
	Name      string `gorm:"not null;index:idx_subject_lecture,unique" json:"name"`
	Date      string `gorm:"not null" json:"date"` // "2006-01-02 15:04"
	CreatedAt int64  `gorm:"not null" json:"created_at"`
	UpdatedAt int64  `gorm:"not null" json:"updated_at"`

	Subject *Subject `gorm:"foreignKey:SubjectID" json:"subject,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Lecture) TableName() string {
	return "lectures"
}

// LecturePhoto records a probe photograph submitted for a lecture, with the
// capture timestamp recovered from EXIF when the camera wrote one.
type LecturePhoto struct {
	ID          uint    `gorm:"primaryKey;autoIncrement" json:"id"`
	LectureID   uint    `gorm:"not null;index" json:"lecture_id"`
	StoredPath  string  `gorm:"not null" json:"stored_path"`
	TakenAt     *int64  `gorm:"" json:"taken_at,omitempty"` // Nullable, Unix timestamp from EXIF
	CameraModel *string `gorm:"" json:"camera_model,omitempty"`
	CreatedAt   int64   `gorm:"not null" json:"created_at"`

	Lecture *Lecture `gorm:"foreignKey:LectureID;constraint:OnDelete:CASCADE" json:"lecture,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (LecturePhoto) TableName() string {
	return "lecture_photos"
}
