package models

// Attendance status values. Single characters to match the ledger's wire
// format in reports.
const (
	StatusPresent = "P"
	StatusAbsent  = "A"
)

// AttendanceRecord is one student's state for one lecture, unique per
// (lecture, student). Rows are seeded Absent when a lecture is created and
// mutated by review or manual entry; they are only removed by cascading
// deletes of the lecture or the enrollment link.
type AttendanceRecord struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	LectureID uint   `gorm:"not null;index:idx_lecture_student,unique" json:"lecture_id"`
	UserID    uint   `gorm:"not null;index:idx_lecture_student,unique" json:"user_id"`
	Status    string `gorm:"not null;check:status IN ('P','A')" json:"status"`
	CreatedAt int64  `gorm:"not null" json:"created_at"`
	UpdatedAt int64  `gorm:"not null" json:"updated_at"`

	Lecture *Lecture `gorm:"foreignKey:LectureID;constraint:OnDelete:CASCADE" json:"lecture,omitempty"`
	User    *User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (AttendanceRecord) TableName() string {
	return "attendance_records"
}
