package models

// Subject represents a taught subject in the database using GORM.
// It corresponds to the 'subjects' table.
type Subject struct {
	ID        uint   `gorm:"primaryKey;autoIncrement" json:"id"`
	Name      string `gorm:"not null;unique" json:"name"`
	CreatedAt int64  `gorm:"not null" json:"created_at"` // Stored as INTEGER in SQLite, Unix timestamp
	UpdatedAt int64  `gorm:"not null" json:"updated_at"` // Stored as INTEGER in SQLite, Unix timestamp

	Lectures []Lecture `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"lectures,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (Subject) TableName() string {
	return "subjects"
}

// StudentSubject links a student to a subject they are enrolled in.
// It corresponds to the 'student_subjects' table.
type StudentSubject struct {
	UserID    uint  `gorm:"primaryKey" json:"user_id"`
	SubjectID uint  `gorm:"primaryKey" json:"subject_id"`
	CreatedAt int64 `gorm:"not null" json:"created_at"`

	User    *User    `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Subject *Subject `gorm:"foreignKey:SubjectID;constraint:OnDelete:CASCADE" json:"subject,omitempty"`
}

// TableName explicitly sets the table name for GORM.
func (StudentSubject) TableName() string {
	return "student_subjects"
}
