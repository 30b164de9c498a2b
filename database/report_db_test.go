package database

import (
	"database/sql"
	"path/filepath"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/hajri-app/hajriback/models"
)

func setupReportDB(t *testing.T) (*gorm.DB, *sql.DB) {
	t.Helper()
	gormDB, err := InitGormDB(filepath.Join(t.TempDir(), "report_test.db"))
	if err != nil {
		t.Fatalf("InitGormDB failed: %v", err)
	}
	if err := AutoMigrateModels(gormDB); err != nil {
		t.Fatalf("AutoMigrateModels failed: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		t.Fatalf("DB() failed: %v", err)
	}
	return gormDB, sqlDB
}

func seedReportData(t *testing.T, db *gorm.DB) (subjectID uint) {
	t.Helper()
	now := time.Now().Unix()

	subject := models.Subject{Name: "Databases", CreatedAt: now, UpdatedAt: now}
	if err := db.Create(&subject).Error; err != nil {
		t.Fatalf("create subject: %v", err)
	}

	students := []models.User{
		{Username: "ENR001", Name: "Alice", Role: models.RoleStudent, PasswordHash: "x", CreatedAt: now, UpdatedAt: now},
		{Username: "ENR002", Name: "Bob", Role: models.RoleStudent, PasswordHash: "x", CreatedAt: now, UpdatedAt: now},
	}
	for i := range students {
		if err := db.Create(&students[i]).Error; err != nil {
			t.Fatalf("create student: %v", err)
		}
		link := models.StudentSubject{UserID: students[i].ID, SubjectID: subject.ID, CreatedAt: now}
		if err := db.Create(&link).Error; err != nil {
			t.Fatalf("enroll student: %v", err)
		}
	}

	lectures := []models.Lecture{
		{SubjectID: subject.ID, Name: "Week 1", Date: "2025-09-01 10:00", CreatedAt: now, UpdatedAt: now},
		{SubjectID: subject.ID, Name: "Week 2", Date: "2025-09-08 10:00", CreatedAt: now, UpdatedAt: now},
	}
	for i := range lectures {
		if err := db.Create(&lectures[i]).Error; err != nil {
			t.Fatalf("create lecture: %v", err)
		}
	}

	// Alice attends both lectures, Bob neither
	statuses := map[uint]string{students[0].ID: models.StatusPresent, students[1].ID: models.StatusAbsent}
	for _, lecture := range lectures {
		for userID, status := range statuses {
			record := models.AttendanceRecord{
				LectureID: lecture.ID,
				UserID:    userID,
				Status:    status,
				CreatedAt: now,
				UpdatedAt: now,
			}
			if err := db.Create(&record).Error; err != nil {
				t.Fatalf("create attendance record: %v", err)
			}
		}
	}

	return subject.ID
}

func TestGetSubjectReport(t *testing.T) {
	gormDB, sqlDB := setupReportDB(t)
	subjectID := seedReportData(t, gormDB)

	report, err := GetSubjectReport(sqlDB, subjectID, 75.0)
	if err != nil {
		t.Fatalf("GetSubjectReport failed: %v", err)
	}

	if report.TotalStudents != 2 {
		t.Errorf("TotalStudents = %d, want 2", report.TotalStudents)
	}
	if report.TotalLectures != 2 {
		t.Errorf("TotalLectures = %d, want 2", report.TotalLectures)
	}
	if len(report.Students) != 2 {
		t.Fatalf("Students rows = %d, want 2", len(report.Students))
	}

	// rows come back ordered by name
	alice, bob := report.Students[0], report.Students[1]
	if alice.Enrollment != "ENR001" || bob.Enrollment != "ENR002" {
		t.Fatalf("unexpected row order: %q, %q", alice.Enrollment, bob.Enrollment)
	}
	if alice.PresentCount != 2 || alice.Percentage != 100.0 {
		t.Errorf("alice = %d present, %.1f%%, want 2, 100.0", alice.PresentCount, alice.Percentage)
	}
	if bob.PresentCount != 0 || bob.Percentage != 0.0 {
		t.Errorf("bob = %d present, %.1f%%, want 0, 0.0", bob.PresentCount, bob.Percentage)
	}

	if report.OverallAttendance != 50.0 {
		t.Errorf("OverallAttendance = %.1f, want 50.0", report.OverallAttendance)
	}

	if len(report.Defaulters) != 1 || report.Defaulters[0].Enrollment != "ENR002" {
		t.Errorf("Defaulters = %+v, want only bob", report.Defaulters)
	}

	if len(report.Trends) != 2 {
		t.Fatalf("Trends rows = %d, want 2", len(report.Trends))
	}
	for _, trend := range report.Trends {
		if trend.PresentCount != 1 {
			t.Errorf("trend %q present = %d, want 1", trend.LectureName, trend.PresentCount)
		}
	}
}

func TestGetSubjectReportEmptySubject(t *testing.T) {
	gormDB, sqlDB := setupReportDB(t)

	now := time.Now().Unix()
	subject := models.Subject{Name: "Ghost Course", CreatedAt: now, UpdatedAt: now}
	if err := gormDB.Create(&subject).Error; err != nil {
		t.Fatalf("create subject: %v", err)
	}

	report, err := GetSubjectReport(sqlDB, subject.ID, 75.0)
	if err != nil {
		t.Fatalf("GetSubjectReport failed: %v", err)
	}
	if report.TotalStudents != 0 || report.TotalLectures != 0 {
		t.Errorf("counts = %d students, %d lectures, want 0, 0", report.TotalStudents, report.TotalLectures)
	}
	if len(report.Students) != 0 || len(report.Defaulters) != 0 || len(report.Trends) != 0 {
		t.Error("empty subject produced non-empty report sections")
	}
}

func TestGetStudentReport(t *testing.T) {
	gormDB, sqlDB := setupReportDB(t)
	seedReportData(t, gormDB)

	var alice models.User
	if err := gormDB.Where("username = ?", "ENR001").First(&alice).Error; err != nil {
		t.Fatalf("lookup alice: %v", err)
	}

	// a second subject with no lectures yet
	now := time.Now().Unix()
	fresh := models.Subject{Name: "Compilers", CreatedAt: now, UpdatedAt: now}
	if err := gormDB.Create(&fresh).Error; err != nil {
		t.Fatalf("create subject: %v", err)
	}
	link := models.StudentSubject{UserID: alice.ID, SubjectID: fresh.ID, CreatedAt: now}
	if err := gormDB.Create(&link).Error; err != nil {
		t.Fatalf("enroll alice: %v", err)
	}

	report, err := GetStudentReport(sqlDB, alice.ID)
	if err != nil {
		t.Fatalf("GetStudentReport failed: %v", err)
	}
	if len(report.Subjects) != 2 {
		t.Fatalf("Subjects rows = %d, want 2", len(report.Subjects))
	}

	// subjects come back ordered by name
	compilers, databases := report.Subjects[0], report.Subjects[1]
	if compilers.SubjectName != "Compilers" || databases.SubjectName != "Databases" {
		t.Fatalf("unexpected subject order: %q, %q", compilers.SubjectName, databases.SubjectName)
	}

	if databases.TotalLectures != 2 || databases.PresentCount != 2 || databases.Percentage != 100.0 {
		t.Errorf("databases = %d lectures, %d present, %.1f%%, want 2, 2, 100.0",
			databases.TotalLectures, databases.PresentCount, databases.Percentage)
	}
	if len(databases.Lectures) != 2 {
		t.Fatalf("databases lecture rows = %d, want 2", len(databases.Lectures))
	}
	if databases.Lectures[0].Lecture != "Week 1" || databases.Lectures[0].Status != models.StatusPresent {
		t.Errorf("first lecture row = %+v, want Week 1 present", databases.Lectures[0])
	}

	// no lectures held yet counts as full attendance
	if compilers.TotalLectures != 0 || compilers.Percentage != 100.0 {
		t.Errorf("compilers = %d lectures, %.1f%%, want 0, 100.0",
			compilers.TotalLectures, compilers.Percentage)
	}
}

func TestGetStudentReportNoEnrollments(t *testing.T) {
	gormDB, sqlDB := setupReportDB(t)

	now := time.Now().Unix()
	loner := models.User{Username: "ENR100", Name: "Zed", Role: models.RoleStudent, PasswordHash: "x", CreatedAt: now, UpdatedAt: now}
	if err := gormDB.Create(&loner).Error; err != nil {
		t.Fatalf("create student: %v", err)
	}

	report, err := GetStudentReport(sqlDB, loner.ID)
	if err != nil {
		t.Fatalf("GetStudentReport failed: %v", err)
	}
	if len(report.Subjects) != 0 {
		t.Errorf("Subjects rows = %d, want 0", len(report.Subjects))
	}
}
