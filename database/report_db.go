package database

import (
	"database/sql"
	"fmt"

	sq "github.com/Masterminds/squirrel"
)

var psql = sq.StatementBuilder.PlaceholderFormat(sq.Question)

// StudentAttendanceRow is one student's aggregated attendance for a subject.
type StudentAttendanceRow struct {
	UserID       uint    `json:"user_id"`
	Enrollment   string  `json:"enrollment"`
	Name         string  `json:"name"`
	Email        *string `json:"email,omitempty"`
	PresentCount int     `json:"present_count"`
	Percentage   float64 `json:"percentage"`
}

// LectureTrendRow is the present count for one lecture of a subject.
type LectureTrendRow struct {
	LectureName  string `json:"lecture"`
	PresentCount int    `json:"present_count"`
}

// SubjectReport is the dashboard aggregation for a subject.
type SubjectReport struct {
	TotalStudents     int                    `json:"total_students"`
	TotalLectures     int                    `json:"total_lectures"`
	OverallAttendance float64                `json:"overall_attendance"`
	Students          []StudentAttendanceRow `json:"students"`
	Defaulters        []StudentAttendanceRow `json:"defaulters"`
	Trends            []LectureTrendRow      `json:"trends"`
}

// CountSubjectStudents returns the number of students enrolled in a subject.
func CountSubjectStudents(db *sql.DB, subjectID uint) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("student_subjects").
		Where(sq.Eq{"subject_id": subjectID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build student count query: %w", err)
	}
	var count int
	if err := db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count students for subject %d: %w", subjectID, err)
	}
	return count, nil
}

// CountSubjectLectures returns the number of lectures held for a subject.
func CountSubjectLectures(db *sql.DB, subjectID uint) (int, error) {
	query, args, err := psql.Select("COUNT(*)").
		From("lectures").
		Where(sq.Eq{"subject_id": subjectID}).
		ToSql()
	if err != nil {
		return 0, fmt.Errorf("failed to build lecture count query: %w", err)
	}
	var count int
	if err := db.QueryRow(query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count lectures for subject %d: %w", subjectID, err)
	}
	return count, nil
}

// GetSubjectReport aggregates attendance for a subject. Students whose
// percentage falls below defaulterThreshold are additionally listed as
// defaulters.
func GetSubjectReport(db *sql.DB, subjectID uint, defaulterThreshold float64) (*SubjectReport, error) {
	totalStudents, err := CountSubjectStudents(db, subjectID)
	if err != nil {
		return nil, err
	}
	totalLectures, err := CountSubjectLectures(db, subjectID)
	if err != nil {
		return nil, err
	}

	report := &SubjectReport{
		TotalStudents: totalStudents,
		TotalLectures: totalLectures,
		Students:      []StudentAttendanceRow{},
		Defaulters:    []StudentAttendanceRow{},
		Trends:        []LectureTrendRow{},
	}
	if totalStudents == 0 || totalLectures == 0 {
		return report, nil
	}

	query, args, err := psql.Select(
		"u.id", "u.username", "u.name", "u.email",
		"SUM(CASE WHEN a.status = 'P' THEN 1 ELSE 0 END) AS present_count",
	).
		From("attendance_records a").
		Join("lectures l ON a.lecture_id = l.id").
		Join("users u ON a.user_id = u.id").
		Where(sq.Eq{"l.subject_id": subjectID, "u.role": "student"}).
		GroupBy("u.id", "u.username", "u.name", "u.email").
		OrderBy("u.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build subject report query: %w", err)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query subject report for subject %d: %w", subjectID, err)
	}
	defer rows.Close()

	var percentageSum float64
	for rows.Next() {
		var row StudentAttendanceRow
		if err := rows.Scan(&row.UserID, &row.Enrollment, &row.Name, &row.Email, &row.PresentCount); err != nil {
			return nil, fmt.Errorf("failed to scan subject report row: %w", err)
		}
		row.Percentage = float64(row.PresentCount) / float64(totalLectures) * 100
		percentageSum += row.Percentage
		report.Students = append(report.Students, row)
		if row.Percentage < defaulterThreshold {
			report.Defaulters = append(report.Defaulters, row)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating subject report rows: %w", err)
	}

	if len(report.Students) > 0 {
		report.OverallAttendance = percentageSum / float64(len(report.Students))
	}

	trends, err := getLectureTrends(db, subjectID)
	if err != nil {
		return nil, err
	}
	report.Trends = trends

	return report, nil
}

func getLectureTrends(db *sql.DB, subjectID uint) ([]LectureTrendRow, error) {
	query, args, err := psql.Select(
		"l.name",
		"SUM(CASE WHEN a.status = 'P' THEN 1 ELSE 0 END) AS present_count",
	).
		From("lectures l").
		LeftJoin("attendance_records a ON a.lecture_id = l.id").
		Where(sq.Eq{"l.subject_id": subjectID}).
		GroupBy("l.id", "l.name").
		OrderBy("l.date").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build lecture trend query: %w", err)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query lecture trends for subject %d: %w", subjectID, err)
	}
	defer rows.Close()

	trends := []LectureTrendRow{}
	for rows.Next() {
		var row LectureTrendRow
		if err := rows.Scan(&row.LectureName, &row.PresentCount); err != nil {
			return nil, fmt.Errorf("failed to scan lecture trend row: %w", err)
		}
		trends = append(trends, row)
	}
	return trends, rows.Err()
}

// StudentLectureRow is one lecture's status in a student's own report.
type StudentLectureRow struct {
	Lecture string `json:"lecture"`
	Date    string `json:"date"`
	Status  string `json:"status"`
}

// StudentSubjectRow aggregates one enrolled subject for a student's report.
type StudentSubjectRow struct {
	SubjectID     uint                `json:"subject_id"`
	SubjectName   string              `json:"subject_name"`
	TotalLectures int                 `json:"total_lectures"`
	PresentCount  int                 `json:"present_count"`
	Percentage    float64             `json:"percentage"`
	Lectures      []StudentLectureRow `json:"lectures"`
}

// StudentReport is one student's attendance across every enrolled subject.
type StudentReport struct {
	Subjects []StudentSubjectRow `json:"subjects"`
}

// GetStudentReport aggregates attendance per enrolled subject for a student.
// A subject with no lectures yet counts as 100% attendance.
func GetStudentReport(db *sql.DB, userID uint) (*StudentReport, error) {
	query, args, err := psql.Select("s.id", "s.name").
		From("subjects s").
		Join("student_subjects ss ON ss.subject_id = s.id").
		Where(sq.Eq{"ss.user_id": userID}).
		OrderBy("s.name").
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("failed to build enrolled subjects query: %w", err)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query enrolled subjects for student %d: %w", userID, err)
	}
	defer rows.Close()

	report := &StudentReport{Subjects: []StudentSubjectRow{}}
	for rows.Next() {
		var subject StudentSubjectRow
		if err := rows.Scan(&subject.SubjectID, &subject.SubjectName); err != nil {
			return nil, fmt.Errorf("failed to scan enrolled subject row: %w", err)
		}
		report.Subjects = append(report.Subjects, subject)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed iterating enrolled subject rows: %w", err)
	}

	for i := range report.Subjects {
		subject := &report.Subjects[i]

		totalLectures, err := CountSubjectLectures(db, subject.SubjectID)
		if err != nil {
			return nil, err
		}
		subject.TotalLectures = totalLectures
		subject.Lectures = []StudentLectureRow{}
		if totalLectures == 0 {
			subject.Percentage = 100
			continue
		}

		lectures, presentCount, err := getStudentLectureRows(db, userID, subject.SubjectID)
		if err != nil {
			return nil, err
		}
		subject.Lectures = lectures
		subject.PresentCount = presentCount
		subject.Percentage = float64(presentCount) / float64(totalLectures) * 100
	}

	return report, nil
}

func getStudentLectureRows(db *sql.DB, userID, subjectID uint) ([]StudentLectureRow, int, error) {
	query, args, err := psql.Select("l.name", "l.date", "a.status").
		From("attendance_records a").
		Join("lectures l ON a.lecture_id = l.id").
		Where(sq.Eq{"a.user_id": userID, "l.subject_id": subjectID}).
		OrderBy("l.date").
		ToSql()
	if err != nil {
		return nil, 0, fmt.Errorf("failed to build student lecture query: %w", err)
	}

	rows, err := db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query lectures for student %d subject %d: %w", userID, subjectID, err)
	}
	defer rows.Close()

	lectures := []StudentLectureRow{}
	presentCount := 0
	for rows.Next() {
		var row StudentLectureRow
		if err := rows.Scan(&row.Lecture, &row.Date, &row.Status); err != nil {
			return nil, 0, fmt.Errorf("failed to scan student lecture row: %w", err)
		}
		if row.Status == "P" {
			presentCount++
		}
		lectures = append(lectures, row)
	}
	return lectures, presentCount, rows.Err()
}
