package services

import (
	"image"
	"path/filepath"
	"strings"
	"testing"

	"gorm.io/gorm"

	"github.com/hajri-app/hajriback/database"
	"github.com/hajri-app/hajriback/models"
	"github.com/hajri-app/hajriback/recognition"
	"github.com/hajri-app/hajriback/repository"
)

// nullEngine satisfies recognition.FaceEngine without any models loaded.
type nullEngine struct{}

func (nullEngine) DetectAndEmbed(img image.Image) ([]recognition.Face, error) {
	return []recognition.Face{}, nil
}

func (nullEngine) Liveness(crop image.Image) bool { return true }

type testEnv struct {
	db             *gorm.DB
	userRepo       repository.UserRepositoryInterface
	subjectRepo    repository.SubjectRepositoryInterface
	lectureRepo    repository.LectureRepositoryInterface
	attendanceRepo repository.AttendanceRepositoryInterface
	attendanceSvc  *AttendanceService
	enrollmentSvc  *EnrollmentService
	store          *recognition.ImageStore
}

func setupEnv(t *testing.T) *testEnv {
	t.Helper()

	db, err := database.InitGormDB(filepath.Join(t.TempDir(), "test.db"))
	if err != nil {
		t.Fatalf("InitGormDB failed: %v", err)
	}
	if err := database.AutoMigrateModels(db); err != nil {
		t.Fatalf("AutoMigrateModels failed: %v", err)
	}

	store, err := recognition.NewImageStore(t.TempDir())
	if err != nil {
		t.Fatalf("NewImageStore failed: %v", err)
	}
	index := recognition.NewIndex(filepath.Join(store.Root(), "representations.idx"))
	trainer := recognition.NewTrainer(store, nullEngine{}, index)

	env := &testEnv{
		db:             db,
		userRepo:       repository.NewUserRepository(db),
		subjectRepo:    repository.NewSubjectRepository(db),
		lectureRepo:    repository.NewLectureRepository(db),
		attendanceRepo: repository.NewAttendanceRepository(db),
		store:          store,
	}
	env.attendanceSvc = NewAttendanceService(env.userRepo, env.subjectRepo, env.lectureRepo, env.attendanceRepo)
	env.enrollmentSvc = NewEnrollmentService(env.userRepo, env.subjectRepo, env.lectureRepo, env.attendanceRepo, store, trainer)
	return env
}

func (env *testEnv) mustCreateStudent(t *testing.T, enrollment, name string) *models.User {
	t.Helper()
	user, err := env.enrollmentSvc.CreateStudent(enrollment, name, "", "secret123")
	if err != nil {
		t.Fatalf("CreateStudent(%s) failed: %v", enrollment, err)
	}
	return user
}

func (env *testEnv) mustCreateSubject(t *testing.T, name string) *models.Subject {
	t.Helper()
	subject := &models.Subject{Name: name}
	if err := env.subjectRepo.Create(subject); err != nil {
		t.Fatalf("Create subject failed: %v", err)
	}
	return subject
}

func (env *testEnv) mustCreateLecture(t *testing.T, subjectID uint, name string) *models.Lecture {
	t.Helper()
	lecture := &models.Lecture{SubjectID: subjectID, Name: name, Date: "2025-09-01 10:00"}
	if err := env.lectureRepo.Create(lecture); err != nil {
		t.Fatalf("Create lecture failed: %v", err)
	}
	return lecture
}

func (env *testEnv) status(t *testing.T, lectureID, userID uint) string {
	t.Helper()
	record, err := env.attendanceRepo.GetRecord(lectureID, userID)
	if err != nil {
		t.Fatalf("GetRecord(%d, %d) failed: %v", lectureID, userID, err)
	}
	return record.Status
}

func TestSeedLectureCreatesAbsentRecords(t *testing.T) {
	env := setupEnv(t)

	subject := env.mustCreateSubject(t, "Databases")
	alice := env.mustCreateStudent(t, "ENR001", "Alice")
	bob := env.mustCreateStudent(t, "ENR002", "Bob")
	for _, u := range []*models.User{alice, bob} {
		if err := env.subjectRepo.EnrollStudent(u.ID, subject.ID); err != nil {
			t.Fatalf("EnrollStudent failed: %v", err)
		}
	}

	lecture := env.mustCreateLecture(t, subject.ID, "Week 1")
	if err := env.attendanceSvc.SeedLecture(lecture); err != nil {
		t.Fatalf("SeedLecture failed: %v", err)
	}

	for _, u := range []*models.User{alice, bob} {
		if got := env.status(t, lecture.ID, u.ID); got != models.StatusAbsent {
			t.Errorf("seeded status for %s = %q, want %q", u.Username, got, models.StatusAbsent)
		}
	}
}

func TestSeedLectureIsIdempotent(t *testing.T) {
	env := setupEnv(t)

	subject := env.mustCreateSubject(t, "Networks")
	alice := env.mustCreateStudent(t, "ENR001", "Alice")
	if err := env.subjectRepo.EnrollStudent(alice.ID, subject.ID); err != nil {
		t.Fatalf("EnrollStudent failed: %v", err)
	}
	lecture := env.mustCreateLecture(t, subject.ID, "Week 1")

	if err := env.attendanceSvc.SeedLecture(lecture); err != nil {
		t.Fatalf("first SeedLecture failed: %v", err)
	}
	if err := env.attendanceRepo.SetStatus(lecture.ID, alice.ID, models.StatusPresent); err != nil {
		t.Fatalf("SetStatus failed: %v", err)
	}

	// a second seed must not reset the reviewed status or duplicate rows
	if err := env.attendanceSvc.SeedLecture(lecture); err != nil {
		t.Fatalf("second SeedLecture failed: %v", err)
	}
	if got := env.status(t, lecture.ID, alice.ID); got != models.StatusPresent {
		t.Errorf("status after re-seed = %q, want %q", got, models.StatusPresent)
	}
	records, err := env.attendanceRepo.ListByLecture(lecture.ID)
	if err != nil {
		t.Fatalf("ListByLecture failed: %v", err)
	}
	if len(records) != 1 {
		t.Errorf("record count after re-seed = %d, want 1", len(records))
	}
}

func TestApplyReviewFlipsBothDirections(t *testing.T) {
	env := setupEnv(t)

	subject := env.mustCreateSubject(t, "Algorithms")
	alice := env.mustCreateStudent(t, "ENR001", "Alice")
	bob := env.mustCreateStudent(t, "ENR002", "Bob")
	for _, u := range []*models.User{alice, bob} {
		if err := env.subjectRepo.EnrollStudent(u.ID, subject.ID); err != nil {
			t.Fatalf("EnrollStudent failed: %v", err)
		}
	}
	lecture := env.mustCreateLecture(t, subject.ID, "Week 1")
	if err := env.attendanceSvc.SeedLecture(lecture); err != nil {
		t.Fatalf("SeedLecture failed: %v", err)
	}

	if err := env.attendanceSvc.ApplyReview(lecture.ID, map[uint]bool{alice.ID: true, bob.ID: true}); err != nil {
		t.Fatalf("ApplyReview failed: %v", err)
	}
	if got := env.status(t, lecture.ID, alice.ID); got != models.StatusPresent {
		t.Errorf("alice after review = %q, want P", got)
	}

	// review may also demote, unlike manual marking
	if err := env.attendanceSvc.ApplyReview(lecture.ID, map[uint]bool{alice.ID: false}); err != nil {
		t.Fatalf("second ApplyReview failed: %v", err)
	}
	if got := env.status(t, lecture.ID, alice.ID); got != models.StatusAbsent {
		t.Errorf("alice after demoting review = %q, want A", got)
	}
	if got := env.status(t, lecture.ID, bob.ID); got != models.StatusPresent {
		t.Errorf("bob untouched by second review = %q, want P", got)
	}
}

func TestMarkManual(t *testing.T) {
	env := setupEnv(t)

	subject := env.mustCreateSubject(t, "Compilers")
	alice := env.mustCreateStudent(t, "ENR001", "Alice")
	outsider := env.mustCreateStudent(t, "ENR999", "Zed")
	if err := env.subjectRepo.EnrollStudent(alice.ID, subject.ID); err != nil {
		t.Fatalf("EnrollStudent failed: %v", err)
	}
	lecture := env.mustCreateLecture(t, subject.ID, "Week 1")
	if err := env.attendanceSvc.SeedLecture(lecture); err != nil {
		t.Fatalf("SeedLecture failed: %v", err)
	}
	_ = outsider

	t.Run("unknown enrollment", func(t *testing.T) {
		ok, message := env.attendanceSvc.MarkManual(lecture.ID, "NOPE")
		if ok {
			t.Fatal("MarkManual succeeded for unknown student")
		}
		if message != "Student 'NOPE' not found." {
			t.Errorf("message = %q", message)
		}
	})

	t.Run("not enrolled in subject", func(t *testing.T) {
		ok, message := env.attendanceSvc.MarkManual(lecture.ID, "ENR999")
		if ok {
			t.Fatal("MarkManual succeeded for unenrolled student")
		}
		if !strings.Contains(message, "not enrolled") {
			t.Errorf("message = %q, want enrollment complaint", message)
		}
	})

	t.Run("marks present", func(t *testing.T) {
		ok, message := env.attendanceSvc.MarkManual(lecture.ID, "ENR001")
		if !ok {
			t.Fatalf("MarkManual failed: %s", message)
		}
		if got := env.status(t, lecture.ID, alice.ID); got != models.StatusPresent {
			t.Errorf("status = %q, want P", got)
		}
	})

	t.Run("never demotes", func(t *testing.T) {
		ok, message := env.attendanceSvc.MarkManual(lecture.ID, "ENR001")
		if !ok {
			t.Fatalf("repeated MarkManual failed: %s", message)
		}
		if got := env.status(t, lecture.ID, alice.ID); got != models.StatusPresent {
			t.Errorf("status = %q after repeat, want P", got)
		}
	})
}

func TestSuggestReviewIgnoresUnknownEnrollments(t *testing.T) {
	env := setupEnv(t)

	subject := env.mustCreateSubject(t, "Graphics")
	alice := env.mustCreateStudent(t, "ENR001", "Alice")
	if err := env.subjectRepo.EnrollStudent(alice.ID, subject.ID); err != nil {
		t.Fatalf("EnrollStudent failed: %v", err)
	}
	lecture := env.mustCreateLecture(t, subject.ID, "Week 1")
	if err := env.attendanceSvc.SeedLecture(lecture); err != nil {
		t.Fatalf("SeedLecture failed: %v", err)
	}

	present := []recognition.PresentStudent{
		{Enrollment: "ENR001", Name: "Alice"},
		{Enrollment: "GHOST", Name: "Nobody"},
	}
	review, err := env.attendanceSvc.SuggestReview(lecture.ID, present)
	if err != nil {
		t.Fatalf("SuggestReview failed: %v", err)
	}
	if len(review) != 1 {
		t.Fatalf("review rows = %d, want 1", len(review))
	}
	if !review[0].Present || review[0].Enrollment != "ENR001" {
		t.Errorf("review row = %+v, want ENR001 proposed present", review[0])
	}

	// recognition output is a proposal; the ledger must stay untouched
	// until the review is submitted
	if got := env.status(t, lecture.ID, alice.ID); got != models.StatusAbsent {
		t.Errorf("alice status = %q after suggestion, want A", got)
	}

	if err := env.attendanceSvc.ApplyReview(lecture.ID, map[uint]bool{alice.ID: true}); err != nil {
		t.Fatalf("ApplyReview failed: %v", err)
	}
	if got := env.status(t, lecture.ID, alice.ID); got != models.StatusPresent {
		t.Errorf("alice status = %q after review, want P", got)
	}
}

func TestSuggestReviewKeepsExistingPresent(t *testing.T) {
	env := setupEnv(t)

	subject := env.mustCreateSubject(t, "Networks")
	alice := env.mustCreateStudent(t, "ENR001", "Alice")
	bob := env.mustCreateStudent(t, "ENR002", "Bob")
	for _, u := range []uint{alice.ID, bob.ID} {
		if err := env.subjectRepo.EnrollStudent(u, subject.ID); err != nil {
			t.Fatalf("EnrollStudent failed: %v", err)
		}
	}
	lecture := env.mustCreateLecture(t, subject.ID, "Week 1")
	if err := env.attendanceSvc.SeedLecture(lecture); err != nil {
		t.Fatalf("SeedLecture failed: %v", err)
	}
	if ok, message := env.attendanceSvc.MarkManual(lecture.ID, "ENR002"); !ok {
		t.Fatalf("MarkManual failed: %s", message)
	}

	review, err := env.attendanceSvc.SuggestReview(lecture.ID, nil)
	if err != nil {
		t.Fatalf("SuggestReview failed: %v", err)
	}
	byEnrollment := make(map[string]bool, len(review))
	for _, row := range review {
		byEnrollment[row.Enrollment] = row.Present
	}
	if byEnrollment["ENR001"] {
		t.Error("ENR001 proposed present without recognition or a prior mark")
	}
	if !byEnrollment["ENR002"] {
		t.Error("ENR002 lost its manual Present mark in the proposal")
	}
}

func TestEnrollBackfillsExistingLectures(t *testing.T) {
	env := setupEnv(t)

	subject := env.mustCreateSubject(t, "AI")
	lecture := env.mustCreateLecture(t, subject.ID, "Week 1")
	alice := env.mustCreateStudent(t, "ENR001", "Alice")

	if err := env.enrollmentSvc.EnrollInSubject(alice.ID, subject.ID); err != nil {
		t.Fatalf("EnrollInSubject failed: %v", err)
	}
	if got := env.status(t, lecture.ID, alice.ID); got != models.StatusAbsent {
		t.Errorf("back-filled status = %q, want A", got)
	}
}

func TestUnenrollDeletesAttendance(t *testing.T) {
	env := setupEnv(t)

	subject := env.mustCreateSubject(t, "OS")
	alice := env.mustCreateStudent(t, "ENR001", "Alice")
	if err := env.enrollmentSvc.EnrollInSubject(alice.ID, subject.ID); err != nil {
		t.Fatalf("EnrollInSubject failed: %v", err)
	}
	lecture := env.mustCreateLecture(t, subject.ID, "Week 1")
	if err := env.attendanceSvc.SeedLecture(lecture); err != nil {
		t.Fatalf("SeedLecture failed: %v", err)
	}

	removed, err := env.enrollmentSvc.UnenrollFromSubject(subject.ID, []uint{alice.ID})
	if err != nil {
		t.Fatalf("UnenrollFromSubject failed: %v", err)
	}
	if removed != 1 {
		t.Errorf("removed = %d, want 1", removed)
	}
	if _, err := env.attendanceRepo.GetRecord(lecture.ID, alice.ID); err == nil {
		t.Error("attendance record survived unenrollment")
	}
}

func TestDeleteStudentPurgesIdentity(t *testing.T) {
	env := setupEnv(t)

	alice := env.mustCreateStudent(t, "ENR001", "Alice")
	dirs, err := env.store.IdentityDirs()
	if err != nil {
		t.Fatalf("IdentityDirs failed: %v", err)
	}
	if len(dirs) != 1 || dirs[0] != "ENR001" {
		t.Fatalf("identity dirs = %v, want [ENR001]", dirs)
	}

	if _, err := env.enrollmentSvc.DeleteStudent(alice.ID); err != nil {
		t.Fatalf("DeleteStudent failed: %v", err)
	}

	if _, err := env.userRepo.GetByUsername("ENR001"); err == nil {
		t.Error("user record survived deletion")
	}
	dirs, err = env.store.IdentityDirs()
	if err != nil {
		t.Fatalf("IdentityDirs failed: %v", err)
	}
	if len(dirs) != 0 {
		t.Errorf("identity dirs = %v after deletion, want empty", dirs)
	}
}
