package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/joho/godotenv"
	"github.com/rs/cors"

	"github.com/hajri-app/hajriback/config"
	"github.com/hajri-app/hajriback/database"
	"github.com/hajri-app/hajriback/handlers"
	"github.com/hajri-app/hajriback/recognition"
	"github.com/hajri-app/hajriback/repository"
	"github.com/hajri-app/hajriback/services"
)

func main() {
	err := godotenv.Load()
	if err != nil {
		log.Printf("Info: No .env file found or error loading: %v", err)
	}
	cfg, err := config.LoadConfig()
	if err != nil {
		log.Fatalf("FATAL: Failed to load configuration: %v", err)
	}

	storagePaths := []string{cfg.TrainingImagesPath, cfg.ProbeUploadsPath, filepath.Dir(cfg.DatabasePath)}
	for _, p := range storagePaths {
		log.Printf("Ensuring storage directory exists: %s", p)
		if err := os.MkdirAll(p, 0755); err != nil {
			log.Fatalf("FATAL: Failed to create storage directory %s: %v", p, err)
		}
	}

	gormDB, err := database.InitGormDB(cfg.DatabasePath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize database: %v", err)
	}
	if err := database.AutoMigrateModels(gormDB); err != nil {
		log.Fatalf("FATAL: Failed to migrate database schema: %v", err)
	}
	sqlDB, err := gormDB.DB()
	if err != nil {
		log.Fatalf("FATAL: Failed to get underlying sql.DB: %v", err)
	}
	defer sqlDB.Close()

	userRepo := repository.NewUserRepository(gormDB)
	subjectRepo := repository.NewSubjectRepository(gormDB)
	lectureRepo := repository.NewLectureRepository(gormDB)
	attendanceRepo := repository.NewAttendanceRepository(gormDB)

	store, err := recognition.NewImageStore(cfg.TrainingImagesPath)
	if err != nil {
		log.Fatalf("FATAL: Failed to initialize image store: %v", err)
	}
	engine := recognition.NewGoCVEngine(
		cfg.FaceDetectorConfigPath,
		cfg.FaceDetectorModelPath,
		cfg.FaceEmbedderModelPath,
		cfg.FaceEmbedderModelName,
	)
	defer engine.Close()

	index := recognition.NewIndex(cfg.IndexArtifactPath())
	trainer := recognition.NewTrainer(store, engine, index)
	augmenter := recognition.NewAugmenter(store, cfg.RawCaptureCount, cfg.CorpusTarget, cfg.AugmentedSize)
	roster := services.NewDBRoster(userRepo)
	recognizer := recognition.NewRecognizer(engine, index, roster, cfg.RecognitionTopK, cfg.CropPadding)

	attendanceSvc := services.NewAttendanceService(userRepo, subjectRepo, lectureRepo, attendanceRepo)
	enrollmentSvc := services.NewEnrollmentService(userRepo, subjectRepo, lectureRepo, attendanceRepo, store, trainer)

	log.Printf("Using database: %s", cfg.DatabasePath)
	log.Printf("Training images in: %s", cfg.TrainingImagesPath)
	log.Printf("Index artifact: %s", cfg.IndexArtifactPath())
	log.Printf("Capture pipeline: %d raw -> %d total per student", cfg.RawCaptureCount, cfg.CorpusTarget)

	r := chi.NewRouter()

	corsOptions := cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173"}, //TODO: configurable
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-CSRF-Token"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300,
	}

	corsHandler := cors.New(corsOptions)

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	// training and recognition block; give them room to finish
	r.Use(middleware.Timeout(300 * time.Second))
	r.Use(corsHandler.Handler)

	studentHandler := &handlers.StudentHandler{
		Cfg:           cfg,
		DB:            sqlDB,
		UserRepo:      userRepo,
		EnrollmentSvc: enrollmentSvc,
		Store:         store,
		Augmenter:     augmenter,
	}
	trainingHandler := &handlers.TrainingHandler{Trainer: trainer}
	recognitionHandler := &handlers.RecognitionHandler{
		Cfg:           cfg,
		Recognizer:    recognizer,
		LectureRepo:   lectureRepo,
		AttendanceSvc: attendanceSvc,
	}
	subjectHandler := &handlers.SubjectHandler{
		DB:            sqlDB,
		SubjectRepo:   subjectRepo,
		LectureRepo:   lectureRepo,
		UserRepo:      userRepo,
		EnrollmentSvc: enrollmentSvc,
		AttendanceSvc: attendanceSvc,
	}
	attendanceHandler := &handlers.AttendanceHandler{
		LectureRepo:   lectureRepo,
		AttendanceSvc: attendanceSvc,
	}

	r.Route("/api", func(r chi.Router) {
		r.Route("/students", func(r chi.Router) {
			r.Post("/", studentHandler.CreateStudent)
			r.Get("/", studentHandler.ListStudents)
			r.Route("/{enrollment}", func(r chi.Router) {
				r.Delete("/", studentHandler.DeleteStudent)
				r.Post("/captures", studentHandler.UploadCapture)
				r.Post("/augment", studentHandler.AugmentStudent)
				r.Get("/report", studentHandler.GetReport)
			})
		})

		r.Post("/training", trainingHandler.Train)

		r.Route("/recognition", func(r chi.Router) {
			r.Post("/", recognitionHandler.Recognize)
			r.Get("/preview", recognitionHandler.Preview)
		})

		r.Route("/subjects", func(r chi.Router) {
			r.Post("/", subjectHandler.CreateSubject)
			r.Get("/", subjectHandler.ListSubjects)
			r.Route("/{subject_id}", func(r chi.Router) {
				r.Post("/students", subjectHandler.EnrollStudents)
				r.Delete("/students", subjectHandler.UnenrollStudents)
				r.Post("/lectures", subjectHandler.CreateLecture)
				r.Get("/lectures", subjectHandler.ListLectures)
				r.Get("/report", subjectHandler.GetReport)
			})
		})

		r.Route("/lectures/{lecture_id}/attendance", func(r chi.Router) {
			r.Get("/", attendanceHandler.ListAttendance)
			r.Put("/", attendanceHandler.ReviewAttendance)
			r.Post("/manual", attendanceHandler.MarkManual)
		})
	})

	port := os.Getenv("PORT")
	if port == "" {
		port = "8080"
	}
	serverAddr := ":" + port
	fmt.Printf("Server starting on http://localhost:%s\n", port)
	log.Printf("Server listening on %s", serverAddr)
	server := &http.Server{
		Addr:         serverAddr,
		Handler:      r,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 300 * time.Second,
		IdleTimeout:  120 * time.Second,
	}
	log.Fatal(server.ListenAndServe())
}
