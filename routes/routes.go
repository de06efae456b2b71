package routes

import (
	"gradebook_go/controllers"
	"gradebook_go/middleware"
	"gradebook_go/services"
	"gradebook_go/store"

	"github.com/gofiber/fiber/v2"
)

// Dependencies are the services the HTTP layer is built on.
type Dependencies struct {
	Store        *store.Store
	Auth         *services.AuthService
	Weights      *services.WeightService
	Grades       *services.GradeService
	Attendance   *services.AttendanceService
	Journals     *services.JournalService
	Imports      *services.ImportService
	Backups      *services.BackupService
	Dashboard    *services.DashboardService
	Logs         *services.LogArchiveService
	Health       *services.HealthService
	MaxFileSize  int64
	EnforceRoles bool
}

// SetupRoutes configures all application routes
func SetupRoutes(app *fiber.App, deps Dependencies) {
	// Initialize controllers
	authController := controllers.NewAuthController(deps.Auth)
	classController := controllers.NewClassController(deps.Store)
	studentController := controllers.NewStudentController(deps.Store, deps.Imports, deps.MaxFileSize)
	subjectController := controllers.NewSubjectController(deps.Store)
	categoryController := controllers.NewCategoryController(deps.Store)
	weightController := controllers.NewWeightController(deps.Weights)
	gradeController := controllers.NewGradeController(deps.Grades)
	journalController := controllers.NewJournalController(deps.Journals)
	attendanceController := controllers.NewAttendanceController(deps.Attendance)
	dashboardController := controllers.NewDashboardController(deps.Dashboard)
	systemController := controllers.NewSystemController(deps.Store, deps.Backups)
	logController := controllers.NewLogController(deps.Logs)
	healthController := controllers.NewHealthController(deps.Health)

	app.Get("/health", healthController.GetHealthStatus)

	// API group
	api := app.Group("/api")

	// Authentication routes (no middleware)
	auth := api.Group("/auth")
	auth.Post("/login", authController.Login)
	auth.Get("/session", middleware.JWTMiddleware(deps.Auth), authController.Session)
	auth.Post("/logout", middleware.JWTMiddleware(deps.Auth), authController.Logout)

	// Protected routes (require authentication)
	protected := api.Group("/", middleware.JWTMiddleware(deps.Auth))
	adminOnly := middleware.RequireAdmin(deps.EnforceRoles)

	protected.Get("/profile", authController.Profile)
	protected.Get("/dashboard", dashboardController.GetStats)

	// Master data (admin menus)
	classes := protected.Group("/classes", adminOnly)
	classes.Get("/", classController.GetClasses)
	classes.Post("/", classController.CreateClass)
	classes.Get("/:id", classController.GetClass)
	classes.Put("/:id", classController.UpdateClass)
	classes.Delete("/:id", classController.DeleteClass)

	students := protected.Group("/students", adminOnly)
	students.Get("/", studentController.GetStudents)
	students.Post("/", studentController.CreateStudent)
	students.Post("/import", studentController.ImportStudents)
	students.Get("/import/template", studentController.ImportTemplate)
	students.Get("/:id", studentController.GetStudent)
	students.Put("/:id", studentController.UpdateStudent)
	students.Delete("/:id", studentController.DeleteStudent)

	subjects := protected.Group("/subjects", adminOnly)
	subjects.Get("/", subjectController.GetSubjects)
	subjects.Post("/", subjectController.CreateSubject)
	subjects.Get("/:id", subjectController.GetSubject)
	subjects.Put("/:id", subjectController.UpdateSubject)
	subjects.Delete("/:id", subjectController.DeleteSubject)

	categories := protected.Group("/categories", adminOnly)
	categories.Get("/", categoryController.GetCategories)
	categories.Post("/", categoryController.CreateCategory)
	categories.Get("/:id", categoryController.GetCategory)
	categories.Put("/:id", categoryController.UpdateCategory)
	categories.Delete("/:id", categoryController.DeleteCategory)

	// Teaching menus
	weights := protected.Group("/weights")
	weights.Get("/:subject_id", weightController.GetWeights)
	weights.Put("/:subject_id", weightController.UpdateWeights)

	grades := protected.Group("/grades")
	grades.Get("/", gradeController.GetSheet)
	grades.Post("/", gradeController.SaveScores)
	grades.Get("/recap", gradeController.GetRecap)
	grades.Get("/recap/export", gradeController.ExportRecap)

	journals := protected.Group("/journals")
	journals.Get("/", journalController.GetJournals)
	journals.Post("/", journalController.CreateJournal)
	journals.Delete("/:id", journalController.DeleteJournal)

	attendance := protected.Group("/attendance")
	attendance.Get("/session", attendanceController.GetSession)
	attendance.Post("/session", attendanceController.SaveSession)
	attendance.Get("/recap", attendanceController.GetRecap)
	attendance.Get("/recap/export", attendanceController.ExportRecap)

	// System maintenance (admin only)
	system := protected.Group("/system", adminOnly)
	system.Get("/backup", systemController.DownloadBackup)
	system.Post("/backup/archive", systemController.ArchiveBackup)
	system.Get("/backup/archives", systemController.ListArchives)
	system.Post("/restore", systemController.Restore)
	system.Post("/reset", systemController.Reset)
	system.Post("/reload", systemController.Reload)

	// Log management routes (admin only)
	logs := protected.Group("/logs", adminOnly)
	logs.Get("/", logController.GetLogs)
	logs.Post("/flush-cache", logController.FlushCachedLogs)
	logs.Post("/archive", logController.ArchiveLogs)
	logs.Get("/archives", logController.GetArchives)
	logs.Get("/archives/:id/download", logController.DownloadArchive)
}
