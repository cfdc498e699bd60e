package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"hospital-app-server/internal/config"
	"hospital-app-server/internal/handlers"
	"hospital-app-server/internal/middleware"
	"hospital-app-server/internal/models"
	"hospital-app-server/internal/storage"
	"hospital-app-server/internal/utils"
)

// Deps is everything the route table needs. Limiter, Attachments and
// Gatherer are optional.
type Deps struct {
	DB           *gorm.DB
	Config       *config.Config
	Log          *zap.Logger
	Appointments handlers.AppointmentService
	Attachments  storage.AttachmentStore
	Limiter      middleware.Limiter
	Gatherer     prometheus.Gatherer
}

// SetupRoutes configures the application routes.
func SetupRoutes(router *gin.Engine, d Deps) {
	authHandler := handlers.NewAuthHandler(d.DB, d.Config, d.Log)
	userHandler := handlers.NewUserHandler(d.DB, d.Log)
	appointmentHandler := handlers.NewAppointmentHandler(d.Appointments, d.Log)
	medicalRecordHandler := handlers.NewMedicalRecordHandler(d.DB, d.Attachments, d.Log)
	messageHandler := handlers.NewMessageHandler(d.DB, d.Log)

	router.GET("/health", health(d.DB))
	if d.Gatherer != nil {
		router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	api := router.Group("/api/v1")
	if d.Limiter != nil {
		api.Use(middleware.RateLimit(d.Limiter, d.Log))
	}

	// Public routes
	authRoutes := api.Group("/auth")
	{
		authRoutes.POST("/register", authHandler.Register)
		authRoutes.POST("/login", authHandler.Login)
		authRoutes.POST("/refresh-token", authHandler.RefreshToken)
		authRoutes.POST("/logout", authHandler.Logout)
	}

	private := api.Group("")
	private.Use(middleware.AuthMiddleware(d.Config.JWTSecret))
	{
		profile := private.Group("/auth")
		{
			profile.GET("/profile", authHandler.GetProfile)
			profile.PUT("/profile", authHandler.UpdateProfile)
		}

		userRoutes := private.Group("/users")
		{
			userRoutes.GET("/doctors", userHandler.GetDoctors)
			userRoutes.GET("/departments", userHandler.GetDepartments)
			userRoutes.GET("/patients", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), userHandler.GetPatients)

			admin := userRoutes.Group("")
			admin.Use(middleware.RoleAuthMiddleware(models.RoleAdmin))
			{
				admin.POST("", userHandler.CreateUser)
				admin.GET("", userHandler.GetUsers)
				admin.GET("/:id", userHandler.GetUserByID)
				admin.PUT("/:id", userHandler.UpdateUser)
				admin.PUT("/:id/deactivate", userHandler.DeactivateUser)
				admin.DELETE("/:id", userHandler.DeleteUser)
			}
		}

		// Role scoping beyond the guards below happens in the service.
		appointmentRoutes := private.Group("/appointments")
		{
			appointmentRoutes.POST("", middleware.RoleAuthMiddleware(models.RolePatient), appointmentHandler.CreateAppointment)
			appointmentRoutes.GET("", appointmentHandler.GetAppointments)
			appointmentRoutes.GET("/available-slots/:doctorId", appointmentHandler.GetAvailableSlots)
			appointmentRoutes.GET("/stats", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), appointmentHandler.GetAppointmentStats)
			appointmentRoutes.GET("/:id", appointmentHandler.GetAppointmentByID)
			appointmentRoutes.PUT("/:id", appointmentHandler.UpdateAppointment)
			appointmentRoutes.PATCH("/:id/status", appointmentHandler.UpdateAppointmentStatus)
			appointmentRoutes.DELETE("/:id", appointmentHandler.CancelAppointment)
		}

		recordRoutes := private.Group("/medical-records")
		{
			recordRoutes.POST("", middleware.RoleAuthMiddleware(models.RoleDoctor), medicalRecordHandler.CreateMedicalRecord)
			recordRoutes.GET("/patient/:patientId", medicalRecordHandler.GetMedicalRecordsForPatient)
			recordRoutes.GET("/:id", medicalRecordHandler.GetMedicalRecordByID)
			recordRoutes.PUT("/:id", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), medicalRecordHandler.UpdateMedicalRecord)
			recordRoutes.DELETE("/:id", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), medicalRecordHandler.DeleteMedicalRecord)
			recordRoutes.POST("/:id/attachments", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), medicalRecordHandler.UploadMedicalRecordAttachment)
			recordRoutes.GET("/:id/attachments/:attachmentId", medicalRecordHandler.GetMedicalRecordAttachment)
			recordRoutes.DELETE("/:id/attachments/:attachmentId", middleware.RoleAuthMiddleware(models.RoleDoctor, models.RoleAdmin), medicalRecordHandler.DeleteMedicalRecordAttachment)
		}

		messageRoutes := private.Group("/messages")
		{
			messageRoutes.POST("", messageHandler.SendMessage)
			messageRoutes.GET("", messageHandler.GetMessagesForUser)
			messageRoutes.GET("/conversations", messageHandler.GetConversations)
			messageRoutes.GET("/new", messageHandler.GetNewMessages)
			messageRoutes.PATCH("/:messageId/read", messageHandler.MarkMessageAsRead)
		}
	}
}

func health(db *gorm.DB) gin.HandlerFunc {
	return func(c *gin.Context) {
		if db != nil {
			ctx, cancel := context.WithTimeout(c.Request.Context(), 2*time.Second)
			defer cancel()
			sqlDB, err := db.DB()
			if err == nil {
				err = sqlDB.PingContext(ctx)
			}
			if err != nil {
				utils.Error(c, http.StatusServiceUnavailable, "Database unavailable")
				return
			}
		}
		utils.Success(c, "OK", gin.H{"time": time.Now().UTC()})
	}
}
