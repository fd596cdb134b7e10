package api

import (
	"net/http"

	"yogatherapy/backend/internal/domain"
	"yogatherapy/backend/internal/service"

	"github.com/gin-gonic/gin"
)

func SetupRoutes(
	router *gin.Engine,
	jwtSecret string,
	authService service.AuthService,
	catalogService service.CatalogService,
	instructorService service.InstructorService,
	assignmentService service.AssignmentService,
	sessionService service.SessionService,
	analyticsService service.AnalyticsService,
	exportService service.ExportService,
) {
	authHandler := NewAuthHandler(authService)
	seriesHandler := NewSeriesHandler(catalogService)
	patientHandler := NewPatientHandler(instructorService, assignmentService)
	sessionHandler := NewSessionHandler(sessionService)
	analyticsHandler := NewAnalyticsHandler(analyticsService, exportService)

	authMiddleware := AuthMiddleware(jwtSecret)

	router.GET("/ping", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"message": "pong"})
	})

	apiV1 := router.Group("/api/v1")
	{
		authGroup := apiV1.Group("/auth")
		{
			authGroup.POST("/register", authHandler.Register)
			authGroup.POST("/login", authHandler.Login)
		}
	}

	protected := apiV1.Group("")
	protected.Use(authMiddleware)
	{
		protected.GET("/me", func(c *gin.Context) {
			principal, err := getPrincipal(c)
			if err != nil {
				abortWithError(c, http.StatusUnauthorized, "Unable to identify user from token.")
				return
			}
			c.JSON(http.StatusOK, gin.H{"userId": principal.UserID.Hex(), "role": principal.Role})
		})

		// --- Series catalog (instructor only) ---
		seriesGroup := protected.Group("/series")
		seriesGroup.Use(RoleMiddleware(domain.RoleInstructor))
		{
			seriesGroup.POST("", seriesHandler.CreateSeries)
			seriesGroup.GET("", seriesHandler.ListSeries)
			seriesGroup.GET("/:seriesId", seriesHandler.GetSeries)
			seriesGroup.PUT("/:seriesId", seriesHandler.UpdateSeries)
			seriesGroup.DELETE("/:seriesId", seriesHandler.DeleteSeries)
		}

		// --- Patient roster and per-patient operations (instructor only) ---
		instructorGroup := protected.Group("/patients")
		instructorGroup.Use(RoleMiddleware(domain.RoleInstructor))
		{
			instructorGroup.POST("", patientHandler.AddPatient)
			instructorGroup.GET("", patientHandler.ListPatients)
			instructorGroup.GET("/:patientId", patientHandler.GetPatient)
			instructorGroup.PUT("/:patientId", patientHandler.UpdatePatient)
			instructorGroup.DELETE("/:patientId", patientHandler.DeactivatePatient)
			instructorGroup.POST("/:patientId/link-account", patientHandler.LinkAccount)
			instructorGroup.POST("/:patientId/series", patientHandler.AssignSeries)
			instructorGroup.DELETE("/:patientId/series", patientHandler.UnassignSeries)

			instructorGroup.POST("/:patientId/sessions", sessionHandler.RecordSession)
			instructorGroup.GET("/:patientId/sessions", sessionHandler.ListSessions)
			instructorGroup.GET("/:patientId/progress", sessionHandler.GetProgress)
		}

		// --- Analytics (instructor only) ---
		analyticsGroup := protected.Group("/analytics")
		analyticsGroup.Use(RoleMiddleware(domain.RoleInstructor))
		{
			analyticsGroup.GET("/overview", analyticsHandler.Overview)
			analyticsGroup.GET("/pain-trend", analyticsHandler.PainTrend)
			analyticsGroup.GET("/therapy-types", analyticsHandler.TherapyTypes)
			analyticsGroup.GET("/patient-progress", analyticsHandler.PatientProgress)
			analyticsGroup.POST("/export", analyticsHandler.Export)
		}

		// --- Patient self-service ---
		myGroup := protected.Group("/my")
		myGroup.Use(RoleMiddleware(domain.RolePatient))
		{
			myGroup.POST("/sessions", sessionHandler.RecordSession)
			myGroup.GET("/sessions", sessionHandler.ListSessions)
			myGroup.GET("/progress", sessionHandler.GetProgress)
		}

		// Feedback edits are allowed for either side; the service checks
		// ownership of the underlying session.
		protected.PATCH("/sessions/:sessionId/feedback", sessionHandler.UpdateSessionFeedback)
	}
}
