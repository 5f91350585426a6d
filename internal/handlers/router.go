package handlers

import (
	"github.com/gin-gonic/gin"

	"github.com/quizbuzz/exam-service/internal/auth"
	"github.com/quizbuzz/exam-service/internal/services"
	"github.com/quizbuzz/exam-service/internal/utils"
)

type HandlerManager struct {
	authHandler      *AuthHandler
	userHandler      *UserHandler
	groupHandler     *GroupHandler
	examHandler      *ExamHandler
	sessionHandler   *SessionHandler
	analyticsHandler *AnalyticsHandler
	chatHandler      *ChatHandler
	uploadHandler    *UploadHandler
	tokens           *auth.TokenManager
}

func NewHandlerManager(
	serviceManager services.ServiceManager,
	tokens *auth.TokenManager,
	logger utils.Logger,
) *HandlerManager {
	return &HandlerManager{
		authHandler:      NewAuthHandler(serviceManager.User(), logger),
		userHandler:      NewUserHandler(serviceManager.User(), serviceManager.Analytics(), logger),
		groupHandler:     NewGroupHandler(serviceManager.Group(), logger),
		examHandler:      NewExamHandler(serviceManager.Exam(), serviceManager.Generation(), logger),
		sessionHandler:   NewSessionHandler(serviceManager.Session(), logger),
		analyticsHandler: NewAnalyticsHandler(serviceManager.Analytics(), logger),
		chatHandler:      NewChatHandler(serviceManager.Chat(), logger),
		uploadHandler:    NewUploadHandler(serviceManager.Upload(), logger),
		tokens:           tokens,
	}
}

// SetupRoutes sets up all API routes
func (hm *HandlerManager) SetupRoutes(router *gin.Engine) {
	// Public authentication endpoints
	authRoutes := router.Group("/api/v1/auth")
	{
		authRoutes.POST("/signup", hm.authHandler.SignUp)
		authRoutes.POST("/login", hm.authHandler.Login)
	}

	// Everything else requires a valid token
	v1 := router.Group("/api/v1")
	v1.Use(AuthMiddleware(hm.tokens))
	{
		users := v1.Group("/users")
		{
			users.GET("/me", hm.userHandler.GetProfile)
			users.GET("/me/history", hm.userHandler.GetHistory)
			users.DELETE("/me", hm.userHandler.DeleteAccount)
		}

		groups := v1.Group("/groups")
		{
			groups.POST("", hm.groupHandler.CreateGroup)
			groups.GET("", hm.groupHandler.ListGroups)
			groups.GET("/:id", hm.groupHandler.GetGroup)
			groups.DELETE("/:id", hm.groupHandler.DeleteGroup)
			groups.GET("/:id/stats", hm.groupHandler.GetStats)

			// Membership
			groups.POST("/:id/join", hm.groupHandler.JoinGroup)
			groups.POST("/:id/members", hm.groupHandler.AddMember)
			groups.DELETE("/:id/members/me", hm.groupHandler.LeaveGroup)
			groups.DELETE("/:id/members/:user_id", hm.groupHandler.RemoveMember)
			groups.GET("/:id/members", hm.groupHandler.GetMembers)

			// Materials
			groups.POST("/:id/materials", hm.groupHandler.AddMaterial)
			groups.DELETE("/:id/materials/:material_id", hm.groupHandler.RemoveMaterial)
		}

		exams := v1.Group("/exams")
		{
			exams.POST("", hm.examHandler.CreateExam)
			exams.GET("", hm.examHandler.ListExams)
			exams.GET("/:id", hm.examHandler.GetExam)
			exams.DELETE("/:id", hm.examHandler.DeleteExam)
			exams.POST("/:id/groups/:group_id", hm.examHandler.AssignToGroup)
			exams.GET("/:id/stats", hm.examHandler.GetStats)
			exams.GET("/:id/answers", hm.examHandler.GetAnswerSheets)
			exams.GET("/:id/materials", hm.examHandler.GetMaterials)

			// Question set management
			exams.PUT("/:id/questions", hm.examHandler.SaveQuestions)
			exams.GET("/:id/questions", hm.examHandler.GetQuestions)
			exams.POST("/:id/questions/generate", hm.examHandler.GenerateQuestions)

			// Taking the exam
			exams.POST("/:id/start", hm.sessionHandler.StartExam)
			exams.POST("/:id/submit", hm.sessionHandler.SubmitAnswers)
			exams.POST("/:id/finish", hm.sessionHandler.FinishExam)
			exams.POST("/:id/timeout", hm.sessionHandler.HandleTimeout)
			exams.GET("/:id/status", hm.sessionHandler.GetStatus)

			// Results
			exams.GET("/:id/leaderboard", hm.analyticsHandler.GetLeaderboard)
			exams.GET("/:id/leaderboard/export", hm.analyticsHandler.ExportLeaderboard)
			exams.GET("/:id/result", hm.analyticsHandler.GetResult)
		}

		rooms := v1.Group("/rooms")
		{
			rooms.POST("/:room_id/messages", hm.chatHandler.SendMessage)
			rooms.GET("/:room_id/messages", hm.chatHandler.GetHistory)
			rooms.GET("/:room_id/stream", hm.chatHandler.StreamMessages)
		}

		uploads := v1.Group("/uploads")
		{
			uploads.POST("", hm.uploadHandler.CreateUploadURL)
			uploads.POST("/complete", hm.uploadHandler.CompleteUpload)
			uploads.GET("/download", hm.uploadHandler.GetDownloadURL)
		}
	}

	// Health check endpoint
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "exam-service",
		})
	})
}
