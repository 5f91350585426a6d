package services

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/auth"
	"github.com/quizbuzz/exam-service/internal/chat"
	"github.com/quizbuzz/exam-service/internal/clients"
	"github.com/quizbuzz/exam-service/internal/events"
	"github.com/quizbuzz/exam-service/internal/repositories"
	"github.com/quizbuzz/exam-service/internal/validator"
)

// Dependencies carries everything the services need. Optional integrations
// (storage, llm, extraction, retrieval) may be nil; the owning service turns
// the feature off and reports it as not configured.
type Dependencies struct {
	DB        *gorm.DB
	Repo      repositories.Repository
	Logger    *slog.Logger
	Validator *validator.Validator

	Tokens         *auth.TokenManager
	Broker         *chat.RoomBroker
	EventPublisher events.EventPublisher

	LLM        *clients.LLMClient
	Extraction *clients.ExtractionClient
	Retrieval  *clients.RetrievalClient
	Storage    *clients.StorageClient
}

// serviceManager implements ServiceManager
type serviceManager struct {
	deps Dependencies

	userService       UserService
	groupService      GroupService
	examService       ExamService
	sessionService    SessionService
	analyticsService  AnalyticsService
	generationService GenerationService
	chatService       ChatService
	uploadService     UploadService

	initialized bool
	shutdown    bool
	mu          sync.RWMutex
}

// NewServiceManager creates a service manager with all dependencies
func NewServiceManager(deps Dependencies) ServiceManager {
	return &serviceManager{deps: deps}
}

// Initialize wires up all services. Construction order follows the
// dependency chain: exam before session and analytics, generation before
// upload.
func (sm *serviceManager) Initialize(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.initialized {
		return nil
	}

	d := sm.deps
	if d.Repo == nil || d.Logger == nil || d.Validator == nil || d.EventPublisher == nil {
		return fmt.Errorf("service manager missing required dependencies")
	}

	sm.deps.Logger.InfoContext(ctx, "initializing service manager")

	sm.userService = NewUserService(d.Repo, d.DB, d.Logger, d.Validator, d.Tokens, d.EventPublisher)
	sm.groupService = NewGroupService(d.Repo, d.DB, d.Logger, d.Validator, d.EventPublisher)
	sm.examService = NewExamService(d.Repo, d.DB, d.Logger, d.Validator, d.EventPublisher)
	sm.sessionService = NewSessionService(d.Repo, d.DB, d.Logger, d.Validator, sm.examService, d.EventPublisher)
	sm.analyticsService = NewAnalyticsService(d.Repo, d.DB, d.Logger, sm.examService)
	sm.generationService = NewGenerationService(d.Repo, d.DB, d.Logger, d.Validator, d.LLM, d.Extraction, d.Retrieval, d.EventPublisher)
	sm.chatService = NewChatService(d.Repo, d.DB, d.Logger, d.Validator, d.Broker)
	sm.uploadService = NewUploadService(d.Repo, d.DB, d.Logger, d.Validator, d.Storage, sm.generationService)

	sm.initialized = true
	sm.deps.Logger.InfoContext(ctx, "service manager initialized",
		"generation_enabled", d.LLM != nil,
		"uploads_enabled", d.Storage != nil,
	)

	return nil
}

func (sm *serviceManager) require(name string) {
	if !sm.initialized {
		panic(fmt.Sprintf("%s service requested before Initialize", name))
	}
}

func (sm *serviceManager) User() UserService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("user")
	return sm.userService
}

func (sm *serviceManager) Group() GroupService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("group")
	return sm.groupService
}

func (sm *serviceManager) Exam() ExamService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("exam")
	return sm.examService
}

func (sm *serviceManager) Session() SessionService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("session")
	return sm.sessionService
}

func (sm *serviceManager) Analytics() AnalyticsService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("analytics")
	return sm.analyticsService
}

func (sm *serviceManager) Generation() GenerationService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("generation")
	return sm.generationService
}

func (sm *serviceManager) Chat() ChatService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("chat")
	return sm.chatService
}

func (sm *serviceManager) Upload() UploadService {
	sm.mu.RLock()
	defer sm.mu.RUnlock()
	sm.require("upload")
	return sm.uploadService
}

func (sm *serviceManager) HealthCheck(ctx context.Context) error {
	sm.mu.RLock()
	defer sm.mu.RUnlock()

	if !sm.initialized {
		return fmt.Errorf("service manager not initialized")
	}
	if sm.shutdown {
		return fmt.Errorf("service manager is shut down")
	}

	if err := sm.deps.Repo.Ping(ctx); err != nil {
		return fmt.Errorf("repository health check failed: %w", err)
	}
	return nil
}

func (sm *serviceManager) Shutdown(ctx context.Context) error {
	sm.mu.Lock()
	defer sm.mu.Unlock()

	if sm.shutdown {
		return nil
	}

	sm.deps.Logger.InfoContext(ctx, "shutting down service manager")

	if sm.deps.Broker != nil {
		if err := sm.deps.Broker.Close(); err != nil {
			sm.deps.Logger.WarnContext(ctx, "failed to close chat broker", "error", err)
		}
	}
	if err := sm.deps.EventPublisher.Close(); err != nil {
		sm.deps.Logger.WarnContext(ctx, "failed to close event publisher", "error", err)
	}

	sm.shutdown = true
	return nil
}
