package repositories

import "context"

// Repository aggregates all domain repository interfaces
type Repository interface {
	// Identity domain
	User() UserRepository

	// Group domain
	Group() GroupRepository

	// Exam domain
	Exam() ExamRepository
	Question() QuestionRepository
	Answer() AnswerRepository
	Material() MaterialRepository

	// Results domain
	Analytics() AnalyticsRepository

	// Chat domain
	Chat() ChatRepository

	// Transaction support
	WithTransaction(ctx context.Context, fn func(Repository) error) error

	// Health check
	Ping(ctx context.Context) error

	// Close connections
	Close() error
}

// RepositoryManager interface for managing repository lifecycle
type RepositoryManager interface {
	// Initialize repositories with database connections
	Initialize() error

	// Get repository instance
	GetRepository() Repository

	// Health check for all repositories
	HealthCheck(ctx context.Context) error

	// Graceful shutdown
	Shutdown(ctx context.Context) error
}
