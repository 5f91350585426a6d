package services

import (
	"context"
	"log/slog"
	"os"
	"testing"

	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/auth"
	"github.com/quizbuzz/exam-service/internal/events"
	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
	"github.com/quizbuzz/exam-service/internal/validator"
)

type fakeGroupRepo struct {
	repositories.GroupRepository
	removedEverywhere []string
	deletedCreators   []string
}

func (f *fakeGroupRepo) RemoveMemberEverywhere(ctx context.Context, tx *gorm.DB, userID string) error {
	f.removedEverywhere = append(f.removedEverywhere, userID)
	return nil
}

func (f *fakeGroupRepo) DeleteByCreator(ctx context.Context, tx *gorm.DB, creatorID string) error {
	f.deletedCreators = append(f.deletedCreators, creatorID)
	return nil
}

type fakeChatRepo struct {
	repositories.ChatRepository
	deletedSenders []string
}

func (f *fakeChatRepo) DeleteBySender(ctx context.Context, tx *gorm.DB, senderID string) error {
	f.deletedSenders = append(f.deletedSenders, senderID)
	return nil
}

func (f *fakeUserRepo) Delete(ctx context.Context, tx *gorm.DB, id string) error {
	delete(f.users, id)
	return nil
}

func (f *fakeExamRepo) DeleteByCreator(ctx context.Context, tx *gorm.DB, creatorID string) error {
	return nil
}

func (f *fakeAnswerRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) error {
	for key := range f.sheets {
		delete(f.sheets, key)
	}
	return nil
}

func (f *fakeAnalyticsRepo) DeleteByUser(ctx context.Context, tx *gorm.DB, userID string) error {
	for key := range f.records {
		delete(f.records, key)
	}
	return nil
}

func newUserFixture(t *testing.T) (*userService, *fakeRepo) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := &fakeRepo{
		user: &fakeUserRepo{users: map[string]*models.User{
			testUserID: {ID: testUserID, Username: "casey", Email: "casey@example.com"},
		}},
		group:     &fakeGroupRepo{},
		exam:      &fakeExamRepo{exams: map[string]*models.Exam{}, timers: map[string]*models.ExamTimer{}, finishes: map[string]bool{}},
		question:  &fakeQuestionRepo{questions: map[string][]models.Question{}},
		answer:    &fakeAnswerRepo{sheets: map[string]*models.AnswerSheet{}},
		analytics: &fakeAnalyticsRepo{records: map[string]*models.Analytic{}},
		chat:      &fakeChatRepo{},
	}

	publisher := events.NewMockEventPublisher(logger)
	svc := &userService{
		repo:           repo,
		logger:         logger,
		validator:      validator.New(),
		tokens:         auth.NewTokenManager("test-secret", 0),
		eventPublisher: publisher,
	}
	return svc, repo
}

func TestDeleteAccountCascades(t *testing.T) {
	svc, repo := newUserFixture(t)
	ctx := context.Background()

	if err := svc.DeleteAccount(ctx, testUserID); err != nil {
		t.Fatalf("delete failed: %v", err)
	}

	if _, ok := repo.user.users[testUserID]; ok {
		t.Error("user row survived deletion")
	}
	if len(repo.group.removedEverywhere) != 1 || repo.group.removedEverywhere[0] != testUserID {
		t.Errorf("memberships not removed: %v", repo.group.removedEverywhere)
	}
	if len(repo.group.deletedCreators) != 1 {
		t.Errorf("created groups not deleted: %v", repo.group.deletedCreators)
	}
	if len(repo.chat.deletedSenders) != 1 {
		t.Errorf("chat messages not deleted: %v", repo.chat.deletedSenders)
	}
}

func TestDeleteAccountIsIdempotent(t *testing.T) {
	svc, _ := newUserFixture(t)
	ctx := context.Background()

	if err := svc.DeleteAccount(ctx, testUserID); err != nil {
		t.Fatalf("first delete failed: %v", err)
	}
	if err := svc.DeleteAccount(ctx, testUserID); err != nil {
		t.Fatalf("second delete should be a no-op success, got %v", err)
	}
}
