package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"testing"
	"time"

	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/events"
	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
	"github.com/quizbuzz/exam-service/internal/validator"
)

// In-memory fakes covering the paths the session flow exercises. Unused
// methods come from the embedded interface and stay nil.

type fakeUserRepo struct {
	repositories.UserRepository
	users map[string]*models.User
}

func (f *fakeUserRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.User, error) {
	if u, ok := f.users[id]; ok {
		return u, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeExamRepo struct {
	repositories.ExamRepository
	exams    map[string]*models.Exam
	timers   map[string]*models.ExamTimer
	finishes map[string]bool
}

func timerKey(examID, userID string) string { return examID + "/" + userID }

func (f *fakeExamRepo) GetByID(ctx context.Context, tx *gorm.DB, id string) (*models.Exam, error) {
	if e, ok := f.exams[id]; ok {
		return e, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeExamRepo) ArmTimer(ctx context.Context, tx *gorm.DB, timer *models.ExamTimer) (*models.ExamTimer, bool, error) {
	key := timerKey(timer.ExamID, timer.UserID)
	if existing, ok := f.timers[key]; ok {
		return existing, false, nil
	}
	f.timers[key] = timer
	return timer, true, nil
}

func (f *fakeExamRepo) GetTimer(ctx context.Context, tx *gorm.DB, examID, userID string) (*models.ExamTimer, error) {
	if t, ok := f.timers[timerKey(examID, userID)]; ok {
		return t, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeExamRepo) MarkFinished(ctx context.Context, tx *gorm.DB, finish *models.ExamFinish) (bool, error) {
	key := timerKey(finish.ExamID, finish.UserID)
	if f.finishes[key] {
		return false, nil
	}
	f.finishes[key] = true
	return true, nil
}

func (f *fakeExamRepo) HasFinished(ctx context.Context, tx *gorm.DB, examID, userID string) (bool, error) {
	return f.finishes[timerKey(examID, userID)], nil
}

type fakeQuestionRepo struct {
	repositories.QuestionRepository
	questions map[string][]models.Question
}

func (f *fakeQuestionRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]models.Question, error) {
	return f.questions[examID], nil
}

type fakeAnswerRepo struct {
	repositories.AnswerRepository
	sheets map[string]*models.AnswerSheet
}

func (f *fakeAnswerRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, sheet *models.AnswerSheet) (bool, error) {
	key := timerKey(sheet.ExamID, sheet.UserID)
	if _, ok := f.sheets[key]; ok {
		return false, nil
	}
	f.sheets[key] = sheet
	return true, nil
}

func (f *fakeAnswerRepo) GetByExamAndUser(ctx context.Context, tx *gorm.DB, examID, userID string) (*models.AnswerSheet, error) {
	if s, ok := f.sheets[timerKey(examID, userID)]; ok {
		return s, nil
	}
	return nil, gorm.ErrRecordNotFound
}

func (f *fakeAnswerRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]models.AnswerSheet, error) {
	var out []models.AnswerSheet
	for _, s := range f.sheets {
		if s.ExamID == examID {
			out = append(out, *s)
		}
	}
	return out, nil
}

type fakeAnalyticsRepo struct {
	repositories.AnalyticsRepository
	records map[string]*models.Analytic
}

func (f *fakeAnalyticsRepo) CreateIfAbsent(ctx context.Context, tx *gorm.DB, analytic *models.Analytic) (bool, error) {
	key := timerKey(analytic.ExamID, analytic.UserID)
	if _, ok := f.records[key]; ok {
		return false, nil
	}
	f.records[key] = analytic
	return true, nil
}

func (f *fakeAnalyticsRepo) GetByExamAndUser(ctx context.Context, tx *gorm.DB, examID, userID string) (*models.Analytic, error) {
	if a, ok := f.records[timerKey(examID, userID)]; ok {
		return a, nil
	}
	return nil, gorm.ErrRecordNotFound
}

type fakeRepo struct {
	user      *fakeUserRepo
	group     *fakeGroupRepo
	exam      *fakeExamRepo
	question  *fakeQuestionRepo
	answer    *fakeAnswerRepo
	material  *fakeMaterialRepo
	analytics *fakeAnalyticsRepo
	chat      *fakeChatRepo
}

func (f *fakeRepo) User() repositories.UserRepository { return f.user }
func (f *fakeRepo) Group() repositories.GroupRepository {
	if f.group == nil {
		return nil
	}
	return f.group
}
func (f *fakeRepo) Exam() repositories.ExamRepository         { return f.exam }
func (f *fakeRepo) Question() repositories.QuestionRepository { return f.question }
func (f *fakeRepo) Answer() repositories.AnswerRepository     { return f.answer }
func (f *fakeRepo) Material() repositories.MaterialRepository {
	if f.material == nil {
		return nil
	}
	return f.material
}
func (f *fakeRepo) Analytics() repositories.AnalyticsRepository {
	return f.analytics
}
func (f *fakeRepo) Chat() repositories.ChatRepository {
	if f.chat == nil {
		return nil
	}
	return f.chat
}
func (f *fakeRepo) WithTransaction(ctx context.Context, fn func(repositories.Repository) error) error {
	return fn(f)
}
func (f *fakeRepo) Ping(ctx context.Context) error { return nil }
func (f *fakeRepo) Close() error                   { return nil }

const (
	testExamID = "11111111-1111-1111-1111-111111111111"
	testUserID = "22222222-2222-2222-2222-222222222222"
)

func newSessionFixture(t *testing.T) (*sessionService, *fakeRepo, *events.MockEventPublisher) {
	t.Helper()

	logger := slog.New(slog.NewTextHandler(os.Stdout, nil))
	repo := &fakeRepo{
		user: &fakeUserRepo{users: map[string]*models.User{
			testUserID: {ID: testUserID, Username: "casey"},
		}},
		exam: &fakeExamRepo{
			exams: map[string]*models.Exam{
				testExamID: {ID: testExamID, Name: "Algebra", CreatedBy: testUserID, Duration: 30},
			},
			timers:   make(map[string]*models.ExamTimer),
			finishes: make(map[string]bool),
		},
		question: &fakeQuestionRepo{questions: map[string][]models.Question{
			testExamID: {
				{ExamID: testExamID, QuestionNo: 1, Type: models.QuestionFillBlank, Text: "2+2?", Answer: "4", Marks: 2},
				{ExamID: testExamID, QuestionNo: 2, Type: models.QuestionTrueFalse, Text: "The earth is flat.", Answer: "False", Marks: 2},
			},
		}},
		answer:    &fakeAnswerRepo{sheets: make(map[string]*models.AnswerSheet)},
		analytics: &fakeAnalyticsRepo{records: make(map[string]*models.Analytic)},
	}

	publisher := events.NewMockEventPublisher(logger)
	v := validator.New()
	exams := NewExamService(repo, nil, logger, v, publisher)

	svc := &sessionService{
		repo:           repo,
		logger:         logger,
		validator:      v,
		exams:          exams,
		eventPublisher: publisher,
	}
	return svc, repo, publisher
}

func TestStartIsIdempotent(t *testing.T) {
	svc, _, publisher := newSessionFixture(t)
	ctx := context.Background()

	first, err := svc.Start(ctx, testExamID, testUserID)
	if err != nil {
		t.Fatalf("first start failed: %v", err)
	}
	if first.AlreadyStarted {
		t.Error("first start should not report AlreadyStarted")
	}
	if len(first.Questions) != 2 {
		t.Fatalf("expected 2 questions, got %d", len(first.Questions))
	}
	for _, q := range first.Questions {
		if q.Answer != "" {
			t.Errorf("question %d leaked its answer", q.QuestionNo)
		}
	}

	second, err := svc.Start(ctx, testExamID, testUserID)
	if err != nil {
		t.Fatalf("second start failed: %v", err)
	}
	if !second.AlreadyStarted {
		t.Error("second start should report AlreadyStarted")
	}
	if !second.Deadline.Equal(first.Deadline) {
		t.Errorf("deadlines differ: %v vs %v", first.Deadline, second.Deadline)
	}

	started := 0
	for _, e := range publisher.GetPublishedEvents() {
		if e.Type == events.EventExamStarted {
			started++
		}
	}
	if started != 1 {
		t.Errorf("expected exactly 1 started event, got %d", started)
	}
}

func TestStartRequiresQuestions(t *testing.T) {
	svc, repo, _ := newSessionFixture(t)
	repo.question.questions[testExamID] = nil

	if _, err := svc.Start(context.Background(), testExamID, testUserID); err != ErrExamHasNoQuestions {
		t.Fatalf("expected ErrExamHasNoQuestions, got %v", err)
	}
}

func TestSubmitAnswersFirstWins(t *testing.T) {
	svc, repo, _ := newSessionFixture(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, testExamID, testUserID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	first, err := svc.SubmitAnswers(ctx, testExamID, testUserID, &SubmitAnswersRequest{
		Answers: []string{"4", "True"},
	})
	if err != nil {
		t.Fatalf("first submit failed: %v", err)
	}
	if !first.Accepted {
		t.Fatal("first submission should be accepted")
	}
	if first.Result.Correct != 1 || first.Result.Wrong != 1 {
		t.Errorf("unexpected grade: %+v", first.Result)
	}
	if first.Result.MarksObtained != 2 {
		t.Errorf("expected 2 marks, got %v", first.Result.MarksObtained)
	}

	// A repeated submission with better answers must not change anything.
	second, err := svc.SubmitAnswers(ctx, testExamID, testUserID, &SubmitAnswersRequest{
		Answers: []string{"4", "False"},
	})
	if err != nil {
		t.Fatalf("second submit failed: %v", err)
	}
	if second.Accepted {
		t.Error("second submission should not be accepted")
	}
	if second.Result.MarksObtained != 2 {
		t.Errorf("stored result changed: got %v marks", second.Result.MarksObtained)
	}

	if len(repo.answer.sheets) != 1 || len(repo.analytics.records) != 1 {
		t.Errorf("expected one sheet and one record, got %d/%d",
			len(repo.answer.sheets), len(repo.analytics.records))
	}
}

func TestSubmitAnswersStoresSheetSizedToQuestionCount(t *testing.T) {
	svc, repo, _ := newSessionFixture(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, testExamID, testUserID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	// One answer for a two-question exam: the stored sheet still carries one
	// entry per question.
	if _, err := svc.SubmitAnswers(ctx, testExamID, testUserID, &SubmitAnswersRequest{
		Answers: []string{"4"},
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	sheet := repo.answer.sheets[timerKey(testExamID, testUserID)]
	if sheet == nil {
		t.Fatal("no sheet stored")
	}
	var stored []string
	if err := json.Unmarshal(sheet.Answers, &stored); err != nil {
		t.Fatalf("sheet does not decode: %v", err)
	}
	if len(stored) != 2 {
		t.Fatalf("expected 2 stored entries, got %d", len(stored))
	}
	if stored[0] != "4" || stored[1] != "" {
		t.Errorf("unexpected stored sheet: %v", stored)
	}
}

func TestSubmitAnswersRequiresStart(t *testing.T) {
	svc, _, _ := newSessionFixture(t)

	_, err := svc.SubmitAnswers(context.Background(), testExamID, testUserID, &SubmitAnswersRequest{
		Answers: []string{"4", "False"},
	})
	if err != ErrExamNotStarted {
		t.Fatalf("expected ErrExamNotStarted, got %v", err)
	}
}

func TestSubmitAnswersAfterDeadline(t *testing.T) {
	svc, repo, _ := newSessionFixture(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-2 * time.Hour)
	repo.exam.timers[timerKey(testExamID, testUserID)] = &models.ExamTimer{
		ExamID:    testExamID,
		UserID:    testUserID,
		StartedAt: past,
		Deadline:  past.Add(30 * time.Minute),
	}

	_, err := svc.SubmitAnswers(ctx, testExamID, testUserID, &SubmitAnswersRequest{
		Answers: []string{"4", "False"},
	})
	if err != ErrDeadlinePassed {
		t.Fatalf("expected ErrDeadlinePassed, got %v", err)
	}
}

func TestFinishWithoutSubmission(t *testing.T) {
	svc, repo, _ := newSessionFixture(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, testExamID, testUserID); err != nil {
		t.Fatalf("start failed: %v", err)
	}
	if err := svc.Finish(ctx, testExamID, testUserID); err != nil {
		t.Fatalf("finish failed: %v", err)
	}
	if !repo.exam.finishes[timerKey(testExamID, testUserID)] {
		t.Error("finish mark not recorded")
	}

	// A submission after finishing surfaces the finished state.
	_, err := svc.SubmitAnswers(ctx, testExamID, testUserID, &SubmitAnswersRequest{
		Answers: []string{"4", "False"},
	})
	if err != ErrExamFinished {
		t.Fatalf("expected ErrExamFinished, got %v", err)
	}
}

func TestHandleTimeoutRecordsEmptySheet(t *testing.T) {
	svc, repo, _ := newSessionFixture(t)
	ctx := context.Background()

	past := time.Now().UTC().Add(-2 * time.Hour)
	repo.exam.timers[timerKey(testExamID, testUserID)] = &models.ExamTimer{
		ExamID:    testExamID,
		UserID:    testUserID,
		StartedAt: past,
		Deadline:  past.Add(30 * time.Minute),
	}

	resp, err := svc.HandleTimeout(ctx, testExamID, testUserID)
	if err != nil {
		t.Fatalf("timeout failed: %v", err)
	}
	if !resp.Accepted {
		t.Fatal("timeout finalization should record the attempt")
	}
	if resp.Result.Unattempted != 2 || resp.Result.MarksObtained != 0 {
		t.Errorf("expected an empty graded sheet, got %+v", resp.Result)
	}
	if !repo.exam.finishes[timerKey(testExamID, testUserID)] {
		t.Error("finish mark not recorded")
	}

	// Running the sweep again must not add a second record.
	again, err := svc.HandleTimeout(ctx, testExamID, testUserID)
	if err != nil {
		t.Fatalf("repeated timeout failed: %v", err)
	}
	if again.Accepted {
		t.Error("repeated timeout should not record again")
	}
	if len(repo.analytics.records) != 1 {
		t.Errorf("expected one record, got %d", len(repo.analytics.records))
	}
}

func TestHandleTimeoutBeforeDeadline(t *testing.T) {
	svc, _, _ := newSessionFixture(t)
	ctx := context.Background()

	if _, err := svc.Start(ctx, testExamID, testUserID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	_, err := svc.HandleTimeout(ctx, testExamID, testUserID)
	var ruleErr *BusinessRuleError
	if !errors.As(err, &ruleErr) {
		t.Fatalf("expected a business rule error, got %v", err)
	}
}

func TestStatusReflectsProgress(t *testing.T) {
	svc, _, _ := newSessionFixture(t)
	ctx := context.Background()

	before, err := svc.Status(ctx, testExamID, testUserID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if before.Started || before.Finished {
		t.Errorf("fresh session should be unstarted: %+v", before)
	}

	if _, err := svc.Start(ctx, testExamID, testUserID); err != nil {
		t.Fatalf("start failed: %v", err)
	}

	during, err := svc.Status(ctx, testExamID, testUserID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !during.Started || during.Finished {
		t.Errorf("started session misreported: %+v", during)
	}
	if during.RemainingSeconds <= 0 {
		t.Errorf("expected time remaining, got %d", during.RemainingSeconds)
	}

	if _, err := svc.SubmitAnswers(ctx, testExamID, testUserID, &SubmitAnswersRequest{
		Answers: []string{"4", "False"},
	}); err != nil {
		t.Fatalf("submit failed: %v", err)
	}

	after, err := svc.Status(ctx, testExamID, testUserID)
	if err != nil {
		t.Fatalf("status failed: %v", err)
	}
	if !after.Finished {
		t.Errorf("finished session misreported: %+v", after)
	}
}

func TestConcurrentStartsShareOneDeadline(t *testing.T) {
	svc, _, _ := newSessionFixture(t)
	ctx := context.Background()

	deadlines := make(map[string]int)
	for i := 0; i < 5; i++ {
		resp, err := svc.Start(ctx, testExamID, testUserID)
		if err != nil {
			t.Fatalf("start %d failed: %v", i, err)
		}
		deadlines[fmt.Sprint(resp.Deadline.UnixNano())]++
	}
	if len(deadlines) != 1 {
		t.Errorf("expected one shared deadline, got %d distinct values", len(deadlines))
	}
}
