package services

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"testing"

	"gorm.io/gorm"

	"github.com/quizbuzz/exam-service/internal/clients"
	"github.com/quizbuzz/exam-service/internal/models"
	"github.com/quizbuzz/exam-service/internal/repositories"
)

func TestNormalizeGenerated(t *testing.T) {
	examID := "33333333-3333-3333-3333-333333333333"

	generated := []clients.GeneratedQuestion{
		{
			QuestionNo: 1,
			Type:       "MCQ",
			Question:   "Which planet is closest to the sun?",
			Additional: []string{"Mercury", "Venus", "Earth", "Mars"},
			Answer:     "Mercury",
		},
		{
			QuestionNo: 2,
			Type:       "true_false",
			Question:   "Water boils at 100C at sea level.",
			Answer:     "True",
		},
		{
			QuestionNo: 3,
			Type:       "fill-in-the-blank",
			Question:   "The chemical symbol for gold is ___.",
			Answer:     "Au",
		},
	}

	questions, err := normalizeGenerated(examID, generated, 2.5)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if len(questions) != 3 {
		t.Fatalf("expected 3 questions, got %d", len(questions))
	}

	first := questions[0]
	if first.Type != models.QuestionMCQ {
		t.Errorf("expected MCQ, got %s", first.Type)
	}
	if first.Marks != 2.5 {
		t.Errorf("expected 2.5 marks, got %v", first.Marks)
	}
	var options []string
	if err := json.Unmarshal(first.Options, &options); err != nil {
		t.Fatalf("options did not round-trip: %v", err)
	}
	if len(options) != models.MCQOptionCount {
		t.Errorf("expected %d options, got %d", models.MCQOptionCount, len(options))
	}

	if questions[1].Type != models.QuestionTrueFalse {
		t.Errorf("true_false not normalized: %s", questions[1].Type)
	}
	if questions[2].Type != models.QuestionFillBlank {
		t.Errorf("fill-in-the-blank not normalized: %s", questions[2].Type)
	}
	for _, q := range questions {
		if q.ExamID != examID {
			t.Errorf("question %d has wrong exam id", q.QuestionNo)
		}
	}
}

func TestNormalizeGeneratedAssignsMissingNumbers(t *testing.T) {
	generated := []clients.GeneratedQuestion{
		{Type: "FillBlank", Question: "a", Answer: "x"},
		{Type: "FillBlank", Question: "b", Answer: "y"},
	}

	questions, err := normalizeGenerated("e", generated, 1)
	if err != nil {
		t.Fatalf("normalize failed: %v", err)
	}
	if questions[0].QuestionNo != 1 || questions[1].QuestionNo != 2 {
		t.Errorf("positional numbering not applied: %d, %d",
			questions[0].QuestionNo, questions[1].QuestionNo)
	}
}

func TestNormalizeGeneratedRejectsBadSets(t *testing.T) {
	tests := []struct {
		name      string
		generated []clients.GeneratedQuestion
	}{
		{"empty set", nil},
		{"duplicate numbers", []clients.GeneratedQuestion{
			{QuestionNo: 1, Type: "FillBlank", Question: "a", Answer: "x"},
			{QuestionNo: 1, Type: "FillBlank", Question: "b", Answer: "y"},
		}},
		{"unknown type", []clients.GeneratedQuestion{
			{QuestionNo: 1, Type: "Essay", Question: "a", Answer: "x"},
		}},
		{"empty text", []clients.GeneratedQuestion{
			{QuestionNo: 1, Type: "FillBlank", Question: "  ", Answer: "x"},
		}},
		{"empty answer", []clients.GeneratedQuestion{
			{QuestionNo: 1, Type: "FillBlank", Question: "a", Answer: ""},
		}},
		{"mcq with wrong option count", []clients.GeneratedQuestion{
			{QuestionNo: 1, Type: "MCQ", Question: "a", Additional: []string{"x", "y"}, Answer: "x"},
		}},
		{"mcq answer outside options", []clients.GeneratedQuestion{
			{QuestionNo: 1, Type: "MCQ", Question: "a", Additional: []string{"w", "x", "y", "z"}, Answer: "q"},
		}},
		{"true/false with free-text answer", []clients.GeneratedQuestion{
			{QuestionNo: 1, Type: "TrueFalse", Question: "a", Answer: "maybe"},
		}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := normalizeGenerated("e", tt.generated, 1); err == nil {
				t.Error("expected an error, got none")
			}
		})
	}
}

func TestNormalizeQuestionType(t *testing.T) {
	tests := []struct {
		in   string
		want models.QuestionType
	}{
		{"MCQ", models.QuestionMCQ},
		{"mcq", models.QuestionMCQ},
		{"multiple_choice", models.QuestionMCQ},
		{"TrueFalse", models.QuestionTrueFalse},
		{"true-false", models.QuestionTrueFalse},
		{"boolean", models.QuestionTrueFalse},
		{"FillBlank", models.QuestionFillBlank},
		{"fill_in_the_blank", models.QuestionFillBlank},
	}
	for _, tt := range tests {
		got, err := normalizeQuestionType(tt.in)
		if err != nil {
			t.Errorf("%q: unexpected error %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("%q: got %s, want %s", tt.in, got, tt.want)
		}
	}

	if _, err := normalizeQuestionType("essay"); err == nil {
		t.Error("essay should not normalize")
	}
}

type fakeMaterialRepo struct {
	repositories.MaterialRepository
	materials []models.ExamMaterial
}

func (f *fakeMaterialRepo) GetByExam(ctx context.Context, tx *gorm.DB, examID string) ([]models.ExamMaterial, error) {
	var out []models.ExamMaterial
	for _, m := range f.materials {
		if m.ExamID != nil && *m.ExamID == examID {
			out = append(out, m)
		}
	}
	return out, nil
}

func TestMaterialContextPrefersFullText(t *testing.T) {
	extraction := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ObjectKey string `json:"object_key"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode extract request: %v", err)
		}
		json.NewEncoder(w).Encode(map[string]string{"text": "text of " + req.ObjectKey})
	}))
	defer extraction.Close()

	retrievalCalled := false
	retrieval := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		retrievalCalled = true
		json.NewEncoder(w).Encode(map[string][]string{"chunks": {"indexed chunk"}})
	}))
	defer retrieval.Close()

	examID := testExamID
	repo := &fakeRepo{material: &fakeMaterialRepo{materials: []models.ExamMaterial{
		{ID: "m1", ExamID: &examID, ObjectKey: "exams/1/notes.pdf"},
		{ID: "m2", ExamID: &examID, ObjectKey: "exams/1/slides.pdf"},
	}}}
	svc := &generationService{
		repo:       repo,
		logger:     slog.New(slog.NewTextHandler(os.Stdout, nil)),
		extraction: clients.NewExtractionClient(extraction.URL),
		retrieval:  clients.NewRetrievalClient(retrieval.URL),
	}

	got := svc.materialContext(context.Background(), examID, "photosynthesis", nil)
	want := "text of exams/1/notes.pdf\n\ntext of exams/1/slides.pdf"
	if got != want {
		t.Errorf("context = %q, want %q", got, want)
	}
	if retrievalCalled {
		t.Error("retrieval should not be queried when full text is available")
	}
}

func TestMaterialContextScopedToKeys(t *testing.T) {
	extractionCalled := false
	extraction := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		extractionCalled = true
		json.NewEncoder(w).Encode(map[string]string{"text": "full text"})
	}))
	defer extraction.Close()

	var gotKeys []string
	retrieval := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req struct {
			ObjectKeys []string `json:"object_keys"`
		}
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode query request: %v", err)
		}
		gotKeys = req.ObjectKeys
		json.NewEncoder(w).Encode(map[string][]string{"chunks": {"chunk one", "chunk two"}})
	}))
	defer retrieval.Close()

	examID := testExamID
	repo := &fakeRepo{material: &fakeMaterialRepo{materials: []models.ExamMaterial{
		{ID: "m1", ExamID: &examID, ObjectKey: "exams/1/notes.pdf"},
	}}}
	svc := &generationService{
		repo:       repo,
		logger:     slog.New(slog.NewTextHandler(os.Stdout, nil)),
		extraction: clients.NewExtractionClient(extraction.URL),
		retrieval:  clients.NewRetrievalClient(retrieval.URL),
	}

	got := svc.materialContext(context.Background(), examID, "photosynthesis", []string{"exams/1/notes.pdf"})
	if got != "chunk one\n\nchunk two" {
		t.Errorf("context = %q", got)
	}
	if len(gotKeys) != 1 || gotKeys[0] != "exams/1/notes.pdf" {
		t.Errorf("query carried keys %v, want the selected material key", gotKeys)
	}
	if extractionCalled {
		t.Error("extraction should be skipped when keys are given")
	}
}
