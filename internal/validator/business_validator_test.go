package validator

import (
	"testing"

	"github.com/quizbuzz/exam-service/internal/models"
)

func validMCQ(no int) QuestionSaveRequest {
	return QuestionSaveRequest{
		QuestionNo: no,
		Type:       models.QuestionMCQ,
		Text:       "Which gas do plants absorb?",
		Options:    []string{"Oxygen", "Carbon dioxide", "Nitrogen", "Helium"},
		Answer:     "Carbon dioxide",
		Marks:      2,
	}
}

func TestValidateQuestionSave(t *testing.T) {
	bv := NewBusinessValidator()

	tests := []struct {
		name    string
		mutate  func(*QuestionSaveRequest)
		wantErr bool
	}{
		{"valid mcq", func(q *QuestionSaveRequest) {}, false},
		{"mcq with three options", func(q *QuestionSaveRequest) {
			q.Options = q.Options[:3]
		}, true},
		{"mcq answer outside options", func(q *QuestionSaveRequest) {
			q.Answer = "Argon"
		}, true},
		{"true/false with options", func(q *QuestionSaveRequest) {
			q.Type = models.QuestionTrueFalse
			q.Answer = "True"
		}, true},
		{"valid true/false", func(q *QuestionSaveRequest) {
			q.Type = models.QuestionTrueFalse
			q.Options = nil
			q.Answer = "True"
		}, false},
		{"true/false with free text", func(q *QuestionSaveRequest) {
			q.Type = models.QuestionTrueFalse
			q.Options = nil
			q.Answer = "yes"
		}, true},
		{"valid fill blank", func(q *QuestionSaveRequest) {
			q.Type = models.QuestionFillBlank
			q.Options = nil
			q.Answer = "chlorophyll"
		}, false},
		{"fill blank with options", func(q *QuestionSaveRequest) {
			q.Type = models.QuestionFillBlank
			q.Answer = "chlorophyll"
		}, true},
		{"zero marks", func(q *QuestionSaveRequest) {
			q.Marks = 0
		}, true},
		{"unknown type", func(q *QuestionSaveRequest) {
			q.Type = "Essay"
			q.Options = nil
		}, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := validMCQ(1)
			tt.mutate(&q)
			errs := bv.ValidateQuestionSave(&q)
			if tt.wantErr && len(errs) == 0 {
				t.Error("expected validation errors, got none")
			}
			if !tt.wantErr && len(errs) > 0 {
				t.Errorf("unexpected validation errors: %v", errs)
			}
		})
	}
}

func TestValidateQuestionSetRejectsDuplicateNumbers(t *testing.T) {
	bv := NewBusinessValidator()

	set := &QuestionSetSaveRequest{
		Questions: []QuestionSaveRequest{validMCQ(1), validMCQ(1)},
	}
	errs := bv.ValidateQuestionSet(set)
	if len(errs) == 0 {
		t.Fatal("expected duplicate number to be rejected")
	}

	set.Questions[1].QuestionNo = 2
	if errs := bv.ValidateQuestionSet(set); len(errs) > 0 {
		t.Errorf("distinct numbers should pass: %v", errs)
	}
}

func TestValidateExamCreate(t *testing.T) {
	bv := NewBusinessValidator()

	groupID := "11111111-1111-1111-1111-111111111111"

	req := &ExamCreateRequest{Name: "Midterm", Duration: 45, GroupIDs: []string{groupID}}
	if errs := bv.ValidateExamCreate(req); len(errs) > 0 {
		t.Errorf("valid exam rejected: %v", errs)
	}

	req = &ExamCreateRequest{Name: "   ", Duration: 45, GroupIDs: []string{groupID}}
	if errs := bv.ValidateExamCreate(req); len(errs) == 0 {
		t.Error("blank name should be rejected")
	}

	req = &ExamCreateRequest{Name: "Marathon", Duration: 601, GroupIDs: []string{groupID}}
	if errs := bv.ValidateExamCreate(req); len(errs) == 0 {
		t.Error("out-of-range duration should be rejected")
	}

	req = &ExamCreateRequest{Name: "Orphaned", Duration: 45}
	if errs := bv.ValidateExamCreate(req); len(errs) == 0 {
		t.Error("exam without any group should be rejected")
	}

	req = &ExamCreateRequest{Name: "Orphaned", Duration: 45, GroupIDs: []string{}}
	if errs := bv.ValidateExamCreate(req); len(errs) == 0 {
		t.Error("empty group list should be rejected")
	}
}

func TestValidateMaterial(t *testing.T) {
	bv := NewBusinessValidator()

	link := "https://example.org/notes.pdf"
	if errs := bv.ValidateMaterial(&GroupMaterialRequest{Title: "Notes", Link: &link}); len(errs) > 0 {
		t.Errorf("material with link rejected: %v", errs)
	}

	if errs := bv.ValidateMaterial(&GroupMaterialRequest{Title: "Notes"}); len(errs) == 0 {
		t.Error("material without a source should be rejected")
	}
}
