package validator

import (
	"fmt"
	"strings"

	"github.com/go-playground/validator/v10"

	"github.com/quizbuzz/exam-service/internal/models"
)

// BusinessValidator handles business rule validation
type BusinessValidator struct {
	validate *validator.Validate
}

// NewBusinessValidator creates a new business validator
func NewBusinessValidator() *BusinessValidator {
	validate := validator.New()

	bv := &BusinessValidator{validate: validate}
	bv.registerBusinessRules()

	return bv
}

// Validate validates business rules for any struct
func (bv *BusinessValidator) Validate(s interface{}) ValidationErrors {
	err := bv.validate.Struct(s)
	if err != nil {
		return ToValidationErrors(err)
	}
	return nil
}

// ValidateExamCreate validates exam creation business rules
func (bv *BusinessValidator) ValidateExamCreate(req *ExamCreateRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if strings.TrimSpace(req.Name) == "" {
		errors = append(errors, ValidationError{
			Field:   "name",
			Message: "cannot be blank",
			Value:   req.Name,
			Rule:    "business_logic",
		})
	}

	return errors
}

// ValidateQuestionSave validates one question slot write
func (bv *BusinessValidator) ValidateQuestionSave(req *QuestionSaveRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)
	errors = append(errors, bv.validateQuestionShape(req, "")...)

	return errors
}

// ValidateQuestionSet validates a full question set before it is written
func (bv *BusinessValidator) ValidateQuestionSet(req *QuestionSetSaveRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	seen := make(map[int]bool, len(req.Questions))
	for i, q := range req.Questions {
		prefix := fmt.Sprintf("questions[%d].", i)

		if seen[q.QuestionNo] {
			errors = append(errors, ValidationError{
				Field:   prefix + "question_no",
				Message: "duplicate question number in set",
				Value:   q.QuestionNo,
				Rule:    "business_logic",
			})
		}
		seen[q.QuestionNo] = true

		errors = append(errors, bv.validateQuestionShape(&req.Questions[i], prefix)...)
	}

	return errors
}

// ValidateMaterial checks that a material carries a source to read
func (bv *BusinessValidator) ValidateMaterial(req *GroupMaterialRequest) ValidationErrors {
	var errors ValidationErrors

	errors = append(errors, bv.Validate(req)...)

	if req.Link == nil && req.ObjectKey == nil {
		errors = append(errors, ValidationError{
			Field:   "link",
			Message: "either link or object_key must be provided",
			Rule:    "business_logic",
		})
	}

	return errors
}

// validateQuestionShape enforces the per-type shape rules that struct tags
// cannot express: MCQ carries exactly four options and the answer is one of
// them; other types carry none.
func (bv *BusinessValidator) validateQuestionShape(q *QuestionSaveRequest, fieldPrefix string) ValidationErrors {
	var errors ValidationErrors

	switch q.Type {
	case models.QuestionMCQ:
		if len(q.Options) != models.MCQOptionCount {
			errors = append(errors, ValidationError{
				Field:   fieldPrefix + "options",
				Message: fmt.Sprintf("MCQ questions must have exactly %d options", models.MCQOptionCount),
				Value:   len(q.Options),
				Rule:    "business_logic",
			})
			break
		}

		found := false
		for _, opt := range q.Options {
			if opt == q.Answer {
				found = true
				break
			}
		}
		if !found {
			errors = append(errors, ValidationError{
				Field:   fieldPrefix + "answer",
				Message: "answer must match one of the options",
				Value:   q.Answer,
				Rule:    "business_logic",
			})
		}

	case models.QuestionTrueFalse:
		if len(q.Options) > 0 {
			errors = append(errors, ValidationError{
				Field:   fieldPrefix + "options",
				Message: "TrueFalse questions must not carry options",
				Value:   len(q.Options),
				Rule:    "business_logic",
			})
		}
		if q.Answer != "True" && q.Answer != "False" {
			errors = append(errors, ValidationError{
				Field:   fieldPrefix + "answer",
				Message: "answer must be True or False",
				Value:   q.Answer,
				Rule:    "business_logic",
			})
		}

	case models.QuestionFillBlank:
		if len(q.Options) > 0 {
			errors = append(errors, ValidationError{
				Field:   fieldPrefix + "options",
				Message: "FillBlank questions must not carry options",
				Value:   len(q.Options),
				Rule:    "business_logic",
			})
		}
	}

	return errors
}

// registerBusinessRules registers custom business rule validators
func (bv *BusinessValidator) registerBusinessRules() {
	// Exam duration in minutes
	bv.validate.RegisterValidation("exam_duration", func(fl validator.FieldLevel) bool {
		duration := fl.Field().Int()
		return duration >= 1 && duration <= 600
	})

	// question type validation
	bv.validate.RegisterValidation("question_type", func(fl validator.FieldLevel) bool {
		qType := fl.Field().String()
		validTypes := []models.QuestionType{models.QuestionMCQ, models.QuestionTrueFalse, models.QuestionFillBlank}
		for _, vt := range validTypes {
			if models.QuestionType(qType) == vt {
				return true
			}
		}
		return false
	})
}
