package services

import (
	"testing"

	"github.com/quizbuzz/exam-service/internal/models"
)

func makeQuestions(answers []string, marks float64) []models.Question {
	questions := make([]models.Question, len(answers))
	for i, a := range answers {
		questions[i] = models.Question{
			QuestionNo: i + 1,
			Type:       models.QuestionFillBlank,
			Text:       "q",
			Answer:     a,
			Marks:      marks,
		}
	}
	return questions
}

func TestGradeAllCorrect(t *testing.T) {
	questions := makeQuestions([]string{"Paris", "True", "42"}, 2)

	got := Grade(questions, []string{"Paris", "True", "42"})

	if got.Correct != 3 || got.Wrong != 0 || got.Unattempted != 0 {
		t.Errorf("unexpected counts: %+v", got)
	}
	if got.MarksObtained != 6 || got.TotalMarks != 6 {
		t.Errorf("unexpected marks: %+v", got)
	}
	if got.Accuracy != 100 {
		t.Errorf("expected accuracy 100, got %v", got.Accuracy)
	}
}

func TestGradeMixedOutcomes(t *testing.T) {
	questions := makeQuestions([]string{"a", "b", "c", "d"}, 1.5)

	got := Grade(questions, []string{"a", "x", "", "d"})

	if got.Correct != 2 {
		t.Errorf("expected 2 correct, got %d", got.Correct)
	}
	if got.Wrong != 1 {
		t.Errorf("expected 1 wrong, got %d", got.Wrong)
	}
	if got.Unattempted != 1 {
		t.Errorf("expected 1 unattempted, got %d", got.Unattempted)
	}
	if got.MarksObtained != 3 {
		t.Errorf("expected 3 marks, got %v", got.MarksObtained)
	}
	if got.Accuracy != 50 {
		t.Errorf("expected accuracy 50, got %v", got.Accuracy)
	}
}

func TestGradeNormalizesCaseAndWhitespace(t *testing.T) {
	questions := makeQuestions([]string{"Paris", "True"}, 1)

	got := Grade(questions, []string{"  paris ", "TRUE"})

	if got.Correct != 2 {
		t.Errorf("expected normalized answers to match, got %+v", got)
	}
}

func TestGradeShortAnswerArray(t *testing.T) {
	// Missing trailing entries count as unattempted, never as wrong.
	questions := makeQuestions([]string{"a", "b", "c"}, 1)

	got := Grade(questions, []string{"a"})

	if got.Correct != 1 || got.Unattempted != 2 || got.Wrong != 0 {
		t.Errorf("unexpected counts: %+v", got)
	}
}

func TestGradeExtraAnswersIgnored(t *testing.T) {
	questions := makeQuestions([]string{"a"}, 1)

	got := Grade(questions, []string{"a", "b", "c"})

	if got.TotalQuestions != 1 || got.Correct != 1 || got.Wrong != 0 {
		t.Errorf("entries beyond the question count must be ignored: %+v", got)
	}
}

func TestGradeWhitespaceOnlyAnswerIsUnattempted(t *testing.T) {
	questions := makeQuestions([]string{"a"}, 1)

	got := Grade(questions, []string{"   "})

	if got.Unattempted != 1 || got.Wrong != 0 {
		t.Errorf("whitespace-only answers count as unattempted: %+v", got)
	}
}

func TestGradeEmptyExam(t *testing.T) {
	got := Grade(nil, nil)

	if got.TotalQuestions != 0 || got.Accuracy != 0 || got.TotalMarks != 0 {
		t.Errorf("unexpected summary for empty exam: %+v", got)
	}
}

func TestGradeMarksNeverNegative(t *testing.T) {
	questions := makeQuestions([]string{"a", "b"}, 2)

	got := Grade(questions, []string{"x", "y"})

	if got.MarksObtained != 0 {
		t.Errorf("wrong answers must not subtract marks: %+v", got)
	}
}

func TestGradeRoundsToTwoPlaces(t *testing.T) {
	questions := makeQuestions([]string{"a", "b", "c"}, 1)

	got := Grade(questions, []string{"a", "x", "x"})

	if got.Accuracy != 33.33 {
		t.Errorf("expected accuracy 33.33, got %v", got.Accuracy)
	}
}
