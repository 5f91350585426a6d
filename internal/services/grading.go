package services

import (
	"math"
	"strings"

	"github.com/quizbuzz/exam-service/internal/models"
)

// Grade scores an ordered answer array against an exam's question set.
// Questions must be sorted by question number; answers[i] belongs to
// questions[i]. A missing or blank entry counts as unattempted. Matching
// ignores surrounding whitespace and letter case; marks are never negative.
func Grade(questions []models.Question, answers []string) GradeSummary {
	summary := GradeSummary{
		TotalQuestions: len(questions),
	}

	for i, q := range questions {
		summary.TotalMarks += q.Marks

		var given string
		if i < len(answers) {
			given = strings.TrimSpace(answers[i])
		}
		if given == "" {
			summary.Unattempted++
			continue
		}

		if answersMatch(q.Answer, given) {
			summary.Correct++
			summary.MarksObtained += q.Marks
		} else {
			summary.Wrong++
		}
	}

	if summary.TotalQuestions > 0 {
		summary.Accuracy = roundTo(float64(summary.Correct)/float64(summary.TotalQuestions)*100, 2)
	}
	summary.MarksObtained = roundTo(summary.MarksObtained, 2)
	summary.TotalMarks = roundTo(summary.TotalMarks, 2)

	return summary
}

func answersMatch(expected, given string) bool {
	return strings.EqualFold(strings.TrimSpace(expected), strings.TrimSpace(given))
}

func roundTo(v float64, places int) float64 {
	shift := math.Pow(10, float64(places))
	return math.Round(v*shift) / shift
}
