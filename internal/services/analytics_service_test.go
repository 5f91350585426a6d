package services

import (
	"testing"
	"time"

	"github.com/quizbuzz/exam-service/internal/models"
)

func TestRankEntriesPreservesStorageOrder(t *testing.T) {
	now := time.Now().UTC()
	rows := []models.Analytic{
		{UserID: "u1", Username: "ana", MarksObtained: 10, TotalMarks: 10, RecordedAt: now},
		{UserID: "u2", Username: "ben", MarksObtained: 8, TotalMarks: 10, RecordedAt: now.Add(time.Minute)},
		{UserID: "u3", Username: "cleo", MarksObtained: 8, TotalMarks: 10, RecordedAt: now.Add(2 * time.Minute)},
	}

	entries := rankEntries(rows)
	if len(entries) != 3 {
		t.Fatalf("expected 3 entries, got %d", len(entries))
	}
	for i, e := range entries {
		if e.Rank != i+1 {
			t.Errorf("entry %d has rank %d", i, e.Rank)
		}
		if e.UserID != rows[i].UserID {
			t.Errorf("entry %d reordered: got %s", i, e.UserID)
		}
	}
}

func TestRankEntriesEmpty(t *testing.T) {
	entries := rankEntries(nil)
	if len(entries) != 0 {
		t.Fatalf("expected no entries, got %d", len(entries))
	}
}
