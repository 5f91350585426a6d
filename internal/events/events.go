package events

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Event is the envelope every published event is wrapped in
type Event struct {
	ID        string      `json:"id"`
	Type      string      `json:"type"`
	Source    string      `json:"source"`
	Version   string      `json:"version"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data"`
}

// Event types emitted by the service
const (
	EventExamCreated        = "exam.created"
	EventExamStarted        = "exam.started"
	EventExamFinished       = "exam.finished"
	EventAttemptRecorded    = "attempt.recorded"
	EventQuestionsGenerated = "questions.generated"
	EventGroupCreated       = "group.created"
	EventGroupMemberJoined  = "group.member_joined"
	EventMaterialIngested   = "material.ingested"
	EventUserDeleted        = "user.deleted"
)

const (
	eventSource  = "exam-service"
	eventVersion = "1.0"
)

// NewEvent wraps payload data in a fresh envelope
func NewEvent(eventType string, data interface{}) Event {
	return Event{
		ID:        uuid.New().String(),
		Type:      eventType,
		Source:    eventSource,
		Version:   eventVersion,
		Timestamp: time.Now().UTC(),
		Data:      data,
	}
}

// EventPublisher publishes domain events to the configured transport
type EventPublisher interface {
	Publish(ctx context.Context, event Event) error
	Close() error
}
