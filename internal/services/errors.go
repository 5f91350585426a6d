package services

import (
	"errors"
	"fmt"

	"github.com/quizbuzz/exam-service/internal/validator"
)

// ValidationErrors re-exports the validator error list for handler mapping
type ValidationErrors = validator.ValidationErrors

// Sentinel errors for the main not-found and state conflicts
var (
	ErrUserNotFound     = errors.New("user not found")
	ErrGroupNotFound    = errors.New("group not found")
	ErrExamNotFound     = errors.New("exam not found")
	ErrQuestionNotFound = errors.New("question not found")
	ErrSheetNotFound    = errors.New("answer sheet not found")
	ErrRoomNotFound     = errors.New("chat room not found")
	ErrMaterialNotFound = errors.New("material not found")
	ErrResultNotFound   = errors.New("no recorded result for this exam")

	ErrUsernameTaken = errors.New("username already taken")
	ErrEmailTaken    = errors.New("email already registered")

	ErrInvalidCredentials = errors.New("invalid credentials")

	ErrExamNotStarted    = errors.New("exam not started")
	ErrExamFinished      = errors.New("exam already finished")
	ErrDeadlinePassed    = errors.New("exam deadline has passed")
	ErrExamHasNoQuestions = errors.New("exam has no questions")

	ErrUploadsNotConfigured    = errors.New("object storage is not configured")
	ErrGenerationNotConfigured = errors.New("question generation is not configured")
)

// PermissionError describes a denied action on a resource
type PermissionError struct {
	UserID     string
	ResourceID string
	Resource   string
	Action     string
	Reason     string
}

func (e *PermissionError) Error() string {
	return fmt.Sprintf("permission denied: user %s cannot %s %s %s: %s",
		e.UserID, e.Action, e.Resource, e.ResourceID, e.Reason)
}

func NewPermissionError(userID, resourceID, resource, action, reason string) *PermissionError {
	return &PermissionError{
		UserID:     userID,
		ResourceID: resourceID,
		Resource:   resource,
		Action:     action,
		Reason:     reason,
	}
}

// BusinessRuleError describes a state conflict a correct client can hit
type BusinessRuleError struct {
	Rule    string
	Message string
	Context map[string]interface{}
}

func (e *BusinessRuleError) Error() string {
	return fmt.Sprintf("business rule %s violated: %s", e.Rule, e.Message)
}

func NewBusinessRuleError(rule, message string, context map[string]interface{}) *BusinessRuleError {
	return &BusinessRuleError{Rule: rule, Message: message, Context: context}
}

// ExternalServiceError wraps a failure of a dependency outside this service.
// RawPayload carries the unparseable or failing response for diagnosis.
type ExternalServiceError struct {
	Service    string
	Operation  string
	RawPayload string
	Err        error
}

func (e *ExternalServiceError) Error() string {
	return fmt.Sprintf("%s %s failed: %v", e.Service, e.Operation, e.Err)
}

func (e *ExternalServiceError) Unwrap() error {
	return e.Err
}

func NewExternalServiceError(service, operation, rawPayload string, err error) *ExternalServiceError {
	return &ExternalServiceError{
		Service:    service,
		Operation:  operation,
		RawPayload: rawPayload,
		Err:        err,
	}
}
