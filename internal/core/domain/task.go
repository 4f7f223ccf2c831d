package domain

import (
	"time"

	"github.com/google/uuid"
)

// GenerateID creates a unique random ID.
func GenerateID() string {
	return uuid.NewString()
}

// TaskType identifies the type of background task
type TaskType string

const (
	// TaskTypeIndexDocument indexes (or re-indexes) a single document
	TaskTypeIndexDocument TaskType = "index_document"
	// TaskTypeAuditDocument audits a single artifact document
	TaskTypeAuditDocument TaskType = "audit_document"
	// TaskTypeAuditAll audits every artifact document in the corpus
	TaskTypeAuditAll TaskType = "audit_all"
)

// TaskStatus represents the current state of a task
type TaskStatus string

const (
	TaskStatusPending    TaskStatus = "pending"
	TaskStatusProcessing TaskStatus = "processing"
	TaskStatusCompleted  TaskStatus = "completed"
	TaskStatusFailed     TaskStatus = "failed"
)

// Task represents a background job to be processed by workers.
// The unit of work (and of cancellation) is one document: a corpus build
// cancels between documents, never mid-document.
type Task struct {
	// ID is the unique identifier for this task
	ID string `json:"id"`

	// Type identifies what kind of task this is
	Type TaskType `json:"type"`

	// Payload contains task-specific data
	// For index_document / audit_document: {"document_id": "doc-123"}
	// For audit_all: {} (empty)
	Payload map[string]string `json:"payload"`

	// Status is the current state of the task
	Status TaskStatus `json:"status"`

	// Priority determines processing order (higher = more urgent)
	Priority int `json:"priority"`

	// Attempts is how many times this task has been attempted
	Attempts int `json:"attempts"`

	// MaxAttempts is the maximum retry count before giving up
	MaxAttempts int `json:"max_attempts"`

	// Error contains the last error message if failed
	Error string `json:"error,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`

	// StartedAt is when processing began (nil if not started)
	StartedAt *time.Time `json:"started_at,omitempty"`

	// CompletedAt is when processing finished (nil if not complete)
	CompletedAt *time.Time `json:"completed_at,omitempty"`

	// ScheduledFor is when the task should be processed (for delayed tasks)
	ScheduledFor time.Time `json:"scheduled_for"`
}

// NewTask creates a new task with default values
func NewTask(taskType TaskType, payload map[string]string) *Task {
	now := time.Now()
	return &Task{
		ID:           GenerateID(),
		Type:         taskType,
		Payload:      payload,
		Status:       TaskStatusPending,
		Priority:     0,
		Attempts:     0,
		MaxAttempts:  3,
		CreatedAt:    now,
		UpdatedAt:    now,
		ScheduledFor: now,
	}
}

// NewIndexDocumentTask creates a task to index a specific document
func NewIndexDocumentTask(documentID string) *Task {
	return NewTask(TaskTypeIndexDocument, map[string]string{
		"document_id": documentID,
	})
}

// NewAuditDocumentTask creates a task to audit a specific artifact
func NewAuditDocumentTask(documentID string) *Task {
	return NewTask(TaskTypeAuditDocument, map[string]string{
		"document_id": documentID,
	})
}

// NewAuditAllTask creates a task to audit every artifact in the corpus
func NewAuditAllTask() *Task {
	return NewTask(TaskTypeAuditAll, nil)
}

// DocumentID extracts the document_id from the payload
func (t *Task) DocumentID() string {
	if t.Payload == nil {
		return ""
	}
	return t.Payload["document_id"]
}

// CanRetry returns true if the task can be retried
func (t *Task) CanRetry() bool {
	return t.Attempts < t.MaxAttempts
}

// IsReady returns true if the task is ready to be processed
func (t *Task) IsReady() bool {
	return t.Status == TaskStatusPending && time.Now().After(t.ScheduledFor)
}

// MarkProcessing updates the task to processing state
func (t *Task) MarkProcessing() {
	now := time.Now()
	t.Status = TaskStatusProcessing
	t.StartedAt = &now
	t.UpdatedAt = now
	t.Attempts++
}

// MarkCompleted updates the task to completed state
func (t *Task) MarkCompleted() {
	now := time.Now()
	t.Status = TaskStatusCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now
	t.Error = ""
}

// MarkFailed updates the task to failed state
func (t *Task) MarkFailed(err string) {
	now := time.Now()
	t.Status = TaskStatusFailed
	t.UpdatedAt = now
	t.Error = err
}

// Retry resets the task for retry with exponential backoff
func (t *Task) Retry(err string) {
	now := time.Now()
	t.Status = TaskStatusPending
	t.UpdatedAt = now
	t.Error = err

	// Exponential backoff: 1s, 2s, 4s, 8s, etc.
	backoff := time.Duration(1<<t.Attempts) * time.Second
	if backoff > 5*time.Minute {
		backoff = 5 * time.Minute // Cap at 5 minutes
	}
	t.ScheduledFor = now.Add(backoff)
}

// TaskResult represents the outcome of processing a task
type TaskResult struct {
	TaskID      string        `json:"task_id"`
	Success     bool          `json:"success"`
	Error       string        `json:"error,omitempty"`
	Duration    time.Duration `json:"duration"`
	ItemsCount  int           `json:"items_count,omitempty"`
	ErrorsCount int           `json:"errors_count,omitempty"`
}
