package domain

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewTask_Defaults(t *testing.T) {
	task := NewTask(TaskTypeAuditDocument, map[string]string{"document_id": "doc-1"})

	require.NotNil(t, task)
	assert.NotEmpty(t, task.ID)
	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, 0, task.Attempts)
	assert.Equal(t, 3, task.MaxAttempts)
	assert.Equal(t, "doc-1", task.DocumentID())
}

func TestTask_Constructors(t *testing.T) {
	indexTask := NewIndexDocumentTask("doc-1")
	assert.Equal(t, TaskTypeIndexDocument, indexTask.Type)
	assert.Equal(t, "doc-1", indexTask.DocumentID())

	auditTask := NewAuditDocumentTask("doc-2")
	assert.Equal(t, TaskTypeAuditDocument, auditTask.Type)
	assert.Equal(t, "doc-2", auditTask.DocumentID())

	allTask := NewAuditAllTask()
	assert.Equal(t, TaskTypeAuditAll, allTask.Type)
	assert.Empty(t, allTask.DocumentID())
}

func TestTask_Lifecycle(t *testing.T) {
	task := NewAuditDocumentTask("doc-1")

	task.MarkProcessing()
	assert.Equal(t, TaskStatusProcessing, task.Status)
	assert.Equal(t, 1, task.Attempts)
	require.NotNil(t, task.StartedAt)

	task.MarkCompleted()
	assert.Equal(t, TaskStatusCompleted, task.Status)
	require.NotNil(t, task.CompletedAt)
	assert.Empty(t, task.Error)
}

func TestTask_Retry_Backoff(t *testing.T) {
	task := NewAuditDocumentTask("doc-1")
	task.MarkProcessing()

	before := time.Now()
	task.Retry("embedding unavailable")

	assert.Equal(t, TaskStatusPending, task.Status)
	assert.Equal(t, "embedding unavailable", task.Error)
	// Attempt 1 schedules roughly 2s out
	assert.True(t, task.ScheduledFor.After(before.Add(time.Second)))
	assert.True(t, task.ScheduledFor.Before(before.Add(time.Minute)))
}

func TestTask_Retry_BackoffCapped(t *testing.T) {
	task := NewAuditDocumentTask("doc-1")
	task.Attempts = 30

	before := time.Now()
	task.Retry("still failing")

	assert.True(t, task.ScheduledFor.Before(before.Add(6*time.Minute)),
		"backoff should cap at five minutes")
}

func TestTask_CanRetry(t *testing.T) {
	task := NewAuditDocumentTask("doc-1")
	assert.True(t, task.CanRetry())

	task.Attempts = task.MaxAttempts
	assert.False(t, task.CanRetry())
}

func TestTask_MarkFailed(t *testing.T) {
	task := NewAuditDocumentTask("doc-1")
	task.MarkFailed("gave up")

	assert.Equal(t, TaskStatusFailed, task.Status)
	assert.Equal(t, "gave up", task.Error)
}
