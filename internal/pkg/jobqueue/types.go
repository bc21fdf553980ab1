package jobqueue

import (
	"encoding/json"
	"time"
)

// JobType defines the type of job
type JobType string

const (
	JobTypeRegisterUser  JobType = "register_user"
	JobTypeLessonArchive JobType = "lesson_archive"
)

// JobStatus defines the status of a job
type JobStatus string

const (
	JobStatusPending    JobStatus = "pending"
	JobStatusProcessing JobStatus = "processing"
	JobStatusCompleted  JobStatus = "completed"
	JobStatusFailed     JobStatus = "failed"
	JobStatusRetrying   JobStatus = "retrying"
)

// Job represents a background job
type Job struct {
	ID          string                 `json:"id"`
	Type        JobType                `json:"type"`
	Status      JobStatus              `json:"status"`
	Payload     map[string]interface{} `json:"payload"`
	CreatedAt   time.Time              `json:"created_at"`
	UpdatedAt   time.Time              `json:"updated_at"`
	ProcessedAt *time.Time             `json:"processed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	ErrorMsg    string                 `json:"error_msg,omitempty"`
	RetryCount  int                    `json:"retry_count"`
	MaxRetries  int                    `json:"max_retries"`
}

// RegisterUserJobPayload creates the backing record for an authenticated
// identity that signed in before a row existed. The device counter rides
// along so no free generations are forgotten.
type RegisterUserJobPayload struct {
	PublicID         string `json:"public_id"`
	Email            string `json:"email"`
	Name             string `json:"name"`
	TotalGenerations int    `json:"total_generations"`
}

// ToMap converts the payload to a map for storage
func (p RegisterUserJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"public_id":         p.PublicID,
		"email":             p.Email,
		"name":              p.Name,
		"total_generations": p.TotalGenerations,
	}
}

// FromMap creates a payload from a map
func RegisterUserJobPayloadFromMap(data map[string]interface{}) (*RegisterUserJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload RegisterUserJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// LessonArchiveJobPayload renders a saved lesson to PDF and stores it in the
// archive bucket.
type LessonArchiveJobPayload struct {
	LessonID uint `json:"lesson_id"`
	UserID   uint `json:"user_id"`
}

// ToMap converts the payload to a map for storage
func (p LessonArchiveJobPayload) ToMap() map[string]interface{} {
	return map[string]interface{}{
		"lesson_id": p.LessonID,
		"user_id":   p.UserID,
	}
}

// FromMap creates a payload from a map
func LessonArchiveJobPayloadFromMap(data map[string]interface{}) (*LessonArchiveJobPayload, error) {
	jsonData, err := json.Marshal(data)
	if err != nil {
		return nil, err
	}

	var payload LessonArchiveJobPayload
	err = json.Unmarshal(jsonData, &payload)
	return &payload, err
}

// IsRetryable checks if the job can be retried
func (j *Job) IsRetryable() bool {
	return j.Status == JobStatusFailed && j.RetryCount < j.MaxRetries
}

// MarkAsProcessing updates the job status to processing
func (j *Job) MarkAsProcessing() {
	now := time.Now()
	j.Status = JobStatusProcessing
	j.UpdatedAt = now
	j.ProcessedAt = &now
}

// MarkAsCompleted updates the job status to completed
func (j *Job) MarkAsCompleted() {
	now := time.Now()
	j.Status = JobStatusCompleted
	j.UpdatedAt = now
	j.CompletedAt = &now
	j.ErrorMsg = ""
}

// MarkAsFailed updates the job status to failed
func (j *Job) MarkAsFailed(errorMsg string) {
	j.Status = JobStatusFailed
	j.UpdatedAt = time.Now()
	j.ErrorMsg = errorMsg
	j.RetryCount++
}

// MarkAsRetrying updates the job status to retrying
func (j *Job) MarkAsRetrying() {
	j.Status = JobStatusRetrying
	j.UpdatedAt = time.Now()
}
