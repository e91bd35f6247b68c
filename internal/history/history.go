// Package history records the outcome of every admitted generation job so
// callers can look a session up after it has left the active registry.
package history

import (
	"context"
	"errors"
	"time"
)

// ErrNotFound is returned when no record exists for a session.
var ErrNotFound = errors.New("job not found")

// Record is one job's history entry.
type Record struct {
	SessionID  string    `json:"session_id" dynamodbav:"sessionId"`
	LessonID   string    `json:"lesson_id,omitempty" dynamodbav:"lessonId,omitempty"`
	Status     string    `json:"status" dynamodbav:"status"`
	VideoURL   string    `json:"video_url,omitempty" dynamodbav:"videoUrl,omitempty"`
	AudioURL   string    `json:"audio_url,omitempty" dynamodbav:"audioUrl,omitempty"`
	Duration   float64   `json:"duration,omitempty" dynamodbav:"duration,omitempty"`
	Renderer   string    `json:"renderer,omitempty" dynamodbav:"renderer,omitempty"`
	VoiceID    string    `json:"voice_id,omitempty" dynamodbav:"voiceId,omitempty"`
	Error      string    `json:"error,omitempty" dynamodbav:"errorMessage,omitempty"`
	StartedAt  time.Time `json:"started_at" dynamodbav:"startedAt"`
	FinishedAt time.Time `json:"finished_at,omitzero" dynamodbav:"finishedAt,omitempty"`
}

// Store persists job records.
type Store interface {
	// Create inserts a record for a newly admitted job.
	Create(ctx context.Context, r Record) error
	// Finish stores the terminal state of a job.
	Finish(ctx context.Context, r Record) error
	Get(ctx context.Context, sessionID string) (Record, error)
}
