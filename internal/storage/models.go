package storage

import (
	"errors"
	"time"
)

// ErrNotFound is returned when a requested record does not exist.
var ErrNotFound = errors.New("not found")

// Attempt statuses. An attempt starts as partial and ends in exactly one of
// the terminal states.
const (
	StatusPartial  = "partial"
	StatusOK       = "ok"
	StatusTextOnly = "text_only"
	StatusBlocked  = "blocked"
	StatusError    = "error"
)

// JobTypeGenerateImage is the job type drained by the image worker.
const JobTypeGenerateImage = "generate_image"

// Attempt is one persisted submission with its evaluation and image outcome.
type Attempt struct {
	ID              string
	InstallID       string
	SceneID         string
	InputText       string
	MinimalFix      string
	MicroReason     string
	BestDescription string
	Encouragement   string
	ImageURL        string // empty until the image job succeeds
	Status          string
	LatencyEvalMs   int64
	LatencyImageMs  int64
	CreatedAt       time.Time
}

// Evaluation holds the text-feedback fields written back onto an attempt.
type Evaluation struct {
	MinimalFix      string
	MicroReason     string
	BestDescription string
	Encouragement   string
}

type Job struct {
	ID          string
	Type        string
	PayloadJSON string
	Status      string // "pending", "running", "completed", "failed"
	Attempts    int
	MaxAttempts int
	RunAfter    time.Time
	CreatedAt   time.Time
	UpdatedAt   time.Time
	LastError   string
}
