package db

import (
	"errors"
	"time"
)

var (
	// ErrNotFound is returned when a lookup matches no row.
	ErrNotFound = errors.New("record not found")

	// ErrDuplicateEmail is returned when registering an email that exists.
	ErrDuplicateEmail = errors.New("email already registered")
)

// Image generation modes stored in images.mode.
const (
	ModeDirect  = "direct"
	ModeDerived = "derived-from-image"
)

// ImageRecord is one persisted generation result.
// Description and SourceFilename are set only for ModeDerived.
type ImageRecord struct {
	ID             int64
	OwnerID        string
	Prompt         string
	ImageURL       string
	Mode           string
	Description    string
	SourceFilename string
	CorrelationID  string
	CreatedAt      time.Time
}

// ChatRecord is one persisted chat turn.
type ChatRecord struct {
	ID        int64
	OwnerID   string
	Message   string
	Response  string
	CreatedAt time.Time
}

// UserRecord is a registered account.
type UserRecord struct {
	ID           int64
	Username     string
	Email        string
	PasswordHash string
	CreatedAt    time.Time
}

// FailureRecord journals a failed generation run.
type FailureRecord struct {
	ID            int64
	CorrelationID string
	OwnerID       string
	Stage         string
	Kind          string
	Message       string
	CreatedAt     time.Time
}
