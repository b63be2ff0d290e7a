package crud

import (
	"time"

	"github.com/google/uuid"
)

type Level string

const (
	LevelSuccess Level = "success"
	LevelError   Level = "error"
)

// SuccessDuration is how long success toasts stay up. Error toasts stay
// until dismissed.
const SuccessDuration = 5 * time.Second

// Notification is a dismissible toast.
type Notification struct {
	ID          string
	Level       Level
	Title       string
	Description string
	Duration    time.Duration
}

func Success(description string) Notification {
	return Notification{
		ID:          uuid.NewString(),
		Level:       LevelSuccess,
		Title:       "Success",
		Description: description,
		Duration:    SuccessDuration,
	}
}

func Failure(description string) Notification {
	return Notification{
		ID:          uuid.NewString(),
		Level:       LevelError,
		Title:       "Error",
		Description: description,
	}
}
