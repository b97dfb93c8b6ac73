package storage

import (
	"errors"
	"time"
)

var ErrClosed = errors.New("storage closed")

// Config selects a driver. An empty Driver or "none" disables storage.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

type Trigger string

const (
	TriggerScheduled Trigger = "scheduled"
	TriggerManual    Trigger = "manual"
)

// Firing is one broadcast attempt.
type Firing struct {
	At      time.Time `json:"at"`
	Date    string    `json:"date"` // local calendar date of At, YYYY-MM-DD
	Trigger Trigger   `json:"trigger"`
	ActorID int64     `json:"actor_id,omitempty"` // manual firings only

	Target   string `json:"target"` // the date announced, YYYY-MM-DD
	Parity   string `json:"parity"`
	Weekday  string `json:"weekday"`
	Sessions int    `json:"sessions"`

	DataUnavailable bool   `json:"data_unavailable,omitempty"`
	Error           string `json:"error,omitempty"`
	TookMS          int64  `json:"took_ms"`
}

// Delivered reports whether the message reached the broadcast chat.
func (f Firing) Delivered() bool { return f.Error == "" }
