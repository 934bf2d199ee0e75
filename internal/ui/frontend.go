// Package ui holds the front-ends of the agent and the Selector that picks
// one at startup. Every front-end drives the same Actions table against the
// same app.Workspace; they differ only in how they ask and tell the user.
package ui

import (
	"context"
	"errors"
)

var (
	// ErrCancelled means the user dismissed a prompt.
	ErrCancelled = errors.New("cancelled by user")
	// ErrUnavailable means a front-end cannot start in this environment.
	ErrUnavailable = errors.New("front-end unavailable")
)

// PathKind tells a front-end what sort of path a prompt wants.
type PathKind string

const (
	PathOpen PathKind = "open"
	PathSave PathKind = "save"
	PathDir  PathKind = "dir"
)

// Reporter is how actions talk to the user.
type Reporter interface {
	Alert(ctx context.Context, title, message string)
	Progress(ctx context.Context, title string, percent int)
	PromptPath(ctx context.Context, title string, kind PathKind) (string, error)
}

// Frontend is one way of presenting the Actions menu.
type Frontend interface {
	Reporter
	Name() string
	// Init checks the front-end can run here. It must not block.
	Init(ctx context.Context) error
	// Run serves the user until they quit or ctx ends.
	Run(ctx context.Context) error
}
