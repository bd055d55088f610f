// Package dncform drives the Do Not Call complaint form. The Submitter is
// written purely against the FormSession capability interface; the go-rod
// backend in rod.go is the production implementation.
package dncform

import (
	"context"
	"time"
)

// FormSession is one exclusive automation session (page) against the
// complaint form. A session belongs to a single submission for its entire
// lifetime and must be closed exactly once.
type FormSession interface {
	Navigate(url string) error
	// AwaitIdle blocks until the page settles after the most recent
	// navigation-triggering action, or the timeout elapses.
	AwaitIdle(timeout time.Duration) error
	Click(selector string) error
	Type(selector, text string) error
	Select(selector, value string) error
	Exists(selector string) (bool, error)
	// TextOf returns the text content of the selector, or "" when the node
	// is absent.
	TextOf(selector string) (string, error)
	SnapshotPDF(path string) error
	Close() error
}

// Runtime is the browser process backing a batch of sessions. It is acquired
// once per inbound request, shared by all submissions spawned for it, and
// closed once after they settle.
type Runtime interface {
	NewSession(ctx context.Context) (FormSession, error)
	Close() error
}

// Launcher acquires a Runtime per inbound request.
type Launcher interface {
	Launch(ctx context.Context) (Runtime, error)
}
