// Package xr models the immersive presentation session and the tracked
// controllers that feed it.
package xr

import (
	"errors"

	"fortio.org/log"
)

// ErrAlreadyPresenting is returned by Enter during an active session.
var ErrAlreadyPresenting = errors.New("immersive session already active")

// Presenter tracks the immersive session lifecycle. Callbacks registered
// with OnSessionEnd run synchronously inside Exit, on the caller's goroutine.
type Presenter struct {
	presenting bool
	sessions   int
	onEnd      []func()
	onStart    []func()
}

// IsPresenting reports whether an immersive session is active.
func (p *Presenter) IsPresenting() bool { return p.presenting }

// Sessions returns how many sessions have been started.
func (p *Presenter) Sessions() int { return p.sessions }

// OnSessionStart registers fn to run when a session begins.
func (p *Presenter) OnSessionStart(fn func()) { p.onStart = append(p.onStart, fn) }

// OnSessionEnd registers fn to run when a session ends.
func (p *Presenter) OnSessionEnd(fn func()) { p.onEnd = append(p.onEnd, fn) }

// Enter starts an immersive session.
func (p *Presenter) Enter() error {
	if p.presenting {
		return ErrAlreadyPresenting
	}
	p.presenting = true
	p.sessions++
	log.Infof("Immersive session %d started", p.sessions)
	for _, fn := range p.onStart {
		fn()
	}
	return nil
}

// Exit ends the session, if any, and runs the end callbacks.
func (p *Presenter) Exit() {
	if !p.presenting {
		return
	}
	p.presenting = false
	log.Infof("Immersive session %d ended", p.sessions)
	for _, fn := range p.onEnd {
		fn()
	}
}

// Toggle enters or exits and reports whether a session is now active.
func (p *Presenter) Toggle() bool {
	if p.presenting {
		p.Exit()
	} else {
		_ = p.Enter()
	}
	return p.presenting
}
