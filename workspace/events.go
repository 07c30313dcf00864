/*
Copyright 2026 The Forgespace Authors
SPDX-License-Identifier: Apache-2.0
*/

package workspace

import (
	"context"
	"sync"

	"github.com/chainguard-dev/clog"
)

// EventType classifies a workspace mutation.
type EventType string

const (
	EventSave      EventType = "save"
	EventDelete    EventType = "delete"
	EventDeleteDir EventType = "deleteDir"
)

// Event describes one completed workspace mutation. PreviousContent and
// NewContent carry file content for saves and file deletions; directory
// deletions carry neither.
type Event struct {
	Tenant          string    `json:"tenant"`
	Path            string    `json:"path"`
	RelativePath    string    `json:"relativePath"`
	PreviousContent string    `json:"previousContent"`
	NewContent      string    `json:"newContent"`
	Type            EventType `json:"changeType"`
	BasePath        string    `json:"basePath"`
}

// Listener receives change events. Returned errors are logged, never
// propagated: a listener cannot undo or mask a completed mutation.
type Listener func(ctx context.Context, event Event) error

type registration struct {
	id       int
	listener Listener
}

// notifier is an ordered listener registry. Invocation order is
// registration order; no further ordering is promised.
type notifier struct {
	mu     sync.Mutex
	nextID int
	regs   []registration
}

func (n *notifier) register(l Listener) func() {
	n.mu.Lock()
	defer n.mu.Unlock()
	id := n.nextID
	n.nextID++
	n.regs = append(n.regs, registration{id: id, listener: l})
	return func() {
		n.mu.Lock()
		defer n.mu.Unlock()
		for i, reg := range n.regs {
			if reg.id == id {
				n.regs = append(n.regs[:i], n.regs[i+1:]...)
				return
			}
		}
	}
}

// emit invokes every listener synchronously. Panics and errors are logged
// and counted; the mutation that triggered the event has already succeeded
// and stays succeeded.
func (n *notifier) emit(ctx context.Context, event Event) {
	n.mu.Lock()
	regs := make([]registration, len(n.regs))
	copy(regs, n.regs)
	n.mu.Unlock()

	for _, reg := range regs {
		invoke(ctx, reg.listener, event)
	}
}

func invoke(ctx context.Context, l Listener, event Event) {
	defer func() {
		if r := recover(); r != nil {
			listenerFailures.Inc()
			clog.FromContext(ctx).Errorf("Change listener panicked for %s: %v", event.RelativePath, r)
		}
	}()
	if err := l(ctx, event); err != nil {
		listenerFailures.Inc()
		clog.FromContext(ctx).Warnf("Change listener failed for %s: %v", event.RelativePath, err)
	}
}
