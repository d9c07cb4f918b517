// Package history keeps the in-memory transcript of a session, split
// into a completed partition (already persisted) and a pending
// partition (the streaming assistant message still being appended to).
// Each completed message is saved synchronously; a failed save is queued
// on a bounded channel and retried by a background worker.
package history

import (
	"github.com/rs/zerolog/log"

	"mogzi/internal/sessionstore"
)

// Manager owns the completed/pending message lists for one session.
type Manager struct {
	session sessionstore.Session
	store   *sessionstore.Store
	pending []sessionstore.Message

	saveQueue chan saveJob
	done      chan struct{}
}

type saveJob struct {
	session sessionstore.Session
	role    sessionstore.Role
	content string
	parts   []sessionstore.BinaryPart
}

const saveQueueDepth = 64

// NewManager starts a history manager backed by store, seeded with the
// session's already-persisted history as the completed partition.
func NewManager(store *sessionstore.Store, sess sessionstore.Session) *Manager {
	m := &Manager{
		session:   sess,
		store:     store,
		saveQueue: make(chan saveJob, saveQueueDepth),
		done:      make(chan struct{}),
	}
	go m.runWorker()
	return m
}

// Session returns the manager's current session snapshot (completed
// history only — pending messages are not yet part of it).
func (m *Manager) Session() sessionstore.Session { return m.session }

// AddUser appends a user message to the completed partition and
// persists it.
func (m *Manager) AddUser(content string, parts []sessionstore.BinaryPart) {
	m.addCompleted(sessionstore.RoleUser, content, parts)
}

// AddAssistant appends a fully-formed assistant message (used for
// non-streaming additions like cancellation/error notices).
func (m *Manager) AddAssistant(content string) {
	m.addCompleted(sessionstore.RoleAssistant, content, nil)
}

// AddTool appends a tool-result message.
func (m *Manager) AddTool(content string) {
	m.addCompleted(sessionstore.RoleTool, content, nil)
}

func (m *Manager) addCompleted(role sessionstore.Role, content string, parts []sessionstore.BinaryPart) {
	sess, err := m.store.AddMessage(m.session, role, content, parts)
	if err != nil {
		log.Warn().Err(err).Msg("failed to persist message synchronously, retrying in background")
		m.enqueue(role, content, parts)
		return
	}
	m.session = sess
}

// enqueue is the fallback path when a synchronous save fails; the
// background worker retries it without blocking the caller.
func (m *Manager) enqueue(role sessionstore.Role, content string, parts []sessionstore.BinaryPart) {
	job := saveJob{session: m.session, role: role, content: content, parts: parts}
	select {
	case m.saveQueue <- job:
	default:
		log.Warn().Msg("history save queue full; dropping message")
	}
}

func (m *Manager) runWorker() {
	defer close(m.done)
	for job := range m.saveQueue {
		sess, err := m.store.AddMessage(job.session, job.role, job.content, job.parts)
		if err != nil {
			log.Warn().Err(err).Msg("background message save failed")
			continue
		}
		m.session = sess
	}
}

// AddUsage accumulates token usage onto the session and persists it.
func (m *Manager) AddUsage(inputTokens, outputTokens int) {
	sess, err := m.store.AddUsage(m.session, inputTokens, outputTokens)
	if err != nil {
		log.Warn().Err(err).Msg("failed to persist usage metrics")
		return
	}
	m.session = sess
}

// BeginPending starts a new streaming assistant message in the pending
// partition.
func (m *Manager) BeginPending() {
	m.pending = append(m.pending, sessionstore.Message{Role: sessionstore.RoleAssistant})
}

// UpdateLastPending appends delta to the most recent pending message's
// content, creating one first if none is open.
func (m *Manager) UpdateLastPending(delta string) {
	if len(m.pending) == 0 {
		m.BeginPending()
	}
	m.pending[len(m.pending)-1].Content += delta
}

// FinalizeStreaming moves every pending message into the completed
// partition and persists them, clearing the pending list. Pending
// messages that never accumulated content (a turn that went straight
// to tool calls) are dropped rather than stored empty.
func (m *Manager) FinalizeStreaming() {
	for _, msg := range m.pending {
		if msg.Content == "" {
			continue
		}
		m.addCompleted(msg.Role, msg.Content, nil)
	}
	m.pending = nil
}

// Clear empties both partitions without touching the on-disk session
// file (callers that also want the file cleared use
// sessionstore.Store.ClearHistory directly, e.g. /session clear).
func (m *Manager) Clear() {
	m.session.History = nil
	m.pending = nil
}

// GetForDisplay returns completed messages followed by pending ones —
// the view a render loop should show.
func (m *Manager) GetForDisplay() []sessionstore.Message {
	out := make([]sessionstore.Message, 0, len(m.session.History)+len(m.pending))
	out = append(out, m.session.History...)
	out = append(out, m.pending...)
	return out
}

// GetForAI returns the same view as GetForDisplay; kept as a distinct
// method since the two audiences (terminal vs. LLM context) are
// expected to diverge as environment-preamble injection (§4.11) grows.
func (m *Manager) GetForAI() []sessionstore.Message {
	return m.GetForDisplay()
}

// IsEmpty reports whether the transcript (completed and pending) has
// no messages yet, for C12's "Input (no history)" vs "Input (with
// history)" visibility rule.
func (m *Manager) IsEmpty() bool {
	return len(m.session.History) == 0 && len(m.pending) == 0
}

// Close stops the background save worker once all in-flight jobs
// drain.
func (m *Manager) Close() {
	close(m.saveQueue)
	<-m.done
}
