package sessionstore

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"

	"mogzi/internal/mogerr"
)

// Store is a durable session store rooted at a chats directory
// (~/.mogzi/chats).
type Store struct {
	root string
}

// Open returns a Store rooted at root, creating it if necessary.
func Open(root string) (*Store, error) {
	if err := os.MkdirAll(root, 0o750); err != nil {
		return nil, fmt.Errorf("create chats root: %w", err)
	}
	return &Store{root: root}, nil
}

func (s *Store) sessionDir(id string) string      { return filepath.Join(s.root, id) }
func (s *Store) sessionFile(id string) string     { return filepath.Join(s.sessionDir(id), "session.json") }
func (s *Store) attachmentsDir(id string) string  { return filepath.Join(s.sessionDir(id), "attachments") }

// CreateNew creates and persists a brand-new session with a fresh
// UUIDv7 id and default name, eagerly creating its on-disk directories.
func (s *Store) CreateNew() (Session, error) {
	sess := newSession()
	if err := os.MkdirAll(s.attachmentsDir(sess.ID), 0o750); err != nil {
		return Session{}, fmt.Errorf("create session dirs: %w", err)
	}
	if err := s.Save(sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// Load resolves idOrName to a session: first as a direct UUID, then by
// case-insensitive name match among all sessions, preferring the most
// recently modified on ties. A session.json that fails to parse is
// renamed to session.corrupted and a fresh session is created in its
// place.
func (s *Store) Load(idOrName string) (Session, error) {
	if _, err := uuid.Parse(idOrName); err == nil {
		if _, statErr := os.Stat(s.sessionFile(idOrName)); statErr == nil {
			return s.loadByID(idOrName)
		}
	}

	summaries, err := s.List(0)
	if err != nil {
		return Session{}, err
	}
	var best *SessionSummary
	for i := range summaries {
		if strings.EqualFold(summaries[i].Name, idOrName) {
			if best == nil || summaries[i].LastModifiedAt.After(best.LastModifiedAt) {
				best = &summaries[i]
			}
		}
	}
	if best == nil {
		return Session{}, mogerr.New(mogerr.FileNotFound, "no session named "+idOrName)
	}
	return s.loadByID(best.ID)
}

// loadByID reads and parses a session file, recovering from corruption
// by renaming it to session.corrupted and creating a fresh session in
// its place.
func (s *Store) loadByID(id string) (Session, error) {
	sess, err := s.readSession(id)
	if err == nil {
		return sess, nil
	}
	if !mogerr.Is(err, mogerr.SessionCorrupted) {
		return Session{}, err
	}

	corruptPath := filepath.Join(s.sessionDir(id), "session.corrupted")
	if renErr := os.Rename(s.sessionFile(id), corruptPath); renErr != nil {
		log.Warn().Err(renErr).Str("session", id).Msg("failed to rename corrupted session")
	}
	log.Warn().Err(err).Str("session", id).Msg("session file corrupted, starting a new session")
	return s.CreateNew()
}

// readSession reads a session file without any recovery side effects.
func (s *Store) readSession(id string) (Session, error) {
	data, err := os.ReadFile(s.sessionFile(id))
	if err != nil {
		return Session{}, mogerr.Wrap(mogerr.FileNotFound, "session not found: "+id, err)
	}

	var sess Session
	if err := json.Unmarshal(data, &sess); err != nil {
		return Session{}, mogerr.Wrap(mogerr.SessionCorrupted, "session file is not valid JSON: "+id, err)
	}
	return sess, nil
}

// Save atomically persists sess: write session.json.tmp then rename
// over session.json, so the file is always either valid JSON or
// atomically replaced, never partially written.
func (s *Store) Save(sess Session) error {
	dir := s.sessionDir(sess.ID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create session dir: %w", err)
	}
	data, err := marshal(sess)
	if err != nil {
		return fmt.Errorf("marshal session: %w", err)
	}

	tmpPath := s.sessionFile(sess.ID) + ".tmp"
	if err := os.WriteFile(tmpPath, data, 0o640); err != nil {
		return fmt.Errorf("write session tmp: %w", err)
	}
	if err := os.Rename(tmpPath, s.sessionFile(sess.ID)); err != nil {
		return fmt.Errorf("rename session file: %w", err)
	}
	return nil
}

// Rename changes sess.Name and persists it.
func (s *Store) Rename(sess Session, newName string) (Session, error) {
	sess.Name = newName
	sess.LastModifiedAt = time.Now().UTC()
	if err := s.Save(sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// AddUsage accumulates token counts onto sess.UsageMetrics and
// persists it.
func (s *Store) AddUsage(sess Session, inputTokens, outputTokens int) (Session, error) {
	sess.UsageMetrics.InputTokens += inputTokens
	sess.UsageMetrics.OutputTokens += outputTokens
	sess.LastModifiedAt = time.Now().UTC()
	if err := s.Save(sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// ClearHistory empties sess.History without deleting the session file.
func (s *Store) ClearHistory(sess Session) (Session, error) {
	sess.History = nil
	sess.LastModifiedAt = time.Now().UTC()
	if err := s.Save(sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// SessionSummary is the compact view List returns.
type SessionSummary struct {
	ID             string
	Name           string
	CreatedAt      time.Time
	LastModifiedAt time.Time
}

// List returns session summaries sorted by LastModifiedAt descending,
// truncated to limit (0 means unlimited).
func (s *Store) List(limit int) ([]SessionSummary, error) {
	entries, err := os.ReadDir(s.root)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("list sessions: %w", err)
	}

	var out []SessionSummary
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		sess, err := s.readSession(e.Name())
		if err != nil {
			continue
		}
		out = append(out, SessionSummary{
			ID: sess.ID, Name: sess.Name,
			CreatedAt: sess.CreatedAt, LastModifiedAt: sess.LastModifiedAt,
		})
	}

	sort.Slice(out, func(i, j int) bool { return out[i].LastModifiedAt.After(out[j].LastModifiedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}
