package sessionstore

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	return s
}

func TestCreateNew(t *testing.T) {
	s := openTestStore(t)
	sess, err := s.CreateNew()
	if err != nil {
		t.Fatalf("CreateNew: %v", err)
	}

	parsed, err := uuid.Parse(sess.ID)
	if err != nil {
		t.Fatalf("id is not a UUID: %v", err)
	}
	if parsed.Version() != 7 {
		t.Fatalf("expected UUIDv7, got v%d", parsed.Version())
	}
	if !strings.HasPrefix(sess.Name, "Chat ") {
		t.Fatalf("expected default name prefix, got %q", sess.Name)
	}
	if len(sess.History) != 0 {
		t.Fatalf("expected empty history")
	}

	if _, err := os.Stat(filepath.Join(s.root, sess.ID, "session.json")); err != nil {
		t.Fatalf("session.json missing: %v", err)
	}
	if _, err := os.Stat(filepath.Join(s.root, sess.ID, "attachments")); err != nil {
		t.Fatalf("attachments dir missing: %v", err)
	}
}

func TestSessionFileShape(t *testing.T) {
	s := openTestStore(t)
	sess, _ := s.CreateNew()
	sess, err := s.AddMessage(sess, RoleUser, "hello", nil)
	if err != nil {
		t.Fatalf("AddMessage: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(s.root, sess.ID, "session.json"))
	if err != nil {
		t.Fatalf("read session.json: %v", err)
	}
	if !strings.HasPrefix(string(data), "{\n  \"id\":") {
		t.Fatalf("expected two-space pretty printing, got prefix %q", string(data[:20]))
	}
	if !strings.HasSuffix(string(data), "\n") {
		t.Fatal("expected trailing newline")
	}

	var decoded map[string]any
	if err := json.Unmarshal(data, &decoded); err != nil {
		t.Fatalf("invalid JSON on disk: %v", err)
	}
	for _, key := range []string{"id", "name", "createdAt", "lastModifiedAt", "usageMetrics", "history"} {
		if _, ok := decoded[key]; !ok {
			t.Errorf("missing top-level key %q", key)
		}
	}
}

func TestLoadByNameCaseInsensitive(t *testing.T) {
	s := openTestStore(t)
	older, _ := s.CreateNew()
	older, err := s.Rename(older, "My Project")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}

	newer, _ := s.CreateNew()
	newer.LastModifiedAt = time.Now().UTC().Add(time.Hour)
	newer.Name = "my project"
	if err := s.Save(newer); err != nil {
		t.Fatalf("Save: %v", err)
	}

	got, err := s.Load("MY PROJECT")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got.ID != newer.ID {
		t.Fatalf("expected most recently modified session %s, got %s", newer.ID, got.ID)
	}

	if _, err := s.Load("does-not-exist"); err == nil {
		t.Fatal("expected error for unknown name")
	}
	_ = older
}

func TestCorruptedSessionRecovery(t *testing.T) {
	s := openTestStore(t)
	sess, _ := s.CreateNew()

	path := filepath.Join(s.root, sess.ID, "session.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o640); err != nil {
		t.Fatalf("corrupt write: %v", err)
	}

	fresh, err := s.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load after corruption: %v", err)
	}
	if fresh.ID == sess.ID {
		t.Fatal("expected a fresh session, got the corrupted id back")
	}
	if _, err := os.Stat(filepath.Join(s.root, sess.ID, "session.corrupted")); err != nil {
		t.Fatalf("expected session.corrupted: %v", err)
	}
}

func TestRenameAndClearHistory(t *testing.T) {
	s := openTestStore(t)
	sess, _ := s.CreateNew()
	sess, _ = s.AddMessage(sess, RoleUser, "test message for clearing", nil)
	before := sess.LastModifiedAt

	sess, err := s.Rename(sess, "My New Session Name")
	if err != nil {
		t.Fatalf("Rename: %v", err)
	}
	reloaded, err := s.Load(sess.ID)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if reloaded.Name != "My New Session Name" {
		t.Fatalf("rename not persisted: %q", reloaded.Name)
	}
	if reloaded.LastModifiedAt.Before(before) {
		t.Fatal("last_modified_at did not advance")
	}

	sess, err = s.ClearHistory(sess)
	if err != nil {
		t.Fatalf("ClearHistory: %v", err)
	}
	reloaded, _ = s.Load(sess.ID)
	if len(reloaded.History) != 0 {
		t.Fatalf("expected empty history, got %d messages", len(reloaded.History))
	}
	if _, err := os.Stat(filepath.Join(s.root, sess.ID, "session.json")); err != nil {
		t.Fatal("session file should survive a history clear")
	}
}

func TestAttachmentDedup(t *testing.T) {
	s := openTestStore(t)
	sess, _ := s.CreateNew()

	content := []byte("Identical content for deduplication test")
	sum := sha256.Sum256(content)
	wantHash := hex.EncodeToString(sum[:])[:16]

	var err error
	for i := 0; i < 3; i++ {
		sess, err = s.AddMessage(sess, RoleUser, "with attachment", []BinaryPart{
			{OriginalFileName: "note.txt", MediaType: "text/plain", Data: content},
		})
		if err != nil {
			t.Fatalf("AddMessage %d: %v", i, err)
		}
	}

	var refs []Attachment
	for _, m := range sess.History {
		refs = append(refs, m.Attachments...)
	}
	if len(refs) != 3 {
		t.Fatalf("expected 3 attachment references, got %d", len(refs))
	}
	for _, r := range refs {
		if r.ContentHash != wantHash {
			t.Errorf("hash mismatch: %q != %q", r.ContentHash, wantHash)
		}
		if r.StoredFileName != refs[0].StoredFileName {
			t.Errorf("expected shared stored filename, got %q and %q", r.StoredFileName, refs[0].StoredFileName)
		}
	}

	entries, err := os.ReadDir(filepath.Join(s.root, sess.ID, "attachments"))
	if err != nil {
		t.Fatalf("read attachments dir: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one deduplicated file on disk, got %d", len(entries))
	}

	stored, err := os.ReadFile(filepath.Join(s.root, sess.ID, "attachments", refs[0].StoredFileName))
	if err != nil {
		t.Fatalf("read stored attachment: %v", err)
	}
	if string(stored) != string(content) {
		t.Fatal("stored bytes differ from input")
	}
}

func TestListOrderAndLimit(t *testing.T) {
	s := openTestStore(t)
	var ids []string
	for i := 0; i < 3; i++ {
		sess, _ := s.CreateNew()
		sess.LastModifiedAt = time.Now().UTC().Add(time.Duration(i) * time.Hour)
		if err := s.Save(sess); err != nil {
			t.Fatalf("Save: %v", err)
		}
		ids = append(ids, sess.ID)
	}

	all, err := s.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected 3 sessions, got %d", len(all))
	}
	if all[0].ID != ids[2] {
		t.Fatalf("expected most recent first, got %s", all[0].ID)
	}

	two, _ := s.List(2)
	if len(two) != 2 {
		t.Fatalf("expected truncation to 2, got %d", len(two))
	}
}

func TestAddUsageAccumulates(t *testing.T) {
	s := openTestStore(t)
	sess, _ := s.CreateNew()
	sess, err := s.AddUsage(sess, 10, 20)
	if err != nil {
		t.Fatalf("AddUsage: %v", err)
	}
	sess, err = s.AddUsage(sess, 5, 7)
	if err != nil {
		t.Fatalf("AddUsage: %v", err)
	}
	reloaded, _ := s.Load(sess.ID)
	if reloaded.UsageMetrics.InputTokens != 15 || reloaded.UsageMetrics.OutputTokens != 27 {
		t.Fatalf("unexpected usage: %+v", reloaded.UsageMetrics)
	}
}
