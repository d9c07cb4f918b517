package sessionstore

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// BinaryPart is one attachment's bytes plus its declared metadata,
// supplied by a caller adding a message with attachments.
type BinaryPart struct {
	OriginalFileName string
	MediaType        string
	Data             []byte
}

// AddMessage appends msg to sess.History, writing each binary part to
// the session's attachments/ directory under a content-addressed name
// ("{msgIndex}-{partIndex}-{hash16}.{ext}", hash16 = first 16 hex
// chars of SHA-256) and recording an Attachment reference, then
// persists sess. Identical bytes added again reuse the already-stored
// file: only one byte-file per distinct content ever exists on disk.
func (s *Store) AddMessage(sess Session, role Role, content string, parts []BinaryPart) (Session, error) {
	msgIndex := len(sess.History)
	msg := Message{Role: role, Content: content}

	for partIndex, part := range parts {
		sum := sha256.Sum256(part.Data)
		hash := hex.EncodeToString(sum[:])[:16]
		ext := strings.TrimPrefix(filepath.Ext(part.OriginalFileName), ".")

		storedName, exists := s.findAttachmentByHash(sess.ID, hash)
		if !exists {
			storedName = fmt.Sprintf("%d-%d-%s", msgIndex, partIndex, hash)
			if ext != "" {
				storedName += "." + ext
			}
			if err := s.writeAttachmentIfAbsent(sess.ID, storedName, part.Data); err != nil {
				return Session{}, err
			}
		}

		msg.Attachments = append(msg.Attachments, Attachment{
			OriginalFileName: part.OriginalFileName,
			MediaType:        part.MediaType,
			SizeBytes:        int64(len(part.Data)),
			ContentHash:      hash,
			StoredFileName:   storedName,
			MessageIndex:     msgIndex,
		})
	}

	sess.History = append(sess.History, msg)
	sess.LastModifiedAt = time.Now().UTC()
	if err := s.Save(sess); err != nil {
		return Session{}, err
	}
	return sess, nil
}

// findAttachmentByHash scans the session's attachments directory for a
// file whose name embeds hash, returning its name when found so a
// duplicate content part can point at the existing bytes.
func (s *Store) findAttachmentByHash(sessionID, hash string) (string, bool) {
	entries, err := os.ReadDir(s.attachmentsDir(sessionID))
	if err != nil {
		return "", false
	}
	suffix := "-" + hash
	for _, e := range entries {
		if e.IsDir() {
			continue
		}
		name := e.Name()
		base := strings.TrimSuffix(name, filepath.Ext(name))
		if strings.HasSuffix(base, suffix) {
			return name, true
		}
	}
	return "", false
}

// writeAttachmentIfAbsent writes data under storedName unless a file of
// that exact name already exists — since storedName embeds the content
// hash, an existing file with the same name necessarily already holds
// identical bytes, so the write is skipped rather than re-verified.
func (s *Store) writeAttachmentIfAbsent(sessionID, storedName string, data []byte) error {
	dir := s.attachmentsDir(sessionID)
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return fmt.Errorf("create attachments dir: %w", err)
	}
	path := filepath.Join(dir, storedName)
	if _, err := os.Stat(path); err == nil {
		return nil
	}
	return os.WriteFile(path, data, 0o640)
}
