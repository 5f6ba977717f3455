package connectors

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"fleetreport/internal"
)

const (
	rawMailExt  = ".eml"
	doneMarkExt = ".done"
)

// StoredMail is a raw email staged in the inbox directory, named by the
// sha256 of its bytes.
type StoredMail struct {
	Hash string
	Path string
}

// MailStore stages fetched emails on disk. An email is pending until it is
// marked done, so a failed cycle is retried on the next poll and a message
// fetched twice is processed once.
type MailStore struct {
	dir string
}

func NewMailStore(dir string) *MailStore {
	return &MailStore{dir: dir}
}

// Store writes msg unless an identical email is already staged. The bool is
// false when the email was seen before.
func (s *MailStore) Store(msg internal.FetchedMailMessage) (StoredMail, bool, error) {
	hashBytes := sha256.Sum256(msg.Raw)
	hash := hex.EncodeToString(hashBytes[:])

	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return StoredMail{}, false, err
	}

	stored := StoredMail{Hash: hash, Path: filepath.Join(s.dir, hash+rawMailExt)}
	if _, err := os.Stat(stored.Path); err == nil {
		return stored, false, nil
	} else if !errors.Is(err, fs.ErrNotExist) {
		return StoredMail{}, false, err
	}

	tmp := stored.Path + ".tmp"
	if err := os.WriteFile(tmp, msg.Raw, 0o644); err != nil {
		return StoredMail{}, false, err
	}
	if err := os.Rename(tmp, stored.Path); err != nil {
		return StoredMail{}, false, err
	}
	return stored, true, nil
}

// Pending lists staged emails not yet marked done, oldest name first.
func (s *MailStore) Pending() ([]StoredMail, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	done := map[string]bool{}
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), doneMarkExt) {
			done[strings.TrimSuffix(e.Name(), doneMarkExt)] = true
		}
	}

	var out []StoredMail
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, rawMailExt) {
			continue
		}
		hash := strings.TrimSuffix(name, rawMailExt)
		if done[hash] {
			continue
		}
		out = append(out, StoredMail{Hash: hash, Path: filepath.Join(s.dir, name)})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Hash < out[j].Hash })
	return out, nil
}

func (s *MailStore) MarkDone(hash string) error {
	return os.WriteFile(filepath.Join(s.dir, hash+doneMarkExt), nil, 0o644)
}
