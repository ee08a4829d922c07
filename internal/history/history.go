// Package history reads and deletes past sessions from the recordings
// directory. A session appears in history once it has a transcript.
package history

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/maxyzli/whisper-flow/internal/session"
)

var (
	// ErrInvalidID rejects ids that would escape the recordings directory.
	ErrInvalidID = errors.New("invalid session id")
	ErrNotFound  = errors.New("session not found")
)

// Item is one past session.
type Item struct {
	ID        string    `json:"id"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// Store is a view over a recordings directory.
type Store struct {
	dir string
}

func New(recordingsDir string) *Store {
	return &Store{dir: recordingsDir}
}

// RecordingsDir returns the directory sessions are read from.
func (s *Store) RecordingsDir() string {
	return s.dir
}

// List returns every session with a transcript, newest first. A missing
// recordings directory yields an empty list.
func (s *Store) List() ([]Item, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read recordings: %w", err)
	}

	var items []Item
	for _, e := range entries {
		if !e.IsDir() {
			continue
		}
		item, err := s.read(e.Name())
		if err != nil {
			continue
		}
		items = append(items, item)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID > items[j].ID })
	return items, nil
}

// Read returns a single session.
func (s *Store) Read(id string) (Item, error) {
	if err := checkID(id); err != nil {
		return Item{}, err
	}
	item, err := s.read(id)
	if errors.Is(err, os.ErrNotExist) {
		return Item{}, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	return item, err
}

// Delete removes a session directory and everything in it.
func (s *Store) Delete(id string) error {
	if err := checkID(id); err != nil {
		return err
	}
	dir := filepath.Join(s.dir, id)
	if _, err := os.Stat(dir); errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err := os.RemoveAll(dir); err != nil {
		return fmt.Errorf("delete %s: %w", id, err)
	}
	return nil
}

func (s *Store) read(id string) (Item, error) {
	p := session.PathsFor(s.dir, id)
	data, err := os.ReadFile(p.Transcript)
	if err != nil {
		return Item{}, err
	}
	item := Item{ID: id, Text: string(data)}
	if ts, err := session.ParseID(id); err == nil {
		item.Timestamp = ts
	}
	return item, nil
}

func checkID(id string) error {
	if id == "" || id == "." || id == ".." || strings.ContainsAny(id, `/\`) {
		return fmt.Errorf("%w: %q", ErrInvalidID, id)
	}
	return nil
}
