package leads

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"os"
	"path/filepath"
	"sync"

	"github.com/wolfman30/lead-crm/pkg/logging"
)

const fileBackend = "file"

// fileDocument is the on-disk layout: a single JSON object holding every lead.
type fileDocument struct {
	Leads []*Lead `json:"leads"`
}

// FileStore persists leads to a single JSON file. The file is loaded once at
// open; every mutation rewrites it through a temp file + rename, and the
// in-memory state only changes after the write succeeds.
type FileStore struct {
	path   string
	logger *logging.Logger

	mu    sync.Mutex
	leads map[string]*Lead
}

var _ Store = (*FileStore)(nil)

// NewFileStore opens (or initializes) the JSON store at path.
func NewFileStore(path string, logger *logging.Logger) (*FileStore, error) {
	if path == "" {
		return nil, errors.New("leads: file store path required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, storageErr(fileBackend, "open", fmt.Errorf("create data dir: %w", err))
	}

	s := &FileStore{
		path:   path,
		logger: logger.Component("lead_file_store"),
		leads:  make(map[string]*Lead),
	}
	if err := s.load(); err != nil {
		return nil, err
	}
	s.logger.Info("lead file store opened", "path", path, "count", len(s.leads))
	return s, nil
}

func (s *FileStore) load() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return storageErr(fileBackend, "load", err)
	}
	if len(data) == 0 {
		return nil
	}
	var doc fileDocument
	if err := json.Unmarshal(data, &doc); err != nil {
		return storageErr(fileBackend, "load", fmt.Errorf("decode %s: %w", s.path, err))
	}
	for _, lead := range doc.Leads {
		if lead == nil || lead.ID == "" {
			continue
		}
		if lead.Notes == nil {
			lead.Notes = []Note{}
		}
		s.leads[lead.ID] = lead
	}
	return nil
}

// persist writes next atomically. Callers hold s.mu.
func (s *FileStore) persist(next map[string]*Lead) error {
	all := make([]*Lead, 0, len(next))
	for _, lead := range next {
		all = append(all, lead)
	}
	sortNewestFirst(all)

	data, err := json.MarshalIndent(fileDocument{Leads: all}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("create temp file: %w", err)
	}
	tmpName := tmp.Name()
	defer func() { _ = os.Remove(tmpName) }()

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("sync temp file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("close temp file: %w", err)
	}
	if err := os.Rename(tmpName, s.path); err != nil {
		return fmt.Errorf("replace %s: %w", s.path, err)
	}
	return nil
}

// commit persists next and swaps it in. Callers hold s.mu.
func (s *FileStore) commit(op string, next map[string]*Lead) error {
	if err := s.persist(next); err != nil {
		s.logger.Error("lead file write failed", "op", op, "error", err)
		return storageErr(fileBackend, op, err)
	}
	s.leads = next
	return nil
}

// Create appends a new lead to the file.
func (s *FileStore) Create(ctx context.Context, in NewLead) (*Lead, error) {
	if err := checkNewLead(in); err != nil {
		return nil, err
	}
	lead := buildLead(in, timestamp())

	s.mu.Lock()
	defer s.mu.Unlock()

	next := maps.Clone(s.leads)
	next[lead.ID] = lead
	if err := s.commit("create", next); err != nil {
		return nil, err
	}
	return lead.clone(), nil
}

// List returns matching leads, newest first.
func (s *FileStore) List(ctx context.Context, filter Filter) ([]*Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	all := make([]*Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		all = append(all, lead.clone())
	}
	return filterLeads(all, filter), nil
}

// GetByID returns a single lead.
func (s *FileStore) GetByID(ctx context.Context, id string) (*Lead, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return lead.clone(), nil
}

// Update applies patch and rewrites the file.
func (s *FileStore) Update(ctx context.Context, id string, patch LeadPatch) (*Lead, error) {
	if err := checkPatch(patch); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	current, ok := s.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	updated := current.clone()
	applyPatch(updated, patch, timestamp())

	next := maps.Clone(s.leads)
	next[id] = updated
	if err := s.commit("update", next); err != nil {
		return nil, err
	}
	return updated.clone(), nil
}

// AppendNote adds a note and rewrites the file.
func (s *FileStore) AppendNote(ctx context.Context, id string, text string) (*Lead, error) {
	if err := checkNoteText(text); err != nil {
		return nil, err
	}
	return s.Update(ctx, id, LeadPatch{Note: &text})
}

// Delete removes a lead and rewrites the file.
func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leads[id]; !ok {
		return ErrLeadNotFound
	}
	next := maps.Clone(s.leads)
	delete(next, id)
	return s.commit("delete", next)
}

// Close is a no-op; every mutation is already on disk.
func (s *FileStore) Close() error {
	return nil
}
