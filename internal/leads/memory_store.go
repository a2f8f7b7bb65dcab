package leads

import (
	"context"
	"sync"
)

// MemoryStore keeps leads in process memory. Data is lost on restart.
type MemoryStore struct {
	mu    sync.RWMutex
	leads map[string]*Lead
}

var _ Store = (*MemoryStore)(nil)

// NewMemoryStore creates an empty in-memory store
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		leads: make(map[string]*Lead),
	}
}

// Create stores a new lead
func (s *MemoryStore) Create(ctx context.Context, in NewLead) (*Lead, error) {
	if err := checkNewLead(in); err != nil {
		return nil, err
	}
	lead := buildLead(in, timestamp())

	s.mu.Lock()
	s.leads[lead.ID] = lead
	s.mu.Unlock()

	return lead.clone(), nil
}

// List returns matching leads, newest first
func (s *MemoryStore) List(ctx context.Context, filter Filter) ([]*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all := make([]*Lead, 0, len(s.leads))
	for _, lead := range s.leads {
		all = append(all, lead.clone())
	}
	return filterLeads(all, filter), nil
}

// GetByID retrieves a lead by ID
func (s *MemoryStore) GetByID(ctx context.Context, id string) (*Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	return lead.clone(), nil
}

// Update applies patch under the write lock
func (s *MemoryStore) Update(ctx context.Context, id string, patch LeadPatch) (*Lead, error) {
	if err := checkPatch(patch); err != nil {
		return nil, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	lead, ok := s.leads[id]
	if !ok {
		return nil, ErrLeadNotFound
	}
	applyPatch(lead, patch, timestamp())
	return lead.clone(), nil
}

// AppendNote adds a note and refreshes updatedAt
func (s *MemoryStore) AppendNote(ctx context.Context, id string, text string) (*Lead, error) {
	if err := checkNoteText(text); err != nil {
		return nil, err
	}
	return s.Update(ctx, id, LeadPatch{Note: &text})
}

// Delete removes a lead
func (s *MemoryStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.leads[id]; !ok {
		return ErrLeadNotFound
	}
	delete(s.leads, id)
	return nil
}

// Close is a no-op
func (s *MemoryStore) Close() error {
	return nil
}
