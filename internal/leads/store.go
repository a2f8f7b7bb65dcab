package leads

import (
	"context"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/samber/lo"
)

// Store is the persistence contract every lead backend satisfies.
//
// List returns leads newest first (createdAt descending, id descending on
// ties) and never returns nil. Update applies a LeadPatch, including an
// optional note, as a single atomic write and always refreshes updatedAt.
// Mutations on an unknown id return ErrLeadNotFound; backend failures are
// returned as *StorageError.
type Store interface {
	Create(ctx context.Context, in NewLead) (*Lead, error)
	List(ctx context.Context, filter Filter) ([]*Lead, error)
	GetByID(ctx context.Context, id string) (*Lead, error)
	Update(ctx context.Context, id string, patch LeadPatch) (*Lead, error)
	AppendNote(ctx context.Context, id string, text string) (*Lead, error)
	Delete(ctx context.Context, id string) error
	Close() error
}

// nowFunc is the clock used for every timestamp the stores assign.
var nowFunc = func() time.Time { return time.Now().UTC() }

// timestamp returns a clock reading truncated to microseconds, the finest
// precision every backend (Postgres timestamptz included) round-trips.
func timestamp() time.Time {
	return nowFunc().UTC().Truncate(time.Microsecond)
}

func newID() string {
	return uuid.NewString()
}

// buildLead assembles a fresh lead from validated input.
func buildLead(in NewLead, at time.Time) *Lead {
	lead := &Lead{
		ID:        newID(),
		Name:      in.Name,
		Email:     in.Email,
		Phone:     in.Phone,
		Source:    in.Source,
		Status:    StatusNew,
		Notes:     []Note{},
		CreatedAt: at,
		UpdatedAt: at,
	}
	if lead.Source == "" {
		lead.Source = DefaultSource
	}
	if in.Note != "" {
		lead.Notes = append(lead.Notes, Note{ID: newID(), Text: in.Note, CreatedAt: at})
	}
	return lead
}

// applyPatch mutates lead in place. updatedAt never moves backwards.
func applyPatch(lead *Lead, patch LeadPatch, at time.Time) {
	if patch.Name != nil {
		lead.Name = *patch.Name
	}
	if patch.Email != nil {
		lead.Email = *patch.Email
	}
	if patch.Phone != nil {
		lead.Phone = *patch.Phone
	}
	if patch.Source != nil {
		lead.Source = *patch.Source
	}
	if patch.Status != nil {
		lead.Status = *patch.Status
	}
	if patch.Note != nil {
		lead.Notes = append(lead.Notes, Note{ID: newID(), Text: *patch.Note, CreatedAt: at})
	}
	touch(lead, at)
}

func touch(lead *Lead, at time.Time) {
	if at.Before(lead.UpdatedAt) {
		at = lead.UpdatedAt
	}
	lead.UpdatedAt = at
}

// matchesFilter implements the in-process filter semantics shared by the
// memory, file and document backends.
func matchesFilter(lead *Lead, filter Filter) bool {
	if filter.Status != "" && lead.Status != filter.Status {
		return false
	}
	if filter.Source != "" && lead.Source != filter.Source {
		return false
	}
	if term := strings.ToLower(strings.TrimSpace(filter.Search)); term != "" {
		fields := []string{lead.Name, lead.Email, lead.Phone, string(lead.Status)}
		return lo.SomeBy(fields, func(f string) bool {
			return strings.Contains(strings.ToLower(f), term)
		})
	}
	return true
}

// filterLeads returns the matching leads, newest first.
func filterLeads(all []*Lead, filter Filter) []*Lead {
	out := lo.Filter(all, func(l *Lead, _ int) bool {
		return matchesFilter(l, filter)
	})
	if out == nil {
		out = []*Lead{}
	}
	sortNewestFirst(out)
	return out
}

func sortNewestFirst(leads []*Lead) {
	sort.SliceStable(leads, func(i, j int) bool {
		if !leads[i].CreatedAt.Equal(leads[j].CreatedAt) {
			return leads[i].CreatedAt.After(leads[j].CreatedAt)
		}
		return leads[i].ID > leads[j].ID
	})
}

// checkNoteText is the store-boundary guard for AppendNote.
func checkNoteText(text string) error {
	if strings.TrimSpace(text) == "" {
		return newValidationError("text", "is required")
	}
	return nil
}

// likePattern escapes LIKE metacharacters and wraps term for a substring match.
func likePattern(term string) string {
	r := strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)
	return "%" + r.Replace(strings.ToLower(strings.TrimSpace(term))) + "%"
}
