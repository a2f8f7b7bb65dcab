package leads

import (
	"context"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/wolfman30/lead-crm/internal/observability/metrics"
	"github.com/wolfman30/lead-crm/pkg/logging"
)

var serviceTracer = otel.Tracer("crm.internal.leads.service")

// Notifier is told about every accepted public submission.
type Notifier interface {
	NotifyNewLead(ctx context.Context, lead *Lead) error
}

// Archiver keeps a copy of a lead before it is deleted.
type Archiver interface {
	ArchiveLead(ctx context.Context, lead *Lead) error
}

// ServiceOption configures optional LeadService collaborators.
type ServiceOption func(*LeadService)

// WithMetrics records per-operation counters and latency.
func WithMetrics(m *metrics.LeadMetrics) ServiceOption {
	return func(s *LeadService) { s.metrics = m }
}

// WithNotifier sends a best-effort alert after each submission.
func WithNotifier(n Notifier) ServiceOption {
	return func(s *LeadService) { s.notifier = n }
}

// WithArchiver snapshots leads before deletion.
func WithArchiver(a Archiver) ServiceOption {
	return func(s *LeadService) { s.archiver = a }
}

// LeadService applies domain rules on top of a Store. SubmitLead is the
// public entry point; every other method is meant for authenticated admins.
type LeadService struct {
	store    Store
	summary  *SummaryService
	logger   *logging.Logger
	metrics  *metrics.LeadMetrics
	notifier Notifier
	archiver Archiver
}

// NewLeadService creates a lead service.
func NewLeadService(store Store, logger *logging.Logger, opts ...ServiceOption) *LeadService {
	if store == nil {
		panic("leads: store required")
	}
	if logger == nil {
		logger = logging.Default()
	}
	s := &LeadService{
		store:   store,
		summary: NewSummaryService(store),
		logger:  logger.Component("lead_service"),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case IsValidation(err):
		return "validation"
	case IsNotFound(err):
		return "not_found"
	default:
		return "error"
	}
}

// begin starts a span and returns a finisher that records the outcome.
func (s *LeadService) begin(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	start := time.Now()
	ctx, span := serviceTracer.Start(ctx, "leads."+op, trace.WithAttributes(attrs...))
	return ctx, func(err error) {
		if err != nil && !IsValidation(err) && !IsNotFound(err) {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
		s.metrics.ObserveOperation(op, outcome(err), time.Since(start).Seconds())
	}
}

// SubmitLead records a public intake submission.
func (s *LeadService) SubmitLead(ctx context.Context, req CreateLeadRequest) (lead *Lead, err error) {
	ctx, done := s.begin(ctx, "submit")
	defer func() { done(err) }()

	in, err := normalizeNewLead(req)
	if err != nil {
		return nil, err
	}
	lead, err = s.store.Create(ctx, in)
	if err != nil {
		s.logger.Error("failed to create lead", "error", err)
		return nil, err
	}
	s.metrics.ObserveSubmission(lead.Source)
	s.logger.Info("lead submitted", "lead_id", lead.ID, "source", lead.Source)
	s.notify(ctx, lead)
	return lead, nil
}

func (s *LeadService) notify(ctx context.Context, lead *Lead) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.NotifyNewLead(ctx, lead); err != nil {
		s.metrics.ObserveNotification("failed")
		s.logger.Warn("new lead notification failed", "lead_id", lead.ID, "error", err)
		return
	}
	s.metrics.ObserveNotification("sent")
}

// ListLeads returns leads matching filter, newest first.
func (s *LeadService) ListLeads(ctx context.Context, filter Filter) (out []*Lead, err error) {
	ctx, done := s.begin(ctx, "list",
		attribute.String("filter.status", string(filter.Status)),
		attribute.String("filter.source", filter.Source),
	)
	defer func() { done(err) }()

	if filter.Status != "" && !filter.Status.Valid() {
		return nil, newValidationError("status", "must be one of new, contacted, converted")
	}
	return s.store.List(ctx, filter)
}

// GetLead fetches a lead by id.
func (s *LeadService) GetLead(ctx context.Context, id string) (lead *Lead, err error) {
	ctx, done := s.begin(ctx, "get", attribute.String("lead.id", id))
	defer func() { done(err) }()
	return s.store.GetByID(ctx, id)
}

// UpdateLead applies a partial update. A note in the request is appended in
// the same write as the field changes.
func (s *LeadService) UpdateLead(ctx context.Context, id string, req UpdateLeadRequest) (lead *Lead, err error) {
	ctx, done := s.begin(ctx, "update", attribute.String("lead.id", id))
	defer func() { done(err) }()

	patch, err := normalizePatch(req)
	if err != nil {
		return nil, err
	}
	lead, err = s.store.Update(ctx, id, patch)
	if err != nil {
		return nil, err
	}
	s.logger.Info("lead updated", "lead_id", id, "status", lead.Status)
	return lead, nil
}

// DeleteLead archives the lead when an archiver is configured, then removes it.
func (s *LeadService) DeleteLead(ctx context.Context, id string) (err error) {
	ctx, done := s.begin(ctx, "delete", attribute.String("lead.id", id))
	defer func() { done(err) }()

	if s.archiver != nil {
		lead, err := s.store.GetByID(ctx, id)
		if err != nil {
			return err
		}
		if err := s.archiver.ArchiveLead(ctx, lead); err != nil {
			s.logger.Error("failed to archive lead", "lead_id", id, "error", err)
			return storageErr("archive", "delete", err)
		}
	}
	if err := s.store.Delete(ctx, id); err != nil {
		return err
	}
	s.logger.Info("lead deleted", "lead_id", id)
	return nil
}

// AddNote appends a note and returns the updated lead.
func (s *LeadService) AddNote(ctx context.Context, id string, req AddNoteRequest) (lead *Lead, err error) {
	ctx, done := s.begin(ctx, "add_note", attribute.String("lead.id", id))
	defer func() { done(err) }()

	text, err := normalizeNoteText(req.Text)
	if err != nil {
		return nil, err
	}
	return s.store.AppendNote(ctx, id, text)
}

// ListNotes returns a lead's notes in insertion order.
func (s *LeadService) ListNotes(ctx context.Context, id string) (notes []Note, err error) {
	ctx, done := s.begin(ctx, "list_notes", attribute.String("lead.id", id))
	defer func() { done(err) }()

	lead, err := s.store.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	return lead.Notes, nil
}

// Summary returns pipeline statistics.
func (s *LeadService) Summary(ctx context.Context) (sum Summary, err error) {
	ctx, done := s.begin(ctx, "summary")
	defer func() { done(err) }()
	return s.summary.Summary(ctx)
}
