package leads

import (
	"context"
	"math"

	"github.com/samber/lo"
)

// Summary is the pipeline snapshot shown on the admin dashboard.
type Summary struct {
	Total          int            `json:"total"`
	Contacted      int            `json:"contacted"`
	Converted      int            `json:"converted"`
	ConversionRate float64        `json:"conversionRate"`
	BySource       map[string]int `json:"bySource"`
}

// SummaryQuerier is implemented by stores that can aggregate natively.
type SummaryQuerier interface {
	Summarize(ctx context.Context) (Summary, error)
}

// conversionRate is converted/total as a percentage with one decimal place.
func conversionRate(total, converted int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(converted)/float64(total)*1000) / 10
}

func newSummary(total, contacted, converted int, bySource map[string]int) Summary {
	if bySource == nil {
		bySource = map[string]int{}
	}
	return Summary{
		Total:          total,
		Contacted:      contacted,
		Converted:      converted,
		ConversionRate: conversionRate(total, converted),
		BySource:       bySource,
	}
}

// summarize aggregates an in-memory lead list.
func summarize(all []*Lead) Summary {
	contacted := lo.CountBy(all, func(l *Lead) bool { return l.Status == StatusContacted })
	converted := lo.CountBy(all, func(l *Lead) bool { return l.Status == StatusConverted })
	bySource := lo.CountValuesBy(all, func(l *Lead) string { return l.Source })
	return newSummary(len(all), contacted, converted, bySource)
}

// SummaryService computes pipeline statistics over a Store.
type SummaryService struct {
	store Store
}

// NewSummaryService creates a summary service.
func NewSummaryService(store Store) *SummaryService {
	return &SummaryService{store: store}
}

// Summary returns the current pipeline statistics.
func (s *SummaryService) Summary(ctx context.Context) (Summary, error) {
	if q, ok := s.store.(SummaryQuerier); ok {
		return q.Summarize(ctx)
	}
	all, err := s.store.List(ctx, Filter{})
	if err != nil {
		return Summary{}, err
	}
	return summarize(all), nil
}
