package usecase

import (
	"context"
	"strconv"
	"strings"
	"time"

	"github.com/insolvia/case-audit/internal/core/domain"
)

// TimelineStage derives dated events from the ingested documents: the
// document dates themselves plus any accounting lines carrying a leading ISO
// date. Earliest/latest bounds are derived by the schema migration.
type TimelineStage struct{}

func NewTimelineStage() *TimelineStage { return &TimelineStage{} }

func (s *TimelineStage) Stage() Stage {
	return Stage{Name: "timeline", Run: s.run}
}

func (s *TimelineStage) run(_ context.Context, st *domain.FlatState) error {
	for _, doc := range st.Documents {
		if doc.Date != nil {
			st.Timeline = append(st.Timeline, domain.TimelineEvent{
				Date:        *doc.Date,
				Kind:        "document",
				Description: "document dated: " + doc.DocType,
				SourceDocID: doc.DocID,
			})
		}
		for _, line := range strings.Split(doc.Content, "\n") {
			event, ok := parseLedgerLine(line)
			if !ok {
				continue
			}
			event.SourceDocID = doc.DocID
			st.Timeline = append(st.Timeline, event)
		}
	}
	if len(st.Timeline) == 0 {
		st.Notes = append(st.Notes, "timeline: no dated events found in inputs")
	}
	return nil
}

// parseLedgerLine reads accounting-export lines of the form
// "YYYY-MM-DD;counterparty;amount;purpose".
func parseLedgerLine(line string) (domain.TimelineEvent, bool) {
	fields := strings.Split(strings.TrimSpace(line), ";")
	if len(fields) < 3 {
		return domain.TimelineEvent{}, false
	}
	date, err := time.Parse("2006-01-02", strings.TrimSpace(fields[0]))
	if err != nil {
		return domain.TimelineEvent{}, false
	}
	amount, err := strconv.ParseFloat(strings.TrimSpace(fields[2]), 64)
	if err != nil {
		return domain.TimelineEvent{}, false
	}

	kind := "booking"
	if amount < 0 {
		kind = "payment_out"
	} else if amount > 0 {
		kind = "payment_in"
	}
	description := strings.TrimSpace(fields[1])
	if len(fields) > 3 && strings.TrimSpace(fields[3]) != "" {
		description += ": " + strings.TrimSpace(fields[3])
	}
	return domain.TimelineEvent{
		Date:        date,
		Kind:        kind,
		Description: description,
		AmountEUR:   amount,
	}, true
}
