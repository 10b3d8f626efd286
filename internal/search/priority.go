package search

import (
	"time"

	"github.com/dmbp/licitaflix/internal/models"
)

// highValueThreshold marks a bid high priority on value alone, in the
// upstream currency units.
const highValueThreshold = 500_000

// ClassifyPriority derives the initial urgency tier from a bid's deadline and
// estimated value. First rule wins: deadline within 3 calendar days is urgent,
// within 7 is high, otherwise a value above the threshold is high and
// everything else is normal. A missing or unparseable deadline is no signal
// and falls through to the value check.
func ClassifyPriority(bid models.Bid, now time.Time) models.Priority {
	deadline := bid.ProposalCloseAt
	if deadline == nil {
		deadline = bid.ProposalOpenAt
	}

	if deadline != nil {
		days := calendarDaysUntil(now, *deadline)
		if days <= 3 {
			return models.PriorityUrgent
		}
		if days <= 7 {
			return models.PriorityHigh
		}
	}

	if bid.EstimatedValue != nil && *bid.EstimatedValue > highValueThreshold {
		return models.PriorityHigh
	}

	return models.PriorityNormal
}

// calendarDaysUntil counts whole calendar days between the two dates,
// ignoring time of day.
func calendarDaysUntil(now, then time.Time) int {
	a := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	b := time.Date(then.Year(), then.Month(), then.Day(), 0, 0, 0, 0, time.UTC)
	return int(b.Sub(a).Hours() / 24)
}
