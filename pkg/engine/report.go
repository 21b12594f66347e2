package engine

import (
	"time"

	"github.com/edekker/vigil/pkg/models"

	"github.com/google/uuid"
)

// buildReport folds the cycle's results into a report.
//
// The per-category summary is seeded from the rule list first, so a
// category whose rules produced no results still reports its rule total.
// Grand totals are straight sums over the summary table, which keeps the
// report's counts equal to the sum of its category entries.
func (e *Engine) buildReport(taskID string, rules []models.Rule, results []models.Result, started time.Time, duration time.Duration) *models.Report {
	summary := make(map[models.Category]*models.CategorySummary)
	entry := func(cat models.Category) *models.CategorySummary {
		s, ok := summary[cat]
		if !ok {
			s = &models.CategorySummary{Category: cat}
			summary[cat] = s
		}
		return s
	}

	for _, rule := range rules {
		entry(rule.Category).Total++
	}

	for _, result := range results {
		s := entry(result.Category)
		switch result.Status {
		case models.StatusPassed:
			s.Passed++
		case models.StatusFailed:
			s.Failed++
		case models.StatusSkipped:
			s.Skipped++
		}
		if e.cfg.ReportingEnabled {
			s.Results = append(s.Results, result)
		}
	}

	report := &models.Report{
		ID:        uuid.New().String(),
		TaskID:    taskID,
		Timestamp: started,
		Duration:  duration,
		Summary:   summary,
		Results:   results,
		Metadata: map[string]any{
			"mode": e.cfg.Mode,
		},
	}
	for _, s := range summary {
		report.Add(s.Tally)
	}
	return report
}
