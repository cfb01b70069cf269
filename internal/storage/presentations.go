package storage

import (
	"fmt"
	"time"
)

// PresentationStats aggregates interstitial presentations per outcome.
type PresentationStats struct {
	Outcome       string
	Count         int
	AvgSeconds    float64
	LastPresented time.Time
}

// RecordPresentation stores how an interstitial ended and how long it was shown.
func (s *Store) RecordPresentation(outcome string, secondsElapsed int) error {
	_, err := s.db.Exec(
		"INSERT INTO presentations (outcome, seconds_elapsed) VALUES (?, ?)",
		outcome, secondsElapsed,
	)
	if err != nil {
		return fmt.Errorf("storage: cannot record presentation: %w", err)
	}
	return nil
}

// PresentationStats returns per-outcome aggregates, ordered by outcome.
func (s *Store) PresentationStats() ([]PresentationStats, error) {
	rows, err := s.db.Query(
		`SELECT outcome, COUNT(*), AVG(seconds_elapsed), MAX(created_at)
		 FROM presentations
		 GROUP BY outcome
		 ORDER BY outcome`,
	)
	if err != nil {
		return nil, fmt.Errorf("storage: cannot query presentations: %w", err)
	}
	defer rows.Close()

	var stats []PresentationStats
	for rows.Next() {
		var (
			ps   PresentationStats
			last any
		)
		if err := rows.Scan(&ps.Outcome, &ps.Count, &ps.AvgSeconds, &last); err != nil {
			return nil, fmt.Errorf("storage: cannot scan stats row: %w", err)
		}
		ps.LastPresented = parseTimestamp(last)
		stats = append(stats, ps)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage: row iteration error: %w", err)
	}
	return stats, nil
}
