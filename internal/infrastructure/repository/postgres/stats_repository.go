package postgres

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/muhshi/demakai-bot/internal/core/domain"
)

type StatsRepository struct {
	db *sql.DB
}

func NewStatsRepository(db *sql.DB) *StatsRepository {
	return &StatsRepository{db: db}
}

// Stats leaves blocked sessions out of the active count and the mode distribution.
func (r *StatsRepository) Stats(ctx context.Context, activeSince time.Time) (domain.StoreStats, error) {
	var stats domain.StoreStats
	row := r.db.QueryRowContext(ctx, `
SELECT
	(SELECT COUNT(*) FROM classification_codes WHERE kind = 'KBLI'),
	(SELECT COUNT(*) FROM classification_codes WHERE kind = 'KBJI'),
	(SELECT COUNT(*) FROM documents),
	(SELECT COUNT(*) FROM sessions),
	(SELECT COUNT(*) FROM sessions WHERE last_interaction >= $1 AND is_blocked = false),
	(SELECT COALESCE(SUM(message_count), 0) FROM sessions)
`, activeSince)
	if err := row.Scan(&stats.KBLI, &stats.KBJI, &stats.Documents, &stats.Sessions, &stats.ActiveUsers24h, &stats.TotalMessages); err != nil {
		return stats, fmt.Errorf("scan store counters: %w", err)
	}

	rows, err := r.db.QueryContext(ctx, `
SELECT current_mode, COUNT(*)
FROM sessions
WHERE is_blocked = false
GROUP BY current_mode
ORDER BY COUNT(*) DESC, current_mode
`)
	if err != nil {
		return stats, fmt.Errorf("mode distribution: %w", err)
	}
	defer rows.Close()

	stats.ModeDistribution = make([]domain.ModeCount, 0, 3)
	for rows.Next() {
		var mode string
		var count int
		if err := rows.Scan(&mode, &count); err != nil {
			return stats, fmt.Errorf("scan mode distribution: %w", err)
		}
		stats.ModeDistribution = append(stats.ModeDistribution, domain.ModeCount{Mode: domain.ParseMode(mode), Count: count})
	}
	if err := rows.Err(); err != nil {
		return stats, fmt.Errorf("iterate mode distribution: %w", err)
	}
	return stats, nil
}
