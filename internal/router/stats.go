package router

import (
	"context"
	"database/sql"
	"time"

	"github.com/callcenter-console/internal/models"
)

// GetStatistics summarizes the current load for the dashboard.
func (r *Router) GetStatistics(ctx context.Context) (*models.Statistics, error) {
	now := r.now()
	stats := &models.Statistics{Timestamp: now}

	rows, err := r.query(ctx, r.db, "SELECT status, COUNT(*) FROM calls GROUP BY status")
	if err != nil {
		return nil, err
	}
	for rows.Next() {
		var (
			status models.CallStatus
			count  int
		)
		if err := rows.Scan(&status, &count); err != nil {
			rows.Close()
			return nil, err
		}
		switch status {
		case models.CallStatusActive:
			stats.ActiveCalls = count
		case models.CallStatusQueued:
			stats.QueuedCalls = count
		}
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, err
	}

	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	var completed sql.NullInt64
	err = r.queryRow(ctx, r.db, `
		SELECT COUNT(*), SUM(CASE WHEN status = ? THEN 1 ELSE 0 END)
		FROM calls
		WHERE started_at >= ?`,
		models.CallStatusCompleted, midnight,
	).Scan(&stats.CallsToday, &completed)
	if err != nil {
		return nil, err
	}
	stats.CompletedToday = int(completed.Int64)

	var online sql.NullInt64
	err = r.queryRow(ctx, r.db,
		"SELECT COUNT(*), SUM(CASE WHEN status = ? THEN 1 ELSE 0 END) FROM users WHERE role = ?",
		models.UserStatusOnline, models.RoleOperator,
	).Scan(&stats.OperatorsTotal, &online)
	if err != nil {
		return nil, err
	}
	stats.OperatorsOnline = int(online.Int64)

	var avg sql.NullFloat64
	if err := r.queryRow(ctx, r.db, "SELECT AVG(duration) FROM calls WHERE status = ?", models.CallStatusCompleted).Scan(&avg); err != nil {
		return nil, err
	}
	stats.AvgDuration = avg.Float64

	return stats, nil
}
