package router

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/callcenter-console/internal/models"
)

// DefaultCallLimit bounds the call history returned by ListCalls.
const DefaultCallLimit = 100

const (
	msgRoutedToOperator = "Звонок направлен оператору"
	msgQueued           = "Нет доступных операторов, звонок в очереди"
)

// ListCalls returns the most recent calls with the operator's display name.
func (r *Router) ListCalls(ctx context.Context, limit int) ([]models.Call, error) {
	if limit <= 0 {
		limit = DefaultCallLimit
	}

	query := `
		SELECT c.id, c.caller_number, u.full_name, c.status, c.duration, c.started_at, c.ended_at, c.notes
		FROM calls c
		LEFT JOIN users u ON c.operator_id = u.id
		ORDER BY c.started_at DESC, c.id DESC
		LIMIT ?
	`

	rows, err := r.query(ctx, r.db, query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	calls := make([]models.Call, 0)
	for rows.Next() {
		var (
			call     models.Call
			operator sql.NullString
			endedAt  sql.NullTime
			notes    sql.NullString
		)
		err := rows.Scan(
			&call.ID,
			&call.CallerNumber,
			&operator,
			&call.Status,
			&call.Duration,
			&call.StartedAt,
			&endedAt,
			&notes,
		)
		if err != nil {
			return nil, err
		}
		if operator.Valid {
			name := operator.String
			call.OperatorName = &name
		}
		if endedAt.Valid {
			t := endedAt.Time
			call.EndedAt = &t
		}
		call.Notes = notes.String
		calls = append(calls, call)
	}
	return calls, rows.Err()
}

// InitiateCall routes a new call to a random online operator, marking the
// operator busy. Without an available operator the call is queued.
func (r *Router) InitiateCall(ctx context.Context, callerNumber string) (*models.InitiateCallResult, error) {
	callerNumber = strings.TrimSpace(callerNumber)
	if callerNumber == "" {
		return nil, models.ErrMissingNumber
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, err
	}
	defer tx.Rollback()

	operatorID, found, err := r.pickOperator(ctx, tx)
	if err != nil {
		return nil, err
	}

	result := &models.InitiateCallResult{}
	if found {
		callID, err := r.insert(ctx, tx,
			"INSERT INTO calls (caller_number, operator_id, status, started_at) VALUES (?, ?, ?, ?)",
			callerNumber, operatorID, models.CallStatusActive, r.now(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to store call: %w", err)
		}
		if _, err := r.exec(ctx, tx, "UPDATE users SET status = ? WHERE id = ?", models.UserStatusBusy, operatorID); err != nil {
			return nil, err
		}
		result.CallID = callID
		result.OperatorID = &operatorID
		result.Message = msgRoutedToOperator
	} else {
		callID, err := r.insert(ctx, tx,
			"INSERT INTO calls (caller_number, status, started_at) VALUES (?, ?, ?)",
			callerNumber, models.CallStatusQueued, r.now(),
		)
		if err != nil {
			return nil, fmt.Errorf("failed to store call: %w", err)
		}
		result.CallID = callID
		result.Message = msgQueued
	}

	if err := tx.Commit(); err != nil {
		return nil, err
	}

	if found {
		log.Printf("[ROUTER] Call %d from %s routed to operator %d", result.CallID, callerNumber, operatorID)
	} else {
		log.Printf("[ROUTER] Call %d from %s queued, no operators online", result.CallID, callerNumber)
	}
	return result, nil
}

// EndCall completes an active call and puts its operator back online.
func (r *Router) EndCall(ctx context.Context, req models.EndCallRequest) error {
	if req.Duration < 0 {
		return models.ErrNegativeDuration
	}

	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var (
		operatorID sql.NullInt64
		status     models.CallStatus
	)
	err = r.queryRow(ctx, tx, "SELECT operator_id, status FROM calls WHERE id = ?"+r.dialect.lockRows, req.CallID).
		Scan(&operatorID, &status)
	if errors.Is(err, sql.ErrNoRows) {
		return models.ErrCallNotFound
	}
	if err != nil {
		return err
	}
	if status == models.CallStatusCompleted {
		return models.ErrCallNotActive
	}

	_, err = r.exec(ctx, tx,
		"UPDATE calls SET status = ?, ended_at = ?, duration = ?, notes = ? WHERE id = ?",
		models.CallStatusCompleted, r.now(), req.Duration, req.Notes, req.CallID,
	)
	if err != nil {
		return fmt.Errorf("failed to end call: %w", err)
	}

	if operatorID.Valid {
		if _, err := r.exec(ctx, tx, "UPDATE users SET status = ? WHERE id = ?", models.UserStatusOnline, operatorID.Int64); err != nil {
			return err
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	log.Printf("[ROUTER] Call %d completed after %ds", req.CallID, req.Duration)
	return nil
}

// DispatchQueued hands queued calls, oldest first, to online operators until
// either runs out. It returns the number of calls dispatched.
func (r *Router) DispatchQueued(ctx context.Context) (int, error) {
	dispatched := 0
	for {
		ok, err := r.dispatchOne(ctx)
		if err != nil {
			return dispatched, err
		}
		if !ok {
			return dispatched, nil
		}
		dispatched++
	}
}

func (r *Router) dispatchOne(ctx context.Context) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	defer tx.Rollback()

	var callID int64
	err = r.queryRow(ctx, tx,
		"SELECT id FROM calls WHERE status = ? ORDER BY started_at, id LIMIT 1"+r.dialect.lockRows,
		models.CallStatusQueued,
	).Scan(&callID)
	if errors.Is(err, sql.ErrNoRows) {
		return false, nil
	}
	if err != nil {
		return false, err
	}

	operatorID, found, err := r.pickOperator(ctx, tx)
	if err != nil || !found {
		return false, err
	}

	if _, err := r.exec(ctx, tx, "UPDATE calls SET status = ?, operator_id = ? WHERE id = ?", models.CallStatusActive, operatorID, callID); err != nil {
		return false, err
	}
	if _, err := r.exec(ctx, tx, "UPDATE users SET status = ? WHERE id = ?", models.UserStatusBusy, operatorID); err != nil {
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}

	log.Printf("[ROUTER] Queued call %d dispatched to operator %d", callID, operatorID)
	return true, nil
}

func (r *Router) pickOperator(ctx context.Context, tx *sql.Tx) (int64, bool, error) {
	var id int64
	err := r.queryRow(ctx, tx,
		"SELECT id FROM users WHERE status = ? AND role = ? ORDER BY "+r.dialect.random+" LIMIT 1"+r.dialect.lockRows,
		models.UserStatusOnline, models.RoleOperator,
	).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return id, true, nil
}
