package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/unfoldmono/realza/internal/model"
)

// ShowingRequestRepo manages persistence for showing_requests, the
// first-claim allocation path.  The table carries a unique key on
// (showing_id, agent_id) so an agent can never claim the same showing
// twice; losing the subsequent conditional assignment rolls the row
// back to rejected.
type ShowingRequestRepo struct {
	db *sql.DB
}

func NewShowingRequestRepo(db *sql.DB) *ShowingRequestRepo { return &ShowingRequestRepo{db: db} }

// Create inserts a claim row.  A duplicate-key violation maps to
// ErrDuplicateClaim.
func (r *ShowingRequestRepo) Create(ctx context.Context, req *model.ShowingRequest) error {
	const q = `INSERT INTO showing_requests (showing_id, agent_id, bid_cents, message, status)
	           VALUES (?, ?, ?, ?, ?)`
	res, err := r.db.ExecContext(ctx, q,
		req.ShowingID, req.AgentID, req.BidCents, req.Message, string(req.Status))
	if err != nil {
		// MySQL duplicate-key errors carry code 1062.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return ErrDuplicateClaim
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	req.ID = uint64(id)
	return nil
}

// MarkRejected rolls an agent's claim back to rejected after a lost
// race.
func (r *ShowingRequestRepo) MarkRejected(ctx context.Context, showingID, agentID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE showing_requests SET status = 'rejected' WHERE showing_id = ? AND agent_id = ?",
		showingID, agentID)
	return err
}

// GetByShowingAndAgent loads a claim row, or sql.ErrNoRows.
func (r *ShowingRequestRepo) GetByShowingAndAgent(ctx context.Context, showingID, agentID uint64) (*model.ShowingRequest, error) {
	const q = `SELECT id, showing_id, agent_id, bid_cents, message, status, created_at, updated_at
	           FROM showing_requests WHERE showing_id = ? AND agent_id = ?`
	var req model.ShowingRequest
	var status string
	err := r.db.QueryRowContext(ctx, q, showingID, agentID).Scan(&req.ID, &req.ShowingID, &req.AgentID,
		&req.BidCents, &req.Message, &status, &req.CreatedAt, &req.UpdatedAt)
	if err != nil {
		return nil, err
	}
	req.Status = model.RequestStatus(status)
	return &req, nil
}
