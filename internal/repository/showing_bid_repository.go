package repository

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/unfoldmono/realza/internal/model"
)

// ShowingBidRepo manages persistence for showing_bids, the
// seller-approval allocation path.
type ShowingBidRepo struct {
	db *sql.DB
}

func NewShowingBidRepo(db *sql.DB) *ShowingBidRepo { return &ShowingBidRepo{db: db} }

// CreateTx inserts a pending bid within an existing transaction and
// populates the generated ID.
func (r *ShowingBidRepo) CreateTx(ctx context.Context, tx *sql.Tx, b *model.ShowingBid) error {
	const q = `INSERT INTO showing_bids (showing_id, agent_id, bid_cents, message, status)
	           VALUES (?, ?, ?, ?, ?)`
	if b.Status == "" {
		b.Status = model.BidPending
	}
	res, err := tx.ExecContext(ctx, q, b.ShowingID, b.AgentID, b.BidCents, b.Message, string(b.Status))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	b.ID = uint64(id)
	return nil
}

// Create inserts a pending bid outside any transaction.
func (r *ShowingBidRepo) Create(ctx context.Context, b *model.ShowingBid) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.CreateTx(ctx, tx, b); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// GetByID loads a bid by id, returning ErrBidNotFound when absent.
func (r *ShowingBidRepo) GetByID(ctx context.Context, id uint64) (*model.ShowingBid, error) {
	const q = `SELECT id, showing_id, agent_id, bid_cents, message, status, created_at, updated_at
	           FROM showing_bids WHERE id = ?`
	var b model.ShowingBid
	var status string
	err := r.db.QueryRowContext(ctx, q, id).Scan(&b.ID, &b.ShowingID, &b.AgentID,
		&b.BidCents, &b.Message, &status, &b.CreatedAt, &b.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrBidNotFound
	}
	if err != nil {
		return nil, err
	}
	b.Status = model.BidStatus(status)
	return &b, nil
}

// AcceptTx marks a single bid accepted within a transaction.
func (r *ShowingBidRepo) AcceptTx(ctx context.Context, tx *sql.Tx, bidID uint64) error {
	_, err := tx.ExecContext(ctx, "UPDATE showing_bids SET status = 'accepted' WHERE id = ?", bidID)
	return err
}

// RejectSiblingsTx rejects every other pending bid on the same showing.
// Invoked as part of the accept transaction so no sibling stays pending
// after an accept commits.
func (r *ShowingBidRepo) RejectSiblingsTx(ctx context.Context, tx *sql.Tx, showingID, exceptBidID uint64) error {
	_, err := tx.ExecContext(ctx,
		"UPDATE showing_bids SET status = 'rejected' WHERE showing_id = ? AND id <> ? AND status = 'pending'",
		showingID, exceptBidID)
	return err
}

// Reject marks a single bid rejected.
func (r *ShowingBidRepo) Reject(ctx context.Context, bidID uint64) error {
	_, err := r.db.ExecContext(ctx, "UPDATE showing_bids SET status = 'rejected' WHERE id = ?", bidID)
	return err
}

// CountPending returns the number of bids still pending on a showing.
// The reject path re-derives the bids-exhausted condition from this
// count on every rejection.
func (r *ShowingBidRepo) CountPending(ctx context.Context, showingID uint64) (int, error) {
	var n int
	err := r.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM showing_bids WHERE showing_id = ? AND status = 'pending'",
		showingID).Scan(&n)
	return n, err
}

// AgentBidDetail is a pending bid on the agent dashboard, joined with
// showing and listing context.
type AgentBidDetail struct {
	BidID         uint64 `json:"bid_id"`
	BidCents      uint32 `json:"bid_cents"`
	Status        string `json:"status"`
	CreatedAt     string `json:"created_at"`
	ShowingID     uint64 `json:"showing_id"`
	RequestedDate string `json:"requested_date"`
	RequestedTime string `json:"requested_time"`
	ShowingStatus string `json:"showing_status"`
	ListingID     uint64 `json:"listing_id"`
	Address       string `json:"address"`
	City          string `json:"city"`
	State         string `json:"state"`
}

// ListPendingByAgent returns the agent's open bids, newest first.
func (r *ShowingBidRepo) ListPendingByAgent(ctx context.Context, agentID uint64) ([]AgentBidDetail, error) {
	const q = `SELECT b.id, b.bid_cents, b.status, b.created_at,
	                  s.id, s.requested_date, s.requested_time, s.status,
	                  l.id, l.address, l.city, l.state
	           FROM showing_bids b
	           JOIN showings s ON s.id = b.showing_id
	           JOIN listings l ON l.id = s.listing_id
	           WHERE b.agent_id = ? AND b.status = 'pending'
	           ORDER BY b.created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AgentBidDetail, 0)
	for rows.Next() {
		var d AgentBidDetail
		var createdAt time.Time
		if err := rows.Scan(&d.BidID, &d.BidCents, &d.Status, &createdAt,
			&d.ShowingID, &d.RequestedDate, &d.RequestedTime, &d.ShowingStatus,
			&d.ListingID, &d.Address, &d.City, &d.State); err != nil {
			return nil, err
		}
		d.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		out = append(out, d)
	}
	return out, rows.Err()
}
