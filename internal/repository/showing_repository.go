package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/unfoldmono/realza/internal/model"
)

// ShowingRepo manages persistence for showings.  The single point of
// contention in the whole system is the assigned_agent_id column: it is
// written only through AssignIfUnassignedTx, whose WHERE clause keeps
// concurrent writers from ever double-assigning a showing.
type ShowingRepo struct {
	db *sql.DB
}

func NewShowingRepo(db *sql.DB) *ShowingRepo { return &ShowingRepo{db: db} }

// DB exposes the underlying sql.DB so callers can begin transactions
// spanning multiple repositories.
func (r *ShowingRepo) DB() *sql.DB { return r.db }

// CreateTx inserts a new showing within the scope of an existing
// transaction and populates the generated ID.  The caller must commit
// or roll back the transaction.
func (r *ShowingRepo) CreateTx(ctx context.Context, tx *sql.Tx, s *model.Showing) error {
	const q = `INSERT INTO showings
	           (listing_id, buyer_name, buyer_email, buyer_phone, requested_date, requested_time, status, claim_mode, lock_code_revealed)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`
	var mode *string
	if s.ClaimMode != nil {
		m := string(*s.ClaimMode)
		mode = &m
	}
	res, err := tx.ExecContext(ctx, q,
		s.ListingID, s.BuyerName, s.BuyerEmail, s.BuyerPhone,
		s.RequestedDate, s.RequestedTime, string(s.Status), mode, s.LockCodeRevealed)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// Create inserts a new showing outside any transaction.
func (r *ShowingRepo) Create(ctx context.Context, s *model.Showing) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	if err := r.CreateTx(ctx, tx, s); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

const showingCols = `id, listing_id, buyer_name, buyer_email, buyer_phone,
	requested_date, requested_time, status, claim_mode,
	assigned_agent_id, payout_cents, lock_code_revealed, feedback, rating,
	created_at, updated_at`

func scanShowing(scan func(dest ...any) error) (*model.Showing, error) {
	var s model.Showing
	var status string
	var mode sql.NullString
	if err := scan(&s.ID, &s.ListingID, &s.BuyerName, &s.BuyerEmail, &s.BuyerPhone,
		&s.RequestedDate, &s.RequestedTime, &status, &mode,
		&s.AssignedAgentID, &s.PayoutCents, &s.LockCodeRevealed, &s.Feedback, &s.Rating,
		&s.CreatedAt, &s.UpdatedAt); err != nil {
		return nil, err
	}
	s.Status = model.ShowingStatus(status)
	if mode.Valid {
		m := model.ClaimMode(mode.String)
		s.ClaimMode = &m
	}
	return &s, nil
}

// GetByID loads a showing by id.  Returns ErrShowingNotFound when the
// row does not exist.
func (r *ShowingRepo) GetByID(ctx context.Context, id uint64) (*model.Showing, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+showingCols+" FROM showings WHERE id = ?", id)
	s, err := scanShowing(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrShowingNotFound
	}
	return s, err
}

// AssignIfUnassignedTx atomically assigns the showing to agentID at the
// given payout, revealing the lock code, on the condition that no agent
// holds the showing yet and it is still in an open state.  It reports
// whether the row was updated; a false return means another writer won
// the race, or the showing left pending/bidding in the meantime, and
// the caller must treat the attempt as lost.  This conditional write is
// the arbiter of every path into the ASSIGNED state; cancelled and
// completed showings can never be resurrected through it.
func (r *ShowingRepo) AssignIfUnassignedTx(ctx context.Context, tx *sql.Tx, showingID, agentID uint64, payoutCents uint32) (bool, error) {
	const q = `UPDATE showings
	           SET status = 'assigned', assigned_agent_id = ?, payout_cents = ?, lock_code_revealed = 1
	           WHERE id = ? AND assigned_agent_id IS NULL AND status IN ('pending','bidding')`
	res, err := tx.ExecContext(ctx, q, agentID, payoutCents, showingID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// AssignIfUnassigned is the non-transactional form of
// AssignIfUnassignedTx, used by the first-claim path where the claim
// row is written before, and rolled back after, the conditional update.
func (r *ShowingRepo) AssignIfUnassigned(ctx context.Context, showingID, agentID uint64, payoutCents uint32) (bool, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return false, err
	}
	ok, err := r.AssignIfUnassignedTx(ctx, tx, showingID, agentID, payoutCents)
	if err != nil {
		_ = tx.Rollback()
		return false, err
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	return ok, nil
}

// CancelIfPending cancels the showing only while it is still pending.
// Rejecting the last pending bid must never cancel a showing that was
// concurrently assigned, so the status check happens at write time.
func (r *ShowingRepo) CancelIfPending(ctx context.Context, showingID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE showings SET status = 'cancelled' WHERE id = ? AND status = 'pending'",
		showingID)
	return err
}

// MarkLockCodeRevealed flips the monotonic lock_code_revealed flag.
// Safe to call repeatedly.
func (r *ShowingRepo) MarkLockCodeRevealed(ctx context.Context, showingID uint64) error {
	_, err := r.db.ExecContext(ctx,
		"UPDATE showings SET lock_code_revealed = 1 WHERE id = ?", showingID)
	return err
}

// Complete moves an assigned showing to completed, storing feedback and
// rating verbatim.  The assigned-agent and status conditions are part
// of the UPDATE so the transition is verified at write time.  It
// reports whether the row was updated.
func (r *ShowingRepo) Complete(ctx context.Context, showingID, agentID uint64, feedback *string, rating *uint8) (bool, error) {
	const q = `UPDATE showings SET status = 'completed', feedback = ?, rating = ?
	           WHERE id = ? AND assigned_agent_id = ? AND status = 'assigned'`
	res, err := r.db.ExecContext(ctx, q, feedback, rating, showingID, agentID)
	if err != nil {
		return false, err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n == 1, nil
}

// ClaimableRow is one entry of the claimable-showings feed: a showing
// open to first-claim plus enough listing context to render it.  Lock
// codes are never part of this query.
type ClaimableRow struct {
	ShowingID     uint64  `json:"showing_id"`
	RequestedDate string  `json:"requested_date"`
	RequestedTime string  `json:"requested_time"`
	Status        string  `json:"status"`
	ClaimMode     *string `json:"claim_mode,omitempty"`
	BuyerName     *string `json:"buyer_name,omitempty"`
	ListingID     uint64  `json:"listing_id"`
	Address       string  `json:"address"`
	City          string  `json:"city"`
	State         string  `json:"state"`
	Zip           string  `json:"zip"`
	PriceCents    uint64  `json:"price_cents"`
}

// ListClaimable returns unassigned, not-yet-past showings an agent may
// claim, optionally narrowed to a service area.  Claimable means the
// legacy BIDDING status or claim_mode = first_claim; pending
// seller-approval showings are excluded here because they are not
// claimable at all.  Results are ordered by date then time so handlers
// can group them per listing deterministically.
func (r *ShowingRepo) ListClaimable(ctx context.Context, area AreaFilter, today string) ([]ClaimableRow, error) {
	q := `SELECT s.id, s.requested_date, s.requested_time, s.status, s.claim_mode, s.buyer_name,
	             l.id, l.address, l.city, l.state, l.zip, l.price_cents
	      FROM showings s
	      JOIN listings l ON l.id = s.listing_id
	      WHERE s.assigned_agent_id IS NULL
	        AND s.status IN ('pending','bidding')
	        AND (s.status = 'bidding' OR s.claim_mode = 'first_claim')
	        AND s.requested_date >= ?
	        AND l.status = 'active'`
	args := []any{today}
	if area.normalize() {
		if area.Zip != "" {
			q += " AND l.zip = ?"
			args = append(args, area.Zip)
		}
		if area.City != "" {
			q += " AND l.city = ?"
			args = append(args, area.City)
		}
		if area.State != "" {
			q += " AND l.state = ?"
			args = append(args, area.State)
		}
	}
	q += " ORDER BY s.requested_date, s.requested_time"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]ClaimableRow, 0)
	for rows.Next() {
		var c ClaimableRow
		if err := rows.Scan(&c.ShowingID, &c.RequestedDate, &c.RequestedTime, &c.Status, &c.ClaimMode, &c.BuyerName,
			&c.ListingID, &c.Address, &c.City, &c.State, &c.Zip, &c.PriceCents); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// AgentShowingDetail is a showing assigned to (or completed by) an
// agent, joined with listing context for the agent dashboard.
type AgentShowingDetail struct {
	ShowingID        uint64  `json:"showing_id"`
	RequestedDate    string  `json:"requested_date"`
	RequestedTime    string  `json:"requested_time"`
	Status           string  `json:"status"`
	PayoutCents      *uint32 `json:"payout_cents,omitempty"`
	LockCodeRevealed bool    `json:"lock_code_revealed"`
	ListingID        uint64  `json:"listing_id"`
	Address          string  `json:"address"`
	City             string  `json:"city"`
	State            string  `json:"state"`
}

// ListForAgent returns showings the agent holds or has completed,
// soonest first.
func (r *ShowingRepo) ListForAgent(ctx context.Context, agentID uint64) ([]AgentShowingDetail, error) {
	const q = `SELECT s.id, s.requested_date, s.requested_time, s.status, s.payout_cents, s.lock_code_revealed,
	                  l.id, l.address, l.city, l.state
	           FROM showings s
	           JOIN listings l ON l.id = s.listing_id
	           WHERE s.assigned_agent_id = ? AND s.status IN ('assigned','completed')
	           ORDER BY s.requested_date, s.requested_time`
	rows, err := r.db.QueryContext(ctx, q, agentID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]AgentShowingDetail, 0)
	for rows.Next() {
		var d AgentShowingDetail
		if err := rows.Scan(&d.ShowingID, &d.RequestedDate, &d.RequestedTime, &d.Status, &d.PayoutCents, &d.LockCodeRevealed,
			&d.ListingID, &d.Address, &d.City, &d.State); err != nil {
			return nil, err
		}
		out = append(out, d)
	}
	return out, rows.Err()
}

// SellerShowingDetail is one showing on the seller dashboard together
// with the pending bids competing for it.  Cross-user rows (bids placed
// by many agents) are reached only through the ownership join on
// listings.seller_id; there is no privileged connection.
type SellerShowingDetail struct {
	ShowingID     uint64        `json:"showing_id"`
	ListingID     uint64        `json:"listing_id"`
	Address       string        `json:"address"`
	RequestedDate string        `json:"requested_date"`
	RequestedTime string        `json:"requested_time"`
	Status        string        `json:"status"`
	ClaimMode     *string       `json:"claim_mode,omitempty"`
	PayoutCents   *uint32       `json:"payout_cents,omitempty"`
	PendingBids   []SellerBid   `json:"pending_bids"`
}

// SellerBid is a pending bid as shown to the seller.
type SellerBid struct {
	BidID     uint64  `json:"bid_id"`
	AgentID   uint64  `json:"agent_id"`
	BidCents  uint32  `json:"bid_cents"`
	Message   *string `json:"message,omitempty"`
	CreatedAt string  `json:"created_at"`
}

// ListForSeller returns all showings across the seller's listings with
// their pending bids.  Bids are fetched with a second IN query and
// stitched in, keeping the per-showing ordering deterministic.
func (r *ShowingRepo) ListForSeller(ctx context.Context, sellerID uint64) ([]SellerShowingDetail, error) {
	const q = `SELECT s.id, s.listing_id, l.address, s.requested_date, s.requested_time, s.status, s.claim_mode, s.payout_cents
	           FROM showings s
	           JOIN listings l ON l.id = s.listing_id
	           WHERE l.seller_id = ?
	           ORDER BY s.requested_date, s.requested_time`
	rows, err := r.db.QueryContext(ctx, q, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	details := make([]SellerShowingDetail, 0)
	index := make(map[uint64]int)
	for rows.Next() {
		var d SellerShowingDetail
		if err := rows.Scan(&d.ShowingID, &d.ListingID, &d.Address, &d.RequestedDate, &d.RequestedTime,
			&d.Status, &d.ClaimMode, &d.PayoutCents); err != nil {
			return nil, err
		}
		d.PendingBids = []SellerBid{}
		index[d.ShowingID] = len(details)
		details = append(details, d)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(details) == 0 {
		return details, nil
	}
	ids := make([]any, 0, len(details))
	placeholders := make([]string, 0, len(details))
	for _, d := range details {
		ids = append(ids, d.ShowingID)
		placeholders = append(placeholders, "?")
	}
	bidQ := `SELECT id, showing_id, agent_id, bid_cents, message, created_at
	         FROM showing_bids
	         WHERE status = 'pending' AND showing_id IN (` + strings.Join(placeholders, ",") + `)
	         ORDER BY showing_id, created_at`
	brows, err := r.db.QueryContext(ctx, bidQ, ids...)
	if err != nil {
		return nil, err
	}
	defer brows.Close()
	for brows.Next() {
		var showingID uint64
		var b SellerBid
		var createdAt time.Time
		if err := brows.Scan(&b.BidID, &showingID, &b.AgentID, &b.BidCents, &b.Message, &createdAt); err != nil {
			return nil, err
		}
		b.CreatedAt = createdAt.UTC().Format(time.RFC3339)
		if idx, ok := index[showingID]; ok {
			details[idx].PendingBids = append(details[idx].PendingBids, b)
		}
	}
	return details, brows.Err()
}
