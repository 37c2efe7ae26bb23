package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/unfoldmono/realza/internal/model"
)

// ListingRepo manages persistence for listings.  The lock_code column
// is selected only by methods that explicitly need it; listing rows
// returned to browse surfaces never include it.
type ListingRepo struct {
	db *sql.DB
}

func NewListingRepo(db *sql.DB) *ListingRepo { return &ListingRepo{db: db} }

// DB exposes the underlying handle for callers that need to begin
// transactions spanning multiple repositories.
func (r *ListingRepo) DB() *sql.DB { return r.db }

// Create inserts a new listing owned by sellerID.  New listings start
// in draft status.  The generated ID is populated on the given record.
func (r *ListingRepo) Create(ctx context.Context, l *model.Listing) error {
	const q = `INSERT INTO listings (seller_id, address, city, state, zip, price_cents, status, lock_code)
	           VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	if l.Status == "" {
		l.Status = model.ListingDraft
	}
	res, err := r.db.ExecContext(ctx, q,
		l.SellerID, l.Address, l.City, l.State, l.Zip, l.PriceCents, string(l.Status), l.LockCode)
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	l.ID = uint64(id)
	return nil
}

const listingCols = "id, seller_id, address, city, state, zip, price_cents, status, lock_code, created_at, updated_at"

func scanListing(scan func(dest ...any) error) (*model.Listing, error) {
	var l model.Listing
	var status string
	err := scan(&l.ID, &l.SellerID, &l.Address, &l.City, &l.State, &l.Zip,
		&l.PriceCents, &status, &l.LockCode, &l.CreatedAt, &l.UpdatedAt)
	if err != nil {
		return nil, err
	}
	l.Status = model.ListingStatus(status)
	return &l, nil
}

// GetByID returns a listing including its lock code.  Callers are
// responsible for stripping the lock code before exposing the record.
func (r *ListingRepo) GetByID(ctx context.Context, id uint64) (*model.Listing, error) {
	row := r.db.QueryRowContext(ctx, "SELECT "+listingCols+" FROM listings WHERE id = ?", id)
	l, err := scanListing(row.Scan)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrListingNotFound
	}
	return l, err
}

// UpdateStatus moves a listing to a new status after verifying that the
// caller owns it.  It returns ErrListingNotFound when the listing does
// not exist and ErrForbidden when it belongs to another seller.
func (r *ListingRepo) UpdateStatus(ctx context.Context, id, sellerID uint64, status model.ListingStatus) error {
	var ownerID uint64
	err := r.db.QueryRowContext(ctx, "SELECT seller_id FROM listings WHERE id = ?", id).Scan(&ownerID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrListingNotFound
	}
	if err != nil {
		return err
	}
	if ownerID != sellerID {
		return ErrForbidden
	}
	_, err = r.db.ExecContext(ctx, "UPDATE listings SET status = ? WHERE id = ?", string(status), id)
	return err
}

// AreaFilter narrows listing queries to an agent's service area.  Empty
// fields are ignored.
type AreaFilter struct {
	Zip   string
	City  string
	State string
}

// ListActive returns active listings, optionally filtered by area.
// Lock codes are never selected here.
func (r *ListingRepo) ListActive(ctx context.Context, area AreaFilter) ([]model.Listing, error) {
	q := `SELECT id, seller_id, address, city, state, zip, price_cents, status, created_at, updated_at
	      FROM listings WHERE status = 'active'`
	args := make([]any, 0, 3)
	if area.Zip != "" {
		q += " AND zip = ?"
		args = append(args, area.Zip)
	}
	if area.City != "" {
		q += " AND city = ?"
		args = append(args, area.City)
	}
	if area.State != "" {
		q += " AND state = ?"
		args = append(args, area.State)
	}
	q += " ORDER BY created_at DESC"
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Listing, 0)
	for rows.Next() {
		var l model.Listing
		var status string
		if err := rows.Scan(&l.ID, &l.SellerID, &l.Address, &l.City, &l.State, &l.Zip,
			&l.PriceCents, &status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Status = model.ListingStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

// ListBySeller returns every listing owned by a seller, newest first.
func (r *ListingRepo) ListBySeller(ctx context.Context, sellerID uint64) ([]model.Listing, error) {
	const q = `SELECT id, seller_id, address, city, state, zip, price_cents, status, created_at, updated_at
	           FROM listings WHERE seller_id = ? ORDER BY created_at DESC`
	rows, err := r.db.QueryContext(ctx, q, sellerID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	out := make([]model.Listing, 0)
	for rows.Next() {
		var l model.Listing
		var status string
		if err := rows.Scan(&l.ID, &l.SellerID, &l.Address, &l.City, &l.State, &l.Zip,
			&l.PriceCents, &status, &l.CreatedAt, &l.UpdatedAt); err != nil {
			return nil, err
		}
		l.Status = model.ListingStatus(status)
		out = append(out, l)
	}
	return out, rows.Err()
}

// normalizeArea trims filter fields in place and reports whether any
// filter is set.
func (f *AreaFilter) normalize() bool {
	f.Zip = strings.TrimSpace(f.Zip)
	f.City = strings.TrimSpace(f.City)
	f.State = strings.TrimSpace(f.State)
	return f.Zip != "" || f.City != "" || f.State != ""
}
