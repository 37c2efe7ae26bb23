package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/unfoldmono/realza/internal/model"
	"github.com/unfoldmono/realza/internal/utils"
)

// UserRepo provides persistence for the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

var ErrEmailExists = errors.New("email already exists")

// Create inserts a user with a bcrypt-hashed password and returns its ID.
func (r *UserRepo) Create(ctx context.Context, email, password string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, string(role))
	if err != nil {
		// MySQL duplicate-key errors carry code 1062.
		if strings.Contains(strings.ToLower(err.Error()), "1062") {
			return 0, ErrEmailExists
		}
		return 0, err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, err
	}
	return uint64(id), nil
}

const userCols = "id,email,password_hash,role,service_zip,service_city,service_state,is_active,created_at,updated_at"

func scanUser(row *sql.Row) (model.User, error) {
	var u model.User
	var role string
	err := row.Scan(&u.ID, &u.Email, &u.PasswordHash, &role,
		&u.ServiceZip, &u.ServiceCity, &u.ServiceState,
		&u.IsActive, &u.CreatedAt, &u.UpdatedAt)
	u.Role = model.Role(role)
	return u, err
}

// GetByEmail fetches a user by normalized email.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE email=? LIMIT 1", email))
}

// GetByID fetches a user by id.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (model.User, error) {
	return scanUser(r.DB.QueryRowContext(ctx,
		"SELECT "+userCols+" FROM users WHERE id=? LIMIT 1", id))
}

// UpdateServiceArea stores an agent's service area.  Nil fields clear
// the corresponding column so agents can widen their feed again.
func (r *UserRepo) UpdateServiceArea(ctx context.Context, id uint64, zip, city, state *string) error {
	_, err := r.DB.ExecContext(ctx,
		"UPDATE users SET service_zip=?, service_city=?, service_state=? WHERE id=?",
		zip, city, state, id)
	return err
}
