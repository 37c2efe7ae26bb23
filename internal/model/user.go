package model

import "time"

// Role identifies what a user is allowed to do on the marketplace.
// Sellers own listings and decide on bids; agents request, bid on and
// claim showings.  The value is carried in the JWT "role" claim and
// checked by middleware and by the allocation engine.
type Role string

const (
    RoleSeller Role = "SELLER" // users.role = SELLER
    RoleAgent  Role = "AGENT"  // users.role = AGENT
)

// Valid reports whether r is one of the known roles.
func (r Role) Valid() bool { return r == RoleSeller || r == RoleAgent }

// User represents a row in the `users` table.  The password is never
// stored in plain text; only the bcrypt hash is persisted.  Agents may
// optionally configure a service area (zip/city/state) that scopes the
// claimable-showings feed to listings near them.
//
// Fields:
//  ID           – primary key identifier.
//  Email        – unique, lower-cased email address.
//  PasswordHash – bcrypt hashed password.
//  Role         – SELLER or AGENT.
//  ServiceZip   – agent service area zip (nullable).
//  ServiceCity  – agent service area city (nullable).
//  ServiceState – agent service area state (nullable).
//  IsActive     – whether the account is active.
//  CreatedAt    – timestamp of creation.
//  UpdatedAt    – timestamp of last update.
type User struct {
    ID           uint64    // users.id
    Email        string    // users.email
    PasswordHash string    // users.password_hash
    Role         Role      // users.role
    ServiceZip   *string   // users.service_zip (nullable)
    ServiceCity  *string   // users.service_city (nullable)
    ServiceState *string   // users.service_state (nullable)
    IsActive     bool      // users.is_active
    CreatedAt    time.Time // users.created_at
    UpdatedAt    time.Time // users.updated_at
}

// RefreshToken models an entry in the `refresh_tokens` table.  Each
// refresh token belongs to a user; only the SHA-256 hash of the raw
// token value is stored.
type RefreshToken struct {
    ID        uint64     // refresh_tokens.id
    UserID    uint64     // refresh_tokens.user_id
    TokenHash string     // refresh_tokens.token_hash
    ExpiresAt time.Time  // refresh_tokens.expires_at
    RevokedAt *time.Time // refresh_tokens.revoked_at (nullable)
    CreatedAt time.Time  // refresh_tokens.created_at
}
