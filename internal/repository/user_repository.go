package repository

import (
	"context"
	"database/sql"
	"strings"

	"github.com/smstore/backend/internal/model"
	"github.com/smstore/backend/internal/utils"
)

// UserRepo persists application users in the 'users' table.
type UserRepo struct{ DB *sql.DB }

func NewUserRepo(db *sql.DB) *UserRepo { return &UserRepo{DB: db} }

// Create hashes the password and inserts the user, returning its ID.
// The email uniqueness check is advisory; the unique index on the column
// is the real guard, surfaced here as ErrEmailExists.
func (r *UserRepo) Create(ctx context.Context, email, password string, role model.Role, cost int) (uint64, error) {
	email = strings.ToLower(strings.TrimSpace(email))

	var exists int
	err := r.DB.QueryRowContext(ctx,
		"SELECT COUNT(1) FROM users WHERE email=?", email).Scan(&exists)
	if err != nil {
		return 0, err
	}
	if exists > 0 {
		return 0, ErrEmailExists
	}

	hash, err := utils.HashPassword(password, cost)
	if err != nil {
		return 0, err
	}
	res, err := r.DB.ExecContext(ctx,
		"INSERT INTO users (email, password_hash, role) VALUES (?,?,?)",
		email, hash, string(role))
	if err != nil {
		if strings.Contains(err.Error(), "Duplicate entry") {
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

// GetByEmail loads a user for login. Returns ErrNotFound when absent.
func (r *UserRepo) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	var (
		u    model.User
		role string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, email, password_hash, role, created_at, updated_at FROM users WHERE email=? LIMIT 1",
		email).Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = model.ParseRole(role)
	return &u, nil
}

// GetByID loads a user by primary key. Returns ErrNotFound when absent.
func (r *UserRepo) GetByID(ctx context.Context, id uint64) (*model.User, error) {
	var (
		u    model.User
		role string
	)
	err := r.DB.QueryRowContext(ctx,
		"SELECT id, email, password_hash, role, created_at, updated_at FROM users WHERE id=? LIMIT 1",
		id).Scan(&u.ID, &u.Email, &u.PasswordHash, &role, &u.CreatedAt, &u.UpdatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	u.Role = model.ParseRole(role)
	return &u, nil
}

// RoleOf resolves the current role of a user. It satisfies the token
// authority's SubjectDirectory so rotation re-reads the role instead of
// trusting the one baked into the redeemed chain.
func (r *UserRepo) RoleOf(ctx context.Context, id uint64) (model.Role, error) {
	var role string
	err := r.DB.QueryRowContext(ctx,
		"SELECT role FROM users WHERE id=? LIMIT 1", id).Scan(&role)
	if err == sql.ErrNoRows {
		return model.RoleGuest, ErrNotFound
	}
	if err != nil {
		return model.RoleGuest, err
	}
	return model.ParseRole(role), nil
}
