package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/cropscan/apiserver/types"
	"github.com/lib/pq"
)

const pqUniqueViolation = "23505"

// UserRepository handles persistence for users in postgres.
type UserRepository struct {
	db *sql.DB
}

func NewUserRepository(db *sql.DB) *UserRepository {
	return &UserRepository{db: db}
}

func (r *UserRepository) GetByEmail(ctx context.Context, email string) (types.User, error) {
	const query = `
		SELECT id, name, email, password, phone, location, role, profile
		FROM users
		WHERE email = $1`
	var (
		user    types.User
		profile []byte
	)
	err := r.db.QueryRowContext(ctx, query, email).Scan(
		&user.ID,
		&user.Name,
		&user.Email,
		&user.Password,
		&user.Phone,
		&user.Location,
		&user.Role,
		&profile,
	)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.User{}, ErrNotFound
		}
		return types.User{}, fmt.Errorf("get user by email: %w", err)
	}
	if len(profile) > 0 {
		if err := json.Unmarshal(profile, &user.Profile); err != nil {
			return types.User{}, fmt.Errorf("decode user profile: %w", err)
		}
		if len(user.Profile) == 0 {
			user.Profile = nil
		}
	}
	return user, nil
}

func (r *UserRepository) Create(ctx context.Context, user types.User) (types.User, error) {
	const query = `
		INSERT INTO users (name, email, password, phone, location, role, profile)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING id`
	profile := []byte("{}")
	if len(user.Profile) > 0 {
		encoded, err := json.Marshal(user.Profile)
		if err != nil {
			return types.User{}, fmt.Errorf("encode user profile: %w", err)
		}
		profile = encoded
	}
	if err := r.db.QueryRowContext(
		ctx,
		query,
		user.Name,
		user.Email,
		user.Password,
		user.Phone,
		user.Location,
		user.Role,
		profile,
	).Scan(&user.ID); err != nil {
		var pqErr *pq.Error
		if errors.As(err, &pqErr) && pqErr.Code == pqUniqueViolation {
			return types.User{}, ErrDuplicate
		}
		return types.User{}, fmt.Errorf("create user: %w", err)
	}
	return user, nil
}
