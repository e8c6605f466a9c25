package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"

	"usermgmt/internal/models"
)

// PostgresStore persists records in the password_reset_tokens table. The
// used = FALSE guard on Finalize plus the rows-affected check is the
// concurrency guard: two concurrent redemptions of one token cannot both win.
type PostgresStore struct {
	db  *sql.DB
	ttl time.Duration
}

func NewPostgresStore(db *sql.DB, ttl time.Duration) *PostgresStore {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &PostgresStore{db: db, ttl: ttl}
}

func (s *PostgresStore) Issue(ctx context.Context, user models.TargetUser) (*models.ResetTokenRecord, error) {
	now := time.Now().UTC()
	rec := &models.ResetTokenRecord{
		Token:          uuid.NewString(),
		Email:          user.Email,
		GeneratedAt:    now,
		ExpiresAt:      now.Add(s.ttl),
		Used:           false,
		ExternalUserID: user.ExternalUserID,
	}

	query := `
		INSERT INTO password_reset_tokens (token, email, generated_at, expires_at, used, external_user_id)
		VALUES ($1, $2, $3, $4, FALSE, $5)
		RETURNING generated_at
	`
	err := s.db.QueryRowContext(ctx, query, rec.Token, rec.Email, rec.GeneratedAt, rec.ExpiresAt, rec.ExternalUserID).Scan(&rec.GeneratedAt)
	if err != nil {
		return nil, fmt.Errorf("%w: insert reset token: %v", ErrPersistence, err)
	}
	return rec, nil
}

func (s *PostgresStore) Validate(ctx context.Context, token string) (Validation, error) {
	query := `
		SELECT token, email, generated_at, expires_at, used, used_at, external_user_id
		FROM password_reset_tokens
		WHERE token = $1 AND used = FALSE
	`

	var rec models.ResetTokenRecord
	var usedAt sql.NullTime
	err := s.db.QueryRowContext(ctx, query, token).
		Scan(&rec.Token, &rec.Email, &rec.GeneratedAt, &rec.ExpiresAt, &rec.Used, &usedAt, &rec.ExternalUserID)
	if err == sql.ErrNoRows {
		return Validation{State: StateNotFound}, nil
	}
	if err != nil {
		return Validation{}, fmt.Errorf("%w: lookup reset token: %v", ErrPersistence, err)
	}
	if usedAt.Valid {
		rec.UsedAt = &usedAt.Time
	}

	if rec.Expired(time.Now().UTC()) {
		return Validation{State: StateExpired, Record: &rec}, nil
	}
	return Validation{State: StateValid, Record: &rec}, nil
}

func (s *PostgresStore) Finalize(ctx context.Context, token string) (bool, error) {
	query := `UPDATE password_reset_tokens SET used = TRUE, used_at = $1 WHERE token = $2 AND used = FALSE`
	res, err := s.db.ExecContext(ctx, query, time.Now().UTC(), token)
	if err != nil {
		return false, fmt.Errorf("%w: finalize reset token: %v", ErrPersistence, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("%w: finalize reset token: %v", ErrPersistence, err)
	}
	return n == 1, nil
}
