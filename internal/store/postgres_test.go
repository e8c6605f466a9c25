package store

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
)

func newPostgresTestStore(t *testing.T) (*PostgresStore, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("sqlmock: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPostgresStore(db, 0), mock
}

func TestPostgresIssueInsertsRecord(t *testing.T) {
	s, mock := newPostgresTestStore(t)

	now := time.Now().UTC()
	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO password_reset_tokens")).
		WithArgs(sqlmock.AnyArg(), "a@b.com", sqlmock.AnyArg(), sqlmock.AnyArg(), "auth0|123").
		WillReturnRows(sqlmock.NewRows([]string{"generated_at"}).AddRow(now))

	rec, err := s.Issue(context.Background(), testUser())
	if err != nil {
		t.Fatalf("Issue: %v", err)
	}
	if rec.Token == "" || rec.Used {
		t.Fatalf("unexpected record %+v", rec)
	}
	if got := rec.ExpiresAt.Sub(now); got != DefaultTTL {
		t.Fatalf("expected 24h expiry, got %v", got)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Fatalf("expectations: %v", err)
	}
}

func TestPostgresIssueWrapsInsertError(t *testing.T) {
	s, mock := newPostgresTestStore(t)

	mock.ExpectQuery(regexp.QuoteMeta("INSERT INTO password_reset_tokens")).
		WillReturnError(errors.New("connection refused"))

	if _, err := s.Issue(context.Background(), testUser()); !errors.Is(err, ErrPersistence) {
		t.Fatalf("expected ErrPersistence, got %v", err)
	}
}

func TestPostgresValidateStates(t *testing.T) {
	columns := []string{"token", "email", "generated_at", "expires_at", "used", "used_at", "external_user_id"}
	now := time.Now().UTC()

	t.Run("not found", func(t *testing.T) {
		s, mock := newPostgresTestStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM password_reset_tokens")).
			WithArgs("tok").
			WillReturnRows(sqlmock.NewRows(columns))

		v, err := s.Validate(context.Background(), "tok")
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if v.State != StateNotFound {
			t.Fatalf("expected NotFound, got %v", v.State)
		}
	})

	t.Run("valid", func(t *testing.T) {
		s, mock := newPostgresTestStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM password_reset_tokens")).
			WithArgs("tok").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("tok", "a@b.com", now, now.Add(time.Hour), false, nil, "auth0|123"))

		v, err := s.Validate(context.Background(), "tok")
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if v.State != StateValid {
			t.Fatalf("expected Valid, got %v", v.State)
		}
		if v.Record.Email != "a@b.com" {
			t.Fatalf("unexpected record %+v", v.Record)
		}
	})

	t.Run("expired", func(t *testing.T) {
		s, mock := newPostgresTestStore(t)
		mock.ExpectQuery(regexp.QuoteMeta("FROM password_reset_tokens")).
			WithArgs("tok").
			WillReturnRows(sqlmock.NewRows(columns).
				AddRow("tok", "a@b.com", now.Add(-25*time.Hour), now.Add(-time.Hour), false, nil, "auth0|123"))

		v, err := s.Validate(context.Background(), "tok")
		if err != nil {
			t.Fatalf("Validate: %v", err)
		}
		if v.State != StateExpired {
			t.Fatalf("expected Expired, got %v", v.State)
		}
	})
}

func TestPostgresFinalize(t *testing.T) {
	t.Run("wins", func(t *testing.T) {
		s, mock := newPostgresTestStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE password_reset_tokens SET used = TRUE")).
			WithArgs(sqlmock.AnyArg(), "tok").
			WillReturnResult(sqlmock.NewResult(0, 1))

		ok, err := s.Finalize(context.Background(), "tok")
		if err != nil || !ok {
			t.Fatalf("Finalize: ok=%v err=%v", ok, err)
		}
	})

	t.Run("already consumed", func(t *testing.T) {
		s, mock := newPostgresTestStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE password_reset_tokens SET used = TRUE")).
			WithArgs(sqlmock.AnyArg(), "tok").
			WillReturnResult(sqlmock.NewResult(0, 0))

		ok, err := s.Finalize(context.Background(), "tok")
		if err != nil {
			t.Fatalf("Finalize: %v", err)
		}
		if ok {
			t.Fatalf("consumed token must not finalize again")
		}
	})

	t.Run("store error", func(t *testing.T) {
		s, mock := newPostgresTestStore(t)
		mock.ExpectExec(regexp.QuoteMeta("UPDATE password_reset_tokens SET used = TRUE")).
			WillReturnError(errors.New("connection reset"))

		if _, err := s.Finalize(context.Background(), "tok"); !errors.Is(err, ErrPersistence) {
			t.Fatalf("expected ErrPersistence, got %v", err)
		}
	})
}
