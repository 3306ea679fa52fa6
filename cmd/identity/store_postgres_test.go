package identity

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/onpaws/refresh-token-postgraphile/cmd/security/password"
)

type scriptedRow struct {
	vals []any
	err  error
}

func (r scriptedRow) Scan(dest ...any) error {
	if r.err != nil {
		return r.err
	}
	if len(dest) != len(r.vals) {
		return fmt.Errorf("scan: want %d dest, got %d", len(r.vals), len(dest))
	}
	for i, d := range dest {
		switch p := d.(type) {
		case *string:
			*p = r.vals[i].(string)
		case *bool:
			*p = r.vals[i].(bool)
		default:
			return fmt.Errorf("scan: unsupported dest %T", d)
		}
	}
	return nil
}

type fakeQuerier struct {
	row     scriptedRow
	execErr error

	queries []string
	args    [][]any
}

func (q *fakeQuerier) QueryRow(_ context.Context, sql string, args ...any) pgx.Row {
	q.queries = append(q.queries, sql)
	q.args = append(q.args, args)
	return q.row
}

func (q *fakeQuerier) Exec(_ context.Context, sql string, args ...any) (pgconn.CommandTag, error) {
	q.queries = append(q.queries, sql)
	q.args = append(q.args, args)
	if q.execErr != nil {
		return pgconn.CommandTag{}, q.execErr
	}
	return pgconn.NewCommandTag("INSERT 0 1"), nil
}

func testPasswords() password.Config {
	cfg := password.DefaultConfig()
	cfg.Params.MemoryKiB = 8 * 1024
	cfg.Params.Iterations = 1
	cfg.Params.Parallelism = 1
	return cfg
}

func TestPostgresStore_VerifyCredentials(t *testing.T) {
	t.Parallel()

	pw := testPasswords()
	hash, err := pw.Hash("hunter2-but-longer")
	if err != nil {
		t.Fatalf("hash: %v", err)
	}

	elevated := &fakeQuerier{row: scriptedRow{vals: []any{"01J0SUBJECT", "authenticated", hash}}}
	reader := &fakeQuerier{}
	s, err := NewPostgresStore(elevated, reader, WithPasswordConfig(pw))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	got, err := s.VerifyCredentials(context.Background(), "  Alice@Example.COM ", "hunter2-but-longer")
	if err != nil {
		t.Fatalf("VerifyCredentials: %v", err)
	}
	if got.ID != "01J0SUBJECT" || got.Role != "authenticated" {
		t.Fatalf("unexpected subject: %+v", got)
	}
	if len(reader.queries) != 0 {
		t.Fatalf("credential check must not use the reader pool")
	}
	if !strings.Contains(elevated.queries[0], `"private"."person_account"`) {
		t.Fatalf("query should read the private schema: %s", elevated.queries[0])
	}
	if elevated.args[0][0] != "alice@example.com" {
		t.Fatalf("email not normalized: %v", elevated.args[0][0])
	}

	if _, err := s.VerifyCredentials(context.Background(), "alice@example.com", "wrong"); !IsInvalidCredentials(err) {
		t.Fatalf("wrong password: want ErrInvalidCredentials, got %v", err)
	}
}

func TestPostgresStore_VerifyCredentials_UnknownAndFailure(t *testing.T) {
	t.Parallel()

	unknown := &fakeQuerier{row: scriptedRow{err: pgx.ErrNoRows}}
	s, err := NewPostgresStore(unknown, nil, WithPasswordConfig(testPasswords()))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	if _, err := s.VerifyCredentials(context.Background(), "nobody@example.com", "x"); !IsInvalidCredentials(err) {
		t.Fatalf("unknown email: want ErrInvalidCredentials, got %v", err)
	}

	down := errors.New("connection reset")
	broken := &fakeQuerier{row: scriptedRow{err: down}}
	s, err = NewPostgresStore(broken, nil, WithPasswordConfig(testPasswords()))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}
	_, err = s.VerifyCredentials(context.Background(), "a@example.com", "x")
	if !errors.Is(err, down) || IsInvalidCredentials(err) {
		t.Fatalf("store failure must surface, got %v", err)
	}
}

func TestPostgresStore_SubjectExists(t *testing.T) {
	t.Parallel()

	elevated := &fakeQuerier{}
	reader := &fakeQuerier{row: scriptedRow{vals: []any{true}}}
	s, err := NewPostgresStore(elevated, reader, WithSchemas("app_public", "app_private"))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	ok, err := s.SubjectExists(context.Background(), "01J0SUBJECT")
	if err != nil || !ok {
		t.Fatalf("SubjectExists: ok=%v err=%v", ok, err)
	}
	if len(elevated.queries) != 0 {
		t.Fatalf("existence check must use the reader pool")
	}
	if !strings.Contains(reader.queries[0], `"app_public"."person"`) {
		t.Fatalf("unexpected query: %s", reader.queries[0])
	}

	reader.row = scriptedRow{vals: []any{false}}
	if ok, err := s.SubjectExists(context.Background(), "gone"); err != nil || ok {
		t.Fatalf("absent subject: ok=%v err=%v", ok, err)
	}

	reader.row = scriptedRow{err: errors.New("timeout")}
	if _, err := s.SubjectExists(context.Background(), "x"); err == nil {
		t.Fatalf("expected lookup failure")
	}
}

func TestPostgresStore_CreateSubject(t *testing.T) {
	t.Parallel()

	elevated := &fakeQuerier{}
	s, err := NewPostgresStore(elevated, nil, WithPasswordConfig(testPasswords()))
	if err != nil {
		t.Fatalf("new store: %v", err)
	}

	sub, err := s.CreateSubject(context.Background(), CreateSubjectInput{
		Email:    "Dev@Example.com",
		Password: "dev-password-123",
		Role:     "authenticated",
	})
	if err != nil {
		t.Fatalf("CreateSubject: %v", err)
	}
	if len(sub.ID) != 26 {
		t.Fatalf("expected ULID id, got %q", sub.ID)
	}
	args := elevated.args[0]
	if args[4] != "dev@example.com" {
		t.Fatalf("email_norm arg: %v", args[4])
	}
	if h, _ := args[5].(string); !strings.HasPrefix(h, "$argon2id$") {
		t.Fatalf("password must be stored hashed")
	}

	elevated.execErr = &pgconn.PgError{Code: "23505", ConstraintName: "person_account_email_norm_key"}
	_, err = s.CreateSubject(context.Background(), CreateSubjectInput{Email: "dev@example.com", Password: "dev-password-123"})
	var ce ConflictError
	if !errors.As(err, &ce) || ce.Field != "email" {
		t.Fatalf("want email ConflictError, got %v", err)
	}

	if _, err := s.CreateSubject(context.Background(), CreateSubjectInput{Email: "nope", Password: "dev-password-123"}); !IsInvalidInput(err) {
		t.Fatalf("bad email: want ErrInvalidInput, got %v", err)
	}
}

func TestNewPostgresStore_Options(t *testing.T) {
	t.Parallel()

	if _, err := NewPostgresStore(nil, nil); err == nil {
		t.Fatalf("expected error for nil pool")
	}
	if _, err := NewPostgresStore(&fakeQuerier{}, nil, WithSchemas("ok", "bad;drop")); err == nil {
		t.Fatalf("expected error for invalid schema")
	}
}
