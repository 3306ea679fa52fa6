package identity

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"github.com/onpaws/refresh-token-postgraphile/cmd/identity/ids"
	"github.com/onpaws/refresh-token-postgraphile/cmd/security/password"
)

// Querier is the slice of *pgxpool.Pool the store needs.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore implements Store over two pools. Neither pool is owned by
// the store; the caller closes them.
//
// Tables:
//
//	<public>.person          (id, role, created_at)
//	<private>.person_account (person_id, email, email_norm, password_hash)
type PostgresStore struct {
	elevated Querier
	reader   Querier

	publicSchema  string
	privateSchema string
	passwords     password.Config
}

// PostgresOption configures the store.
type PostgresOption func(*PostgresStore) error

var pgIdentRe = regexp.MustCompile(`^[a-zA-Z_][a-zA-Z0-9_]*$`)

// WithSchemas sets the public and private schema names (default "public", "private").
func WithSchemas(public, private string) PostgresOption {
	return func(s *PostgresStore) error {
		public, private = strings.TrimSpace(public), strings.TrimSpace(private)
		if !pgIdentRe.MatchString(public) || !pgIdentRe.MatchString(private) {
			return fmt.Errorf("identity: invalid schema identifier")
		}
		s.publicSchema, s.privateSchema = public, private
		return nil
	}
}

// WithPasswordConfig sets the hashing parameters used by CreateSubject and
// the timing-equalization path of VerifyCredentials.
func WithPasswordConfig(cfg password.Config) PostgresOption {
	return func(s *PostgresStore) error {
		s.passwords = cfg
		return nil
	}
}

// NewPostgresStore builds a store. A nil reader falls back to elevated.
func NewPostgresStore(elevated, reader Querier, opts ...PostgresOption) (*PostgresStore, error) {
	if elevated == nil {
		return nil, fmt.Errorf("identity: nil elevated pool")
	}
	if reader == nil {
		reader = elevated
	}

	st := &PostgresStore{
		elevated:      elevated,
		reader:        reader,
		publicSchema:  "public",
		privateSchema: "private",
		passwords:     password.DefaultConfig(),
	}
	for _, opt := range opts {
		if opt == nil {
			continue
		}
		if err := opt(st); err != nil {
			return nil, err
		}
	}
	return st, nil
}

func (s *PostgresStore) VerifyCredentials(ctx context.Context, email, pw string) (Subject, error) {
	const op = "identity.VerifyCredentials"

	norm := NormalizeEmail(email)
	if norm == "" || pw == "" {
		return Subject{}, rejected(op)
	}

	var (
		out  Subject
		hash string
	)
	err := s.elevated.QueryRow(ctx,
		`SELECT a.person_id, p.role, a.password_hash
		   FROM `+pgIdent(s.privateSchema, "person_account")+` a
		   JOIN `+pgIdent(s.publicSchema, "person")+` p ON p.id = a.person_id
		  WHERE a.email_norm = $1`,
		norm,
	).Scan(&out.ID, &out.Role, &hash)
	if errors.Is(err, pgx.ErrNoRows) {
		s.passwords.SpendVerify(pw)
		return Subject{}, rejected(op)
	}
	if err != nil {
		return Subject{}, fmt.Errorf("%s: %w", op, err)
	}

	ok, err := s.passwords.Verify(hash, pw)
	if err != nil || !ok {
		return Subject{}, rejected(op)
	}
	return out, nil
}

func (s *PostgresStore) SubjectExists(ctx context.Context, id string) (bool, error) {
	const op = "identity.SubjectExists"

	id = strings.TrimSpace(id)
	if id == "" {
		return false, nil
	}

	var exists bool
	err := s.reader.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM `+pgIdent(s.publicSchema, "person")+` WHERE id = $1)`,
		id,
	).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("%s: %w", op, err)
	}
	return exists, nil
}

// CreateSubject inserts the person and its account in one statement.
func (s *PostgresStore) CreateSubject(ctx context.Context, in CreateSubjectInput) (Subject, error) {
	const op = "identity.CreateSubject"

	email := strings.TrimSpace(in.Email)
	norm := NormalizeEmail(email)
	if !validEmail(norm) {
		return Subject{}, invalid(op, "email is required")
	}

	hash, err := s.passwords.Hash(in.Password)
	if err != nil {
		return Subject{}, invalid(op, err.Error())
	}

	now := in.Now
	if now.IsZero() {
		now = time.Now().UTC()
	}
	id, err := ids.NewULID(now)
	if err != nil {
		return Subject{}, err
	}

	_, err = s.elevated.Exec(ctx,
		`WITH p AS (
		     INSERT INTO `+pgIdent(s.publicSchema, "person")+` (id, role, created_at)
		     VALUES ($1, $2, $3)
		     RETURNING id
		 )
		 INSERT INTO `+pgIdent(s.privateSchema, "person_account")+` (person_id, email, email_norm, password_hash)
		 SELECT id, $4, $5, $6 FROM p`,
		id, in.Role, now, email, norm, hash,
	)
	if err != nil {
		if field, ok := pgClassifyUniqueViolation(err); ok {
			return Subject{}, ConflictError{Op: op, Field: field}
		}
		return Subject{}, fmt.Errorf("%s: %w", op, err)
	}
	return Subject{ID: id, Role: in.Role}, nil
}

// pgIdent safely quotes a schema-qualified identifier: "schema"."name".
func pgIdent(schema, name string) string {
	return pgx.Identifier{schema, name}.Sanitize()
}

func pgClassifyUniqueViolation(err error) (field string, ok bool) {
	var pgErr *pgconn.PgError
	if !errors.As(err, &pgErr) || pgErr.Code != "23505" { // unique_violation
		return "", false
	}

	c := strings.ToLower(strings.TrimSpace(pgErr.ConstraintName))
	switch {
	case strings.Contains(c, "email"):
		return "email", true
	case strings.Contains(c, "pkey"):
		return "id", true
	default:
		return "unique", true
	}
}
