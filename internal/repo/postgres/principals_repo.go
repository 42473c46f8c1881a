package postgres

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/geocoder89/dinehub/internal/domain/principal"
	"github.com/geocoder89/dinehub/internal/observability"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/samber/oops"
)

// DBTX is the subset of *pgxpool.Pool the repositories use.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Begin(ctx context.Context) (pgx.Tx, error)
}

const baseColumns = `id, email, password_hash, password_changed_at, reset_token_hash, reset_token_expires_at, created_at, updated_at`

type variant struct {
	table   string
	columns string
}

var variants = map[principal.Kind]variant{
	principal.KindUser: {
		table:   "users",
		columns: baseColumns + `, name, surname, gender, date_of_birth, state, city, postal_code, street_name, street_number, apartment_number`,
	},
	principal.KindMerchant: {
		table:   "merchants",
		columns: baseColumns + `, restaurant_name, cuisine, rating, state, city, postal_code, street_name, street_number, apartment_number`,
	},
}

type PrincipalsRepo struct {
	db   DBTX
	prom *observability.Prom
}

func NewPrincipalsRepo(db DBTX, prom *observability.Prom) *PrincipalsRepo {
	return &PrincipalsRepo{db: db, prom: prom}
}

func (r *PrincipalsRepo) observe(op string, fn func() error) error {
	if r.prom != nil {
		return r.prom.ObserveDB(op, fn)
	}
	return fn()
}

func IsUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

func lookup(kind principal.Kind) (variant, error) {
	v, ok := variants[kind]
	if !ok {
		return variant{}, oops.In("postgres").With("kind", kind).Errorf("unknown principal kind %q", kind)
	}
	return v, nil
}

func (r *PrincipalsRepo) FindByEmail(ctx context.Context, kind principal.Kind, email string) (*principal.Principal, error) {
	return r.findOne(ctx, kind, "find_by_email", "email = $1", email)
}

func (r *PrincipalsRepo) FindByID(ctx context.Context, kind principal.Kind, id string) (*principal.Principal, error) {
	return r.findOne(ctx, kind, "find_by_id", "id = $1", id)
}

func (r *PrincipalsRepo) findOne(ctx context.Context, kind principal.Kind, op, where string, args ...any) (*principal.Principal, error) {
	v, err := lookup(kind)
	if err != nil {
		return nil, err
	}

	return r.scanOne(ctx, kind, v.table+"."+op, fmt.Sprintf(`SELECT %s FROM %s WHERE %s`, v.columns, v.table, where), args...)
}

// scanOne runs a single-row query whose columns are the variant's.
func (r *PrincipalsRepo) scanOne(ctx context.Context, kind principal.Kind, op, query string, args ...any) (*principal.Principal, error) {
	var p *principal.Principal
	err := r.observe(op, func() error {
		var scanErr error
		p, scanErr = scanPrincipal(kind, r.db.QueryRow(ctx, query, args...))
		return scanErr
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, principal.ErrNotFound
		}
		return nil, oops.In("postgres").With("op", op).Wrap(err)
	}

	return p, nil
}

// Insert writes the shared email claim and the variant row in one
// transaction. The primary key on principal_emails rejects an email held by
// either kind.
func (r *PrincipalsRepo) Insert(ctx context.Context, p *principal.Principal) (err error) {
	v, err := lookup(p.Kind)
	if err != nil {
		return err
	}

	tx, err := r.db.Begin(ctx)
	if err != nil {
		return oops.In("postgres").With("op", "insert.begin").Wrap(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback(ctx)
		}
	}()

	err = r.observe("principal_emails.claim", func() error {
		_, execErr := tx.Exec(ctx,
			`INSERT INTO principal_emails (email, kind, principal_id) VALUES ($1, $2, $3)`,
			p.Email, string(p.Kind), p.ID,
		)
		return execErr
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return principal.ErrEmailTaken
		}
		return oops.In("postgres").With("op", "principal_emails.claim").Wrap(err)
	}

	args := append(baseArgs(p), profileArgs(p)...)
	placeholders := ""
	for i := range args {
		if i > 0 {
			placeholders += ", "
		}
		placeholders += fmt.Sprintf("$%d", i+1)
	}

	query := fmt.Sprintf(`INSERT INTO %s (%s) VALUES (%s)`, v.table, v.columns, placeholders)

	err = r.observe(v.table+".insert", func() error {
		_, execErr := tx.Exec(ctx, query, args...)
		return execErr
	})
	if err != nil {
		if IsUniqueViolation(err) {
			return principal.ErrEmailTaken
		}
		return oops.In("postgres").With("table", v.table, "op", "insert").Wrap(err)
	}

	if err = tx.Commit(ctx); err != nil {
		return oops.In("postgres").With("op", "insert.commit").Wrap(err)
	}

	return nil
}

// Update rewrites the password and profile columns. Email is fixed at
// signup, and reset columns belong to SetResetToken and ClaimResetToken.
func (r *PrincipalsRepo) Update(ctx context.Context, p *principal.Principal) error {
	v, err := lookup(p.Kind)
	if err != nil {
		return err
	}

	var query string
	switch p.Kind {
	case principal.KindUser:
		query = `UPDATE users SET
			password_hash = $2, password_changed_at = $3, updated_at = $4,
			name = $5, surname = $6, gender = $7, date_of_birth = $8,
			state = $9, city = $10, postal_code = $11, street_name = $12, street_number = $13, apartment_number = $14
			WHERE id = $1`
	default:
		query = `UPDATE merchants SET
			password_hash = $2, password_changed_at = $3, updated_at = $4,
			restaurant_name = $5, cuisine = $6, rating = $7,
			state = $8, city = $9, postal_code = $10, street_name = $11, street_number = $12, apartment_number = $13
			WHERE id = $1`
	}

	args := append([]any{p.ID, p.PasswordHash, p.PasswordChangedAt, p.UpdatedAt}, profileArgs(p)...)

	var tag pgconn.CommandTag
	err = r.observe(v.table+".update", func() error {
		var execErr error
		tag, execErr = r.db.Exec(ctx, query, args...)
		return execErr
	})
	if err != nil {
		return oops.In("postgres").With("table", v.table, "op", "update").Wrap(err)
	}

	if tag.RowsAffected() == 0 {
		return principal.ErrNotFound
	}

	return nil
}

func (r *PrincipalsRepo) SetResetToken(ctx context.Context, kind principal.Kind, id, digest string, expiresAt, now time.Time) error {
	v, err := lookup(kind)
	if err != nil {
		return err
	}

	query := fmt.Sprintf(`UPDATE %s SET reset_token_hash = $2, reset_token_expires_at = $3, updated_at = $4 WHERE id = $1`, v.table)

	var tag pgconn.CommandTag
	err = r.observe(v.table+".set_reset_token", func() error {
		var execErr error
		tag, execErr = r.db.Exec(ctx, query, id, digest, expiresAt, now)
		return execErr
	})
	if err != nil {
		return oops.In("postgres").With("table", v.table, "op", "set_reset_token").Wrap(err)
	}

	if tag.RowsAffected() == 0 {
		return principal.ErrNotFound
	}

	return nil
}

// ClaimResetToken clears a digest that is live at now and returns the row as
// it is after the clear. The row lock taken by UPDATE makes a concurrent
// claim re-check the predicate and match nothing.
func (r *PrincipalsRepo) ClaimResetToken(ctx context.Context, kind principal.Kind, digest string, now time.Time) (*principal.Principal, error) {
	v, err := lookup(kind)
	if err != nil {
		return nil, err
	}

	query := fmt.Sprintf(`UPDATE %s SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = $3 `+
		`WHERE reset_token_hash = $1 AND reset_token_expires_at > $2 RETURNING %s`, v.table, v.columns)

	return r.scanOne(ctx, kind, v.table+".claim_reset_token", query, digest, now, now)
}

// ClearExpiredResetTokens nulls reset fields that expired at or before now,
// across both tables.
func (r *PrincipalsRepo) ClearExpiredResetTokens(ctx context.Context, now time.Time) (int64, error) {
	var total int64

	for _, kind := range principal.LookupOrder {
		v := variants[kind]
		query := fmt.Sprintf(`UPDATE %s SET reset_token_hash = NULL, reset_token_expires_at = NULL, updated_at = $1
			WHERE reset_token_expires_at IS NOT NULL AND reset_token_expires_at <= $1`, v.table)

		var tag pgconn.CommandTag
		err := r.observe(v.table+".clear_expired_reset_tokens", func() error {
			var execErr error
			tag, execErr = r.db.Exec(ctx, query, now)
			return execErr
		})
		if err != nil {
			return total, oops.In("postgres").With("table", v.table, "op", "clear_expired_reset_tokens").Wrap(err)
		}
		total += tag.RowsAffected()
	}

	return total, nil
}

func baseArgs(p *principal.Principal) []any {
	return []any{p.ID, p.Email, p.PasswordHash, p.PasswordChangedAt, p.ResetTokenHash, p.ResetTokenExpiresAt, p.CreatedAt, p.UpdatedAt}
}

func profileArgs(p *principal.Principal) []any {
	switch p.Kind {
	case principal.KindUser:
		u := p.User
		if u == nil {
			u = &principal.UserProfile{}
		}
		return []any{u.Name, u.Surname, u.Gender, u.DateOfBirth, u.State, u.City, u.PostalCode, u.StreetName, u.StreetNumber, u.ApartmentNumber}
	default:
		m := p.Merchant
		if m == nil {
			m = &principal.MerchantProfile{}
		}
		return []any{m.RestaurantName, m.Cuisine, m.Rating, m.State, m.City, m.PostalCode, m.StreetName, m.StreetNumber, m.ApartmentNumber}
	}
}

func scanPrincipal(kind principal.Kind, row pgx.Row) (*principal.Principal, error) {
	p := &principal.Principal{Kind: kind}
	dest := []any{&p.ID, &p.Email, &p.PasswordHash, &p.PasswordChangedAt, &p.ResetTokenHash, &p.ResetTokenExpiresAt, &p.CreatedAt, &p.UpdatedAt}

	switch kind {
	case principal.KindUser:
		u := &principal.UserProfile{}
		p.User = u
		dest = append(dest, &u.Name, &u.Surname, &u.Gender, &u.DateOfBirth, &u.State, &u.City, &u.PostalCode, &u.StreetName, &u.StreetNumber, &u.ApartmentNumber)
	case principal.KindMerchant:
		m := &principal.MerchantProfile{}
		p.Merchant = m
		dest = append(dest, &m.RestaurantName, &m.Cuisine, &m.Rating, &m.State, &m.City, &m.PostalCode, &m.StreetName, &m.StreetNumber, &m.ApartmentNumber)
	}

	if err := row.Scan(dest...); err != nil {
		return nil, err
	}
	return p, nil
}
