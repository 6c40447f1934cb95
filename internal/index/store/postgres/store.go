// Package postgres is the PostgreSQL verification index store.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"

	"arkv/internal/anchoring"
	"arkv/internal/artifact"
	"arkv/internal/attestation"
	"arkv/internal/index"
	id "arkv/pkg/domain"
	"arkv/pkg/platform/sentinel"
	txcontext "arkv/pkg/platform/tx"
)

const uniqueViolation = "23505"

// PostgresStore persists notarization records in the notarizations table.
// Anchor and attestation are JSONB columns so enrichment is a single-row
// update.
type PostgresStore struct {
	db *sql.DB
}

// New constructs a PostgreSQL-backed index store.
func New(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

type dbExecutor interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func (s *PostgresStore) execer(ctx context.Context) dbExecutor {
	if tx, ok := txcontext.From(ctx); ok {
		return tx
	}
	return s.db
}

const selectColumns = `
	SELECT fingerprint, kind, domain, entity_name, content_id, owner,
	       metadata, anchor, attestation, created_at
	FROM notarizations`

func (s *PostgresStore) Insert(ctx context.Context, r *index.Record) error {
	metadata, anchor, att, err := encodeJSONColumns(r)
	if err != nil {
		return err
	}
	query := `
		INSERT INTO notarizations (
			fingerprint, kind, domain, entity_name, content_id, owner,
			metadata, anchor, attestation, created_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err = s.execer(ctx).ExecContext(ctx, query,
		r.Fingerprint.String(),
		string(r.Kind),
		nullString(r.Domain.String()),
		nullString(r.EntityName),
		nullString(r.ContentID),
		nullString(r.Owner),
		metadata,
		anchor,
		att,
		r.CreatedAt,
	)
	if err != nil {
		if isUniqueViolation(err) {
			return sentinel.ErrConflict
		}
		return fmt.Errorf("insert notarization: %w", err)
	}
	return nil
}

func (s *PostgresStore) Update(ctx context.Context, fp id.Fingerprint, fn func(r *index.Record) error) (*index.Record, error) {
	var updated *index.Record
	err := txcontext.Run(ctx, s.db, func(ctx context.Context) error {
		row := s.execer(ctx).QueryRowContext(ctx, selectColumns+` WHERE fingerprint = $1 FOR UPDATE`, fp.String())
		r, err := scanRecord(row)
		if err != nil {
			return err
		}
		if err := fn(r); err != nil {
			return err
		}
		metadata, anchor, att, err := encodeJSONColumns(r)
		if err != nil {
			return err
		}
		query := `
			UPDATE notarizations
			SET domain = $2, entity_name = $3, content_id = $4, owner = $5,
			    metadata = $6, anchor = $7, attestation = $8
			WHERE fingerprint = $1
		`
		_, err = s.execer(ctx).ExecContext(ctx, query,
			fp.String(),
			nullString(r.Domain.String()),
			nullString(r.EntityName),
			nullString(r.ContentID),
			nullString(r.Owner),
			metadata,
			anchor,
			att,
		)
		if err != nil {
			return fmt.Errorf("update notarization: %w", err)
		}
		updated = r
		return nil
	})
	return updated, err
}

func (s *PostgresStore) FindByFingerprint(ctx context.Context, fp id.Fingerprint) (*index.Record, error) {
	row := s.execer(ctx).QueryRowContext(ctx, selectColumns+` WHERE fingerprint = $1`, fp.String())
	return scanRecord(row)
}

func (s *PostgresStore) FindByFingerprintPrefix(ctx context.Context, prefix id.FingerprintPrefix, limit int) ([]*index.Record, error) {
	query := selectColumns + `
		WHERE fingerprint LIKE $1 || '%'
		ORDER BY created_at DESC, fingerprint DESC
		LIMIT $2`
	return s.query(ctx, query, prefix.String(), limit)
}

func (s *PostgresStore) FindByDomain(ctx context.Context, substr string, limit int) ([]*index.Record, error) {
	query := selectColumns + `
		WHERE lower(domain) LIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at DESC, fingerprint DESC
		LIMIT $2`
	return s.query(ctx, query, escapeLike(strings.ToLower(substr)), limit)
}

func (s *PostgresStore) FindByEntity(ctx context.Context, substr string, limit int) ([]*index.Record, error) {
	query := selectColumns + `
		WHERE lower(entity_name) LIKE '%' || $1 || '%' ESCAPE '\'
		ORDER BY created_at DESC, fingerprint DESC
		LIMIT $2`
	return s.query(ctx, query, escapeLike(strings.ToLower(substr)), limit)
}

func (s *PostgresStore) ListByDomain(ctx context.Context, name id.DomainName) ([]*index.Record, error) {
	query := selectColumns + `
		WHERE lower(domain) = $1
		ORDER BY created_at DESC, fingerprint DESC`
	return s.query(ctx, query, name.String())
}

func (s *PostgresStore) query(ctx context.Context, query string, args ...any) ([]*index.Record, error) {
	rows, err := s.execer(ctx).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query notarizations: %w", err)
	}
	defer rows.Close()

	out := []*index.Record{}
	for rows.Next() {
		r, err := scanRecord(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate notarizations: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanRecord(row scanner) (*index.Record, error) {
	var (
		r                                 index.Record
		fp, kind                          string
		domain, entity, contentID, owner  sql.NullString
		metadataJSON, anchorJSON, attJSON []byte
	)
	err := row.Scan(&fp, &kind, &domain, &entity, &contentID, &owner,
		&metadataJSON, &anchorJSON, &attJSON, &r.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, sentinel.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan notarization: %w", err)
	}

	r.Fingerprint = id.Fingerprint(fp)
	r.Kind = artifact.Kind(kind)
	r.Domain = id.DomainName(domain.String)
	r.EntityName = entity.String
	r.ContentID = contentID.String
	r.Owner = owner.String

	if len(metadataJSON) > 0 {
		if err := json.Unmarshal(metadataJSON, &r.Metadata); err != nil {
			return nil, fmt.Errorf("decode metadata: %w", err)
		}
	}
	if len(anchorJSON) > 0 {
		var a anchorColumn
		if err := json.Unmarshal(anchorJSON, &a); err != nil {
			return nil, fmt.Errorf("decode anchor: %w", err)
		}
		r.Anchor, err = a.toModel(r.Fingerprint)
		if err != nil {
			return nil, err
		}
	}
	if len(attJSON) > 0 {
		var a attestationColumn
		if err := json.Unmarshal(attJSON, &a); err != nil {
			return nil, fmt.Errorf("decode attestation: %w", err)
		}
		r.Attestation = a.toModel(r.Fingerprint)
	}
	return &r, nil
}

type anchorColumn struct {
	TransactionID string     `json:"tx_id"`
	FeePaid       string     `json:"fee_paid"`
	SubmittedAt   time.Time  `json:"submitted_at"`
	Status        string     `json:"status"`
	ResolvedAt    *time.Time `json:"resolved_at,omitempty"`
	Reason        string     `json:"reason,omitempty"`
}

func (a anchorColumn) toModel(fp id.Fingerprint) (*anchoring.Transaction, error) {
	tx := &anchoring.Transaction{
		Fingerprint:   fp,
		TransactionID: a.TransactionID,
		SubmittedAt:   a.SubmittedAt,
		Status:        anchoring.Status(a.Status),
		ResolvedAt:    a.ResolvedAt,
		Reason:        a.Reason,
		FeePaid:       new(big.Int),
	}
	if a.FeePaid != "" {
		if _, ok := tx.FeePaid.SetString(a.FeePaid, 10); !ok {
			return nil, fmt.Errorf("decode anchor: invalid fee %q", a.FeePaid)
		}
	}
	return tx, nil
}

type attestationColumn struct {
	Domain        string    `json:"domain"`
	Verified      bool      `json:"verified"`
	CheckedAt     time.Time `json:"checked_at"`
	MatchedRecord string    `json:"matched_record,omitempty"`
}

func (a attestationColumn) toModel(fp id.Fingerprint) *attestation.Attestation {
	return &attestation.Attestation{
		Domain:        id.DomainName(a.Domain),
		Fingerprint:   fp,
		Verified:      a.Verified,
		CheckedAt:     a.CheckedAt,
		MatchedRecord: a.MatchedRecord,
	}
}

func encodeJSONColumns(r *index.Record) (metadata, anchor, att []byte, err error) {
	md := r.Metadata
	if md == nil {
		md = map[string]string{}
	}
	if metadata, err = json.Marshal(md); err != nil {
		return nil, nil, nil, fmt.Errorf("encode metadata: %w", err)
	}
	if r.Anchor != nil {
		col := anchorColumn{
			TransactionID: r.Anchor.TransactionID,
			SubmittedAt:   r.Anchor.SubmittedAt,
			Status:        string(r.Anchor.Status),
			ResolvedAt:    r.Anchor.ResolvedAt,
			Reason:        r.Anchor.Reason,
		}
		if r.Anchor.FeePaid != nil {
			col.FeePaid = r.Anchor.FeePaid.String()
		}
		if anchor, err = json.Marshal(col); err != nil {
			return nil, nil, nil, fmt.Errorf("encode anchor: %w", err)
		}
	}
	if r.Attestation != nil {
		col := attestationColumn{
			Domain:        r.Attestation.Domain.String(),
			Verified:      r.Attestation.Verified,
			CheckedAt:     r.Attestation.CheckedAt,
			MatchedRecord: r.Attestation.MatchedRecord,
		}
		if att, err = json.Marshal(col); err != nil {
			return nil, nil, nil, fmt.Errorf("encode attestation: %w", err)
		}
	}
	return metadata, anchor, att, nil
}

// isUniqueViolation recognises unique-key errors from either registered
// driver.
func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == uniqueViolation
	}
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return string(pqErr.Code) == uniqueViolation
	}
	return false
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
