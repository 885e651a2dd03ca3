// Package postgres implements the relational storage for organizations and
// import history over pgx.
package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/aeshabb/is-lab3/internal/organization"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Store runs queries against the connection pool. Import commits use a
// serializable transaction; history writes go straight to the pool so they
// live outside any import transaction.
type Store struct {
	pool *pgxpool.Pool
}

// NewStore wraps an existing pool.
func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{pool: pool}
}

// NameExists reports whether an organization with this exact name is
// already persisted.
func (s *Store) NameExists(ctx context.Context, name string) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM organizations WHERE name = $1)`, name).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query name existence: %w", err)
	}
	return exists, nil
}

// RatingTaken reports whether any persisted organization holds this rating.
func (s *Store) RatingTaken(ctx context.Context, rating float64) (bool, error) {
	var exists bool
	err := s.pool.QueryRow(ctx,
		`SELECT EXISTS (SELECT 1 FROM organizations WHERE rating = $1)`, rating).Scan(&exists)
	if err != nil {
		return false, fmt.Errorf("query rating existence: %w", err)
	}
	return exists, nil
}

// SaveBatch inserts every organization as one atomic unit. Shared
// sub-entities are resolved per record inside the same transaction, so
// in-batch duplicates collapse onto a single row. Serializable isolation
// makes a second committer that would break the name or rating invariant
// fail at commit instead of silently overwriting.
func (s *Store) SaveBatch(ctx context.Context, orgs []*organization.Organization) ([]int64, error) {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.Serializable})
	if err != nil {
		return nil, fmt.Errorf("begin import transaction: %w", err)
	}
	defer tx.Rollback(ctx)

	resolver := NewEntityResolver(tx)
	ids := make([]int64, 0, len(orgs))

	for _, org := range orgs {
		id, err := s.insertOrganization(ctx, tx, resolver, org)
		if err != nil {
			return nil, err
		}
		ids = append(ids, id)
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit import transaction: %w", err)
	}
	return ids, nil
}

func (s *Store) insertOrganization(ctx context.Context, tx pgx.Tx, resolver *EntityResolver, org *organization.Organization) (int64, error) {
	coordsID, err := resolver.ResolveCoordinates(ctx, org.Coordinates.X, org.Coordinates.Y)
	if err != nil {
		return 0, err
	}

	postalID, err := resolver.ResolveAddress(ctx, org.PostalAddress.Street, org.PostalAddress.ZipCode)
	if err != nil {
		return 0, err
	}

	var officialID *int64
	if org.OfficialAddress != nil {
		id, err := resolver.ResolveAddress(ctx, org.OfficialAddress.Street, org.OfficialAddress.ZipCode)
		if err != nil {
			return 0, err
		}
		officialID = &id
	}

	var id int64
	err = tx.QueryRow(ctx, `
		INSERT INTO organizations
			(name, coordinates_id, creation_date, official_address_id,
			 annual_turnover, employees_count, rating, org_type, postal_address_id)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)
		RETURNING id`,
		org.Name, coordsID, org.CreationDate, officialID,
		org.AnnualTurnover, org.EmployeesCount, org.Rating, string(org.Type), postalID,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("insert organization %q: %w", org.Name, err)
	}
	return id, nil
}

// RecordImport appends one history row. It runs on the pool, outside any
// import transaction, so a rolled-back import keeps its audit record. A
// zero timestamp is defaulted at write time.
func (s *Store) RecordImport(ctx context.Context, h *organization.ImportHistory) error {
	if h.Timestamp.IsZero() {
		h.Timestamp = time.Now()
	}

	err := s.pool.QueryRow(ctx, `
		INSERT INTO import_history
			(status, username, imported_count, timestamp, error_message, file_object_name)
		VALUES ($1, $2, $3, $4, $5, $6)
		RETURNING id`,
		h.Status, h.Username, h.ImportedCount, h.Timestamp, h.ErrorMessage, h.FileObjectName,
	).Scan(&h.ID)
	if err != nil {
		return fmt.Errorf("insert import history: %w", err)
	}
	return nil
}

// ListImportHistory returns every import attempt, newest first.
func (s *Store) ListImportHistory(ctx context.Context) ([]organization.ImportHistory, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT id, status, username, imported_count, timestamp, error_message, file_object_name
		FROM import_history
		ORDER BY timestamp DESC, id DESC`)
	if err != nil {
		return nil, fmt.Errorf("query import history: %w", err)
	}
	defer rows.Close()

	var out []organization.ImportHistory
	for rows.Next() {
		var h organization.ImportHistory
		if err := rows.Scan(&h.ID, &h.Status, &h.Username, &h.ImportedCount,
			&h.Timestamp, &h.ErrorMessage, &h.FileObjectName); err != nil {
			return nil, fmt.Errorf("scan import history row: %w", err)
		}
		out = append(out, h)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("import history rows: %w", err)
	}
	return out, nil
}
