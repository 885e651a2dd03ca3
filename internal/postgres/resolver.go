package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"
)

// Querier is the slice of pgx.Tx the resolver needs. Keeping it narrow lets
// tests substitute a fake without a live database.
type Querier interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// EntityResolver de-duplicates shared sub-entities before insert: an exact
// match on the lookup fields references the existing row, anything else
// allocates a new one. One resolver instance spans one import transaction,
// so records inside a batch with equal values share a single row. No locks
// are taken; two concurrent imports racing on the same new value can create
// two rows, which is accepted rather than serialized.
type EntityResolver struct {
	q      Querier
	coords map[coordKey]int64
	addrs  map[addrKey]int64
}

type coordKey struct {
	x int
	y float32
}

type addrKey struct {
	street string
	zip    string
}

// NewEntityResolver builds a resolver scoped to one transaction.
func NewEntityResolver(q Querier) *EntityResolver {
	return &EntityResolver{
		q:      q,
		coords: make(map[coordKey]int64),
		addrs:  make(map[addrKey]int64),
	}
}

// ResolveCoordinates returns the id of the coordinates row for (x, y),
// inserting it if no row matches.
func (r *EntityResolver) ResolveCoordinates(ctx context.Context, x int, y float32) (int64, error) {
	key := coordKey{x: x, y: y}
	if id, ok := r.coords[key]; ok {
		return id, nil
	}

	var id int64
	err := r.q.QueryRow(ctx,
		`SELECT id FROM coordinates WHERE x = $1 AND y = $2 LIMIT 1`, x, y).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = r.q.QueryRow(ctx,
			`INSERT INTO coordinates (x, y) VALUES ($1, $2) RETURNING id`, x, y).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve coordinates (%d, %v): %w", x, y, err)
	}

	r.coords[key] = id
	return id, nil
}

// ResolveAddress returns the id of the address row for (street, zip),
// inserting it if no row matches.
func (r *EntityResolver) ResolveAddress(ctx context.Context, street, zip string) (int64, error) {
	key := addrKey{street: street, zip: zip}
	if id, ok := r.addrs[key]; ok {
		return id, nil
	}

	var id int64
	err := r.q.QueryRow(ctx,
		`SELECT id FROM addresses WHERE street = $1 AND zip_code = $2 LIMIT 1`, street, zip).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		err = r.q.QueryRow(ctx,
			`INSERT INTO addresses (street, zip_code) VALUES ($1, $2) RETURNING id`, street, zip).Scan(&id)
	}
	if err != nil {
		return 0, fmt.Errorf("resolve address (%q, %q): %w", street, zip, err)
	}

	r.addrs[key] = id
	return id, nil
}
