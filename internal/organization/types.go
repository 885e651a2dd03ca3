// Package organization holds the persisted domain model: organizations,
// their shared sub-entities (coordinates, addresses), and the import
// history audit record.
package organization

import (
	"fmt"
	"time"
)

// Type is the closed set of organization categories. Incoming type strings
// must map to one of these; anything else is a validation error.
type Type string

const (
	TypeCommercial            Type = "COMMERCIAL"
	TypePublic                Type = "PUBLIC"
	TypeGovernment            Type = "GOVERNMENT"
	TypeTrust                 Type = "TRUST"
	TypePrivateLimitedCompany Type = "PRIVATE_LIMITED_COMPANY"
)

// ParseType maps a free-text category to a Type.
// Returns an error naming the bad value for anything outside the closed set.
func ParseType(s string) (Type, error) {
	switch Type(s) {
	case TypeCommercial, TypePublic, TypeGovernment, TypeTrust, TypePrivateLimitedCompany:
		return Type(s), nil
	}
	return "", fmt.Errorf("unknown organization type: %q", s)
}

// Coordinates is a shared sub-entity. Two organizations with the same (x, y)
// reference one stored row. The y <= 323 bound is enforced by the storage
// layer only, not at import decode time.
type Coordinates struct {
	ID int64
	X  int
	Y  float32
}

// Address is a shared sub-entity keyed by (street, zip code).
type Address struct {
	ID      int64
	Street  string
	ZipCode string
}

// Organization is the persisted record. Name and rating are unique across
// the whole store.
type Organization struct {
	ID              int64
	Name            string
	Coordinates     *Coordinates
	CreationDate    time.Time
	OfficialAddress *Address // optional
	AnnualTurnover  int64
	EmployeesCount  *int // optional
	Rating          float64
	Type            Type
	PostalAddress   *Address
}

// Import history statuses.
const (
	ImportStatusSuccess = "SUCCESS"
	ImportStatusFailed  = "FAILED"
)

// ImportHistory is the append-only audit record for one import attempt.
// It is written in its own scope so a rolled-back import keeps its row.
type ImportHistory struct {
	ID             int64
	Status         string
	Username       string
	ImportedCount  *int    // nil on failure
	Timestamp      time.Time
	ErrorMessage   *string // nil on success
	FileObjectName *string // blob key; nil if the upload never happened
}
