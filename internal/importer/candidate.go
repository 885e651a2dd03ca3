// Package importer implements the bulk import pipeline: a batch file is
// uploaded to the blob store, validated against itself and the database,
// and committed as new organization rows in one transaction. The blob
// store and the database share no transaction coordinator, so the flow is
// a saga with one compensating action (delete of the uploaded blob).
package importer

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/aeshabb/is-lab3/internal/organization"
)

// Candidate is one proposed organization decoded from an import file.
// Fields are pointers so that absent and zero values are distinguishable;
// the validate tags mirror the constraints of the persisted model, except
// for the y-coordinate whose upper bound is a storage-layer concern.
type Candidate struct {
	Name            *string           `json:"name" validate:"required,notblank"`
	Coordinates     *CandidateCoords  `json:"coordinates" validate:"required"`
	OfficialAddress *CandidateAddress `json:"officialAddress"`
	AnnualTurnover  *int64            `json:"annualTurnover" validate:"required,gt=0"`
	EmployeesCount  *int              `json:"employeesCount" validate:"omitempty,gt=0"`
	Rating          *float64          `json:"rating" validate:"required,gt=0"`
	Type            *string           `json:"type" validate:"required,orgtype"`
	PostalAddress   *CandidateAddress `json:"postalAddress" validate:"required"`
	CreationDate    *string           `json:"creationDate" validate:"omitempty,datetime=2006-01-02"`
}

// CandidateCoords carries the coordinate pair. Only the lower bound on x is
// checked here; y <= 323 is left to the storage layer.
type CandidateCoords struct {
	X *int     `json:"x" validate:"required,gte=-331"`
	Y *float32 `json:"y" validate:"required"`
}

// CandidateAddress is a mailing address inside a candidate.
type CandidateAddress struct {
	Street  *string `json:"street" validate:"required,max=180"`
	ZipCode *string `json:"zipCode" validate:"required,min=7"`
}

// DecodeBatch parses an import file into an ordered batch of candidates.
func DecodeBatch(content []byte) ([]Candidate, error) {
	var batch []Candidate
	if err := json.Unmarshal(content, &batch); err != nil {
		return nil, fmt.Errorf("decode import file: %w", err)
	}
	return batch, nil
}

// toOrganization converts a validated candidate into a persistable entity.
// The creation date defaults to today when the file does not carry one.
func (c Candidate) toOrganization() *organization.Organization {
	orgType, _ := organization.ParseType(*c.Type)

	creationDate := time.Now()
	if c.CreationDate != nil {
		// Format already checked by the datetime validation tag.
		creationDate, _ = time.Parse("2006-01-02", *c.CreationDate)
	}

	org := &organization.Organization{
		Name: *c.Name,
		Coordinates: &organization.Coordinates{
			X: *c.Coordinates.X,
			Y: *c.Coordinates.Y,
		},
		CreationDate:   creationDate,
		AnnualTurnover: *c.AnnualTurnover,
		EmployeesCount: c.EmployeesCount,
		Rating:         *c.Rating,
		Type:           orgType,
		PostalAddress: &organization.Address{
			Street:  *c.PostalAddress.Street,
			ZipCode: *c.PostalAddress.ZipCode,
		},
	}
	if c.OfficialAddress != nil {
		org.OfficialAddress = &organization.Address{
			Street:  *c.OfficialAddress.Street,
			ZipCode: *c.OfficialAddress.ZipCode,
		}
	}
	return org
}
