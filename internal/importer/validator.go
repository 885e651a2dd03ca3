package importer

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/aeshabb/is-lab3/internal/organization"
	"github.com/go-playground/validator/v10"
)

// ValidationError aggregates every violation found in a batch. The
// coordinator treats it as fatal to the whole batch; no partial commits.
type ValidationError struct {
	Messages []string
}

func (e *ValidationError) Error() string {
	return "validation failed: " + strings.Join(e.Messages, "; ")
}

// Lookup answers the cross-store uniqueness questions against data that is
// already persisted.
type Lookup interface {
	NameExists(ctx context.Context, name string) (bool, error)
	RatingTaken(ctx context.Context, rating float64) (bool, error)
}

// BatchValidator checks a decoded batch: structural field constraints first,
// then intra-batch uniqueness, then collisions with the existing store.
type BatchValidator struct {
	validate *validator.Validate
	store    Lookup
}

// NewBatchValidator builds a validator over the given store lookups.
func NewBatchValidator(store Lookup) *BatchValidator {
	v := validator.New()

	// Report violations under json field names.
	v.RegisterTagNameFunc(func(fld reflect.StructField) string {
		name := strings.SplitN(fld.Tag.Get("json"), ",", 2)[0]
		if name == "-" {
			return ""
		}
		return name
	})

	_ = v.RegisterValidation("notblank", func(fl validator.FieldLevel) bool {
		return strings.TrimSpace(fl.Field().String()) != ""
	})
	_ = v.RegisterValidation("orgtype", func(fl validator.FieldLevel) bool {
		_, err := organization.ParseType(fl.Field().String())
		return err == nil
	})

	return &BatchValidator{validate: v, store: store}
}

// Validate runs the full rule set in order, failing fast per rule category:
//
//  1. Structural constraints on every record; all violations across the
//     batch are collected and reported together.
//  2. Intra-batch name uniqueness; the first duplicate raises.
//  3. Intra-batch zip-code uniqueness across both address fields.
//  4. Cross-store name collisions.
//  5. Cross-store rating collisions (duplicate ratings inside the batch are
//     allowed; only collisions with persisted rows matter).
//
// Positions in messages are 1-based batch positions.
func (v *BatchValidator) Validate(ctx context.Context, batch []Candidate) error {
	var structural []string
	for i, c := range batch {
		if err := v.validate.Struct(c); err != nil {
			var fieldErrs validator.ValidationErrors
			if !errors.As(err, &fieldErrs) {
				return fmt.Errorf("validate organization #%d: %w", i+1, err)
			}
			for _, fe := range fieldErrs {
				structural = append(structural,
					fmt.Sprintf("organization #%d: %s", i+1, messageFor(fe)))
			}
		}
	}
	if len(structural) > 0 {
		return &ValidationError{Messages: structural}
	}

	names := make(map[string]struct{}, len(batch))
	orderedNames := make([]string, 0, len(batch))
	zips := make(map[string]struct{})
	ratings := make(map[float64]struct{}, len(batch))
	orderedRatings := make([]float64, 0, len(batch))

	for i, c := range batch {
		name := *c.Name
		if _, dup := names[name]; dup {
			return &ValidationError{Messages: []string{
				fmt.Sprintf("organization #%d: duplicate name %q in import file", i+1, name),
			}}
		}
		names[name] = struct{}{}
		orderedNames = append(orderedNames, name)

		// Primary and secondary addresses share one zip namespace.
		if c.PostalAddress != nil {
			zip := *c.PostalAddress.ZipCode
			if _, dup := zips[zip]; dup {
				return &ValidationError{Messages: []string{
					fmt.Sprintf("organization #%d: duplicate zip code %q in import file", i+1, zip),
				}}
			}
			zips[zip] = struct{}{}
		}
		if c.OfficialAddress != nil {
			zip := *c.OfficialAddress.ZipCode
			if _, dup := zips[zip]; dup {
				return &ValidationError{Messages: []string{
					fmt.Sprintf("organization #%d: duplicate zip code %q in import file", i+1, zip),
				}}
			}
			zips[zip] = struct{}{}
		}

		rating := *c.Rating
		if _, seen := ratings[rating]; !seen {
			ratings[rating] = struct{}{}
			orderedRatings = append(orderedRatings, rating)
		}
	}

	for _, name := range orderedNames {
		exists, err := v.store.NameExists(ctx, name)
		if err != nil {
			return fmt.Errorf("check name %q against store: %w", name, err)
		}
		if exists {
			return &ValidationError{Messages: []string{
				fmt.Sprintf("organization with name %q already exists", name),
			}}
		}
	}
	for _, rating := range orderedRatings {
		taken, err := v.store.RatingTaken(ctx, rating)
		if err != nil {
			return fmt.Errorf("check rating %v against store: %w", rating, err)
		}
		if taken {
			return &ValidationError{Messages: []string{
				fmt.Sprintf("organization with rating %v already exists", rating),
			}}
		}
	}

	return nil
}

// messageFor turns a field error into a human-readable message keyed by the
// json field path, e.g. "coordinates.x must be at least -331".
func messageFor(fe validator.FieldError) string {
	path := fe.Namespace()
	if i := strings.IndexByte(path, '.'); i >= 0 {
		path = path[i+1:]
	}

	switch fe.Tag() {
	case "required":
		return path + " is required"
	case "notblank":
		return path + " must not be blank"
	case "gt":
		return fmt.Sprintf("%s must be greater than %s", path, fe.Param())
	case "gte":
		return fmt.Sprintf("%s must be at least %s", path, fe.Param())
	case "min":
		return fmt.Sprintf("%s must be at least %s characters", path, fe.Param())
	case "max":
		return fmt.Sprintf("%s must be at most %s characters", path, fe.Param())
	case "datetime":
		return path + " must be a date in YYYY-MM-DD format"
	case "orgtype":
		return fmt.Sprintf("%s: unknown organization type %q", path, fe.Value())
	default:
		return fmt.Sprintf("%s is invalid (%s)", path, fe.Tag())
	}
}
