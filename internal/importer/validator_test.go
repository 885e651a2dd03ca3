package importer

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"
)

// fakeLookup answers cross-store uniqueness checks from in-memory sets.
type fakeLookup struct {
	names     map[string]bool
	ratings   map[float64]bool
	nameErr   error
	nameCalls int
}

func (f *fakeLookup) NameExists(_ context.Context, name string) (bool, error) {
	f.nameCalls++
	if f.nameErr != nil {
		return false, f.nameErr
	}
	return f.names[name], nil
}

func (f *fakeLookup) RatingTaken(_ context.Context, rating float64) (bool, error) {
	return f.ratings[rating], nil
}

func ptrStr(s string) *string   { return &s }
func ptrInt(i int) *int         { return &i }
func ptrInt64(i int64) *int64   { return &i }
func ptrF64(f float64) *float64 { return &f }
func ptrF32(f float32) *float32 { return &f }

// candidate builds a valid record whose name, rating, and zip code are
// unique per index.
func candidate(i int) Candidate {
	return Candidate{
		Name:           ptrStr(fmt.Sprintf("Org %d", i)),
		Coordinates:    &CandidateCoords{X: ptrInt(10 + i), Y: ptrF32(float32(i))},
		AnnualTurnover: ptrInt64(1000),
		Rating:         ptrF64(float64(i) + 0.5),
		Type:           ptrStr("COMMERCIAL"),
		PostalAddress: &CandidateAddress{
			Street:  ptrStr("Main Street"),
			ZipCode: ptrStr(fmt.Sprintf("100000%d", i)),
		},
	}
}

func newTestValidator(store *fakeLookup) *BatchValidator {
	if store.names == nil {
		store.names = map[string]bool{}
	}
	if store.ratings == nil {
		store.ratings = map[float64]bool{}
	}
	return NewBatchValidator(store)
}

func TestValidateStructural(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Candidate)
		wantMsg string
	}{
		{
			name:    "missing name",
			mutate:  func(c *Candidate) { c.Name = nil },
			wantMsg: "name is required",
		},
		{
			name:    "blank name",
			mutate:  func(c *Candidate) { c.Name = ptrStr("   ") },
			wantMsg: "name must not be blank",
		},
		{
			name:    "missing coordinates",
			mutate:  func(c *Candidate) { c.Coordinates = nil },
			wantMsg: "coordinates is required",
		},
		{
			name:    "x below lower bound",
			mutate:  func(c *Candidate) { c.Coordinates.X = ptrInt(-332) },
			wantMsg: "coordinates.x must be at least -331",
		},
		{
			name:    "turnover zero",
			mutate:  func(c *Candidate) { c.AnnualTurnover = ptrInt64(0) },
			wantMsg: "annualTurnover must be greater than 0",
		},
		{
			name:    "employees zero",
			mutate:  func(c *Candidate) { c.EmployeesCount = ptrInt(0) },
			wantMsg: "employeesCount must be greater than 0",
		},
		{
			name:    "rating zero",
			mutate:  func(c *Candidate) { c.Rating = ptrF64(0) },
			wantMsg: "rating must be greater than 0",
		},
		{
			name:    "unknown type",
			mutate:  func(c *Candidate) { c.Type = ptrStr("STARTUP") },
			wantMsg: `unknown organization type "STARTUP"`,
		},
		{
			name:    "missing postal address",
			mutate:  func(c *Candidate) { c.PostalAddress = nil },
			wantMsg: "postalAddress is required",
		},
		{
			name:    "zip code too short",
			mutate:  func(c *Candidate) { c.PostalAddress.ZipCode = ptrStr("123456") },
			wantMsg: "postalAddress.zipCode must be at least 7 characters",
		},
		{
			name: "street too long",
			mutate: func(c *Candidate) {
				c.PostalAddress.Street = ptrStr(strings.Repeat("a", 181))
			},
			wantMsg: "postalAddress.street must be at most 180 characters",
		},
		{
			name:    "bad creation date format",
			mutate:  func(c *Candidate) { c.CreationDate = ptrStr("03/15/2024") },
			wantMsg: "creationDate must be a date in YYYY-MM-DD format",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := newTestValidator(&fakeLookup{})
			c := candidate(1)
			tt.mutate(&c)

			err := v.Validate(context.Background(), []Candidate{c})
			var verr *ValidationError
			if !errors.As(err, &verr) {
				t.Fatalf("Validate() error = %v, want *ValidationError", err)
			}
			joined := strings.Join(verr.Messages, "; ")
			if !strings.Contains(joined, tt.wantMsg) {
				t.Errorf("messages %q do not contain %q", joined, tt.wantMsg)
			}
			if !strings.Contains(joined, "organization #1:") {
				t.Errorf("messages %q do not carry the 1-based position", joined)
			}
		})
	}
}

func TestValidateAggregatesStructuralAcrossBatch(t *testing.T) {
	store := &fakeLookup{}
	v := newTestValidator(store)

	first := candidate(1)
	first.Name = nil
	second := candidate(2)
	third := candidate(3)
	third.Rating = nil

	err := v.Validate(context.Background(), []Candidate{first, second, third})
	var verr *ValidationError
	if !errors.As(err, &verr) {
		t.Fatalf("Validate() error = %v, want *ValidationError", err)
	}
	if len(verr.Messages) != 2 {
		t.Fatalf("got %d messages, want 2: %v", len(verr.Messages), verr.Messages)
	}
	if !strings.HasPrefix(verr.Messages[0], "organization #1:") {
		t.Errorf("first message %q should point at record 1", verr.Messages[0])
	}
	if !strings.HasPrefix(verr.Messages[1], "organization #3:") {
		t.Errorf("second message %q should point at record 3", verr.Messages[1])
	}
	if store.nameCalls != 0 {
		t.Errorf("store was consulted %d times despite structural failures", store.nameCalls)
	}
}

func TestValidateIntraBatchDuplicates(t *testing.T) {
	t.Run("duplicate name reports second occurrence", func(t *testing.T) {
		v := newTestValidator(&fakeLookup{})
		first := candidate(1)
		second := candidate(2)
		second.Name = ptrStr("Org 1")

		err := v.Validate(context.Background(), []Candidate{first, second})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Validate() error = %v, want *ValidationError", err)
		}
		want := `organization #2: duplicate name "Org 1" in import file`
		if verr.Messages[0] != want {
			t.Errorf("message = %q, want %q", verr.Messages[0], want)
		}
	})

	t.Run("duplicate zip across postal and official addresses", func(t *testing.T) {
		v := newTestValidator(&fakeLookup{})
		first := candidate(1)
		second := candidate(2)
		second.OfficialAddress = &CandidateAddress{
			Street:  ptrStr("Side Street"),
			ZipCode: ptrStr("1000001"), // same zip as first's postal address
		}

		err := v.Validate(context.Background(), []Candidate{first, second})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Validate() error = %v, want *ValidationError", err)
		}
		if !strings.Contains(verr.Messages[0], `duplicate zip code "1000001"`) {
			t.Errorf("message = %q, want duplicate zip report", verr.Messages[0])
		}
	})

	t.Run("duplicate zip inside one record", func(t *testing.T) {
		v := newTestValidator(&fakeLookup{})
		c := candidate(1)
		c.OfficialAddress = &CandidateAddress{
			Street:  ptrStr("Side Street"),
			ZipCode: ptrStr("1000001"),
		}

		err := v.Validate(context.Background(), []Candidate{c})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Validate() error = %v, want *ValidationError", err)
		}
		if !strings.Contains(verr.Messages[0], "duplicate zip code") {
			t.Errorf("message = %q, want duplicate zip report", verr.Messages[0])
		}
	})

	t.Run("duplicate ratings inside the batch are allowed", func(t *testing.T) {
		v := newTestValidator(&fakeLookup{})
		first := candidate(1)
		second := candidate(2)
		second.Rating = ptrF64(*first.Rating)

		if err := v.Validate(context.Background(), []Candidate{first, second}); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})
}

func TestValidateCrossStore(t *testing.T) {
	t.Run("name collision with persisted row", func(t *testing.T) {
		v := newTestValidator(&fakeLookup{names: map[string]bool{"Org 1": true}})

		err := v.Validate(context.Background(), []Candidate{candidate(1)})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Validate() error = %v, want *ValidationError", err)
		}
		want := `organization with name "Org 1" already exists`
		if verr.Messages[0] != want {
			t.Errorf("message = %q, want %q", verr.Messages[0], want)
		}
	})

	t.Run("rating collision with persisted row", func(t *testing.T) {
		v := newTestValidator(&fakeLookup{ratings: map[float64]bool{1.5: true}})

		err := v.Validate(context.Background(), []Candidate{candidate(1)})
		var verr *ValidationError
		if !errors.As(err, &verr) {
			t.Fatalf("Validate() error = %v, want *ValidationError", err)
		}
		if !strings.Contains(verr.Messages[0], "rating 1.5 already exists") {
			t.Errorf("message = %q, want rating collision report", verr.Messages[0])
		}
	})

	t.Run("lookup failure is not a validation error", func(t *testing.T) {
		v := newTestValidator(&fakeLookup{nameErr: errors.New("connection reset")})

		err := v.Validate(context.Background(), []Candidate{candidate(1)})
		if err == nil {
			t.Fatal("Validate() = nil, want error")
		}
		var verr *ValidationError
		if errors.As(err, &verr) {
			t.Errorf("lookup failure surfaced as *ValidationError: %v", err)
		}
	})
}

func TestValidateBoundaries(t *testing.T) {
	t.Run("x at exact lower bound passes", func(t *testing.T) {
		v := newTestValidator(&fakeLookup{})
		c := candidate(1)
		c.Coordinates.X = ptrInt(-331)

		if err := v.Validate(context.Background(), []Candidate{c}); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("y has no upper bound at this layer", func(t *testing.T) {
		v := newTestValidator(&fakeLookup{})
		c := candidate(1)
		c.Coordinates.Y = ptrF32(100000)

		if err := v.Validate(context.Background(), []Candidate{c}); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})

	t.Run("street at exactly 180 characters passes", func(t *testing.T) {
		v := newTestValidator(&fakeLookup{})
		c := candidate(1)
		c.PostalAddress.Street = ptrStr(strings.Repeat("a", 180))

		if err := v.Validate(context.Background(), []Candidate{c}); err != nil {
			t.Errorf("Validate() = %v, want nil", err)
		}
	})
}
