package importer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/aeshabb/is-lab3/internal/blob"
	"github.com/aeshabb/is-lab3/internal/organization"
)

// Phase identifies where in the import flow a failure happened.
type Phase string

const (
	PhaseInit        Phase = "INIT"
	PhasePrepareBlob Phase = "PREPARE_BLOB"
	PhaseValidate    Phase = "VALIDATE"
	PhaseCommitStore Phase = "COMMIT_STORE"
)

// PhaseError wraps a failure with the phase it happened in. The web layer
// uses the phase to pick a response status.
type PhaseError struct {
	Phase Phase
	Err   error
}

func (e *PhaseError) Error() string {
	return fmt.Sprintf("import failed during %s: %v", e.Phase, e.Err)
}

func (e *PhaseError) Unwrap() error { return e.Err }

// Repository is the database side of the import. SaveBatch must be one
// atomic write under serializable (or equivalent) isolation; RecordImport
// must run in its own write scope so the history row survives a rollback
// of the import itself.
type Repository interface {
	Lookup

	// SaveBatch resolves shared sub-entities, inserts every organization,
	// and returns the new ids in insertion order.
	SaveBatch(ctx context.Context, orgs []*organization.Organization) ([]int64, error)

	// RecordImport appends one history row outside the import transaction.
	RecordImport(ctx context.Context, h *organization.ImportHistory) error
}

// Notifier receives fire-and-forget change notifications. Delivery is
// best-effort and never part of the import's success or failure.
type Notifier interface {
	OrganizationCreated(id int64)
}

// Saga coordinates one import attempt across the blob store and the
// database. States run INIT -> PREPARE_BLOB -> VALIDATE -> COMMIT_STORE;
// the only durable side effect needing compensation is the blob upload,
// which is deleted (best-effort) when a later phase fails. The saga is not
// idempotent on retry: a re-submitted file gets a fresh blob key and a
// fresh validation pass.
type Saga struct {
	blobs     blob.Store
	repo      Repository
	validator *BatchValidator
	notify    Notifier
}

// NewSaga wires a coordinator over its collaborators.
func NewSaga(blobs blob.Store, repo Repository, validator *BatchValidator, notify Notifier) *Saga {
	return &Saga{blobs: blobs, repo: repo, validator: validator, notify: notify}
}

// Execute runs one import attempt for the given file content and actor.
// Every attempt, successful or not, leaves exactly one history row. On
// success the returned history carries the imported count and the blob key;
// on failure the error names the failing phase and the history row is
// written before returning.
func (s *Saga) Execute(ctx context.Context, content []byte, fileName, contentType, username string) (*organization.ImportHistory, error) {
	logger := slog.With("actor", username, "file", fileName)

	history := &organization.ImportHistory{
		Username:  username,
		Timestamp: time.Now(),
	}

	// Input errors are rejected before anything durable exists, so no
	// compensation applies to them.
	batch, err := DecodeBatch(content)
	if err != nil {
		return nil, s.fail(ctx, logger, history, "", PhaseInit, err)
	}
	if len(batch) == 0 {
		return nil, s.fail(ctx, logger, history, "", PhaseInit, errors.New("import file contains no records"))
	}

	logger.Info("import started", "records", len(batch))

	objectName, err := s.blobs.Put(ctx, content, fileName, contentType)
	if err != nil {
		// Nothing durable was created; fail without compensation.
		return nil, s.fail(ctx, logger, history, "", PhasePrepareBlob, fmt.Errorf("upload to blob store: %w", err))
	}
	// The key is retained in the history row even when a later failure
	// deletes the object, so the attempt stays diagnosable.
	history.FileObjectName = &objectName
	logger.Info("import file stored", "object", objectName)

	if err := s.validator.Validate(ctx, batch); err != nil {
		return nil, s.fail(ctx, logger, history, objectName, PhaseValidate, err)
	}

	orgs := make([]*organization.Organization, len(batch))
	for i, c := range batch {
		orgs[i] = c.toOrganization()
	}

	ids, err := s.repo.SaveBatch(ctx, orgs)
	if err != nil {
		return nil, s.fail(ctx, logger, history, objectName, PhaseCommitStore, err)
	}

	for _, id := range ids {
		s.notify.OrganizationCreated(id)
	}

	count := len(ids)
	history.Status = organization.ImportStatusSuccess
	history.ImportedCount = &count
	if err := s.repo.RecordImport(ctx, history); err != nil {
		// The rows are committed at this point; only the audit write failed.
		return nil, fmt.Errorf("record import history: %w", err)
	}

	logger.Info("import committed", "imported", count, "object", objectName)
	return history, nil
}

// fail finalizes and records the failure, compensates the blob upload when
// one happened, and wraps the cause with its phase. Compensation and
// failure-history errors are logged, never allowed to mask the cause.
func (s *Saga) fail(ctx context.Context, logger *slog.Logger, history *organization.ImportHistory, objectName string, phase Phase, cause error) error {
	logger.Error("import failed", "phase", string(phase), "error", cause)

	if objectName != "" {
		if err := s.blobs.Delete(ctx, objectName); err != nil {
			logger.Error("compensating blob delete failed", "object", objectName, "error", err)
		} else {
			logger.Info("compensating blob delete done", "object", objectName)
		}
	}

	msg := cause.Error()
	history.Status = organization.ImportStatusFailed
	history.ErrorMessage = &msg
	if err := s.repo.RecordImport(ctx, history); err != nil {
		logger.Error("failed to record import history", "error", err)
	}

	return &PhaseError{Phase: phase, Err: cause}
}
