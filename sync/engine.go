// Package sync reconciles batches of device-collected records against the
// store. Matching is by the client-supplied external id; each candidate
// either updates the matched record or creates a new one owned by the
// caller.
//
// Batches are processed strictly in submission order, so two entries
// sharing an external id resolve deterministically: the second updates the
// record the first just created. A batch is at-least-once, not atomic:
// the first failure aborts it, but writes already applied stay written.
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"record-sync/database"
	"record-sync/models"
	"record-sync/validator"
)

type Engine struct {
	store    database.Store
	validate *validator.Validator
	logger   *slog.Logger
}

func New(store database.Store, validate *validator.Validator, logger *slog.Logger) *Engine {
	return &Engine{
		store:    store,
		validate: validate,
		logger:   logger,
	}
}

// Sync reconciles one batch for the given caller and reports how many
// records were added vs updated.
func (e *Engine) Sync(ctx context.Context, ident models.Identity, batch []*models.Record) (*models.SyncResult, error) {
	result := &models.SyncResult{Total: len(batch)}

	// A null entry in the batch JSON decodes to a nil record. Reject the
	// whole batch before applying anything.
	for i, candidate := range batch {
		if candidate == nil {
			return nil, fmt.Errorf("sync record %d: record is null", i)
		}
	}

	for i, candidate := range batch {
		if err := e.apply(ctx, ident, candidate, result); err != nil {
			e.logger.Error("sync batch aborted",
				"user_id", ident.UserID,
				"index", i,
				"applied_added", result.Added,
				"applied_updated", result.Updated,
				"error", err,
			)
			return nil, fmt.Errorf("sync record %d: %w", i, err)
		}
	}

	e.logger.Info("sync batch completed",
		"user_id", ident.UserID,
		"added", result.Added,
		"updated", result.Updated,
		"total", result.Total,
	)

	return result, nil
}

func (e *Engine) apply(ctx context.Context, ident models.Identity, candidate *models.Record, result *models.SyncResult) error {
	candidate.ApplyDefaults()

	var existing *models.Record
	if candidate.ExternalID != "" {
		var err error
		existing, err = e.store.FindByExternalID(ctx, candidate.ExternalID)
		if err != nil {
			return err
		}
	}

	if existing != nil {
		// Full replace of the mutable fields; owner and creation time
		// stay with the matched record.
		candidate.ID = existing.ID
		candidate.UserID = existing.UserID
		candidate.CreatedAt = existing.CreatedAt

		if err := e.validate.Validate(candidate); err != nil {
			return err
		}
		updated, err := e.store.UpdateByID(ctx, existing.ID, candidate)
		if err != nil {
			return err
		}
		if updated == nil {
			return fmt.Errorf("record %s vanished during sync", existing.ID)
		}
		result.Updated++
		return nil
	}

	// New record: the owner is always the caller, whatever the candidate
	// claims.
	candidate.ID = ""
	candidate.UserID = ident.UserID

	if err := e.validate.Validate(candidate); err != nil {
		return err
	}
	if _, err := e.store.Create(ctx, candidate); err != nil {
		return err
	}
	result.Added++
	return nil
}
