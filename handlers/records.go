package handlers

import (
	"errors"
	"fmt"
	"record-sync/app"
	"record-sync/middleware"
	"record-sync/models"
	"record-sync/query"
	"record-sync/realtime"
	"record-sync/validator"

	"github.com/gofiber/fiber/v2"
)

// GetRecords lists the caller's records with filtering, sorting,
// projection and pagination taken from the query string.
func GetRecords(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		ident := middleware.GetIdentity(c)

		opts, err := query.Parse(c.Queries(), ident.UserID, ident.IsAdmin())
		if err != nil {
			var parseErr *query.ParseError
			if errors.As(err, &parseErr) {
				return badRequest(c, parseErr.Error())
			}
			return serverErrorWithDetails(c, "Server Error", err)
		}

		result, err := query.Run(c.Context(), a.Store, opts)
		if err != nil {
			return serverErrorWithDetails(c, "Server Error", err)
		}

		return c.JSON(fiber.Map{
			"success":    true,
			"count":      result.Count,
			"pagination": result.Pagination,
			"data":       result.Items,
		})
	}
}

// GetRecord retrieves a single record by id
func GetRecord(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := loadOwnedRecord(c, a, "access")
		if rec == nil {
			return err
		}

		return success(c, rec)
	}
}

// CreateRecord creates a new record owned by the caller
func CreateRecord(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var rec models.Record
		if err := c.BodyParser(&rec); err != nil {
			return badRequest(c, "Invalid request body")
		}

		ident := middleware.GetIdentity(c)

		// Owner is always the caller, whatever the body says
		rec.ID = ""
		rec.UserID = ident.UserID
		rec.ApplyDefaults()

		if err := a.Validator.Validate(&rec); err != nil {
			return validationError(c, err)
		}

		createdRec, err := a.Store.Create(c.Context(), &rec)
		if err != nil {
			return serverErrorWithDetails(c, "Failed to create record", err)
		}

		a.Hub.Publish(createdRec.UserID, realtime.RecordEvent(createdRec))

		return created(c, createdRec)
	}
}

// UpdateRecord merges the supplied fields into a record; fields absent
// from the body keep their stored values
func UpdateRecord(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := loadOwnedRecord(c, a, "update")
		if rec == nil {
			return err
		}

		// Decode into a copy of the stored record so the body only
		// overwrites the fields it carries.
		patch := *rec
		if err := c.BodyParser(&patch); err != nil {
			return badRequest(c, "Invalid request body")
		}

		patch.ID = rec.ID
		patch.UserID = rec.UserID
		patch.CreatedAt = rec.CreatedAt
		patch.ApplyDefaults()

		if err := a.Validator.Validate(&patch); err != nil {
			return validationError(c, err)
		}

		updated, err := a.Store.UpdateByID(c.Context(), rec.ID, &patch)
		if err != nil {
			return serverErrorWithDetails(c, "Failed to update record", err)
		}
		if updated == nil {
			return notFound(c, fmt.Sprintf("Record not found with id of %s", rec.ID))
		}

		a.Hub.Publish(updated.UserID, realtime.RecordEvent(updated))

		return success(c, updated)
	}
}

// DeleteRecord removes a record
func DeleteRecord(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		rec, err := loadOwnedRecord(c, a, "delete")
		if rec == nil {
			return err
		}

		deleted, err := a.Store.DeleteByID(c.Context(), rec.ID)
		if err != nil {
			return serverErrorWithDetails(c, "Failed to delete record", err)
		}
		if !deleted {
			return notFound(c, fmt.Sprintf("Record not found with id of %s", rec.ID))
		}

		return success(c, fiber.Map{})
	}
}

// SyncRecords reconciles a batch of device-collected records. The batch is
// at-least-once: a mid-batch failure leaves earlier writes applied and
// reports a server error.
func SyncRecords(a *app.App) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var batch []*models.Record
		if err := c.BodyParser(&batch); err != nil {
			return badRequest(c, "Invalid request body")
		}
		for _, rec := range batch {
			if rec == nil {
				return badRequest(c, "Invalid request body")
			}
		}

		ident := middleware.GetIdentity(c)

		result, err := a.Sync.Sync(c.Context(), ident, batch)
		if err != nil {
			return serverErrorWithDetails(c, "Server Error", err)
		}

		for _, rec := range batch {
			a.Hub.Publish(rec.UserID, realtime.RecordEvent(rec))
		}

		return success(c, result)
	}
}

// loadOwnedRecord fetches the record in :id and enforces ownership: only
// the owner or an admin may act on it. A nil record means the response has
// already been written.
func loadOwnedRecord(c *fiber.Ctx, a *app.App, action string) (*models.Record, error) {
	id := c.Params("id")
	ident := middleware.GetIdentity(c)

	rec, err := a.Store.FindByID(c.Context(), id)
	if err != nil {
		return nil, serverErrorWithDetails(c, "Server Error", err)
	}
	if rec == nil {
		return nil, notFound(c, fmt.Sprintf("Record not found with id of %s", id))
	}

	if rec.UserID != ident.UserID && !ident.IsAdmin() {
		return nil, unauthorized(c, fmt.Sprintf("User %s is not authorized to %s this record", ident.UserID, action))
	}

	return rec, nil
}

func validationError(c *fiber.Ctx, err error) error {
	var verrs validator.ValidationErrors
	if errors.As(err, &verrs) {
		return badRequest(c, verrs.Error())
	}
	return badRequest(c, err.Error())
}
