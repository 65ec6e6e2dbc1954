// internal/errors/mapper.go
package errors

import (
	"context"
	"errors"

	"gorm.io/gorm"
)

// Map converts repo/infra errors into the service error taxonomy.
// Errors that already carry a kind pass through untouched.
func Map(err error) error {
	if err == nil {
		return nil
	}
	if KindOf(err) != KindUnknown {
		return err
	}

	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return newErr(KindNotFound, "record not found", err)

	case errors.Is(err, gorm.ErrDuplicatedKey):
		return newErr(KindConflict, "already exists", err)

	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return newErr(KindNotFound, "referenced user not found", err)

	case errors.Is(err, context.DeadlineExceeded):
		return newErr(KindStorage, "request timed out", err)

	case errors.Is(err, context.Canceled):
		return newErr(KindStorage, "request was canceled", err)

	default:
		return newErr(KindStorage, "storage failure", err)
	}
}
