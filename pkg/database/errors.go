package database

import (
	stderrors "errors"
	"strings"

	"github.com/farmaflow/farmaflow-backend/pkg/errors"
	"github.com/lib/pq"
)

// MapPQError converts a PostgreSQL error to an AppError with a meaningful message.
// Returns nil if err does not wrap a *pq.Error or the code is not one we translate.
func MapPQError(err error) *errors.AppError {
	var pqErr *pq.Error
	if !stderrors.As(err, &pqErr) {
		return nil
	}

	switch pqErr.Code {
	case "23514": // check_violation
		return mapCheckConstraint(pqErr)

	case "23505": // unique_violation
		return errors.Conflict(formatConstraintMessage(pqErr))

	case "23503": // foreign_key_violation
		return errors.BadRequest("referenced record does not exist")

	case "23502": // not_null_violation
		return errors.Validation(map[string]string{
			columnOrDefault(pqErr, "required field"): "must not be empty",
		})

	case "22P02": // invalid_text_representation
		return errors.BadRequest("malformed value for " + columnOrDefault(pqErr, "identifier"))

	default:
		return nil
	}
}

func columnOrDefault(pqErr *pq.Error, fallback string) string {
	if pqErr.Column != "" {
		return pqErr.Column
	}
	return fallback
}

func mapCheckConstraint(pqErr *pq.Error) *errors.AppError {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Validation(map[string]string{
			"current_quantity": "must not be negative",
		})

	case strings.Contains(constraint, "price_non_negative"):
		return errors.Validation(map[string]string{
			"price": "must not be negative",
		})

	default:
		return errors.BadRequest("data validation failed: " + constraint)
	}
}

func formatConstraintMessage(pqErr *pq.Error) string {
	constraint := pqErr.Constraint

	switch {
	case strings.Contains(constraint, "batch_number"):
		return "a lot with this batch number already exists for the product"
	case strings.Contains(constraint, "product_code"):
		return "a product with this code already exists"
	default:
		return "a record with these values already exists"
	}
}
