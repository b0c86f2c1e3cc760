package database

import (
	"strings"

	"github.com/lib/pq"
	"github.com/pharmacy/pharmacy-backend/pkg/errors"
)

// MapError translates PostgreSQL constraint and concurrency failures into
// AppErrors. Any other error is returned unchanged, nil included.
func MapError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return err
	}

	switch pqErr.Code.Name() {
	case "check_violation":
		return checkViolation(pqErr.Constraint)
	case "unique_violation":
		return errors.Conflict(uniqueViolation(pqErr.Constraint))
	case "foreign_key_violation":
		return errors.BadRequest("referenced record does not exist")
	case "not_null_violation":
		col := pqErr.Column
		if col == "" {
			col = "required field"
		}
		return errors.Validation(map[string]string{col: "must not be empty"})
	case "serialization_failure", "deadlock_detected":
		return errors.Unavailable("concurrent update conflict, retry the request")
	}
	return err
}

func checkViolation(constraint string) error {
	switch {
	case strings.Contains(constraint, "quantity_non_negative"):
		return errors.Conflict("stock quantity cannot become negative")
	case strings.Contains(constraint, "quantity_positive"):
		return errors.Validation(map[string]string{"quantity": "must be greater than zero"})
	case strings.Contains(constraint, "status_valid"):
		return errors.Validation(map[string]string{"status": "must be one of: NEW, COMPLETED, CANCELLED"})
	}
	return errors.BadRequest("data validation failed: " + constraint)
}

func uniqueViolation(constraint string) string {
	switch {
	case strings.Contains(constraint, "report_name"):
		return "a usage record for this report already exists"
	case strings.Contains(constraint, "pharmacy_medications_pkey"):
		return "this medication is already stocked at the pharmacy"
	}
	return "a record with these values already exists"
}
