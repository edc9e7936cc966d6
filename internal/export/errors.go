package export

import "errors"

// Validation errors. All of them are returned before anything is rendered.
var (
	ErrInvalidSelection = errors.New("invalid selection")
	ErrInvalidRange     = errors.New("invalid page range")
	ErrInvalidIndex     = errors.New("page index out of range")
	ErrNothingToExport  = errors.New("nothing to export")
	ErrNoRecords        = errors.New("no records loaded")
)

// IsValidation reports whether err rejects the request rather than failing it
func IsValidation(err error) bool {
	return errors.Is(err, ErrInvalidSelection) ||
		errors.Is(err, ErrInvalidRange) ||
		errors.Is(err, ErrInvalidIndex) ||
		errors.Is(err, ErrNothingToExport) ||
		errors.Is(err, ErrNoRecords)
}
