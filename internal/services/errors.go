package services

import "errors"

var (
	// ErrForbidden means the user lacks the permission or building
	// access required for the operation.
	ErrForbidden = errors.New("forbidden")

	// ErrInvalidTransition means the requested defect status change is
	// not a legal workflow edge.
	ErrInvalidTransition = errors.New("invalid defect status transition")

	// ErrNoActiveInspection means no processed inspection exists for
	// the requested building.
	ErrNoActiveInspection = errors.New("no active inspection for building")

	// ErrUnsupportedFormat means the requested report format is not
	// one of excel, word, pdf or csv.
	ErrUnsupportedFormat = errors.New("unsupported report format")

	// ErrLastAdmin guards against removing the only active admin.
	ErrLastAdmin = errors.New("cannot remove the last active admin")
)
