package engine

import (
	"errors"
	"fmt"

	"bandstand/api/internal/mutation"
)

// Input errors: the batch or envelope is unusable before any business rule
// runs. Surfaced as client errors; the batch is not started (or aborted at
// the failing mutation).
var (
	ErrEmptyBatch    = errors.New("mutation batch is empty")
	ErrKeyRequired   = errors.New("mutation key is required")
	ErrInvalidKey    = errors.New("mutation key must be a numeric id")
	ErrValueRequired = errors.New("mutation value is required")
)

var (
	ErrNotFound            = errors.New("target row not found")
	ErrPermissionDenied    = errors.New("not allowed to remove this content")
	ErrDuplicateReaction   = errors.New("reaction already exists")
	ErrParentNotFound      = errors.New("parent content node does not exist")
	ErrContentTypeNotFound = errors.New("content type does not exist")
)

// UnknownCollectionError indicates a protocol mismatch with the caller:
// the batch names a collection this engine does not manage.
type UnknownCollectionError struct {
	Collection string
}

func (e *UnknownCollectionError) Error() string {
	return fmt.Sprintf("unknown collection %q", e.Collection)
}

// UnknownOperationError indicates an operation kind the engine does not
// recognize for an otherwise known collection.
type UnknownOperationError struct {
	Kind mutation.Kind
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation %q", e.Kind)
}
