package services

import "errors"

var (
	// ErrOwnershipMismatch means the resource exists but belongs to a
	// different user. Handlers surface it as 404 to avoid leaking
	// existence.
	ErrOwnershipMismatch = errors.New("resource not owned by caller")

	// ErrPermissionDenied means the operation is not allowed in the
	// resource's current state.
	ErrPermissionDenied = errors.New("operation not permitted")

	// ErrDocumentNotReady means the document has not completed
	// processing and cannot be indexed yet.
	ErrDocumentNotReady = errors.New("document processing not completed")
)
