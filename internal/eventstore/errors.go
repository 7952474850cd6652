package eventstore

import (
	"git.home.luguber.info/inful/assetmanifest/internal/foundation/errors"
)

var (
	// ErrDatabaseOpenFailed indicates the SQLite database could not be opened.
	ErrDatabaseOpenFailed = errors.EventStoreError("could not open manifest history database").Build()

	// ErrInitializeSchemaFailed indicates the database schema could not be initialized.
	ErrInitializeSchemaFailed = errors.EventStoreError("failed to initialize manifest history schema").Build()

	// ErrAppendFailed indicates storing a record failed.
	ErrAppendFailed = errors.EventStoreError("failed to append manifest record").Build()

	// ErrQueryFailed indicates querying records failed.
	ErrQueryFailed = errors.EventStoreError("failed to query manifest history").Build()

	// ErrNotFound indicates no record matched.
	ErrNotFound = errors.NewError(errors.CategoryNotFound, "manifest record not found").Build()
)
