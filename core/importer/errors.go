package importer

import "github.com/pkg/errors"

// Batch-scoped errors: they abort the whole upload and are returned wrapped in a core.ValidationError.
var (
	ErrMalformedUpload = errors.New("missing, empty or malformed file")
	ErrDecodingFailure = errors.New("unable to detect the file encoding")
	ErrUnknownAction   = errors.New("unknown action: expected one of create, update, delete")
	ErrAllRowsInvalid  = errors.New("all data invalid: no row can be imported")
	ErrUnknownKind     = errors.New("unknown entity kind")
)

// Row-scoped messages.
const (
	msgDuplicate       = "duplicate within upload"
	msgExists          = "already exists"
	msgNotFound        = "does not exist"
	msgInvalidStudents = "invalid student numbers"
)
