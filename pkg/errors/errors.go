package errors

import "errors"

// Error codes shared across the service. Adapters are the only layer that
// converts raw transport failures into these codes; everything above them
// branches on the code, never on the underlying error text.
const (
	CodeBlobNotFound        = "BlobNotFound"
	CodeBlobAccessDenied    = "BlobAccessDenied"
	CodeBlobUnavailable     = "BlobUnavailable"
	CodeInvalidKeyFormat    = "InvalidKeyFormat"
	CodeCatalogUnavailable  = "CatalogUnavailable"
	CodeRecordNotFound      = "RecordNotFound"
	CodeValidationFailure   = "ValidationFailure"
	CodeExtractionFailure   = "ExtractionFailure"
	CodeEmbeddingFailure    = "EmbeddingFailure"
	CodeVectorUpsertFailure = "VectorUpsertFailure"
	CodeVectorQueryFailure  = "VectorQueryFailure"
	CodeLLMFailure          = "LLMFailure"
	CodeLockUnavailable     = "LockUnavailable"
	CodeConversationBusy    = "ConversationBusy"
)

// AppError encodes domain specific error details.
type AppError struct {
	Code    string
	Message string
	Detail  map[string]any
	Err     error
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return e.Message + ": " + e.Err.Error()
	}
	return e.Message
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Wrap produces a new AppError instance.
func Wrap(code, message string, err error) error {
	return &AppError{Code: code, Message: message, Err: err}
}

// WithDetail attaches a structured detail object for the HTTP error body.
func WithDetail(code, message string, detail map[string]any, err error) error {
	return &AppError{Code: code, Message: message, Detail: detail, Err: err}
}

// IsCode helps handlers differentiate failures.
func IsCode(err error, code string) bool {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// CodeOf returns the code of the nearest AppError, or "" for plain errors.
func CodeOf(err error) string {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// DetailOf returns the detail map of the nearest AppError, if any.
func DetailOf(err error) map[string]any {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Detail
	}
	return nil
}
