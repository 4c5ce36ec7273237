package ingest

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/google/uuid"

	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

var storageKeyPattern = regexp.MustCompile(`^(?i)uploads/([0-9a-f]{8}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{4}-[0-9a-f]{12})\.pdf$`)

// ParseStorageKey extracts the file ID from an object key of the form
// uploads/<uuid>.pdf. The match is case-insensitive and must cover the
// whole key.
func ParseStorageKey(key string) (uuid.UUID, error) {
	m := storageKeyPattern.FindStringSubmatch(key)
	if m == nil {
		return uuid.Nil, apperrors.WithDetail(
			apperrors.CodeInvalidKeyFormat,
			"object key does not match uploads/<uuid>.pdf",
			map[string]any{"key": key},
			nil,
		)
	}
	id, err := uuid.Parse(m[1])
	if err != nil {
		return uuid.Nil, apperrors.Wrap(apperrors.CodeInvalidKeyFormat, "object key contains an invalid uuid", err)
	}
	return id, nil
}

// BuildStorageKey produces the canonical object key for a file ID.
func BuildStorageKey(id uuid.UUID) string {
	return fmt.Sprintf("uploads/%s.pdf", id)
}

const maxFilenameLength = 255

var forbiddenFilenameChars = `/\<>:"|?*`

// ValidateFilename checks a client supplied upload name. The name is only
// echoed back to the model later, so the rules are deliberately loose: a
// .pdf suffix, a sane length, and no path or shell metacharacters.
func ValidateFilename(name string) error {
	if name == "" || len(name) > maxFilenameLength {
		return apperrors.Wrap(apperrors.CodeValidationFailure, "filename must be between 1 and 255 characters", nil)
	}
	if !strings.HasSuffix(strings.ToLower(name), ".pdf") {
		return apperrors.WithDetail(
			apperrors.CodeValidationFailure,
			"filename must end with .pdf",
			map[string]any{"filename": name},
			nil,
		)
	}
	if strings.ContainsAny(name, forbiddenFilenameChars) {
		return apperrors.WithDetail(
			apperrors.CodeValidationFailure,
			"filename contains forbidden characters",
			map[string]any{"filename": name},
			nil,
		)
	}
	return nil
}
