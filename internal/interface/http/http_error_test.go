package http

import (
	"net/http"
	"testing"

	"github.com/stretchr/testify/require"

	apperrors "github.com/yanqian/pdfchat/pkg/errors"
)

func TestStatusForCode(t *testing.T) {
	cases := []struct {
		code   string
		status int
	}{
		{apperrors.CodeValidationFailure, http.StatusBadRequest},
		{apperrors.CodeInvalidKeyFormat, http.StatusBadRequest},
		{apperrors.CodeRecordNotFound, http.StatusNotFound},
		{apperrors.CodeBlobNotFound, http.StatusNotFound},
		{apperrors.CodeConversationBusy, http.StatusConflict},
		{apperrors.CodeLockUnavailable, http.StatusBadGateway},
		{apperrors.CodeLLMFailure, http.StatusBadGateway},
		{apperrors.CodeEmbeddingFailure, http.StatusBadGateway},
		{apperrors.CodeCatalogUnavailable, http.StatusBadGateway},
		{"SomethingElse", http.StatusInternalServerError},
	}
	for _, tc := range cases {
		require.Equal(t, tc.status, statusForCode(tc.code), tc.code)
	}
}

func TestAsHTTPErrorCarriesCodeAndDetail(t *testing.T) {
	err := apperrors.WithDetail(apperrors.CodeInvalidKeyFormat, "bad key", map[string]any{"key": "x"}, nil)

	httpErr := asHTTPError(err)
	require.Equal(t, http.StatusBadRequest, httpErr.Status)
	require.Equal(t, "InvalidKeyFormat", httpErr.Code)
	require.Equal(t, "bad key", httpErr.Message)
	require.Equal(t, map[string]any{"key": "x"}, httpErr.Detail)
}
