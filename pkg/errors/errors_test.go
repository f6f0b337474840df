package errors

import (
	stderrors "errors"
	"net/http"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCodeOf(t *testing.T) {
	tests := []struct {
		name string
		err  error
		code Code
	}{
		{"validation", Validation("bad input"), CodeValidation},
		{"permission", Permission("denied"), CodePermission},
		{"invalid state", InvalidState("recalled"), CodeInvalidState},
		{"not found", NotFound("missing"), CodeNotFound},
		{"transport", Transport("stream down", stderrors.New("eof")), CodeTransport},
		{"internal", Internal("boom", stderrors.New("sql")), CodeInternal},
		{"plain error", stderrors.New("plain"), CodeUnknown},
		{"nil", nil, CodeUnknown},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.code, CodeOf(tt.err))
			assert.Equal(t, tt.code == CodeOf(tt.err), Is(tt.err, tt.code))
		})
	}
}

func TestUnwrapPreservesCause(t *testing.T) {
	cause := stderrors.New("row locked")
	err := Internal("failed to edit message", cause)
	assert.True(t, stderrors.Is(err, cause))
	assert.Contains(t, err.Error(), "failed to edit message")
	assert.Contains(t, err.Error(), "row locked")
}

func TestHTTPStatus(t *testing.T) {
	assert.Equal(t, http.StatusBadRequest, HTTPStatus(CodeValidation))
	assert.Equal(t, http.StatusForbidden, HTTPStatus(CodePermission))
	assert.Equal(t, http.StatusNotFound, HTTPStatus(CodeNotFound))
	assert.Equal(t, http.StatusConflict, HTTPStatus(CodeInvalidState))
	assert.Equal(t, http.StatusServiceUnavailable, HTTPStatus(CodeTransport))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeInternal))
	assert.Equal(t, http.StatusInternalServerError, HTTPStatus(CodeUnknown))
}
