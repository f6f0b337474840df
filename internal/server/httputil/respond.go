package httputil

import (
	"net/http"

	"go.uber.org/zap"

	apperrors "github.com/XuanDongVo/Rental-Home-sub001/pkg/errors"
	"github.com/XuanDongVo/Rental-Home-sub001/pkg/json"
)

type errorBody struct {
	Error struct {
		Code    apperrors.Code `json:"code"`
		Message string         `json:"message"`
	} `json:"error"`
}

// WriteJSON writes v as a JSON response with the given status.
func WriteJSON(log *zap.Logger, w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error("failed to write JSON response", zap.Error(err))
	}
}

// WriteError maps a service error onto the HTTP status for its taxonomy code.
func WriteError(log *zap.Logger, w http.ResponseWriter, err error) {
	code := apperrors.CodeOf(err)
	status := apperrors.HTTPStatus(code)
	if status >= http.StatusInternalServerError {
		log.Error("request failed", zap.Error(err))
	}
	var body errorBody
	body.Error.Code = code
	body.Error.Message = err.Error()
	WriteJSON(log, w, status, body)
}
