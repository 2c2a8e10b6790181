package server

import (
	"context"
	"errors"
	"net/http"

	"goa.design/clue/log"
	goahttp "goa.design/goa/v3/http"

	apperrors "almondsense/pkg/errors"
)

var statusByCode = map[apperrors.ErrorCode]int{
	apperrors.ErrCodeNotFound:      http.StatusNotFound,
	apperrors.ErrCodeUnauthorized:  http.StatusUnauthorized,
	apperrors.ErrCodeForbidden:     http.StatusForbidden,
	apperrors.ErrCodeBadRequest:    http.StatusBadRequest,
	apperrors.ErrCodeValidation:    http.StatusBadRequest,
	apperrors.ErrCodeConflict:      http.StatusConflict,
	apperrors.ErrCodeRateLimited:   http.StatusTooManyRequests,
	apperrors.ErrCodeUnavailable:   http.StatusServiceUnavailable,
	apperrors.ErrCodeInternalError: http.StatusInternalServerError,
}

// StatusOf returns the HTTP status for err.
func StatusOf(err error) int {
	if s, ok := statusByCode[apperrors.CodeOf(err)]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// writeError encodes err the way goa encodes service errors. Messages of
// non-application errors are never sent to the client.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := StatusOf(err)
	code := apperrors.CodeOf(err)
	msg := "internal server error"
	var appErr *apperrors.AppError
	if errors.As(err, &appErr) {
		msg = appErr.Message
	}
	if status >= http.StatusInternalServerError {
		log.Errorf(ctx, err, "request failed")
	} else {
		log.Debugf(ctx, "request rejected: %v", err)
	}
	writeJSON(ctx, w, status, &goahttp.ErrorResponse{
		Name:    string(code),
		ID:      requestID(ctx),
		Message: msg,
		Fault:   status >= http.StatusInternalServerError,
	})
}

func writeJSON(ctx context.Context, w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v == nil {
		return
	}
	if err := goahttp.ResponseEncoder(ctx, w).Encode(v); err != nil {
		log.Errorf(ctx, err, "failed to encode response")
	}
}

func decode(r *http.Request, v any) error {
	if err := goahttp.RequestDecoder(r).Decode(v); err != nil {
		return apperrors.Wrap(apperrors.ErrCodeBadRequest, "invalid request body", err)
	}
	return nil
}
