package core

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strings"

	"github.com/Beez1/bounceinsights/internal/types"
)

// maxRequestBodySize bounds request bodies; it admits four inline base64
// images for the comparator.
const maxRequestBodySize = 20 << 20

// internalErrorMessage is shown for errors that carry no AppError.
const internalErrorMessage = "an unexpected error occurred"

// ErrorResponse is the body of every non-2xx response. Details is either a
// human-readable string or a structured object.
type ErrorResponse struct {
	Error            string `json:"error"`
	Details          any    `json:"details,omitempty"`
	Code             string `json:"code"`
	RequestID        string `json:"requestId,omitempty"`
	ProcessingTimeMs int64  `json:"processingTimeMs"`
}

// JSON writes data as a JSON response with the given status. If data cannot
// be marshalled a 500 envelope is written instead.
func JSON(w http.ResponseWriter, r *http.Request, status int, data any) {
	body, err := json.Marshal(data)
	if err != nil {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusInternalServerError)
		_ = json.NewEncoder(w).Encode(ErrorResponse{
			Error:            "failed to marshal response",
			Code:             string(types.ErrCodeInternalUnexpected),
			RequestID:        types.GetRequestID(r.Context()),
			ProcessingTimeMs: types.ElapsedMs(r.Context()),
		})
		return
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(body)
}

// Error writes the error envelope for err:
//   - an AppError (anywhere in the chain) uses its code for the status;
//   - a context deadline or cancellation becomes a 408 timeout;
//   - anything else is a 500 with a fixed message, so wrapped internals
//     never reach the client.
func Error(w http.ResponseWriter, r *http.Request, err error) {
	JSON(w, r, statusOf(err), NewErrorResponse(r, err))
}

// NewErrorResponse builds the envelope for err without writing it.
func NewErrorResponse(r *http.Request, err error) ErrorResponse {
	resp := ErrorResponse{
		RequestID:        types.GetRequestID(r.Context()),
		ProcessingTimeMs: types.ElapsedMs(r.Context()),
	}

	var appErr *types.AppError
	if errors.As(err, &appErr) {
		resp.Error = appErr.Message
		resp.Code = string(appErr.Code)
		switch {
		case len(appErr.Details) > 0:
			resp.Details = appErr.Details
		case appErr.Detail != "":
			resp.Details = appErr.Detail
		}
		return resp
	}

	code := types.CodeOf(err)
	resp.Code = string(code)
	if code.HTTPStatus() == http.StatusRequestTimeout {
		resp.Error = "Request timed out"
	} else {
		resp.Code = string(types.ErrCodeInternalUnexpected)
		resp.Error = internalErrorMessage
	}
	return resp
}

func statusOf(err error) int {
	var appErr *types.AppError
	if errors.As(err, &appErr) {
		return appErr.HTTPStatus()
	}
	if status := types.CodeOf(err).HTTPStatus(); status == http.StatusRequestTimeout {
		return status
	}
	return http.StatusInternalServerError
}

// DecodeJSON reads the request body into dst. Unknown fields, trailing
// values, empty bodies and oversized bodies are rejected with a
// validation_invalid_json AppError.
func DecodeJSON(w http.ResponseWriter, r *http.Request, dst any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxRequestBodySize)

	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()

	if err := dec.Decode(dst); err != nil {
		return mapDecodeError(err)
	}
	if dec.More() {
		return invalidJSON("request body must contain a single JSON object", nil)
	}
	return nil
}

func invalidJSON(msg string, err error) *types.AppError {
	return types.NewAppError(types.ErrCodeValidationInvalidJSON, msg, err)
}

// mapDecodeError translates a json.Decoder error into an AppError.
func mapDecodeError(err error) *types.AppError {
	var maxBytesErr *http.MaxBytesError
	if errors.As(err, &maxBytesErr) {
		return invalidJSON("request body is too large", err)
	}

	var syntaxErr *json.SyntaxError
	if errors.As(err, &syntaxErr) || errors.Is(err, io.ErrUnexpectedEOF) {
		return invalidJSON("malformed JSON in request body", err)
	}

	var typeErr *json.UnmarshalTypeError
	if errors.As(err, &typeErr) {
		return types.NewAppErrorWithDetails(types.ErrCodeValidationInvalidJSON, "invalid value for field", err,
			map[string]any{
				"field":    typeErr.Field,
				"expected": typeErr.Type.String(),
			})
	}

	if field, ok := strings.CutPrefix(err.Error(), "json: unknown field "); ok {
		return invalidJSON("unknown field in request body: "+field, err)
	}

	if errors.Is(err, io.EOF) {
		return invalidJSON("request body must not be empty", err)
	}

	// Custom UnmarshalJSON methods (the time-travel location) report through
	// here; their messages are written for callers.
	return types.ValidationError(types.ErrCodeValidationInvalidRequest, "Invalid input", err.Error())
}
