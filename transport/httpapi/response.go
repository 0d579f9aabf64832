package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	shopAuth "github.com/MrEthical07/shopAuth"
)

const maxBodyBytes = 1 << 16

type errorBody struct {
	Kind       shopAuth.ErrorKind `json:"kind"`
	Message    string             `json:"message"`
	Fields     map[string]string  `json:"fields,omitempty"`
	RetryAfter int                `json:"retry_after,omitempty"`
}

type errorResponse struct {
	Error errorBody `json:"error"`
}

type messageResponse struct {
	Message string `json:"message"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Error("response encode failed", slog.String("error", err.Error()))
	}
}

func writeError(w http.ResponseWriter, err error) {
	pub := shopAuth.AsError(err)
	if pub.RetryAfter > 0 {
		w.Header().Set("Retry-After", strconv.Itoa(pub.RetryAfter))
	}
	writeJSON(w, pub.HTTPStatus(), errorResponse{Error: errorBody{
		Kind:       pub.Kind,
		Message:    pub.Message,
		Fields:     pub.Fields,
		RetryAfter: pub.RetryAfter,
	}})
}

// decode reads one JSON object of at most maxBodyBytes into dst.
func decode(w http.ResponseWriter, r *http.Request, dst any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		msg := "must be a JSON object"
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			msg = "is too large"
		}
		writeError(w, &shopAuth.Error{
			Kind:    shopAuth.KindValidation,
			Message: shopAuth.ErrValidation.Message,
			Fields:  map[string]string{"body": msg},
		})
		return false
	}
	return true
}
