package handlers

import (
	"bytes"
	"encoding/json"
	"net/http"
	"time"

	"github.com/openrfs/rfsd/internal/rfserr"
)

// Response is the standard JSON envelope wrapping every non-stream
// endpoint's payload.
type Response struct {
	Status    string      `json:"status"`
	Timestamp time.Time   `json:"timestamp"`
	Data      interface{} `json:"data,omitempty"`
	Error     string      `json:"error,omitempty"`
}

// writeJSON writes data wrapped in the standard envelope. Encoding goes
// to a buffer first so a marshal failure doesn't leave a half-written
// response on the wire.
func writeJSON(w http.ResponseWriter, status int, data interface{}) {
	var buf bytes.Buffer
	if err := json.NewEncoder(&buf).Encode(Response{
		Status:    "ok",
		Timestamp: time.Now().UTC(),
		Data:      data,
	}); err != nil {
		http.Error(w, `{"status":"error","error":"failed to encode response"}`, http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_, _ = w.Write(buf.Bytes())
}

// writeError maps err to the identifier/status pair in the error
// taxonomy and writes it in the standard envelope. Anything that isn't
// an *rfserr.Error becomes EIO with the underlying message as detail.
func writeError(w http.ResponseWriter, err error) {
	rerr, ok := rfserr.As(err)
	if !ok {
		rerr = rfserr.IOFailure("", err)
	}

	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(Response{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     rerr.Code.String(),
		Data: map[string]string{
			"message": rerr.Message,
			"details": rerr.Details,
		},
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(rerr.Code.Status())
	_, _ = w.Write(buf.Bytes())
}

// WriteUnauthorized writes the 401 response for the auth collaborator's
// own failure mode, the one status in the taxonomy that doesn't come
// from an *rfserr.Error. Exported so the auth middleware can use it as
// its Unauthorized callback.
func WriteUnauthorized(w http.ResponseWriter, _ *http.Request) {
	var buf bytes.Buffer
	_ = json.NewEncoder(&buf).Encode(Response{
		Status:    "error",
		Timestamp: time.Now().UTC(),
		Error:     "UNAUTHENTICATED",
	})
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusUnauthorized)
	_, _ = w.Write(buf.Bytes())
}
