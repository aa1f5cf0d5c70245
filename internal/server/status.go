package server

import (
	"net/http"

	"github.com/benk79tb/keripy/kering"
)

// statusTable is checked in order; the first kind the error is-a wins, so
// more specific kinds come before their ancestors.
var statusTable = []struct {
	kind   kering.Kind
	status int
}{
	{kering.ErrShortage, http.StatusBadRequest},
	{kering.ErrExtraction, http.StatusBadRequest},
	{kering.ErrInvalidEventType, http.StatusUnprocessableEntity},
	{kering.ErrValidation, http.StatusUnprocessableEntity},
	{kering.ErrAuthN, http.StatusUnauthorized},
	{kering.ErrAuthZ, http.StatusForbidden},
	{kering.ErrMissingEntry, http.StatusNotFound},
	{kering.ErrClosed, http.StatusServiceUnavailable},
	{kering.ErrConfiguration, http.StatusInternalServerError},
	{kering.ErrExchange, http.StatusBadRequest},
	{kering.ErrMaterial, http.StatusBadRequest},
}

// StatusFor maps err to an HTTP status by the ancestry of its kind.
func StatusFor(err error) int {
	for _, entry := range statusTable {
		if kering.IsKind(err, entry.kind) {
			return entry.status
		}
	}
	return http.StatusInternalServerError
}

// ErrorBody is the JSON shape of every failed response.
type ErrorBody struct {
	Kind      string   `json:"kind"`
	Ancestry  []string `json:"ancestry"`
	Message   string   `json:"message"`
	RequestID string   `json:"request_id"`

	// Messages lists what a batch handled before it failed.
	Messages []MessageResult `json:"messages,omitempty"`
}

func errorBody(err error, requestID string) ErrorBody {
	body := ErrorBody{Kind: "unclassified", Message: err.Error(), RequestID: requestID}
	if kind, ok := kering.KindOf(err); ok {
		body.Kind = kind.String()
		body.Ancestry = kering.Ancestry(err)
	}
	return body
}
