package api

import (
	"encoding/json"
	"io"
	"net/http"

	"github.com/nexusnav/nexusnav/internal/errors"
	"github.com/nexusnav/nexusnav/internal/logger"
	"github.com/nexusnav/nexusnav/internal/wire"
)

// DefaultBodyLimit caps request bodies. Background images are the largest
// legitimate payload.
const DefaultBodyLimit = 4 << 20

var nullData = json.RawMessage("null")

// writeEnvelope sends env with status. Encoding failures are only logged;
// the header is already out.
func writeEnvelope(w http.ResponseWriter, log logger.Logger, status int, env wire.Envelope) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(env); err != nil {
		log.Warn("failed to encode response: %v", err)
	}
}

// respondOK wraps data in a success envelope.
func respondOK(w http.ResponseWriter, log logger.Logger, data interface{}) {
	raw := nullData
	if data != nil {
		b, err := json.Marshal(data)
		if err != nil {
			respondError(w, log, errors.WrapWithCode(err, errors.ErrStorage, "Cannot encode response", ""))
			return
		}
		raw = b
	}
	writeEnvelope(w, log, http.StatusOK, wire.Envelope{Code: wire.CodeOK, Message: "ok", Data: raw})
}

// respondError maps err to its HTTP status and a public message. Server
// side failures are logged with their cause.
func respondError(w http.ResponseWriter, log logger.Logger, err error) {
	status := errors.HTTPStatus(err)
	if status >= http.StatusInternalServerError {
		log.Error("request failed: %s", errors.Detail(err))
	} else {
		log.Debug("request rejected (%d): %s", status, errors.Detail(err))
	}
	respondStatus(w, log, status, errors.Public(err))
}

// respondStatus sends an error envelope with a fixed message.
func respondStatus(w http.ResponseWriter, log logger.Logger, status int, message string) {
	writeEnvelope(w, log, status, wire.Envelope{Code: status, Message: message, Data: nullData})
}

// decodeJSON reads a JSON body into v.
func decodeJSON(r *http.Request, v interface{}) error {
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil {
		if err == io.EOF {
			return errors.New(errors.ErrValidation, "Request body is required", "")
		}
		return errors.WrapWithCode(err, errors.ErrValidation, "Invalid request body", "")
	}
	return nil
}
