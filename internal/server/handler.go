package server

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/Sternrassler/gh-api-bridge/pkg/bridge"
	"github.com/rs/zerolog/hlog"
)

// Query parameters.
const (
	ParamUsername = "username"
	ParamAction   = "action"
)

// Envelope is the response body written for every query.
type Envelope struct {
	Code     int             `json:"code"`
	Response json.RawMessage `json:"response"`
}

// queryHandler decodes ?username=&action= and writes the resolve result.
func queryHandler(resolver Resolver) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		query := r.URL.Query()

		username, msg := stringParam(query, ParamUsername, true)
		if msg != "" {
			writeEnvelope(w, r, http.StatusBadRequest, bridge.ErrorBody(msg))
			return
		}
		act, msg := stringParam(query, ParamAction, false)
		if msg != "" {
			writeEnvelope(w, r, http.StatusBadRequest, bridge.ErrorBody(msg))
			return
		}

		res := resolver.Resolve(r.Context(), username, act)
		if res.Cached {
			w.Header().Set("X-Cache", "HIT")
		} else if res.Err == nil {
			w.Header().Set("X-Cache", "MISS")
		}
		writeEnvelope(w, r, res.Code, res.Body)
	}
}

// stringParam returns a single-valued query parameter, or the error message
// to report. Repeated or bracketed parameters are not strings.
func stringParam(query url.Values, name string, required bool) (string, string) {
	for key := range query {
		if strings.HasPrefix(key, name+"[") {
			return "", fmt.Sprintf("The %q must be a string", name)
		}
	}

	values, ok := query[name]
	switch {
	case !ok:
		if required {
			return "", fmt.Sprintf("Missing %q query string", name)
		}
		return "", ""
	case len(values) > 1:
		return "", fmt.Sprintf("The %q must be a string", name)
	}
	return values[0], ""
}

// EncodeEnvelope renders {"code", "response"} pretty-printed with four
// spaces, leaving slashes and HTML unescaped.
func EncodeEnvelope(code int, response json.RawMessage) ([]byte, error) {
	if len(response) == 0 {
		response = json.RawMessage("null")
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(Envelope{Code: code, Response: response}); err != nil {
		return nil, fmt.Errorf("encode envelope: %w", err)
	}
	return buf.Bytes(), nil
}

func writeEnvelope(w http.ResponseWriter, r *http.Request, code int, response json.RawMessage) {
	body, err := EncodeEnvelope(code, response)
	if err != nil {
		hlog.FromRequest(r).Error().Err(err).Msg("Failed to encode response")
		code = http.StatusInternalServerError
		body, _ = EncodeEnvelope(code, bridge.ErrorBody("Internal error"))
	}

	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Content-Length", strconv.Itoa(len(body)))
	w.WriteHeader(code)
	w.Write(body)
}
