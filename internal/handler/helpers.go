package handler

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/csvdeck/csvdeck/internal/model"
	"github.com/csvdeck/csvdeck/internal/service"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes the standard error envelope.
func writeError(w http.ResponseWriter, status int, code, message string) {
	writeJSON(w, status, model.ErrorResponse{Error: message, Code: code})
}

// Codes for failures outside the engine taxonomy.
const (
	codeBadRequest = "bad_request"
	codeBusy       = "too_many_uploads"
	codeTimeout    = "query_timeout"
	codeInternal   = "internal_error"
)

// statusFor maps an engine error kind to its HTTP status.
func statusFor(kind model.ErrorKind) int {
	switch kind {
	case model.KindSchemaInference, model.KindInvalidPagination,
		model.KindQuerySyntax, model.KindQueryExecution:
		return http.StatusBadRequest
	case model.KindTableExists:
		return http.StatusConflict
	case model.KindTableNotFound:
		return http.StatusNotFound
	case model.KindInsert:
		return http.StatusUnprocessableEntity
	case model.KindDisallowed:
		return http.StatusForbidden
	}
	return http.StatusInternalServerError
}

// writeEngineError writes err using the engine taxonomy. Errors outside it
// are logged and reported as a generic internal error; their text is never
// sent to the client.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	if errors.Is(err, service.ErrTooManyUploads) {
		w.Header().Set("Retry-After", "5")
		writeError(w, http.StatusServiceUnavailable, codeBusy, err.Error())
		return
	}
	if me, ok := model.AsError(err); ok {
		if me.Timeout {
			writeError(w, http.StatusGatewayTimeout, codeTimeout, me.Message)
			return
		}
		if me.Err != nil {
			logger.Debug("request failed", "kind", me.Kind, "error", err)
		}
		writeError(w, statusFor(me.Kind), string(me.Kind), me.Message)
		return
	}
	logger.Error("internal error", "error", err)
	writeError(w, http.StatusInternalServerError, codeInternal, "internal server error")
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// queryInt extracts an integer query parameter, returning defaultVal if the
// parameter is missing or cannot be parsed.
func queryInt(r *http.Request, key string, defaultVal int) int {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return defaultVal
	}
	return n
}

// pageParam is like queryInt but rejects values that are present and not
// integers.
func pageParam(r *http.Request, key string, defaultVal int) (int, error) {
	val := r.URL.Query().Get(key)
	if val == "" {
		return defaultVal, nil
	}
	n, err := strconv.Atoi(val)
	if err != nil {
		return 0, model.Errorf(model.KindInvalidPagination, "%s must be an integer, got %q", key, val)
	}
	return n, nil
}

// rowObjects turns positional rows into objects keyed by column name.
func rowObjects[T any](cols []string, rows [][]T) []map[string]T {
	out := make([]map[string]T, len(rows))
	for i, row := range rows {
		obj := make(map[string]T, len(cols))
		for j, c := range cols {
			obj[c] = row[j]
		}
		out[i] = obj
	}
	return out
}

func contentDisposition(name string) string {
	return fmt.Sprintf("attachment; filename=%q", name+".csv")
}
