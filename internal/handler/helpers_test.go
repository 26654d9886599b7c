package handler

import (
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/csvdeck/csvdeck/internal/model"
	"github.com/csvdeck/csvdeck/internal/service"
)

func TestQueryInt(t *testing.T) {
	tests := []struct {
		name       string
		url        string
		defaultVal int
		want       int
	}{
		{"returns default for missing param", "/test", 25, 25},
		{"parses integer param", "/test?limit=100", 25, 100},
		{"returns default for non-integer", "/test?limit=abc", 25, 25},
		{"returns default for empty value", "/test?limit=", 25, 25},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", tt.url, nil)
			if got := queryInt(r, "limit", tt.defaultVal); got != tt.want {
				t.Errorf("queryInt = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestPageParam(t *testing.T) {
	r := httptest.NewRequest("GET", "/data/t?page=3&limit=x", nil)
	if n, err := pageParam(r, "page", 1); err != nil || n != 3 {
		t.Errorf("page = %d, %v", n, err)
	}
	if n, err := pageParam(r, "size", 7); err != nil || n != 7 {
		t.Errorf("default = %d, %v", n, err)
	}
	if _, err := pageParam(r, "limit", 50); !errors.Is(err, model.ErrInvalidPagination) {
		t.Errorf("err = %v, want InvalidPagination", err)
	}
}

func TestWriteEngineError(t *testing.T) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	tests := []struct {
		name   string
		err    error
		status int
		code   string
	}{
		{"not found", model.TableNotFound("x"), http.StatusNotFound, "table_not_found"},
		{"exists", model.Errorf(model.KindTableExists, "taken"), http.StatusConflict, "table_already_exists"},
		{"insert", model.Errorf(model.KindInsert, "bad row"), http.StatusUnprocessableEntity, "insert_error"},
		{"disallowed", model.Errorf(model.KindDisallowed, "no"), http.StatusForbidden, "disallowed_statement"},
		{"syntax", model.Errorf(model.KindQuerySyntax, "eh"), http.StatusBadRequest, "query_syntax_error"},
		{"timeout", &model.Error{Kind: model.KindQueryExecution, Message: "slow", Timeout: true}, http.StatusGatewayTimeout, codeTimeout},
		{"wrapped", fmt.Errorf("ctx: %w", model.Errorf(model.KindSchemaInference, "empty")), http.StatusBadRequest, "schema_inference_error"},
		{"busy", service.ErrTooManyUploads, http.StatusServiceUnavailable, codeBusy},
		{"internal", errors.New("disk on fire"), http.StatusInternalServerError, codeInternal},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeEngineError(w, logger, tt.err)
			if w.Code != tt.status {
				t.Errorf("status = %d, want %d", w.Code, tt.status)
			}
			body := decode(t, w)
			if body["code"] != tt.code {
				t.Errorf("code = %v, want %s", body["code"], tt.code)
			}
			if tt.code == codeInternal && body["error"] != "internal server error" {
				t.Errorf("internal error text leaked: %v", body["error"])
			}
		})
	}
}

func TestClampInt(t *testing.T) {
	if clampInt(0, 1, 10) != 1 || clampInt(11, 1, 10) != 10 || clampInt(5, 1, 10) != 5 {
		t.Error("clampInt out of range")
	}
}
