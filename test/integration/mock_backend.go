// Package integration exercises the store, client, and query builder
// together against a mock of the REST-over-Postgres backend.
package integration

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strconv"
	"strings"
	"sync"
	"testing"
)

// MockPostgREST simulates the backend's form, field, and record resources,
// including the filter syntax the query builder emits: `path=op.value`
// parameters combined by AND and `or=(path.op.value,...)` groups.
type MockPostgREST struct {
	t      *testing.T
	server *httptest.Server

	mu      sync.Mutex
	nextID  int
	forms   []map[string]any
	fields  []map[string]any
	records []map[string]any
}

// NewMockPostgREST starts the mock server. It is shut down with the test.
func NewMockPostgREST(t *testing.T) *MockPostgREST {
	t.Helper()
	m := &MockPostgREST{t: t, nextID: 1}
	m.server = httptest.NewServer(http.HandlerFunc(m.handle))
	t.Cleanup(m.server.Close)
	return m
}

// URL returns the mock's base URL.
func (m *MockPostgREST) URL() string {
	return m.server.URL
}

func (m *MockPostgREST) handle(w http.ResponseWriter, r *http.Request) {
	m.mu.Lock()
	defer m.mu.Unlock()

	var body map[string]any
	if r.Body != nil {
		json.NewDecoder(r.Body).Decode(&body)
	}

	// Row-level security stand-in: writes must carry a username.
	if (r.Method == http.MethodPost || r.Method == http.MethodPatch) && body["username"] == nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"message": "username missing"})
		return
	}

	var table *[]map[string]any
	switch r.URL.Path {
	case "/form":
		table = &m.forms
	case "/field":
		table = &m.fields
	case "/record":
		table = &m.records
	default:
		writeJSON(w, http.StatusNotFound, map[string]any{"message": "no such resource"})
		return
	}

	q := r.URL.Query()
	switch r.Method {
	case http.MethodGet:
		writeJSON(w, http.StatusOK, m.selectRows(*table, q))
	case http.MethodPost:
		row := make(map[string]any, len(body))
		for k, v := range body {
			row[k] = v
		}
		row["id"] = float64(m.nextID)
		m.nextID++
		*table = append(*table, row)
		writeJSON(w, http.StatusCreated, []any{row})
	case http.MethodPatch:
		var patched []any
		for _, row := range *table {
			if !matchesEqFilters(row, q) {
				continue
			}
			for k, v := range body {
				if k != "username" {
					row[k] = v
				}
			}
			patched = append(patched, row)
		}
		writeJSON(w, http.StatusOK, patched)
	case http.MethodDelete:
		kept := (*table)[:0]
		for _, row := range *table {
			if !matchesEqFilters(row, q) {
				kept = append(kept, row)
			}
		}
		*table = kept
		w.WriteHeader(http.StatusNoContent)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"message": "method not allowed"})
	}
}

// selectRows applies the request's filters, or-group, limit, and offset.
func (m *MockPostgREST) selectRows(table []map[string]any, q map[string][]string) []any {
	limit, offset := -1, 0
	var out []any

	for _, row := range table {
		match := true
		for key, vals := range q {
			val := vals[0]
			switch key {
			case "limit":
				limit, _ = strconv.Atoi(val)
				continue
			case "offset":
				offset, _ = strconv.Atoi(val)
				continue
			case "or":
				if !matchesOrGroup(row, val) {
					match = false
				}
				continue
			}
			op, operand, ok := strings.Cut(val, ".")
			if !ok || !matchesCondition(row, key, op, operand) {
				match = false
			}
		}
		if match {
			out = append(out, row)
		}
	}

	if offset > 0 {
		if offset >= len(out) {
			out = nil
		} else {
			out = out[offset:]
		}
	}
	if limit >= 0 && limit < len(out) {
		out = out[:limit]
	}
	if out == nil {
		out = []any{}
	}
	return out
}

// matchesEqFilters applies the `col=eq.value` filters used by writes.
func matchesEqFilters(row map[string]any, q map[string][]string) bool {
	for key, vals := range q {
		op, operand, ok := strings.Cut(vals[0], ".")
		if !ok || op != "eq" {
			return false
		}
		if fmt.Sprint(row[key]) != operand {
			// Numeric columns arrive as float64; compare their int form too.
			if f, isFloat := row[key].(float64); !isFloat || strconv.Itoa(int(f)) != operand {
				return false
			}
		}
	}
	return true
}

// matchesOrGroup evaluates an `or=(path.op.value,...)` group.
func matchesOrGroup(row map[string]any, group string) bool {
	group = strings.TrimSuffix(strings.TrimPrefix(group, "("), ")")
	for _, part := range strings.Split(group, ",") {
		pieces := strings.SplitN(part, ".", 3)
		if len(pieces) != 3 {
			continue
		}
		if matchesCondition(row, pieces[0], pieces[1], pieces[2]) {
			return true
		}
	}
	return false
}

// matchesCondition evaluates one `path op operand` condition against a row.
// Paths of the form `values->>name` address the row's value bag.
func matchesCondition(row map[string]any, path, op, operand string) bool {
	var actual any
	if name, ok := strings.CutPrefix(path, "values->>"); ok {
		bag, _ := row["values"].(map[string]any)
		actual = bag[name]
	} else {
		actual = row[path]
	}

	text := fmt.Sprint(actual)
	switch op {
	case "eq":
		if f, isFloat := actual.(float64); isFloat {
			return strconv.Itoa(int(f)) == operand
		}
		return text == operand
	case "ilike":
		pattern := strings.ToLower(strings.Trim(operand, "*"))
		return strings.Contains(strings.ToLower(text), pattern)
	case "gt", "lt", "ge", "le":
		a, errA := strconv.ParseFloat(text, 64)
		b, errB := strconv.ParseFloat(operand, 64)
		if errA != nil || errB != nil {
			return false
		}
		switch op {
		case "gt":
			return a > b
		case "lt":
			return a < b
		case "ge":
			return a >= b
		default:
			return a <= b
		}
	}
	return false
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}
