package ui

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"regexp"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hanehara/tsugite/internal/core/port"
	"github.com/hanehara/tsugite/internal/core/service"
)

type stubGenerator struct {
	sql string
	err error
}

func (s *stubGenerator) GenerateSQL(context.Context, string, string) (*port.Generation, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &port.Generation{SQL: s.sql, Assumptions: []string{"latest month"}}, nil
}

type stubExecutor struct {
	result *port.QueryResult
	err    error
}

func (s *stubExecutor) Execute(context.Context, string) (*port.QueryResult, error) {
	if s.err != nil {
		return nil, s.err
	}
	return s.result, nil
}

type stubExplorer struct {
	summary string
}

func (s *stubExplorer) ListTables(context.Context) ([]port.TableInfo, error) { return nil, nil }
func (s *stubExplorer) SchemaSummary(context.Context) (string, error)        { return s.summary, nil }

func newTestServer(gen *stubGenerator, exec *stubExecutor) (*httptest.Server, *Handler) {
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	askSvc := service.NewAskService(gen, exec, nil, nil, logger, nil, nil, "postgres", 100)
	h := NewHandler(askSvc, &stubExplorer{summary: "TABLE customers (\n  id integer,\n);"}, logger)
	return httptest.NewServer(NewRouter(h)), h
}

func postAsk(t *testing.T, srv *httptest.Server, question string) string {
	t.Helper()
	resp, err := srv.Client().PostForm(srv.URL+"/ask", url.Values{"question": {question}})
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return string(body)
}

func TestHome(t *testing.T) {
	srv, _ := newTestServer(&stubGenerator{sql: "select 1"}, &stubExecutor{result: &port.QueryResult{}})
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/")
	require.NoError(t, err)
	defer resp.Body.Close()

	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Contains(t, resp.Header.Get("Content-Type"), "text/html")

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(body), "Ask the database")
}

func TestAskSubmit_RendersResult(t *testing.T) {
	gen := &stubGenerator{sql: "select name from customers"}
	exec := &stubExecutor{result: &port.QueryResult{
		Columns: []string{"name"},
		Rows:    [][]any{{"alice"}, {"bob"}},
	}}
	srv, h := newTestServer(gen, exec)
	defer srv.Close()

	body := postAsk(t, srv, "who are the customers?")

	assert.Contains(t, body, "select name from customers LIMIT 100")
	assert.Contains(t, body, "alice")
	assert.Contains(t, body, "latest month")
	assert.Contains(t, body, "2 row(s)")

	require.Len(t, h.history(), 1)
	assert.Equal(t, "who are the customers?", h.history()[0].Question)
}

func TestAskSubmit_GuardRejectionRendersInline(t *testing.T) {
	gen := &stubGenerator{sql: "DROP TABLE customers"}
	srv, _ := newTestServer(gen, &stubExecutor{})
	defer srv.Close()

	body := postAsk(t, srv, "drop everything")
	assert.Contains(t, body, "rejected")
}

func TestAskSubmit_EmptyQuestion(t *testing.T) {
	srv, h := newTestServer(&stubGenerator{sql: "select 1"}, &stubExecutor{})
	defer srv.Close()

	body := postAsk(t, srv, "   ")
	assert.Contains(t, body, "question is required")
	assert.Empty(t, h.history(), "blank submissions are not recorded")
}

func TestTurnDetail(t *testing.T) {
	gen := &stubGenerator{sql: "select name from customers"}
	exec := &stubExecutor{result: &port.QueryResult{Columns: []string{"name"}, Rows: [][]any{{"alice"}}}}
	srv, _ := newTestServer(gen, exec)
	defer srv.Close()

	body := postAsk(t, srv, "who are the customers?")

	// Follow the history link rendered on the page.
	m := regexp.MustCompile(`/turns/[0-9a-f-]+`).FindString(body)
	require.NotEmpty(t, m, "expected a turn link in:\n%s", body)

	resp, err := srv.Client().Get(srv.URL + m)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	detail, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.Contains(t, string(detail), "select name from customers LIMIT 100")
}

func TestTurnDetail_Unknown(t *testing.T) {
	srv, _ := newTestServer(&stubGenerator{sql: "select 1"}, &stubExecutor{})
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/turns/nope")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestSchemaPage(t *testing.T) {
	srv, _ := newTestServer(&stubGenerator{sql: "select 1"}, &stubExecutor{})
	defer srv.Close()

	resp, err := srv.Client().Get(srv.URL + "/schema")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	assert.True(t, strings.Contains(string(body), "TABLE customers"))
}
