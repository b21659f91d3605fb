package ui

import (
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	gomponents "maragu.dev/gomponents"

	"github.com/hanehara/tsugite/internal/core/port"
	"github.com/hanehara/tsugite/internal/core/service"
)

const historySize = 50

// Turn is one question/answer exchange kept in the in-memory history.
type Turn struct {
	ID          string
	Question    string
	SQL         string
	Assumptions []string
	Result      *port.QueryResult
	Err         string
	At          time.Time
}

// Handler serves the dashboard: a question form backed by the ask service,
// with a bounded in-memory history of turns.
type Handler struct {
	Ask      *service.AskService
	Explorer port.SchemaExplorer
	Logger   *slog.Logger

	mu    sync.Mutex
	turns []Turn // newest first
}

func NewHandler(ask *service.AskService, explorer port.SchemaExplorer, logger *slog.Logger) *Handler {
	return &Handler{Ask: ask, Explorer: explorer, Logger: logger}
}

func (h *Handler) Home(w http.ResponseWriter, r *http.Request) {
	renderHTML(w, http.StatusOK, homePage("", nil, h.history()))
}

func (h *Handler) AskSubmit(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		renderHTML(w, http.StatusBadRequest, homePage("", &Turn{Err: "malformed form submission"}, h.history()))
		return
	}

	question := strings.TrimSpace(r.Form.Get("question"))
	if question == "" {
		renderHTML(w, http.StatusOK, homePage("", &Turn{Err: "question is required"}, h.history()))
		return
	}
	introspect := r.Form.Get("introspect") != ""

	turn := Turn{
		ID:       uuid.NewString(),
		Question: question,
		At:       time.Now(),
	}

	res, err := h.Ask.Ask(r.Context(), question, introspect)
	if err != nil {
		// Guard rejections and execution failures render inline; the
		// dashboard never turns them into HTTP errors.
		turn.Err = err.Error()
		if service.IsGuardRejection(err) {
			turn.Err = fmt.Sprintf("the generated SQL was rejected: %v", err)
		}
	} else {
		turn.SQL = res.SafeSQL
		turn.Assumptions = res.Assumptions
		turn.Result = res.Result
	}

	h.record(turn)
	renderHTML(w, http.StatusOK, homePage(question, &turn, h.history()))
}

func (h *Handler) TurnDetail(w http.ResponseWriter, r *http.Request) {
	id := pathTurnID(r)
	turn, ok := h.lookup(id)
	if !ok {
		renderHTML(w, http.StatusNotFound, errorPage("Not Found", "That turn is no longer in the history."))
		return
	}
	renderHTML(w, http.StatusOK, turnPage(turn))
}

func (h *Handler) SchemaPage(w http.ResponseWriter, r *http.Request) {
	if h.Explorer == nil {
		renderHTML(w, http.StatusOK, schemaPage("", "schema introspection is not configured"))
		return
	}
	summary, err := h.Explorer.SchemaSummary(r.Context())
	if err != nil {
		h.Logger.ErrorContext(r.Context(), "schema summary failed", slog.String("error", err.Error()))
		renderHTML(w, http.StatusOK, schemaPage("", "failed to introspect schema"))
		return
	}
	renderHTML(w, http.StatusOK, schemaPage(summary, ""))
}

func (h *Handler) record(t Turn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.turns = append([]Turn{t}, h.turns...)
	if len(h.turns) > historySize {
		h.turns = h.turns[:historySize]
	}
}

func (h *Handler) history() []Turn {
	h.mu.Lock()
	defer h.mu.Unlock()
	out := make([]Turn, len(h.turns))
	copy(out, h.turns)
	return out
}

func (h *Handler) lookup(id string) (Turn, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	for _, t := range h.turns {
		if t.ID == id {
			return t, true
		}
	}
	return Turn{}, false
}

func renderHTML(w http.ResponseWriter, status int, node gomponents.Node) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	_ = node.Render(w)
}

func cellString(v any) string {
	if v == nil {
		return "NULL"
	}
	return fmt.Sprint(v)
}
