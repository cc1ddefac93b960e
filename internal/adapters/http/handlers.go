package web

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"html/template"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/csrf"

	"memberdesk/internal/adapters/http/view"
	"memberdesk/internal/adapters/memberapi"
	"memberdesk/internal/application/forms"
	"memberdesk/internal/application/orchestrators"
	"memberdesk/internal/application/projections"
	"memberdesk/internal/domain/member"
)

const (
	// slotCookie identifies the browser whose open form is tracked.
	slotCookie = "memberdesk_client"
	// fragmentHeader marks script requests that want the table fragment back instead of a redirect.
	fragmentHeader = "X-Memberdesk-Fragment"
	// noticeHeader carries the confirmation for a script request that changed a member.
	noticeHeader = "X-Memberdesk-Notice"
	// reloadHeader tells the script to reload the page instead of swapping in a table.
	reloadHeader = "X-Memberdesk-Reload"
)

// internalError logs the real error and returns a generic message to the client.
func internalError(w http.ResponseWriter, err error) {
	slog.Error("internal_error", "error", err.Error())
	http.Error(w, "internal server error", http.StatusInternalServerError)
}

// classify maps an error to a status and a message safe to show the user.
func classify(err error) (int, string) {
	switch {
	case errors.Is(err, forms.ErrSubmitInFlight):
		return http.StatusConflict, "This form is already being submitted."
	case errors.Is(err, forms.ErrFormNotOpen):
		return http.StatusConflict, "This form is no longer open. Reload the page and try again."
	case errors.Is(err, member.ErrInvalidID):
		return http.StatusBadRequest, "Invalid member id."
	case errors.Is(err, orchestrators.ErrInvalidMember):
		return http.StatusUnprocessableEntity, "Invalid member: " + strings.TrimPrefix(err.Error(), orchestrators.ErrInvalidMember.Error()+": ")
	case memberapi.IsRemote(err):
		return http.StatusBadGateway, memberapi.UserMessage(err)
	default:
		slog.Error("internal_error", "error", err.Error())
		return http.StatusInternalServerError, "Something went wrong."
	}
}

func isFragment(r *http.Request) bool {
	return r.Header.Get(fragmentHeader) == "table"
}

// readSlot returns the caller's slot id, or "" when the cookie is missing or malformed.
func readSlot(r *http.Request) string {
	c, err := r.Cookie(slotCookie)
	if err != nil {
		return ""
	}
	if _, err := uuid.Parse(c.Value); err != nil {
		return ""
	}
	return c.Value
}

// clientSlot returns the caller's slot id, issuing a new cookie when there is none.
func (s *server) clientSlot(w http.ResponseWriter, r *http.Request) string {
	if slot := readSlot(r); slot != "" {
		return slot
	}
	slot := uuid.NewString()
	http.SetCookie(w, &http.Cookie{
		Name:     slotCookie,
		Value:    slot,
		Path:     "/",
		HttpOnly: true,
		Secure:   s.production,
		SameSite: http.SameSiteLaxMode,
	})
	return slot
}

func parseID(raw string) (int, error) {
	id, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || id <= 0 {
		return 0, member.ErrInvalidID
	}
	return id, nil
}

func formValues(r *http.Request) member.Patch {
	return member.Patch{
		Name:        r.PostFormValue("name"),
		Email:       r.PostFormValue("email"),
		CompanyName: r.PostFormValue("company"),
	}
}

// successNotice is the confirmation shown after a mutation; "" for an unknown action.
func successNotice(action orchestrators.Action, id int) string {
	if id <= 0 {
		return ""
	}
	switch action {
	case orchestrators.ActionCreated:
		return fmt.Sprintf("Member %d added.", id)
	case orchestrators.ActionUpdated:
		return fmt.Sprintf("Member %d updated.", id)
	case orchestrators.ActionDeleted:
		return fmt.Sprintf("Member %d deleted.", id)
	default:
		return ""
	}
}

func writeHTML(w http.ResponseWriter, status int, markup template.HTML) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	io.WriteString(w, string(markup))
}

// writeFragmentError answers a script request with the mapped status and an error notice.
func writeFragmentError(w http.ResponseWriter, err error) {
	status, msg := classify(err)
	notice, rerr := view.RenderError(msg)
	if rerr != nil {
		internalError(w, rerr)
		return
	}
	writeHTML(w, status, notice)
}

func (s *server) writePage(w http.ResponseWriter, status int, data view.PageData) {
	var buf bytes.Buffer
	if err := view.RenderPage(&buf, data); err != nil {
		internalError(w, err)
		return
	}
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(status)
	buf.WriteTo(w)
}

// pageData loads the table. A failed load leaves Loaded false and sets the notice.
func (s *server) pageData(r *http.Request) view.PageData {
	data := view.PageData{
		CSRFToken: csrf.Token(r),
		Banner:    s.deps.Banner,
	}

	result, err := projections.QueryGetMemberTable(r.Context(), projections.GetMemberTableQuery{},
		projections.GetMemberTableDeps{Reader: s.deps.API})
	if err != nil {
		slog.Warn("member_table_unavailable", "error", err)
		_, data.Error = classify(err)
		return data
	}

	table, err := view.RenderTable(result.Members, view.TableOptions{Editable: true})
	if err != nil {
		_, data.Error = classify(err)
		return data
	}
	data.Loaded = true
	data.Count = result.Count
	data.Table = table
	return data
}

// openEdit replaces the slot's form with an edit form for id and fills it from the remote.
func (s *server) openEdit(ctx context.Context, slot string, id int) (forms.Form, error) {
	f := s.deps.Forms.BeginEdit(slot, id)
	values, err := projections.QueryGetMemberForEdit(ctx, projections.GetMemberForEditQuery{ID: id},
		projections.GetMemberForEditDeps{Reader: s.deps.API})
	if err != nil {
		s.deps.Forms.Cancel(slot, f.Token)
		return forms.Form{}, err
	}
	return s.deps.Forms.Loaded(slot, f.Token, values)
}

// handlePage handles GET / with optional ?form=add or ?form=edit&id=N.
func (s *server) handlePage(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		http.NotFound(w, r)
		return
	}
	if r.Method != http.MethodGet && r.Method != http.MethodHead {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}

	slot := s.clientSlot(w, r)
	data := s.pageData(r)
	status := http.StatusOK
	if id, err := strconv.Atoi(r.URL.Query().Get("id")); err == nil {
		data.Notice = successNotice(orchestrators.Action(r.URL.Query().Get("done")), id)
	}

	var form forms.Form
	var formErr error
	switch r.URL.Query().Get("form") {
	case "add":
		form = s.deps.Forms.OpenAdd(slot)
	case "edit":
		id, err := parseID(r.URL.Query().Get("id"))
		if err != nil {
			status = http.StatusBadRequest
			formErr = err
			break
		}
		form, formErr = s.openEdit(r.Context(), slot, id)
	}

	if formErr != nil {
		_, data.Error = classify(formErr)
	} else if form.Open() {
		markup, err := view.RenderForm(form, csrf.TemplateField(r))
		if err != nil {
			internalError(w, err)
			return
		}
		data.Form = markup
	}
	s.writePage(w, status, data)
}

// handleTable handles GET /members/table
func (s *server) handleTable(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.writeTable(w, r, http.StatusOK)
}

func (s *server) writeTable(w http.ResponseWriter, r *http.Request, status int) {
	table, err := s.loadTable(r.Context())
	if err != nil {
		writeFragmentError(w, err)
		return
	}
	writeHTML(w, status, table)
}

// loadTable fetches the members and renders the editable table.
func (s *server) loadTable(ctx context.Context) (template.HTML, error) {
	result, err := projections.QueryGetMemberTable(ctx, projections.GetMemberTableQuery{},
		projections.GetMemberTableDeps{Reader: s.deps.API})
	if err != nil {
		return "", err
	}
	return view.RenderTable(result.Members, view.TableOptions{Editable: true})
}

// handleAddForm handles GET /members/form/add
func (s *server) handleAddForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	form := s.deps.Forms.OpenAdd(s.clientSlot(w, r))
	markup, err := view.RenderForm(form, csrf.TemplateField(r))
	if err != nil {
		internalError(w, err)
		return
	}
	writeHTML(w, http.StatusOK, markup)
}

// handleEditForm handles GET /members/form/edit?id=N
func (s *server) handleEditForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, err := parseID(r.URL.Query().Get("id"))
	if err != nil {
		writeFragmentError(w, err)
		return
	}
	form, err := s.openEdit(r.Context(), s.clientSlot(w, r), id)
	if err != nil {
		writeFragmentError(w, err)
		return
	}
	markup, err := view.RenderForm(form, csrf.TemplateField(r))
	if err != nil {
		internalError(w, err)
		return
	}
	writeHTML(w, http.StatusOK, markup)
}

// handleCancelForm handles POST /members/form/cancel. Nothing is sent to the remote.
func (s *server) handleCancelForm(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	s.deps.Forms.Cancel(readSlot(r), r.PostFormValue("token"))
	if isFragment(r) {
		w.WriteHeader(http.StatusNoContent)
		return
	}
	http.Redirect(w, r, "/", http.StatusSeeOther)
}

// mutationContext detaches a mutation from the request so a started call runs to completion.
func mutationContext(r *http.Request) context.Context {
	return context.WithoutCancel(r.Context())
}

// mutationSucceeded returns the refreshed table to scripts and redirects plain posts.
// The mutation is already committed, so a failed refresh asks the script to reload the page.
func (s *server) mutationSucceeded(w http.ResponseWriter, r *http.Request, action orchestrators.Action, id int) {
	if !isFragment(r) {
		q := url.Values{"done": {string(action)}, "id": {strconv.Itoa(id)}}
		http.Redirect(w, r, "/?"+q.Encode(), http.StatusSeeOther)
		return
	}
	w.Header().Set(noticeHeader, successNotice(action, id))
	table, err := s.loadTable(mutationContext(r))
	if err != nil {
		slog.Warn("table_refresh_failed", "action", string(action), "member_id", id, "error", err.Error())
		w.Header().Set(reloadHeader, "1")
		w.WriteHeader(http.StatusOK)
		return
	}
	writeHTML(w, http.StatusOK, table)
}

// mutationFailed reports err. Plain posts get the page back with the slot's form still open.
func (s *server) mutationFailed(w http.ResponseWriter, r *http.Request, err error, slot string) {
	if isFragment(r) {
		writeFragmentError(w, err)
		return
	}

	status, msg := classify(err)
	data := s.pageData(r)
	if f, ok := s.deps.Forms.Get(slot); ok && f.Open() {
		markup, rerr := view.RenderForm(f, csrf.TemplateField(r))
		if rerr != nil {
			internalError(w, rerr)
			return
		}
		data.Form = markup
		if f.Error == "" && data.Error == "" {
			data.Error = msg
		}
	} else if data.Error == "" {
		data.Error = msg
	}
	s.writePage(w, status, data)
}

// handleCreate handles POST /members/create
func (s *server) handleCreate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	slot := readSlot(r)
	token := r.PostFormValue("token")
	values := formValues(r)

	if err := s.deps.Forms.Begin(slot, token, forms.KindAdd, 0); err != nil {
		s.mutationFailed(w, r, err, slot)
		return
	}

	created, err := orchestrators.ExecuteCreateMember(mutationContext(r), orchestrators.CreateMemberInput{
		Values: values,
	}, orchestrators.CreateMemberDeps{
		API:      s.deps.API,
		Notifier: s.deps.Notifier,
	})
	if err != nil {
		_, msg := classify(err)
		s.deps.Forms.Fail(slot, token, values, msg)
		s.mutationFailed(w, r, err, slot)
		return
	}

	s.deps.Forms.Done(slot, token)
	s.mutationSucceeded(w, r, orchestrators.ActionCreated, created.ID)
}

// handleUpdate handles POST /members/update
func (s *server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	slot := readSlot(r)
	token := r.PostFormValue("token")
	values := formValues(r)

	id, err := parseID(r.PostFormValue("id"))
	if err != nil {
		s.mutationFailed(w, r, err, slot)
		return
	}
	if err := s.deps.Forms.Begin(slot, token, forms.KindEdit, id); err != nil {
		s.mutationFailed(w, r, err, slot)
		return
	}

	_, err = orchestrators.ExecuteUpdateMember(mutationContext(r), orchestrators.UpdateMemberInput{
		ID:     id,
		Values: values,
	}, orchestrators.UpdateMemberDeps{
		API:      s.deps.API,
		Notifier: s.deps.Notifier,
	})
	if err != nil {
		_, msg := classify(err)
		s.deps.Forms.Fail(slot, token, values, msg)
		s.mutationFailed(w, r, err, slot)
		return
	}

	s.deps.Forms.Done(slot, token)
	s.mutationSucceeded(w, r, orchestrators.ActionUpdated, id)
}

// handleDelete handles POST /members/delete. There is no confirmation step.
func (s *server) handleDelete(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	id, err := parseID(r.PostFormValue("id"))
	if err != nil {
		s.mutationFailed(w, r, err, readSlot(r))
		return
	}

	removed, err := orchestrators.ExecuteDeleteMember(mutationContext(r), orchestrators.DeleteMemberInput{ID: id},
		orchestrators.DeleteMemberDeps{
			API:      s.deps.API,
			Notifier: s.deps.Notifier,
		})
	if err != nil {
		s.mutationFailed(w, r, err, readSlot(r))
		return
	}
	if removed.ID <= 0 {
		removed.ID = id
	}
	s.mutationSucceeded(w, r, orchestrators.ActionDeleted, removed.ID)
}

// handleHealthz handles GET /healthz
func handleHealthz(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	io.WriteString(w, "ok\n")
}

// handlePerf handles GET /debug/perf?minutes=N (default 60) with a JSON timing snapshot.
func (s *server) handlePerf(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		w.WriteHeader(http.StatusMethodNotAllowed)
		return
	}
	if s.deps.Collector == nil {
		http.NotFound(w, r)
		return
	}
	minutes := 60
	if v := r.URL.Query().Get("minutes"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			http.Error(w, "minutes must be a positive integer", http.StatusBadRequest)
			return
		}
		minutes = n
	}
	snap := s.deps.Collector.Snapshot(time.Now().Add(-time.Duration(minutes)*time.Minute), 10)
	w.Header().Set("Content-Type", "application/json")
	json.NewEncoder(w).Encode(snap)
}
