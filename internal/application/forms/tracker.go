// Package forms tracks the single add/edit form each browser may have open.
package forms

import (
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"memberdesk/internal/domain/member"
)

// DefaultTTL is how long an untouched form stays tracked.
const DefaultTTL = 30 * time.Minute

var (
	// ErrFormNotOpen means the token does not name the form currently open for the slot.
	ErrFormNotOpen = errors.New("form is not open")
	// ErrSubmitInFlight means the form already has a submission pending.
	ErrSubmitInFlight = errors.New("form submission already in progress")
)

// Kind distinguishes add forms from edit forms.
type Kind string

const (
	KindAdd  Kind = "add"
	KindEdit Kind = "edit"
)

// State is the lifecycle position of a form.
type State int

const (
	StateHidden State = iota
	StateLoading
	StateShown
	StateSubmitting
)

func (s State) String() string {
	switch s {
	case StateLoading:
		return "loading"
	case StateShown:
		return "shown"
	case StateSubmitting:
		return "submitting"
	default:
		return "hidden"
	}
}

// Form is a snapshot of one tracked form.
type Form struct {
	Token    string
	Kind     Kind
	MemberID int
	State    State
	Values   member.Patch
	Error    string
	touched  time.Time
}

// Open reports whether the form is visible to the user.
func (f Form) Open() bool {
	return f.State == StateShown || f.State == StateSubmitting
}

// Tracker holds at most one form per client slot.
// INVARIANT: A slot never has two forms; opening a form replaces the previous one
type Tracker struct {
	mu    sync.Mutex
	forms map[string]*Form
	ttl   time.Duration

	now      func() time.Time
	newToken func() string
}

// NewTracker creates a tracker that forgets forms untouched for ttl (DefaultTTL when <= 0).
func NewTracker(ttl time.Duration) *Tracker {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &Tracker{
		forms:    make(map[string]*Form),
		ttl:      ttl,
		now:      time.Now,
		newToken: func() string { return uuid.New().String() },
	}
}

// Get returns the form open for slot.
func (t *Tracker) Get(slot string) (Form, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	f, ok := t.forms[slot]
	if !ok {
		return Form{}, false
	}
	return *f, true
}

// OpenAdd shows an empty add form for slot, replacing any open form.
// POST: Returned form is StateShown with a fresh token
func (t *Tracker) OpenAdd(slot string) Form {
	return t.open(slot, KindAdd, 0, StateShown)
}

// BeginEdit starts loading an edit form for member id, replacing any open form.
// POST: Returned form is StateLoading; call Loaded once the record arrives
func (t *Tracker) BeginEdit(slot string, id int) Form {
	return t.open(slot, KindEdit, id, StateLoading)
}

func (t *Tracker) open(slot string, kind Kind, id int, state State) Form {
	t.mu.Lock()
	defer t.mu.Unlock()

	if prev, ok := t.forms[slot]; ok {
		slog.Debug("form_replaced", "kind", prev.Kind, "state", prev.State.String())
	}
	f := &Form{
		Token:    t.newToken(),
		Kind:     kind,
		MemberID: id,
		State:    state,
		touched:  t.now(),
	}
	t.forms[slot] = f
	return *f
}

// Loaded fills a loading edit form with the fetched values.
// PRE: form was opened by BeginEdit
// POST: Form is StateShown; ErrFormNotOpen if it was replaced or cancelled meanwhile
func (t *Tracker) Loaded(slot, token string, values member.Patch) (Form, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.current(slot, token)
	if !ok || f.State != StateLoading {
		return Form{}, ErrFormNotOpen
	}
	f.State = StateShown
	f.Values = values
	f.touched = t.now()
	return *f, nil
}

// Begin marks the form as submitting.
// PRE: kind and id match the open form (id is ignored for add forms)
// POST: ErrSubmitInFlight when a submission is already pending; ErrFormNotOpen for stale tokens
func (t *Tracker) Begin(slot, token string, kind Kind, id int) error {
	t.mu.Lock()
	defer t.mu.Unlock()

	f, ok := t.current(slot, token)
	if !ok || f.Kind != kind || (kind == KindEdit && f.MemberID != id) {
		return ErrFormNotOpen
	}
	switch f.State {
	case StateSubmitting:
		return ErrSubmitInFlight
	case StateShown:
		f.State = StateSubmitting
		f.Error = ""
		f.touched = t.now()
		return nil
	default:
		return ErrFormNotOpen
	}
}

// Fail returns a submitting form to shown, keeping what the user typed and the error.
func (t *Tracker) Fail(slot, token string, values member.Patch, message string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if f, ok := t.current(slot, token); ok && f.State == StateSubmitting {
		f.State = StateShown
		f.Values = values
		f.Error = message
		f.touched = t.now()
	}
}

// Done closes a form after a successful submission.
func (t *Tracker) Done(slot, token string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.current(slot, token); ok {
		delete(t.forms, slot)
	}
}

// Cancel discards the form without any network effect.
// POST: Returns false if token did not name the open form
func (t *Tracker) Cancel(slot, token string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if _, ok := t.current(slot, token); !ok {
		return false
	}
	delete(t.forms, slot)
	return true
}

// current returns the slot's form when token matches. Caller holds t.mu.
func (t *Tracker) current(slot, token string) (*Form, bool) {
	f, ok := t.forms[slot]
	if !ok || token == "" || f.Token != token {
		return nil, false
	}
	return f, true
}

// Sweep forgets forms untouched for longer than the TTL.
// POST: Returns the number of forms removed
func (t *Tracker) Sweep() int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.now().Add(-t.ttl)
	removed := 0
	for slot, f := range t.forms {
		if f.touched.Before(cutoff) {
			delete(t.forms, slot)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked forms.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.forms)
}
