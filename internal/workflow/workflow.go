package workflow

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// Config wires the workflow to its collaborators. The debounce delays
// default to SuggestDelay/ResolveDelay when zero.
type Config struct {
	Session   Session
	Profiles  Profiles
	Catalog   Catalog
	Directory Directory
	Registrar Registrar
	Log       *zerolog.Logger

	SuggestDelay time.Duration
	ResolveDelay time.Duration
}

// Workflow is the registration screen: it loads the caller profile, the
// event catalog and the temple's registrations, and owns one Form per
// event. The registration list is the only state shared across forms;
// it is replaced wholesale on every refresh.
type Workflow struct {
	mu sync.Mutex

	session   Session
	profiles  Profiles
	catalog   Catalog
	directory Directory
	registrar Registrar
	lookup    *Lookup
	log       *zerolog.Logger

	suggestDelay time.Duration
	resolveDelay time.Duration

	profile *Profile
	events  []TeamEvent
	regs    []Registration
	forms   map[int64]*Form
	order   []int64

	expired bool
}

func New(cfg Config) *Workflow {
	if cfg.SuggestDelay == 0 {
		cfg.SuggestDelay = SuggestDelay
	}
	if cfg.ResolveDelay == 0 {
		cfg.ResolveDelay = ResolveDelay
	}
	nop := zerolog.Nop()
	if cfg.Log == nil {
		cfg.Log = &nop
	}
	return &Workflow{
		session:      cfg.Session,
		profiles:     cfg.Profiles,
		catalog:      cfg.Catalog,
		directory:    cfg.Directory,
		registrar:    cfg.Registrar,
		lookup:       NewLookup(cfg.Directory),
		log:          cfg.Log,
		suggestDelay: cfg.SuggestDelay,
		resolveDelay: cfg.ResolveDelay,
		forms:        make(map[int64]*Form),
	}
}

// Load fetches profile, catalog and existing registrations, then builds
// one form per event, bound read-only where a registration exists.
func (w *Workflow) Load(ctx context.Context) error {
	profile, err := w.profiles.Profile(ctx, w.session)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			w.expireSession()
		}
		return err
	}
	if !profile.IsTempleAdmin() {
		return ErrNotTempleAdmin
	}

	events, err := w.catalog.TeamEvents(ctx, w.session)
	if err != nil {
		return err
	}

	regs, err := w.registrar.TempleTeams(ctx, w.session)
	if err != nil {
		return err
	}

	w.mu.Lock()
	w.profile = profile
	w.events = events
	w.regs = regs
	w.forms = make(map[int64]*Form, len(events))
	w.order = w.order[:0]
	for _, e := range events {
		f := newForm(ctx, e, w)
		f.bind(w.registrationForLocked(e.ID))
		w.forms[e.ID] = f
		w.order = append(w.order, e.ID)
	}
	w.mu.Unlock()

	w.log.Info().
		Int("events", len(events)).
		Int("registrations", len(regs)).
		Msg("registration screen loaded")
	return nil
}

// Refresh refetches the full registration list, replaces it wholesale,
// and re-derives the forms whose registration changed identity. Forms
// whose registration is untouched keep their in-progress state, so a
// save on one event never discards a composition or an open edit on
// another.
func (w *Workflow) Refresh(ctx context.Context) error {
	regs, err := w.registrar.TempleTeams(ctx, w.session)
	if err != nil {
		if errors.Is(err, ErrSessionExpired) {
			w.expireSession()
		}
		return err
	}

	w.mu.Lock()
	w.regs = regs
	forms := make([]*Form, 0, len(w.forms))
	for _, f := range w.forms {
		forms = append(forms, f)
	}
	w.mu.Unlock()

	for _, f := range forms {
		next := w.registrationFor(f.event.ID)
		if sameRegistration(f.Registration(), next) {
			continue
		}
		f.bind(next)
	}
	return nil
}

// sameRegistration reports whether two registrations share the same
// identity: both absent, or the same id with the same member sequence.
func sameRegistration(a, b *Registration) bool {
	if a == nil || b == nil {
		return a == b
	}
	if a.ID != b.ID || len(a.Members) != len(b.Members) {
		return false
	}
	for i := range a.Members {
		if a.Members[i].ID != b.Members[i].ID {
			return false
		}
	}
	return true
}

// Form returns the form for an event id, or nil.
func (w *Workflow) Form(eventID int64) *Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.forms[eventID]
}

// FormFor resolves a (name, gender) section to its form via the
// catalog. ALL events answer for both genders, sharing one form.
func (w *Workflow) FormFor(name, gender string) *Form {
	w.mu.Lock()
	events := w.events
	w.mu.Unlock()

	e, ok := ResolveEvent(events, name, gender)
	if !ok {
		return nil
	}
	return w.Form(e.ID)
}

// Forms returns the forms in catalog order.
func (w *Workflow) Forms() []*Form {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]*Form, 0, len(w.order))
	for _, id := range w.order {
		out = append(out, w.forms[id])
	}
	return out
}

// Registrations returns the last fetched registration list.
func (w *Workflow) Registrations() []Registration {
	w.mu.Lock()
	defer w.mu.Unlock()
	out := make([]Registration, len(w.regs))
	copy(out, w.regs)
	return out
}

// SessionExpired reports whether any collaborator call returned a 401;
// the owner should redirect to sign-in.
func (w *Workflow) SessionExpired() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.expired
}

func (w *Workflow) registrationFor(eventID int64) *Registration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.registrationForLocked(eventID)
}

func (w *Workflow) registrationForLocked(eventID int64) *Registration {
	for i := range w.regs {
		if w.regs[i].EventID == eventID {
			return &w.regs[i]
		}
	}
	return nil
}

// refreshAfterSave is the consistency-refresh policy: after every
// successful create/update the full list is refetched so read-after-write
// is consistent across all forms. Failures here are logged, not fatal;
// the saving form is already bound to the service response.
func (w *Workflow) refreshAfterSave(ctx context.Context) {
	if err := w.Refresh(ctx); err != nil {
		w.log.Warn().Err(err).Msg("post-save registration refresh failed")
	}
}

func (w *Workflow) expireSession() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.expired = true
}
