package workflow

import (
	"context"
	"errors"
	"sync"
)

type Mode int

const (
	ModeCreate Mode = iota
	ModeReadOnly
	ModeEdit
)

func (m Mode) String() string {
	switch m {
	case ModeCreate:
		return "CREATE"
	case ModeReadOnly:
		return "READONLY"
	case ModeEdit:
		return "EDIT"
	}
	return "UNKNOWN"
}

const (
	msgDuplicate      = "This member is already in another slot"
	msgWrongTemple    = "Member belongs to a different temple"
	msgResolveFailed  = "Unable to verify member"
	msgSubmitFailed   = "Failed to save the team, please try again"
	msgNoResolved     = "Add at least one verified member before submitting"
	msgDuplicateForm  = "Remove duplicate members before submitting"
	msgProfileMissing = "Your profile is still loading, please retry"
)

// Slot is one roster position. It is resolved once MemberRef points at a
// known member; unresolved slots are excluded from submission.
type Slot struct {
	Name       string
	Identifier string
	MemberRef  int64
	Err        string
	Loading    bool

	// seq invalidates in-flight lookups for this slot: an async result
	// is applied only if the slot has not changed since it was issued.
	seq uint64
}

func (s Slot) Resolved() bool {
	return s.MemberRef != 0 && s.Identifier != ""
}

// FormState is an immutable snapshot of a form for rendering.
type FormState struct {
	Event       TeamEvent
	Mode        Mode
	Slots       []Slot
	FormErr     string
	Suggestions []Member
	ActiveSlot  int
	Submitting  bool
}

// Form owns the state of one event's registration form. All mutation
// goes through its methods; async completions re-enter through
// seq-checked apply paths.
type Form struct {
	mu sync.Mutex

	event     TeamEvent
	session   Session
	profile   *Profile
	registrar Registrar
	directory Directory
	lookup    *Lookup

	slots      []Slot
	mode       Mode
	formErr    string
	submitting bool
	reg        *Registration

	suggestions []Member
	activeSlot  int

	suggestTimers []*debouncer
	resolveTimers []*debouncer

	// base context for debounced fetches, which outlive the triggering call
	ctx context.Context

	onSaved          func(ctx context.Context)
	onSessionExpired func()
}

func newForm(ctx context.Context, event TeamEvent, w *Workflow) *Form {
	f := &Form{
		event:            event,
		session:          w.session,
		profile:          w.profile,
		registrar:        w.registrar,
		directory:        w.directory,
		lookup:           w.lookup,
		slots:            make([]Slot, event.TeamSize),
		mode:             ModeCreate,
		activeSlot:       -1,
		ctx:              ctx,
		onSaved:          w.refreshAfterSave,
		onSessionExpired: w.expireSession,
	}
	f.suggestTimers = make([]*debouncer, event.TeamSize)
	f.resolveTimers = make([]*debouncer, event.TeamSize)
	for i := 0; i < event.TeamSize; i++ {
		f.suggestTimers[i] = newDebouncer(w.suggestDelay)
		f.resolveTimers[i] = newDebouncer(w.resolveDelay)
	}
	return f
}

// bind re-derives the whole form from the given registration (or the
// empty state when reg is nil). Pending lookups are invalidated.
func (f *Form) bind(reg *Registration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.bindLocked(reg)
}

func (f *Form) bindLocked(reg *Registration) {
	f.reg = reg
	f.formErr = ""
	f.suggestions = nil
	f.activeSlot = -1
	for i := range f.slots {
		f.suggestTimers[i].Stop()
		f.resolveTimers[i].Stop()
		seq := f.slots[i].seq + 1
		f.slots[i] = Slot{seq: seq}
	}
	if reg == nil {
		f.mode = ModeCreate
		return
	}
	for i, m := range reg.Members {
		if i >= len(f.slots) {
			break
		}
		f.slots[i].Name = m.FullName()
		f.slots[i].Identifier = m.AadharNumber
		f.slots[i].MemberRef = m.ID
	}
	f.mode = ModeReadOnly
}

func (f *Form) Event() TeamEvent { return f.event }

// Registration returns the currently bound registration, nil before the
// first successful create.
func (f *Form) Registration() *Registration {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.reg
}

// State returns a copy of the form for rendering.
func (f *Form) State() FormState {
	f.mu.Lock()
	defer f.mu.Unlock()
	slots := make([]Slot, len(f.slots))
	copy(slots, f.slots)
	suggestions := make([]Member, len(f.suggestions))
	copy(suggestions, f.suggestions)
	return FormState{
		Event:       f.event,
		Mode:        f.mode,
		Slots:       slots,
		FormErr:     f.formErr,
		Suggestions: suggestions,
		ActiveSlot:  f.activeSlot,
		Submitting:  f.submitting,
	}
}

// SetIdentifier records a keystroke in a slot's identifier field. It
// re-runs duplicate detection, schedules the debounced prefix lookup and,
// at full identifier length, the debounced exact-match resolution.
func (f *Form) SetIdentifier(i int, value string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == ModeReadOnly || i < 0 || i >= len(f.slots) {
		return
	}

	sl := &f.slots[i]
	sl.Identifier = value
	sl.MemberRef = 0
	sl.Err = ""
	sl.Loading = false
	sl.seq++
	seq := sl.seq

	f.suggestTimers[i].Stop()
	f.resolveTimers[i].Stop()
	if f.activeSlot == i {
		f.suggestions = nil
		f.activeSlot = -1
	}

	if value == "" {
		return
	}

	if f.collidesLocked(i, value) {
		sl.Err = msgDuplicate
		return
	}

	f.suggestTimers[i].Trigger(func() { f.fetchSuggestions(i, value, seq) })
	if len(value) == IdentifierLen {
		f.resolveTimers[i].Trigger(func() { f.resolveExact(i, value, seq) })
	}
}

// SelectSuggestion fills a slot from a chosen suggestion and resolves it.
// Selecting the suggestion a slot already holds is a no-op.
func (f *Form) SelectSuggestion(i int, m Member) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == ModeReadOnly || i < 0 || i >= len(f.slots) {
		return
	}

	f.suggestions = nil
	f.activeSlot = -1

	sl := &f.slots[i]
	if sl.MemberRef == m.ID && sl.Identifier == m.AadharNumber {
		return
	}

	f.suggestTimers[i].Stop()
	f.resolveTimers[i].Stop()
	sl.seq++

	if f.collidesLocked(i, m.AadharNumber) {
		sl.Identifier = m.AadharNumber
		sl.MemberRef = 0
		sl.Err = msgDuplicate
		return
	}

	sl.Name = m.FullName()
	sl.Identifier = m.AadharNumber
	sl.MemberRef = m.ID
	sl.Err = ""
	sl.Loading = false
}

// ClearSuggestions closes the suggestion list, e.g. when focus leaves
// the active slot's region.
func (f *Form) ClearSuggestions() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.suggestions = nil
	f.activeSlot = -1
}

// Edit switches an existing registration's form into edit mode.
func (f *Form) Edit() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode == ModeReadOnly && f.reg != nil {
		f.mode = ModeEdit
	}
}

// Cancel leaves edit mode, discarding unsaved slot edits by recomputing
// the form from the last known-good registration.
func (f *Form) Cancel() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.mode != ModeEdit {
		return
	}
	f.bindLocked(f.reg)
}

// Submit validates preconditions locally, then creates or updates the
// registration. On success the whole registration list is refreshed so
// every form on the screen re-derives from fresh state.
func (f *Form) Submit(ctx context.Context) error {
	f.mu.Lock()
	if f.mode == ModeReadOnly {
		f.mu.Unlock()
		return ErrNotEditable
	}
	if f.submitting {
		f.mu.Unlock()
		return ErrAlreadySubmitting
	}
	if f.profile == nil {
		f.formErr = msgProfileMissing
		f.mu.Unlock()
		return ErrProfileNotLoaded
	}
	if f.markDuplicatesLocked() {
		f.formErr = msgDuplicateForm
		f.mu.Unlock()
		return ErrDuplicateMembers
	}
	ids := f.payloadLocked()
	if len(ids) == 0 {
		f.formErr = msgNoResolved
		f.mu.Unlock()
		return ErrNoResolvedSlots
	}

	f.submitting = true
	f.formErr = ""
	mode := f.mode
	reg := f.reg
	f.mu.Unlock()

	var saved *Registration
	var err error
	if mode == ModeCreate {
		saved, err = f.registrar.RegisterTeam(ctx, f.session, f.profile.TempleID, f.event.ID, ids)
	} else {
		saved, err = f.registrar.UpdateTeam(ctx, f.session, reg.ID, ids)
	}

	f.mu.Lock()
	f.submitting = false
	if err != nil {
		if !errors.Is(err, ErrSessionExpired) {
			f.formErr = serviceMessage(err, msgSubmitFailed)
		}
		f.mu.Unlock()
		if errors.Is(err, ErrSessionExpired) {
			f.signalSessionExpired()
		}
		return err
	}
	f.bindLocked(saved)
	f.mu.Unlock()

	if f.onSaved != nil {
		f.onSaved(ctx)
	}
	return nil
}

// payloadLocked collects member ids for submission: a slot contributes
// iff both its identifier and member reference are set, in slot order.
func (f *Form) payloadLocked() []int64 {
	var ids []int64
	for _, sl := range f.slots {
		if sl.Resolved() {
			ids = append(ids, sl.MemberRef)
		}
	}
	return ids
}

// collidesLocked reports whether any other slot holds the same
// non-empty identifier.
func (f *Form) collidesLocked(i int, identifier string) bool {
	for j := range f.slots {
		if j != i && f.slots[j].Identifier != "" && f.slots[j].Identifier == identifier {
			return true
		}
	}
	return false
}

// markDuplicatesLocked re-scans the full slot set before submission.
// Groups of slots sharing a non-empty identifier where at least one is
// resolved all get flagged, and the submission is blocked.
func (f *Form) markDuplicatesLocked() bool {
	byID := make(map[string][]int)
	for i, sl := range f.slots {
		if sl.Identifier != "" {
			byID[sl.Identifier] = append(byID[sl.Identifier], i)
		}
	}
	blocked := false
	for _, idxs := range byID {
		if len(idxs) < 2 {
			continue
		}
		resolved := false
		for _, i := range idxs {
			if f.slots[i].Resolved() {
				resolved = true
			}
		}
		if !resolved {
			continue
		}
		for _, i := range idxs {
			f.slots[i].Err = msgDuplicate
		}
		blocked = true
	}
	return blocked
}

func (f *Form) fetchSuggestions(i int, value string, seq uint64) {
	members, err := f.lookup.Suggest(f.ctx, f.session, value)
	if errors.Is(err, ErrSessionExpired) {
		f.signalSessionExpired()
		return
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.slots) || f.slots[i].seq != seq {
		return
	}
	f.suggestions = members
	f.activeSlot = i
}

func (f *Form) resolveExact(i int, value string, seq uint64) {
	f.mu.Lock()
	if i >= len(f.slots) || f.slots[i].seq != seq {
		f.mu.Unlock()
		return
	}
	f.slots[i].Loading = true
	f.mu.Unlock()

	m, err := f.directory.SearchByAadhar(f.ctx, f.session, value)

	f.mu.Lock()
	defer f.mu.Unlock()
	if i >= len(f.slots) || f.slots[i].seq != seq {
		return
	}
	sl := &f.slots[i]
	sl.Loading = false

	switch {
	case errors.Is(err, ErrSessionExpired):
		go f.signalSessionExpired()
	case err != nil:
		sl.Err = serviceMessage(err, msgResolveFailed)
	case f.profile != nil && m.TempleID != f.profile.TempleID:
		sl.Err = msgWrongTemple
	default:
		sl.Name = m.FullName()
		sl.Identifier = m.AadharNumber
		sl.MemberRef = m.ID
		sl.Err = ""
		if f.activeSlot == i {
			f.suggestions = nil
			f.activeSlot = -1
		}
	}
}

func (f *Form) signalSessionExpired() {
	if f.onSessionExpired != nil {
		f.onSessionExpired()
	}
}
