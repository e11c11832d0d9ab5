package workflow

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoadBuildsFormsBoundToExistingRegistrations(t *testing.T) {
	b := newFakeBackend()
	b.regs = []Registration{{ID: 700, EventID: 2, Members: []Member{memberA, memberB}}}
	w := newTestWorkflow(t, b)

	forms := w.Forms()
	require.Len(t, forms, 3)
	assert.Equal(t, "Relay - 100 X 4", forms[0].Event().Name)
	assert.Equal(t, "Volleyball", forms[1].Event().Name)
	assert.Equal(t, "Couple Relay", forms[2].Event().Name)

	assert.Equal(t, ModeCreate, forms[0].State().Mode)
	assert.Equal(t, ModeReadOnly, forms[1].State().Mode)
	assert.Equal(t, ModeCreate, forms[2].State().Mode)

	st := forms[1].State()
	require.Len(t, st.Slots, 9)
	assert.Equal(t, memberA.AadharNumber, st.Slots[0].Identifier)
	assert.Equal(t, memberB.AadharNumber, st.Slots[1].Identifier)
	assert.False(t, st.Slots[2].Resolved())
}

func TestLoadRejectsNonAdmin(t *testing.T) {
	b := newFakeBackend()
	b.profile.Role = "user"
	w := New(Config{
		Session:      Session{Token: "t"},
		Profiles:     b,
		Catalog:      b,
		Directory:    b,
		Registrar:    b,
		SuggestDelay: testSuggestDelay,
		ResolveDelay: testResolveDelay,
	})

	err := w.Load(context.Background())
	assert.ErrorIs(t, err, ErrNotTempleAdmin)
}

func TestLoadExpiredSessionMarksWorkflow(t *testing.T) {
	b := newFakeBackend()
	b.profileErr = ErrSessionExpired
	w := New(Config{
		Session:   Session{Token: "t"},
		Profiles:  b,
		Catalog:   b,
		Directory: b,
		Registrar: b,
	})

	err := w.Load(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, w.SessionExpired())
}

func TestResolveEventSharedAcrossGenderSections(t *testing.T) {
	events := []TeamEvent{
		{ID: 1, Name: "Volleyball", Gender: GenderMale, TeamSize: 9},
		{ID: 2, Name: "Volleyball", Gender: GenderFemale, TeamSize: 9},
		{ID: 3, Name: "Couple Relay", Gender: GenderAll, TeamSize: 2},
	}

	tests := []struct {
		name    string
		event   string
		gender  string
		wantID  int64
		wantHit bool
	}{
		{"men's volleyball", "Volleyball", GenderMale, 1, true},
		{"women's volleyball", "Volleyball", GenderFemale, 2, true},
		{"all event from men's section", "Couple Relay", GenderMale, 3, true},
		{"all event from women's section", "Couple Relay", GenderFemale, 3, true},
		{"unknown event", "Kho Kho", GenderMale, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			e, ok := ResolveEvent(events, tt.event, tt.gender)
			require.Equal(t, tt.wantHit, ok)
			if ok {
				assert.Equal(t, tt.wantID, e.ID)
			}
		})
	}
}

func TestAllGenderEventResolvesToSameForm(t *testing.T) {
	b := newFakeBackend()
	w := newTestWorkflow(t, b)

	menForm := w.FormFor("Couple Relay", GenderMale)
	womenForm := w.FormFor("Couple Relay", GenderFemale)
	require.NotNil(t, menForm)
	assert.Same(t, menForm, womenForm, "both sections share one form and one registration")
}

func TestRefreshReplacesRegistrationListWholesale(t *testing.T) {
	b := newFakeBackend()
	b.regs = []Registration{
		{ID: 700, EventID: 1, Members: []Member{memberA}},
		{ID: 701, EventID: 2, Members: []Member{memberB}},
	}
	w := newTestWorkflow(t, b)
	require.Len(t, w.Registrations(), 2)

	// registration 701 disappears server-side between refreshes
	b.mu.Lock()
	b.regs = []Registration{{ID: 700, EventID: 1, Members: []Member{memberA, memberC}}}
	b.mu.Unlock()

	require.NoError(t, w.Refresh(context.Background()))

	regs := w.Registrations()
	require.Len(t, regs, 1)
	assert.Len(t, regs[0].Members, 2)

	assert.Equal(t, ModeCreate, w.Form(2).State().Mode, "forms re-derive from the replaced list")
	assert.Equal(t, ModeReadOnly, w.Form(1).State().Mode)
}

func TestSaveLeavesSiblingFormsUntouched(t *testing.T) {
	b := newFakeBackend()
	b.regs = []Registration{{ID: 700, EventID: 3, Members: []Member{memberA, memberB}}}
	w := newTestWorkflow(t, b)

	// an open edit with an unsaved slot value
	editing := w.Form(3)
	editing.Edit()
	editing.SetIdentifier(1, "9999")

	// an unsaved composition on an unregistered event
	composing := w.Form(2)
	composing.SelectSuggestion(0, memberC)
	composing.SelectSuggestion(1, memberD)

	saving := w.Form(1)
	saving.SelectSuggestion(0, memberA)
	require.NoError(t, saving.Submit(context.Background()))
	require.Equal(t, ModeReadOnly, saving.State().Mode)

	st := editing.State()
	assert.Equal(t, ModeEdit, st.Mode, "open edit survives a sibling's save")
	assert.Equal(t, "9999", st.Slots[1].Identifier)

	st = composing.State()
	assert.Equal(t, ModeCreate, st.Mode)
	assert.Equal(t, memberC.ID, st.Slots[0].MemberRef, "composition survives a sibling's save")
	assert.Equal(t, memberD.ID, st.Slots[1].MemberRef)
}

func TestRefreshRebindsFormsWhoseRegistrationChanged(t *testing.T) {
	b := newFakeBackend()
	b.regs = []Registration{{ID: 700, EventID: 3, Members: []Member{memberA, memberB}}}
	w := newTestWorkflow(t, b)
	f := w.Form(3)
	f.Edit()
	f.SetIdentifier(1, "9999")

	// the roster changes server-side between refreshes
	b.mu.Lock()
	b.regs = []Registration{{ID: 700, EventID: 3, Members: []Member{memberA, memberC}}}
	b.mu.Unlock()

	require.NoError(t, w.Refresh(context.Background()))

	st := f.State()
	assert.Equal(t, ModeReadOnly, st.Mode)
	assert.Equal(t, memberC.AadharNumber, st.Slots[1].Identifier)
}

func TestWrappedSessionExpiryIsStillDetected(t *testing.T) {
	b := newFakeBackend()
	b.profileErr = fmt.Errorf("request failed: %w", ErrSessionExpired)
	w := New(Config{
		Session:   Session{Token: "t"},
		Profiles:  b,
		Catalog:   b,
		Directory: b,
		Registrar: b,
	})

	err := w.Load(context.Background())
	assert.ErrorIs(t, err, ErrSessionExpired)
	assert.True(t, w.SessionExpired())
}

func TestFormForUnknownSectionReturnsNil(t *testing.T) {
	b := newFakeBackend()
	w := newTestWorkflow(t, b)
	assert.Nil(t, w.FormFor("Chess", GenderMale))
}
