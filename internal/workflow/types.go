// Package workflow implements the team registration screen: one form per
// team event, with type-ahead member lookup, duplicate detection and a
// create/readonly/edit lifecycle against the registration service.
package workflow

import (
	"context"
	"errors"
)

const (
	GenderMale   = "MALE"
	GenderFemale = "FEMALE"
	GenderAll    = "ALL"
)

var (
	ErrSessionExpired    = errors.New("session expired")
	ErrNotTempleAdmin    = errors.New("temple admin role required")
	ErrNoResolvedSlots   = errors.New("no resolved members to submit")
	ErrDuplicateMembers  = errors.New("duplicate members in roster")
	ErrProfileNotLoaded  = errors.New("caller profile not loaded")
	ErrAlreadySubmitting = errors.New("submission already in progress")
	ErrNotEditable       = errors.New("form is read-only")
)

// Session is the bearer credential passed explicitly to every
// collaborator call.
type Session struct {
	Token string
}

type Profile struct {
	ID        int64
	TempleID  int64
	FirstName string
	LastName  string
	Role      string
}

func (p Profile) IsTempleAdmin() bool {
	return p.Role == "temple_admin"
}

type Member struct {
	ID           int64
	TempleID     int64
	FirstName    string
	LastName     string
	AadharNumber string
}

func (m Member) FullName() string {
	return m.FirstName + " " + m.LastName
}

type TeamEvent struct {
	ID       int64
	Name     string
	Gender   string
	TeamSize int
}

// MatchesGender reports whether the event belongs in a section of the
// given gender. ALL events appear in both sections.
func (e TeamEvent) MatchesGender(gender string) bool {
	return e.Gender == GenderAll || e.Gender == gender
}

type Registration struct {
	ID      int64
	EventID int64
	Members []Member
}

// Profiles yields the caller's identity and role.
type Profiles interface {
	Profile(ctx context.Context, s Session) (*Profile, error)
}

// Catalog lists the team event definitions.
type Catalog interface {
	TeamEvents(ctx context.Context, s Session) ([]TeamEvent, error)
}

// Directory serves the temple roster and exact-identifier lookups.
type Directory interface {
	TempleUsers(ctx context.Context, s Session) ([]Member, error)
	SearchByAadhar(ctx context.Context, s Session, aadhar string) (*Member, error)
}

// Registrar creates and updates team registrations, one per
// (temple, event).
type Registrar interface {
	TempleTeams(ctx context.Context, s Session) ([]Registration, error)
	RegisterTeam(ctx context.Context, s Session, templeID, eventID int64, memberIDs []int64) (*Registration, error)
	UpdateTeam(ctx context.Context, s Session, teamID int64, memberIDs []int64) (*Registration, error)
}

// serviceMessenger is implemented by transport errors that carry a
// service-provided message safe to show the operator.
type serviceMessenger interface {
	ServiceMessage() string
}

func serviceMessage(err error, fallback string) string {
	var sm serviceMessenger
	if errors.As(err, &sm) && sm.ServiceMessage() != "" {
		return sm.ServiceMessage()
	}
	return fallback
}

// ResolveEvent finds the event for a (name, gender) section by explicit
// catalog lookup. An ALL event answers a lookup for either gender and is
// therefore shared between the men's and women's sections.
func ResolveEvent(events []TeamEvent, name, gender string) (TeamEvent, bool) {
	for _, e := range events {
		if e.Name == name && e.MatchesGender(gender) {
			return e, true
		}
	}
	return TeamEvent{}, false
}
