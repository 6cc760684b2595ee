// Package lifecycle holds the profile state machine. Every state change in
// the service goes through Machine.Transition; pairs missing from the table
// are rejected.
package lifecycle

import (
	"fmt"
	"time"

	"profile-registry/internal/domain"
	"profile-registry/pkg/apperror"
)

type key struct {
	from  domain.State
	event domain.Event
}

type guard func(m *Machine, req Request) error

type rule struct {
	to     domain.State
	guards []guard
}

// Request describes one attempted transition.
type Request struct {
	Aggregate *domain.Aggregate
	Event     domain.Event
	Actor     domain.Actor
	Now       time.Time
}

// Machine applies the transition table.
type Machine struct {
	resubmissionWindow time.Duration
	table              map[key]rule
}

// New builds the machine. A zero resubmissionWindow lets rejected profiles
// be reopened at any time.
func New(resubmissionWindow time.Duration) *Machine {
	return &Machine{
		resubmissionWindow: resubmissionWindow,
		table: map[key]rule{
			{domain.StateDraft, domain.EventSubmit}:      {to: domain.StateSubmitted, guards: []guard{ownerOnly, complete}},
			{domain.StateSubmitted, domain.EventApprove}: {to: domain.StateApproved, guards: []guard{reviewerOnly}},
			{domain.StateSubmitted, domain.EventReject}:  {to: domain.StateRejected, guards: []guard{reviewerOnly}},
			{domain.StateRejected, domain.EventReopen}:   {to: domain.StateDraft, guards: []guard{ownerOnly, withinWindow}},
		},
	}
}

// Transition returns the target state for req or the error explaining why
// the transition is refused. It never mutates the aggregate.
func (m *Machine) Transition(req Request) (domain.State, error) {
	if req.Aggregate == nil {
		return "", apperror.NotFound("Profile not found")
	}
	from := req.Aggregate.Profile.State
	r, ok := m.table[key{from, req.Event}]
	if !ok {
		return "", apperror.InvalidTransition(string(from), string(req.Event))
	}
	for _, g := range r.guards {
		if err := g(m, req); err != nil {
			return "", err
		}
	}
	return r.to, nil
}

// Allowed lists the events accepted from state, ignoring guards.
func (m *Machine) Allowed(state domain.State) []domain.Event {
	var events []domain.Event
	for _, e := range []domain.Event{domain.EventSubmit, domain.EventApprove, domain.EventReject, domain.EventReopen} {
		if _, ok := m.table[key{state, e}]; ok {
			events = append(events, e)
		}
	}
	return events
}

// Editable reports whether the aggregate payload may be rewritten in state.
func Editable(state domain.State) bool {
	return state == domain.StateDraft
}

func ownerOnly(_ *Machine, req Request) error {
	if req.Actor.ID == "" || req.Actor.ID != req.Aggregate.Profile.OwnerID {
		return apperror.Forbidden(fmt.Sprintf("only the profile owner may %s this profile", req.Event))
	}
	return nil
}

func reviewerOnly(_ *Machine, req Request) error {
	if !req.Actor.CanReview() {
		return apperror.Forbidden(fmt.Sprintf("reviewer capability required to %s", req.Event))
	}
	return nil
}

func complete(_ *Machine, req Request) error {
	missing := MissingFields(req.Aggregate)
	if len(missing) == 0 {
		return nil
	}
	return apperror.Validation(missing[0], "profile is incomplete and cannot be submitted").
		WithDetails(missing...)
}

func withinWindow(m *Machine, req Request) error {
	if m.resubmissionWindow <= 0 {
		return nil
	}
	rejectedAt := req.Aggregate.Profile.RejectedAt
	if rejectedAt == nil || req.Now.Sub(*rejectedAt) <= m.resubmissionWindow {
		return nil
	}
	e := apperror.InvalidTransition(string(req.Aggregate.Profile.State), string(req.Event))
	e.Message = fmt.Sprintf("resubmission window of %s has elapsed", m.resubmissionWindow)
	return e
}
