package lifecycle_test

import (
	"testing"
	"time"

	"profile-registry/internal/domain"
	"profile-registry/internal/lifecycle"
	"profile-registry/pkg/apperror"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func intPtr(v int) *int { return &v }

func completePersonal(state domain.State) *domain.Aggregate {
	return &domain.Aggregate{
		Profile: domain.Profile{
			ID:           "p1",
			OwnerID:      "owner-1",
			Variant:      domain.VariantPersonal,
			DisplayName:  "Kim Auditor",
			ContactEmail: "kim@example.com",
			ContactPhone: "+821012345678",
			LocationCode: intPtr(11),
			Personal:     &domain.PersonalDetails{YearsOfExperience: intPtr(7)},
			State:        state,
		},
		Children: domain.Children{
			Experiences:  []domain.Experience{{Sequence: 1, Title: "Lead auditor"}},
			Certificates: []domain.Certificate{{Sequence: 1, Name: "ISMS-P", Status: domain.CertificateValid}},
		},
	}
}

func TestTransitionTable(t *testing.T) {
	m := lifecycle.New(0)
	owner := domain.Actor{ID: "owner-1", Role: domain.RoleOwner}
	reviewer := domain.Actor{ID: "rev-1", Role: domain.RoleReviewer}

	tests := []struct {
		name  string
		from  domain.State
		event domain.Event
		actor domain.Actor
		want  domain.State
		kind  apperror.Kind
	}{
		{"draft submit", domain.StateDraft, domain.EventSubmit, owner, domain.StateSubmitted, ""},
		{"submitted approve", domain.StateSubmitted, domain.EventApprove, reviewer, domain.StateApproved, ""},
		{"submitted reject", domain.StateSubmitted, domain.EventReject, reviewer, domain.StateRejected, ""},
		{"rejected reopen", domain.StateRejected, domain.EventReopen, owner, domain.StateDraft, ""},
		{"approve needs reviewer", domain.StateSubmitted, domain.EventApprove, owner, "", apperror.KindForbidden},
		{"reopen needs owner", domain.StateRejected, domain.EventReopen, reviewer, "", apperror.KindForbidden},
		{"submit needs owner", domain.StateDraft, domain.EventSubmit, domain.Actor{ID: "someone-else"}, "", apperror.KindForbidden},
		{"draft approve", domain.StateDraft, domain.EventApprove, reviewer, "", apperror.KindInvalidTransition},
		{"approved reopen", domain.StateApproved, domain.EventReopen, owner, "", apperror.KindInvalidTransition},
		{"approved reject", domain.StateApproved, domain.EventReject, reviewer, "", apperror.KindInvalidTransition},
		{"submitted submit", domain.StateSubmitted, domain.EventSubmit, owner, "", apperror.KindInvalidTransition},
		{"rejected submit", domain.StateRejected, domain.EventSubmit, owner, "", apperror.KindInvalidTransition},
		{"draft reopen", domain.StateDraft, domain.EventReopen, owner, "", apperror.KindInvalidTransition},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := m.Transition(lifecycle.Request{
				Aggregate: completePersonal(tt.from),
				Event:     tt.event,
				Actor:     tt.actor,
				Now:       time.Now(),
			})
			if tt.kind != "" {
				require.Error(t, err)
				assert.Equal(t, tt.kind, apperror.KindOf(err))
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvalidTransitionNamesStateAndEvent(t *testing.T) {
	m := lifecycle.New(0)
	_, err := m.Transition(lifecycle.Request{
		Aggregate: completePersonal(domain.StateApproved),
		Event:     domain.EventSubmit,
		Actor:     domain.Actor{ID: "owner-1"},
	})

	var appErr *apperror.AppError
	require.ErrorAs(t, err, &appErr)
	assert.Equal(t, "approved", appErr.State)
	assert.Equal(t, "submit", appErr.Event)
}

func TestSubmitGuardRequiresCompleteness(t *testing.T) {
	m := lifecycle.New(0)
	owner := domain.Actor{ID: "owner-1"}

	t.Run("personal without certificates", func(t *testing.T) {
		agg := completePersonal(domain.StateDraft)
		agg.Children.Certificates = nil
		_, err := m.Transition(lifecycle.Request{Aggregate: agg, Event: domain.EventSubmit, Actor: owner})

		var appErr *apperror.AppError
		require.ErrorAs(t, err, &appErr)
		assert.Equal(t, apperror.KindValidation, appErr.Kind)
		assert.Equal(t, "children.certificates", appErr.Field)
	})

	t.Run("personal with blank envelope", func(t *testing.T) {
		agg := completePersonal(domain.StateDraft)
		agg.Profile.DisplayName = "  "
		agg.Profile.LocationCode = nil
		missing := lifecycle.MissingFields(agg)
		assert.Equal(t, []string{"envelope.display_name", "envelope.location_code"}, missing)
	})

	t.Run("company needs one primary contact", func(t *testing.T) {
		agg := &domain.Aggregate{
			Profile: domain.Profile{
				OwnerID:      "owner-1",
				Variant:      domain.VariantCompany,
				DisplayName:  "Acme Security",
				ContactEmail: "info@acme.example",
				ContactPhone: "0212345678",
				LocationCode: intPtr(11),
				Company:      &domain.CompanyDetails{BusinessRegistrationNumber: "123-45-67890", RepresentativeName: "Lee"},
				State:        domain.StateDraft,
			},
			Children: domain.Children{
				ContactPersons: []domain.ContactPerson{{Sequence: 1, Name: "Park"}},
			},
		}
		assert.Equal(t, []string{"children.contact_persons.is_primary"}, lifecycle.MissingFields(agg))

		agg.Children.ContactPersons[0].IsPrimary = true
		got, err := m.Transition(lifecycle.Request{Aggregate: agg, Event: domain.EventSubmit, Actor: owner})
		require.NoError(t, err)
		assert.Equal(t, domain.StateSubmitted, got)
	})
}

func TestReopenWindow(t *testing.T) {
	m := lifecycle.New(48 * time.Hour)
	now := time.Date(2026, 3, 10, 12, 0, 0, 0, time.UTC)
	owner := domain.Actor{ID: "owner-1"}

	agg := completePersonal(domain.StateRejected)
	rejected := now.Add(-24 * time.Hour)
	agg.Profile.RejectedAt = &rejected

	got, err := m.Transition(lifecycle.Request{Aggregate: agg, Event: domain.EventReopen, Actor: owner, Now: now})
	require.NoError(t, err)
	assert.Equal(t, domain.StateDraft, got)

	expired := now.Add(-72 * time.Hour)
	agg.Profile.RejectedAt = &expired
	_, err = m.Transition(lifecycle.Request{Aggregate: agg, Event: domain.EventReopen, Actor: owner, Now: now})
	assert.True(t, apperror.IsKind(err, apperror.KindInvalidTransition))
}

func TestAllowedAndEditable(t *testing.T) {
	m := lifecycle.New(0)
	assert.Equal(t, []domain.Event{domain.EventSubmit}, m.Allowed(domain.StateDraft))
	assert.Equal(t, []domain.Event{domain.EventApprove, domain.EventReject}, m.Allowed(domain.StateSubmitted))
	assert.Empty(t, m.Allowed(domain.StateApproved))

	assert.True(t, lifecycle.Editable(domain.StateDraft))
	for _, s := range []domain.State{domain.StateSubmitted, domain.StateApproved, domain.StateRejected} {
		assert.False(t, lifecycle.Editable(s), s)
	}
}
