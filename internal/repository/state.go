package repository

import (
	"profile-registry/internal/domain"
	"profile-registry/internal/lifecycle"
	"profile-registry/pkg/apperror"
)

// ApplyStateChange checks the expected current state and stamps the
// lifecycle columns for the event. The caller must hold the row lock.
func ApplyStateChange(p *domain.Profile, change domain.StateChange) error {
	if p.State != change.From {
		return apperror.InvalidTransition(string(p.State), string(change.Event))
	}

	at := change.At
	p.State = change.To
	p.UpdatedAt = at
	p.Version++

	switch change.Event {
	case domain.EventSubmit:
		p.SubmittedAt = &at
	case domain.EventApprove, domain.EventReject:
		actor := change.ActorID
		p.ReviewedBy = &actor
		p.ReviewNote = change.Note
		p.ReviewedAt = &at
		if change.Event == domain.EventApprove {
			p.ApprovedAt = &at
		} else {
			p.RejectedAt = &at
		}
	case domain.EventReopen:
		// review metadata is kept so the owner can see why it was rejected
	}
	return nil
}

// MergeEnvelope builds the envelope to persist from the caller's payload and
// the stored row. Identity, lifecycle and rating columns are never taken from
// the payload.
func MergeEnvelope(stored *domain.Profile, in domain.Profile, ownerID, id string) domain.Profile {
	out := in
	out.ID = id
	out.OwnerID = ownerID
	out.DeletedAt = nil
	if stored == nil {
		out.State = domain.StateDraft
		out.Version = 1
		out.Rating = nil
		out.ReviewCount = 0
		out.ReviewedBy, out.ReviewNote = nil, nil
		out.SubmittedAt, out.ReviewedAt, out.ApprovedAt, out.RejectedAt = nil, nil, nil, nil
		return out
	}

	out.State = stored.State
	out.Version = stored.Version + 1
	out.Rating = stored.Rating
	out.ReviewCount = stored.ReviewCount
	out.ReviewedBy = stored.ReviewedBy
	out.ReviewNote = stored.ReviewNote
	out.SubmittedAt = stored.SubmittedAt
	out.ReviewedAt = stored.ReviewedAt
	out.ApprovedAt = stored.ApprovedAt
	out.RejectedAt = stored.RejectedAt
	out.CreatedAt = stored.CreatedAt
	return out
}

// CheckWritable rejects writes to a non-draft profile and stale versions.
// A zero payload version skips the version check.
func CheckWritable(stored *domain.Profile, payloadVersion int64) error {
	if !lifecycle.Editable(stored.State) {
		return apperror.ImmutableState(string(stored.State))
	}
	if payloadVersion != 0 && payloadVersion != stored.Version {
		return apperror.Conflict(ConstraintVersion, "profile was modified by another request")
	}
	return nil
}
