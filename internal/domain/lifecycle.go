package domain

// State is the lifecycle state of a profile.
type State string

const (
	StateDraft     State = "draft"
	StateSubmitted State = "submitted"
	StateApproved  State = "approved"
	StateRejected  State = "rejected"
)

// Event requests a lifecycle transition.
type Event string

const (
	EventSubmit  Event = "submit"
	EventApprove Event = "approve"
	EventReject  Event = "reject"
	EventReopen  Event = "reopen"
)

// Roles carried by an authenticated actor.
const (
	RoleOwner    = "owner"
	RoleReviewer = "reviewer"
	RoleAdmin    = "admin"
)

// Actor is an already-authenticated caller.
type Actor struct {
	ID   string
	Role string
}

// CanReview reports whether the actor holds reviewer capability.
func (a Actor) CanReview() bool {
	return a.Role == RoleReviewer || a.Role == RoleAdmin
}

// ReviewDecision is the external reviewer's verdict on a submitted profile.
type ReviewDecision struct {
	Event Event  `json:"decision" validate:"required,oneof=approve reject"`
	Note  string `json:"note" validate:"max=2000"`
}
