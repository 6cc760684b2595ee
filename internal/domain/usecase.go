package domain

import "context"

// DraftPayload is a full desired state: envelope plus every child
// collection as an ordered list.
type DraftPayload struct {
	Envelope Profile  `json:"envelope"`
	Children Children `json:"children"`
}

// ProfileUsecase is the single entry point for external collaborators.
type ProfileUsecase interface {
	CreateOrUpdateDraft(ctx context.Context, ownerID string, variant Variant, payload DraftPayload) (string, error)
	Submit(ctx context.Context, profileID, ownerID string) error
	Review(ctx context.Context, profileID string, reviewer Actor, decision ReviewDecision) error
	Reopen(ctx context.Context, profileID, ownerID string) error
	Search(ctx context.Context, criteria SearchCriteria) (SearchResult, error)

	GetProfile(ctx context.Context, profileID string, viewer Actor) (*Aggregate, error)
	GetOwnProfile(ctx context.Context, ownerID string, variant Variant) (*Aggregate, error)
	Delete(ctx context.Context, profileID, ownerID string) error
	RecordRating(ctx context.Context, profileID string, rating float64, reviewCount int) error

	ListClassificationGroups(ctx context.Context) ([]string, error)
	ListClassificationCodes(ctx context.Context, group string) ([]ClassificationCode, error)
}
