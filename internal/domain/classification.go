package domain

import "context"

// Well-known classification groups. Groups are an open set; the code store
// is the authority on which exist.
const (
	GroupSpecialty         = "specialty"
	GroupCountry           = "country"
	GroupActivity          = "activity"
	GroupIndustry          = "industry"
	GroupCertificationType = "certification_type"
)

// ClassificationCode is one registry entry.
type ClassificationCode struct {
	Group    string `json:"group"`
	Key      string `json:"key"`
	Label    string `json:"label"`
	Sequence int    `json:"sequence"`
	Active   bool   `json:"active"`
}

// ClassificationTag attaches a code to a profile. Unique on
// (ProfileID, Group, Key).
type ClassificationTag struct {
	ProfileID string `json:"profile_id,omitempty"`
	Group     string `json:"group" validate:"required,max=50"`
	Key       string `json:"key" validate:"required,max=100"`
	Label     string `json:"label" validate:"max=200"`
	Sequence  int    `json:"sequence" validate:"gte=0"`
}

// ClassificationCodeStore is the read-mostly key/label registry.
type ClassificationCodeStore interface {
	ListGroups(ctx context.Context) ([]string, error)
	ListCodes(ctx context.Context, group string) ([]ClassificationCode, error)
	GetCode(ctx context.Context, group, key string) (*ClassificationCode, error)
}
