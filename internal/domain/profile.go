package domain

import (
	"context"
	"time"
)

// Variant distinguishes the two kinds of registrants sharing the profile envelope.
type Variant string

const (
	VariantPersonal Variant = "personal"
	VariantCompany  Variant = "company"
)

func (v Variant) Valid() bool {
	return v == VariantPersonal || v == VariantCompany
}

// FileRef points at a file held by an external storage service. The bytes
// never pass through this service.
type FileRef struct {
	Name       string `json:"name" validate:"required,max=255,file_name"`
	Size       int64  `json:"size" validate:"gte=0,lte=26214400"`
	StorageRef string `json:"storage_ref" validate:"required,max=1024"`
}

// HourlyRate is the personal rate range. A non-empty Text ("negotiable")
// overrides and clears the numeric bounds.
type HourlyRate struct {
	Min      *int64  `json:"min,omitempty" validate:"omitempty,gte=0"`
	Max      *int64  `json:"max,omitempty" validate:"omitempty,gte=0"`
	Currency string  `json:"currency,omitempty" validate:"omitempty,len=3,alpha"`
	Text     *string `json:"text,omitempty" validate:"omitempty,max=100,no_emoji"`
}

// Normalized applies the free-text override.
func (r HourlyRate) Normalized() HourlyRate {
	if r.Text != nil && *r.Text != "" {
		r.Min = nil
		r.Max = nil
		return r
	}
	r.Text = nil
	return r
}

type PersonalDetails struct {
	YearsOfExperience *int       `json:"years_of_experience,omitempty" validate:"omitempty,gte=0,lte=80"`
	HourlyRate        HourlyRate `json:"hourly_rate"`
}

type CompanyDetails struct {
	BusinessRegistrationNumber string     `json:"business_registration_number,omitempty" validate:"omitempty,max=32,business_reg_no"`
	RepresentativeName         string     `json:"representative_name,omitempty" validate:"omitempty,max=100,valid_name"`
	FoundedOn                  *time.Time `json:"founded_on,omitempty" validate:"omitempty,not_future"`
	EmployeeCount              *int       `json:"employee_count,omitempty" validate:"omitempty,gte=0"`
}

// Profile is the envelope shared by both variants. Exactly one of Personal
// and Company is set, matching Variant.
type Profile struct {
	ID           string    `json:"id"`
	OwnerID      string    `json:"owner_id"`
	Variant      Variant   `json:"variant"`
	DisplayName  string    `json:"display_name" validate:"max=200,no_emoji"`
	ContactEmail string    `json:"contact_email" validate:"omitempty,email,max=254"`
	ContactPhone string    `json:"contact_phone" validate:"omitempty,valid_phone"`
	Bio          string    `json:"bio" validate:"max=4000"`
	LocationCode *int      `json:"location_code,omitempty" validate:"omitempty,gte=0"`
	Attachments  []FileRef `json:"attachments" validate:"max=20,dive"`

	Personal *PersonalDetails `json:"personal,omitempty"`
	Company  *CompanyDetails  `json:"company,omitempty"`

	State       State    `json:"state"`
	Version     int64    `json:"version"`
	Rating      *float64 `json:"rating,omitempty"`
	ReviewCount int      `json:"review_count"`

	ReviewedBy  *string    `json:"reviewed_by,omitempty"`
	ReviewNote  *string    `json:"review_note,omitempty"`
	SubmittedAt *time.Time `json:"submitted_at,omitempty"`
	ReviewedAt  *time.Time `json:"reviewed_at,omitempty"`
	ApprovedAt  *time.Time `json:"approved_at,omitempty"`
	RejectedAt  *time.Time `json:"rejected_at,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
	DeletedAt   *time.Time `json:"deleted_at,omitempty"`
}

// CertificateStatus is a closed enum.
type CertificateStatus string

const (
	CertificateValid   CertificateStatus = "valid"
	CertificateExpired CertificateStatus = "expired"
	CertificatePending CertificateStatus = "pending"
)

// Experience belongs to a personal profile.
type Experience struct {
	ProfileID    string     `json:"profile_id,omitempty"`
	Sequence     int        `json:"sequence" validate:"gte=0"`
	Title        string     `json:"title" validate:"required,max=200,no_emoji"`
	Organization string     `json:"organization" validate:"max=200"`
	PeriodText   string     `json:"period_text" validate:"max=100"`
	StartDate    *time.Time `json:"start_date,omitempty"`
	EndDate      *time.Time `json:"end_date,omitempty" validate:"omitempty,date_after=StartDate"`
	Description  string     `json:"description" validate:"max=4000"`
}

// Certificate belongs to a personal profile.
type Certificate struct {
	ProfileID string            `json:"profile_id,omitempty"`
	Sequence  int               `json:"sequence" validate:"gte=0"`
	Name      string            `json:"name" validate:"required,max=200"`
	Status    CertificateStatus `json:"status" validate:"required,oneof=valid expired pending"`
	IssuedOn  *time.Time        `json:"issued_on,omitempty"`
	ExpiresOn *time.Time        `json:"expires_on,omitempty" validate:"omitempty,date_after=IssuedOn"`
	Document  *FileRef          `json:"document,omitempty"`
}

// ContactPerson belongs to a company profile.
type ContactPerson struct {
	ProfileID string `json:"profile_id,omitempty"`
	Sequence  int    `json:"sequence" validate:"gte=0"`
	Name      string `json:"name" validate:"required,max=100,valid_name"`
	Position  string `json:"position" validate:"max=100"`
	Email     string `json:"email" validate:"omitempty,email,max=254"`
	Phone     string `json:"phone" validate:"omitempty,valid_phone"`
	IsPrimary bool   `json:"is_primary"`
}

// CertificationRequest belongs to a company profile.
type CertificationRequest struct {
	ProfileID         string     `json:"profile_id,omitempty"`
	Sequence          int        `json:"sequence" validate:"gte=0"`
	CertificationType string     `json:"certification_type" validate:"required,max=100"`
	Level             string     `json:"level" validate:"max=100"`
	AuditType         string     `json:"audit_type" validate:"max=100"`
	Scope             string     `json:"scope" validate:"max=4000"`
	DesiredDate       *time.Time `json:"desired_date,omitempty"`
}

// Children holds every child collection of a profile. Each collection is a
// full replacement on write.
type Children struct {
	Experiences    []Experience           `json:"experiences" validate:"max=100,dive"`
	Certificates   []Certificate          `json:"certificates" validate:"max=100,dive"`
	ContactPersons []ContactPerson        `json:"contact_persons" validate:"max=50,dive"`
	Certifications []CertificationRequest `json:"certifications" validate:"max=50,dive"`
	Tags           []ClassificationTag    `json:"tags" validate:"max=200,dive"`
}

// Aggregate is a profile envelope plus all of its child collections.
type Aggregate struct {
	Profile  Profile  `json:"profile"`
	Children Children `json:"children"`
}

// LoadOptions is reserved for internal reconciliation callers.
type LoadOptions struct {
	IncludeDeleted bool
}

// StateChange is a conditional state write: it applies only while the
// stored state still equals From.
type StateChange struct {
	ProfileID string
	From      State
	To        State
	Event     Event
	ActorID   string
	Note      *string
	At        time.Time
}

// AggregateRepository owns the composite read/write of a profile.
type AggregateRepository interface {
	UpsertAggregate(ctx context.Context, ownerID string, variant Variant, envelope Profile, children Children) (string, error)
	LoadAggregate(ctx context.Context, profileID string, opts LoadOptions) (*Aggregate, error)
	FindByOwner(ctx context.Context, ownerID string, variant Variant) (*Aggregate, error)
	UpdateState(ctx context.Context, change StateChange) error
	UpdateRating(ctx context.Context, profileID string, rating *float64, reviewCount int) error
	SoftDelete(ctx context.Context, profileID string, at time.Time) error
}
