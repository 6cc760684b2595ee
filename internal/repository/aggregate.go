// Package repository holds the storage-independent half of the aggregate
// write: payload normalisation, parent checks, re-sequencing and the
// per-collection diff plan. The postgres and memory stores both build on it
// so they agree on every invariant.
package repository

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	"profile-registry/internal/domain"
	"profile-registry/pkg/apperror"
)

// Constraint names reported in ConflictErrors. They match the postgres
// index names so both stores report the same thing.
const (
	ConstraintOwnerVariant   = "profiles_owner_variant_key"
	ConstraintBusinessRegNo  = "profiles_business_registration_number_key"
	ConstraintPrimaryContact = "profile_contact_persons_primary_key"
	ConstraintTagUnique      = "profile_tags_pkey"
	ConstraintVersion        = "profile_version"
)

// PrepareEnvelope checks the variant-specific part of the envelope and
// applies normalisation (trimmed text, rate override).
func PrepareEnvelope(variant domain.Variant, envelope domain.Profile) (domain.Profile, error) {
	if !variant.Valid() {
		return domain.Profile{}, apperror.Validation("variant", fmt.Sprintf("unknown profile variant %q", variant))
	}
	if envelope.Variant != "" && envelope.Variant != variant {
		return domain.Profile{}, apperror.Validation("envelope.variant", "envelope variant does not match the requested variant")
	}
	envelope.Variant = variant

	switch variant {
	case domain.VariantPersonal:
		if envelope.Company != nil {
			return domain.Profile{}, apperror.Validation("envelope.company", "company details are not allowed on a personal profile")
		}
		if envelope.Personal == nil {
			envelope.Personal = &domain.PersonalDetails{}
		}
		details := *envelope.Personal
		details.HourlyRate = details.HourlyRate.Normalized()
		details.HourlyRate.Currency = strings.ToUpper(strings.TrimSpace(details.HourlyRate.Currency))
		r := details.HourlyRate
		if r.Min != nil && r.Max != nil && *r.Min > *r.Max {
			return domain.Profile{}, apperror.Validation("envelope.personal.hourly_rate.min", "minimum hourly rate exceeds maximum")
		}
		envelope.Personal = &details
	case domain.VariantCompany:
		if envelope.Personal != nil {
			return domain.Profile{}, apperror.Validation("envelope.personal", "personal details are not allowed on a company profile")
		}
		if envelope.Company == nil {
			envelope.Company = &domain.CompanyDetails{}
		}
		details := *envelope.Company
		details.BusinessRegistrationNumber = strings.TrimSpace(details.BusinessRegistrationNumber)
		details.RepresentativeName = strings.TrimSpace(details.RepresentativeName)
		envelope.Company = &details
	}

	envelope.DisplayName = strings.TrimSpace(envelope.DisplayName)
	envelope.ContactEmail = strings.TrimSpace(envelope.ContactEmail)
	envelope.ContactPhone = strings.TrimSpace(envelope.ContactPhone)
	if envelope.Attachments == nil {
		envelope.Attachments = []domain.FileRef{}
	}
	return envelope, nil
}

// PrepareChildren validates the desired child collections against the
// parent they are written to and re-sequences each one to 1..n. parentID is
// the id of the existing profile, or "" when the profile is being created,
// in which case no child may declare a parent.
func PrepareChildren(parentID string, variant domain.Variant, in domain.Children) (domain.Children, error) {
	var out domain.Children
	var err error

	switch variant {
	case domain.VariantPersonal:
		if len(in.ContactPersons) > 0 {
			return out, apperror.Validation("children.contact_persons", "contact persons belong to company profiles")
		}
		if len(in.Certifications) > 0 {
			return out, apperror.Validation("children.certifications", "certification requests belong to company profiles")
		}
	case domain.VariantCompany:
		if len(in.Experiences) > 0 {
			return out, apperror.Validation("children.experiences", "experiences belong to personal profiles")
		}
		if len(in.Certificates) > 0 {
			return out, apperror.Validation("children.certificates", "certificates belong to personal profiles")
		}
	}

	if out.Experiences, err = resequence(in.Experiences, "children.experiences", parentID,
		func(e *domain.Experience) (*string, *int) { return &e.ProfileID, &e.Sequence }); err != nil {
		return out, err
	}
	if out.Certificates, err = resequence(in.Certificates, "children.certificates", parentID,
		func(c *domain.Certificate) (*string, *int) { return &c.ProfileID, &c.Sequence }); err != nil {
		return out, err
	}
	if out.ContactPersons, err = resequence(in.ContactPersons, "children.contact_persons", parentID,
		func(c *domain.ContactPerson) (*string, *int) { return &c.ProfileID, &c.Sequence }); err != nil {
		return out, err
	}
	if out.Certifications, err = resequence(in.Certifications, "children.certifications", parentID,
		func(c *domain.CertificationRequest) (*string, *int) { return &c.ProfileID, &c.Sequence }); err != nil {
		return out, err
	}
	if out.Tags, err = prepareTags(in.Tags, parentID); err != nil {
		return out, err
	}

	primaries := 0
	for _, c := range out.ContactPersons {
		if c.IsPrimary {
			primaries++
		}
	}
	if primaries > 1 {
		return out, apperror.Conflict(ConstraintPrimaryContact, "only one contact person may be primary")
	}
	return out, nil
}

// WithParent stamps every child row with profileID.
func WithParent(c domain.Children, profileID string) domain.Children {
	for i := range c.Experiences {
		c.Experiences[i].ProfileID = profileID
	}
	for i := range c.Certificates {
		c.Certificates[i].ProfileID = profileID
	}
	for i := range c.ContactPersons {
		c.ContactPersons[i].ProfileID = profileID
	}
	for i := range c.Certifications {
		c.Certifications[i].ProfileID = profileID
	}
	for i := range c.Tags {
		c.Tags[i].ProfileID = profileID
	}
	return c
}

// resequence orders rows by their supplied sequence (rows without one keep
// their input position after the numbered rows) and renumbers them 1..n.
func resequence[T any](items []T, field, parentID string, ref func(*T) (*string, *int)) ([]T, error) {
	out := make([]T, len(items))
	copy(out, items)

	seen := make(map[int]int, len(out))
	for i := range out {
		parent, seq := ref(&out[i])
		if *parent != "" && *parent != parentID {
			return nil, apperror.Validation(fmt.Sprintf("%s[%d].profile_id", field, i), "child row belongs to a different profile")
		}
		if *seq < 0 {
			return nil, apperror.Validation(fmt.Sprintf("%s[%d].sequence", field, i), "sequence must not be negative")
		}
		if *seq > 0 {
			if prev, dup := seen[*seq]; dup {
				return nil, apperror.Validation(fmt.Sprintf("%s[%d].sequence", field, i),
					fmt.Sprintf("sequence %d is also used by %s[%d]", *seq, field, prev))
			}
			seen[*seq] = i
		}
	}

	slices.SortStableFunc(out, func(a, b T) int {
		_, sa := ref(&a)
		_, sb := ref(&b)
		return cmp.Compare(sortKey(*sa), sortKey(*sb))
	})

	for i := range out {
		_, seq := ref(&out[i])
		*seq = i + 1
	}
	return out, nil
}

// sortKey places unnumbered rows after numbered ones.
func sortKey(seq int) int {
	if seq == 0 {
		return int(^uint(0) >> 1)
	}
	return seq
}

// prepareTags renumbers tags within each group and rejects duplicate
// (group, key) pairs. Groups keep the order of their first appearance.
func prepareTags(tags []domain.ClassificationTag, parentID string) ([]domain.ClassificationTag, error) {
	var groups []string
	byGroup := make(map[string][]domain.ClassificationTag)
	keys := make(map[[2]string]bool, len(tags))

	for i, t := range tags {
		t.Group = strings.TrimSpace(t.Group)
		t.Key = strings.TrimSpace(t.Key)
		if t.ProfileID != "" && t.ProfileID != parentID {
			return nil, apperror.Validation(fmt.Sprintf("children.tags[%d].profile_id", i), "child row belongs to a different profile")
		}
		k := [2]string{t.Group, t.Key}
		if keys[k] {
			return nil, apperror.Conflict(ConstraintTagUnique,
				fmt.Sprintf("classification %s/%s is listed more than once", t.Group, t.Key))
		}
		keys[k] = true
		if _, ok := byGroup[t.Group]; !ok {
			groups = append(groups, t.Group)
		}
		byGroup[t.Group] = append(byGroup[t.Group], t)
	}

	out := make([]domain.ClassificationTag, 0, len(tags))
	for _, g := range groups {
		seqd, err := resequence(byGroup[g], "children.tags", parentID,
			func(t *domain.ClassificationTag) (*string, *int) { return &t.ProfileID, &t.Sequence })
		if err != nil {
			return nil, err
		}
		out = append(out, seqd...)
	}
	return out, nil
}
