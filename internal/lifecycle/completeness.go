package lifecycle

import (
	"strings"

	"profile-registry/internal/domain"
)

// MissingFields lists the field paths that block submission, in a stable
// order. Drafts may be partial; this check runs only on submit.
//
// Required for every variant: display name, contact email, contact phone,
// location. Personal: years of experience, at least one experience and one
// certificate. Company: business registration number, representative name,
// at least one contact person with exactly one of them primary.
func MissingFields(agg *domain.Aggregate) []string {
	var missing []string
	p := agg.Profile

	if blank(p.DisplayName) {
		missing = append(missing, "envelope.display_name")
	}
	if blank(p.ContactEmail) {
		missing = append(missing, "envelope.contact_email")
	}
	if blank(p.ContactPhone) {
		missing = append(missing, "envelope.contact_phone")
	}
	if p.LocationCode == nil {
		missing = append(missing, "envelope.location_code")
	}

	switch p.Variant {
	case domain.VariantPersonal:
		if p.Personal == nil || p.Personal.YearsOfExperience == nil {
			missing = append(missing, "envelope.personal.years_of_experience")
		}
		if len(agg.Children.Experiences) == 0 {
			missing = append(missing, "children.experiences")
		}
		if len(agg.Children.Certificates) == 0 {
			missing = append(missing, "children.certificates")
		}
	case domain.VariantCompany:
		if p.Company == nil || blank(p.Company.BusinessRegistrationNumber) {
			missing = append(missing, "envelope.company.business_registration_number")
		}
		if p.Company == nil || blank(p.Company.RepresentativeName) {
			missing = append(missing, "envelope.company.representative_name")
		}
		if len(agg.Children.ContactPersons) == 0 {
			missing = append(missing, "children.contact_persons")
		} else if primaries(agg.Children.ContactPersons) != 1 {
			missing = append(missing, "children.contact_persons.is_primary")
		}
	}
	return missing
}

func primaries(contacts []domain.ContactPerson) int {
	n := 0
	for _, c := range contacts {
		if c.IsPrimary {
			n++
		}
	}
	return n
}

func blank(s string) bool {
	return strings.TrimSpace(s) == ""
}
