package memory

import "profile-registry/internal/domain"

func clonePtr[T any](p *T) *T {
	if p == nil {
		return nil
	}
	v := *p
	return &v
}

func cloneSlice[T any](in []T, each func(T) T) []T {
	if in == nil {
		return nil
	}
	out := make([]T, len(in))
	for i, v := range in {
		if each != nil {
			v = each(v)
		}
		out[i] = v
	}
	return out
}

func cloneFileRef(f domain.FileRef) domain.FileRef { return f }

func cloneProfile(p domain.Profile) domain.Profile {
	p.LocationCode = clonePtr(p.LocationCode)
	p.Attachments = cloneSlice(p.Attachments, cloneFileRef)
	if p.Personal != nil {
		d := *p.Personal
		d.YearsOfExperience = clonePtr(d.YearsOfExperience)
		d.HourlyRate.Min = clonePtr(d.HourlyRate.Min)
		d.HourlyRate.Max = clonePtr(d.HourlyRate.Max)
		d.HourlyRate.Text = clonePtr(d.HourlyRate.Text)
		p.Personal = &d
	}
	if p.Company != nil {
		d := *p.Company
		d.FoundedOn = clonePtr(d.FoundedOn)
		d.EmployeeCount = clonePtr(d.EmployeeCount)
		p.Company = &d
	}
	p.Rating = clonePtr(p.Rating)
	p.ReviewedBy = clonePtr(p.ReviewedBy)
	p.ReviewNote = clonePtr(p.ReviewNote)
	p.SubmittedAt = clonePtr(p.SubmittedAt)
	p.ReviewedAt = clonePtr(p.ReviewedAt)
	p.ApprovedAt = clonePtr(p.ApprovedAt)
	p.RejectedAt = clonePtr(p.RejectedAt)
	p.DeletedAt = clonePtr(p.DeletedAt)
	return p
}

func cloneAggregate(a *domain.Aggregate) *domain.Aggregate {
	return &domain.Aggregate{
		Profile: cloneProfile(a.Profile),
		Children: domain.Children{
			Experiences: cloneSlice(a.Children.Experiences, func(e domain.Experience) domain.Experience {
				e.StartDate = clonePtr(e.StartDate)
				e.EndDate = clonePtr(e.EndDate)
				return e
			}),
			Certificates: cloneSlice(a.Children.Certificates, func(c domain.Certificate) domain.Certificate {
				c.IssuedOn = clonePtr(c.IssuedOn)
				c.ExpiresOn = clonePtr(c.ExpiresOn)
				c.Document = clonePtr(c.Document)
				return c
			}),
			ContactPersons: cloneSlice[domain.ContactPerson](a.Children.ContactPersons, nil),
			Certifications: cloneSlice(a.Children.Certifications, func(c domain.CertificationRequest) domain.CertificationRequest {
				c.DesiredDate = clonePtr(c.DesiredDate)
				return c
			}),
			Tags: cloneSlice[domain.ClassificationTag](a.Children.Tags, nil),
		},
	}
}
