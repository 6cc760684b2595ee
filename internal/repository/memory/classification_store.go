package memory

import (
	"cmp"
	"context"
	"slices"
	"sync"

	"profile-registry/internal/domain"
	"profile-registry/pkg/apperror"
)

// DefaultCodes mirrors the seed migration so the memory driver starts with
// the same registry as a fresh database.
var DefaultCodes = []domain.ClassificationCode{
	{Group: domain.GroupSpecialty, Key: "ISMS-P", Label: "ISMS-P", Sequence: 1, Active: true},
	{Group: domain.GroupSpecialty, Key: "ISO27001", Label: "ISO/IEC 27001", Sequence: 2, Active: true},
	{Group: domain.GroupSpecialty, Key: "ISO27701", Label: "ISO/IEC 27701", Sequence: 3, Active: true},
	{Group: domain.GroupSpecialty, Key: "GDPR", Label: "GDPR", Sequence: 4, Active: true},
	{Group: domain.GroupSpecialty, Key: "CSAP", Label: "CSAP", Sequence: 5, Active: true},
	{Group: domain.GroupSpecialty, Key: "PCI-DSS", Label: "PCI DSS", Sequence: 6, Active: true},
	{Group: domain.GroupCountry, Key: "KR", Label: "Korea", Sequence: 1, Active: true},
	{Group: domain.GroupCountry, Key: "US", Label: "United States", Sequence: 2, Active: true},
	{Group: domain.GroupCountry, Key: "JP", Label: "Japan", Sequence: 3, Active: true},
	{Group: domain.GroupCountry, Key: "EU", Label: "European Union", Sequence: 4, Active: true},
	{Group: domain.GroupActivity, Key: "consulting", Label: "Consulting", Sequence: 1, Active: true},
	{Group: domain.GroupActivity, Key: "audit", Label: "Audit", Sequence: 2, Active: true},
	{Group: domain.GroupActivity, Key: "training", Label: "Training", Sequence: 3, Active: true},
	{Group: domain.GroupIndustry, Key: "finance", Label: "Finance", Sequence: 1, Active: true},
	{Group: domain.GroupIndustry, Key: "healthcare", Label: "Healthcare", Sequence: 2, Active: true},
	{Group: domain.GroupIndustry, Key: "public", Label: "Public sector", Sequence: 3, Active: true},
	{Group: domain.GroupIndustry, Key: "it", Label: "IT services", Sequence: 4, Active: true},
	{Group: domain.GroupCertificationType, Key: "ISMS-P", Label: "ISMS-P certification", Sequence: 1, Active: true},
	{Group: domain.GroupCertificationType, Key: "ISO27001", Label: "ISO/IEC 27001 certification", Sequence: 2, Active: true},
	{Group: domain.GroupCertificationType, Key: "CSAP", Label: "CSAP certification", Sequence: 3, Active: true},
}

// ClassificationStore is a read-mostly code registry.
type ClassificationStore struct {
	mu    sync.RWMutex
	codes map[string][]domain.ClassificationCode
}

func NewClassificationStore(codes []domain.ClassificationCode) *ClassificationStore {
	s := &ClassificationStore{codes: make(map[string][]domain.ClassificationCode)}
	for _, c := range codes {
		s.codes[c.Group] = append(s.codes[c.Group], c)
	}
	for g := range s.codes {
		slices.SortStableFunc(s.codes[g], func(a, b domain.ClassificationCode) int {
			return cmp.Or(cmp.Compare(a.Sequence, b.Sequence), cmp.Compare(a.Key, b.Key))
		})
	}
	return s
}

func (s *ClassificationStore) ListGroups(ctx context.Context) ([]string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	groups := make([]string, 0, len(s.codes))
	for g := range s.codes {
		groups = append(groups, g)
	}
	slices.Sort(groups)
	return groups, nil
}

// ListCodes returns the active codes of group in display order.
func (s *ClassificationStore) ListCodes(ctx context.Context, group string) ([]domain.ClassificationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	all, ok := s.codes[group]
	if !ok {
		return nil, apperror.NotFound("Classification group not found")
	}
	out := make([]domain.ClassificationCode, 0, len(all))
	for _, c := range all {
		if c.Active {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *ClassificationStore) GetCode(ctx context.Context, group, key string) (*domain.ClassificationCode, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	for _, c := range s.codes[group] {
		if c.Key == key {
			return &c, nil
		}
	}
	return nil, apperror.NotFound("Classification code not found")
}
