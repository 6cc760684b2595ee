//go:build integration

package postgres_test

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"profile-registry/internal/database/migration"
	"profile-registry/internal/domain"
	"profile-registry/internal/repository"
	"profile-registry/internal/repository/postgres"
	"profile-registry/pkg/apperror"
	"profile-registry/pkg/database"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
)

type PostgresRepositorySuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	db        *pgxpool.Pool
	profiles  domain.AggregateRepository
	codes     domain.ClassificationCodeStore
	search    domain.SearchRepository
}

func TestPostgresRepositorySuite(t *testing.T) {
	if testing.Short() {
		t.Skip("skipping integration test in short mode")
	}
	suite.Run(t, new(PostgresRepositorySuite))
}

func (s *PostgresRepositorySuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("profiles"),
		tcpostgres.WithUsername("profiles"),
		tcpostgres.WithPassword("profiles"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.db, err = database.NewPostgresConnection(ctx, dsn, database.DefaultPoolOptions())
	s.Require().NoError(err)
	s.Require().NoError(migration.Runner{}.Run(ctx, s.db))
	// second run is a no-op against the checksum ledger
	s.Require().NoError(migration.Runner{}.Run(ctx, s.db))

	s.profiles = postgres.NewProfileRepository(s.db)
	s.codes = postgres.NewClassificationRepository(s.db)
	s.search = postgres.NewSearchRepository(s.db)
}

func (s *PostgresRepositorySuite) TearDownSuite() {
	if s.db != nil {
		s.db.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PostgresRepositorySuite) SetupTest() {
	_, err := s.db.Exec(context.Background(), `
		TRUNCATE profile_tags, profile_certifications, profile_contact_persons,
			profile_certificates, profile_experiences, profiles`)
	s.Require().NoError(err)
}

func (s *PostgresRepositorySuite) approve(id string) {
	ctx := context.Background()
	now := time.Now().UTC()
	s.Require().NoError(s.profiles.UpdateState(ctx, domain.StateChange{ProfileID: id, From: domain.StateDraft, To: domain.StateSubmitted, Event: domain.EventSubmit, At: now}))
	s.Require().NoError(s.profiles.UpdateState(ctx, domain.StateChange{ProfileID: id, From: domain.StateSubmitted, To: domain.StateApproved, Event: domain.EventApprove, ActorID: "rev", At: now}))
}

func (s *PostgresRepositorySuite) TestUpsertReplacesAndResequences() {
	ctx := context.Background()
	years := 7
	id, err := s.profiles.UpsertAggregate(ctx, "owner-1", domain.VariantPersonal,
		domain.Profile{
			DisplayName: "Kim",
			Personal:    &domain.PersonalDetails{YearsOfExperience: &years},
			Attachments: []domain.FileRef{{Name: "cv.pdf", Size: 1024, StorageRef: "s3://bucket/cv.pdf"}},
		},
		domain.Children{
			Experiences: []domain.Experience{{Sequence: 9, Title: "b"}, {Sequence: 4, Title: "a"}, {Title: "c"}},
			Certificates: []domain.Certificate{{Name: "CISA", Status: domain.CertificateValid,
				Document: &domain.FileRef{Name: "cisa.pdf", Size: 10, StorageRef: "ref-1"}}},
			Tags: []domain.ClassificationTag{{Group: "specialty", Key: "ISMS-P"}, {Group: "specialty", Key: "GDPR"}},
		})
	s.Require().NoError(err)

	agg, err := s.profiles.LoadAggregate(ctx, id, domain.LoadOptions{})
	s.Require().NoError(err)
	s.Equal(domain.StateDraft, agg.Profile.State)
	s.Equal(7, *agg.Profile.Personal.YearsOfExperience)
	s.Equal("cv.pdf", agg.Profile.Attachments[0].Name)
	s.Require().Len(agg.Children.Experiences, 3)
	for i, e := range agg.Children.Experiences {
		s.Equal(i+1, e.Sequence)
	}
	s.Equal([]string{"a", "b", "c"}, []string{
		agg.Children.Experiences[0].Title, agg.Children.Experiences[1].Title, agg.Children.Experiences[2].Title,
	})
	s.Equal("ref-1", agg.Children.Certificates[0].Document.StorageRef)

	// shrink experiences and drop one tag
	_, err = s.profiles.UpsertAggregate(ctx, "owner-1", domain.VariantPersonal,
		domain.Profile{DisplayName: "Kim"},
		domain.Children{
			Experiences: []domain.Experience{{ProfileID: id, Sequence: 3, Title: "c"}},
			Tags:        []domain.ClassificationTag{{Group: "specialty", Key: "GDPR"}},
		})
	s.Require().NoError(err)

	agg, err = s.profiles.LoadAggregate(ctx, id, domain.LoadOptions{})
	s.Require().NoError(err)
	s.Require().Len(agg.Children.Experiences, 1)
	s.Equal(1, agg.Children.Experiences[0].Sequence)
	s.Equal("c", agg.Children.Experiences[0].Title)
	s.Empty(agg.Children.Certificates)
	s.Require().Len(agg.Children.Tags, 1)
	s.Equal("GDPR", agg.Children.Tags[0].Key)
	s.Equal(int64(2), agg.Profile.Version)
}

func (s *PostgresRepositorySuite) TestPrimaryContactMovesBetweenRows() {
	ctx := context.Background()
	env := domain.Profile{Company: &domain.CompanyDetails{RepresentativeName: "Lee"}}
	id, err := s.profiles.UpsertAggregate(ctx, "c1", domain.VariantCompany, env, domain.Children{
		ContactPersons: []domain.ContactPerson{{Name: "A", IsPrimary: true}, {Name: "B"}},
	})
	s.Require().NoError(err)

	_, err = s.profiles.UpsertAggregate(ctx, "c1", domain.VariantCompany, env, domain.Children{
		ContactPersons: []domain.ContactPerson{{Name: "A"}, {Name: "B", IsPrimary: true}},
	})
	s.Require().NoError(err)

	agg, err := s.profiles.LoadAggregate(ctx, id, domain.LoadOptions{})
	s.Require().NoError(err)
	s.False(agg.Children.ContactPersons[0].IsPrimary)
	s.True(agg.Children.ContactPersons[1].IsPrimary)
}

func (s *PostgresRepositorySuite) TestTwoPrimariesPersistNothing() {
	ctx := context.Background()
	_, err := s.profiles.UpsertAggregate(ctx, "c2", domain.VariantCompany, domain.Profile{}, domain.Children{
		ContactPersons: []domain.ContactPerson{{Name: "A", IsPrimary: true}, {Name: "B", IsPrimary: true}},
	})
	s.Equal(repository.ConstraintPrimaryContact, constraintOf(err))

	var n int
	s.Require().NoError(s.db.QueryRow(ctx, `SELECT COUNT(*) FROM profiles`).Scan(&n))
	s.Zero(n)
	s.Require().NoError(s.db.QueryRow(ctx, `SELECT COUNT(*) FROM profile_contact_persons`).Scan(&n))
	s.Zero(n)
}

func (s *PostgresRepositorySuite) TestChildFailureRollsBackEnvelope() {
	ctx := context.Background()
	id, err := s.profiles.UpsertAggregate(ctx, "owner-rb", domain.VariantPersonal,
		domain.Profile{DisplayName: "Kim"},
		domain.Children{
			Experiences:  []domain.Experience{{Title: "auditor"}},
			Certificates: []domain.Certificate{{Name: "CISA", Status: domain.CertificateValid}},
		})
	s.Require().NoError(err)

	// The status CHECK fails inside the child batch, after the envelope UPDATE ran
	_, err = s.profiles.UpsertAggregate(ctx, "owner-rb", domain.VariantPersonal,
		domain.Profile{DisplayName: "Renamed"},
		domain.Children{
			Experiences:  []domain.Experience{{Title: "lead auditor"}, {Title: "consultant"}},
			Certificates: []domain.Certificate{{Name: "CISA", Status: "revoked"}},
		})
	s.Require().Error(err)
	s.True(apperror.IsKind(err, apperror.KindValidation), "got %v", err)

	agg, err := s.profiles.LoadAggregate(ctx, id, domain.LoadOptions{})
	s.Require().NoError(err)
	s.Equal("Kim", agg.Profile.DisplayName)
	s.Equal(int64(1), agg.Profile.Version)
	s.Require().Len(agg.Children.Experiences, 1)
	s.Equal("auditor", agg.Children.Experiences[0].Title)
	s.Require().Len(agg.Children.Certificates, 1)
	s.Equal(domain.CertificateValid, agg.Children.Certificates[0].Status)
}

func (s *PostgresRepositorySuite) TestBusinessRegistrationNumberUniqueAmongLiveProfiles() {
	ctx := context.Background()
	env := domain.Profile{Company: &domain.CompanyDetails{BusinessRegistrationNumber: "123-45-67890"}}

	first, err := s.profiles.UpsertAggregate(ctx, "a", domain.VariantCompany, env, domain.Children{})
	s.Require().NoError(err)

	_, err = s.profiles.UpsertAggregate(ctx, "b", domain.VariantCompany, env, domain.Children{})
	s.Equal(repository.ConstraintBusinessRegNo, constraintOf(err))

	s.Require().NoError(s.profiles.SoftDelete(ctx, first, time.Now()))
	_, err = s.profiles.UpsertAggregate(ctx, "b", domain.VariantCompany, env, domain.Children{})
	s.NoError(err)
}

func (s *PostgresRepositorySuite) TestConcurrentCreatesYieldOneProfile() {
	ctx := context.Background()
	const goroutines = 10

	var wg sync.WaitGroup
	var ok, conflicts atomic.Int32
	for i := 0; i < goroutines; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := s.profiles.UpsertAggregate(ctx, "racer", domain.VariantPersonal, domain.Profile{}, domain.Children{})
			switch {
			case err == nil:
				ok.Add(1)
			case apperror.IsKind(err, apperror.KindConflict):
				conflicts.Add(1)
			}
		}()
	}
	wg.Wait()

	s.Equal(int32(goroutines), ok.Load()+conflicts.Load())
	var n int
	s.Require().NoError(s.db.QueryRow(ctx, `SELECT COUNT(*) FROM profiles WHERE owner_id = 'racer'`).Scan(&n))
	s.Equal(1, n)
}

func (s *PostgresRepositorySuite) TestStateWritesAreConditional() {
	ctx := context.Background()
	id, err := s.profiles.UpsertAggregate(ctx, "o", domain.VariantPersonal, domain.Profile{}, domain.Children{})
	s.Require().NoError(err)
	s.approve(id)

	err = s.profiles.UpdateState(ctx, domain.StateChange{ProfileID: id, From: domain.StateSubmitted, To: domain.StateRejected, Event: domain.EventReject, At: time.Now()})
	s.True(apperror.IsKind(err, apperror.KindInvalidTransition))

	_, err = s.profiles.UpsertAggregate(ctx, "o", domain.VariantPersonal, domain.Profile{DisplayName: "edit"}, domain.Children{})
	s.True(apperror.IsKind(err, apperror.KindImmutableState))

	agg, err := s.profiles.LoadAggregate(ctx, id, domain.LoadOptions{})
	s.Require().NoError(err)
	s.Equal(domain.StateApproved, agg.Profile.State)
	s.Equal("rev", *agg.Profile.ReviewedBy)
	s.NotNil(agg.Profile.ApprovedAt)
}

func (s *PostgresRepositorySuite) TestSearchMatchesRanksAndPages() {
	ctx := context.Background()
	mk := func(owner string, rating float64, reviews int, tags ...domain.ClassificationTag) string {
		id, err := s.profiles.UpsertAggregate(ctx, owner, domain.VariantPersonal, domain.Profile{DisplayName: owner}, domain.Children{Tags: tags})
		s.Require().NoError(err)
		s.approve(id)
		s.Require().NoError(s.profiles.UpdateRating(ctx, id, &rating, reviews))
		return id
	}
	top := mk("kim", 4.8, 10,
		domain.ClassificationTag{Group: "specialty", Key: "ISMS-P"},
		domain.ClassificationTag{Group: "specialty", Key: "ISO27001"})
	low := mk("lee", 3.9, 40, domain.ClassificationTag{Group: "specialty", Key: "GDPR"})
	_, err := s.profiles.UpsertAggregate(ctx, "draft", domain.VariantPersonal, domain.Profile{DisplayName: "draft"},
		domain.Children{Tags: []domain.ClassificationTag{{Group: "specialty", Key: "ISO27001"}}})
	s.Require().NoError(err)

	res, err := s.search.SearchProfiles(ctx, domain.SearchCriteria{Tags: map[string][]string{"specialty": {"ISO27001"}}, Limit: 20})
	s.Require().NoError(err)
	s.Require().Len(res.Items, 1)
	s.Equal(top, res.Items[0].ID)
	s.Len(res.Items[0].Tags, 2)

	res, err = s.search.SearchProfiles(ctx, domain.SearchCriteria{Tags: map[string][]string{"specialty": {"GDPR"}}, Limit: 20})
	s.Require().NoError(err)
	s.Require().Len(res.Items, 1)
	s.Equal(low, res.Items[0].ID)

	res, err = s.search.SearchProfiles(ctx, domain.SearchCriteria{Limit: 1, Offset: 1})
	s.Require().NoError(err)
	s.Equal(2, res.Total)
	s.Require().Len(res.Items, 1)
	s.Equal(low, res.Items[0].ID)

	res, err = s.search.SearchProfiles(ctx, domain.SearchCriteria{Keyword: "KI", Limit: 20})
	s.Require().NoError(err)
	s.Require().Len(res.Items, 1)
	s.Equal(top, res.Items[0].ID)
}

func (s *PostgresRepositorySuite) TestClassificationCodesSeeded() {
	ctx := context.Background()
	groups, err := s.codes.ListGroups(ctx)
	s.Require().NoError(err)
	s.Contains(groups, domain.GroupSpecialty)

	code, err := s.codes.GetCode(ctx, domain.GroupSpecialty, "ISO27001")
	s.Require().NoError(err)
	s.Equal("ISO/IEC 27001", code.Label)

	_, err = s.codes.ListCodes(ctx, "planet")
	s.True(apperror.IsKind(err, apperror.KindNotFound))
}

func constraintOf(err error) string {
	var appErr *apperror.AppError
	if !errors.As(err, &appErr) || appErr.Kind != apperror.KindConflict {
		return ""
	}
	return appErr.Constraint
}
