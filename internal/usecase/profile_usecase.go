package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"time"

	"profile-registry/internal/domain"
	"profile-registry/internal/lifecycle"
	"profile-registry/internal/search"
	"profile-registry/pkg/apperror"
	"profile-registry/pkg/logger"
	"profile-registry/pkg/metrics"
	"profile-registry/pkg/validation"

	"github.com/go-playground/validator/v10"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	otelcodes "go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

const tracerName = "profile-registry/usecase"

type profileUsecase struct {
	repo     domain.AggregateRepository
	codes    domain.ClassificationCodeStore
	engine   *search.Engine
	machine  *lifecycle.Machine
	validate *validator.Validate
	metrics  *metrics.Metrics
	tracer   trace.Tracer
	now      func() time.Time
}

// Option customises the profile usecase.
type Option func(*profileUsecase)

// WithClock replaces the wall clock used for lifecycle timestamps.
func WithClock(now func() time.Time) Option {
	return func(uc *profileUsecase) { uc.now = now }
}

// NewProfileUsecase creates the profile service. A nil validate gets the
// default validator with the custom rules registered; nil metrics disables
// instrumentation.
func NewProfileUsecase(
	repo domain.AggregateRepository,
	codes domain.ClassificationCodeStore,
	engine *search.Engine,
	machine *lifecycle.Machine,
	validate *validator.Validate,
	m *metrics.Metrics,
	opts ...Option,
) domain.ProfileUsecase {
	if validate == nil {
		validate = validation.New()
	}
	uc := &profileUsecase{
		repo:     repo,
		codes:    codes,
		engine:   engine,
		machine:  machine,
		validate: validate,
		metrics:  m,
		tracer:   otel.Tracer(tracerName),
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(uc)
	}
	return uc
}

// CreateOrUpdateDraft validates the payload shape and writes the whole
// aggregate. Completeness is not checked here; drafts may be partial.
func (uc *profileUsecase) CreateOrUpdateDraft(ctx context.Context, ownerID string, variant domain.Variant, payload domain.DraftPayload) (id string, err error) {
	ctx, done := uc.start(ctx, "create_or_update_draft",
		attribute.String("profile.owner_id", ownerID),
		attribute.String("profile.variant", string(variant)))
	defer func() { done(err) }()

	if strings.TrimSpace(ownerID) == "" {
		return "", apperror.Validation("owner_id", "owner id is required")
	}
	if !variant.Valid() {
		return "", apperror.Validation("variant", fmt.Sprintf("unknown profile variant %q", variant))
	}
	if err := uc.validate.Struct(payload); err != nil {
		return "", validation.ToAppError(err)
	}

	children := payload.Children
	if children.Tags, err = uc.resolveTags(ctx, payload.Children.Tags); err != nil {
		return "", err
	}

	id, err = uc.repo.UpsertAggregate(ctx, ownerID, variant, payload.Envelope, children)
	if err != nil {
		return "", err
	}

	logger.Log.Info("Profile draft saved",
		slog.String("profile_id", id),
		slog.String("owner_id", ownerID),
		slog.String("variant", string(variant)),
	)
	return id, nil
}

// resolveTags checks every tag against the code store and fills in the
// registry label when the payload leaves it blank.
func (uc *profileUsecase) resolveTags(ctx context.Context, tags []domain.ClassificationTag) ([]domain.ClassificationTag, error) {
	if len(tags) == 0 {
		return tags, nil
	}
	out := make([]domain.ClassificationTag, len(tags))
	for i, t := range tags {
		t.Group = strings.TrimSpace(t.Group)
		t.Key = strings.TrimSpace(t.Key)
		field := fmt.Sprintf("children.tags[%d]", i)

		code, err := uc.codes.GetCode(ctx, t.Group, t.Key)
		if apperror.IsKind(err, apperror.KindNotFound) {
			return nil, apperror.Validation(field+".key", fmt.Sprintf("unknown classification code %s/%s", t.Group, t.Key))
		}
		if err != nil {
			return nil, err
		}
		if !code.Active {
			return nil, apperror.Validation(field+".key", fmt.Sprintf("classification code %s/%s is no longer active", t.Group, t.Key))
		}
		if strings.TrimSpace(t.Label) == "" {
			t.Label = code.Label
		}
		out[i] = t
	}
	return out, nil
}

func (uc *profileUsecase) Submit(ctx context.Context, profileID, ownerID string) (err error) {
	ctx, done := uc.start(ctx, "submit", attribute.String("profile.id", profileID))
	defer func() { done(err) }()

	return uc.transition(ctx, profileID, domain.EventSubmit, domain.Actor{ID: ownerID, Role: domain.RoleOwner}, nil)
}

// Review applies the reviewer's approve or reject decision. The reviewer's
// identity has already been established by the caller.
func (uc *profileUsecase) Review(ctx context.Context, profileID string, reviewer domain.Actor, decision domain.ReviewDecision) (err error) {
	ctx, done := uc.start(ctx, "review",
		attribute.String("profile.id", profileID),
		attribute.String("review.decision", string(decision.Event)))
	defer func() { done(err) }()

	if err := uc.validate.Struct(decision); err != nil {
		return validation.ToAppError(err)
	}
	if strings.TrimSpace(reviewer.ID) == "" {
		return apperror.Validation("reviewer_id", "reviewer id is required")
	}

	var note *string
	if n := strings.TrimSpace(decision.Note); n != "" {
		note = &n
	}
	return uc.transition(ctx, profileID, decision.Event, reviewer, note)
}

func (uc *profileUsecase) Reopen(ctx context.Context, profileID, ownerID string) (err error) {
	ctx, done := uc.start(ctx, "reopen", attribute.String("profile.id", profileID))
	defer func() { done(err) }()

	return uc.transition(ctx, profileID, domain.EventReopen, domain.Actor{ID: ownerID, Role: domain.RoleOwner}, nil)
}

// transition runs the lifecycle machine against the stored aggregate and
// persists the result as a conditional write on the state it was read in.
func (uc *profileUsecase) transition(ctx context.Context, profileID string, event domain.Event, actor domain.Actor, note *string) error {
	agg, err := uc.repo.LoadAggregate(ctx, profileID, domain.LoadOptions{})
	if err != nil {
		return err
	}

	now := uc.now()
	to, err := uc.machine.Transition(lifecycle.Request{
		Aggregate: agg,
		Event:     event,
		Actor:     actor,
		Now:       now,
	})
	if err != nil {
		return err
	}

	change := domain.StateChange{
		ProfileID: profileID,
		From:      agg.Profile.State,
		To:        to,
		Event:     event,
		ActorID:   actor.ID,
		Note:      note,
		At:        now,
	}
	if err := uc.repo.UpdateState(ctx, change); err != nil {
		return err
	}

	uc.metrics.IncrementTransition(string(event), string(to))
	logger.Log.Info("Profile state changed",
		slog.String("profile_id", profileID),
		slog.String("actor_id", actor.ID),
		slog.String("event", string(event)),
		slog.String("from", string(change.From)),
		slog.String("to", string(to)),
	)
	return nil
}

// Search never returns a nil item list; no match is an empty page.
func (uc *profileUsecase) Search(ctx context.Context, criteria domain.SearchCriteria) (res domain.SearchResult, err error) {
	ctx, done := uc.start(ctx, "search")
	defer func() { done(err) }()

	res, err = uc.engine.Search(ctx, criteria)
	if err != nil {
		return domain.SearchResult{}, err
	}
	uc.metrics.ObserveSearchResults(res.Total)
	trace.SpanFromContext(ctx).SetAttributes(attribute.Int("search.total", res.Total))
	return res, nil
}

// GetProfile returns approved profiles to anyone. Other states are visible
// to the owner and to reviewers only; everyone else gets NotFound.
func (uc *profileUsecase) GetProfile(ctx context.Context, profileID string, viewer domain.Actor) (agg *domain.Aggregate, err error) {
	ctx, done := uc.start(ctx, "get_profile", attribute.String("profile.id", profileID))
	defer func() { done(err) }()

	agg, err = uc.repo.LoadAggregate(ctx, profileID, domain.LoadOptions{})
	if err != nil {
		return nil, err
	}
	if agg.Profile.State == domain.StateApproved {
		return agg, nil
	}
	if viewer.ID != "" && viewer.ID == agg.Profile.OwnerID {
		return agg, nil
	}
	if viewer.CanReview() {
		return agg, nil
	}
	return nil, apperror.NotFound("Profile not found")
}

func (uc *profileUsecase) GetOwnProfile(ctx context.Context, ownerID string, variant domain.Variant) (agg *domain.Aggregate, err error) {
	ctx, done := uc.start(ctx, "get_own_profile", attribute.String("profile.variant", string(variant)))
	defer func() { done(err) }()

	if !variant.Valid() {
		return nil, apperror.Validation("variant", fmt.Sprintf("unknown profile variant %q", variant))
	}
	return uc.repo.FindByOwner(ctx, ownerID, variant)
}

// Delete soft-deletes the owner's profile from any state.
func (uc *profileUsecase) Delete(ctx context.Context, profileID, ownerID string) (err error) {
	ctx, done := uc.start(ctx, "delete", attribute.String("profile.id", profileID))
	defer func() { done(err) }()

	agg, err := uc.repo.LoadAggregate(ctx, profileID, domain.LoadOptions{})
	if err != nil {
		return err
	}
	if ownerID == "" || agg.Profile.OwnerID != ownerID {
		return apperror.Forbidden("only the profile owner may delete this profile")
	}
	if err := uc.repo.SoftDelete(ctx, profileID, uc.now()); err != nil {
		return err
	}

	logger.Log.Info("Profile deleted",
		slog.String("profile_id", profileID),
		slog.String("owner_id", ownerID),
		slog.String("state", string(agg.Profile.State)),
	)
	return nil
}

// RecordRating stores the aggregate rating computed by the external review
// system.
func (uc *profileUsecase) RecordRating(ctx context.Context, profileID string, rating float64, reviewCount int) (err error) {
	ctx, done := uc.start(ctx, "record_rating", attribute.String("profile.id", profileID))
	defer func() { done(err) }()

	if math.IsNaN(rating) || rating < 0 || rating > search.MaxRating {
		return apperror.Validation("rating", fmt.Sprintf("rating must be between 0 and %.0f", search.MaxRating))
	}
	if reviewCount < 0 {
		return apperror.Validation("review_count", "review count must not be negative")
	}
	return uc.repo.UpdateRating(ctx, profileID, &rating, reviewCount)
}

func (uc *profileUsecase) ListClassificationGroups(ctx context.Context) (groups []string, err error) {
	ctx, done := uc.start(ctx, "list_classification_groups")
	defer func() { done(err) }()

	return uc.codes.ListGroups(ctx)
}

func (uc *profileUsecase) ListClassificationCodes(ctx context.Context, group string) (codes []domain.ClassificationCode, err error) {
	ctx, done := uc.start(ctx, "list_classification_codes", attribute.String("classification.group", group))
	defer func() { done(err) }()

	return uc.codes.ListCodes(ctx, strings.TrimSpace(group))
}

// start opens a span for op. The returned func records the outcome on the
// span, in metrics and in the log.
func (uc *profileUsecase) start(ctx context.Context, op string, attrs ...attribute.KeyValue) (context.Context, func(error)) {
	ctx, span := uc.tracer.Start(ctx, "profile."+op, trace.WithAttributes(attrs...))
	began := time.Now()

	return ctx, func(err error) {
		outcome := "ok"
		if err != nil {
			kind := apperror.KindOf(err)
			outcome = string(kind)
			span.RecordError(err)
			span.SetStatus(otelcodes.Error, outcome)

			switch kind {
			case apperror.KindStorageUnavailable, apperror.KindInternal:
				logger.Log.Error("Profile operation failed", slog.String("operation", op), slog.Any("error", err))
			default:
				logger.Log.Warn("Profile operation rejected",
					slog.String("operation", op),
					slog.String("kind", outcome),
					slog.String("error", err.Error()),
				)
			}
		}
		uc.metrics.ObserveOperation(op, outcome, time.Since(began))
		span.End()
	}
}
