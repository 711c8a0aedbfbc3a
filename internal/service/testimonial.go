package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/url"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/xid"

	"github.com/sakif/testimonial-board/internal/apperror"
	"github.com/sakif/testimonial-board/internal/media"
	"github.com/sakif/testimonial-board/internal/model"
	"github.com/sakif/testimonial-board/internal/repository"
)

const (
	MaxCourseLength  = 200
	MaxContentLength = 10000
	DefaultPageSize  = 10
	MaxPageSize      = 100

	// Profile cache TTL. A page of testimonials often repeats the same few
	// authors; caching the public profile avoids re-querying the user row
	// for every item. Stale names for a few minutes are acceptable.
	profileCacheTTL     = 5 * time.Minute
	profileCacheCleanup = 10 * time.Minute
)

// TestimonialService owns the ingestion pipeline (validated, authenticated
// submission → optional media upload → persisted record) and the retrieval
// service (paginated, user-enriched feed).
type TestimonialService struct {
	testimonials repository.TestimonialRepository
	users        repository.UserRepository
	uploader     media.Uploader
	profiles     *gocache.Cache
	logger       *slog.Logger
}

// NewTestimonialService creates a TestimonialService.
func NewTestimonialService(
	testimonials repository.TestimonialRepository,
	users repository.UserRepository,
	uploader media.Uploader,
	logger *slog.Logger,
) *TestimonialService {
	return &TestimonialService{
		testimonials: testimonials,
		users:        users,
		uploader:     uploader,
		profiles:     gocache.New(profileCacheTTL, profileCacheCleanup),
		logger:       logger,
	}
}

// SubmitInput is the strictly-typed form of a testimonial submission.
// Name, Course, Type, and Date are required. Exactly one content source is
// used: Media when present (it wins over Content), otherwise Content.
type SubmitInput struct {
	Name    string
	Course  string
	Type    string
	Date    string // ISO-8601: "2006-01-02" or full RFC 3339
	Content string
	Media   io.Reader // nil when no file was attached
}

// Submit runs the ingestion pipeline for an authenticated caller.
//
// Order matters and is load-bearing:
//  1. authorize (fail closed on empty identity)
//  2. resolve the owning user (the record can be gone out-of-band → 404)
//  3. validate all fields — before any upload or write, so a bad request
//     has zero side effects
//  4. upload media if present; a failed upload aborts everything
//  5. persist; a failed insert is NOT retried (at-most-once write)
func (s *TestimonialService) Submit(ctx context.Context, userID string, in SubmitInput) (*model.Testimonial, error) {
	if userID == "" {
		return nil, apperror.Unauthorized("authentication required to submit a testimonial")
	}

	user, err := s.users.GetByID(ctx, userID)
	if err != nil {
		// Propagates NotFound when the session outlived the user record.
		return nil, err
	}

	in.Name = strings.TrimSpace(in.Name)
	in.Course = strings.TrimSpace(in.Course)
	in.Type = strings.TrimSpace(in.Type)

	if in.Name == "" {
		return nil, apperror.ValidationFailed("name", "name is required")
	}
	if len(in.Name) > MaxNameLength {
		return nil, apperror.ValidationFailed("name",
			fmt.Sprintf("name must be %d characters or less", MaxNameLength))
	}
	if in.Course == "" {
		return nil, apperror.ValidationFailed("course", "course is required")
	}
	if len(in.Course) > MaxCourseLength {
		return nil, apperror.ValidationFailed("course",
			fmt.Sprintf("course must be %d characters or less", MaxCourseLength))
	}
	if !model.ValidType(in.Type) {
		return nil, apperror.ValidationFailed("type", "type must be text, audio, or video")
	}

	date, err := parseSubmissionDate(in.Date)
	if err != nil {
		return nil, apperror.ValidationFailed("date", "date must be an ISO-8601 date")
	}

	// An attachment is always the content source when present — whatever is
	// in the inline field, and whatever the declared type. Only attachment-
	// less submissions validate the inline content.
	if in.Media == nil {
		if in.Content == "" {
			return nil, apperror.ValidationFailed("content", "content is required when no media file is attached")
		}
		if len(in.Content) > MaxContentLength {
			return nil, apperror.ValidationFailed("content",
				fmt.Sprintf("content must be %d characters or less", MaxContentLength))
		}
		// Audio/video records must hold a fetchable URL — inline prose in a
		// media-typed record would break every client that tries to play it.
		if in.Type != model.TypeText && !isFetchableURL(in.Content) {
			return nil, apperror.ValidationFailed("content",
				"audio and video testimonials need a media file or a media URL")
		}
	}

	content := in.Content
	message := in.Content
	uploadedKey := ""

	if in.Media != nil {
		// Storage keys are xids: a random component per submission, so
		// concurrent bursts can't collide the way timestamp-only keys do.
		key := xid.New().String()
		uploadedURL, err := s.uploader.Upload(ctx, key, in.Media)
		if err != nil {
			s.logger.Error("media upload failed",
				slog.String("userID", userID),
				slog.String("key", key),
				slog.String("error", err.Error()),
			)
			if errors.Is(err, apperror.ErrUpstream) {
				return nil, fmt.Errorf("submitting testimonial: %w", err)
			}
			return nil, fmt.Errorf("submitting testimonial: %w", apperror.Upstream("media upload failed"))
		}
		content = uploadedURL
		message = "" // the secondary text mirror only applies to inline text
		uploadedKey = key
	}

	t := &model.Testimonial{
		Name:    in.Name,
		Course:  in.Course,
		Type:    in.Type,
		Content: content,
		Message: message,
		Date:    date,
		UserID:  user.ID,
	}

	if err := s.testimonials.Create(ctx, t); err != nil {
		if uploadedKey != "" {
			// Known gap: the uploaded object is now orphaned. We deliberately
			// don't attempt a compensating delete — the upload adapter is
			// non-idempotent and a cleanup failure here would mask the real
			// error. Log enough to clean up by hand.
			s.logger.Error("testimonial insert failed after successful upload; media object orphaned",
				slog.String("userID", userID),
				slog.String("uploadedKey", uploadedKey),
				slog.String("uploadedURL", content),
			)
		}
		return nil, fmt.Errorf("submitting testimonial: %w", err)
	}

	s.logger.Info("testimonial submitted",
		slog.String("id", t.ID),
		slog.String("userID", user.ID),
		slog.String("type", t.Type),
		slog.String("course", t.Course),
	)

	return t, nil
}

// ListResult is the retrieval envelope.
type ListResult struct {
	Items      []model.EnrichedTestimonial
	Total      int
	Page       int
	PageSize   int
	TotalPages int
}

// List returns one page of the feed, newest first, each record enriched with
// the owning user's public profile.
//
// pageSize and page must both be positive — the handler applies the
// defaults (10 and 1) only when the query parameters are absent, so an
// explicit zero or negative value is a client error, not a default.
// pageSize is clamped to MaxPageSize; the envelope reports the effective
// value so totalPages stays consistent with what was actually returned.
func (s *TestimonialService) List(ctx context.Context, pageSize, page int) (*ListResult, error) {
	if pageSize < 1 {
		return nil, apperror.ValidationFailed("number", "page size must be a positive integer")
	}
	if page < 1 {
		return nil, apperror.ValidationFailed("page", "page must be a positive integer")
	}
	if pageSize > MaxPageSize {
		pageSize = MaxPageSize
	}

	total, err := s.testimonials.Count(ctx)
	if err != nil {
		s.logger.Error("failed to count testimonials", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing testimonials: %w", err)
	}

	records, err := s.testimonials.List(ctx, repository.ListOptions{
		Limit:  pageSize,
		Offset: (page - 1) * pageSize,
	})
	if err != nil {
		s.logger.Error("failed to list testimonials", slog.String("error", err.Error()))
		return nil, fmt.Errorf("listing testimonials: %w", err)
	}

	items := make([]model.EnrichedTestimonial, 0, len(records))
	for _, record := range records {
		items = append(items, model.EnrichedTestimonial{
			Testimonial: record,
			User:        s.publicProfile(ctx, record.UserID),
		})
	}

	return &ListResult{
		Items:      items,
		Total:      total,
		Page:       page,
		PageSize:   pageSize,
		TotalPages: int(math.Ceil(float64(total) / float64(pageSize))),
	}, nil
}

// publicProfile resolves a user reference to display fields, degrading to
// the sentinel profile when the user is gone. A missing user must never fail
// the page — deleted accounts leave their testimonials behind.
func (s *TestimonialService) publicProfile(ctx context.Context, userID string) model.PublicProfile {
	if cached, found := s.profiles.Get(userID); found {
		return cached.(model.PublicProfile)
	}

	var profile model.PublicProfile
	user, err := s.users.GetByID(ctx, userID)
	switch {
	case err == nil:
		profile = model.PublicProfile{Name: user.Name, AvatarURL: user.AvatarURL}
	case errors.Is(err, apperror.ErrNotFound):
		profile = model.SentinelProfile()
	default:
		// A transient store error also degrades to the sentinel rather than
		// failing the whole list, but is worth logging — unlike NotFound.
		s.logger.Warn("profile lookup failed during enrichment",
			slog.String("userID", userID),
			slog.String("error", err.Error()),
		)
		return model.SentinelProfile() // don't cache transient failures
	}

	s.profiles.Set(userID, profile, gocache.DefaultExpiration)
	return profile
}

// parseSubmissionDate parses the user-supplied completion date strictly:
// a bare date or a full RFC 3339 timestamp. Anything else is a validation
// error — never silently coerced to "now".
func parseSubmissionDate(raw string) (time.Time, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return time.Time{}, fmt.Errorf("empty date")
	}
	if d, err := time.Parse(time.DateOnly, raw); err == nil {
		return d, nil
	}
	return time.Parse(time.RFC3339, raw)
}

// isFetchableURL reports whether s parses as an absolute http(s) URL.
func isFetchableURL(s string) bool {
	u, err := url.Parse(s)
	return err == nil && (u.Scheme == "http" || u.Scheme == "https") && u.Host != ""
}
