// Package links is the operator-side write path for tenant links. Every
// mutation keeps the lookup cache in step with the store.
package links

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/avast/retry-go"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"gaslink/cache"
	"gaslink/delivery"
	"gaslink/helpers"
	"gaslink/slug"
	"gaslink/store"
)

var (
	ErrSlugTaken    = errors.New("slug already taken")
	ErrInvalidInput = errors.New("invalid input")
	ErrReservedSlug = errors.New("slug is reserved")
)

const createAttempts = 3

// Store is the part of the link store the service writes through.
type Store interface {
	CreateLink(ctx context.Context, l store.Link) error
	LinkByID(ctx context.Context, id string) (store.Link, error)
	LinkIDBySlug(ctx context.Context, slug string) (string, error)
	UpdateLink(ctx context.Context, l store.Link) error
	DeleteLink(ctx context.Context, id string) error
}

// CreateInput describes a new link.
type CreateInput struct {
	OwnerID        string `validate:"required"`
	Slug           string `validate:"required"`
	DestinationURL string `validate:"required,url"`
	Title          string `validate:"max=200"`
	Mode           string `validate:"omitempty,oneof=auto frame direct iframe"`
}

// UpdateInput changes only the fields that are set.
type UpdateInput struct {
	Slug           *string `validate:"omitempty"`
	DestinationURL *string `validate:"omitempty,url"`
	Title          *string `validate:"omitempty,max=200"`
	Mode           *string `validate:"omitempty,oneof=auto frame direct iframe"`
	Active         *bool
}

type Service struct {
	store    Store
	cache    cache.Cache
	policy   delivery.Policy
	log      *zap.Logger
	validate *validator.Validate
	ttl      time.Duration
	now      func() time.Time
	newID    func() string
}

func NewService(st Store, c cache.Cache, policy delivery.Policy, log *zap.Logger) *Service {
	return &Service{
		store:    st,
		cache:    c,
		policy:   policy,
		log:      log,
		validate: validator.New(),
		ttl:      cache.DefaultTTL,
		now:      time.Now,
		newID:    helpers.NewLinkID,
	}
}

// Create stores a new active link and primes the cache with it.
func (s *Service) Create(ctx context.Context, in CreateInput) (store.Link, error) {
	if err := s.validate.Struct(in); err != nil {
		return store.Link{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}
	name, err := cleanSlug(in.Slug)
	if err != nil {
		return store.Link{}, err
	}
	if err := checkDestination(in.DestinationURL); err != nil {
		return store.Link{}, err
	}

	now := s.now().UnixMilli()
	l := store.Link{
		OwnerID:        in.OwnerID,
		Slug:           name,
		DestinationURL: in.DestinationURL,
		Title:          nullable(in.Title),
		DeliveryMode:   string(delivery.ParseMode(in.Mode)),
		IsActive:       true,
		CreatedAt:      now,
		UpdatedAt:      now,
	}

	// a conflict on a free slug can only be an id collision, so draw a new id
	err = retry.Do(
		func() error {
			l.ID = s.newID()
			err := s.store.CreateLink(ctx, l)
			if err == nil {
				return nil
			}
			if !errors.Is(err, store.ErrConflict) {
				return retry.Unrecoverable(err)
			}
			if _, lookupErr := s.store.LinkIDBySlug(ctx, name); lookupErr == nil {
				return retry.Unrecoverable(ErrSlugTaken)
			}
			return err
		},
		retry.Context(ctx),
		retry.Attempts(createAttempts),
		retry.Delay(10*time.Millisecond),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			s.log.Warn("retrying link insert", zap.Uint("attempt", n+1), zap.String("slug", name), zap.Error(err))
		}),
	)
	if err != nil {
		return store.Link{}, err
	}

	s.put(ctx, l)
	return l, nil
}

// Update applies in to link id. A slug change drops the old cache key.
func (s *Service) Update(ctx context.Context, id string, in UpdateInput) (store.Link, error) {
	if err := s.validate.Struct(in); err != nil {
		return store.Link{}, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	l, err := s.store.LinkByID(ctx, id)
	if err != nil {
		return store.Link{}, err
	}
	oldSlug := l.Slug

	if in.Slug != nil {
		name, err := cleanSlug(*in.Slug)
		if err != nil {
			return store.Link{}, err
		}
		l.Slug = name
	}
	if in.DestinationURL != nil {
		if err := checkDestination(*in.DestinationURL); err != nil {
			return store.Link{}, err
		}
		l.DestinationURL = *in.DestinationURL
	}
	if in.Title != nil {
		l.Title = nullable(*in.Title)
	}
	if in.Mode != nil {
		l.DeliveryMode = string(delivery.ParseMode(*in.Mode))
	}
	if in.Active != nil {
		l.IsActive = *in.Active
	}
	l.UpdatedAt = s.now().UnixMilli()

	if err := s.store.UpdateLink(ctx, l); err != nil {
		if errors.Is(err, store.ErrConflict) {
			return store.Link{}, ErrSlugTaken
		}
		return store.Link{}, err
	}

	if oldSlug != l.Slug {
		s.invalidate(ctx, oldSlug)
	}
	if l.IsActive {
		s.put(ctx, l)
	} else {
		s.invalidate(ctx, l.Slug)
	}
	return l, nil
}

// Delete removes link id and its cache entry.
func (s *Service) Delete(ctx context.Context, id string) error {
	l, err := s.store.LinkByID(ctx, id)
	if err != nil {
		return err
	}
	if err := s.store.DeleteLink(ctx, id); err != nil {
		return err
	}
	s.invalidate(ctx, l.Slug)
	return nil
}

// put writes the resolution a redirect would compute. The owner gate is not
// consulted; an expired owner is caught once the entry ages out.
func (s *Service) put(ctx context.Context, l store.Link) {
	if s.cache == nil {
		return
	}
	res := cache.Resolution{
		URL:    l.DestinationURL,
		Title:  l.Title.String,
		LinkID: l.ID,
		Frame:  s.policy.Embed(delivery.ParseMode(l.DeliveryMode), l.DestinationURL),
	}
	if err := s.cache.Put(ctx, l.Slug, res, s.ttl); err != nil {
		s.log.Warn("cache put after mutation failed", zap.String("slug", l.Slug), zap.Error(err))
	}
}

func (s *Service) invalidate(ctx context.Context, name string) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Invalidate(ctx, name); err != nil {
		s.log.Warn("cache invalidate failed", zap.String("slug", name), zap.Error(err))
	}
}

func cleanSlug(raw string) (string, error) {
	name := slug.Sanitize(raw)
	if !slug.Valid(name) {
		return "", fmt.Errorf("%w: slug must be 3-50 characters of a-z, 0-9, _ or -", ErrInvalidInput)
	}
	if slug.IsReserved(name) {
		return "", ErrReservedSlug
	}
	return name, nil
}

func checkDestination(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return fmt.Errorf("%w: destination must be an absolute URL", ErrInvalidInput)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
		return nil
	}
	return fmt.Errorf("%w: destination must use http or https", ErrInvalidInput)
}

func nullable(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
