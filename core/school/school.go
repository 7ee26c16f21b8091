// Package school holds the tenants of the app. Every user belongs to exactly one school.
package school

import (
	"context"
	"errors"
	"regexp"
	"time"

	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"github.com/trezcool/shule/core"
)

var (
	ErrNotFound   = errors.New("school not found")
	ErrSlugExists = errors.New("a school with this slug already exists")

	slugTag   = "slug"
	slugText  = "only lowercase letters, digits and hyphens are allowed"
	slugRegex = regexp.MustCompile(`^[a-z0-9]+(?:-[a-z0-9]+)*$`)
)

type School struct {
	ID        string    `bson:"_id" json:"id"`
	Slug      string    `bson:"slug" json:"slug"`
	Name      string    `bson:"name" json:"name"`
	IsActive  bool      `bson:"is_active" json:"is_active"`
	CreatedAt time.Time `bson:"created_at" json:"created_at"` // UTC
}

type NewSchool struct {
	Slug string `json:"slug" validate:"required,min=2,max=64,slug"`
	Name string `json:"name" validate:"required"`
}

func (ns *NewSchool) Validate(ctx context.Context, validate *validator.Validate, svc *Service) error {
	ns.Slug = core.CleanString(ns.Slug, true /* lower */)
	ns.Name = core.CleanString(ns.Name)

	if err := validate.Struct(ns); err != nil {
		return err
	}
	if err := svc.repo.CheckSlugUniqueness(ctx, ns.Slug); err != nil {
		if err == ErrSlugExists {
			return core.NewValidationError(err, core.FieldError{Field: "slug", Error: err.Error()})
		}
		return err
	}
	return nil
}

// GetFilter selects a school by ID, by Slug, or by IDOrSlug (matches either).
type GetFilter struct {
	ID       string
	Slug     string
	IDOrSlug string
}

type (
	Repository interface {
		CheckSlugUniqueness(ctx context.Context, slug string) error
		CreateSchool(ctx context.Context, sch School) (School, error)
		GetSchool(ctx context.Context, filter GetFilter) (School, error)
		SetActive(ctx context.Context, id string, active bool) error
	}

	Service struct {
		repo Repository
	}
)

func NewService(repo Repository) *Service {
	return &Service{repo: repo}
}

func (svc *Service) Create(ctx context.Context, ns NewSchool) (School, error) {
	sch := School{
		ID:        uuid.NewString(),
		Slug:      ns.Slug,
		Name:      ns.Name,
		IsActive:  true,
		CreatedAt: time.Now().UTC(),
	}
	return svc.repo.CreateSchool(ctx, sch)
}

// Resolve finds a school from the tenant reference sent by clients (its ID or its slug).
func (svc *Service) Resolve(ctx context.Context, ref string) (School, error) {
	ref = core.CleanString(ref, true /* lower */)
	if ref == "" {
		return School{}, ErrNotFound
	}
	return svc.repo.GetSchool(ctx, GetFilter{IDOrSlug: ref})
}

func (svc *Service) GetByID(ctx context.Context, id string) (School, error) {
	return svc.repo.GetSchool(ctx, GetFilter{ID: id})
}

func (svc *Service) SetActive(ctx context.Context, ref string, active bool) (School, error) {
	sch, err := svc.Resolve(ctx, ref)
	if err != nil {
		return School{}, err
	}
	if err = svc.repo.SetActive(ctx, sch.ID, active); err != nil {
		return School{}, err
	}
	sch.IsActive = active
	return sch, nil
}

// InitValidators registers the school validation tags.
func InitValidators(validate *validator.Validate, translator ut.Translator) {
	_ = validate.RegisterValidation(slugTag, func(fl validator.FieldLevel) bool {
		return slugRegex.MatchString(fl.Field().String())
	})
	core.RegisterCustomTranslation(validate, translator, slugTag, slugText)
}
