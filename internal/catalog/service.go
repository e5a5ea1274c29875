package catalog

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/rs/zerolog"
	"go.mongodb.org/mongo-driver/bson/primitive"

	"justmatcha-backend/internal/apperr"
	"justmatcha-backend/internal/model"
	"justmatcha-backend/internal/store"
)

// ProductInput is the writable part of a product. Price and stock are
// pointers so that an explicit zero passes "required".
type ProductInput struct {
	Name        string   `json:"name" validate:"required,min=3,max=50"`
	Description string   `json:"description" validate:"required"`
	Image       string   `json:"image" validate:"required"`
	Price       *float64 `json:"price" validate:"required,gte=0"`
	Stock       *int     `json:"stock" validate:"required,gte=0"`
}

type Service struct {
	products store.ProductStore
	validate *validator.Validate
	log      zerolog.Logger
}

func NewService(products store.ProductStore, log zerolog.Logger) *Service {
	return &Service{products: products, validate: validator.New(), log: log}
}

func (s *Service) List(ctx context.Context) ([]model.Product, error) {
	products, err := s.products.List(ctx)
	if err != nil {
		return nil, apperr.Internal(err, "could not list products")
	}
	return products, nil
}

func (s *Service) Get(ctx context.Context, id string) (*model.Product, error) {
	oid, err := primitive.ObjectIDFromHex(id)
	if err != nil {
		return nil, apperr.NotFound("Product not found")
	}
	p, err := s.products.GetByID(ctx, oid)
	if err != nil {
		return nil, notFoundOr(err, "could not load product")
	}
	return p, nil
}

func (s *Service) Create(ctx context.Context, in ProductInput) (*model.Product, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}
	now := time.Now().UTC()
	p := &model.Product{
		Name:        in.Name,
		Description: in.Description,
		Image:       in.Image,
		Price:       *in.Price,
		Stock:       *in.Stock,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, apperr.Internal(err, "could not create product")
	}
	s.log.Info().Str("product_id", p.ID.Hex()).Str("name", p.Name).Msg("product created")
	return p, nil
}

// Update replaces every writable field.
func (s *Service) Update(ctx context.Context, id string, in ProductInput) (*model.Product, error) {
	if err := s.check(&in); err != nil {
		return nil, err
	}
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	p.Name = in.Name
	p.Description = in.Description
	p.Image = in.Image
	p.Price = *in.Price
	p.Stock = *in.Stock
	p.UpdatedAt = time.Now().UTC()
	if err := s.products.Update(ctx, p); err != nil {
		return nil, notFoundOr(err, "could not update product")
	}
	return p, nil
}

func (s *Service) Delete(ctx context.Context, id string) (*model.Product, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.products.Delete(ctx, p.ID); err != nil {
		return nil, notFoundOr(err, "could not delete product")
	}
	s.log.Info().Str("product_id", p.ID.Hex()).Msg("product deleted")
	return p, nil
}

func (s *Service) check(in *ProductInput) error {
	in.Name = strings.TrimSpace(in.Name)
	if err := s.validate.Struct(in); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return apperr.Invalid("%s", describe(verrs[0]))
		}
		return apperr.Invalid("invalid product")
	}
	return nil
}

func describe(fe validator.FieldError) string {
	field := strings.ToLower(fe.Field())
	switch fe.Tag() {
	case "required":
		return field + " is required"
	case "min":
		return field + " must be at least " + fe.Param() + " characters long"
	case "max":
		return field + " must be at most " + fe.Param() + " characters long"
	case "gte":
		return field + " must not be negative"
	default:
		return field + " is invalid"
	}
}

func notFoundOr(err error, msg string) error {
	if errors.Is(err, store.ErrNotFound) {
		return apperr.NotFound("Product not found")
	}
	return apperr.Internal(err, msg)
}
