package service

import (
	"context"
	"fmt"
	"strings"

	"github.com/idpuniv/livewire/internal/entity"
	"github.com/idpuniv/livewire/internal/repository"
)

// CatalogService exposes product reads and admin writes. Writes return the
// ProductUpdated events the caller should dispatch.
type CatalogService struct {
	products repository.ProductRepository
}

func NewCatalogService(products repository.ProductRepository) *CatalogService {
	return &CatalogService{products: products}
}

func (s *CatalogService) FindByID(ctx context.Context, id int64) (*entity.Product, error) {
	return s.products.FindByID(ctx, id)
}

func (s *CatalogService) FindAll(ctx context.Context) ([]entity.Product, error) {
	return s.products.FindAll(ctx)
}

// Search filters products by name or code.
func (s *CatalogService) Search(ctx context.Context, query string) ([]entity.Product, error) {
	return s.products.Search(ctx, query)
}

func (s *CatalogService) Create(ctx context.Context, p *entity.Product) ([]entity.Event, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.products.Create(ctx, p); err != nil {
		return nil, err
	}
	return []entity.Event{entity.ProductUpdated{Action: entity.ProductCreated, Product: *p}}, nil
}

func (s *CatalogService) Update(ctx context.Context, p *entity.Product) ([]entity.Event, error) {
	if err := validateProduct(p); err != nil {
		return nil, err
	}
	if err := s.products.Update(ctx, p); err != nil {
		return nil, err
	}
	return []entity.Event{entity.ProductUpdated{Action: entity.ProductEdited, Product: *p}}, nil
}

func (s *CatalogService) Delete(ctx context.Context, id int64) ([]entity.Event, error) {
	p, err := s.products.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.products.Delete(ctx, id); err != nil {
		return nil, err
	}
	return []entity.Event{entity.ProductUpdated{Action: entity.ProductDeleted, Product: *p}}, nil
}

func validateProduct(p *entity.Product) error {
	p.Name = strings.TrimSpace(p.Name)
	p.Code = strings.TrimSpace(p.Code)
	switch {
	case p.Name == "":
		return fmt.Errorf("product name is required: %w", entity.ErrValidation)
	case p.Code == "":
		return fmt.Errorf("product code is required: %w", entity.ErrValidation)
	case p.Price.IsNegative():
		return fmt.Errorf("product price %s is negative: %w", p.Price, entity.ErrValidation)
	case p.Stock < 0:
		return fmt.Errorf("product stock %d is negative: %w", p.Stock, entity.ErrValidation)
	}
	return nil
}
