package services

import (
	"context"
	"strings"

	"dryfruits/internal/models"
	"dryfruits/internal/repositories"

	"github.com/shopspring/decimal"
)

const (
	defaultLatestLimit = 8
	maxLatestLimit     = 50
)

// ProductService handles business logic related to products.
type ProductService struct {
	repo repositories.ProductRepository
}

// NewProductService creates a new ProductService.
func NewProductService(repo repositories.ProductRepository) *ProductService {
	return &ProductService{
		repo: repo,
	}
}

// GetAllProducts retrieves all products.
func (s *ProductService) GetAllProducts(ctx context.Context) ([]models.Product, error) {
	products, err := s.repo.GetAll(ctx)
	if err != nil {
		return nil, storeErr(err, "failed to list products")
	}
	return products, nil
}

// GetProductByID retrieves a single product by its ID.
func (s *ProductService) GetProductByID(ctx context.Context, id string) (*models.Product, error) {
	product, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return nil, storeErr(err, "failed to get product")
	}
	return product, nil
}

// GetProductBySlug retrieves a single product by its slug.
func (s *ProductService) GetProductBySlug(ctx context.Context, slug string) (*models.Product, error) {
	product, err := s.repo.GetBySlug(ctx, slug)
	if err != nil {
		return nil, storeErr(err, "failed to get product")
	}
	return product, nil
}

// LatestProducts returns the newest active products for the storefront home
// page, each carrying only its first image. limit defaults to 8.
func (s *ProductService) LatestProducts(ctx context.Context, limit int) ([]models.Product, error) {
	switch {
	case limit <= 0:
		limit = defaultLatestLimit
	case limit > maxLatestLimit:
		limit = maxLatestLimit
	}
	products, err := s.repo.Latest(ctx, limit)
	if err != nil {
		return nil, storeErr(err, "failed to list latest products")
	}
	for i := range products {
		if len(products[i].Images) > 1 {
			products[i].Images = products[i].Images[:1]
		}
	}
	return products, nil
}

// CreateProduct validates product, gives it a unique slug and derives the
// final price when none was supplied. A product is available unless the
// request says otherwise.
func (s *ProductService) CreateProduct(ctx context.Context, product *models.Product) error {
	if product.IsAvailable == nil {
		available := true
		product.IsAvailable = &available
	}
	if err := prepareProduct(product); err != nil {
		return err
	}
	base := Slugify(product.Slug)
	if base == "" {
		base = Slugify(product.Name)
	}
	slug, err := uniqueSlug(ctx, base, s.repo.SlugExists)
	if err != nil {
		return err
	}
	product.Slug = slug

	if err := s.repo.Create(ctx, product); err != nil {
		return storeErr(err, "failed to create product")
	}
	return nil
}

// UpdateProduct replaces the stored product id with product. An empty slug
// or a missing availability flag keeps the current value.
func (s *ProductService) UpdateProduct(ctx context.Context, id string, product *models.Product) error {
	existing, err := s.repo.GetByID(ctx, id)
	if err != nil {
		return storeErr(err, "failed to get product")
	}
	if err := prepareProduct(product); err != nil {
		return err
	}
	product.ID = existing.ID
	product.CreatedAt = existing.CreatedAt
	if product.IsAvailable == nil {
		product.IsAvailable = existing.IsAvailable
	}

	slug := Slugify(product.Slug)
	switch {
	case slug == "" || slug == existing.Slug:
		product.Slug = existing.Slug
	default:
		if product.Slug, err = uniqueSlug(ctx, slug, s.repo.SlugExists); err != nil {
			return err
		}
	}

	if err := s.repo.Update(ctx, product); err != nil {
		return storeErr(err, "failed to update product %s", id)
	}
	return nil
}

// DeleteProduct deletes a product by its ID.
func (s *ProductService) DeleteProduct(ctx context.Context, id string) error {
	if err := s.repo.Delete(ctx, id); err != nil {
		return storeErr(err, "failed to delete product %s", id)
	}
	return nil
}

func prepareProduct(p *models.Product) error {
	for _, field := range []*string{&p.Name, &p.Type, &p.Brand, &p.SKU, &p.PackagingType, &p.ShelfLife, &p.Description} {
		*field = strings.TrimSpace(*field)
	}
	switch {
	case p.Name == "":
		return invalidf("name is required")
	case p.Type == "":
		return invalidf("type is required")
	case p.Brand == "":
		return invalidf("brand is required")
	case p.SKU == "":
		return invalidf("sku is required")
	case p.PackagingType == "":
		return invalidf("packaging type is required")
	case p.ShelfLife == "":
		return invalidf("shelf life is required")
	case p.Description == "":
		return invalidf("description is required")
	case p.Weight <= 0:
		return invalidf("weight must be positive")
	case !p.Price.IsPositive():
		return invalidf("price must be positive")
	case p.DiscountPercentage.IsNegative() || p.DiscountPercentage.GreaterThan(hundred):
		return invalidf("discount percentage must be between 0 and 100")
	case p.Stock < 0:
		return invalidf("stock cannot be negative")
	case len(p.Images) == 0:
		return invalidf("at least one image is required")
	}

	switch p.Status {
	case "":
		p.Status = models.StatusActive
	case models.StatusActive, models.StatusInactive:
	default:
		return invalidf("status must be %s or %s", models.StatusActive, models.StatusInactive)
	}

	if !p.FinalPrice.Valid {
		p.FinalPrice = decimal.NewNullDecimal(DeriveFinalPrice(p.Price, p.DiscountPercentage))
	} else if p.FinalPrice.Decimal.IsNegative() {
		return invalidf("final price cannot be negative")
	}
	return nil
}
