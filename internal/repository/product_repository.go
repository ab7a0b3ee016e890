package repository

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"windscapes-barcode/internal/models"
)

type ProductRepository struct {
	db *Database
}

func NewProductRepository(db *Database) *ProductRepository {
	return &ProductRepository{db: db}
}

func (r *ProductRepository) Create(ctx context.Context, product *models.Product) error {
	err := r.db.WithContext(ctx).Create(product).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return fmt.Errorf("%w: %s", ErrDuplicateIdentifier, product.Identifier)
	}
	return err
}

func (r *ProductRepository) GetByIdentifier(ctx context.Context, identifier string) (*models.Product, error) {
	var product models.Product
	err := r.db.WithContext(ctx).Where("identifier = ?", identifier).First(&product).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrProductNotFound, identifier)
	}
	if err != nil {
		return nil, err
	}
	return &product, nil
}

// ListProducts returns the whole catalog in creation order.
func (r *ProductRepository) ListProducts(ctx context.Context) ([]models.Product, error) {
	return r.List(ctx, nil)
}

func (r *ProductRepository) List(ctx context.Context, params *models.FilterParams) ([]models.Product, error) {
	var products []models.Product

	query := r.db.WithContext(ctx).Model(&models.Product{})
	if params != nil {
		if params.SearchTerm != "" {
			searchPattern := "%" + params.SearchTerm + "%"
			query = query.Where("name LIKE ? OR identifier LIKE ?", searchPattern, searchPattern)
		}
		if params.Limit > 0 {
			query = query.Limit(params.Limit)
		}
		if params.Offset > 0 {
			query = query.Offset(params.Offset)
		}
	}

	err := query.Order("productID ASC").Find(&products).Error
	return products, err
}

func (r *ProductRepository) Identifiers(ctx context.Context) ([]string, error) {
	var ids []string
	err := r.db.WithContext(ctx).Model(&models.Product{}).Pluck("identifier", &ids).Error
	return ids, err
}

// AdjustQuantity adds delta to the stock on hand and returns the new level.
// A decrement that would go below zero fails with ErrInsufficientStock.
func (r *ProductRepository) AdjustQuantity(ctx context.Context, identifier string, delta int) (int, error) {
	db := r.db.WithContext(ctx)

	res := db.Model(&models.Product{}).
		Where("identifier = ? AND quantity + ? >= 0", identifier, delta).
		UpdateColumn("quantity", gorm.Expr("quantity + ?", delta))
	if res.Error != nil {
		return 0, res.Error
	}

	product, err := r.GetByIdentifier(ctx, identifier)
	if err != nil {
		return 0, err
	}
	if res.RowsAffected == 0 {
		return product.Quantity, fmt.Errorf("%w: %s has %d", ErrInsufficientStock, identifier, product.Quantity)
	}
	return product.Quantity, nil
}
