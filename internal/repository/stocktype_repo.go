package repository

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/gorm"
)

// StockTypeFilter narrows ListStockTypes. Zero values mean no filter.
type StockTypeFilter struct {
	DeptID int64
	Search string
}

// StockTypeRepository holds the product catalogue.
type StockTypeRepository interface {
	ListStockTypes(ctx context.Context, filter StockTypeFilter) ([]model.StockType, error)
	FindStockType(ctx context.Context, id int64) (*model.StockType, error)
	CreateStockType(ctx context.Context, st *model.StockType) error
	UpdateStockType(ctx context.Context, st *model.StockType) error
}

type stockTypeRepo struct{ db *gorm.DB }

func NewStockTypeRepository(db *gorm.DB) StockTypeRepository { return &stockTypeRepo{db: db} }

func (r *stockTypeRepo) ListStockTypes(ctx context.Context, filter StockTypeFilter) ([]model.StockType, error) {
	var out []model.StockType
	q := conn(ctx, r.db).Preload("Unit")
	if filter.DeptID != 0 {
		q = q.Where("dept_id = ?", filter.DeptID)
	}
	if filter.Search != "" {
		like := "%" + filter.Search + "%"
		q = q.Where("manufacturer ILIKE ? OR name ILIKE ? OR short_name ILIKE ?", like, like, like)
	}
	err := q.Order("manufacturer ASC, name ASC").Find(&out).Error
	return out, err
}

func (r *stockTypeRepo) FindStockType(ctx context.Context, id int64) (*model.StockType, error) {
	var st model.StockType
	err := conn(ctx, r.db).Preload("Unit").Preload("Department.VatBand.Rates").First(&st, id).Error
	return &st, err
}

func (r *stockTypeRepo) CreateStockType(ctx context.Context, st *model.StockType) error {
	return conn(ctx, r.db).Omit("Unit", "Department").Create(st).Error
}

func (r *stockTypeRepo) UpdateStockType(ctx context.Context, st *model.StockType) error {
	return conn(ctx, r.db).Omit("Unit", "Department").Save(st).Error
}
