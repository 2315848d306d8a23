package repository

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/gorm"
)

// StockLineRepository holds stock lines and the items attached to them.
type StockLineRepository interface {
	ListStockLines(ctx context.Context, lineType string) ([]model.StockLine, error)
	FindStockLine(ctx context.Context, id int64) (*model.StockLine, error)
	CreateStockLine(ctx context.Context, l *model.StockLine) error
	UpdateStockLine(ctx context.Context, l *model.StockLine) error
	DeleteStockLine(ctx context.Context, id int64) error

	ListOnSale(ctx context.Context, lineID int64) ([]model.StockOnSale, error)
	FindOnSale(ctx context.Context, itemID int64) (*model.StockOnSale, error)
	CreateOnSale(ctx context.Context, s *model.StockOnSale) error
	UpdateOnSale(ctx context.Context, s *model.StockOnSale) error
	DeleteOnSale(ctx context.Context, itemID int64) error
}

type stockLineRepo struct{ db *gorm.DB }

func NewStockLineRepository(db *gorm.DB) StockLineRepository { return &stockLineRepo{db: db} }

func (r *stockLineRepo) ListStockLines(ctx context.Context, lineType string) ([]model.StockLine, error) {
	var out []model.StockLine
	q := conn(ctx, r.db).Preload("StockType")
	if lineType != "" {
		q = q.Where("linetype = ?", lineType)
	}
	err := q.Order("location ASC, name ASC").Find(&out).Error
	return out, err
}

func (r *stockLineRepo) FindStockLine(ctx context.Context, id int64) (*model.StockLine, error) {
	var l model.StockLine
	err := conn(ctx, r.db).Preload("StockType.Unit").First(&l, id).Error
	return &l, err
}

func (r *stockLineRepo) CreateStockLine(ctx context.Context, l *model.StockLine) error {
	return conn(ctx, r.db).Omit("StockType").Create(l).Error
}

func (r *stockLineRepo) UpdateStockLine(ctx context.Context, l *model.StockLine) error {
	return conn(ctx, r.db).Omit("StockType").Save(l).Error
}

func (r *stockLineRepo) DeleteStockLine(ctx context.Context, id int64) error {
	return conn(ctx, r.db).Delete(&model.StockLine{}, id).Error
}

func (r *stockLineRepo) ListOnSale(ctx context.Context, lineID int64) ([]model.StockOnSale, error) {
	var out []model.StockOnSale
	err := conn(ctx, r.db).Where("stocklineid = ?", lineID).Order("stockid ASC").Find(&out).Error
	return out, err
}

func (r *stockLineRepo) FindOnSale(ctx context.Context, itemID int64) (*model.StockOnSale, error) {
	var s model.StockOnSale
	err := conn(ctx, r.db).First(&s, "stockid = ?", itemID).Error
	return &s, err
}

func (r *stockLineRepo) CreateOnSale(ctx context.Context, s *model.StockOnSale) error {
	return conn(ctx, r.db).Create(s).Error
}

func (r *stockLineRepo) UpdateOnSale(ctx context.Context, s *model.StockOnSale) error {
	return conn(ctx, r.db).Save(s).Error
}

func (r *stockLineRepo) DeleteOnSale(ctx context.Context, itemID int64) error {
	return conn(ctx, r.db).Where("stockid = ?", itemID).Delete(&model.StockOnSale{}).Error
}
