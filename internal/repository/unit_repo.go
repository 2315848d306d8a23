package repository

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/gorm"
)

// UnitRepository holds the measurement vocabulary.
type UnitRepository interface {
	ListUnits(ctx context.Context) ([]model.Unit, error)
	FindUnit(ctx context.Context, id string) (*model.Unit, error)
	CreateUnit(ctx context.Context, u *model.Unit) error
	ListStockUnits(ctx context.Context) ([]model.StockUnit, error)
	FindStockUnit(ctx context.Context, id int64) (*model.StockUnit, error)
	CreateStockUnit(ctx context.Context, su *model.StockUnit) error
}

type unitRepo struct{ db *gorm.DB }

func NewUnitRepository(db *gorm.DB) UnitRepository { return &unitRepo{db: db} }

func (r *unitRepo) ListUnits(ctx context.Context) ([]model.Unit, error) {
	var units []model.Unit
	err := conn(ctx, r.db).Order("id ASC").Find(&units).Error
	return units, err
}

func (r *unitRepo) FindUnit(ctx context.Context, id string) (*model.Unit, error) {
	var u model.Unit
	err := conn(ctx, r.db).First(&u, "id = ?", id).Error
	return &u, err
}

func (r *unitRepo) CreateUnit(ctx context.Context, u *model.Unit) error {
	return conn(ctx, r.db).Create(u).Error
}

func (r *unitRepo) ListStockUnits(ctx context.Context) ([]model.StockUnit, error) {
	var sus []model.StockUnit
	err := conn(ctx, r.db).Preload("Unit").Order("unit_id ASC, size ASC").Find(&sus).Error
	return sus, err
}

func (r *unitRepo) FindStockUnit(ctx context.Context, id int64) (*model.StockUnit, error) {
	var su model.StockUnit
	err := conn(ctx, r.db).Preload("Unit").First(&su, id).Error
	return &su, err
}

func (r *unitRepo) CreateStockUnit(ctx context.Context, su *model.StockUnit) error {
	return conn(ctx, r.db).Create(su).Error
}
