package repository

import (
	"context"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/gorm"
)

// StockItemFilter narrows ListStockItems. Results are always ordered by
// best-before (unset last) then id.
type StockItemFilter struct {
	IDs         []int64
	DeliveryID  *int64
	StockTypeID *int64
	// Live restricts to unfinished items in checked deliveries.
	Live bool
	// Unallocated restricts to items not attached to any stock line.
	Unallocated bool
}

// StockRepository holds stock items and the rows that hang off them.
// Items are always returned with Used filled in.
type StockRepository interface {
	FindStockItem(ctx context.Context, id int64) (*model.StockItem, error)
	ListStockItems(ctx context.Context, filter StockItemFilter) ([]model.StockItem, error)
	CreateStockItem(ctx context.Context, item *model.StockItem) error
	UpdateStockItem(ctx context.Context, item *model.StockItem) error
	DeleteStockItem(ctx context.Context, id int64) error

	CreateStockOut(ctx context.Context, so *model.StockOut) error
	ListStockOutsByTranslines(ctx context.Context, translineIDs []int64) ([]model.StockOut, error)
	DeleteStockOutsByTranslines(ctx context.Context, translineIDs []int64) error
	LastStockOutTime(ctx context.Context, itemID int64, codes []string) (*time.Time, error)

	CreateAnnotation(ctx context.Context, a *model.StockAnnotation) error
	ListAnnotations(ctx context.Context, itemID int64) ([]model.StockAnnotation, error)

	ListRemoveCodes(ctx context.Context) ([]model.RemoveCode, error)
	ListFinishCodes(ctx context.Context) ([]model.FinishCode, error)
}

type stockRepo struct{ db *gorm.DB }

func NewStockRepository(db *gorm.DB) StockRepository { return &stockRepo{db: db} }

const usedColumn = "stock.*, COALESCE((SELECT SUM(so.qty) FROM stockout so WHERE so.stockid = stock.id), 0) AS used"

func (r *stockRepo) items(ctx context.Context) *gorm.DB {
	return conn(ctx, r.db).Model(&model.StockItem{}).Select(usedColumn).
		Preload("StockType.Unit").Preload("Delivery")
}

func (r *stockRepo) FindStockItem(ctx context.Context, id int64) (*model.StockItem, error) {
	var item model.StockItem
	err := r.items(ctx).Where("stock.id = ?", id).First(&item).Error
	return &item, err
}

func (r *stockRepo) ListStockItems(ctx context.Context, f StockItemFilter) ([]model.StockItem, error) {
	q := r.items(ctx)
	if len(f.IDs) > 0 {
		q = q.Where("stock.id IN ?", f.IDs)
	}
	if f.DeliveryID != nil {
		q = q.Where("stock.delivery_id = ?", *f.DeliveryID)
	}
	if f.StockTypeID != nil {
		q = q.Where("stock.stock_type_id = ?", *f.StockTypeID)
	}
	if f.Live {
		q = q.Where("stock.finished IS NULL").
			Where("EXISTS (SELECT 1 FROM deliveries d WHERE d.id = stock.delivery_id AND d.checked)")
	}
	if f.Unallocated {
		q = q.Where("NOT EXISTS (SELECT 1 FROM stockonsale sos WHERE sos.stockid = stock.id)")
	}
	var out []model.StockItem
	err := q.Order("stock.best_before ASC NULLS LAST, stock.id ASC").Find(&out).Error
	return out, err
}

func (r *stockRepo) CreateStockItem(ctx context.Context, item *model.StockItem) error {
	return conn(ctx, r.db).Omit("Delivery", "StockType", "StockUnit").Create(item).Error
}

func (r *stockRepo) UpdateStockItem(ctx context.Context, item *model.StockItem) error {
	return conn(ctx, r.db).Omit("Delivery", "StockType", "StockUnit").Save(item).Error
}

func (r *stockRepo) DeleteStockItem(ctx context.Context, id int64) error {
	return conn(ctx, r.db).Delete(&model.StockItem{}, id).Error
}

func (r *stockRepo) CreateStockOut(ctx context.Context, so *model.StockOut) error {
	if so.Time.IsZero() {
		so.Time = time.Now()
	}
	return conn(ctx, r.db).Create(so).Error
}

func (r *stockRepo) ListStockOutsByTranslines(ctx context.Context, translineIDs []int64) ([]model.StockOut, error) {
	var out []model.StockOut
	if len(translineIDs) == 0 {
		return out, nil
	}
	err := conn(ctx, r.db).Where("translineid IN ?", translineIDs).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *stockRepo) DeleteStockOutsByTranslines(ctx context.Context, translineIDs []int64) error {
	if len(translineIDs) == 0 {
		return nil
	}
	return conn(ctx, r.db).Where("translineid IN ?", translineIDs).Delete(&model.StockOut{}).Error
}

func (r *stockRepo) LastStockOutTime(ctx context.Context, itemID int64, codes []string) (*time.Time, error) {
	var so model.StockOut
	err := conn(ctx, r.db).Where("stockid = ? AND removecode IN ?", itemID, codes).
		Order("time DESC").First(&so).Error
	if IsNotFound(err) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &so.Time, nil
}

func (r *stockRepo) CreateAnnotation(ctx context.Context, a *model.StockAnnotation) error {
	if a.Time.IsZero() {
		a.Time = time.Now()
	}
	return conn(ctx, r.db).Create(a).Error
}

func (r *stockRepo) ListAnnotations(ctx context.Context, itemID int64) ([]model.StockAnnotation, error) {
	var out []model.StockAnnotation
	err := conn(ctx, r.db).Where("stockid = ?", itemID).Order("time ASC, id ASC").Find(&out).Error
	return out, err
}

func (r *stockRepo) ListRemoveCodes(ctx context.Context) ([]model.RemoveCode, error) {
	var out []model.RemoveCode
	err := conn(ctx, r.db).Order("id ASC").Find(&out).Error
	return out, err
}

func (r *stockRepo) ListFinishCodes(ctx context.Context) ([]model.FinishCode, error) {
	var out []model.FinishCode
	err := conn(ctx, r.db).Order("id ASC").Find(&out).Error
	return out, err
}
