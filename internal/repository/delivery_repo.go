package repository

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/gorm"
)

// DeliveryRepository holds suppliers and deliveries.
type DeliveryRepository interface {
	ListSuppliers(ctx context.Context) ([]model.Supplier, error)
	FindSupplier(ctx context.Context, id int64) (*model.Supplier, error)
	CreateSupplier(ctx context.Context, s *model.Supplier) error
	UpdateSupplier(ctx context.Context, s *model.Supplier) error

	ListDeliveries(ctx context.Context, checked *bool) ([]model.Delivery, error)
	FindDelivery(ctx context.Context, id int64) (*model.Delivery, error)
	CreateDelivery(ctx context.Context, d *model.Delivery) error
	UpdateDelivery(ctx context.Context, d *model.Delivery) error
	DeleteDelivery(ctx context.Context, id int64) error
}

type deliveryRepo struct{ db *gorm.DB }

func NewDeliveryRepository(db *gorm.DB) DeliveryRepository { return &deliveryRepo{db: db} }

func (r *deliveryRepo) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	var out []model.Supplier
	err := conn(ctx, r.db).Order("name ASC").Find(&out).Error
	return out, err
}

func (r *deliveryRepo) FindSupplier(ctx context.Context, id int64) (*model.Supplier, error) {
	var s model.Supplier
	err := conn(ctx, r.db).First(&s, id).Error
	return &s, err
}

func (r *deliveryRepo) CreateSupplier(ctx context.Context, s *model.Supplier) error {
	return conn(ctx, r.db).Create(s).Error
}

func (r *deliveryRepo) UpdateSupplier(ctx context.Context, s *model.Supplier) error {
	return conn(ctx, r.db).Save(s).Error
}

func (r *deliveryRepo) ListDeliveries(ctx context.Context, checked *bool) ([]model.Delivery, error) {
	var out []model.Delivery
	q := conn(ctx, r.db).Preload("Supplier")
	if checked != nil {
		q = q.Where("checked = ?", *checked)
	}
	err := q.Order("id DESC").Find(&out).Error
	return out, err
}

func (r *deliveryRepo) FindDelivery(ctx context.Context, id int64) (*model.Delivery, error) {
	var d model.Delivery
	err := conn(ctx, r.db).Preload("Supplier").First(&d, id).Error
	return &d, err
}

func (r *deliveryRepo) CreateDelivery(ctx context.Context, d *model.Delivery) error {
	return conn(ctx, r.db).Omit("Supplier", "Items").Create(d).Error
}

func (r *deliveryRepo) UpdateDelivery(ctx context.Context, d *model.Delivery) error {
	return conn(ctx, r.db).Omit("Supplier", "Items").Save(d).Error
}

func (r *deliveryRepo) DeleteDelivery(ctx context.Context, id int64) error {
	return conn(ctx, r.db).Delete(&model.Delivery{}, id).Error
}
