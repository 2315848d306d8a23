package repository

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/gorm"
)

// PLURepository holds price lookups.
type PLURepository interface {
	ListPLUs(ctx context.Context) ([]model.PLU, error)
	FindPLU(ctx context.Context, id int64) (*model.PLU, error)
	CreatePLU(ctx context.Context, p *model.PLU) error
	UpdatePLU(ctx context.Context, p *model.PLU) error
	DeletePLU(ctx context.Context, id int64) error
}

type pluRepo struct{ db *gorm.DB }

func NewPLURepository(db *gorm.DB) PLURepository { return &pluRepo{db: db} }

func (r *pluRepo) ListPLUs(ctx context.Context) ([]model.PLU, error) {
	var out []model.PLU
	err := conn(ctx, r.db).Order("description ASC").Find(&out).Error
	return out, err
}

func (r *pluRepo) FindPLU(ctx context.Context, id int64) (*model.PLU, error) {
	var p model.PLU
	err := conn(ctx, r.db).First(&p, id).Error
	return &p, err
}

func (r *pluRepo) CreatePLU(ctx context.Context, p *model.PLU) error {
	return conn(ctx, r.db).Omit("Department").Create(p).Error
}

func (r *pluRepo) UpdatePLU(ctx context.Context, p *model.PLU) error {
	return conn(ctx, r.db).Omit("Department").Save(p).Error
}

func (r *pluRepo) DeletePLU(ctx context.Context, id int64) error {
	return conn(ctx, r.db).Delete(&model.PLU{}, id).Error
}
