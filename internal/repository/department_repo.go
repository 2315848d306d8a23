package repository

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/gorm"
)

// DepartmentRepository holds departments and VAT bands.
type DepartmentRepository interface {
	ListDepartments(ctx context.Context) ([]model.Department, error)
	FindDepartment(ctx context.Context, id int64) (*model.Department, error)
	CreateDepartment(ctx context.Context, d *model.Department) error
	UpdateDepartment(ctx context.Context, d *model.Department) error
	ListVatBands(ctx context.Context) ([]model.VatBand, error)
	FindVatBand(ctx context.Context, band string) (*model.VatBand, error)
	CreateVatBand(ctx context.Context, v *model.VatBand) error
	CreateVatRate(ctx context.Context, v *model.VatRate) error
}

type departmentRepo struct{ db *gorm.DB }

func NewDepartmentRepository(db *gorm.DB) DepartmentRepository { return &departmentRepo{db: db} }

func (r *departmentRepo) ListDepartments(ctx context.Context) ([]model.Department, error) {
	var depts []model.Department
	err := conn(ctx, r.db).Order("id ASC").Find(&depts).Error
	return depts, err
}

func (r *departmentRepo) FindDepartment(ctx context.Context, id int64) (*model.Department, error) {
	var d model.Department
	err := conn(ctx, r.db).Preload("VatBand.Rates").First(&d, id).Error
	return &d, err
}

func (r *departmentRepo) CreateDepartment(ctx context.Context, d *model.Department) error {
	return conn(ctx, r.db).Create(d).Error
}

func (r *departmentRepo) UpdateDepartment(ctx context.Context, d *model.Department) error {
	return conn(ctx, r.db).Omit("VatBand").Save(d).Error
}

func (r *departmentRepo) ListVatBands(ctx context.Context) ([]model.VatBand, error) {
	var bands []model.VatBand
	err := conn(ctx, r.db).Preload("Rates").Order("band ASC").Find(&bands).Error
	return bands, err
}

func (r *departmentRepo) FindVatBand(ctx context.Context, band string) (*model.VatBand, error) {
	var v model.VatBand
	err := conn(ctx, r.db).Preload("Rates").First(&v, "band = ?", band).Error
	return &v, err
}

func (r *departmentRepo) CreateVatBand(ctx context.Context, v *model.VatBand) error {
	return conn(ctx, r.db).Create(v).Error
}

func (r *departmentRepo) CreateVatRate(ctx context.Context, v *model.VatRate) error {
	return conn(ctx, r.db).Create(v).Error
}
