package repository

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// KeyboardRepository holds modifiers and the bindings that resolve a
// keypress or barcode scan to a sale target.
type KeyboardRepository interface {
	ListModifiers(ctx context.Context) ([]model.Modifier, error)
	FindModifier(ctx context.Context, name string) (*model.Modifier, error)
	SaveModifier(ctx context.Context, m *model.Modifier) error
	DeleteModifier(ctx context.Context, name string) error

	ListBindings(ctx context.Context, keycode string) ([]model.KeyboardBinding, error)
	CreateBinding(ctx context.Context, b *model.KeyboardBinding) error
	DeleteBinding(ctx context.Context, id int64) error

	ListBarcodes(ctx context.Context) ([]model.Barcode, error)
	FindBarcode(ctx context.Context, code string) (*model.Barcode, error)
	SaveBarcode(ctx context.Context, b *model.Barcode) error
	DeleteBarcode(ctx context.Context, code string) error
}

type keyboardRepo struct{ db *gorm.DB }

func NewKeyboardRepository(db *gorm.DB) KeyboardRepository { return &keyboardRepo{db: db} }

func (r *keyboardRepo) ListModifiers(ctx context.Context) ([]model.Modifier, error) {
	var out []model.Modifier
	err := conn(ctx, r.db).Order("name ASC").Find(&out).Error
	return out, err
}

func (r *keyboardRepo) FindModifier(ctx context.Context, name string) (*model.Modifier, error) {
	var m model.Modifier
	err := conn(ctx, r.db).First(&m, "name = ?", name).Error
	return &m, err
}

func (r *keyboardRepo) SaveModifier(ctx context.Context, m *model.Modifier) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(m).Error
}

func (r *keyboardRepo) DeleteModifier(ctx context.Context, name string) error {
	return conn(ctx, r.db).Where("name = ?", name).Delete(&model.Modifier{}).Error
}

// ListBindings returns the bindings for keycode, or every binding when
// keycode is empty.
func (r *keyboardRepo) ListBindings(ctx context.Context, keycode string) ([]model.KeyboardBinding, error) {
	var out []model.KeyboardBinding
	q := conn(ctx, r.db)
	if keycode != "" {
		q = q.Where("keycode = ?", keycode)
	}
	err := q.Order("keycode ASC, menukey ASC").Find(&out).Error
	return out, err
}

func (r *keyboardRepo) CreateBinding(ctx context.Context, b *model.KeyboardBinding) error {
	return conn(ctx, r.db).Create(b).Error
}

func (r *keyboardRepo) DeleteBinding(ctx context.Context, id int64) error {
	return conn(ctx, r.db).Delete(&model.KeyboardBinding{}, id).Error
}

func (r *keyboardRepo) ListBarcodes(ctx context.Context) ([]model.Barcode, error) {
	var out []model.Barcode
	err := conn(ctx, r.db).Order("code ASC").Find(&out).Error
	return out, err
}

func (r *keyboardRepo) FindBarcode(ctx context.Context, code string) (*model.Barcode, error) {
	var b model.Barcode
	err := conn(ctx, r.db).First(&b, "code = ?", code).Error
	return &b, err
}

func (r *keyboardRepo) SaveBarcode(ctx context.Context, b *model.Barcode) error {
	return conn(ctx, r.db).Clauses(clause.OnConflict{UpdateAll: true}).Create(b).Error
}

func (r *keyboardRepo) DeleteBarcode(ctx context.Context, code string) error {
	return conn(ctx, r.db).Where("code = ?", code).Delete(&model.Barcode{}).Error
}
