package repository

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// ConfigRepository holds the persisted site configuration.
type ConfigRepository interface {
	ListConfig(ctx context.Context) ([]model.ConfigItem, error)
	FindConfig(ctx context.Context, key string) (*model.ConfigItem, error)
	SaveConfig(ctx context.Context, item *model.ConfigItem) error
	// EnsureConfig inserts items that are not yet present and leaves
	// existing values alone.
	EnsureConfig(ctx context.Context, items []model.ConfigItem) error
}

type configRepo struct{ db *gorm.DB }

func NewConfigRepository(db *gorm.DB) ConfigRepository { return &configRepo{db: db} }

func (r *configRepo) ListConfig(ctx context.Context) ([]model.ConfigItem, error) {
	var out []model.ConfigItem
	err := conn(ctx, r.db).Order("key ASC").Find(&out).Error
	return out, err
}

func (r *configRepo) FindConfig(ctx context.Context, key string) (*model.ConfigItem, error) {
	var item model.ConfigItem
	err := conn(ctx, r.db).First(&item, "key = ?", key).Error
	return &item, err
}

func (r *configRepo) SaveConfig(ctx context.Context, item *model.ConfigItem) error {
	return conn(ctx, r.db).Save(item).Error
}

func (r *configRepo) EnsureConfig(ctx context.Context, items []model.ConfigItem) error {
	if len(items) == 0 {
		return nil
	}
	return conn(ctx, r.db).Clauses(clause.OnConflict{DoNothing: true}).Create(&items).Error
}
