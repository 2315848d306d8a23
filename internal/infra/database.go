package infra

import (
	"context"
	"fmt"
	"strings"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// NewDatabase opens the pgx-backed GORM connection. Errors are translated
// so that unique violations surface as gorm.ErrDuplicatedKey.
func NewDatabase(dsn string) (*gorm.DB, error) {
	db, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger:         logger.Default.LogMode(logger.Silent),
		TranslateError: true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(25)
	sqlDB.SetMaxIdleConns(5)
	return db, nil
}

// RunMigrations creates or updates every table, then applies the
// constraints AutoMigrate cannot express and seeds the fixed vocabularies.
// It is safe to run against an up-to-date schema.
func RunMigrations(db *gorm.DB) error {
	if err := db.AutoMigrate(model.All()...); err != nil {
		return fmt.Errorf("AutoMigrate: %w", err)
	}
	if err := applySchemaPatches(db); err != nil {
		return fmt.Errorf("schema patches: %w", err)
	}
	return seedVocabulary(db)
}

// applySchemaPatches runs idempotent DDL statements that GORM AutoMigrate cannot
// fully handle on its own (partial indexes, check constraints). Each one is
// guarded by an existence check so re-running on a patched DB is a no-op.
func applySchemaPatches(db *gorm.DB) error {
	patches := []struct{ descr, sql string }{
		{"at most one current session", `
CREATE UNIQUE INDEX IF NOT EXISTS sessions_one_current
    ON sessions ((endtime IS NULL)) WHERE endtime IS NULL`},
		{"session ends after it starts", checkConstraint("sessions", "sessions_times_ordered",
			"endtime IS NULL OR endtime >= starttime")},
		{"keyboard binding has one target", checkConstraint("keyboard", "keyboard_one_target",
			oneTarget)},
		{"barcode has one target", checkConstraint("barcodes", "barcodes_one_target",
			oneTarget)},
		{"stock line types", checkConstraint("stocklines", "stocklines_linetype",
			"linetype IN ('regular', 'display', 'continuous')")},
		{"display lines have a capacity and a stock type", checkConstraint("stocklines", "stocklines_display",
			"linetype <> 'display' OR (capacity > 0 AND stocktype IS NOT NULL)")},
		{"continuous lines have a stock type", checkConstraint("stocklines", "stocklines_continuous",
			"linetype <> 'continuous' OR stocktype IS NOT NULL")},
		{"pull-through only on regular lines", checkConstraint("stocklines", "stocklines_pullthru",
			"pullthru IS NULL OR linetype = 'regular'")},
		{"transcodes", checkConstraint("translines", "translines_transcode",
			"transcode IN ('S', 'V')")},
		{"voids name the voided line", checkConstraint("translines", "translines_void",
			"(transcode = 'V') = (voided_of IS NOT NULL)")},
		{"finished items carry a finish code", checkConstraint("stock", "stock_finished",
			"(finished IS NULL) = (finish_code IS NULL)")},
		{"pending export retry index", `
CREATE INDEX IF NOT EXISTS idx_session_exports_pending_retry
    ON session_exports (next_retry_at)
    WHERE status = 'pending' AND next_retry_at IS NOT NULL`},
	}
	for _, p := range patches {
		if err := db.Exec(p.sql).Error; err != nil {
			return fmt.Errorf("patch %q: %w", p.descr, err)
		}
	}
	return nil
}

const oneTarget = `num_nonnulls(stocklineid, pluid, stocktypeid, modifier) = 1`

func checkConstraint(table, name, expr string) string {
	return fmt.Sprintf(`
DO $$ BEGIN
  IF NOT EXISTS (SELECT 1 FROM pg_constraint WHERE conname = '%s') THEN
    ALTER TABLE %s ADD CONSTRAINT %s CHECK (%s);
  END IF;
END $$`, name, table, name, expr)
}

var (
	removeCodes = []model.RemoveCode{
		{ID: model.RemoveSold, Reason: "Sold"},
		{ID: model.RemovePullThru, Reason: "Pulled through"},
		{ID: model.RemoveWaste, Reason: "Thrown away"},
		{ID: model.RemoveUllage, Reason: "Ullage"},
		{ID: model.RemoveFreebie, Reason: "Given away"},
		{ID: model.RemoveTaste, Reason: "Tasting"},
		{ID: model.RemoveMissing, Reason: "Missing"},
		{ID: model.RemoveDripTray, Reason: "Drip tray"},
	}
	finishCodes = []model.FinishCode{
		{ID: model.FinishEmpty, Description: "All gone"},
		{ID: model.FinishTurned, Description: "Turned sour / off taste"},
		{ID: model.FinishOOD, Description: "Out of date"},
		{ID: model.FinishDamaged, Description: "Damaged"},
	}
)

func seedVocabulary(db *gorm.DB) error {
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&removeCodes).Error; err != nil {
		return fmt.Errorf("seed remove codes: %w", err)
	}
	if err := db.Clauses(clause.OnConflict{DoNothing: true}).Create(&finishCodes).Error; err != nil {
		return fmt.Errorf("seed finish codes: %w", err)
	}
	return nil
}

// Flush drops every table the application owns. The caller is expected
// to have asked for confirmation.
func Flush(ctx context.Context, db *gorm.DB) error {
	all := model.All()
	names := make([]string, 0, len(all)+3)
	for i := len(all) - 1; i >= 0; i-- {
		stmt := &gorm.Statement{DB: db}
		if err := stmt.Parse(all[i]); err != nil {
			return err
		}
		names = append(names, stmt.Schema.Table)
	}
	names = append(names, "user_permissions", "group_membership", "group_grants")
	return db.WithContext(ctx).Exec("DROP TABLE IF EXISTS " + strings.Join(names, ", ") + " CASCADE").Error
}

// IsEmpty reports whether the database holds no sessions and no stock,
// which is when destructive commands may run without --really.
func IsEmpty(ctx context.Context, db *gorm.DB) (bool, error) {
	if !db.Migrator().HasTable(&model.Session{}) {
		return true, nil
	}
	var n int64
	if err := db.WithContext(ctx).Model(&model.Session{}).Count(&n).Error; err != nil {
		return false, err
	}
	if n > 0 {
		return false, nil
	}
	if err := db.WithContext(ctx).Model(&model.StockItem{}).Count(&n).Error; err != nil {
		return false, err
	}
	return n == 0, nil
}
