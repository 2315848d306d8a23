package repository

import (
	"context"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"gorm.io/gorm"
)

// SessionRepository holds sessions, declared totals and the export
// tracking rows.
type SessionRepository interface {
	CreateSession(ctx context.Context, s *model.Session) error
	FindSession(ctx context.Context, id int64) (*model.Session, error)
	FindCurrentSession(ctx context.Context) (*model.Session, error)
	UpdateSession(ctx context.Context, s *model.Session) error
	ListSessions(ctx context.Context, page, limit int) ([]model.Session, int64, error)

	CreateSessionTotals(ctx context.Context, totals []model.SessionTotal) error
	DeleteSessionTotals(ctx context.Context, sessionID int64) error

	FindSessionExport(ctx context.Context, sessionID int64) (*model.SessionExport, error)
	CreateSessionExport(ctx context.Context, e *model.SessionExport) error
	UpdateSessionExport(ctx context.Context, e *model.SessionExport) error
	ListPendingExports(ctx context.Context, now time.Time, limit int) ([]model.SessionExport, error)
}

type sessionRepo struct{ db *gorm.DB }

func NewSessionRepository(db *gorm.DB) SessionRepository { return &sessionRepo{db: db} }

func (r *sessionRepo) CreateSession(ctx context.Context, s *model.Session) error {
	return conn(ctx, r.db).Omit("Totals").Create(s).Error
}

func (r *sessionRepo) FindSession(ctx context.Context, id int64) (*model.Session, error) {
	var s model.Session
	err := conn(ctx, r.db).Preload("Totals").First(&s, id).Error
	return &s, err
}

func (r *sessionRepo) FindCurrentSession(ctx context.Context) (*model.Session, error) {
	var s model.Session
	err := conn(ctx, r.db).Where("endtime IS NULL").First(&s).Error
	return &s, err
}

func (r *sessionRepo) UpdateSession(ctx context.Context, s *model.Session) error {
	return conn(ctx, r.db).Omit("Totals").Save(s).Error
}

func (r *sessionRepo) ListSessions(ctx context.Context, page, limit int) ([]model.Session, int64, error) {
	var out []model.Session
	var total int64
	q := conn(ctx, r.db).Model(&model.Session{})
	if err := q.Count(&total).Error; err != nil {
		return nil, 0, err
	}
	err := q.Preload("Totals").Order("id DESC").Limit(limit).Offset((page - 1) * limit).Find(&out).Error
	return out, total, err
}

func (r *sessionRepo) CreateSessionTotals(ctx context.Context, totals []model.SessionTotal) error {
	if len(totals) == 0 {
		return nil
	}
	return conn(ctx, r.db).Create(&totals).Error
}

func (r *sessionRepo) DeleteSessionTotals(ctx context.Context, sessionID int64) error {
	return conn(ctx, r.db).Where("sessionid = ?", sessionID).Delete(&model.SessionTotal{}).Error
}

func (r *sessionRepo) FindSessionExport(ctx context.Context, sessionID int64) (*model.SessionExport, error) {
	var e model.SessionExport
	err := conn(ctx, r.db).Where("sessionid = ?", sessionID).First(&e).Error
	return &e, err
}

func (r *sessionRepo) CreateSessionExport(ctx context.Context, e *model.SessionExport) error {
	return conn(ctx, r.db).Create(e).Error
}

func (r *sessionRepo) UpdateSessionExport(ctx context.Context, e *model.SessionExport) error {
	return conn(ctx, r.db).Save(e).Error
}

func (r *sessionRepo) ListPendingExports(ctx context.Context, now time.Time, limit int) ([]model.SessionExport, error) {
	var out []model.SessionExport
	err := conn(ctx, r.db).
		Where("status = ? AND next_retry_at IS NOT NULL AND next_retry_at <= ?", model.ExportPending, now).
		Order("next_retry_at ASC").Limit(limit).Find(&out).Error
	return out, err
}
