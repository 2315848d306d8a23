package model

import (
	"time"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
)

// Session is an accounting day. A session is current while EndTime is
// nil; the database allows at most one.
type Session struct {
	ID        int64          `gorm:"primaryKey" json:"id"`
	Date      datatypes.Date `gorm:"not null" json:"date"`
	StartTime time.Time      `gorm:"column:starttime;not null" json:"starttime"`
	EndTime   *time.Time     `gorm:"column:endtime" json:"endtime,omitempty"`

	Totals []SessionTotal `gorm:"foreignKey:SessionID" json:"totals,omitempty"`
}

func (Session) TableName() string { return "sessions" }

// Current reports whether the session is still in progress.
func (s Session) Current() bool { return s.EndTime == nil }

// SessionTotal is the amount declared for one payment method at the end
// of a session.
type SessionTotal struct {
	SessionID int64           `gorm:"column:sessionid;primaryKey;autoIncrement:false" json:"session_id"`
	PayTypeID string          `gorm:"column:paytype;primaryKey;size:8" json:"paytype"`
	Amount    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
}

func (SessionTotal) TableName() string { return "sesstotals" }

// Export states.
const (
	ExportPending = "pending"
	ExportDone    = "done"
	ExportFailed  = "failed"
)

// SessionExport tracks delivery of a session's takings to the accounts
// service.
type SessionExport struct {
	ID          int64      `gorm:"primaryKey" json:"id"`
	SessionID   int64      `gorm:"column:sessionid;uniqueIndex;not null" json:"session_id"`
	Status      string     `gorm:"size:10;not null;default:'pending'" json:"status"`
	Reference   *string    `json:"reference,omitempty"`
	RetryCount  int        `gorm:"not null;default:0" json:"retry_count"`
	NextRetryAt *time.Time `json:"next_retry_at,omitempty"`
	LastError   *string    `json:"last_error,omitempty"`
	CreatedAt   time.Time  `json:"created_at"`
	UpdatedAt   time.Time  `json:"updated_at"`
}

func (SessionExport) TableName() string { return "session_exports" }
