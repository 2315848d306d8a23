package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Transcodes.
const (
	TranscodeSale = "S"
	TranscodeVoid = "V"
)

// Transaction is one customer interaction. A nil SessionID means the
// transaction is deferred; it is reattached when the next session starts.
// Closed is set exactly when the lines balance the payments.
type Transaction struct {
	ID        int64     `gorm:"primaryKey" json:"id"`
	SessionID *int64    `gorm:"column:sessionid;index" json:"session_id"`
	Notes     string    `gorm:"not null;default:''" json:"notes"`
	Closed    bool      `gorm:"not null;default:false" json:"closed"`
	CreatedAt time.Time `json:"created_at"`

	Lines    []Transline `gorm:"foreignKey:TransID" json:"lines,omitempty"`
	Payments []Payment   `gorm:"foreignKey:TransID" json:"payments,omitempty"`
}

func (Transaction) TableName() string { return "transactions" }

// Total is the sum of items × amount over the lines.
func (t Transaction) Total() decimal.Decimal {
	total := decimal.Zero
	for _, l := range t.Lines {
		total = total.Add(l.Total())
	}
	return total
}

// Paid is the sum of the payments.
func (t Transaction) Paid() decimal.Decimal {
	paid := decimal.Zero
	for _, p := range t.Payments {
		paid = paid.Add(p.Amount)
	}
	return paid
}

// Balance is the amount still owed.
func (t Transaction) Balance() decimal.Decimal { return t.Total().Sub(t.Paid()) }

// Deferred reports whether the transaction has been detached from its
// session.
func (t Transaction) Deferred() bool { return t.SessionID == nil }

// Transline is one priced row in a transaction. Stock removed by a sale
// points back at the line through StockOut.TranslineID.
type Transline struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	TransID   int64           `gorm:"column:transid;not null;index" json:"transid"`
	Items     int             `gorm:"not null" json:"items"`
	Amount    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	DeptID    int64           `gorm:"column:dept;not null" json:"dept"`
	Text      string          `gorm:"not null" json:"text"`
	Transcode string          `gorm:"size:1;not null" json:"transcode"`
	VoidOfID  *int64          `gorm:"column:voided_of;uniqueIndex" json:"voided_of,omitempty"`
	UserID    *int64          `gorm:"column:userid" json:"user_id,omitempty"`
	Time      time.Time       `gorm:"not null" json:"time"`

	StockOuts []StockOut `gorm:"foreignKey:TranslineID" json:"stockouts,omitempty"`
}

func (Transline) TableName() string { return "translines" }

// Total is items × amount.
func (l Transline) Total() decimal.Decimal {
	return l.Amount.Mul(decimal.NewFromInt(int64(l.Items)))
}

// PayType is a payment method. ChangeGiven marks methods that may be
// overtendered, the excess being returned as change; those methods also
// open the cash drawer.
type PayType struct {
	ID          string `gorm:"primaryKey;size:8" json:"id"`
	Description string `gorm:"not null" json:"description"`
	Order       int    `gorm:"column:sort_order;not null;default:0" json:"order"`
	Active      bool   `gorm:"not null;default:true" json:"active"`
	ChangeGiven bool   `gorm:"not null;default:false" json:"change_given"`
}

func (PayType) TableName() string { return "paytypes" }

// Payment is a credit against a transaction. Change is recorded as a
// negative payment of the same type.
type Payment struct {
	ID        int64           `gorm:"primaryKey" json:"id"`
	TransID   int64           `gorm:"column:transid;not null;index" json:"transid"`
	PayTypeID string          `gorm:"column:paytype;size:8;not null" json:"paytype"`
	Amount    decimal.Decimal `gorm:"type:numeric(10,2);not null" json:"amount"`
	Ref       string          `gorm:"not null;default:''" json:"ref"`
	UserID    *int64          `gorm:"column:userid" json:"user_id,omitempty"`
	Time      time.Time       `gorm:"not null" json:"time"`
}

func (Payment) TableName() string { return "payments" }
