package repository

import (
	"context"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/model"

	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// TransactionFilter narrows ListTransactions.
type TransactionFilter struct {
	SessionID *int64
	Deferred  bool
	Open      *bool
}

// TransactionRepository holds the register ledger: transactions, their
// lines and payments, and the payment methods.
type TransactionRepository interface {
	CreateTransaction(ctx context.Context, t *model.Transaction) error
	FindTransaction(ctx context.Context, id int64) (*model.Transaction, error)
	UpdateTransaction(ctx context.Context, t *model.Transaction) error
	DeleteTransaction(ctx context.Context, id int64) error
	ListTransactions(ctx context.Context, filter TransactionFilter) ([]model.Transaction, error)
	ReattachDeferred(ctx context.Context, sessionID int64) (int64, error)

	CreateTransline(ctx context.Context, l *model.Transline) error
	FindTransline(ctx context.Context, id int64) (*model.Transline, error)
	FindVoidOf(ctx context.Context, translineID int64) (*model.Transline, error)
	DeleteTranslines(ctx context.Context, ids []int64) error
	MoveTranslines(ctx context.Context, ids []int64, toTransID int64) error

	CreatePayment(ctx context.Context, p *model.Payment) error
	DeletePayments(ctx context.Context, transID int64) error
	MovePayments(ctx context.Context, fromTransID, toTransID int64) error

	ListPayTypes(ctx context.Context) ([]model.PayType, error)
	FindPayType(ctx context.Context, id string) (*model.PayType, error)
	CreatePayType(ctx context.Context, p *model.PayType) error

	SumPaymentsByPayType(ctx context.Context, sessionID int64) (map[string]decimal.Decimal, error)
	SumTranslinesByDept(ctx context.Context, sessionID int64) (map[int64]decimal.Decimal, error)
}

type transactionRepo struct{ db *gorm.DB }

func NewTransactionRepository(db *gorm.DB) TransactionRepository { return &transactionRepo{db: db} }

func (r *transactionRepo) CreateTransaction(ctx context.Context, t *model.Transaction) error {
	return conn(ctx, r.db).Omit("Lines", "Payments").Create(t).Error
}

func (r *transactionRepo) FindTransaction(ctx context.Context, id int64) (*model.Transaction, error) {
	var t model.Transaction
	err := conn(ctx, r.db).
		Preload("Lines", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		Preload("Lines.StockOuts").
		Preload("Payments", func(db *gorm.DB) *gorm.DB { return db.Order("id ASC") }).
		First(&t, id).Error
	return &t, err
}

func (r *transactionRepo) UpdateTransaction(ctx context.Context, t *model.Transaction) error {
	return conn(ctx, r.db).Model(t).Select("sessionid", "notes", "closed").Updates(t).Error
}

func (r *transactionRepo) DeleteTransaction(ctx context.Context, id int64) error {
	return conn(ctx, r.db).Delete(&model.Transaction{}, id).Error
}

func (r *transactionRepo) ListTransactions(ctx context.Context, f TransactionFilter) ([]model.Transaction, error) {
	q := conn(ctx, r.db).Preload("Lines").Preload("Payments")
	switch {
	case f.Deferred:
		q = q.Where("sessionid IS NULL")
	case f.SessionID != nil:
		q = q.Where("sessionid = ?", *f.SessionID)
	}
	if f.Open != nil {
		q = q.Where("closed = ?", !*f.Open)
	}
	var out []model.Transaction
	err := q.Order("id ASC").Find(&out).Error
	return out, err
}

func (r *transactionRepo) ReattachDeferred(ctx context.Context, sessionID int64) (int64, error) {
	res := conn(ctx, r.db).Model(&model.Transaction{}).Where("sessionid IS NULL").
		Update("sessionid", sessionID)
	return res.RowsAffected, res.Error
}

func (r *transactionRepo) CreateTransline(ctx context.Context, l *model.Transline) error {
	if l.Time.IsZero() {
		l.Time = time.Now()
	}
	return conn(ctx, r.db).Omit("StockOuts").Create(l).Error
}

func (r *transactionRepo) FindTransline(ctx context.Context, id int64) (*model.Transline, error) {
	var l model.Transline
	err := conn(ctx, r.db).Preload("StockOuts").First(&l, id).Error
	return &l, err
}

func (r *transactionRepo) FindVoidOf(ctx context.Context, translineID int64) (*model.Transline, error) {
	var l model.Transline
	err := conn(ctx, r.db).Where("voided_of = ?", translineID).First(&l).Error
	return &l, err
}

func (r *transactionRepo) DeleteTranslines(ctx context.Context, ids []int64) error {
	if len(ids) == 0 {
		return nil
	}
	return conn(ctx, r.db).Where("id IN ?", ids).Delete(&model.Transline{}).Error
}

func (r *transactionRepo) MoveTranslines(ctx context.Context, ids []int64, toTransID int64) error {
	if len(ids) == 0 {
		return nil
	}
	return conn(ctx, r.db).Model(&model.Transline{}).Where("id IN ?", ids).
		Update("transid", toTransID).Error
}

func (r *transactionRepo) CreatePayment(ctx context.Context, p *model.Payment) error {
	if p.Time.IsZero() {
		p.Time = time.Now()
	}
	return conn(ctx, r.db).Create(p).Error
}

func (r *transactionRepo) DeletePayments(ctx context.Context, transID int64) error {
	return conn(ctx, r.db).Where("transid = ?", transID).Delete(&model.Payment{}).Error
}

func (r *transactionRepo) MovePayments(ctx context.Context, fromTransID, toTransID int64) error {
	return conn(ctx, r.db).Model(&model.Payment{}).Where("transid = ?", fromTransID).
		Update("transid", toTransID).Error
}

func (r *transactionRepo) ListPayTypes(ctx context.Context) ([]model.PayType, error) {
	var out []model.PayType
	err := conn(ctx, r.db).Order("sort_order ASC, id ASC").Find(&out).Error
	return out, err
}

func (r *transactionRepo) FindPayType(ctx context.Context, id string) (*model.PayType, error) {
	var p model.PayType
	err := conn(ctx, r.db).First(&p, "id = ?", id).Error
	return &p, err
}

func (r *transactionRepo) CreatePayType(ctx context.Context, p *model.PayType) error {
	return conn(ctx, r.db).Create(p).Error
}

func (r *transactionRepo) SumPaymentsByPayType(ctx context.Context, sessionID int64) (map[string]decimal.Decimal, error) {
	var rows []struct {
		PayType string
		Total   decimal.Decimal
	}
	err := conn(ctx, r.db).Table("payments p").
		Select("p.paytype AS pay_type, SUM(p.amount) AS total").
		Joins("JOIN transactions t ON t.id = p.transid").
		Where("t.sessionid = ?", sessionID).
		Group("p.paytype").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[string]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.PayType] = row.Total
	}
	return out, nil
}

func (r *transactionRepo) SumTranslinesByDept(ctx context.Context, sessionID int64) (map[int64]decimal.Decimal, error) {
	var rows []struct {
		Dept  int64
		Total decimal.Decimal
	}
	err := conn(ctx, r.db).Table("translines l").
		Select("l.dept AS dept, SUM(l.items * l.amount) AS total").
		Joins("JOIN transactions t ON t.id = l.transid").
		Where("t.sessionid = ?", sessionID).
		Group("l.dept").Scan(&rows).Error
	if err != nil {
		return nil, err
	}
	out := make(map[int64]decimal.Decimal, len(rows))
	for _, row := range rows {
		out[row.Dept] = row.Total
	}
	return out, nil
}
