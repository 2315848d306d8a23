package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/modifier"
	"github.com/sde1000/quicktill-sub001/internal/permission"
	"github.com/sde1000/quicktill-sub001/internal/pricing"
	"github.com/sde1000/quicktill-sub001/internal/printer"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// kickoutTimeout bounds the wait for the cash drawer.
const kickoutTimeout = 3 * time.Second

// RegisterService is the till: sales, voids, payments and the rest of a
// transaction's life.
type RegisterService interface {
	GetTransaction(ctx context.Context, id int64) (*dto.TransactionResponse, error)
	ListTransactions(ctx context.Context, filter dto.TransactionFilter) ([]dto.TransactionResponse, error)

	SellStockLine(ctx context.Context, actor Actor, req dto.SellStockLineRequest) (*dto.SaleResponse, error)
	SellStockType(ctx context.Context, actor Actor, req dto.SellStockTypeRequest) (*dto.SaleResponse, error)
	SellPLU(ctx context.Context, actor Actor, req dto.SellPLURequest) (*dto.SaleResponse, error)
	SellDepartment(ctx context.Context, actor Actor, req dto.SellDepartmentRequest) (*dto.SaleResponse, error)
	Keypress(ctx context.Context, actor Actor, req dto.KeypressRequest) (*dto.KeypressResponse, error)
	Barcode(ctx context.Context, actor Actor, req dto.BarcodeRequest) (*dto.KeypressResponse, error)
	Void(ctx context.Context, actor Actor, req dto.VoidRequest) (*dto.SaleResponse, error)

	Pay(ctx context.Context, actor Actor, transID int64, req dto.PaymentRequest) (*dto.PaymentResponse, error)
	Cancel(ctx context.Context, actor Actor, transID int64) error
	CancelLines(ctx context.Context, actor Actor, transID int64, req dto.LinesRequest) (*dto.TransactionResponse, error)
	Split(ctx context.Context, actor Actor, transID int64, req dto.LinesRequest) (*dto.TransactionResponse, error)
	Merge(ctx context.Context, actor Actor, transID int64, req dto.MergeRequest) (*dto.TransactionResponse, error)
	Defer(ctx context.Context, actor Actor, transID int64) (*dto.TransactionResponse, error)
	SetNotes(ctx context.Context, actor Actor, transID int64, req dto.NotesRequest) (*dto.TransactionResponse, error)
}

type registerService struct {
	db       *gorm.DB
	trans    repository.TransactionRepository
	sessions repository.SessionRepository
	types    repository.StockTypeRepository
	depts    repository.DepartmentRepository
	plus     repository.PLURepository
	kb       repository.KeyboardRepository
	engine   *engine
	site     SiteReader
	drawer   printer.Driver
	locker   Locker
}

// NewRegisterService wires the till. drawer may be nil when no cash
// drawer is fitted.
func NewRegisterService(db *gorm.DB, repos Repositories, site SiteReader, drawer printer.Driver, locker Locker) RegisterService {
	return &registerService{
		db:       db,
		trans:    repos.Transactions,
		sessions: repos.Sessions,
		types:    repos.StockTypes,
		depts:    repos.Departments,
		plus:     repos.PLUs,
		kb:       repos.Keyboard,
		engine:   newEngine(repos.Stock, repos.StockLines, repos.Clock),
		site:     site,
		drawer:   drawer,
		locker:   locker,
	}
}

// ─── Transactions ────────────────────────────────────────────────────────────

func (s *registerService) find(ctx context.Context, id int64) (*model.Transaction, error) {
	t, err := s.trans.FindTransaction(ctx, id)
	if repository.IsNotFound(err) {
		return nil, apperr.NotFound("transaction %d not found", id)
	}
	return t, err
}

func (s *registerService) currentSession(ctx context.Context) (*model.Session, error) {
	sess, err := s.sessions.FindCurrentSession(ctx)
	if repository.IsNotFound(err) {
		return nil, apperr.User("no session is in progress")
	}
	return sess, err
}

// open loads a transaction that may still be changed.
func (s *registerService) open(ctx context.Context, id int64) (*model.Transaction, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Closed {
		return nil, apperr.User("transaction %d is closed", id)
	}
	if t.SessionID != nil {
		sess, err := s.sessions.FindCurrentSession(ctx)
		if err != nil && !repository.IsNotFound(err) {
			return nil, err
		}
		if err != nil || sess.ID != *t.SessionID {
			return nil, apperr.User("transaction %d belongs to a session that has ended", id)
		}
	}
	return t, nil
}

// target returns the transaction a new line goes on. With transID nil
// the transaction is not stored until addLine needs it.
func (s *registerService) target(ctx context.Context, transID *int64) (*model.Transaction, error) {
	sess, err := s.currentSession(ctx)
	if err != nil {
		return nil, err
	}
	if transID == nil {
		return &model.Transaction{SessionID: &sess.ID}, nil
	}
	t, err := s.open(ctx, *transID)
	if err != nil {
		return nil, err
	}
	if t.Deferred() {
		return nil, apperr.User("transaction %d is deferred", t.ID)
	}
	return t, nil
}

func (s *registerService) addLine(ctx context.Context, t *model.Transaction, l *model.Transline) error {
	if t.ID == 0 {
		t.CreatedAt = s.engine.now()
		if err := s.trans.CreateTransaction(ctx, t); err != nil {
			return err
		}
		log.Info().Int64("transaction_id", t.ID).Msg("transaction opened")
	}
	l.TransID = t.ID
	l.Time = s.engine.now()
	return s.trans.CreateTransline(ctx, l)
}

// settle reloads a transaction and brings Closed into line with its
// balance.
func (s *registerService) settle(ctx context.Context, id int64) (*model.Transaction, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	closed := len(t.Lines) > 0 && t.Balance().IsZero()
	if closed != t.Closed {
		t.Closed = closed
		if err := s.trans.UpdateTransaction(ctx, t); err != nil {
			return nil, err
		}
		if closed {
			log.Info().Int64("transaction_id", t.ID).Str("total", t.Total().StringFixed(2)).Msg("transaction closed")
		}
	}
	return t, nil
}

func (s *registerService) GetTransaction(ctx context.Context, id int64) (*dto.TransactionResponse, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	return dto.NewTransactionResponse(t), nil
}

func (s *registerService) ListTransactions(ctx context.Context, filter dto.TransactionFilter) ([]dto.TransactionResponse, error) {
	f := repository.TransactionFilter{Deferred: filter.Deferred, Open: filter.Open}
	if filter.SessionID != 0 {
		f.SessionID = &filter.SessionID
	}
	ts, err := s.trans.ListTransactions(ctx, f)
	if err != nil {
		return nil, err
	}
	out := make([]dto.TransactionResponse, len(ts))
	for i := range ts {
		out[i] = *dto.NewTransactionResponse(&ts[i])
	}
	return out, nil
}

// ─── Sales ───────────────────────────────────────────────────────────────────

func (s *registerService) items(ctx context.Context, n int) (int, error) {
	if n == 0 {
		n = 1
	}
	site, err := s.site.Site(ctx)
	if err != nil {
		return 0, err
	}
	if site.MaxTranslineItems > 0 && n > site.MaxTranslineItems {
		return 0, apperr.User("no more than %d items on one line", site.MaxTranslineItems)
	}
	return n, nil
}

func (s *registerService) modifiers(ctx context.Context, names []string) ([]modifier.Modifier, error) {
	out := make([]modifier.Modifier, 0, len(names))
	for _, name := range names {
		row, err := s.kb.FindModifier(ctx, name)
		if repository.IsNotFound(err) {
			return nil, apperr.User("modifier %s not found", name)
		}
		if err != nil {
			return nil, err
		}
		m, err := modifier.New(*row)
		if err != nil {
			return nil, apperr.User("%s", err.Error())
		}
		out = append(out, m)
	}
	return out, nil
}

// stockSale is the sale of items from a stock line, or from a stock type
// treated as a continuous line of its own.
func (s *registerService) stockSale(ctx context.Context, actor Actor, transID *int64, line *model.StockLine, n int, modNames []string) (*dto.SaleResponse, error) {
	n, err := s.items(ctx, n)
	if err != nil {
		return nil, err
	}
	t, err := s.target(ctx, transID)
	if err != nil {
		return nil, err
	}
	mods, err := s.modifiers(ctx, modNames)
	if err != nil {
		return nil, err
	}
	cands, err := s.engine.candidates(ctx, line)
	if err != nil {
		return nil, err
	}
	if line.LineType == model.LineRegular && len(cands) == 0 {
		return nil, apperr.User("there is nothing on sale on %s", line.Name)
	}
	st := line.StockType
	if st == nil && len(cands) > 0 {
		st = cands[0].item.StockType
	}
	if st == nil || st.Unit == nil {
		loaded, err := s.stockTypeOf(ctx, line, cands)
		if err != nil {
			return nil, err
		}
		st = loaded
	}

	price := st.SalePrice
	for _, c := range cands {
		if c.available.IsPositive() {
			p := c.item.SalePrice
			price = &p
			break
		}
	}
	if price == nil {
		return nil, apperr.User("%s has no sale price", st.Format())
	}
	sale := modifier.Sale{
		StockType:   st,
		Unit:        st.Unit,
		Qty:         st.Unit.UnitsPerItem,
		Price:       *price,
		Description: st.Format(),
	}
	for _, m := range mods {
		var inc *modifier.Incompatible
		if sale, inc = m.ApplyToStockLine(*line, sale); inc != nil {
			return nil, apperr.Incompatible("%s", inc.Reason)
		}
	}
	qty := sale.Qty.Mul(decimal.NewFromInt(int64(n)))

	resp := &dto.SaleResponse{}
	if line.LineType == model.LineRegular {
		site, err := s.site.Site(ctx)
		if err != nil {
			return nil, err
		}
		if resp.PullThru, err = s.engine.pullThrough(ctx, line, cands[0].item, site.PullThruInterval); err != nil {
			return nil, err
		}
	}
	p, err := s.engine.planLine(ctx, line, qty)
	if err != nil {
		return nil, err
	}
	if p.Unallocated.IsPositive() {
		return nil, apperr.User("not enough stock on %s: %s wanted, %s available",
			line.Name, qty.String(), qty.Sub(p.Unallocated).String())
	}

	tl := &model.Transline{
		Items:     n,
		Amount:    pricing.Money(sale.Price),
		DeptID:    st.DeptID,
		Text:      sale.Description,
		Transcode: model.TranscodeSale,
		UserID:    actor.UserID,
	}
	if err := s.addLine(ctx, t, tl); err != nil {
		return nil, err
	}
	for _, e := range p.Entries {
		if _, err := s.engine.remove(ctx, e.Item, e.Qty, model.RemoveSold, &tl.ID); err != nil {
			return nil, err
		}
	}
	if resp.Finished, err = s.engine.purgeLine(ctx, line); err != nil {
		return nil, err
	}
	t, err = s.settle(ctx, t.ID)
	if err != nil {
		return nil, err
	}
	resp.Transaction = dto.NewTransactionResponse(t)
	resp.LineID = tl.ID
	return resp, nil
}

func (s *registerService) stockTypeOf(ctx context.Context, line *model.StockLine, cands []candidate) (*model.StockType, error) {
	id := line.StockTypeID
	if id == nil && len(cands) > 0 {
		id = &cands[0].item.StockTypeID
	}
	if id == nil {
		return nil, apperr.User("%s has no stock type", line.Name)
	}
	st, err := s.types.FindStockType(ctx, *id)
	if err != nil {
		return nil, err
	}
	if st.Unit == nil {
		return nil, fmt.Errorf("stock type %d loaded without its unit", st.ID)
	}
	return st, nil
}

func (s *registerService) SellStockLine(ctx context.Context, actor Actor, req dto.SellStockLineRequest) (*dto.SaleResponse, error) {
	var out *dto.SaleResponse
	err := withLock(ctx, s.locker, lineKey(req.StockLineID), func() error {
		return runTx(ctx, s.db, func(ctx context.Context) error {
			line, err := s.engine.line(ctx, req.StockLineID)
			if err != nil {
				return err
			}
			out, err = s.stockSale(ctx, actor, req.TransID, line, req.Items, req.Modifiers)
			return err
		})
	})
	return out, err
}

// SellStockType sells from a stock type as if it had a continuous line of
// its own.
func (s *registerService) SellStockType(ctx context.Context, actor Actor, req dto.SellStockTypeRequest) (*dto.SaleResponse, error) {
	var out *dto.SaleResponse
	err := withLock(ctx, s.locker, fmt.Sprintf("stocktype:%d", req.StockTypeID), func() error {
		return runTx(ctx, s.db, func(ctx context.Context) error {
			st, err := s.types.FindStockType(ctx, req.StockTypeID)
			if repository.IsNotFound(err) {
				return apperr.NotFound("stock type %d not found", req.StockTypeID)
			}
			if err != nil {
				return err
			}
			line := &model.StockLine{
				Name:        st.Format(),
				LineType:    model.LineContinuous,
				StockTypeID: &st.ID,
				StockType:   st,
			}
			out, err = s.stockSale(ctx, actor, req.TransID, line, req.Items, req.Modifiers)
			return err
		})
	})
	return out, err
}

func (s *registerService) SellPLU(ctx context.Context, actor Actor, req dto.SellPLURequest) (*dto.SaleResponse, error) {
	var out *dto.SaleResponse
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		n, err := s.items(ctx, req.Items)
		if err != nil {
			return err
		}
		plu, err := s.plus.FindPLU(ctx, req.PLUID)
		if repository.IsNotFound(err) {
			return apperr.NotFound("price lookup %d not found", req.PLUID)
		}
		if err != nil {
			return err
		}
		price := plu.Price
		if req.Price != nil {
			if !actor.can(permission.OverridePrice) {
				return apperr.Forbidden("you may not change the price of %s", plu.Description)
			}
			price = req.Price
		}
		if price == nil && len(req.Modifiers) == 0 {
			return apperr.User("%s has no price; enter one", plu.Description)
		}
		t, err := s.target(ctx, req.TransID)
		if err != nil {
			return err
		}
		mods, err := s.modifiers(ctx, req.Modifiers)
		if err != nil {
			return err
		}
		sale := modifier.Sale{Qty: decimal.NewFromInt(1), Description: plu.Description}
		if price != nil {
			sale.Price = *price
		}
		for _, m := range mods {
			var inc *modifier.Incompatible
			if sale, inc = m.ApplyToPLU(*plu, sale); inc != nil {
				return apperr.Incompatible("%s", inc.Reason)
			}
		}
		tl := &model.Transline{
			Items:     n,
			Amount:    pricing.Money(sale.Price),
			DeptID:    plu.DeptID,
			Text:      sale.Description,
			Transcode: model.TranscodeSale,
			UserID:    actor.UserID,
		}
		if err := s.addLine(ctx, t, tl); err != nil {
			return err
		}
		if t, err = s.settle(ctx, t.ID); err != nil {
			return err
		}
		out = &dto.SaleResponse{Transaction: dto.NewTransactionResponse(t), LineID: tl.ID}
		return nil
	})
	return out, err
}

// SellDepartment records a sale at a price keyed in by hand, within the
// department's limits.
func (s *registerService) SellDepartment(ctx context.Context, actor Actor, req dto.SellDepartmentRequest) (*dto.SaleResponse, error) {
	var out *dto.SaleResponse
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		n, err := s.items(ctx, req.Items)
		if err != nil {
			return err
		}
		dept, err := s.depts.FindDepartment(ctx, req.DeptID)
		if repository.IsNotFound(err) {
			return apperr.NotFound("department %d not found", req.DeptID)
		}
		if err != nil {
			return err
		}
		price := pricing.Money(req.Price)
		if dept.MinPrice != nil && price.LessThan(*dept.MinPrice) {
			return apperr.User("the minimum price in %s is %s", dept.Description, dept.MinPrice.StringFixed(2))
		}
		if dept.MaxPrice != nil && price.GreaterThan(*dept.MaxPrice) {
			return apperr.User("the maximum price in %s is %s", dept.Description, dept.MaxPrice.StringFixed(2))
		}
		t, err := s.target(ctx, req.TransID)
		if err != nil {
			return err
		}
		text := req.Text
		if text == "" {
			text = dept.Description
		}
		tl := &model.Transline{
			Items:     n,
			Amount:    price,
			DeptID:    dept.ID,
			Text:      text,
			Transcode: model.TranscodeSale,
			UserID:    actor.UserID,
		}
		if err := s.addLine(ctx, t, tl); err != nil {
			return err
		}
		if t, err = s.settle(ctx, t.ID); err != nil {
			return err
		}
		out = &dto.SaleResponse{Transaction: dto.NewTransactionResponse(t), LineID: tl.ID}
		return nil
	})
	return out, err
}

// sellTarget makes the sale a binding or barcode points at.
func (s *registerService) sellTarget(ctx context.Context, actor Actor, transID *int64, t model.Target, n int, mods []string) (*dto.KeypressResponse, error) {
	var sale *dto.SaleResponse
	var err error
	switch t.Kind() {
	case model.TargetStockLine:
		sale, err = s.SellStockLine(ctx, actor, dto.SellStockLineRequest{TransID: transID, StockLineID: *t.StockLineID, Items: n, Modifiers: mods})
	case model.TargetPLU:
		sale, err = s.SellPLU(ctx, actor, dto.SellPLURequest{TransID: transID, PLUID: *t.PLUID, Items: n, Modifiers: mods})
	case model.TargetStockType:
		sale, err = s.SellStockType(ctx, actor, dto.SellStockTypeRequest{TransID: transID, StockTypeID: *t.StockTypeID, Items: n, Modifiers: mods})
	case model.TargetModifier:
		if _, err := s.kb.FindModifier(ctx, *t.ModifierName); err != nil {
			if repository.IsNotFound(err) {
				return nil, apperr.User("modifier %s not found", *t.ModifierName)
			}
			return nil, err
		}
		return &dto.KeypressResponse{Modifier: *t.ModifierName}, nil
	default:
		return nil, apperr.User("this key has no single thing to sell")
	}
	if err != nil {
		return nil, err
	}
	return &dto.KeypressResponse{Sale: sale}, nil
}

// Keypress resolves a line key. A key bound several times under
// different menu keys returns the choices unless a menu key is given.
func (s *registerService) Keypress(ctx context.Context, actor Actor, req dto.KeypressRequest) (*dto.KeypressResponse, error) {
	bindings, err := s.kb.ListBindings(ctx, req.Keycode)
	if err != nil {
		return nil, err
	}
	if req.Menukey != "" {
		var picked []model.KeyboardBinding
		for _, b := range bindings {
			if b.Menukey == req.Menukey {
				picked = append(picked, b)
			}
		}
		bindings = picked
	}
	switch len(bindings) {
	case 0:
		return nil, apperr.User("key %s does nothing", req.Keycode)
	case 1:
		return s.sellTarget(ctx, actor, req.TransID, bindings[0].Target, req.Items, req.Modifiers)
	}
	return &dto.KeypressResponse{Menu: bindings}, nil
}

func (s *registerService) Barcode(ctx context.Context, actor Actor, req dto.BarcodeRequest) (*dto.KeypressResponse, error) {
	b, err := s.kb.FindBarcode(ctx, req.Code)
	if repository.IsNotFound(err) {
		return nil, apperr.User("barcode %s is not recognised", req.Code)
	}
	if err != nil {
		return nil, err
	}
	return s.sellTarget(ctx, actor, req.TransID, b.Target, req.Items, req.Modifiers)
}

// Void adds a line reversing a sale from a closed transaction, and puts
// the stock it used back.
func (s *registerService) Void(ctx context.Context, actor Actor, req dto.VoidRequest) (*dto.SaleResponse, error) {
	var out *dto.SaleResponse
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		orig, err := s.trans.FindTransline(ctx, req.TranslineID)
		if repository.IsNotFound(err) {
			return apperr.NotFound("transaction line %d not found", req.TranslineID)
		}
		if err != nil {
			return err
		}
		if orig.Transcode != model.TranscodeSale {
			return apperr.User("line %d is not a sale", orig.ID)
		}
		origTrans, err := s.find(ctx, orig.TransID)
		if err != nil {
			return err
		}
		if !origTrans.Closed {
			return apperr.User("transaction %d is still open; cancel the line instead", origTrans.ID)
		}
		if _, err := s.trans.FindVoidOf(ctx, orig.ID); err == nil {
			return apperr.User("line %d has already been voided", orig.ID)
		} else if !repository.IsNotFound(err) {
			return err
		}
		t, err := s.target(ctx, req.TransID)
		if err != nil {
			return err
		}
		tl := &model.Transline{
			Items:     -orig.Items,
			Amount:    orig.Amount,
			DeptID:    orig.DeptID,
			Text:      orig.Text,
			Transcode: model.TranscodeVoid,
			VoidOfID:  &orig.ID,
			UserID:    actor.UserID,
		}
		if err := s.addLine(ctx, t, tl); err != nil {
			return err
		}
		for _, so := range orig.StockOuts {
			item, err := s.engine.item(ctx, so.StockItemID)
			if err != nil {
				return err
			}
			if _, err := s.engine.remove(ctx, item, so.Qty.Neg(), so.RemoveCode, &tl.ID); err != nil {
				return err
			}
		}
		if t, err = s.settle(ctx, t.ID); err != nil {
			return err
		}
		out = &dto.SaleResponse{Transaction: dto.NewTransactionResponse(t), LineID: tl.ID}
		return nil
	})
	if err == nil {
		log.Info().Int64("transline_id", req.TranslineID).Int64("void_id", out.LineID).Msg("line voided")
	}
	return out, err
}

// ─── Payments and transaction management ─────────────────────────────────────

// Pay records a payment. A nil amount pays the balance. Overpaying a
// method that gives change records the change as a negative payment.
func (s *registerService) Pay(ctx context.Context, actor Actor, transID int64, req dto.PaymentRequest) (*dto.PaymentResponse, error) {
	resp := &dto.PaymentResponse{}
	var pt *model.PayType
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		t, err := s.open(ctx, transID)
		if err != nil {
			return err
		}
		if t.Deferred() {
			return apperr.User("transaction %d is deferred", transID)
		}
		pt, err = s.trans.FindPayType(ctx, req.PayType)
		if repository.IsNotFound(err) {
			return apperr.User("unknown payment method %q", req.PayType)
		}
		if err != nil {
			return err
		}
		if !pt.Active {
			return apperr.User("%s is not accepted at the moment", pt.Description)
		}
		balance := t.Balance()
		if len(t.Lines) == 0 || balance.IsZero() {
			return apperr.User("nothing is owed on transaction %d", transID)
		}
		amount := balance
		if req.Amount != nil {
			amount = pricing.Money(*req.Amount)
		}
		if amount.IsZero() {
			return apperr.User("a payment can't be zero")
		}
		if amount.Sign() != balance.Sign() {
			return apperr.User("the payment must have the same sign as the balance of %s", balance.StringFixed(2))
		}
		var change decimal.Decimal
		if amount.Abs().GreaterThan(balance.Abs()) {
			if !pt.ChangeGiven {
				return apperr.User("%s can't be used to pay more than %s", pt.Description, balance.StringFixed(2))
			}
			change = amount.Sub(balance)
		}
		now := s.engine.now()
		if err := s.trans.CreatePayment(ctx, &model.Payment{
			TransID: t.ID, PayTypeID: pt.ID, Amount: amount, Ref: req.Ref, UserID: actor.UserID, Time: now,
		}); err != nil {
			return err
		}
		if !change.IsZero() {
			if err := s.trans.CreatePayment(ctx, &model.Payment{
				TransID: t.ID, PayTypeID: pt.ID, Amount: change.Neg(), Ref: "change", UserID: actor.UserID, Time: now,
			}); err != nil {
				return err
			}
		}
		if t, err = s.settle(ctx, t.ID); err != nil {
			return err
		}
		resp.Transaction = dto.NewTransactionResponse(t)
		resp.Change = change
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("transaction_id", transID).Str("paytype", pt.ID).Str("change", resp.Change.StringFixed(2)).Msg("payment recorded")
	if pt.ChangeGiven && s.drawer != nil {
		kctx, cancel := context.WithTimeout(ctx, kickoutTimeout)
		defer cancel()
		if kerr := s.drawer.Kickout(kctx); kerr != nil {
			xerr := apperr.External(kerr, "the cash drawer did not open")
			log.Error().Err(kerr).Int64("transaction_id", transID).Msg("drawer kickout failed")
			resp.Warning = xerr.Error()
		}
	}
	return resp, nil
}

// removeLines deletes lines of an open transaction with the stock they
// used. Lines whose stock has since been finished can't be removed.
func (s *registerService) removeLines(ctx context.Context, ids []int64) error {
	sos, err := s.engine.stock.ListStockOutsByTranslines(ctx, ids)
	if err != nil {
		return err
	}
	for _, so := range sos {
		item, err := s.engine.item(ctx, so.StockItemID)
		if err != nil {
			return err
		}
		if item.IsFinished() {
			return apperr.User("stock item %d has been finished, so its sales can't be cancelled", item.ID)
		}
	}
	if err := s.engine.stock.DeleteStockOutsByTranslines(ctx, ids); err != nil {
		return err
	}
	return s.trans.DeleteTranslines(ctx, ids)
}

func lineIDs(t *model.Transaction) []int64 {
	ids := make([]int64, len(t.Lines))
	for i, l := range t.Lines {
		ids[i] = l.ID
	}
	return ids
}

// linesOf checks every id is a line of t.
func linesOf(t *model.Transaction, ids []int64) error {
	own := make(map[int64]bool, len(t.Lines))
	for _, l := range t.Lines {
		own[l.ID] = true
	}
	for _, id := range ids {
		if !own[id] {
			return apperr.User("line %d is not part of transaction %d", id, t.ID)
		}
	}
	return nil
}

// tidy deletes a transaction left with no lines and no payments, or
// settles it otherwise. It returns nil when the transaction is gone.
func (s *registerService) tidy(ctx context.Context, id int64) (*model.Transaction, error) {
	t, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if len(t.Lines) == 0 && len(t.Payments) == 0 {
		return nil, s.trans.DeleteTransaction(ctx, id)
	}
	return s.settle(ctx, id)
}

// Cancel removes an open transaction and everything in it.
func (s *registerService) Cancel(ctx context.Context, actor Actor, transID int64) error {
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		t, err := s.open(ctx, transID)
		if err != nil {
			return err
		}
		if err := s.removeLines(ctx, lineIDs(t)); err != nil {
			return err
		}
		if err := s.trans.DeletePayments(ctx, t.ID); err != nil {
			return err
		}
		return s.trans.DeleteTransaction(ctx, t.ID)
	})
	if err == nil {
		log.Info().Int64("transaction_id", transID).Msg("transaction cancelled")
	}
	return err
}

func (s *registerService) CancelLines(ctx context.Context, actor Actor, transID int64, req dto.LinesRequest) (*dto.TransactionResponse, error) {
	var out *model.Transaction
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		t, err := s.open(ctx, transID)
		if err != nil {
			return err
		}
		if err := linesOf(t, req.Lines); err != nil {
			return err
		}
		if err := s.removeLines(ctx, req.Lines); err != nil {
			return err
		}
		out, err = s.tidy(ctx, t.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("transaction_id", transID).Ints64("transline_ids", req.Lines).Msg("lines cancelled")
	return dto.NewTransactionResponse(out), nil
}

// Split moves lines of an open transaction into a new transaction in the
// same session and returns the new one.
func (s *registerService) Split(ctx context.Context, actor Actor, transID int64, req dto.LinesRequest) (*dto.TransactionResponse, error) {
	var out *model.Transaction
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		t, err := s.open(ctx, transID)
		if err != nil {
			return err
		}
		if err := linesOf(t, req.Lines); err != nil {
			return err
		}
		nt := &model.Transaction{SessionID: t.SessionID, CreatedAt: s.engine.now()}
		if err := s.trans.CreateTransaction(ctx, nt); err != nil {
			return err
		}
		if err := s.trans.MoveTranslines(ctx, req.Lines, nt.ID); err != nil {
			return err
		}
		if _, err := s.tidy(ctx, t.ID); err != nil {
			return err
		}
		out, err = s.settle(ctx, nt.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("transaction_id", transID).Int64("new_transaction_id", out.ID).Msg("transaction split")
	return dto.NewTransactionResponse(out), nil
}

// Merge moves everything in transID into req.Into and deletes transID.
func (s *registerService) Merge(ctx context.Context, actor Actor, transID int64, req dto.MergeRequest) (*dto.TransactionResponse, error) {
	if transID == req.Into {
		return nil, apperr.User("can't merge a transaction into itself")
	}
	var out *model.Transaction
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		from, err := s.open(ctx, transID)
		if err != nil {
			return err
		}
		into, err := s.open(ctx, req.Into)
		if err != nil {
			return err
		}
		if !sameID(from.SessionID, into.SessionID) {
			return apperr.User("transactions %d and %d are in different sessions", from.ID, into.ID)
		}
		if err := s.trans.MoveTranslines(ctx, lineIDs(from), into.ID); err != nil {
			return err
		}
		if err := s.trans.MovePayments(ctx, from.ID, into.ID); err != nil {
			return err
		}
		if err := s.trans.DeleteTransaction(ctx, from.ID); err != nil {
			return err
		}
		out, err = s.settle(ctx, into.ID)
		return err
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("transaction_id", transID).Int64("into_id", req.Into).Msg("transactions merged")
	return dto.NewTransactionResponse(out), nil
}

// Defer detaches an unpaid transaction from its session so it is picked
// up by the next one.
func (s *registerService) Defer(ctx context.Context, actor Actor, transID int64) (*dto.TransactionResponse, error) {
	var out *model.Transaction
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		t, err := s.open(ctx, transID)
		if err != nil {
			return err
		}
		if t.Deferred() {
			return apperr.User("transaction %d is already deferred", transID)
		}
		if len(t.Payments) > 0 {
			return apperr.User("transaction %d has payments and can't be deferred", transID)
		}
		t.SessionID = nil
		if err := s.trans.UpdateTransaction(ctx, t); err != nil {
			return err
		}
		out = t
		return nil
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("transaction_id", transID).Msg("transaction deferred")
	return dto.NewTransactionResponse(out), nil
}

func (s *registerService) SetNotes(ctx context.Context, actor Actor, transID int64, req dto.NotesRequest) (*dto.TransactionResponse, error) {
	var out *model.Transaction
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		t, err := s.open(ctx, transID)
		if err != nil {
			return err
		}
		t.Notes = req.Notes
		out = t
		return s.trans.UpdateTransaction(ctx, t)
	})
	if err != nil {
		return nil, err
	}
	return dto.NewTransactionResponse(out), nil
}
