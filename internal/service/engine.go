package service

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
)

// engine holds the stock operations shared by the delivery, stock, stock
// line and register services. Every method expects to run inside runTx.
type engine struct {
	stock repository.StockRepository
	lines repository.StockLineRepository
	now   Clock
}

func newEngine(stock repository.StockRepository, lines repository.StockLineRepository, now Clock) *engine {
	if now == nil {
		now = time.Now
	}
	return &engine{stock: stock, lines: lines, now: now}
}

func (e *engine) item(ctx context.Context, id int64) (*model.StockItem, error) {
	item, err := e.stock.FindStockItem(ctx, id)
	if repository.IsNotFound(err) {
		return nil, apperr.NotFound("stock item %d not found", id)
	}
	return item, err
}

func (e *engine) line(ctx context.Context, id int64) (*model.StockLine, error) {
	line, err := e.lines.FindStockLine(ctx, id)
	if repository.IsNotFound(err) {
		return nil, apperr.NotFound("stock line %d not found", id)
	}
	return line, err
}

// remove appends a StockOut and keeps item.Used in step with it.
func (e *engine) remove(ctx context.Context, item *model.StockItem, qty decimal.Decimal, code string, translineID *int64) (*model.StockOut, error) {
	so := &model.StockOut{
		StockItemID: item.ID,
		Qty:         qty,
		RemoveCode:  code,
		TranslineID: translineID,
		Time:        e.now(),
	}
	if err := e.stock.CreateStockOut(ctx, so); err != nil {
		return nil, fmt.Errorf("recording removal from stock %d: %w", item.ID, err)
	}
	item.Used = item.Used.Add(qty)
	return so, nil
}

func (e *engine) annotate(ctx context.Context, itemID int64, atype, text string, userID *int64) error {
	return e.stock.CreateAnnotation(ctx, &model.StockAnnotation{
		StockItemID: itemID,
		AType:       atype,
		Text:        text,
		UserID:      userID,
		Time:        e.now(),
	})
}

// finish marks item finished and takes it off sale.
func (e *engine) finish(ctx context.Context, item *model.StockItem, code string, userID *int64) error {
	if item.IsFinished() {
		return apperr.User("stock item %d is already finished", item.ID)
	}
	if err := e.detach(ctx, item, userID); err != nil {
		return err
	}
	now := e.now()
	item.Finished = &now
	item.FinishCode = &code
	if err := e.stock.UpdateStockItem(ctx, item); err != nil {
		return err
	}
	log.Info().Int64("stockitem_id", item.ID).Str("finishcode", code).Msg("stock item finished")
	return nil
}

// attach puts item on sale on line, enforcing the line type's rules.
func (e *engine) attach(ctx context.Context, line *model.StockLine, item *model.StockItem, userID *int64) error {
	if item.IsFinished() {
		return apperr.User("stock item %d is finished", item.ID)
	}
	if item.Delivery != nil && !item.Delivery.Checked {
		return apperr.User("stock item %d is in an unconfirmed delivery", item.ID)
	}
	if _, err := e.lines.FindOnSale(ctx, item.ID); err == nil {
		return apperr.User("stock item %d is already on sale", item.ID)
	} else if !repository.IsNotFound(err) {
		return err
	}
	attached, err := e.lines.ListOnSale(ctx, line.ID)
	if err != nil {
		return err
	}
	var displayQty *decimal.Decimal
	switch line.LineType {
	case model.LineRegular:
		if len(attached) > 0 {
			return apperr.User("%s already has stock item %d on sale", line.Name, attached[0].StockItemID)
		}
	case model.LineDisplay:
		if line.StockTypeID == nil || *line.StockTypeID != item.StockTypeID {
			return apperr.User("%s only takes stock of its own type", line.Name)
		}
		zero := decimal.Zero
		displayQty = &zero
	case model.LineContinuous:
		return apperr.User("%s sells from any eligible stock; items are not attached to it", line.Name)
	}
	now := e.now()
	if err := e.lines.CreateOnSale(ctx, &model.StockOnSale{
		StockItemID: item.ID,
		StockLineID: line.ID,
		DisplayQty:  displayQty,
		Attached:    now,
	}); err != nil {
		return err
	}
	if item.OnSale == nil {
		item.OnSale = &now
		if err := e.stock.UpdateStockItem(ctx, item); err != nil {
			return err
		}
	}
	return e.annotate(ctx, item.ID, model.AnnotationStart, line.Name, userID)
}

// detach takes item off whatever line it is on. Items not on sale are left
// alone.
func (e *engine) detach(ctx context.Context, item *model.StockItem, userID *int64) error {
	sos, err := e.lines.FindOnSale(ctx, item.ID)
	if repository.IsNotFound(err) {
		return nil
	}
	if err != nil {
		return err
	}
	text := fmt.Sprintf("line %d", sos.StockLineID)
	if line, err := e.lines.FindStockLine(ctx, sos.StockLineID); err == nil {
		text = line.Name
	}
	if err := e.lines.DeleteOnSale(ctx, item.ID); err != nil {
		return err
	}
	return e.annotate(ctx, item.ID, model.AnnotationStop, text, userID)
}

// candidate is a stock item a line could sell from with the quantity
// available to sell from it.
type candidate struct {
	item      *model.StockItem
	onsale    *model.StockOnSale
	available decimal.Decimal
}

// candidates lists what line can sell from, in the order sales draw.
func (e *engine) candidates(ctx context.Context, line *model.StockLine) ([]candidate, error) {
	switch line.LineType {
	case model.LineRegular, model.LineDisplay:
		attached, err := e.lines.ListOnSale(ctx, line.ID)
		if err != nil {
			return nil, err
		}
		if len(attached) == 0 {
			return nil, nil
		}
		ids := make([]int64, len(attached))
		bySID := make(map[int64]*model.StockOnSale, len(attached))
		for i := range attached {
			ids[i] = attached[i].StockItemID
			bySID[attached[i].StockItemID] = &attached[i]
		}
		items, err := e.stock.ListStockItems(ctx, repository.StockItemFilter{IDs: ids})
		if err != nil {
			return nil, err
		}
		out := make([]candidate, 0, len(items))
		for i := range items {
			item := &items[i]
			if item.IsFinished() {
				continue
			}
			c := candidate{item: item, onsale: bySID[item.ID], available: item.Remaining()}
			if line.LineType == model.LineDisplay {
				c.available = onDisplay(*c.onsale, *item)
			}
			out = append(out, c)
		}
		return out, nil
	case model.LineContinuous:
		if line.StockTypeID == nil {
			return nil, apperr.User("%s has no stock type", line.Name)
		}
		return e.eligible(ctx, *line.StockTypeID)
	}
	return nil, apperr.User("%s has unknown type %q", line.Name, line.LineType)
}

// eligible lists live, unallocated items of a stock type.
func (e *engine) eligible(ctx context.Context, stockTypeID int64) ([]candidate, error) {
	items, err := e.stock.ListStockItems(ctx, repository.StockItemFilter{
		StockTypeID: &stockTypeID,
		Live:        true,
		Unallocated: true,
	})
	if err != nil {
		return nil, err
	}
	sortByBestBefore(items)
	out := make([]candidate, len(items))
	for i := range items {
		out[i] = candidate{item: &items[i], available: items[i].Remaining()}
	}
	return out, nil
}

// sortByBestBefore puts items in the order a continuous line drains them:
// earliest best-before first, items without one last, ties by id.
func sortByBestBefore(items []model.StockItem) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].BestBefore, items[j].BestBefore
		switch {
		case a == nil && b == nil:
		case a == nil:
			return false
		case b == nil:
			return true
		case !time.Time(*a).Equal(time.Time(*b)):
			return time.Time(*a).Before(time.Time(*b))
		}
		return items[i].ID < items[j].ID
	})
}

// onDisplay is the part of an item moved to the shelf and not yet sold.
func onDisplay(sos model.StockOnSale, item model.StockItem) decimal.Decimal {
	return decimal.Max(sos.DisplayQtyOrZero().Sub(item.Used), decimal.Zero)
}

// PlanEntry is one withdrawal of a sell plan.
type PlanEntry struct {
	Item *model.StockItem
	Qty  decimal.Decimal
}

// Plan is the dispatcher's answer for a stock line sale. Unallocated is
// the demand no item could cover; a sale must be refused unless it is
// zero.
type Plan struct {
	Entries     []PlanEntry
	Unallocated decimal.Decimal
}

// plan draws qty from the candidates in order.
func plan(cands []candidate, qty decimal.Decimal) Plan {
	need := qty
	var p Plan
	for _, c := range cands {
		if !need.IsPositive() {
			break
		}
		if !c.available.IsPositive() {
			continue
		}
		take := decimal.Min(need, c.available)
		p.Entries = append(p.Entries, PlanEntry{Item: c.item, Qty: take})
		need = need.Sub(take)
	}
	p.Unallocated = decimal.Max(need, decimal.Zero)
	return p
}

// planLine returns the sell plan for qty on line.
func (e *engine) planLine(ctx context.Context, line *model.StockLine, qty decimal.Decimal) (Plan, error) {
	if line.LineType == model.LineDisplay && !qty.Equal(qty.Truncate(0)) {
		return Plan{}, apperr.User("%s can't sell part of an item", line.Name)
	}
	cands, err := e.candidates(ctx, line)
	if err != nil {
		return Plan{}, err
	}
	if line.LineType == model.LineRegular && len(cands) > 0 {
		// A regular line sells only from its one attached item.
		cands = cands[:1]
	}
	return plan(cands, qty), nil
}

// pullThrough throws away line.PullThru from the item on a regular line
// that has been idle for longer than interval.
func (e *engine) pullThrough(ctx context.Context, line *model.StockLine, item *model.StockItem, interval *time.Duration) (bool, error) {
	if line.LineType != model.LineRegular || line.PullThru == nil || !line.PullThru.IsPositive() || interval == nil {
		return false, nil
	}
	last, err := e.stock.LastStockOutTime(ctx, item.ID, []string{model.RemoveSold, model.RemovePullThru})
	if err != nil {
		return false, err
	}
	if last == nil {
		last = item.OnSale
	}
	if last == nil || e.now().Sub(*last) <= *interval {
		return false, nil
	}
	if _, err := e.remove(ctx, item, *line.PullThru, model.RemovePullThru, nil); err != nil {
		return false, err
	}
	log.Info().Int64("stockitem_id", item.ID).Str("stockline", line.Name).
		Str("qty", line.PullThru.String()).Msg("pull-through recorded")
	return true, nil
}

// restock tops a display line up to its capacity, drawing from items in
// best-before order, then purges fully dispensed items.
func (e *engine) restock(ctx context.Context, line *model.StockLine) ([]dto.RestockMove, []int64, error) {
	if line.LineType != model.LineDisplay {
		return nil, nil, apperr.User("%s is not a display line", line.Name)
	}
	cands, err := e.candidates(ctx, line)
	if err != nil {
		return nil, nil, err
	}
	capacity := decimal.Zero
	if line.Capacity != nil {
		capacity = decimal.NewFromInt(int64(*line.Capacity))
	}
	shown := decimal.Zero
	for _, c := range cands {
		shown = shown.Add(c.available)
	}
	need := capacity.Sub(shown)
	var moves []dto.RestockMove
	for _, c := range cands {
		if !need.IsPositive() {
			break
		}
		floor := decimal.Max(c.onsale.DisplayQtyOrZero(), c.item.Used)
		move := decimal.Min(need, c.item.Size.Sub(floor))
		if !move.IsPositive() {
			continue
		}
		dq := floor.Add(move)
		c.onsale.DisplayQty = &dq
		if err := e.lines.UpdateOnSale(ctx, c.onsale); err != nil {
			return nil, nil, err
		}
		moves = append(moves, dto.RestockMove{StockItemID: c.item.ID, Moved: move, NewDisplayQty: dq})
		need = need.Sub(move)
	}
	purged, err := e.purgeLine(ctx, line)
	if err != nil {
		return nil, nil, err
	}
	return moves, purged, nil
}

// purgeLine finishes the display line's items that are fully dispensed.
func (e *engine) purgeLine(ctx context.Context, line *model.StockLine) ([]int64, error) {
	if line.LineType != model.LineDisplay {
		return nil, nil
	}
	cands, err := e.candidates(ctx, line)
	if err != nil {
		return nil, err
	}
	var purged []int64
	for _, c := range cands {
		if c.onsale.DisplayQtyOrZero().GreaterThanOrEqual(c.item.Size) && c.item.Used.GreaterThanOrEqual(c.item.Size) {
			if err := e.finish(ctx, c.item, model.FinishEmpty, nil); err != nil {
				return nil, err
			}
			purged = append(purged, c.item.ID)
		}
	}
	return purged, nil
}

// purge is the stock purge pass: fully dispensed display items and used
// up items that are on no line are finished as empty.
func (e *engine) purge(ctx context.Context) ([]int64, error) {
	displays, err := e.lines.ListStockLines(ctx, model.LineDisplay)
	if err != nil {
		return nil, err
	}
	var purged []int64
	for i := range displays {
		ids, err := e.purgeLine(ctx, &displays[i])
		if err != nil {
			return nil, err
		}
		purged = append(purged, ids...)
	}
	loose, err := e.stock.ListStockItems(ctx, repository.StockItemFilter{Live: true, Unallocated: true})
	if err != nil {
		return nil, err
	}
	for i := range loose {
		if loose[i].Remaining().IsPositive() {
			continue
		}
		if err := e.finish(ctx, &loose[i], model.FinishEmpty, nil); err != nil {
			return nil, err
		}
		purged = append(purged, loose[i].ID)
	}
	return purged, nil
}

// autoAllocate attaches unallocated live items to a display line that
// already has items of their stock type on it. Stock types on more than
// one such line go to the first one listed.
func (e *engine) autoAllocate(ctx context.Context) ([]model.StockOnSale, error) {
	displays, err := e.lines.ListStockLines(ctx, model.LineDisplay)
	if err != nil {
		return nil, err
	}
	var out []model.StockOnSale
	seen := make(map[int64]bool)
	for i := range displays {
		line := &displays[i]
		if line.StockTypeID == nil || seen[*line.StockTypeID] {
			continue
		}
		attached, err := e.lines.ListOnSale(ctx, line.ID)
		if err != nil {
			return nil, err
		}
		if len(attached) == 0 {
			continue
		}
		seen[*line.StockTypeID] = true
		cands, err := e.eligible(ctx, *line.StockTypeID)
		if err != nil {
			return nil, err
		}
		for _, c := range cands {
			if err := e.attach(ctx, line, c.item, nil); err != nil {
				return nil, err
			}
			out = append(out, model.StockOnSale{StockItemID: c.item.ID, StockLineID: line.ID})
		}
	}
	return out, nil
}
