package service

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/pricing"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

// StockService is the stock engine's outer surface: item queries, waste,
// finishing, annotations, pricing and the purge pass.
type StockService interface {
	GetItem(ctx context.Context, id int64) (*model.StockItem, error)
	ListItems(ctx context.Context, filter dto.StockItemFilter) ([]model.StockItem, error)
	Remove(ctx context.Context, actor Actor, itemID int64, req dto.RemoveStockRequest) (*model.StockOut, error)
	Finish(ctx context.Context, actor Actor, itemID int64, req dto.FinishStockRequest) (*model.StockItem, error)
	Annotate(ctx context.Context, actor Actor, itemID int64, req dto.AnnotateRequest) error
	ListAnnotations(ctx context.Context, itemID int64) ([]model.StockAnnotation, error)
	Purge(ctx context.Context) ([]int64, error)

	InconsistentPrices(ctx context.Context, stockTypeID int64) (*dto.PriceRangeResponse, error)
	RepriceType(ctx context.Context, stockTypeID int64, price decimal.Decimal) (*dto.PriceRangeResponse, error)
	RepriceItem(ctx context.Context, itemID int64, price decimal.Decimal) (*model.StockItem, error)
	GuessPrice(ctx context.Context, req dto.GuessPriceRequest) (*decimal.Decimal, error)
	CheckDigits(ctx context.Context, itemID int64) (string, error)

	RemoveCodes(ctx context.Context) ([]model.RemoveCode, error)
	FinishCodes(ctx context.Context) ([]model.FinishCode, error)
}

type stockService struct {
	db      *gorm.DB
	types   repository.StockTypeRepository
	units   repository.UnitRepository
	engine  *engine
	guesser pricing.Guesser
}

func NewStockService(db *gorm.DB, repos Repositories, guesser pricing.Guesser) StockService {
	return &stockService{
		db:      db,
		types:   repos.StockTypes,
		units:   repos.Units,
		engine:  newEngine(repos.Stock, repos.StockLines, repos.Clock),
		guesser: guesser,
	}
}

func (s *stockService) GetItem(ctx context.Context, id int64) (*model.StockItem, error) {
	return s.engine.item(ctx, id)
}

func (s *stockService) ListItems(ctx context.Context, filter dto.StockItemFilter) ([]model.StockItem, error) {
	f := repository.StockItemFilter{Live: filter.Live, Unallocated: filter.Unallocated}
	if filter.StockTypeID != 0 {
		f.StockTypeID = &filter.StockTypeID
	}
	if filter.DeliveryID != 0 {
		f.DeliveryID = &filter.DeliveryID
	}
	return s.engine.stock.ListStockItems(ctx, f)
}

// live loads an item that stock can still be taken from.
func (s *stockService) live(ctx context.Context, id int64) (*model.StockItem, error) {
	item, err := s.engine.item(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.IsFinished() {
		return nil, apperr.User("stock item %d is finished", id)
	}
	if item.Delivery != nil && !item.Delivery.Checked {
		return nil, apperr.User("stock item %d is in an unconfirmed delivery", id)
	}
	return item, nil
}

func (s *stockService) checkRemoveCode(ctx context.Context, code string) error {
	if code == model.RemoveSold {
		return apperr.User("sales must go through the register")
	}
	codes, err := s.engine.stock.ListRemoveCodes(ctx)
	if err != nil {
		return err
	}
	for _, c := range codes {
		if c.ID == code {
			return nil
		}
	}
	return apperr.User("unknown remove code %q", code)
}

func (s *stockService) Remove(ctx context.Context, actor Actor, itemID int64, req dto.RemoveStockRequest) (*model.StockOut, error) {
	var out *model.StockOut
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		if err := s.checkRemoveCode(ctx, req.RemoveCode); err != nil {
			return err
		}
		item, err := s.live(ctx, itemID)
		if err != nil {
			return err
		}
		out, err = s.engine.remove(ctx, item, req.Qty, req.RemoveCode, nil)
		return err
	})
	if err == nil {
		log.Info().Int64("stockitem_id", itemID).Str("qty", req.Qty.String()).
			Str("removecode", req.RemoveCode).Msg("stock removed")
	}
	return out, err
}

func (s *stockService) Finish(ctx context.Context, actor Actor, itemID int64, req dto.FinishStockRequest) (*model.StockItem, error) {
	var out *model.StockItem
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		codes, err := s.engine.stock.ListFinishCodes(ctx)
		if err != nil {
			return err
		}
		known := false
		for _, c := range codes {
			known = known || c.ID == req.FinishCode
		}
		if !known {
			return apperr.User("unknown finish code %q", req.FinishCode)
		}
		item, err := s.live(ctx, itemID)
		if err != nil {
			return err
		}
		if err := s.engine.finish(ctx, item, req.FinishCode, actor.UserID); err != nil {
			return err
		}
		out = item
		return nil
	})
	return out, err
}

func (s *stockService) Annotate(ctx context.Context, actor Actor, itemID int64, req dto.AnnotateRequest) error {
	known := false
	for _, t := range model.AnnotationTypes {
		known = known || t == req.Type
	}
	if !known {
		return apperr.User("unknown annotation type %q", req.Type)
	}
	if _, err := s.engine.item(ctx, itemID); err != nil {
		return err
	}
	return s.engine.annotate(ctx, itemID, req.Type, req.Text, actor.UserID)
}

func (s *stockService) ListAnnotations(ctx context.Context, itemID int64) ([]model.StockAnnotation, error) {
	if _, err := s.engine.item(ctx, itemID); err != nil {
		return nil, err
	}
	return s.engine.stock.ListAnnotations(ctx, itemID)
}

func (s *stockService) Purge(ctx context.Context) ([]int64, error) {
	var purged []int64
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		var err error
		purged, err = s.engine.purge(ctx)
		return err
	})
	if err == nil && len(purged) > 0 {
		log.Info().Ints64("stockitem_ids", purged).Msg("stock purge finished items")
	}
	return purged, err
}

// InconsistentPrices reports the spread of sale prices over a stock
// type's live items, with the guide price they could be brought into line
// with.
func (s *stockService) InconsistentPrices(ctx context.Context, stockTypeID int64) (*dto.PriceRangeResponse, error) {
	st, err := s.types.FindStockType(ctx, stockTypeID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("stock type %d not found", stockTypeID)
		}
		return nil, err
	}
	items, err := s.engine.stock.ListStockItems(ctx, repository.StockItemFilter{StockTypeID: &stockTypeID, Live: true})
	if err != nil {
		return nil, err
	}
	resp := &dto.PriceRangeResponse{StockTypeID: stockTypeID, Consistent: true, Items: []dto.ItemSalePrice{}}
	for i, item := range items {
		resp.Items = append(resp.Items, dto.ItemSalePrice{StockItemID: item.ID, SalePrice: item.SalePrice})
		if i == 0 {
			resp.Min, resp.Max = item.SalePrice, item.SalePrice
			continue
		}
		resp.Min = decimal.Min(resp.Min, item.SalePrice)
		resp.Max = decimal.Max(resp.Max, item.SalePrice)
	}
	resp.Consistent = resp.Min.Equal(resp.Max)
	resp.Guide = st.SalePrice
	if resp.Guide == nil && s.guesser != nil {
		for _, item := range items {
			if item.CostPrice == nil {
				continue
			}
			su, err := s.units.FindStockUnit(ctx, item.StockUnitID)
			if err != nil {
				return nil, err
			}
			resp.Guide = s.guesser.Guess(*st, *su, *item.CostPrice)
			break
		}
	}
	return resp, nil
}

// RepriceType sets the sale price of every live item of a stock type and
// makes it the type's guide price.
func (s *stockService) RepriceType(ctx context.Context, stockTypeID int64, price decimal.Decimal) (*dto.PriceRangeResponse, error) {
	price = pricing.Money(price)
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		st, err := s.types.FindStockType(ctx, stockTypeID)
		if err != nil {
			if repository.IsNotFound(err) {
				return apperr.NotFound("stock type %d not found", stockTypeID)
			}
			return err
		}
		items, err := s.engine.stock.ListStockItems(ctx, repository.StockItemFilter{StockTypeID: &stockTypeID, Live: true})
		if err != nil {
			return err
		}
		for i := range items {
			items[i].SalePrice = price
			items[i].StockType, items[i].StockUnit, items[i].Delivery = nil, nil, nil
			if err := s.engine.stock.UpdateStockItem(ctx, &items[i]); err != nil {
				return err
			}
		}
		st.SalePrice = &price
		st.Department, st.Unit = nil, nil
		return s.types.UpdateStockType(ctx, st)
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("stocktype_id", stockTypeID).Str("saleprice", price.StringFixed(2)).Msg("stock type repriced")
	return s.InconsistentPrices(ctx, stockTypeID)
}

func (s *stockService) RepriceItem(ctx context.Context, itemID int64, price decimal.Decimal) (*model.StockItem, error) {
	var out *model.StockItem
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		item, err := s.engine.item(ctx, itemID)
		if err != nil {
			return err
		}
		if item.IsFinished() {
			return apperr.User("stock item %d is finished", itemID)
		}
		item.SalePrice = pricing.Money(price)
		item.StockType, item.StockUnit, item.Delivery = nil, nil, nil
		out = item
		return s.engine.stock.UpdateStockItem(ctx, item)
	})
	return out, err
}

func (s *stockService) GuessPrice(ctx context.Context, req dto.GuessPriceRequest) (*decimal.Decimal, error) {
	st, err := s.types.FindStockType(ctx, req.StockTypeID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("stock type %d not found", req.StockTypeID)
		}
		return nil, err
	}
	su, err := s.units.FindStockUnit(ctx, req.StockUnitID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("stock unit %d not found", req.StockUnitID)
		}
		return nil, err
	}
	if s.guesser == nil {
		return nil, nil
	}
	return s.guesser.Guess(*st, *su, req.CostPrice), nil
}

func (s *stockService) CheckDigits(ctx context.Context, itemID int64) (string, error) {
	item, err := s.engine.item(ctx, itemID)
	if err != nil {
		return "", err
	}
	return item.CheckDigits(), nil
}

func (s *stockService) RemoveCodes(ctx context.Context) ([]model.RemoveCode, error) {
	return s.engine.stock.ListRemoveCodes(ctx)
}

func (s *stockService) FinishCodes(ctx context.Context) ([]model.FinishCode, error) {
	return s.engine.stock.ListFinishCodes(ctx)
}
