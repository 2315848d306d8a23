package service

import (
	"context"
	"fmt"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/pricing"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// DeliveryService records deliveries and the stock items they bring in.
// A confirmed delivery is immutable.
type DeliveryService interface {
	ListDeliveries(ctx context.Context, checked *bool) ([]model.Delivery, error)
	GetDelivery(ctx context.Context, id int64) (*model.Delivery, error)
	CreateDelivery(ctx context.Context, req dto.DeliveryRequest) (*model.Delivery, error)
	UpdateDelivery(ctx context.Context, id int64, req dto.DeliveryRequest) (*model.Delivery, error)
	DeleteDelivery(ctx context.Context, id int64) error

	Receive(ctx context.Context, deliveryID int64, req dto.ReceiveRequest) ([]model.StockItem, error)
	UpdateItem(ctx context.Context, itemID int64, req dto.UpdateStockItemRequest) (*model.StockItem, error)
	DeleteItem(ctx context.Context, itemID int64) error

	Confirm(ctx context.Context, id int64) (*dto.AllocationResponse, error)
}

type deliveryService struct {
	db         *gorm.DB
	deliveries repository.DeliveryRepository
	types      repository.StockTypeRepository
	units      repository.UnitRepository
	engine     *engine
	guesser    pricing.Guesser
	locker     Locker
}

func NewDeliveryService(db *gorm.DB, repos Repositories, guesser pricing.Guesser, locker Locker) DeliveryService {
	return &deliveryService{
		db:         db,
		deliveries: repos.Deliveries,
		types:      repos.StockTypes,
		units:      repos.Units,
		engine:     newEngine(repos.Stock, repos.StockLines, repos.Clock),
		guesser:    guesser,
		locker:     locker,
	}
}

func (s *deliveryService) ListDeliveries(ctx context.Context, checked *bool) ([]model.Delivery, error) {
	return s.deliveries.ListDeliveries(ctx, checked)
}

func (s *deliveryService) GetDelivery(ctx context.Context, id int64) (*model.Delivery, error) {
	d, err := s.deliveries.FindDelivery(ctx, id)
	if repository.IsNotFound(err) {
		return nil, apperr.NotFound("delivery %d not found", id)
	}
	return d, err
}

// unchecked loads a delivery that may still be edited.
func (s *deliveryService) unchecked(ctx context.Context, id int64) (*model.Delivery, error) {
	d, err := s.GetDelivery(ctx, id)
	if err != nil {
		return nil, err
	}
	if d.Checked {
		return nil, apperr.User("delivery %d has been confirmed and can't be changed", id)
	}
	return d, nil
}

func parseDate(v string) (datatypes.Date, error) {
	t, err := time.Parse(dateLayout, v)
	if err != nil {
		return datatypes.Date{}, apperr.User("bad date %q", v)
	}
	return datatypes.Date(t), nil
}

func (s *deliveryService) supplierExists(ctx context.Context, id int64) error {
	if _, err := s.deliveries.FindSupplier(ctx, id); err != nil {
		if repository.IsNotFound(err) {
			return apperr.User("supplier %d does not exist", id)
		}
		return err
	}
	return nil
}

func (s *deliveryService) CreateDelivery(ctx context.Context, req dto.DeliveryRequest) (*model.Delivery, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	if err := s.supplierExists(ctx, req.SupplierID); err != nil {
		return nil, err
	}
	d := &model.Delivery{SupplierID: req.SupplierID, DocNumber: req.DocNumber, Date: date}
	if err := s.deliveries.CreateDelivery(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *deliveryService) UpdateDelivery(ctx context.Context, id int64, req dto.DeliveryRequest) (*model.Delivery, error) {
	date, err := parseDate(req.Date)
	if err != nil {
		return nil, err
	}
	var out *model.Delivery
	err = runTx(ctx, s.db, func(ctx context.Context) error {
		d, err := s.unchecked(ctx, id)
		if err != nil {
			return err
		}
		if err := s.supplierExists(ctx, req.SupplierID); err != nil {
			return err
		}
		d.SupplierID, d.DocNumber, d.Date = req.SupplierID, req.DocNumber, date
		d.Supplier, d.Items = nil, nil
		out = d
		return s.deliveries.UpdateDelivery(ctx, d)
	})
	return out, err
}

func (s *deliveryService) DeleteDelivery(ctx context.Context, id int64) error {
	return runTx(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.unchecked(ctx, id); err != nil {
			return err
		}
		items, err := s.engine.stock.ListStockItems(ctx, repository.StockItemFilter{DeliveryID: &id})
		if err != nil {
			return err
		}
		for _, item := range items {
			if err := s.engine.stock.DeleteStockItem(ctx, item.ID); err != nil {
				return err
			}
		}
		return s.deliveries.DeleteDelivery(ctx, id)
	})
}

// salePrice picks the price for newly received items: the one asked for,
// else the stock type's, else the guess.
func (s *deliveryService) salePrice(st *model.StockType, su *model.StockUnit, req dto.ReceiveRequest) (decimal.Decimal, error) {
	if req.SalePrice != nil {
		return pricing.Money(*req.SalePrice), nil
	}
	if st.SalePrice != nil {
		return *st.SalePrice, nil
	}
	if s.guesser != nil && req.CostPrice != nil {
		if g := s.guesser.Guess(*st, *su, *req.CostPrice); g != nil {
			return pricing.Money(*g), nil
		}
	}
	return decimal.Zero, apperr.User("no sale price given for %s and none can be guessed", st.Format())
}

func (s *deliveryService) stockTypeAndUnit(ctx context.Context, stockTypeID, stockUnitID int64) (*model.StockType, *model.StockUnit, error) {
	st, err := s.types.FindStockType(ctx, stockTypeID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, apperr.User("stock type %d does not exist", stockTypeID)
		}
		return nil, nil, err
	}
	su, err := s.units.FindStockUnit(ctx, stockUnitID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, nil, apperr.User("stock unit %d does not exist", stockUnitID)
		}
		return nil, nil, err
	}
	if su.UnitID != st.UnitID {
		return nil, nil, apperr.User("%s is measured in %s but %s holds %s", st.Format(), st.UnitID, su.Name, su.UnitID)
	}
	return st, su, nil
}

func (s *deliveryService) Receive(ctx context.Context, deliveryID int64, req dto.ReceiveRequest) ([]model.StockItem, error) {
	count := req.Count
	if count == 0 {
		count = 1
	}
	var bestBefore *datatypes.Date
	if req.BestBefore != nil {
		bb, err := parseDate(*req.BestBefore)
		if err != nil {
			return nil, err
		}
		bestBefore = &bb
	}
	var out []model.StockItem
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.unchecked(ctx, deliveryID); err != nil {
			return err
		}
		st, su, err := s.stockTypeAndUnit(ctx, req.StockTypeID, req.StockUnitID)
		if err != nil {
			return err
		}
		price, err := s.salePrice(st, su, req)
		if err != nil {
			return err
		}
		for i := 0; i < count; i++ {
			item := model.StockItem{
				DeliveryID:  deliveryID,
				StockTypeID: st.ID,
				StockUnitID: su.ID,
				Size:        su.Size,
				CostPrice:   req.CostPrice,
				SalePrice:   price,
				BestBefore:  bestBefore,
			}
			if err := s.engine.stock.CreateStockItem(ctx, &item); err != nil {
				return fmt.Errorf("receiving item %d of %d: %w", i+1, count, err)
			}
			out = append(out, item)
		}
		return nil
	})
	return out, err
}

// itemInUncheckedDelivery loads an item whose delivery may still be edited.
func (s *deliveryService) itemInUncheckedDelivery(ctx context.Context, itemID int64) (*model.StockItem, error) {
	item, err := s.engine.item(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if _, err := s.unchecked(ctx, item.DeliveryID); err != nil {
		return nil, err
	}
	return item, nil
}

func (s *deliveryService) UpdateItem(ctx context.Context, itemID int64, req dto.UpdateStockItemRequest) (*model.StockItem, error) {
	var out *model.StockItem
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		item, err := s.itemInUncheckedDelivery(ctx, itemID)
		if err != nil {
			return err
		}
		typeID, unitID := item.StockTypeID, item.StockUnitID
		if req.StockTypeID != nil {
			typeID = *req.StockTypeID
		}
		if req.StockUnitID != nil {
			unitID = *req.StockUnitID
		}
		_, su, err := s.stockTypeAndUnit(ctx, typeID, unitID)
		if err != nil {
			return err
		}
		item.StockTypeID, item.StockUnitID, item.Size = typeID, unitID, su.Size
		if req.CostPrice != nil {
			item.CostPrice = req.CostPrice
		}
		if req.SalePrice != nil {
			item.SalePrice = pricing.Money(*req.SalePrice)
		}
		if req.BestBefore != nil {
			bb, err := parseDate(*req.BestBefore)
			if err != nil {
				return err
			}
			item.BestBefore = &bb
		}
		item.StockType, item.StockUnit, item.Delivery = nil, nil, nil
		out = item
		return s.engine.stock.UpdateStockItem(ctx, item)
	})
	return out, err
}

func (s *deliveryService) DeleteItem(ctx context.Context, itemID int64) error {
	return runTx(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.itemInUncheckedDelivery(ctx, itemID); err != nil {
			return err
		}
		return s.engine.stock.DeleteStockItem(ctx, itemID)
	})
}

// Confirm marks a delivery checked, after which its items can be put on
// sale, and runs the auto-allocation pass.
func (s *deliveryService) Confirm(ctx context.Context, id int64) (*dto.AllocationResponse, error) {
	resp := &dto.AllocationResponse{Attached: []dto.Allocation{}}
	err := withLock(ctx, s.locker, fmt.Sprintf("delivery:%d", id), func() error {
		return runTx(ctx, s.db, func(ctx context.Context) error {
			d, err := s.unchecked(ctx, id)
			if err != nil {
				return err
			}
			d.Checked = true
			d.Supplier, d.Items = nil, nil
			if err := s.deliveries.UpdateDelivery(ctx, d); err != nil {
				return err
			}
			attached, err := s.engine.autoAllocate(ctx)
			if err != nil {
				return err
			}
			for _, a := range attached {
				resp.Attached = append(resp.Attached, dto.Allocation{StockItemID: a.StockItemID, StockLineID: a.StockLineID})
			}
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	log.Info().Int64("delivery_id", id).Int("allocated", len(resp.Attached)).Msg("delivery confirmed")
	return resp, nil
}
