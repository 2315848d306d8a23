package service

import (
	"context"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/shopspring/decimal"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// CatalogueService maintains the reference data stock hangs off: units,
// departments and VAT, suppliers, stock types and payment methods.
type CatalogueService interface {
	ListUnits(ctx context.Context) ([]model.Unit, error)
	CreateUnit(ctx context.Context, req dto.CreateUnitRequest) (*model.Unit, error)
	ListStockUnits(ctx context.Context) ([]model.StockUnit, error)
	CreateStockUnit(ctx context.Context, req dto.CreateStockUnitRequest) (*model.StockUnit, error)

	ListDepartments(ctx context.Context) ([]model.Department, error)
	CreateDepartment(ctx context.Context, req dto.DepartmentRequest) (*model.Department, error)
	UpdateDepartment(ctx context.Context, req dto.DepartmentRequest) (*model.Department, error)
	ListVatBands(ctx context.Context) ([]model.VatBand, error)
	CreateVatBand(ctx context.Context, req dto.VatBandRequest) (*model.VatBand, error)
	AddVatRate(ctx context.Context, band string, req dto.VatRateRequest) (*model.VatBand, error)

	ListSuppliers(ctx context.Context) ([]model.Supplier, error)
	CreateSupplier(ctx context.Context, req dto.SupplierRequest) (*model.Supplier, error)
	UpdateSupplier(ctx context.Context, id int64, req dto.SupplierRequest) (*model.Supplier, error)

	ListStockTypes(ctx context.Context, filter dto.StockTypeFilter) ([]model.StockType, error)
	GetStockType(ctx context.Context, id int64) (*model.StockType, error)
	CreateStockType(ctx context.Context, req dto.StockTypeRequest) (*model.StockType, error)
	UpdateStockType(ctx context.Context, id int64, req dto.StockTypeRequest) (*model.StockType, error)
	Availability(ctx context.Context, stockTypeID int64) (*dto.AvailabilityResponse, error)

	ListPayTypes(ctx context.Context) ([]model.PayType, error)
	CreatePayType(ctx context.Context, req dto.PayTypeRequest) (*model.PayType, error)
}

type catalogueService struct {
	db         *gorm.DB
	units      repository.UnitRepository
	depts      repository.DepartmentRepository
	deliveries repository.DeliveryRepository
	types      repository.StockTypeRepository
	trans      repository.TransactionRepository
	engine     *engine
}

func NewCatalogueService(db *gorm.DB, repos Repositories) CatalogueService {
	return &catalogueService{
		db:         db,
		units:      repos.Units,
		depts:      repos.Departments,
		deliveries: repos.Deliveries,
		types:      repos.StockTypes,
		trans:      repos.Transactions,
		engine:     newEngine(repos.Stock, repos.StockLines, repos.Clock),
	}
}

func (s *catalogueService) ListUnits(ctx context.Context) ([]model.Unit, error) {
	return s.units.ListUnits(ctx)
}

func (s *catalogueService) CreateUnit(ctx context.Context, req dto.CreateUnitRequest) (*model.Unit, error) {
	u := &model.Unit{
		ID:             req.ID,
		Description:    req.Description,
		BaseName:       req.BaseName,
		BaseNamePlural: req.BaseNamePlural,
		ItemName:       req.ItemName,
		ItemNamePlural: req.ItemNamePlural,
		UnitsPerItem:   req.UnitsPerItem,
	}
	if err := s.units.CreateUnit(ctx, u); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("unit %s already exists", req.ID)
		}
		return nil, err
	}
	return u, nil
}

func (s *catalogueService) ListStockUnits(ctx context.Context) ([]model.StockUnit, error) {
	return s.units.ListStockUnits(ctx)
}

func (s *catalogueService) CreateStockUnit(ctx context.Context, req dto.CreateStockUnitRequest) (*model.StockUnit, error) {
	if _, err := s.units.FindUnit(ctx, req.UnitID); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.User("unit %s does not exist", req.UnitID)
		}
		return nil, err
	}
	su := &model.StockUnit{Name: req.Name, UnitID: req.UnitID, Size: req.Size}
	if err := s.units.CreateStockUnit(ctx, su); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("stock unit %s already exists", req.Name)
		}
		return nil, err
	}
	return su, nil
}

func (s *catalogueService) ListDepartments(ctx context.Context) ([]model.Department, error) {
	return s.depts.ListDepartments(ctx)
}

func checkPriceRange(min, max *decimal.Decimal) error {
	if min != nil && max != nil && min.GreaterThan(*max) {
		return apperr.User("minimum price %s is above maximum price %s", min.StringFixed(2), max.StringFixed(2))
	}
	return nil
}

func (s *catalogueService) CreateDepartment(ctx context.Context, req dto.DepartmentRequest) (*model.Department, error) {
	if err := checkPriceRange(req.MinPrice, req.MaxPrice); err != nil {
		return nil, err
	}
	if _, err := s.depts.FindVatBand(ctx, req.VatBand); err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.User("VAT band %s does not exist", req.VatBand)
		}
		return nil, err
	}
	d := &model.Department{
		ID:          req.ID,
		Description: req.Description,
		VatBandID:   req.VatBand,
		MinPrice:    req.MinPrice,
		MaxPrice:    req.MaxPrice,
		Notes:       req.Notes,
	}
	if err := s.depts.CreateDepartment(ctx, d); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("department %d already exists", req.ID)
		}
		return nil, err
	}
	return d, nil
}

func (s *catalogueService) UpdateDepartment(ctx context.Context, req dto.DepartmentRequest) (*model.Department, error) {
	if err := checkPriceRange(req.MinPrice, req.MaxPrice); err != nil {
		return nil, err
	}
	d, err := s.depts.FindDepartment(ctx, req.ID)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("department %d not found", req.ID)
		}
		return nil, err
	}
	d.Description = req.Description
	d.VatBandID = req.VatBand
	d.MinPrice = req.MinPrice
	d.MaxPrice = req.MaxPrice
	d.Notes = req.Notes
	d.VatBand = nil
	if err := s.depts.UpdateDepartment(ctx, d); err != nil {
		return nil, err
	}
	return d, nil
}

func (s *catalogueService) ListVatBands(ctx context.Context) ([]model.VatBand, error) {
	return s.depts.ListVatBands(ctx)
}

func (s *catalogueService) CreateVatBand(ctx context.Context, req dto.VatBandRequest) (*model.VatBand, error) {
	v := &model.VatBand{Band: req.Band, Description: req.Description, Rate: req.Rate}
	if err := s.depts.CreateVatBand(ctx, v); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("VAT band %s already exists", req.Band)
		}
		return nil, err
	}
	return v, nil
}

func (s *catalogueService) AddVatRate(ctx context.Context, band string, req dto.VatRateRequest) (*model.VatBand, error) {
	active, err := time.Parse(dateLayout, req.Active)
	if err != nil {
		return nil, apperr.User("bad date %q", req.Active)
	}
	var out *model.VatBand
	err = runTx(ctx, s.db, func(ctx context.Context) error {
		if _, err := s.depts.FindVatBand(ctx, band); err != nil {
			if repository.IsNotFound(err) {
				return apperr.NotFound("VAT band %s not found", band)
			}
			return err
		}
		if err := s.depts.CreateVatRate(ctx, &model.VatRate{
			Band:   band,
			Active: datatypes.Date(active),
			Rate:   req.Rate,
		}); err != nil {
			if repository.IsDuplicate(err) {
				return apperr.User("VAT band %s already has a rate from %s", band, req.Active)
			}
			return err
		}
		out, err = s.depts.FindVatBand(ctx, band)
		return err
	})
	return out, err
}

func (s *catalogueService) ListSuppliers(ctx context.Context) ([]model.Supplier, error) {
	return s.deliveries.ListSuppliers(ctx)
}

func (s *catalogueService) CreateSupplier(ctx context.Context, req dto.SupplierRequest) (*model.Supplier, error) {
	sup := &model.Supplier{Name: req.Name, Tel: req.Tel, Email: req.Email, Web: req.Web}
	if err := s.deliveries.CreateSupplier(ctx, sup); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("supplier %s already exists", req.Name)
		}
		return nil, err
	}
	return sup, nil
}

func (s *catalogueService) UpdateSupplier(ctx context.Context, id int64, req dto.SupplierRequest) (*model.Supplier, error) {
	sup, err := s.deliveries.FindSupplier(ctx, id)
	if err != nil {
		if repository.IsNotFound(err) {
			return nil, apperr.NotFound("supplier %d not found", id)
		}
		return nil, err
	}
	sup.Name, sup.Tel, sup.Email, sup.Web = req.Name, req.Tel, req.Email, req.Web
	if err := s.deliveries.UpdateSupplier(ctx, sup); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("supplier %s already exists", req.Name)
		}
		return nil, err
	}
	return sup, nil
}

func (s *catalogueService) ListStockTypes(ctx context.Context, filter dto.StockTypeFilter) ([]model.StockType, error) {
	return s.types.ListStockTypes(ctx, repository.StockTypeFilter{DeptID: filter.DeptID, Search: filter.Search})
}

func (s *catalogueService) GetStockType(ctx context.Context, id int64) (*model.StockType, error) {
	st, err := s.types.FindStockType(ctx, id)
	if repository.IsNotFound(err) {
		return nil, apperr.NotFound("stock type %d not found", id)
	}
	return st, err
}

func (s *catalogueService) checkStockType(ctx context.Context, req dto.StockTypeRequest) error {
	if _, err := s.depts.FindDepartment(ctx, req.DeptID); err != nil {
		if repository.IsNotFound(err) {
			return apperr.User("department %d does not exist", req.DeptID)
		}
		return err
	}
	if _, err := s.units.FindUnit(ctx, req.UnitID); err != nil {
		if repository.IsNotFound(err) {
			return apperr.User("unit %s does not exist", req.UnitID)
		}
		return err
	}
	return nil
}

func (s *catalogueService) CreateStockType(ctx context.Context, req dto.StockTypeRequest) (*model.StockType, error) {
	if err := s.checkStockType(ctx, req); err != nil {
		return nil, err
	}
	st := &model.StockType{}
	applyStockType(st, req)
	if err := s.types.CreateStockType(ctx, st); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("%s already exists", st.Format())
		}
		return nil, err
	}
	return st, nil
}

func (s *catalogueService) UpdateStockType(ctx context.Context, id int64, req dto.StockTypeRequest) (*model.StockType, error) {
	if err := s.checkStockType(ctx, req); err != nil {
		return nil, err
	}
	st, err := s.GetStockType(ctx, id)
	if err != nil {
		return nil, err
	}
	if st.UnitID != req.UnitID {
		items, err := s.engine.stock.ListStockItems(ctx, repository.StockItemFilter{StockTypeID: &id})
		if err != nil {
			return nil, err
		}
		if len(items) > 0 {
			return nil, apperr.User("can't change the unit of %s: it has stock items", st.Format())
		}
	}
	applyStockType(st, req)
	st.Department, st.Unit = nil, nil
	if err := s.types.UpdateStockType(ctx, st); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("%s already exists", st.Format())
		}
		return nil, err
	}
	return st, nil
}

func applyStockType(st *model.StockType, req dto.StockTypeRequest) {
	st.DeptID = req.DeptID
	st.Manufacturer = req.Manufacturer
	st.Name = req.Name
	st.ShortName = req.ShortName
	st.ABV = req.ABV
	st.UnitID = req.UnitID
	st.SalePrice = req.SalePrice
	st.Note = req.Note
}

// Availability adds up the live stock of a stock type and where it is.
func (s *catalogueService) Availability(ctx context.Context, stockTypeID int64) (*dto.AvailabilityResponse, error) {
	st, err := s.GetStockType(ctx, stockTypeID)
	if err != nil {
		return nil, err
	}
	items, err := s.engine.stock.ListStockItems(ctx, repository.StockItemFilter{StockTypeID: &stockTypeID, Live: true})
	if err != nil {
		return nil, err
	}
	resp := &dto.AvailabilityResponse{
		StockTypeID: st.ID,
		Description: st.Format(),
		Items:       []dto.ItemAvailability{},
		Lines:       []dto.LineAvailability{},
	}
	lines := make(map[int64]*dto.LineAvailability)
	var order []int64
	for _, item := range items {
		rem := item.Remaining()
		resp.Remaining = resp.Remaining.Add(rem)
		ia := dto.ItemAvailability{StockItemID: item.ID, Remaining: rem}
		sos, err := s.engine.lines.FindOnSale(ctx, item.ID)
		switch {
		case repository.IsNotFound(err):
			resp.InStock = resp.InStock.Add(rem)
		case err != nil:
			return nil, err
		default:
			id := sos.StockLineID
			ia.StockLineID = &id
			la, ok := lines[id]
			if !ok {
				la = &dto.LineAvailability{StockLineID: id}
				if line, err := s.engine.lines.FindStockLine(ctx, id); err == nil {
					la.Name = line.Name
				}
				lines[id] = la
				order = append(order, id)
			}
			la.Remaining = la.Remaining.Add(rem)
			if sos.DisplayQty != nil {
				la.OnDisplay = la.OnDisplay.Add(onDisplay(*sos, item))
			}
		}
		resp.Items = append(resp.Items, ia)
	}
	for _, id := range order {
		resp.Lines = append(resp.Lines, *lines[id])
	}
	return resp, nil
}

func (s *catalogueService) ListPayTypes(ctx context.Context) ([]model.PayType, error) {
	return s.trans.ListPayTypes(ctx)
}

func (s *catalogueService) CreatePayType(ctx context.Context, req dto.PayTypeRequest) (*model.PayType, error) {
	pt := &model.PayType{
		ID:          req.ID,
		Description: req.Description,
		Order:       req.Order,
		Active:      true,
		ChangeGiven: req.ChangeGiven,
	}
	if err := s.trans.CreatePayType(ctx, pt); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("payment method %s already exists", req.ID)
		}
		return nil, err
	}
	return pt, nil
}
