package service

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/modifier"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"gorm.io/datatypes"
)

// KeyboardService manages modifiers, key bindings and barcodes.
type KeyboardService interface {
	ListModifiers(ctx context.Context) ([]model.Modifier, error)
	SaveModifier(ctx context.Context, req dto.ModifierRequest) (*model.Modifier, error)
	DeleteModifier(ctx context.Context, name string) error

	ListBindings(ctx context.Context, keycode string) ([]model.KeyboardBinding, error)
	CreateBinding(ctx context.Context, req dto.BindingRequest) (*model.KeyboardBinding, error)
	DeleteBinding(ctx context.Context, id int64) error

	ListBarcodes(ctx context.Context) ([]model.Barcode, error)
	SaveBarcode(ctx context.Context, req dto.BarcodeBindingRequest) (*model.Barcode, error)
	DeleteBarcode(ctx context.Context, code string) error
	PriceCheck(ctx context.Context, code string) (*dto.PriceCheckResponse, error)
}

type keyboardService struct {
	kb    repository.KeyboardRepository
	lines repository.StockLineRepository
	plus  repository.PLURepository
	types repository.StockTypeRepository
}

func NewKeyboardService(repos Repositories) KeyboardService {
	return &keyboardService{
		kb:    repos.Keyboard,
		lines: repos.StockLines,
		plus:  repos.PLUs,
		types: repos.StockTypes,
	}
}

func (s *keyboardService) ListModifiers(ctx context.Context) ([]model.Modifier, error) {
	return s.kb.ListModifiers(ctx)
}

// SaveModifier creates or replaces a modifier. The parameters are checked
// by building the behaviour before anything is stored.
func (s *keyboardService) SaveModifier(ctx context.Context, req dto.ModifierRequest) (*model.Modifier, error) {
	m := &model.Modifier{Name: req.Name, Behaviour: req.Behaviour}
	if len(req.Params) > 0 {
		m.Params = datatypes.JSON(req.Params)
	}
	if _, err := modifier.New(*m); err != nil {
		return nil, apperr.User("%s", err.Error())
	}
	if err := s.kb.SaveModifier(ctx, m); err != nil {
		return nil, err
	}
	return m, nil
}

func (s *keyboardService) DeleteModifier(ctx context.Context, name string) error {
	if _, err := s.kb.FindModifier(ctx, name); err != nil {
		if repository.IsNotFound(err) {
			return apperr.NotFound("modifier %s not found", name)
		}
		return err
	}
	return s.kb.DeleteModifier(ctx, name)
}

// target checks that exactly one target is set and that it exists.
// Modifier targets may name a modifier that is yet to be defined; such a
// binding does nothing until it is.
func (s *keyboardService) target(ctx context.Context, req dto.TargetRequest) (model.Target, error) {
	t := model.Target{
		StockLineID:  req.StockLineID,
		PLUID:        req.PLUID,
		StockTypeID:  req.StockTypeID,
		ModifierName: req.ModifierName,
	}
	var err error
	switch t.Kind() {
	case model.TargetStockLine:
		_, err = s.lines.FindStockLine(ctx, *t.StockLineID)
	case model.TargetPLU:
		_, err = s.plus.FindPLU(ctx, *t.PLUID)
	case model.TargetStockType:
		_, err = s.types.FindStockType(ctx, *t.StockTypeID)
	case model.TargetModifier:
		if *t.ModifierName == "" {
			return t, apperr.User("modifier name is empty")
		}
	default:
		return t, apperr.User("a binding needs exactly one of stock line, price lookup, stock type or modifier")
	}
	if repository.IsNotFound(err) {
		return t, apperr.User("the %s a binding refers to does not exist", t.Kind())
	}
	return t, err
}

func (s *keyboardService) ListBindings(ctx context.Context, keycode string) ([]model.KeyboardBinding, error) {
	return s.kb.ListBindings(ctx, keycode)
}

func (s *keyboardService) CreateBinding(ctx context.Context, req dto.BindingRequest) (*model.KeyboardBinding, error) {
	t, err := s.target(ctx, req.TargetRequest)
	if err != nil {
		return nil, err
	}
	b := &model.KeyboardBinding{Keycode: req.Keycode, Menukey: req.Menukey, Target: t}
	if err := s.kb.CreateBinding(ctx, b); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("%s/%s is already bound", req.Keycode, req.Menukey)
		}
		return nil, err
	}
	return b, nil
}

func (s *keyboardService) DeleteBinding(ctx context.Context, id int64) error {
	return s.kb.DeleteBinding(ctx, id)
}

func (s *keyboardService) ListBarcodes(ctx context.Context) ([]model.Barcode, error) {
	return s.kb.ListBarcodes(ctx)
}

func (s *keyboardService) SaveBarcode(ctx context.Context, req dto.BarcodeBindingRequest) (*model.Barcode, error) {
	t, err := s.target(ctx, req.TargetRequest)
	if err != nil {
		return nil, err
	}
	b := &model.Barcode{Code: req.Code, Target: t}
	if err := s.kb.SaveBarcode(ctx, b); err != nil {
		return nil, err
	}
	return b, nil
}

func (s *keyboardService) DeleteBarcode(ctx context.Context, code string) error {
	if _, err := s.kb.FindBarcode(ctx, code); err != nil {
		if repository.IsNotFound(err) {
			return apperr.NotFound("barcode %s not found", code)
		}
		return err
	}
	return s.kb.DeleteBarcode(ctx, code)
}

// PriceCheck reports what a barcode would sell. A stock line is priced
// from its stock type; a modifier has no price of its own.
func (s *keyboardService) PriceCheck(ctx context.Context, code string) (*dto.PriceCheckResponse, error) {
	b, err := s.kb.FindBarcode(ctx, code)
	if repository.IsNotFound(err) {
		return nil, apperr.NotFound("barcode %s is not recognised", code)
	}
	if err != nil {
		return nil, err
	}
	resp := &dto.PriceCheckResponse{Code: code, Kind: b.Kind()}
	switch resp.Kind {
	case model.TargetPLU:
		p, err := s.plus.FindPLU(ctx, *b.PLUID)
		if err != nil {
			return nil, err
		}
		resp.Description, resp.Price = p.Description, p.Price
	case model.TargetStockType:
		st, err := s.types.FindStockType(ctx, *b.StockTypeID)
		if err != nil {
			return nil, err
		}
		resp.Description, resp.Price = st.Format(), st.SalePrice
	case model.TargetStockLine:
		l, err := s.lines.FindStockLine(ctx, *b.StockLineID)
		if err != nil {
			return nil, err
		}
		resp.Description = l.Name
		if l.StockTypeID != nil {
			st, err := s.types.FindStockType(ctx, *l.StockTypeID)
			if err != nil {
				return nil, err
			}
			resp.Price = st.SalePrice
		}
	case model.TargetModifier:
		resp.Description = *b.ModifierName
	}
	return resp, nil
}
