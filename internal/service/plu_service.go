package service

import (
	"context"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/pricing"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/shopspring/decimal"
)

// PLUService manages price lookups.
type PLUService interface {
	List(ctx context.Context) ([]model.PLU, error)
	Get(ctx context.Context, id int64) (*model.PLU, error)
	Create(ctx context.Context, req dto.PLURequest) (*model.PLU, error)
	Update(ctx context.Context, id int64, req dto.PLURequest) (*model.PLU, error)
	Delete(ctx context.Context, id int64) error
}

type pluService struct {
	plus  repository.PLURepository
	depts repository.DepartmentRepository
}

func NewPLUService(repos Repositories) PLUService {
	return &pluService{plus: repos.PLUs, depts: repos.Departments}
}

func (s *pluService) List(ctx context.Context) ([]model.PLU, error) {
	return s.plus.ListPLUs(ctx)
}

func (s *pluService) Get(ctx context.Context, id int64) (*model.PLU, error) {
	p, err := s.plus.FindPLU(ctx, id)
	if repository.IsNotFound(err) {
		return nil, apperr.NotFound("price lookup %d not found", id)
	}
	return p, err
}

func money(d *decimal.Decimal) *decimal.Decimal {
	if d == nil {
		return nil
	}
	m := pricing.Money(*d)
	return &m
}

func (s *pluService) apply(ctx context.Context, p *model.PLU, req dto.PLURequest) error {
	if _, err := s.depts.FindDepartment(ctx, req.DeptID); err != nil {
		if repository.IsNotFound(err) {
			return apperr.User("department %d does not exist", req.DeptID)
		}
		return err
	}
	for _, price := range []*decimal.Decimal{req.Price, req.AltPrice1, req.AltPrice2, req.AltPrice3} {
		if price != nil && price.IsNegative() {
			return apperr.User("prices can't be negative")
		}
	}
	p.Description = req.Description
	p.Note = req.Note
	p.DeptID = req.DeptID
	p.Price = money(req.Price)
	p.AltPrice1 = money(req.AltPrice1)
	p.AltPrice2 = money(req.AltPrice2)
	p.AltPrice3 = money(req.AltPrice3)
	p.Department = nil
	return nil
}

func (s *pluService) Create(ctx context.Context, req dto.PLURequest) (*model.PLU, error) {
	p := &model.PLU{}
	if err := s.apply(ctx, p, req); err != nil {
		return nil, err
	}
	if err := s.plus.CreatePLU(ctx, p); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("there is already a price lookup called %q", req.Description)
		}
		return nil, err
	}
	return p, nil
}

func (s *pluService) Update(ctx context.Context, id int64, req dto.PLURequest) (*model.PLU, error) {
	p, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.apply(ctx, p, req); err != nil {
		return nil, err
	}
	if err := s.plus.UpdatePLU(ctx, p); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("there is already a price lookup called %q", req.Description)
		}
		return nil, err
	}
	return p, nil
}

func (s *pluService) Delete(ctx context.Context, id int64) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	return s.plus.DeletePLU(ctx, id)
}
