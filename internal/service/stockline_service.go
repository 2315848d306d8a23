package service

import (
	"context"
	"fmt"

	"github.com/sde1000/quicktill-sub001/internal/apperr"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/model"
	"github.com/sde1000/quicktill-sub001/internal/repository"

	"github.com/rs/zerolog/log"
	"gorm.io/gorm"
)

// StockLineService manages stock lines and the items on sale on them.
type StockLineService interface {
	List(ctx context.Context, lineType string) ([]dto.StockLineSummary, error)
	Get(ctx context.Context, id int64) (*dto.StockLineSummary, error)
	Create(ctx context.Context, req dto.StockLineRequest) (*model.StockLine, error)
	Update(ctx context.Context, id int64, req dto.StockLineRequest) (*model.StockLine, error)
	Delete(ctx context.Context, id int64) error

	PutOnSale(ctx context.Context, actor Actor, lineID int64, req dto.PutOnSaleRequest) (*dto.StockLineSummary, error)
	TakeOffSale(ctx context.Context, actor Actor, lineID, itemID int64) error
	Restock(ctx context.Context, lineID int64) (*dto.RestockResponse, error)
	AutoAllocate(ctx context.Context) (*dto.AllocationResponse, error)
	RecordWaste(ctx context.Context, actor Actor, lineID int64, req dto.LineWasteRequest) ([]model.StockOut, error)
}

type stockLineService struct {
	db     *gorm.DB
	types  repository.StockTypeRepository
	depts  repository.DepartmentRepository
	engine *engine
	locker Locker
}

func NewStockLineService(db *gorm.DB, repos Repositories, locker Locker) StockLineService {
	return &stockLineService{
		db:     db,
		types:  repos.StockTypes,
		depts:  repos.Departments,
		engine: newEngine(repos.Stock, repos.StockLines, repos.Clock),
		locker: locker,
	}
}

func lineKey(id int64) string { return fmt.Sprintf("stockline:%d", id) }

func (s *stockLineService) summary(ctx context.Context, line *model.StockLine) (*dto.StockLineSummary, error) {
	out := &dto.StockLineSummary{
		ID:          line.ID,
		Name:        line.Name,
		Location:    line.Location,
		LineType:    line.LineType,
		StockTypeID: line.StockTypeID,
		Capacity:    line.Capacity,
		Items:       []dto.ItemAvailability{},
	}
	cands, err := s.engine.candidates(ctx, line)
	if err != nil {
		return nil, err
	}
	for _, c := range cands {
		rem := c.item.Remaining()
		out.Remaining = out.Remaining.Add(rem)
		ia := dto.ItemAvailability{StockItemID: c.item.ID, Remaining: rem}
		if c.onsale != nil {
			id := line.ID
			ia.StockLineID = &id
		}
		if line.LineType == model.LineDisplay {
			out.OnDisplay = out.OnDisplay.Add(c.available)
		}
		out.Items = append(out.Items, ia)
	}
	return out, nil
}

func (s *stockLineService) List(ctx context.Context, lineType string) ([]dto.StockLineSummary, error) {
	lines, err := s.engine.lines.ListStockLines(ctx, lineType)
	if err != nil {
		return nil, err
	}
	out := make([]dto.StockLineSummary, 0, len(lines))
	for i := range lines {
		sum, err := s.summary(ctx, &lines[i])
		if err != nil {
			return nil, err
		}
		out = append(out, *sum)
	}
	return out, nil
}

func (s *stockLineService) Get(ctx context.Context, id int64) (*dto.StockLineSummary, error) {
	line, err := s.engine.line(ctx, id)
	if err != nil {
		return nil, err
	}
	return s.summary(ctx, line)
}

// checkLine enforces the shape each line type needs.
func (s *stockLineService) checkLine(ctx context.Context, req dto.StockLineRequest) error {
	switch req.LineType {
	case model.LineRegular:
		if req.Capacity != nil {
			return apperr.User("only display lines have a capacity")
		}
	case model.LineDisplay:
		if req.Capacity == nil || *req.Capacity <= 0 {
			return apperr.User("a display line needs a capacity greater than zero")
		}
		if req.StockTypeID == nil {
			return apperr.User("a display line needs a stock type")
		}
	case model.LineContinuous:
		if req.StockTypeID == nil {
			return apperr.User("a continuous line needs a stock type")
		}
		if req.Capacity != nil {
			return apperr.User("only display lines have a capacity")
		}
	default:
		return apperr.User("unknown line type %q", req.LineType)
	}
	if req.PullThru != nil {
		if req.LineType != model.LineRegular {
			return apperr.User("only regular lines have a pull-through amount")
		}
		if req.PullThru.IsNegative() {
			return apperr.User("pull-through amount can't be negative")
		}
	}
	if req.StockTypeID != nil {
		if _, err := s.types.FindStockType(ctx, *req.StockTypeID); err != nil {
			if repository.IsNotFound(err) {
				return apperr.User("stock type %d does not exist", *req.StockTypeID)
			}
			return err
		}
	}
	if req.DeptID != nil {
		if _, err := s.depts.FindDepartment(ctx, *req.DeptID); err != nil {
			if repository.IsNotFound(err) {
				return apperr.User("department %d does not exist", *req.DeptID)
			}
			return err
		}
	}
	return nil
}

func applyLine(line *model.StockLine, req dto.StockLineRequest) {
	line.Name = req.Name
	line.Location = req.Location
	line.LineType = req.LineType
	line.DeptID = req.DeptID
	line.StockTypeID = req.StockTypeID
	line.Capacity = req.Capacity
	line.PullThru = req.PullThru
	line.Note = req.Note
	line.StockType = nil
}

func (s *stockLineService) Create(ctx context.Context, req dto.StockLineRequest) (*model.StockLine, error) {
	if err := s.checkLine(ctx, req); err != nil {
		return nil, err
	}
	line := &model.StockLine{}
	applyLine(line, req)
	if err := s.engine.lines.CreateStockLine(ctx, line); err != nil {
		if repository.IsDuplicate(err) {
			return nil, apperr.User("there is already a stock line called %q", req.Name)
		}
		return nil, err
	}
	return line, nil
}

func (s *stockLineService) Update(ctx context.Context, id int64, req dto.StockLineRequest) (*model.StockLine, error) {
	if err := s.checkLine(ctx, req); err != nil {
		return nil, err
	}
	var out *model.StockLine
	err := withLock(ctx, s.locker, lineKey(id), func() error {
		return runTx(ctx, s.db, func(ctx context.Context) error {
			line, err := s.engine.line(ctx, id)
			if err != nil {
				return err
			}
			attached, err := s.engine.lines.ListOnSale(ctx, id)
			if err != nil {
				return err
			}
			if len(attached) > 0 && (line.LineType != req.LineType || !sameID(line.StockTypeID, req.StockTypeID)) {
				return apperr.User("take the stock off %s before changing its type", line.Name)
			}
			applyLine(line, req)
			out = line
			err = s.engine.lines.UpdateStockLine(ctx, line)
			if repository.IsDuplicate(err) {
				return apperr.User("there is already a stock line called %q", req.Name)
			}
			return err
		})
	})
	return out, err
}

func sameID(a, b *int64) bool {
	if a == nil || b == nil {
		return a == b
	}
	return *a == *b
}

func (s *stockLineService) Delete(ctx context.Context, id int64) error {
	return withLock(ctx, s.locker, lineKey(id), func() error {
		return runTx(ctx, s.db, func(ctx context.Context) error {
			line, err := s.engine.line(ctx, id)
			if err != nil {
				return err
			}
			attached, err := s.engine.lines.ListOnSale(ctx, id)
			if err != nil {
				return err
			}
			if len(attached) > 0 {
				return apperr.User("%s still has stock on sale", line.Name)
			}
			return s.engine.lines.DeleteStockLine(ctx, id)
		})
	})
}

func (s *stockLineService) PutOnSale(ctx context.Context, actor Actor, lineID int64, req dto.PutOnSaleRequest) (*dto.StockLineSummary, error) {
	var out *dto.StockLineSummary
	err := withLock(ctx, s.locker, lineKey(lineID), func() error {
		return runTx(ctx, s.db, func(ctx context.Context) error {
			line, err := s.engine.line(ctx, lineID)
			if err != nil {
				return err
			}
			item, err := s.engine.item(ctx, req.StockItemID)
			if err != nil {
				return err
			}
			if err := s.engine.attach(ctx, line, item, actor.UserID); err != nil {
				return err
			}
			out, err = s.summary(ctx, line)
			return err
		})
	})
	if err == nil {
		log.Info().Int64("stockline_id", lineID).Int64("stockitem_id", req.StockItemID).Msg("stock put on sale")
	}
	return out, err
}

func (s *stockLineService) TakeOffSale(ctx context.Context, actor Actor, lineID, itemID int64) error {
	return withLock(ctx, s.locker, lineKey(lineID), func() error {
		return runTx(ctx, s.db, func(ctx context.Context) error {
			item, err := s.engine.item(ctx, itemID)
			if err != nil {
				return err
			}
			sos, err := s.engine.lines.FindOnSale(ctx, itemID)
			if repository.IsNotFound(err) || (err == nil && sos.StockLineID != lineID) {
				return apperr.User("stock item %d is not on sale on line %d", itemID, lineID)
			}
			if err != nil {
				return err
			}
			return s.engine.detach(ctx, item, actor.UserID)
		})
	})
}

func (s *stockLineService) Restock(ctx context.Context, lineID int64) (*dto.RestockResponse, error) {
	resp := &dto.RestockResponse{StockLineID: lineID, Moves: []dto.RestockMove{}, Finished: []int64{}}
	err := withLock(ctx, s.locker, lineKey(lineID), func() error {
		return runTx(ctx, s.db, func(ctx context.Context) error {
			line, err := s.engine.line(ctx, lineID)
			if err != nil {
				return err
			}
			moves, purged, err := s.engine.restock(ctx, line)
			if err != nil {
				return err
			}
			resp.Moves = append(resp.Moves, moves...)
			resp.Finished = append(resp.Finished, purged...)
			return nil
		})
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

func (s *stockLineService) AutoAllocate(ctx context.Context) (*dto.AllocationResponse, error) {
	resp := &dto.AllocationResponse{Attached: []dto.Allocation{}}
	err := runTx(ctx, s.db, func(ctx context.Context) error {
		attached, err := s.engine.autoAllocate(ctx)
		if err != nil {
			return err
		}
		for _, a := range attached {
			resp.Attached = append(resp.Attached, dto.Allocation{StockItemID: a.StockItemID, StockLineID: a.StockLineID})
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// RecordWaste removes qty from whatever the line would sell next, spread
// over items the way a sale would be.
func (s *stockLineService) RecordWaste(ctx context.Context, actor Actor, lineID int64, req dto.LineWasteRequest) ([]model.StockOut, error) {
	if req.RemoveCode == model.RemoveSold {
		return nil, apperr.User("sales must go through the register")
	}
	var out []model.StockOut
	err := withLock(ctx, s.locker, lineKey(lineID), func() error {
		return runTx(ctx, s.db, func(ctx context.Context) error {
			codes, err := s.engine.stock.ListRemoveCodes(ctx)
			if err != nil {
				return err
			}
			known := false
			for _, c := range codes {
				known = known || c.ID == req.RemoveCode
			}
			if !known {
				return apperr.User("unknown remove code %q", req.RemoveCode)
			}
			line, err := s.engine.line(ctx, lineID)
			if err != nil {
				return err
			}
			p, err := s.engine.planLine(ctx, line, req.Qty)
			if err != nil {
				return err
			}
			if p.Unallocated.IsPositive() {
				return apperr.User("%s has only %s available", line.Name, req.Qty.Sub(p.Unallocated).String())
			}
			for _, e := range p.Entries {
				so, err := s.engine.remove(ctx, e.Item, e.Qty, req.RemoveCode, nil)
				if err != nil {
					return err
				}
				out = append(out, *so)
			}
			_, err = s.engine.purgeLine(ctx, line)
			return err
		})
	})
	if err == nil {
		log.Info().Int64("stockline_id", lineID).Str("qty", req.Qty.String()).
			Str("removecode", req.RemoveCode).Msg("line waste recorded")
	}
	return out, err
}
