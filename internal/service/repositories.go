package service

import (
	"github.com/sde1000/quicktill-sub001/internal/repository"
)

const dateLayout = "2006-01-02"

// Repositories groups the stores the services are built from.
type Repositories struct {
	Units        repository.UnitRepository
	Departments  repository.DepartmentRepository
	Deliveries   repository.DeliveryRepository
	StockTypes   repository.StockTypeRepository
	Stock        repository.StockRepository
	StockLines   repository.StockLineRepository
	PLUs         repository.PLURepository
	Keyboard     repository.KeyboardRepository
	Transactions repository.TransactionRepository
	Sessions     repository.SessionRepository
	Users        repository.UserRepository
	Config       repository.ConfigRepository

	// Clock defaults to time.Now.
	Clock Clock
}
