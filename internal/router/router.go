package router

import (
	"time"

	"github.com/sde1000/quicktill-sub001/internal/app"
	"github.com/sde1000/quicktill-sub001/internal/handler"
	"github.com/sde1000/quicktill-sub001/internal/middleware"
	"github.com/sde1000/quicktill-sub001/internal/permission"

	swaggerFiles "github.com/swaggo/files"
	ginSwagger "github.com/swaggo/gin-swagger"

	"github.com/gin-gonic/gin"
)

// New returns a configured Gin engine serving a's services. Every route
// past /v1/auth declares the permission it needs; superusers pass all.
func New(a *app.App) *gin.Engine {
	if a.Cfg.Env == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()

	// Global middleware chain (order matters)
	r.Use(middleware.RequestID())
	r.Use(middleware.Logger())
	r.Use(middleware.Recovery())
	r.Use(middleware.CORS(a.Cfg.CORSOrigins))
	r.Use(middleware.ErrorHandler())
	r.Use(middleware.RateLimiter(1000, time.Minute)) // 1000 req/min per IP

	// ── Handlers ─────────────────────────────────────────────────────────────
	authH := handler.NewAuthHandler(a.Auth)
	usersH := handler.NewUsersHandler(a.Users)
	catalogueH := handler.NewCatalogueHandler(a.Catalogue)
	deliveriesH := handler.NewDeliveriesHandler(a.Deliveries)
	stockH := handler.NewStockHandler(a.Stock)
	linesH := handler.NewStockLinesHandler(a.StockLines)
	keyboardH := handler.NewKeyboardHandler(a.PLUs, a.Keyboard)
	priceCheckH := handler.NewPriceCheckHandler(a.Keyboard, a.RDB)
	registerH := handler.NewRegisterHandler(a.Register)
	sessionsH := handler.NewSessionsHandler(a.Sessions)
	configH := handler.NewConfigHandler(a.Site)

	need := middleware.RequirePermission

	// ── Routes ───────────────────────────────────────────────────────────────

	// Public
	r.GET("/health", handler.Health(a.DB, a.RDB, a.AccountsCB))
	r.GET("/v1/pricecheck/:code", priceCheckH.Check)

	auth := r.Group("/v1/auth", middleware.LoginRateLimiter())
	{
		auth.POST("/token", authH.TokenLogin)
		auth.POST("/login", middleware.PasswordLoginRateLimiter(), authH.PasswordLogin)
	}

	v1 := r.Group("/v1", middleware.JWTAuth(a.Cfg.JWTSecret))

	// Users and permissions
	{
		v1.GET("/permissions", need(permission.ListUsers), usersH.Permissions)
		v1.GET("/users", need(permission.ListUsers), usersH.List)
		v1.GET("/users/:id", need(permission.ListUsers), usersH.Get)
		v1.POST("/users", need(permission.ManageUsers), usersH.Create)
		v1.PUT("/users/:id", need(permission.ManageUsers), usersH.Update)
		v1.POST("/users/:id/tokens", need(permission.ManageUsers), usersH.AddToken)
		v1.POST("/users/:id/permissions", need(permission.GrantPerms), usersH.Grant)
		v1.POST("/users/:id/groups", need(permission.GrantPerms), usersH.AddToGroup)
		v1.PUT("/groups", need(permission.GrantPerms), usersH.SaveGroup)
		v1.GET("/usertokens/:token", need(permission.ListUsers), usersH.ShowToken)
	}

	// Catalogue
	{
		v1.GET("/units", need(permission.ReadStock), catalogueH.ListUnits)
		v1.POST("/units", need(permission.EditUnits), catalogueH.CreateUnit)
		v1.GET("/stockunits", need(permission.ReadStock), catalogueH.ListStockUnits)
		v1.POST("/stockunits", need(permission.EditUnits), catalogueH.CreateStockUnit)

		v1.GET("/departments", need(permission.ReadStock), catalogueH.ListDepartments)
		v1.POST("/departments", need(permission.EditDepartments), catalogueH.CreateDepartment)
		v1.PUT("/departments/:id", need(permission.EditDepartments), catalogueH.UpdateDepartment)
		v1.GET("/vatbands", need(permission.ReadStock), catalogueH.ListVatBands)
		v1.POST("/vatbands", need(permission.EditDepartments), catalogueH.CreateVatBand)
		v1.POST("/vatbands/:band/rates", need(permission.EditDepartments), catalogueH.AddVatRate)

		v1.GET("/suppliers", need(permission.ReadStock), catalogueH.ListSuppliers)
		v1.POST("/suppliers", need(permission.EditSuppliers), catalogueH.CreateSupplier)
		v1.PUT("/suppliers/:id", need(permission.EditSuppliers), catalogueH.UpdateSupplier)

		v1.GET("/stocktypes", need(permission.ReadStock), catalogueH.ListStockTypes)
		v1.GET("/stocktypes/:id", need(permission.ReadStock), catalogueH.GetStockType)
		v1.POST("/stocktypes", need(permission.EditStockTypes), catalogueH.CreateStockType)
		v1.PUT("/stocktypes/:id", need(permission.EditStockTypes), catalogueH.UpdateStockType)
		v1.GET("/stocktypes/:id/availability", need(permission.ReadStock), catalogueH.Availability)
		v1.GET("/stocktypes/:id/prices", need(permission.ReadStock), stockH.Prices)
		v1.POST("/stocktypes/:id/reprice", need(permission.RepriceStock), stockH.RepriceType)

		v1.GET("/paytypes", need(permission.ReadStock), catalogueH.ListPayTypes)
		v1.POST("/paytypes", need(permission.EditPayTypes), catalogueH.CreatePayType)
	}

	// Deliveries
	{
		v1.GET("/deliveries", need(permission.ReadStock), deliveriesH.List)
		v1.GET("/deliveries/:id", need(permission.ReadStock), deliveriesH.Get)
		v1.POST("/deliveries", need(permission.ReceiveDelivery), deliveriesH.Create)
		v1.PUT("/deliveries/:id", need(permission.ReceiveDelivery), deliveriesH.Update)
		v1.DELETE("/deliveries/:id", need(permission.ReceiveDelivery), deliveriesH.Delete)
		v1.POST("/deliveries/:id/items", need(permission.ReceiveDelivery), deliveriesH.Receive)
		v1.PUT("/deliveries/:id/items/:item", need(permission.ReceiveDelivery), deliveriesH.UpdateItem)
		v1.DELETE("/deliveries/:id/items/:item", need(permission.ReceiveDelivery), deliveriesH.DeleteItem)
		v1.POST("/deliveries/:id/confirm", need(permission.ReceiveDelivery), deliveriesH.Confirm)
	}

	// Stock items
	{
		v1.GET("/stock", need(permission.ReadStock), stockH.List)
		v1.DELETE("/stock", need(permission.PurgeStock), stockH.Purge)
		v1.GET("/stock/removecodes", need(permission.ReadStock), stockH.RemoveCodes)
		v1.GET("/stock/finishcodes", need(permission.ReadStock), stockH.FinishCodes)
		v1.POST("/stock/guess-price", need(permission.PriceGuess), stockH.GuessPrice)
		v1.GET("/stock/:id", need(permission.ReadStock), stockH.Get)
		v1.POST("/stock/:id/waste", need(permission.RecordWaste), stockH.Remove)
		v1.POST("/stock/:id/finish", need(permission.FinishStock), stockH.Finish)
		v1.GET("/stock/:id/annotations", need(permission.ReadStock), stockH.Annotations)
		v1.POST("/stock/:id/annotations", need(permission.AnnotateStock), stockH.Annotate)
		v1.POST("/stock/:id/reprice", need(permission.RepriceStock), stockH.RepriceItem)
		v1.GET("/stock/:id/checkdigits", need(permission.ShowCheckDigits), stockH.CheckDigits)
	}

	// Stock lines
	{
		v1.GET("/stocklines", need(permission.ReadStock), linesH.List)
		v1.POST("/stocklines", need(permission.EditStockLines), linesH.Create)
		v1.POST("/stocklines/autoallocate", need(permission.UseStock), linesH.AutoAllocate)
		v1.GET("/stocklines/:id", need(permission.ReadStock), linesH.Get)
		v1.PUT("/stocklines/:id", need(permission.EditStockLines), linesH.Update)
		v1.DELETE("/stocklines/:id", need(permission.EditStockLines), linesH.Delete)
		v1.POST("/stocklines/:id/items", need(permission.UseStock), linesH.PutOnSale)
		v1.DELETE("/stocklines/:id/items/:item", need(permission.UseStock), linesH.TakeOffSale)
		v1.POST("/stocklines/:id/restock", need(permission.RestockDisplay), linesH.Restock)
		v1.POST("/stocklines/:id/waste", need(permission.RecordWaste), linesH.RecordWaste)
	}

	// PLUs, modifiers, keyboard and barcodes
	{
		v1.GET("/plus", need(permission.Sell), keyboardH.ListPLUs)
		v1.GET("/plus/:id", need(permission.Sell), keyboardH.GetPLU)
		v1.POST("/plus", need(permission.EditPLUs), keyboardH.CreatePLU)
		v1.PUT("/plus/:id", need(permission.EditPLUs), keyboardH.UpdatePLU)
		v1.DELETE("/plus/:id", need(permission.EditPLUs), keyboardH.DeletePLU)

		v1.GET("/modifiers", need(permission.Sell), keyboardH.ListModifiers)
		v1.PUT("/modifiers", need(permission.EditModifiers), keyboardH.SaveModifier)
		v1.DELETE("/modifiers/:name", need(permission.EditModifiers), keyboardH.DeleteModifier)

		v1.GET("/keyboard", need(permission.Sell), keyboardH.ListBindings)
		v1.POST("/keyboard", need(permission.EditKeyboard), keyboardH.CreateBinding)
		v1.DELETE("/keyboard/:id", need(permission.EditKeyboard), keyboardH.DeleteBinding)

		v1.GET("/barcodes", need(permission.Sell), keyboardH.ListBarcodes)
		v1.PUT("/barcodes", need(permission.EditKeyboard), keyboardH.SaveBarcode)
		v1.DELETE("/barcodes/:code", need(permission.EditKeyboard), keyboardH.DeleteBarcode)
	}

	// Register
	reg := v1.Group("/register", need(permission.Sell))
	{
		reg.POST("/stockline", registerH.SellStockLine)
		reg.POST("/stocktype", registerH.SellStockType)
		reg.POST("/plu", registerH.SellPLU)
		reg.POST("/department", need(permission.SellDepartment), registerH.SellDepartment)
		reg.POST("/key", registerH.Keypress)
		reg.POST("/barcode", need(permission.ScanBarcode), registerH.Barcode)
		reg.POST("/void", need(permission.Void), registerH.Void)
	}
	{
		v1.GET("/transactions", need(permission.RecallTrans), registerH.ListTransactions)
		v1.GET("/transactions/:id", need(permission.RecallTrans), registerH.GetTransaction)
		v1.POST("/transactions/:id/payments", need(permission.TakePayment), registerH.Pay)
		v1.POST("/transactions/:id/cancel", need(permission.CancelTrans), registerH.Cancel)
		v1.POST("/transactions/:id/cancel-lines", need(permission.Sell), registerH.CancelLines)
		v1.POST("/transactions/:id/split", need(permission.DeferTrans), registerH.Split)
		v1.POST("/transactions/:id/merge", need(permission.MergeTrans), registerH.Merge)
		v1.POST("/transactions/:id/defer", need(permission.DeferTrans), registerH.Defer)
		v1.PUT("/transactions/:id/notes", need(permission.EditTransNotes), registerH.SetNotes)
	}

	// Sessions
	{
		v1.POST("/sessions", need(permission.StartSession), sessionsH.Start)
		v1.GET("/sessions", need(permission.SessionSummary), sessionsH.List)
		v1.GET("/sessions/current", sessionsH.Current)
		v1.POST("/sessions/current/end", need(permission.EndSession), sessionsH.End)
		v1.GET("/sessions/:id", need(permission.SessionSummary), sessionsH.Get)
		v1.GET("/sessions/:id/transactions", need(permission.SessionSummary), sessionsH.Transactions)
		v1.POST("/sessions/:id/totals", need(permission.RecordTakings), sessionsH.RecordTotals)
		v1.PUT("/sessions/:id/totals", need(permission.EditTakings), sessionsH.UpdateTotals)
		v1.GET("/sessions/:id/summary", need(permission.SessionSummary), sessionsH.Summary)
		v1.POST("/sessions/:id/print", need(permission.PrintSummary), sessionsH.Print)
	}

	// Site configuration
	{
		v1.GET("/config", need(permission.ReadConfig), configH.List)
		v1.GET("/config/:key", need(permission.ReadConfig), configH.Get)
		v1.PUT("/config/:key", need(permission.EditConfig), configH.Set)
	}

	// Terminal events need redis pub/sub
	if a.Notifier != nil {
		v1.GET("/events", need(permission.TerminalEvents), handler.NewEventsHandler(a.Notifier).Stream)
	}

	// Swagger UI, only outside production
	if a.Cfg.Env != "production" {
		r.GET("/swagger/*any", ginSwagger.WrapHandler(swaggerFiles.Handler))
	}

	return r
}
