package handler

import (
	"net/http"

	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// CatalogueHandler serves the slowly-changing reference data: units,
// departments, VAT bands, suppliers, stock types and payment methods.
type CatalogueHandler struct{ svc service.CatalogueService }

func NewCatalogueHandler(svc service.CatalogueService) *CatalogueHandler {
	return &CatalogueHandler{svc: svc}
}

func (h *CatalogueHandler) ListUnits(c *gin.Context) {
	resp, err := h.svc.ListUnits(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogueHandler) CreateUnit(c *gin.Context) {
	var req dto.CreateUnitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateUnit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CatalogueHandler) ListStockUnits(c *gin.Context) {
	resp, err := h.svc.ListStockUnits(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogueHandler) CreateStockUnit(c *gin.Context) {
	var req dto.CreateStockUnitRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateStockUnit(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ── Departments and VAT ──────────────────────────────────────────────────────

func (h *CatalogueHandler) ListDepartments(c *gin.Context) {
	resp, err := h.svc.ListDepartments(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// CreateDepartment godoc
// @Summary Create a department
// @Tags catalogue
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.DepartmentRequest true "Department"
// @Success 201 {object} model.Department
// @Failure 400 {object} apierror.APIError
// @Router /v1/departments [post]
func (h *CatalogueHandler) CreateDepartment(c *gin.Context) {
	var req dto.DepartmentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateDepartment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CatalogueHandler) UpdateDepartment(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.DepartmentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	req.ID = id
	resp, err := h.svc.UpdateDepartment(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogueHandler) ListVatBands(c *gin.Context) {
	resp, err := h.svc.ListVatBands(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogueHandler) CreateVatBand(c *gin.Context) {
	var req dto.VatBandRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateVatBand(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CatalogueHandler) AddVatRate(c *gin.Context) {
	var req dto.VatRateRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.AddVatRate(c.Request.Context(), c.Param("band"), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ── Suppliers ────────────────────────────────────────────────────────────────

func (h *CatalogueHandler) ListSuppliers(c *gin.Context) {
	resp, err := h.svc.ListSuppliers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogueHandler) CreateSupplier(c *gin.Context) {
	var req dto.SupplierRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateSupplier(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CatalogueHandler) UpdateSupplier(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.SupplierRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateSupplier(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Stock types ──────────────────────────────────────────────────────────────

// ListStockTypes godoc
// @Summary List or search stock types
// @Tags stock
// @Produce json
// @Security BearerAuth
// @Param dept query int false "Department"
// @Param q query string false "Manufacturer or name contains"
// @Success 200 {array} model.StockType
// @Router /v1/stocktypes [get]
func (h *CatalogueHandler) ListStockTypes(c *gin.Context) {
	var filter dto.StockTypeFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListStockTypes(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogueHandler) GetStockType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetStockType(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogueHandler) CreateStockType(c *gin.Context) {
	var req dto.StockTypeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateStockType(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *CatalogueHandler) UpdateStockType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.StockTypeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateStockType(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Availability godoc
// @Summary Stock remaining for a stock type
// @Tags stock
// @Produce json
// @Security BearerAuth
// @Param id path int true "Stock type"
// @Success 200 {object} dto.AvailabilityResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/stocktypes/{id}/availability [get]
func (h *CatalogueHandler) Availability(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Availability(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Payment methods ──────────────────────────────────────────────────────────

func (h *CatalogueHandler) ListPayTypes(c *gin.Context) {
	resp, err := h.svc.ListPayTypes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *CatalogueHandler) CreatePayType(c *gin.Context) {
	var req dto.PayTypeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreatePayType(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
