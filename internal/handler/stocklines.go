package handler

import (
	"net/http"

	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type StockLinesHandler struct{ svc service.StockLineService }

func NewStockLinesHandler(svc service.StockLineService) *StockLinesHandler {
	return &StockLinesHandler{svc: svc}
}

// List godoc
// @Summary List stock lines with what is on sale on each
// @Tags stocklines
// @Produce json
// @Security BearerAuth
// @Param type query string false "regular, display or continuous"
// @Success 200 {array} dto.StockLineSummary
// @Router /v1/stocklines [get]
func (h *StockLinesHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context(), c.Query("type"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockLinesHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockLinesHandler) Create(c *gin.Context) {
	var req dto.StockLineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *StockLinesHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.StockLineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockLinesHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StockLinesHandler) PutOnSale(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.PutOnSaleRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.PutOnSale(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockLinesHandler) TakeOffSale(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	item, ok := paramID(c, "item")
	if !ok {
		return
	}
	if err := h.svc.TakeOffSale(c.Request.Context(), actor(c), id, item); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Restock godoc
// @Summary Move stock from the stockroom onto a display line
// @Tags stocklines
// @Produce json
// @Security BearerAuth
// @Param id path int true "Display line"
// @Success 200 {object} dto.RestockResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/stocklines/{id}/restock [post]
func (h *StockLinesHandler) Restock(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Restock(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockLinesHandler) AutoAllocate(c *gin.Context) {
	resp, err := h.svc.AutoAllocate(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockLinesHandler) RecordWaste(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.LineWasteRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RecordWaste(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}
