package handler

import (
	"net/http"

	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type StockHandler struct{ svc service.StockService }

func NewStockHandler(svc service.StockService) *StockHandler { return &StockHandler{svc: svc} }

func (h *StockHandler) List(c *gin.Context) {
	var filter dto.StockItemFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListItems(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetItem(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Remove godoc
// @Summary Record waste or other removal against a stock item
// @Tags stock
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Stock item"
// @Param body body dto.RemoveStockRequest true "Quantity and reason"
// @Success 201 {object} model.StockOut
// @Failure 400 {object} apierror.APIError
// @Router /v1/stock/{id}/waste [post]
func (h *StockHandler) Remove(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.RemoveStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Remove(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *StockHandler) Finish(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.FinishStockRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Finish(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Annotate(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.AnnotateRequest
	if !bindAndValidate(c, &req) {
		return
	}
	if err := h.svc.Annotate(c.Request.Context(), actor(c), id, req); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *StockHandler) Annotations(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.ListAnnotations(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) Purge(c *gin.Context) {
	ids, err := h.svc.Purge(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.PurgeResponse{Finished: ids})
}

// ── Prices ───────────────────────────────────────────────────────────────────

func (h *StockHandler) Prices(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.InconsistentPrices(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// RepriceType godoc
// @Summary Set the sale price of every live item of a stock type
// @Tags stock
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Stock type"
// @Param body body dto.RepriceRequest true "New price"
// @Success 200 {object} dto.PriceRangeResponse
// @Router /v1/stocktypes/{id}/reprice [post]
func (h *StockHandler) RepriceType(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.RepriceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RepriceType(c.Request.Context(), id, req.SalePrice)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) RepriceItem(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.RepriceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.RepriceItem(c.Request.Context(), id, req.SalePrice)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) GuessPrice(c *gin.Context) {
	var req dto.GuessPriceRequest
	if !bindAndValidate(c, &req) {
		return
	}
	guess, err := h.svc.GuessPrice(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.GuessPriceResponse{Guess: guess})
}

func (h *StockHandler) CheckDigits(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	digits, err := h.svc.CheckDigits(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, dto.CheckDigitsResponse{StockItemID: id, CheckDigits: digits})
}

func (h *StockHandler) RemoveCodes(c *gin.Context) {
	resp, err := h.svc.RemoveCodes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *StockHandler) FinishCodes(c *gin.Context) {
	resp, err := h.svc.FinishCodes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
