package handler

import (
	"net/http"

	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// RegisterHandler is the till. Each request is one user-visible action.
type RegisterHandler struct{ svc service.RegisterService }

func NewRegisterHandler(svc service.RegisterService) *RegisterHandler {
	return &RegisterHandler{svc: svc}
}

func (h *RegisterHandler) ListTransactions(c *gin.Context) {
	var filter dto.TransactionFilter
	if !bindQuery(c, &filter) {
		return
	}
	resp, err := h.svc.ListTransactions(c.Request.Context(), filter)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RegisterHandler) GetTransaction(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetTransaction(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// ── Sales ────────────────────────────────────────────────────────────────────

// SellStockLine godoc
// @Summary Sell from a stock line
// @Tags register
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.SellStockLineRequest true "Line, quantity and modifiers"
// @Success 201 {object} dto.SaleResponse
// @Failure 400 {object} apierror.APIError
// @Failure 422 {object} apierror.APIError
// @Router /v1/register/stockline [post]
func (h *RegisterHandler) SellStockLine(c *gin.Context) {
	var req dto.SellStockLineRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SellStockLine(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *RegisterHandler) SellStockType(c *gin.Context) {
	var req dto.SellStockTypeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SellStockType(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *RegisterHandler) SellPLU(c *gin.Context) {
	var req dto.SellPLURequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SellPLU(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *RegisterHandler) SellDepartment(c *gin.Context) {
	var req dto.SellDepartmentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SellDepartment(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// Keypress godoc
// @Summary Press a line key
// @Description Sells what the key is bound to. A modifier key comes back as a pending modifier; a key with several bindings comes back as a menu.
// @Tags register
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.KeypressRequest true "Key"
// @Success 200 {object} dto.KeypressResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/register/key [post]
func (h *RegisterHandler) Keypress(c *gin.Context) {
	var req dto.KeypressRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Keypress(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RegisterHandler) Barcode(c *gin.Context) {
	var req dto.BarcodeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Barcode(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RegisterHandler) Void(c *gin.Context) {
	var req dto.VoidRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Void(c.Request.Context(), actor(c), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

// ── Transaction management ───────────────────────────────────────────────────

// Pay godoc
// @Summary Record a payment
// @Tags register
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Transaction"
// @Param body body dto.PaymentRequest true "Payment"
// @Success 201 {object} dto.PaymentResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/transactions/{id}/payments [post]
func (h *RegisterHandler) Pay(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.PaymentRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Pay(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *RegisterHandler) Cancel(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.Cancel(c.Request.Context(), actor(c), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *RegisterHandler) CancelLines(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.LinesRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CancelLines(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	if resp == nil {
		c.Status(http.StatusNoContent)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RegisterHandler) Split(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.LinesRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Split(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *RegisterHandler) Merge(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.MergeRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Merge(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RegisterHandler) Defer(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Defer(c.Request.Context(), actor(c), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *RegisterHandler) SetNotes(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.NotesRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.SetNotes(c.Request.Context(), actor(c), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
