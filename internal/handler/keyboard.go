package handler

import (
	"net/http"

	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

// KeyboardHandler serves price lookups, modifiers, key bindings and
// barcodes: everything a keypress or a scan can resolve to.
type KeyboardHandler struct {
	plus service.PLUService
	kb   service.KeyboardService
}

func NewKeyboardHandler(plus service.PLUService, kb service.KeyboardService) *KeyboardHandler {
	return &KeyboardHandler{plus: plus, kb: kb}
}

// ── Price lookups ────────────────────────────────────────────────────────────

func (h *KeyboardHandler) ListPLUs(c *gin.Context) {
	resp, err := h.plus.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *KeyboardHandler) GetPLU(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.plus.Get(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *KeyboardHandler) CreatePLU(c *gin.Context) {
	var req dto.PLURequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.plus.Create(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *KeyboardHandler) UpdatePLU(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.PLURequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.plus.Update(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *KeyboardHandler) DeletePLU(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.plus.Delete(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ── Modifiers ────────────────────────────────────────────────────────────────

func (h *KeyboardHandler) ListModifiers(c *gin.Context) {
	resp, err := h.kb.ListModifiers(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// SaveModifier godoc
// @Summary Create or replace a modifier
// @Tags keyboard
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param body body dto.ModifierRequest true "Modifier"
// @Success 200 {object} model.Modifier
// @Failure 400 {object} apierror.APIError
// @Router /v1/modifiers [put]
func (h *KeyboardHandler) SaveModifier(c *gin.Context) {
	var req dto.ModifierRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.kb.SaveModifier(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *KeyboardHandler) DeleteModifier(c *gin.Context) {
	if err := h.kb.DeleteModifier(c.Request.Context(), c.Param("name")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// ── Bindings ─────────────────────────────────────────────────────────────────

func (h *KeyboardHandler) ListBindings(c *gin.Context) {
	resp, err := h.kb.ListBindings(c.Request.Context(), c.Query("keycode"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *KeyboardHandler) CreateBinding(c *gin.Context) {
	var req dto.BindingRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.kb.CreateBinding(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *KeyboardHandler) DeleteBinding(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.kb.DeleteBinding(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *KeyboardHandler) ListBarcodes(c *gin.Context) {
	resp, err := h.kb.ListBarcodes(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *KeyboardHandler) SaveBarcode(c *gin.Context) {
	var req dto.BarcodeBindingRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.kb.SaveBarcode(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *KeyboardHandler) DeleteBarcode(c *gin.Context) {
	if err := h.kb.DeleteBarcode(c.Request.Context(), c.Param("code")); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}
