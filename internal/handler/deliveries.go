package handler

import (
	"net/http"
	"strconv"

	"github.com/sde1000/quicktill-sub001/internal/apierror"
	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type DeliveriesHandler struct{ svc service.DeliveryService }

func NewDeliveriesHandler(svc service.DeliveryService) *DeliveriesHandler {
	return &DeliveriesHandler{svc: svc}
}

func (h *DeliveriesHandler) List(c *gin.Context) {
	var checked *bool
	if v := c.Query("checked"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			c.JSON(http.StatusBadRequest, apierror.New("checked must be true or false"))
			return
		}
		checked = &b
	}
	resp, err := h.svc.ListDeliveries(c.Request.Context(), checked)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DeliveriesHandler) Get(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.GetDelivery(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DeliveriesHandler) Create(c *gin.Context) {
	var req dto.DeliveryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.CreateDelivery(c.Request.Context(), req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *DeliveriesHandler) Update(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.DeliveryRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateDelivery(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DeliveriesHandler) Delete(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	if err := h.svc.DeleteDelivery(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Receive godoc
// @Summary Add items to an unchecked delivery
// @Tags deliveries
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path int true "Delivery"
// @Param body body dto.ReceiveRequest true "Items"
// @Success 201 {array} model.StockItem
// @Failure 400 {object} apierror.APIError
// @Router /v1/deliveries/{id}/items [post]
func (h *DeliveriesHandler) Receive(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req dto.ReceiveRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Receive(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusCreated, resp)
}

func (h *DeliveriesHandler) UpdateItem(c *gin.Context) {
	id, ok := paramID(c, "item")
	if !ok {
		return
	}
	var req dto.UpdateStockItemRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.UpdateItem(c.Request.Context(), id, req)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *DeliveriesHandler) DeleteItem(c *gin.Context) {
	id, ok := paramID(c, "item")
	if !ok {
		return
	}
	if err := h.svc.DeleteItem(c.Request.Context(), id); err != nil {
		respondError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

// Confirm godoc
// @Summary Confirm a delivery and allocate its stock to display lines
// @Tags deliveries
// @Produce json
// @Security BearerAuth
// @Param id path int true "Delivery"
// @Success 200 {object} dto.AllocationResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/deliveries/{id}/confirm [post]
func (h *DeliveriesHandler) Confirm(c *gin.Context) {
	id, ok := paramID(c, "id")
	if !ok {
		return
	}
	resp, err := h.svc.Confirm(c.Request.Context(), id)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
