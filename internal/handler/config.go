package handler

import (
	"net/http"

	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/service"

	"github.com/gin-gonic/gin"
)

type ConfigHandler struct{ svc service.SiteConfigService }

func NewConfigHandler(svc service.SiteConfigService) *ConfigHandler {
	return &ConfigHandler{svc: svc}
}

func (h *ConfigHandler) List(c *gin.Context) {
	resp, err := h.svc.List(c.Request.Context())
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

func (h *ConfigHandler) Get(c *gin.Context) {
	resp, err := h.svc.Get(c.Request.Context(), c.Param("key"))
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}

// Set godoc
// @Summary Change a site configuration item
// @Tags config
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param key path string true "Item key, e.g. core:sitename"
// @Param body body dto.SetConfigRequest true "Value"
// @Success 200 {object} dto.ConfigItemResponse
// @Failure 400 {object} apierror.APIError
// @Router /v1/config/{key} [put]
func (h *ConfigHandler) Set(c *gin.Context) {
	var req dto.SetConfigRequest
	if !bindAndValidate(c, &req) {
		return
	}
	resp, err := h.svc.Set(c.Request.Context(), c.Param("key"), req.Value)
	if err != nil {
		respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, resp)
}
