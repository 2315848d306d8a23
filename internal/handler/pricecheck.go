package handler

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/sde1000/quicktill-sub001/internal/dto"
	"github.com/sde1000/quicktill-sub001/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"
)

// Price changes show up here once the cached answer expires.
const priceCheckTTL = 5 * time.Minute

// PriceCheckHandler serves the shelf price-check endpoint.
type PriceCheckHandler struct {
	svc service.KeyboardService
	rdb *redis.Client // nil disables caching
}

func NewPriceCheckHandler(svc service.KeyboardService, rdb *redis.Client) *PriceCheckHandler {
	return &PriceCheckHandler{svc: svc, rdb: rdb}
}

// Check godoc
// @Summary Look up what a barcode sells and its price
// @Tags keyboard
// @Produce json
// @Param code path string true "Barcode"
// @Success 200 {object} dto.PriceCheckResponse
// @Failure 404 {object} apierror.APIError
// @Router /v1/pricecheck/{code} [get]
func (h *PriceCheckHandler) Check(c *gin.Context) {
	code := c.Param("code")
	ctx := c.Request.Context()
	cacheKey := "pricecheck:" + code

	if h.rdb != nil {
		if cached, err := h.rdb.Get(ctx, cacheKey).Bytes(); err == nil {
			var resp dto.PriceCheckResponse
			if json.Unmarshal(cached, &resp) == nil {
				c.JSON(http.StatusOK, resp)
				return
			}
		}
	}

	resp, err := h.svc.PriceCheck(ctx, code)
	if err != nil {
		respondError(c, err)
		return
	}

	if h.rdb != nil {
		if b, err := json.Marshal(resp); err == nil {
			_ = h.rdb.Set(context.Background(), cacheKey, b, priceCheckTTL).Err()
		}
	}
	c.JSON(http.StatusOK, resp)
}
