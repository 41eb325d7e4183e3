package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/blues/carbonledger/internal/logic"
	"github.com/blues/carbonledger/internal/model"
)

// ListingHandler 市场挂单处理器
type ListingHandler struct {
	facade *logic.Facade
}

// NewListingHandler 创建挂单处理器
func NewListingHandler(facade *logic.Facade) *ListingHandler {
	return &ListingHandler{facade: facade}
}

// GetListings 获取挂单列表, active=true 时只返回有效挂单
func (h *ListingHandler) GetListings(c *gin.Context) {
	var listings []model.Listing
	switch {
	case c.Query("active") == "true":
		listings = h.facade.ActiveListings()
	case c.Query("seller") != "":
		listings = h.facade.ListingsBySeller(c.Query("seller"))
	default:
		listings = h.facade.ListListings()
	}

	SuccessResponse(c, http.StatusOK, "ok", GetListingsResponse{Listings: listings})
}

// GetListing 获取单个挂单
func (h *ListingHandler) GetListing(c *gin.Context) {
	id, ok := idParam(c)
	if !ok {
		return
	}

	listing, err := h.facade.GetListing(id)
	if err != nil {
		FailureResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusOK, "ok", GetListingResponse{Listing: listing})
}

// CreateListing 挂单出售
func (h *ListingHandler) CreateListing(c *gin.Context) {
	caller, ok := walletOf(c)
	if !ok {
		return
	}

	var req ListForSaleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		ErrorResponse(c, http.StatusBadRequest, err.Error())
		return
	}

	listing, err := h.facade.ListForSale(c.Request.Context(), caller, req.Amount, req.PricePerToken)
	if err != nil {
		FailureResponse(c, err)
		return
	}

	SuccessResponse(c, http.StatusCreated, "listing created", GetListingResponse{Listing: listing})
}

// BuyListing 购买挂单
func (h *ListingHandler) BuyListing(c *gin.Context) {
	caller, ok := walletOf(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.facade.BuyListing(c.Request.Context(), caller, id); err != nil {
		FailureResponse(c, err)
		return
	}

	h.respondListing(c, id, "listing bought")
}

// CancelListing 卖方撤单
func (h *ListingHandler) CancelListing(c *gin.Context) {
	caller, ok := walletOf(c)
	if !ok {
		return
	}
	id, ok := idParam(c)
	if !ok {
		return
	}

	if err := h.facade.CancelListing(c.Request.Context(), caller, id); err != nil {
		FailureResponse(c, err)
		return
	}

	h.respondListing(c, id, "listing cancelled")
}

func (h *ListingHandler) respondListing(c *gin.Context, id uint64, message string) {
	listing, err := h.facade.GetListing(id)
	if err != nil {
		FailureResponse(c, err)
		return
	}
	SuccessResponse(c, http.StatusOK, message, GetListingResponse{Listing: listing})
}
