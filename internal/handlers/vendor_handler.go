package handlers

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/kulapay/kulapay-backend/internal/models"
	"github.com/kulapay/kulapay-backend/internal/services"
	"golang.org/x/exp/slog"
)

// VendorHandler handles vendor administration requests
type VendorHandler struct {
	vendors *services.VendorService
	stats   *services.StatsService
}

// NewVendorHandler creates a new VendorHandler
func NewVendorHandler(vendors *services.VendorService, stats *services.StatsService) *VendorHandler {
	return &VendorHandler{vendors: vendors, stats: stats}
}

type createVendorRequest struct {
	PhoneNumber  string `json:"phoneNumber" binding:"required"`
	OwnerName    string `json:"ownerName"`
	BusinessName string `json:"businessName" binding:"required"`
	PIN          string `json:"pin"`
}

// CreateVendor handles POST /api/v1/vendors
func (h *VendorHandler) CreateVendor(c *gin.Context) {
	var req createVendorRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	vendor, err := h.vendors.Create(c.Request.Context(), req.PhoneNumber, req.OwnerName, req.BusinessName, req.PIN)
	if err != nil {
		var verr *services.ValidationError
		switch {
		case errors.As(err, &verr):
			c.JSON(http.StatusBadRequest, gin.H{"error": verr.Message, "field": verr.Field})
		case errors.Is(err, services.ErrVendorExists):
			c.JSON(http.StatusConflict, gin.H{"error": "Vendor already exists"})
		default:
			slog.Error("Failed to create vendor", "error", err)
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to create vendor"})
		}
		return
	}
	c.JSON(http.StatusCreated, vendor)
}

// ListVendors handles GET /api/v1/vendors
func (h *VendorHandler) ListVendors(c *gin.Context) {
	page, limit := pagination(c)
	vendors, err := h.vendors.List(c.Request.Context(), page, limit)
	if err != nil {
		slog.Error("Failed to list vendors", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to list vendors"})
		return
	}
	if vendors == nil {
		vendors = []*models.Vendor{}
	}
	c.JSON(http.StatusOK, gin.H{"vendors": vendors, "page": page, "limit": limit})
}

// GetVendor handles GET /api/v1/vendors/:phone
func (h *VendorHandler) GetVendor(c *gin.Context) {
	vendor, ok := h.lookup(c)
	if !ok {
		return
	}
	c.JSON(http.StatusOK, vendor)
}

// GetVendorStats handles GET /api/v1/vendors/:phone/stats
func (h *VendorHandler) GetVendorStats(c *gin.Context) {
	vendor, ok := h.lookup(c)
	if !ok {
		return
	}
	summary, err := h.stats.Today(c.Request.Context(), vendor)
	if err != nil {
		slog.Error("Failed to summarize vendor sales", "error", err, "vendorId", vendor.ID.Hex())
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to load stats"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"vendorId": vendor.ID, "today": summary, "walletBalance": vendor.WalletBalance})
}

func (h *VendorHandler) lookup(c *gin.Context) (*models.Vendor, bool) {
	vendor, err := h.vendors.FindByPhone(c.Request.Context(), c.Param("phone"))
	if err != nil {
		if errors.Is(err, services.ErrVendorNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Vendor not found"})
			return nil, false
		}
		slog.Error("Failed to look up vendor", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "Failed to look up vendor"})
		return nil, false
	}
	return vendor, true
}

// pagination reads page and limit query parameters, defaulting to page 1 of 20.
func pagination(c *gin.Context) (int, int) {
	page, err := strconv.Atoi(c.DefaultQuery("page", "1"))
	if err != nil || page < 1 {
		page = 1
	}
	limit, err := strconv.Atoi(c.DefaultQuery("limit", "20"))
	if err != nil || limit < 1 || limit > 100 {
		limit = 20
	}
	return page, limit
}
