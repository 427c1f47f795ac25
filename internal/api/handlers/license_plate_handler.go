package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"soomhub/market/internal/models"
	"soomhub/market/internal/services"
	"soomhub/market/internal/storage"
)

// LicensePlateHandler serves the plate details of license_plate listings.
type LicensePlateHandler struct {
	plateService services.ILicensePlateService
	storage      storage.IS3Storage
}

func NewLicensePlateHandler(plateService services.ILicensePlateService, store storage.IS3Storage) *LicensePlateHandler {
	return &LicensePlateHandler{plateService: plateService, storage: store}
}

type LicensePlateRequest struct {
	Emirate   string           `json:"emirate" binding:"required,max=40"`
	Code      string           `json:"code" binding:"max=8"`
	Number    string           `json:"number" binding:"required,max=16"`
	PlateType models.PlateType `json:"plate_type" binding:"required"`
}

// PlateView is a plate with the public URL of its rendered image, when one exists.
type PlateView struct {
	*models.LicensePlate
	ImageURL string `json:"image_url,omitempty"`
}

func (h *LicensePlateHandler) view(plate *models.LicensePlate) PlateView {
	v := PlateView{LicensePlate: plate}
	if h.storage != nil && plate.ImageKey != "" {
		v.ImageURL = h.storage.PublicURL(plate.ImageKey)
	}
	return v
}

// SaveLicensePlate handles POST /v1/listings/:id/license-plate for the listing owner.
// The image is rendered on save; a rendering failure does not fail the request.
func (h *LicensePlateHandler) SaveLicensePlate(c *gin.Context) {
	userID, ok := currentUser(c)
	if !ok {
		return
	}
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	var req LicensePlateRequest
	if !bindJSON(c, &req) {
		return
	}
	plate, err := h.plateService.SaveLicensePlate(c.Request.Context(), listingID, userID, services.LicensePlateInput{
		Emirate:   req.Emirate,
		Code:      req.Code,
		Number:    req.Number,
		PlateType: req.PlateType,
	})
	if err != nil {
		respondError(c, err, "Failed to save license plate")
		return
	}
	c.JSON(http.StatusOK, h.view(plate))
}

func (h *LicensePlateHandler) GetLicensePlateByListing(c *gin.Context) {
	listingID, ok := paramID(c, "id")
	if !ok {
		return
	}
	plate, err := h.plateService.FindLicensePlateByListing(c.Request.Context(), listingID)
	if err != nil {
		respondError(c, err, "Failed to retrieve license plate")
		return
	}
	c.JSON(http.StatusOK, h.view(plate))
}

func (h *LicensePlateHandler) GetLicensePlate(c *gin.Context) {
	plateID, ok := paramID(c, "id")
	if !ok {
		return
	}
	plate, err := h.plateService.FindLicensePlateByID(c.Request.Context(), plateID)
	if err != nil {
		respondError(c, err, "Failed to retrieve license plate")
		return
	}
	c.JSON(http.StatusOK, h.view(plate))
}
