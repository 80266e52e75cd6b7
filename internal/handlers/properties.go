package handlers

import (
	"net/http"
	"strconv"
	"strings"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/services"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/gin-gonic/gin"
)

type PropertyRequest struct {
	Title       string   `json:"title" binding:"required,max=200"`
	Description string   `json:"description" binding:"max=5000"`
	Price       float64  `json:"price" binding:"required,gt=0"`
	Location    string   `json:"location" binding:"required"`
	Type        string   `json:"type" binding:"required,propertytype"`
	Latitude    *float64 `json:"latitude"`
	Longitude   *float64 `json:"longitude"`
}

func (r PropertyRequest) input() services.PropertyInput {
	return services.PropertyInput{
		Title:       r.Title,
		Description: r.Description,
		Price:       r.Price,
		Location:    r.Location,
		Type:        models.PropertyType(r.Type),
		Latitude:    r.Latitude,
		Longitude:   r.Longitude,
	}
}

func CreateProperty(properties *services.PropertyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req PropertyRequest
		if !bindJSON(c, &req) {
			return
		}
		property, err := properties.Create(c.Request.Context(), currentUserID(c), req.input())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusCreated, gin.H{"property": property})
	}
}

func UpdateProperty(properties *services.PropertyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		var req PropertyRequest
		if !bindJSON(c, &req) {
			return
		}
		property, err := properties.Update(c.Request.Context(), id, currentUserID(c), req.input())
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"property": property})
	}
}

func DeleteProperty(properties *services.PropertyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		if err := properties.Delete(c.Request.Context(), id, currentUserID(c)); err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"message": "Property deleted successfully"})
	}
}

func GetProperty(properties *services.PropertyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		property, err := properties.Get(c.Request.Context(), id)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"property": property})
	}
}

// ListProperties serves the public catalogue with optional filters.
func ListProperties(properties *services.PropertyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		listProperties(c, properties, 0)
	}
}

// GetMyProperties lists the caller's own listings.
func GetMyProperties(properties *services.PropertyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		listProperties(c, properties, currentUserID(c))
	}
}

func listProperties(c *gin.Context, properties *services.PropertyService, ownerID uint) {
	page, ok := pagination(c)
	if !ok {
		return
	}
	minPrice, ok := optionalFloat(c, "minPrice")
	if !ok {
		return
	}
	maxPrice, ok := optionalFloat(c, "maxPrice")
	if !ok {
		return
	}

	filter := store.PropertyFilter{
		OwnerID:  ownerID,
		Type:     models.PropertyType(strings.ToLower(c.Query("type"))),
		Location: strings.TrimSpace(c.Query("location")),
		MinPrice: minPrice,
		MaxPrice: maxPrice,
	}
	list, meta, err := properties.List(c.Request.Context(), filter, page)
	if err != nil {
		c.Error(err)
		return
	}
	c.JSON(http.StatusOK, pageResponse{Data: list, Pagination: meta})
}

// GetNearbyProperties finds geotagged listings around lat/lng.
func GetNearbyProperties(properties *services.PropertyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		lat, err := strconv.ParseFloat(c.Query("lat"), 64)
		if err != nil {
			c.Error(apperr.Validation("lat and lng are required"))
			return
		}
		lng, err := strconv.ParseFloat(c.Query("lng"), 64)
		if err != nil {
			c.Error(apperr.Validation("lat and lng are required"))
			return
		}
		radius := services.DefaultNearbyRadiusKm
		if raw := c.Query("radius"); raw != "" {
			if radius, err = strconv.ParseFloat(raw, 64); err != nil {
				c.Error(apperr.Validation("radius must be a number"))
				return
			}
		}

		nearby, err := properties.Nearby(c.Request.Context(), lat, lng, radius)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"properties": nearby, "count": len(nearby)})
	}
}

// UploadPropertyImage stores the multipart "image" field and appends its URL.
func UploadPropertyImage(properties *services.PropertyService) gin.HandlerFunc {
	return func(c *gin.Context) {
		id, ok := uintParam(c, "id")
		if !ok {
			return
		}
		file, err := c.FormFile("image")
		if err != nil {
			c.Error(apperr.Validation("image file is required"))
			return
		}
		property, err := properties.AddImage(c.Request.Context(), id, currentUserID(c), file)
		if err != nil {
			c.Error(err)
			return
		}
		c.JSON(http.StatusOK, gin.H{"property": property, "images": property.ImageURLs()})
	}
}
