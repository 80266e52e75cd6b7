package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"mime/multipart"
	"sort"
	"strings"

	"github.com/chachabrian/propnest-backend/internal/apperr"
	"github.com/chachabrian/propnest-backend/internal/models"
	"github.com/chachabrian/propnest-backend/internal/store"
	"github.com/chachabrian/propnest-backend/pkg/utils"
	"github.com/sirupsen/logrus"
)

const (
	DefaultNearbyRadiusKm = 5.0
	MaxNearbyRadiusKm     = 50.0
	MaxImagesPerProperty  = 10
)

type PropertyService struct {
	store  *store.Store
	images ImageStore
	log    logrus.FieldLogger
}

type PropertyInput struct {
	Title       string
	Description string
	Price       float64
	Location    string
	Type        models.PropertyType
	Latitude    *float64
	Longitude   *float64
}

type NearbyProperty struct {
	models.Property
	DistanceKm float64 `json:"distanceKm"`
}

func NewPropertyService(s *store.Store, images ImageStore, log logrus.FieldLogger) *PropertyService {
	return &PropertyService{store: s, images: images, log: log}
}

func (in *PropertyInput) validate() error {
	in.Title = strings.TrimSpace(in.Title)
	in.Location = strings.TrimSpace(in.Location)
	if in.Title == "" || in.Location == "" {
		return apperr.Validation("title and location are required")
	}
	if in.Price <= 0 || math.IsInf(in.Price, 0) || math.IsNaN(in.Price) {
		return apperr.Validation("price must be greater than zero")
	}
	if !in.Type.Valid() {
		return apperr.Validation("type must be one of flat, house, pg")
	}
	if (in.Latitude == nil) != (in.Longitude == nil) {
		return apperr.Validation("latitude and longitude must be given together")
	}
	if in.Latitude != nil && !utils.ValidCoordinates(*in.Latitude, *in.Longitude) {
		return apperr.Validation("invalid coordinates")
	}
	return nil
}

func (in PropertyInput) apply(p *models.Property) {
	p.Title = in.Title
	p.Description = strings.TrimSpace(in.Description)
	p.Price = in.Price
	p.Location = in.Location
	p.Type = in.Type
	p.Latitude = in.Latitude
	p.Longitude = in.Longitude
}

func (s *PropertyService) Create(ctx context.Context, ownerID uint, in PropertyInput) (*models.Property, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	property := &models.Property{OwnerID: ownerID}
	in.apply(property)
	if err := s.store.CreateProperty(ctx, property); err != nil {
		return nil, apperr.Internal("failed to create property", err)
	}
	s.log.WithFields(logrus.Fields{"property_id": property.ID, "owner_id": ownerID}).Info("property listed")
	return property, nil
}

func (s *PropertyService) Get(ctx context.Context, id uint) (*models.Property, error) {
	property, err := s.store.GetProperty(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return nil, apperr.NotFound("Property not found")
	}
	if err != nil {
		return nil, apperr.Internal("failed to load property", err)
	}
	return property, nil
}

func (s *PropertyService) owned(ctx context.Context, id, callerID uint) (*models.Property, error) {
	property, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if property.OwnerID != callerID {
		return nil, apperr.Authorization("You do not own this property")
	}
	return property, nil
}

func (s *PropertyService) Update(ctx context.Context, id, callerID uint, in PropertyInput) (*models.Property, error) {
	if err := in.validate(); err != nil {
		return nil, err
	}
	property, err := s.owned(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	in.apply(property)
	if err := s.store.UpdateProperty(ctx, property); err != nil {
		return nil, apperr.Internal("failed to update property", err)
	}
	return property, nil
}

func (s *PropertyService) Delete(ctx context.Context, id, callerID uint) error {
	property, err := s.owned(ctx, id, callerID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteProperty(ctx, id); err != nil {
		return apperr.Internal("failed to delete property", err)
	}
	for _, url := range property.ImageURLs() {
		if err := s.images.Delete(ctx, url); err != nil {
			s.log.WithField("url", url).WithError(err).Warn("failed to delete property image")
		}
	}
	return nil
}

func (s *PropertyService) List(ctx context.Context, filter store.PropertyFilter, page utils.Pagination) ([]models.Property, utils.PageMeta, error) {
	if filter.Type != "" && !filter.Type.Valid() {
		return nil, utils.PageMeta{}, apperr.Validation("type must be one of flat, house, pg")
	}
	if filter.MinPrice != nil && filter.MaxPrice != nil && *filter.MinPrice > *filter.MaxPrice {
		return nil, utils.PageMeta{}, apperr.Validation("minPrice must not exceed maxPrice")
	}
	properties, total, err := s.store.ListProperties(ctx, filter, page)
	if err != nil {
		return nil, utils.PageMeta{}, apperr.Internal("failed to list properties", err)
	}
	if properties == nil {
		properties = []models.Property{}
	}
	return properties, utils.NewPageMeta(page, total), nil
}

// Nearby returns properties within radiusKm of the point, closest first.
func (s *PropertyService) Nearby(ctx context.Context, lat, lng, radiusKm float64) ([]NearbyProperty, error) {
	if !utils.ValidCoordinates(lat, lng) {
		return nil, apperr.Validation("invalid coordinates")
	}
	if radiusKm <= 0 {
		radiusKm = DefaultNearbyRadiusKm
	}
	if radiusKm > MaxNearbyRadiusKm {
		return nil, apperr.Validation(fmt.Sprintf("radius must not exceed %.0f km", MaxNearbyRadiusKm))
	}

	candidates, err := s.store.ListPropertiesInBox(ctx, utils.GetBoundingBox(lat, lng, radiusKm))
	if err != nil {
		return nil, apperr.Internal("failed to search properties", err)
	}

	nearby := make([]NearbyProperty, 0, len(candidates))
	for _, p := range candidates {
		if !p.HasCoordinates() {
			continue
		}
		d := utils.HaversineDistance(lat, lng, *p.Latitude, *p.Longitude)
		if d <= radiusKm {
			nearby = append(nearby, NearbyProperty{Property: p, DistanceKm: math.Round(d*100) / 100})
		}
	}
	sort.Slice(nearby, func(i, j int) bool { return nearby[i].DistanceKm < nearby[j].DistanceKm })
	return nearby, nil
}

// AddImage uploads an image and appends its URL to the property.
func (s *PropertyService) AddImage(ctx context.Context, id, callerID uint, file *multipart.FileHeader) (*models.Property, error) {
	property, err := s.owned(ctx, id, callerID)
	if err != nil {
		return nil, err
	}
	if len(property.ImageURLs()) >= MaxImagesPerProperty {
		return nil, apperr.Validation(fmt.Sprintf("a property can have at most %d images", MaxImagesPerProperty))
	}

	url, err := UploadImage(ctx, s.images, file, fmt.Sprintf("properties/%d", property.ID))
	if err != nil {
		return nil, err
	}
	property.AddImage(url)
	if err := s.store.UpdateProperty(ctx, property); err != nil {
		return nil, apperr.Internal("failed to save image", err)
	}
	return property, nil
}
