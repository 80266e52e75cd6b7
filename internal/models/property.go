package models

import (
	"encoding/json"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

type PropertyType string

const (
	PropertyTypeFlat  PropertyType = "flat"
	PropertyTypeHouse PropertyType = "house"
	PropertyTypePG    PropertyType = "pg"
)

func (t PropertyType) Valid() bool {
	switch t {
	case PropertyTypeFlat, PropertyTypeHouse, PropertyTypePG:
		return true
	}
	return false
}

type Property struct {
	gorm.Model
	Title       string         `json:"title" gorm:"not null"`
	Description string         `json:"description"`
	Price       float64        `json:"price" gorm:"not null"`
	Location    string         `json:"location" gorm:"index;not null"`
	Type        PropertyType   `json:"type" gorm:"not null"`
	OwnerID     uint           `json:"ownerId" gorm:"index;not null"`
	Latitude    *float64       `json:"latitude,omitempty"`
	Longitude   *float64       `json:"longitude,omitempty"`
	Images      datatypes.JSON `json:"images" gorm:"type:jsonb"`
}

// ImageURLs decodes the stored image list.
func (p *Property) ImageURLs() []string {
	var urls []string
	if len(p.Images) == 0 {
		return urls
	}
	_ = json.Unmarshal(p.Images, &urls)
	return urls
}

// AddImage appends a URL to the stored image list.
func (p *Property) AddImage(url string) {
	urls := append(p.ImageURLs(), url)
	data, _ := json.Marshal(urls)
	p.Images = datatypes.JSON(data)
}

// HasCoordinates reports whether the listing is geotagged.
func (p *Property) HasCoordinates() bool {
	return p.Latitude != nil && p.Longitude != nil
}
