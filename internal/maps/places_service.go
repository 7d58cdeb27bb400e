package maps

import (
	"context"
	"fmt"
	"strings"

	"googlemaps.github.io/maps"

	"tenkap/internal/types"
)

// Place represents a simplified nearby-search result.
type Place struct {
	Name             string
	PlaceID          string
	Location         types.Point
	Rating           float32
	UserRatingsTotal int
}

// PlacesService handles interactions with Google Places API.
type PlacesService struct {
	client    *maps.Client
	placeType maps.PlaceType
	minRating float32
	limit     int
}

// NewPlacesService creates a new PlacesService with the given API Key.
func NewPlacesService(apiKey string) (*PlacesService, error) {
	client, err := maps.NewClient(maps.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("failed to create maps client: %w", err)
	}
	return &PlacesService{
		client:    client,
		placeType: maps.PlaceTypeCafe,
		minRating: 4.0,
		limit:     5,
	}, nil
}

// excludedKeywords drop chains and venues that make poor meet-up spots.
var excludedKeywords = []string{"Starbucks Reserve Roastery", "Otopark", "Parking", "Benzin", "AVM Otoparkı"}

// SearchNearby lists well-rated places within radiusMeters of p, in the
// order the API ranks them.
func (s *PlacesService) SearchNearby(ctx context.Context, p types.Point, radiusMeters float64) ([]Place, error) {
	r := &maps.NearbySearchRequest{
		Location: &maps.LatLng{Lat: p.Lat, Lng: p.Lng},
		Radius:   uint(radiusMeters),
		Type:     s.placeType,
		Language: "tr",
		OpenNow:  true,
	}

	resp, err := s.client.NearbySearch(ctx, r)
	if err != nil {
		return nil, fmt.Errorf("places api error: %w", err)
	}

	var results []Place
	for _, result := range resp.Results {
		if result.Rating < s.minRating {
			continue
		}
		if excluded(result.Name) {
			continue
		}
		results = append(results, Place{
			Name:             result.Name,
			PlaceID:          result.PlaceID,
			Location:         types.Point{Lat: result.Geometry.Location.Lat, Lng: result.Geometry.Location.Lng},
			Rating:           result.Rating,
			UserRatingsTotal: result.UserRatingsTotal,
		})
		if len(results) >= s.limit {
			break
		}
	}
	return results, nil
}

func excluded(name string) bool {
	for _, kw := range excludedKeywords {
		if containsIgnoreCase(name, kw) {
			return true
		}
	}
	return false
}

func containsIgnoreCase(s, substr string) bool {
	return strings.Contains(strings.ToLower(s), strings.ToLower(substr))
}
