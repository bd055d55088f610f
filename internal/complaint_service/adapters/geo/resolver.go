// Package geo resolves locally-correct timestamps for complaint postal
// codes via the Google Maps Geocoding and Time Zone APIs.
package geo

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"
	"googlemaps.github.io/maps"
)

// mapsClient captures the two Google Maps calls the resolver issues.
// *maps.Client satisfies it.
type mapsClient interface {
	Geocode(ctx context.Context, r *maps.GeocodingRequest) ([]maps.GeocodingResult, error)
	Timezone(ctx context.Context, r *maps.TimezoneRequest) (*maps.TimezoneResult, error)
}

// Resolver implements domain.TimeLocalizer. Lookup failure is never fatal:
// the caller gets the UTC instant back and the submission proceeds
// unlocalized.
type Resolver struct {
	client mapsClient
	logger *slog.Logger
	group  singleflight.Group
}

func NewResolver(client mapsClient, logger *slog.Logger) *Resolver {
	return &Resolver{client: client, logger: logger.With("component", "timezone_resolver")}
}

// Localize converts utc into the timezone of the postal code. Concurrent
// lookups for the same postal code are collapsed into one network round
// trip.
func (r *Resolver) Localize(ctx context.Context, postalCode string, utc time.Time) (time.Time, bool) {
	if r.client == nil || postalCode == "" {
		return utc, false
	}

	v, err, _ := r.group.Do(postalCode, func() (interface{}, error) {
		return r.lookupZone(ctx, postalCode, utc)
	})
	if err != nil {
		r.logger.WarnContext(ctx, "Timezone resolution failed; using UTC", "postal_code", postalCode, "error", err)
		return utc, false
	}
	return utc.In(v.(*time.Location)), true
}

func (r *Resolver) lookupZone(ctx context.Context, postalCode string, utc time.Time) (*time.Location, error) {
	results, err := r.client.Geocode(ctx, &maps.GeocodingRequest{Address: postalCode})
	if err != nil {
		return nil, fmt.Errorf("geocode %q: %w", postalCode, err)
	}
	if len(results) == 0 {
		return nil, fmt.Errorf("no location for %q", postalCode)
	}

	location := results[0].Geometry.Location
	tz, err := r.client.Timezone(ctx, &maps.TimezoneRequest{
		Location:  &location,
		Timestamp: utc,
	})
	if err != nil {
		return nil, fmt.Errorf("timezone for %q: %w", postalCode, err)
	}
	if tz == nil || tz.TimeZoneID == "" {
		return nil, fmt.Errorf("no timezone for %q", postalCode)
	}

	zone, err := time.LoadLocation(tz.TimeZoneID)
	if err != nil {
		return nil, fmt.Errorf("load zone %q: %w", tz.TimeZoneID, err)
	}
	return zone, nil
}
