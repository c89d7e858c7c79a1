package booking

import (
	"context"
	"net/url"

	"trust-ledger/core/fields"
)

const listingFields = "_id title nickname address active isListed"

// Listing is a normalized booking platform listing.
type Listing struct {
	ExternalID  string
	Name        string
	AddressLine string
	City        string
	State       string
	PostalCode  string
	Country     string
	IsActive    bool
}

// FetchListings returns every listing, following pagination.
func (c *Client) FetchListings(ctx context.Context) ([]Listing, error) {
	query := url.Values{}
	query.Set("fields", listingFields)
	query.Set("sort", "_id")
	return fetchPages(ctx, c, "/listings", query, DecodeListing)
}

// DecodeListing maps one listing payload. Records without an id are rejected.
func DecodeListing(rec fields.Record) (Listing, bool) {
	id := rec.String("_id", "id", "listingId")
	if id == "" {
		return Listing{}, false
	}

	active, ok := rec.Bool("active", "isListed", "listed")
	if !ok {
		active = true
	}

	return Listing{
		ExternalID:  id,
		Name:        rec.String("title", "nickname", "name"),
		AddressLine: rec.String("address.full", "address.street", "address.line1"),
		City:        rec.String("address.city"),
		State:       rec.String("address.state"),
		PostalCode:  rec.String("address.zipcode", "address.zipCode", "address.postalCode"),
		Country:     rec.String("address.country"),
		IsActive:    active,
	}, true
}
