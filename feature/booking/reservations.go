package booking

import (
	"context"
	"encoding/json"
	"net/url"
	"time"

	"trust-ledger/core/fields"

	"github.com/shopspring/decimal"
)

// LookbackWindow is how far before now the check-out filter always reaches.
const LookbackWindow = 30 * 24 * time.Hour

const reservationFields = "_id confirmationCode status checkIn checkOut checkInDateLocalized checkOutDateLocalized " +
	"listingId listing guest money"

// ReservationQuery narrows a reservation fetch.
type ReservationQuery struct {
	CheckInFrom  *time.Time
	CheckOutFrom *time.Time
}

// Filter is one element of the platform's JSON filters parameter.
type Filter struct {
	Operator string `json:"operator"`
	Field    string `json:"field"`
	Value    any    `json:"value"`
}

// Reservation is a normalized booking platform reservation.
type Reservation struct {
	ExternalID        string
	ExternalListingID string
	ConfirmationCode  string
	GuestName         string
	GuestEmail        string
	GuestPhone        string
	CheckIn           *time.Time
	CheckOut          *time.Time
	Status            string
	Subtotal          decimal.Decimal
	AccommodationFare decimal.Decimal
	CleaningFee       decimal.Decimal
	TaxAmount         decimal.Decimal
	HostServiceFee    decimal.Decimal
	GuestServiceFee   decimal.Decimal
	TotalPaid         decimal.Decimal
	BalanceDue        decimal.Decimal
	Currency          string
}

// Filters builds the filter list for q. Check-out never reaches further back than
// LookbackWindow before now.
func (q ReservationQuery) Filters(now time.Time) []Filter {
	checkOutFrom := now.Add(-LookbackWindow)
	if q.CheckOutFrom != nil && q.CheckOutFrom.After(checkOutFrom) {
		checkOutFrom = *q.CheckOutFrom
	}

	filters := []Filter{{Operator: "$gte", Field: "checkOut", Value: checkOutFrom.UTC().Format(time.RFC3339)}}
	if q.CheckInFrom != nil {
		filters = append(filters, Filter{Operator: "$gte", Field: "checkIn", Value: q.CheckInFrom.UTC().Format(time.RFC3339)})
	}
	return filters
}

// FetchReservations returns every reservation matching q, following pagination.
func (c *Client) FetchReservations(ctx context.Context, q ReservationQuery) ([]Reservation, error) {
	encoded, err := json.Marshal(q.Filters(c.now()))
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	query.Set("fields", reservationFields)
	query.Set("sort", "checkIn")
	query.Set("filters", string(encoded))
	return fetchPages(ctx, c, "/reservations", query, DecodeReservation)
}

// DecodeReservation maps one reservation payload. Only the id is required;
// every other field falls back to its zero value.
func DecodeReservation(rec fields.Record) (Reservation, bool) {
	id := rec.String("_id", "id", "reservationId")
	if id == "" {
		return Reservation{}, false
	}

	return Reservation{
		ExternalID:        id,
		ExternalListingID: rec.String("listingId", "listing._id", "listing.id"),
		ConfirmationCode:  rec.String("confirmationCode", "confirmation_code"),
		GuestName:         rec.String("guest.fullName", "guest.name", "guestName"),
		GuestEmail:        rec.String("guest.email", "guestEmail"),
		GuestPhone:        rec.String("guest.phone", "guestPhone"),
		CheckIn:           rec.Time("checkIn", "checkInDateLocalized", "check_in"),
		CheckOut:          rec.Time("checkOut", "checkOutDateLocalized", "check_out"),
		Status:            rec.String("status"),
		Subtotal:          rec.Decimal("money.subTotalPrice", "money.subtotal", "money.subTotal"),
		AccommodationFare: rec.Decimal("money.fareAccommodation", "money.fareAccommodationAdjusted", "money.accommodationFare"),
		CleaningFee:       rec.Decimal("money.fareCleaning", "money.cleaningFee"),
		TaxAmount:         rec.Decimal("money.totalTaxes", "money.taxes", "money.taxAmount"),
		HostServiceFee:    rec.Decimal("money.hostServiceFee", "money.hostServiceFeeIncTax"),
		GuestServiceFee:   rec.Decimal("money.guestServiceFee", "money.guestServiceFeeIncTax"),
		TotalPaid:         rec.Decimal("money.totalPaid", "money.paid"),
		BalanceDue:        rec.Decimal("money.balanceDue", "money.balance_due"),
		Currency:          rec.String("money.currency", "currency"),
	}, true
}
