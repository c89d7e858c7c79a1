package sync

import (
	"context"
	"errors"
	"testing"
	"time"

	"trust-ledger/core/database"
	"trust-ledger/feature/booking"
	"trust-ledger/feature/ledger"
	"trust-ledger/feature/ledger/models"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

type fakeSource struct {
	listings        []booking.Listing
	reservations    []booking.Reservation
	listingsErr     error
	reservationsErr error
	lastQuery       booking.ReservationQuery
}

func (f *fakeSource) FetchListings(context.Context) ([]booking.Listing, error) {
	return f.listings, f.listingsErr
}

func (f *fakeSource) FetchReservations(_ context.Context, q booking.ReservationQuery) ([]booking.Reservation, error) {
	f.lastQuery = q
	return f.reservations, f.reservationsErr
}

func setupStore(t *testing.T) *ledger.Store {
	db, err := database.Connect(database.Config{Driver: database.DriverSQLite, Name: ":memory:"})
	require.NoError(t, err)
	store := ledger.NewStore(db)
	require.NoError(t, store.Migrate())
	return store
}

var baseNow = time.Date(2024, 6, 10, 12, 0, 0, 0, time.UTC)

func at(days int) *time.Time {
	t := baseNow.AddDate(0, 0, days)
	return &t
}

func d(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sampleSource() *fakeSource {
	return &fakeSource{
		listings: []booking.Listing{
			{ExternalID: "L1", Name: "Beach House", City: "Tampa", IsActive: true},
			{ExternalID: "L2", Name: "Cabin", IsActive: false},
		},
		reservations: []booking.Reservation{
			{
				ExternalID: "R1", ExternalListingID: "L1", Status: "confirmed",
				CheckIn: at(7), CheckOut: at(10),
				AccommodationFare: d("900"), CleaningFee: d("100"), TaxAmount: d("0"),
				TotalPaid: d("1000"), BalanceDue: d("0"),
			},
			{
				ExternalID: "R2", ExternalListingID: "L2", Status: "checked_out",
				CheckIn: at(-10), CheckOut: at(-5),
				Subtotal: d("1200"), TaxAmount: d("100"), HostServiceFee: d("100"),
				TotalPaid: d("600"), BalanceDue: d("600"),
			},
			{
				ExternalID: "R3", ExternalListingID: "UNKNOWN", Status: "inquiry",
				CheckIn: at(3), CheckOut: at(5),
			},
		},
	}
}

func newTestEngine(t *testing.T, src Source) (*Engine, *ledger.Store) {
	store := setupStore(t)
	e := NewEngine(src, store, zap.NewNop())
	e.now = func() time.Time { return baseNow }
	return e, store
}

func TestSync_CreatesAndDerives(t *testing.T) {
	ctx := context.Background()
	src := sampleSource()
	e, store := newTestEngine(t, src)

	var progress []string
	out, err := e.Sync(ctx, Options{Progress: func(m string) { progress = append(progress, m) }})
	require.NoError(t, err)

	assert.Equal(t, 2, out.PropertiesCreated)
	assert.Equal(t, 0, out.PropertiesUpdated)
	assert.Equal(t, 3, out.ReservationsCreated)
	assert.Equal(t, 0, out.ReservationsSkipped)
	assert.Equal(t, baseNow, out.StartedAt)
	assert.Equal(t, []string{
		"Fetching listings", "Saving 2 properties",
		"Fetching reservations", "Saving 3 reservations",
		"Sync complete: 2 properties, 3 reservations",
	}, progress)

	r1, err := store.FindReservationByExternalID(ctx, "R1")
	require.NoError(t, err)
	require.NotNil(t, r1)
	assert.True(t, d("1000").Equal(r1.TotalAmount))
	assert.True(t, d("200").Equal(r1.ManagementFee))
	assert.True(t, d("800").Equal(r1.OwnerPayout))
	assert.True(t, d("1000").Equal(r1.DepositReceived))
	assert.True(t, r1.IsFullyPaid)
	assert.Equal(t, models.StatusConfirmed, r1.Status)
	require.NotNil(t, r1.PropertyID)

	l1, err := store.FindPropertyByExternalID(ctx, "L1")
	require.NoError(t, err)
	assert.Equal(t, l1.ID, *r1.PropertyID)

	r2, err := store.FindReservationByExternalID(ctx, "R2")
	require.NoError(t, err)
	assert.True(t, d("1200").Equal(r2.TotalAmount), "explicit subtotal wins")
	assert.True(t, d("200").Equal(r2.ManagementFee), "20% of 1000 net")
	assert.True(t, d("800").Equal(r2.OwnerPayout))
	assert.False(t, r2.IsFullyPaid)

	r3, err := store.FindReservationByExternalID(ctx, "R3")
	require.NoError(t, err)
	assert.Nil(t, r3.PropertyID, "unknown listing leaves the reservation unlinked")

	logs, err := store.ListSyncLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncSucceeded, logs[0].Status)
	assert.Equal(t, 3, logs[0].ReservationsCreated)
}

func TestSync_IsIdempotent(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, sampleSource())

	_, err := e.Sync(ctx, Options{})
	require.NoError(t, err)

	out, err := e.Sync(ctx, Options{})
	require.NoError(t, err)
	assert.Zero(t, out.PropertiesCreated)
	assert.Zero(t, out.ReservationsCreated)
	assert.Equal(t, 2, out.PropertiesUpdated)
	assert.Equal(t, 3, out.ReservationsUpdated)

	n, err := store.CountReservations(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(3), n)
	n, err = store.CountProperties(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)
}

func TestSync_UpdatesInPlace(t *testing.T) {
	ctx := context.Background()
	src := sampleSource()
	e, store := newTestEngine(t, src)

	_, err := e.Sync(ctx, Options{})
	require.NoError(t, err)
	before, err := store.FindReservationByExternalID(ctx, "R1")
	require.NoError(t, err)

	// Same data, different order and a changed guest name.
	src.reservations[0], src.reservations[2] = src.reservations[2], src.reservations[0]
	src.reservations[2].GuestName = "Grace Hopper"
	time.Sleep(5 * time.Millisecond)

	_, err = e.Sync(ctx, Options{})
	require.NoError(t, err)
	after, err := store.FindReservationByExternalID(ctx, "R1")
	require.NoError(t, err)

	assert.Equal(t, before.ID, after.ID)
	assert.Equal(t, "Grace Hopper", after.GuestName)
	assert.True(t, after.UpdatedAt.After(before.UpdatedAt))
	assert.Equal(t, before.CreatedAt.Unix(), after.CreatedAt.Unix())
}

func TestSync_CancellationStampedOnce(t *testing.T) {
	ctx := context.Background()
	src := sampleSource()
	e, store := newTestEngine(t, src)

	_, err := e.Sync(ctx, Options{})
	require.NoError(t, err)

	src.reservations[0].Status = "canceled"
	_, err = e.Sync(ctx, Options{})
	require.NoError(t, err)

	r1, err := store.FindReservationByExternalID(ctx, "R1")
	require.NoError(t, err)
	assert.True(t, r1.IsCancelled)
	require.NotNil(t, r1.CancelledAt)
	assert.Equal(t, baseNow.Unix(), r1.CancelledAt.Unix())

	e.now = func() time.Time { return baseNow.Add(48 * time.Hour) }
	_, err = e.Sync(ctx, Options{})
	require.NoError(t, err)

	r1, err = store.FindReservationByExternalID(ctx, "R1")
	require.NoError(t, err)
	assert.Equal(t, baseNow.Unix(), r1.CancelledAt.Unix())
}

func TestSync_KeepsLocalOnlyFields(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, sampleSource())

	_, err := e.Sync(ctx, Options{})
	require.NoError(t, err)

	owner := &models.Owner{Name: "Jane", ManagementFeePercent: decimal.NewNullDecimal(d("10"))}
	require.NoError(t, store.SaveOwner(ctx, owner))
	require.NoError(t, store.AssignOwner(ctx, "L2", owner.ID))

	r2, err := store.FindReservationByExternalID(ctx, "R2")
	require.NoError(t, err)
	r2.OwnerPaidOut = true
	_, err = store.SaveReservation(ctx, r2)
	require.NoError(t, err)

	_, err = e.Sync(ctx, Options{})
	require.NoError(t, err)

	r2, err = store.FindReservationByExternalID(ctx, "R2")
	require.NoError(t, err)
	assert.True(t, r2.OwnerPaidOut)
	assert.True(t, d("100").Equal(r2.ManagementFee), "owner 10% override applies after assignment")
	assert.True(t, d("900").Equal(r2.OwnerPayout))
}

func TestSync_SkipsInvalidReservations(t *testing.T) {
	ctx := context.Background()
	src := sampleSource()
	src.reservations = append(src.reservations,
		booking.Reservation{ExternalID: "BAD1", Status: "confirmed", CheckIn: at(5), CheckOut: at(2)},
		booking.Reservation{ExternalID: "BAD2", Status: "confirmed"},
		booking.Reservation{ExternalID: "BAD3", Status: "confirmed", CheckIn: at(1), CheckOut: at(2), CleaningFee: d("-5")},
		booking.Reservation{ExternalID: "OKCANCEL", Status: "cancelled"},
	)
	e, store := newTestEngine(t, src)

	out, err := e.Sync(ctx, Options{})
	require.NoError(t, err)
	assert.Equal(t, 4, out.ReservationsCreated)
	assert.Equal(t, 3, out.ReservationsSkipped)

	bad, err := store.FindReservationByExternalID(ctx, "BAD1")
	require.NoError(t, err)
	assert.Nil(t, bad)
}

func TestSync_PassesFilters(t *testing.T) {
	src := sampleSource()
	e, _ := newTestEngine(t, src)

	from := baseNow.AddDate(0, -1, 0)
	_, err := e.Sync(context.Background(), Options{CheckInFrom: &from})
	require.NoError(t, err)
	assert.Equal(t, &from, src.lastQuery.CheckInFrom)
	assert.Nil(t, src.lastQuery.CheckOutFrom)
}

func TestSync_AdapterErrorPropagatesAndKeepsPhaseOne(t *testing.T) {
	ctx := context.Background()
	src := sampleSource()
	fetchErr := errors.New("rate limited")
	src.reservationsErr = fetchErr
	e, store := newTestEngine(t, src)

	out, err := e.Sync(ctx, Options{})
	assert.Nil(t, out)
	assert.Same(t, fetchErr, err)

	n, err := store.CountProperties(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n)

	logs, err := store.ListSyncLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncFailed, logs[0].Status)
	assert.Equal(t, "rate limited", logs[0].Error)
	assert.Equal(t, 2, logs[0].PropertiesCreated)
}

func TestSync_ListingErrorStopsBeforeReservations(t *testing.T) {
	src := sampleSource()
	src.listingsErr = booking.ErrMissingCredentials
	e, store := newTestEngine(t, src)

	_, err := e.Sync(context.Background(), Options{})
	assert.ErrorIs(t, err, booking.ErrMissingCredentials)

	n, err := store.CountReservations(context.Background())
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestSync_StorageFailureAbortsPhase(t *testing.T) {
	ctx := context.Background()
	e, store := newTestEngine(t, sampleSource())
	require.NoError(t, store.DB().Migrator().DropTable(&models.Reservation{}))

	_, err := e.Sync(ctx, Options{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reservations")

	n, err := store.CountProperties(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(2), n, "properties phase stays committed")

	logs, err := store.ListSyncLogs(ctx, 10)
	require.NoError(t, err)
	require.Len(t, logs, 1)
	assert.Equal(t, models.SyncFailed, logs[0].Status)
}
