package shipping

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func setupParcelTest(t *testing.T) (*ParcelCarrier, *Store) {
	t.Helper()
	api := NewStore()
	c := NewParcelCarrier(api, zaptest.NewLogger(t))
	c.now = func() time.Time { return time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC) }
	return c, api
}

func shipmentTo(zip string, grams int) Request {
	return Request{
		OrderID:     7,
		Sender:      Party{Name: "Warehouse", Phone: "021555", Address: "Jl. Gudang 5, Bekasi 17111", ZipCode: "17111"},
		Receiver:    Party{Name: "Buyer", Phone: "0812", Address: "somewhere " + zip, ZipCode: zip},
		WeightGrams: grams,
		Package:     packageFor(grams),
	}
}

func TestStore_Charge(t *testing.T) {
	s := NewStore()
	tests := []struct {
		name   string
		weight int
		zip    string
		want   int64
	}{
		{"light", 500, "10220", 5000},
		{"two kilos", 2000, "10220", 5000},
		{"medium", 2001, "10220", 6000},
		{"five kilos", 5000, "10220", 6000},
		{"heavy", 8000, "10220", 8000},
		{"remote light", 500, "63000", 9000},
		{"remote heavy", 8000, "63123", 12000},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, s.charge(parcelRequest{Weight: tt.weight, ReceiverZip: tt.zip}))
		})
	}
}

func TestParcelCarrier_RegisterAndTrack(t *testing.T) {
	c, api := setupParcelTest(t)
	ctx := context.Background()

	resp, err := c.Register(ctx, shipmentTo("10220", 1500))
	require.NoError(t, err)
	assert.True(t, resp.Success)
	assert.Regexp(t, `^PC[0-9A-F]{12}$`, resp.TrackingNumber)
	assert.Equal(t, StatusRegistered, resp.Status)
	assert.Equal(t, int64(5000), resp.Cost)
	assert.Equal(t, "parcel", resp.Carrier)
	assert.Equal(t, time.Date(2024, 5, 3, 9, 0, 0, 0, time.UTC), resp.EstimatedDelivery)

	want := []Status{StatusPickedUp, StatusInTransit, StatusDelivered}
	for _, st := range want {
		require.True(t, api.Advance(resp.TrackingNumber))
		tr, err := c.Track(ctx, resp.TrackingNumber)
		require.NoError(t, err)
		assert.Equal(t, st, tr.Status)
	}
	assert.False(t, api.Advance(resp.TrackingNumber), "delivered is terminal")

	_, err = c.Track(ctx, "PC000000000000")
	assert.ErrorIs(t, err, ErrUnknownShipment)
}

func TestParcelCarrier_ExpressArrivesNextDay(t *testing.T) {
	c, _ := setupParcelTest(t)
	req := shipmentTo("10220", 500)
	req.Express = true
	resp, err := c.Register(context.Background(), req)
	require.NoError(t, err)
	assert.Equal(t, time.Date(2024, 5, 2, 9, 0, 0, 0, time.UTC), resp.EstimatedDelivery)
}

func TestParcelCarrier_Cancel(t *testing.T) {
	c, api := setupParcelTest(t)
	ctx := context.Background()

	resp, err := c.Register(ctx, shipmentTo("10220", 500))
	require.NoError(t, err)
	canceled, err := c.Cancel(ctx, resp.TrackingNumber, "order canceled")
	require.NoError(t, err)
	assert.Equal(t, StatusCanceled, canceled.Status)
	assert.False(t, api.Advance(resp.TrackingNumber))

	_, err = c.Cancel(ctx, resp.TrackingNumber, "again")
	assert.NoError(t, err, "canceling twice is harmless")

	picked, err := c.Register(ctx, shipmentTo("10220", 500))
	require.NoError(t, err)
	require.True(t, api.Advance(picked.TrackingNumber))
	_, err = c.Cancel(ctx, picked.TrackingNumber, "too late")
	assert.ErrorIs(t, err, ErrNotCancelable)

	_, err = c.Cancel(ctx, "PC000000000000", "nope")
	assert.ErrorIs(t, err, ErrUnknownShipment)
}

func TestBoxType(t *testing.T) {
	assert.Equal(t, "1", boxType(PackageBox))
	assert.Equal(t, "2", boxType(PackageEnvelope))
	assert.Equal(t, "3", boxType(PackageBag))
}
