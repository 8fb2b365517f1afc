package expiry

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummarizeLosses(t *testing.T) {
	tests := []struct {
		name       string
		records    []LossRecord
		wantLoss   string
		wantUnits  int
		wantMonths int
	}{
		{
			name:       "empty",
			records:    nil,
			wantLoss:   "0",
			wantUnits:  0,
			wantMonths: 0,
		},
		{
			name: "two months",
			records: []LossRecord{
				{ExpirationMonth: date(2024, 1, 1), TotalLoss: decimal.NewFromInt(100), ExpiredUnitCount: 10},
				{ExpirationMonth: date(2024, 2, 1), TotalLoss: decimal.NewFromInt(50), ExpiredUnitCount: 5},
			},
			wantLoss:   "150",
			wantUnits:  15,
			wantMonths: 2,
		},
		{
			name: "negative values count as zero",
			records: []LossRecord{
				{TotalLoss: decimal.RequireFromString("12.345"), ExpiredUnitCount: 3},
				{TotalLoss: decimal.NewFromInt(-20), ExpiredUnitCount: -2},
			},
			wantLoss:   "12.345",
			wantUnits:  3,
			wantMonths: 2,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := SummarizeLosses(tt.records)
			assert.Equal(t, tt.wantLoss, got.TotalLoss.String())
			assert.Equal(t, tt.wantUnits, got.TotalExpiredUnits)
			assert.Equal(t, tt.wantMonths, got.MonthsWithLoss)
		})
	}
}

func TestMonth(t *testing.T) {
	got := Month(time.Date(2024, 2, 29, 17, 45, 0, 0, time.UTC))
	assert.Equal(t, date(2024, 2, 1), got)
}

func TestExpiredLotLosses(t *testing.T) {
	ref := date(2024, 5, 10)
	lots := []Lot{
		{ID: "old", ExpirationDate: date(2024, 4, 30), CurrentQuantity: 4, PurchasePrice: price("2.50")},
		{ID: "fresh", ExpirationDate: date(2024, 8, 1), CurrentQuantity: 9, PurchasePrice: price("1")},
		{ID: "today", ExpirationDate: date(2024, 5, 10), CurrentQuantity: 1, PurchasePrice: price("1")},
		{ID: "no-cost", ExpirationDate: date(2024, 5, 9), CurrentQuantity: 6},
		{ID: "bad-qty", ExpirationDate: date(2024, 5, 8), CurrentQuantity: -2, PurchasePrice: price("3")},
	}

	got := ExpiredLotLosses(lots, ref)
	require.Len(t, got, 3)

	assert.Equal(t, "old", got[0].Lot.ID)
	assert.Equal(t, 10, got[0].DaysExpired)
	assert.Equal(t, 4, got[0].Units)
	assert.Equal(t, "10.00", got[0].EconomicLoss.StringFixed(2))

	assert.Equal(t, "no-cost", got[1].Lot.ID)
	assert.True(t, got[1].EconomicLoss.IsZero())

	assert.Equal(t, "bad-qty", got[2].Lot.ID)
	assert.Equal(t, 0, got[2].Units)
	assert.True(t, got[2].EconomicLoss.IsZero())
}
