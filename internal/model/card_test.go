package model

import (
	"testing"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestCard_SelectionTotal(t *testing.T) {
	itemA, itemB := uuid.New(), uuid.New()

	tests := []struct {
		name  string
		items []StagedItem
		want  string
	}{
		{name: "empty selection", items: nil, want: "0"},
		{
			name: "two lines",
			items: []StagedItem{
				{ItemID: itemA, UnitPrice: decimal.NewFromInt(100), Quantity: 2},
				{ItemID: itemB, UnitPrice: decimal.NewFromInt(150), Quantity: 1},
			},
			want: "350",
		},
		{
			name: "same item at two prices",
			items: []StagedItem{
				{ItemID: itemA, UnitPrice: decimal.RequireFromString("12.50"), Quantity: 3},
				{ItemID: itemA, UnitPrice: decimal.RequireFromString("0.10"), Quantity: 7},
			},
			want: "38.2",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			card := Card{StagedItems: tt.items}
			got := card.SelectionTotal()
			assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "got %s want %s", got, tt.want)
		})
	}
}

func TestStagedItem_Matches(t *testing.T) {
	id := uuid.New()
	line := StagedItem{ItemID: id, UnitPrice: decimal.RequireFromString("20.00")}

	assert.True(t, line.Matches(id, decimal.NewFromInt(20)))
	assert.False(t, line.Matches(id, decimal.NewFromInt(25)))
	assert.False(t, line.Matches(uuid.New(), decimal.NewFromInt(20)))
}

func TestEntryKind_IsCredit(t *testing.T) {
	assert.True(t, EntryKindRecharge.IsCredit())
	assert.True(t, EntryKindRefund.IsCredit())
	assert.False(t, EntryKindPurchase.IsCredit())
}

func TestItem_Prices(t *testing.T) {
	item := Item{
		Price:        decimal.NewFromInt(40),
		PriceOptions: []decimal.Decimal{decimal.NewFromInt(25), decimal.NewFromInt(60)},
	}
	prices := item.Prices()
	assert.Len(t, prices, 3)
	assert.True(t, prices[0].Equal(decimal.NewFromInt(40)))
}
