package validator

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type lineInput struct {
	ProductID string           `json:"product_id" validate:"required,uuid"`
	Qty       decimal.Decimal  `json:"qty" validate:"gt=0"`
	UnitCost  decimal.Decimal  `json:"unit_cost" validate:"gte=0"`
	SellPrice *decimal.Decimal `json:"sell_price,omitempty" validate:"omitempty,gte=0"`
	Notes     string           `validate:"max=5"`
}

type orderInput struct {
	Direction string      `json:"direction" validate:"oneof=IN OUT"`
	Lines     []lineInput `json:"lines" validate:"min=1,dive"`
}

func validLine() lineInput {
	return lineInput{
		ProductID: "550e8400-e29b-41d4-a716-446655440000",
		Qty:       decimal.NewFromInt(10),
		UnitCost:  decimal.RequireFromString("7.00"),
	}
}

func fieldsOf(t *testing.T, err error) map[string]string {
	t.Helper()
	var valErr *ValidationError
	require.ErrorAs(t, err, &valErr)
	return valErr.Fields()
}

func TestValidate_Valid(t *testing.T) {
	assert.NoError(t, Validate(validLine()))
	assert.NoError(t, Validate(orderInput{Direction: "IN", Lines: []lineInput{validLine()}}))
}

func TestValidate_FieldMessages(t *testing.T) {
	negative := decimal.NewFromInt(-1)

	tests := []struct {
		name   string
		mutate func(*lineInput)
		field  string
		want   string
	}{
		{"required", func(l *lineInput) { l.ProductID = "" }, "product_id", "is required"},
		{"uuid", func(l *lineInput) { l.ProductID = "not-a-uuid" }, "product_id", "must be a valid UUID"},
		{"decimal gt", func(l *lineInput) { l.Qty = decimal.Zero }, "qty", "must be greater than 0"},
		{"decimal gte", func(l *lineInput) { l.UnitCost = decimal.RequireFromString("-0.01") }, "unit_cost", "must be greater than or equal to 0"},
		{"optional pointer", func(l *lineInput) { l.SellPrice = &negative }, "sell_price", "must be greater than or equal to 0"},
		{"untagged name", func(l *lineInput) { l.Notes = "too long" }, "Notes", "must be at most 5 characters"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			line := validLine()
			tt.mutate(&line)

			fields := fieldsOf(t, Validate(line))
			assert.Equal(t, tt.want, fields[tt.field])
			assert.Len(t, fields, 1)
		})
	}
}

func TestValidate_NestedPaths(t *testing.T) {
	bad := validLine()
	bad.Qty = decimal.Zero

	err := Validate(orderInput{Direction: "SIDEWAYS", Lines: []lineInput{validLine(), bad}})

	fields := fieldsOf(t, err)
	assert.Equal(t, "must be one of: IN OUT", fields["direction"])
	assert.Equal(t, "must be greater than 0", fields["lines[1].qty"])
	assert.Contains(t, err.Error(), "field 'lines[1].qty'")
}

func TestValidate_EmptySlice(t *testing.T) {
	fields := fieldsOf(t, Validate(orderInput{Direction: "OUT"}))

	assert.Equal(t, "must have at least 1 items", fields["lines"])
}

func TestValidate_NotAStruct(t *testing.T) {
	err := Validate("plain string")

	require.Error(t, err)
	var valErr *ValidationError
	assert.NotErrorAs(t, err, &valErr)
}
