package domain

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// MoneyScale is the number of decimal places stored for cost and price.
const MoneyScale = 2

// RoundMoney rounds d to MoneyScale places, half away from zero. Costs and
// prices are never negative, so this is half-up for every stored value.
func RoundMoney(d decimal.Decimal) decimal.Decimal {
	return d.Round(MoneyScale)
}

// WeightedAverageCost blends an incoming lot into the current valuation:
//
//	(currentStock*currentCost + incomingQty*incomingUnitCost) / (currentStock + incomingQty)
//
// When the combined quantity is zero there is no prior valued stock and the
// incoming unit cost is returned. The result is rounded with RoundMoney.
func WeightedAverageCost(currentStock int64, currentCost, incomingQty, incomingUnitCost decimal.Decimal) decimal.Decimal {
	stock := decimal.NewFromInt(currentStock)
	total := stock.Add(incomingQty)
	if total.IsZero() {
		return RoundMoney(incomingUnitCost)
	}

	value := stock.Mul(currentCost).Add(incomingQty.Mul(incomingUnitCost))
	return RoundMoney(value.Div(total))
}

// PriceAfterPosting applies the selling price policy of a purchase line: a
// present sell price replaces the current price outright, an absent one keeps
// it. changed reports whether the stored price differs afterwards.
func PriceAfterPosting(current decimal.Decimal, sellPrice *decimal.Decimal) (price decimal.Decimal, changed bool) {
	if sellPrice == nil {
		return current, false
	}
	next := RoundMoney(*sellPrice)
	if next.Equal(current) {
		return current, false
	}
	return next, true
}

// WholeUnits converts a quantity to a unit count. Product stock is counted in
// whole units, so fractional quantities are rejected.
func WholeUnits(qty decimal.Decimal) (int64, error) {
	if !qty.IsPositive() {
		return 0, fmt.Errorf("quantity must be positive, got %s", qty.String())
	}
	if !qty.IsInteger() {
		return 0, fmt.Errorf("quantity must be a whole number of units, got %s", qty.String())
	}
	return qty.IntPart(), nil
}
