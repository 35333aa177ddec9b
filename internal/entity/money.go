package entity

import "github.com/shopspring/decimal"

var (
	// TaxRatePercent is the fixed VAT rate stored on invoice lines.
	TaxRatePercent = decimal.NewFromInt(20)

	taxFactor = TaxRatePercent.Shift(-2)
)

// LineTotal is unit price × quantity.
func LineTotal(unitPrice decimal.Decimal, quantity int) decimal.Decimal {
	return unitPrice.Mul(decimal.NewFromInt(int64(quantity)))
}

// TaxOn returns the tax due on amount.
func TaxOn(amount decimal.Decimal) decimal.Decimal {
	return amount.Mul(taxFactor)
}

// CalculateChange returns the change owed to the customer, never negative.
func CalculateChange(amountPaid, total decimal.Decimal) decimal.Decimal {
	change := amountPaid.Sub(total)
	if change.IsNegative() {
		return decimal.Zero
	}
	return change
}
