package orders

import (
	"github.com/shopspring/decimal"
)

const moneyScale = 2

var hundred = decimal.NewFromInt(100)

// LinePrice is the computed price of one order item.
type LinePrice struct {
	Price      decimal.Decimal
	FinalPrice decimal.Decimal
	Discount   decimal.Decimal
}

// Totals aggregates line prices into order-level amounts.
type Totals struct {
	TotalAmount    decimal.Decimal
	DiscountAmount decimal.Decimal
	ShippingCharge decimal.Decimal
	FinalAmount    decimal.Decimal
}

// PriceLine computes price = unit*qty and final = price - price*discount/100,
// both rounded half-up to cents.
func PriceLine(unitPrice decimal.Decimal, qty int, discountPercent decimal.Decimal) LinePrice {
	price := unitPrice.Mul(decimal.NewFromInt(int64(qty))).Round(moneyScale)
	discount := price.Mul(discountPercent).Div(hundred).Round(moneyScale)
	final := price.Sub(discount)
	return LinePrice{
		Price:      price,
		FinalPrice: final,
		Discount:   discount,
	}
}

// SumTotals folds line prices and the flat shipping charge into order totals.
func SumTotals(lines []LinePrice, shipping decimal.Decimal) Totals {
	total := decimal.Zero
	discount := decimal.Zero
	for _, line := range lines {
		total = total.Add(line.FinalPrice)
		discount = discount.Add(line.Price.Sub(line.FinalPrice))
	}
	shipping = shipping.Round(moneyScale)
	return Totals{
		TotalAmount:    total,
		DiscountAmount: discount,
		ShippingCharge: shipping,
		FinalAmount:    total.Add(shipping),
	}
}
