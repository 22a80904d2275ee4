// Package pricing derives order totals from cart lines. All amounts are whole rupees.
package pricing

const (
	FreeDeliveryThreshold int64 = 499
	BaseDeliveryFee       int64 = 40
	TaxPercent            int64 = 5
)

// Line is the minimum a pricer needs from a cart or order line.
type Line struct {
	UnitPrice int64
	Quantity  int
}

type Breakdown struct {
	Subtotal    int64 `json:"subtotal"`
	DeliveryFee int64 `json:"delivery_fee"`
	Tax         int64 `json:"tax"`
	Total       int64 `json:"total"`
}

func Subtotal(lines []Line) int64 {
	var sum int64
	for _, l := range lines {
		sum += l.UnitPrice * int64(l.Quantity)
	}
	return sum
}

// DeliveryFee is waived for an empty cart and at or above the free delivery threshold.
func DeliveryFee(subtotal int64) int64 {
	if subtotal <= 0 || subtotal >= FreeDeliveryThreshold {
		return 0
	}
	return BaseDeliveryFee
}

// Tax is TaxPercent of subtotal rounded half up to the nearest rupee. Subtotal is never negative.
func Tax(subtotal int64) int64 {
	if subtotal <= 0 {
		return 0
	}
	return (subtotal*TaxPercent + 50) / 100
}

func Compute(lines []Line) Breakdown {
	return FromSubtotal(Subtotal(lines))
}

func FromSubtotal(subtotal int64) Breakdown {
	fee := DeliveryFee(subtotal)
	tax := Tax(subtotal)
	return Breakdown{
		Subtotal:    subtotal,
		DeliveryFee: fee,
		Tax:         tax,
		Total:       subtotal + fee + tax,
	}
}

// AmountToFreeDelivery is how much more the customer must add to stop paying for delivery.
func AmountToFreeDelivery(subtotal int64) int64 {
	if subtotal <= 0 || subtotal >= FreeDeliveryThreshold {
		return 0
	}
	return FreeDeliveryThreshold - subtotal
}
