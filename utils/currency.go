package utils

import (
	"fmt"
)

// FormatRupees formats whole rupees with Indian digit grouping.
// Example: 1234567 -> "₹12,34,567"
func FormatRupees(amount int64) string {
	sign := ""
	if amount < 0 {
		sign = "-"
		amount = -amount
	}

	digits := fmt.Sprintf("%d", amount)
	if len(digits) <= 3 {
		return sign + "₹" + digits
	}

	// last three digits form one group, the rest are grouped in pairs
	head, tail := digits[:len(digits)-3], digits[len(digits)-3:]
	out := ""
	for len(head) > 2 {
		out = "," + head[len(head)-2:] + out
		head = head[:len(head)-2]
	}
	return sign + "₹" + head + out + "," + tail
}
