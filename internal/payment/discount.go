package payment

import "github.com/nikkes174/VPNBot/internal/consts"

// Discount maps a referral count to a percentage off the base price.
func Discount(refCount int) int {
	switch {
	case refCount >= consts.DiscountFreeThreshold:
		return 100
	case refCount >= consts.DiscountQuarterThreshold:
		return 25
	case refCount >= consts.DiscountTenthThreshold:
		return 10
	default:
		return 0
	}
}
