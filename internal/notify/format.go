package notify

import (
	"fmt"

	"marketwatch_bot/internal/classify"
)

// Deal labels prefixed to notifications.
const (
	labelGoodDeal     = "✅ Good Deal @ "
	labelNearGoodDeal = "⚠️ Near Good Deal @ "
)

// Placeholders used when location enrichment comes up empty.
const (
	addressUnknown  = "Unknown Address"
	distanceUnknown = "Distance unknown"
)

// DealLabel maps a classification to the notification prefix.
func DealLabel(res classify.Result) string {
	switch {
	case res.GoodDeal:
		return labelGoodDeal
	case res.NearGoodDeal:
		return labelNearGoodDeal
	default:
		return ""
	}
}

// ProvisionalMessage is the immediate notification, sent before the
// listing's location is known.
func ProvisionalMessage(label, price, link string) string {
	return fmt.Sprintf("%sFor %s\nLink: %s", label, price, link)
}

// EnrichedMessage replaces the provisional text once the listing's address
// and distance have been resolved.
func EnrichedMessage(label, address, distance, price, link string) string {
	return fmt.Sprintf("%s%s (%s) For %s\nLink: %s", label, address, distance, price, link)
}

// FallbackMessage replaces the provisional text when the enrichment edit
// itself failed.
func FallbackMessage(label, price, link string) string {
	return fmt.Sprintf("%sLocation update failed. For %s\nLink: %s", label, price, link)
}
