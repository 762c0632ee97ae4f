package bot

import (
	"fmt"
	"strings"

	"marketwatch_bot/internal/model"
	"marketwatch_bot/internal/schedule"
	"marketwatch_bot/internal/source"
)

// maxCheckResults caps how many listings a /check reply shows.
const maxCheckResults = 5

// FormatWelcome greets a freshly registered user.
func FormatWelcome(expiry string) string {
	return fmt.Sprintf(`Welcome to Marketwatch Bot!

Get notified the moment matching marketplace listings appear near you.
Your trial runs until %s.

Quick start:
1. /location melbourne — set your city
2. /watch mountain bike — watch a search term
3. /product 500 mountain bike — flag a good price

Use /help for the full command reference.`, expiry)
}

// FormatHelp returns the command reference.
func FormatHelp() string {
	return `Subscription:
/status — subscription and monitoring state
/pause — stop notifications
/resume — start notifications again
/reset — delete all your data

Watches:
/list — show watched terms
/watch <term> — watch a search term
/unwatch <term> — stop watching a term
/exclude <word> — hide listings containing a word
/rmexclude <word> — show them again
/check <term> — search once right now

Profile:
/location <city> — set the marketplace city
/home <address> — set where distances are measured from
/mode <preferred|near|good> <on|off> — notification filters

Price book:
/products — show saved products
/product <price> [-p] <name> — save a good price (-p marks preferred)
/rmproduct <name> — remove a product`
}

// FormatStatus summarizes a user's subscription and the monitoring window of
// their location.
func FormatStatus(u *model.User, st schedule.Status) string {
	var b strings.Builder

	state := "active"
	if !u.Active {
		state = "paused"
	}
	fmt.Fprintf(&b, "Subscription: %s (expires %s)\n", state, u.ExpiryDate)

	if u.Location == "" {
		b.WriteString("Location: not set — use /location <city>\n")
	} else {
		fmt.Fprintf(&b, "Location: %s\n", u.Location)
	}
	if u.Lat == 0 && u.Lon == 0 {
		b.WriteString("Home: not set — use /home <address>\n")
	} else {
		fmt.Fprintf(&b, "Home: %.4f, %.4f\n", u.Lat, u.Lon)
	}
	fmt.Fprintf(&b, "Modes: %s\n", formatModes(u.Modes))

	if u.Location != "" {
		label := "paused"
		if st.Active {
			label = "active"
		}
		fmt.Fprintf(&b, "\nMonitoring: %s\n%s\n", label, st.Reason)
		if !st.NextChange.IsZero() {
			fmt.Fprintf(&b, "Next change: %s (%s)\n", st.NextChange.Format("15:04"), st.NextStatus)
		}
	}
	return b.String()
}

// FormatWatchList lists a user's watched terms and excluded words.
func FormatWatchList(u *model.User) string {
	if len(u.Keywords) == 0 {
		return "You are not watching anything yet. Use /watch <term> to add one."
	}

	var b strings.Builder
	b.WriteString("Watched terms:\n")
	for i, kw := range u.Keywords {
		fmt.Fprintf(&b, "  %d. %s\n", i+1, kw)
	}
	if len(u.ExcludedWords) > 0 {
		fmt.Fprintf(&b, "\nExcluded words: %s\n", strings.Join(u.ExcludedWords, ", "))
	}
	return b.String()
}

// FormatProducts lists a user's price book.
func FormatProducts(products []model.Product) string {
	if len(products) == 0 {
		return "Your price book is empty. Use /product <price> [-p] <name> to add one."
	}

	var b strings.Builder
	b.WriteString("Your price book:\n")
	for i, p := range products {
		fmt.Fprintf(&b, "  %d. %s — good at $%.2f", i+1, p.Name, p.GoodPrice)
		if p.Preferred {
			b.WriteString(" [preferred]")
		}
		b.WriteString("\n")
	}
	return b.String()
}

// FormatListings renders /check results, capped at maxCheckResults.
func FormatListings(term, location, baseURL string, listings []model.Listing) string {
	if len(listings) == 0 {
		return fmt.Sprintf("No current listings for %q in %s.", term, location)
	}

	shown := listings
	if len(shown) > maxCheckResults {
		shown = shown[:maxCheckResults]
	}

	var b strings.Builder
	fmt.Fprintf(&b, "Top results for %q in %s:\n", term, location)
	for _, l := range shown {
		fmt.Fprintf(&b, "\n%s — %s\n%s\n", l.Price, l.Title, source.AbsoluteLink(baseURL, l.Link))
	}
	if extra := len(listings) - len(shown); extra > 0 {
		fmt.Fprintf(&b, "\nAnd %d more.", extra)
	}
	return b.String()
}

func formatModes(m model.Modes) string {
	onOff := func(v bool) string {
		if v {
			return "on"
		}
		return "off"
	}
	return fmt.Sprintf("preferred %s, near %s, good %s",
		onOff(m.OnlyPreferred), onOff(m.NearGoodDeals), onOff(m.GoodDeals))
}
