package bot

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// Notification mode names accepted by /mode.
const (
	ModePreferred = "preferred"
	ModeNear      = "near"
	ModeGood      = "good"
)

// ProductArgs holds the parsed arguments of the /product command.
type ProductArgs struct {
	Price     float64
	Preferred bool
	Name      string
}

// ParseProductArgs parses arguments for /product.
// Format: <price> [-p] <name...>
func ParseProductArgs(args string) (ProductArgs, error) {
	parts := strings.Fields(args)
	if len(parts) < 2 {
		return ProductArgs{}, fmt.Errorf("usage: /product <price> [-p] <name>")
	}

	price, err := strconv.ParseFloat(parts[0], 64)
	if err != nil || price <= 0 {
		return ProductArgs{}, fmt.Errorf("invalid price %q", parts[0])
	}

	rest := parts[1:]
	preferred := false
	if rest[0] == "-p" {
		preferred = true
		rest = rest[1:]
	}
	if len(rest) == 0 {
		return ProductArgs{}, fmt.Errorf("product name is required")
	}

	return ProductArgs{
		Price:     price,
		Preferred: preferred,
		Name:      strings.Join(rest, " "),
	}, nil
}

// ParseModeArgs parses arguments for /mode.
// Format: <preferred|near|good> <on|off>
func ParseModeArgs(args string) (string, bool, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return "", false, fmt.Errorf("usage: /mode <preferred|near|good> <on|off>")
	}

	mode := strings.ToLower(parts[0])
	switch mode {
	case ModePreferred, ModeNear, ModeGood:
	default:
		return "", false, fmt.Errorf("invalid mode %q, use: preferred, near, good", parts[0])
	}

	var on bool
	switch strings.ToLower(parts[1]) {
	case "on":
		on = true
	case "off":
		on = false
	default:
		return "", false, fmt.Errorf("invalid state %q, use: on or off", parts[1])
	}
	return mode, on, nil
}

// ParseTermArg returns the trimmed free-text argument of a command.
func ParseTermArg(args string) (string, error) {
	s := strings.TrimSpace(args)
	if s == "" {
		return "", fmt.Errorf("argument is required")
	}
	return s, nil
}

// ParseExtendArgs extracts a chat ID and an expiry date from /extend arguments.
func ParseExtendArgs(args string) (int64, string, error) {
	parts := strings.Fields(args)
	if len(parts) != 2 {
		return 0, "", fmt.Errorf("usage: /extend <chat_id> <yyyy-mm-dd>")
	}
	chatID, err := strconv.ParseInt(parts[0], 10, 64)
	if err != nil {
		return 0, "", fmt.Errorf("invalid chat ID %q", parts[0])
	}
	if _, err := time.Parse(expiryLayout, parts[1]); err != nil {
		return 0, "", fmt.Errorf("invalid date %q, use YYYY-MM-DD", parts[1])
	}
	return chatID, parts[1], nil
}
