// Package classify matches listings against per-user price books and decides
// whether a price qualifies as a deal.
package classify

import (
	"context"
	"log/slog"
	"strings"

	"marketwatch_bot/internal/model"
)

// nearDealMargin is how far above the good price a listing may sit and still
// count as a near good deal.
const nearDealMargin = 1.15

// Result is the outcome of classifying one listing for one user.
type Result struct {
	ProductName  string
	Preferred    bool
	GoodDeal     bool
	NearGoodDeal bool
}

// ProductLister loads a user's price book.
type ProductLister interface {
	ListProducts(ctx context.Context, chatID int64) ([]model.Product, error)
}

// Service classifies listings using price books loaded from storage.
type Service struct {
	store ProductLister
	log   *slog.Logger
}

// New creates a classification service.
func New(store ProductLister, log *slog.Logger) *Service {
	return &Service{store: store, log: log}
}

// Check matches the listing title against the user's products. The first
// product whose name is contained in the title (case-insensitive) wins. A
// price at or below the product's good price is a good deal; within
// nearDealMargin above it, a near good deal. Unparsable prices and storage
// errors classify as no match.
func (s *Service) Check(ctx context.Context, chatID int64, title, price string) Result {
	products, err := s.store.ListProducts(ctx, chatID)
	if err != nil {
		s.log.Error("failed to load price book", "chat_id", chatID, "error", err)
		return Result{}
	}

	lower := strings.ToLower(title)
	for _, p := range products {
		if p.Name == "" || !strings.Contains(lower, strings.ToLower(p.Name)) {
			continue
		}
		res := Result{ProductName: p.Name, Preferred: p.Preferred}
		value, ok := ParsePrice(price)
		if ok && p.GoodPrice > 0 {
			res.GoodDeal = value <= p.GoodPrice
			res.NearGoodDeal = !res.GoodDeal && value <= p.GoodPrice*nearDealMargin
		}
		return res
	}
	return Result{}
}
