// Package storage defines the persistence interface and its implementations.
package storage

import (
	"context"

	"marketwatch_bot/internal/model"
)

// Storage is the interface for all persistence operations.
type Storage interface {
	CreateUser(ctx context.Context, user *model.User) error
	GetUserByChat(ctx context.Context, chatID int64) (*model.User, error)
	ListUsers(ctx context.Context) ([]model.User, error)
	SetUserActive(ctx context.Context, userID int64, active bool) error
	UpdateUserLocation(ctx context.Context, userID int64, location string, lat, lon float64) error
	UpdateUserModes(ctx context.Context, userID int64, modes model.Modes) error
	UpdateUserExpiry(ctx context.Context, userID int64, expiryDate string) error
	DeleteUser(ctx context.Context, userID int64) error

	AddKeyword(ctx context.Context, userID int64, keyword string) error
	RemoveKeyword(ctx context.Context, userID int64, keyword string) error
	AddExcludedWord(ctx context.Context, userID int64, word string) error
	RemoveExcludedWord(ctx context.Context, userID int64, word string) error

	AddProduct(ctx context.Context, userID int64, p *model.Product) error
	RemoveProduct(ctx context.Context, userID int64, name string) error
	ListProducts(ctx context.Context, chatID int64) ([]model.Product, error)

	Close() error
}
