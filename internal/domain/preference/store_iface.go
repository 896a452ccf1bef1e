package preference

import (
	"context"
	"time"
)

type StoreAPI interface {
	ListCategories(ctx context.Context) ([]Category, error)
	GetCategory(ctx context.Context, id string) (Category, error)
	CreateCategory(ctx context.Context, c Category) (Category, error)
	UpdateCategory(ctx context.Context, c Category) (Category, error)
	// DeleteCategory fails with ErrCategoryInUse while items reference it.
	DeleteCategory(ctx context.Context, id string) error

	ListItems(ctx context.Context, categoryID string) ([]Item, error)
	CreateItem(ctx context.Context, item Item) (Item, error)
	DeleteItem(ctx context.Context, id string) error

	UserValues(ctx context.Context, userID string) (map[string]StoredValue, error)
	SetUserValues(ctx context.Context, userID string, values map[string]bool, at time.Time) error
}
