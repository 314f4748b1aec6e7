package repository

import (
	"context"

	"github.com/smallbiznis/schoolbill/pkg/db/option"
)

// Repository is a generic gorm-backed store for a single model. The query struct matches
// non-zero fields only; use option.ApplyOperator to filter on zero values such as false.
type Repository[T any] interface {
	Find(ctx context.Context, query *T, opts ...option.QueryOption) ([]*T, error)
	// FindOne returns nil, nil when nothing matches.
	FindOne(ctx context.Context, query *T, opts ...option.QueryOption) (*T, error)
	Create(ctx context.Context, resource *T) error
	Count(ctx context.Context, query *T, opts ...option.QueryOption) (int64, error)
}
