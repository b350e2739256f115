/*
 * Copyright 2025 tomoncle.
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package budgetbase

import (
	"context"

	"github.com/tomoncle/budgetbase/repository"
	"github.com/tomoncle/budgetbase/types"
)

type Service[T any] interface {
	// Get returns a single row by its primary key, or nil when absent.
	Get(ctx context.Context, id any) (*T, error)

	// All returns every row of the table.
	All(ctx context.Context) ([]T, error)

	// List returns rows that match the provided options.
	List(ctx context.Context, opts *types.QueryOptions) ([]T, error)

	// Page returns one page of rows together with the total row count.
	Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error)

	// Save inserts a new row and returns it as stored.
	Save(ctx context.Context, fields types.Fields) (*T, error)

	// Update modifies an existing row, returning nil when it does not exist.
	Update(ctx context.Context, id any, fields types.Fields) (*T, error)

	// Delete removes a row by its primary key.
	Delete(ctx context.Context, id any) error

	// Count returns the number of rows matching filters.
	Count(ctx context.Context, filters ...types.Filter) (int64, error)

	// Repository exposes the underlying repository.
	Repository() repository.Repository[T]
}

type baseServiceImpl[T any] struct {
	repo repository.Repository[T]
}

// NewService returns a Service over repo.
func NewService[T any](repo repository.Repository[T]) Service[T] {
	return &baseServiceImpl[T]{repo: repo}
}

// NewServiceFor builds the repository for table with strategy and wraps it
// in a Service.
func NewServiceFor[T any](client repository.Client, table string, strategy repository.Strategy, opts ...repository.Option) (Service[T], error) {
	repo, err := repository.New[T](client, table, strategy, opts...)
	if err != nil {
		return nil, err
	}
	return NewService[T](repo), nil
}

func (s *baseServiceImpl[T]) Repository() repository.Repository[T] {
	return s.repo
}

func (s *baseServiceImpl[T]) Get(ctx context.Context, id any) (*T, error) {
	return s.repo.FindByID(ctx, id)
}

func (s *baseServiceImpl[T]) All(ctx context.Context) ([]T, error) {
	return s.repo.FindMany(ctx, nil)
}

func (s *baseServiceImpl[T]) List(ctx context.Context, opts *types.QueryOptions) ([]T, error) {
	return s.repo.FindMany(ctx, opts)
}

func (s *baseServiceImpl[T]) Page(ctx context.Context, page *types.PageRequest) (*types.Pagination[T], error) {
	if page == nil {
		page = types.NewDefaultPageRequest(1, types.DefaultWindowSize)
	}
	result := types.NewDefaultPagination[T](page.GetPage(), page.GetPageSize())
	total, err := s.repo.Count(ctx, page.GetFilters()...)
	if err != nil {
		return nil, err
	}
	result.Total = total
	if total == 0 || int64(page.GetOffset()) >= total {
		return result, nil
	}
	items, err := s.repo.FindMany(ctx, page.Options())
	if err != nil {
		return nil, err
	}
	result.Items = items
	return result, nil
}

func (s *baseServiceImpl[T]) Save(ctx context.Context, fields types.Fields) (*T, error) {
	return s.repo.Create(ctx, fields)
}

func (s *baseServiceImpl[T]) Update(ctx context.Context, id any, fields types.Fields) (*T, error) {
	return s.repo.Update(ctx, id, fields)
}

func (s *baseServiceImpl[T]) Delete(ctx context.Context, id any) error {
	return s.repo.Delete(ctx, id)
}

func (s *baseServiceImpl[T]) Count(ctx context.Context, filters ...types.Filter) (int64, error) {
	return s.repo.Count(ctx, filters...)
}
