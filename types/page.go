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

package types

// PageRequest describes a 1-based page of rows with optional filters and
// ordering. It resolves to QueryOptions for a repository call.
type PageRequest struct {
	page     int
	pageSize int
	filters  []Filter
	order    *OrderBy
}

func (p *PageRequest) GetPageSize() int {
	if p.pageSize < 1 {
		p.pageSize = DefaultWindowSize
	}
	return p.pageSize
}

func (p *PageRequest) GetPage() int {
	if p.page < 1 {
		p.page = 1
	}
	return p.page
}

func (p *PageRequest) GetOffset() int {
	return (p.GetPage() - 1) * p.GetPageSize()
}

func (p *PageRequest) GetFilters() []Filter {
	return p.filters
}

func (p *PageRequest) GetOrder() *OrderBy {
	return p.order
}

// Options converts the request into QueryOptions selecting the page window.
func (p *PageRequest) Options() *QueryOptions {
	q := &QueryOptions{Filters: p.filters, OrderBy: p.order}
	return q.Paginate(p.GetPageSize(), p.GetOffset())
}

// NewPageRequest constructs a PageRequest with filters and ordering.
func NewPageRequest(page int, pageSize int, order *OrderBy, filters ...Filter) *PageRequest {
	return &PageRequest{page: page, pageSize: pageSize, filters: filters, order: order}
}

// NewDefaultPageRequest constructs a PageRequest with no filter or ordering.
func NewDefaultPageRequest(page int, pageSize int) *PageRequest {
	return NewPageRequest(page, pageSize, nil)
}

// Pagination holds one page of rows along with pagination metadata.
type Pagination[T any] struct {
	Page     int   `json:"page"`
	PageSize int   `json:"page_size"`
	Total    int64 `json:"total"`
	Items    []T   `json:"items"`
}

// NewDefaultPagination constructs an empty pagination container.
func NewDefaultPagination[T any](page int, pageSize int) *Pagination[T] {
	return &Pagination[T]{Page: page, PageSize: pageSize, Items: make([]T, 0)}
}

// Pages returns the number of pages needed for Total rows.
func (p *Pagination[T]) Pages() int {
	if p.PageSize < 1 || p.Total <= 0 {
		return 0
	}
	return int((p.Total + int64(p.PageSize) - 1) / int64(p.PageSize))
}
