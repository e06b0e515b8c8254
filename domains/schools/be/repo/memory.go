package repo

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/zenGate-Global/schoolspace/domains/schools/be/service"
	"github.com/zenGate-Global/schoolspace/platform/go/tenant"
)

// MemoryRepository is an in-memory directory suitable for tests and local
// development. It also serves resolver lookups so a single instance can back
// both the admin service and the tenant middleware.
type MemoryRepository struct {
	mu     sync.RWMutex
	nextID int64
	byID   map[int64]service.School
	now    func() time.Time
}

// NewMemoryRepository constructs a MemoryRepository.
func NewMemoryRepository() *MemoryRepository {
	return &MemoryRepository{byID: make(map[int64]service.School), now: time.Now}
}

func (r *MemoryRepository) List(ctx context.Context, opts service.ListOptions) (service.ListResult, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	items := make([]service.School, 0, len(r.byID))
	for _, s := range r.byID {
		if opts.Status != nil && s.Status != *opts.Status {
			continue
		}
		items = append(items, s)
	}
	sort.Slice(items, func(i, j int) bool { return items[i].ID < items[j].ID })

	page, pageSize := opts.Page, opts.PageSize
	start := (page - 1) * pageSize
	end := start + pageSize
	if start > len(items) {
		start = len(items)
	}
	if end > len(items) {
		end = len(items)
	}

	return service.ListResult{
		Schools:    items[start:end],
		Page:       page,
		PageSize:   pageSize,
		TotalItems: len(items),
		TotalPages: (len(items) + pageSize - 1) / pageSize,
	}, nil
}

func (r *MemoryRepository) Get(ctx context.Context, id int64) (service.School, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	s, ok := r.byID[id]
	if !ok {
		return service.School{}, service.ErrNotFound
	}
	return s, nil
}

func (r *MemoryRepository) Create(ctx context.Context, s service.School) (service.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, existing := range r.byID {
		if existing.Code == s.Code || existing.Subdomain == s.Subdomain || existing.Namespace == s.Namespace {
			return service.School{}, service.ErrConflict
		}
	}

	r.nextID++
	s.ID = r.nextID
	s.CreatedAt = r.now().UTC()
	s.UpdatedAt = s.CreatedAt
	r.byID[s.ID] = s
	return s, nil
}

func (r *MemoryRepository) UpdateStatus(ctx context.Context, id int64, status tenant.Status) (service.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return service.School{}, service.ErrNotFound
	}
	s.Status = status
	s.UpdatedAt = r.now().UTC()
	r.byID[id] = s
	return s, nil
}

func (r *MemoryRepository) UpdateRouting(ctx context.Context, id int64, input service.RoutingInput) (service.School, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.byID[id]
	if !ok {
		return service.School{}, service.ErrNotFound
	}
	for otherID, other := range r.byID {
		if otherID == id {
			continue
		}
		if (input.Subdomain != nil && other.Subdomain == *input.Subdomain) || (input.Code != nil && other.Code == *input.Code) {
			return service.School{}, service.ErrConflict
		}
	}

	if input.Subdomain != nil {
		s.Subdomain = *input.Subdomain
	}
	if input.Code != nil {
		s.Code = *input.Code
	}
	s.UpdatedAt = r.now().UTC()
	r.byID[id] = s
	return s, nil
}

// Lookup implements the resolver directory. Keys are expected to be normalised.
func (r *MemoryRepository) Lookup(ctx context.Context, kind tenant.LookupKind, key string) (tenant.School, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, s := range r.byID {
		var match bool
		switch kind {
		case tenant.BySubdomain:
			match = s.Subdomain == key
		case tenant.ByCode:
			match = s.Code == key
		case tenant.ByID:
			match = formatID(s.ID) == key
		}
		if match {
			return s.School, nil
		}
	}
	return tenant.School{}, tenant.NotFound(kind, key)
}
