package routes_test

import (
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"

	"github.com/google/uuid"

	"github.com/sangkips/quotation-api/internal/domain/entity"
	"github.com/sangkips/quotation-api/internal/domain/repository"
	"github.com/sangkips/quotation-api/pkg/pagination"
)

type memUsers struct {
	mu    sync.Mutex
	users map[uuid.UUID]entity.User
}

func (r *memUsers) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = *u
	return nil
}

func (r *memUsers) GetByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u, ok := r.users[id]; ok {
		return &u, nil
	}
	return nil, nil
}

func (r *memUsers) GetByEmail(_ context.Context, addr string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, addr) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *memUsers) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = *u
	return nil
}

func (r *memUsers) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.Password = hash
	r.users[id] = u
	return nil
}

func (r *memUsers) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, ok := r.users[id]; !ok {
		return repository.ErrNotFound
	}
	delete(r.users, id)
	return nil
}

func (r *memUsers) List(_ context.Context, params *pagination.PaginationParams, _ string) ([]entity.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]entity.User, 0, len(r.users))
	for _, u := range r.users {
		out = append(out, u)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	total := int64(len(out))
	params.Validate()
	start := params.Offset()
	if start > len(out) {
		start = len(out)
	}
	end := start + params.PerPage
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

type memQuotations struct {
	mu   sync.Mutex
	rows map[uuid.UUID]entity.Quotation
}

func canSee(ctx context.Context, q entity.Quotation) bool {
	if repository.SkipsOwnerScope(ctx) {
		return true
	}
	owner, ok := repository.OwnerFromContext(ctx)
	return ok && owner == q.UserID
}

func (r *memQuotations) Create(_ context.Context, q *entity.Quotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	c := *q
	c.Items = append([]entity.QuotationItem(nil), q.Items...)
	r.rows[q.ID] = c
	return nil
}

func (r *memQuotations) GetByID(ctx context.Context, id uuid.UUID) (*entity.Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.rows[id]
	if !ok || !canSee(ctx, q) {
		return nil, nil
	}
	q.Items = append([]entity.QuotationItem(nil), q.Items...)
	return &q, nil
}

func (r *memQuotations) Replace(ctx context.Context, q *entity.Quotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	old, ok := r.rows[q.ID]
	if !ok || !canSee(ctx, old) {
		return repository.ErrNotFound
	}
	c := *q
	c.Items = append([]entity.QuotationItem(nil), q.Items...)
	r.rows[q.ID] = c
	return nil
}

func (r *memQuotations) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.rows[id]
	if !ok || !canSee(ctx, q) {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memQuotations) all(ctx context.Context) []entity.Quotation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Quotation
	for _, q := range r.rows {
		if canSee(ctx, q) {
			out = append(out, q)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CustomerName < out[j].CustomerName })
	return out
}

func (r *memQuotations) List(ctx context.Context, params *repository.QuotationFilterParams) ([]entity.Quotation, int64, error) {
	out := r.all(ctx)
	total := int64(len(out))
	start := params.Pagination.Offset()
	if start > len(out) {
		start = len(out)
	}
	end := start + params.Pagination.PerPage
	if end > len(out) {
		end = len(out)
	}
	return out[start:end], total, nil
}

func (r *memQuotations) ListWithItems(ctx context.Context, _ *repository.QuotationFilterParams, limit int) ([]entity.Quotation, error) {
	out := r.all(ctx)
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

type memLogos struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (l *memLogos) Save(_ context.Context, r io.Reader) (string, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	ref := fmt.Sprintf("logos/%d.png", len(l.files)+1)
	l.files[ref] = data
	return ref, nil
}

func (l *memLogos) Open(_ context.Context, ref string) ([]byte, string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	data, ok := l.files[ref]
	if !ok {
		return nil, "", repository.ErrLogoNotFound
	}
	return data, "image/png", nil
}

func (l *memLogos) Delete(_ context.Context, ref string) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.files, ref)
	return nil
}

func (l *memLogos) count() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.files)
}

type memIdempotency struct {
	mu   sync.Mutex
	keys map[string]entity.IdempotencyKey
}

func (r *memIdempotency) GetByKey(_ context.Context, key string, userID uuid.UUID) (*entity.IdempotencyKey, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if k, ok := r.keys[userID.String()+"/"+key]; ok {
		return &k, nil
	}
	return nil, nil
}

func (r *memIdempotency) Create(_ context.Context, k *entity.IdempotencyKey) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.keys[k.UserID.String()+"/"+k.Key] = *k
	return nil
}

func (r *memIdempotency) DeleteExpired(context.Context) (int64, error) { return 0, nil }

type stubRenderer struct {
	mu   sync.Mutex
	html string
}

func (s *stubRenderer) RenderHTML(_ context.Context, html string) ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.html = html
	return []byte("%PDF-1.7 stub"), nil
}
