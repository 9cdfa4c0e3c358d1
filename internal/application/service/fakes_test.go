package service

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"sort"
	"strings"
	"sync"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"

	"github.com/sangkips/quotation-api/internal/domain/entity"
	"github.com/sangkips/quotation-api/internal/domain/repository"
	"github.com/sangkips/quotation-api/pkg/metrics"
	"github.com/sangkips/quotation-api/pkg/pagination"
	"github.com/sangkips/quotation-api/pkg/pricing"
)

type memQuotationRepo struct {
	mu       sync.Mutex
	rows     map[uuid.UUID]entity.Quotation
	writeErr error
}

func newMemQuotationRepo() *memQuotationRepo {
	return &memQuotationRepo{rows: map[uuid.UUID]entity.Quotation{}}
}

func visible(ctx context.Context, q entity.Quotation) bool {
	if repository.SkipsOwnerScope(ctx) {
		return true
	}
	owner, ok := repository.OwnerFromContext(ctx)
	return ok && owner == q.UserID
}

func cloneQuotation(q entity.Quotation) entity.Quotation {
	q.Items = append([]entity.QuotationItem(nil), q.Items...)
	return q
}

func (r *memQuotationRepo) Create(_ context.Context, q *entity.Quotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	r.rows[q.ID] = cloneQuotation(*q)
	return nil
}

func (r *memQuotationRepo) GetByID(ctx context.Context, id uuid.UUID) (*entity.Quotation, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.rows[id]
	if !ok || !visible(ctx, q) {
		return nil, nil
	}
	c := cloneQuotation(q)
	return &c, nil
}

func (r *memQuotationRepo) Replace(ctx context.Context, q *entity.Quotation) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.writeErr != nil {
		return r.writeErr
	}
	old, ok := r.rows[q.ID]
	if !ok || !visible(ctx, old) {
		return repository.ErrNotFound
	}
	r.rows[q.ID] = cloneQuotation(*q)
	return nil
}

func (r *memQuotationRepo) Delete(ctx context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	q, ok := r.rows[id]
	if !ok || !visible(ctx, q) {
		return repository.ErrNotFound
	}
	delete(r.rows, id)
	return nil
}

func (r *memQuotationRepo) matching(ctx context.Context, params *repository.QuotationFilterParams) []entity.Quotation {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.Quotation
	for _, q := range r.rows {
		if !visible(ctx, q) {
			continue
		}
		if s := strings.ToLower(params.Search); s != "" &&
			!strings.Contains(strings.ToLower(q.CustomerName), s) &&
			!strings.Contains(strings.ToLower(q.StoreName), s) {
			continue
		}
		out = append(out, cloneQuotation(q))
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Date.After(out[j].Date) })
	return out
}

func (r *memQuotationRepo) List(ctx context.Context, params *repository.QuotationFilterParams) ([]entity.Quotation, int64, error) {
	all := r.matching(ctx, params)
	start := params.Pagination.Offset()
	if start > len(all) {
		start = len(all)
	}
	end := start + params.Pagination.PerPage
	if end > len(all) {
		end = len(all)
	}
	return all[start:end], int64(len(all)), nil
}

func (r *memQuotationRepo) ListWithItems(ctx context.Context, params *repository.QuotationFilterParams, limit int) ([]entity.Quotation, error) {
	all := r.matching(ctx, params)
	if len(all) > limit {
		all = all[:limit]
	}
	return all, nil
}

func (r *memQuotationRepo) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.rows)
}

type memLogos struct {
	mu        sync.Mutex
	files     map[string][]byte
	next      int
	saveErr   error
	deleteErr error
}

func newMemLogos() *memLogos {
	return &memLogos{files: map[string][]byte{}}
}

func (l *memLogos) Save(_ context.Context, r io.Reader) (string, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.saveErr != nil {
		return "", l.saveErr
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}
	l.next++
	ref := fmt.Sprintf("logos/%d.png", l.next)
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
	if l.deleteErr != nil {
		return l.deleteErr
	}
	delete(l.files, ref)
	return nil
}

func (l *memLogos) has(ref string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	_, ok := l.files[ref]
	return ok
}

type memUserRepo struct {
	mu    sync.Mutex
	users map[uuid.UUID]entity.User
}

func newMemUserRepo(users ...entity.User) *memUserRepo {
	r := &memUserRepo{users: map[uuid.UUID]entity.User{}}
	for _, u := range users {
		r.users[u.ID] = u
	}
	return r
}

func (r *memUserRepo) Create(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if u.ID == uuid.Nil {
		u.ID = uuid.New()
	}
	r.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) GetByID(_ context.Context, id uuid.UUID) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	u, ok := r.users[id]
	if !ok {
		return nil, nil
	}
	return &u, nil
}

func (r *memUserRepo) GetByEmail(_ context.Context, addr string) (*entity.User, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, u := range r.users {
		if strings.EqualFold(u.Email, addr) {
			return &u, nil
		}
	}
	return nil, nil
}

func (r *memUserRepo) Update(_ context.Context, u *entity.User) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.users[u.ID] = *u
	return nil
}

func (r *memUserRepo) UpdatePassword(_ context.Context, id uuid.UUID, hash string) error {
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

func (r *memUserRepo) Delete(_ context.Context, id uuid.UUID) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.users, id)
	return nil
}

func (r *memUserRepo) List(_ context.Context, params *pagination.PaginationParams, search string) ([]entity.User, int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []entity.User
	for _, u := range r.users {
		if search == "" || strings.Contains(strings.ToLower(u.Name+" "+u.Email), strings.ToLower(search)) {
			out = append(out, u)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Email < out[j].Email })
	total := int64(len(out))
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

func requireDec(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	require.True(t, decimal.RequireFromString(want).Equal(got), "want %s, got %s", want, got)
}

type quotationFixture struct {
	svc   *QuotationService
	repo  *memQuotationRepo
	logos *memLogos
	logs  *bytes.Buffer
	m     *metrics.Metrics
}

func newQuotationFixture() *quotationFixture {
	logs := &bytes.Buffer{}
	f := &quotationFixture{
		repo:  newMemQuotationRepo(),
		logos: newMemLogos(),
		logs:  logs,
		m:     metrics.New("test", nil),
	}
	f.svc = NewQuotationService(f.repo, f.logos, pricing.NewCalculator(decimal.NewFromInt(18)), f.m, zerolog.New(logs))
	return f
}
