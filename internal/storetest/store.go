// Package storetest provides in-memory implementations of the service
// store interfaces for tests.  They follow the repository contracts:
// mutations are tenant-scoped and failures use the repository sentinels.
package storetest

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/iliyamo/canteen-ledger/internal/model"
	"github.com/iliyamo/canteen-ledger/internal/queue"
	"github.com/iliyamo/canteen-ledger/internal/repository"
)

// Store holds every table in memory.  *Store itself is the user store;
// the other stores are views returned by ProductRepo, ConsumptionRepo and
// NotificationRepo.  Fields may be inspected and seeded directly by tests
// that do not run concurrently.
type Store struct {
	mu            sync.Mutex
	Users         map[string]*model.User
	Products      map[string]*model.Product
	Consumptions  []model.Consumption
	Notifications []model.Notification
	// FailClear, when set, is returned by ClearDebt without touching data.
	FailClear error
}

func New() *Store {
	return &Store{Users: map[string]*model.User{}, Products: map[string]*model.Product{}}
}

func (m *Store) ProductRepo() ProductRepo           { return ProductRepo{m} }
func (m *Store) ConsumptionRepo() ConsumptionRepo   { return ConsumptionRepo{m} }
func (m *Store) NotificationRepo() NotificationRepo { return NotificationRepo{m} }

func (m *Store) AddUser(u model.User) *model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := u
	m.Users[u.ID] = &cp
	return &cp
}

func (m *Store) AddProduct(id, adminID, price string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Products[id] = &model.Product{ID: id, AdminID: adminID, Name: id, Price: decimal.RequireFromString(price), Available: true}
}

func (m *Store) Consume(userID, productID string, qty int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Consumptions = append(m.Consumptions, model.Consumption{ID: uuid.NewString(), UserID: userID, ProductID: productID, Quantity: qty})
}

// users

func (m *Store) Create(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, o := range m.Users {
		switch {
		case strings.EqualFold(o.Email, u.Email):
			return repository.ErrDuplicateEmail
		case o.Phone == u.Phone:
			return repository.ErrDuplicatePhone
		case strings.EqualFold(o.WarName, u.WarName):
			return repository.ErrDuplicateWarName
		}
	}
	if u.ID == "" {
		u.ID = uuid.NewString()
	}
	cp := *u
	m.Users[u.ID] = &cp
	return nil
}

func (m *Store) GetByID(ctx context.Context, id string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *u
	return &cp, nil
}

func (m *Store) GetByEmail(ctx context.Context, email string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.Email == email {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Store) FindByIdentifier(ctx context.Context, ident string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var byName *model.User
	for _, u := range m.Users {
		if strings.ToLower(u.Email) == ident {
			cp := *u
			return &cp, nil
		}
		if strings.ToLower(u.WarName) == ident {
			byName = u
		}
	}
	if byName == nil {
		return nil, repository.ErrNotFound
	}
	cp := *byName
	return &cp, nil
}

func (m *Store) GetByResetToken(ctx context.Context, tokenHash string) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.Users {
		if u.ResetToken != nil && *u.ResetToken == tokenHash {
			cp := *u
			return &cp, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (m *Store) ListNonAdmins(ctx context.Context) ([]*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*model.User
	for _, u := range m.Users {
		if !u.IsAdmin {
			cp := *u
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].WarName < out[j].WarName })
	return out, nil
}

func (m *Store) UpdateProfile(ctx context.Context, id string, upd model.ProfileUpdate) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return repository.ErrNotFound
	}
	set := func(dst *string, v *string) {
		if v != nil {
			*dst = *v
		}
	}
	set(&u.WarName, upd.WarName)
	set(&u.Rank, upd.Rank)
	set(&u.Company, upd.Company)
	set(&u.Phone, upd.Phone)
	if upd.PixKey != nil {
		u.PixKey = upd.PixKey
	}
	if upd.PixQrCode != nil {
		u.PixQrCode = upd.PixQrCode
	}
	return nil
}

func (m *Store) SetResetToken(ctx context.Context, id, tokenHash string, exp time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.ResetToken, u.ResetTokenExpiry = &tokenHash, &exp
	return nil
}

func (m *Store) UpdatePassword(ctx context.Context, id, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.PasswordHash, u.ResetToken, u.ResetTokenExpiry = &hash, nil, nil
	return nil
}

func (m *Store) SetAdmin(ctx context.Context, id string, admin bool) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.Users[id]
	if !ok {
		return repository.ErrNotFound
	}
	u.IsAdmin = admin
	return nil
}

// ProductRepo is the product store view.
type ProductRepo struct{ *Store }

func (p ProductRepo) Create(ctx context.Context, pr *model.Product) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if pr.ID == "" {
		pr.ID = uuid.NewString()
	}
	cp := *pr
	p.Products[pr.ID] = &cp
	return nil
}

func (p ProductRepo) GetByID(ctx context.Context, id string) (*model.Product, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	pr, ok := p.Products[id]
	if !ok {
		return nil, repository.ErrNotFound
	}
	cp := *pr
	return &cp, nil
}

func (p ProductRepo) Update(ctx context.Context, pr *model.Product) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.Products[pr.ID]
	if !ok || cur.AdminID != pr.AdminID {
		return repository.ErrNotFound
	}
	cp := *pr
	p.Products[pr.ID] = &cp
	return nil
}

func (p ProductRepo) Delete(ctx context.Context, id, adminID string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	cur, ok := p.Products[id]
	if !ok || cur.AdminID != adminID {
		return repository.ErrNotFound
	}
	for _, c := range p.Consumptions {
		if c.ProductID == id {
			return repository.ErrConflict
		}
	}
	delete(p.Products, id)
	return nil
}

func (p ProductRepo) List(ctx context.Context, f model.ProductFilter) ([]model.ProductWithAdmin, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := []model.ProductWithAdmin{}
	for _, pr := range p.Products {
		if f.AdminID != "" && pr.AdminID != f.AdminID {
			continue
		}
		if !f.IncludeUnavailable && !pr.Available {
			continue
		}
		a := p.Users[pr.AdminID]
		out = append(out, model.ProductWithAdmin{Product: *pr, Admin: model.AdminRef{ID: a.ID, WarName: a.WarName}})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// ConsumptionRepo is the consumption store view.
type ConsumptionRepo struct{ *Store }

func (c ConsumptionRepo) lineLocked(cons model.Consumption) model.ConsumptionLine {
	pr := c.Products[cons.ProductID]
	a := c.Users[pr.AdminID]
	return model.ConsumptionLine{Consumption: cons, Product: model.LineProduct{
		ID: pr.ID, Name: pr.Name, Price: pr.Price,
		Admin: model.AdminRef{ID: a.ID, WarName: a.WarName},
	}}
}

func (c ConsumptionRepo) Create(ctx context.Context, cons *model.Consumption) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, ok := c.Users[cons.UserID]; !ok {
		return repository.ErrNotFound
	}
	if _, ok := c.Products[cons.ProductID]; !ok {
		return repository.ErrNotFound
	}
	cons.ID = uuid.NewString()
	c.Consumptions = append(c.Consumptions, *cons)
	return nil
}

func (c ConsumptionRepo) ListLines(ctx context.Context, f model.LineFilter) ([]model.ConsumptionLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := []model.ConsumptionLine{}
	for _, cons := range c.Consumptions {
		l := c.lineLocked(cons)
		if f.UserID != "" && cons.UserID != f.UserID {
			continue
		}
		if f.AdminID != "" && l.Product.Admin.ID != f.AdminID {
			continue
		}
		out = append(out, l)
	}
	return out, nil
}

func (c ConsumptionRepo) GetLine(ctx context.Context, id string) (*model.ConsumptionLine, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, cons := range c.Consumptions {
		if cons.ID == id {
			l := c.lineLocked(cons)
			return &l, nil
		}
	}
	return nil, repository.ErrNotFound
}

func (c ConsumptionRepo) Delete(ctx context.Context, id, adminID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i, cons := range c.Consumptions {
		if cons.ID == id && c.Products[cons.ProductID].AdminID == adminID {
			c.Consumptions = append(c.Consumptions[:i], c.Consumptions[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (c ConsumptionRepo) ClearDebt(ctx context.Context, userID, adminID string, n *model.Notification) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.FailClear != nil {
		return 0, c.FailClear
	}
	kept := c.Consumptions[:0:0]
	var cleared int64
	for _, cons := range c.Consumptions {
		if cons.UserID == userID && c.Products[cons.ProductID].AdminID == adminID {
			cleared++
			continue
		}
		kept = append(kept, cons)
	}
	c.Consumptions = kept
	n.ID = uuid.NewString()
	c.Notifications = append(c.Notifications, *n)
	return cleared, nil
}

// NotificationRepo is the notification store view.
type NotificationRepo struct{ *Store }

func (s NotificationRepo) ListByUser(ctx context.Context, userID string, limit, offset int) ([]model.Notification, int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var mine []model.Notification
	for _, n := range s.Notifications {
		if n.UserID == userID {
			mine = append(mine, n)
		}
	}
	total := len(mine)
	if offset >= total {
		return nil, total, nil
	}
	end := offset + limit
	if end > total {
		end = total
	}
	return mine[offset:end], total, nil
}

func (s NotificationRepo) MarkRead(ctx context.Context, userID string, ids []string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	want := map[string]bool{}
	for _, id := range ids {
		want[id] = true
	}
	var n int64
	for i := range s.Notifications {
		if s.Notifications[i].UserID == userID && want[s.Notifications[i].ID] {
			s.Notifications[i].IsRead = true
			n++
		}
	}
	return n, nil
}

func (s NotificationRepo) MarkOneRead(ctx context.Context, userID, id string) error {
	n, _ := s.MarkRead(ctx, userID, []string{id})
	if n == 0 {
		return repository.ErrNotFound
	}
	return nil
}

func (s NotificationRepo) DeleteAll(ctx context.Context, userID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.Notifications[:0:0]
	var n int64
	for _, x := range s.Notifications {
		if x.UserID == userID {
			n++
			continue
		}
		kept = append(kept, x)
	}
	s.Notifications = kept
	return n, nil
}

// Publisher records published events and returns Err.
type Publisher struct {
	mu     sync.Mutex
	Events []queue.DebtClearedEvent
	Err    error
}

func (p *Publisher) PublishDebtCleared(ctx context.Context, ev queue.DebtClearedEvent) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.Events = append(p.Events, ev)
	return p.Err
}
