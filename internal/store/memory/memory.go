package memory

import (
	"context"
	"fmt"
	"log"
	"os"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"

	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/ledger"
	"grocertrack/backend/internal/xid"
)

// Store keeps everything behind one RWMutex. Mutations stage their stock moves in a
// ledger.Staged and write them back only after every step succeeded.
type Store struct {
	mu              sync.RWMutex
	products        map[string]domain.Product
	variants        map[string]domain.ProductVariant
	priceHistory    map[string][]domain.VariantPriceHistory
	customers       map[string]domain.Customer
	sales           map[string]domain.Sale
	payments        map[string]domain.Payment
	suppliers       map[string]domain.Supplier
	purchases       map[string]domain.Purchase
	auditLogs       []domain.AuditLog
	usersByUsername map[string]domain.UserAccount
}

// seedUsers builds the initial in-memory accounts for dev/demo mode. Passwords come from
// SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD, with dev defaults when unset.
func seedUsers() map[string]domain.UserAccount {
	adminPwd := envOr("SEED_ADMIN_PASSWORD", "admin123")
	cashierPwd := envOr("SEED_CASHIER_PASSWORD", "cashier123")
	if os.Getenv("SEED_ADMIN_PASSWORD") == "" || os.Getenv("SEED_CASHIER_PASSWORD") == "" {
		log.Println("[memory-store] WARNING: using default dev credentials. Set SEED_ADMIN_PASSWORD and SEED_CASHIER_PASSWORD to override.")
	}

	now := time.Now().UTC()
	users := map[string]domain.UserAccount{}
	for _, u := range []struct {
		username string
		password string
		role     string
	}{
		{"admin", adminPwd, domain.RoleAdmin},
		{"cashier", cashierPwd, domain.RoleCashier},
	} {
		hash, err := bcrypt.GenerateFromPassword([]byte(u.password), bcrypt.DefaultCost)
		if err != nil {
			log.Fatalf("[memory-store] failed to hash seed password for %s: %v", u.username, err)
		}
		users[u.username] = domain.UserAccount{
			Username:  u.username,
			Password:  string(hash),
			Role:      u.role,
			Active:    true,
			CreatedAt: now,
		}
	}
	return users
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// New returns an empty store that only holds the seeded accounts.
func New() *Store {
	return &Store{
		products:        make(map[string]domain.Product),
		variants:        make(map[string]domain.ProductVariant),
		priceHistory:    make(map[string][]domain.VariantPriceHistory),
		customers:       make(map[string]domain.Customer),
		sales:           make(map[string]domain.Sale),
		payments:        make(map[string]domain.Payment),
		suppliers:       make(map[string]domain.Supplier),
		purchases:       make(map[string]domain.Purchase),
		auditLogs:       make([]domain.AuditLog, 0, 128),
		usersByUsername: seedUsers(),
	}
}

// NewSeeded returns a store with a small demo catalog, customers and a supplier.
func NewSeeded() *Store {
	s := New()
	now := time.Now().UTC()

	products := []domain.Product{
		{ID: "prod-rice", Name: "Basmati Rice", Category: "grains"},
		{ID: "prod-sugar", Name: "Sugar", Category: "grocery"},
		{ID: "prod-oil", Name: "Sunflower Oil", Category: "oil"},
		{ID: "prod-dal", Name: "Toor Dal", Category: "pulses"},
		{ID: "prod-tea", Name: "Tea", Category: "beverage"},
	}
	for _, p := range products {
		p.CreatedAt = now
		s.products[p.ID] = p
	}

	variants := []domain.ProductVariant{
		{ID: "var-rice-loose", ProductID: "prod-rice", Name: "Loose", Price: decimal.NewFromInt(90), Unit: domain.UnitKilogram, CurrentStock: decimal.NewFromInt(120)},
		{ID: "var-rice-bag", ProductID: "prod-rice", Name: "25kg Bag", Price: decimal.NewFromInt(2100), Unit: domain.UnitPiece, CurrentStock: decimal.NewFromInt(12)},
		{ID: "var-sugar-loose", ProductID: "prod-sugar", Name: "Loose", Price: decimal.NewFromInt(44), Unit: domain.UnitKilogram, CurrentStock: decimal.NewFromInt(80)},
		{ID: "var-oil-1l", ProductID: "prod-oil", Name: "1L Pouch", Price: decimal.NewFromInt(145), Unit: domain.UnitLitre, CurrentStock: decimal.NewFromInt(40)},
		{ID: "var-dal-1kg", ProductID: "prod-dal", Name: "1kg Packet", Price: decimal.NewFromInt(160), Unit: domain.UnitPacket, CurrentStock: decimal.NewFromInt(30)},
		{ID: "var-tea-250", ProductID: "prod-tea", Name: "250g Packet", Price: decimal.NewFromInt(120), Unit: domain.UnitPacket, CurrentStock: decimal.NewFromInt(25)},
	}
	for _, v := range variants {
		s.variants[v.ID] = v
	}

	customers := []domain.Customer{
		{ID: "cust-ravi", Name: "Ravi Kumar", Mobile: "9876500001", Address: "12 Market Road"},
		{ID: "cust-sunita", Name: "Sunita Devi", Mobile: "9876500002", Address: "4 Temple Street"},
		{ID: "cust-irfan", Name: "Mohammed Irfan", Mobile: "9876500003", Address: "88 Station Lane"},
	}
	for _, c := range customers {
		c.CreatedAt = now
		s.customers[c.ID] = c
	}

	s.suppliers["sup-sharma"] = domain.Supplier{
		ID:            "sup-sharma",
		Name:          "Sharma Wholesale",
		ContactPerson: "Anil Sharma",
		Mobile:        "9811100000",
		CreatedAt:     now,
	}
	return s
}

func (s *Store) ListProducts(_ context.Context) ([]domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	products := make([]domain.Product, 0, len(s.products))
	for _, p := range s.products {
		products = append(products, p)
	}
	slices.SortFunc(products, func(a, b domain.Product) int {
		return strings.Compare(a.Name, b.Name)
	})
	return products, nil
}

func (s *Store) CreateProduct(_ context.Context, product domain.Product) (*domain.Product, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.products {
		if strings.EqualFold(existing.Name, product.Name) {
			return nil, fmt.Errorf("%w: product %q already exists", domain.ErrConflict, product.Name)
		}
	}
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	s.products[product.ID] = product
	created := product
	return &created, nil
}

func (s *Store) GetProduct(_ context.Context, id string) (*domain.Product, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	product, ok := s.products[id]
	if !ok {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	return &product, nil
}

func (s *Store) DeleteProduct(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[id]; !ok {
		return fmt.Errorf("%w: product %s", domain.ErrNotFound, id)
	}
	owned := make([]string, 0, 4)
	for _, v := range s.variants {
		if v.ProductID != id {
			continue
		}
		if s.variantReferenced(v.ID) {
			return fmt.Errorf("%w: variant %s is referenced by sales or purchases", domain.ErrConflict, v.ID)
		}
		owned = append(owned, v.ID)
	}
	for _, variantID := range owned {
		delete(s.variants, variantID)
		delete(s.priceHistory, variantID)
	}
	delete(s.products, id)
	return nil
}

func (s *Store) ListVariants(_ context.Context, search string) ([]domain.ProductVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(search))
	variants := make([]domain.ProductVariant, 0, len(s.variants))
	for _, v := range s.variants {
		view := s.variantView(v)
		if needle != "" && !strings.Contains(strings.ToLower(view.DisplayName()), needle) {
			continue
		}
		variants = append(variants, view)
	}
	slices.SortFunc(variants, func(a, b domain.ProductVariant) int {
		if a.ProductName == b.ProductName {
			return strings.Compare(a.Name, b.Name)
		}
		return strings.Compare(a.ProductName, b.ProductName)
	})
	return variants, nil
}

func (s *Store) GetVariant(_ context.Context, id string) (*domain.ProductVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	v, ok := s.variants[id]
	if !ok {
		return nil, fmt.Errorf("%w: variant %s", domain.ErrNotFound, id)
	}
	view := s.variantView(v)
	return &view, nil
}

func (s *Store) GetVariantsByIDs(_ context.Context, ids []string) (map[string]domain.ProductVariant, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make(map[string]domain.ProductVariant, len(ids))
	for _, id := range ids {
		if v, ok := s.variants[id]; ok {
			result[id] = s.variantView(v)
		}
	}
	return result, nil
}

func (s *Store) CreateVariant(_ context.Context, variant domain.ProductVariant) (*domain.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.products[variant.ProductID]; !ok {
		return nil, fmt.Errorf("%w: product %s", domain.ErrNotFound, variant.ProductID)
	}
	for _, existing := range s.variants {
		if existing.ProductID == variant.ProductID && strings.EqualFold(existing.Name, variant.Name) {
			return nil, fmt.Errorf("%w: variant %q already exists", domain.ErrConflict, variant.Name)
		}
	}
	if variant.ID == "" {
		variant.ID = xid.New("var")
	}
	variant.ProductName = ""
	s.variants[variant.ID] = variant
	view := s.variantView(variant)
	return &view, nil
}

func (s *Store) UpdateVariant(_ context.Context, variant domain.ProductVariant) (*domain.ProductVariant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	existing, ok := s.variants[variant.ID]
	if !ok {
		return nil, fmt.Errorf("%w: variant %s", domain.ErrNotFound, variant.ID)
	}
	for _, other := range s.variants {
		if other.ID != existing.ID && other.ProductID == existing.ProductID && strings.EqualFold(other.Name, variant.Name) {
			return nil, fmt.Errorf("%w: variant %q already exists", domain.ErrConflict, variant.Name)
		}
	}
	existing.Name = variant.Name
	existing.Price = variant.Price
	existing.Unit = variant.Unit
	s.variants[existing.ID] = existing
	view := s.variantView(existing)
	return &view, nil
}

func (s *Store) CorrectStock(_ context.Context, variantID string, counted decimal.Decimal) (*domain.StockCorrection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	v, ok := s.variants[variantID]
	if !ok {
		return nil, fmt.Errorf("%w: variant %s", domain.ErrNotFound, variantID)
	}
	correction := domain.StockCorrection{
		VariantID:     variantID,
		PreviousStock: v.CurrentStock,
		CountedStock:  counted,
		Delta:         counted.Sub(v.CurrentStock),
		CorrectedAt:   time.Now().UTC(),
	}
	v.CurrentStock = counted
	s.variants[variantID] = v
	return &correction, nil
}

func (s *Store) DeleteVariant(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.variants[id]; !ok {
		return fmt.Errorf("%w: variant %s", domain.ErrNotFound, id)
	}
	if s.variantReferenced(id) {
		return fmt.Errorf("%w: variant %s is referenced by sales or purchases", domain.ErrConflict, id)
	}
	delete(s.variants, id)
	delete(s.priceHistory, id)
	return nil
}

func (s *Store) CreatePriceHistory(_ context.Context, entry domain.VariantPriceHistory) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("ph")
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	s.priceHistory[entry.VariantID] = append(s.priceHistory[entry.VariantID], entry)
	return nil
}

func (s *Store) ListPriceHistory(_ context.Context, variantID string, limit int) ([]domain.VariantPriceHistory, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history := s.priceHistory[variantID]
	result := make([]domain.VariantPriceHistory, len(history))
	copy(result, history)
	slices.SortFunc(result, func(a, b domain.VariantPriceHistory) int {
		if a.ChangedAt.Equal(b.ChangedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.ChangedAt.Compare(a.ChangedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) ListCustomers(_ context.Context, query domain.CustomerQuery) (domain.CustomerPage, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	needle := strings.ToLower(strings.TrimSpace(query.Search))
	matches := make([]domain.Customer, 0, len(s.customers))
	for _, c := range s.customers {
		if needle != "" &&
			!strings.Contains(strings.ToLower(c.Name), needle) &&
			!strings.Contains(strings.ToLower(c.Mobile), needle) &&
			!strings.Contains(strings.ToLower(c.Address), needle) {
			continue
		}
		c.Balance = s.customerTotals(c.ID).Balance()
		matches = append(matches, c)
	}

	slices.SortFunc(matches, func(a, b domain.Customer) int {
		switch query.Sort {
		case domain.CustomerSortNameDesc:
			return strings.Compare(b.Name, a.Name)
		case domain.CustomerSortBalance:
			if c := a.Balance.Cmp(b.Balance); c != 0 {
				return c
			}
		case domain.CustomerSortBalanceDesc:
			if c := b.Balance.Cmp(a.Balance); c != 0 {
				return c
			}
		}
		return strings.Compare(a.Name, b.Name)
	})

	page := domain.CustomerPage{Total: len(matches), Page: query.Page, PageSize: query.PageSize}
	if query.PageSize <= 0 {
		page.Page = 1
		page.Customers = matches
		return page, nil
	}
	if page.Page < 1 {
		page.Page = 1
	}
	start := (page.Page - 1) * query.PageSize
	if start >= len(matches) {
		page.Customers = []domain.Customer{}
		return page, nil
	}
	end := min(start+query.PageSize, len(matches))
	page.Customers = matches[start:end]
	return page, nil
}

func (s *Store) GetCustomer(_ context.Context, id string) (*domain.Customer, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", domain.ErrNotFound, id)
	}
	c.Balance = s.customerTotals(id).Balance()
	return &c, nil
}

func (s *Store) CreateCustomer(_ context.Context, customer domain.Customer) (*domain.Customer, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.customers {
		if strings.EqualFold(existing.Name, customer.Name) {
			return nil, fmt.Errorf("%w: customer %q already exists", domain.ErrConflict, customer.Name)
		}
	}
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	customer.Balance = decimal.Zero
	s.customers[customer.ID] = customer
	created := customer
	return &created, nil
}

func (s *Store) CustomerHistory(_ context.Context, id string) (*domain.CustomerDetail, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	c, ok := s.customers[id]
	if !ok {
		return nil, fmt.Errorf("%w: customer %s", domain.ErrNotFound, id)
	}
	return &domain.CustomerDetail{
		Customer: c,
		Sales:    s.salesOf(id),
		Payments: s.paymentsOf(id),
	}, nil
}

func (s *Store) CreateSupplier(_ context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, existing := range s.suppliers {
		if strings.EqualFold(existing.Name, supplier.Name) {
			return nil, fmt.Errorf("%w: supplier %q already exists", domain.ErrConflict, supplier.Name)
		}
	}
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	s.suppliers[supplier.ID] = supplier
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(_ context.Context) ([]domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	suppliers := make([]domain.Supplier, 0, len(s.suppliers))
	for _, supplier := range s.suppliers {
		suppliers = append(suppliers, supplier)
	}
	slices.SortFunc(suppliers, func(a, b domain.Supplier) int {
		return strings.Compare(a.Name, b.Name)
	})
	return suppliers, nil
}

func (s *Store) GetSupplier(_ context.Context, id string) (*domain.Supplier, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	supplier, ok := s.suppliers[id]
	if !ok {
		return nil, fmt.Errorf("%w: supplier %s", domain.ErrNotFound, id)
	}
	return &supplier, nil
}

func (s *Store) DeleteSupplier(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.suppliers[id]; !ok {
		return fmt.Errorf("%w: supplier %s", domain.ErrNotFound, id)
	}
	for purchaseID, p := range s.purchases {
		if p.SupplierID == id {
			p.SupplierID = ""
			s.purchases[purchaseID] = p
		}
	}
	delete(s.suppliers, id)
	return nil
}

func (s *Store) CreateAuditLog(_ context.Context, entry domain.AuditLog) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	s.auditLogs = append(s.auditLogs, entry)
	return nil
}

func (s *Store) ListAuditLogs(_ context.Context, limit int) ([]domain.AuditLog, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result := make([]domain.AuditLog, len(s.auditLogs))
	copy(result, s.auditLogs)
	slices.SortFunc(result, func(a, b domain.AuditLog) int {
		if a.CreatedAt.Equal(b.CreatedAt) {
			return strings.Compare(b.ID, a.ID)
		}
		return b.CreatedAt.Compare(a.CreatedAt)
	})
	if limit > 0 && len(result) > limit {
		result = result[:limit]
	}
	return result, nil
}

func (s *Store) CreateUser(_ context.Context, user domain.UserAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username := strings.ToLower(strings.TrimSpace(user.Username))
	if username == "" || strings.TrimSpace(user.Password) == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	if _, exists := s.usersByUsername[username]; exists {
		return fmt.Errorf("%w: user %s already exists", domain.ErrConflict, username)
	}
	user.Username = username
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}
	user.Active = true
	s.usersByUsername[user.Username] = user
	return nil
}

func (s *Store) ListUsers(_ context.Context) ([]domain.UserAccount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	users := make([]domain.UserAccount, 0, len(s.usersByUsername))
	for _, user := range s.usersByUsername {
		users = append(users, user)
	}
	slices.SortFunc(users, func(a, b domain.UserAccount) int {
		return strings.Compare(a.Username, b.Username)
	})
	return users, nil
}

func (s *Store) UpdateUserPassword(_ context.Context, username string, password string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	user, exists := s.usersByUsername[username]
	if !exists {
		return fmt.Errorf("%w: user %s", domain.ErrNotFound, username)
	}
	user.Password = password
	s.usersByUsername[username] = user
	return nil
}

// The helpers below expect s.mu to be held.

func (s *Store) variantView(v domain.ProductVariant) domain.ProductVariant {
	if p, ok := s.products[v.ProductID]; ok {
		v.ProductName = p.Name
	}
	return v
}

func (s *Store) variantReferenced(variantID string) bool {
	for _, sale := range s.sales {
		for _, item := range sale.Items {
			if item.VariantID == variantID {
				return true
			}
		}
	}
	for _, p := range s.purchases {
		if p.VariantID == variantID {
			return true
		}
	}
	return false
}

func (s *Store) customerTotals(customerID string) ledger.Totals {
	var totals ledger.Totals
	for _, sale := range s.sales {
		if sale.CustomerID == customerID {
			totals.Sales = totals.Sales.Add(sale.Total())
		}
	}
	for _, p := range s.payments {
		if p.CustomerID == customerID {
			totals.Payments = totals.Payments.Add(p.Amount)
		}
	}
	return totals
}
