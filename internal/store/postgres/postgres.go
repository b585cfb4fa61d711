package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"
	"github.com/shopspring/decimal"

	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/ledger"
	"grocertrack/backend/internal/xid"
)

type Store struct {
	db *sql.DB
}

// querier is satisfied by both *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

func New(ctx context.Context, databaseURL string) (*Store, error) {
	db, err := sql.Open("pgx", databaseURL)
	if err != nil {
		return nil, err
	}

	db.SetMaxIdleConns(8)
	db.SetMaxOpenConns(30)
	db.SetConnMaxLifetime(30 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 6*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, err
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) ListProducts(ctx context.Context) ([]domain.Product, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, category, created_at
		FROM products
		ORDER BY name
	`)
	if err != nil {
		return nil, mapErr(err, "list products")
	}
	defer rows.Close()

	products := make([]domain.Product, 0, 64)
	for rows.Next() {
		var p domain.Product
		if err := rows.Scan(&p.ID, &p.Name, &p.Category, &p.CreatedAt); err != nil {
			return nil, mapErr(err, "scan product")
		}
		p.CreatedAt = p.CreatedAt.UTC()
		products = append(products, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list products")
	}
	return products, nil
}

func (s *Store) CreateProduct(ctx context.Context, product domain.Product) (*domain.Product, error) {
	if product.ID == "" {
		product.ID = xid.New("prod")
	}
	if product.CreatedAt.IsZero() {
		product.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO products (id, name, category, created_at)
		VALUES ($1,$2,$3,$4)
	`, product.ID, product.Name, product.Category, product.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "create product")
	}
	created := product
	return &created, nil
}

func (s *Store) GetProduct(ctx context.Context, id string) (*domain.Product, error) {
	var p domain.Product
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, category, created_at
		FROM products
		WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Category, &p.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "product "+id)
	}
	p.CreatedAt = p.CreatedAt.UTC()
	return &p, nil
}

// DeleteProduct cascades to the product's variants. A variant still referenced by a sale
// item or purchase makes the foreign key refuse the whole delete.
func (s *Store) DeleteProduct(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM products WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "delete product "+id)
	}
	return expectAffected(res, domain.ErrNotFound, "product "+id)
}

const variantColumns = `v.id, v.product_id, p.name, v.name, v.price, v.unit, v.current_stock`

func scanVariant(row interface{ Scan(dest ...any) error }) (domain.ProductVariant, error) {
	var v domain.ProductVariant
	err := row.Scan(&v.ID, &v.ProductID, &v.ProductName, &v.Name, &v.Price, &v.Unit, &v.CurrentStock)
	return v, err
}

func (s *Store) ListVariants(ctx context.Context, search string) ([]domain.ProductVariant, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+variantColumns+`
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE $1 = '' OR (p.name || ' (' || v.name || ')') ILIKE $1
		ORDER BY p.name, v.name
	`, likePattern(search))
	if err != nil {
		return nil, mapErr(err, "list variants")
	}
	defer rows.Close()

	variants := make([]domain.ProductVariant, 0, 128)
	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, mapErr(err, "scan variant")
		}
		variants = append(variants, v)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list variants")
	}
	return variants, nil
}

func (s *Store) GetVariant(ctx context.Context, id string) (*domain.ProductVariant, error) {
	v, err := scanVariant(s.db.QueryRowContext(ctx, `
		SELECT `+variantColumns+`
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = $1
	`, id))
	if err != nil {
		return nil, mapErr(err, "variant "+id)
	}
	return &v, nil
}

func (s *Store) GetVariantsByIDs(ctx context.Context, ids []string) (map[string]domain.ProductVariant, error) {
	result := make(map[string]domain.ProductVariant, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+variantColumns+`
		FROM product_variants v
		JOIN products p ON p.id = v.product_id
		WHERE v.id = ANY($1)
	`, ids)
	if err != nil {
		return nil, mapErr(err, "load variants")
	}
	defer rows.Close()

	for rows.Next() {
		v, err := scanVariant(rows)
		if err != nil {
			return nil, mapErr(err, "scan variant")
		}
		result[v.ID] = v
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "load variants")
	}
	return result, nil
}

func (s *Store) CreateVariant(ctx context.Context, variant domain.ProductVariant) (*domain.ProductVariant, error) {
	if variant.ID == "" {
		variant.ID = xid.New("var")
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO product_variants (id, product_id, name, price, unit, current_stock)
		SELECT $1,$2,$3,$4,$5,$6
		WHERE EXISTS (SELECT 1 FROM products WHERE id = $2)
	`, variant.ID, variant.ProductID, variant.Name, variant.Price, variant.Unit, variant.CurrentStock)
	if err != nil {
		return nil, mapErr(err, "create variant")
	}
	if err := expectAffected(res, domain.ErrNotFound, "product "+variant.ProductID); err != nil {
		return nil, err
	}
	return s.GetVariant(ctx, variant.ID)
}

func (s *Store) UpdateVariant(ctx context.Context, variant domain.ProductVariant) (*domain.ProductVariant, error) {
	res, err := s.db.ExecContext(ctx, `
		UPDATE product_variants
		SET name = $2, price = $3, unit = $4
		WHERE id = $1
	`, variant.ID, variant.Name, variant.Price, variant.Unit)
	if err != nil {
		return nil, mapErr(err, "update variant "+variant.ID)
	}
	if err := expectAffected(res, domain.ErrNotFound, "variant "+variant.ID); err != nil {
		return nil, err
	}
	return s.GetVariant(ctx, variant.ID)
}

func (s *Store) CorrectStock(ctx context.Context, variantID string, counted decimal.Decimal) (*domain.StockCorrection, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, mapErr(err, "begin stock correction")
	}
	defer func() { _ = pgTx.Rollback() }()

	var previous decimal.Decimal
	err = pgTx.QueryRowContext(ctx, `
		SELECT current_stock FROM product_variants WHERE id = $1 FOR UPDATE
	`, variantID).Scan(&previous)
	if err != nil {
		return nil, mapErr(err, "variant "+variantID)
	}
	if _, err := pgTx.ExecContext(ctx, `
		UPDATE product_variants SET current_stock = $2 WHERE id = $1
	`, variantID, counted); err != nil {
		return nil, mapErr(err, "correct stock of "+variantID)
	}
	if err := pgTx.Commit(); err != nil {
		return nil, mapErr(err, "commit stock correction")
	}

	return &domain.StockCorrection{
		VariantID:     variantID,
		PreviousStock: previous,
		CountedStock:  counted,
		Delta:         counted.Sub(previous),
		CorrectedAt:   time.Now().UTC(),
	}, nil
}

// DeleteVariant is refused by the foreign keys while any sale item or purchase points at it.
func (s *Store) DeleteVariant(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM product_variants WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "delete variant "+id)
	}
	return expectAffected(res, domain.ErrNotFound, "variant "+id)
}

func (s *Store) CreatePriceHistory(ctx context.Context, entry domain.VariantPriceHistory) error {
	if entry.ID == "" {
		entry.ID = xid.New("ph")
	}
	if entry.ChangedAt.IsZero() {
		entry.ChangedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO variant_price_history (id, variant_id, old_price, new_price, changed_by, changed_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, entry.ID, entry.VariantID, entry.OldPrice, entry.NewPrice, entry.ChangedBy, entry.ChangedAt)
	return mapErr(err, "create price history")
}

func (s *Store) ListPriceHistory(ctx context.Context, variantID string, limit int) ([]domain.VariantPriceHistory, error) {
	if limit < 1 {
		limit = 50
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, variant_id, old_price, new_price, changed_by, changed_at
		FROM variant_price_history
		WHERE variant_id = $1
		ORDER BY changed_at DESC, id DESC
		LIMIT $2
	`, variantID, limit)
	if err != nil {
		return nil, mapErr(err, "list price history")
	}
	defer rows.Close()

	history := make([]domain.VariantPriceHistory, 0, limit)
	for rows.Next() {
		var entry domain.VariantPriceHistory
		if err := rows.Scan(&entry.ID, &entry.VariantID, &entry.OldPrice, &entry.NewPrice, &entry.ChangedBy, &entry.ChangedAt); err != nil {
			return nil, mapErr(err, "scan price history")
		}
		entry.ChangedAt = entry.ChangedAt.UTC()
		history = append(history, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list price history")
	}
	return history, nil
}

// customerTotalsJoin yields c.* plus the customer's sale and payment sums.
const customerTotalsJoin = `
	FROM customers c
	LEFT JOIN (
		SELECT cs.customer_id, SUM(i.quantity * i.price_at_sale) AS total
		FROM credit_sales cs
		JOIN credit_sale_items i ON i.sale_id = cs.id
		GROUP BY cs.customer_id
	) st ON st.customer_id = c.id
	LEFT JOIN (
		SELECT customer_id, SUM(amount) AS total
		FROM payments
		GROUP BY customer_id
	) pt ON pt.customer_id = c.id
`

const customerColumns = `c.id, c.name, c.mobile, c.address, c.created_at, COALESCE(st.total, 0), COALESCE(pt.total, 0)`

var customerOrderBy = map[string]string{
	domain.CustomerSortName:        "lower(c.name) ASC, c.id",
	domain.CustomerSortNameDesc:    "lower(c.name) DESC, c.id",
	domain.CustomerSortBalance:     "(COALESCE(st.total, 0) - COALESCE(pt.total, 0)) ASC, lower(c.name)",
	domain.CustomerSortBalanceDesc: "(COALESCE(st.total, 0) - COALESCE(pt.total, 0)) DESC, lower(c.name)",
}

func scanCustomer(row interface{ Scan(dest ...any) error }) (domain.Customer, error) {
	var c domain.Customer
	var totals ledger.Totals
	if err := row.Scan(&c.ID, &c.Name, &c.Mobile, &c.Address, &c.CreatedAt, &totals.Sales, &totals.Payments); err != nil {
		return c, err
	}
	c.CreatedAt = c.CreatedAt.UTC()
	c.Balance = totals.Balance()
	return c, nil
}

func (s *Store) ListCustomers(ctx context.Context, query domain.CustomerQuery) (domain.CustomerPage, error) {
	page := domain.CustomerPage{Page: query.Page, PageSize: query.PageSize}
	if page.Page < 1 || page.PageSize <= 0 {
		page.Page = 1
	}
	pattern := likePattern(query.Search)
	const filter = `WHERE $1 = '' OR c.name ILIKE $1 OR c.mobile ILIKE $1 OR c.address ILIKE $1`

	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM customers c `+filter, pattern).Scan(&page.Total); err != nil {
		return page, mapErr(err, "count customers")
	}

	orderBy, ok := customerOrderBy[query.Sort]
	if !ok {
		orderBy = customerOrderBy[domain.CustomerSortName]
	}
	var limit any
	offset := 0
	if query.PageSize > 0 {
		limit = query.PageSize
		offset = (page.Page - 1) * query.PageSize
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT `+customerColumns+customerTotalsJoin+filter+`
		ORDER BY `+orderBy+`
		LIMIT $2 OFFSET $3
	`, pattern, limit, offset)
	if err != nil {
		return page, mapErr(err, "list customers")
	}
	defer rows.Close()

	page.Customers = make([]domain.Customer, 0, 32)
	for rows.Next() {
		c, err := scanCustomer(rows)
		if err != nil {
			return page, mapErr(err, "scan customer")
		}
		page.Customers = append(page.Customers, c)
	}
	if err := rows.Err(); err != nil {
		return page, mapErr(err, "list customers")
	}
	return page, nil
}

func (s *Store) GetCustomer(ctx context.Context, id string) (*domain.Customer, error) {
	c, err := scanCustomer(s.db.QueryRowContext(ctx, `
		SELECT `+customerColumns+customerTotalsJoin+`
		WHERE c.id = $1
	`, id))
	if err != nil {
		return nil, mapErr(err, "customer "+id)
	}
	return &c, nil
}

func (s *Store) CreateCustomer(ctx context.Context, customer domain.Customer) (*domain.Customer, error) {
	if customer.ID == "" {
		customer.ID = xid.New("cust")
	}
	if customer.CreatedAt.IsZero() {
		customer.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO customers (id, name, mobile, address, created_at)
		VALUES ($1,$2,$3,$4,$5)
	`, customer.ID, customer.Name, customer.Mobile, customer.Address, customer.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "create customer")
	}
	customer.Balance = decimal.Zero
	created := customer
	return &created, nil
}

func (s *Store) CreateSupplier(ctx context.Context, supplier domain.Supplier) (*domain.Supplier, error) {
	if supplier.ID == "" {
		supplier.ID = xid.New("sup")
	}
	if supplier.CreatedAt.IsZero() {
		supplier.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO suppliers (id, name, contact_person, mobile, address, created_at)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, supplier.ID, supplier.Name, supplier.ContactPerson, supplier.Mobile, supplier.Address, supplier.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "create supplier")
	}
	created := supplier
	return &created, nil
}

func (s *Store) ListSuppliers(ctx context.Context) ([]domain.Supplier, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, contact_person, mobile, address, created_at
		FROM suppliers
		ORDER BY name ASC
	`)
	if err != nil {
		return nil, mapErr(err, "list suppliers")
	}
	defer rows.Close()

	suppliers := make([]domain.Supplier, 0, 32)
	for rows.Next() {
		var sp domain.Supplier
		if err := rows.Scan(&sp.ID, &sp.Name, &sp.ContactPerson, &sp.Mobile, &sp.Address, &sp.CreatedAt); err != nil {
			return nil, mapErr(err, "scan supplier")
		}
		sp.CreatedAt = sp.CreatedAt.UTC()
		suppliers = append(suppliers, sp)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list suppliers")
	}
	return suppliers, nil
}

func (s *Store) GetSupplier(ctx context.Context, id string) (*domain.Supplier, error) {
	var sp domain.Supplier
	err := s.db.QueryRowContext(ctx, `
		SELECT id, name, contact_person, mobile, address, created_at
		FROM suppliers
		WHERE id = $1
	`, id).Scan(&sp.ID, &sp.Name, &sp.ContactPerson, &sp.Mobile, &sp.Address, &sp.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "supplier "+id)
	}
	sp.CreatedAt = sp.CreatedAt.UTC()
	return &sp, nil
}

// DeleteSupplier leaves the supplier's purchases in place with a null supplier.
func (s *Store) DeleteSupplier(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM suppliers WHERE id = $1`, id)
	if err != nil {
		return mapErr(err, "delete supplier "+id)
	}
	return expectAffected(res, domain.ErrNotFound, "supplier "+id)
}

func (s *Store) CreateAuditLog(ctx context.Context, entry domain.AuditLog) error {
	if entry.ID == "" {
		entry.ID = xid.New("audit")
	}
	if entry.CreatedAt.IsZero() {
		entry.CreatedAt = time.Now().UTC()
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO audit_logs (id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, entry.ID, entry.ActorUsername, entry.ActorRole, entry.Action, entry.EntityType, entry.EntityID, entry.Detail, entry.CreatedAt)
	return mapErr(err, "create audit log")
}

func (s *Store) ListAuditLogs(ctx context.Context, limit int) ([]domain.AuditLog, error) {
	if limit < 1 {
		limit = 200
	}

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, actor_username, actor_role, action, entity_type, entity_id, detail, created_at
		FROM audit_logs
		ORDER BY created_at DESC, id DESC
		LIMIT $1
	`, limit)
	if err != nil {
		return nil, mapErr(err, "list audit logs")
	}
	defer rows.Close()

	logs := make([]domain.AuditLog, 0, limit)
	for rows.Next() {
		var entry domain.AuditLog
		if err := rows.Scan(&entry.ID, &entry.ActorUsername, &entry.ActorRole, &entry.Action, &entry.EntityType, &entry.EntityID, &entry.Detail, &entry.CreatedAt); err != nil {
			return nil, mapErr(err, "scan audit log")
		}
		entry.CreatedAt = entry.CreatedAt.UTC()
		logs = append(logs, entry)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list audit logs")
	}
	return logs, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}
	if user.Role == "" {
		user.Role = domain.RoleCashier
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO users (username, password, role, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,now())
	`, user.Username, user.Password, user.Role, user.Active, user.CreatedAt)
	return mapErr(err, "create user "+user.Username)
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, active, created_at
		FROM users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, mapErr(err, "list users")
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.Active, &user.CreatedAt); err != nil {
			return nil, mapErr(err, "scan user")
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list users")
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return fmt.Errorf("%w: username and password are required", domain.ErrValidation)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return mapErr(err, "update user "+username)
	}
	return expectAffected(res, domain.ErrNotFound, "user "+username)
}

// mapErr translates driver failures into domain sentinels. Errors that already carry a
// sentinel pass through untouched.
func mapErr(err error, what string) error {
	if err == nil {
		return nil
	}
	for _, sentinel := range []error{domain.ErrValidation, domain.ErrNotFound, domain.ErrConflict, domain.ErrStore, domain.ErrForbidden} {
		if errors.Is(err, sentinel) {
			return err
		}
	}
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s", domain.ErrNotFound, what)
	}
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		switch pgErr.Code {
		case "23505":
			return fmt.Errorf("%w: %s: already exists", domain.ErrConflict, what)
		case "23503":
			return fmt.Errorf("%w: %s: still referenced", domain.ErrConflict, what)
		case "40001", "40P01":
			return fmt.Errorf("%w: %s: concurrent update, retry", domain.ErrConflict, what)
		case "23514":
			return fmt.Errorf("%w: %s: %s", domain.ErrValidation, what, pgErr.Message)
		case "22003":
			return fmt.Errorf("%w: %s: value out of range", domain.ErrValidation, what)
		}
	}
	return fmt.Errorf("%w: %s: %v", domain.ErrStore, what, err)
}

func expectAffected(res sql.Result, sentinel error, what string) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return mapErr(err, what)
	}
	if affected == 0 {
		return fmt.Errorf("%w: %s", sentinel, what)
	}
	return nil
}

var likeEscaper = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`)

// likePattern turns free text into a contains-pattern for ILIKE, or "" for no filter.
func likePattern(search string) string {
	search = strings.TrimSpace(search)
	if search == "" {
		return ""
	}
	return "%" + likeEscaper.Replace(search) + "%"
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
