package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"grocertrack/backend/internal/domain"
	"grocertrack/backend/internal/ledger"
	"grocertrack/backend/internal/xid"
)

// txLedger moves stock inside the caller's transaction. The UPDATE takes the row lock;
// ledger.Apply visits variants in ascending ID order so concurrent writers lock alike.
type txLedger struct {
	tx *sql.Tx
}

func (l txLedger) ApplyDelta(ctx context.Context, variantID string, qty decimal.Decimal) error {
	res, err := l.tx.ExecContext(ctx, `
		UPDATE product_variants
		SET current_stock = current_stock + $1
		WHERE id = $2
	`, qty, variantID)
	if err != nil {
		return mapErr(err, "variant "+variantID)
	}
	return expectAffected(res, domain.ErrNotFound, "variant "+variantID)
}

func (s *Store) begin(ctx context.Context) (*sql.Tx, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelSerializable})
	if err != nil {
		return nil, mapErr(err, "begin transaction")
	}
	return pgTx, nil
}

func (s *Store) CreateSale(ctx context.Context, sale domain.Sale) (*domain.Sale, error) {
	if len(sale.Items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", domain.ErrValidation)
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.SaleDate.IsZero() {
		sale.SaleDate = time.Now().UTC()
	}

	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := lockRow(ctx, pgTx, `SELECT id FROM customers WHERE id = $1 FOR SHARE`, sale.CustomerID, domain.ErrNotFound, "customer"); err != nil {
		return nil, err
	}
	if err := ledger.Apply(ctx, txLedger{tx: pgTx}, ledger.SaleDelta(sale.Items)); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO credit_sales (id, customer_id, sale_date)
		VALUES ($1,$2,$3)
	`, sale.ID, sale.CustomerID, sale.SaleDate); err != nil {
		return nil, mapErr(err, "create sale")
	}
	if err := insertSaleItems(ctx, pgTx, sale.ID, sale.Items); err != nil {
		return nil, err
	}

	created, err := loadSale(ctx, pgTx, sale.ID)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, mapErr(err, "commit sale")
	}
	return created, nil
}

func (s *Store) GetSale(ctx context.Context, id string) (*domain.Sale, error) {
	return loadSale(ctx, s.db, id)
}

func (s *Store) ListSales(ctx context.Context, customerID string) ([]domain.Sale, error) {
	return salesWhere(ctx, s.db, `$1 = '' OR cs.customer_id = $1`, customerID)
}

func (s *Store) ReplaceSaleItems(ctx context.Context, saleID string, items []domain.SaleItem) (*domain.Sale, error) {
	if len(items) == 0 {
		return nil, fmt.Errorf("%w: sale has no items", domain.ErrValidation)
	}

	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := lockRow(ctx, pgTx, `SELECT id FROM credit_sales WHERE id = $1 FOR UPDATE`, saleID, domain.ErrNotFound, "sale"); err != nil {
		return nil, err
	}
	oldItems, err := saleItems(ctx, pgTx, saleID)
	if err != nil {
		return nil, err
	}
	if err := ledger.Apply(ctx, txLedger{tx: pgTx}, ledger.EditDelta(oldItems, items)); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM credit_sale_items WHERE sale_id = $1`, saleID); err != nil {
		return nil, mapErr(err, "clear sale items")
	}
	if err := insertSaleItems(ctx, pgTx, saleID, items); err != nil {
		return nil, err
	}

	updated, err := loadSale(ctx, pgTx, saleID)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, mapErr(err, "commit sale edit")
	}
	return updated, nil
}

func (s *Store) DeleteSale(ctx context.Context, id string) (*domain.Sale, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := lockRow(ctx, pgTx, `SELECT id FROM credit_sales WHERE id = $1 FOR UPDATE`, id, domain.ErrConflict, "sale"); err != nil {
		return nil, err
	}
	sale, err := loadSale(ctx, pgTx, id)
	if err != nil {
		return nil, err
	}
	if err := ledger.Apply(ctx, txLedger{tx: pgTx}, ledger.SaleDelta(sale.Items).Negate()); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM credit_sales WHERE id = $1`, id); err != nil {
		return nil, mapErr(err, "delete sale "+id)
	}
	if err := pgTx.Commit(); err != nil {
		return nil, mapErr(err, "commit sale delete")
	}
	return sale, nil
}

// CustomerHistory reads inside one repeatable-read snapshot so sales and payments agree.
func (s *Store) CustomerHistory(ctx context.Context, id string) (*domain.CustomerDetail, error) {
	pgTx, err := s.db.BeginTx(ctx, &sql.TxOptions{Isolation: sql.LevelRepeatableRead, ReadOnly: true})
	if err != nil {
		return nil, mapErr(err, "begin history read")
	}
	defer func() { _ = pgTx.Rollback() }()

	var c domain.Customer
	err = pgTx.QueryRowContext(ctx, `
		SELECT id, name, mobile, address, created_at
		FROM customers
		WHERE id = $1
	`, id).Scan(&c.ID, &c.Name, &c.Mobile, &c.Address, &c.CreatedAt)
	if err != nil {
		return nil, mapErr(err, "customer "+id)
	}
	c.CreatedAt = c.CreatedAt.UTC()

	sales, err := salesWhere(ctx, pgTx, `cs.customer_id = $1`, id)
	if err != nil {
		return nil, err
	}
	payments, err := paymentsOf(ctx, pgTx, id)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, mapErr(err, "finish history read")
	}
	return &domain.CustomerDetail{Customer: c, Sales: sales, Payments: payments}, nil
}

// DeleteCustomer puts back the stock of every sale the customer made, then lets the
// foreign keys cascade the sales and payments away.
func (s *Store) DeleteCustomer(ctx context.Context, id string) error {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := lockRow(ctx, pgTx, `SELECT id FROM customers WHERE id = $1 FOR UPDATE`, id, domain.ErrConflict, "customer"); err != nil {
		return err
	}
	rows, err := pgTx.QueryContext(ctx, `
		SELECT i.variant_id, i.quantity
		FROM credit_sale_items i
		JOIN credit_sales cs ON cs.id = i.sale_id
		WHERE cs.customer_id = $1
	`, id)
	if err != nil {
		return mapErr(err, "load customer sales")
	}
	items := make([]domain.SaleItem, 0, 32)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.VariantID, &item.Quantity); err != nil {
			_ = rows.Close()
			return mapErr(err, "scan sale item")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return mapErr(err, "load customer sales")
	}
	_ = rows.Close()

	if err := ledger.Apply(ctx, txLedger{tx: pgTx}, ledger.SaleDelta(items).Negate()); err != nil {
		return err
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM customers WHERE id = $1`, id); err != nil {
		return mapErr(err, "delete customer "+id)
	}
	return mapErr(pgTx.Commit(), "commit customer delete")
}

func (s *Store) CreatePayment(ctx context.Context, payment domain.Payment) (*domain.Payment, error) {
	if !payment.Amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	}
	if payment.ID == "" {
		payment.ID = xid.New("pay")
	}
	if payment.PaymentDate.IsZero() {
		payment.PaymentDate = time.Now().UTC()
	}
	res, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, customer_id, amount, payment_date)
		SELECT $1,$2,$3,$4
		WHERE EXISTS (SELECT 1 FROM customers WHERE id = $2)
	`, payment.ID, payment.CustomerID, payment.Amount, payment.PaymentDate)
	if err != nil {
		return nil, mapErr(err, "create payment")
	}
	if err := expectAffected(res, domain.ErrNotFound, "customer "+payment.CustomerID); err != nil {
		return nil, err
	}
	created := payment
	return &created, nil
}

const paymentColumns = `id, customer_id, amount, payment_date`

func scanPayment(row interface{ Scan(dest ...any) error }) (domain.Payment, error) {
	var p domain.Payment
	err := row.Scan(&p.ID, &p.CustomerID, &p.Amount, &p.PaymentDate)
	p.PaymentDate = p.PaymentDate.UTC()
	return p, err
}

func (s *Store) GetPayment(ctx context.Context, id string) (*domain.Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, `SELECT `+paymentColumns+` FROM payments WHERE id = $1`, id))
	if err != nil {
		return nil, mapErr(err, "payment "+id)
	}
	return &p, nil
}

func (s *Store) ListPayments(ctx context.Context, customerID string) ([]domain.Payment, error) {
	return paymentsOf(ctx, s.db, customerID)
}

func (s *Store) UpdatePaymentAmount(ctx context.Context, id string, amount decimal.Decimal) (*domain.Payment, error) {
	if !amount.IsPositive() {
		return nil, fmt.Errorf("%w: amount must be greater than zero", domain.ErrValidation)
	}
	p, err := scanPayment(s.db.QueryRowContext(ctx, `
		UPDATE payments SET amount = $2 WHERE id = $1
		RETURNING `+paymentColumns, id, amount))
	if err != nil {
		return nil, mapErr(err, "payment "+id)
	}
	return &p, nil
}

func (s *Store) DeletePayment(ctx context.Context, id string) (*domain.Payment, error) {
	p, err := scanPayment(s.db.QueryRowContext(ctx, `
		DELETE FROM payments WHERE id = $1
		RETURNING `+paymentColumns, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%w: payment %s no longer exists", domain.ErrConflict, id)
		}
		return nil, mapErr(err, "delete payment "+id)
	}
	return &p, nil
}

func (s *Store) CreatePurchase(ctx context.Context, purchase domain.Purchase) (*domain.Purchase, error) {
	if !purchase.Quantity.IsPositive() {
		return nil, fmt.Errorf("%w: quantity must be greater than zero", domain.ErrValidation)
	}
	if purchase.ID == "" {
		purchase.ID = xid.New("pur")
	}
	if purchase.PurchaseDate.IsZero() {
		purchase.PurchaseDate = time.Now().UTC()
	}

	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if purchase.SupplierID != "" {
		if err := lockRow(ctx, pgTx, `SELECT id FROM suppliers WHERE id = $1 FOR SHARE`, purchase.SupplierID, domain.ErrNotFound, "supplier"); err != nil {
			return nil, err
		}
	}
	if err := ledger.Apply(ctx, txLedger{tx: pgTx}, ledger.PurchaseDelta(purchase.VariantID, purchase.Quantity)); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `
		INSERT INTO purchases (id, supplier_id, variant_id, quantity, purchase_price, purchase_date)
		VALUES ($1,$2,$3,$4,$5,$6)
	`, purchase.ID, nullIfEmpty(purchase.SupplierID), purchase.VariantID, purchase.Quantity, purchase.PurchasePrice, purchase.PurchaseDate); err != nil {
		return nil, mapErr(err, "create purchase")
	}

	created, err := loadPurchase(ctx, pgTx, purchase.ID)
	if err != nil {
		return nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, mapErr(err, "commit purchase")
	}
	return created, nil
}

func (s *Store) GetPurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	return loadPurchase(ctx, s.db, id)
}

func (s *Store) ListPurchases(ctx context.Context, search string, limit int) ([]domain.Purchase, error) {
	var limitArg any
	if limit > 0 {
		limitArg = limit
	}
	return purchasesWhere(ctx, s.db, `
		$1 = '' OR COALESCE(sp.name, '') ILIKE $1 OR (p.name || ' (' || v.name || ')') ILIKE $1
		ORDER BY pu.purchase_date DESC, pu.id DESC
		LIMIT $2
	`, likePattern(search), limitArg)
}

func (s *Store) UpdatePurchase(ctx context.Context, id string, patch domain.PurchaseUpdateRequest) (*domain.Purchase, *domain.Purchase, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := lockRow(ctx, pgTx, `SELECT id FROM purchases WHERE id = $1 FOR UPDATE`, id, domain.ErrNotFound, "purchase"); err != nil {
		return nil, nil, err
	}
	before, err := loadPurchase(ctx, pgTx, id)
	if err != nil {
		return nil, nil, err
	}
	merged := patch.Merge(*before)
	if !merged.Quantity.IsPositive() {
		return nil, nil, fmt.Errorf("%w: quantity must be greater than zero", domain.ErrValidation)
	}

	delta := ledger.PurchaseEditDelta(before.VariantID, before.Quantity, merged.VariantID, merged.Quantity)
	if err := ledger.Apply(ctx, txLedger{tx: pgTx}, delta); err != nil {
		return nil, nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `
		UPDATE purchases
		SET variant_id = $2, quantity = $3, purchase_price = $4
		WHERE id = $1
	`, id, merged.VariantID, merged.Quantity, merged.PurchasePrice); err != nil {
		return nil, nil, mapErr(err, "update purchase "+id)
	}

	after, err := loadPurchase(ctx, pgTx, id)
	if err != nil {
		return nil, nil, err
	}
	if err := pgTx.Commit(); err != nil {
		return nil, nil, mapErr(err, "commit purchase edit")
	}
	return before, after, nil
}

func (s *Store) DeletePurchase(ctx context.Context, id string) (*domain.Purchase, error) {
	pgTx, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer func() { _ = pgTx.Rollback() }()

	if err := lockRow(ctx, pgTx, `SELECT id FROM purchases WHERE id = $1 FOR UPDATE`, id, domain.ErrConflict, "purchase"); err != nil {
		return nil, err
	}
	purchase, err := loadPurchase(ctx, pgTx, id)
	if err != nil {
		return nil, err
	}
	if err := ledger.Apply(ctx, txLedger{tx: pgTx}, ledger.PurchaseDelta(purchase.VariantID, purchase.Quantity).Negate()); err != nil {
		return nil, err
	}
	if _, err := pgTx.ExecContext(ctx, `DELETE FROM purchases WHERE id = $1`, id); err != nil {
		return nil, mapErr(err, "delete purchase "+id)
	}
	if err := pgTx.Commit(); err != nil {
		return nil, mapErr(err, "commit purchase delete")
	}
	return purchase, nil
}

// lockRow runs a single-row locking SELECT and reports a missing row as missing.
func lockRow(ctx context.Context, q querier, query string, id string, missing error, entity string) error {
	var got string
	err := q.QueryRowContext(ctx, query, id).Scan(&got)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%w: %s %s", missing, entity, id)
	}
	return mapErr(err, entity+" "+id)
}

func insertSaleItems(ctx context.Context, q querier, saleID string, items []domain.SaleItem) error {
	for i, item := range items {
		if _, err := q.ExecContext(ctx, `
			INSERT INTO credit_sale_items (sale_id, position, variant_id, quantity, price_at_sale)
			VALUES ($1,$2,$3,$4,$5)
		`, saleID, i, item.VariantID, item.Quantity, item.PriceAtSale); err != nil {
			return mapErr(err, "insert sale item")
		}
	}
	return nil
}

func saleItems(ctx context.Context, q querier, saleID string) ([]domain.SaleItem, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT variant_id, quantity, price_at_sale
		FROM credit_sale_items
		WHERE sale_id = $1
		ORDER BY position
	`, saleID)
	if err != nil {
		return nil, mapErr(err, "load sale items")
	}
	defer rows.Close()

	items := make([]domain.SaleItem, 0, 8)
	for rows.Next() {
		var item domain.SaleItem
		if err := rows.Scan(&item.VariantID, &item.Quantity, &item.PriceAtSale); err != nil {
			return nil, mapErr(err, "scan sale item")
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "load sale items")
	}
	return items, nil
}

func loadSale(ctx context.Context, q querier, id string) (*domain.Sale, error) {
	sales, err := salesWhere(ctx, q, `cs.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(sales) == 0 {
		return nil, fmt.Errorf("%w: sale %s", domain.ErrNotFound, id)
	}
	return &sales[0], nil
}

// salesWhere loads sales matching cond (over alias cs, one $1 argument) newest first,
// with their items and display names.
func salesWhere(ctx context.Context, q querier, cond string, arg string) ([]domain.Sale, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT cs.id, cs.customer_id, c.name, cs.sale_date
		FROM credit_sales cs
		JOIN customers c ON c.id = cs.customer_id
		WHERE `+cond+`
		ORDER BY cs.sale_date DESC, cs.id DESC
	`, arg)
	if err != nil {
		return nil, mapErr(err, "list sales")
	}
	sales := make([]domain.Sale, 0, 16)
	index := make(map[string]int, 16)
	for rows.Next() {
		var sale domain.Sale
		if err := rows.Scan(&sale.ID, &sale.CustomerID, &sale.CustomerName, &sale.SaleDate); err != nil {
			_ = rows.Close()
			return nil, mapErr(err, "scan sale")
		}
		sale.SaleDate = sale.SaleDate.UTC()
		sale.Items = make([]domain.SaleItem, 0, 4)
		index[sale.ID] = len(sales)
		sales = append(sales, sale)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, mapErr(err, "list sales")
	}
	_ = rows.Close()
	if len(sales) == 0 {
		return sales, nil
	}

	itemRows, err := q.QueryContext(ctx, `
		SELECT i.sale_id, i.variant_id, p.name, v.name, i.quantity, i.price_at_sale
		FROM credit_sale_items i
		JOIN credit_sales cs ON cs.id = i.sale_id
		JOIN product_variants v ON v.id = i.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE `+cond+`
		ORDER BY i.sale_id, i.position
	`, arg)
	if err != nil {
		return nil, mapErr(err, "list sale items")
	}
	defer itemRows.Close()

	for itemRows.Next() {
		var saleID string
		var variant domain.ProductVariant
		var item domain.SaleItem
		if err := itemRows.Scan(&saleID, &item.VariantID, &variant.ProductName, &variant.Name, &item.Quantity, &item.PriceAtSale); err != nil {
			return nil, mapErr(err, "scan sale item")
		}
		item.VariantName = variant.DisplayName()
		if i, ok := index[saleID]; ok {
			sales[i].Items = append(sales[i].Items, item)
		}
	}
	if err := itemRows.Err(); err != nil {
		return nil, mapErr(err, "list sale items")
	}
	return sales, nil
}

func paymentsOf(ctx context.Context, q querier, customerID string) ([]domain.Payment, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT `+paymentColumns+`
		FROM payments
		WHERE $1 = '' OR customer_id = $1
		ORDER BY payment_date DESC, id DESC
	`, customerID)
	if err != nil {
		return nil, mapErr(err, "list payments")
	}
	defer rows.Close()

	payments := make([]domain.Payment, 0, 16)
	for rows.Next() {
		p, err := scanPayment(rows)
		if err != nil {
			return nil, mapErr(err, "scan payment")
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list payments")
	}
	return payments, nil
}

func loadPurchase(ctx context.Context, q querier, id string) (*domain.Purchase, error) {
	purchases, err := purchasesWhere(ctx, q, `pu.id = $1`, id)
	if err != nil {
		return nil, err
	}
	if len(purchases) == 0 {
		return nil, fmt.Errorf("%w: purchase %s", domain.ErrNotFound, id)
	}
	return &purchases[0], nil
}

func purchasesWhere(ctx context.Context, q querier, tail string, args ...any) ([]domain.Purchase, error) {
	rows, err := q.QueryContext(ctx, `
		SELECT pu.id, COALESCE(pu.supplier_id, ''), COALESCE(sp.name, ''), pu.variant_id, p.name, v.name,
			pu.quantity, pu.purchase_price, pu.purchase_date
		FROM purchases pu
		LEFT JOIN suppliers sp ON sp.id = pu.supplier_id
		JOIN product_variants v ON v.id = pu.variant_id
		JOIN products p ON p.id = v.product_id
		WHERE `+tail, args...)
	if err != nil {
		return nil, mapErr(err, "list purchases")
	}
	defer rows.Close()

	purchases := make([]domain.Purchase, 0, 32)
	for rows.Next() {
		var pu domain.Purchase
		var variant domain.ProductVariant
		if err := rows.Scan(&pu.ID, &pu.SupplierID, &pu.SupplierName, &pu.VariantID, &variant.ProductName, &variant.Name,
			&pu.Quantity, &pu.PurchasePrice, &pu.PurchaseDate); err != nil {
			return nil, mapErr(err, "scan purchase")
		}
		pu.VariantName = variant.DisplayName()
		pu.PurchaseDate = pu.PurchaseDate.UTC()
		purchases = append(purchases, pu)
	}
	if err := rows.Err(); err != nil {
		return nil, mapErr(err, "list purchases")
	}
	return purchases, nil
}
