package postgres

import (
	"context"
	"database/sql"
	"embed"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"log"
	"sort"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgconn"
	_ "github.com/jackc/pgx/v5/stdlib"

	"vaultpos/internal/domain"
	"vaultpos/internal/store"
	"vaultpos/internal/xid"
)

//go:embed migrations/*.sql
var migrations embed.FS

type Store struct {
	db *sql.DB
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

// Migrate applies embedded migrations in filename order, skipping the ones
// already recorded in schema_migrations.
func (s *Store) Migrate(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, `
		CREATE TABLE IF NOT EXISTS schema_migrations (
			name TEXT PRIMARY KEY,
			applied_at TIMESTAMPTZ NOT NULL DEFAULT now()
		)
	`); err != nil {
		return fmt.Errorf("create migrations table: %w", err)
	}

	names, err := fs.Glob(migrations, "migrations/*.sql")
	if err != nil {
		return err
	}
	sort.Strings(names)

	for _, name := range names {
		var applied bool
		if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM schema_migrations WHERE name = $1)`, name).Scan(&applied); err != nil {
			return err
		}
		if applied {
			continue
		}

		body, err := migrations.ReadFile(name)
		if err != nil {
			return err
		}

		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, string(body)); err != nil {
			_ = tx.Rollback()
			return fmt.Errorf("apply %s: %w", name, err)
		}
		if _, err := tx.ExecContext(ctx, `INSERT INTO schema_migrations (name) VALUES ($1)`, name); err != nil {
			_ = tx.Rollback()
			return err
		}
		if err := tx.Commit(); err != nil {
			return err
		}
		log.Printf("[postgres] applied migration %s", name)
	}
	return nil
}

const inventoryColumns = `id, store_id, name, COALESCE(brand, ''), price_cents, quantity,
	size_s, size_m, size_l, size_xl, size_xxl, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanInventoryItem(row rowScanner) (domain.InventoryItem, error) {
	var item domain.InventoryItem
	err := row.Scan(
		&item.ID, &item.StoreID, &item.Name, &item.Brand, &item.PriceCents, &item.Quantity,
		&item.Sizes.S, &item.Sizes.M, &item.Sizes.L, &item.Sizes.XL, &item.Sizes.XXL,
		&item.CreatedAt, &item.UpdatedAt,
	)
	item.CreatedAt = item.CreatedAt.UTC()
	item.UpdatedAt = item.UpdatedAt.UTC()
	return item, err
}

func (s *Store) ListInventory(ctx context.Context, storeID string) ([]domain.InventoryItem, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory
		WHERE store_id = $1
		ORDER BY created_at DESC, id
	`, storeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	items := make([]domain.InventoryItem, 0, 128)
	for rows.Next() {
		item, err := scanInventoryItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return items, nil
}

func (s *Store) GetInventoryItem(ctx context.Context, id string) (*domain.InventoryItem, error) {
	item, err := scanInventoryItem(s.db.QueryRowContext(ctx, `
		SELECT `+inventoryColumns+`
		FROM inventory
		WHERE id = $1
	`, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

func (s *Store) UpsertInventoryItem(ctx context.Context, item domain.InventoryItem) (*domain.InventoryItem, error) {
	if strings.TrimSpace(item.Name) == "" || item.StoreID == "" || item.PriceCents < 1 || item.Quantity < 0 || !item.Sizes.Valid() {
		return nil, store.ErrInvalidInput
	}
	if item.ID == "" {
		item.ID = xid.New("")
	}

	// The WHERE guard keeps an update from moving an item across stores.
	saved, err := scanInventoryItem(s.db.QueryRowContext(ctx, `
		INSERT INTO inventory (id, store_id, name, brand, price_cents, quantity,
			size_s, size_m, size_l, size_xl, size_xxl, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,now(),now())
		ON CONFLICT (id) DO UPDATE SET
			name = EXCLUDED.name,
			brand = EXCLUDED.brand,
			price_cents = EXCLUDED.price_cents,
			quantity = EXCLUDED.quantity,
			size_s = EXCLUDED.size_s,
			size_m = EXCLUDED.size_m,
			size_l = EXCLUDED.size_l,
			size_xl = EXCLUDED.size_xl,
			size_xxl = EXCLUDED.size_xxl,
			updated_at = now()
		WHERE inventory.store_id = EXCLUDED.store_id
		RETURNING `+inventoryColumns,
		item.ID, item.StoreID, item.Name, nullIfEmpty(item.Brand), item.PriceCents, item.Quantity,
		item.Sizes.S, item.Sizes.M, item.Sizes.L, item.Sizes.XL, item.Sizes.XXL,
	))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, store.ErrNotFound
		}
		if isCheckViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}
	return &saved, nil
}

func (s *Store) DeleteInventoryItem(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM inventory WHERE id = $1`, id)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

// bucketColumns maps size labels to their column. Only these names are ever
// interpolated into SQL.
var bucketColumns = map[domain.Size]string{
	domain.SizeS:   "size_s",
	domain.SizeM:   "size_m",
	domain.SizeL:   "size_l",
	domain.SizeXL:  "size_xl",
	domain.SizeXXL: "size_xxl",
}

// DecrementStock is a single conditional UPDATE so concurrent terminals
// cannot drive a bucket below zero.
func (s *Store) DecrementStock(ctx context.Context, itemID string, size domain.Size, qty int) error {
	if qty < 1 {
		return store.ErrInvalidInput
	}

	var res sql.Result
	var err error
	if size == "" {
		res, err = s.db.ExecContext(ctx, `
			UPDATE inventory
			SET quantity = quantity - $2, updated_at = now()
			WHERE id = $1 AND quantity >= $2
		`, itemID, qty)
	} else {
		column, ok := bucketColumns[size]
		if !ok {
			return store.ErrInvalidInput
		}
		res, err = s.db.ExecContext(ctx, fmt.Sprintf(`
			UPDATE inventory
			SET %[1]s = %[1]s - $2, quantity = quantity - $2, updated_at = now()
			WHERE id = $1 AND %[1]s >= $2 AND quantity >= $2
		`, column), itemID, qty)
	}
	if err != nil {
		return err
	}

	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected > 0 {
		return nil
	}

	var exists bool
	if err := s.db.QueryRowContext(ctx, `SELECT EXISTS (SELECT 1 FROM inventory WHERE id = $1)`, itemID).Scan(&exists); err != nil {
		return err
	}
	if !exists {
		return store.ErrNotFound
	}
	return store.ErrInsufficientStock
}

func (s *Store) InsertSale(ctx context.Context, sale domain.SaleRecord) (*domain.SaleRecord, error) {
	if sale.StoreID == "" || len(sale.Lines) == 0 || !sale.PaymentMode.Valid() {
		return nil, store.ErrInvalidInput
	}
	if sale.ID == "" {
		sale.ID = xid.New("sale")
	}
	if sale.CreatedAt.IsZero() {
		sale.CreatedAt = time.Now().UTC()
	}

	items, err := json.Marshal(sale.Lines)
	if err != nil {
		return nil, err
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO sales (id, store_id, terminal_id, cashier, total_cents, payment_mode, items, created_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8)
	`, sale.ID, sale.StoreID, sale.TerminalID, sale.Cashier, sale.TotalCents, string(sale.PaymentMode), items, sale.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, store.ErrInvalidInput
		}
		return nil, err
	}

	saved := sale
	return &saved, nil
}

func (s *Store) GetSalesSummary(ctx context.Context, storeID string, from time.Time, to time.Time) (domain.SalesSummary, error) {
	summary := domain.SalesSummary{ByPayment: make([]domain.DailySummaryPayment, 0, 2)}

	rows, err := s.db.QueryContext(ctx, `
		SELECT payment_mode, COUNT(*)::bigint, COALESCE(SUM(total_cents),0)::bigint
		FROM sales
		WHERE store_id = $1
			AND created_at >= $2
			AND created_at < $3
		GROUP BY payment_mode
		ORDER BY payment_mode
	`, storeID, from, to)
	if err != nil {
		return summary, err
	}
	defer rows.Close()

	for rows.Next() {
		var row domain.DailySummaryPayment
		var mode string
		if err := rows.Scan(&mode, &row.Transactions, &row.TotalCents); err != nil {
			return summary, err
		}
		row.PaymentMode = domain.PaymentMode(mode)
		summary.Transactions += row.Transactions
		summary.TotalCents += row.TotalCents
		summary.ByPayment = append(summary.ByPayment, row)
	}
	if err := rows.Err(); err != nil {
		return summary, err
	}
	return summary, nil
}

func (s *Store) CreateUser(ctx context.Context, user domain.UserAccount) error {
	user.Username = strings.ToLower(strings.TrimSpace(user.Username))
	if user.Username == "" || strings.TrimSpace(user.Password) == "" || user.StoreID == "" {
		return store.ErrInvalidInput
	}
	if user.Role == "" {
		user.Role = domain.RoleStaff
	}
	if user.CreatedAt.IsZero() {
		user.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO app_users (username, password, role, store_id, upi_id, active, created_at, updated_at)
		VALUES ($1,$2,$3,$4,$5,$6,$7,now())
	`, user.Username, user.Password, user.Role, user.StoreID, nullIfEmpty(user.UPIID), user.Active, user.CreatedAt)
	if err != nil {
		if isUniqueViolation(err) {
			return store.ErrInvalidInput
		}
		return err
	}
	return nil
}

func (s *Store) ListUsers(ctx context.Context) ([]domain.UserAccount, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT username, password, role, store_id, COALESCE(upi_id, ''), active, created_at
		FROM app_users
		ORDER BY username ASC
	`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	users := make([]domain.UserAccount, 0, 16)
	for rows.Next() {
		var user domain.UserAccount
		if err := rows.Scan(&user.Username, &user.Password, &user.Role, &user.StoreID, &user.UPIID, &user.Active, &user.CreatedAt); err != nil {
			return nil, err
		}
		user.CreatedAt = user.CreatedAt.UTC()
		users = append(users, user)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	return users, nil
}

func (s *Store) UpdateUserPassword(ctx context.Context, username string, password string) error {
	username = strings.ToLower(strings.TrimSpace(username))
	if username == "" || strings.TrimSpace(password) == "" {
		return store.ErrInvalidInput
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE app_users
		SET password = $2, updated_at = now()
		WHERE username = $1
	`, username, password)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return store.ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23505"
	}
	return false
}

func isCheckViolation(err error) bool {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return pgErr.Code == "23514"
	}
	return false
}

func nullIfEmpty(val string) any {
	if val == "" {
		return nil
	}
	return val
}
