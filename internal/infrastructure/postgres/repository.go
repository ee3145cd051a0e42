package postgres

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"time"

	domain "github.com/henoc97/ecommerce-backend-sub001/internal/domain/cart"

	"github.com/golang-migrate/migrate/v4"
	migratepg "github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/lib/pq"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

const (
	migrationsTable = "cart_schema_migrations"

	pqUniqueViolation     = "23505"
	pqForeignKeyViolation = "23503"
	cartFKConstraint      = "cart_items_cart_id_fkey"
)

// CartRepository is the SQL implementation of the cart ports.
type CartRepository struct {
	db *sql.DB
}

// Open connects with lib/pq and verifies the connection.
func Open(ctx context.Context, dsn string) (*CartRepository, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: open: %w", err)
	}
	db.SetMaxOpenConns(50)
	db.SetMaxIdleConns(10)
	db.SetConnMaxIdleTime(5 * time.Minute)

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &CartRepository{db: db}, nil
}

func NewCartRepository(db *sql.DB) *CartRepository {
	return &CartRepository{db: db}
}

func (r *CartRepository) Close() error { return r.db.Close() }

func (r *CartRepository) Ping(ctx context.Context) error { return r.db.PingContext(ctx) }

// Migrate applies the embedded migrations. Already being up to date is not an error.
func (r *CartRepository) Migrate() error {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return fmt.Errorf("postgres: migration source: %w", err)
	}
	driver, err := migratepg.WithInstance(r.db, &migratepg.Config{MigrationsTable: migrationsTable})
	if err != nil {
		return fmt.Errorf("postgres: migration driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "postgres", driver)
	if err != nil {
		return fmt.Errorf("postgres: migrate instance: %w", err)
	}
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("postgres: migrate up: %w", err)
	}
	return nil
}

// querier is the statement surface shared by *sql.DB and *sql.Tx.
type querier interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
	QueryContext(ctx context.Context, query string, args ...any) (*sql.Rows, error)
	QueryRowContext(ctx context.Context, query string, args ...any) *sql.Row
}

type txKey struct{}

type txState struct {
	db *sql.DB
	tx *sql.Tx
}

// WithinTx runs fn in one transaction. Every repository call made with fn's context
// joins it; a nested call joins the outer transaction.
func (r *CartRepository) WithinTx(ctx context.Context, fn func(ctx context.Context) error) error {
	if st, ok := ctx.Value(txKey{}).(txState); ok && st.db == r.db {
		return fn(ctx)
	}
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("postgres: begin tx: %w", err)
	}
	defer func() {
		if p := recover(); p != nil {
			_ = tx.Rollback()
			panic(p)
		}
	}()

	if err := fn(context.WithValue(ctx, txKey{}, txState{db: r.db, tx: tx})); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil && !errors.Is(rbErr, sql.ErrTxDone) {
			return errors.Join(err, fmt.Errorf("postgres: rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("postgres: commit: %w", err)
	}
	return nil
}

// conn returns the transaction carried by ctx, or the pool.
func (r *CartRepository) conn(ctx context.Context) querier {
	if st, ok := ctx.Value(txKey{}).(txState); ok && st.db == r.db {
		return st.tx
	}
	return r.db
}

func (r *CartRepository) CreateCart(ctx context.Context) (*domain.Cart, error) {
	var c domain.Cart
	err := r.conn(ctx).QueryRowContext(ctx,
		`INSERT INTO carts DEFAULT VALUES RETURNING id, total_price, total_quantity, updated_at`,
	).Scan(&c.ID, &c.TotalPrice, &c.TotalQuantity, &c.UpdatedAt)
	if err != nil {
		return nil, fmt.Errorf("postgres: create cart: %w", err)
	}
	return &c, nil
}

// PutVariant upserts a catalog variant.
func (r *CartRepository) PutVariant(ctx context.Context, v domain.Variant) error {
	_, err := r.conn(ctx).ExecContext(ctx,
		`INSERT INTO product_variants (id, stock, price) VALUES ($1, $2, $3)
		 ON CONFLICT (id) DO UPDATE SET stock = EXCLUDED.stock, price = EXCLUDED.price`,
		v.ID, v.Stock, v.Price,
	)
	if err != nil {
		return fmt.Errorf("postgres: put variant %d: %w", v.ID, err)
	}
	return nil
}

func (r *CartRepository) FindItemByID(ctx context.Context, id int64) (*domain.Item, error) {
	return r.scanItem(r.conn(ctx).QueryRowContext(ctx,
		`SELECT id, cart_id, variant_id, quantity FROM cart_items WHERE id = $1`, id))
}

func (r *CartRepository) FindItemByVariant(ctx context.Context, cartID, variantID int64) (*domain.Item, error) {
	return r.scanItem(r.conn(ctx).QueryRowContext(ctx,
		`SELECT id, cart_id, variant_id, quantity FROM cart_items WHERE cart_id = $1 AND variant_id = $2`,
		cartID, variantID))
}

func (r *CartRepository) scanItem(row *sql.Row) (*domain.Item, error) {
	var it domain.Item
	err := row.Scan(&it.ID, &it.CartID, &it.VariantID, &it.Quantity)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrItemNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: scan item: %w", err)
	}
	return &it, nil
}

func (r *CartRepository) ListItemsByCart(ctx context.Context, cartID int64) ([]domain.Item, error) {
	rows, err := r.conn(ctx).QueryContext(ctx,
		`SELECT id, cart_id, variant_id, quantity FROM cart_items WHERE cart_id = $1 ORDER BY id`, cartID)
	if err != nil {
		return nil, fmt.Errorf("postgres: list items: %w", err)
	}
	defer rows.Close()

	items := make([]domain.Item, 0)
	for rows.Next() {
		var it domain.Item
		if err := rows.Scan(&it.ID, &it.CartID, &it.VariantID, &it.Quantity); err != nil {
			return nil, fmt.Errorf("postgres: scan item: %w", err)
		}
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list items: %w", err)
	}
	return items, nil
}

func (r *CartRepository) InsertItem(ctx context.Context, item domain.Item) (*domain.Item, error) {
	err := r.conn(ctx).QueryRowContext(ctx,
		`INSERT INTO cart_items (cart_id, variant_id, quantity) VALUES ($1, $2, $3) RETURNING id`,
		item.CartID, item.VariantID, item.Quantity,
	).Scan(&item.ID)
	if err != nil {
		return nil, translateInsertError(err)
	}
	return &item, nil
}

func translateInsertError(err error) error {
	var pqErr *pq.Error
	if !errors.As(err, &pqErr) {
		return fmt.Errorf("postgres: insert item: %w", err)
	}
	switch pqErr.Code {
	case pqUniqueViolation:
		return domain.ErrDuplicateItem
	case pqForeignKeyViolation:
		if pqErr.Constraint == cartFKConstraint {
			return domain.ErrCartNotFound
		}
		return domain.ErrVariantNotFound
	default:
		return fmt.Errorf("postgres: insert item: %w", err)
	}
}

func (r *CartRepository) UpdateItemQuantity(ctx context.Context, id int64, quantity int) error {
	res, err := r.conn(ctx).ExecContext(ctx,
		`UPDATE cart_items SET quantity = $2, updated_at = NOW() WHERE id = $1`, id, quantity)
	if err != nil {
		return fmt.Errorf("postgres: update item %d: %w", id, err)
	}
	return requireAffected(res, domain.ErrItemNotFound)
}

func (r *CartRepository) DeleteItem(ctx context.Context, id int64) error {
	res, err := r.conn(ctx).ExecContext(ctx, `DELETE FROM cart_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("postgres: delete item %d: %w", id, err)
	}
	return requireAffected(res, domain.ErrItemNotFound)
}

func (r *CartRepository) FindVariantByID(ctx context.Context, id int64) (*domain.Variant, error) {
	var v domain.Variant
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT id, stock, price FROM product_variants WHERE id = $1`, id,
	).Scan(&v.ID, &v.Stock, &v.Price)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrVariantNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find variant %d: %w", id, err)
	}
	return &v, nil
}

func (r *CartRepository) FindCartByID(ctx context.Context, id int64) (*domain.Cart, error) {
	var c domain.Cart
	err := r.conn(ctx).QueryRowContext(ctx,
		`SELECT id, total_price, total_quantity, updated_at FROM carts WHERE id = $1`, id,
	).Scan(&c.ID, &c.TotalPrice, &c.TotalQuantity, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find cart %d: %w", id, err)
	}
	return &c, nil
}

// UpdateTotals writes both totals in a single statement.
func (r *CartRepository) UpdateTotals(ctx context.Context, cartID int64, totals domain.Totals) (*domain.Cart, error) {
	var c domain.Cart
	err := r.conn(ctx).QueryRowContext(ctx,
		`UPDATE carts SET total_price = $2, total_quantity = $3, updated_at = NOW()
		 WHERE id = $1
		 RETURNING id, total_price, total_quantity, updated_at`,
		cartID, totals.Price.Round(2), totals.Quantity,
	).Scan(&c.ID, &c.TotalPrice, &c.TotalQuantity, &c.UpdatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrCartNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: update totals of cart %d: %w", cartID, err)
	}
	return &c, nil
}

func requireAffected(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("postgres: rows affected: %w", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
