package catalog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/lib/pq"
	moderncsqlite "modernc.org/sqlite"
	sqlite3 "modernc.org/sqlite/lib"
)

const (
	DriverSQLite   = "sqlite"
	DriverPostgres = "postgres"

	DefaultLimit = 20
	MaxLimit     = 100
)

var (
	ErrNotFound     = errors.New("not found")
	ErrInvalidInput = errors.New("invalid input")
	ErrConflict     = errors.New("already exists")
)

// ProductFilter narrows ListProducts. Zero values mean "no filter"; Limit is
// clamped to [1, MaxLimit] with DefaultLimit for zero or negative values.
type ProductFilter struct {
	Featured       *bool
	CollectionSlug string
	Limit          int
}

// Catalog is the read/write surface the HTTP layer depends on.
type Catalog interface {
	GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error)
	GetProductByID(ctx context.Context, id string) (*domain.Product, error)
	ListProducts(ctx context.Context, filter ProductFilter) ([]*domain.Product, error)
	GetCollectionBySlug(ctx context.Context, slug string) (*domain.Collection, error)
	ListCollections(ctx context.Context, limit int) ([]*domain.Collection, error)
	CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error)
	SetProductImage(ctx context.Context, id, imageURL string) error
}

type Repository struct {
	db     *sql.DB
	driver string
	now    func() time.Time
}

// NewRepository opens the catalog database. driver is DriverSQLite (dsn is a
// file path or ":memory:") or DriverPostgres (dsn is a lib/pq connection
// string).
func NewRepository(driver, dsn string) (*Repository, error) {
	if driver != DriverSQLite && driver != DriverPostgres {
		return nil, fmt.Errorf("unsupported catalog driver %q", driver)
	}

	db, err := sql.Open(driver, dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	if driver == DriverSQLite {
		// each new connection to :memory: would see an empty database
		db.SetMaxOpenConns(1)
	} else {
		db.SetMaxOpenConns(25)
		db.SetMaxIdleConns(5)
	}

	return NewWithDB(db, driver), nil
}

// NewWithDB wraps an already opened database.
func NewWithDB(db *sql.DB, driver string) *Repository {
	return &Repository{db: db, driver: driver, now: time.Now}
}

func (r *Repository) RunMigrations(migrationsPath string) error {
	var (
		driver database.Driver
		err    error
	)
	switch r.driver {
	case DriverPostgres:
		driver, err = postgres.WithInstance(r.db, &postgres.Config{
			MigrationsTable: "catalog_schema_migrations",
		})
	default:
		driver, err = sqlite.WithInstance(r.db, &sqlite.Config{})
	}
	if err != nil {
		return fmt.Errorf("could not create migration driver: %w", err)
	}

	m, err := migrate.NewWithDatabaseInstance(
		fmt.Sprintf("file://%s", migrationsPath),
		r.driver,
		driver,
	)
	if err != nil {
		return fmt.Errorf("could not create migrate instance: %w", err)
	}

	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("could not run migrations: %w", err)
	}

	return nil
}

const productColumns = `p.id, p.collection_id, p.name, p.slug, p.description, p.price_minor, p.currency, p.image_url, p.featured, p.created_at`

func (r *Repository) GetProductBySlug(ctx context.Context, slug string) (*domain.Product, error) {
	return r.getProduct(ctx, "p.slug", slug)
}

func (r *Repository) GetProductByID(ctx context.Context, id string) (*domain.Product, error) {
	return r.getProduct(ctx, "p.id", id)
}

func (r *Repository) getProduct(ctx context.Context, column, value string) (*domain.Product, error) {
	query := `SELECT ` + productColumns + ` FROM products p WHERE ` + column + ` = $1`

	rows, err := r.db.QueryContext(ctx, query, value)
	if err != nil {
		return nil, fmt.Errorf("failed to query product: %w", err)
	}
	defer rows.Close()

	products, err := scanProducts(rows)
	if err != nil {
		return nil, err
	}
	if len(products) == 0 {
		return nil, ErrNotFound
	}
	return products[0], nil
}

func (r *Repository) ListProducts(ctx context.Context, filter ProductFilter) ([]*domain.Product, error) {
	var (
		query strings.Builder
		where []string
		args  []any
	)
	query.WriteString(`SELECT ` + productColumns + ` FROM products p`)

	if filter.CollectionSlug != "" {
		query.WriteString(` JOIN collections c ON c.id = p.collection_id`)
		args = append(args, filter.CollectionSlug)
		where = append(where, fmt.Sprintf("c.slug = $%d", len(args)))
	}
	if filter.Featured != nil {
		args = append(args, *filter.Featured)
		where = append(where, fmt.Sprintf("p.featured = $%d", len(args)))
	}
	if len(where) > 0 {
		query.WriteString(` WHERE ` + strings.Join(where, " AND "))
	}

	args = append(args, clampLimit(filter.Limit))
	query.WriteString(fmt.Sprintf(` ORDER BY p.created_at, p.id LIMIT $%d`, len(args)))

	rows, err := r.db.QueryContext(ctx, query.String(), args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query products: %w", err)
	}
	defer rows.Close()

	return scanProducts(rows)
}

func (r *Repository) GetCollectionBySlug(ctx context.Context, slug string) (*domain.Collection, error) {
	query := `
		SELECT id, name, slug, description, image_url, created_at
		FROM collections
		WHERE slug = $1
	`

	c := &domain.Collection{}
	err := r.db.QueryRowContext(ctx, query, slug).Scan(
		&c.ID,
		&c.Name,
		&c.Slug,
		&c.Description,
		&c.ImageURL,
		&c.CreatedAt,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query collection: %w", err)
	}
	return c, nil
}

func (r *Repository) ListCollections(ctx context.Context, limit int) ([]*domain.Collection, error) {
	query := `
		SELECT id, name, slug, description, image_url, created_at
		FROM collections
		ORDER BY name
		LIMIT $1
	`

	rows, err := r.db.QueryContext(ctx, query, clampLimit(limit))
	if err != nil {
		return nil, fmt.Errorf("failed to query collections: %w", err)
	}
	defer rows.Close()

	var collections []*domain.Collection
	for rows.Next() {
		c := &domain.Collection{}
		if err := rows.Scan(&c.ID, &c.Name, &c.Slug, &c.Description, &c.ImageURL, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("failed to scan collection: %w", err)
		}
		collections = append(collections, c)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return collections, nil
}

// CreateProduct inserts p with a generated id and returns the stored record.
func (r *Repository) CreateProduct(ctx context.Context, p *domain.Product) (*domain.Product, error) {
	p.Name = strings.TrimSpace(p.Name)
	p.Slug = strings.TrimSpace(p.Slug)
	p.Price.Currency = strings.ToUpper(strings.TrimSpace(p.Price.Currency))
	if p.Price.Currency == "" {
		p.Price.Currency = domain.DefaultCurrency
	}
	if p.Name == "" || p.Slug == "" || p.Price.Amount < 0 {
		return nil, ErrInvalidInput
	}

	created := *p
	created.ID = uuid.NewString()
	created.CreatedAt = r.now().UTC()

	var collectionID sql.NullString
	if created.CollectionID != "" {
		collectionID = sql.NullString{String: created.CollectionID, Valid: true}
	}

	query := `
		INSERT INTO products (id, collection_id, name, slug, description, price_minor, currency, image_url, featured, created_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
	`
	_, err := r.db.ExecContext(ctx, query,
		created.ID,
		collectionID,
		created.Name,
		created.Slug,
		created.Description,
		created.Price.Amount,
		created.Price.Currency,
		created.ImageURL,
		created.Featured,
		created.CreatedAt,
	)
	if isUniqueViolation(err) {
		return nil, fmt.Errorf("product slug %q: %w", created.Slug, ErrConflict)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to insert product: %w", err)
	}

	return &created, nil
}

func (r *Repository) SetProductImage(ctx context.Context, id, imageURL string) error {
	result, err := r.db.ExecContext(ctx, `UPDATE products SET image_url = $1 WHERE id = $2`, imageURL, id)
	if err != nil {
		return fmt.Errorf("failed to update product image: %w", err)
	}

	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

func (r *Repository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

func (r *Repository) Close() error {
	return r.db.Close()
}

func scanProducts(rows *sql.Rows) ([]*domain.Product, error) {
	var products []*domain.Product
	for rows.Next() {
		p := &domain.Product{}
		var collectionID sql.NullString
		err := rows.Scan(
			&p.ID,
			&collectionID,
			&p.Name,
			&p.Slug,
			&p.Description,
			&p.Price.Amount,
			&p.Price.Currency,
			&p.ImageURL,
			&p.Featured,
			&p.CreatedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		p.CollectionID = collectionID.String
		products = append(products, p)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("row iteration error: %w", err)
	}

	return products, nil
}

// isUniqueViolation reports whether err is a unique constraint failure from
// either supported driver.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	if errors.As(err, &pqErr) {
		return pqErr.Code == "23505"
	}
	var liteErr *moderncsqlite.Error
	if errors.As(err, &liteErr) {
		return liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_UNIQUE ||
			liteErr.Code() == sqlite3.SQLITE_CONSTRAINT_PRIMARYKEY
	}
	return false
}

func clampLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	if limit > MaxLimit {
		return MaxLimit
	}
	return limit
}
