package catalog

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/XLuisDX/dani-candles-sub001/internal/domain"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newMockRepo(t *testing.T) (*Repository, sqlmock.Sqlmock) {
	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() {
		assert.NoError(t, mock.ExpectationsWereMet())
		db.Close()
	})
	return NewWithDB(db, DriverPostgres), mock
}

var productRow = []string{"id", "collection_id", "name", "slug", "description", "price_minor", "currency", "image_url", "featured", "created_at"}

func TestGetProductBySlug_QueryFailureIsNotNotFound(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products p WHERE p.slug = $1`)).
		WithArgs("vanilla-bean").
		WillReturnError(errors.New("connection reset"))

	_, err := repo.GetProductBySlug(context.Background(), "vanilla-bean")
	require.ErrorContains(t, err, "failed to query product: connection reset")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestGetProductBySlug_ScanFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM products p WHERE p.slug = $1`)).
		WithArgs("vanilla-bean").
		WillReturnRows(sqlmock.NewRows(productRow).
			AddRow("p1", nil, "Vanilla", "vanilla-bean", "", "not-a-number", "USD", "", true, time.Now()))

	_, err := repo.GetProductBySlug(context.Background(), "vanilla-bean")
	require.ErrorContains(t, err, "failed to scan product")
}

func TestListProducts_BuildsFilteredQuery(t *testing.T) {
	repo, mock := newMockRepo(t)
	featured := true
	now := time.Now()

	mock.ExpectQuery(regexp.QuoteMeta(
		`FROM products p JOIN collections c ON c.id = p.collection_id WHERE c.slug = $1 AND p.featured = $2 ORDER BY p.created_at, p.id LIMIT $3`)).
		WithArgs("seasonal", true, 4).
		WillReturnRows(sqlmock.NewRows(productRow).
			AddRow("p1", "c1", "Pumpkin", "pumpkin", "", int64(1400), "USD", "", true, now))

	products, err := repo.ListProducts(context.Background(), ProductFilter{CollectionSlug: "seasonal", Featured: &featured, Limit: 4})
	require.NoError(t, err)
	require.Len(t, products, 1)
	assert.Equal(t, "c1", products[0].CollectionID)
	assert.Equal(t, int64(1400), products[0].Price.Amount)
}

func TestListProducts_DefaultLimit(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products p ORDER BY p.created_at, p.id LIMIT $1`)).
		WithArgs(DefaultLimit).
		WillReturnRows(sqlmock.NewRows(productRow))

	products, err := repo.ListProducts(context.Background(), ProductFilter{})
	require.NoError(t, err)
	assert.Empty(t, products)
}

func TestListProducts_RowError(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectQuery(regexp.QuoteMeta(`FROM products p`)).
		WillReturnRows(sqlmock.NewRows(productRow).
			AddRow("p1", nil, "Vanilla", "vanilla", "", int64(1), "USD", "", false, time.Now()).
			RowError(0, errors.New("broken row")))

	_, err := repo.ListProducts(context.Background(), ProductFilter{})
	require.ErrorContains(t, err, "row iteration error")
}

func TestGetCollectionBySlug_QueryFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(regexp.QuoteMeta(`FROM collections`)).
		WithArgs("signature").
		WillReturnError(errors.New("timeout"))

	_, err := repo.GetCollectionBySlug(context.Background(), "signature")
	require.ErrorContains(t, err, "failed to query collection")
	assert.NotErrorIs(t, err, ErrNotFound)
}

func TestSetProductImage_ExecFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`UPDATE products SET image_url = $1 WHERE id = $2`)).
		WithArgs("https://x/y.png", "p1").
		WillReturnError(errors.New("read only"))

	err := repo.SetProductImage(context.Background(), "p1", "https://x/y.png")
	require.ErrorContains(t, err, "failed to update product image")
}

func TestCreateProduct_PostgresUniqueViolation(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO products`)).
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})

	_, err := repo.CreateProduct(context.Background(), &domain.Product{Name: "Vanilla", Slug: "vanilla-bean", Price: domain.Money{Amount: 100}})
	require.ErrorIs(t, err, ErrConflict)
}

func TestCreateProduct_PostgresOtherFailure(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectExec(regexp.QuoteMeta(`INSERT INTO products`)).
		WillReturnError(&pq.Error{Code: "23503", Message: "foreign key violation"})

	_, err := repo.CreateProduct(context.Background(), &domain.Product{Name: "Vanilla", Slug: "vanilla-bean", Price: domain.Money{Amount: 100}})
	require.ErrorContains(t, err, "failed to insert product")
	assert.NotErrorIs(t, err, ErrConflict)
}

func TestClampLimit(t *testing.T) {
	assert.Equal(t, DefaultLimit, clampLimit(0))
	assert.Equal(t, DefaultLimit, clampLimit(-5))
	assert.Equal(t, 7, clampLimit(7))
	assert.Equal(t, MaxLimit, clampLimit(MaxLimit+1))
}
