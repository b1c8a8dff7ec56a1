package mirror

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/evcraddock/immo/internal/commune"
	"github.com/evcraddock/immo/internal/db"
	"github.com/evcraddock/immo/internal/query"
	"github.com/evcraddock/immo/internal/query/querytest"
	"github.com/evcraddock/immo/internal/schema"
	"github.com/evcraddock/immo/internal/transaction"
)

func TestSyncAndQuery(t *testing.T) {
	src := remote()
	store := openStore(t)
	ctx := context.Background()

	var pages []int
	infos, err := store.Sync(ctx, src, TablesFor(schema.Default()), SyncOptions{
		PageSize: 2,
		Source:   "https://abc.supabase.co/rest/v1",
		Progress: func(_ string, n int) { pages = append(pages, n) },
	})
	require.NoError(t, err)
	require.Len(t, infos, 2)
	assert.Equal(t, 3, infos[0].Rows)
	assert.Equal(t, 4, infos[1].Rows)
	assert.Equal(t, []int{2, 3, 2, 4}, pages)

	tables, err := store.Tables(ctx)
	require.NoError(t, err)
	require.Len(t, tables, 2)
	assert.Equal(t, "Dim_ville", tables[0].Name)
	assert.Equal(t, 3, tables[0].Rows)
	assert.Equal(t, "https://abc.supabase.co/rest/v1", tables[0].Source)
	assert.False(t, tables[0].SyncedAt.IsZero())

	dir := commune.NewDirectory(store, schema.Default(), commune.DirectoryOptions{PageSize: 2})
	all, err := dir.Load(ctx)
	require.NoError(t, err)
	require.Len(t, all, 3)
	assert.Equal(t, "Bordeaux", all[0].Name)

	c, err := commune.NewFetcher(store, schema.Default()).Detail(ctx, "6000")
	require.NoError(t, err)
	assert.Equal(t, "Nice", c.Name)
	rent, ok := c.Attribute("loypredm2")
	assert.True(t, ok)
	assert.Equal(t, 15.5, rent)

	txs, err := transaction.NewFetcher(store, schema.Default(), 0).Fetch(ctx, "33000")
	require.NoError(t, err)
	require.Len(t, txs, 2)
	assert.Equal(t, 2022, txs[0].Year())
}

func TestSyncNormalizesNumericCodes(t *testing.T) {
	src := querytest.NewMemory()
	src.Put("Dim_ville",
		query.Row{"code_insee": 1053.0, "code_postal": 1000.0, "nom_commune": "Bourg-en-Bresse", "loypredm2": 11.0},
	)
	src.Put("Fct_transaction_immo",
		query.Row{"code_postal": json.Number("1000"), "date_mutation": "2023-02-01", "valeur_fonciere": 150000.0, "surface_reelle_bati": 60.0},
	)

	store := openStore(t)
	ctx := context.Background()
	_, err := store.Sync(ctx, src, TablesFor(schema.Default()), SyncOptions{})
	require.NoError(t, err)

	all, err := commune.NewDirectory(store, schema.Default(), commune.DirectoryOptions{}).Load(ctx)
	require.NoError(t, err)
	require.Len(t, all, 1)
	assert.Equal(t, "01000", all[0].PostalCode)

	c, err := commune.NewFetcher(store, schema.Default()).Detail(ctx, all[0].PostalCode)
	require.NoError(t, err)
	assert.Equal(t, "01053", c.InseeCode)

	txs, err := transaction.NewFetcher(store, schema.Default(), 0).Fetch(ctx, "1000")
	require.NoError(t, err)
	assert.Len(t, txs, 1)
}

func TestExecuteFilters(t *testing.T) {
	store := synced(t)
	ctx := context.Background()

	res, err := query.From("Fct_transaction_immo").
		Select("valeur_fonciere").
		Gt("valeur_fonciere", 100000.0).
		OrderBy("valeur_fonciere", true).
		WithCount().
		Execute(ctx, store)
	require.NoError(t, err)
	require.Len(t, res.Rows, 3)
	assert.Equal(t, 3, res.Total)
	assert.Equal(t, json.Number("250000"), res.Rows[0]["valeur_fonciere"])
	assert.NotContains(t, res.Rows[0], "code_postal")

	res, err = query.From("Dim_ville").OrderBy("code_insee", false).Range(1, 5).Execute(ctx, store)
	require.NoError(t, err)
	require.Len(t, res.Rows, 2)
	assert.Equal(t, -1, res.Total)
	assert.Equal(t, "33063", res.Rows[0]["code_insee"])
}

func TestExecuteUnknownColumn(t *testing.T) {
	store := synced(t)

	_, err := query.From("Dim_ville").Select("loyer_inexistant").Execute(context.Background(), store)
	require.Error(t, err)
	assert.True(t, query.IsMissingColumn(err))

	_, err = query.From("Dim_ville").Eq("nope", "1").Execute(context.Background(), store)
	assert.True(t, query.IsMissingColumn(err))
}

func TestExecuteUnknownTable(t *testing.T) {
	store := openStore(t)

	_, err := query.From("Dim_ville").Execute(context.Background(), store)
	var apiErr *query.APIError
	require.True(t, errors.As(err, &apiErr))
	assert.Equal(t, query.CodeTableNotInCache, apiErr.Code)
	assert.True(t, query.IsMissingColumn(err))
}

func TestSyncFailureKeepsSnapshot(t *testing.T) {
	store := synced(t)
	ctx := context.Background()

	failing := remote()
	failing.FailWith("Fct_transaction_immo", &query.APIError{Status: 403, Code: query.CodeInsufficientPriv})

	_, err := store.Sync(ctx, failing, TablesFor(schema.Default()), SyncOptions{})
	require.Error(t, err)
	assert.True(t, query.IsPermissionDenied(err))

	res, err := query.From("Fct_transaction_immo").WithCount().Execute(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 4, res.Total)
}

func TestSyncReplaces(t *testing.T) {
	store := synced(t)
	ctx := context.Background()

	src := remote()
	src.Put("Dim_ville", query.Row{"code_insee": "75056", "code_postal": "75001", "nom_commune": "Paris"})
	_, err := store.Sync(ctx, src, TablesFor(schema.Default()), SyncOptions{})
	require.NoError(t, err)

	res, err := query.From("Dim_ville").WithCount().Execute(ctx, store)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Total)

	_, err = query.From("Dim_ville").Select("loypredm2").Execute(ctx, store)
	assert.True(t, query.IsMissingColumn(err), "columns of the previous snapshot are dropped")
}

func TestSyncPageCount(t *testing.T) {
	src := querytest.NewMemory()
	var rows []query.Row
	for i := 0; i < 10; i++ {
		rows = append(rows, query.Row{"code_insee": fmt.Sprintf("%05d", i), "code_postal": "01000", "nom_commune": "X"})
	}
	src.Put("Dim_ville", rows...)

	store := openStore(t)
	_, err := store.Sync(context.Background(), src, []Table{{Name: "Dim_ville", OrderBy: []string{"code_insee"}}}, SyncOptions{PageSize: 5})
	require.NoError(t, err)
	assert.Equal(t, 2, src.CallsTo("Dim_ville"))
}

func remote() *querytest.Memory {
	src := querytest.NewMemory()
	src.Put("Dim_ville",
		query.Row{"code_insee": "33063", "code_postal": "33000", "nom_commune": "Bordeaux", "loypredm2": 14.2},
		query.Row{"code_insee": "06088", "code_postal": "06000", "nom_commune": "Nice", "loypredm2": "15,5"},
		query.Row{"code_insee": "75056", "code_postal": "75001", "nom_commune": "Paris", "loypredm2": nil},
	)
	src.Put("Fct_transaction_immo",
		query.Row{"code_postal": "33000", "date_mutation": "2023-02-01", "valeur_fonciere": 200000.0, "surface_reelle_bati": 50.0, "type_local": "Appartement"},
		query.Row{"code_postal": "33000", "date_mutation": "2022-06-01", "valeur_fonciere": 250000.0, "surface_reelle_bati": 60.0, "type_local": "Maison"},
		query.Row{"code_postal": "33000", "date_mutation": "2023-03-01", "valeur_fonciere": 4000.0, "surface_reelle_bati": 50.0, "type_local": "Appartement"},
		query.Row{"code_postal": "06000", "date_mutation": "2023-03-01", "valeur_fonciere": 180000.0, "surface_reelle_bati": 45.0, "type_local": "Appartement"},
	)
	return src
}

func openStore(t *testing.T) *Store {
	t.Helper()
	d, err := db.Open(filepath.Join(t.TempDir(), "mirror.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = d.Close() })
	return New(d)
}

func synced(t *testing.T) *Store {
	t.Helper()
	store := openStore(t)
	_, err := store.Sync(context.Background(), remote(), TablesFor(schema.Default()), SyncOptions{})
	require.NoError(t, err)
	return store
}
