package store_test

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/listenupapp/catalog-server/internal/store"
)

type TestEntity struct {
	ID    string   `json:"id"`
	Name  string   `json:"name"`
	Email string   `json:"email"`
	Tags  []string `json:"tags"`
}

func setupTestStore(t *testing.T) (*store.Store, func()) {
	t.Helper()

	tmpDir, err := os.MkdirTemp("", "entity-test-*")
	require.NoError(t, err)

	dbPath := filepath.Join(tmpDir, "test.db")
	s, err := store.New(dbPath, nil)
	require.NoError(t, err)

	cleanup := func() {
		_ = s.Close()
		_ = os.RemoveAll(tmpDir)
	}

	return s, cleanup
}

func newTestEntity(s *store.Store) *store.Entity[TestEntity] {
	return store.NewEntity[TestEntity](s, "test:").
		WithUniqueIndex("email", "email", func(e *TestEntity) []string { return []string{e.Email} }).
		WithIndex("tag", func(e *TestEntity) []string { return e.Tags })
}

func TestEntity_CreateAndGet(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	entity := newTestEntity(s)
	testData := &TestEntity{ID: "1", Name: "John Doe", Email: "john@example.com", Tags: []string{}}

	require.NoError(t, entity.Create(ctx, "1", testData))

	retrieved, err := entity.Get(ctx, "1")
	require.NoError(t, err)
	assert.Equal(t, testData, retrieved)

	byEmail, err := entity.GetByIndex(ctx, "email", "john@example.com")
	require.NoError(t, err)
	assert.Equal(t, "1", byEmail.ID)
}

func TestEntity_Create_DuplicateID(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	entity := newTestEntity(s)
	require.NoError(t, entity.Create(ctx, "1", &TestEntity{ID: "1", Email: "a@example.com"}))

	err := entity.Create(ctx, "1", &TestEntity{ID: "1", Email: "b@example.com"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
	assert.Equal(t, "id", store.FieldOf(err))
}

func TestEntity_Create_UniqueIndexConflict(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	entity := newTestEntity(s)
	require.NoError(t, entity.Create(ctx, "1", &TestEntity{ID: "1", Email: "same@example.com"}))

	err := entity.Create(ctx, "2", &TestEntity{ID: "2", Email: "same@example.com"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)
	assert.Equal(t, "email", store.FieldOf(err))
	assert.True(t, store.IsUniqueViolation(err))

	_, err = entity.Get(ctx, "2")
	assert.ErrorIs(t, err, store.ErrNotFound, "the losing document must not be written")
}

func TestEntity_Get_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	_, err := newTestEntity(s).Get(context.Background(), "missing")
	assert.ErrorIs(t, err, store.ErrNotFound)

	_, err = newTestEntity(s).GetByIndex(context.Background(), "email", "missing@example.com")
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_ListByIndex_MultiValue(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	entity := newTestEntity(s)
	require.NoError(t, entity.Create(ctx, "1", &TestEntity{ID: "1", Email: "1@x", Tags: []string{"red", "blue"}}))
	require.NoError(t, entity.Create(ctx, "2", &TestEntity{ID: "2", Email: "2@x", Tags: []string{"red"}}))
	require.NoError(t, entity.Create(ctx, "3", &TestEntity{ID: "3", Email: "3@x", Tags: []string{"redder"}}))

	var ids []string
	for e, err := range entity.ListByIndex(ctx, "tag", "red") {
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	slices.Sort(ids)
	assert.Equal(t, []string{"1", "2"}, ids, "prefix-similar values must not leak into the scan")
}

func TestEntity_Update_Reindexes(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	entity := newTestEntity(s)
	require.NoError(t, entity.Create(ctx, "1", &TestEntity{ID: "1", Email: "old@x", Tags: []string{"red"}}))
	require.NoError(t, entity.Create(ctx, "2", &TestEntity{ID: "2", Email: "taken@x"}))

	// Keeping its own unique value is not a conflict.
	require.NoError(t, entity.Update(ctx, "1", &TestEntity{ID: "1", Name: "renamed", Email: "old@x", Tags: []string{"red"}}))

	err := entity.Update(ctx, "1", &TestEntity{ID: "1", Email: "taken@x"})
	require.ErrorIs(t, err, store.ErrAlreadyExists)

	require.NoError(t, entity.Update(ctx, "1", &TestEntity{ID: "1", Email: "new@x", Tags: []string{"blue"}}))

	_, err = entity.GetByIndex(ctx, "email", "old@x")
	assert.ErrorIs(t, err, store.ErrNotFound)
	got, err := entity.GetByIndex(ctx, "email", "new@x")
	require.NoError(t, err)
	assert.Equal(t, "1", got.ID)

	for _, err := range entity.ListByIndex(ctx, "tag", "red") {
		require.NoError(t, err)
		t.Fatal("stale multi-value index entry survived the update")
	}
}

func TestEntity_Update_NotFound(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	err := newTestEntity(s).Update(context.Background(), "missing", &TestEntity{ID: "missing"})
	assert.ErrorIs(t, err, store.ErrNotFound)
}

func TestEntity_ListAndCount_SkipIndexKeys(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	entity := newTestEntity(s)
	for i := range 5 {
		id := fmt.Sprintf("%d", i)
		require.NoError(t, entity.Create(ctx, id, &TestEntity{ID: id, Email: id + "@x", Tags: []string{"t"}}))
	}

	count, err := entity.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 5, count)

	listed := 0
	for e, err := range entity.List(ctx) {
		require.NoError(t, err)
		require.NotEmpty(t, e.ID)
		listed++
	}
	assert.Equal(t, 5, listed)
}

func TestEntity_List_EarlyStop(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	entity := newTestEntity(s)
	for i := range 3 {
		id := fmt.Sprintf("%d", i)
		require.NoError(t, entity.Create(ctx, id, &TestEntity{ID: id, Email: id + "@x"}))
	}

	seen := 0
	for range entity.List(ctx) {
		seen++
		break
	}
	assert.Equal(t, 1, seen)
}

func TestEntity_GetMany(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()
	ctx := context.Background()

	entity := newTestEntity(s)
	require.NoError(t, entity.Create(ctx, "1", &TestEntity{ID: "1", Email: "1@x"}))
	require.NoError(t, entity.Create(ctx, "2", &TestEntity{ID: "2", Email: "2@x"}))

	found, err := entity.GetMany(ctx, []string{"1", "2", "1", "nope"})
	require.NoError(t, err)
	assert.Len(t, found, 2)
	assert.Equal(t, "2@x", found["2"].Email)
}

func TestEntity_CanceledContext(t *testing.T) {
	s, cleanup := setupTestStore(t)
	defer cleanup()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	entity := newTestEntity(s)
	assert.ErrorIs(t, entity.Create(ctx, "1", &TestEntity{ID: "1"}), context.Canceled)
	_, err := entity.Get(ctx, "1")
	assert.ErrorIs(t, err, context.Canceled)
	_, err = entity.Count(ctx)
	assert.ErrorIs(t, err, context.Canceled)
}
