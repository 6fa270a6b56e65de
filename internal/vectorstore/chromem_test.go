package vectorstore

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testVectorSize = 4

func newTestStore(t *testing.T) *ChromemStore {
	t.Helper()
	store, err := NewChromemStore(ChromemConfig{
		CollectionName: "test_documents",
		VectorSize:     testVectorSize,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = store.Close() })
	return store
}

func testDoc(id string, owner string, docID string, axis int) Document {
	vec := make([]float32, testVectorSize)
	vec[axis%testVectorSize] = 1
	return Document{
		ID:      id,
		Content: fmt.Sprintf("content of %s", id),
		Vector:  vec,
		Metadata: Metadata{
			ChunkID:    id,
			DocumentID: docID,
			Filename:   "lease.pdf",
			Page:       1,
			UploadDate: time.Now().UTC(),
		},
	}
}

func TestChromemStore_UpsertAndQuery(t *testing.T) {
	store := newTestStore(t)
	ctx := ContextWithOwner(context.Background(), "alice")

	docs := []Document{
		testDoc("d1_chunk_0", "alice", "d1", 0),
		testDoc("d1_chunk_1", "alice", "d1", 1),
	}
	require.NoError(t, store.Upsert(ctx, docs))

	results, err := store.Query(ctx, []float32{1, 0, 0, 0}, 2, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 2)

	// Exact match first, with near-zero cosine distance.
	assert.Equal(t, "d1_chunk_0", results[0].ID)
	assert.InDelta(t, 0, results[0].Distance, 1e-5)
	assert.Equal(t, "d1", results[0].Metadata.DocumentID)
	assert.Equal(t, "alice", results[0].Metadata.OwnerID)
}

func TestChromemStore_OwnerIsolation(t *testing.T) {
	store := newTestStore(t)
	aliceCtx := ContextWithOwner(context.Background(), "alice")
	bobCtx := ContextWithOwner(context.Background(), "bob")

	require.NoError(t, store.Upsert(aliceCtx, []Document{testDoc("a_chunk_0", "alice", "a", 0)}))
	require.NoError(t, store.Upsert(bobCtx, []Document{testDoc("b_chunk_0", "bob", "b", 0)}))

	// Bob queries with a vector identical to Alice's document; only his
	// own comes back.
	results, err := store.Query(bobCtx, []float32{1, 0, 0, 0}, 10, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "b_chunk_0", results[0].ID)
}

func TestChromemStore_QueryWithoutOwnerFails(t *testing.T) {
	store := newTestStore(t)
	_, err := store.Query(context.Background(), []float32{1, 0, 0, 0}, 5, Filter{})
	assert.ErrorIs(t, err, ErrMissingOwner)
}

func TestChromemStore_QueryEmptyCollection(t *testing.T) {
	store := newTestStore(t)
	ctx := ContextWithOwner(context.Background(), "alice")

	results, err := store.Query(ctx, []float32{1, 0, 0, 0}, 5, Filter{})
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestChromemStore_KClampedToCollectionSize(t *testing.T) {
	store := newTestStore(t)
	ctx := ContextWithOwner(context.Background(), "alice")

	require.NoError(t, store.Upsert(ctx, []Document{testDoc("d1_chunk_0", "alice", "d1", 0)}))

	results, err := store.Query(ctx, []float32{1, 0, 0, 0}, 50, Filter{})
	require.NoError(t, err)
	assert.Len(t, results, 1)
}

func TestChromemStore_UpsertValidation(t *testing.T) {
	store := newTestStore(t)
	ctx := ContextWithOwner(context.Background(), "alice")

	t.Run("empty batch", func(t *testing.T) {
		assert.ErrorIs(t, store.Upsert(ctx, nil), ErrEmptyDocuments)
	})

	t.Run("dimension mismatch", func(t *testing.T) {
		doc := testDoc("d1_chunk_0", "alice", "d1", 0)
		doc.Vector = []float32{1, 0}
		assert.ErrorIs(t, store.Upsert(ctx, []Document{doc}), ErrDimensionMismatch)
	})

	t.Run("missing owner", func(t *testing.T) {
		err := store.Upsert(context.Background(), []Document{testDoc("d1_chunk_0", "", "d1", 0)})
		assert.ErrorIs(t, err, ErrMissingOwner)
	})
}

func TestChromemStore_UpsertOverwritesDuplicateID(t *testing.T) {
	store := newTestStore(t)
	ctx := ContextWithOwner(context.Background(), "alice")

	doc := testDoc("d1_chunk_0", "alice", "d1", 0)
	require.NoError(t, store.Upsert(ctx, []Document{doc}))

	doc.Content = "revised content"
	require.NoError(t, store.Upsert(ctx, []Document{doc}))

	count, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, count)

	results, err := store.Query(ctx, []float32{1, 0, 0, 0}, 1, Filter{})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "revised content", results[0].Content)
}

func TestChromemStore_DeleteWhere(t *testing.T) {
	store := newTestStore(t)
	aliceCtx := ContextWithOwner(context.Background(), "alice")
	bobCtx := ContextWithOwner(context.Background(), "bob")

	require.NoError(t, store.Upsert(aliceCtx, []Document{
		testDoc("a1_chunk_0", "alice", "a1", 0),
		testDoc("a1_chunk_1", "alice", "a1", 1),
		testDoc("a2_chunk_0", "alice", "a2", 2),
	}))
	require.NoError(t, store.Upsert(bobCtx, []Document{testDoc("b1_chunk_0", "bob", "a1", 0)}))

	t.Run("scoped to owner and document", func(t *testing.T) {
		removed, err := store.DeleteWhere(aliceCtx, Filter{DocumentID: "a1"})
		require.NoError(t, err)
		assert.Equal(t, 2, removed)

		// Bob's chunk under the same document id survives.
		count, err := store.Count(aliceCtx)
		require.NoError(t, err)
		assert.Equal(t, 2, count)
	})

	t.Run("no matches removes nothing", func(t *testing.T) {
		removed, err := store.DeleteWhere(aliceCtx, Filter{DocumentID: "missing"})
		require.NoError(t, err)
		assert.Zero(t, removed)
	})

	t.Run("fails closed without owner", func(t *testing.T) {
		_, err := store.DeleteWhere(context.Background(), Filter{DocumentID: "a2"})
		assert.ErrorIs(t, err, ErrMissingOwner)
	})
}

func TestChromemStore_DeleteWhereGlobal(t *testing.T) {
	store := newTestStore(t)
	aliceCtx := ContextWithOwner(context.Background(), "alice")
	bobCtx := ContextWithOwner(context.Background(), "bob")

	require.NoError(t, store.Upsert(aliceCtx, []Document{testDoc("a1_chunk_0", "alice", "shared", 0)}))
	require.NoError(t, store.Upsert(bobCtx, []Document{testDoc("b1_chunk_0", "bob", "shared", 1)}))

	t.Run("rejects empty filter", func(t *testing.T) {
		_, err := store.DeleteWhereGlobal(context.Background(), Filter{})
		assert.ErrorIs(t, err, ErrEmptyFilter)
	})

	t.Run("removes across owners", func(t *testing.T) {
		removed, err := store.DeleteWhereGlobal(context.Background(), Filter{DocumentID: "shared"})
		require.NoError(t, err)
		assert.Equal(t, 2, removed)
	})
}
