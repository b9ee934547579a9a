package images_test

import (
	"bytes"
	"context"
	"fmt"
	"mime/multipart"
	"os"
	"path/filepath"
	"testing"

	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/database/dbtest"
	"go-pos-ledger/internal/images"
	"go-pos-ledger/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

// fileHeaders builds multipart headers the way a gin request would hand them over.
func fileHeaders(t *testing.T, names ...string) []*multipart.FileHeader {
	t.Helper()
	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	for _, name := range names {
		part, err := mw.CreateFormFile("images", name)
		require.NoError(t, err)
		fmt.Fprintf(part, "content of %s", name)
	}
	require.NoError(t, mw.Close())

	form, err := multipart.NewReader(&body, mw.Boundary()).ReadForm(1 << 20)
	require.NoError(t, err)
	t.Cleanup(func() { form.RemoveAll() })
	return form.File["images"]
}

func setup(t *testing.T) (*images.Store, *gorm.DB, string, *models.Product) {
	t.Helper()
	db := dbtest.New(t)
	dir := t.TempDir()
	p := &models.Product{Name: "Lamp", Store: models.Store1}
	require.NoError(t, db.Create(p).Error)
	return images.NewStore(db, dir, "/uploads", nil), db, dir, p
}

func dirEntries(t *testing.T, dir string) []os.DirEntry {
	t.Helper()
	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	return entries
}

func TestUploadListDelete(t *testing.T) {
	store, _, dir, p := setup(t)
	ctx := context.Background()

	saved, err := store.Upload(ctx, p.ID, fileHeaders(t, "front.JPG", "back.png"))
	require.NoError(t, err)
	require.Len(t, saved, 2)
	assert.Equal(t, ".jpg", filepath.Ext(saved[0].Filename))
	assert.NotEqual(t, "front.JPG", saved[0].Filename)
	assert.Equal(t, "/uploads/"+saved[0].Filename, saved[0].StoragePath)

	content, err := os.ReadFile(filepath.Join(dir, saved[1].Filename))
	require.NoError(t, err)
	assert.Equal(t, "content of back.png", string(content))

	list, err := store.List(ctx, p.ID)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, saved[0].Filename, list[0].Filename)

	require.NoError(t, store.Delete(ctx, p.ID, saved[0].Filename))
	assert.Len(t, dirEntries(t, dir), 1)
	assert.ErrorIs(t, store.Delete(ctx, p.ID, saved[0].Filename), apperr.ErrNotFound)

	list, err = store.List(ctx, p.ID)
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

func TestUpload_MissingProductRemovesFiles(t *testing.T) {
	store, _, dir, _ := setup(t)

	_, err := store.Upload(context.Background(), "ghost", fileHeaders(t, "a.png", "b.png"))
	assert.ErrorIs(t, err, apperr.ErrNotFound)
	assert.Empty(t, dirEntries(t, dir))
}

func TestUpload_Validation(t *testing.T) {
	store, _, dir, p := setup(t)
	ctx := context.Background()

	_, err := store.Upload(ctx, p.ID, nil)
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = store.Upload(ctx, p.ID, fileHeaders(t, "1.png", "2.png", "3.png", "4.png", "5.png", "6.png"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = store.Upload(ctx, p.ID, fileHeaders(t, "notes.txt"))
	assert.ErrorIs(t, err, apperr.ErrValidation)

	assert.Empty(t, dirEntries(t, dir))
}

func TestDelete_RejectsPaths(t *testing.T) {
	store, _, _, p := setup(t)

	err := store.Delete(context.Background(), p.ID, "../pos.db")
	assert.ErrorIs(t, err, apperr.ErrValidation)

	_, err = store.List(context.Background(), "ghost")
	assert.ErrorIs(t, err, apperr.ErrNotFound)
}
