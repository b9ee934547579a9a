// Package images keeps product images on local disk and their rows in the database.
package images

import (
	"context"
	"errors"
	"io"
	"mime/multipart"
	"os"
	"path/filepath"
	"strings"
	"time"

	"go-pos-ledger/internal/apperr"
	"go-pos-ledger/internal/models"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// MaxFiles is how many images one upload may carry.
const MaxFiles = 5

var allowedExt = map[string]bool{".jpg": true, ".jpeg": true, ".png": true, ".gif": true, ".webp": true}

type Store struct {
	db        *gorm.DB
	dir       string
	urlPrefix string
	log       *zap.Logger
	now       func() time.Time
}

// NewStore saves files under dir. Stored paths are urlPrefix + "/" + filename.
func NewStore(db *gorm.DB, dir, urlPrefix string, log *zap.Logger) *Store {
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{
		db:        db,
		dir:       dir,
		urlPrefix: strings.TrimRight(urlPrefix, "/"),
		log:       log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Upload stores the files under generated names and appends them to the product's images.
// Files already written are removed again if anything fails.
func (s *Store) Upload(ctx context.Context, productID string, files []*multipart.FileHeader) ([]models.Image, error) {
	if len(files) == 0 {
		return nil, apperr.Invalid("images", "no images uploaded")
	}
	if len(files) > MaxFiles {
		return nil, apperr.Invalid("images", "at most %d images per upload, got %d", MaxFiles, len(files))
	}
	for _, fh := range files {
		if !allowedExt[strings.ToLower(filepath.Ext(fh.Filename))] {
			return nil, apperr.Invalid("images", "%s is not an image", fh.Filename)
		}
	}
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return nil, err
	}

	var written []string
	cleanup := func() {
		for _, path := range written {
			if err := os.Remove(path); err != nil && !errors.Is(err, os.ErrNotExist) {
				s.log.Warn("failed to remove uploaded file", zap.String("path", path), zap.Error(err))
			}
		}
	}

	now := s.now()
	images := make([]models.Image, 0, len(files))
	for _, fh := range files {
		name := uuid.NewString() + strings.ToLower(filepath.Ext(fh.Filename))
		path := filepath.Join(s.dir, name)
		written = append(written, path)
		if err := save(fh, path); err != nil {
			cleanup()
			return nil, err
		}
		images = append(images, models.Image{
			ProductID:   productID,
			Filename:    name,
			StoragePath: s.urlPrefix + "/" + name,
			UploadDate:  now,
		})
	}

	err := s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := s.requireProduct(tx, productID); err != nil {
			return err
		}
		return tx.Create(&images).Error
	})
	if err != nil {
		cleanup()
		return nil, apperr.Persistence("save images", err)
	}
	return images, nil
}

// List returns a product's images in upload order.
func (s *Store) List(ctx context.Context, productID string) ([]models.Image, error) {
	db := s.db.WithContext(ctx)
	if err := s.requireProduct(db, productID); err != nil {
		return nil, err
	}

	images := []models.Image{}
	if err := db.Where("product_id = ?", productID).Order("seq").Find(&images).Error; err != nil {
		return nil, apperr.Persistence("list images", err)
	}
	return images, nil
}

// Delete removes one image row and its file.
func (s *Store) Delete(ctx context.Context, productID, filename string) error {
	if filename == "" || filepath.Base(filename) != filename {
		return apperr.Invalid("filename", "invalid filename %q", filename)
	}

	db := s.db.WithContext(ctx)
	if err := s.requireProduct(db, productID); err != nil {
		return err
	}

	res := db.Where("product_id = ? AND filename = ?", productID, filename).Delete(&models.Image{})
	if res.Error != nil {
		return apperr.Persistence("delete image", res.Error)
	}
	if res.RowsAffected == 0 {
		return apperr.NotFound("image", filename)
	}

	if err := os.Remove(filepath.Join(s.dir, filename)); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("image row deleted but file remains", zap.String("filename", filename), zap.Error(err))
	}
	return nil
}

func (s *Store) requireProduct(db *gorm.DB, id string) error {
	var count int64
	if err := db.Model(&models.Product{}).Where("id = ?", id).Count(&count).Error; err != nil {
		return apperr.Persistence("find product", err)
	}
	if count == 0 {
		return apperr.NotFound("product", id)
	}
	return nil
}

func save(fh *multipart.FileHeader, dst string) error {
	src, err := fh.Open()
	if err != nil {
		return err
	}
	defer src.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, src); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
