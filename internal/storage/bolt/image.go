package bolt

import (
	"context"

	"go.etcd.io/bbolt"

	"github.com/xenking/quickpay/internal/domain/product"
)

var _ product.ImageStore = (*ImageRepository)(nil)

// ImageRepository implements product.ImageStore on the images bucket.
type ImageRepository struct {
	db *DB
}

// NewImageRepository returns an ImageRepository over db.
func NewImageRepository(db *DB) *ImageRepository {
	return &ImageRepository{db: db}
}

// GetImage returns the image stored under key.
func (r *ImageRepository) GetImage(_ context.Context, key string) (string, error) {
	var value string
	err := r.db.bolt.View(func(tx *bbolt.Tx) error {
		raw := tx.Bucket(bucketImages).Get([]byte(key))
		if raw == nil {
			return product.ErrImageNotFound
		}
		value = string(raw)
		return nil
	})
	return value, err
}

// PutImage stores value under key, replacing any previous image.
func (r *ImageRepository) PutImage(_ context.Context, key, value string) error {
	return r.db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketImages).Put([]byte(key), []byte(value))
	})
}

// DeleteImage removes key. Missing keys are not an error.
func (r *ImageRepository) DeleteImage(_ context.Context, key string) error {
	return r.db.bolt.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketImages).Delete([]byte(key))
	})
}

// ImageKeys lists every stored image key in byte order.
func (r *ImageRepository) ImageKeys(_ context.Context) ([]string, error) {
	var keys []string
	err := r.db.bolt.View(func(tx *bbolt.Tx) error {
		return tx.Bucket(bucketImages).ForEach(func(k, _ []byte) error {
			keys = append(keys, string(k))
			return nil
		})
	})
	return keys, err
}
