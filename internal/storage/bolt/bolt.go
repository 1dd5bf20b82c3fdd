// Package bolt stores the point-of-sale state in a single bbolt file.
//
// The kv bucket holds JSON values under the same keys the browser build used
// for local storage, with prices and totals as bare JSON numbers. The images
// bucket holds product photos keyed by their img_ reference.
package bolt

import (
	"context"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/go-faster/errors"
	jsoniter "github.com/json-iterator/go"
	pgzip "github.com/klauspost/pgzip"
	"github.com/shopspring/decimal"
	"go.etcd.io/bbolt"

	"github.com/xenking/quickpay/internal/domain/settings"
)

var (
	bucketKV     = []byte("kv")
	bucketImages = []byte("images")
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

var _ settings.Store = (*DB)(nil)

// DB is an open store file.
type DB struct {
	bolt *bbolt.DB
}

// Open opens or creates the store file at path and ensures its buckets exist.
func Open(path string) (*DB, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o750); err != nil {
			return nil, errors.Wrap(err, "create data dir")
		}
	}

	b, err := bbolt.Open(path, 0o600, &bbolt.Options{Timeout: time.Second})
	if err != nil {
		return nil, errors.Wrapf(err, "open %s", path)
	}

	err = b.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{bucketKV, bucketImages} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return errors.Wrapf(err, "create bucket %s", name)
			}
		}
		return nil
	})
	if err != nil {
		_ = b.Close()
		return nil, err
	}
	return &DB{bolt: b}, nil
}

// Close releases the file lock.
func (db *DB) Close() error {
	return db.bolt.Close()
}

// Path returns the store file path.
func (db *DB) Path() string {
	return db.bolt.Path()
}

// Ping verifies the store is readable.
func (db *DB) Ping(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	return db.bolt.View(func(tx *bbolt.Tx) error {
		if tx.Bucket(bucketKV) == nil {
			return errors.New("kv bucket missing")
		}
		return nil
	})
}

// Get decodes the JSON value stored under key into v.
func (db *DB) Get(_ context.Context, key string, v any) (bool, error) {
	var found bool
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		var err error
		found, err = getJSON(tx, key, v)
		return err
	})
	return found, err
}

// Put stores v as JSON under key.
func (db *DB) Put(_ context.Context, key string, v any) error {
	return db.bolt.Update(func(tx *bbolt.Tx) error {
		return putJSON(tx, key, v)
	})
}

func getJSON(tx *bbolt.Tx, key string, v any) (bool, error) {
	raw := tx.Bucket(bucketKV).Get([]byte(key))
	if raw == nil {
		return false, nil
	}
	if err := json.Unmarshal(raw, v); err != nil {
		return true, errors.Wrapf(err, "decode %s", key)
	}
	return true, nil
}

func putJSON(tx *bbolt.Tx, key string, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return errors.Wrapf(err, "encode %s", key)
	}
	return tx.Bucket(bucketKV).Put([]byte(key), raw)
}

// Backup writes a gzip-compressed snapshot of the whole store to w.
func (db *DB) Backup(w io.Writer) (int64, error) {
	gz := pgzip.NewWriter(w)
	var n int64
	err := db.bolt.View(func(tx *bbolt.Tx) error {
		var err error
		n, err = tx.WriteTo(gz)
		return err
	})
	if err != nil {
		_ = gz.Close()
		return n, errors.Wrap(err, "write snapshot")
	}
	if err := gz.Close(); err != nil {
		return n, errors.Wrap(err, "close gzip")
	}
	return n, nil
}

// Restore replaces the store file at path with a snapshot written by Backup.
// The store must not be open.
func Restore(path string, r io.Reader) error {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "open gzip")
	}
	defer func() { _ = gz.Close() }()

	tmp, err := os.CreateTemp(filepath.Dir(path), filepath.Base(path)+".restore-*")
	if err != nil {
		return errors.Wrap(err, "create temp file")
	}
	defer func() { _ = os.Remove(tmp.Name()) }()

	if _, err := io.Copy(tmp, gz); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, "copy snapshot")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, "close temp file")
	}

	// Make sure the snapshot is a valid store before replacing anything.
	check, err := bbolt.Open(tmp.Name(), 0o600, &bbolt.Options{Timeout: time.Second, ReadOnly: true})
	if err != nil {
		return errors.Wrap(err, "open snapshot")
	}
	if err := check.Close(); err != nil {
		return errors.Wrap(err, "close snapshot")
	}

	if err := os.Rename(tmp.Name(), path); err != nil {
		return errors.Wrap(err, "replace store")
	}
	return nil
}

// amount is a decimal stored as a bare JSON number. Quoted values still
// decode.
type amount decimal.Decimal

func (a amount) MarshalJSON() ([]byte, error) {
	return []byte(decimal.Decimal(a).String()), nil
}

func (a *amount) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	*a = amount(d)
	return nil
}
