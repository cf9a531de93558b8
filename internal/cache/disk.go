package cache

import (
	"context"
	"errors"
	"time"

	json "github.com/goccy/go-json"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const diskPrefix = "e:"

// DiskBackend keeps elements in a local leveldb database so they survive a
// restart of the process.
type DiskBackend struct {
	opts options
	db   *leveldb.DB
}

// OpenDiskBackend opens or creates the database at path.
func OpenDiskBackend(path string, opts ...Option) (*DiskBackend, error) {
	db, err := leveldb.OpenFile(path, nil)
	if err != nil {
		return nil, backendError("disk", "open", err)
	}
	return &DiskBackend{opts: newOptions(opts), db: db}, nil
}

func (*DiskBackend) Name() string { return "disk" }

func (b *DiskBackend) Get(_ context.Context, keys Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	raw, err := b.db.Get(diskKey(keys), nil)
	if err != nil {
		if errors.Is(err, leveldb.ErrNotFound) {
			return nil, ErrCacheMiss
		}
		return nil, backendError(b.Name(), "get", err)
	}
	var element Element
	if err := json.Unmarshal(raw, &element); err != nil {
		return nil, backendError(b.Name(), "decode", err)
	}
	if element.IsExpired(b.opts.now()) {
		_ = b.db.Delete(diskKey(keys), nil)
		return nil, ErrCacheMiss
	}
	return &element, nil
}

func (b *DiskBackend) Set(_ context.Context, keys Keys, value string, ttl time.Duration, contextual Keys) (*Element, error) {
	if err := ValidateKeys(keys); err != nil {
		return nil, err
	}
	element := newElement(keys, value, ttl, contextual, b.opts.now())
	raw, err := json.Marshal(element)
	if err != nil {
		return nil, backendError(b.Name(), "encode", err)
	}
	if err := b.db.Put(diskKey(keys), raw, nil); err != nil {
		return nil, backendError(b.Name(), "set", err)
	}
	return element, nil
}

func (b *DiskBackend) Has(ctx context.Context, keys Keys) (bool, error) {
	_, err := b.Get(ctx, keys)
	return hasFromGet(err)
}

func (b *DiskBackend) Flush(_ context.Context, keys Keys) (bool, error) {
	if ValidateKeys(keys) == nil {
		if err := b.db.Delete(diskKey(keys), nil); err != nil {
			return false, backendError(b.Name(), "flush", err)
		}
		return true, nil
	}
	err := b.deleteWhere(func(raw []byte) bool {
		var element Element
		if json.Unmarshal(raw, &element) != nil {
			return false
		}
		return element.Keys.Matches(keys)
	})
	if err != nil {
		return false, backendError(b.Name(), "flush", err)
	}
	return true, nil
}

func (b *DiskBackend) FlushAll(context.Context) (bool, error) {
	if err := b.deleteWhere(func([]byte) bool { return true }); err != nil {
		return false, backendError(b.Name(), "flush_all", err)
	}
	return true, nil
}

func (*DiskBackend) IsContextual() bool { return false }

func (b *DiskBackend) Close() error {
	return b.db.Close()
}

func (b *DiskBackend) deleteWhere(match func([]byte) bool) error {
	it := b.db.NewIterator(util.BytesPrefix([]byte(diskPrefix)), nil)
	batch := new(leveldb.Batch)
	for it.Next() {
		if match(it.Value()) {
			batch.Delete(append([]byte(nil), it.Key()...))
		}
	}
	it.Release()
	if err := it.Error(); err != nil {
		return err
	}
	if batch.Len() == 0 {
		return nil
	}
	return b.db.Write(batch, nil)
}

func diskKey(keys Keys) []byte {
	return []byte(diskPrefix + HashKeys(keys))
}
