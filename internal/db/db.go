// Package db persists accepted key events in an embedded bbolt file.
package db

import (
	"bytes"
	"encoding/binary"
	"errors"
	"sync"
	"time"

	"github.com/benk79tb/keripy/kering"
	bolt "go.etcd.io/bbolt"
)

var (
	bucketEvents = []byte("evts")
	bucketKels   = []byte("kels")
)

// Baser is the event store of one node. Every operation on a store that is
// not open fails with ClosedError.
type Baser struct {
	mu   sync.RWMutex
	path string
	bolt *bolt.DB
}

// Open creates or opens the store file at path.
func Open(path string) (*Baser, error) {
	b := &Baser{path: path}
	if err := b.Reopen(); err != nil {
		return nil, err
	}
	return b, nil
}

// Reopen opens a closed store again. It is a no-op when already open.
func (b *Baser) Reopen() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bolt != nil {
		return nil
	}
	bdb, err := bolt.Open(b.path, 0o600, &bolt.Options{Timeout: time.Second})
	if err != nil {
		return kering.Wrap(kering.ErrDatabase, err, "open "+b.path)
	}
	err = bdb.Update(func(tx *bolt.Tx) error {
		for _, name := range [][]byte{bucketEvents, bucketKels} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		_ = bdb.Close()
		return kering.Wrap(kering.ErrDatabase, err, "init buckets")
	}
	b.bolt = bdb
	return nil
}

func (b *Baser) Opened() bool {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.bolt != nil
}

func (b *Baser) Path() string {
	return b.path
}

// Close closes the store. Closing a closed store is a no-op.
func (b *Baser) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.bolt == nil {
		return nil
	}
	err := b.bolt.Close()
	b.bolt = nil
	if err != nil {
		return kering.Wrap(kering.ErrDatabase, err, "close "+b.path)
	}
	return nil
}

// PutEvent stores raw as the event of prefix at sn and appends it to the
// prefix's log index. Storing the same bytes again is a no-op; different
// bytes at an occupied sn fail with LikelyDuplicitousError.
func (b *Baser) PutEvent(prefix string, sn uint64, raw []byte) error {
	return b.update(func(tx *bolt.Tx) error {
		key := eventKey(prefix, sn)
		evts := tx.Bucket(bucketEvents)
		if prev := evts.Get(key); prev != nil {
			if bytes.Equal(prev, raw) {
				return nil
			}
			return kering.Newf(kering.ErrLikelyDuplicitous,
				"prefix %s sn %d already holds a different event", prefix, sn)
		}
		if err := evts.Put(key, raw); err != nil {
			return err
		}
		kels, err := tx.Bucket(bucketKels).CreateBucketIfNotExists([]byte(prefix))
		if err != nil {
			return err
		}
		return kels.Put(snKey(sn), key)
	})
}

// GetEvent returns the event of prefix at sn.
func (b *Baser) GetEvent(prefix string, sn uint64) ([]byte, error) {
	var out []byte
	err := b.view(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketEvents).Get(eventKey(prefix, sn))
		if v == nil {
			return kering.Newf(kering.ErrMissingEntry, "no event for %s at sn %d", prefix, sn)
		}
		out = append([]byte(nil), v...)
		return nil
	})
	return out, err
}

// Kel returns every stored event of prefix in sequence order.
func (b *Baser) Kel(prefix string) ([][]byte, error) {
	var out [][]byte
	err := b.view(func(tx *bolt.Tx) error {
		kels := tx.Bucket(bucketKels).Bucket([]byte(prefix))
		if kels == nil {
			return kering.Newf(kering.ErrMissingEntry, "no log for %s", prefix)
		}
		evts := tx.Bucket(bucketEvents)
		return kels.ForEach(func(_, key []byte) error {
			v := evts.Get(key)
			if v == nil {
				return kering.Newf(kering.ErrDatabase, "log index of %s points at missing event", prefix)
			}
			out = append(out, append([]byte(nil), v...))
			return nil
		})
	})
	return out, err
}

// Prefixes lists every prefix with a stored log, in key order.
func (b *Baser) Prefixes() ([]string, error) {
	var out []string
	err := b.view(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketKels).ForEach(func(name, v []byte) error {
			if v == nil {
				out = append(out, string(name))
			}
			return nil
		})
	})
	return out, err
}

// DeleteEvent removes the event of prefix at sn.
func (b *Baser) DeleteEvent(prefix string, sn uint64) error {
	return b.update(func(tx *bolt.Tx) error {
		evts := tx.Bucket(bucketEvents)
		key := eventKey(prefix, sn)
		if evts.Get(key) == nil {
			return kering.Newf(kering.ErrMissingEntry, "no event for %s at sn %d", prefix, sn)
		}
		if err := evts.Delete(key); err != nil {
			return err
		}
		if kels := tx.Bucket(bucketKels).Bucket([]byte(prefix)); kels != nil {
			return kels.Delete(snKey(sn))
		}
		return nil
	})
}

func (b *Baser) view(fn func(tx *bolt.Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.bolt == nil {
		return kering.Newf(kering.ErrClosed, "database %s is not open", b.path)
	}
	return classify(b.bolt.View(fn))
}

func (b *Baser) update(fn func(tx *bolt.Tx) error) error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.bolt == nil {
		return kering.Newf(kering.ErrClosed, "database %s is not open", b.path)
	}
	return classify(b.bolt.Update(fn))
}

// classify passes taxonomy occurrences through and wraps bbolt failures.
func classify(err error) error {
	if err == nil {
		return nil
	}
	if _, ok := kering.KindOf(err); ok {
		return err
	}
	if errors.Is(err, bolt.ErrDatabaseNotOpen) {
		return kering.Wrap(kering.ErrClosed, err, "bbolt")
	}
	return kering.Wrap(kering.ErrDatabase, err, "bbolt")
}

func eventKey(prefix string, sn uint64) []byte {
	key := make([]byte, 0, len(prefix)+1+8)
	key = append(key, prefix...)
	key = append(key, '.')
	return append(key, snKey(sn)...)
}

func snKey(sn uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], sn)
	return buf[:]
}
