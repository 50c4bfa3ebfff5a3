// Package ldbcache memoizes expected-payoff vectors on disk in a
// LevelDB database.
//
// Homotopy and replicator-style solvers query the payoff oracle many
// times at the same or revisited strategy profiles. The engine itself
// never caches (each call recomputes from the projected strategies);
// Cache wraps an Oracle and keeps previously computed payoff vectors
// keyed by the queried profile. It is substantially slower than a hit
// in a caller-managed map but uses a constant amount of memory.
package ldbcache

import (
	"bytes"
	"encoding/gob"

	"github.com/golang/glog"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"

	agg "github.com/timpalpant/go-agg"
)

// Cache memoizes Oracle.GetPayoffVector results in a LevelDB
// database. Like the underlying oracle, a Cache must not be used
// concurrently.
type Cache struct {
	oracle agg.Oracle[float64]
	db     *leveldb.DB
	rOpts  *opt.ReadOptions
	wOpts  *opt.WriteOptions

	hits, misses int
}

// New opens (or creates) a cache database at the given path, wrapping
// the given oracle.
func New(path string, opts *opt.Options, oracle agg.Oracle[float64]) (*Cache, error) {
	db, err := leveldb.OpenFile(path, opts)
	if err != nil {
		return nil, err
	}

	return &Cache{
		oracle: oracle,
		db:     db,
	}, nil
}

// Close implements io.Closer.
func (c *Cache) Close() error {
	glog.V(1).Infof("Payoff cache: %d hits, %d misses", c.hits, c.misses)
	return c.db.Close()
}

// GetPayoffVector fills dest with the expected payoff of each of
// player's actions against s, computing and storing the vector on a
// cache miss.
func (c *Cache) GetPayoffVector(dest []float64, player int, s []float64) error {
	key, err := encodeKey(player, s)
	if err != nil {
		return err
	}

	buf, err := c.db.Get(key, c.rOpts)
	if err == nil {
		c.hits++
		return decodeVector(buf, dest)
	}
	if err != leveldb.ErrNotFound {
		return err
	}

	c.misses++
	if err := c.oracle.GetPayoffVector(dest, player, s); err != nil {
		return err
	}

	buf, err = encodeVector(dest)
	if err != nil {
		return err
	}
	return c.db.Put(key, buf, c.wOpts)
}

func encodeKey(player int, s []float64) ([]byte, error) {
	var buf bytes.Buffer
	enc := gob.NewEncoder(&buf)
	if err := enc.Encode(player); err != nil {
		return nil, err
	}
	if err := enc.Encode(s); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func encodeVector(v []float64) ([]byte, error) {
	var buf bytes.Buffer
	if err := gob.NewEncoder(&buf).Encode(v); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func decodeVector(buf []byte, dest []float64) error {
	var v []float64
	if err := gob.NewDecoder(bytes.NewReader(buf)).Decode(&v); err != nil {
		return err
	}
	copy(dest, v)
	return nil
}
