// Package rdbcache is the RocksDB-backed variant of ldbcache: an
// on-disk memo of expected-payoff vectors keyed by strategy profile.
// It requires cgo and a RocksDB installation; prefer ldbcache unless
// RocksDB's compaction behavior is needed for very large runs.
package rdbcache

import (
	"bytes"
	"encoding/gob"

	"github.com/golang/glog"
	rocksdb "github.com/tecbot/gorocksdb"

	agg "github.com/timpalpant/go-agg"
)

// Params are the database parameters for a payoff cache.
type Params struct {
	Path         string
	Options      *rocksdb.Options
	ReadOptions  *rocksdb.ReadOptions
	WriteOptions *rocksdb.WriteOptions
}

// DefaultParams returns database parameters suitable for most uses.
func DefaultParams(path string) Params {
	opts := rocksdb.NewDefaultOptions()
	opts.SetCreateIfMissing(true)
	return Params{
		Path:         path,
		Options:      opts,
		ReadOptions:  rocksdb.NewDefaultReadOptions(),
		WriteOptions: rocksdb.NewDefaultWriteOptions(),
	}
}

// Cache memoizes Oracle.GetPayoffVector results in a RocksDB
// database. Like the underlying oracle, a Cache must not be used
// concurrently.
type Cache struct {
	oracle agg.Oracle[float64]
	params Params
	db     *rocksdb.DB

	hits, misses int
}

// New opens (or creates) a cache database, wrapping the given oracle.
func New(params Params, oracle agg.Oracle[float64]) (*Cache, error) {
	db, err := rocksdb.OpenDb(params.Options, params.Path)
	if err != nil {
		return nil, err
	}

	return &Cache{
		oracle: oracle,
		params: params,
		db:     db,
	}, nil
}

// Close implements io.Closer.
func (c *Cache) Close() error {
	glog.V(1).Infof("Payoff cache: %d hits, %d misses", c.hits, c.misses)
	c.db.Close()
	return nil
}

// GetPayoffVector fills dest with the expected payoff of each of
// player's actions against s, computing and storing the vector on a
// cache miss.
func (c *Cache) GetPayoffVector(dest []float64, player int, s []float64) error {
	key, err := encodeKey(player, s)
	if err != nil {
		return err
	}

	val, err := c.db.Get(c.params.ReadOptions, key)
	if err != nil {
		return err
	}
	defer val.Free()
	if val.Size() > 0 {
		c.hits++
		return decodeVector(val.Data(), dest)
	}

	c.misses++
	if err := c.oracle.GetPayoffVector(dest, player, s); err != nil {
		return err
	}

	buf, err := encodeVector(dest)
	if err != nil {
		return err
	}
	return c.db.Put(c.params.WriteOptions, key, buf)
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
