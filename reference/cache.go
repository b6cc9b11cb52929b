package reference

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync/atomic"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlaverify/encoding/fasta"
)

// Ext is the extension of cached reference files.
const Ext = ".fa"

// Cache keeps one FASTA file per full allele name under Dir. A file, once
// present, is trusted and never rewritten or re-read, so entries outlive the
// process and are shared across runs.
//
// Cache takes no locks. Callers must only store what Resolver produced for
// a name: resolution is deterministic, so two writers racing on a name write
// the same bytes and either may win.
type Cache struct {
	Dir    string
	writes int64
}

// NewCache returns a cache rooted at dir, creating dir if needed.
func NewCache(dir string) (*Cache, error) {
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, errors.E(err, "reference: create cache dir", dir)
	}
	return &Cache{Dir: dir}, nil
}

// Path returns the cache file for a full allele name.
func (c *Cache) Path(name string) string {
	return filepath.Join(c.Dir, name+Ext)
}

// Writes returns the number of files this Cache has written.
func (c *Cache) Writes() int {
	return int(atomic.LoadInt64(&c.writes))
}

// GetOrCreate returns the path of the cache file for a.Name, writing a as a
// two-line FASTA record first if no such file exists.
func (c *Cache) GetOrCreate(ctx context.Context, a Allele) (string, error) {
	path := c.Path(a.Name)
	if _, err := file.Stat(ctx, path); err == nil {
		log.Debug.Printf("reference: cache hit %s", path)
		return path, nil
	}
	out, err := file.Create(ctx, path)
	if err != nil {
		return "", errors.E(err, "reference: create", path)
	}
	var once errors.Once
	once.Set(fasta.NewWriter(out.Writer(ctx)).Write(fasta.Record{Name: a.Name, Seq: a.Seq}))
	once.Set(out.Close(ctx))
	if err := once.Err(); err != nil {
		return "", errors.E(err, "reference: write", path)
	}
	atomic.AddInt64(&c.writes, 1)
	log.Debug.Printf("reference: cached %s", path)
	return path, nil
}

// Load reads back the cached entry for name. The error is of kind
// errors.NotExist if there is no entry, and errors.Invalid if the file does
// not hold exactly one record.
func (c *Cache) Load(ctx context.Context, name string) (a Allele, err error) {
	path := c.Path(name)
	in, err := file.Open(ctx, path)
	if err != nil {
		return Allele{}, errors.E(errors.NotExist, err, "reference: open", path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = errors.E(e, "reference: close", path)
		}
	}()
	recs, err := fasta.Read(in.Reader(ctx))
	if err != nil {
		return Allele{}, errors.E(errors.Invalid, err, "reference: read", path)
	}
	if len(recs) != 1 {
		return Allele{}, errors.E(errors.Invalid, fmt.Sprintf("reference: %s: %d records, want 1", path, len(recs)))
	}
	return Allele{Name: recs[0].Name, Seq: recs[0].Seq}, nil
}
