// Package readpair picks the paired FASTQ files to verify a sample with.
package readpair

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlaverify/encoding/fastq"
	"github.com/klauspost/compress/gzip"
)

// Pair is the R1 and R2 FASTQ paths for one sample.
type Pair struct {
	R1, R2 string
}

// Patterns lists the read file naming conventions in priority order. The %s
// stands for the mate discriminator, "1" or "2".
var Patterns = []string{
	"*combined_R%s.fastq",    // merged lanes, uncompressed
	"*combined_R%s.fastq.gz", // merged lanes, as delivered
	"*subset_R%s.fastq",      // quality-filtered downsample
}

// Locate returns the read pair to use for the sample in dir. Patterns are
// tried in priority order, and the first pattern with any complete pair
// decides: among its R1 files, in lexical order, the first whose R2 mate
// exists is chosen. Files are not opened.
func Locate(ctx context.Context, dir string) (Pair, error) {
	var names []string
	lister := file.List(ctx, dir, false)
	for lister.Scan() {
		if !lister.IsDir() {
			names = append(names, filepath.Base(lister.Path()))
		}
	}
	if err := lister.Err(); err != nil {
		return Pair{}, errors.E(errors.NotExist, err, "readpair: list", dir)
	}
	sort.Strings(names)
	for _, pattern := range Patterns {
		glob1 := fmt.Sprintf(pattern, "1")
		suffix1 := strings.TrimPrefix(glob1, "*")
		suffix2 := strings.TrimPrefix(fmt.Sprintf(pattern, "2"), "*")
		for _, name := range names {
			if ok, err := filepath.Match(glob1, name); err != nil {
				return Pair{}, errors.E(errors.Invalid, err, "readpair: pattern", glob1)
			} else if !ok {
				continue
			}
			r1 := filepath.Join(dir, name)
			r2 := filepath.Join(dir, strings.TrimSuffix(name, suffix1)+suffix2)
			if _, err := file.Stat(ctx, r2); err == nil {
				log.Printf("readpair: %s: selected %s, %s", dir, name, filepath.Base(r2))
				return Pair{R1: r1, R2: r2}, nil
			}
			log.Debug.Printf("readpair: %s has no mate", r1)
		}
	}
	return Pair{}, errors.E(errors.NotExist, "readpair: no FASTQ pair in", dir)
}

func open(ctx context.Context, path string) (io.Reader, func() error, error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, nil, err
	}
	closeFile := func() error { return in.Close(ctx) }
	if !strings.HasSuffix(path, ".gz") {
		return in.Reader(ctx), closeFile, nil
	}
	gz, err := gzip.NewReader(in.Reader(ctx))
	if err != nil {
		closeFile() // nolint: errcheck
		return nil, nil, err
	}
	return gz, func() error {
		err := gz.Close()
		if e := closeFile(); err == nil {
			err = e
		}
		return err
	}, nil
}

// Count streams both files of p and returns the number of read pairs. It
// fails if either file is malformed or the two files disagree in length or
// read names.
func Count(ctx context.Context, p Pair) (n int, err error) {
	r1, close1, err := open(ctx, p.R1)
	if err != nil {
		return 0, errors.E(err, "readpair: open", p.R1)
	}
	r2, close2, err := open(ctx, p.R2)
	if err != nil {
		close1() // nolint: errcheck
		return 0, errors.E(err, "readpair: open", p.R2)
	}
	var once errors.Once
	defer func() {
		once.Set(close1())
		once.Set(close2())
		if err == nil {
			err = once.Err()
		}
	}()
	sc := fastq.NewPairScanner(r1, r2)
	var read1, read2 fastq.Read
	for sc.Scan(&read1, &read2) {
		n++
	}
	if err := sc.Err(); err != nil {
		return 0, errors.E(errors.Invalid, err, "readpair:", p.R1, p.R2)
	}
	log.Printf("readpair: %d read pairs in %s", n, filepath.Base(p.R1))
	return n, nil
}
