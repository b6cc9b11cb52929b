package align_test

import (
	"context"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/grailbio/hlaverify/align"
	"github.com/grailbio/hlaverify/readpair"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

const samText = "@HD\tVN:1.0\tSO:unsorted\n" +
	"@SQ\tSN:A*02:09:01:01\tLN:8\n" +
	"@PG\tID:bowtie2\tPN:bowtie2\n" +
	"r1\t99\tA*02:09:01:01\t1\t42\t4M\t=\t5\t8\tACGT\tIIII\tAS:i:0\tXN:i:0\tNM:i:0\tMD:Z:4\n" +
	"r1\t147\tA*02:09:01:01\t5\t42\t4M\t=\t1\t-8\tACGT\tIIII\tAS:i:0\tNM:i:0\n" +
	"r2\t99\tA*02:09:01:01\t1\t42\t4M\t=\t5\t8\tACGA\tIIII\tAS:i:-6\tNM:i:1\n" +
	"r3\t99\tA*02:09:01:01\t1\t42\t4M\t=\t5\t8\tACGT\tIIII\tAS:i:0\n" +
	"r4\t99\tA*02:09:01:01\t1\t42\t4M\t=\t5\t8\tACGA\tIIII\tNM:i:300\n"

func TestCountPerfect(t *testing.T) {
	n, err := align.CountPerfect(strings.NewReader(samText))
	assert.NoError(t, err)
	expect.EQ(t, n, 2)

	n, err = align.CountPerfect(strings.NewReader("@HD\tVN:1.0\n"))
	assert.NoError(t, err)
	expect.EQ(t, n, 0)

	_, err = align.CountPerfect(strings.NewReader("r1\t99\tchr1\n"))
	expect.NotNil(t, err)
}

func TestIndexBase(t *testing.T) {
	expect.EQ(t, align.IndexBase("/cache/A*02:09:01:01.fa"), "/cache/A*02:09:01:01")
	expect.EQ(t, align.IndexBase("/cache.d/ref"), "/cache.d/ref")
	expect.EQ(t, align.IndexBase("ref.fasta"), "ref")
}

func TestArgs(t *testing.T) {
	b := align.NewBowtie2(align.DefaultOpts)
	args := b.Args(readpair.Pair{R1: "r1.fq", R2: "r2.fq"}, "/cache/A")
	expect.EQ(t, strings.Join(args, " "),
		"--end-to-end --very-sensitive --no-mixed --no-discordant --no-unal --score-min L,0,0 -p 32 -x /cache/A -1 r1.fq -2 r2.fq --reorder")
}

// fakeBuild writes empty index files and logs each build to $base.built.
const fakeBuild = `#!/bin/sh
ref="$2"
base="$3"
[ -f "$ref" ] || exit 3
for ext in .1.bt2 .2.bt2 .3.bt2 .4.bt2 .rev.1.bt2 .rev.2.bt2; do
  : > "$base$ext"
done
echo built >> "$base.built"
`

// fakeAlign prints $base.sam, where $base follows -x.
const fakeAlign = `#!/bin/sh
while [ $# -gt 0 ]; do
  if [ "$1" = "-x" ]; then base="$2"; fi
  shift
done
if [ ! -f "$base.sam" ]; then
  echo "no alignments for $base" >&2
  exit 1
fi
cat "$base.sam"
`

func writeScript(t *testing.T, path, script string) {
	assert.NoError(t, ioutil.WriteFile(path, []byte(script), 0755))
}

func TestBowtie2(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	opts := align.DefaultOpts
	opts.Build = filepath.Join(dir, "bowtie2-build")
	opts.Align = filepath.Join(dir, "bowtie2")
	writeScript(t, opts.Build, fakeBuild)
	writeScript(t, opts.Align, fakeAlign)
	b := align.NewBowtie2(opts)

	ref := filepath.Join(dir, "A*02:09:01:01.fa")
	assert.NoError(t, ioutil.WriteFile(ref, []byte(">A*02:09:01:01\nACGTACGT\n"), 0600))
	assert.NoError(t, ioutil.WriteFile(filepath.Join(dir, "A*02:09:01:01.sam"), []byte(samText), 0600))
	pair := readpair.Pair{R1: "r1.fq", R2: "r2.fq"}

	n, err := b.CountPerfectMatches(ctx, pair, ref)
	assert.NoError(t, err)
	expect.EQ(t, n, 2)
	n, err = b.CountPerfectMatches(ctx, pair, ref)
	assert.NoError(t, err)
	expect.EQ(t, n, 2)

	// The index is built once and reused.
	built, err := ioutil.ReadFile(filepath.Join(dir, "A*02:09:01:01.built"))
	assert.NoError(t, err)
	expect.EQ(t, string(built), "built\n")
}

func TestBowtie2Failures(t *testing.T) {
	dir, cleanup := testutil.TempDir(t, "", "")
	defer cleanup()
	ctx := context.Background()
	opts := align.DefaultOpts
	opts.Build = filepath.Join(dir, "bowtie2-build")
	opts.Align = filepath.Join(dir, "bowtie2")
	writeScript(t, opts.Build, fakeBuild)
	writeScript(t, opts.Align, fakeAlign)
	b := align.NewBowtie2(opts)
	pair := readpair.Pair{R1: "r1.fq", R2: "r2.fq"}

	// Index build fails: the reference does not exist.
	_, err := b.CountPerfectMatches(ctx, pair, filepath.Join(dir, "missing.fa"))
	_, ok := err.(*align.Error)
	expect.True(t, ok, "err %v", err)

	// Alignment fails: the fake aligner has no output for this reference.
	ref := filepath.Join(dir, "B*07:02:01:01.fa")
	assert.NoError(t, ioutil.WriteFile(ref, []byte(">B*07:02:01:01\nACGT\n"), 0600))
	_, err = b.CountPerfectMatches(ctx, pair, ref)
	alignErr, ok := err.(*align.Error)
	assert.True(t, ok, "err %v", err)
	assert.HasSubstr(t, alignErr.Stderr, "no alignments for")

	// Missing executable.
	opts.Align = filepath.Join(dir, "nonexistent")
	assert.NoError(t, ioutil.WriteFile(filepath.Join(dir, "B*07:02:01:01.sam"), []byte(samText), 0600))
	_, err = align.NewBowtie2(opts).CountPerfectMatches(ctx, pair, ref)
	expect.NotNil(t, err)
	_, statErr := os.Stat(filepath.Join(dir, "B*07:02:01:01.1.bt2"))
	expect.NoError(t, statErr)
}
