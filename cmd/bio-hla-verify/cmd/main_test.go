package cmd

import (
	"bytes"
	"fmt"
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"v.io/x/lib/cmdline"
	"v.io/x/lib/gosh"
)

const corpusA = "HLA:HLA00001\tA*01:01:01:01\t8\tAAAACCCC\n" +
	"HLA:HLA00002\tA*02:09:01:01\t8\tACGTACGT\n" +
	"HLA:HLA00003\tA*03:01:01:01\t8\tGGGGCCCC\n"

// fakeBuild writes empty index files.
const fakeBuild = `#!/bin/sh
for ext in .1.bt2 .2.bt2 .3.bt2 .4.bt2 .rev.1.bt2 .rev.2.bt2; do
  : > "$3$ext"
done
`

// fakeAlign prints $base.sam, where $base follows -x.
const fakeAlign = `#!/bin/sh
while [ $# -gt 0 ]; do
  if [ "$1" = "-x" ]; then base="$2"; fi
  shift
done
cat "$base.sam"
`

// perfectSAM returns n perfect-match records and one mismatched record.
func perfectSAM(n int) string {
	var b strings.Builder
	b.WriteString("@HD\tVN:1.0\n")
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "r%d\t99\tref\t1\t42\t4M\t=\t5\t8\tACGT\tIIII\tAS:i:0\tNM:i:0\n", i)
	}
	b.WriteString("x\t99\tref\t1\t42\t4M\t=\t5\t8\tACGA\tIIII\tAS:i:-6\tNM:i:1\n")
	return b.String()
}

type testEnv struct {
	dir                   string
	fastqRoot, resultRoot string
	refDir, cacheDir      string
	bowtie2, bowtie2Build string
}

func writeFile(t *testing.T, path, data string, mode os.FileMode) {
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0700))
	require.NoError(t, ioutil.WriteFile(path, []byte(data), mode))
}

func newTestEnv(t *testing.T, sh *gosh.Shell) testEnv {
	dir := sh.MakeTempDir()
	e := testEnv{
		dir:          dir,
		fastqRoot:    filepath.Join(dir, "fastq"),
		resultRoot:   filepath.Join(dir, "results"),
		refDir:       filepath.Join(dir, "HLA_seq"),
		cacheDir:     filepath.Join(dir, "cache"),
		bowtie2:      filepath.Join(dir, "bin", "bowtie2"),
		bowtie2Build: filepath.Join(dir, "bin", "bowtie2-build"),
	}
	writeFile(t, e.bowtie2, fakeAlign, 0755)
	writeFile(t, e.bowtie2Build, fakeBuild, 0755)
	writeFile(t, filepath.Join(e.refDir, "A_DNA_3560.txt"), corpusA, 0600)
	writeFile(t, filepath.Join(e.cacheDir, "A*02:09:01:01.sam"), perfectSAM(40), 0600)
	writeFile(t, filepath.Join(e.cacheDir, "A*03:01:01:01.sam"), perfectSAM(15), 0600)
	writeFile(t, filepath.Join(e.fastqRoot, "S1", "S1_combined_R1.fastq"), "@q/1\nACGT\n+\nIIII\n", 0600)
	writeFile(t, filepath.Join(e.fastqRoot, "S1", "S1_combined_R2.fastq"), "@q/2\nACGT\n+\nIIII\n", 0600)
	writeFile(t, filepath.Join(e.resultRoot, "S1", "result", "S1_final.result.txt"),
		"A\tHLA-A*02:09:01\tHLA-A*03:01:01\n"+
			"B\tHLA-B*07:02:01\t-\n"+
			"DRB3\tNot typed\tNot typed\n", 0600)
	require.NoError(t, os.MkdirAll(filepath.Join(e.fastqRoot, "S2"), 0700))
	return e
}

func (e testEnv) runArgs() []string {
	return []string{"run",
		"-ref-dir=" + e.refDir,
		"-cache-dir=" + e.cacheDir,
		"-bowtie2=" + e.bowtie2,
		"-bowtie2-build=" + e.bowtie2Build,
		"-threads=2",
		"-check-pairs",
		"-log-file=" + filepath.Join(e.dir, "run.log"),
	}
}

func testConfig() Config {
	return Config{RefDir: "HLA_seq", CacheDir: "Single_allele_ref", Bowtie2: "bowtie2",
		Bowtie2Build: "bowtie2-build", Threads: 32, MinRatio: 0.5, MaxRatio: 2}
}

func runCmd(stdin string, args ...string) (string, error) {
	var stdout, stderr bytes.Buffer
	env := &cmdline.Env{
		Stdin:  strings.NewReader(stdin),
		Stdout: &stdout,
		Stderr: &stderr,
		Vars:   map[string]string{},
	}
	err := cmdline.ParseAndRun(newCmdRoot(testConfig()), env, args)
	return stdout.String(), err
}

func checkSummary(t *testing.T, e testEnv) {
	data, err := ioutil.ReadFile(filepath.Join(e.fastqRoot, "verification_summary.txt"))
	require.NoError(t, err)
	summary := string(data)
	assert.True(t, strings.HasPrefix(summary, "HLA Verification Summary\n"+strings.Repeat("=", 50)+"\nGenerated on: "))
	assert.Contains(t, summary, "\nSample: S1\n"+
		"A: HLA-A*02:09:01 HLA-A*03:01:01 - Matches: 40/15 - FAIL\n"+
		"B: HLA-B*07:02:01 - SINGLE_ALLELE\n"+
		"C: Not_typed - NOT_TYPED\n")
	assert.Contains(t, summary, "DRB3: Not_typed - NOT_TYPED\n")
	assert.Contains(t, summary, "\nSample: S2\nSkipped: no result directory\n")
}

func TestRun(t *testing.T) {
	sh := gosh.NewShell(t)
	defer sh.Cleanup()
	e := newTestEnv(t, sh)

	out, err := runCmd("", append(e.runArgs(), e.fastqRoot, e.resultRoot)...)
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(e.fastqRoot, "verification_summary.txt")+": 1 verified, 0 failed, 1 skipped\n", out)
	checkSummary(t, e)
	for _, name := range []string{"A*02:09:01:01.fa", "A*03:01:01:01.fa", "A*02:09:01:01.1.bt2"} {
		_, err := os.Stat(filepath.Join(e.cacheDir, name))
		assert.NoError(t, err, name)
	}
	_, err = os.Stat(filepath.Join(e.dir, "run.log"))
	assert.NoError(t, err)
}

func TestRunPrompt(t *testing.T) {
	sh := gosh.NewShell(t)
	defer sh.Cleanup()
	e := newTestEnv(t, sh)

	out, err := runCmd(e.fastqRoot+"\n"+e.resultRoot+"\n", e.runArgs()...)
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(out, "Enter the path to folder A (fastq files): Enter the path to folder B (HLA-HD results): "))
	checkSummary(t, e)
}

func TestRunMissingRoot(t *testing.T) {
	sh := gosh.NewShell(t)
	defer sh.Cleanup()
	e := newTestEnv(t, sh)

	newCache := filepath.Join(e.dir, "new-cache")
	args := append(e.runArgs(), "-cache-dir="+newCache)
	_, err := runCmd("", append(args, e.fastqRoot, filepath.Join(e.dir, "nonexistent"))...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "result root does not exist")

	_, err = runCmd("", append(args, "-ref-dir="+filepath.Join(e.dir, "no-such-corpus"), e.fastqRoot, e.resultRoot)...)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reference directory does not exist")

	// Nothing is created when the configuration is rejected.
	for _, path := range []string{
		filepath.Join(e.fastqRoot, "verification_summary.txt"),
		filepath.Join(e.dir, "run.log"),
		newCache,
	} {
		_, err = os.Stat(path)
		assert.True(t, os.IsNotExist(err), path)
	}
}

func TestCalls(t *testing.T) {
	sh := gosh.NewShell(t)
	defer sh.Cleanup()
	e := newTestEnv(t, sh)
	path := filepath.Join(e.resultRoot, "S1", "result", "S1_final.result.txt")

	out, err := runCmd("", "calls", path)
	require.NoError(t, err)
	assert.Equal(t, "A\tHLA-A*02:09:01\tHLA-A*03:01:01\nB\tHLA-B*07:02:01\nDRB3\tNot_typed\n", out)

	out, err = runCmd("", "calls", "-report", path)
	require.NoError(t, err)
	assert.Equal(t, "A\t02:09:01\t03:01:01\nB\t07:02:01\t07:02:01\n", out)
}

func TestResolve(t *testing.T) {
	sh := gosh.NewShell(t)
	defer sh.Cleanup()
	e := newTestEnv(t, sh)

	out, err := runCmd("", "resolve", "-ref-dir="+e.refDir, "-cache-dir="+e.cacheDir, "HLA-A", "03:01:02")
	require.NoError(t, err)
	path := filepath.Join(e.cacheDir, "A*03:01:01:01.fa")
	assert.Equal(t, "A*03:01:01:01\t8\t"+path+"\n", out)
	data, err := ioutil.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, ">A*03:01:01:01\nGGGGCCCC\n", string(data))

	// A cache hit reports the entry on disk.
	stale := filepath.Join(e.cacheDir, "A*01:01:01:01.fa")
	writeFile(t, stale, ">A*01:01:01:01\nAC\nGT\n", 0600)
	out, err = runCmd("", "resolve", "-ref-dir="+e.refDir, "-cache-dir="+e.cacheDir, "A", "01:01")
	require.NoError(t, err)
	assert.Equal(t, "A*01:01:01:01\t4\t"+stale+"\n", out)

	_, err = runCmd("", "resolve", "-ref-dir="+e.refDir, "-cache-dir="+e.cacheDir, "A", "99:01")
	assert.Error(t, err)
	_, err = runCmd("", "resolve", "X", "01:01")
	assert.Error(t, err)
}
