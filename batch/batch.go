// Package batch verifies every sample under a FASTQ root against the
// genotype calls under a result root and writes a plain-text summary.
//
// Samples are processed sequentially in name order. A sample whose result
// directory is missing is skipped; any error or panic while processing a
// sample is recorded in the summary and the batch moves on.
package batch

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlaverify/encoding/genotype"
	"github.com/grailbio/hlaverify/readpair"
	"github.com/grailbio/hlaverify/verify"
)

// Opts configures a batch run.
type Opts struct {
	// FastqRoot holds one subdirectory of reads per sample.
	FastqRoot string
	// ResultRoot holds <sample>/<ResultSubdir>/*_final.result.txt.
	ResultRoot string
	// RefDir is the allele sequence corpus directory. If set, it must exist
	// for the batch to start; a missing per-locus file only fails the loci
	// that need it.
	RefDir string
	// SummaryName is the summary file name. A relative name is placed in
	// FastqRoot.
	SummaryName string
	// ResultSubdir is the per-sample directory holding the result file.
	ResultSubdir string
	// CheckPairs scans both FASTQ files of each sample before aligning and
	// fails the sample if they are malformed or out of step.
	CheckPairs bool
}

// DefaultOpts are the default batch options. The roots must be filled in.
var DefaultOpts = Opts{
	SummaryName:  "verification_summary.txt",
	ResultSubdir: "result",
}

// SummaryPath returns the summary file location for o.
func (o Opts) SummaryPath() string {
	if filepath.IsAbs(o.SummaryName) {
		return o.SummaryName
	}
	return filepath.Join(o.FastqRoot, o.SummaryName)
}

// checkDir uses os.Stat because file.Stat only reports on regular files.
func checkDir(what, dir string) error {
	info, err := os.Stat(dir)
	if err != nil {
		return errors.E(errors.NotExist, err, "batch:", what, "does not exist:", dir)
	}
	if !info.IsDir() {
		return errors.E(errors.NotExist, "batch:", what, "is not a directory:", dir)
	}
	return nil
}

// Validate checks that the configured directories exist. The error is of
// kind errors.NotExist.
func (o Opts) Validate() error {
	if err := checkDir("FASTQ root", o.FastqRoot); err != nil {
		return err
	}
	if err := checkDir("result root", o.ResultRoot); err != nil {
		return err
	}
	if o.RefDir != "" {
		return checkDir("reference directory", o.RefDir)
	}
	return nil
}

// SampleNames returns the sorted names of the subdirectories of root.
func SampleNames(ctx context.Context, root string) ([]string, error) {
	var names []string
	lister := file.List(ctx, root, false)
	for lister.Scan() {
		if lister.IsDir() {
			names = append(names, filepath.Base(lister.Path()))
		}
	}
	if err := lister.Err(); err != nil {
		return nil, errors.E(err, "batch: list", root)
	}
	sort.Strings(names)
	return names, nil
}

// Run verifies every sample under opts.FastqRoot. It returns an error only
// when the batch cannot start (a missing directory, an unwritable summary) or
// the summary cannot be written; per-sample failures are part of the
// returned Summary.
func Run(ctx context.Context, v *verify.Verifier, opts Opts) (Summary, error) {
	if err := opts.Validate(); err != nil {
		log.Error.Printf("%v", err)
		return Summary{}, err
	}
	names, err := SampleNames(ctx, opts.FastqRoot)
	if err != nil {
		return Summary{}, err
	}
	log.Printf("batch: found %d sample directories in %s", len(names), opts.FastqRoot)

	summary := Summary{Path: opts.SummaryPath(), Generated: time.Now()}
	// The summary is written with os rather than grailbio/base/file, whose
	// local files only appear on Close.
	out, err := os.Create(summary.Path)
	if err != nil {
		return Summary{}, errors.E(err, "batch: create summary", summary.Path)
	}
	sw := NewSummaryWriter(out, summary.Generated)
	for _, name := range names {
		s := processSample(ctx, v, opts, name)
		summary.Samples = append(summary.Samples, s)
		if err := sw.WriteSample(s); err != nil {
			break
		}
	}
	if err := sw.Err(); err != nil {
		out.Close() // nolint: errcheck
		return summary, errors.E(err, "batch: write summary", summary.Path)
	}
	if err := out.Close(); err != nil {
		return summary, errors.E(err, "batch: close summary", summary.Path)
	}
	verified, failed, skipped := summary.Counts()
	log.Printf("batch: wrote %s: %d verified, %d failed, %d skipped",
		summary.Path, verified, failed, skipped)
	return summary, nil
}

func processSample(ctx context.Context, v *verify.Verifier, opts Opts, name string) (s Sample) {
	s.Name = name
	resultDir := filepath.Join(opts.ResultRoot, name, opts.ResultSubdir)
	if info, err := os.Stat(resultDir); err != nil || !info.IsDir() {
		log.Printf("batch: warning: no result directory for sample %s", name)
		s.Skipped = true
		return
	}
	log.Printf("batch: processing sample %s", name)
	defer func() {
		if r := recover(); r != nil {
			s.Records = nil
			s.Err = fmt.Errorf("panic: %v", r)
			log.Error.Printf("batch: sample %s: %v", name, s.Err)
		}
	}()
	records, err := verifySample(ctx, v, opts, filepath.Join(opts.FastqRoot, name), resultDir)
	if err != nil {
		log.Error.Printf("batch: sample %s: %v", name, err)
		s.Err = err
		return
	}
	s.Records = records
	return
}

func verifySample(ctx context.Context, v *verify.Verifier, opts Opts, sampleDir, resultDir string) ([]verify.Record, error) {
	resultFile, err := genotype.FindResultFile(ctx, resultDir)
	if err != nil {
		return nil, err
	}
	calls, err := genotype.Parse(ctx, resultFile)
	if err != nil {
		return nil, err
	}
	pair, err := readpair.Locate(ctx, sampleDir)
	if err != nil {
		return nil, err
	}
	if opts.CheckPairs {
		n, err := readpair.Count(ctx, pair)
		if err != nil {
			return nil, err
		}
		log.Printf("batch: %s: %d read pairs", sampleDir, n)
	}
	return v.VerifySample(ctx, calls, pair), nil
}
