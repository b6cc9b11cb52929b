package cmd

import (
	"bufio"
	"context"
	"fmt"
	"io"
	golog "log"
	"os"
	"strings"
	"time"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlaverify/align"
	"github.com/grailbio/hlaverify/batch"
	"github.com/grailbio/hlaverify/encoding/genotype"
	"github.com/grailbio/hlaverify/hla"
	"github.com/grailbio/hlaverify/reference"
	"github.com/grailbio/hlaverify/verify"
	"v.io/x/lib/cmdline"
)

func defaultLogFile() string {
	return "hla_verifier_" + time.Now().Format("20060102_150405") + ".log"
}

// teeLog copies the log to path as well as stderr. The returned function
// closes the file and restores logging to stderr only.
func teeLog(path string) (func(), error) {
	if path == "" {
		return func() {}, nil
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, errors.E(err, "create log file", path)
	}
	golog.SetOutput(io.MultiWriter(os.Stderr, f))
	return func() {
		golog.SetOutput(os.Stderr)
		if err := f.Close(); err != nil {
			log.Error.Printf("close %s: %v", path, err)
		}
	}, nil
}

// promptRoots asks for the two roots on out and reads one line each from in.
func promptRoots(in io.Reader, out io.Writer) (fastqRoot, resultRoot string, err error) {
	r := bufio.NewReader(in)
	ask := func(prompt string) (string, error) {
		fmt.Fprint(out, prompt) // nolint: errcheck
		line, err := r.ReadString('\n')
		if err != nil && (err != io.EOF || line == "") {
			return "", errors.E(errors.Invalid, err, "read", strings.TrimSpace(prompt))
		}
		return strings.TrimSpace(line), nil
	}
	if fastqRoot, err = ask("Enter the path to folder A (fastq files): "); err != nil {
		return
	}
	resultRoot, err = ask("Enter the path to folder B (HLA-HD results): ")
	return
}

func run(ctx context.Context, env *cmdline.Env, flags runFlags, fastqRoot, resultRoot string) error {
	bopts := batch.DefaultOpts
	bopts.FastqRoot, bopts.ResultRoot, bopts.RefDir = fastqRoot, resultRoot, *flags.refDir
	bopts.SummaryName = *flags.summary
	bopts.CheckPairs = *flags.checkPairs
	if err := bopts.Validate(); err != nil {
		log.Error.Printf("HLA verification failed: %v", err)
		return err
	}
	closeLog, err := teeLog(*flags.logFile)
	if err != nil {
		return err
	}
	defer closeLog()
	log.Printf("starting HLA verification: FASTQ root %s, result root %s", fastqRoot, resultRoot)

	cache, err := reference.NewCache(*flags.cacheDir)
	if err != nil {
		return err
	}
	vopts, aopts := verifierOpts(flags)
	v := verify.New(reference.NewResolver(*flags.refDir), cache, align.NewBowtie2(aopts), vopts)
	summary, err := batch.Run(ctx, v, bopts)
	if err != nil {
		log.Error.Printf("HLA verification failed: %v", err)
		return err
	}
	verified, failed, skipped := summary.Counts()
	log.Printf("HLA verification completed: %d new reference files cached", cache.Writes())
	fmt.Fprintf(env.Stdout, "%s: %d verified, %d failed, %d skipped\n", // nolint: errcheck
		summary.Path, verified, failed, skipped)
	return nil
}

func printCalls(ctx context.Context, out io.Writer, path string, report bool) error {
	w := bufio.NewWriter(out)
	if report {
		alleles, err := genotype.ParseReport(ctx, path)
		if err != nil {
			return err
		}
		for _, locus := range hla.VerificationLoci {
			if a, ok := alleles[locus]; ok {
				fmt.Fprintf(w, "%s\t%s\t%s\n", locus, a[0], a[1]) // nolint: errcheck
			}
		}
		return w.Flush()
	}
	calls, err := genotype.Parse(ctx, path)
	if err != nil {
		return err
	}
	for _, locus := range hla.Loci {
		alleles, ok := calls[locus]
		if !ok {
			continue
		}
		if len(alleles) == 0 {
			fmt.Fprintf(w, "%s\tNot_typed\n", locus) // nolint: errcheck
			continue
		}
		fmt.Fprintf(w, "%s\t%s\n", locus, strings.Join(alleles, "\t")) // nolint: errcheck
	}
	return w.Flush()
}

// resolve prints the name, length and path of the cached entry for an
// allele, creating the entry if needed.
func resolve(ctx context.Context, out io.Writer, flags refFlags, locus hla.Locus, called string) error {
	a, err := reference.NewResolver(*flags.refDir).Resolve(ctx, called, locus)
	if err != nil {
		return err
	}
	cache, err := reference.NewCache(*flags.cacheDir)
	if err != nil {
		return err
	}
	path, err := cache.GetOrCreate(ctx, a)
	if err != nil {
		return err
	}
	cached, err := cache.Load(ctx, a.Name)
	if err != nil {
		return err
	}
	if cached != a {
		log.Printf("resolve: warning: cache entry %s differs from the corpus", path)
	}
	_, err = fmt.Fprintf(out, "%s\t%d\t%s\n", cached.Name, len(cached.Seq), path)
	return err
}
