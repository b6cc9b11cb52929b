package cmd

import (
	"context"
	"fmt"
	golog "log"
	"os"
	"strings"

	"github.com/grailbio/base/cmdutil"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlaverify/align"
	"github.com/grailbio/hlaverify/batch"
	"github.com/grailbio/hlaverify/hla"
	"github.com/grailbio/hlaverify/verify"
	"v.io/x/lib/cmdline"
)

// refFlags are shared by the commands that read the allele corpus.
type refFlags struct {
	refDir, cacheDir *string
}

func addRefFlags(cmd *cmdline.Command, cfg Config) refFlags {
	return refFlags{
		refDir:   cmd.Flags.String("ref-dir", cfg.RefDir, "Directory of <locus>_DNA_3560.txt allele sequence files"),
		cacheDir: cmd.Flags.String("cache-dir", cfg.CacheDir, "Directory of single-allele FASTA files and their bowtie2 indexes"),
	}
}

type runFlags struct {
	refFlags
	bowtie2, bowtie2Build *string
	threads               *int
	minRatio, maxRatio    *float64
	summary               *string
	checkPairs            *bool
	logFile               *string
}

func newCmdRun(cfg Config) *cmdline.Command {
	cmd := &cmdline.Command{
		Name:  "run",
		Short: "Verify every sample under a FASTQ root",
		Long: `
Run verifies the heterozygous calls of every sample directory under
fastq-root against <result-root>/<sample>/result/*_final.result.txt and
writes a summary to fastq-root. If the roots are not given, they are read
from stdin.

Option defaults are taken from the environment variables HLAVERIFY_REF_DIR,
HLAVERIFY_CACHE_DIR, HLAVERIFY_BOWTIE2, HLAVERIFY_BOWTIE2_BUILD,
HLAVERIFY_THREADS, HLAVERIFY_MIN_RATIO and HLAVERIFY_MAX_RATIO.
`,
		ArgsName: "[fastq-root result-root]",
	}
	flags := runFlags{
		refFlags:     addRefFlags(cmd, cfg),
		bowtie2:      cmd.Flags.String("bowtie2", cfg.Bowtie2, "bowtie2 executable"),
		bowtie2Build: cmd.Flags.String("bowtie2-build", cfg.Bowtie2Build, "bowtie2-build executable"),
		threads:      cmd.Flags.Int("threads", cfg.Threads, "Threads per bowtie2 run"),
		minRatio:     cmd.Flags.Float64("min-ratio", cfg.MinRatio, "Lowest passing allele1/allele2 match ratio"),
		maxRatio:     cmd.Flags.Float64("max-ratio", cfg.MaxRatio, "Highest passing allele1/allele2 match ratio"),
		summary:      cmd.Flags.String("summary", batch.DefaultOpts.SummaryName, "Summary file name, relative to fastq-root unless absolute"),
		checkPairs:   cmd.Flags.Bool("check-pairs", false, "Scan each read pair for malformed or mismatched records before aligning"),
		logFile: cmd.Flags.String("log-file", defaultLogFile(),
			"Also write the log to this file. Empty disables."),
	}
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		var fastqRoot, resultRoot string
		switch len(argv) {
		case 0:
			var err error
			if fastqRoot, resultRoot, err = promptRoots(env.Stdin, env.Stdout); err != nil {
				return err
			}
		case 2:
			fastqRoot, resultRoot = argv[0], argv[1]
		default:
			return env.UsageErrorf("run takes fastq-root and result-root, or nothing, but got %v", argv)
		}
		return run(context.Background(), env, flags, fastqRoot, resultRoot)
	})
	return cmd
}

func newCmdCalls() *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "calls",
		Short:    "Print the genotype calls in a result file",
		ArgsName: "result-file",
	}
	report := cmd.Flags.Bool("report", false, "Print the verification loci as the report generator reads them: two alleles per locus, homozygous calls duplicated")
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 1 {
			return fmt.Errorf("calls takes one result file, but got %v", argv)
		}
		return printCalls(context.Background(), env.Stdout, argv[0], *report)
	})
	return cmd
}

func newCmdResolve(cfg Config) *cmdline.Command {
	cmd := &cmdline.Command{
		Name:     "resolve",
		Short:    "Find an allele's reference sequence and cache it as FASTA",
		ArgsName: "locus allele",
	}
	flags := addRefFlags(cmd, cfg)
	cmd.Runner = cmdutil.RunnerFunc(func(env *cmdline.Env, argv []string) error {
		if len(argv) != 2 {
			return fmt.Errorf("resolve takes a locus and an allele, but got %v", argv)
		}
		locus, ok := hla.ParseLocus(strings.TrimPrefix(argv[0], "HLA-"))
		if !ok {
			return fmt.Errorf("resolve: unknown locus %q", argv[0])
		}
		return resolve(context.Background(), env.Stdout, flags, locus, argv[1])
	})
	return cmd
}

func newCmdRoot(cfg Config) *cmdline.Command {
	return &cmdline.Command{
		Name:     "bio-hla-verify",
		Short:    "Verify heterozygous HLA calls by perfect-match read alignment",
		LookPath: false,
		Children: []*cmdline.Command{
			newCmdRun(cfg),
			newCmdCalls(),
			newCmdResolve(cfg),
		},
	}
}

// verifierOpts builds the verifier and aligner options from flags.
func verifierOpts(flags runFlags) (verify.Opts, align.Opts) {
	vopts := verify.DefaultOpts
	vopts.MinRatio, vopts.MaxRatio = *flags.minRatio, *flags.maxRatio
	aopts := align.DefaultOpts
	aopts.Align, aopts.Build, aopts.Threads = *flags.bowtie2, *flags.bowtie2Build, *flags.threads
	return vopts, aopts
}

// Run is the entry point of bio-hla-verify.
func Run() {
	golog.SetFlags(golog.Ldate | golog.Ltime | golog.Lmicroseconds | golog.Lshortfile)
	cfg, err := LoadConfig()
	if err != nil {
		log.Error.Printf("bio-hla-verify: environment: %v", err)
		os.Exit(2)
	}
	cmdline.HideGlobalFlagsExcept()
	cmdline.Main(newCmdRoot(cfg))
}
