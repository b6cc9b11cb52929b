// Package align counts perfect-match read-pair alignments against a
// single-allele reference by running an external short-read aligner.
package align

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"io/ioutil"
	"os/exec"
	"strconv"
	"strings"

	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlaverify/readpair"
)

// Aligner counts the read pairs of a sample that align to a reference with
// no edits.
type Aligner interface {
	// CountPerfectMatches returns the number of perfect-match alignment
	// records of pair against the single-sequence FASTA at ref.
	CountPerfectMatches(ctx context.Context, pair readpair.Pair, ref string) (int, error)
}

// Error reports a failed aligner or index-builder invocation.
type Error struct {
	// Cmd is the command line that failed.
	Cmd string
	// Stderr holds the tail of the command's standard error.
	Stderr string
	Err    error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("align: %s: %v", e.Cmd, e.Err)
	if e.Stderr != "" {
		msg += ": " + e.Stderr
	}
	return msg
}

// Opts configures Bowtie2.
type Opts struct {
	// Build is the index builder executable.
	Build string
	// Align is the aligner executable.
	Align string
	// Threads is passed to the aligner as -p. It sets the aligner's own
	// threading; alignments are still run one at a time.
	Threads int
	// ExtraArgs are appended to the aligner arguments.
	ExtraArgs []string
}

// DefaultOpts runs bowtie2 from PATH with 32 threads.
var DefaultOpts = Opts{
	Build:   "bowtie2-build",
	Align:   "bowtie2",
	Threads: 32,
}

// IndexExts are the files bowtie2-build writes for a small reference.
var IndexExts = []string{".1.bt2", ".2.bt2", ".3.bt2", ".4.bt2", ".rev.1.bt2", ".rev.2.bt2"}

// Bowtie2 is an Aligner that runs bowtie2 end-to-end and keeps only
// concordant pairs with a perfect alignment score.
type Bowtie2 struct {
	Opts Opts
}

// NewBowtie2 returns a Bowtie2 aligner.
func NewBowtie2(opts Opts) *Bowtie2 {
	return &Bowtie2{Opts: opts}
}

// IndexBase returns the index prefix for a reference: its path without the
// final extension.
func IndexBase(ref string) string {
	if i := strings.LastIndexByte(ref, '.'); i > strings.LastIndexByte(ref, '/') {
		return ref[:i]
	}
	return ref
}

func hasIndex(ctx context.Context, base string) bool {
	for _, ext := range IndexExts {
		if _, err := file.Stat(ctx, base+ext); err != nil {
			return false
		}
	}
	return true
}

// BuildIndex builds the index for ref unless all of its files exist.
func (b *Bowtie2) BuildIndex(ctx context.Context, ref string) (string, error) {
	base := IndexBase(ref)
	if hasIndex(ctx, base) {
		return base, nil
	}
	log.Debug.Printf("align: building index %s", base)
	cmd := exec.CommandContext(ctx, b.Opts.Build, "--quiet", ref, base)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return "", &Error{Cmd: strings.Join(cmd.Args, " "), Stderr: tail(stderr.String()), Err: err}
	}
	return base, nil
}

// Args returns the aligner arguments for pair against the index at base.
func (b *Bowtie2) Args(pair readpair.Pair, base string) []string {
	args := []string{
		"--end-to-end",
		"--very-sensitive",
		"--no-mixed",
		"--no-discordant",
		"--no-unal",
		"--score-min", "L,0,0",
		"-p", strconv.Itoa(b.Opts.Threads),
		"-x", base,
		"-1", pair.R1,
		"-2", pair.R2,
		"--reorder",
	}
	return append(args, b.Opts.ExtraArgs...)
}

// CountPerfectMatches implements Aligner. The aligner's SAM output is
// streamed and counted, never stored.
func (b *Bowtie2) CountPerfectMatches(ctx context.Context, pair readpair.Pair, ref string) (int, error) {
	base, err := b.BuildIndex(ctx, ref)
	if err != nil {
		return 0, err
	}
	cmd := exec.CommandContext(ctx, b.Opts.Align, b.Args(pair, base)...)
	log.Debug.Printf("align: %s", strings.Join(cmd.Args, " "))
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return 0, &Error{Cmd: b.Opts.Align, Err: err}
	}
	if err := cmd.Start(); err != nil {
		return 0, &Error{Cmd: strings.Join(cmd.Args, " "), Err: err}
	}
	n, countErr := CountPerfect(stdout)
	if countErr != nil {
		// Keep the aligner from blocking on a full pipe.
		io.Copy(ioutil.Discard, stdout) // nolint: errcheck
	}
	if err := cmd.Wait(); err != nil {
		return 0, &Error{Cmd: strings.Join(cmd.Args, " "), Stderr: tail(stderr.String()), Err: err}
	}
	if countErr != nil {
		return 0, &Error{Cmd: strings.Join(cmd.Args, " "), Err: countErr}
	}
	log.Printf("align: %d perfect matches against %s", n, base)
	return n, nil
}

// tail keeps the last few lines of a command's stderr for error messages.
func tail(s string) string {
	const maxLines = 5
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) > maxLines {
		lines = lines[len(lines)-maxLines:]
	}
	return strings.Join(lines, "\n")
}
