// Package fastq reads and writes FASTQ read data, singly or as R1/R2 pairs.
package fastq

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrShort is returned when a truncated FASTQ file is encountered.
	ErrShort = errors.New("short FASTQ file")
	// ErrInvalid is returned when an invalid FASTQ file is encountered.
	ErrInvalid = errors.New("invalid FASTQ file")
	// ErrDiscordant is returned when two underlying FASTQ files are discordant.
	ErrDiscordant = errors.New("discordant FASTQ pairs")
)

// A Read is a FASTQ record: the "@" header line, the sequence, the "+"
// separator line, and the quality string.
type Read struct {
	ID, Seq, Plus, Qual string
}

// Name returns the read name without the leading '@', any comment after the
// first space, and any trailing "/1" or "/2" mate suffix.
func (r *Read) Name() string {
	name := strings.TrimPrefix(r.ID, "@")
	if i := strings.IndexAny(name, " \t"); i >= 0 {
		name = name[:i]
	}
	if n := len(name); n > 2 && name[n-2] == '/' && (name[n-1] == '1' || name[n-1] == '2') {
		name = name[:n-2]
	}
	return name
}

// Scanner reads FASTQ records one at a time. It checks that header lines
// begin with "@" and separator lines with "+", and nothing more. Scanners are
// not threadsafe.
type Scanner struct {
	b    *bufio.Scanner
	err  error
	line int
	done bool
}

// NewScanner constructs a Scanner over raw (uncompressed) FASTQ data.
func NewScanner(r io.Reader) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(nil, 1<<20)
	return &Scanner{b: b}
}

// Scan reads the next record into read and reports whether it succeeded.
// Once Scan returns false it never returns true again; Err then tells
// whether the input ended cleanly.
func (s *Scanner) Scan(read *Read) bool {
	if s.err != nil || s.done {
		return false
	}
	if !s.b.Scan() {
		s.err = s.b.Err()
		s.done = true
		return false
	}
	s.line++
	id := s.b.Text()
	if len(id) == 0 || id[0] != '@' {
		s.err = errors.Wrapf(ErrInvalid, "line %d: header does not start with '@'", s.line)
		return false
	}
	read.ID = id
	if !s.next(&read.Seq) || !s.next(&read.Plus) {
		return false
	}
	if len(read.Plus) == 0 || read.Plus[0] != '+' {
		s.err = errors.Wrapf(ErrInvalid, "line %d: separator does not start with '+'", s.line)
		return false
	}
	return s.next(&read.Qual)
}

func (s *Scanner) next(field *string) bool {
	if !s.b.Scan() {
		if s.err = s.b.Err(); s.err == nil {
			s.err = errors.Wrapf(ErrShort, "line %d", s.line)
		}
		return false
	}
	s.line++
	*field = s.b.Text()
	return true
}

// Err returns the scanning error, if any. It is nil at a clean end of input.
func (s *Scanner) Err() error {
	return s.err
}

// PairScanner scans R1 and R2 streams in lockstep.
type PairScanner struct {
	r1, r2 *Scanner
	n      int
	err    error
}

// NewPairScanner creates a pair scanner over the R1 and R2 readers.
func NewPairScanner(r1, r2 io.Reader) *PairScanner {
	return &PairScanner{r1: NewScanner(r1), r2: NewScanner(r2)}
}

// Scan scans the next pair into r1 and r2. It fails with ErrDiscordant when
// one stream ends before the other or the mates' names disagree.
func (p *PairScanner) Scan(r1, r2 *Read) bool {
	if p.err != nil {
		return false
	}
	ok1 := p.r1.Scan(r1)
	ok2 := p.r2.Scan(r2)
	if ok1 != ok2 && p.r1.Err() == nil && p.r2.Err() == nil {
		p.err = errors.Wrapf(ErrDiscordant, "one input ended after %d pairs", p.n)
		return false
	}
	if !ok1 || !ok2 {
		return false
	}
	if r1.Name() != r2.Name() {
		p.err = errors.Wrapf(ErrDiscordant, "pair %d: %q vs %q", p.n+1, r1.Name(), r2.Name())
		return false
	}
	p.n++
	return true
}

// Err returns the first error from either stream, or the pairing error.
func (p *PairScanner) Err() error {
	if err := p.r1.Err(); err != nil {
		return errors.Wrap(err, "R1")
	}
	if err := p.r2.Err(); err != nil {
		return errors.Wrap(err, "R2")
	}
	return p.err
}
