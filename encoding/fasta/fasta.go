// Package fasta reads and writes FASTA-formatted sequence records.  Briefly,
// FASTA files consist of a number of named sequences that may be interrupted
// by newlines.  For example:
//
// >A*02:09:01:01
// ACGTAC
// GAGGAC
// >A*03:01:01:01
// ACGT
//
// Sequence names are the stretch of characters excluding spaces immediately
// after '>'.  Any text after a space is ignored, so '>A*02:01 HLA-A' becomes
// 'A*02:01'.
package fasta

import (
	"bufio"
	"io"
	"strings"

	"github.com/pkg/errors"
)

const (
	bufferInitSize = 1024 * 1024 * 16 // 16 MB
)

// Record is one named sequence.
type Record struct {
	Name string
	Seq  string
}

// Read parses every record in r, in order of appearance.
func Read(r io.Reader) ([]Record, error) {
	var (
		recs []Record
		name string
		seq  strings.Builder
		open bool
	)
	scanner := bufio.NewScanner(r)
	scanner.Buffer(nil, bufferInitSize)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if len(line) == 0 {
			continue
		}
		if line[0] == '>' { // Start a new sequence.
			if open {
				recs = append(recs, Record{Name: name, Seq: seq.String()})
				seq.Reset()
			}
			name = strings.Split(line[1:], " ")[0]
			if name == "" {
				return nil, errors.Errorf("malformed FASTA file: empty sequence name")
			}
			open = true
			continue
		}
		if !open {
			return nil, errors.Errorf("malformed FASTA file: sequence data before first header")
		}
		seq.WriteString(line)
	}
	if err := scanner.Err(); err != nil {
		return nil, errors.Wrap(err, "couldn't read FASTA data")
	}
	if open {
		recs = append(recs, Record{Name: name, Seq: seq.String()})
	}
	return recs, nil
}

// Writer writes FASTA records with the whole sequence on a single line.
type Writer struct {
	w   io.Writer
	err error
}

// NewWriter constructs a Writer that writes records to w.
func NewWriter(w io.Writer) *Writer {
	return &Writer{w: w}
}

// Write writes rec as a two-line record. Once a write fails, every later
// call returns the same error.
func (w *Writer) Write(rec Record) error {
	if rec.Name == "" {
		return errors.New("fasta: record has no name")
	}
	w.writeln(">" + rec.Name)
	w.writeln(rec.Seq)
	return w.err
}

func (w *Writer) writeln(line string) {
	if w.err != nil {
		return
	}
	if _, w.err = io.WriteString(w.w, line); w.err == nil {
		_, w.err = io.WriteString(w.w, "\n")
	}
}
