package batch

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/grailbio/hlaverify/verify"
)

// Title is the first line of a summary file.
const Title = "HLA Verification Summary"

// TimeLayout formats the generation timestamp in the summary header.
const TimeLayout = "2006-01-02 15:04:05"

var rule = strings.Repeat("=", 50)

// Sample is the outcome for one sample directory. At most one of Records,
// Err and Skipped is set.
type Sample struct {
	Name    string
	Records []verify.Record
	Err     error
	Skipped bool
}

// Lines returns the summary lines for s, without the "Sample:" heading.
func (s Sample) Lines() []string {
	switch {
	case s.Skipped:
		return []string{"Skipped: no result directory"}
	case s.Err != nil:
		return []string{"Error processing sample: " + s.Err.Error()}
	}
	lines := make([]string, len(s.Records))
	for i, r := range s.Records {
		lines[i] = r.String()
	}
	return lines
}

// Summary collects the outcomes of a batch run.
type Summary struct {
	// Path is where the summary file was written.
	Path      string
	Generated time.Time
	Samples   []Sample
}

// Counts returns the number of samples verified, failed and skipped.
func (s Summary) Counts() (verified, failed, skipped int) {
	for _, sample := range s.Samples {
		switch {
		case sample.Skipped:
			skipped++
		case sample.Err != nil:
			failed++
		default:
			verified++
		}
	}
	return
}

// SummaryWriter writes a summary one sample at a time. Each sample block is
// flushed to the underlying writer before WriteSample returns.
type SummaryWriter struct {
	w   *bufio.Writer
	err error
}

// NewSummaryWriter writes the summary header to w.
func NewSummaryWriter(w io.Writer, generated time.Time) *SummaryWriter {
	sw := &SummaryWriter{w: bufio.NewWriter(w)}
	sw.printf("%s\n%s\nGenerated on: %s\n%s\n\n", Title, rule, generated.Format(TimeLayout), rule)
	sw.flush()
	return sw
}

func (sw *SummaryWriter) printf(format string, args ...interface{}) {
	if sw.err != nil {
		return
	}
	_, sw.err = fmt.Fprintf(sw.w, format, args...)
}

func (sw *SummaryWriter) flush() {
	if sw.err == nil {
		sw.err = sw.w.Flush()
	}
}

// WriteSample appends the block for s and flushes it.
func (sw *SummaryWriter) WriteSample(s Sample) error {
	sw.printf("\nSample: %s\n", s.Name)
	for _, line := range s.Lines() {
		sw.printf("%s\n", line)
	}
	sw.flush()
	return sw.err
}

// Err returns the first error encountered while writing.
func (sw *SummaryWriter) Err() error {
	return sw.err
}
