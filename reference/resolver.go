// Package reference finds per-allele reference sequences in an HLA
// reference corpus and keeps them as single-record FASTA files.
package reference

import (
	"bufio"
	"context"
	"fmt"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlaverify/hla"
)

// DefaultPattern names the corpus file for a locus, relative to the corpus
// directory. The single %s is replaced by the locus.
const DefaultPattern = "%s_DNA_3560.txt"

// Allele is a reference sequence for one full allele name, such as
// "A*02:09:01:01". The name is the corpus name, not the (possibly shorter)
// designator that was resolved to it.
type Allele struct {
	Name string
	Seq  string
}

// Resolver looks up allele designators in a locus-indexed corpus. Each
// corpus line has at least four whitespace-separated fields: an id, the full
// allele name, the sequence length, and the sequence.
type Resolver struct {
	// Dir holds one corpus file per locus.
	Dir string
	// Pattern is DefaultPattern unless set otherwise.
	Pattern string
}

// NewResolver returns a Resolver over the corpus in dir.
func NewResolver(dir string) *Resolver {
	return &Resolver{Dir: dir, Pattern: DefaultPattern}
}

// Path returns the corpus file for a locus.
func (r *Resolver) Path(locus hla.Locus) string {
	pattern := r.Pattern
	if pattern == "" {
		pattern = DefaultPattern
	}
	return filepath.Join(r.Dir, fmt.Sprintf(pattern, locus))
}

// MatchPattern builds the matcher for a called designator: the designator is
// stripped of "HLA-" and "<locus>*", and its first two colon fields must
// prefix a candidate's cleaned name. It returns false when the designator
// has fewer than two fields, since such a designator matches nothing.
func MatchPattern(called string, locus hla.Locus) (*regexp.Regexp, bool) {
	fields := hla.Fields(hla.StripPrefix(called, locus))
	if len(fields) < 2 {
		return nil, false
	}
	return regexp.MustCompile("^" + regexp.QuoteMeta(strings.Join(fields[:2], ":"))), true
}

// matchLine returns the allele on a corpus line if it satisfies re.
func matchLine(re *regexp.Regexp, locus hla.Locus, line string) (Allele, bool) {
	fields := strings.Fields(line)
	if len(fields) < 4 {
		return Allele{}, false
	}
	name, seq := fields[1], fields[3]
	prefix := string(locus) + "*"
	if !strings.HasPrefix(name, prefix) {
		return Allele{}, false
	}
	if !re.MatchString(name[len(prefix):]) {
		return Allele{}, false
	}
	return Allele{Name: name, Seq: seq}, true
}

// Resolve returns the first corpus entry, in file order, whose name matches
// the called designator at locus. Matching uses only the first two colon
// fields, so "02:09:01" and "02:09:02" resolve to the same entry; when
// several entries match, the earliest wins and the rest are never
// considered.
//
// The error is of kind errors.NotExist when the corpus file cannot be read
// or nothing matches.
func (r *Resolver) Resolve(ctx context.Context, called string, locus hla.Locus) (Allele, error) {
	re, ok := MatchPattern(called, locus)
	if !ok {
		return Allele{}, errors.E(errors.NotExist, fmt.Sprintf("reference: %s %s: designator needs two fields", locus, called))
	}
	path := r.Path(locus)
	in, err := file.Open(ctx, path)
	if err != nil {
		log.Error.Printf("reference: corpus for %s: %v", locus, err)
		return Allele{}, errors.E(errors.NotExist, err, "reference: open corpus", path)
	}
	defer in.Close(ctx) // nolint: errcheck
	sc := bufio.NewScanner(in.Reader(ctx))
	sc.Buffer(nil, 1<<24)
	for sc.Scan() {
		if a, ok := matchLine(re, locus, sc.Text()); ok {
			log.Printf("reference: %s %s resolved to %s", locus, called, a.Name)
			return a, nil
		}
	}
	if err := sc.Err(); err != nil {
		return Allele{}, errors.E(errors.NotExist, err, "reference: read corpus", path)
	}
	log.Printf("reference: no entry for %s %s in %s", locus, called, path)
	return Allele{}, errors.E(errors.NotExist, fmt.Sprintf("reference: %s %s: no match in %s", locus, called, path))
}
