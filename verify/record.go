package verify

import (
	"fmt"
	"strings"

	"github.com/grailbio/hlaverify/hla"
)

// Verdict is the outcome for one locus.
type Verdict string

const (
	// Pass means both alleles have perfect-match support within the allowed
	// ratio.
	Pass Verdict = "PASS"
	// Fail means the heterozygous call could not be confirmed: a reference
	// was missing, alignment failed, an allele had no support, or the ratio
	// was out of range.
	Fail Verdict = "FAIL"
	// NotTyped means no allele was called at the locus.
	NotTyped Verdict = "NOT_TYPED"
	// SingleAllele means one allele was called; nothing is aligned.
	SingleAllele Verdict = "SINGLE_ALLELE"
	// Unverified means the call is reported as is: the locus is outside the
	// verification loci or has more than two alleles.
	Unverified Verdict = "UNVERIFIED"
)

// Count placeholders used when a match count is unavailable.
const (
	CountError       = "Error"
	CountNoReference = "Reference_not_found"
)

// Record is the verification result for one locus.
type Record struct {
	Locus   hla.Locus
	Alleles []string
	// Counts holds the perfect-match counts of the two alleles, or a
	// placeholder. Both are empty when no verification was attempted.
	Counts  [2]string
	Verdict Verdict
	// Reason explains a FAIL; empty otherwise.
	Reason string
}

// Verified reports whether verification was attempted for the locus.
func (r Record) Verified() bool {
	return r.Counts[0] != "" || r.Counts[1] != ""
}

// String formats the record as a summary line:
//
//	A: 02:09:01 03:01:01 - Matches: 40/15 - FAIL
//	DRB3: Not_typed - NOT_TYPED
//	B: 07:02:01 - SINGLE_ALLELE
func (r Record) String() string {
	if r.Verified() {
		return fmt.Sprintf("%s: %s %s - Matches: %s/%s - %s",
			r.Locus, r.Alleles[0], r.Alleles[1], r.Counts[0], r.Counts[1], r.Verdict)
	}
	alleles := strings.Join(r.Alleles, " ")
	if len(r.Alleles) == 0 {
		alleles = "Not_typed"
	}
	return fmt.Sprintf("%s: %s - %s", r.Locus, alleles, r.Verdict)
}
