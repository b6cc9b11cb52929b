// Package hla holds the HLA locus vocabulary shared by the verification
// packages: the typing loci reported by HLA-HD, the subset verified by read
// alignment, and helpers for normalizing allele designators.
//
// An allele designator is colon-delimited, e.g. "02:09:01". Designators may
// carry an "HLA-" prefix and a "<locus>*" prefix, e.g. "HLA-A*02:09:01".
package hla

import "strings"

// Locus names an HLA gene, e.g. "A" or "DRB1".
type Locus string

// Typing loci, in the order they are reported.
const (
	A    Locus = "A"
	B    Locus = "B"
	C    Locus = "C"
	DRB1 Locus = "DRB1"
	DQB1 Locus = "DQB1"
	DPB1 Locus = "DPB1"
	DPA1 Locus = "DPA1"
	DQA1 Locus = "DQA1"
	DRB3 Locus = "DRB3"
	DRB4 Locus = "DRB4"
	DRB5 Locus = "DRB5"
)

// Loci lists every locus reported by the typing tool, in report order.
var Loci = []Locus{A, B, C, DRB1, DQB1, DPB1, DPA1, DQA1, DRB3, DRB4, DRB5}

// VerificationLoci is the subset of Loci whose heterozygous calls are
// confirmed by counting perfect-match alignments.
var VerificationLoci = []Locus{A, B, C, DRB1, DQB1, DPB1}

// Missing is the allele field HLA-HD writes for an absent second allele.
const Missing = "-"

// notTyped matches both spellings HLA-HD uses for an untyped allele.
var notTyped = []string{"Not typed", "Not_typed"}

// ParseLocus returns the locus named by s, and whether s is a known locus.
func ParseLocus(s string) (Locus, bool) {
	for _, l := range Loci {
		if string(l) == s {
			return l, true
		}
	}
	return "", false
}

// Contains reports whether loci contains l.
func Contains(loci []Locus, l Locus) bool {
	for _, x := range loci {
		if x == l {
			return true
		}
	}
	return false
}

// IsNotTyped reports whether an allele field is a "not typed" placeholder or
// the missing-allele marker.
func IsNotTyped(allele string) bool {
	if allele == Missing {
		return true
	}
	for _, s := range notTyped {
		if strings.Contains(allele, s) {
			return true
		}
	}
	return false
}

// StripPrefix removes a leading "HLA-" and then a leading "<l>*" from a
// designator: "HLA-A*02:09:01" becomes "02:09:01".
func StripPrefix(designator string, l Locus) string {
	s := strings.TrimPrefix(designator, "HLA-")
	return strings.TrimPrefix(s, string(l)+"*")
}

// Fields splits a cleaned designator into its colon-delimited fields.
func Fields(designator string) []string {
	return strings.Split(designator, ":")
}
