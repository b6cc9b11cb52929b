// Package verify confirms heterozygous HLA calls by comparing the number of
// perfect-match read-pair alignments supporting each of the two alleles.
//
// Each locus of a sample yields exactly one Record. A heterozygous call at a
// verification locus passes when both alleles have support and the ratio of
// their counts lies within [Opts.MinRatio, Opts.MaxRatio]; every failure
// along the way is recorded as a FAIL for that locus only.
package verify

import (
	"context"
	"fmt"
	"strconv"

	"github.com/grailbio/base/log"
	"github.com/grailbio/hlaverify/align"
	"github.com/grailbio/hlaverify/encoding/genotype"
	"github.com/grailbio/hlaverify/hla"
	"github.com/grailbio/hlaverify/readpair"
	"github.com/grailbio/hlaverify/reference"
)

// Resolver finds the reference sequence for a called allele.
type Resolver interface {
	Resolve(ctx context.Context, called string, locus hla.Locus) (reference.Allele, error)
}

// Cache stores a resolved reference as a FASTA file and returns its path.
type Cache interface {
	GetOrCreate(ctx context.Context, a reference.Allele) (string, error)
}

// Opts configures a Verifier.
type Opts struct {
	// Loci are reported, in order, for every sample.
	Loci []hla.Locus
	// VerificationLoci are the loci whose heterozygous calls are aligned.
	VerificationLoci []hla.Locus
	// MinRatio and MaxRatio bound count1/count2, inclusive.
	MinRatio, MaxRatio float64
}

// DefaultOpts accepts a two-fold imbalance either way.
var DefaultOpts = Opts{
	Loci:             hla.Loci,
	VerificationLoci: hla.VerificationLoci,
	MinRatio:         0.5,
	MaxRatio:         2.0,
}

// Verifier checks the genotype calls of one sample at a time.
type Verifier struct {
	resolver Resolver
	cache    Cache
	aligner  align.Aligner
	opts     Opts
}

// New returns a Verifier.
func New(resolver Resolver, cache Cache, aligner align.Aligner, opts Opts) *Verifier {
	return &Verifier{resolver: resolver, cache: cache, aligner: aligner, opts: opts}
}

// Ratio returns c1/c2, and false if either count is zero.
func Ratio(c1, c2 int) (float64, bool) {
	if c1 == 0 || c2 == 0 {
		return 0, false
	}
	return float64(c1) / float64(c2), true
}

// Judge returns Pass if both counts are nonzero and min <= c1/c2 <= max.
func Judge(c1, c2 int, min, max float64) Verdict {
	ratio, ok := Ratio(c1, c2)
	if !ok || ratio < min || ratio > max {
		return Fail
	}
	return Pass
}

// VerifySample returns one record per locus in Opts.Loci.
func (v *Verifier) VerifySample(ctx context.Context, calls genotype.Calls, pair readpair.Pair) []Record {
	recs := make([]Record, 0, len(v.opts.Loci))
	for _, locus := range v.opts.Loci {
		rec := v.VerifyLocus(ctx, locus, calls.Alleles(locus), pair)
		log.Debug.Printf("verify: %s", rec)
		recs = append(recs, rec)
	}
	return recs
}

// VerifyLocus classifies the call at locus and, for a heterozygous call at a
// verification locus, aligns pair against both alleles.
func (v *Verifier) VerifyLocus(ctx context.Context, locus hla.Locus, alleles []string, pair readpair.Pair) Record {
	rec := Record{Locus: locus, Alleles: alleles}
	switch {
	case len(alleles) == 0:
		rec.Verdict = NotTyped
	case len(alleles) == 1:
		rec.Verdict = SingleAllele
	case len(alleles) == 2 && hla.Contains(v.opts.VerificationLoci, locus):
		v.verifyPair(ctx, &rec, pair)
	default:
		rec.Verdict = Unverified
	}
	return rec
}

func (v *Verifier) fail(rec *Record, count, reason string) {
	rec.Counts = [2]string{count, count}
	rec.Verdict = Fail
	rec.Reason = reason
	log.Error.Printf("verify: %s %v: %s", rec.Locus, rec.Alleles, reason)
}

func (v *Verifier) verifyPair(ctx context.Context, rec *Record, pair readpair.Pair) {
	defer func() {
		if r := recover(); r != nil {
			v.fail(rec, CountError, fmt.Sprintf("panic: %v", r))
		}
	}()
	log.Printf("verify: %s: verifying %v", rec.Locus, rec.Alleles)
	var refs [2]reference.Allele
	for i, called := range rec.Alleles {
		a, err := v.resolver.Resolve(ctx, called, rec.Locus)
		if err != nil {
			v.fail(rec, CountNoReference, err.Error())
			return
		}
		refs[i] = a
	}
	var counts [2]int
	for i, a := range refs {
		path, err := v.cache.GetOrCreate(ctx, a)
		if err != nil {
			v.fail(rec, CountError, err.Error())
			return
		}
		if counts[i], err = v.aligner.CountPerfectMatches(ctx, pair, path); err != nil {
			v.fail(rec, CountError, err.Error())
			return
		}
	}
	rec.Counts = [2]string{strconv.Itoa(counts[0]), strconv.Itoa(counts[1])}
	rec.Verdict = Judge(counts[0], counts[1], v.opts.MinRatio, v.opts.MaxRatio)
	if ratio, ok := Ratio(counts[0], counts[1]); ok {
		log.Printf("verify: %s: ratio %.2f, %s", rec.Locus, ratio, rec.Verdict)
	} else {
		rec.Reason = "no perfect matches for an allele"
		log.Printf("verify: %s: zero count (%d/%d), %s", rec.Locus, counts[0], counts[1], rec.Verdict)
	}
	if rec.Verdict == Fail && rec.Reason == "" {
		rec.Reason = "match ratio out of range"
	}
}
