// Package genotype reads HLA-HD final result files.
//
// A result file has one locus per line, with whitespace-separated fields:
//
//	A	HLA-A*02:09:01	HLA-A*03:01:01
//	DRB1	HLA-DRB1*15:01:01	-
//	DRB3	Not typed	Not typed
//
// HLA-HD separates fields with tabs, and the "Not typed" placeholder itself
// contains a space, so lines containing a tab are split on tabs only. On
// lines without a tab, adjacent "Not" and "typed" fields are read as one
// placeholder.
package genotype

import (
	"bufio"
	"context"
	"sort"
	"strings"

	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/hlaverify/hla"
)

// ResultFileSuffix names the file HLA-HD writes with the final calls.
const ResultFileSuffix = "_final.result.txt"

// Calls maps a locus to its called alleles, after dropping "not typed" and
// missing-allele fields. A locus absent from the file is absent from the map.
type Calls map[hla.Locus][]string

// Alleles returns the alleles called at l; nil if none.
func (c Calls) Alleles(l hla.Locus) []string {
	return c[l]
}

func splitFields(line string) []string {
	if !strings.Contains(line, "\t") {
		return joinNotTyped(strings.Fields(line))
	}
	var fields []string
	for _, f := range strings.Split(line, "\t") {
		if f = strings.TrimSpace(f); f != "" {
			fields = append(fields, f)
		}
	}
	return fields
}

// joinNotTyped rejoins a "Not typed" placeholder split by whitespace.
func joinNotTyped(fields []string) []string {
	joined := fields[:0]
	for i := 0; i < len(fields); i++ {
		if fields[i] == "Not" && i+1 < len(fields) && fields[i+1] == "typed" {
			joined = append(joined, "Not typed")
			i++
			continue
		}
		joined = append(joined, fields[i])
	}
	return joined
}

// Parse reads the genotype calls in the result file at path. Lines whose
// first field is not a known locus, and lines with no allele fields, are
// skipped. Allele fields that are "-" or "Not typed" are dropped, never
// replaced, so a locus may carry zero, one, or several alleles.
func Parse(ctx context.Context, path string) (calls Calls, err error) {
	in, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "genotype: open", path)
	}
	defer func() {
		if e := in.Close(ctx); e != nil && err == nil {
			err = errors.E(errors.Invalid, e, "genotype: close", path)
		}
	}()
	calls = Calls{}
	sc := bufio.NewScanner(in.Reader(ctx))
	for sc.Scan() {
		fields := splitFields(sc.Text())
		if len(fields) < 2 {
			continue
		}
		locus, ok := hla.ParseLocus(fields[0])
		if !ok {
			continue
		}
		alleles := []string{}
		for _, a := range fields[1:] {
			if !hla.IsNotTyped(a) {
				alleles = append(alleles, a)
			}
		}
		calls[locus] = alleles
		log.Debug.Printf("genotype: %s: %s %v", path, locus, alleles)
	}
	if err := sc.Err(); err != nil {
		return nil, errors.E(errors.Invalid, err, "genotype: read", path)
	}
	log.Printf("genotype: parsed %d loci from %s", len(calls), path)
	return calls, nil
}

// FindResultFile returns the first "*_final.result.txt" file in dir, in
// lexical order.
func FindResultFile(ctx context.Context, dir string) (string, error) {
	var matches []string
	lister := file.List(ctx, dir, false)
	for lister.Scan() {
		if lister.IsDir() {
			continue
		}
		if strings.HasSuffix(lister.Path(), ResultFileSuffix) {
			matches = append(matches, lister.Path())
		}
	}
	if err := lister.Err(); err != nil {
		return "", errors.E(errors.NotExist, err, "genotype: list", dir)
	}
	if len(matches) == 0 {
		return "", errors.E(errors.NotExist, "genotype: no result file in", dir)
	}
	sort.Strings(matches)
	return matches[0], nil
}

// ParseReport reads the same result file the way the report generator
// does: only the verification loci are kept, lines need both allele
// fields, any "<prefix>*" is stripped from each allele, and a missing second
// allele ("-") is filled with the first. Unlike Parse, a homozygous call
// therefore reads as two identical alleles.
func ParseReport(ctx context.Context, path string) (map[hla.Locus][2]string, error) {
	data, err := file.ReadFile(ctx, path)
	if err != nil {
		return nil, errors.E(errors.Invalid, err, "genotype: read", path)
	}
	report := map[hla.Locus][2]string{}
	for _, line := range strings.Split(string(data), "\n") {
		fields := splitFields(line)
		if len(fields) < 3 {
			continue
		}
		locus, ok := hla.ParseLocus(fields[0])
		if !ok || !hla.Contains(hla.VerificationLoci, locus) {
			continue
		}
		a1, a2 := afterStar(fields[1]), afterStar(fields[2])
		if a2 == hla.Missing {
			a2 = a1
		}
		report[locus] = [2]string{a1, a2}
	}
	return report, nil
}

func afterStar(allele string) string {
	if i := strings.Index(allele, "*"); i >= 0 {
		return allele[i+1:]
	}
	return allele
}
