/*Command bio-hla-verify checks heterozygous HLA genotype calls against the
  sample's own reads.

  For each sample directory under a FASTQ root, it reads the HLA-HD style
  *_final.result.txt under <result-root>/<sample>/result, aligns the sample's
  read pair with bowtie2 against the reference sequence of each of the two
  called alleles, and compares the number of perfect-match pairs. A locus
  passes when both alleles have support and their ratio lies in
  [-min-ratio, -max-ratio]. The outcome of every sample is written to
  verification_summary.txt in the FASTQ root.

  Usage:
    bio-hla-verify run [flags] [fastq-root result-root]
    bio-hla-verify calls [-report] result-file
    bio-hla-verify resolve [flags] locus allele

  When run is given no roots, it prompts for them on stdin. Option defaults
  can be set in the environment; see "bio-hla-verify help run".
*/
package main
