package cmd

import (
	"github.com/grailbio/hlaverify/align"
	"github.com/grailbio/hlaverify/verify"
	"github.com/kelseyhightower/envconfig"
)

// Config holds the option defaults that can be set from the environment.
// Command-line flags take precedence.
type Config struct {
	RefDir       string  `envconfig:"HLAVERIFY_REF_DIR" default:"HLA_seq"`
	CacheDir     string  `envconfig:"HLAVERIFY_CACHE_DIR" default:"Single_allele_ref"`
	Bowtie2      string  `envconfig:"HLAVERIFY_BOWTIE2"`
	Bowtie2Build string  `envconfig:"HLAVERIFY_BOWTIE2_BUILD"`
	Threads      int     `envconfig:"HLAVERIFY_THREADS"`
	MinRatio     float64 `envconfig:"HLAVERIFY_MIN_RATIO"`
	MaxRatio     float64 `envconfig:"HLAVERIFY_MAX_RATIO"`
}

// LoadConfig reads Config from the environment. Unset numeric and tool
// options take the package defaults.
func LoadConfig() (Config, error) {
	cfg := Config{
		Bowtie2:      align.DefaultOpts.Align,
		Bowtie2Build: align.DefaultOpts.Build,
		Threads:      align.DefaultOpts.Threads,
		MinRatio:     verify.DefaultOpts.MinRatio,
		MaxRatio:     verify.DefaultOpts.MaxRatio,
	}
	err := envconfig.Process("", &cfg)
	return cfg, err
}
