package lsm

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/lsmkv/lsmkv/pkg/logging"
	"github.com/lsmkv/lsmkv/pkg/validation"
)

// CompactionKind selects which compaction strategy an engine runs.
type CompactionKind string

const (
	CompactionNone    CompactionKind = "none"
	CompactionSimple  CompactionKind = "simple"
	CompactionLeveled CompactionKind = "leveled"
	CompactionTiered  CompactionKind = "tiered"
)

// SimpleLeveledOptions configures the simple-leveled compaction strategy.
type SimpleLeveledOptions struct {
	SizeRatioPercent  int `yaml:"size_ratio_percent" validate:"min=0,max=1000"`
	Level0FileLimit   int `yaml:"level0_file_limit" validate:"min=1"`
	MaxLevels         int `yaml:"max_levels" validate:"min=1"`
}

// LeveledOptions configures the RocksDB-style leveled compaction strategy.
type LeveledOptions struct {
	LevelSizeMultiplier int `yaml:"level_size_multiplier" validate:"min=1"`
	Level0FileLimit     int `yaml:"level0_file_limit" validate:"min=1"`
	MaxLevels           int `yaml:"max_levels" validate:"min=1"`
	BaseLevelSizeBytes  int64 `yaml:"base_level_size_bytes" validate:"min=1"`
}

// TieredOptions configures the tiered (universal-style) compaction strategy.
type TieredOptions struct {
	SizeRatioPercent             int `yaml:"size_ratio_percent" validate:"min=0,max=1000"`
	MinMergeWidth                int `yaml:"min_merge_width" validate:"min=2"`
	MaxMergeWidth                int `yaml:"max_merge_width" validate:"min=0"`
	MaxSortedRuns                int `yaml:"max_sorted_runs" validate:"min=1"`
	MaxSizeAmplificationPercent  int `yaml:"max_size_amplification_percent" validate:"min=1"`
}

// ArchiveOptions configures the optional S3 cold-storage tier. A nil
// *ArchiveOptions on Options disables archival entirely. When
// AccessKeyID/SecretAccessKey are left empty, credentials are resolved
// through the AWS SDK's standard default chain instead of a static pair.
type ArchiveOptions struct {
	Bucket          string `yaml:"bucket" validate:"required"`
	Prefix          string `yaml:"prefix"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	SessionToken    string `yaml:"session_token"`
}

// Options configures an Engine.
type Options struct {
	Dir string `yaml:"dir" validate:"required"`

	BlockSizeBytes    int   `yaml:"block_size_bytes" validate:"min=256"`
	TargetSSTSizeBytes int64 `yaml:"target_sst_size_bytes" validate:"min=1"`
	NumMemtableLimit  int   `yaml:"num_memtable_limit" validate:"min=1"`
	BlockCacheBlocks  int   `yaml:"block_cache_blocks" validate:"min=0"`

	CompactionKind CompactionKind        `yaml:"compaction_kind" validate:"oneof=none simple leveled tiered"`
	SimpleLeveled  *SimpleLeveledOptions `yaml:"simple_leveled"`
	Leveled        *LeveledOptions       `yaml:"leveled"`
	Tiered         *TieredOptions        `yaml:"tiered"`

	EnableWAL bool `yaml:"enable_wal"`

	Archive *ArchiveOptions `yaml:"archive"`

	// Logger receives structured events from the engine and its
	// background workers. Left nil, Open defaults it to
	// logging.NewNopLogger(). Not YAML-loadable or validator-checked:
	// it is wired up in code by the embedding process.
	Logger logging.Logger `yaml:"-" validate:"-"`
}

// DefaultOptions returns sensible defaults for a leveled-compaction engine
// rooted at dir.
func DefaultOptions(dir string) Options {
	return Options{
		Dir:                dir,
		BlockSizeBytes:     4096,
		TargetSSTSizeBytes: 2 << 20,
		NumMemtableLimit:   4,
		BlockCacheBlocks:   1024,
		CompactionKind:     CompactionLeveled,
		Leveled: &LeveledOptions{
			LevelSizeMultiplier: 4,
			Level0FileLimit:     4,
			MaxLevels:           6,
			BaseLevelSizeBytes:  4 << 20,
		},
		EnableWAL: true,
	}
}

// LoadOptions reads Options from a YAML file, starting from
// DefaultOptions with an empty Dir, so the file only needs to override
// what differs (dir included).
func LoadOptions(path string) (Options, error) {
	opts := DefaultOptions("")
	data, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("lsm: read options file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, &opts); err != nil {
		return opts, fmt.Errorf("lsm: parse options file %s: %w", path, err)
	}
	if err := validation.ValidateOptions(&opts); err != nil {
		return opts, err
	}
	return opts, nil
}

// Validate checks the options for internal consistency. Per-field shape
// (ranges, oneof, required) is handled by struct tags in
// validation.ValidateOptions; cross-field rules that tags can't express
// go through a ConfigValidator pass here instead.
func (o *Options) Validate() error {
	if err := validation.ValidateOptions(o); err != nil {
		return err
	}

	cv := validation.NewConfigValidator("Options")
	cv.Custom("compaction_kind", func() error {
		switch o.CompactionKind {
		case CompactionSimple:
			if o.SimpleLeveled == nil {
				return fmt.Errorf("simple requires simple_leveled options")
			}
		case CompactionLeveled:
			if o.Leveled == nil {
				return fmt.Errorf("leveled requires leveled options")
			}
		case CompactionTiered:
			if o.Tiered == nil {
				return fmt.Errorf("tiered requires tiered options")
			}
		}
		return nil
	})
	cv.When(o.Tiered != nil && o.Tiered.MaxMergeWidth != 0, func(cv *validation.ConfigValidator) {
		cv.Custom("tiered.max_merge_width", func() error {
			if o.Tiered.MaxMergeWidth < o.Tiered.MinMergeWidth {
				return fmt.Errorf("max_merge_width %d below min_merge_width %d", o.Tiered.MaxMergeWidth, o.Tiered.MinMergeWidth)
			}
			return nil
		})
	})
	cv.When(o.Archive != nil, func(cv *validation.ConfigValidator) {
		cv.Custom("archive.prefix", func() error {
			if strings.HasPrefix(o.Archive.Prefix, "/") {
				return fmt.Errorf("prefix %q must not start with /", o.Archive.Prefix)
			}
			return nil
		})
	})
	if err := cv.Validate(); err != nil {
		return fmt.Errorf("lsm: %w", err)
	}

	switch o.CompactionKind {
	case CompactionNone, CompactionSimple, CompactionLeveled, CompactionTiered:
	default:
		return fmt.Errorf("lsm: unknown compaction_kind %q", o.CompactionKind)
	}
	return nil
}
