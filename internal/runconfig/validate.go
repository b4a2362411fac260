package runconfig

import (
	"fmt"
	"path/filepath"
	"regexp"

	"github.com/wonny/consolidator/internal/contracts"
	"github.com/wonny/consolidator/internal/schema"
)

// ValidationError 검증 실패 (실행 중단)
type ValidationError struct {
	Field   string
	Message string
}

func (e ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Message)
}

var prefixPattern = regexp.MustCompile(`^[A-Za-z0-9_-]+$`)

// Validate checks all required constraints
func Validate(cfg *Config) error {
	for _, kind := range contracts.AllKinds {
		if err := validateDataset(kind, cfg.For(kind)); err != nil {
			return err
		}
	}
	return nil
}

func validateDataset(kind contracts.Kind, d Dataset) error {
	field := "datasets." + string(kind)

	switch {
	case d.ShardPrefix != "" && d.ShardFile != "":
		return ValidationError{field, "shard_prefix and shard_file are mutually exclusive"}
	case d.ShardPrefix == "" && d.ShardFile == "":
		return ValidationError{field, "one of shard_prefix or shard_file is required"}
	}

	// constituents 는 단일 snapshot 파일만 허용
	if kind == contracts.KindSectorConstituents && d.Sharded() {
		return ValidationError{field + ".shard_prefix", "constituents are a single snapshot, use shard_file"}
	}

	if d.ShardPrefix != "" && !prefixPattern.MatchString(d.ShardPrefix) {
		return ValidationError{field + ".shard_prefix", fmt.Sprintf("invalid prefix %q", d.ShardPrefix)}
	}
	if d.ShardFile != "" && (filepath.Base(d.ShardFile) != d.ShardFile || filepath.Ext(d.ShardFile) != ".parquet") {
		return ValidationError{field + ".shard_file", fmt.Sprintf("must be a bare .parquet file name, got %q", d.ShardFile)}
	}

	s, err := schema.For(kind)
	if err != nil {
		return ValidationError{field, err.Error()}
	}

	seen := make(map[string]bool)
	for _, col := range d.CriticalColumns {
		if !s.Has(col) {
			return ValidationError{field + ".critical_columns", fmt.Sprintf("unknown column %q", col)}
		}
		if seen[col] {
			return ValidationError{field + ".critical_columns", fmt.Sprintf("duplicate column %q", col)}
		}
		seen[col] = true
	}

	return nil
}
