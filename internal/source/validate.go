package source

import (
	"fmt"

	"weekly-metrics/internal/table"

	"github.com/rs/zerolog/log"
)

// ValidationResult is the outcome for one kind.
type ValidationResult struct {
	Valid  bool     `json:"valid"`
	Errors []string `json:"errors"`
}

// ValidationReport covers every loaded kind.
type ValidationReport struct {
	Valid   bool                      `json:"valid"`
	Results map[Kind]ValidationResult `json:"results"`
}

// Validate checks required columns, numeric columns and provenance tags.
func Validate(b Bundle, strict bool) ValidationReport {
	report := ValidationReport{Valid: true, Results: make(map[Kind]ValidationResult, len(b))}
	for k, t := range b {
		res := validateKind(k, t, strict)
		report.Results[k] = res
		if !res.Valid {
			report.Valid = false
			log.Error().Str("kind", string(k)).Strs("errors", res.Errors).Msg("Source validation failed")
		} else {
			log.Info().Str("kind", string(k)).Msg("Source validation passed")
		}
	}
	return report
}

func validateKind(k Kind, t *table.Table, strict bool) ValidationResult {
	errs := []string{}
	spec, ok := SpecFor(k)
	if !ok {
		log.Warn().Str("kind", string(k)).Msg("Unknown source kind, skipping validation")
		return ValidationResult{Valid: true, Errors: errs}
	}

	for _, col := range []string{table.SourceFileColumn, table.SourceTypeColumn} {
		if !t.Has(col) {
			errs = append(errs, fmt.Sprintf("missing provenance column %q", col))
		}
	}

	if k == Other {
		if strict && t.Empty() {
			errs = append(errs, "other data is empty")
		}
		return ValidationResult{Valid: len(errs) == 0, Errors: errs}
	}

	for _, col := range spec.Required {
		if !t.Has(col) {
			errs = append(errs, fmt.Sprintf("missing required column %q", col))
		}
	}
	if k == MarketingSpend && !t.Has(ColSpend) && !t.Has(ColSpendFallback) {
		errs = append(errs, fmt.Sprintf("missing spend column (%q or %q)", ColSpend, ColSpendFallback))
	}

	for _, col := range spec.Numeric {
		if !t.Has(col) {
			continue
		}
		bad := 0
		for _, r := range t.Rows {
			if r.Missing(col) {
				continue
			}
			if _, ok := r[col].Float(); !ok {
				bad++
			}
		}
		if bad > 0 {
			errs = append(errs, fmt.Sprintf("%d non-numeric values in %q", bad, col))
		}
	}

	return ValidationResult{Valid: len(errs) == 0, Errors: errs}
}
