package mcp

import (
	"fmt"

	"weekly-metrics/internal/batch"
	"weekly-metrics/internal/periods"

	"github.com/google/jsonschema-go/jsonschema"
	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/samber/lo"
)

// WeekInput selects a base week; empty means the configured default.
type WeekInput struct {
	BaseWeek string `json:"base_week,omitempty" jsonschema:"ISO week as YYYY-WW, e.g. 2025-42. Defaults to the configured week."`
}

// Table1Input selects the headline metrics to compute.
type Table1Input struct {
	BaseWeek   string   `json:"base_week,omitempty" jsonschema:"ISO week as YYYY-WW. Defaults to the configured week."`
	Periods    []string `json:"periods,omitempty" jsonschema:"Subset of actual, last_week, last_year, year_2023. Defaults to all four."`
	IncludeYTD *bool    `json:"include_ytd,omitempty" jsonschema:"Also compute the fiscal year-to-date windows. Default true."`
}

// WindowInput selects a base week and a trailing window.
type WindowInput struct {
	BaseWeek string `json:"base_week,omitempty" jsonschema:"ISO week as YYYY-WW. Defaults to the configured week."`
	NumWeeks int    `json:"num_weeks,omitempty" jsonschema:"Number of trailing weeks ending at base_week, 1 to 52."`
}

// FamilyInput selects a single metric family over a window.
type FamilyInput struct {
	Family   string `json:"family" jsonschema:"Metric family to compute."`
	BaseWeek string `json:"base_week,omitempty" jsonschema:"ISO week as YYYY-WW. Defaults to the configured week."`
	NumWeeks int    `json:"num_weeks,omitempty" jsonschema:"Number of trailing weeks ending at base_week, 1 to 52."`
}

// MetadataInput names an uploaded file inside the raw data directory.
type MetadataInput struct {
	Path       string `json:"path" jsonschema:"File path, relative to the raw data directory."`
	SourceKind string `json:"source_kind" jsonschema:"One of analytics, marketing-spend, margin, ecommerce-sessions, other."`
}

// InvalidateInput names the week whose cached results are dropped.
type InvalidateInput struct {
	BaseWeek string `json:"base_week" jsonschema:"ISO week as YYYY-WW."`
}

// EmptyInput is used by tools without arguments.
type EmptyInput struct{}

func (s *Server) registerTools() error {
	familySchema, err := jsonschema.For[FamilyInput](nil)
	if err != nil {
		return fmt.Errorf("failed to derive family schema: %w", err)
	}
	familySchema.Properties["family"].Enum = lo.Map(batch.Sequence(), func(name string, _ int) any { return name })

	table1Schema, err := jsonschema.For[Table1Input](nil)
	if err != nil {
		return fmt.Errorf("failed to derive table1 schema: %w", err)
	}
	table1Schema.Properties["periods"].Items.Enum = lo.Map(periods.Names, func(name string, _ int) any { return name })

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_periods",
		Description: "Resolve the comparison weeks (actual, last week, last year, 2023) and their date ranges for a base week, plus the fiscal year-to-date windows.",
	}, s.handleGetPeriods)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_table1",
		Description: "Headline KPIs (gross/net revenue, returns, customers, AOV, COS, marketing spend, CAC) for each comparison period and optionally the year-to-date windows.",
		InputSchema: table1Schema,
	}, s.handleGetTable1)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name: "get_family",
		Description: "Compute one metric family over the trailing weeks ending at base_week. Weekly series are ordered oldest to newest and carry last year's comparable week.\n\n" +
			"Use 'get_batch' instead when several families are needed for the same report.",
		InputSchema: familySchema,
	}, s.handleGetFamily)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name: "get_batch",
		Description: "Compute every metric family for one report in a single pass. Families that fail are returned empty and listed under warnings; " +
			"never infer values for a family reported as failed.",
	}, s.handleGetBatch)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "get_file_metadata",
		Description: "Report the first and last date and row count of one source file in the raw data directory.",
	}, s.handleGetFileMetadata)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "clear_cache",
		Description: "Drop the raw data and computed metrics caches. Call after new source files were uploaded.",
	}, s.handleClearCache)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "invalidate_cache",
		Description: "Drop the cached results computed for one base week.",
	}, s.handleInvalidateCache)

	sdk.AddTool(s.mcp, &sdk.Tool{
		Name:        "reload_data",
		Description: "Reread the raw source files on the next request, keeping computed results. Call after an export was replaced in place.",
	}, s.handleReloadData)

	return nil
}
