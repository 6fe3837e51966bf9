package mcp

import (
	"encoding/json"
	"fmt"

	"weekly-metrics/internal/batch"
	"weekly-metrics/internal/metrics"
	"weekly-metrics/internal/visuals"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
)

// response is the envelope every tool returns as text content.
type response struct {
	Data     any               `json:"data"`
	Charts   map[string]string `json:"charts,omitempty"`
	Warnings []string          `json:"warnings,omitempty"`
}

func (s *Server) result(r response) (*sdk.CallToolResult, any, error) {
	out, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode result: %w", err)
	}
	return &sdk.CallToolResult{
		Content: []sdk.Content{&sdk.TextContent{Text: string(out)}},
	}, nil, nil
}

// familyCharts renders the Mermaid charts for families that have one.
// Charts are off unless enabled in the configuration.
func (s *Server) familyCharts(name string, v any) map[string]string {
	if !s.cfg.EnableMermaidCharts {
		return nil
	}

	var chart string
	switch res := v.(type) {
	case metrics.MarketsResult:
		chart = visuals.GenerateMarketsChart(res)
	case metrics.Series[metrics.OnlineKPIs]:
		chart = visuals.GenerateRevenueTrendChart(res)
	case metrics.Series[metrics.Contribution]:
		if name == batch.SlotContribution {
			chart = visuals.GenerateContributionChart(res)
		}
	}
	if chart == "" {
		return nil
	}
	return map[string]string{name: chart}
}
