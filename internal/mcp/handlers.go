package mcp

import (
	"context"
	"fmt"
	"strings"

	"weekly-metrics/internal/batch"
	"weekly-metrics/internal/periods"
	"weekly-metrics/internal/source"

	sdk "github.com/modelcontextprotocol/go-sdk/mcp"
	"github.com/rs/zerolog/log"
)

func (s *Server) baseWeek(w string) string {
	if w = strings.TrimSpace(w); w != "" {
		return w
	}
	return s.cfg.DefaultWeek
}

func (s *Server) numWeeks(n int) int {
	if n == 0 {
		return s.cfg.NumWeeks
	}
	return n
}

func (s *Server) handleGetPeriods(_ context.Context, _ *sdk.CallToolRequest, in WeekInput) (*sdk.CallToolResult, any, error) {
	res, err := periods.Resolve(s.baseWeek(in.BaseWeek))
	if err != nil {
		return nil, nil, err
	}
	return s.result(response{Data: res})
}

func (s *Server) handleGetTable1(ctx context.Context, _ *sdk.CallToolRequest, in Table1Input) (*sdk.CallToolResult, any, error) {
	includeYTD := in.IncludeYTD == nil || *in.IncludeYTD
	week := s.baseWeek(in.BaseWeek)
	res, err := s.orch.Table1(ctx, week, in.Periods, includeYTD)
	if err != nil {
		return nil, nil, err
	}
	set, _ := periods.ForWeek(week)
	return s.result(response{Data: map[string]any{
		"periods": set.Labels(),
		"metrics": res,
	}})
}

func (s *Server) handleGetFamily(ctx context.Context, _ *sdk.CallToolRequest, in FamilyInput) (*sdk.CallToolResult, any, error) {
	res, err := s.orch.Family(ctx, in.Family, s.baseWeek(in.BaseWeek), s.numWeeks(in.NumWeeks))
	if err != nil {
		return nil, nil, err
	}
	return s.result(response{Data: res, Charts: s.familyCharts(in.Family, res)})
}

func (s *Server) handleGetBatch(ctx context.Context, _ *sdk.CallToolRequest, in WindowInput) (*sdk.CallToolResult, any, error) {
	b, err := s.orch.ComputeAll(ctx, s.baseWeek(in.BaseWeek), s.numWeeks(in.NumWeeks), nil)
	if err != nil {
		return nil, nil, err
	}

	resp := response{Data: b, Charts: map[string]string{}}
	for _, name := range []string{batch.SlotMarkets, batch.SlotKPIs, batch.SlotContribution} {
		v, _ := b.Slot(name)
		for k, c := range s.familyCharts(name, v) {
			resp.Charts[k] = c
		}
	}
	for _, name := range b.Failed {
		resp.Warnings = append(resp.Warnings, fmt.Sprintf("family %q failed and is empty; see the server log", name))
	}
	return s.result(resp)
}

func (s *Server) handleGetFileMetadata(_ context.Context, _ *sdk.CallToolRequest, in MetadataInput) (*sdk.CallToolResult, any, error) {
	kind, err := source.ParseKind(in.SourceKind)
	if err != nil {
		return nil, nil, err
	}
	path, err := source.Confine(s.cfg.RawDir(), in.Path)
	if err != nil {
		return nil, nil, err
	}

	md := source.ExtractFileMetadata(path, kind)
	resp := response{Data: md}
	if md.Error != "" {
		log.Warn().Str("path", path).Str("kind", string(kind)).Str("err", md.Error).Msg("File metadata extraction failed")
		resp.Warnings = []string{md.Error}
	}
	return s.result(resp)
}

func (s *Server) handleClearCache(_ context.Context, _ *sdk.CallToolRequest, _ EmptyInput) (*sdk.CallToolResult, any, error) {
	s.orch.ClearCaches()
	return s.result(response{Data: map[string]string{"status": "cleared"}})
}

func (s *Server) handleInvalidateCache(_ context.Context, _ *sdk.CallToolRequest, in InvalidateInput) (*sdk.CallToolResult, any, error) {
	if err := s.orch.InvalidateWeek(in.BaseWeek); err != nil {
		return nil, nil, err
	}
	return s.result(response{Data: map[string]string{"status": "invalidated", "base_week": in.BaseWeek}})
}

func (s *Server) handleReloadData(_ context.Context, _ *sdk.CallToolRequest, _ EmptyInput) (*sdk.CallToolResult, any, error) {
	s.orch.ReloadRaw()
	return s.result(response{Data: map[string]string{"status": "reloading"}})
}
