// internal/report/service.go
package report

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/joshsymonds/hostsweep/internal/falcon"
)

// Spec carries the knobs for one report run.
type Spec struct {
	PageSize            int
	Chunks              int
	AlertThresholdHours int
	Output              string
	DryRun              bool
}

// Service runs the inventory pipeline: discover host ids, resolve policies,
// fetch device detail in batches, and synthesize one row per host.
type Service struct {
	Client falcon.Client
	Logger zerolog.Logger
	Clock  func() time.Time
}

// NewService constructs a Service with a real clock.
func NewService(client falcon.Client, logger zerolog.Logger) *Service {
	return &Service{Client: client, Logger: logger, Clock: time.Now}
}

// Summary describes a completed run.
type Summary struct {
	Hosts    int
	Policies int
	Rows     int
}

// Run executes the whole pipeline. Field-level gaps never fail a row; any
// HTTP or decode failure aborts with no report written.
func (s *Service) Run(ctx context.Context, spec Spec) (Summary, error) {
	started := s.Clock()

	resolver := &Resolver{Client: s.Client, PageSize: spec.PageSize, Logger: s.Logger}
	policies, err := resolver.Resolve(ctx)
	if err != nil {
		return Summary{}, err
	}

	ids, err := s.Client.QueryHostIDs(ctx, spec.PageSize)
	if err != nil {
		return Summary{}, err
	}
	s.Logger.Info().Int("hosts", len(ids)).Int("policies", policies.Len()).Msg("inventory discovered")

	now := s.Clock().UTC()
	rows := make([][]string, 0, len(ids))
	for _, batch := range chunkIDs(ids, spec.Chunks) {
		records, err := s.Client.GetHostDetails(ctx, batch)
		if err != nil {
			return Summary{}, err
		}
		for _, rec := range records {
			rows = append(rows, BuildRow(rec, policies, now, spec.AlertThresholdHours))
		}
	}

	summary := Summary{Hosts: len(ids), Policies: policies.Len(), Rows: len(rows)}
	if spec.DryRun {
		s.Logger.Info().Int("rows", len(rows)).Msg("dry-run; skipping report write")
		return summary, nil
	}

	if err := WriteCSV(spec.Output, rows); err != nil {
		return Summary{}, err
	}
	s.Logger.Info().
		Int("rows", len(rows)).
		Str("output", spec.Output).
		Dur("elapsed", s.Clock().Sub(started)).
		Msg("report written")
	return summary, nil
}

// chunkIDs splits ids into n contiguous near-equal batches. Batching only
// keeps each detail request within API limits; fetches stay sequential.
func chunkIDs(ids []falcon.HostID, n int) [][]falcon.HostID {
	if len(ids) == 0 {
		return nil
	}
	if n < 1 {
		n = 1
	}
	if n > len(ids) {
		n = len(ids)
	}
	size := (len(ids) + n - 1) / n
	out := make([][]falcon.HostID, 0, n)
	for i := 0; i < len(ids); i += size {
		j := i + size
		if j > len(ids) {
			j = len(ids)
		}
		out = append(out, ids[i:j])
	}
	return out
}
