package report

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/joshsymonds/hostsweep/internal/falcon"
)

// PolicyIndex holds every policy definition visible to the account, keyed by
// id for constant-time correlation. Read-only after Resolve.
type PolicyIndex struct {
	byKind map[falcon.PolicyKind]map[string]falcon.Policy
}

// Lookup returns the policy with the given id within one kind.
func (p *PolicyIndex) Lookup(kind falcon.PolicyKind, id string) (falcon.Policy, bool) {
	if p == nil {
		return falcon.Policy{}, false
	}
	policy, ok := p.byKind[kind][id]
	return policy, ok
}

// Len returns the total number of indexed policies.
func (p *PolicyIndex) Len() int {
	n := 0
	for _, m := range p.byKind {
		n += len(m)
	}
	return n
}

// Resolver fetches all prevention and sensor-update policy definitions once
// per run.
type Resolver struct {
	Client   falcon.Client
	PageSize int
	Logger   zerolog.Logger
}

// Resolve enumerates every policy id of both kinds and fetches their details.
// The detail call passes the whole id list at once; policy counts are assumed
// small relative to host counts.
func (r *Resolver) Resolve(ctx context.Context) (*PolicyIndex, error) {
	idx := &PolicyIndex{byKind: make(map[falcon.PolicyKind]map[string]falcon.Policy, 2)}
	for _, kind := range []falcon.PolicyKind{falcon.PreventionPolicies, falcon.SensorUpdatePolicies} {
		m, err := r.resolveKind(ctx, kind)
		if err != nil {
			return nil, err
		}
		idx.byKind[kind] = m
		r.Logger.Debug().Str("kind", string(kind)).Int("count", len(m)).Msg("resolved policies")
	}
	return idx, nil
}

func (r *Resolver) resolveKind(ctx context.Context, kind falcon.PolicyKind) (map[string]falcon.Policy, error) {
	ids, err := r.Client.QueryPolicyIDs(ctx, kind, r.PageSize)
	if err != nil {
		return nil, err
	}
	details, err := r.Client.GetPolicyDetails(ctx, kind, ids)
	if err != nil {
		return nil, err
	}
	m := make(map[string]falcon.Policy, len(details))
	for _, p := range details {
		m[p.ID] = p
	}
	return m, nil
}
