package report

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/joshsymonds/hostsweep/internal/falcon"
)

type fakeClient struct {
	hostIDs       []falcon.HostID
	hosts         map[falcon.HostID]falcon.HostRecord
	policyIDs     map[falcon.PolicyKind][]string
	policies      map[falcon.PolicyKind][]falcon.Policy
	detailCalls   [][]falcon.HostID
	detailErr     error
	policyQueries []falcon.PolicyKind
}

func (f *fakeClient) QueryHostIDs(_ context.Context, _ int) ([]falcon.HostID, error) {
	return append([]falcon.HostID(nil), f.hostIDs...), nil
}

func (f *fakeClient) GetHostDetails(_ context.Context, ids []falcon.HostID) ([]falcon.HostRecord, error) {
	if f.detailErr != nil {
		return nil, f.detailErr
	}
	f.detailCalls = append(f.detailCalls, append([]falcon.HostID(nil), ids...))
	var out []falcon.HostRecord
	for _, id := range ids {
		if rec, ok := f.hosts[id]; ok {
			out = append(out, rec)
		}
	}
	return out, nil
}

func (f *fakeClient) QueryPolicyIDs(_ context.Context, kind falcon.PolicyKind, _ int) ([]string, error) {
	f.policyQueries = append(f.policyQueries, kind)
	return f.policyIDs[kind], nil
}

func (f *fakeClient) GetPolicyDetails(_ context.Context, kind falcon.PolicyKind, _ []string) ([]falcon.Policy, error) {
	return f.policies[kind], nil
}

func newFakeClient() *fakeClient {
	full := fullRecord()

	noMAC := fullRecord()
	noMAC["device_id"] = "dev-2"
	noMAC["hostname"] = "beta"
	delete(noMAC, "mac_address")

	noPolicies := fullRecord()
	noPolicies["device_id"] = "dev-3"
	noPolicies["hostname"] = "gamma"
	delete(noPolicies, "device_policies")

	return &fakeClient{
		hostIDs: []falcon.HostID{"dev-1", "dev-2", "dev-3"},
		hosts: map[falcon.HostID]falcon.HostRecord{
			"dev-1": full,
			"dev-2": noMAC,
			"dev-3": noPolicies,
		},
		policyIDs: map[falcon.PolicyKind][]string{
			falcon.PreventionPolicies:   {"prev-1"},
			falcon.SensorUpdatePolicies: {"su-1"},
		},
		policies: map[falcon.PolicyKind][]falcon.Policy{
			falcon.PreventionPolicies:   {{ID: "prev-1", Name: "workstation defaults"}},
			falcon.SensorUpdatePolicies: {{ID: "su-1", Name: "auto latest"}},
		},
	}
}

func newTestService(client falcon.Client) *Service {
	svc := NewService(client, zerolog.Nop())
	svc.Clock = func() time.Time { return testNow }
	return svc
}

func TestRunEndToEnd(t *testing.T) {
	client := newFakeClient()
	svc := newTestService(client)
	output := filepath.Join(t.TempDir(), "report.csv")

	summary, err := svc.Run(context.Background(), Spec{
		PageSize:            100,
		Chunks:              2,
		AlertThresholdHours: 24,
		Output:              output,
	})
	require.NoError(t, err)
	assert.Equal(t, Summary{Hosts: 3, Policies: 2, Rows: 3}, summary)
	assert.ElementsMatch(t,
		[]falcon.PolicyKind{falcon.PreventionPolicies, falcon.SensorUpdatePolicies},
		client.policyQueries)

	// chunks=2 splits three ids into two contiguous batches
	require.Len(t, client.detailCalls, 2)
	assert.Equal(t, []falcon.HostID{"dev-1", "dev-2"}, client.detailCalls[0])
	assert.Equal(t, []falcon.HostID{"dev-3"}, client.detailCalls[1])

	f, err := os.Open(output)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	require.Len(t, records, 4)
	assert.Equal(t, Header(), records[0])

	byHost := map[string][]string{}
	for _, row := range records[1:] {
		require.Len(t, row, 28)
		byHost[column(t, row, "hostname")] = row
	}

	assert.Equal(t, "aa-bb-cc-dd-ee-ff", column(t, byHost["alpha"], "mac_address"))
	assert.Equal(t, "workstation defaults", column(t, byHost["alpha"], "prevention_policy"))

	assert.Equal(t, "No mac_address found", column(t, byHost["beta"], "mac_address"))
	assert.Equal(t, "auto latest", column(t, byHost["beta"], "sensor_update_policy"))

	assert.Equal(t, "No policies applied", column(t, byHost["gamma"], "prevention_policy"))
	assert.Equal(t, "N/A", column(t, byHost["gamma"], "sensor_update_policy_applied"))

	// last_seen is 50h before the fixed clock; threshold 24h trips the alert
	assert.Equal(t, "50", column(t, byHost["alpha"], "inactive_hours"))
	assert.Equal(t, "True", column(t, byHost["alpha"], "alert"))
}

func TestRunDryRunWritesNothing(t *testing.T) {
	client := newFakeClient()
	svc := newTestService(client)
	output := filepath.Join(t.TempDir(), "report.csv")

	summary, err := svc.Run(context.Background(), Spec{
		PageSize:            100,
		Chunks:              1,
		AlertThresholdHours: 24,
		Output:              output,
		DryRun:              true,
	})
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Rows)
	assert.NoFileExists(t, output)
}

func TestRunAbortsWithoutPartialReport(t *testing.T) {
	client := newFakeClient()
	client.detailErr = &falcon.StatusError{Endpoint: "/devices/entities/devices/v1", Code: 500}
	svc := newTestService(client)
	output := filepath.Join(t.TempDir(), "report.csv")

	_, err := svc.Run(context.Background(), Spec{
		PageSize:            100,
		Chunks:              1,
		AlertThresholdHours: 24,
		Output:              output,
	})
	var statusErr *falcon.StatusError
	require.ErrorAs(t, err, &statusErr)
	assert.NoFileExists(t, output)
}

func TestChunkIDs(t *testing.T) {
	ids := []falcon.HostID{"a", "b", "c", "d", "e"}

	tests := []struct {
		name string
		n    int
		want [][]falcon.HostID
	}{
		{name: "single chunk", n: 1, want: [][]falcon.HostID{{"a", "b", "c", "d", "e"}}},
		{name: "two chunks", n: 2, want: [][]falcon.HostID{{"a", "b", "c"}, {"d", "e"}}},
		{name: "more chunks than ids", n: 10, want: [][]falcon.HostID{{"a"}, {"b"}, {"c"}, {"d"}, {"e"}}},
		{name: "zero falls back to one", n: 0, want: [][]falcon.HostID{{"a", "b", "c", "d", "e"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, chunkIDs(ids, tt.n))
		})
	}

	assert.Nil(t, chunkIDs(nil, 3))
}
