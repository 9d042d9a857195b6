// internal/falcon/types.go
package falcon

import "context"

// HostID identifies one device in the inventory API.
type HostID string

// HostRecord is the raw field map the API returns for one device. Not every
// field is present on every host, so lookups are best-effort.
type HostRecord map[string]any

// StringField returns the named scalar rendered as a string, reporting whether
// the field was present at all.
func (r HostRecord) StringField(name string) (string, bool) {
	v, ok := r[name]
	if !ok || v == nil {
		return "", false
	}
	s, ok := v.(string)
	if !ok {
		return "", false
	}
	return s, true
}

// Child returns a nested object field such as device_policies.
func (r HostRecord) Child(name string) (HostRecord, bool) {
	v, ok := r[name]
	if !ok {
		return nil, false
	}
	m, ok := v.(map[string]any)
	if !ok {
		return nil, false
	}
	return HostRecord(m), true
}

// StringList returns the named field as a list of strings.
func (r HostRecord) StringList(name string) ([]string, bool) {
	v, ok := r[name]
	if !ok {
		return nil, false
	}
	raw, ok := v.([]any)
	if !ok {
		return nil, false
	}
	out := make([]string, 0, len(raw))
	for _, item := range raw {
		s, ok := item.(string)
		if !ok {
			continue
		}
		out = append(out, s)
	}
	return out, true
}

// Policy is one prevention or sensor-update policy definition.
type Policy struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// PolicyKind selects which policy family an API call targets.
type PolicyKind string

const (
	PreventionPolicies   PolicyKind = "prevention"
	SensorUpdatePolicies PolicyKind = "sensor-update"
)

func (k PolicyKind) queryPath() string    { return "/policy/queries/" + string(k) + "/v1" }
func (k PolicyKind) entitiesPath() string { return "/policy/entities/" + string(k) + "/v1" }

// Client is the narrow API surface required by the report pipeline.
type Client interface {
	QueryHostIDs(ctx context.Context, pageSize int) ([]HostID, error)
	GetHostDetails(ctx context.Context, ids []HostID) ([]HostRecord, error)
	QueryPolicyIDs(ctx context.Context, kind PolicyKind, pageSize int) ([]string, error)
	GetPolicyDetails(ctx context.Context, kind PolicyKind, ids []string) ([]Policy, error)
}
