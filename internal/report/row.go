// internal/report/row.go — per-host field extraction and row synthesis
package report

import (
	"strconv"
	"strings"
	"time"
	"unicode"

	"github.com/joshsymonds/hostsweep/internal/falcon"
)

const (
	noOSVersion     = "No osversion specified"
	noPolicyName    = "No policies applied"
	noPolicyDate    = "N/A"
	noInactiveHours = "N/A"

	timestampLayout = "2006-01-02 15:04:05"
)

// header is the fixed column set. Order and count are part of the report
// contract with downstream consumers; never reorder.
var header = []string{
	"device_id",
	"hostname",
	"local_ip",
	"external_ip",
	"mac_address",
	"platform",
	"os",
	"osversion",
	"os_build",
	"agent_version",
	"manufacturer",
	"model",
	"domain",
	"site",
	"ou",
	"status",
	"first_seen",
	"last_seen",
	"main_tag",
	"tags",
	"service_provider",
	"service_provider_account",
	"prevention_policy",
	"prevention_policy_applied",
	"sensor_update_policy",
	"sensor_update_policy_applied",
	"inactive_hours",
	"alert",
}

// Header returns the report column names in output order.
func Header() []string {
	return append([]string(nil), header...)
}

// BuildRow turns one raw host record into the fixed 28-column report row.
// Missing fields never fail the row; they render as documented sentinels.
func BuildRow(rec falcon.HostRecord, policies *PolicyIndex, now time.Time, thresholdHours int) []string {
	rawOS := scalar(rec, "os_version")
	lastSeen := timestamp(rec, "last_seen")
	mainTag, tags := tagFields(rec)
	inactive, alert := inactivity(now, lastSeen, thresholdHours)
	prevName, prevDate := policyFields(rec, policies, "prevention", falcon.PreventionPolicies)
	suName, suDate := policyFields(rec, policies, "sensor_update", falcon.SensorUpdatePolicies)

	return []string{
		scalar(rec, "device_id"),
		scalar(rec, "hostname"),
		scalar(rec, "local_ip"),
		scalar(rec, "external_ip"),
		scalar(rec, "mac_address"),
		scalar(rec, "platform_name"),
		rawOS,
		osVersion(rawOS),
		scalar(rec, "os_build"),
		scalar(rec, "agent_version"),
		stripCommas(scalar(rec, "system_manufacturer")),
		stripCommas(scalar(rec, "system_product_name")),
		scalar(rec, "machine_domain"),
		scalar(rec, "site_name"),
		orgUnit(rec),
		scalar(rec, "status"),
		timestamp(rec, "first_seen"),
		lastSeen,
		mainTag,
		tags,
		scalar(rec, "service_provider"),
		scalar(rec, "service_provider_account_id"),
		prevName,
		prevDate,
		suName,
		suDate,
		inactive,
		alert,
	}
}

// scalar extracts a plain string field, substituting the soft-fail sentinel
// when the field is absent or empty.
func scalar(rec falcon.HostRecord, name string) string {
	if v, ok := rec.StringField(name); ok && v != "" {
		return v
	}
	return missing(name)
}

func missing(name string) string { return "No " + name + " found" }

// osVersion keeps the raw OS string from its first digit onward, dropping the
// leading product-name prefix.
func osVersion(raw string) string {
	i := strings.IndexFunc(raw, unicode.IsDigit)
	if i < 0 {
		return noOSVersion
	}
	return raw[i:]
}

// timestamp extracts and normalizes an RFC3339-ish field into
// "YYYY-MM-DD HH:MM:SS". Values are assumed already UTC; no conversion.
func timestamp(rec falcon.HostRecord, name string) string {
	v, ok := rec.StringField(name)
	if !ok || v == "" {
		return missing(name)
	}
	return normalizeTimestamp(v)
}

func normalizeTimestamp(raw string) string {
	s := strings.TrimSuffix(raw, "Z")
	if i := strings.IndexByte(s, '.'); i >= 0 {
		s = s[:i]
	}
	return strings.Replace(s, "T", " ", 1)
}

func stripCommas(s string) string { return strings.ReplaceAll(s, ",", "") }

// orgUnit renders the OU list pipe-delimited. Downstream consumers split this
// column on "|", so commas inside individual OUs become pipes too.
func orgUnit(rec falcon.HostRecord) string {
	if list, ok := rec.StringList("ou"); ok && len(list) > 0 {
		return strings.ReplaceAll(strings.Join(list, "|"), ",", "|")
	}
	if s, ok := rec.StringField("ou"); ok && s != "" {
		return strings.ReplaceAll(s, ",", "|")
	}
	return missing("ou")
}

var tagCleaner = strings.NewReplacer("[", "", "]", "", "'", "", `"`, "", ",", "|")

// tagFields renders the tag list pipe-delimited and promotes the first tag to
// its own column.
func tagFields(rec falcon.HostRecord) (mainTag, tags string) {
	var joined string
	if list, ok := rec.StringList("tags"); ok && len(list) > 0 {
		joined = strings.Join(list, "|")
	} else if s, ok := rec.StringField("tags"); ok && s != "" {
		joined = s
	} else {
		return missing("tags"), missing("tags")
	}
	cleaned := tagCleaner.Replace(joined)
	first := cleaned
	if i := strings.IndexByte(cleaned, '|'); i >= 0 {
		first = cleaned[:i]
	}
	return first, cleaned
}

// policyFields resolves one assignment pair (policy name, applied date) from
// the host's device_policies block against the pre-resolved index.
func policyFields(rec falcon.HostRecord, policies *PolicyIndex, block string, kind falcon.PolicyKind) (name, applied string) {
	dp, ok := rec.Child("device_policies")
	if !ok {
		return noPolicyName, noPolicyDate
	}
	assignment, ok := dp.Child(block)
	if !ok {
		return noPolicyName, noPolicyDate
	}
	id, ok := assignment.StringField("policy_id")
	if !ok {
		return noPolicyName, noPolicyDate
	}
	policy, ok := policies.Lookup(kind, id)
	if !ok {
		return noPolicyName, noPolicyDate
	}
	applied = noPolicyDate
	if d, ok := assignment.StringField("applied_date"); ok && d != "" {
		applied = normalizeTimestamp(d)
	}
	return policy.Name, applied
}

// inactivity computes elapsed whole hours between now and the normalized
// last-seen value, and whether that exceeds the alert threshold.
func inactivity(now time.Time, lastSeen string, thresholdHours int) (hours, alert string) {
	t, err := time.ParseInLocation(timestampLayout, lastSeen, time.UTC)
	if err != nil {
		return noInactiveHours, "False"
	}
	elapsed := int(now.UTC().Sub(t).Hours())
	alert = "False"
	if elapsed > thresholdHours {
		alert = "True"
	}
	return strconv.Itoa(elapsed), alert
}
