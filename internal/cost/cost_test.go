package cost

import (
	"strings"
	"testing"
)

const usageJSON = `[
	{"instanceName": "web01", "resourceGroup": "rg1", "pretaxCost": "70.50", "currency": "USD"},
	{"instanceName": "db01", "resourceGroup": "rg1", "pretaxCost": "120.00", "currency": "USD"},
	{"instanceName": "web01", "resourceGroup": "rg1", "pretaxCost": "9.50", "currency": "USD"},
	{"instanceName": "other", "resourceGroup": "rg2", "pretaxCost": "999.99", "currency": "USD"}
]`

func TestBuildQueryCommand(t *testing.T) {
	cmd := BuildQueryCommand("az", Query{StartDate: "2026-08-01", EndDate: "2026-08-31"})
	for _, fragment := range []string{"az consumption usage list", "--output json", "--start-date '2026-08-01'", "--end-date '2026-08-31'"} {
		if !strings.Contains(cmd, fragment) {
			t.Fatalf("command %q missing %q", cmd, fragment)
		}
	}
}

func TestParseUsageFiltersAndAggregates(t *testing.T) {
	report, err := ParseUsage([]byte(usageJSON), Query{ResourceGroup: "RG1"})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	if report.Total != 200.0 {
		t.Fatalf("total = %v, want 200", report.Total)
	}
	if report.Currency != "USD" {
		t.Fatalf("currency = %q", report.Currency)
	}
	if report.ByResource["web01"] != 80.0 {
		t.Fatalf("web01 spend = %v, want 80", report.ByResource["web01"])
	}
	if _, ok := report.ByResource["other"]; ok {
		t.Fatal("foreign resource group must be excluded")
	}
}

func TestParseUsageBadNumber(t *testing.T) {
	if _, err := ParseUsage([]byte(`[{"instanceName": "x", "pretaxCost": "oops"}]`), Query{}); err == nil {
		t.Fatal("expected error for unparseable cost")
	}
}

func TestTopSpenders(t *testing.T) {
	report, err := ParseUsage([]byte(usageJSON), Query{})
	if err != nil {
		t.Fatalf("parse failed: %v", err)
	}
	top := report.TopSpenders(2)
	if len(top) != 2 || top[0] != "other" || top[1] != "db01" {
		t.Fatalf("unexpected ranking: %v", top)
	}
}
