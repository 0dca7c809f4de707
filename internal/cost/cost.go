// Package cost shapes provider billing data into requester-facing spend
// summaries for cost queries.
package cost

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// Query scopes a spend lookup.
type Query struct {
	ResourceGroup string
	StartDate     string // YYYY-MM-DD, optional
	EndDate       string // YYYY-MM-DD, optional
}

// BuildQueryCommand renders the provider CLI invocation for a spend lookup.
func BuildQueryCommand(cliPath string, q Query) string {
	if cliPath == "" {
		cliPath = "az"
	}
	parts := []string{cliPath, "consumption", "usage", "list", "--output", "json"}
	if q.StartDate != "" {
		parts = append(parts, "--start-date", quote(q.StartDate))
	}
	if q.EndDate != "" {
		parts = append(parts, "--end-date", quote(q.EndDate))
	}
	return strings.Join(parts, " ")
}

// UsageItem is one line of the provider's usage listing.
type UsageItem struct {
	InstanceName  string `json:"instanceName"`
	ResourceGroup string `json:"resourceGroup"`
	PretaxCost    string `json:"pretaxCost"`
	Currency      string `json:"currency"`
}

// Report is an aggregated spend summary.
type Report struct {
	Total      float64            `json:"total"`
	Currency   string             `json:"currency"`
	ByResource map[string]float64 `json:"by_resource"`
}

// ParseUsage decodes the CLI's JSON output and aggregates spend. When the
// query names a resource group, items outside it are excluded. Resource
// group comparison is case-insensitive, matching provider behavior.
func ParseUsage(data []byte, q Query) (Report, error) {
	var items []UsageItem
	if err := json.Unmarshal(data, &items); err != nil {
		return Report{}, fmt.Errorf("cost: decode usage output: %w", err)
	}

	report := Report{ByResource: make(map[string]float64)}
	for _, item := range items {
		if q.ResourceGroup != "" && !strings.EqualFold(item.ResourceGroup, q.ResourceGroup) {
			continue
		}
		amount, err := strconv.ParseFloat(item.PretaxCost, 64)
		if err != nil {
			return Report{}, fmt.Errorf("cost: bad cost value %q for %s: %w", item.PretaxCost, item.InstanceName, err)
		}
		report.Total += amount
		report.ByResource[item.InstanceName] += amount
		if report.Currency == "" {
			report.Currency = item.Currency
		}
	}
	return report, nil
}

// TopSpenders lists resource names by descending spend, at most n entries.
func (r Report) TopSpenders(n int) []string {
	names := make([]string, 0, len(r.ByResource))
	for name := range r.ByResource {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		if r.ByResource[names[i]] != r.ByResource[names[j]] {
			return r.ByResource[names[i]] > r.ByResource[names[j]]
		}
		return names[i] < names[j]
	})
	if n > 0 && len(names) > n {
		names = names[:n]
	}
	return names
}

func quote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
