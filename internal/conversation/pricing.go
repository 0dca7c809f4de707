package conversation

import (
	"sort"
	"strings"
)

// CostVaries is reported when a VM size has no entry in the price table.
const CostVaries = "varies"

// vmSizePrices maps a size fragment to an approximate monthly price in USD.
// Values are advisory only and are never validated against the executor.
var vmSizePrices = map[string]string{
	"B1s":  "10",
	"B2s":  "35",
	"B2ms": "60",
	"D2s":  "70",
	"D4s":  "140",
	"D8s":  "280",
	"E2s":  "85",
	"E4s":  "170",
	"F2s":  "75",
	"F4s":  "150",
}

// priceKeysByLength holds the table keys longest-first so a size like
// "Standard_D28s_v3" can never be claimed by the shorter "D2s" entry.
var priceKeysByLength = func() []string {
	keys := make([]string, 0, len(vmSizePrices))
	for key := range vmSizePrices {
		keys = append(keys, key)
	}
	sort.Slice(keys, func(i, j int) bool {
		if len(keys[i]) != len(keys[j]) {
			return len(keys[i]) > len(keys[j])
		}
		return keys[i] < keys[j]
	})
	return keys
}()

// EstimateMonthlyCost looks up an advisory monthly price for a VM size.
// Matching is by size fragment with underscore-delimited boundaries, so
// "Standard_D2s_v3" matches "D2s" but "Standard_D28s_v3" matches nothing.
func EstimateMonthlyCost(size string) string {
	size = strings.TrimSpace(size)
	if size == "" {
		return CostVaries
	}
	for _, fragment := range strings.Split(size, "_") {
		for _, key := range priceKeysByLength {
			if strings.EqualFold(fragment, key) {
				return vmSizePrices[key]
			}
		}
	}
	return CostVaries
}
