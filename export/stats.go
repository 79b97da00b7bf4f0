package export

import (
	"sort"
	"strconv"

	"github.com/Carbocoon/SteelPriceCrawler/models"
	"github.com/Carbocoon/SteelPriceCrawler/schema"
)

// topNames is how many product names Stats lists.
const topNames = 10

// NameCount is the number of records for one product name.
type NameCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// Stats summarizes a crawl's prices.
type Stats struct {
	Count      int         `json:"count"`
	PriceCount int         `json:"price_count"` // records with a parsable, positive price
	Mean       float64     `json:"mean"`
	Min        float64     `json:"min"`
	Max        float64     `json:"max"`
	Median     float64     `json:"median"`
	TopNames   []NameCount `json:"top_names"`
}

// Summarize computes Stats using the schema's price and name fields.
func Summarize(recs []models.Record, s *schema.Schema) Stats {
	st := Stats{Count: len(recs)}

	if priceField, ok := s.FieldFor(schema.RolePrice); ok {
		prices := make([]float64, 0, len(recs))
		for _, rec := range recs {
			p, err := strconv.ParseFloat(rec[priceField], 64)
			if err != nil || p <= 0 {
				continue
			}
			prices = append(prices, p)
		}
		if len(prices) > 0 {
			sort.Float64s(prices)
			st.PriceCount = len(prices)
			st.Min, st.Max = prices[0], prices[len(prices)-1]
			var sum float64
			for _, p := range prices {
				sum += p
			}
			st.Mean = sum / float64(len(prices))
			mid := len(prices) / 2
			if len(prices)%2 == 0 {
				st.Median = (prices[mid-1] + prices[mid]) / 2
			} else {
				st.Median = prices[mid]
			}
		}
	}

	if nameField, ok := s.FieldFor(schema.RoleName); ok {
		counts := map[string]int{}
		var order []string
		for _, rec := range recs {
			name := rec[nameField]
			if name == "" {
				continue
			}
			if counts[name] == 0 {
				order = append(order, name)
			}
			counts[name]++
		}
		// Stable so ties keep first-seen order.
		sort.SliceStable(order, func(i, j int) bool { return counts[order[i]] > counts[order[j]] })
		if len(order) > topNames {
			order = order[:topNames]
		}
		for _, name := range order {
			st.TopNames = append(st.TopNames, NameCount{Name: name, Count: counts[name]})
		}
	}
	return st
}
