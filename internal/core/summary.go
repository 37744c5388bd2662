package core

import "github.com/shopspring/decimal"

// ChartPalette is the fixed set of slice colors handed to the chart front end.
// More than five categories reuse colors on the client side.
var ChartPalette = []string{"#ff9999", "#66b3ff", "#99ff99", "#ffcc99", "#ffb3e6"}

// CategoryTotal is the sum of amounts for one category label.
type CategoryTotal struct {
	Category string
	Total    decimal.Decimal
}

// ChartDataset mirrors a Chart.js dataset.
type ChartDataset struct {
	Data            []float64 `json:"data"`
	BackgroundColor []string  `json:"backgroundColor"`
}

// ChartData mirrors the Chart.js data object.
type ChartData struct {
	Labels   []string       `json:"labels"`
	Datasets []ChartDataset `json:"datasets"`
}

// AggregateByCategory sums amounts per category. Categories appear in order of
// their first occurrence in expenses.
func AggregateByCategory(expenses []Expense) []CategoryTotal {
	index := make(map[string]int)
	totals := make([]CategoryTotal, 0)
	for _, e := range expenses {
		i, ok := index[e.Category]
		if !ok {
			index[e.Category] = len(totals)
			totals = append(totals, CategoryTotal{Category: e.Category, Total: e.Amount})
			continue
		}
		totals[i].Total = totals[i].Total.Add(e.Amount)
	}
	return totals
}

// BuildChartData converts category totals into a single-dataset chart.
func BuildChartData(totals []CategoryTotal) ChartData {
	labels := make([]string, len(totals))
	values := make([]float64, len(totals))
	for i, t := range totals {
		labels[i] = t.Category
		values[i] = t.Total.InexactFloat64()
	}
	colors := make([]string, len(ChartPalette))
	copy(colors, ChartPalette)

	return ChartData{
		Labels: labels,
		Datasets: []ChartDataset{{
			Data:            values,
			BackgroundColor: colors,
		}},
	}
}
