package analytics

import "fmt"

// Chart is renderer-agnostic chart data.
type Chart struct {
	Type     string    `json:"type"`
	Title    string    `json:"title"`
	Labels   []string  `json:"labels"`
	Datasets []Dataset `json:"datasets"`
}

// Dataset is one series of a Chart.
type Dataset struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor string    `json:"background_color"`
	BorderColor     string    `json:"border_color"`
}

// palette assigns series colours by position so identical input always
// renders identically.
var palette = [][3]int{
	{54, 162, 235},
	{255, 99, 132},
	{75, 192, 192},
	{255, 159, 64},
	{153, 102, 255},
	{255, 205, 86},
	{201, 203, 207},
	{46, 139, 87},
}

func colors(i int) (background, border string) {
	c := palette[i%len(palette)]
	return fmt.Sprintf("rgba(%d, %d, %d, 0.2)", c[0], c[1], c[2]),
		fmt.Sprintf("rgba(%d, %d, %d, 1)", c[0], c[1], c[2])
}

func radarChart(factors []string, items []ComparisonItem) Chart {
	ch := Chart{
		Type:     "radar",
		Title:    "Machine performance comparison",
		Labels:   append([]string(nil), factors...),
		Datasets: make([]Dataset, 0, len(items)),
	}
	for i, it := range items {
		data := make([]float64, len(factors))
		for j, f := range factors {
			data[j] = it.FactorScores[f]
		}
		bg, border := colors(i)
		ch.Datasets = append(ch.Datasets, Dataset{
			Label:           it.MachineName,
			Data:            data,
			BackgroundColor: bg,
			BorderColor:     border,
		})
	}
	return ch
}

func barChart(items []ComparisonItem) Chart {
	labels := make([]string, len(items))
	data := make([]float64, len(items))
	for i, it := range items {
		labels[i] = it.MachineName
		data[i] = it.OverallScore
	}
	bg, border := colors(0)
	return Chart{
		Type:   "bar",
		Title:  "Overall performance",
		Labels: labels,
		Datasets: []Dataset{{
			Label:           "Overall score",
			Data:            data,
			BackgroundColor: bg,
			BorderColor:     border,
		}},
	}
}
