package services

import "github.com/terraincognita07/csvdash/internal/models"

const (
	DistributionChartTitle   = "Equipment Type vs Count"
	DistributionDatasetLabel = "Equipment Count"
)

type ChartBar struct {
	Label   string
	Count   int64
	Percent float64
}

type DistributionChart struct {
	Title        string
	DatasetLabel string
	Bars         []ChartBar
	MaxCount     int64
}

// BuildDistributionChart turns the type distribution of a summary into bars
// scaled against the largest count. It reports false when there is nothing to draw.
func BuildDistributionChart(record models.SummaryRecord) (DistributionChart, bool) {
	if len(record.TypeDistribution) == 0 {
		return DistributionChart{}, false
	}

	labels := record.TypeDistributionLabels()
	chart := DistributionChart{
		Title:        DistributionChartTitle,
		DatasetLabel: DistributionDatasetLabel,
		Bars:         make([]ChartBar, 0, len(labels)),
	}
	for _, label := range labels {
		if count := record.TypeDistribution[label]; count > chart.MaxCount {
			chart.MaxCount = count
		}
	}

	for _, label := range labels {
		count := record.TypeDistribution[label]
		bar := ChartBar{Label: label, Count: count}
		if chart.MaxCount > 0 && count > 0 {
			bar.Percent = float64(count) * 100 / float64(chart.MaxCount)
		}
		chart.Bars = append(chart.Bars, bar)
	}
	return chart, true
}
