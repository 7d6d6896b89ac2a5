/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: dashboard.go
Description: HTML report for analysis results. Renders the record and field metrics, every
layout comparison, and Chart.js charts of field sizes, comparison sizes and per-bit one
probabilities into a single self-contained page.
*/

package reporting

import (
	"fmt"
	"html/template"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/kleascm/bitlayout-analyzer/pkg/results"
	"github.com/sirupsen/logrus"
)

// Version is printed in the report header
const Version = "1.0.0"

// DashboardGenerator renders analysis results as HTML
type DashboardGenerator struct {
	outputDir string
	logger    logrus.FieldLogger
	templates *template.Template
}

// DashboardData contains all data for dashboard generation
type DashboardData struct {
	Title       string                   `json:"title"`
	GeneratedAt time.Time                `json:"generated_at"`
	Version     string                   `json:"version"`
	Results     *results.AnalysisResults `json:"results"`
	Charts      *ChartData               `json:"charts"`
}

// ChartData holds every chart on the page
type ChartData struct {
	FieldSizeChart   *ChartConfig   `json:"field_size_chart"`
	ComparisonCharts []*ChartConfig `json:"comparison_charts"`
	BitCharts        []*ChartConfig `json:"bit_charts"`
}

// ChartConfig is a Chart.js chart definition
type ChartConfig struct {
	Type    string                 `json:"type"`
	Title   string                 `json:"-"`
	Data    ChartDataSet           `json:"data"`
	Options map[string]interface{} `json:"options"`
}

// ChartDataSet is the data block of a Chart.js chart
type ChartDataSet struct {
	Labels   []string      `json:"labels"`
	Datasets []ChartSeries `json:"datasets"`
}

// ChartSeries is one series of a chart
type ChartSeries struct {
	Label           string    `json:"label"`
	Data            []float64 `json:"data"`
	BackgroundColor string    `json:"backgroundColor,omitempty"`
	BorderColor     string    `json:"borderColor,omitempty"`
}

var (
	sizeColor      = "rgba(102, 126, 234, 0.7)"
	estimatedColor = "rgba(237, 137, 54, 0.7)"
	originalColor  = "rgba(160, 174, 192, 0.7)"
)

// NewDashboardGenerator creates a generator writing into outputDir. A nil logger discards.
func NewDashboardGenerator(outputDir string, logger logrus.FieldLogger) *DashboardGenerator {
	if logger == nil {
		l := logrus.New()
		l.SetOutput(io.Discard)
		logger = l
	}
	return &DashboardGenerator{
		outputDir: outputDir,
		logger:    logger,
		templates: template.Must(template.New("dashboard").Funcs(templateFuncs).Parse(dashboardTemplate)),
	}
}

// GenerateDashboard writes <name>.html and returns its path
func (dg *DashboardGenerator) GenerateDashboard(name string, res *results.AnalysisResults) (string, error) {
	if err := os.MkdirAll(dg.outputDir, 0755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}

	outputFile := filepath.Join(dg.outputDir, name+".html")
	file, err := os.Create(outputFile)
	if err != nil {
		return "", fmt.Errorf("failed to create output file: %w", err)
	}
	defer file.Close()

	if err := dg.Render(file, res); err != nil {
		return "", err
	}

	dg.logger.WithField("path", outputFile).Debug("Dashboard written")
	return outputFile, nil
}

// Render executes the dashboard template for res into w
func (dg *DashboardGenerator) Render(w io.Writer, res *results.AnalysisResults) error {
	title := res.Schema
	if title == "" {
		title = "Bit layout analysis"
	}
	data := &DashboardData{
		Title:       title,
		GeneratedAt: time.Now(),
		Version:     Version,
		Results:     res,
		Charts:      prepareChartData(res),
	}
	if err := dg.templates.Execute(w, data); err != nil {
		return fmt.Errorf("failed to execute template: %w", err)
	}
	return nil
}

func prepareChartData(res *results.AnalysisResults) *ChartData {
	charts := &ChartData{FieldSizeChart: createFieldSizeChart(res)}
	for _, c := range res.Comparisons {
		charts.ComparisonCharts = append(charts.ComparisonCharts, createComparisonChart(c))
	}
	for _, f := range res.Fields {
		charts.BitCharts = append(charts.BitCharts, createBitChart(f))
	}
	return charts
}

func createFieldSizeChart(res *results.AnalysisResults) *ChartConfig {
	var labels []string
	var original, compressed, estimated []float64
	for _, f := range res.Fields {
		labels = append(labels, f.Path)
		original = append(original, float64(f.Metrics.OriginalSize))
		compressed = append(compressed, float64(f.Metrics.CompressedSize))
		estimated = append(estimated, f.Metrics.EstimatedSize)
	}
	return &ChartConfig{
		Type:  "bar",
		Title: "Field sizes",
		Data: ChartDataSet{
			Labels: labels,
			Datasets: []ChartSeries{
				{Label: "Original bytes", Data: original, BackgroundColor: originalColor},
				{Label: "zstd bytes", Data: compressed, BackgroundColor: sizeColor},
				{Label: "Estimated bytes", Data: estimated, BackgroundColor: estimatedColor},
			},
		},
		Options: barOptions(),
	}
}

func createComparisonChart(c results.ComparisonResult) *ChartConfig {
	layouts := append([]results.LayoutMetrics{c.Baseline}, c.Comparisons...)
	var labels []string
	var compressed, estimated []float64
	for _, l := range layouts {
		labels = append(labels, l.Name)
		compressed = append(compressed, float64(l.Metrics.CompressedSize))
		estimated = append(estimated, l.Metrics.EstimatedSize)
	}
	return &ChartConfig{
		Type:  "bar",
		Title: c.Name,
		Data: ChartDataSet{
			Labels: labels,
			Datasets: []ChartSeries{
				{Label: "zstd bytes", Data: compressed, BackgroundColor: sizeColor},
				{Label: "Estimated bytes", Data: estimated, BackgroundColor: estimatedColor},
			},
		},
		Options: barOptions(),
	}
}

// createBitChart plots the probability of each bit being set, in read order.
func createBitChart(f results.FieldMetrics) *ChartConfig {
	labels := make([]string, len(f.BitCounts))
	probs := make([]float64, len(f.BitCounts))
	for i, bc := range f.BitCounts {
		labels[i] = fmt.Sprintf("%d", i)
		if total := bc.Zeros + bc.Ones; total > 0 {
			probs[i] = float64(bc.Ones) / float64(total)
		}
	}
	opts := barOptions()
	opts["scales"] = map[string]interface{}{
		"y": map[string]interface{}{"beginAtZero": true, "max": 1},
	}
	return &ChartConfig{
		Type:  "bar",
		Title: f.Path,
		Data: ChartDataSet{
			Labels:   labels,
			Datasets: []ChartSeries{{Label: "P(bit = 1)", Data: probs, BackgroundColor: sizeColor}},
		},
		Options: opts,
	}
}

func barOptions() map[string]interface{} {
	return map[string]interface{}{
		"responsive":          true,
		"maintainAspectRatio": false,
		"scales": map[string]interface{}{
			"y": map[string]interface{}{"beginAtZero": true},
		},
	}
}

var templateFuncs = template.FuncMap{
	"ratio": func(compressed, original int) string {
		if original == 0 {
			return "-"
		}
		return fmt.Sprintf("%.3f", float64(compressed)/float64(original))
	},
	"signed": func(v int) string { return fmt.Sprintf("%+d", v) },
}
