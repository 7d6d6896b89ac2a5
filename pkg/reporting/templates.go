/*
Author: KleaSCM
Email: KleaSCM@gmail.com
File: templates.go
Description: HTML template for the analysis dashboard.
*/

package reporting

// dashboardTemplate is the main HTML template for the dashboard
const dashboardTemplate = `<!DOCTYPE html>
<html lang="en">
<head>
    <meta charset="UTF-8">
    <meta name="viewport" content="width=device-width, initial-scale=1.0">
    <title>{{.Title}} - Bit Layout Analysis</title>
    <script src="https://cdn.jsdelivr.net/npm/chart.js"></script>
    <style>
        * { margin: 0; padding: 0; box-sizing: border-box; }

        body {
            font-family: 'Segoe UI', Tahoma, Geneva, Verdana, sans-serif;
            background: linear-gradient(135deg, #667eea 0%, #764ba2 100%);
            min-height: 100vh;
            color: #333;
        }

        .container { max-width: 1400px; margin: 0 auto; padding: 20px; }

        .header, .panel, .stat-card {
            background: rgba(255, 255, 255, 0.95);
            border-radius: 15px;
            padding: 25px;
            margin-bottom: 25px;
            box-shadow: 0 8px 32px rgba(0, 0, 0, 0.1);
        }

        .header { text-align: center; }
        .header h1 { color: #4a5568; font-size: 2.2rem; margin-bottom: 10px; }
        .header p { color: #718096; }

        .stats-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(220px, 1fr));
            gap: 20px;
        }

        .stat-card .value { font-size: 2rem; font-weight: 700; color: #2d3748; }
        .stat-card .label { color: #718096; font-size: 0.85rem; text-transform: uppercase; }

        .charts-grid {
            display: grid;
            grid-template-columns: repeat(auto-fit, minmax(450px, 1fr));
            gap: 25px;
        }

        .panel h2, .panel h3 { color: #4a5568; margin-bottom: 15px; }
        .chart-wrapper { position: relative; height: 280px; }

        table { width: 100%; border-collapse: collapse; font-size: 0.9rem; }
        th, td { padding: 6px 10px; text-align: right; border-bottom: 1px solid #e2e8f0; }
        th:first-child, td:first-child { text-align: left; }
        th { color: #4a5568; }
        .better { color: #2f855a; }
        .worse { color: #c53030; }
    </style>
</head>
<body>
    <div class="container">
        <div class="header">
            <h1>{{.Title}}</h1>
            <p>Generated on {{.GeneratedAt.Format "January 2, 2006 at 3:04 PM"}} | Run: {{.Results.RunID}} | Version: {{.Version}}</p>
        </div>

        <div class="stats-grid">
            <div class="stat-card">
                <div class="value">{{.Results.Entries}}</div>
                <div class="label">Records</div>
            </div>
            <div class="stat-card">
                <div class="value">{{len .Results.Sources}}</div>
                <div class="label">Files</div>
            </div>
            <div class="stat-card">
                <div class="value">{{.Results.Record.CompressedSize}}</div>
                <div class="label">zstd bytes of {{.Results.Record.OriginalSize}}</div>
            </div>
            <div class="stat-card">
                <div class="value">{{printf "%.3f" .Results.Record.Entropy}}</div>
                <div class="label">Record entropy (bits/byte)</div>
            </div>
        </div>

        <div class="panel">
            <h2>Fields</h2>
            <table>
                <tr><th>Field</th><th>Bits</th><th>Order</th><th>Count</th><th>Skipped</th><th>Distinct</th><th>Entropy</th><th>LZ matches</th><th>Original</th><th>zstd</th><th>Estimated</th><th>Ratio</th></tr>
                {{range .Results.Fields}}
                <tr>
                    <td>{{.Path}}</td><td>{{.Bits}}</td><td>{{.BitOrder}}</td><td>{{.Count}}</td><td>{{.Skipped}}</td><td>{{.DistinctValues}}</td>
                    <td>{{printf "%.3f" .Metrics.Entropy}}</td><td>{{.Metrics.LZMatches}}</td><td>{{.Metrics.OriginalSize}}</td>
                    <td>{{.Metrics.CompressedSize}}</td><td>{{printf "%.1f" .Metrics.EstimatedSize}}</td><td>{{ratio .Metrics.CompressedSize .Metrics.OriginalSize}}</td>
                </tr>
                {{end}}
            </table>
        </div>

        <div class="panel">
            <h3>Field sizes</h3>
            <div class="chart-wrapper"><canvas id="fieldSizeChart"></canvas></div>
        </div>

        {{range $i, $c := .Results.Comparisons}}
        <div class="panel">
            <h2>{{$c.Name}} <small>({{$c.Kind}})</small></h2>
            {{if $c.Description}}<p>{{$c.Description}}</p>{{end}}
            <div class="charts-grid">
                <table>
                    <tr><th>Layout</th><th>zstd</th><th>Delta</th><th>Estimated</th><th>Entropy</th></tr>
                    <tr><td>{{$c.Baseline.Name}} (baseline)</td><td>{{$c.Baseline.Metrics.CompressedSize}}</td><td>-</td><td>{{printf "%.1f" $c.Baseline.Metrics.EstimatedSize}}</td><td>{{printf "%.3f" $c.Baseline.Metrics.Entropy}}</td></tr>
                    {{range $c.Comparisons}}
                    <tr>
                        <td>{{.Name}}</td><td>{{.Metrics.CompressedSize}}</td>
                        <td class="{{if lt .SizeDelta 0}}better{{else if gt .SizeDelta 0}}worse{{end}}">{{signed .SizeDelta}}</td>
                        <td>{{printf "%.1f" .Metrics.EstimatedSize}}</td><td>{{printf "%.3f" .Metrics.Entropy}}</td>
                    </tr>
                    {{end}}
                </table>
                <div class="chart-wrapper"><canvas id="comparisonChart{{$i}}"></canvas></div>
            </div>
        </div>
        {{end}}

        <div class="panel">
            <h2>Bit distribution</h2>
            <div class="charts-grid">
                {{range $i, $f := .Results.Fields}}
                <div>
                    <h3>{{$f.Path}}</h3>
                    <div class="chart-wrapper"><canvas id="bitChart{{$i}}"></canvas></div>
                </div>
                {{end}}
            </div>
        </div>
    </div>

    <script>
        Chart.defaults.font.family = "'Segoe UI', Tahoma, Geneva, Verdana, sans-serif";
        Chart.defaults.color = '#4a5568';

        new Chart(document.getElementById('fieldSizeChart'), {{.Charts.FieldSizeChart}});

        const comparisonCharts = {{.Charts.ComparisonCharts}} || [];
        comparisonCharts.forEach((cfg, i) => new Chart(document.getElementById('comparisonChart' + i), cfg));

        const bitCharts = {{.Charts.BitCharts}} || [];
        bitCharts.forEach((cfg, i) => new Chart(document.getElementById('bitChart' + i), cfg));
    </script>
</body>
</html>`
