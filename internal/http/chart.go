package http

import (
	"fmt"
	"net/http"
	"sort"

	"github.com/gin-gonic/gin"
	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/components"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// renderChart serves a self-contained HTML page with the hourly and daily
// congestion series, for quick inspection without the dashboard frontend.
func (h *Handler) renderChart(c *gin.Context) {
	locationID := locationParam(c)

	hourly := h.analytics.HourlyData(locationID)
	hours := make([]int, 0, len(hourly))
	for hour := range hourly {
		hours = append(hours, hour)
	}
	sort.Ints(hours)

	hourLabels := make([]string, 0, len(hours))
	hourData := make([]opts.BarData, 0, len(hours))
	for _, hour := range hours {
		bucket := hourly[hour]
		avg := 0.0
		if bucket.SampleCount > 0 {
			avg = float64(bucket.VehicleSum) / float64(bucket.SampleCount)
		}
		hourLabels = append(hourLabels, fmt.Sprintf("%02d:00", hour))
		hourData = append(hourData, opts.BarData{Value: avg})
	}

	bar := charts.NewBar()
	title := "Average vehicles by hour"
	if locationID != "" {
		title += " - " + locationID
	}
	bar.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: title}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	bar.SetXAxis(hourLabels).AddSeries("avg vehicles", hourData)

	daily := h.analytics.DailyTotals()
	days := make([]string, 0, len(daily))
	for day := range daily {
		days = append(days, day)
	}
	sort.Strings(days)

	dayData := make([]opts.LineData, 0, len(days))
	for _, day := range days {
		dayData = append(dayData, opts.LineData{Value: daily[day].Vehicles})
	}

	line := charts.NewLine()
	line.SetGlobalOptions(
		charts.WithTitleOpts(opts.Title{Title: "Vehicles per day"}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true), Trigger: "axis"}),
	)
	line.SetXAxis(days).AddSeries("vehicles", dayData)

	page := components.NewPage()
	page.SetLayout(components.PageFlexLayout)
	page.AddCharts(bar, line)

	c.Status(http.StatusOK)
	c.Header("Content-Type", "text/html; charset=utf-8")
	if err := page.Render(c.Writer); err != nil {
		h.log.Error().Err(err).Msg("chart render failed")
	}
}
