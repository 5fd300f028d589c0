package service

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
)

// ExportJSON dumps the full document for user-initiated export. The output
// round-trips through the store's loader.
func (a *Analytics) ExportJSON() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	return json.MarshalIndent(a.doc, "", "  ")
}

// ExportCSV renders the hourly and daily chart series as
// Period,Label,Congestion Value,Samples rows.
func (a *Analytics) ExportCSV() ([]byte, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	var buf bytes.Buffer
	w := csv.NewWriter(&buf)

	if err := w.Write([]string{"Period", "Label", "Congestion Value", "Samples"}); err != nil {
		return nil, err
	}

	hours := make([]int, 0, len(a.doc.HourlyBuckets))
	for hour := range a.doc.HourlyBuckets {
		hours = append(hours, hour)
	}
	sort.Ints(hours)
	for _, hour := range hours {
		bucket := a.doc.HourlyBuckets[hour]
		if err := w.Write([]string{
			"hourly",
			fmt.Sprintf("%02d:00", hour),
			strconv.Itoa(bucket.VehicleSum),
			strconv.Itoa(bucket.SampleCount),
		}); err != nil {
			return nil, err
		}
	}

	days := make([]string, 0, len(a.doc.DailyTotals))
	for day := range a.doc.DailyTotals {
		days = append(days, day)
	}
	sort.Strings(days)
	for _, day := range days {
		dt := a.doc.DailyTotals[day]
		if err := w.Write([]string{
			"daily",
			day,
			strconv.Itoa(dt.Vehicles),
			strconv.Itoa(dt.Incidents),
		}); err != nil {
			return nil, err
		}
	}

	w.Flush()
	if err := w.Error(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
