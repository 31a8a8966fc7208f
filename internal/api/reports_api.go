package api

import (
	"bytes"
	"net/http"

	"tischbuch/internal/metrics"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// handleHourlyReport returns the hourly guest overview as JSON or, with
// format=xlsx, as a workbook download.
// GET /api/v1/reports/hourly?date=YYYY-MM-DD[&format=xlsx]
func (s *HTTPServer) handleHourlyReport(w http.ResponseWriter, r *http.Request) {
	metrics.IncHTTP("report_hourly")

	date := r.URL.Query().Get("date")
	switch r.URL.Query().Get("format") {
	case "", "json":
		buckets, err := s.svc.Reports.HourlyGuestOverview(r.Context(), date)
		if err != nil {
			s.writeAppError(w, r, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]any{"date": date, "hours": buckets})
	case "xlsx":
		var buf bytes.Buffer
		if err := s.svc.Reports.WriteHourlyXLSX(r.Context(), date, &buf); err != nil {
			s.writeAppError(w, r, err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", `attachment; filename="gaeste-`+date+`.xlsx"`)
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	default:
		writeError(w, http.StatusBadRequest, "format must be json or xlsx")
	}
}
