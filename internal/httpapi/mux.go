package httpapi

import (
	"database/sql"
	"net/http"

	"sen66-server/internal/metrics"
)

func NewMux(db *sql.DB, m *metrics.Metrics) *http.ServeMux {
	mux := http.NewServeMux()
	registerHealthcheck(mux, db)
	if m != nil {
		mux.Handle("GET /metrics", m.Handler())
	}
	return mux
}
