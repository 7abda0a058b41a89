package api

import (
	"invoice-export-service/internal/api/handler"
	"invoice-export-service/internal/exporter"
	"invoice-export-service/pkg/router"

	"github.com/rs/zerolog"
	httpSwagger "github.com/swaggo/http-swagger"

	_ "invoice-export-service/docs"
)

// NewRouter wires the admin sync API onto the mux.
func NewRouter(svc *exporter.Service, log zerolog.Logger) *router.Router {
	r := router.New(log)
	feed := handler.NewFeed(log)
	h := handler.New(svc, feed, log)

	r.POST("/api/v1/admin/sync/basic-data", h.SyncBasicData)
	r.POST("/api/v1/admin/sync/invoices", h.SyncInvoices)
	r.GET("/api/v1/admin/sync/status", h.SyncStatus)
	r.GET("/api/v1/admin/sync/watermarks", h.Watermarks)
	r.GET("/api/v1/admin/sync/events", h.Events)

	r.Handle("/swagger/", httpSwagger.WrapHandler)
	return r
}
