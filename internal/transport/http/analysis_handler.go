// Package http contains the chi handlers exposing analyses, derived views
// and downloads to the UI layer.
package http

import (
	"fmt"
	"log/slog"
	"mime/multipart"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"invoicelens/internal/analytics"
	"invoicelens/internal/batch"
	apierrors "invoicelens/internal/errors"
	"invoicelens/internal/services"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

// AnalysisHandler handles analysis HTTP requests.
type AnalysisHandler struct {
	service   *services.AnalysisService
	maxUpload int64
	logger    *slog.Logger
}

// NewAnalysisHandler creates the handler.
func NewAnalysisHandler(service *services.AnalysisService, maxUpload int64, logger *slog.Logger) *AnalysisHandler {
	return &AnalysisHandler{
		service:   service,
		maxUpload: maxUpload,
		logger:    logger.With(slog.String("component", "analysis_handler")),
	}
}

// Routes returns the analysis routes.
func (h *AnalysisHandler) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(render.SetContentType(render.ContentTypeJSON))

	r.Post("/", h.AnalyzeSingle)
	r.Post("/batch", h.AnalyzeBatch)

	r.Route("/{id}", func(r chi.Router) {
		r.Use(h.SessionCtx)
		r.Get("/", h.GetAnalysis)
		r.Get("/top", h.GetTopProducts)
		r.Get("/recurring", h.GetRecurring)
		r.Get("/shares", h.GetShares)
		r.Get("/trends", h.GetTrends)
		r.Get("/forecast", h.GetForecast)
		r.Get("/export", h.Export)
		r.Get("/template", h.DownloadTemplate)
	})
	return r
}

// SessionCtx validates the session id parameter.
func (h *AnalysisHandler) SessionCtx(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if chi.URLParam(r, "id") == "" {
			h.renderError(w, r, apierrors.ErrValidation("id", "Session id is required"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// AnalyzeSingle handles POST /api/analysis with one uploaded file.
func (h *AnalysisHandler) AnalyzeSingle(w http.ResponseWriter, r *http.Request) {
	file, header, err := h.formFile(r, "file")
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	defer file.Close()

	analysis, err := h.service.AnalyzeSingle(r.Context(), header.Filename, file)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, analysis)
}

// AnalyzeBatch handles POST /api/analysis/batch with N uploaded files.
func (h *AnalysisHandler) AnalyzeBatch(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		h.renderError(w, r, apierrors.ErrValidation("files", "Invalid multipart upload"))
		return
	}
	headers := r.MultipartForm.File["files"]
	if len(headers) == 0 {
		h.renderError(w, r, apierrors.ErrValidation("files", "At least one file is required"))
		return
	}

	sources := make([]batch.Source, 0, len(headers))
	var opened []multipart.File
	defer func() {
		for _, f := range opened {
			f.Close()
		}
	}()
	for _, fh := range headers {
		f, err := fh.Open()
		if err != nil {
			h.renderError(w, r, apierrors.ErrValidation("files", fmt.Sprintf("Cannot open %q", fh.Filename)))
			return
		}
		opened = append(opened, f)
		sources = append(sources, batch.Source{Name: fh.Filename, Reader: f})
	}

	analysis, err := h.service.AnalyzeBatch(r.Context(), sources)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.Status(r, http.StatusCreated)
	render.JSON(w, r, analysis)
}

// GetAnalysis handles GET /api/analysis/{id}.
func (h *AnalysisHandler) GetAnalysis(w http.ResponseWriter, r *http.Request) {
	analysis, err := h.service.Get(chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, analysis)
}

// GetTopProducts handles GET /api/analysis/{id}/top?n=10.
func (h *AnalysisHandler) GetTopProducts(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.TopProducts(chi.URLParam(r, "id"), h.queryN(r, 10))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"products": groups})
}

// GetRecurring handles GET /api/analysis/{id}/recurring?n=10. An empty list
// is informational, not an error.
func (h *AnalysisHandler) GetRecurring(w http.ResponseWriter, r *http.Request) {
	groups, err := h.service.Recurring(chi.URLParam(r, "id"), h.queryN(r, 10))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	resp := map[string]interface{}{"products": groups}
	if len(groups) == 0 {
		resp["info"] = "No recurring items found in large quantities."
	}
	render.JSON(w, r, resp)
}

// GetShares handles GET /api/analysis/{id}/shares?n=20.
func (h *AnalysisHandler) GetShares(w http.ResponseWriter, r *http.Request) {
	shares, err := h.service.Shares(chi.URLParam(r, "id"), h.queryN(r, 20))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"products": shares})
}

// GetTrends handles GET /api/analysis/{id}/trends. Without parameters it
// returns the full per-(date, product) series; ?product= narrows it to one
// product's quantity series.
func (h *AnalysisHandler) GetTrends(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	var points []analytics.TrendPoint
	var err error
	if product := r.URL.Query().Get("product"); product != "" {
		points, err = h.service.ProductSeries(id, product)
	} else {
		points, err = h.service.Trends(id)
	}
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]interface{}{"points": points})
}

// GetForecast handles GET /api/analysis/{id}/forecast?product=....
// Insufficient data renders as a normal 200 payload.
func (h *AnalysisHandler) GetForecast(w http.ResponseWriter, r *http.Request) {
	product := r.URL.Query().Get("product")
	if product == "" {
		h.renderError(w, r, apierrors.ErrValidation("product", "Product description is required"))
		return
	}

	result, err := h.service.ForecastProduct(r.Context(), chi.URLParam(r, "id"), product)
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

// Export handles GET /api/analysis/{id}/export?format=xlsx|csv.
func (h *AnalysisHandler) Export(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	format := r.URL.Query().Get("format")
	if format == "" {
		format = "xlsx"
	}

	switch format {
	case "xlsx":
		data, err := h.service.ExportWorkbook(id)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		h.sendFile(w, data, "batch_invoice_table.xlsx", xlsxContentType)
	case "csv":
		data, err := h.service.ExportCSV(id)
		if err != nil {
			h.renderError(w, r, err)
			return
		}
		h.sendFile(w, data, "batch_invoice_table.csv", "text/csv")
	default:
		h.renderError(w, r, apierrors.ErrValidation("format", fmt.Sprintf("Unsupported export format %q", format)))
	}
}

// DownloadTemplate handles GET /api/analysis/{id}/template. A missing
// template file is a 404 warning; the analysis itself stays usable.
func (h *AnalysisHandler) DownloadTemplate(w http.ResponseWriter, r *http.Request) {
	data, err := h.service.FilledTemplate(chi.URLParam(r, "id"))
	if err != nil {
		h.renderError(w, r, err)
		return
	}
	h.sendFile(w, data, "filled_invoice.xlsx", xlsxContentType)
}

func (h *AnalysisHandler) formFile(r *http.Request, field string) (multipart.File, *multipart.FileHeader, error) {
	if err := r.ParseMultipartForm(h.maxUpload); err != nil {
		return nil, nil, apierrors.ErrValidation(field, "Invalid multipart upload")
	}
	file, header, err := r.FormFile(field)
	if err != nil {
		return nil, nil, apierrors.ErrValidation(field, "Exactly one file is required")
	}
	return file, header, nil
}

func (h *AnalysisHandler) queryN(r *http.Request, def int) int {
	raw := r.URL.Query().Get("n")
	if raw == "" {
		return def
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return def
	}
	return n
}

func (h *AnalysisHandler) sendFile(w http.ResponseWriter, data []byte, filename, contentType string) {
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (h *AnalysisHandler) renderError(w http.ResponseWriter, r *http.Request, err error) {
	apiErr := apierrors.ToAPIError(err)
	if apiErr.StatusCode >= http.StatusInternalServerError {
		h.logger.ErrorContext(r.Context(), "request failed",
			slog.String("path", r.URL.Path),
			slog.String("error", err.Error()))
	}
	if renderErr := render.Render(w, r, apiErr); renderErr != nil {
		http.Error(w, apiErr.Message, apiErr.StatusCode)
	}
}
