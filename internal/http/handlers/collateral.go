package handlers

import (
	"net/http"

	"github.com/go-chi/chi/v5"
)

// ExportCollateral is a raw HTTP handler serving the two clipboard
// representations of a generated document. `format=html` returns the raw
// markup, `format=text` a flattened plain-text rendering.
func (h *GenerateHandler) ExportCollateral(w http.ResponseWriter, r *http.Request) {
	c := h.getCollateral(chi.URLParam(r, "id"))
	if c == nil {
		http.Error(w, `{"error":"collateral not found"}`, http.StatusNotFound)
		return
	}

	format := r.URL.Query().Get("format")
	if format == "" {
		format = "html"
	}

	switch format {
	case "html":
		w.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = w.Write([]byte(c.HTML))
	case "text":
		text, err := htmlToText(c.HTML)
		if err != nil {
			http.Error(w, `{"error":"failed to render text"}`, http.StatusInternalServerError)
			return
		}
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte(text))
	default:
		http.Error(w, `{"error":"unknown format, use html or text"}`, http.StatusBadRequest)
	}
}
