package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"

	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/httputil"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/pkg/logger"
	"github.com/siendomiguel/reports-stats-bitfinanzas/internal/urlconfig"
)

// configFailure writes the {success:false, error} body of the config routes.
func configFailure(w http.ResponseWriter, status int, message string, extra httputil.Fields) {
	body := httputil.Fields{"success": false, "error": message}
	for k, v := range extra {
		body[k] = v
	}
	httputil.JSON(w, status, body)
}

func configStorageFailure(w http.ResponseWriter, err error) {
	logger.Error("url config request failed", "error", err)
	configFailure(w, http.StatusInternalServerError, err.Error(), nil)
}

// decodeField extracts one top-level field of a JSON object body. A missing
// body, a non-object body or an absent field all yield nil.
func decodeField(r *http.Request, name string) json.RawMessage {
	var body map[string]json.RawMessage
	if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
		return nil
	}
	raw, ok := body[name]
	if !ok || string(raw) == "null" {
		return nil
	}
	return raw
}

// textValue reads a JSON string or number as text; falsy values give "".
func textValue(raw json.RawMessage) string {
	var s string
	if json.Unmarshal(raw, &s) == nil {
		return s
	}
	var n json.Number
	if json.Unmarshal(raw, &n) == nil {
		if i, err := strconv.ParseInt(n.String(), 10, 64); err == nil && i != 0 {
			return strconv.FormatInt(i, 10)
		}
	}
	return ""
}

// ListConfigURLs returns the URL config.
//
//	GET /api/config/urls
func (h *Handlers) ListConfigURLs(w http.ResponseWriter, r *http.Request) {
	cfg, err := h.urls.List(r.Context())
	if err != nil {
		configStorageFailure(w, err)
		return
	}
	httputil.OK(w, httputil.Fields{
		"success":     true,
		"urls":        cfg.URLs,
		"total":       len(cfg.URLs),
		"lastUpdated": cfg.LastUpdated,
		"description": cfg.Description,
	})
}

// AddConfigURL appends one URL.
//
//	POST /api/config/urls {"url": "/path/"}
func (h *Handlers) AddConfigURL(w http.ResponseWriter, r *http.Request) {
	value := textValue(decodeField(r, "url"))
	if value == "" {
		configFailure(w, http.StatusBadRequest, `El campo "url" es requerido`, nil)
		return
	}

	added, total, err := h.urls.Add(r.Context(), value)
	switch {
	case errors.Is(err, urlconfig.ErrInvalidURL):
		configFailure(w, http.StatusBadRequest, "URL inválida o vacía", nil)
	case errors.Is(err, urlconfig.ErrDuplicate):
		configFailure(w, http.StatusBadRequest, fmt.Sprintf(`La URL "%s" ya existe`, added), httputil.Fields{"url": added})
	case err != nil:
		configStorageFailure(w, err)
	default:
		httputil.Created(w, httputil.Fields{
			"success": true,
			"message": "URL agregada correctamente",
			"url":     added,
			"total":   total,
		})
	}
}

// RemoveConfigURL deletes a URL given by value or 1-based position.
//
//	DELETE /api/config/urls {"url": "/path/" | "3"}
func (h *Handlers) RemoveConfigURL(w http.ResponseWriter, r *http.Request) {
	value := textValue(decodeField(r, "url"))
	if value == "" {
		configFailure(w, http.StatusBadRequest, `El campo "url" es requerido para eliminar`, nil)
		return
	}

	removed, total, err := h.urls.Remove(r.Context(), value)
	switch {
	case errors.Is(err, urlconfig.ErrNotFound):
		configFailure(w, http.StatusNotFound, fmt.Sprintf(`URL "%s" no encontrada`, removed), nil)
	case errors.Is(err, urlconfig.ErrInvalidURL):
		configFailure(w, http.StatusNotFound, fmt.Sprintf(`URL "%s" no encontrada`, value), nil)
	case err != nil:
		configStorageFailure(w, err)
	default:
		httputil.OK(w, httputil.Fields{
			"success": true,
			"message": "URL eliminada correctamente",
			"url":     removed,
			"total":   total,
		})
	}
}

// ReplaceConfigURLs swaps the whole list.
//
//	PUT /api/config/urls {"urls": ["/a/", "/b/"]}
func (h *Handlers) ReplaceConfigURLs(w http.ResponseWriter, r *http.Request) {
	var urls []string
	raw := decodeField(r, "urls")
	if raw == nil || json.Unmarshal(raw, &urls) != nil || urls == nil {
		configFailure(w, http.StatusBadRequest, `El campo "urls" debe ser un array`, nil)
		return
	}

	total, err := h.urls.Replace(r.Context(), urls)
	switch {
	case errors.Is(err, urlconfig.ErrDuplicateList):
		configFailure(w, http.StatusBadRequest, "La lista contiene URLs duplicadas", nil)
	case errors.Is(err, urlconfig.ErrInvalidURL):
		configFailure(w, http.StatusBadRequest, "URL inválida o vacía", nil)
	case err != nil:
		configStorageFailure(w, err)
	default:
		httputil.OK(w, httputil.Fields{
			"success": true,
			"message": "URLs actualizadas correctamente",
			"total":   total,
		})
	}
}
