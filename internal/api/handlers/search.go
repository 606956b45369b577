package handlers

import (
	"net/http"
	"strconv"

	"github.com/lbaudin/androfleet/internal/service/scans"
	"github.com/lbaudin/androfleet/internal/utils"
)

// SearchHandler serves the global file search.
type SearchHandler struct {
	Scans *scans.Service
}

// GET /api/v1/admin/files/search
// SearchFiles godoc
// @Summary Search files across recent completed scans
// @Description Filters compose with AND; results ordered by size descending
// @Tags Files
// @Produce json
// @Param q query string false "name/path substring"
// @Param file_type query string false "file type bucket"
// @Param extension query string false "extension"
// @Param min_size query int false "minimum size in bytes"
// @Param max_size query int false "maximum size in bytes"
// @Param device_id query int false "restrict to one device"
// @Param hidden query bool false "hidden files only"
// @Param limit query int false "result cap, max 1000"
// @Success 200 {object} utils.Payload
// @Failure 400 {object} utils.Payload
// @Router /api/v1/admin/files/search [get]
func (h *SearchHandler) Files(w http.ResponseWriter, r *http.Request) {
	req := scans.SearchRequest{
		Query:      r.URL.Query().Get("q"),
		FileType:   r.URL.Query().Get("file_type"),
		Extension:  r.URL.Query().Get("extension"),
		HiddenOnly: queryBool(r, "hidden"),
		Limit:      queryInt(r, "limit", 0),
		ScanScope:  queryInt(r, "scan_scope", 0),
	}

	var err error
	if req.MinSize, err = queryInt64Ptr(r, "min_size"); err != nil {
		utils.Fail(w, http.StatusBadRequest, "min_size: must be an integer")
		return
	}
	if req.MaxSize, err = queryInt64Ptr(r, "max_size"); err != nil {
		utils.Fail(w, http.StatusBadRequest, "max_size: must be an integer")
		return
	}
	if v := r.URL.Query().Get("device_id"); v != "" {
		id, perr := strconv.ParseUint(v, 10, 32)
		if perr != nil || id == 0 {
			utils.Fail(w, http.StatusBadRequest, "device_id: must be a positive integer")
			return
		}
		deviceID := uint(id)
		req.DeviceID = &deviceID
	}

	results, err := h.Scans.Search(r.Context(), req)
	if err != nil {
		serviceError(w, err)
		return
	}
	utils.OK(w, "Search results", map[string]any{
		"count":   len(results),
		"results": results,
	})
}
