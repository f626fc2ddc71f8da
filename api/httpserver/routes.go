package httpserver

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"tiergc/domain/object"
	"tiergc/domain/registry"
	"tiergc/service"
)

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	st := s.svc.Stats()
	writeJSON(w, http.StatusOK, map[string]any{
		"policy":       st.Policy,
		"sizes":        sizes(st.Sizes),
		"tracked":      st.Tracked,
		"live":         st.Live,
		"collections":  st.Collections,
		"destroyed":    st.Destroyed,
		"journal_errs": st.JournalErrs,
		"seq":          st.Seq,
		"pool": map[string]any{
			"gets":        st.Pool.Gets,
			"puts":        st.Pool.Puts,
			"news":        st.Pool.News,
			"outstanding": st.Pool.Outstanding(),
		},
	})
}

func (s *Server) handleGeneration(w http.ResponseWriter, r *http.Request) {
	gen, err := registry.ParseGeneration(chi.URLParam(r, "gen"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	members := s.svc.Members(gen)
	handles := make([]uint64, len(members))
	for i, h := range members {
		handles[i] = uint64(h)
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"generation": gen.String(),
		"size":       len(handles),
		"handles":    handles,
	})
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Value      int64  `json:"value"`
		Generation string `json:"generation"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}
	gen, err := registry.ParseGeneration(req.Generation)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	h, err := s.svc.Create(req.Value, gen)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, map[string]any{
		"handle":     uint64(h),
		"generation": gen.String(),
	})
}

func (s *Server) handleDescribe(w http.ResponseWriter, r *http.Request) {
	h, ok := handleParam(w, r)
	if !ok {
		return
	}
	info, err := s.svc.Describe(h)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, objectJSON(info))
}

func (s *Server) handleAddRef(w http.ResponseWriter, r *http.Request) {
	s.refOp(w, r, s.svc.AddRef)
}

func (s *Server) handleRelease(w http.ResponseWriter, r *http.Request) {
	s.refOp(w, r, s.svc.Release)
}

func (s *Server) refOp(w http.ResponseWriter, r *http.Request, op func(registry.Handle) (int, error)) {
	h, ok := handleParam(w, r)
	if !ok {
		return
	}
	n, err := op(h)
	if err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"handle":    uint64(h),
		"ref_count": n,
	})
}

func (s *Server) handleRemove(w http.ResponseWriter, r *http.Request) {
	h, ok := handleParam(w, r)
	if !ok {
		return
	}
	if err := s.svc.Remove(h); err != nil {
		writeError(w, statusFor(err), err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleCollect(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.Collect()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"swept":           st.Swept,
		"young_to_middle": st.YoungToMiddle,
		"middle_to_old":   st.MiddleToOld,
		"sizes":           sizes(st.Sizes),
		"duration_ns":     st.Duration.Nanoseconds(),
	})
}

func (s *Server) handleCleanup(w http.ResponseWriter, r *http.Request) {
	n, err := s.svc.Cleanup()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"destroyed": n})
}

func (s *Server) handleCollections(w http.ResponseWriter, r *http.Request) {
	limit := 20
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n <= 0 {
			writeError(w, http.StatusBadRequest, "limit must be a positive integer")
			return
		}
		limit = n
	}
	rows, err := s.svc.RecentCollections(limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}

	out := make([]map[string]any, 0, len(rows))
	for _, c := range rows {
		out = append(out, map[string]any{
			"id":              c.ID,
			"seq":             c.Seq,
			"at":              c.At.UTC(),
			"duration_ns":     c.Duration.Nanoseconds(),
			"swept":           c.Swept,
			"young_to_middle": c.YoungToMiddle,
			"middle_to_old":   c.MiddleToOld,
			"sizes": map[string]int{
				"young":  c.Young,
				"middle": c.Middle,
				"old":    c.Old,
			},
		})
	}
	totals, err := s.svc.CollectionTotals()
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"collections": out,
		"totals": map[string]any{
			"passes":   totals.Passes,
			"swept":    totals.Swept,
			"promoted": totals.Promoted,
		},
	})
}

// ---- helpers ----

func handleParam(w http.ResponseWriter, r *http.Request) (registry.Handle, bool) {
	h, err := registry.ParseHandle(chi.URLParam(r, "handle"))
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return 0, false
	}
	return h, true
}

func objectJSON(info service.ObjectInfo) map[string]any {
	return map[string]any{
		"handle":     uint64(info.Handle),
		"value":      info.Value,
		"ref_count":  info.RefCount,
		"generation": info.Generation,
	}
}

func sizes(s [registry.NumGenerations]int) map[string]int {
	out := make(map[string]int, registry.NumGenerations)
	for g := registry.Young; g < registry.NumGenerations; g++ {
		out[g.String()] = s[g]
	}
	return out
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, registry.ErrStaleHandle):
		return http.StatusNotFound
	case errors.Is(err, registry.ErrAlreadyRegistered),
		errors.Is(err, object.ErrOverRelease),
		errors.Is(err, object.ErrDestroyed):
		return http.StatusConflict
	case errors.Is(err, registry.ErrInvalidGeneration):
		return http.StatusBadRequest
	case errors.Is(err, service.ErrLogFailed):
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}
