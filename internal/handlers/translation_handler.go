// -----------------------------------------------------------------------
// Translation Handler - Q&A completion and repair API
// -----------------------------------------------------------------------

package handlers

import (
	"net/http"
	"strings"

	"github.com/ternarybob/arbor"

	"github.com/delsolprimehomes/clustergen/internal/common"
	"github.com/delsolprimehomes/clustergen/internal/services/translation"
)

// TranslationHandler exposes the translation completion machine and its
// repair operations.
type TranslationHandler struct {
	machine  *translation.Machine
	repairer *translation.Repairer
	logger   arbor.ILogger
}

// NewTranslationHandler creates a new translation handler
func NewTranslationHandler(machine *translation.Machine, repairer *translation.Repairer, logger arbor.ILogger) *TranslationHandler {
	return &TranslationHandler{
		machine:  machine,
		repairer: repairer,
		logger:   logger,
	}
}

// Routes dispatches /api/clusters/{slug}/... translation routes:
//
//	GET  /api/clusters/{slug}/translation          - per-language status snapshot
//	POST /api/clusters/{slug}/translation/run      - run both phases
//	POST /api/clusters/{slug}/repair/{op}?dry_run=1 - article_links | qa_anchors | orphans
func (h *TranslationHandler) Routes(w http.ResponseWriter, r *http.Request) {
	path := strings.TrimPrefix(r.URL.Path, "/api/clusters/")
	parts := strings.Split(strings.Trim(path, "/"), "/")
	if len(parts) < 2 || parts[0] == "" {
		WriteError(w, http.StatusBadRequest, "Cluster slug is required")
		return
	}
	clusterSlug := common.Slugify(parts[0])

	switch {
	case parts[1] == "translation" && len(parts) == 2 && r.Method == http.MethodGet:
		h.status(w, r, clusterSlug)
	case parts[1] == "translation" && len(parts) == 3 && parts[2] == "run" && r.Method == http.MethodPost:
		h.run(w, r, clusterSlug)
	case parts[1] == "repair" && len(parts) == 3 && r.Method == http.MethodPost:
		h.repair(w, r, clusterSlug, parts[2])
	default:
		WriteError(w, http.StatusNotFound, "Unknown cluster route")
	}
}

func (h *TranslationHandler) status(w http.ResponseWriter, r *http.Request, clusterSlug string) {
	status, err := h.machine.Status(r.Context(), clusterSlug)
	if err != nil {
		h.logger.Error().Err(err).Str("cluster", clusterSlug).Msg("Failed to load translation status")
		WriteError(w, http.StatusInternalServerError, "Failed to load translation status")
		return
	}
	WriteJSON(w, http.StatusOK, status)
}

func (h *TranslationHandler) run(w http.ResponseWriter, r *http.Request, clusterSlug string) {
	results, err := h.machine.Run(r.Context(), clusterSlug)
	if err != nil {
		h.logger.Error().Err(err).Str("cluster", clusterSlug).Msg("Translation run failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, map[string]interface{}{
		"cluster":   clusterSlug,
		"languages": results,
	})
}

func (h *TranslationHandler) repair(w http.ResponseWriter, r *http.Request, clusterSlug, operation string) {
	dryRun := r.URL.Query().Get("dry_run") == "1" || r.URL.Query().Get("dry_run") == "true"

	var (
		report *translation.RepairReport
		err    error
	)
	switch operation {
	case "article_links":
		report, err = h.repairer.RepairArticleLinks(r.Context(), clusterSlug, dryRun)
	case "qa_anchors":
		report, err = h.repairer.ReanchorQA(r.Context(), clusterSlug, dryRun)
	case "orphans":
		report, err = h.repairer.UnifyOrphans(r.Context(), clusterSlug, dryRun)
	default:
		WriteError(w, http.StatusNotFound, "Unknown repair operation: "+operation)
		return
	}
	if err != nil {
		h.logger.Error().Err(err).Str("operation", operation).Msg("Repair operation failed")
		WriteError(w, http.StatusInternalServerError, err.Error())
		return
	}
	WriteJSON(w, http.StatusOK, report)
}
