package httpadapter

import (
	"bytes"
	"fmt"
	"mime"
	"net/http"
	"strings"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
	"github.com/kirillkom/extraction-workbench/internal/core/usecase"
)

const maxUploadBytes = 64 << 20

func (rt *Router) registerDocumentRoutes(mux *http.ServeMux) {
	mux.HandleFunc("POST /v1/documents", rt.uploadDocument)
	mux.HandleFunc("POST /v1/documents/text", rt.registerText)
	mux.HandleFunc("GET /v1/documents", rt.listDocuments)
	mux.HandleFunc("GET /v1/documents/{document_id}", rt.getDocument)
	mux.HandleFunc("PUT /v1/documents/{document_id}/type", rt.assignType)
	mux.HandleFunc("PUT /v1/documents/{document_id}/rule", rt.selectRule)
	mux.HandleFunc("POST /v1/documents/{document_id}/extract", rt.runExtraction)
	mux.HandleFunc("PATCH /v1/documents/{document_id}/fields/{key}", rt.editField)
	mux.HandleFunc("POST /v1/documents/{document_id}/fields/import", rt.importFields)
	mux.HandleFunc("POST /v1/documents/{document_id}/region-analysis", rt.analyzeRegion)
	mux.HandleFunc("GET /v1/documents/{document_id}/bad-cases", rt.listBadCases)
	mux.HandleFunc("POST /v1/documents/{document_id}/bad-cases", rt.markBadCase)
	mux.HandleFunc("DELETE /v1/documents/{document_id}/bad-cases", rt.clearBadCases)
	mux.HandleFunc("POST /v1/documents/{document_id}/refine", rt.refine)
	mux.HandleFunc("POST /v1/documents/{document_id}/complete", rt.completeReview)
	mux.HandleFunc("POST /v1/documents/{document_id}/evolve-rule", rt.evolveRule)
	mux.HandleFunc("GET /v1/documents/{document_id}/export", rt.exportDocument)
}

func (rt *Router) uploadDocument(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	file, fileHeader, err := r.FormFile("file")
	if err != nil {
		writeJSON(w, http.StatusBadRequest, errorResponse{Error: "multipart field 'file' is required"})
		return
	}
	defer file.Close()

	doc, err := rt.services.Ingest.Upload(
		r.Context(),
		r.FormValue("project_id"),
		fileHeader.Filename,
		fileHeader.Header.Get("Content-Type"),
		file,
	)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) registerText(w http.ResponseWriter, r *http.Request) {
	var req struct {
		ProjectID string   `json:"project_id"`
		Name      string   `json:"name"`
		Pages     []string `json:"pages"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.services.Ingest.RegisterText(r.Context(), req.ProjectID, req.Name, req.Pages)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusAccepted, doc)
}

func (rt *Router) listDocuments(w http.ResponseWriter, r *http.Request) {
	projectID, err := queryParam(r, "project_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if strings.TrimSpace(projectID) == "" {
		projectID = usecase.DefaultProjectID
	}
	docs, err := rt.services.Documents.ListByProject(r.Context(), projectID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if docs == nil {
		docs = []*domain.Document{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"documents": docs})
}

func (rt *Router) getDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.services.Documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) assignType(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Type string `json:"type"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.services.Extraction.AssignType(r.Context(), id, docTypeParam(req.Type))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) selectRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		RuleID string `json:"rule_id"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.services.Extraction.SelectRule(r.Context(), id, req.RuleID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) runExtraction(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		RuleID  string `json:"rule_id"`
		ModelID string `json:"model_id"`
	}
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.services.Extraction.RunExtraction(r.Context(), id, ports.RunOptions{
		RuleID:  req.RuleID,
		ModelID: req.ModelID,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) editField(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	// Field keys are free text, so they skip styled binding and its second unescape.
	key := r.PathValue("key")
	var req struct {
		Value any `json:"value"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.services.Extraction.EditField(r.Context(), id, key, req.Value)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) importFields(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Labels []string `json:"labels"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	doc, imported, err := rt.services.Extraction.ImportFields(r.Context(), id, req.Labels)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": doc, "imported": imported})
}

func (rt *Router) analyzeRegion(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Text string `json:"text"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	outcome, err := rt.services.Extraction.AnalyzeRegion(r.Context(), id, req.Text)
	if err != nil {
		writeError(w, r, err)
		return
	}
	filled := outcome.Filled
	if filled == nil {
		filled = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"document":     outcome.Document,
		"filled":       filled,
		"filled_count": len(filled),
	})
}

func (rt *Router) listBadCases(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	cases, err := rt.services.Feedback.List(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cases == nil {
		cases = []domain.BadCase{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"bad_cases": cases})
}

func (rt *Router) markBadCase(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req struct {
		Text string `json:"text"`
		Type string `json:"type"`
		Note string `json:"note"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	badCase, err := rt.services.Feedback.Mark(r.Context(), id, req.Text, domain.BadCaseType(strings.ToLower(req.Type)), req.Note)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, badCase)
}

func (rt *Router) clearBadCases(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.services.Feedback.Clear(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) refine(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	outcome, err := rt.services.Extraction.Refine(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	changed := outcome.Changed
	if changed == nil {
		changed = []string{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"document": outcome.Document, "changed": changed})
}

func (rt *Router) completeReview(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.services.Extraction.CompleteReview(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, doc)
}

func (rt *Router) evolveRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := rt.services.Evolver.EvolveFromDocument(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (rt *Router) exportDocument(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "document_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	doc, err := rt.services.Documents.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}

	var buf bytes.Buffer
	if err := rt.services.Extraction.Export(r.Context(), id, &buf); err != nil {
		writeError(w, r, err)
		return
	}
	contentType, extension := rt.services.Extraction.ExportFormat()
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
		"filename": exportFilename(doc.Name, extension),
	}))
	w.Header().Set("Content-Length", fmt.Sprint(buf.Len()))
	w.WriteHeader(http.StatusOK)
	_, _ = buf.WriteTo(w)
}

func exportFilename(name, extension string) string {
	base := strings.TrimSpace(name)
	if dot := strings.LastIndexByte(base, '.'); dot > 0 {
		base = base[:dot]
	}
	if base == "" {
		base = "export"
	}
	return base + "_extracted" + extension
}
