package httpadapter

import (
	"net/http"

	"github.com/kirillkom/extraction-workbench/internal/core/domain"
	"github.com/kirillkom/extraction-workbench/internal/core/ports"
)

func (rt *Router) registerRuleRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /v1/rules", rt.listRules)
	mux.HandleFunc("POST /v1/rules", rt.createRule)
	mux.HandleFunc("POST /v1/rules/generate", rt.generateRule)
	mux.HandleFunc("GET /v1/rules/{rule_id}", rt.getRule)
	mux.HandleFunc("PUT /v1/rules/{rule_id}", rt.updateRule)
	mux.HandleFunc("DELETE /v1/rules/{rule_id}", rt.deleteRule)
	mux.HandleFunc("GET /v1/rules/{rule_id}/versions/{version}", rt.getRuleVersion)
	mux.HandleFunc("POST /v1/rules/{rule_id}/skills", rt.addSkill)
	mux.HandleFunc("PUT /v1/rules/{rule_id}/skills/{skill_id}", rt.updateSkill)
	mux.HandleFunc("DELETE /v1/rules/{rule_id}/skills/{skill_id}", rt.removeSkill)
	mux.HandleFunc("POST /v1/rules/{rule_id}/skills/{skill_id}/optimize", rt.optimizeSkill)
}

type ruleRequest struct {
	DocType           string                   `json:"doc_type"`
	Name              string                   `json:"name"`
	SystemInstruction string                   `json:"system_instruction"`
	Schema            string                   `json:"schema"`
	Skills            []domain.ExtractionSkill `json:"skills"`
}

func (req ruleRequest) input() ports.RuleInput {
	return ports.RuleInput{
		DocType:           docTypeParam(req.DocType),
		Name:              req.Name,
		SystemInstruction: req.SystemInstruction,
		Schema:            req.Schema,
		Skills:            req.Skills,
	}
}

func (rt *Router) listRules(w http.ResponseWriter, r *http.Request) {
	rules, err := rt.services.Rules.List(r.Context())
	if err != nil {
		writeError(w, r, err)
		return
	}
	if rules == nil {
		rules = []domain.ExtractionRule{}
	}
	writeJSON(w, http.StatusOK, map[string]any{"rules": rules})
}

func (rt *Router) createRule(w http.ResponseWriter, r *http.Request) {
	var req ruleRequest
	if err := decodeJSON(w, r, &req, true); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := rt.services.Rules.Create(r.Context(), req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (rt *Router) generateRule(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Description string `json:"description"`
		DocType     string `json:"doc_type"`
		Name        string `json:"name"`
	}
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := rt.services.Rules.Generate(r.Context(), req.Description, docTypeParam(req.DocType), req.Name)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (rt *Router) getRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "rule_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := rt.services.Rules.Get(r.Context(), id)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (rt *Router) updateRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "rule_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var req ruleRequest
	if err := decodeJSON(w, r, &req, false); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := rt.services.Rules.Update(r.Context(), id, req.input())
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (rt *Router) deleteRule(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "rule_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := rt.services.Rules.Delete(r.Context(), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (rt *Router) getRuleVersion(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "rule_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	version, err := pathParam[int](r, "version")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := rt.services.Rules.GetVersion(r.Context(), id, version)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (rt *Router) addSkill(w http.ResponseWriter, r *http.Request) {
	id, err := pathParam[string](r, "rule_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var skill domain.ExtractionSkill
	if err := decodeJSON(w, r, &skill, true); err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := rt.services.Rules.AddSkill(r.Context(), id, skill)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusCreated, rule)
}

func (rt *Router) updateSkill(w http.ResponseWriter, r *http.Request) {
	ruleID, err := pathParam[string](r, "rule_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	skillID, err := pathParam[string](r, "skill_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	var skill domain.ExtractionSkill
	if err := decodeJSON(w, r, &skill, false); err != nil {
		writeError(w, r, err)
		return
	}
	skill.ID = skillID
	rule, err := rt.services.Rules.UpdateSkill(r.Context(), ruleID, skill)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (rt *Router) removeSkill(w http.ResponseWriter, r *http.Request) {
	ruleID, err := pathParam[string](r, "rule_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	skillID, err := pathParam[string](r, "skill_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule, err := rt.services.Rules.RemoveSkill(r.Context(), ruleID, skillID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, rule)
}

func (rt *Router) optimizeSkill(w http.ResponseWriter, r *http.Request) {
	ruleID, err := pathParam[string](r, "rule_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	skillID, err := pathParam[string](r, "skill_id")
	if err != nil {
		writeError(w, r, err)
		return
	}
	rule, optimized, err := rt.services.Rules.OptimizeSkill(r.Context(), ruleID, skillID)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"rule": rule, "optimized": optimized})
}
