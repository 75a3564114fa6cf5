package http

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/url"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/stratdeck/stratdeck/internal/diag"
	"github.com/stratdeck/stratdeck/internal/errs"
	"github.com/stratdeck/stratdeck/internal/service"
	"github.com/stratdeck/stratdeck/internal/store"
	"github.com/stratdeck/stratdeck/internal/strategy"
)

// errorBody is the wire shape of every error response.
type errorBody struct {
	Code    string    `json:"code"`
	Message string    `json:"message"`
	Hint    string    `json:"hint,omitempty"`
	Issues  diag.List `json:"issues,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError maps the error taxonomy onto HTTP statuses.
func writeError(w http.ResponseWriter, err error) {
	var coded *errs.Error
	if !errors.As(err, &coded) {
		writeJSON(w, http.StatusInternalServerError, errorBody{
			Code:    string(errs.CodeInternal),
			Message: "internal error",
		})
		return
	}

	status := http.StatusInternalServerError
	switch coded.Code {
	case errs.CodeNotFound, errs.CodeArchetypeNotFound, errs.CodeCardNotFound,
		errs.CodeStrategyNotFound, errs.CodeAttachmentNotFound:
		status = http.StatusNotFound
	case errs.CodeValidation, errs.CodeInvalidRole, errs.CodeInvalidStatus:
		status = http.StatusBadRequest
	case errs.CodeSchemaValidation:
		status = http.StatusUnprocessableEntity
	case errs.CodeDuplicateAttachment:
		status = http.StatusConflict
	case errs.CodeDatabase:
		status = http.StatusServiceUnavailable
	}

	body := errorBody{
		Code:    string(coded.Code),
		Message: coded.Message,
		Hint:    coded.RecoveryHint,
		Issues:  coded.Issues,
	}
	writeJSON(w, status, body)
}

func decodeBody(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		writeJSON(w, http.StatusBadRequest, errorBody{
			Code:    string(errs.CodeValidation),
			Message: "invalid request body: " + err.Error(),
			Hint:    "send well-formed JSON matching the documented shape",
		})
		return false
	}
	return true
}

// queryInt reads a non-negative integer query parameter; anything else reads
// as zero, which the stores treat as "no limit/offset".
func queryInt(q url.Values, key string) int {
	n, err := strconv.Atoi(q.Get(key))
	if err != nil || n < 0 {
		return 0
	}
	return n
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// --- catalog ---

func (s *Server) handleListArchetypes(w http.ResponseWriter, r *http.Request) {
	summaries, err := s.svc.ListArchetypes(r.URL.Query().Get("kind"))
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"archetypes": summaries})
}

func (s *Server) handleGetSchema(w http.ResponseWriter, r *http.Request) {
	typeID := mux.Vars(r)["type_id"]
	a, err := s.svc.GetArchetype(typeID)
	if err != nil {
		writeError(w, err)
		return
	}
	etag := a.ETag()
	if r.Header.Get("If-None-Match") == etag {
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) handleGetExample(w http.ResponseWriter, r *http.Request) {
	example, err := s.svc.GetSchemaExample(mux.Vars(r)["type_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"slots": example})
}

func (s *Server) handleValidateDraft(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Slots map[string]interface{} `json:"slots"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	issues, err := s.svc.ValidateSlotsDraft(mux.Vars(r)["type_id"], body.Slots)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"valid":  !issues.HasErrors(),
		"issues": issues,
	})
}

// --- cards ---

func (s *Server) handleCreateCard(w http.ResponseWriter, r *http.Request) {
	var body struct {
		TypeID string                 `json:"type_id"`
		Slots  map[string]interface{} `json:"slots"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	c, err := s.svc.CreateCard(r.Context(), body.TypeID, body.Slots)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, c)
}

func (s *Server) handleGetCard(w http.ResponseWriter, r *http.Request) {
	c, err := s.svc.GetCard(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleListCards(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	cards, err := s.svc.ListCards(r.Context(), store.CardFilter{
		TypeID: q.Get("type_id"),
		Kind:   q.Get("kind"),
		Limit:  queryInt(q, "limit"),
		Offset: queryInt(q, "offset"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"cards": cards})
}

func (s *Server) handleUpdateCard(w http.ResponseWriter, r *http.Request) {
	var body struct {
		Slots map[string]interface{} `json:"slots"`
	}
	if !decodeBody(w, r, &body) {
		return
	}
	c, err := s.svc.UpdateCard(r.Context(), mux.Vars(r)["id"], body.Slots)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, c)
}

func (s *Server) handleDeleteCard(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteCard(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// --- strategies ---

func (s *Server) handleCreateStrategy(w http.ResponseWriter, r *http.Request) {
	var in service.CreateStrategyInput
	if !decodeBody(w, r, &in) {
		return
	}
	st, err := s.svc.CreateStrategy(r.Context(), in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

func (s *Server) handleGetStrategy(w http.ResponseWriter, r *http.Request) {
	st, err := s.svc.GetStrategy(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleListStrategies(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	sts, err := s.svc.ListStrategies(r.Context(), store.StrategyFilter{
		OwnerID: q.Get("owner_id"),
		Status:  q.Get("status"),
		Limit:   queryInt(q, "limit"),
		Offset:  queryInt(q, "offset"),
	})
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"strategies": sts})
}

func (s *Server) handleUpdateStrategyMeta(w http.ResponseWriter, r *http.Request) {
	var patch service.StrategyMetaPatch
	if !decodeBody(w, r, &patch) {
		return
	}
	st, err := s.svc.UpdateStrategyMeta(r.Context(), mux.Vars(r)["id"], patch)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDeleteStrategy(w http.ResponseWriter, r *http.Request) {
	if err := s.svc.DeleteStrategy(r.Context(), mux.Vars(r)["id"]); err != nil {
		writeError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAttachCard(w http.ResponseWriter, r *http.Request) {
	var in service.AttachInput
	if !decodeBody(w, r, &in) {
		return
	}
	st, err := s.svc.AttachCard(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleDetachCard(w http.ResponseWriter, r *http.Request) {
	vars := mux.Vars(r)
	st, err := s.svc.DetachCard(r.Context(), vars["id"], vars["card_id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, st)
}

func (s *Server) handleAddCard(w http.ResponseWriter, r *http.Request) {
	var in service.AddCardInput
	if !decodeBody(w, r, &in) {
		return
	}
	c, st, err := s.svc.AddCard(r.Context(), mux.Vars(r)["id"], in)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"card": c, "strategy": st})
}

// --- compile ---

func (s *Server) handleCompile(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.CompileStrategy(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) handleValidateStrategy(w http.ResponseWriter, r *http.Request) {
	res, err := s.svc.ValidateStrategy(r.Context(), mux.Vars(r)["id"])
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Valid bool `json:"valid"`
		*strategy.Result
	}{res.StatusHint == strategy.StatusHintReady, res})
}
