package http

import (
	"errors"
	"fmt"
	"net/http"
	"sync/atomic"

	"tesoreria/internal/core"
	"tesoreria/internal/log"
	"tesoreria/internal/settlement"
)

type stageResponse struct {
	Movement core.Movement    `json:"movement"`
	Session  settlement.State `json:"session"`
}

type promptResponse struct {
	Prompt  settlement.Prompt `json:"prompt"`
	Session settlement.State  `json:"session"`
}

type confirmResponse struct {
	Outcome string           `json:"outcome"`
	Session settlement.State `json:"session"`
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	NewResponse().Data(s.svc.Session().State()).Write(w)
}

// handleSetSessionDate switches the closing to another date, dropping
// whatever was staged.
func (s *Server) handleSetSessionDate(w http.ResponseWriter, r *http.Request) {
	body, err := ParseBody(r)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	date, err := ParseOptionalDate(body.Get("date"))
	if err != nil {
		FromError(err).Write(w)
		return
	}
	if date == nil {
		FromError(fmt.Errorf("%w: %w: date is required", core.ErrValidationRejected, core.ErrInvalidDate)).Write(w)
		return
	}

	session := s.svc.Session()
	session.SetDate(*date)
	state := session.State()

	resp := NewResponse().Data(state)
	if state.EditMode {
		resp.Notice(NoticeInfo, fmt.Sprintf("Editing the saved closing of %s.", date.String()))
	}
	resp.Write(w)
}

// handleStage stages one income or expense from the request body. The input
// is kept as the session draft so a rejected entry can be corrected.
func (s *Server) handleStage(w http.ResponseWriter, r *http.Request) {
	kind, err := core.ParseKind(r.PathValue("kind"))
	if err != nil {
		NotFoundError(fmt.Sprintf("Unknown movement kind %q.", r.PathValue("kind"))).Write(w)
		return
	}
	body, err := ParseBody(r)
	if err != nil {
		FromError(err).Write(w)
		return
	}

	session := s.svc.Session()
	session.SetDraft(kind, body.Get("description"), body.Get("amount"))
	m, err := session.StageDraft(kind)
	if err != nil {
		resp := FromError(err)
		if errors.Is(err, core.ErrValidationRejected) {
			resp.Data(session.State())
		}
		resp.Write(w)
		return
	}

	log.FromContext(r.Context()).DebugContext(r.Context(), "Movement staged",
		log.FieldMovementID, m.ID,
		log.FieldKind, string(kind),
		log.FieldAmount, m.Amount.String(),
		log.FieldOperation, log.OpStage)

	NewResponse().
		Status(http.StatusCreated).
		Data(stageResponse{Movement: m, Session: session.State()}).
		Write(w)
}

func (s *Server) handleUnstage(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	session := s.svc.Session()
	if !session.Unstage(id) {
		NotFoundError(fmt.Sprintf("No staged movement %q.", id)).Write(w)
		return
	}
	NewResponse().Data(session.State()).Write(w)
}

// handleConfirmSession saves the closing when the body says
// {"confirmed": true}. Otherwise it answers with the confirmation prompt and
// changes nothing.
func (s *Server) handleConfirmSession(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	body, err := ParseBody(r)
	if err != nil {
		FromError(err).Write(w)
		return
	}
	session := s.svc.Session()

	if !body.GetBool("confirmed") {
		prompt, needed := session.Prompt()
		if !needed {
			notice := settlement.OutcomeNothingToSettle.Notice()
			NewResponse().
				Data(confirmResponse{Outcome: settlement.OutcomeNothingToSettle.String(), Session: session.State()}).
				Notice(NoticeType(notice.Type), notice.Message).
				Write(w)
			return
		}
		NewResponse().
			Data(promptResponse{Prompt: prompt, Session: session.State()}).
			Notice(NoticeInfo, prompt.Message).
			Write(w)
		return
	}

	outcome, err := s.svc.Settle(ctx, settlement.Answer(true))
	if err != nil {
		s.access.LogError(ctx, "Failed to save cash closing", err, log.ComponentSettlement, log.OpSettle, nil)
		FromError(err).Write(w)
		return
	}
	if outcome.Saved() {
		atomic.AddInt64(&s.metrics.closingsSaved, 1)
	}

	notice := outcome.Notice()
	NewResponse().
		Data(confirmResponse{Outcome: outcome.String(), Session: session.State()}).
		Notice(NoticeType(notice.Type), notice.Message).
		Write(w)
}
