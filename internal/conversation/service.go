package conversation

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/stackvoice/provision-ai-platform/internal/deployment"
	"github.com/stackvoice/provision-ai-platform/internal/identity"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// DeploymentSubmitter creates the approval-gated deployment request once the
// user confirms.
type DeploymentSubmitter interface {
	Submit(ctx context.Context, in deployment.SubmitInput) (*deployment.Request, error)
}

// StartRequest opens a conversation.
type StartRequest struct {
	Message string `json:"message"`
}

// MessageRequest continues an existing conversation.
type MessageRequest struct {
	ConversationID string `json:"conversation_id"`
	Message        string `json:"message"`
}

// Response is one assistant turn.
type Response struct {
	ConversationID       string          `json:"conversation_id"`
	Phase                Phase           `json:"phase"`
	ResourceType         ResourceType    `json:"resource_type"`
	Reply                string          `json:"reply"`
	MissingParams        []string        `json:"missing_params,omitempty"`
	Recommendation       *Recommendation `json:"recommendation,omitempty"`
	ReadyForConfirmation bool            `json:"ready_for_confirmation"`
	Submitted            bool            `json:"submitted"`
	RequestID            string          `json:"request_id,omitempty"`
	EstimatedCost        string          `json:"estimated_cost,omitempty"`
}

// ErrTranscriptsDisabled indicates transcripts were not configured.
var ErrTranscriptsDisabled = errors.New("conversation: transcripts are not configured")

// Service is the conversation API surface.
type Service interface {
	StartConversation(ctx context.Context, req StartRequest) (*Response, error)
	ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error)
	Transcript(ctx context.Context, conversationID string, limit int64) ([]TranscriptEntry, error)
}

type service struct {
	engine      *Engine
	states      *StateStore
	transcripts *TranscriptStore
	deployments DeploymentSubmitter
	logger      *logging.Logger
}

// NewService creates the conversation service. transcripts may be nil when
// Redis is not configured.
func NewService(engine *Engine, states *StateStore, transcripts *TranscriptStore, deployments DeploymentSubmitter, logger *logging.Logger) Service {
	if engine == nil {
		panic("conversation: engine cannot be nil")
	}
	if states == nil {
		panic("conversation: state store cannot be nil")
	}
	if deployments == nil {
		panic("conversation: deployment submitter cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &service{
		engine:      engine,
		states:      states,
		transcripts: transcripts,
		deployments: deployments,
		logger:      logger,
	}
}

func (s *service) StartConversation(ctx context.Context, req StartRequest) (*Response, error) {
	state, result := s.engine.Start(req.Message)
	s.states.Put(state)

	s.recordTurn(ctx, state.ConversationID, req.Message, result)
	s.logger.Info("conversation started",
		"conversation_id", state.ConversationID,
		"phase", state.Phase,
	)
	return buildResponse(state, result, "", false), nil
}

func (s *service) ProcessMessage(ctx context.Context, req MessageRequest) (*Response, error) {
	if req.ConversationID == "" {
		return nil, fmt.Errorf("conversation: conversation_id is required")
	}

	var resp *Response
	err := s.states.With(req.ConversationID, func(state *State) error {
		result := s.engine.Advance(state, req.Message)

		if result.Confirmed {
			created, err := s.submit(ctx, state)
			if err != nil {
				// Phase stays at awaiting_confirmation; the user can retry
				// with another YES once the dependency recovers.
				return err
			}
			state.setPhase(PhaseExecuting)
			state.setPhase(PhaseCompleted)
			reply := fmt.Sprintf("Submitted request %s for approval. You will be notified once it is reviewed.", created.RequestID)
			resp = buildResponse(state, result, reply, true)
			resp.RequestID = created.RequestID
			s.recordTurn(ctx, state.ConversationID, req.Message, TurnResult{Question: reply})
			return nil
		}

		resp = buildResponse(state, result, "", false)
		s.recordTurn(ctx, state.ConversationID, req.Message, result)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return resp, nil
}

// Transcript returns the recorded dialogue for a conversation. Transcripts
// outlive the in-memory conversation state, so a completed conversation
// still answers here.
func (s *service) Transcript(ctx context.Context, conversationID string, limit int64) ([]TranscriptEntry, error) {
	if s.transcripts == nil {
		return nil, ErrTranscriptsDisabled
	}
	if conversationID == "" {
		return nil, fmt.Errorf("conversation: conversation_id is required")
	}
	return s.transcripts.List(ctx, conversationID, limit)
}

func (s *service) submit(ctx context.Context, state *State) (*deployment.Request, error) {
	principal, ok := identity.PrincipalFromContext(ctx)
	if !ok {
		return nil, fmt.Errorf("conversation: no requester identity on confirmation")
	}

	config := make(map[string]string, len(state.CollectedParams))
	for k, v := range state.CollectedParams {
		config[k] = v
	}

	created, err := s.deployments.Submit(ctx, deployment.SubmitInput{
		ResourceType:   string(state.ResourceType),
		ResourceName:   state.CollectedParams["name"],
		Configuration:  config,
		RequesterID:    principal.ID,
		RequesterEmail: principal.Email,
		RequesterName:  principal.Name,
		EstimatedCost:  costValue(state),
	})
	if err != nil {
		s.logger.Error("submission failed, conversation stays confirmable",
			"conversation_id", state.ConversationID,
			"error", err,
		)
		return nil, fmt.Errorf("conversation: submit deployment: %w", err)
	}
	return created, nil
}

func (s *service) recordTurn(ctx context.Context, conversationID, userMessage string, result TurnResult) {
	if s.transcripts == nil {
		return
	}
	if userMessage != "" {
		if err := s.transcripts.Append(ctx, conversationID, TranscriptEntry{Role: "user", Body: userMessage}); err != nil {
			s.logger.Error("transcript append failed", "conversation_id", conversationID, "error", err)
			return
		}
	}
	reply := result.Question
	if reply == "" {
		reply = result.Summary
	}
	if reply == "" {
		return
	}
	if err := s.transcripts.Append(ctx, conversationID, TranscriptEntry{Role: "assistant", Body: reply}); err != nil {
		s.logger.Error("transcript append failed", "conversation_id", conversationID, "error", err)
	}
}

func buildResponse(state *State, result TurnResult, reply string, submitted bool) *Response {
	if reply == "" {
		reply = result.Question
	}
	if reply == "" {
		reply = result.Summary
	}
	resp := &Response{
		ConversationID:       state.ConversationID,
		Phase:                state.Phase,
		ResourceType:         state.ResourceType,
		Reply:                reply,
		MissingParams:        state.MissingParams(),
		Recommendation:       result.Recommendation,
		ReadyForConfirmation: result.ReadyForConfirmation,
		Submitted:            submitted,
	}
	if state.ResourceType == ResourceVirtualMachine {
		if size, ok := state.CollectedParams["size"]; ok {
			resp.EstimatedCost = EstimateMonthlyCost(size)
		}
	}
	return resp
}

// costValue converts the estimate into the request's numeric cost field.
// Sizes outside the pricing table carry zero and keep the "varies" label in
// the conversation reply only.
func costValue(state *State) float64 {
	if state.ResourceType != ResourceVirtualMachine {
		return 0
	}
	estimate := EstimateMonthlyCost(state.CollectedParams["size"])
	if estimate == CostVaries {
		return 0
	}
	value, err := strconv.ParseFloat(estimate, 64)
	if err != nil {
		return 0
	}
	return value
}
