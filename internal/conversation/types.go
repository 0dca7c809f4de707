package conversation

import (
	"time"

	"github.com/stackvoice/provision-ai-platform/internal/lifecycle"
)

// Phase is the current step of a requirement-gathering dialogue.
type Phase string

const (
	PhaseInitial              Phase = "initial"
	PhaseGathering            Phase = "gathering_requirements"
	PhaseRecommending         Phase = "providing_recommendations"
	PhaseAwaitingConfirmation Phase = "awaiting_confirmation"
	PhaseExecuting            Phase = "executing"
	PhaseCompleted            Phase = "completed"
)

// phaseTransitions is the legal forward progression. The only backward edges
// are a declined recommendation and a declined confirmation, both of which
// resume parameter collection.
var phaseTransitions = lifecycle.Table[Phase]{
	PhaseInitial:              {PhaseGathering},
	PhaseGathering:            {PhaseRecommending, PhaseAwaitingConfirmation},
	PhaseRecommending:         {PhaseGathering},
	PhaseAwaitingConfirmation: {PhaseExecuting, PhaseGathering},
	PhaseExecuting:            {PhaseCompleted},
}

// ResourceType is the closed set of provisionable resource kinds.
type ResourceType string

const (
	ResourceVirtualMachine ResourceType = "virtual_machine"
	ResourceSQLDatabase    ResourceType = "sql_database"
	ResourceStorageAccount ResourceType = "storage_account"
	ResourceAppService     ResourceType = "app_service"
	ResourceFunctionApp    ResourceType = "function_app"
	ResourceUnknown        ResourceType = "unknown"
)

// Intent classifies what the user wants to do. The zero value means the
// intent has not been detected yet; once set it is never reassigned.
type Intent string

const (
	IntentCreate Intent = "CREATE"
	IntentModify Intent = "MODIFY"
	IntentDelete Intent = "DELETE"
	IntentQuery  Intent = "QUERY"
)

// requiredParams declares, in collection order, the parameters each resource
// type needs before a request can be submitted.
var requiredParams = map[ResourceType][]string{
	ResourceVirtualMachine: {"name", "size", "os_type", "location", "resource_group"},
	ResourceSQLDatabase:    {"name", "tier", "location", "resource_group"},
	ResourceStorageAccount: {"name", "sku", "location", "resource_group"},
	ResourceAppService:     {"name", "plan", "runtime", "location", "resource_group"},
	ResourceFunctionApp:    {"name", "runtime", "location", "resource_group"},
}

// RequiredParams returns the declared parameter order for a resource type.
func RequiredParams(rt ResourceType) []string {
	return requiredParams[rt]
}

// Recommendation proposes an alternative resource type for the workload the
// user described.
type Recommendation struct {
	Message     string       `json:"message"`
	Alternative ResourceType `json:"alternative"`
	CreatedAt   time.Time    `json:"created_at"`
}

// Proposal is a pending recommendation awaiting the user's accept/decline.
type Proposal struct {
	Alternative ResourceType `json:"alternative"`
	Reason      string       `json:"reason"`
}

// ContextSwitch records an accepted recommendation changing the resource type.
type ContextSwitch struct {
	From   ResourceType `json:"from"`
	To     ResourceType `json:"to"`
	Reason string       `json:"reason"`
	At     time.Time    `json:"at"`
}

// State is the full dialogue state for one conversation.
type State struct {
	ConversationID  string            `json:"conversation_id"`
	Phase           Phase             `json:"phase"`
	ResourceType    ResourceType      `json:"resource_type"`
	Intent          Intent            `json:"intent,omitempty"`
	CollectedParams map[string]string `json:"collected_params"`
	Recommendations []Recommendation  `json:"recommendations,omitempty"`
	AdvisoryNotes   []string          `json:"advisory_notes,omitempty"`
	ContextSwitches []ContextSwitch   `json:"context_switches,omitempty"`
	Proposal        *Proposal         `json:"proposal,omitempty"`
	CreatedAt       time.Time         `json:"created_at"`
	UpdatedAt       time.Time         `json:"updated_at"`
}

// MissingParams derives the still-required parameters: the resource type's
// required set minus the collected keys, in declared order. Never stored.
func (s *State) MissingParams() []string {
	if s == nil {
		return nil
	}
	required := requiredParams[s.ResourceType]
	missing := make([]string, 0, len(required))
	for _, param := range required {
		if _, ok := s.CollectedParams[param]; !ok {
			missing = append(missing, param)
		}
	}
	return missing
}

// setPhase applies a phase change only when the transition table allows it.
func (s *State) setPhase(next Phase) bool {
	if s.Phase == next {
		return true
	}
	if !phaseTransitions.Allowed(s.Phase, next) {
		return false
	}
	s.Phase = next
	return true
}

// TurnResult is the engine's answer to one user message.
type TurnResult struct {
	Question             string          `json:"question,omitempty"`
	Recommendation       *Recommendation `json:"recommendation,omitempty"`
	ReadyForConfirmation bool            `json:"ready_for_confirmation"`
	ContextSwitch        bool            `json:"context_switch"`
	Confirmed            bool            `json:"confirmed"`
	Summary              string          `json:"summary,omitempty"`
}
