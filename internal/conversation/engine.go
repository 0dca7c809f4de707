package conversation

import (
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Engine drives the requirement-gathering state machine. It never returns an
// error for user input: unrecognized messages re-ask the outstanding question
// with no side effect, so every call is safe to retry.
type Engine struct {
	logger *logging.Logger
}

// NewEngine creates a conversation engine.
func NewEngine(logger *logging.Logger) *Engine {
	if logger == nil {
		logger = logging.Default()
	}
	return &Engine{logger: logger}
}

// Start opens a conversation from the first user message. The state is
// created even when the intent is not yet recognizable; the engine then asks
// what the user wants to do.
func (e *Engine) Start(message string) (*State, TurnResult) {
	now := time.Now().UTC()
	state := &State{
		ConversationID:  uuid.NewString(),
		Phase:           PhaseInitial,
		ResourceType:    ResourceUnknown,
		CollectedParams: make(map[string]string),
		CreatedAt:       now,
		UpdatedAt:       now,
	}
	return state, e.Advance(state, message)
}

// Advance processes one user message against the conversation state and
// returns what to say next.
func (e *Engine) Advance(state *State, message string) TurnResult {
	if state == nil {
		return TurnResult{}
	}
	if state.CollectedParams == nil {
		state.CollectedParams = make(map[string]string)
	}
	state.UpdatedAt = time.Now().UTC()
	normalized := normalize(message)

	if state.Phase == PhaseCompleted || state.Phase == PhaseExecuting {
		return TurnResult{}
	}

	// Intent is set once and never reassigned.
	if state.Intent == "" {
		intent := DetectIntent(normalized)
		if intent == "" {
			return TurnResult{Question: promptIntent}
		}
		state.Intent = intent
	}

	if state.Phase == PhaseRecommending {
		return e.resolveProposal(state, normalized)
	}

	if state.Phase == PhaseAwaitingConfirmation {
		return e.resolveConfirmation(state, normalized)
	}

	// Resource type: first matching keyword wins, then stays fixed unless a
	// recommendation is accepted.
	if state.ResourceType == ResourceUnknown {
		rt := DetectResourceType(normalized)
		if rt == ResourceUnknown {
			state.setPhase(PhaseGathering)
			return TurnResult{Question: promptResourceType}
		}
		state.ResourceType = rt
		state.setPhase(PhaseGathering)
	}

	// Advisory recommendation: a VM conversation describing a database
	// workload gets a two-phase proposal. Resource type is not touched until
	// the user accepts.
	if state.ResourceType == ResourceVirtualMachine && len(state.Recommendations) == 0 && mentionsDatabaseWorkload(normalized) {
		rec := Recommendation{
			Message:     recommendationSQLOverVM,
			Alternative: ResourceSQLDatabase,
			CreatedAt:   time.Now().UTC(),
		}
		state.Recommendations = append(state.Recommendations, rec)
		state.AdvisoryNotes = append(state.AdvisoryNotes, "suggested sql_database for database workload")
		state.Proposal = &Proposal{Alternative: ResourceSQLDatabase, Reason: "database workload described for a virtual machine"}
		state.setPhase(PhaseRecommending)
		return TurnResult{Recommendation: &rec, Question: rec.Message}
	}

	e.collectParams(state, message)

	missing := state.MissingParams()
	if len(missing) > 0 {
		return TurnResult{Question: questionFor(state.ResourceType, missing[0])}
	}

	// All required parameters present.
	if !state.setPhase(PhaseAwaitingConfirmation) {
		return TurnResult{Question: questionFor(state.ResourceType, "")}
	}
	summary := Summarize(state)
	return TurnResult{
		ReadyForConfirmation: true,
		Summary:              summary,
		Question:             summary,
	}
}

// resolveProposal applies or discards the pending recommendation based on
// the user's reply.
func (e *Engine) resolveProposal(state *State, normalized string) TurnResult {
	proposal := state.Proposal
	if proposal == nil {
		state.setPhase(PhaseGathering)
		return e.reaskOrSummarize(state)
	}

	switch {
	case isAffirmative(normalized):
		from := state.ResourceType
		state.ResourceType = proposal.Alternative
		state.ContextSwitches = append(state.ContextSwitches, ContextSwitch{
			From:   from,
			To:     proposal.Alternative,
			Reason: proposal.Reason,
			At:     time.Now().UTC(),
		})
		state.Proposal = nil
		state.setPhase(PhaseGathering)
		result := e.reaskOrSummarize(state)
		result.ContextSwitch = true
		return result
	case isNegative(normalized):
		state.Proposal = nil
		state.setPhase(PhaseGathering)
		return e.reaskOrSummarize(state)
	default:
		// Neither accept nor decline: deterministically re-ask.
		return TurnResult{Question: recommendationSQLOverVM}
	}
}

// resolveConfirmation handles the yes/no on the submission summary.
func (e *Engine) resolveConfirmation(state *State, normalized string) TurnResult {
	switch {
	case isAffirmative(normalized):
		// The caller performs the submission; the phase moves to executing
		// only after the request is durably created.
		return TurnResult{Confirmed: true, Summary: Summarize(state)}
	case isNegative(normalized):
		// Collected parameters are retained so the user can amend.
		state.setPhase(PhaseGathering)
		return TurnResult{Question: promptAmend}
	default:
		summary := Summarize(state)
		return TurnResult{ReadyForConfirmation: true, Summary: summary, Question: summary}
	}
}

func (e *Engine) reaskOrSummarize(state *State) TurnResult {
	missing := state.MissingParams()
	if len(missing) > 0 {
		return TurnResult{Question: questionFor(state.ResourceType, missing[0])}
	}
	if state.setPhase(PhaseAwaitingConfirmation) {
		summary := Summarize(state)
		return TurnResult{ReadyForConfirmation: true, Summary: summary, Question: summary}
	}
	return TurnResult{}
}

// collectParams attributes the message to outstanding parameters. Explicit
// key=value pairs win; a bare single-token message answers the next missing
// parameter. Collected values are append-only: a parameter is never
// overwritten before submission.
func (e *Engine) collectParams(state *State, message string) {
	required := requiredParams[state.ResourceType]
	allowed := make(map[string]struct{}, len(required))
	for _, p := range required {
		allowed[p] = struct{}{}
	}

	pairs := parseParamPairs(message)
	if len(pairs) > 0 {
		for key, value := range pairs {
			if _, ok := allowed[key]; !ok {
				continue
			}
			if _, exists := state.CollectedParams[key]; exists {
				continue
			}
			state.CollectedParams[key] = value
		}
		return
	}

	missing := state.MissingParams()
	if len(missing) == 0 {
		return
	}
	token := strings.TrimSpace(message)
	if token == "" || strings.ContainsAny(token, " \t\n") {
		return
	}
	state.CollectedParams[missing[0]] = token
}

// parseParamPairs extracts key=value tokens from a message. Keys are
// normalized to snake_case parameter names.
func parseParamPairs(message string) map[string]string {
	fields := strings.FieldsFunc(message, func(r rune) bool {
		return r == ',' || r == ' ' || r == '\t' || r == '\n' || r == ';'
	})
	pairs := make(map[string]string)
	for _, field := range fields {
		key, value, found := strings.Cut(field, "=")
		if !found {
			continue
		}
		key = strings.ToLower(strings.TrimSpace(key))
		value = strings.TrimSpace(value)
		if key == "" || value == "" {
			continue
		}
		pairs[key] = value
	}
	return pairs
}

// Summarize renders a deterministic, human-readable submission summary.
func Summarize(state *State) string {
	if state == nil {
		return ""
	}
	var b strings.Builder
	fmt.Fprintf(&b, "Ready to submit a %s request for %s", state.Intent, state.ResourceType)
	if name, ok := state.CollectedParams["name"]; ok {
		fmt.Fprintf(&b, " %q", name)
	}
	b.WriteString(".")

	required := requiredParams[state.ResourceType]
	keys := make([]string, 0, len(state.CollectedParams))
	for _, param := range required {
		if _, ok := state.CollectedParams[param]; ok && param != "name" {
			keys = append(keys, param)
		}
	}
	// Any extra collected keys (from accepted switches) trail in sorted order.
	var extra []string
	inRequired := make(map[string]struct{}, len(required))
	for _, p := range required {
		inRequired[p] = struct{}{}
	}
	for key := range state.CollectedParams {
		if _, ok := inRequired[key]; !ok {
			extra = append(extra, key)
		}
	}
	sort.Strings(extra)
	keys = append(keys, extra...)

	for _, key := range keys {
		fmt.Fprintf(&b, " %s=%s", key, state.CollectedParams[key])
	}

	if state.ResourceType == ResourceVirtualMachine {
		fmt.Fprintf(&b, ". Estimated monthly cost: %s", EstimateMonthlyCost(state.CollectedParams["size"]))
	}
	b.WriteString(". Reply YES to submit for approval.")
	return b.String()
}

const (
	promptIntent       = "What would you like to do? I can create, modify, delete, or query cloud resources."
	promptResourceType = "What kind of resource do you need? I can provision a virtual machine, SQL database, storage account, app service, or function app."
	promptAmend        = "No problem. Tell me which parameter to change, e.g. size=Standard_B2s."

	recommendationSQLOverVM = "It sounds like you're planning a database workload. A managed SQL database is usually cheaper to run and easier to operate than a self-managed VM. Switch to sql_database? (yes/no)"
)

// paramPrompts is keyed by parameter name; asking the same missing parameter
// always yields the same prompt text.
var paramPrompts = map[string]string{
	"name":           "What should the %s be named?",
	"size":           "What size should the %s be (e.g. Standard_D2s_v3)?",
	"os_type":        "Which operating system should the %s run (Linux or Windows)?",
	"location":       "Which region should the %s be deployed in (e.g. eastus)?",
	"resource_group": "Which resource group should the %s belong to?",
	"tier":           "Which service tier should the %s use (e.g. Basic, Standard, Premium)?",
	"sku":            "Which SKU should the %s use (e.g. Standard_LRS)?",
	"plan":           "Which app service plan should the %s run on?",
	"runtime":        "Which runtime should the %s use (e.g. node, dotnet, python)?",
}

var resourceLabels = map[ResourceType]string{
	ResourceVirtualMachine: "virtual machine",
	ResourceSQLDatabase:    "SQL database",
	ResourceStorageAccount: "storage account",
	ResourceAppService:     "app service",
	ResourceFunctionApp:    "function app",
	ResourceUnknown:        "resource",
}

func questionFor(rt ResourceType, param string) string {
	label := resourceLabels[rt]
	if label == "" {
		label = "resource"
	}
	prompt, ok := paramPrompts[param]
	if !ok {
		return fmt.Sprintf("What value should %q use for the %s?", param, label)
	}
	return fmt.Sprintf(prompt, label)
}

// DetectIntent classifies the message by keyword. Unrecognized input yields
// the empty intent and the engine does not advance the phase.
func DetectIntent(normalized string) Intent {
	switch {
	case containsAny(normalized, "create", "provision", "deploy", "set up", "setup", "spin up", "launch", "new "):
		return IntentCreate
	case containsAny(normalized, "modify", "update", "change", "resize", "scale"):
		return IntentModify
	case containsAny(normalized, "delete", "remove", "destroy", "tear down", "teardown"):
		return IntentDelete
	case containsAny(normalized, "how much", "cost", "show", "list", "status", "query"):
		return IntentQuery
	default:
		return ""
	}
}

// resourceKeywords is scanned in order; the first match wins. function_app
// precedes app_service because "function app" contains "app".
var resourceKeywords = []struct {
	terms []string
	rt    ResourceType
}{
	{[]string{"virtual machine", "vm ", " vm", "virtual_machine"}, ResourceVirtualMachine},
	{[]string{"sql database", "sql_database", "database", "sql"}, ResourceSQLDatabase},
	{[]string{"storage account", "storage_account", "storage", "blob"}, ResourceStorageAccount},
	{[]string{"function app", "function_app", "function"}, ResourceFunctionApp},
	{[]string{"app service", "app_service", "web app", "webapp", "website"}, ResourceAppService},
}

// DetectResourceType finds the first resource keyword in the message.
func DetectResourceType(normalized string) ResourceType {
	padded := " " + normalized + " "
	for _, entry := range resourceKeywords {
		for _, term := range entry.terms {
			if strings.Contains(padded, term) {
				return entry.rt
			}
		}
	}
	return ResourceUnknown
}

var databaseWorkloadTerms = []string{
	"database", "sql", "postgres", "mysql", "mongodb",
	"data store", "datastore", "queries", "transactional",
}

func mentionsDatabaseWorkload(normalized string) bool {
	return containsAny(normalized, databaseWorkloadTerms...)
}

var affirmativeReplies = map[string]struct{}{
	"yes": {}, "y": {}, "yeah": {}, "yep": {}, "sure": {},
	"ok": {}, "okay": {}, "confirm": {}, "confirmed": {}, "affirmative": {},
	"go ahead": {}, "please do": {}, "do it": {},
}

var negativeReplies = map[string]struct{}{
	"no": {}, "n": {}, "nope": {}, "cancel": {}, "decline": {},
	"not now": {}, "stop": {},
}

func isAffirmative(normalized string) bool {
	if _, ok := affirmativeReplies[normalized]; ok {
		return true
	}
	return strings.HasPrefix(normalized, "yes ") || strings.HasPrefix(normalized, "yes,")
}

func isNegative(normalized string) bool {
	if _, ok := negativeReplies[normalized]; ok {
		return true
	}
	return strings.HasPrefix(normalized, "no ") || strings.HasPrefix(normalized, "no,")
}

func normalize(message string) string {
	normalized := strings.ToLower(strings.TrimSpace(message))
	return strings.Trim(normalized, ".!?")
}

func containsAny(haystack string, terms ...string) bool {
	for _, term := range terms {
		if strings.Contains(haystack, term) {
			return true
		}
	}
	return false
}
