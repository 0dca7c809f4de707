package conversation

import (
	"strings"
	"testing"
)

func TestStartDetectsCreateVM(t *testing.T) {
	engine := NewEngine(nil)

	state, result := engine.Start("I need to create a VM for my web app")
	if state.Intent != IntentCreate {
		t.Fatalf("intent = %s, want CREATE", state.Intent)
	}
	if state.ResourceType != ResourceVirtualMachine {
		t.Fatalf("resource type = %s, want virtual_machine", state.ResourceType)
	}
	if state.Phase != PhaseGathering {
		t.Fatalf("phase = %s, want gathering_requirements", state.Phase)
	}
	if result.Question == "" {
		t.Fatal("expected a question for the first missing parameter")
	}
	if got := state.MissingParams(); len(got) != 5 || got[0] != "name" {
		t.Fatalf("missing params = %v", got)
	}
}

func TestStartUnrecognizedIntentAsks(t *testing.T) {
	engine := NewEngine(nil)

	state, result := engine.Start("hello there")
	if state.Intent != "" {
		t.Fatalf("intent must stay unset, got %s", state.Intent)
	}
	if result.Question != promptIntent {
		t.Fatalf("unexpected question: %q", result.Question)
	}
	if state.Phase != PhaseInitial {
		t.Fatalf("unrecognized input must not advance the phase, got %s", state.Phase)
	}
}

func TestFullVMFlowToConfirmation(t *testing.T) {
	engine := NewEngine(nil)
	state, _ := engine.Start("create a virtual machine")

	engine.Advance(state, "web01")
	engine.Advance(state, "Standard_D2s_v3")
	engine.Advance(state, "Linux")
	engine.Advance(state, "eastus")
	result := engine.Advance(state, "rg1")

	if state.Phase != PhaseAwaitingConfirmation {
		t.Fatalf("phase = %s, want awaiting_confirmation", state.Phase)
	}
	if !result.ReadyForConfirmation {
		t.Fatal("expected ready_for_confirmation")
	}
	if !strings.Contains(result.Summary, "Estimated monthly cost: 70") {
		t.Fatalf("summary missing cost estimate: %q", result.Summary)
	}
	for _, fragment := range []string{"web01", "size=Standard_D2s_v3", "location=eastus", "resource_group=rg1"} {
		if !strings.Contains(result.Summary, fragment) {
			t.Fatalf("summary missing %q: %q", fragment, result.Summary)
		}
	}

	confirm := engine.Advance(state, "yes")
	if !confirm.Confirmed {
		t.Fatal("affirmative reply must confirm")
	}
	if state.Phase != PhaseAwaitingConfirmation {
		t.Fatal("engine must not advance the phase; submission does")
	}
}

func TestKeyValuePairsFillMultipleParams(t *testing.T) {
	engine := NewEngine(nil)
	state, _ := engine.Start("create a vm")

	result := engine.Advance(state, "name=web01 size=Standard_D2s_v3 os_type=Linux location=eastus resource_group=rg1")
	if state.Phase != PhaseAwaitingConfirmation {
		t.Fatalf("phase = %s, want awaiting_confirmation", state.Phase)
	}
	if !result.ReadyForConfirmation {
		t.Fatal("expected ready for confirmation")
	}
}

func TestParamsAreAppendOnly(t *testing.T) {
	engine := NewEngine(nil)
	state, _ := engine.Start("create a vm")

	engine.Advance(state, "name=web01")
	engine.Advance(state, "name=other01 size=Standard_B2s")

	if state.CollectedParams["name"] != "web01" {
		t.Fatalf("collected name must not be overwritten, got %q", state.CollectedParams["name"])
	}
	if state.CollectedParams["size"] != "Standard_B2s" {
		t.Fatalf("new key must still collect, got %q", state.CollectedParams["size"])
	}
}

func TestDatabaseWorkloadRecommendationAccepted(t *testing.T) {
	engine := NewEngine(nil)
	state, _ := engine.Start("create a vm")

	result := engine.Advance(state, "it will run a postgres database for our orders")
	if result.Recommendation == nil || result.Recommendation.Alternative != ResourceSQLDatabase {
		t.Fatalf("expected sql_database recommendation, got %+v", result.Recommendation)
	}
	if state.Phase != PhaseRecommending {
		t.Fatalf("phase = %s, want providing_recommendations", state.Phase)
	}
	if state.ResourceType != ResourceVirtualMachine {
		t.Fatal("resource type must not change before the user accepts")
	}

	accepted := engine.Advance(state, "yes")
	if !accepted.ContextSwitch {
		t.Fatal("expected context switch on acceptance")
	}
	if state.ResourceType != ResourceSQLDatabase {
		t.Fatalf("resource type = %s, want sql_database", state.ResourceType)
	}
	if len(state.ContextSwitches) != 1 || state.ContextSwitches[0].From != ResourceVirtualMachine {
		t.Fatalf("context switch record missing: %+v", state.ContextSwitches)
	}
	if state.Phase != PhaseGathering {
		t.Fatalf("phase = %s, want gathering_requirements", state.Phase)
	}
}

func TestDatabaseWorkloadRecommendationDeclined(t *testing.T) {
	engine := NewEngine(nil)
	state, _ := engine.Start("create a vm")

	engine.Advance(state, "it will host a mysql database")
	declined := engine.Advance(state, "no")

	if state.ResourceType != ResourceVirtualMachine {
		t.Fatal("declining must keep the original resource type")
	}
	if state.Phase != PhaseGathering {
		t.Fatalf("phase = %s, want gathering_requirements", state.Phase)
	}
	if declined.Question == "" {
		t.Fatal("expected the next parameter question")
	}

	// The recommendation is offered at most once.
	again := engine.Advance(state, "more database talk about postgres")
	if again.Recommendation != nil {
		t.Fatal("recommendation must not repeat after a decline")
	}
}

func TestConfirmationDeclineRetainsParams(t *testing.T) {
	engine := NewEngine(nil)
	state, _ := engine.Start("create a vm")
	engine.Advance(state, "name=web01 size=Standard_D2s_v3 os_type=Linux location=eastus resource_group=rg1")

	result := engine.Advance(state, "no")
	if state.Phase != PhaseGathering {
		t.Fatalf("phase = %s, want gathering_requirements", state.Phase)
	}
	if result.Question != promptAmend {
		t.Fatalf("unexpected reply: %q", result.Question)
	}
	if len(state.CollectedParams) != 5 {
		t.Fatalf("declining must retain params, got %v", state.CollectedParams)
	}
}

func TestAmbiguousConfirmationRepeatsSummary(t *testing.T) {
	engine := NewEngine(nil)
	state, _ := engine.Start("create a vm")
	engine.Advance(state, "name=web01 size=Standard_D2s_v3 os_type=Linux location=eastus resource_group=rg1")

	result := engine.Advance(state, "maybe later")
	if result.Confirmed {
		t.Fatal("ambiguous reply must not confirm")
	}
	if !result.ReadyForConfirmation || result.Summary == "" {
		t.Fatalf("expected the summary again, got %+v", result)
	}
	if state.Phase != PhaseAwaitingConfirmation {
		t.Fatalf("phase = %s, want awaiting_confirmation", state.Phase)
	}
}

func TestCompletedConversationIgnoresInput(t *testing.T) {
	engine := NewEngine(nil)
	state, _ := engine.Start("create a vm")
	state.Phase = PhaseCompleted

	result := engine.Advance(state, "name=late01")
	if result.Question != "" || result.Confirmed {
		t.Fatalf("completed conversation must be inert, got %+v", result)
	}
	if _, ok := state.CollectedParams["name"]; ok {
		t.Fatal("completed conversation must not collect params")
	}
}

func TestIntentIsSetOnce(t *testing.T) {
	engine := NewEngine(nil)
	state, _ := engine.Start("create a storage account")
	if state.Intent != IntentCreate {
		t.Fatalf("intent = %s", state.Intent)
	}

	engine.Advance(state, "actually delete everything")
	if state.Intent != IntentCreate {
		t.Fatalf("intent must never be reassigned, got %s", state.Intent)
	}
}

func TestDetectResourceTypeKeywordPriority(t *testing.T) {
	cases := []struct {
		message string
		want    ResourceType
	}{
		{"i want a function app", ResourceFunctionApp},
		{"spin up an app service", ResourceAppService},
		{"need a storage account for blobs", ResourceStorageAccount},
		{"a sql database please", ResourceSQLDatabase},
		{"give me a virtual machine", ResourceVirtualMachine},
		{"something with kubernetes", ResourceUnknown},
	}
	for _, tc := range cases {
		if got := DetectResourceType(normalize(tc.message)); got != tc.want {
			t.Errorf("DetectResourceType(%q) = %s, want %s", tc.message, got, tc.want)
		}
	}
}
