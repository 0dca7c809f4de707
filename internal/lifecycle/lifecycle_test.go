package lifecycle

import "testing"

func TestTableAllowed(t *testing.T) {
	table := Table[string]{
		"pending":  {"approved", "rejected"},
		"approved": {"completed", "failed"},
	}

	if !table.Allowed("pending", "approved") {
		t.Error("pending -> approved should be allowed")
	}
	if table.Allowed("pending", "completed") {
		t.Error("pending -> completed should be rejected")
	}
	if table.Allowed("approved", "approved") {
		t.Error("self-transition should not be in the table")
	}
	if table.Allowed("rejected", "approved") {
		t.Error("terminal state should have no outgoing transitions")
	}
}

func TestTableTerminal(t *testing.T) {
	table := Table[string]{
		"pending": {"done"},
	}
	if table.Terminal("pending") {
		t.Error("pending is not terminal")
	}
	if !table.Terminal("done") {
		t.Error("done is terminal")
	}
}
