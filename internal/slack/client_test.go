package slack

import (
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/approvalbot/approvalbot/internal/core"
)

type apiCall struct {
	method  string
	payload map[string]any
}

func testChatClient(t *testing.T, respond func(method string) string) (*Client, *[]apiCall) {
	t.Helper()
	calls := &[]apiCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var payload map[string]any
		json.NewDecoder(r.Body).Decode(&payload)
		method := r.URL.Path[1:]
		*calls = append(*calls, apiCall{method: method, payload: payload})
		w.Write([]byte(respond(method)))
	}))
	t.Cleanup(srv.Close)

	c := NewClient("xoxb-test")
	c.baseURL = srv.URL
	return c, calls
}

func okResponse(string) string { return `{"ok": true}` }

func TestPostMessageThreaded(t *testing.T) {
	c, calls := testChatClient(t, okResponse)

	if err := c.PostMessage(t.Context(), "C1", "111.222", "hello"); err != nil {
		t.Fatalf("post message: %v", err)
	}

	call := (*calls)[0]
	if call.method != "chat.postMessage" {
		t.Fatalf("unexpected method: %s", call.method)
	}
	if call.payload["channel"] != "C1" || call.payload["thread_ts"] != "111.222" || call.payload["text"] != "hello" {
		t.Fatalf("unexpected payload: %v", call.payload)
	}
}

func TestPostApprovalCardBlocks(t *testing.T) {
	c, calls := testChatClient(t, okResponse)

	card := core.ApprovalCard{Mention: "<@U1>", Details: "a request has been raised", Number: 7}
	if err := c.PostApprovalCard(t.Context(), "C1", "", card); err != nil {
		t.Fatalf("post approval card: %v", err)
	}

	blocks := (*calls)[0].payload["blocks"].([]any)
	if len(blocks) != 2 {
		t.Fatalf("expected section + actions, got %d blocks", len(blocks))
	}

	actions := blocks[1].(map[string]any)
	if actions["block_id"] != "approval_7" {
		t.Fatalf("unexpected block id: %v", actions["block_id"])
	}
	elements := actions["elements"].([]any)
	if len(elements) != 2 {
		t.Fatalf("expected two buttons, got %d", len(elements))
	}
	approve := elements[0].(map[string]any)
	if approve["action_id"] != ActionApprove || approve["value"] != "7" {
		t.Fatalf("unexpected approve button: %v", approve)
	}
	reject := elements[1].(map[string]any)
	if reject["action_id"] != ActionReject || reject["value"] != "7" {
		t.Fatalf("unexpected reject button: %v", reject)
	}
}

func TestUpdateResolvedRewritesInPlace(t *testing.T) {
	c, calls := testChatClient(t, okResponse)

	if err := c.UpdateResolved(t.Context(), "C1", "111.222", "U1", core.OutcomeApproved); err != nil {
		t.Fatalf("update resolved: %v", err)
	}

	call := (*calls)[0]
	if call.method != "chat.update" {
		t.Fatalf("unexpected method: %s", call.method)
	}
	if call.payload["ts"] != "111.222" {
		t.Fatalf("unexpected ts: %v", call.payload["ts"])
	}
	blocks := call.payload["blocks"].([]any)
	if len(blocks) != 1 {
		t.Fatalf("terminal card must carry no buttons, got %d blocks", len(blocks))
	}
	text := blocks[0].(map[string]any)["text"].(map[string]any)["text"].(string)
	if text != "✅ Approved by <@U1>" {
		t.Fatalf("unexpected terminal text: %q", text)
	}
}

func TestPostEphemeralTargetsUser(t *testing.T) {
	c, calls := testChatClient(t, okResponse)

	if err := c.PostEphemeral(t.Context(), "C1", "U2", "not authorized"); err != nil {
		t.Fatalf("post ephemeral: %v", err)
	}

	call := (*calls)[0]
	if call.method != "chat.postEphemeral" {
		t.Fatalf("unexpected method: %s", call.method)
	}
	if call.payload["user"] != "U2" {
		t.Fatalf("unexpected user: %v", call.payload["user"])
	}
}

func TestCallAPIPlatformRejection(t *testing.T) {
	c, _ := testChatClient(t, func(string) string { return `{"ok": false, "error": "channel_not_found"}` })

	err := c.PostMessage(t.Context(), "C404", "", "hello")
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Reason != "channel_not_found" {
		t.Fatalf("unexpected reason: %q", apiErr.Reason)
	}
}

func TestResolvedCardBlocksDeclined(t *testing.T) {
	blocks := ResolvedCardBlocks("U3", core.OutcomeDeclined)
	if blocks[0].Text.Text != "❌ Declined by <@U3>" {
		t.Fatalf("unexpected text: %q", blocks[0].Text.Text)
	}
}
