package telemetry

import (
	"strings"
	"testing"
)

// Counters are process-global, so each test uses label values no other test
// touches and asserts on exact sample lines.

func TestWorkflowCounter(t *testing.T) {
	IncWorkflow("publish_list_t1", "ok")
	IncWorkflow("publish_list_t1", "ok")
	IncWorkflow("publish_list_t1", "incomplete")

	out := RenderPrometheus()
	for _, want := range []string{
		`approvalbot_workflow_triggers_total{workflow="publish_list_t1",status="ok"} 2`,
		`approvalbot_workflow_triggers_total{workflow="publish_list_t1",status="incomplete"} 1`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing sample %q in:\n%s", want, out)
		}
	}
}

func TestApprovalCounter(t *testing.T) {
	IncApproval("approved_t2")

	out := RenderPrometheus()
	if !strings.Contains(out, `approvalbot_approvals_total{outcome="approved_t2"} 1`) {
		t.Errorf("missing approval sample in:\n%s", out)
	}
}

func TestGitHubAPIErrorCounter(t *testing.T) {
	IncGitHubAPIError("merge_pull_t3", 409)
	IncGitHubAPIError("merge_pull_t3", 409)
	IncGitHubAPIError("merge_pull_t3", 404)

	out := RenderPrometheus()
	for _, want := range []string{
		`approvalbot_github_api_errors_total{operation="merge_pull_t3",status_code="404"} 1`,
		`approvalbot_github_api_errors_total{operation="merge_pull_t3",status_code="409"} 2`,
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing sample %q in:\n%s", want, out)
		}
	}
}

func TestSlackAPIErrorCounter(t *testing.T) {
	IncSlackAPIError("chat.update_t4")

	out := RenderPrometheus()
	if !strings.Contains(out, `approvalbot_slack_api_errors_total{method="chat.update_t4"} 1`) {
		t.Errorf("missing slack sample in:\n%s", out)
	}
}

func TestTypeHeadersAlwaysPresent(t *testing.T) {
	out := RenderPrometheus()
	for _, want := range []string{
		"# TYPE approvalbot_workflow_triggers_total counter",
		"# TYPE approvalbot_approvals_total counter",
		"# TYPE approvalbot_github_api_errors_total counter",
		"# TYPE approvalbot_slack_api_errors_total counter",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("missing header %q", want)
		}
	}
}
