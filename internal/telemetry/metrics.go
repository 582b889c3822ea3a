// Package telemetry maintains in-process counters for the bot's observable
// behavior and renders them in Prometheus text format.
package telemetry

import (
	"fmt"
	"sort"
	"strings"
	"sync"
)

var defaultRegistry = newRegistry()

type registry struct {
	mu              sync.Mutex
	workflows       map[string]map[string]int64
	approvals       map[string]int64
	githubAPIErrors map[string]map[int]int64
	slackAPIErrors  map[string]int64
}

func newRegistry() *registry {
	return &registry{
		workflows:       make(map[string]map[string]int64),
		approvals:       make(map[string]int64),
		githubAPIErrors: make(map[string]map[int]int64),
		slackAPIErrors:  make(map[string]int64),
	}
}

// IncWorkflow counts one workflow trigger with its status
// (ok, incomplete, error).
func IncWorkflow(name, status string) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.workflows[name]; !ok {
		defaultRegistry.workflows[name] = make(map[string]int64)
	}
	defaultRegistry.workflows[name][status]++
}

// IncApproval counts one resolution attempt by outcome
// (approved, declined, unauthorized, error).
func IncApproval(outcome string) {
	defaultRegistry.mu.Lock()
	defaultRegistry.approvals[outcome]++
	defaultRegistry.mu.Unlock()
}

// IncGitHubAPIError counts a non-success GitHub API response.
func IncGitHubAPIError(operation string, statusCode int) {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()
	if _, ok := defaultRegistry.githubAPIErrors[operation]; !ok {
		defaultRegistry.githubAPIErrors[operation] = make(map[int]int64)
	}
	defaultRegistry.githubAPIErrors[operation][statusCode]++
}

// IncSlackAPIError counts a failed Slack Web API call.
func IncSlackAPIError(method string) {
	defaultRegistry.mu.Lock()
	defaultRegistry.slackAPIErrors[method]++
	defaultRegistry.mu.Unlock()
}

// RenderPrometheus renders all counters in Prometheus text exposition format.
func RenderPrometheus() string {
	defaultRegistry.mu.Lock()
	defer defaultRegistry.mu.Unlock()

	var sb strings.Builder

	sb.WriteString("# TYPE approvalbot_workflow_triggers_total counter\n")
	for _, name := range sortedKeys(defaultRegistry.workflows) {
		for _, status := range sortedKeys(defaultRegistry.workflows[name]) {
			sb.WriteString(fmt.Sprintf("approvalbot_workflow_triggers_total{workflow=\"%s\",status=\"%s\"} %d\n", name, status, defaultRegistry.workflows[name][status]))
		}
	}

	sb.WriteString("# TYPE approvalbot_approvals_total counter\n")
	for _, outcome := range sortedKeys(defaultRegistry.approvals) {
		sb.WriteString(fmt.Sprintf("approvalbot_approvals_total{outcome=\"%s\"} %d\n", outcome, defaultRegistry.approvals[outcome]))
	}

	sb.WriteString("# TYPE approvalbot_github_api_errors_total counter\n")
	for _, op := range sortedKeys(defaultRegistry.githubAPIErrors) {
		statusCodes := make([]int, 0, len(defaultRegistry.githubAPIErrors[op]))
		for sc := range defaultRegistry.githubAPIErrors[op] {
			statusCodes = append(statusCodes, sc)
		}
		sort.Ints(statusCodes)
		for _, sc := range statusCodes {
			sb.WriteString(fmt.Sprintf("approvalbot_github_api_errors_total{operation=\"%s\",status_code=\"%d\"} %d\n", op, sc, defaultRegistry.githubAPIErrors[op][sc]))
		}
	}

	sb.WriteString("# TYPE approvalbot_slack_api_errors_total counter\n")
	for _, method := range sortedKeys(defaultRegistry.slackAPIErrors) {
		sb.WriteString(fmt.Sprintf("approvalbot_slack_api_errors_total{method=\"%s\"} %d\n", method, defaultRegistry.slackAPIErrors[method]))
	}

	return sb.String()
}

func sortedKeys[T any](m map[string]T) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
