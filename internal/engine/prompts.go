package engine

import (
	"fmt"
	"strings"

	"github.com/urbanisierung/copilot-swarm/internal/checkpoint"
)

// Prompt builders. Decision keywords are always restated in the prompt so
// reviewers emit them verbatim regardless of what their instructions say.

func specPrompt(issueBody string) string {
	var b strings.Builder
	b.WriteString("Produce an implementation-ready specification for the following task.\n\n")
	b.WriteString(issueBody)
	return b.String()
}

func decomposePrompt(spec string) string {
	var b strings.Builder
	b.WriteString("Decompose the following specification into independent implementation tasks.\n")
	b.WriteString("Respond with a JSON array. Each element is a task description string, or an\n")
	b.WriteString("object with a \"description\" field and an optional \"dependsOn\" array of\n")
	b.WriteString("zero-based indexes of earlier tasks this one requires.\n\n")
	b.WriteString(spec)
	return b.String()
}

func designPrompt(spec string, tasks []checkpoint.Task) string {
	var b strings.Builder
	b.WriteString("Produce a design specification for the frontend work in this plan.\n\nSpecification:\n")
	b.WriteString(spec)
	b.WriteString("\n\nTasks:\n")
	for _, t := range tasks {
		fmt.Fprintf(&b, "%d. %s\n", t.Index, t.Description)
	}
	return b.String()
}

func implementPrompt(task checkpoint.Task, spec, design string, deps []*checkpoint.StreamResult) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Implement the following task.\n\nTask: %s\n", task.Description)
	if spec != "" {
		b.WriteString("\nSpecification:\n")
		b.WriteString(spec)
		b.WriteString("\n")
	}
	if task.Frontend && design != "" {
		b.WriteString("\nDesign specification:\n")
		b.WriteString(design)
		b.WriteString("\n")
	}
	if len(deps) > 0 {
		b.WriteString("\nCompleted prerequisite tasks:\n")
		for _, d := range deps {
			fmt.Fprintf(&b, "- Task %d (%s):\n%s\n", d.Index, d.Task, d.Output)
		}
	}
	b.WriteString("\nWhen done, summarize what you changed and why.")
	return b.String()
}

func reviewPrompt(draft, approvalKeyword, clarificationKeyword string) string {
	var b strings.Builder
	b.WriteString("Review the following work.\n")
	fmt.Fprintf(&b, "If it is acceptable, respond with %q.\n", approvalKeyword)
	if clarificationKeyword != "" {
		fmt.Fprintf(&b, "If you need more context to judge it, respond with %q followed by your question.\n", clarificationKeyword)
	}
	b.WriteString("Otherwise describe every problem that must be fixed.\n\n")
	b.WriteString(draft)
	return b.String()
}

func revisePrompt(feedback string) string {
	var b strings.Builder
	b.WriteString("The reviewer raised the following points. Address every one and respond\n")
	b.WriteString("with the complete revised version.\n\n")
	b.WriteString(feedback)
	return b.String()
}

func verifyFixPrompt(command, output string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "The verification command `%s` failed in the repository. Fix the cause\n", command)
	b.WriteString("and summarize the change.\n\nOutput:\n")
	b.WriteString(output)
	return b.String()
}

func combineReports(results []*checkpoint.StreamResult) string {
	var b strings.Builder
	b.WriteString("Combined implementation report across all streams.\n")
	for _, r := range results {
		fmt.Fprintf(&b, "\n## Task %d: %s\n\n%s\n", r.Index, r.Task, r.Output)
	}
	return b.String()
}
