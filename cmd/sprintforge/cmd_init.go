package main

import (
	"bufio"
	"bytes"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"text/template"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var path string
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize sprintforge.yaml interactively",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return cmdInit(path, force)
		},
	}
	cmd.Flags().StringVar(&path, "path", "sprintforge.yaml", "config file to write")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite without prompting")
	return cmd
}

func cmdInit(configPath string, force bool) error {
	fi, err := os.Stdin.Stat()
	if err != nil {
		return fmt.Errorf("checking stdin: %w", err)
	}
	if fi.Mode()&os.ModeCharDevice == 0 {
		return fmt.Errorf("sprintforge init requires an interactive terminal")
	}

	scanner := bufio.NewScanner(os.Stdin)

	if _, err := os.Stat(configPath); err == nil && !force {
		if !promptYesNo(scanner, configPath+" already exists. Overwrite?", false) {
			return fmt.Errorf("aborted")
		}
	}

	fmt.Println("Initializing " + configPath + "...")

	fmt.Println("\n=== Forge ===")
	forgeProvider := promptString(scanner, "Forge provider", "github")
	repoDefault := detectGitHubRepo()
	owner, repo := splitOwnerRepo(promptString(scanner, "Repository (owner/repo)", repoDefault))
	if owner == "" || repo == "" {
		return fmt.Errorf("repository is required")
	}
	baseBranch := promptString(scanner, "Base branch", detectBaseBranch())
	if baseBranch == "" {
		return fmt.Errorf("base branch is required")
	}

	fmt.Println("\n=== Agent ===")
	agentProvider := promptString(scanner, "Agent provider (claude|codex|gemini|ralph)", "claude")
	agentCommand := promptString(scanner, "Agent command", agentProvider)
	sessionTimeout := promptString(scanner, "Session timeout", "45m")

	fmt.Println("\n=== Worktree ===")
	createCmd := promptString(scanner, "Create command", "git worktree add {{.Path}} -b {{.Branch}} {{.BaseBranch}}")
	removeCmd := promptString(scanner, "Remove command", "git worktree remove --force {{.Path}}")

	fmt.Println("\n=== Sprint ===")
	prefix := promptString(scanner, "Sprint prefix", "Sprint")
	concurrencyCap := promptString(scanner, "Concurrency cap", "3")

	data := initData{
		ForgeProvider:  forgeProvider,
		Owner:          owner,
		Repo:           repo,
		BaseBranch:     baseBranch,
		AgentProvider:  agentProvider,
		AgentCommand:   agentCommand,
		SessionTimeout: sessionTimeout,
		CreateCmd:      createCmd,
		RemoveCmd:      removeCmd,
		Prefix:         prefix,
		ConcurrencyCap: concurrencyCap,
	}

	if promptYesNo(scanner, "\nConfigure Jira tracker?", false) {
		fmt.Println("\n=== Tracker (Jira) ===")
		data.Tracker = true
		data.TrackerProject = promptString(scanner, "Project key", "")
		data.TrackerBaseURL = promptString(scanner, "Base URL", "")
		data.TrackerEmail = promptString(scanner, "Email", "")
	}

	if promptYesNo(scanner, "\nConfigure Slack notifications?", false) {
		fmt.Println("\n=== Notifier (Slack) ===")
		data.Notifier = true
	}

	tmpl, err := template.New("sprintforge.yaml").Parse(sprintforgeYAMLTemplate)
	if err != nil {
		return fmt.Errorf("parsing template: %w", err)
	}

	var buf bytes.Buffer
	if err := tmpl.Execute(&buf, data); err != nil {
		return fmt.Errorf("rendering template: %w", err)
	}

	if err := os.WriteFile(configPath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", configPath, err)
	}

	fmt.Printf("\nWrote %s\n", configPath)

	var envVars []string
	if data.Tracker {
		envVars = append(envVars, "JIRA_API_TOKEN")
	}
	if data.Notifier {
		envVars = append(envVars, "SLACK_WEBHOOK_URL")
	}
	envVars = append(envVars, "GITHUB_TOKEN")
	fmt.Fprintf(os.Stderr, "\n%s references these environment variables:\n", configPath)
	for _, v := range envVars {
		fmt.Fprintf(os.Stderr, "  - %s\n", v)
	}

	return nil
}

type initData struct {
	ForgeProvider  string
	Owner          string
	Repo           string
	BaseBranch     string
	AgentProvider  string
	AgentCommand   string
	SessionTimeout string
	CreateCmd      string
	RemoveCmd      string
	Prefix         string
	ConcurrencyCap string

	Tracker        bool
	TrackerProject string
	TrackerBaseURL string
	TrackerEmail   string

	Notifier bool
}

const sprintforgeYAMLTemplate = `# sprintforge configuration
# Environment variables are resolved at load time: ${VAR_NAME}

forge:
  provider: {{.ForgeProvider}}
  owner: {{.Owner}}
  repo: {{.Repo}}
  base_branch: {{.BaseBranch}}
  token: ${GITHUB_TOKEN}

agent:
  provider: {{.AgentProvider}}
  command: {{.AgentCommand}}
  session_timeout: {{.SessionTimeout}}

worktree:
  create_cmd: "{{.CreateCmd}}"
  remove_cmd: "{{.RemoveCmd}}"

sprint:
  prefix: {{.Prefix}}
  concurrency_cap: {{.ConcurrencyCap}}
{{if .Tracker}}
tracker:
  provider: jira
  project: {{.TrackerProject}}
  base_url: {{.TrackerBaseURL}}
  email: {{.TrackerEmail}}
  token: ${JIRA_API_TOKEN}
{{else}}
# tracker:
#   provider: jira
#   project: PROJ
#   base_url: https://yourco.atlassian.net
#   email: you@company.com
#   token: ${JIRA_API_TOKEN}
{{end}}
{{- if .Notifier}}
notifier:
  provider: slack
  webhook_url: ${SLACK_WEBHOOK_URL}
{{else}}
# notifier:
#   provider: slack
#   webhook_url: ${SLACK_WEBHOOK_URL}
{{end -}}
`

func splitOwnerRepo(s string) (string, string) {
	parts := strings.SplitN(s, "/", 2)
	if len(parts) != 2 {
		return "", ""
	}
	return parts[0], parts[1]
}

func promptString(scanner *bufio.Scanner, label, defaultVal string) string {
	if defaultVal != "" {
		fmt.Printf("%s [%s]: ", label, defaultVal)
	} else {
		fmt.Printf("%s: ", label)
	}
	scanner.Scan()
	input := strings.TrimSpace(scanner.Text())
	if input == "" {
		return defaultVal
	}
	return input
}

func promptYesNo(scanner *bufio.Scanner, label string, defaultYes bool) bool {
	hint := "[y/N]"
	if defaultYes {
		hint = "[Y/n]"
	}
	fmt.Printf("%s %s: ", label, hint)
	scanner.Scan()
	input := strings.TrimSpace(strings.ToLower(scanner.Text()))
	if input == "" {
		return defaultYes
	}
	return input == "y" || input == "yes"
}

func detectGitHubRepo() string {
	if repo := parseGitHubRemote("origin"); repo != "" {
		return repo
	}
	fmt.Fprintf(os.Stderr, "Warning: could not detect repo from 'origin' remote\n")
	return ""
}

func parseGitHubRemote(name string) string {
	out, err := exec.Command("git", "remote", "get-url", name).Output()
	if err != nil {
		return ""
	}
	url := strings.TrimSpace(string(out))

	if after, ok := strings.CutPrefix(url, "git@github.com:"); ok {
		return strings.TrimSuffix(after, ".git")
	}
	if _, after, ok := strings.Cut(url, "github.com/"); ok {
		return strings.TrimSuffix(after, ".git")
	}
	return ""
}

func detectBaseBranch() string {
	if out, err := exec.Command("git", "symbolic-ref", "refs/remotes/origin/HEAD").Output(); err == nil {
		ref := strings.TrimSpace(string(out))
		if idx := strings.LastIndex(ref, "/"); idx >= 0 {
			return ref[idx+1:]
		}
	}
	for _, candidate := range []string{"main", "master"} {
		if err := exec.Command("git", "show-ref", "--verify", "--quiet", "refs/heads/"+candidate).Run(); err == nil {
			return candidate
		}
	}
	return "main"
}
