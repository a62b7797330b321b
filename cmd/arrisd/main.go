package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/gofrs/uuid"

	"github.com/creatorshive/arrisd/internal/daemon"
	"github.com/creatorshive/arrisd/internal/setup"
	"github.com/creatorshive/arrisd/internal/status"
	"github.com/creatorshive/arrisd/internal/uds"
)

const version = "1.0.0"

func main() {
	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "init":
		runInit(os.Args[2:])
	case "daemon":
		runDaemon(os.Args[2:])
	case "enqueue":
		runEnqueue(os.Args[2:])
	case "claim":
		runClaim(os.Args[2:])
	case "complete":
		runComplete(os.Args[2:])
	case "position":
		runPosition(os.Args[2:])
	case "creator":
		runCreator(os.Args[2:])
	case "feed":
		runFeed(os.Args[2:])
	case "stats":
		runSimple("stats")
	case "live":
		runSimple("live")
	case "sweep":
		runSimple("sweep")
	case "dashboard":
		runSimple("dashboard")
	case "status":
		runStatus(os.Args[2:])
	case "down":
		runDown(os.Args[2:])
	case "version":
		fmt.Printf("arrisd %s\n", version)
	case "help", "--help", "-h":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func runInit(args []string) {
	if len(args) < 1 {
		fmt.Fprintln(os.Stderr, "usage: arrisd init <project_dir> [--name <service_name>]")
		os.Exit(1)
	}

	projectDir := args[0]
	serviceName := ""
	for i := 1; i < len(args); i++ {
		switch args[i] {
		case "--name":
			if i+1 >= len(args) {
				fmt.Fprintln(os.Stderr, "--name requires a value")
				os.Exit(1)
			}
			i++
			serviceName = args[i]
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: arrisd init <project_dir> [--name <service_name>]\n", args[i])
			os.Exit(1)
		}
	}

	if err := setup.Run(projectDir, serviceName); err != nil {
		fmt.Fprintf(os.Stderr, "init: %v\n", err)
		os.Exit(1)
	}
	absDir, _ := filepath.Abs(projectDir)
	fmt.Printf("Initialized .arris/ in %s\n", absDir)
}

func runDaemon(_ []string) {
	arrisDir := mustFindArrisDir()

	cfg, err := daemon.LoadConfig(arrisDir)
	if err != nil {
		fmt.Fprintf(os.Stderr, "load config: %v\n", err)
		os.Exit(1)
	}

	d, err := daemon.New(arrisDir, cfg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "create daemon: %v\n", err)
		os.Exit(1)
	}

	if err := d.Run(); err != nil {
		fmt.Fprintf(os.Stderr, "daemon: %v\n", err)
		os.Exit(1)
	}
}

func runEnqueue(args []string) {
	var requestID, tier, priority, creatorID, creatorName, proposalID, proposalTitle string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--request-id":
			requestID = flagValue(args, &i)
		case "--tier":
			tier = flagValue(args, &i)
		case "--priority":
			priority = flagValue(args, &i)
		case "--creator-id":
			creatorID = flagValue(args, &i)
		case "--creator-name":
			creatorName = flagValue(args, &i)
		case "--proposal-id":
			proposalID = flagValue(args, &i)
		case "--proposal-title":
			proposalTitle = flagValue(args, &i)
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\n", args[i])
			fmt.Fprintln(os.Stderr, "usage: arrisd enqueue --creator-id <id> --proposal-id <id> [--request-id <id>] [--tier <tier>] [--priority <fast|standard>] [--creator-name <name>] [--proposal-title <title>]")
			os.Exit(1)
		}
	}

	if creatorID == "" || proposalID == "" {
		fmt.Fprintln(os.Stderr, "usage: arrisd enqueue --creator-id <id> --proposal-id <id> [--request-id <id>] [--tier <tier>] [--priority <fast|standard>] [--creator-name <name>] [--proposal-title <title>]")
		os.Exit(1)
	}

	if requestID == "" {
		u, err := uuid.NewV4()
		if err != nil {
			fmt.Fprintf(os.Stderr, "generate request id: %v\n", err)
			os.Exit(1)
		}
		requestID = u.String()
	}

	sendCommand("enqueue", map[string]any{
		"request_id":     requestID,
		"tier":           tier,
		"priority":       priority,
		"creator_id":     creatorID,
		"creator_name":   creatorName,
		"proposal_id":    proposalID,
		"proposal_title": proposalTitle,
	})
}

func runClaim(_ []string) {
	sendCommand("claim", nil)
}

func runComplete(args []string) {
	var requestID string
	var seconds float64
	success := true

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--request-id":
			requestID = flagValue(args, &i)
		case "--seconds":
			v := flagValue(args, &i)
			n, err := strconv.ParseFloat(v, 64)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid --seconds value: %s\n", v)
				os.Exit(1)
			}
			seconds = n
		case "--failed":
			success = false
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: arrisd complete --request-id <id> --seconds <n> [--failed]\n", args[i])
			os.Exit(1)
		}
	}

	if requestID == "" {
		fmt.Fprintln(os.Stderr, "usage: arrisd complete --request-id <id> --seconds <n> [--failed]")
		os.Exit(1)
	}

	sendCommand("complete", map[string]any{
		"request_id":      requestID,
		"processing_time": seconds,
		"success":         success,
	})
}

func runPosition(args []string) {
	var creatorID, proposalID string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--creator-id":
			creatorID = flagValue(args, &i)
		case "--proposal-id":
			proposalID = flagValue(args, &i)
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: arrisd position --creator-id <id> --proposal-id <id>\n", args[i])
			os.Exit(1)
		}
	}

	if creatorID == "" || proposalID == "" {
		fmt.Fprintln(os.Stderr, "usage: arrisd position --creator-id <id> --proposal-id <id>")
		os.Exit(1)
	}

	sendCommand("position", map[string]any{
		"creator_id":  creatorID,
		"proposal_id": proposalID,
	})
}

func runCreator(args []string) {
	var creatorID string

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--creator-id":
			creatorID = flagValue(args, &i)
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: arrisd creator --creator-id <id>\n", args[i])
			os.Exit(1)
		}
	}

	if creatorID == "" {
		fmt.Fprintln(os.Stderr, "usage: arrisd creator --creator-id <id>")
		os.Exit(1)
	}

	sendCommand("creator_items", map[string]any{"creator_id": creatorID})
}

func runFeed(args []string) {
	limit := 0
	includeIdentity := false

	for i := 0; i < len(args); i++ {
		switch args[i] {
		case "--limit":
			v := flagValue(args, &i)
			n, err := strconv.Atoi(v)
			if err != nil {
				fmt.Fprintf(os.Stderr, "invalid --limit value: %s\n", v)
				os.Exit(1)
			}
			limit = n
		case "--include-identity":
			includeIdentity = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: arrisd feed [--limit <n>] [--include-identity]\n", args[i])
			os.Exit(1)
		}
	}

	sendCommand("feed", map[string]any{
		"limit":            limit,
		"include_identity": includeIdentity,
	})
}

func runStatus(args []string) {
	jsonOutput := false
	for _, a := range args {
		switch a {
		case "--json":
			jsonOutput = true
		default:
			fmt.Fprintf(os.Stderr, "unknown flag: %s\nusage: arrisd status [--json]\n", a)
			os.Exit(1)
		}
	}

	arrisDir := mustFindArrisDir()
	if err := status.Run(arrisDir, jsonOutput); err != nil {
		fmt.Fprintf(os.Stderr, "status: %v\n", err)
		os.Exit(1)
	}
}

func runDown(_ []string) {
	arrisDir := mustFindArrisDir()

	client := uds.NewClient(filepath.Join(arrisDir, uds.DefaultSocketName))
	resp, err := client.SendCommand("shutdown", nil)
	if err != nil {
		fmt.Fprintf(os.Stderr, "down: %v\n", err)
		os.Exit(1)
	}
	if !resp.Success {
		fmt.Fprintln(os.Stderr, "down: daemon rejected shutdown")
		os.Exit(1)
	}
	fmt.Println("shutdown requested")
}

func runSimple(command string) {
	sendCommand(command, nil)
}

func sendCommand(command string, params map[string]any) {
	arrisDir := mustFindArrisDir()

	client := uds.NewClient(filepath.Join(arrisDir, uds.DefaultSocketName))
	resp, err := client.SendCommand(command, params)
	if err != nil {
		fmt.Fprintf(os.Stderr, "%s: %v\n", command, err)
		os.Exit(1)
	}

	if !resp.Success {
		code := ""
		msg := "unknown error"
		if resp.Error != nil {
			code = resp.Error.Code
			msg = resp.Error.Message
		}
		fmt.Fprintf(os.Stderr, "%s failed [%s]: %s\n", command, code, msg)
		if code == uds.ErrCodeNotFound {
			os.Exit(2)
		}
		os.Exit(1)
	}

	out, _ := json.MarshalIndent(json.RawMessage(resp.Data), "", "  ")
	fmt.Println(string(out))
}

func flagValue(args []string, i *int) string {
	if *i+1 >= len(args) {
		fmt.Fprintf(os.Stderr, "%s requires a value\n", args[*i])
		os.Exit(1)
	}
	*i++
	return args[*i]
}

func mustFindArrisDir() string {
	dir := findArrisDir()
	if dir == "" {
		fmt.Fprintln(os.Stderr, "error: .arris/ directory not found. Run 'arrisd init <dir>' first.")
		os.Exit(1)
	}
	return dir
}

// findArrisDir searches for .arris/ in the current directory and ancestors.
func findArrisDir() string {
	dir, err := os.Getwd()
	if err != nil {
		return ""
	}
	for {
		candidate := filepath.Join(dir, ".arris")
		if info, err := os.Stat(candidate); err == nil && info.IsDir() {
			return candidate
		}
		parent := filepath.Dir(dir)
		if parent == dir {
			return ""
		}
		dir = parent
	}
}

func printUsage() {
	fmt.Fprintf(os.Stderr, `arrisd %s - ARRIS processing queue daemon

Usage: arrisd <command> [options]

Setup:
  init <dir> [--name <n>]   Initialize .arris/ directory
  daemon                    Run daemon process
  down                      Graceful shutdown
  status [--json]           Show daemon and queue status

Queue:
  enqueue [options]         Admit a request to the queue
  claim                     Claim the next request (fast lane first)
  complete [options]        Report a claimed request finished
  position [options]        Look up a proposal's queue position
  creator [options]         List a creator's queued/processing items
  feed [options]            Show the recent activity feed
  stats                     Show queue statistics
  live                      Show the public dashboard view
  sweep                     Evict abandoned queued items now
  dashboard                 Regenerate dashboard.md

Utilities:
  version                   Show version
  help                      Show this help

`, version)
}
