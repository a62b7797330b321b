// Package status renders the daemon's live queue view for the CLI.
package status

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/creatorshive/arrisd/internal/arris"
	"github.com/creatorshive/arrisd/internal/uds"
)

// Report is the combined daemon + queue status shown by arrisd status.
type Report struct {
	Daemon DaemonStatus      `json:"daemon"`
	Live   *arris.LiveStatus `json:"live,omitempty"`
}

type DaemonStatus struct {
	Running bool `json:"running"`
}

// Run checks the daemon and prints the queue status.
func Run(arrisDir string, jsonOutput bool) error {
	report := Fetch(arrisDir)

	if jsonOutput {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	Print(os.Stdout, report)
	return nil
}

// Fetch queries the daemon over UDS. A dead daemon yields a report
// with Running=false and no live view.
func Fetch(arrisDir string) Report {
	client := uds.NewClient(filepath.Join(arrisDir, uds.DefaultSocketName))

	resp, err := client.SendCommand("ping", nil)
	if err != nil || !resp.Success {
		return Report{Daemon: DaemonStatus{Running: false}}
	}

	report := Report{Daemon: DaemonStatus{Running: true}}

	liveResp, err := client.SendCommand("live", nil)
	if err != nil || !liveResp.Success {
		return report
	}

	var live arris.LiveStatus
	if err := json.Unmarshal(liveResp.Data, &live); err != nil {
		return report
	}
	report.Live = &live
	return report
}

// Print renders the report as human-readable text.
func Print(w io.Writer, r Report) {
	if !r.Daemon.Running {
		fmt.Fprintln(w, "Daemon: stopped")
		return
	}
	fmt.Fprintln(w, "Daemon: running")

	if r.Live == nil {
		return
	}
	s := r.Live.Stats
	fmt.Fprintf(w, "\nQueue:\n")
	fmt.Fprintf(w, "  %-10s  %6s  %8s\n", "LANE", "QUEUED", "AVG(s)")
	fmt.Fprintf(w, "  %-10s  %6d  %8.1f\n", "fast", s.FastQueued, s.Fast.AvgSeconds)
	fmt.Fprintf(w, "  %-10s  %6d  %8.1f\n", "standard", s.StandardQueued, s.Standard.AvgSeconds)
	fmt.Fprintf(w, "  processing=%d completed=%d\n", s.Processing, s.TotalCompleted)

	if len(r.Live.Processing) > 0 {
		fmt.Fprintln(w, "\nProcessing:")
		for _, it := range r.Live.Processing {
			fmt.Fprintf(w, "  %-14s  %-24s  priority=%s\n", it.CreatorName, it.ProposalTitle, it.Priority)
		}
	}

	if len(r.Live.RecentActivity) > 0 {
		fmt.Fprintln(w, "\nRecent activity:")
		for _, a := range r.Live.RecentActivity {
			fmt.Fprintf(w, "  %s  %-22s  %s\n", a.CreatedAt.Format("15:04:05"), a.Type, a.CreatorName)
		}
	}
}
