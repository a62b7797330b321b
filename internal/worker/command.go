package worker

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"time"

	"github.com/creatorshive/arrisd/internal/model"
)

// CommandGenerator shells out to a configured command for each
// request, exporting the item as ARRIS_* environment variables. The
// insight engine itself stays outside this process.
type CommandGenerator struct {
	Command string
	Timeout time.Duration
}

func (g *CommandGenerator) Generate(ctx context.Context, item *model.QueueItem) error {
	if g.Command == "" {
		return fmt.Errorf("no generator command configured")
	}

	if g.Timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, g.Timeout)
		defer cancel()
	}

	cmd := exec.CommandContext(ctx, "sh", "-c", g.Command)
	cmd.Env = append(os.Environ(),
		"ARRIS_REQUEST_ID="+item.RequestID,
		"ARRIS_PRIORITY="+string(item.Priority),
		"ARRIS_TIER="+item.Tier,
		"ARRIS_CREATOR_ID="+item.CreatorID,
		"ARRIS_PROPOSAL_ID="+item.ProposalID,
		"ARRIS_PROPOSAL_TITLE="+item.ProposalTitle,
	)

	out, err := cmd.CombinedOutput()
	if err != nil {
		return fmt.Errorf("generator command: %w (output: %s)", err, truncate(string(out), 512))
	}
	return nil
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
