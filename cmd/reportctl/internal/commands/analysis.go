package commands

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/wolfeidau/reportctl/internal/models"
	"github.com/wolfeidau/reportctl/internal/session"
	"github.com/wolfeidau/reportctl/internal/tracker"
	"github.com/wolfeidau/reportctl/internal/util"
	"golang.org/x/term"
)

// AnalysisCmd manages analysis jobs for uploaded files.
type AnalysisCmd struct {
	List   AnalysisListCmd   `cmd:"" help:"List analyses for a file"`
	Create AnalysisCreateCmd `cmd:"" help:"Start an analysis for a file"`
	Delete AnalysisDeleteCmd `cmd:"" help:"Delete an analysis"`
	Watch  AnalysisWatchCmd  `cmd:"" help:"Watch analyses for a file until none are active"`
}

// AnalysisListCmd lists the analyses of a file once.
type AnalysisListCmd struct {
	FileID string `arg:"" name:"file-id" help:"File ID"`
}

func (l *AnalysisListCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(ctx, globals)
	if err != nil {
		return err
	}

	list, err := a.client.ListAnalyses(ctx, l.FileID)
	if err != nil {
		return a.userError(ctx, err)
	}

	if len(a.tracked.EvictTerminal(list.Analyses)) > 0 {
		if err := a.saveTracked(); err != nil {
			return err
		}
	}

	printAnalyses(a.out, list.Analyses, a.tracked, time.Now())
	return nil
}

// AnalysisCreateCmd starts an analysis and tracks it until it finishes.
type AnalysisCreateCmd struct {
	FileID string            `arg:"" name:"file-id" help:"File ID"`
	Param  map[string]string `help:"Analysis parameter as key=value, may be repeated" mapsep:","`
	Watch  bool              `help:"Watch the file's analyses until none are active"`
}

func (c *AnalysisCreateCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(ctx, globals)
	if err != nil {
		return err
	}

	var params map[string]any
	if len(c.Param) > 0 {
		params = make(map[string]any, len(c.Param))
		for k, v := range c.Param {
			params[k] = v
		}
	}

	snapshot := a.tracked.IDs()

	analysis, err := a.client.CreateAnalysis(ctx, c.FileID, params)
	if err != nil {
		a.tracked.Reset(snapshot)
		return a.userError(ctx, err)
	}

	// tracked until a fetch shows it finished
	if !analysis.Status.IsTerminal() {
		a.tracked.Add(analysis.ID)
	}

	if err := a.saveTracked(); err != nil {
		a.tracked.Reset(snapshot)
		return err
	}

	log.Debug().
		Str("fileID", c.FileID).
		Str("analysisID", analysis.ID).
		Str("status", string(analysis.Status)).
		Msg("analysis created")

	fmt.Fprintf(a.out, "Created analysis %s (%s)\n", analysis.ID, analysis.Status)

	if !c.Watch {
		return nil
	}

	return watchAnalyses(ctx, a, c.FileID, a.cfg.PollInterval, false)
}

// AnalysisDeleteCmd deletes an analysis and stops tracking it.
type AnalysisDeleteCmd struct {
	AnalysisID string `arg:"" name:"analysis-id" help:"Analysis ID"`
}

func (d *AnalysisDeleteCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(ctx, globals)
	if err != nil {
		return err
	}

	snapshot := a.tracked.IDs()
	a.tracked.Remove(d.AnalysisID)

	if err := a.client.DeleteAnalysis(ctx, d.AnalysisID); err != nil {
		a.tracked.Reset(snapshot)
		return a.userError(ctx, err)
	}

	if err := a.saveTracked(); err != nil {
		return err
	}

	fmt.Fprintf(a.out, "Deleted analysis %s\n", d.AnalysisID)
	return nil
}

// AnalysisWatchCmd re-fetches the analyses of a file while any is pending
// or in progress.
type AnalysisWatchCmd struct {
	FileID   string        `arg:"" name:"file-id" help:"File ID"`
	Interval time.Duration `help:"Polling interval while analyses are active, defaults to the config file value"`
	Follow   bool          `help:"Keep running once idle, press Enter to refresh"`
}

func (w *AnalysisWatchCmd) Run(ctx context.Context, globals *Globals) error {
	a, err := newApp(ctx, globals)
	if err != nil {
		return err
	}

	interval := w.Interval
	if interval <= 0 {
		interval = a.cfg.PollInterval
	}

	return watchAnalyses(ctx, a, w.FileID, interval, w.Follow)
}

func watchAnalyses(ctx context.Context, a *app, fileID string, interval time.Duration, follow bool) error {
	clearScreen := isTerminal(a.out)

	var (
		poller     *tracker.Poller
		sessionErr error
	)

	poller, err := tracker.NewPoller(tracker.PollerConfig{
		Name:     fileID,
		Interval: interval,
		Fetch: func(ctx context.Context) ([]models.Analysis, error) {
			list, err := a.client.ListAnalyses(ctx, fileID)
			if err != nil {
				return nil, err
			}
			return list.Analyses, nil
		},
		Tracked: a.tracked,
		OnUpdate: func(analyses []models.Analysis) {
			if clearScreen {
				fmt.Fprint(a.out, "\033[2J\033[H") // Clear screen and move cursor to top
			}
			fmt.Fprintf(a.out, "Analyses for %s (updated at %s)\n\n", fileID, time.Now().Format("15:04:05"))
			printAnalyses(a.out, analyses, a.tracked, time.Now())
			fmt.Fprintln(a.out)
		},
		OnError: func(err error) {
			if errors.Is(err, session.ErrSessionErrored) || errors.Is(err, session.ErrNotSignedIn) {
				sessionErr = err
				poller.Stop()
				return
			}
			fmt.Fprintln(os.Stderr, "Failed to load analyses, retrying at the next interval.")
		},
		ExitWhenIdle: !follow,
	})
	if err != nil {
		return err
	}

	if follow {
		fmt.Fprintln(a.out, "Watching analyses (press Enter to refresh, Ctrl+C to stop)...")
		go func() {
			scanner := bufio.NewScanner(os.Stdin)
			for scanner.Scan() {
				poller.Trigger()
			}
		}()
	}

	err = poller.Run(ctx)

	if saveErr := a.saveTracked(); saveErr != nil {
		log.Warn().Err(saveErr).Msg("failed to save tracked jobs")
	}

	if sessionErr != nil {
		return a.userError(ctx, sessionErr)
	}

	switch {
	case errors.Is(err, context.Canceled):
		return nil
	case err != nil:
		return a.userError(ctx, err)
	}

	if !follow {
		fmt.Fprintln(a.out, "No active analyses.")
	}

	return nil
}

func printAnalyses(w io.Writer, analyses []models.Analysis, tracked *tracker.Set, now time.Time) {
	if len(analyses) == 0 {
		fmt.Fprintln(w, "No analyses found.")
		return
	}

	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tSTATUS\tAGE\tTRACKED\tERROR")

	for _, an := range analyses {
		isTracked := ""
		if tracked.Has(an.ID) {
			isTracked = "*"
		}

		errMsg := ""
		if an.ErrorMessage != nil {
			errMsg = *an.ErrorMessage
			if len(errMsg) > 60 {
				errMsg = errMsg[:57] + "..."
			}
		}

		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n",
			an.ID,
			an.Status,
			util.FormatElapsed(an.CreatedAt, now),
			isTracked,
			errMsg)
	}

	tw.Flush()
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}
