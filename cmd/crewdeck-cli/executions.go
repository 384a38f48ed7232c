package main

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-redis/redis/v8"
	"github.com/spf13/cobra"

	"github.com/tcmartin/crewdeck/pkg/client"
	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/models"
	"github.com/tcmartin/crewdeck/pkg/monitor"
	"github.com/tcmartin/crewdeck/pkg/runtime"
	"github.com/tcmartin/crewdeck/pkg/utils"
)

// runtime builds a flow runtime for c. mode overrides the configured channel.
func (a *app) runtime(c *client.Client, mode string) (runtime.FlowRuntime, error) {
	monCfg := a.cfg.Monitor
	if mode != "" {
		monCfg.Mode = mode
	}

	var rdb redis.UniversalClient
	if events.Mode(monCfg.Mode) == events.ModeRedis {
		rdb = runtime.NewRedisClient(a.cfg.Redis)
	}

	cfg := runtime.ConfigFrom(monCfg, rdb, a.logger)
	if events.Mode(monCfg.Mode) != events.ModePoll && client.TokenExpired(c.Token(), 0) {
		a.logger.Warn("token is expired, the live channel will likely be refused")
	}
	if c.Token() != "" {
		cfg.RelayHeaders = map[string]string{"Authorization": "Bearer " + c.Token()}
	}
	switch events.Mode(monCfg.Mode) {
	case events.ModeWebSocket, events.ModeSSE, events.ModeRedis, events.ModePoll:
	default:
		return nil, fmt.Errorf("unknown monitor mode: %s", monCfg.Mode)
	}
	return runtime.NewFlowRuntime(c, cfg), nil
}

// follow prints run progress until monitoring ends or the command is
// interrupted. Interrupting stops watching; the execution keeps running.
func (a *app) follow(cmd *cobra.Command, rt runtime.FlowRuntime, run *runtime.Run) error {
	updates := make(chan monitor.State, 1)
	unregister := run.Monitor.OnChange(func(s monitor.State) {
		select {
		case updates <- s:
		default:
			select {
			case <-updates:
			default:
			}
			select {
			case updates <- s:
			default:
			}
		}
	})
	defer unregister()

	p := &progressPrinter{cmd: cmd}
	p.render(run.State())

	for {
		select {
		case s := <-updates:
			p.render(s)
		case <-run.Monitor.Done():
			final := run.State()
			p.render(final)
			return p.finish(final)
		case <-cmd.Context().Done():
			_ = rt.Remove(run.ExecutionID)
			fmt.Fprintf(cmd.OutOrStdout(), "%s execution %s keeps running\n", warning("Stopped watching;"), run.ExecutionID)
			return nil
		}
	}
}

// progressPrinter prints each new log line and status change once
type progressPrinter struct {
	cmd        *cobra.Command
	logs       int
	status     models.ExecutionStatus
	step       string
	channel    string
	askedHuman bool

	// stale holds the pushed log on fallback until the first poll snapshot replaces it
	stale     []monitor.LogEntry
	resyncing bool
}

func (p *progressPrinter) render(s monitor.State) {
	out := p.cmd.OutOrStdout()

	if s.Channel != "" && s.Channel != p.channel {
		if p.channel != "" {
			fmt.Fprintf(out, "%s\n", warning("live channel lost, polling"))
		}
		if p.channel != "" && s.Channel == monitor.ChannelPoll {
			// the server log starts over from its first line
			p.logs = 0
			p.stale = s.Logs
			p.resyncing = true
		}
		p.channel = s.Channel
	}

	if p.resyncing {
		if sameLogs(s.Logs, p.stale) {
			p.renderStatus(s)
			return
		}
		p.resyncing = false
		p.stale = nil
	}

	// a poll snapshot replaces the list and may be shorter than what was printed
	if len(s.Logs) < p.logs {
		p.logs = len(s.Logs)
	}
	for ; p.logs < len(s.Logs); p.logs++ {
		printLog(p.cmd, s.Logs[p.logs])
	}
	p.renderStatus(s)
}

func sameLogs(a, b []monitor.LogEntry) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i].ID != b[i].ID || a[i].Message != b[i].Message || !a[i].Timestamp.Equal(b[i].Timestamp) {
			return false
		}
	}
	return true
}

func (p *progressPrinter) renderStatus(s monitor.State) {
	out := p.cmd.OutOrStdout()

	if s.Status != p.status {
		p.status = s.Status
		fmt.Fprintf(out, "%s %s %s\n", faint("status"), colorStatus(s.Status), faint(strconv.Itoa(s.Progress)+"%"))
	}

	if s.CurrentStep != p.step {
		p.step = s.CurrentStep
		if s.CurrentStep != "" {
			pos := ""
			if i := s.StepIndex(); i >= 0 {
				pos = fmt.Sprintf(" (%d/%d)", i+1, len(s.Steps))
			}
			fmt.Fprintf(out, "%s %s%s\n", faint("step"), bold(s.CurrentStep), faint(pos))
		}
	}

	if s.HumanInput != nil && !p.askedHuman {
		p.askedHuman = true
		fmt.Fprintf(out, "%s %s\n", warning("Input required:"), s.HumanInput.Prompt)
		for _, opt := range s.HumanInput.Options {
			fmt.Fprintf(out, "  - %v\n", opt)
		}
		fmt.Fprintf(out, "%s\n", faint("answer with: crewdeck-cli executions feedback "+s.ExecutionID+" --response ..."))
	} else if s.HumanInput == nil {
		p.askedHuman = false
	}
}

// finish reports the outcome and turns a failed execution into an error
func (p *progressPrinter) finish(s monitor.State) error {
	out := p.cmd.OutOrStdout()
	switch s.Status {
	case models.StatusCompleted:
		fmt.Fprintln(out, success("Execution completed"))
		if s.Result != nil {
			_ = printJSON(out, s.Result)
		}
		return nil
	case models.StatusFailed:
		return fmt.Errorf("execution failed: %s", s.Error)
	case models.StatusCancelled:
		fmt.Fprintln(out, warning("Execution cancelled"))
		return nil
	default:
		return errors.New("monitoring ended before the execution finished")
	}
}

func (a *app) executionsCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "executions",
		Aliases: []string{"exec"},
		Short:   "Inspect and control executions",
	}
	cmd.AddCommand(
		a.executionGetCmd(),
		a.executionLogsCmd(),
		a.executionCancelCmd(),
		a.executionWatchCmd(),
		a.executionFeedbackCmd(),
	)
	return cmd
}

func (a *app) executionGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get [id]",
		Short: "Show an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			ex, err := c.Executions.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), ex)
			}
			target := ex.FlowID
			if ex.ExecutionType == "crew" {
				target = ex.CrewID
			}
			return printFields(cmd.OutOrStdout(), [][2]string{
				{"ID", bold(ex.ID)},
				{"Type", ex.ExecutionType},
				{"Target", target},
				{"Status", colorStatus(ex.Status)},
				{"Error", ex.Error},
				{"Started", formatTimePtr(ex.StartedAt)},
				{"Completed", formatTimePtr(ex.CompletedAt)},
				{"Tokens", strconv.Itoa(ex.TotalTokens)},
				{"Cost", fmt.Sprintf("$%.4f", ex.EstimatedCost)},
				{"Trigger", ex.TriggerType},
			})
		},
	}
}

func (a *app) executionLogsCmd() *cobra.Command {
	var query models.LogQuery
	cmd := &cobra.Command{
		Use:   "logs [id]",
		Short: "Print the stored log of an execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			logs, err := c.Executions.GetLogs(cmd.Context(), args[0], query)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), logs)
			}
			for _, l := range logs {
				source := ""
				if l.Source != "" {
					source = faint("[" + l.Source + "] ")
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %s%s\n", faint(clock(l.Timestamp)), colorLevel(l.Level), source, l.Message)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&query.Level, "level", "", "Only entries of this level")
	cmd.Flags().IntVar(&query.Limit, "limit", 0, "Maximum number of entries")
	return cmd
}

func (a *app) executionCancelCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "cancel [id]",
		Short: "Cancel a running execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			if err := c.Executions.Cancel(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", warning("Cancelled"), args[0])
			return nil
		},
	}
}

func (a *app) executionWatchCmd() *cobra.Command {
	var (
		flowID     string
		mode       string
		noRealtime bool
	)
	cmd := &cobra.Command{
		Use:   "watch [id]",
		Short: "Follow an execution live",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			rt, err := a.runtime(c, mode)
			if err != nil {
				return err
			}
			defer rt.Close()

			run, err := rt.Attach(cmd.Context(), args[0], runtime.RunOptions{
				Realtime: !noRealtime,
				FlowID:   flowID,
			})
			if err != nil {
				return err
			}
			return a.follow(cmd, rt, run)
		},
	}
	cmd.Flags().StringVar(&flowID, "flow", "", "Flow ID, to show step positions")
	cmd.Flags().StringVar(&mode, "mode", "", "Event channel: websocket, sse, redis or poll (default from config)")
	cmd.Flags().BoolVar(&noRealtime, "no-realtime", false, "Poll instead of using the live channel")
	return cmd
}

func (a *app) executionFeedbackCmd() *cobra.Command {
	var (
		feedback models.HumanFeedback
		data     string
	)
	cmd := &cobra.Command{
		Use:   "feedback [id]",
		Short: "Answer an execution waiting for human input",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if feedback.Response == "" && feedback.Choice == "" && data == "" {
				return errors.New("one of --response, --choice or --data is required")
			}
			if data != "" {
				feedback.Data = utils.ParseJSONObject(data)
			}
			c, err := a.backend()
			if err != nil {
				return err
			}
			if err := c.Executions.SubmitHumanFeedback(cmd.Context(), args[0], feedback); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", success("Feedback submitted for"), args[0])
			return nil
		},
	}
	cmd.Flags().StringVar(&feedback.Response, "response", "", "Free text answer")
	cmd.Flags().StringVar(&feedback.Choice, "choice", "", "Selected option")
	cmd.Flags().StringVar(&data, "data", "", "Extra data as a JSON object")
	return cmd
}
