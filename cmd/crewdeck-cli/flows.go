package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tcmartin/crewdeck/pkg/client"
	"github.com/tcmartin/crewdeck/pkg/events"
	"github.com/tcmartin/crewdeck/pkg/loader"
	"github.com/tcmartin/crewdeck/pkg/models"
	"github.com/tcmartin/crewdeck/pkg/monitor"
	"github.com/tcmartin/crewdeck/pkg/runtime"
	"github.com/tcmartin/crewdeck/pkg/utils"
)

// inputFlags collects execution inputs from files and key=value pairs
type inputFlags struct {
	pairs []string
	file  string
}

func (f *inputFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringArrayVarP(&f.pairs, "input", "i", nil, "Input as key=value (repeatable)")
	cmd.Flags().StringVar(&f.file, "inputs-file", "", "YAML or JSON file with inputs")
}

// values merges the inputs file with the pairs; pairs win
func (f *inputFlags) values() (map[string]interface{}, error) {
	fromFile := map[string]interface{}{}
	if f.file != "" {
		loaded, err := utils.LoadInputsFile(f.file)
		if err != nil {
			return nil, err
		}
		fromFile = loaded
	}
	fromPairs, err := utils.ParseKeyValues(f.pairs)
	if err != nil {
		return nil, err
	}
	return utils.MergeInputs(fromFile, fromPairs), nil
}

func (a *app) flowsCmd() *cobra.Command {
	return resourceCmd(a, resourceSpec[models.Flow]{
		use:       "flows",
		short:     "Manage and run flows",
		resource:  func(c *client.Client) *client.Resource[models.Flow] { return c.Flows.Resource },
		duplicate: func(c *client.Client) *client.DuplicableResource[models.Flow] { return c.Flows.DuplicableResource },
		header:    []string{"ID", "NAME", "STEPS", "ACTIVE", "DEPLOYED", "UPDATED"},
		row: func(f models.Flow) []string {
			return []string{f.ID, f.Name, strconv.Itoa(len(f.Steps)), yesNo(f.IsActive), yesNo(f.IsDeployed), formatTime(f.UpdatedAt)}
		},
		fields: func(f models.Flow) [][2]string {
			return [][2]string{
				{"ID", f.ID}, {"Name", bold(f.Name)}, {"Description", f.Description},
				{"Steps", strconv.Itoa(len(f.Steps))}, {"Connections", strconv.Itoa(len(f.Connections))},
				{"Persistence", yesNo(f.PersistenceEnabled)}, {"Active", yesNo(f.IsActive)},
				{"Updated", formatTime(f.UpdatedAt)},
			}
		},
	}, a.flowRunCmd(), a.flowStepsCmd(), a.flowApplyCmd(), a.flowDisconnectCmd())
}

func (a *app) flowRunCmd() *cobra.Command {
	var (
		inputs       inputFlags
		initialState string
		mode         string
		follow       bool
		noRealtime   bool
	)

	cmd := &cobra.Command{
		Use:   "run [flow-id]",
		Short: "Start a flow execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := inputs.values()
			if err != nil {
				return err
			}
			// malformed state is sent as an empty object
			state := utils.ParseJSONObject(initialState)

			c, err := a.backend()
			if err != nil {
				return err
			}

			if !follow {
				resp, err := c.Flows.Kickoff(cmd.Context(), args[0], values, state)
				if err != nil {
					return err
				}
				if a.jsonOut {
					return printJSON(cmd.OutOrStdout(), resp)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", success("Started execution"), bold(resp.ExecutionID), colorStatus(resp.Status))
				return nil
			}

			rt, err := a.runtime(c, mode)
			if err != nil {
				return err
			}
			defer rt.Close()

			run, err := rt.Execute(cmd.Context(), args[0], values, state, runtime.RunOptions{Realtime: !noRealtime})
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", success("Started execution"), bold(run.ExecutionID))
			return a.follow(cmd, rt, run)
		},
	}

	inputs.register(cmd)
	cmd.Flags().StringVar(&initialState, "initial-state", "", "Initial flow state as a JSON object")
	cmd.Flags().StringVar(&mode, "mode", "", "Event channel: websocket, sse, redis or poll (default from config)")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Watch the execution until it finishes")
	cmd.Flags().BoolVar(&noRealtime, "no-realtime", false, "Poll instead of using the live channel")
	return cmd
}

func (a *app) flowStepsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "steps [flow-id]",
		Short: "List the steps of a flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			steps, err := c.Flows.Steps(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), steps)
			}
			rows := make([][]string, 0, len(steps))
			for _, s := range steps {
				rows = append(rows, []string{strconv.Itoa(s.Order), s.ID, s.Name, s.StepType})
			}
			return printTable(cmd.OutOrStdout(), []string{"ORDER", "ID", "NAME", "TYPE"}, rows)
		},
	}
}

func (a *app) flowApplyCmd() *cobra.Command {
	var (
		file   string
		flowID string
		dryRun bool
	)

	cmd := &cobra.Command{
		Use:   "apply -f flow.yaml",
		Short: "Create or replace a flow from a YAML definition",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			def, err := loader.LoadFile(file)
			if err != nil {
				return err
			}
			steps := def.Steps()

			if dryRun {
				if a.jsonOut {
					return printJSON(cmd.OutOrStdout(), steps)
				}
				rows := make([][]string, 0, len(steps))
				for _, s := range steps {
					rows = append(rows, []string{strconv.Itoa(s.Order), s.Name, s.StepType, s.CrewID})
				}
				return printTable(cmd.OutOrStdout(), []string{"ORDER", "NAME", "TYPE", "CREW"}, rows)
			}

			c, err := a.backend()
			if err != nil {
				return err
			}
			flow, err := loader.Apply(cmd.Context(), c.Flows, def, flowID)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), flow)
			}
			verb := "Created"
			if flowID != "" {
				verb = "Updated"
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s flow %s (%d steps, %d connections)\n",
				success(verb), bold(flow.ID), len(flow.Steps), len(flow.Connections))
			return nil
		},
	}

	cmd.Flags().StringVarP(&file, "file", "f", "", "Flow definition (YAML)")
	cmd.Flags().StringVar(&flowID, "id", "", "Replace the graph of an existing flow")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Validate and show the steps without sending")
	_ = cmd.MarkFlagRequired("file")
	return cmd
}

func (a *app) crewsCmd() *cobra.Command {
	return resourceCmd(a, resourceSpec[models.Crew]{
		use:       "crews",
		short:     "Manage and kick off crews",
		resource:  func(c *client.Client) *client.Resource[models.Crew] { return c.Crews.Resource },
		duplicate: func(c *client.Client) *client.DuplicableResource[models.Crew] { return c.Crews.DuplicableResource },
		header:    []string{"ID", "NAME", "PROCESS", "AGENTS", "TASKS", "DEPLOYED"},
		row: func(cr models.Crew) []string {
			return []string{cr.ID, cr.Name, cr.Process, strconv.Itoa(len(cr.AgentIDs)), strconv.Itoa(len(cr.TaskIDs)), yesNo(cr.IsDeployed)}
		},
		fields: func(cr models.Crew) [][2]string {
			return [][2]string{
				{"ID", cr.ID}, {"Name", bold(cr.Name)}, {"Description", cr.Description}, {"Process", cr.Process},
				{"Agents", strconv.Itoa(len(cr.AgentIDs))}, {"Tasks", strconv.Itoa(len(cr.TaskIDs))},
				{"Memory", yesNo(cr.MemoryEnabled)}, {"Updated", formatTime(cr.UpdatedAt)},
			}
		},
	}, a.crewKickoffCmd(), a.crewInputsCmd(), a.crewDeployCmd())
}

func (a *app) crewKickoffCmd() *cobra.Command {
	var (
		inputs inputFlags
		sync   bool
		stream bool
		follow bool
	)

	cmd := &cobra.Command{
		Use:   "kickoff [crew-id]",
		Short: "Start a crew execution",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			values, err := inputs.values()
			if err != nil {
				return err
			}
			c, err := a.backend()
			if err != nil {
				return err
			}

			if stream {
				return c.Crews.KickoffStream(cmd.Context(), args[0], func(ev events.Event) {
					printEvent(cmd, ev)
				})
			}

			resp, err := c.Crews.Kickoff(cmd.Context(), args[0], values, !sync)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", success("Started execution"), bold(resp.ExecutionID), colorStatus(resp.Status))
			if !follow {
				return nil
			}

			rt, err := a.runtime(c, "")
			if err != nil {
				return err
			}
			defer rt.Close()
			run, err := rt.Attach(cmd.Context(), resp.ExecutionID, runtime.RunOptions{Realtime: true})
			if err != nil {
				return err
			}
			return a.follow(cmd, rt, run)
		},
	}

	inputs.register(cmd)
	cmd.Flags().BoolVar(&sync, "sync", false, "Wait for the crew on the backend before returning")
	cmd.Flags().BoolVar(&stream, "stream", false, "Run the crew over the kickoff event stream")
	cmd.Flags().BoolVarP(&follow, "follow", "f", false, "Watch the execution until it finishes")
	return cmd
}

func (a *app) crewInputsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inputs [crew-id]",
		Short: "List the input placeholders a crew expects",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			names, err := c.Crews.Inputs(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), names)
			}
			for _, n := range names {
				fmt.Fprintln(cmd.OutOrStdout(), n)
			}
			return nil
		},
	}
}

// printEvent writes one streamed event as a log line
func printEvent(cmd *cobra.Command, ev events.Event) {
	printLog(cmd, monitor.NewLogEntry(ev))
}

func printLog(cmd *cobra.Command, e monitor.LogEntry) {
	fmt.Fprintf(cmd.OutOrStdout(), "%s %-8s %s\n", faint(clock(e.Timestamp)), colorLevel(e.Level), e.Message)
}

func (a *app) flowDisconnectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "disconnect [flow-id] [connection-id]",
		Short: "Remove a connection between two steps",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			flow, err := c.Flows.DeleteConnection(cmd.Context(), args[0], args[1])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%d connections left)\n", success("Disconnected"), args[1], len(flow.Connections))
			return nil
		},
	}
}

func (a *app) crewDeployCmd() *cobra.Command {
	var environment string
	cmd := &cobra.Command{
		Use:   "deploy [crew-id]",
		Short: "Deploy a crew to an environment",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			resp, err := c.Crews.Deploy(cmd.Context(), args[0], environment)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintln(cmd.OutOrStdout(), success(resp.Message))
			return nil
		},
	}
	cmd.Flags().StringVar(&environment, "env", client.DefaultEnvironment, "Target environment")
	return cmd
}
