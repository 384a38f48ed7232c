package main

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/tcmartin/crewdeck/pkg/client"
	"github.com/tcmartin/crewdeck/pkg/models"
)

// resourceSpec describes a REST collection for the generic list/get/delete commands
type resourceSpec[T any] struct {
	use   string
	short string

	resource  func(c *client.Client) *client.Resource[T]
	duplicate func(c *client.Client) *client.DuplicableResource[T]

	header []string
	row    func(T) []string
	fields func(T) [][2]string
}

// resourceCmd builds "<use> list|get|delete[|duplicate]" plus any extra subcommands
func resourceCmd[T any](a *app, spec resourceSpec[T], extra ...*cobra.Command) *cobra.Command {
	cmd := &cobra.Command{
		Use:   spec.use,
		Short: spec.short,
	}

	var opts models.ListOptions
	listCmd := &cobra.Command{
		Use:   "list",
		Short: "List " + spec.use,
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			page, err := spec.resource(c).List(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), page)
			}
			rows := make([][]string, 0, len(page.Items))
			for _, item := range page.Items {
				rows = append(rows, spec.row(item))
			}
			if err := printTable(cmd.OutOrStdout(), spec.header, rows); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), faint(fmt.Sprintf("%d of %d (page %d)", len(page.Items), page.Total, page.Page)))
			return nil
		},
	}
	listCmd.Flags().IntVar(&opts.Page, "page", 1, "Page number")
	listCmd.Flags().IntVar(&opts.PageSize, "page-size", 20, "Items per page")
	listCmd.Flags().StringVar(&opts.Search, "search", "", "Search text")
	listCmd.Flags().StringToStringVar(&opts.Filters, "filter", nil, "Resource filter, e.g. --filter status=failed")

	getCmd := &cobra.Command{
		Use:   "get [id]",
		Short: "Show one item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			item, err := spec.resource(c).Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut || spec.fields == nil {
				return printJSON(cmd.OutOrStdout(), item)
			}
			return printFields(cmd.OutOrStdout(), spec.fields(*item))
		},
	}

	deleteCmd := &cobra.Command{
		Use:   "delete [id]",
		Short: "Delete an item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			if err := spec.resource(c).Delete(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", success("Deleted"), args[0])
			return nil
		},
	}

	cmd.AddCommand(listCmd, getCmd, deleteCmd)

	if spec.duplicate != nil {
		cmd.AddCommand(&cobra.Command{
			Use:   "duplicate [id]",
			Short: "Copy an item",
			Args:  cobra.ExactArgs(1),
			RunE: func(cmd *cobra.Command, args []string) error {
				c, err := a.backend()
				if err != nil {
					return err
				}
				item, err := spec.duplicate(c).Duplicate(cmd.Context(), args[0])
				if err != nil {
					return err
				}
				if a.jsonOut {
					return printJSON(cmd.OutOrStdout(), item)
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", success("Duplicated"), args[0])
				if spec.fields != nil {
					return printFields(cmd.OutOrStdout(), spec.fields(*item))
				}
				return nil
			},
		})
	}

	cmd.AddCommand(extra...)
	return cmd
}

func (a *app) agentsCmd() *cobra.Command {
	return resourceCmd(a, resourceSpec[models.Agent]{
		use:       "agents",
		short:     "Manage agents",
		resource:  func(c *client.Client) *client.Resource[models.Agent] { return c.Agents.Resource },
		duplicate: func(c *client.Client) *client.DuplicableResource[models.Agent] { return c.Agents },
		header:    []string{"ID", "NAME", "ROLE", "MODEL", "UPDATED"},
		row: func(ag models.Agent) []string {
			return []string{ag.ID, ag.Name, truncate(ag.Role, 30), ag.LLMModel, formatTime(ag.UpdatedAt)}
		},
		fields: func(ag models.Agent) [][2]string {
			return [][2]string{
				{"ID", ag.ID}, {"Name", bold(ag.Name)}, {"Role", ag.Role}, {"Goal", ag.Goal},
				{"Backstory", ag.Backstory}, {"Provider", ag.LLMProvider}, {"Model", ag.LLMModel},
				{"Delegation", yesNo(ag.AllowDelegation)}, {"Memory", yesNo(ag.MemoryEnabled)},
				{"Updated", formatTime(ag.UpdatedAt)},
			}
		},
	})
}

func (a *app) tasksCmd() *cobra.Command {
	return resourceCmd(a, resourceSpec[models.Task]{
		use:       "tasks",
		short:     "Manage tasks",
		resource:  func(c *client.Client) *client.Resource[models.Task] { return c.Tasks.Resource },
		duplicate: func(c *client.Client) *client.DuplicableResource[models.Task] { return c.Tasks },
		header:    []string{"ID", "NAME", "AGENT", "HUMAN INPUT", "UPDATED"},
		row: func(t models.Task) []string {
			return []string{t.ID, t.Name, t.AgentID, yesNo(t.HumanInput), formatTime(t.UpdatedAt)}
		},
		fields: func(t models.Task) [][2]string {
			return [][2]string{
				{"ID", t.ID}, {"Name", bold(t.Name)}, {"Description", t.Description},
				{"Expected output", t.ExpectedOutput}, {"Agent", t.AgentID},
				{"Async", yesNo(t.AsyncExecution)}, {"Human input", yesNo(t.HumanInput)},
				{"Updated", formatTime(t.UpdatedAt)},
			}
		},
	})
}

func (a *app) knowledgeCmd() *cobra.Command {
	return resourceCmd(a, resourceSpec[models.KnowledgeSource]{
		use:      "knowledge",
		short:    "Manage knowledge sources",
		resource: func(c *client.Client) *client.Resource[models.KnowledgeSource] { return c.Knowledge.Resource },
		header:   []string{"ID", "NAME", "TYPE", "STATUS", "CHUNKS"},
		row: func(k models.KnowledgeSource) []string {
			return []string{k.ID, k.Name, k.SourceType, k.Status, strconv.Itoa(k.ChunkCount)}
		},
		fields: func(k models.KnowledgeSource) [][2]string {
			return [][2]string{
				{"ID", k.ID}, {"Name", bold(k.Name)}, {"Type", k.SourceType}, {"Status", k.Status},
				{"File", k.FileName}, {"URL", k.URL}, {"Chunks", strconv.Itoa(k.ChunkCount)},
				{"Embedding model", k.EmbeddingModel}, {"Error", k.ErrorMessage},
			}
		},
	}, a.knowledgeSearchCmd(), a.knowledgeReprocessCmd(), a.knowledgeUploadCmd(), a.knowledgeChunksCmd())
}

func (a *app) triggersCmd() *cobra.Command {
	return resourceCmd(a, resourceSpec[models.Trigger]{
		use:      "triggers",
		short:    "Manage triggers",
		resource: func(c *client.Client) *client.Resource[models.Trigger] { return c.Triggers.Resource },
		header:   []string{"ID", "NAME", "TYPE", "TARGET", "ACTIVE", "COUNT"},
		row: func(t models.Trigger) []string {
			return []string{t.ID, t.Name, t.TriggerType, triggerTarget(t), yesNo(t.IsActive), strconv.Itoa(t.TriggerCount)}
		},
		fields: func(t models.Trigger) [][2]string {
			cron, _ := t.Config["cron"].(string)
			return [][2]string{
				{"ID", t.ID}, {"Name", bold(t.Name)}, {"Type", t.TriggerType}, {"Target", triggerTarget(t)},
				{"Cron", cron}, {"Webhook", t.WebhookURL}, {"Active", yesNo(t.IsActive)},
				{"Last triggered", formatTimePtr(t.LastTriggeredAt)}, {"Count", strconv.Itoa(t.TriggerCount)},
			}
		},
	}, a.triggersScheduleCmd(), a.triggersNextCmd())
}

func triggerTarget(t models.Trigger) string {
	if t.FlowID != "" {
		return "flow " + t.FlowID
	}
	if t.CrewID != "" {
		return "crew " + t.CrewID
	}
	return t.TargetType
}

func (a *app) templatesCmd() *cobra.Command {
	return resourceCmd(a, resourceSpec[models.Template]{
		use:      "templates",
		short:    "Browse marketplace templates",
		resource: func(c *client.Client) *client.Resource[models.Template] { return c.Templates.Resource },
		header:   []string{"ID", "NAME", "TYPE", "RATING", "DOWNLOADS"},
		row: func(t models.Template) []string {
			return []string{t.ID, t.Name, t.TemplateType, fmt.Sprintf("%.1f (%d)", t.Rating, t.RatingCount), strconv.Itoa(t.Downloads)}
		},
		fields: func(t models.Template) [][2]string {
			return [][2]string{
				{"ID", t.ID}, {"Name", bold(t.Name)}, {"Type", t.TemplateType}, {"Description", t.Description},
				{"Rating", fmt.Sprintf("%.1f (%d ratings)", t.Rating, t.RatingCount)},
				{"Likes", strconv.Itoa(t.Likes)}, {"Downloads", strconv.Itoa(t.Downloads)},
				{"Free", yesNo(t.IsFree)},
			}
		},
	}, a.templateCategoriesCmd(), a.templateMineCmd(), a.templateUseCmd(), a.templateLikeCmd(), a.templateRateCmd())
}
