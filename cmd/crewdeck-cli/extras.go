package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/spf13/cobra"

	"github.com/tcmartin/crewdeck/pkg/client"
	"github.com/tcmartin/crewdeck/pkg/models"
)

func (a *app) knowledgeSearchCmd() *cobra.Command {
	var req models.KnowledgeSearchRequest
	cmd := &cobra.Command{
		Use:   "search [query]",
		Short: "Semantic search across knowledge sources",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			req.Query = args[0]
			c, err := a.backend()
			if err != nil {
				return err
			}
			results, err := c.Knowledge.Search(cmd.Context(), req)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), results)
			}
			if len(results) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), faint("no matches"))
				return nil
			}
			for i, r := range results {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", bold(strconv.Itoa(i+1)+"."), accent(r.SourceName), faint(fmt.Sprintf("%.3f", r.Score)))
				fmt.Fprintf(cmd.OutOrStdout(), "   %s\n", truncate(r.Chunk.Content, 200))
			}
			return nil
		},
	}
	cmd.Flags().IntVar(&req.TopK, "top-k", client.DefaultTopK, "Number of results")
	cmd.Flags().StringSliceVar(&req.SourceIDs, "source", nil, "Restrict to these source IDs")
	return cmd
}

func (a *app) knowledgeReprocessCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reprocess [id]",
		Short: "Re-chunk and re-embed a knowledge source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			src, err := c.Knowledge.Reprocess(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", success("Reprocessing"), src.Name, src.Status)
			return nil
		},
	}
}

func (a *app) knowledgeUploadCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "upload [id] [file]",
		Short: "Upload a file into a knowledge source",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[1])
			if err != nil {
				return fmt.Errorf("failed to open %s: %w", args[1], err)
			}
			defer f.Close()

			c, err := a.backend()
			if err != nil {
				return err
			}
			src, err := c.Knowledge.Upload(cmd.Context(), args[0], filepath.Base(args[1]), f)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), src)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s (%s)\n", success("Uploaded"), filepath.Base(args[1]), src.Status)
			return nil
		},
	}
}

func (a *app) knowledgeChunksCmd() *cobra.Command {
	var skip, limit int
	cmd := &cobra.Command{
		Use:   "chunks [id]",
		Short: "Show the indexed chunks of a knowledge source",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			page, err := c.Knowledge.Chunks(cmd.Context(), args[0], skip, limit)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), page)
			}
			for i, chunk := range page.Items {
				fmt.Fprintf(cmd.OutOrStdout(), "%s %s\n", bold(strconv.Itoa(skip+i+1)+"."), truncate(chunk.Content, 200))
			}
			fmt.Fprintln(cmd.OutOrStdout(), faint(fmt.Sprintf("%d of %d", len(page.Items), page.Total)))
			return nil
		},
	}
	cmd.Flags().IntVar(&skip, "skip", 0, "Chunks to skip")
	cmd.Flags().IntVar(&limit, "limit", client.DefaultChunkLimit, "Chunks to show")
	return cmd
}

func (a *app) triggersScheduleCmd() *cobra.Command {
	var (
		trigger models.Trigger
		cron    string
		dryRun  bool
	)
	cmd := &cobra.Command{
		Use:   "schedule [name]",
		Short: "Create a schedule trigger for a flow or crew",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			switch {
			case trigger.FlowID != "" && trigger.CrewID != "":
				return errors.New("use either --flow or --crew, not both")
			case trigger.FlowID != "":
				trigger.TargetType = "flow"
			case trigger.CrewID != "":
				trigger.TargetType = "crew"
			default:
				return errors.New("one of --flow or --crew is required")
			}
			if err := client.ValidateCron(cron); err != nil {
				return err
			}

			trigger.Name = args[0]
			trigger.TriggerType = models.TriggerSchedule
			trigger.Config = map[string]interface{}{"cron": cron}
			trigger.IsActive = true

			if err := printNextRuns(cmd, cron, 3); err != nil {
				return err
			}
			if dryRun {
				return nil
			}

			c, err := a.backend()
			if err != nil {
				return err
			}
			created, err := c.Triggers.Create(cmd.Context(), trigger)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), created)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", success("Created trigger"), bold(created.Name), faint(created.ID))
			return nil
		},
	}
	cmd.Flags().StringVar(&cron, "cron", "", "Cron expression, e.g. \"0 9 * * 1-5\" or @hourly")
	cmd.Flags().StringVar(&trigger.FlowID, "flow", "", "Flow to run")
	cmd.Flags().StringVar(&trigger.CrewID, "crew", "", "Crew to run")
	cmd.Flags().StringVar(&trigger.Description, "description", "", "Description")
	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "Only validate and preview the schedule")
	_ = cmd.MarkFlagRequired("cron")
	return cmd
}

func (a *app) triggersNextCmd() *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:   "next [cron]",
		Short: "Preview when a cron expression fires",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return printNextRuns(cmd, args[0], n)
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 5, "Number of runs to show")
	return cmd
}

func printNextRuns(cmd *cobra.Command, expr string, n int) error {
	runs, err := client.NextRuns(expr, time.Now(), n)
	if err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), faint("next runs:"))
	for _, t := range runs {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s\n", formatTime(t))
	}
	return nil
}

func (a *app) templateCategoriesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "categories",
		Short: "List template categories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			cats, err := c.Templates.Categories(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), cats)
			}
			rows := make([][]string, 0, len(cats))
			for _, cat := range cats {
				rows = append(rows, []string{cat.ID, cat.Slug, cat.Name, truncate(cat.Description, 50)})
			}
			return printTable(cmd.OutOrStdout(), []string{"ID", "SLUG", "NAME", "DESCRIPTION"}, rows)
		},
	}
}

func (a *app) templateMineCmd() *cobra.Command {
	var opts models.ListOptions
	cmd := &cobra.Command{
		Use:   "mine",
		Short: "List templates you published",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			page, err := c.Templates.Mine(cmd.Context(), opts)
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), page)
			}
			rows := make([][]string, 0, len(page.Items))
			for _, t := range page.Items {
				rows = append(rows, []string{t.ID, t.Name, t.TemplateType, strconv.Itoa(t.Downloads)})
			}
			return printTable(cmd.OutOrStdout(), []string{"ID", "NAME", "TYPE", "DOWNLOADS"}, rows)
		},
	}
	cmd.Flags().IntVar(&opts.Page, "page", 1, "Page number")
	cmd.Flags().IntVar(&opts.PageSize, "page-size", 20, "Items per page")
	return cmd
}

func (a *app) templateUseCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "use [id]",
		Short: "Create an agent, crew or flow from a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			resp, err := c.Templates.Use(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), resp)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %s %s\n", success("Created "+resp.Type), bold(resp.ID), faint(resp.Message))
			return nil
		},
	}
}

func (a *app) templateLikeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "like [id]",
		Short: "Like or unlike a template",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			msg, err := c.Templates.Like(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), success(msg))
			return nil
		},
	}
}

func (a *app) templateRateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rate [id] [1-5]",
		Short: "Rate a template",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			rating, err := strconv.Atoi(args[1])
			if err != nil {
				return fmt.Errorf("rating must be a number: %w", err)
			}
			c, err := a.backend()
			if err != nil {
				return err
			}
			msg, err := c.Templates.Rate(cmd.Context(), args[0], rating)
			if err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), success(msg))
			return nil
		},
	}
}

func (a *app) meCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "me",
		Short: "Show the authenticated user",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := a.backend()
			if err != nil {
				return err
			}
			user, err := c.Users.Me(cmd.Context())
			if err != nil {
				return err
			}
			if a.jsonOut {
				return printJSON(cmd.OutOrStdout(), user)
			}
			expiry := ""
			if exp, err := client.TokenExpiry(c.Token()); err == nil {
				expiry = formatTime(exp)
				if exp.Before(time.Now()) {
					expiry = failure(expiry + " (expired)")
				}
			}
			return printFields(cmd.OutOrStdout(), [][2]string{
				{"ID", user.ID},
				{"Email", bold(user.Email)},
				{"Name", user.FullName},
				{"Role", user.Role},
				{"Active", yesNo(user.IsActive)},
				{"Last login", formatTimePtr(user.LastLoginAt)},
				{"Token expires", expiry},
			})
		},
	}
}
