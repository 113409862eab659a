package main

import (
	"errors"
	"fmt"
	"strconv"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/s1natex/todo-api-GO/internal/console"
	"github.com/s1natex/todo-api-GO/internal/tasks"
)

func (a *app) consoleCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "console",
		Short: "Interactive menu over the configured store",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConsole(cmd, false, "Direct Client Version")
		},
	}
}

func (a *app) remoteCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "remote",
		Short: "Interactive menu over the todo API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return a.runConsole(cmd, true, "Api Client Version")
		},
	}
}

func (a *app) runConsole(cmd *cobra.Command, remote bool, title string) error {
	b, done, err := a.backend(cmd.Context(), remote)
	if err != nil {
		return err
	}
	defer done()
	return console.New(b, title, cmd.InOrStdin(), cmd.OutOrStdout()).Run(cmd.Context())
}

func (a *app) listCmd() *cobra.Command {
	return &cobra.Command{
		Use:     "list",
		Aliases: []string{"ls"},
		Short:   "List todo items",
		Args:    cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			b, done, err := a.backend(cmd.Context(), a.remote)
			if err != nil {
				return err
			}
			defer done()

			items, err := b.List(cmd.Context())
			if err != nil {
				return err
			}
			if len(items) == 0 {
				fmt.Fprintln(cmd.OutOrStdout(), "No todo items found.")
				return nil
			}

			now := time.Now()
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 4, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTATUS\tCREATED\tDESCRIPTION")
			for _, t := range items {
				status := "pending"
				if t.IsComplete {
					status = "complete"
				}
				fmt.Fprintf(tw, "%d\t%s\t%s\t%s\n", t.ID, status, humanize.RelTime(t.CreatedAt, now, "ago", "from now"), t.Description)
			}
			return tw.Flush()
		},
	}
}

func (a *app) addCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "add <description>...",
		Short: "Add a todo item",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			b, done, err := a.backend(cmd.Context(), a.remote)
			if err != nil {
				return err
			}
			defer done()

			t, err := b.Create(cmd.Context(), strings.Join(args, " "))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "added %d\n", t.ID)
			return nil
		},
	}
}

func (a *app) editCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "edit <id> <description>...",
		Short: "Replace the description of a todo item",
		Args:  cobra.MinimumNArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, done, err := a.backend(cmd.Context(), a.remote)
			if err != nil {
				return err
			}
			defer done()

			if err := b.Update(cmd.Context(), id, strings.Join(args[1:], " ")); err != nil {
				return notFound(id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "updated %d\n", id)
			return nil
		},
	}
}

func (a *app) doneCmd(isComplete bool) *cobra.Command {
	use, short, verb := "done <id>", "Mark a todo item complete", "completed"
	if !isComplete {
		use, short, verb = "undo <id>", "Mark a todo item pending", "reopened"
	}
	return &cobra.Command{
		Use:   use,
		Short: short,
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, done, err := a.backend(cmd.Context(), a.remote)
			if err != nil {
				return err
			}
			defer done()

			if err := b.SetComplete(cmd.Context(), id, isComplete); err != nil {
				return notFound(id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s %d\n", verb, id)
			return nil
		},
	}
}

func (a *app) rmCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "rm <id>",
		Short: "Delete a todo item",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseID(args[0])
			if err != nil {
				return err
			}
			b, done, err := a.backend(cmd.Context(), a.remote)
			if err != nil {
				return err
			}
			defer done()

			if err := b.Delete(cmd.Context(), id); err != nil {
				return notFound(id, err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "deleted %d\n", id)
			return nil
		},
	}
}

func parseID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid id %q", s)
	}
	return id, nil
}

func notFound(id int64, err error) error {
	if errors.Is(err, tasks.ErrNotFound) {
		return fmt.Errorf("task %d not found", id)
	}
	return err
}

func (a *app) checkCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "check",
		Short: "Report records the configured store cannot read",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			repo, err := tasks.OpenRepository(cmd.Context(), a.repoOptions(), a.logger)
			if err != nil {
				return err
			}
			defer repo.Close()

			rep, ok := repo.(tasks.Reporter)
			if !ok {
				fmt.Fprintln(cmd.OutOrStdout(), "ok")
				return nil
			}
			items, bad, err := rep.LoadReport(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range bad {
				fmt.Fprintf(cmd.OutOrStdout(), "line %d: %v\n", m.Line, m.Err)
			}
			if len(bad) > 0 {
				return fmt.Errorf("%d unreadable records, %d readable", len(bad), len(items))
			}
			fmt.Fprintf(cmd.OutOrStdout(), "ok: %d items\n", len(items))
			return nil
		},
	}
}
