package main

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"kanban-board/board"
	"kanban-board/domain"
	"kanban-board/drag"
	"kanban-board/nav"
)

var errNotLoggedIn = errors.New("not logged in; run `board login <username>` first")

var loginCmd = &cobra.Command{
	Use:   "login <username>",
	Short: "Log in as username",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := current.store.Login(cmd.Context(), args[0]); err != nil {
			return err
		}
		u, _ := current.store.User()
		fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s\n", u.Username)
		return nil
	},
}

var logoutCmd = &cobra.Command{
	Use:   "logout",
	Short: "Log out and forget the board",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		return current.store.Logout(cmd.Context())
	},
}

var whoamiCmd = &cobra.Command{
	Use:   "whoami",
	Short: "Print the logged in user",
	Args:  cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		u, ok := current.store.User()
		if !ok {
			return errNotLoggedIn
		}
		fmt.Fprintln(cmd.OutOrStdout(), u.Username)
		return nil
	},
}

var listCmd = &cobra.Command{
	Use:     "ls",
	Aliases: []string{"list"},
	Short:   "List tasks by column",
	Args:    cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(cmd); err != nil {
			return err
		}
		out := cmd.OutOrStdout()
		for _, status := range domain.Statuses {
			tasks := current.store.TasksByStatus(status)
			fmt.Fprintf(out, "%s (%d)\n", status.Label(), len(tasks))
			for _, t := range tasks {
				fmt.Fprintf(out, "  %s  %s\n", t.ID, t.Title)
			}
		}
		return nil
	},
}

var addStatus string

var addCmd = &cobra.Command{
	Use:   "add <title>",
	Short: "Add a task",
	Args:  cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		status, err := parseStatus(addStatus)
		if err != nil {
			return err
		}
		if err := requireBoard(cmd); err != nil {
			return err
		}
		title := strings.Join(args, " ")
		switch current.store.AddTask(cmd.Context(), title, status) {
		case board.Skipped:
			return domain.ErrEmptyTitle
		case board.RolledBack:
			return errors.New(strings.ToLower(board.MsgAddFailed))
		}
		tasks := current.store.Tasks()
		t := tasks[len(tasks)-1]
		fmt.Fprintf(cmd.OutOrStdout(), "Added %s  %s (%s)\n", t.ID, t.Title, t.Status.Label())
		return nil
	},
}

var moveCmd = &cobra.Command{
	Use:   "mv <id> <status|task-id>",
	Short: "Move a task to a column, or to the column of another task",
	Args:  cobra.ExactArgs(2),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(cmd); err != nil {
			return err
		}
		target := args[1]
		if s, err := parseStatus(target); err == nil {
			target = string(s)
		}
		res, out := drag.New(current.store).WithLogger(current.logger).End(cmd.Context(), args[0], target)
		switch {
		case res == drag.NoTarget:
			return fmt.Errorf("unknown task or column: %s %s", args[0], args[1])
		case res == drag.SameColumn:
			fmt.Fprintln(cmd.OutOrStdout(), "Already there")
			return nil
		case out == board.RolledBack:
			return errors.New(strings.ToLower(board.MsgUpdateFailed))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Moved %s\n", args[0])
		return nil
	},
}

var removeCmd = &cobra.Command{
	Use:     "rm <id>",
	Aliases: []string{"delete"},
	Short:   "Delete a task",
	Args:    cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := requireBoard(cmd); err != nil {
			return err
		}
		switch current.store.DeleteTask(cmd.Context(), args[0]) {
		case board.Skipped:
			return fmt.Errorf("unknown task: %s", args[0])
		case board.RolledBack:
			return errors.New(strings.ToLower(board.MsgDeleteFailed))
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Deleted %s\n", args[0])
		return nil
	},
}

func init() {
	addCmd.Flags().StringVarP(&addStatus, "status", "s", string(domain.StatusTodo), "column: todo, in-progress or done")
}

// requireBoard applies the board route guard and loads the tasks.
func requireBoard(cmd *cobra.Command) error {
	_, loggedIn := current.store.User()
	if nav.Resolve(nav.Board, loggedIn) != nav.Board {
		return errNotLoggedIn
	}
	current.store.LoadTasks(cmd.Context())
	if st := current.store.State(); st.Error != "" {
		return errors.New(strings.ToLower(board.MsgLoadFailed))
	}
	return nil
}

// parseStatus accepts status values in any case, with - or space for _.
func parseStatus(s string) (domain.Status, error) {
	norm := strings.ToUpper(strings.NewReplacer("-", "_", " ", "_").Replace(strings.TrimSpace(s)))
	return domain.ParseStatus(norm)
}
