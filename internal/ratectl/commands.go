package ratectl

import (
	"bufio"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"

	"branchrate/internal/branch/directory"
	"branchrate/internal/branch/models"
	"branchrate/internal/propagation"
	dErrors "branchrate/pkg/domain-errors"
)

func newLoginCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "login <branchId>",
		Short: "Associate this user with a branch",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := models.ParseBranchID(args[0])
			if err != nil {
				return err
			}
			dir, err := app.loadDirectory(cmd, app.client())
			if err != nil {
				return err
			}
			branch, ok := dir.GetByID(id)
			if !ok {
				return dErrors.New(dErrors.CodeBranchNotFound, "invalid branch id")
			}
			s := &Session{
				ID:         uuid.NewString(),
				BranchID:   branch.ID,
				BranchName: branch.Name,
				LoggedInAt: time.Now().UTC(),
			}
			if err := SaveSession(app.Home, s); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Logged in as %s (%s, %s)\n", branch.Name, branch.ID, branch.Type)
			return nil
		},
	}
}

func newLogoutCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "logout",
		Short: "Forget the current branch association",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := ClearSession(app.Home); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "Logged out")
			return nil
		},
	}
}

func newWhoamiCmd(app *App) *cobra.Command {
	return &cobra.Command{
		Use:   "whoami",
		Short: "Show the logged-in branch and its reach",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := LoadSession(app.Home)
			if err != nil {
				return err
			}
			dir, err := app.loadDirectory(cmd, app.client())
			if err != nil {
				return err
			}
			branch, ok := dir.GetByID(s.BranchID)
			if !ok {
				return dErrors.New(dErrors.CodeBranchNotFound, "session branch "+s.BranchID.String()+" no longer exists")
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Branch:      %s (%s)\n", branch.Name, branch.ID)
			fmt.Fprintf(out, "Type:        %s\n", branch.Type)
			fmt.Fprintf(out, "Rate:        %s\n", branch.Rate.Display())
			fmt.Fprintf(out, "Children:    %d\n", len(dir.ChildrenOf(branch.ID)))
			fmt.Fprintf(out, "Descendants: %d\n", len(dir.DescendantsOf(branch.ID)))
			return nil
		},
	}
}

func newBranchesCmd(app *App) *cobra.Command {
	var children, descendants, siblings, name string
	var all bool
	cmd := &cobra.Command{
		Use:   "branches",
		Short: "List branches",
		Long: `List branches. When logged in, the default is the branches related to
the session branch: a parent sees its children, a child its parent and
siblings. Without a session, or with --all, every branch is listed.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			dir, err := app.loadDirectory(cmd, app.client())
			if err != nil {
				return err
			}
			var list []models.Branch
			switch {
			case children != "":
				list = dir.ChildrenOf(models.BranchID(children))
			case descendants != "":
				list = dir.DescendantsOf(models.BranchID(descendants))
			case siblings != "":
				list = dir.SiblingsOf(models.BranchID(siblings))
			case all:
				list = dir.GetAll()
			default:
				if s, err := LoadSession(app.Home); err == nil {
					list = dir.RelatedTo(s.BranchID)
				} else {
					list = dir.GetAll()
				}
			}
			printBranches(cmd.OutOrStdout(), directory.FilterByName(list, name))
			return nil
		},
	}
	cmd.Flags().StringVar(&children, "children", "", "List the direct children of a branch")
	cmd.Flags().StringVar(&descendants, "descendants", "", "List every descendant of a branch")
	cmd.Flags().StringVar(&siblings, "siblings", "", "List the siblings of a branch")
	cmd.Flags().StringVar(&name, "name", "", "Filter by case-insensitive name substring")
	cmd.Flags().BoolVar(&all, "all", false, "List every branch")
	cmd.MarkFlagsMutuallyExclusive("children", "descendants", "siblings", "all")
	return cmd
}

func newRateCmd(app *App) *cobra.Command {
	rate := &cobra.Command{
		Use:   "rate",
		Short: "Manage branch rates",
	}
	var yes bool
	set := &cobra.Command{
		Use:   "set <branchId> <rate>",
		Short: "Preview and apply a rate to a branch and its descendants",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return app.runRateSet(cmd, models.BranchID(strings.TrimSpace(args[0])), args[1], yes)
		},
	}
	set.Flags().BoolVarP(&yes, "yes", "y", false, "Apply without asking for confirmation")
	rate.AddCommand(set)
	return rate
}

func (a *App) runRateSet(cmd *cobra.Command, branchID models.BranchID, raw string, yes bool) error {
	s, err := LoadSession(a.Home)
	if err != nil {
		return err
	}
	c := a.client()
	dir, err := a.loadDirectory(cmd, c)
	if err != nil {
		return err
	}
	engine, err := a.engine(dir, c)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	caller := propagation.Caller{SessionID: s.ID, BranchID: s.BranchID}
	attempt, err := engine.ProposeRate(ctx, caller, branchID, raw)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	printPreview(out, attempt)
	in := bufio.NewReader(cmd.InOrStdin())
	if !yes && !confirm(in, out, "Apply this change?") {
		_ = engine.Cancel(ctx, caller, branchID)
		fmt.Fprintln(out, "Cancelled, nothing was written")
		return nil
	}

	for {
		applied, err := engine.ConfirmUpdate(ctx, caller, branchID)
		if err == nil {
			fmt.Fprintf(out, "Applied %s to %d branches\n", applied.Rate.Display(), applied.ChangeSet.Len())
			return nil
		}
		if !dErrors.HasCode(err, dErrors.CodeUpdateFailed) || yes {
			return err
		}
		fmt.Fprintf(out, "Update failed: %s\n", dErrors.MessageOf(err))
		if !confirm(in, out, "Retry?") {
			_ = engine.Cancel(ctx, caller, branchID)
			return err
		}
	}
}

func confirm(in *bufio.Reader, out io.Writer, prompt string) bool {
	fmt.Fprintf(out, "%s [y/N]: ", prompt)
	line, err := in.ReadString('\n')
	if err != nil && line == "" {
		fmt.Fprintln(out)
		return false
	}
	switch strings.ToLower(strings.TrimSpace(line)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}

func printBranches(w io.Writer, branches []models.Branch) {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tTYPE\tPARENT\tRATE")
	for _, b := range branches {
		parent := "-"
		if b.ParentID != nil {
			parent = b.ParentID.String()
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", b.ID, b.Name, b.Type, parent, b.Rate.Display())
	}
	_ = tw.Flush()
}

func printPreview(w io.Writer, a *propagation.Attempt) {
	fmt.Fprintf(w, "Setting %s on %s affects %d branches (%d change):\n",
		a.Rate.Display(), a.BranchID, a.ChangeSet.Len(), a.ChangeSet.Changed())
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "ID\tNAME\tCURRENT\tNEW")
	for _, e := range a.ChangeSet.Entries {
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\n", e.BranchID, e.Name, e.Current.Display(), e.Prospective.Display())
	}
	_ = tw.Flush()
}
