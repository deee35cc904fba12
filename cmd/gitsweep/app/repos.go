package app

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/olekukonko/tablewriter/tw"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/sakif/gitsweep/internal/apperror"
	"github.com/sakif/gitsweep/internal/client"
	"github.com/sakif/gitsweep/internal/directory"
	"github.com/sakif/gitsweep/internal/model"
)

// deleteConcurrency bounds how many deletes are in flight at once.
const deleteConcurrency = 4

func (c *cli) newReposCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "repos",
		Short: "List and delete your repositories",
	}
	cmd.AddCommand(c.newReposListCmd(), c.newReposDeleteCmd())
	return cmd
}

func (c *cli) newReposListCmd() *cobra.Command {
	var (
		filter string
		search string
		page   int
		asJSON bool
	)

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List your repositories",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			kind, err := directory.ParseKind(filter)
			if err != nil {
				return err
			}
			if _, err := c.requireSession(cmd.Context()); err != nil {
				return err
			}
			listing, err := c.fetch(cmd.Context(), page)
			if err != nil {
				return err
			}

			view := listing.View(kind, search)
			if asJSON {
				enc := json.NewEncoder(out(cmd))
				enc.SetIndent("", "  ")
				return enc.Encode(view)
			}

			if err := renderRepositories(out(cmd), view); err != nil {
				return err
			}
			if len(view) != listing.Len() {
				fmt.Fprintf(out(cmd), "Showing %d of %d repositories\n", len(view), listing.Len())
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", string(directory.KindAll), "Only show all, public, private, forked or archived repositories")
	cmd.Flags().StringVar(&search, "search", "", "Only show repositories whose name contains this text")
	cmd.Flags().IntVar(&page, "page", 0, "Fetch a single page of 100 (default: every page)")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Print JSON instead of a table")
	return cmd
}

func (c *cli) newReposDeleteCmd() *cobra.Command {
	var (
		filter string
		search string
		yes    bool
	)

	cmd := &cobra.Command{
		Use:   "delete [OWNER/REPO...]",
		Short: "Delete repositories",
		Long: `Delete the named repositories, or every repository matching --filter and
--search. Deleting a repository on GitHub cannot be undone, so gitsweep asks
first unless --yes is given.

Deletes run concurrently. One failing does not stop the others.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			selecting := cmd.Flags().Changed("filter") || search != ""

			if len(args) > 0 && selecting {
				return apperror.ValidationFailed("args", "name repositories or use --filter/--search, not both")
			}
			if len(args) == 0 && !selecting {
				return apperror.ValidationFailed("args", "name at least one OWNER/REPO, or select with --filter/--search")
			}

			if _, err := c.requireSession(ctx); err != nil {
				return err
			}

			var (
				targets []string
				listing *directory.Listing
			)
			if selecting {
				kind, err := directory.ParseKind(filter)
				if err != nil {
					return err
				}
				if listing, err = c.fetch(ctx, 0); err != nil {
					return err
				}
				for _, r := range listing.View(kind, search) {
					targets = append(targets, r.FullName)
				}
				if len(targets) == 0 {
					fmt.Fprintln(out(cmd), "No repositories match.")
					return nil
				}
			} else {
				for _, arg := range args {
					if _, _, err := directory.SplitFullName(arg); err != nil {
						return err
					}
				}
				targets = args
			}

			if !yes {
				ok, err := confirm(cmd.InOrStdin(), out(cmd), targets)
				if err != nil {
					return err
				}
				if !ok {
					fmt.Fprintln(out(cmd), "Nothing deleted.")
					return nil
				}
			}

			results := c.deleteAll(ctx, targets)
			failed := 0
			for i, err := range results {
				if err != nil {
					failed++
					fmt.Fprintf(out(cmd), "failed   %s: %s\n", targets[i], client.Friendly(err))
					continue
				}
				if listing != nil {
					listing.Remove(targets[i])
				}
				fmt.Fprintf(out(cmd), "deleted  %s\n", targets[i])
			}

			if listing != nil {
				fmt.Fprintf(out(cmd), "%d repositories remain.\n", listing.Len())
			}
			if failed > 0 {
				return fmt.Errorf("%d of %d deletions failed", failed, len(targets))
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&filter, "filter", string(directory.KindAll), "Delete every all, public, private, forked or archived repository")
	cmd.Flags().StringVar(&search, "search", "", "Delete every repository whose name contains this text")
	cmd.Flags().BoolVarP(&yes, "yes", "y", false, "Do not ask for confirmation")
	return cmd
}

// fetch returns one page when page > 0 and every page otherwise.
func (c *cli) fetch(ctx context.Context, page int) (*directory.Listing, error) {
	if page > 0 {
		repos, err := c.client.ListRepositories(ctx, page)
		if err != nil {
			return nil, err
		}
		return directory.NewListing(repos), nil
	}
	return directory.FetchAll(ctx, c.client.ListRepositories)
}

// deleteAll deletes every target concurrently and returns one result per
// target, in order. The group has no shared context, so one failure never
// cancels the rest.
func (c *cli) deleteAll(ctx context.Context, targets []string) []error {
	results := make([]error, len(targets))

	var g errgroup.Group
	g.SetLimit(deleteConcurrency)
	for i, fullName := range targets {
		g.Go(func() error {
			owner, repo, err := directory.SplitFullName(fullName)
			if err == nil {
				err = c.client.DeleteRepository(ctx, owner, repo)
			}
			results[i] = err
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func confirm(in io.Reader, w io.Writer, targets []string) (bool, error) {
	fmt.Fprintf(w, "About to permanently delete %d repositories:\n", len(targets))
	for _, t := range targets {
		fmt.Fprintf(w, "  %s\n", t)
	}
	fmt.Fprint(w, "Type 'yes' to continue: ")

	line, err := bufio.NewReader(in).ReadString('\n')
	if err != nil && err != io.EOF {
		return false, fmt.Errorf("reading confirmation: %w", err)
	}
	answer := strings.ToLower(strings.TrimSpace(line))
	return answer == "yes" || answer == "y", nil
}

// renderRepositories writes repos as a table.
func renderRepositories(w io.Writer, repos []model.Repository) error {
	if len(repos) == 0 {
		fmt.Fprintln(w, "No repositories found.")
		return nil
	}

	headers := []string{"Repository", "Visibility", "Stars", "Language", "Updated"}
	table := tablewriter.NewWriter(w)
	table.Options(
		tablewriter.WithHeader(headers),
		tablewriter.WithRendition(
			tw.Rendition{
				Borders: tw.Border{
					Left:   tw.State(1),
					Top:    tw.State(1),
					Right:  tw.State(1),
					Bottom: tw.State(1),
				},
			},
		),
		tablewriter.WithAlignment(tw.MakeAlign(len(headers), tw.AlignLeft)),
	)

	for _, r := range repos {
		language := "-"
		if r.Language != nil && *r.Language != "" {
			language = *r.Language
		}
		updated := "-"
		if !r.UpdatedAt.IsZero() {
			updated = r.UpdatedAt.Format("2006-01-02")
		}
		if err := table.Append([]string{
			r.FullName,
			visibility(r),
			strconv.Itoa(r.StargazersCount),
			language,
			updated,
		}); err != nil {
			return fmt.Errorf("failed to append row: %w", err)
		}
	}

	if err := table.Render(); err != nil {
		return fmt.Errorf("failed to render table: %w", err)
	}
	return nil
}

func visibility(r model.Repository) string {
	parts := []string{"public"}
	if r.Private {
		parts[0] = "private"
	}
	if r.Fork {
		parts = append(parts, "fork")
	}
	if r.Archived {
		parts = append(parts, "archived")
	}
	return strings.Join(parts, ", ")
}
