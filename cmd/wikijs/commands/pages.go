package commands

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fivetwenty-io/wikijs/pkg/wikijs"
	"github.com/spf13/cobra"
)

// NewPagesCommand creates the pages command group.
func NewPagesCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "pages",
		Aliases: []string{"page", "p"},
		Short:   "Read wiki pages",
		Long:    "Get, list and search Wiki.js pages through the cached request pipeline",
	}

	cmd.AddCommand(newPagesGetCommand())
	cmd.AddCommand(newPagesListCommand())
	cmd.AddCommand(newPagesSearchCommand())

	return cmd
}

// withClient runs fn against a client that is closed afterwards.
func withClient(cmd *cobra.Command, fn func(ctx context.Context, client wikijs.Client) error) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	client, err := CreateClient(ctx, cmd.ErrOrStderr())
	if err != nil {
		return err
	}

	defer func() { _ = client.Close() }()

	return fn(ctx, client)
}

func pageRenderer() OutputRenderer[*wikijs.Page] {
	return OutputRenderer[*wikijs.Page]{
		RenderTable: func(w io.Writer, page *wikijs.Page) error {
			table := newTable(w, "Property", "Value")
			_ = table.Append("ID", strconv.Itoa(page.ID))
			_ = table.Append("Title", page.Title)
			_ = table.Append("Path", page.Path)
			_ = table.Append("Locale", page.Locale)
			_ = table.Append("Description", orNotAvailable(page.Description))
			_ = table.Append("Tags", orNotAvailable(strings.Join(page.Tags, ", ")))
			_ = table.Append("Published", strconv.FormatBool(page.IsPublished))
			_ = table.Append("Author", orNotAvailable(page.AuthorName))
			_ = table.Append("Created", page.CreatedAt.Format(timeLayout))
			_ = table.Append("Updated", page.UpdatedAt.Format(timeLayout))

			return renderTable(table)
		},
	}
}

func pageListRenderer() OutputRenderer[[]wikijs.Page] {
	return OutputRenderer[[]wikijs.Page]{
		RenderTable: func(w io.Writer, pages []wikijs.Page) error {
			if len(pages) == 0 {
				_, _ = fmt.Fprintln(w, "No pages found")

				return nil
			}

			table := newTable(w, "ID", "Title", "Path", "Locale", "Tags", "Published", "Updated")

			for _, page := range pages {
				_ = table.Append(
					strconv.Itoa(page.ID),
					page.Title,
					page.Path,
					page.Locale,
					strings.Join(page.Tags, ", "),
					strconv.FormatBool(page.IsPublished),
					page.UpdatedAt.Format(timeLayout),
				)
			}

			return renderTable(table)
		},
	}
}

func newPagesGetCommand() *cobra.Command {
	var locale string

	cmd := &cobra.Command{
		Use:   "get ID_OR_PATH",
		Short: "Get page details",
		Long:  "Display a page by numeric ID or by path",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client wikijs.Client) error {
				var (
					page *wikijs.Page
					err  error
				)

				if id, convErr := strconv.Atoi(args[0]); convErr == nil {
					page, err = client.Pages().Get(ctx, id)
				} else {
					page, err = client.Pages().GetByPath(ctx, args[0], locale)
				}

				if err != nil {
					return err
				}

				renderer := pageRenderer()

				return renderer.Render(cmd.OutOrStdout(), page, outputFormat())
			})
		},
	}

	cmd.Flags().StringVarP(&locale, "locale", "l", "", "page locale when looking up by path (default en)")

	return cmd
}

func newPagesListCommand() *cobra.Command {
	opts := wikijs.PageListOptions{}

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List pages",
		Long:  "List pages, optionally filtered by tag and locale",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client wikijs.Client) error {
				pages, err := client.Pages().List(ctx, &opts)
				if err != nil {
					return err
				}

				renderer := pageListRenderer()

				return renderer.Render(cmd.OutOrStdout(), pages, outputFormat())
			})
		},
	}

	cmd.Flags().IntVar(&opts.Limit, "limit", 0, "maximum number of pages (0 for all)")
	cmd.Flags().StringVar(&opts.OrderBy, "order-by", wikijs.OrderByTitle, "order by CREATED, ID, PATH, TITLE or UPDATED")
	cmd.Flags().StringVar(&opts.OrderByDirection, "direction", "ASC", "order direction, ASC or DESC")
	cmd.Flags().StringSliceVarP(&opts.Tags, "tag", "t", nil, "only pages carrying all of these tags")
	cmd.Flags().StringVarP(&opts.Locale, "locale", "l", "", "only pages in this locale")
	cmd.Flags().IntVar(&opts.AuthorID, "author", 0, "only pages last edited by this user ID")

	return cmd
}

func newPagesSearchCommand() *cobra.Command {
	opts := wikijs.PageSearchOptions{}

	cmd := &cobra.Command{
		Use:   "search QUERY",
		Short: "Search pages",
		Long:  "Run a full text search over pages",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, func(ctx context.Context, client wikijs.Client) error {
				result, err := client.Pages().Search(ctx, strings.Join(args, " "), &opts)
				if err != nil {
					return err
				}

				renderer := OutputRenderer[*wikijs.PageSearchResponse]{
					RenderTable: func(w io.Writer, result *wikijs.PageSearchResponse) error {
						table := newTable(w, "ID", "Title", "Path", "Locale", "Description")

						for _, hit := range result.Results {
							_ = table.Append(hit.ID, hit.Title, hit.Path, hit.Locale, hit.Description)
						}

						if err := renderTable(table); err != nil {
							return err
						}

						_, _ = fmt.Fprintf(w, "%d of %d hits\n", len(result.Results), result.TotalHits)

						return nil
					},
				}

				return renderer.Render(cmd.OutOrStdout(), result, outputFormat())
			})
		},
	}

	cmd.Flags().StringVar(&opts.Path, "path", "", "restrict to pages under this path")
	cmd.Flags().StringVarP(&opts.Locale, "locale", "l", "", "restrict to this locale")

	return cmd
}
