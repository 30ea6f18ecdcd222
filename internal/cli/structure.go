package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/pstuifzand/sitetree/internal/app"
	"github.com/pstuifzand/sitetree/internal/edit"
	"github.com/pstuifzand/sitetree/internal/socket"
	"github.com/spf13/cobra"
)

func newRenderCommand(o *rootOptions) *cobra.Command {
	var route string
	var flags map[string]string
	cmd := &cobra.Command{
		Use:   "render <kind> [name]",
		Short: "Render a page, component, the menu or the footer to HTML",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := target(args)
			return o.withSite(func(site *app.Site) error {
				r := route
				if r == "" && t.Kind == "page" {
					r = t.Name
				}
				html, err := site.RenderTarget(t, site.Context("", r, app.Flags(flags)))
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), html)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&route, "route", "", "Current route (defaults to the page route)")
	cmd.Flags().StringToStringVar(&flags, "flag", nil, "Context flag, repeatable (name=value)")
	return cmd
}

func newEditCommand(o *rootOptions) *cobra.Command {
	var c edit.Command
	var node string
	var remote bool
	cmd := &cobra.Command{
		Use:   "edit <kind> [name]",
		Short: "Apply one node edit to a structure",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			c.Target = target(args)
			if node != "" {
				data, err := readArg(cmd.InOrStdin(), node)
				if err != nil {
					return err
				}
				c.Node = json.RawMessage(data)
			}
			if remote {
				return o.send(cmd.OutOrStdout(), func(client *socket.Client) (*socket.Response, error) {
					return client.SendEdit(c)
				})
			}
			return o.withSite(func(site *app.Site) error {
				res, err := site.Editor.Apply(c)
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar((*string)(&c.Action), "action", "", "update, delete, insertBefore, insertAfter, insertInside or replace")
	f.StringVar(&c.NodeID, "node-id", "", "Dotted NodeId of the edited node")
	f.StringVar(&node, "node", "", "Node JSON, @file or - for stdin")
	f.StringVar(&c.Revision, "revision", "", "Expected revision of the file")
	f.BoolVar(&remote, "remote", false, "Send the edit to a running serve command")
	cmd.MarkFlagRequired("action")
	return cmd
}

func newReplaceCommand(o *rootOptions) *cobra.Command {
	var file, revision string
	cmd := &cobra.Command{
		Use:   "replace <kind> [name]",
		Short: "Replace a whole structure",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			t := target(args)
			data, err := readArg(cmd.InOrStdin(), "@"+file)
			if err != nil {
				return err
			}
			return o.withSite(func(site *app.Site) error {
				res, err := site.Editor.ReplaceSource(t, data, revision)
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().StringVar(&file, "file", "-", "Structure file, - for stdin")
	cmd.Flags().StringVar(&revision, "revision", "", "Expected revision of the file")
	return cmd
}

func newBackupsCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "backups <kind> [name]",
		Short: "List the backups of a structure, newest first",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withSite(func(site *app.Site) error {
				backups, err := site.ListBackups(target(args))
				if err != nil {
					return err
				}
				for i, b := range backups {
					fmt.Fprintf(cmd.OutOrStdout(), "%d\t%s\t%s\n", i, b.Timestamp.Format("2006-01-02 15:04:05"), b.FilePath)
				}
				return nil
			})
		},
	}
}

func newRestoreCommand(o *rootOptions) *cobra.Command {
	var index int
	cmd := &cobra.Command{
		Use:   "restore <kind> [name]",
		Short: "Restore a structure from a backup",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withSite(func(site *app.Site) error {
				res, err := site.Restore(target(args), index)
				if perr := printJSON(cmd.OutOrStdout(), res); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	cmd.Flags().IntVar(&index, "index", 0, "Backup to restore, 0 is the newest")
	return cmd
}

// readArg reads an inline value, @file, or - (or @-) for stdin.
func readArg(stdin io.Reader, v string) ([]byte, error) {
	switch {
	case v == "-" || v == "@-":
		return io.ReadAll(stdin)
	case strings.HasPrefix(v, "@"):
		data, err := os.ReadFile(v[1:])
		if err != nil {
			return nil, fmt.Errorf("failed to read %s: %w", v[1:], err)
		}
		return data, nil
	}
	return []byte(v), nil
}

// send delivers one message to a running serve command.
func (o *rootOptions) send(w io.Writer, fn func(*socket.Client) (*socket.Response, error)) error {
	path, err := o.socketPath()
	if err != nil {
		return err
	}
	client, err := socket.NewClient(path)
	if err != nil {
		return fmt.Errorf("no running instance: %w", err)
	}
	resp, err := fn(client)
	if err != nil {
		return err
	}
	if err := printJSON(w, resp); err != nil {
		return err
	}
	if !resp.Success {
		return fmt.Errorf("%s", resp.Message)
	}
	return nil
}
