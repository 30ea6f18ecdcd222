package cli

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/pstuifzand/sitetree/internal/app"
	"github.com/pstuifzand/sitetree/internal/preview"
	"github.com/pstuifzand/sitetree/internal/socket"
	"github.com/spf13/cobra"
)

func newCleanCommand(o *rootOptions) *cobra.Command {
	var route, api, endpoint string
	var remote bool
	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Remove interaction references to a route or an API from every structure",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			p, err := app.CleanPattern(route, api, endpoint)
			if err != nil {
				return err
			}
			if remote {
				return o.send(cmd.OutOrStdout(), func(client *socket.Client) (*socket.Response, error) {
					return client.SendClean(route, api, endpoint)
				})
			}
			return o.withSite(func(site *app.Site) error {
				report, err := site.Clean(p)
				if perr := printJSON(cmd.OutOrStdout(), report); perr != nil {
					return perr
				}
				return err
			})
		},
	}
	f := cmd.Flags()
	f.StringVar(&route, "route", "", "Route whose navigation references are removed")
	f.StringVar(&api, "api", "", "API whose fetch references are removed")
	f.StringVar(&endpoint, "endpoint", "", "Limit --api to one endpoint")
	f.BoolVar(&remote, "remote", false, "Send the request to a running serve command")
	cmd.MarkFlagsMutuallyExclusive("route", "api")
	return cmd
}

func newBuildCommand(o *rootOptions) *cobra.Command {
	var deploy bool
	cmd := &cobra.Command{
		Use:   "build",
		Short: "Compile the site into a new PHP build directory",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withSite(func(site *app.Site) error {
				res, err := site.Builder.Build()
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%d pages\t%d files\n", res.Dir, res.Pages, len(res.Units))
				if deploy {
					return site.Builder.Deploy(res.Dir)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&deploy, "deploy", false, "Deploy the build when it succeeds")
	return cmd
}

func newDeployCommand(o *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "deploy [build-dir]",
		Short: "Copy a build into the serving directory (default the latest build)",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withSite(func(site *app.Site) error {
				var dir string
				if len(args) == 1 {
					dir = args[0]
				} else {
					builds, err := site.Builder.Builds()
					if err != nil {
						return err
					}
					if len(builds) == 0 {
						return errors.New("no builds to deploy")
					}
					dir = builds[len(builds)-1]
				}
				if err := site.Builder.Deploy(dir); err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "deployed %s\n", dir)
				return nil
			})
		},
	}
}

func newPagesCommand(o *rootOptions) *cobra.Command {
	var components bool
	cmd := &cobra.Command{
		Use:   "pages",
		Short: "List page routes",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withSite(func(site *app.Site) error {
				list := site.Store.ListPages
				if components {
					list = site.Store.ListComponents
				}
				names, err := list()
				if err != nil {
					return err
				}
				for _, name := range names {
					fmt.Fprintln(cmd.OutOrStdout(), name)
				}
				return nil
			})
		},
	}
	cmd.Flags().BoolVar(&components, "components", false, "List components instead")
	return cmd
}

func newServeCommand(o *rootOptions) *cobra.Command {
	var addr string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve live previews over HTTP and accept commands on the site socket",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return o.withSite(func(site *app.Site) error {
				ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
				defer stop()
				return serve(ctx, site, addr)
			})
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "Listen address (default from [serve] addr)")
	return cmd
}

func serve(ctx context.Context, site *app.Site, addr string) error {
	if addr == "" {
		addr = site.Config.Serve.Addr
	}
	if site.Config.Serve.Socket != "" {
		server, err := socket.NewServer(site.Config.Path(site.Dir, site.Config.Serve.Socket), site.Log.Named("socket"))
		if err != nil {
			return err
		}
		server.Start()
		defer server.Stop()
		go site.Serve(ctx, server)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           preview.New(site),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() { errc <- srv.ListenAndServe() }()
	site.Log.Infow("serving previews", "addr", addr, "site", site.Dir)

	select {
	case err := <-errc:
		return err
	case <-ctx.Done():
	}
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	return srv.Shutdown(shutdownCtx)
}
