// Package cli is the command tree of the sitetree binary.
package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/pstuifzand/sitetree/internal/app"
	"github.com/pstuifzand/sitetree/internal/config"
	"github.com/pstuifzand/sitetree/internal/edit"
	"github.com/pstuifzand/sitetree/internal/logging"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

type rootOptions struct {
	siteDir    string
	configPath string
	lang       string
	baseURL    string
	debug      bool

	// log is set by tests; otherwise built from --debug.
	log *zap.SugaredLogger
}

// NewRootCommand builds the sitetree command tree.
func NewRootCommand() *cobra.Command {
	return newRootCommand(&rootOptions{})
}

func newRootCommand(o *rootOptions) *cobra.Command {
	root := &cobra.Command{
		Use:           "sitetree",
		Short:         "Structure tree engine for JSON-described websites",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	flags := root.PersistentFlags()
	flags.StringVar(&o.siteDir, "site", ".", "Site directory")
	flags.StringVar(&o.configPath, "config", "", "Configuration file (default <site>/sitetree.toml)")
	flags.StringVar(&o.lang, "lang", "", "Override the default language")
	flags.StringVar(&o.baseURL, "base-url", "", "Override the base URL")
	flags.BoolVar(&o.debug, "debug", false, "Enable debug logging")

	root.AddCommand(
		newRenderCommand(o),
		newEditCommand(o),
		newReplaceCommand(o),
		newCleanCommand(o),
		newBuildCommand(o),
		newDeployCommand(o),
		newServeCommand(o),
		newPagesCommand(o),
		newBackupsCommand(o),
		newRestoreCommand(o),
	)
	return root
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCommand().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

func (o *rootOptions) logger() (*zap.SugaredLogger, error) {
	if o.log != nil {
		return o.log, nil
	}
	log, err := logging.New(o.debug)
	if err != nil {
		return nil, err
	}
	o.log = log
	return log, nil
}

func (o *rootOptions) loadConfig() (*config.Config, error) {
	var cfg *config.Config
	var err error
	if o.configPath != "" {
		cfg, err = config.LoadFromFile(o.configPath)
	} else {
		cfg, err = config.Load(o.siteDir)
	}
	if err != nil {
		return nil, err
	}
	if o.lang != "" {
		if err := cfg.Set("default_language", o.lang); err != nil {
			return nil, err
		}
	}
	if o.baseURL != "" {
		if err := cfg.Set("base_url", o.baseURL); err != nil {
			return nil, err
		}
	}
	if o.debug {
		cfg.Debug = true
	}
	return cfg, nil
}

// withSite opens the site for the duration of fn.
func (o *rootOptions) withSite(fn func(site *app.Site) error) error {
	log, err := o.logger()
	if err != nil {
		return err
	}
	defer log.Sync()

	cfg, err := o.loadConfig()
	if err != nil {
		return err
	}
	site, err := app.Open(o.siteDir, cfg, log)
	if err != nil {
		return err
	}
	defer site.Close()
	return fn(site)
}

// socketPath is where a running serve command listens.
func (o *rootOptions) socketPath() (string, error) {
	cfg, err := o.loadConfig()
	if err != nil {
		return "", err
	}
	if cfg.Serve.Socket == "" {
		return "", fmt.Errorf("no socket configured")
	}
	return cfg.Path(o.siteDir, cfg.Serve.Socket), nil
}

func target(args []string) edit.Target {
	t := edit.Target{Kind: args[0]}
	if len(args) > 1 {
		t.Name = args[1]
	}
	return t
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
