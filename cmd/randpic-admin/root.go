package main

import (
	"context"
	"fmt"
	"os"

	"randpic/internal/catalog"
	"randpic/internal/config"
	"randpic/internal/logging"

	"github.com/spf13/cobra"
)

type globalOptions struct {
	configPath string
	envFile    string
}

// bucketEnsurer is implemented by engines that can create their bucket.
type bucketEnsurer interface {
	EnsureBucket(ctx context.Context) error
}

func newRootCmd() *cobra.Command {
	opts := &globalOptions{}

	rootCmd := &cobra.Command{
		Use:          "randpic-admin",
		Short:        "Maintain the image gallery served by randpic",
		SilenceUsage: true,
		Long: `randpic-admin uploads images into the orientation directories read by the
randpic server and rebuilds their manifest.json files.`,
	}

	rootCmd.PersistentFlags().StringVar(&opts.configPath, "config", "", "path to the YAML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.envFile, "env-file", ".env", "dotenv file loaded before the configuration")

	rootCmd.AddCommand(
		newUploadCmd(opts),
		newManifestCmd(opts),
		newStatusCmd(opts),
	)
	return rootCmd
}

// openCatalog loads the configuration and connects to its storage.
func (o *globalOptions) openCatalog(cmd *cobra.Command) (*catalog.Catalog, *config.Config, error) {
	if err := config.LoadDotEnv(o.envFile); err != nil {
		return nil, nil, fmt.Errorf("cannot load %s: %w", o.envFile, err)
	}

	cfg, err := config.Load(o.configPath)
	if err != nil {
		return nil, nil, fmt.Errorf("cannot load config: %w", err)
	}

	if err := logging.Setup(cmd.ErrOrStderr(), cfg.Log.Level); err != nil {
		return nil, nil, err
	}

	engine, err := cfg.OpenStorage()
	if err != nil {
		return nil, nil, err
	}

	return catalog.New(engine, cfg.BasePrefix), cfg, nil
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
