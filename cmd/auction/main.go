package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/MarkoPoloResearchLab/auctionhouse/internal/config"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	flagStore          = "store"
	flagAPIBaseURL     = "api-base-url"
	flagAPIKey         = "api-key"
	flagAPITimeout     = "api-timeout"
	flagVerbose        = "verbose"
	flagEnvFile        = "env-file"
	flagListenAddr     = "listen-addr"
	flagAllowedOrigins = "allowed-origins"
	envPrefix          = "AUCTION"
	defaultEnvFile     = ".env"
)

func main() {
	rootCmd := newRootCommand()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "auction: %v\n", err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cfg := &config.Config{}
	cmd := &cobra.Command{
		Use:           "auction",
		Short:         "Browse listings, bid and track credits on the auction house",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			envFile, err := cmd.Flags().GetString(flagEnvFile)
			if err != nil {
				return err
			}
			if err := config.LoadDotEnv(envFile); err != nil {
				return err
			}
			return loadConfig(cmd, cfg)
		},
	}

	flags := cmd.PersistentFlags()
	flags.String(flagStore, "", "credit and profile store URL (file://, memory://, sqlite://, postgres://, redis://)")
	flags.String(flagAPIBaseURL, "", "auction API base URL")
	flags.String(flagAPIKey, "", "auction API key")
	flags.Duration(flagAPITimeout, 0, "auction API request timeout (e.g. 15s)")
	flags.Bool(flagVerbose, false, "log at debug level")
	flags.String(flagEnvFile, defaultEnvFile, "dotenv file read before the environment")

	cmd.AddCommand(
		newLoginCommand(cfg),
		newRegisterCommand(cfg),
		newLogoutCommand(cfg),
		newListingsCommand(cfg),
		newListingCommand(cfg),
		newBidCommand(cfg),
		newCreateCommand(cfg),
		newEditCommand(cfg),
		newDeleteCommand(cfg),
		newProfileCommand(cfg),
		newAvatarCommand(cfg),
		newCreditsCommand(cfg),
		newHistoryCommand(cfg),
		newServeCommand(cfg),
	)
	return cmd
}

// loadConfig merges flags with AUCTION_* environment variables. Flags set on
// the command line win.
func loadConfig(cmd *cobra.Command, cfg *config.Config) error {
	v := viper.New()
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	v.AutomaticEnv()

	for _, flagName := range []string{flagStore, flagAPIBaseURL, flagAPIKey, flagAPITimeout, flagVerbose, flagListenAddr, flagAllowedOrigins} {
		flag := cmd.Flags().Lookup(flagName)
		if flag == nil {
			continue
		}
		if err := v.BindPFlag(flagName, flag); err != nil {
			return err
		}
	}

	cfg.StoreURL = strings.TrimSpace(v.GetString(flagStore))
	cfg.APIBaseURL = strings.TrimSpace(v.GetString(flagAPIBaseURL))
	cfg.APIKey = strings.TrimSpace(v.GetString(flagAPIKey))
	cfg.APITimeout = v.GetDuration(flagAPITimeout)
	cfg.Verbose = v.GetBool(flagVerbose)
	cfg.ListenAddr = strings.TrimSpace(v.GetString(flagListenAddr))
	cfg.AllowedOrigins = config.ParseAllowedOrigins(v.GetString(flagAllowedOrigins))

	return cfg.Validate()
}

// run opens the application for one command, signal-aware, and closes it
// afterwards.
func run(cmd *cobra.Command, cfg *config.Config, action func(ctx context.Context, app *application) error) error {
	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	app, err := newApplication(ctx, *cfg)
	if err != nil {
		return err
	}
	defer app.Close()
	return action(ctx, app)
}

func requireFlag(flags *pflag.FlagSet, name string) (string, error) {
	value, err := flags.GetString(name)
	if err != nil {
		return "", err
	}
	if strings.TrimSpace(value) == "" {
		return "", fmt.Errorf("--%s is required", name)
	}
	return value, nil
}
