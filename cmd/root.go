// File: cmd/root.go
package cmd

import (
	"context"
	"fmt"
	"os"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/kimday0326/boj-editor/internal/config"
	"github.com/kimday0326/boj-editor/internal/observability"
)

// Version is stamped at build time.
var Version = "dev"

var cfgFile string

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:     "boj-editor",
	Short:   "Submission automation and execution proxy for the Baekjoon online judge.",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		// A .env file is optional; missing is not an error.
		_ = godotenv.Load()

		if err := initializeConfig(); err != nil {
			return fmt.Errorf("failed to initialize configuration: %w", err)
		}

		cfg, err := config.Load(viper.GetViper())
		if err != nil {
			observability.InitializeLogger(config.LoggerConfig{Level: "info", Format: "console", ServiceName: "boj-editor"})
			return fmt.Errorf("invalid configuration: %w", err)
		}

		observability.InitializeLogger(cfg.Logger)
		observability.GetLogger().Debug("Starting boj-editor", zap.String("version", Version))
		return nil
	},
}

// Execute adds all child commands to the root command and runs it. It
// accepts a context passed from main.go for graceful shutdown.
func Execute(ctx context.Context) error {
	rootCmd.AddCommand(newSubmitCmd())
	rootCmd.AddCommand(newLanguagesCmd())
	rootCmd.AddCommand(newProxyCmd())
	rootCmd.AddCommand(newRunCmd())

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		if logger := observability.GetLogger(); logger != nil {
			// context.Canceled during shutdown is expected, not a failure.
			if ctx.Err() == nil {
				logger.Error("Command execution failed", zap.Error(err))
			}
		} else {
			fmt.Fprintln(os.Stderr, "Error:", err)
		}
		return err
	}
	return nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default is ./config.yaml)")
}

// initializeConfig reads in config file and ENV variables if set.
func initializeConfig() error {
	config.SetDefaults(viper.GetViper())

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(".")
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	viper.SetEnvPrefix("BOJ")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	// Explicitly bind the secrets so a bare environment works without any
	// config file.
	_ = viper.BindEnv("proxy.api_key", "BOJ_PISTON_API_KEY", "BOJ_PROXY_API_KEY")
	_ = viper.BindEnv("judge.username", "BOJ_JUDGE_USERNAME")

	if err := viper.ReadInConfig(); err != nil {
		// A missing config file is fine; parse errors are not.
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return fmt.Errorf("error reading config file: %w", err)
		}
	}
	return nil
}
