package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Version is the application version.
const Version = "0.1.0"

// envPrefix namespaces environment variables that supply flag defaults
const envPrefix = "FACEBRIDGE_"

var (
	logLevel string
	envFile  string
)

var rootCmd = &cobra.Command{
	Use:     "facebridge",
	Short:   "Stream camera frames through face models and bridge results to a host app",
	Version: Version,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		if err := loadEnvFile(cmd); err != nil {
			return err
		}
		if err := applyEnv(cmd.Flags()); err != nil {
			return err
		}
		return setupLogging(logLevel)
	},
	SilenceUsage: true,
}

// Execute runs the root command with a context cancelled on SIGINT/SIGTERM
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	rootCmd.SetVersionTemplate(`{{printf "%s\n" .Version}}`)

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		stop()
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "Log level: debug, info, warn or error")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "Dotenv file supplying FACEBRIDGE_* defaults")
}

// loadEnvFile reads the dotenv file. A missing default file is fine;
// a missing file the user asked for is not.
func loadEnvFile(cmd *cobra.Command) error {
	if envFile == "" {
		return nil
	}
	err := godotenv.Load(envFile)
	if err != nil && errors.Is(err, os.ErrNotExist) && !cmd.Flags().Changed("env-file") {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load env file: %w", err)
	}
	return nil
}

// applyEnv sets every flag the user did not pass from FACEBRIDGE_<FLAG>
func applyEnv(flags *pflag.FlagSet) error {
	var errs []error
	flags.VisitAll(func(f *pflag.Flag) {
		if f.Changed {
			return
		}
		v, ok := os.LookupEnv(envKey(f.Name))
		if !ok {
			return
		}
		if err := f.Value.Set(v); err != nil {
			errs = append(errs, fmt.Errorf("invalid %s: %w", envKey(f.Name), err))
		}
	})
	return errors.Join(errs...)
}

func envKey(flag string) string {
	return envPrefix + strings.ToUpper(strings.ReplaceAll(flag, "-", "_"))
}

func setupLogging(level string) error {
	var l slog.Level
	if err := l.UnmarshalText([]byte(level)); err != nil {
		return fmt.Errorf("invalid log level %q", level)
	}
	// stdout may carry host messages, so logs always go to stderr
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: l})))
	return nil
}
