package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"wheelwatch/internal/app"
	"wheelwatch/internal/config"
	"wheelwatch/internal/inspect"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"golang.org/x/term"
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

// newApp reads the config and creates an App. The caller must defer a.Close().
// operation identifies the CLI command being run (e.g. "trains", "watch").
func newApp(cmd *cobra.Command, operation string) (*app.App, error) {
	defaults, err := app.GetDefaults()
	if err != nil {
		return nil, fmt.Errorf("getting defaults: %w", err)
	}

	cfg, err := config.ReadFromFile(defaults.ConfigPath)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}

	opts := app.Options{LogLevel: slog.LevelWarn, Stderr: os.Stderr}
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		opts.LogLevel = slog.LevelDebug
	}

	a, err := app.NewApp(cfg, operation, opts)
	if err != nil {
		return nil, fmt.Errorf("initializing app: %w", err)
	}
	return a, nil
}

// run wraps a command body so its outcome is recorded on the operation.
func run(operation string, body func(ctx context.Context, a *app.App, args []string) error) func(*cobra.Command, []string) error {
	return func(cmd *cobra.Command, args []string) error {
		a, err := newApp(cmd, operation)
		if err != nil {
			return err
		}
		defer a.Close()

		ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		err = body(ctx, a, args)
		a.Fail(err)
		return err
	}
}

func newPrinter() *printer {
	return &printer{w: os.Stdout, color: term.IsTerminal(int(os.Stdout.Fd()))}
}

func readPassphrase(prompt string) (string, error) {
	fmt.Fprint(os.Stderr, prompt)
	p, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return "", err
	}
	return string(p), nil
}

var rootCmd = &cobra.Command{
	Use:          "wheelwatch",
	Short:        "Follow train wheel inspection reports",
	SilenceUsage: true,
}

// config command
var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Manage configuration",
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		clientID := uuid.New().String()
		cfg := config.NewConfig(clientID, defaults.BaseDir)
		cfg.Backend.BaseURL, _ = cmd.Flags().GetString("backend")
		cfg.Backend.Token, _ = cmd.Flags().GetString("token")

		if err := config.Init(defaults.ConfigPath, cfg); err != nil {
			return fmt.Errorf("failed to initialize config: %w", err)
		}

		fmt.Printf("Configuration initialized at %s\n", defaults.ConfigPath)
		fmt.Printf("Client ID: %s\n", clientID)
		fmt.Printf("Base Dir:  %s\n", defaults.BaseDir)
		return nil
	},
}

var configListCmd = &cobra.Command{
	Use:   "list",
	Short: "View configuration",
	RunE: func(cmd *cobra.Command, args []string) error {
		defaults, err := app.GetDefaults()
		if err != nil {
			return fmt.Errorf("failed to get defaults: %w", err)
		}

		cfg, err := config.ReadFromFile(defaults.ConfigPath)
		if err != nil {
			return fmt.Errorf("failed to read config: %w", err)
		}

		streamURL, err := cfg.Backend.ResolvedStreamURL()
		if err != nil {
			streamURL = "(" + err.Error() + ")"
		}
		fmt.Printf("Configuration from %s:\n\n", defaults.ConfigPath)
		fmt.Printf("Client ID:  %s\n", cfg.ClientID)
		fmt.Printf("Base Dir:   %s\n", cfg.BaseDir)
		fmt.Printf("Log Dir:    %s\n", cfg.LogDir)
		fmt.Printf("Backend:    %s\n", cfg.Backend.BaseURL)
		fmt.Printf("Stream:     %s\n", streamURL)
		fmt.Printf("Timezone:   %s\n", cfg.Engine.Timezone)
		fmt.Printf("Good above: %.0f mm\n", cfg.Engine.Thresholds().GoodDiameterMm)
		fmt.Printf("Export:     %s (encrypt=%t)\n", cfg.Export.Type, cfg.Export.Encrypt)
		return nil
	},
}

// keys command
var keysCmd = &cobra.Command{
	Use:   "keys",
	Short: "Manage export encryption keys",
}

var keysInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Generate the export key pair",
	RunE: run("SetupKeys", func(ctx context.Context, a *app.App, args []string) error {
		p1, err := readPassphrase("New passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		p2, err := readPassphrase("Repeat passphrase: ")
		if err != nil {
			return fmt.Errorf("reading passphrase: %w", err)
		}
		if p1 != p2 {
			return fmt.Errorf("passphrases do not match")
		}
		if err := a.SetupKeys(p1); err != nil {
			return err
		}
		fmt.Println("Export keys generated.")
		return nil
	}),
}

var trainsCmd = &cobra.Command{
	Use:   "trains",
	Short: "List train days, newest first",
	RunE: run("ListTrainDays", func(ctx context.Context, a *app.App, args []string) error {
		days, err := a.TrainDays(ctx)
		if err != nil {
			return err
		}
		newPrinter().trainDays(days)
		return nil
	}),
}

var compartmentsCmd = &cobra.Command{
	Use:   "compartments TRAIN/DATE",
	Short: "List compartments of a train day",
	Args:  cobra.ExactArgs(1),
	RunE: run("ListCompartments", func(ctx context.Context, a *app.App, args []string) error {
		comps, err := a.Compartments(ctx, args[0])
		if err != nil {
			return err
		}
		newPrinter().compartments(comps)
		return nil
	}),
}

var wheelsCmd = &cobra.Command{
	Use:   "wheels TRAIN/DATE COMPARTMENT",
	Short: "List wheels of a compartment",
	Args:  cobra.ExactArgs(2),
	RunE: run("ListWheels", func(ctx context.Context, a *app.App, args []string) error {
		n, err := strconv.Atoi(args[1])
		if err != nil {
			return fmt.Errorf("compartment must be a number: %q", args[1])
		}
		wheels, err := a.Wheels(ctx, args[0], n)
		if err != nil {
			return err
		}
		newPrinter().wheels(wheels, a.ImageURL)
		return nil
	}),
}

var latestCmd = &cobra.Command{
	Use:   "latest",
	Short: "Summarize the newest train day",
	RunE: run("LatestSummary", func(ctx context.Context, a *app.App, args []string) error {
		s, ok, err := a.Latest(ctx)
		if err != nil {
			return err
		}
		if !ok {
			fmt.Println("No reports.")
			return nil
		}
		newPrinter().summary(s, a.ImageURL)
		return nil
	}),
}

var searchCmd = &cobra.Command{
	Use:   "search [QUERY]",
	Short: "Search reports, e.g. \"t5\", \"wheel 3\" or \"6/15/2024\"",
	Args:  cobra.MaximumNArgs(1),
	RunE: run("Search", func(ctx context.Context, a *app.App, args []string) error {
		query := ""
		if len(args) > 0 {
			query = args[0]
		}
		reports, err := a.Search(ctx, query)
		if err != nil {
			return err
		}
		newPrinter().reports(reports)
		return nil
	}),
}

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Follow the live stream and print changes",
	RunE: run("Watch", func(ctx context.Context, a *app.App, args []string) error {
		p := newPrinter()
		return a.Watch(ctx, func(c inspect.Change) { p.change(c, a.Engine().Derive, time.Now()) })
	}),
}

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the current hierarchy to the export sink",
	RunE: run("Export", func(ctx context.Context, a *app.App, args []string) error {
		name, err := a.Export(ctx, exportEncrypt)
		if err != nil {
			return err
		}
		fmt.Printf("Exported %s\n", name)
		return nil
	}),
}

var exportEncrypt bool

var exportListCmd = &cobra.Command{
	Use:   "list",
	Short: "List exports",
	RunE: run("ListExports", func(ctx context.Context, a *app.App, args []string) error {
		names, err := a.ListExports()
		if err != nil {
			return err
		}
		if len(names) == 0 {
			fmt.Println("No exports.")
			return nil
		}
		for _, n := range names {
			fmt.Println(n)
		}
		return nil
	}),
}

var exportCatCmd = &cobra.Command{
	Use:   "cat NAME",
	Short: "Print an export, decrypting it if needed",
	Args:  cobra.ExactArgs(1),
	RunE: run("CatExport", func(ctx context.Context, a *app.App, args []string) error {
		return a.CatExport(args[0], os.Stdout, func() (string, error) {
			return readPassphrase("Passphrase: ")
		})
	}),
}

var deleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a report on the backend",
	Args:  cobra.ExactArgs(1),
	RunE: run("DeleteReport", func(ctx context.Context, a *app.App, args []string) error {
		if err := a.Delete(ctx, args[0]); err != nil {
			return err
		}
		fmt.Printf("Deleted report %s\n", args[0])
		return nil
	}),
}

func init() {
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Log debug output to stderr")

	configCmd.AddCommand(configInitCmd)
	configCmd.AddCommand(configListCmd)
	configInitCmd.Flags().String("backend", "", "Backend base URL")
	configInitCmd.Flags().String("token", "", "Backend bearer token")

	keysCmd.AddCommand(keysInitCmd)

	exportCmd.AddCommand(exportListCmd)
	exportCmd.AddCommand(exportCatCmd)
	exportCmd.Flags().BoolVarP(&exportEncrypt, "encrypt", "e", false, "Encrypt the export with the configured public key")

	rootCmd.AddCommand(configCmd)
	rootCmd.AddCommand(keysCmd)
	rootCmd.AddCommand(trainsCmd)
	rootCmd.AddCommand(compartmentsCmd)
	rootCmd.AddCommand(wheelsCmd)
	rootCmd.AddCommand(latestCmd)
	rootCmd.AddCommand(searchCmd)
	rootCmd.AddCommand(watchCmd)
	rootCmd.AddCommand(exportCmd)
	rootCmd.AddCommand(deleteCmd)
}
