package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"

	"github.com/fatih/color"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"statline/internal/adapter"
	"statline/internal/config"
	"statline/internal/db"
	"statline/internal/domain"
	"statline/internal/engine"
	"statline/internal/history"
	"statline/internal/migrate"
	"statline/internal/registry"
	"statline/internal/server"
	"statline/internal/when"
)

var rootCmd = &cobra.Command{
	Use:   "st <keyword> [date] [time]",
	Short: "Broadcast your status to Slack, GitHub, and Asana",
	Long: `st sets your presence everywhere with one word.

  st lunch            back at the next quarter hour plus an hour
  st zoom             on a call, no end time
  st vacation friday  out until Friday 7:00 AM
  st back 3:30pm      catching up, returning at 3:30 PM
  st clear            wipe status and do-not-disturb everywhere

Tokens are credentials from the environment: SLACK_PAT, GITHUB_PAT,
ASANA_PAT. Services without a token are skipped, never fatal.`,
	Args:          cobra.RangeArgs(1, 3),
	SilenceUsage:  true,
	SilenceErrors: true,
	RunE:          runStatus,
}

func main() {
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	viper.SetEnvPrefix("ST")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
	_ = viper.BindEnv("jwt_secret", "ST_JWT_SECRET")
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().String("config", "", "config file (default ~/.config/st/config.yml)")
	rootCmd.PersistentFlags().StringP("workspace", "w", "", "history database directory (default home)")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	rootCmd.PersistentFlags().Bool("serial", false, "call services one at a time")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("workspace", rootCmd.PersistentFlags().Lookup("workspace"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
	_ = viper.BindPFlag("serial", rootCmd.PersistentFlags().Lookup("serial"))
}

func registerCommands() {
	rootCmd.AddCommand(keywordsCmd())
	rootCmd.AddCommand(logCmd())
	rootCmd.AddCommand(serveCmd())
}

func runStatus(cmd *cobra.Command, args []string) error {
	keyword := args[0]
	dateToken, timeToken := when.SplitTokens(args[1:])

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	e := engine.New(buildAdapters(cfg))
	e.Serial = viper.GetBool("serial")

	conn, store, err := openHistory(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()
	e.History = store

	report, runErr := e.Run(cmd.Context(), keyword, dateToken, timeToken)
	if runErr != nil && len(report.Entries) == 0 {
		// Nothing was dispatched; unknown keyword or a bad token.
		return runErr
	}
	if viper.GetBool("json") {
		if err := printJSON(report); err != nil {
			return err
		}
	} else {
		renderReport(report)
	}
	// The backends were already mutated, so a history failure must not
	// hide the report; it only warns.
	if runErr != nil {
		fmt.Fprintln(os.Stderr, "warning:", runErr)
	}
	if report.Failed() {
		return errors.New("one or more services failed")
	}
	return nil
}

func keywordsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "keywords",
		Short: "List the known status keywords",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			entries := registry.All()
			if viper.GetBool("json") {
				return printJSON(entries)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"Keyword", "Services", "Deadline", "About"})
			for _, e := range entries {
				services := make([]string, 0, len(e.Templates))
				for _, svc := range e.Services() {
					services = append(services, string(svc))
				}
				deadline := ""
				if e.NeedsDeadline() {
					deadline = "yes"
				}
				tw.AppendRow(table.Row{e.Keyword, strings.Join(services, ", "), deadline, e.About})
			}
			tw.Render()
			return nil
		},
	}
}

func logCmd() *cobra.Command {
	var n int
	var keyword string
	cmd := &cobra.Command{
		Use:   "log",
		Short: "Show recent status invocations",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			conn, store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			entries, err := store.Latest(cmd.Context(), n, keyword)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(entries)
			}
			tw := table.NewWriter()
			tw.SetOutputMirror(os.Stdout)
			tw.AppendHeader(table.Row{"When", "Keyword", "Deadline", "Result"})
			for _, e := range entries {
				deadline := ""
				if e.Deadline != nil {
					deadline = *e.Deadline
				}
				tw.AppendRow(table.Row{e.TS, e.Keyword, deadline, summarize(e.Report)})
			}
			tw.Render()
			return nil
		},
	}
	cmd.Flags().IntVarP(&n, "number", "n", 20, "number of entries")
	cmd.Flags().StringVar(&keyword, "keyword", "", "filter by keyword")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the status API over HTTP",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			secret := viper.GetString("jwt_secret")
			if secret == "" {
				return fmt.Errorf("ST_JWT_SECRET is required for bearer auth")
			}
			conn, store, err := openHistory(cfg)
			if err != nil {
				return err
			}
			defer conn.Close()
			e := engine.New(buildAdapters(cfg))
			e.Serial = viper.GetBool("serial")
			e.History = store
			if addr == "" {
				addr = cfg.Serve.Addr
			}
			if basePath == "" {
				basePath = cfg.Serve.BasePath
			}
			handler, err := server.New(server.Config{
				Engine:   e,
				History:  store,
				BasePath: basePath,
				Auth:     server.AuthConfig{JWTSecret: secret},
			})
			if err != nil {
				return err
			}
			srv := &http.Server{Addr: addr, Handler: handler}
			go func() {
				<-cmd.Context().Done()
				ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(ctx)
			}()
			fmt.Printf("Serving statline API on http://%s%s\n", addr, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (default from config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (default from config)")
	return cmd
}

// --- helpers ---

func loadConfig() (*config.Config, error) {
	path := viper.GetString("config")
	if path == "" {
		path = config.Path()
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}
	if ws := viper.GetString("workspace"); ws != "" {
		cfg.Workspace = ws
	}
	return cfg, nil
}

func buildAdapters(cfg *config.Config) []adapter.Adapter {
	creds := config.CredentialsFromEnv()
	var adapters []adapter.Adapter
	if creds.Slack != "" {
		adapters = append(adapters, &adapter.Slack{Token: creds.Slack})
	}
	if creds.GitHub != "" {
		adapters = append(adapters, &adapter.GitHub{Token: creds.GitHub, OrgID: cfg.GitHubOrgID})
	}
	if creds.Asana != "" {
		adapters = append(adapters, &adapter.Asana{Token: creds.Asana, UserGID: cfg.AsanaUserGID})
	}
	return adapters
}

func openHistory(cfg *config.Config) (*sql.DB, *history.Store, error) {
	if _, err := db.EnsureWorkspace(cfg.Workspace); err != nil {
		return nil, nil, err
	}
	conn, err := db.Open(db.Config{Workspace: cfg.Workspace})
	if err != nil {
		return nil, nil, err
	}
	if err := migrate.Migrate(conn); err != nil {
		conn.Close()
		return nil, nil, err
	}
	return conn, &history.Store{DB: conn}, nil
}

func renderReport(report domain.Report) {
	check := color.New(color.FgGreen).Sprint("✓")
	cross := color.New(color.FgRed).Sprint("✗")
	bang := color.New(color.FgYellow).Sprint("!")
	for _, entry := range report.Entries {
		switch entry.State {
		case domain.StateOK:
			fmt.Printf("%s %-6s %s\n", check, entry.Service, entry.Detail)
		case domain.StateSkipped:
			fmt.Printf("%s %-6s %s\n", bang, entry.Service, entry.Detail)
		case domain.StateFailed:
			fmt.Printf("%s %-6s %s\n", cross, entry.Service, entry.Err)
		}
	}
}

func summarize(report domain.Report) string {
	var parts []string
	for _, entry := range report.Entries {
		parts = append(parts, fmt.Sprintf("%s:%s", entry.Service, entry.State))
	}
	return strings.Join(parts, " ")
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
