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

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"boardflow/internal/activity"
	"boardflow/internal/config"
	"boardflow/internal/db"
	"boardflow/internal/engine"
	"boardflow/internal/extract"
	"boardflow/internal/migrate"
	"boardflow/internal/repo"
	"boardflow/internal/server"
)

var rootCmd = &cobra.Command{
	Use:   "boardflow",
	Short: "Boardflow CLI",
	Long: `Boardflow turns arbitrary webhook payloads into kanban board issues.
Each workspace owns columns, labels, webhooks, and API keys; a webhook
carries an extraction prompt and optional default overrides. Deliveries
hit POST /api/webhooks/{workspace}/{webhook} and come out the other side
as issues with stable {PREFIX}-{n} identifiers.`,
}

func main() {
	cobra.OnInitialize(initViper)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.Execute(); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initViper() {
	viper.SetEnvPrefix("BOARDFLOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("data-dir", "d", ".", "data directory (holds .boardflow/)")
	rootCmd.PersistentFlags().String("config", "boardflow.yml", "config file path")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("data-dir", rootCmd.PersistentFlags().Lookup("data-dir"))
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(workspaceCmd())
	rootCmd.AddCommand(webhookCmd())
	rootCmd.AddCommand(labelCmd())
	rootCmd.AddCommand(apikeyCmd())
	rootCmd.AddCommand(issueCmd())
	rootCmd.AddCommand(serveCmd())
}

func loadConfig() (*config.Config, error) {
	return config.Load(viper.GetString("config"))
}

func withEngine(ctx context.Context, fn func(context.Context, *engine.Engine) error) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := db.Open(db.Config{DataDir: viper.GetString("data-dir")})
	if err != nil {
		return err
	}
	defer conn.Close()
	if err := migrate.Migrate(conn); err != nil {
		return err
	}
	e := newEngine(conn, cfg)
	return fn(ctx, e)
}

func newEngine(conn *sql.DB, cfg *config.Config) *engine.Engine {
	r := repo.Repo{DB: conn}
	backend := &extract.AnthropicBackend{
		APIKey:    cfg.ExtractionAPIKey(),
		Model:     cfg.Extraction.Model,
		BaseURL:   cfg.Extraction.BaseURL,
		MaxTokens: cfg.Extraction.MaxTokens,
	}
	return &engine.Engine{
		DB:         conn,
		Repo:       r,
		Activities: activity.Writer{DB: conn},
		Extractor:  &extract.Engine{Backend: backend, Usage: r},
		Config:     cfg,
	}
}

func workspaceCmd() *cobra.Command {
	ws := &cobra.Command{Use: "workspace", Short: "Manage workspaces"}
	ws.AddCommand(workspaceCreateCmd())
	ws.AddCommand(workspaceListCmd())
	return ws
}

func workspaceCreateCmd() *cobra.Command {
	var slug, name, identifier string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create workspace with the default board columns",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				ws, err := e.CreateWorkspace(ctx, slug, name, identifier)
				if err != nil {
					return err
				}
				return printJSONOrTable(ws)
			})
		},
	}
	cmd.Flags().StringVar(&slug, "slug", "", "workspace slug")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&identifier, "identifier", "", "issue identifier prefix, e.g. ENG")
	_ = cmd.MarkFlagRequired("slug")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func workspaceListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List workspaces",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				items, err := e.Repo.ListWorkspaces(ctx)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(items)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Slug", "Name", "Prefix", "Issues"})
				for _, ws := range items {
					tw.AppendRow(table.Row{ws.Slug, ws.Name, ws.Identifier, ws.IssueCounter})
				}
				tw.Render()
				return nil
			})
		},
	}
}

func webhookCmd() *cobra.Command {
	wh := &cobra.Command{Use: "webhook", Short: "Manage ingestion webhooks"}
	wh.AddCommand(webhookCreateCmd())
	wh.AddCommand(webhookListCmd())
	wh.AddCommand(webhookSetActiveCmd("enable", true))
	wh.AddCommand(webhookSetActiveCmd("disable", false))
	return wh
}

func webhookCreateCmd() *cobra.Command {
	var workspace, slug, name, prompt, defaultStatus string
	var defaultPriority int
	var defaultLabels []string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create webhook",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				ws, err := e.Repo.GetWorkspaceBySlug(ctx, workspace)
				if err != nil {
					return err
				}
				params := engine.CreateWebhookParams{
					WorkspaceID: ws.ID,
					Slug:        slug,
					Name:        name,
					Prompt:      prompt,
				}
				if defaultStatus != "" {
					params.DefaultStatus = &defaultStatus
				}
				if cmd.Flags().Changed("default-priority") {
					params.DefaultPriority = &defaultPriority
				}
				if len(defaultLabels) > 0 {
					data, err := json.Marshal(defaultLabels)
					if err != nil {
						return err
					}
					asStr := string(data)
					params.DefaultLabelIDs = &asStr
				}
				hook, err := e.CreateWebhook(ctx, params)
				if err != nil {
					return err
				}
				return printJSONOrTable(hook)
			})
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace slug")
	cmd.Flags().StringVar(&slug, "slug", "", "webhook slug")
	cmd.Flags().StringVar(&name, "name", "", "display name")
	cmd.Flags().StringVar(&prompt, "prompt", "", "extraction instruction prompt")
	cmd.Flags().StringVar(&defaultStatus, "default-status", "", "pin issue status")
	cmd.Flags().IntVar(&defaultPriority, "default-priority", 4, "pin issue priority (0-4)")
	cmd.Flags().StringSliceVar(&defaultLabels, "default-label-ids", nil, "label ids always attached")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("slug")
	_ = cmd.MarkFlagRequired("prompt")
	return cmd
}

func webhookListCmd() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List webhooks",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				ws, err := e.Repo.GetWorkspaceBySlug(ctx, workspace)
				if err != nil {
					return err
				}
				hooks, err := e.Repo.ListWebhooks(ctx, ws.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(hooks)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Slug", "Name", "Active", "Default status", "Default priority"})
				for _, h := range hooks {
					status := ""
					if h.DefaultStatus != nil {
						status = *h.DefaultStatus
					}
					priority := ""
					if h.DefaultPriority != nil {
						priority = fmt.Sprintf("%d", *h.DefaultPriority)
					}
					tw.AppendRow(table.Row{h.Slug, h.Name, h.IsActive, status, priority})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace slug")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func webhookSetActiveCmd(use string, active bool) *cobra.Command {
	var workspace, slug string
	short := "Enable a webhook"
	if !active {
		short = "Disable a webhook"
	}
	cmd := &cobra.Command{
		Use:   use,
		Short: short,
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				ws, err := e.Repo.GetWorkspaceBySlug(ctx, workspace)
				if err != nil {
					return err
				}
				hook, err := e.Repo.GetWebhookBySlug(ctx, ws.ID, slug)
				if err != nil {
					return err
				}
				if err := e.Repo.SetWebhookActive(ctx, hook.ID, active); err != nil {
					return err
				}
				fmt.Printf("webhook %s/%s active=%v\n", workspace, slug, active)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace slug")
	cmd.Flags().StringVar(&slug, "slug", "", "webhook slug")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("slug")
	return cmd
}

func labelCmd() *cobra.Command {
	lb := &cobra.Command{Use: "label", Short: "Manage labels"}
	lb.AddCommand(labelCreateCmd())
	lb.AddCommand(labelListCmd())
	return lb
}

func labelCreateCmd() *cobra.Command {
	var workspace, name, color string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create label",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				ws, err := e.Repo.GetWorkspaceBySlug(ctx, workspace)
				if err != nil {
					return err
				}
				l, err := e.CreateLabel(ctx, ws.ID, name, color)
				if err != nil {
					return err
				}
				return printJSONOrTable(l)
			})
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace slug")
	cmd.Flags().StringVar(&name, "name", "", "label name")
	cmd.Flags().StringVar(&color, "color", "", "hex color")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("name")
	return cmd
}

func labelListCmd() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List labels",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				ws, err := e.Repo.GetWorkspaceBySlug(ctx, workspace)
				if err != nil {
					return err
				}
				labels, err := e.Repo.ListLabels(ctx, ws.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(labels)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Color"})
				for _, l := range labels {
					tw.AppendRow(table.Row{l.ID, l.Name, l.Color})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace slug")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func apikeyCmd() *cobra.Command {
	ak := &cobra.Command{Use: "apikey", Short: "Manage API keys"}
	ak.AddCommand(apikeyCreateCmd())
	ak.AddCommand(apikeyListCmd())
	ak.AddCommand(apikeyRevokeCmd())
	return ak
}

func apikeyCreateCmd() *cobra.Command {
	var workspace, name string
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Mint an API key (plaintext shown once)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				ws, err := e.Repo.GetWorkspaceBySlug(ctx, workspace)
				if err != nil {
					return err
				}
				key, plaintext, err := e.CreateAPIKey(ctx, ws.ID, name)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(map[string]string{"id": key.ID, "key": plaintext})
				}
				fmt.Printf("id:  %s\nkey: %s\n(store it now; only the hash is kept)\n", key.ID, plaintext)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace slug")
	cmd.Flags().StringVar(&name, "name", "", "key name")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func apikeyListCmd() *cobra.Command {
	var workspace string
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List API keys",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				ws, err := e.Repo.GetWorkspaceBySlug(ctx, workspace)
				if err != nil {
					return err
				}
				keys, err := e.Repo.ListAPIKeys(ctx, ws.ID)
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(keys)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"ID", "Name", "Created"})
				for _, k := range keys {
					tw.AppendRow(table.Row{k.ID, k.Name, k.CreatedAt})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace slug")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func apikeyRevokeCmd() *cobra.Command {
	var id string
	cmd := &cobra.Command{
		Use:   "revoke",
		Short: "Revoke an API key",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				if err := e.Repo.DeleteAPIKey(ctx, id); err != nil {
					return err
				}
				fmt.Println("revoked", id)
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&id, "id", "", "api key id")
	_ = cmd.MarkFlagRequired("id")
	return cmd
}

func issueCmd() *cobra.Command {
	is := &cobra.Command{Use: "issue", Short: "Inspect issues"}
	is.AddCommand(issueListCmd())
	is.AddCommand(issueShowCmd())
	return is
}

func issueListCmd() *cobra.Command {
	var workspace, status string
	var limit int
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List issues",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				ws, err := e.Repo.GetWorkspaceBySlug(ctx, workspace)
				if err != nil {
					return err
				}
				issues, err := e.Repo.ListIssues(ctx, repo.IssueFilters{
					WorkspaceID: ws.ID,
					Status:      status,
					Limit:       limit,
				})
				if err != nil {
					return err
				}
				if viper.GetBool("json") {
					return printJSON(issues)
				}
				tw := table.NewWriter()
				tw.SetOutputMirror(os.Stdout)
				tw.AppendHeader(table.Row{"Identifier", "Title", "Status", "Priority"})
				for _, i := range issues {
					tw.AppendRow(table.Row{i.Identifier, i.Title, i.Status, i.Priority})
				}
				tw.Render()
				return nil
			})
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace slug")
	cmd.Flags().StringVar(&status, "status", "", "filter by status")
	cmd.Flags().IntVar(&limit, "limit", 100, "max rows")
	_ = cmd.MarkFlagRequired("workspace")
	return cmd
}

func issueShowCmd() *cobra.Command {
	var workspace, identifier string
	cmd := &cobra.Command{
		Use:   "show",
		Short: "Show an issue by identifier",
		RunE: func(cmd *cobra.Command, args []string) error {
			return withEngine(cmd.Context(), func(ctx context.Context, e *engine.Engine) error {
				ws, err := e.Repo.GetWorkspaceBySlug(ctx, workspace)
				if err != nil {
					return err
				}
				issue, err := e.Repo.GetIssueByIdentifier(ctx, ws.ID, identifier)
				if err != nil {
					return err
				}
				return printJSONOrTable(issue)
			})
		},
	}
	cmd.Flags().StringVar(&workspace, "workspace", "", "workspace slug")
	cmd.Flags().StringVar(&identifier, "identifier", "", "issue identifier, e.g. ENG-42")
	_ = cmd.MarkFlagRequired("workspace")
	_ = cmd.MarkFlagRequired("identifier")
	return cmd
}

func serveCmd() *cobra.Command {
	var addr, basePath, invalidateURL string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if addr == "" {
				addr = cfg.Server.Addr
			}
			if basePath == "" {
				basePath = cfg.Server.BasePath
			}
			conn, err := db.Open(db.Config{DataDir: viper.GetString("data-dir")})
			if err != nil {
				return err
			}
			defer conn.Close()
			if err := migrate.Migrate(conn); err != nil {
				return err
			}
			e := newEngine(conn, cfg)
			if invalidateURL != "" {
				e.Invalidate = server.HTTPInvalidator{
					Endpoint: invalidateURL,
					Secret:   os.Getenv("BOARDFLOW_REVALIDATE_SECRET"),
				}
			} else {
				e.Invalidate = server.LogInvalidator{}
			}
			authCfg := server.AuthConfig{JWTSecret: os.Getenv("BOARDFLOW_JWT_SECRET")}
			handler, err := server.New(server.Config{Engine: e, BasePath: basePath, Auth: authCfg})
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
			fmt.Printf("Serving Boardflow API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n", addr, basePath, basePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "listen address (defaults to config)")
	cmd.Flags().StringVar(&basePath, "base-path", "", "API base path (defaults to config)")
	cmd.Flags().StringVar(&invalidateURL, "invalidate-url", "", "frontend revalidation endpoint")
	return cmd
}

func printJSONOrTable(v any) error {
	if viper.GetBool("json") {
		return printJSON(v)
	}
	b, _ := json.MarshalIndent(v, "", "  ")
	fmt.Println(string(b))
	return nil
}

func printJSON(v any) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
