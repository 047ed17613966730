package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"gopkg.in/yaml.v3"

	"github.com/rafaelmaranon/FixNow/internal/app"
	"github.com/rafaelmaranon/FixNow/internal/config"
	"github.com/rafaelmaranon/FixNow/internal/server"
	fixnowsdk "github.com/rafaelmaranon/FixNow/sdk/go"
)

var rootCmd = &cobra.Command{
	Use:   "fixnow",
	Short: "FixNow marketplace",
	Long: `FixNow matches homeowners who need a repair with nearby contractors.
- Jobs: a repair request with address, description, contact and budget. Creating one asks contractors for offers.
- Drafts: a job being written with the homeowner; photos can be triaged before it is published.
- Offers: each job gets a fast option and a budget option. Accepting one books the contractor.
- Events: the feed of everything the agents say and do, filtered by audience.
- Availability: contractors announce where and until when they can take work.
- Contractors: the public directory, browsed for display only.
Run 'fixnow serve' first; the other commands talk to the server given by --server.`,
	SilenceUsage: true,
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	cobra.OnInitialize(initConfig)
	addPersistentFlags()
	registerCommands()
	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Println("error:", err)
		os.Exit(1)
	}
}

func initConfig() {
	_ = godotenv.Load()
	viper.SetEnvPrefix("FIXNOW")
	viper.SetEnvKeyReplacer(strings.NewReplacer("-", "_", ".", "_"))
	viper.AutomaticEnv()
}

func addPersistentFlags() {
	rootCmd.PersistentFlags().StringP("config", "c", config.DefaultPath, "config file")
	rootCmd.PersistentFlags().String("server", "http://127.0.0.1:3001/api", "API base URL")
	rootCmd.PersistentFlags().Bool("json", false, "output JSON")
	_ = viper.BindPFlag("config", rootCmd.PersistentFlags().Lookup("config"))
	_ = viper.BindPFlag("server", rootCmd.PersistentFlags().Lookup("server"))
	_ = viper.BindPFlag("json", rootCmd.PersistentFlags().Lookup("json"))
}

func registerCommands() {
	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(configCmd())
	rootCmd.AddCommand(jobsCmd())
	rootCmd.AddCommand(draftsCmd())
	rootCmd.AddCommand(offersCmd())
	rootCmd.AddCommand(eventsCmd())
	rootCmd.AddCommand(availabilityCmd())
	rootCmd.AddCommand(contractorsCmd())
	rootCmd.AddCommand(dispatchCmd())
}

// loadConfig reads the config file and applies FIXNOW_* environment
// overrides on top.
func loadConfig() (*config.Config, error) {
	cfg, err := config.LoadOptional(viper.GetString("config"))
	if err != nil {
		return nil, err
	}
	o := config.Overrides{
		Addr:              viper.GetString("addr"),
		BasePath:          viper.GetString("base-path"),
		ReasoningMode:     viper.GetString("reasoning-mode"),
		ReasoningURL:      viper.GetString("reasoning-url"),
		ReasoningTimeout:  viper.GetInt("reasoning-timeout-ms"),
		ReasoningModel:    viper.GetString("reasoning-model"),
		ReasoningAPIKey:   viper.GetString("reasoning-api-key"),
		DirectoryURL:      viper.GetString("directory-url"),
		DirectorySnapshot: viper.GetString("directory-snapshot"),
		LogLevel:          viper.GetString("log-level"),
		LogFormat:         viper.GetString("log-format"),
	}
	if err := o.Apply(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func serveCmd() *cobra.Command {
	var seed string
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start HTTP API server",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			logger, err := app.NewLogger(os.Stderr, cfg.Log.Level, cfg.Log.Format)
			if err != nil {
				return err
			}
			ctx := cmd.Context()
			a, err := app.Build(ctx, cfg, nil, logger)
			if err != nil {
				return err
			}
			defer a.Close()
			if seed != "" {
				jobs, err := app.LoadSeed(seed)
				if err != nil {
					return err
				}
				if err := a.Engine.ImportJobs(ctx, jobs); err != nil {
					return err
				}
				logger.Info("seed loaded", "path", seed, "jobs", len(jobs))
			}
			handler, err := server.New(server.Config{
				Engine:    a.Engine,
				Directory: a.Directory,
				BasePath:  cfg.Server.BasePath,
				Logger:    logger,
			})
			if err != nil {
				return err
			}
			server.StartWebhooks(ctx, a.Engine.Events, cfg.Webhooks, logger)
			srv := &http.Server{Addr: cfg.Server.Addr, Handler: handler}
			go func() {
				<-ctx.Done()
				shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
				defer cancel()
				srv.Shutdown(shutdownCtx)
			}()
			fmt.Printf("Serving FixNow API on http://%s%s (OpenAPI at %s/openapi.json, Swagger UI at /docs)\n",
				cfg.Server.Addr, cfg.Server.BasePath, cfg.Server.BasePath)
			if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				return err
			}
			return nil
		},
	}
	cmd.Flags().String("addr", "", "listen address (overrides config)")
	cmd.Flags().String("base-path", "", "API base path (overrides config)")
	cmd.Flags().StringVar(&seed, "seed", "", "JSON file of jobs to load at startup")
	_ = viper.BindPFlag("addr", cmd.Flags().Lookup("addr"))
	_ = viper.BindPFlag("base-path", cmd.Flags().Lookup("base-path"))
	return cmd
}

func configCmd() *cobra.Command {
	cfgCmd := &cobra.Command{Use: "config", Short: "Inspect configuration"}
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "default",
		Short: "Print the default config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Print(config.GenerateDefault())
			return nil
		},
	})
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "show",
		Short: "Print the effective config",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(cfg)
			}
			cfg.Reasoning.APIKey = redact(cfg.Reasoning.APIKey)
			out, err := yaml.Marshal(cfg)
			if err != nil {
				return err
			}
			fmt.Print(string(out))
			return nil
		},
	})
	cfgCmd.AddCommand(&cobra.Command{
		Use:   "validate",
		Short: "Validate the config file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if _, err := loadConfig(); err != nil {
				return err
			}
			fmt.Println("config ok")
			return nil
		},
	})
	return cfgCmd
}

func jobsCmd() *cobra.Command {
	jobs := &cobra.Command{Use: "jobs", Short: "Manage jobs"}
	jobs.AddCommand(jobsListCmd())
	jobs.AddCommand(jobsCreateCmd())
	jobs.AddCommand(jobsGetCmd())
	jobs.AddCommand(jobsHoldCmd())
	return jobs
}

func jobsListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List jobs",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := client().ListJobs(cmd.Context())
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "Category", "Status", "Price", "Urgency", "Address"})
			for _, j := range items {
				tw.AppendRow(table.Row{j.ID, j.Category, j.Status, j.Price, j.Urgency, j.Address})
			}
			tw.Render()
			return nil
		},
	}
}

func jobsCreateCmd() *cobra.Command {
	var in fixnowsdk.NewJob
	cmd := &cobra.Command{
		Use:   "create",
		Short: "Create a job and request offers",
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := client().CreateJob(cmd.Context(), in)
			if err != nil {
				return err
			}
			return printJSONOrTable(job)
		},
	}
	cmd.Flags().StringVar(&in.Category, "category", "", "trade category")
	cmd.Flags().StringVar(&in.Address, "address", "", "street address")
	cmd.Flags().StringVar(&in.Description, "description", "", "what needs fixing")
	cmd.Flags().StringVar(&in.CustomerName, "customer", "", "customer name")
	cmd.Flags().StringVar(&in.Phone, "phone", "", "contact phone")
	cmd.Flags().StringVar(&in.Urgency, "urgency", "", "low, medium, high or emergency")
	cmd.Flags().Float64Var(&in.Price, "price", 0, "budget")
	_ = cmd.MarkFlagRequired("address")
	_ = cmd.MarkFlagRequired("description")
	return cmd
}

func jobsGetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "get <id>",
		Short: "Show a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := client().GetJob(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSONOrTable(job)
		},
	}
}

func jobsHoldCmd() *cobra.Command {
	var minutes int
	cmd := &cobra.Command{
		Use:   "hold <id>",
		Short: "Hold a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			until, err := client().HoldJob(cmd.Context(), args[0], minutes)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(map[string]string{"holdUntil": until})
			}
			fmt.Printf("Job %s held until %s\n", args[0], until)
			return nil
		},
	}
	cmd.Flags().IntVar(&minutes, "minutes", 10, "hold duration")
	return cmd
}

func draftsCmd() *cobra.Command {
	drafts := &cobra.Command{Use: "drafts", Short: "Write and publish job drafts"}
	var category string
	create := &cobra.Command{
		Use:   "create <text>",
		Short: "Start a draft from the homeowner's words",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			d, err := client().CreateDraft(cmd.Context(), strings.Join(args, " "), category)
			if err != nil {
				return err
			}
			return printJSONOrTable(d)
		},
	}
	create.Flags().StringVar(&category, "category", "", "trade category")

	var budget float64
	var urgency string
	patch := &cobra.Command{
		Use:   "patch <id>",
		Short: "Update a draft",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			fields := map[string]any{}
			if cmd.Flags().Changed("budget") {
				fields["budget_hint"] = budget
			}
			if cmd.Flags().Changed("urgency") {
				fields["urgency"] = urgency
			}
			if cmd.Flags().Changed("category") {
				fields["category"] = category
			}
			d, err := client().PatchDraft(cmd.Context(), args[0], fields)
			if err != nil {
				return err
			}
			return printJSONOrTable(d)
		},
	}
	patch.Flags().Float64Var(&budget, "budget", 0, "budget hint")
	patch.Flags().StringVar(&urgency, "urgency", "", "low, medium, high or emergency")
	patch.Flags().StringVar(&category, "category", "", "trade category")

	publish := &cobra.Command{
		Use:   "publish <id>",
		Short: "Publish a draft as a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			job, err := client().PublishDraft(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			return printJSONOrTable(job)
		},
	}
	drafts.AddCommand(create, patch, publish)
	return drafts
}

func offersCmd() *cobra.Command {
	offers := &cobra.Command{Use: "offers", Short: "Review and accept offers"}
	offers.AddCommand(&cobra.Command{
		Use:   "list <jobId>",
		Short: "List offers for a job",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := client().Offers(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "Contractor", "Type", "Price", "ETA", "Rating"})
			for _, o := range items {
				tw.AppendRow(table.Row{o.ID, o.ContractorName, o.Type, o.Price, o.ETA, o.Rating})
			}
			tw.Render()
			return nil
		},
	})
	offers.AddCommand(&cobra.Command{
		Use:   "accept <offerId>",
		Short: "Accept an offer and book the contractor",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			got, err := client().AcceptOffer(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(got)
			}
			b := got.Booking
			fmt.Printf("Booked %s for $%g, arriving by %s (±%d min). Booking %s\n",
				b.ContractorName, b.Price, b.ArrivalBy, b.WindowMin, b.ID)
			return nil
		},
	})
	return offers
}

func eventsCmd() *cobra.Command {
	evts := &cobra.Command{Use: "events", Short: "Read the event feed"}
	var n int
	var audience, contractor string
	tail := &cobra.Command{
		Use:   "tail",
		Short: "Show recent events",
		RunE: func(cmd *cobra.Command, args []string) error {
			var (
				items []fixnowsdk.Event
				err   error
			)
			if contractor != "" {
				items, err = client().ContractorFeed(cmd.Context(), contractor, n)
			} else {
				items, err = client().Events(cmd.Context(), n, audience)
			}
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"Time", "Agent", "Action", "Job", "Audience", "Message"})
			for _, e := range items {
				tw.AppendRow(table.Row{e.Timestamp, e.Agent, e.Action, e.JobID, e.Audience, e.Message})
			}
			tw.Render()
			return nil
		},
	}
	tail.Flags().IntVar(&n, "n", 20, "number of events")
	tail.Flags().StringVar(&audience, "audience", "", "homeowner, contractor or both")
	tail.Flags().StringVar(&contractor, "contractor", "", "show one contractor's feed")
	evts.AddCommand(tail)
	return evts
}

func availabilityCmd() *cobra.Command {
	av := &cobra.Command{Use: "availability", Short: "Manage contractor availability"}

	var in fixnowsdk.AvailabilityInput
	var loc fixnowsdk.Location
	set := &cobra.Command{
		Use:   "set <contractorId>",
		Short: "Announce availability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if loc != (fixnowsdk.Location{}) {
				in.Location = &loc
			}
			got, err := client().SetAvailability(cmd.Context(), args[0], in)
			if err != nil {
				return err
			}
			return printJSONOrTable(got)
		},
	}
	set.Flags().StringSliceVar(&in.Skills, "skills", nil, "trades offered")
	set.Flags().IntVar(&in.RadiusMeters, "radius", 0, "service radius in meters")
	set.Flags().IntVar(&in.DurationMinutes, "minutes", 0, "window length")
	set.Flags().Float64Var(&in.BudgetMax, "budget-max", 0, "largest job budget wanted")
	set.Flags().StringVar(&in.Notes, "notes", "", "free text")
	set.Flags().StringVar(&loc.Address, "address", "", "current address")
	set.Flags().Float64Var(&loc.Lat, "lat", 0, "latitude")
	set.Flags().Float64Var(&loc.Lng, "lng", 0, "longitude")

	clearCmd := &cobra.Command{
		Use:   "clear <contractorId>",
		Short: "Withdraw availability",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if err := client().ClearAvailability(cmd.Context(), args[0]); err != nil {
				return err
			}
			fmt.Printf("Availability cleared for %s\n", args[0])
			return nil
		},
	}

	var skill string
	list := &cobra.Command{
		Use:   "list",
		Short: "List live availability windows",
		RunE: func(cmd *cobra.Command, args []string) error {
			items, err := client().ListAvailability(cmd.Context(), skill)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(items)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"Contractor", "Skills", "Radius", "Until", "Address"})
			for _, a := range items {
				tw.AppendRow(table.Row{a.ContractorID, strings.Join(a.Skills, ", "), a.RadiusMeters, a.Until, a.Location.Address})
			}
			tw.Render()
			return nil
		},
	}
	list.Flags().StringVar(&skill, "skill", "", "only contractors with this skill")

	av.AddCommand(set, clearCmd, list)
	return av
}

func contractorsCmd() *cobra.Command {
	cc := &cobra.Command{Use: "contractors", Short: "Browse the contractor directory"}
	var category, hood string
	var limit int
	list := &cobra.Command{
		Use:   "list",
		Short: "List directory contractors",
		RunE: func(cmd *cobra.Command, args []string) error {
			listing, err := client().Contractors(cmd.Context(), category, hood, limit)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(listing)
			}
			if listing.Stale {
				fmt.Printf("Directory unreachable, showing snapshot from %s\n", listing.FetchedAt)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"ID", "Name", "Category", "Area", "Rating", "Price", "ETA"})
			for _, c := range listing.Contractors {
				tw.AppendRow(table.Row{c.ID, c.Name, c.Category, c.ServiceArea, c.Rating, c.PriceRange, c.ETA})
			}
			tw.Render()
			return nil
		},
	}
	list.Flags().StringVar(&category, "category", "", "trade category")
	list.Flags().StringVar(&hood, "neighborhood", "", "neighborhood key")
	list.Flags().IntVar(&limit, "limit", 0, "maximum results")

	refresh := &cobra.Command{
		Use:   "refresh",
		Short: "Refetch the directory",
		RunE: func(cmd *cobra.Command, args []string) error {
			n, hoods, err := client().RefreshContractors(cmd.Context())
			if err != nil {
				return err
			}
			fmt.Printf("Refreshed %d contractors and %d neighborhoods\n", n, hoods)
			return nil
		},
	}
	cc.AddCommand(list, refresh)
	return cc
}

func dispatchCmd() *cobra.Command {
	var strategy string
	var limit int
	cmd := &cobra.Command{
		Use:   "dispatch",
		Short: "Simulate contacting nearby contractors",
		RunE: func(cmd *cobra.Command, args []string) error {
			res, err := client().Dispatch(cmd.Context(), strategy, limit)
			if err != nil {
				return err
			}
			if viper.GetBool("json") {
				return printJSON(res)
			}
			tw := newTable()
			tw.AppendHeader(table.Row{"Contractor", "Reply", "ETA (min)", "Price", "Message"})
			for _, r := range res.Replies {
				tw.AppendRow(table.Row{r.ContractorName, r.Type, r.ETAMinutes, r.Price, r.Message})
			}
			tw.AppendFooter(table.Row{"", fmt.Sprintf("%d accepted", res.Summary.Accepted),
				fmt.Sprintf("%d countered", res.Summary.Countered), fmt.Sprintf("%d declined", res.Summary.Declined), ""})
			tw.Render()
			return nil
		},
	}
	cmd.Flags().StringVar(&strategy, "strategy", "topNearby", "selection strategy")
	cmd.Flags().IntVar(&limit, "limit", 5, "contractors to contact (max 5)")
	return cmd
}

// --- helpers ---

func client() *fixnowsdk.Client {
	return fixnowsdk.New(viper.GetString("server"))
}

func newTable() table.Writer {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.SetStyle(table.StyleLight)
	return tw
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

func redact(s string) string {
	if s == "" {
		return s
	}
	return "***"
}
