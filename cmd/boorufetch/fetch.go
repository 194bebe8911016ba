package main

import (
	"context"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"boorufetch/pkg/auth"
	"boorufetch/pkg/config"
	"boorufetch/pkg/logger"
	"boorufetch/pkg/scraper"
	"boorufetch/pkg/ui"
)

var (
	fetchTags        string
	fetchOutput      string
	fetchLogin       string
	fetchAPIKey      string
	fetchAccount     string
	fetchStartPage   int
	fetchEndPage     int
	fetchMaxPages    int
	fetchConcurrency int
	fetchTrigger     string
	fetchEmbedTags   bool
)

// fetchCmd runs the download pipeline
var fetchCmd = &cobra.Command{
	Use:   "fetch",
	Short: "Fetch, filter, and download posts matching a tag query",
	Long: `Fetch pulls post metadata page by page, screens each post against
the filter policy and the already-downloaded set, and downloads accepted
media concurrently. After all downloads complete, sidecar files are
normalized: search tags are moved to the front and the configured
trigger words are prepended.

Credentials come from stored accounts ('boorufetch auth login'),
environment variables (BOORUFETCH_LOGIN / BOORUFETCH_API_KEY), the
config file, or flags.`,
	Example: `  # Download everything matching two tags
  boorufetch fetch --tags "hatsune_miku 1girl" --output ./miku

  # Resume from page 40, embed tags in file names
  boorufetch fetch --tags "hatsune_miku" --start-page 40 --embed-tags

  # Use a stored account and a trigger word
  boorufetch fetch --tags "vtuber" --account myaccount --trigger-words "my style"`,
	Args: cobra.NoArgs,
	RunE: runFetch,
}

func init() {
	rootCmd.AddCommand(fetchCmd)

	fetchCmd.Flags().StringVarP(&fetchTags, "tags", "t", "", "space-separated search tags")
	fetchCmd.Flags().StringVarP(&fetchOutput, "output", "o", "", "output directory for downloads")
	fetchCmd.Flags().StringVar(&fetchLogin, "login", "", "booru user name")
	fetchCmd.Flags().StringVar(&fetchAPIKey, "api-key", "", "booru API key")
	fetchCmd.Flags().StringVarP(&fetchAccount, "account", "a", "", "use specific stored account")
	fetchCmd.Flags().IntVar(&fetchStartPage, "start-page", 0, "start from this page (for resuming)")
	fetchCmd.Flags().IntVar(&fetchEndPage, "end-page", 0, "stop before this page")
	fetchCmd.Flags().IntVar(&fetchMaxPages, "max-pages", 0, "maximum number of pages to fetch")
	fetchCmd.Flags().IntVar(&fetchConcurrency, "concurrency", 0, "number of concurrent downloads (default: CPUs-1)")
	fetchCmd.Flags().StringVar(&fetchTrigger, "trigger-words", "", "trigger words prepended to every sidecar")
	fetchCmd.Flags().BoolVar(&fetchEmbedTags, "embed-tags", false, "embed tags in artifact file names")
}

func runFetch(cmd *cobra.Command, args []string) error {
	flags := map[string]interface{}{
		"tags":          strings.TrimSpace(fetchTags),
		"output":        fetchOutput,
		"login":         fetchLogin,
		"api-key":       fetchAPIKey,
		"start-page":    fetchStartPage,
		"end-page":      fetchEndPage,
		"max-pages":     fetchMaxPages,
		"concurrency":   fetchConcurrency,
		"trigger-words": fetchTrigger,
		"log-level":     logLevel,
	}
	if cmd.Flags().Changed("embed-tags") {
		flags["embed-tags"] = fetchEmbedTags
	}

	// Stored credentials fill in whatever flags and env left empty
	if account := storedAccount(); account != nil {
		if _, ok := flags["login"].(string); !ok || flags["login"] == "" {
			flags["login"] = account.Username
		}
		if _, ok := flags["api-key"].(string); !ok || flags["api-key"] == "" {
			flags["api-key"] = account.APIKey
		}
	}

	cfg, err := config.Load(configFile, flags)
	if err != nil {
		ui.PrintError("Failed to load configuration", err.Error())
		return err
	}

	cfg.Logging.File = cfg.LogFile()
	if err := logger.Initialize(&cfg.Logging); err != nil {
		ui.PrintError("Failed to initialize logger", err.Error())
		return err
	}

	ui.PrintInfo("Query", cfg.Booru.Tags)
	ui.PrintInfo("Output", cfg.Output.Directory)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	s := scraper.New(cfg)
	summary, err := s.Run(ctx)
	if summary != nil {
		ui.PrintSummary(summary.Downloaded, summary.Rejected, summary.Duplicates, summary.Failed)
	}
	if err != nil {
		ui.PrintError("Run ended with error", err.Error())
		return err
	}

	ui.PrintSuccess("Done.")
	return nil
}

// storedAccount resolves credentials from the credential stores. With
// --account the named account is required; otherwise the first stored
// account, if any, is used.
func storedAccount() *auth.Account {
	manager, err := auth.NewManager()
	if err != nil {
		return nil
	}

	if fetchAccount != "" {
		account, err := manager.Retrieve(fetchAccount)
		if err != nil {
			ui.PrintWarning("Stored account not found: " + fetchAccount)
			return nil
		}
		return account
	}

	accounts, err := manager.List()
	if err != nil || len(accounts) == 0 {
		return nil
	}
	return accounts[0]
}
