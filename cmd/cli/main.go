package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/noahpengding/peng-finance/internal/auth"
	"github.com/noahpengding/peng-finance/internal/category"
	"github.com/noahpengding/peng-finance/internal/config"
	"github.com/noahpengding/peng-finance/internal/currency"
	"github.com/noahpengding/peng-finance/internal/dedup"
	"github.com/noahpengding/peng-finance/internal/domain"
	"github.com/noahpengding/peng-finance/internal/jobs"
	"github.com/noahpengding/peng-finance/internal/jobs/inmemory"
	"github.com/noahpengding/peng-finance/internal/logger"
	"github.com/noahpengding/peng-finance/internal/mapping"
	"github.com/noahpengding/peng-finance/internal/objectstore"
	"github.com/noahpengding/peng-finance/internal/pipeline"
	"github.com/noahpengding/peng-finance/internal/query"
	"github.com/noahpengding/peng-finance/internal/snapshot"
	"github.com/noahpengding/peng-finance/internal/store/postgres"
)

func main() {
	log := logger.New()

	if len(os.Args) < 2 {
		printUsage()
		os.Exit(1)
	}

	switch os.Args[1] {
	case "import":
		runImport(log)
	case "mapping-get":
		runMappingGet(log)
	case "mapping-save":
		runMappingSave(log)
	case "accounts":
		runAccounts(log)
	case "assign":
		runAssign(log)
	case "categories":
		runCategories(log)
	case "uncategorized":
		runUncategorized(log)
	case "dedupe":
		runDedupe(log)
	case "list":
		runList(log)
	case "user-create":
		runUserCreate(log)
	case "sync":
		runSync(log)
	case "help", "-h", "--help":
		printUsage()
	default:
		fmt.Fprintf(os.Stderr, "Unknown command: %s\n\n", os.Args[1])
		printUsage()
		os.Exit(1)
	}
}

func printUsage() {
	fmt.Println("Peng Finance CLI")
	fmt.Println("\nUsage:")
	fmt.Println("  cli <command> [options]")
	fmt.Println("\nCommands:")
	fmt.Println("  import         Import a CSV statement using the account's field mappings")
	fmt.Println("  mapping-get    Show the field mappings saved for an account")
	fmt.Println("  mapping-save   Replace the field mappings for an account")
	fmt.Println("  accounts       List accounts that have saved mappings")
	fmt.Println("  assign         Save a categorization rule and backfill matching transactions")
	fmt.Println("  categories     List known target categories")
	fmt.Println("  uncategorized  List a user's uncategorized transactions")
	fmt.Println("  dedupe         Remove duplicate transactions for a user")
	fmt.Println("  list           Show a filtered transaction view with totals")
	fmt.Println("  user-create    Create a user account")
	fmt.Println("  sync           Push a snapshot of the store to object storage now")
	fmt.Println("  help           Show this help message")
	fmt.Println("\nRun 'cli <command> -h' for more information on a command.")
}

// app bundles the shared wiring every command needs. The sync queue runs a
// single worker for the life of the command so that mutations enqueued
// during the run are flushed before exit.
type app struct {
	cfg       config.Config
	storage   *postgres.Storage
	objects   objectstore.Store
	snapshots *snapshot.Service
	queue     *inmemory.Queue
}

func newApp(ctx context.Context, log zerolog.Logger) (*app, error) {
	cfg := config.Load()

	pool, err := postgres.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, err
	}
	storage := postgres.NewStorage(pool)

	objects := objectstore.NewGCSStore(cfg.Bucket)
	snapshots := snapshot.NewService(storage, storage, storage, storage, objects, cfg.SnapshotPrefix)

	queue := inmemory.NewQueue(cfg.SyncQueueSize, 1, cfg.SyncMaxRetries, inmemory.NewStore())
	handler := func(ctx context.Context, job jobs.Job) error {
		return snapshots.Sync(ctx)
	}
	if err := queue.Start(ctx, handler); err != nil {
		pool.Close()
		return nil, err
	}

	return &app{
		cfg:       cfg,
		storage:   storage,
		objects:   objects,
		snapshots: snapshots,
		queue:     queue,
	}, nil
}

// close drains in-flight sync jobs before shutting the queue down.
func (a *app) close(log zerolog.Logger) {
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	if err := a.queue.Stop(ctx); err != nil {
		log.Error().Err(err).Msg("Sync queue did not drain cleanly")
	}
	if err := a.queue.Close(); err != nil {
		log.Error().Err(err).Msg("Failed to close sync queue")
	}
}

func (a *app) importer() *pipeline.Importer {
	rates := currency.NewAPIRates(a.cfg.RateAPIURL, a.cfg.BaseCurrency, a.cfg.RateCacheTTL)
	normalizer := currency.NewNormalizer(a.cfg.BaseCurrency, rates)
	resolver := category.NewService(a.storage, a.storage, a.queue)
	return pipeline.NewImporter(
		mapping.NewService(a.storage),
		resolver,
		normalizer,
		a.storage,
		a.objects,
		a.cfg.UploadPrefix,
		a.queue,
	)
}

func runImport(log zerolog.Logger) {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	username := fs.String("user", "", "Username owning the imported transactions")
	account := fs.String("account", "", "Account the statement belongs to")
	file := fs.String("file", "", "Path to the CSV statement")
	fs.Parse(os.Args[2:])

	if *username == "" || *account == "" || *file == "" {
		log.Fatal().Msg("Usage: cli import -user NAME -account NAME -file PATH")
	}

	data, err := os.ReadFile(*file)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to read statement file")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close(log)

	n, err := a.importer().Import(ctx, pipeline.ImportRequest{
		Username: *username,
		Account:  *account,
		Filename: *file,
		Data:     data,
	})
	if err != nil {
		log.Fatal().Err(err).Int("inserted", n).Msg("Import failed")
	}

	fmt.Printf("Imported %d transactions into %s.\n", n, *account)
}

func runMappingGet(log zerolog.Logger) {
	fs := flag.NewFlagSet("mapping-get", flag.ExitOnError)
	account := fs.String("account", "", "Account to show mappings for")
	fs.Parse(os.Args[2:])

	if *account == "" {
		log.Fatal().Msg("Usage: cli mapping-get -account NAME")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close(log)

	mappings, err := mapping.NewService(a.storage).Get(ctx, *account)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load mappings")
	}
	if len(mappings) == 0 {
		fmt.Printf("No mappings saved for %s.\n", *account)
		return
	}
	for _, field := range domain.CanonicalFields {
		if source, ok := mappings[field]; ok {
			fmt.Printf("  %-18s %s\n", field, source)
		}
	}
}

func runMappingSave(log zerolog.Logger) {
	fs := flag.NewFlagSet("mapping-save", flag.ExitOnError)
	account := fs.String("account", "", "Account to save mappings for")
	sources := map[domain.CanonicalField]*string{
		domain.FieldAccountType:      fs.String("account-type", "", "Source for account_type"),
		domain.FieldDate:             fs.String("date", "", "Source for date"),
		domain.FieldPostDate:         fs.String("post-date", "", "Source for post_date"),
		domain.FieldOriginalCategory: fs.String("original-category", "", "Source for original_category"),
		domain.FieldMerchantName:     fs.String("merchant", "", "Source for merchant_name"),
		domain.FieldDescription:      fs.String("description", "", "Source for description"),
		domain.FieldCurrency:         fs.String("currency", "", "Source for currency"),
		domain.FieldAmount:           fs.String("amount", "", "Source for amount"),
	}
	fs.Parse(os.Args[2:])

	if *account == "" {
		log.Fatal().Msg("Usage: cli mapping-save -account NAME -date COL -post-date COL ...")
	}

	mappings := make(map[domain.CanonicalField]string)
	for field, source := range sources {
		if *source != "" {
			mappings[field] = *source
		}
	}
	if err := mapping.ValidateRequired(mappings); err != nil {
		log.Fatal().Err(err).Msg("Mappings incomplete")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close(log)

	if err := mapping.NewService(a.storage).Save(ctx, *account, mappings); err != nil {
		log.Fatal().Err(err).Msg("Failed to save mappings")
	}
	if err := a.queue.PublishSync(ctx, &jobs.SyncJob{Reason: "save_mapping"}); err != nil {
		log.Warn().Err(err).Msg("Could not enqueue snapshot sync")
	}

	fmt.Printf("Saved %d field mappings for %s.\n", len(mappings), *account)
}

func runAccounts(log zerolog.Logger) {
	fs := flag.NewFlagSet("accounts", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close(log)

	accounts, err := mapping.NewService(a.storage).ListAccounts(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list accounts")
	}
	for _, account := range accounts {
		fmt.Println(account)
	}
}

func runAssign(log zerolog.Logger) {
	fs := flag.NewFlagSet("assign", flag.ExitOnError)
	original := fs.String("original-category", "", "Original category of the triple")
	merchant := fs.String("merchant", "", "Merchant name of the triple")
	description := fs.String("description", "", "Description of the triple")
	target := fs.String("category", "", "Target category to assign")
	fs.Parse(os.Args[2:])

	if *target == "" {
		log.Fatal().Msg("Usage: cli assign -merchant NAME -description TEXT -category NAME [-original-category NAME]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close(log)

	svc := category.NewService(a.storage, a.storage, a.queue)
	updated, err := svc.Assign(ctx, *original, *merchant, *description, *target)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to save rule")
	}

	fmt.Printf("Rule saved; %d existing transactions recategorized as %s.\n", updated, *target)
}

func runCategories(log zerolog.Logger) {
	fs := flag.NewFlagSet("categories", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close(log)

	categories, err := category.NewService(a.storage, a.storage, nil).ListCategories(ctx)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list categories")
	}
	for _, c := range categories {
		fmt.Println(c)
	}
}

func runUncategorized(log zerolog.Logger) {
	fs := flag.NewFlagSet("uncategorized", flag.ExitOnError)
	username := fs.String("user", "", "Username to list transactions for")
	fs.Parse(os.Args[2:])

	if *username == "" {
		log.Fatal().Msg("Usage: cli uncategorized -user NAME")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close(log)

	txs, err := category.NewService(a.storage, a.storage, nil).ListUncategorized(ctx, *username)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list uncategorized transactions")
	}
	printTransactions(txs)
}

func runDedupe(log zerolog.Logger) {
	fs := flag.NewFlagSet("dedupe", flag.ExitOnError)
	username := fs.String("user", "", "Username to deduplicate")
	fs.Parse(os.Args[2:])

	if *username == "" {
		log.Fatal().Msg("Usage: cli dedupe -user NAME")
	}

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close(log)

	removed, err := dedup.NewService(a.storage, a.queue).Deduplicate(ctx, *username)
	if err != nil {
		log.Fatal().Err(err).Msg("Deduplication failed")
	}

	fmt.Printf("Removed %d duplicate transactions.\n", removed)
}

func runList(log zerolog.Logger) {
	fs := flag.NewFlagSet("list", flag.ExitOnError)
	username := fs.String("user", "", "Username to list transactions for")
	accounts := fs.String("accounts", "", "Comma-separated accounts to include (default all)")
	postDates := fs.String("post-dates", "", "Comma-separated post dates to include (default all)")
	categories := fs.String("categories", "", "Comma-separated categories to include (default all)")
	merchants := fs.String("merchants", "", "Comma-separated merchants to include (default all)")
	fs.Parse(os.Args[2:])

	if *username == "" {
		log.Fatal().Msg("Usage: cli list -user NAME [-accounts A,B] [-post-dates D,E] [-categories C] [-merchants M]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close(log)

	txs, err := a.storage.ListForUser(ctx, *username)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to list transactions")
	}

	opts := query.FilterOptions(txs)
	filtered := query.Filter(txs,
		splitOrAll(*accounts, opts.Accounts),
		splitOrAll(*postDates, opts.PostDates),
		splitOrAll(*categories, opts.Categories),
		splitOrAll(*merchants, opts.Merchants),
	)
	printTransactions(filtered)

	totals := query.Aggregate(filtered)
	fmt.Printf("\n%d transactions, total %.2f\n", totals.Count, totals.Sum)
}

func runUserCreate(log zerolog.Logger) {
	fs := flag.NewFlagSet("user-create", flag.ExitOnError)
	username := fs.String("user", "", "Username for the new account")
	password := fs.String("password", "", "Password for the new account")
	email := fs.String("email", "", "Email address (optional)")
	fs.Parse(os.Args[2:])

	if *username == "" || *password == "" {
		log.Fatal().Msg("Usage: cli user-create -user NAME -password SECRET [-email ADDR]")
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close(log)

	user, err := auth.NewService(a.storage).Register(ctx, *username, *password, *email)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create user")
	}

	fmt.Printf("Created user %s.\n", user.Username)
}

func runSync(log zerolog.Logger) {
	fs := flag.NewFlagSet("sync", flag.ExitOnError)
	fs.Parse(os.Args[2:])

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()
	ctx = logger.WithContext(ctx, log)

	a, err := newApp(ctx, log)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}
	defer a.close(log)

	if err := a.snapshots.Sync(ctx); err != nil {
		log.Fatal().Err(err).Msg("Snapshot sync failed")
	}

	fmt.Println("Snapshot pushed.")
}

// splitOrAll parses a comma-separated flag value, falling back to the full
// observed universe when the flag is unset.
func splitOrAll(raw string, universe []string) []string {
	if raw == "" {
		return universe
	}
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		out = append(out, strings.TrimSpace(p))
	}
	return out
}

func printTransactions(txs []*domain.Transaction) {
	if len(txs) == 0 {
		fmt.Println("No transactions.")
		return
	}
	sort.SliceStable(txs, func(i, j int) bool { return txs[i].ID < txs[j].ID })
	fmt.Printf("%-6s %-16s %-12s %-14s %-24s %-10s %10s\n",
		"ID", "ACCOUNT", "POST DATE", "CATEGORY", "MERCHANT", "CURRENCY", "AMOUNT")
	for _, t := range txs {
		fmt.Printf("%-6d %-16s %-12s %-14s %-24s %-10s %10.2f\n",
			t.ID, t.Account, t.PostDate, t.Category, t.MerchantName, t.Currency, t.Amount)
	}
}
