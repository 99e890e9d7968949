// Package main is mealctl, the terminal client for the nutrilog API.
//
// mealctl keeps a local draft store and runs the same polling machinery
// the web UI would: submitting a meal adds an optimistic pending draft,
// a poller watches it until the server settles it, and the dependent
// views (draft list, summaries, streak) are refetched as they go stale.
//
// USAGE:
//
//	mealctl login -email a@b.c            # prompts for password, prints token
//	mealctl log "oatmeal with berries"    # submit, poll until settled
//	mealctl log -url https://example.com/recipe
//	mealctl log -save "..."               # auto-save once complete
//	mealctl drafts [-watch]               # list drafts, optionally poll to settle
//	mealctl save <draftID>
//	mealctl discard <draftID>
//	mealctl meals                         # list saved meals
//	mealctl today | mealctl week | mealctl streak
//
// Configuration comes from NUTRILOG_SERVER and NUTRILOG_TOKEN (or a
// local .env file).
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/sakif/nutrilog/internal/client"
	"github.com/sakif/nutrilog/internal/config"
	"github.com/sakif/nutrilog/internal/model"
	"github.com/sakif/nutrilog/internal/track"
)

func main() {
	// Logs go to stderr at Warn so they never pollute command output;
	// MEALCTL_DEBUG=1 turns on the poller's debug lines.
	level := slog.LevelWarn
	if os.Getenv("MEALCTL_DEBUG") != "" {
		level = slog.LevelDebug
	}
	logger := slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))

	_ = godotenv.Load()

	cfg, err := config.ClientFromEnv()
	if err != nil {
		fatal("invalid configuration: %v", err)
	}

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	app := &cli{
		api:    client.New(cfg.ServerURL, cfg.Token),
		logger: logger,
	}

	cmd, args := os.Args[1], os.Args[2:]
	ctx := context.Background()

	switch cmd {
	case "login":
		err = app.login(ctx, args)
	case "register":
		err = app.register(ctx, args)
	case "log":
		err = app.log(ctx, args)
	case "drafts":
		err = app.drafts(ctx, args)
	case "save":
		err = app.save(ctx, args)
	case "discard":
		err = app.discard(ctx, args)
	case "meals":
		err = app.meals(ctx)
	case "today":
		err = app.today(ctx, args)
	case "week":
		err = app.week(ctx, args)
	case "streak":
		err = app.streak(ctx)
	default:
		usage()
		os.Exit(2)
	}

	if err != nil {
		fatal("%v", err)
	}
}

func usage() {
	fmt.Fprintln(os.Stderr, "usage: mealctl <login|register|log|drafts|save|discard|meals|today|week|streak> [args]")
}

func fatal(format string, args ...interface{}) {
	fmt.Fprintf(os.Stderr, "mealctl: "+format+"\n", args...)
	os.Exit(1)
}

type cli struct {
	api    *client.Client
	logger *slog.Logger
}

func (c *cli) login(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("login", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	fs.Parse(args)

	if *email == "" {
		return fmt.Errorf("login: -email is required")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	token, user, err := c.api.Login(ctx, *email, password)
	if err != nil {
		return err
	}

	fmt.Printf("logged in as %s\n", user.Email)
	fmt.Printf("export NUTRILOG_TOKEN=%s\n", token)
	return nil
}

func (c *cli) register(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("register", flag.ExitOnError)
	email := fs.String("email", "", "account email")
	name := fs.String("name", "", "display name")
	fs.Parse(args)

	if *email == "" {
		return fmt.Errorf("register: -email is required")
	}

	password, err := readPassword()
	if err != nil {
		return err
	}

	token, user, err := c.api.Register(ctx, *email, *name, password)
	if err != nil {
		return err
	}

	fmt.Printf("registered %s\n", user.Email)
	fmt.Printf("export NUTRILOG_TOKEN=%s\n", token)
	return nil
}

// log submits a meal and watches it until the server settles it. This is
// the command that runs the full draft machinery: optimistic local entry,
// per-item poller, cache reconciliation on settle.
func (c *cli) log(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("log", flag.ExitOnError)
	rawURL := fs.String("url", "", "recipe URL to analyse instead of free text")
	autosave := fs.Bool("save", false, "save the meal automatically once analysis completes")
	wait := fs.Duration("wait", 2*time.Minute, "how long to wait for analysis before giving up")
	fs.Parse(args)

	description := strings.TrimSpace(strings.Join(fs.Args(), " "))
	if description == "" && *rawURL == "" {
		return fmt.Errorf("log: a meal description or -url is required")
	}

	draft, err := c.api.CreateDraft(ctx, description, *rawURL)
	if err != nil {
		return err
	}
	fmt.Printf("draft %s submitted, analysing...\n", draft.ID)

	store := track.NewStore(c.logger)
	store.Add(*draft)

	caches := track.NewCacheSet(c.logger)
	caches.Register(track.KeyStreak, func() {
		if streak, err := c.api.Streak(context.Background()); err == nil && streak.Current > 1 {
			fmt.Printf("streak: %d days\n", streak.Current)
		}
	})

	poller := track.NewItemPoller(draft.ID, store, c.api, caches, nil, 0, c.logger)
	poller.Start()
	defer poller.Stop()

	settled, err := waitForSettle(store, draft.ID, *wait)
	if err != nil {
		return err
	}

	if settled.Status == model.StatusError {
		fmt.Printf("analysis failed: %s\n", settled.ErrorMessage)
		fmt.Printf("discard with: mealctl discard %s\n", settled.ID)
		return nil
	}

	printResult(settled)

	if *autosave {
		meal, err := poller.Save(ctx)
		if err != nil {
			return err
		}
		fmt.Printf("saved as meal %s\n", meal.ID)
	} else {
		fmt.Printf("save with: mealctl save %s\n", settled.ID)
	}
	return nil
}

// waitForSettle blocks until the draft leaves the pending states.
func waitForSettle(store *track.Store, id string, wait time.Duration) (*model.Draft, error) {
	changes := store.Subscribe()
	deadline := time.NewTimer(wait)
	defer deadline.Stop()

	for {
		draft, ok := store.Get(id)
		if !ok {
			return nil, fmt.Errorf("draft %s disappeared", id)
		}
		if !draft.Status.IsPending() {
			return &draft, nil
		}

		select {
		case <-changes:
		case <-deadline.C:
			return nil, fmt.Errorf("analysis still pending after %s; check later with `mealctl drafts`", wait)
		}
	}
}

// drafts lists drafts via the track store so the output always reflects
// an authoritative fetch, not whatever was cached locally. With -watch it
// keeps the global scheduler running until every pending draft settles.
func (c *cli) drafts(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("drafts", flag.ExitOnError)
	watch := fs.Bool("watch", false, "poll pending drafts until they all settle")
	fs.Parse(args)

	serverDrafts, err := c.api.ListDrafts(ctx)
	if err != nil {
		return err
	}

	store := track.NewStore(c.logger)
	for _, d := range serverDrafts {
		store.Apply(d)
	}

	printDrafts(store.List())

	if !*watch || store.PendingCount() == 0 {
		return nil
	}

	fmt.Printf("watching %d pending draft(s)...\n", store.PendingCount())
	sched := track.NewScheduler(store, c.api, track.NopReconciler{}, 0, c.logger)
	sched.Start()
	defer sched.Stop()

	changes := store.Subscribe()
	for store.PendingCount() > 0 {
		<-changes
	}

	fmt.Println()
	printDrafts(store.List())
	return nil
}

func printDrafts(drafts []model.Draft) {
	if len(drafts) == 0 {
		fmt.Println("no drafts")
		return
	}
	for _, d := range drafts {
		line := fmt.Sprintf("%s  %-12s  %s", d.ID, d.Status, firstLine(d.Description))
		if d.Status == model.StatusComplete && d.Result != nil {
			line += fmt.Sprintf("  (%.0f kcal)", d.Result.Totals.Calories)
		}
		fmt.Println(line)
	}
}

func (c *cli) save(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mealctl save <draftID>")
	}
	meal, err := c.api.SaveDraftAsMeal(ctx, args[0])
	if err != nil {
		return err
	}
	fmt.Printf("saved as meal %s (%s, %.0f kcal)\n", meal.ID, meal.Name, meal.Totals.Calories)
	return nil
}

func (c *cli) discard(ctx context.Context, args []string) error {
	if len(args) != 1 {
		return fmt.Errorf("usage: mealctl discard <draftID>")
	}
	if err := c.api.DiscardDraft(ctx, args[0]); err != nil {
		return err
	}
	fmt.Println("discarded")
	return nil
}

func (c *cli) meals(ctx context.Context) error {
	meals, err := c.api.ListMeals(ctx, 20, 0)
	if err != nil {
		return err
	}
	if len(meals) == 0 {
		fmt.Println("no meals logged yet")
		return nil
	}
	for _, m := range meals {
		fmt.Printf("%s  %s  %-30s  %.0f kcal\n", m.ID, m.ConsumedOn, m.Name, m.Totals.Calories)
	}
	return nil
}

func (c *cli) today(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("today", flag.ExitOnError)
	date := fs.String("date", "", "date (YYYY-MM-DD), defaults to today")
	fs.Parse(args)

	summary, err := c.api.DailySummary(ctx, *date)
	if err != nil {
		return err
	}
	fmt.Printf("%s: %d meal(s)\n", summary.Date, summary.MealCount)
	printTotals(summary.Totals, summary.Targets)
	return nil
}

func (c *cli) week(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("week", flag.ExitOnError)
	date := fs.String("date", "", "any date in the week (YYYY-MM-DD), defaults to today")
	fs.Parse(args)

	summary, err := c.api.WeeklySummary(ctx, *date)
	if err != nil {
		return err
	}
	fmt.Printf("week of %s\n", summary.WeekStart)
	for _, day := range summary.Days {
		fmt.Printf("  %s  %4.0f kcal  %d meal(s)\n", day.Date, day.Totals.Calories, day.MealCount)
	}
	fmt.Printf("total: %.0f kcal\n", summary.Totals.Calories)
	return nil
}

func (c *cli) streak(ctx context.Context) error {
	streak, err := c.api.Streak(ctx)
	if err != nil {
		return err
	}
	if streak.Current == 0 {
		fmt.Println("no active streak; log a meal today to start one")
		return nil
	}
	fmt.Printf("current streak: %d day(s), longest: %d (last logged %s)\n",
		streak.Current, streak.Longest, streak.LastLogged)
	return nil
}

func printResult(draft *model.Draft) {
	fmt.Printf("%s\n", draft.Result.Name)
	for _, comp := range draft.Result.Components {
		fmt.Printf("  %-30s %-12s %4.0f kcal\n", comp.Name, comp.Quantity, comp.Nutrients.Calories)
	}
	printTotals(draft.Result.Totals, model.Nutrients{})
}

func printTotals(totals, targets model.Nutrients) {
	fmt.Printf("  calories %.0f", totals.Calories)
	if targets.Calories > 0 {
		fmt.Printf(" / %.0f", targets.Calories)
	}
	fmt.Printf("  protein %.0fg  carbs %.0fg  fat %.0fg\n", totals.Protein, totals.Carbs, totals.Fat)
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 60 {
		s = s[:57] + "..."
	}
	return s
}

// readPassword reads a password from stdin. Plain line read — mealctl is
// a development tool and terminal echo control isn't worth a dependency.
func readPassword() (string, error) {
	fmt.Fprint(os.Stderr, "password: ")
	line, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return "", fmt.Errorf("reading password: %w", err)
	}
	return strings.TrimSpace(line), nil
}
