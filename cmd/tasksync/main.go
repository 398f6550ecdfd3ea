package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/lhoang/tasksync/internal/credential"
	"github.com/lhoang/tasksync/internal/model"
	"github.com/lhoang/tasksync/internal/remote"
	"github.com/lhoang/tasksync/internal/store"
	"github.com/lhoang/tasksync/internal/sync"
	"github.com/lhoang/tasksync/internal/tasks"
)

func main() {
	configPathFlag := flag.String("config", "", "config file path")
	dbPathFlag := flag.String("db", "", "sqlite db path")
	baseURLFlag := flag.String("base-url", "", "task service base URL")
	onceFlag := flag.Bool("once", false, "run a single sync pass and exit")
	fullFlag := flag.Bool("full", false, "force stale-record cleanup (implies -once)")
	showFlag := flag.Bool("show", false, "print the local task lists and exit")
	setTokenFlag := flag.Bool("set-token", false, "read an API token from stdin, store it, and exit")
	clearTokenFlag := flag.Bool("clear-token", false, "remove the stored API token and exit")
	flag.Parse()

	if *setTokenFlag {
		if err := storeTokenFromStdin(); err != nil {
			log.Fatal(err)
		}
		return
	}
	if *clearTokenFlag {
		if err := credential.ClearToken(); err != nil {
			log.Fatal(err)
		}
		return
	}

	cfgPath := *configPathFlag
	if cfgPath == "" {
		cfgPath = model.DefaultConfigPath()
	}
	cfg, err := model.LoadConfig(cfgPath)
	if err != nil {
		log.Fatal(err)
	}

	if *dbPathFlag != "" {
		cfg.DBPath = *dbPathFlag
	}
	if *baseURLFlag != "" {
		cfg.Remote.BaseURL = *baseURLFlag
	}
	if cfg.Remote.BaseURL == "" {
		log.Fatal("no task service base URL configured (set remote.base_url or pass -base-url)")
	}

	st, err := openStore(cfg.DBPath)
	if err != nil {
		log.Fatal(err)
	}
	defer st.Close()

	client := remote.NewHTTPClient(
		cfg.Remote.BaseURL,
		credential.TokenSource{},
		time.Duration(cfg.Remote.RequestTimeoutSec)*time.Second,
	)
	engine := sync.New(st, client, time.Duration(cfg.Sync.IntervalSec)*time.Second)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	switch {
	case *showFlag:
		if err := printSnapshot(ctx, st, client); err != nil {
			log.Fatal(err)
		}
	case *fullFlag:
		if err := engine.SyncFull(ctx); err != nil {
			log.Fatal(err)
		}
	case *onceFlag:
		if err := engine.Sync(ctx); err != nil {
			log.Fatal(err)
		}
	case !cfg.Sync.Enabled:
		log.Fatal("periodic sync is disabled in the config; use -once for a single pass")
	default:
		log.Printf("syncing every %ds against %s", cfg.Sync.IntervalSec, cfg.Remote.BaseURL)
		engine.Run(ctx)
	}
}

// printSnapshot dumps every local list: pending tasks grouped by due
// date, then completed tasks by recency.
func printSnapshot(ctx context.Context, st store.Store, client remote.Client) error {
	svc := tasks.NewService(st, client)
	lists, err := st.GetTaskLists(ctx)
	if err != nil {
		return err
	}
	for _, l := range lists {
		fmt.Printf("%s\n", l.Title)

		buckets, err := svc.DueOverview(ctx, l.LocalID)
		if err != nil {
			return err
		}
		for _, b := range buckets {
			fmt.Printf("  [%s]\n", b.Kind)
			for _, task := range b.Tasks {
				fmt.Printf("    - %s\n", task.Title)
			}
		}

		view, err := svc.ListTasks(ctx, l.LocalID)
		if err != nil {
			return err
		}
		for i, task := range view.Completed {
			if i == 0 {
				fmt.Printf("  [completed]\n")
			}
			fmt.Printf("    x %s\n", task.Title)
		}
	}
	return nil
}

func openStore(dbPath string) (*store.SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}
	return store.NewSQLiteStore(dbPath)
}

func storeTokenFromStdin() error {
	fmt.Fprint(os.Stderr, "API token: ")
	var token string
	if _, err := fmt.Fscanln(os.Stdin, &token); err != nil {
		return fmt.Errorf("reading token: %w", err)
	}
	return credential.StoreToken(token)
}
