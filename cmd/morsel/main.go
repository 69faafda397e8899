package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/morselapp/morsel/internal/analysis"
	"github.com/morselapp/morsel/internal/backup"
	"github.com/morselapp/morsel/internal/database"
	"github.com/morselapp/morsel/internal/importer"
	"github.com/morselapp/morsel/internal/logging"
	"github.com/morselapp/morsel/internal/snapshot"
	"github.com/morselapp/morsel/internal/store"
)

func usage() {
	fmt.Fprintf(os.Stderr, `usage: morsel <command> [flags]

commands:
  import   load USDA FoodData Central CSV files into the food catalog
  dedupe   merge foods with duplicate descriptions
  analyze  rank likely culprit foods and ingredients for a symptom
  backup   encrypt and upload a database snapshot
  restore  download and decrypt a backup

environment:
  MORSEL_DB_PATH        database file (default morsel.db)
  MORSEL_LOG_LEVEL      debug, info, warn, error (default info)
  MORSEL_S3_ENDPOINT    S3-compatible endpoint (optional)
  MORSEL_S3_BUCKET      backup bucket
  MORSEL_S3_REGION      bucket region
  MORSEL_S3_ACCESS_KEY  access key
  MORSEL_S3_SECRET_KEY  secret key
  MORSEL_PASSPHRASE     backup encryption passphrase
`)
}

func main() {
	logging.Setup(os.Getenv("MORSEL_LOG_LEVEL"))

	if len(os.Args) < 2 {
		usage()
		os.Exit(2)
	}

	dbPath := os.Getenv("MORSEL_DB_PATH")
	if dbPath == "" {
		dbPath = "morsel.db"
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	var err error
	switch os.Args[1] {
	case "import":
		err = runImport(dbPath, os.Args[2:])
	case "dedupe":
		err = runDedupe(dbPath)
	case "analyze":
		err = runAnalyze(dbPath, os.Args[2:])
	case "backup":
		err = runBackup(ctx, dbPath)
	case "restore":
		err = runRestore(ctx, dbPath, os.Args[2:])
	case "-h", "--help", "help":
		usage()
		return
	default:
		fmt.Fprintf(os.Stderr, "morsel: unknown command %q\n", os.Args[1])
		usage()
		os.Exit(2)
	}
	if err != nil {
		fmt.Fprintf(os.Stderr, "morsel: %v\n", err)
		os.Exit(1)
	}
}

func runImport(dbPath string, args []string) error {
	fs := flag.NewFlagSet("import", flag.ExitOnError)
	dir := fs.String("dir", ".", "directory holding food.csv, food_category.csv, branded_food.csv")
	batch := fs.Int("batch", importer.DefaultBatchSize, "rows per transaction")
	fs.Parse(args)

	db, err := database.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := importer.New(store.NewFoodStore(db), *batch).Run(*dir)
	if err != nil {
		return err
	}
	fmt.Printf("imported %d foods, %d ingredient labels (%d rows skipped, %d batches)\n",
		stats.Foods, stats.Branded, stats.Skipped, stats.Batches)
	return nil
}

func runDedupe(dbPath string) error {
	db, err := database.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	stats, err := store.NewFoodStore(db).MergeDuplicates()
	if err != nil {
		return err
	}
	fmt.Printf("merged %d duplicate groups: %d rows removed, %d ingredient sets unioned\n",
		stats.Groups, stats.Deleted, stats.Merged)
	return nil
}

func runAnalyze(dbPath string, args []string) error {
	fs := flag.NewFlagSet("analyze", flag.ExitOnError)
	username := fs.String("user", "", "username whose log to analyze")
	symptom := fs.String("symptom", "", "symptom name")
	window := fs.Duration("window", analysis.DefaultWindow, "look-back window before each occurrence")
	top := fs.Int("top", 10, "rows to print per table, 0 for all")
	fs.Parse(args)

	if *username == "" || *symptom == "" {
		return fmt.Errorf("analyze requires -user and -symptom")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	user, err := store.NewUserStore(db).GetByUsername(*username)
	if err != nil {
		return err
	}
	if user == nil {
		return fmt.Errorf("unknown user %q", *username)
	}

	cache := snapshot.New(store.NewLogStore(db), snapshot.DefaultTTL)
	data, err := cache.Get(user.ID)
	if err != nil {
		return err
	}

	report := analysis.Analyze(data, *symptom, *window)
	printReport(report, *top)
	return nil
}

func printReport(report *analysis.Report, top int) {
	fmt.Printf("%s: %d occurrence(s), average severity %.1f\n",
		report.Symptom, report.TotalOccurrences, report.AverageSeverity)
	if report.TotalOccurrences == 0 {
		return
	}

	fmt.Println("\ningredients:")
	fmt.Printf("  %-40s %10s %10s %8s\n", "name", "before", "consumed", "rate")
	for i, s := range report.Ingredients {
		if top > 0 && i >= top {
			break
		}
		fmt.Printf("  %-40s %10d %10d %7.1f%%\n",
			s.Name, s.TimesBeforeSymptom, s.TotalConsumed, s.CorrelationRate)
	}

	fmt.Println("\nfoods:")
	fmt.Printf("  %-40s %10s %10s %8s\n", "name", "before", "consumed", "rate")
	for i, s := range report.Foods {
		if top > 0 && i >= top {
			break
		}
		fmt.Printf("  %-40s %10d %10d %7.1f%%\n",
			s.Description, s.TimesBeforeSymptom, s.TotalConsumed, s.CorrelationRate)
	}
}

func s3ConfigFromEnv() backup.S3Config {
	return backup.S3Config{
		Endpoint:  os.Getenv("MORSEL_S3_ENDPOINT"),
		Bucket:    os.Getenv("MORSEL_S3_BUCKET"),
		Region:    os.Getenv("MORSEL_S3_REGION"),
		AccessKey: os.Getenv("MORSEL_S3_ACCESS_KEY"),
		SecretKey: os.Getenv("MORSEL_S3_SECRET_KEY"),
	}
}

func runBackup(ctx context.Context, dbPath string) error {
	passphrase := os.Getenv("MORSEL_PASSPHRASE")
	if passphrase == "" {
		return fmt.Errorf("MORSEL_PASSPHRASE not set")
	}

	db, err := database.Open(dbPath)
	if err != nil {
		return err
	}
	defer db.Close()

	svc, err := backup.New(backup.Config{S3: s3ConfigFromEnv(), DBPath: dbPath}, db)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	key, err := svc.Run(ctx, passphrase)
	if err != nil {
		return err
	}
	fmt.Printf("backup uploaded: %s\n", key)
	return nil
}

func runRestore(ctx context.Context, dbPath string, args []string) error {
	fs := flag.NewFlagSet("restore", flag.ExitOnError)
	key := fs.String("key", "", "object key of the backup to restore")
	fs.Parse(args)

	if *key == "" {
		return fmt.Errorf("restore requires -key")
	}
	passphrase := os.Getenv("MORSEL_PASSPHRASE")
	if passphrase == "" {
		return fmt.Errorf("MORSEL_PASSPHRASE not set")
	}

	svc, err := backup.New(backup.Config{S3: s3ConfigFromEnv(), DBPath: dbPath}, nil)
	if err != nil {
		return err
	}

	ctx, cancel := context.WithTimeout(ctx, 10*time.Minute)
	defer cancel()

	if err := svc.Restore(ctx, *key, passphrase, dbPath); err != nil {
		return err
	}
	fmt.Printf("restored %s to %s\n", *key, dbPath)
	return nil
}
