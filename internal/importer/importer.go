// Package importer loads USDA FoodData Central CSV exports into the food
// catalog: food.csv for descriptions, food_category.csv for category names,
// and branded_food.csv for ingredient label text.
package importer

import (
	"encoding/csv"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strconv"

	"github.com/morselapp/morsel/internal/label"
	"github.com/morselapp/morsel/internal/store"
)

// DefaultBatchSize is the number of CSV rows flushed per transaction.
const DefaultBatchSize = 1000

// Stats reports what an import run processed.
type Stats struct {
	Foods   int // rows from food.csv
	Branded int // rows from branded_food.csv with ingredient text
	Skipped int // rows dropped for a missing or malformed fdc_id
	Batches int
}

type Importer struct {
	foods     *store.FoodStore
	batchSize int
}

// New creates an importer over the given store. batchSize <= 0 selects
// DefaultBatchSize.
func New(foods *store.FoodStore, batchSize int) *Importer {
	if batchSize <= 0 {
		batchSize = DefaultBatchSize
	}
	return &Importer{foods: foods, batchSize: batchSize}
}

// Run imports the three CSV files from dir. food.csv rows establish each
// food's description and category; branded_food.csv rows attach the parsed
// ingredient graph. Both passes stream in batches so arbitrarily large
// exports never sit in memory.
func (im *Importer) Run(dir string) (Stats, error) {
	var stats Stats

	categories, err := im.loadCategories(filepath.Join(dir, "food_category.csv"))
	if err != nil {
		return stats, err
	}

	if err := im.importFoods(filepath.Join(dir, "food.csv"), categories, &stats); err != nil {
		return stats, err
	}
	if err := im.importBranded(filepath.Join(dir, "branded_food.csv"), &stats); err != nil {
		return stats, err
	}

	slog.Info("import complete",
		"foods", stats.Foods, "branded", stats.Branded,
		"skipped", stats.Skipped, "batches", stats.Batches)
	return stats, nil
}

// loadCategories maps category id to category description. The file is small
// enough to hold in memory.
func (im *Importer) loadCategories(path string) (map[string]string, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open categories: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	cols, err := headerIndex(r, "id", "description")
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}

	categories := make(map[string]string)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read categories: %w", err)
		}
		categories[row[cols["id"]]] = row[cols["description"]]
	}
	return categories, nil
}

func (im *Importer) importFoods(path string, categories map[string]string, stats *Stats) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open foods: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	cols, err := headerIndex(r, "fdc_id", "description", "food_category_id")
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	batch := make([]store.ImportFood, 0, im.batchSize)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read foods: %w", err)
		}

		fdcID, err := strconv.ParseInt(row[cols["fdc_id"]], 10, 64)
		if err != nil {
			stats.Skipped++
			continue
		}
		desc := row[cols["description"]]
		food := store.ImportFood{FDCID: fdcID, Description: &desc}
		if name, ok := categories[row[cols["food_category_id"]]]; ok && name != "" {
			category := name
			food.Category = &category
		}
		batch = append(batch, food)
		stats.Foods++

		if len(batch) >= im.batchSize {
			if err := im.flush(&batch, stats, "food.csv"); err != nil {
				return err
			}
		}
	}
	return im.flush(&batch, stats, "food.csv")
}

func (im *Importer) importBranded(path string, stats *Stats) error {
	f, err := os.Open(path)
	if err != nil {
		return fmt.Errorf("open branded foods: %w", err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	cols, err := headerIndex(r, "fdc_id", "ingredients")
	if err != nil {
		return fmt.Errorf("%s: %w", path, err)
	}

	batch := make([]store.ImportFood, 0, im.batchSize)
	for {
		row, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("read branded foods: %w", err)
		}

		fdcID, err := strconv.ParseInt(row[cols["fdc_id"]], 10, 64)
		if err != nil {
			stats.Skipped++
			continue
		}
		parsed := label.Parse(row[cols["ingredients"]])
		if len(parsed) == 0 {
			continue
		}
		batch = append(batch, store.ImportFood{FDCID: fdcID, Ingredients: parsed})
		stats.Branded++

		if len(batch) >= im.batchSize {
			if err := im.flush(&batch, stats, "branded_food.csv"); err != nil {
				return err
			}
		}
	}
	return im.flush(&batch, stats, "branded_food.csv")
}

func (im *Importer) flush(batch *[]store.ImportFood, stats *Stats, source string) error {
	if len(*batch) == 0 {
		return nil
	}
	if err := im.foods.ImportBatch(*batch); err != nil {
		return fmt.Errorf("import batch from %s: %w", source, err)
	}
	stats.Batches++
	slog.Debug("imported batch", "source", source, "rows", len(*batch), "batches", stats.Batches)
	*batch = (*batch)[:0]
	return nil
}

// headerIndex reads the CSV header row and returns the position of each
// wanted column.
func headerIndex(r *csv.Reader, want ...string) (map[string]int, error) {
	header, err := r.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := make(map[string]int, len(want))
	for i, name := range header {
		cols[name] = i
	}
	for _, name := range want {
		if _, ok := cols[name]; !ok {
			return nil, fmt.Errorf("missing column %q", name)
		}
	}
	return cols, nil
}
