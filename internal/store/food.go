package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"strings"

	"github.com/morselapp/morsel/internal/label"
	"github.com/morselapp/morsel/internal/model"
)

type FoodStore struct {
	db *sql.DB
}

func NewFoodStore(db *sql.DB) *FoodStore {
	return &FoodStore{db: db}
}

func scanFood(scanner interface{ Scan(...any) error }) (*model.Food, error) {
	var f model.Food
	var category sql.NullString
	err := scanner.Scan(&f.FDCID, &f.Description, &category, &f.CreatedAt)
	if err != nil {
		return nil, err
	}
	if category.Valid {
		f.Category = &category.String
	}
	return &f, nil
}

const foodCols = `fdc_id, description, category, created_at`

// Create finds or creates a food by exact description and, on create, parses
// the raw ingredient text and persists every (ingredient, subs) pair. A
// uniqueness race on insert resolves to the existing row.
func (s *FoodStore) Create(description, rawIngredients string, category *string) (int64, error) {
	description = strings.TrimSpace(description)

	var fdcID int64
	err := s.db.QueryRow(`SELECT fdc_id FROM foods WHERE description = ?`, description).Scan(&fdcID)
	if err == nil {
		slog.Debug("food already exists", "description", description, "fdc_id", fdcID)
		return fdcID, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("find food: %w", err)
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	result, err := tx.Exec(`INSERT INTO foods (description, category) VALUES (?, ?)`, description, category)
	if err != nil {
		if IsConstraint(err) {
			// Lost a create race; use the winner's row.
			if serr := s.db.QueryRow(`SELECT fdc_id FROM foods WHERE description = ?`, description).Scan(&fdcID); serr == nil {
				return fdcID, nil
			}
		}
		return 0, fmt.Errorf("insert food: %w", err)
	}
	fdcID, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}

	for _, p := range label.Parse(rawIngredients) {
		ingResult, err := tx.Exec(`INSERT INTO ingredients (fdc_id, ingredient) VALUES (?, ?)`, fdcID, p.Name)
		if err != nil {
			return 0, fmt.Errorf("insert ingredient: %w", err)
		}
		ingID, err := ingResult.LastInsertId()
		if err != nil {
			return 0, fmt.Errorf("ingredient id: %w", err)
		}
		for _, sub := range p.Subs {
			if _, err := tx.Exec(`INSERT INTO sub_ingredients (ingredient_id, sub_ingredient) VALUES (?, ?)`, ingID, sub); err != nil {
				return 0, fmt.Errorf("insert sub-ingredient: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	slog.Debug("created food", "description", description, "fdc_id", fdcID)
	return fdcID, nil
}

// CreateCombination creates a food named after a user-saved meal whose
// ingredient list is the union of the part foods' ingredient names. Existing
// descriptions are reused.
func (s *FoodStore) CreateCombination(name string, partFDCIDs []int64) (int64, error) {
	name = strings.TrimSpace(name)

	var fdcID int64
	err := s.db.QueryRow(`SELECT fdc_id FROM foods WHERE description = ?`, name).Scan(&fdcID)
	if err == nil {
		return fdcID, nil
	}
	if err != sql.ErrNoRows {
		return 0, fmt.Errorf("find combination: %w", err)
	}

	seen := make(map[string]bool)
	var names []string
	for _, part := range partFDCIDs {
		rows, err := s.db.Query(`SELECT ingredient FROM ingredients WHERE fdc_id = ? ORDER BY id`, part)
		if err != nil {
			return 0, fmt.Errorf("part ingredients: %w", err)
		}
		for rows.Next() {
			var n string
			if err := rows.Scan(&n); err != nil {
				rows.Close()
				return 0, fmt.Errorf("scan part ingredient: %w", err)
			}
			if !seen[n] {
				seen[n] = true
				names = append(names, n)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return 0, fmt.Errorf("part ingredients: %w", err)
		}
		rows.Close()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return 0, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	category := "User Created Meal"
	result, err := tx.Exec(`INSERT INTO foods (description, category) VALUES (?, ?)`, name, category)
	if err != nil {
		return 0, fmt.Errorf("insert combination: %w", err)
	}
	fdcID, err = result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("last insert id: %w", err)
	}
	for _, n := range names {
		if _, err := tx.Exec(`INSERT INTO ingredients (fdc_id, ingredient) VALUES (?, ?)`, fdcID, n); err != nil {
			return 0, fmt.Errorf("insert combination ingredient: %w", err)
		}
	}
	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("commit: %w", err)
	}
	return fdcID, nil
}

// Remove deletes a food and cascades through its ingredients and
// sub-ingredients.
func (s *FoodStore) Remove(fdcID int64) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM sub_ingredients WHERE ingredient_id IN (SELECT id FROM ingredients WHERE fdc_id = ?)`, fdcID,
	); err != nil {
		return fmt.Errorf("delete sub-ingredients: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM ingredients WHERE fdc_id = ?`, fdcID); err != nil {
		return fmt.Errorf("delete ingredients: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM foods WHERE fdc_id = ?`, fdcID); err != nil {
		return fmt.Errorf("delete food: %w", err)
	}
	return tx.Commit()
}

func (s *FoodStore) GetByID(fdcID int64) (*model.Food, error) {
	row := s.db.QueryRow(`SELECT `+foodCols+` FROM foods WHERE fdc_id = ?`, fdcID)
	f, err := scanFood(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get food: %w", err)
	}
	return f, nil
}

// Search matches descriptions case-insensitively by substring, ordered by
// description. limit <= 0 means no limit.
func (s *FoodStore) Search(query string, limit int) ([]model.Food, error) {
	sqlText := `SELECT ` + foodCols + ` FROM foods WHERE description LIKE ? ORDER BY description`
	args := []any{"%" + query + "%"}
	if limit > 0 {
		sqlText += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.Query(sqlText, args...)
	if err != nil {
		return nil, fmt.Errorf("search foods: %w", err)
	}
	defer rows.Close()

	var foods []model.Food
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			return nil, fmt.Errorf("scan food: %w", err)
		}
		foods = append(foods, *f)
	}
	return foods, rows.Err()
}

// IngredientsByFDCID returns the food's ingredients as display strings,
// "NAME (SUB1, SUB2)" when sub-ingredients exist, in insertion order.
func (s *FoodStore) IngredientsByFDCID(fdcID int64) ([]string, error) {
	rows, err := s.db.Query(`
		SELECT i.id, i.ingredient, s.sub_ingredient
		FROM ingredients i
		LEFT JOIN sub_ingredients s ON i.id = s.ingredient_id
		WHERE i.fdc_id = ?
		ORDER BY i.id, s.id`, fdcID)
	if err != nil {
		return nil, fmt.Errorf("ingredients by fdc_id: %w", err)
	}
	defer rows.Close()

	var order []int64
	subs := make(map[int64][]string)
	names := make(map[int64]string)
	for rows.Next() {
		var ingID int64
		var name string
		var sub sql.NullString
		if err := rows.Scan(&ingID, &name, &sub); err != nil {
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		if _, ok := names[ingID]; !ok {
			names[ingID] = name
			order = append(order, ingID)
		}
		if sub.Valid {
			subs[ingID] = append(subs[ingID], sub.String)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	var out []string
	for _, id := range order {
		if ss := subs[id]; len(ss) > 0 {
			out = append(out, names[id]+" ("+strings.Join(ss, ", ")+")")
		} else {
			out = append(out, names[id])
		}
	}
	return out, nil
}

// ImportFood is one bulk-import row: a food upsert plus its parsed
// ingredient list.
type ImportFood struct {
	FDCID       int64
	Description *string
	Category    *string
	Ingredients []label.Parsed
}

// ImportBatch upserts a batch of foods and their ingredients in one
// transaction. Ingredient rows go in first so their generated ids are known
// before the sub-ingredient pass; the fdc -> ingredient -> sub linkage is
// preserved across the two passes.
func (s *FoodStore) ImportBatch(batch []ImportFood) error {
	if len(batch) == 0 {
		return nil
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	upsert, err := tx.Prepare(`
		INSERT INTO foods (fdc_id, description, category) VALUES (?, COALESCE(?, ''), ?)
		ON CONFLICT (fdc_id) DO UPDATE SET
			description = COALESCE(NULLIF(excluded.description, ''), foods.description),
			category = COALESCE(excluded.category, foods.category)`)
	if err != nil {
		return fmt.Errorf("prepare food upsert: %w", err)
	}
	defer upsert.Close()

	insertIng, err := tx.Prepare(`INSERT INTO ingredients (fdc_id, ingredient) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare ingredient insert: %w", err)
	}
	defer insertIng.Close()

	insertSub, err := tx.Prepare(`INSERT INTO sub_ingredients (ingredient_id, sub_ingredient) VALUES (?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare sub-ingredient insert: %w", err)
	}
	defer insertSub.Close()

	// First pass: foods and ingredients, remembering generated ingredient ids.
	type pendingSubs struct {
		ingredientID int64
		subs         []string
	}
	var pending []pendingSubs

	for _, f := range batch {
		if f.Description != nil || f.Category != nil {
			if _, err := upsert.Exec(f.FDCID, f.Description, f.Category); err != nil {
				return fmt.Errorf("upsert food %d: %w", f.FDCID, err)
			}
		}
		for _, p := range f.Ingredients {
			result, err := insertIng.Exec(f.FDCID, p.Name)
			if err != nil {
				return fmt.Errorf("insert ingredient for %d: %w", f.FDCID, err)
			}
			ingID, err := result.LastInsertId()
			if err != nil {
				return fmt.Errorf("ingredient id: %w", err)
			}
			if len(p.Subs) > 0 {
				pending = append(pending, pendingSubs{ingredientID: ingID, subs: p.Subs})
			}
		}
	}

	// Second pass: sub-ingredients against the now-known ingredient ids.
	for _, p := range pending {
		for _, sub := range p.subs {
			if _, err := insertSub.Exec(p.ingredientID, sub); err != nil {
				return fmt.Errorf("insert sub-ingredient: %w", err)
			}
		}
	}

	return tx.Commit()
}
