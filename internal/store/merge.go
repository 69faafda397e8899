package store

import (
	"database/sql"
	"fmt"
	"log/slog"
)

// MergeStats summarizes one duplicate-cleanup run.
type MergeStats struct {
	Groups  int // duplicate description groups found
	Deleted int // duplicate food rows removed
	Merged  int // groups whose ingredient sets were unioned
}

// MergeDuplicates consolidates foods sharing a case-insensitive description.
// Per group: with no ingredient rows anywhere, an arbitrary representative
// survives; with ingredients on exactly one row, that row survives; with
// ingredients on several, the keeper's ingredient set becomes the union of
// every row's ingredient -> sub-ingredient sets. All other rows in the group
// are removed along with their ingredients.
func (s *FoodStore) MergeDuplicates() (MergeStats, error) {
	var stats MergeStats

	rows, err := s.db.Query(`
		SELECT LOWER(description) AS desc_lower, COUNT(*) AS cnt
		FROM foods
		GROUP BY desc_lower
		HAVING cnt > 1
		ORDER BY cnt DESC`)
	if err != nil {
		return stats, fmt.Errorf("find duplicate groups: %w", err)
	}
	var groups []string
	for rows.Next() {
		var desc string
		var cnt int
		if err := rows.Scan(&desc, &cnt); err != nil {
			rows.Close()
			return stats, fmt.Errorf("scan group: %w", err)
		}
		groups = append(groups, desc)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return stats, err
	}
	rows.Close()

	stats.Groups = len(groups)
	slog.Info("merging duplicate foods", "groups", len(groups))

	for _, descLower := range groups {
		merged, deleted, err := s.mergeGroup(descLower)
		if err != nil {
			return stats, fmt.Errorf("merge group %q: %w", descLower, err)
		}
		stats.Deleted += deleted
		if merged {
			stats.Merged++
		}
	}

	slog.Info("duplicate cleanup complete", "deleted", stats.Deleted, "merged", stats.Merged)
	return stats, nil
}

func (s *FoodStore) mergeGroup(descLower string) (merged bool, deleted int, err error) {
	rows, err := s.db.Query(`SELECT fdc_id FROM foods WHERE LOWER(description) = ? ORDER BY fdc_id`, descLower)
	if err != nil {
		return false, 0, fmt.Errorf("group members: %w", err)
	}
	var members []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			rows.Close()
			return false, 0, fmt.Errorf("scan member: %w", err)
		}
		members = append(members, id)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return false, 0, err
	}
	rows.Close()

	var withIngredients, without []int64
	for _, id := range members {
		var one int
		err := s.db.QueryRow(`SELECT 1 FROM ingredients WHERE fdc_id = ? LIMIT 1`, id).Scan(&one)
		switch {
		case err == nil:
			withIngredients = append(withIngredients, id)
		case err == sql.ErrNoRows:
			without = append(without, id)
		default:
			return false, 0, fmt.Errorf("check ingredients for %d: %w", id, err)
		}
	}

	var keeper int64
	switch {
	case len(withIngredients) == 0:
		keeper = without[0]
	case len(withIngredients) == 1:
		keeper = withIngredients[0]
	default:
		keeper = withIngredients[0]
		if err := s.unionIngredients(keeper, withIngredients); err != nil {
			return false, 0, err
		}
		merged = true
	}

	for _, id := range members {
		if id == keeper {
			continue
		}
		if err := s.Remove(id); err != nil {
			return merged, deleted, fmt.Errorf("remove duplicate %d: %w", id, err)
		}
		deleted++
	}
	return merged, deleted, nil
}

// unionIngredients replaces the keeper's ingredient rows with the union of
// every source food's ingredient -> sub-ingredient sets. The ingredient name
// is the union key; each name's sub-ingredient set is itself unioned.
func (s *FoodStore) unionIngredients(keeper int64, sources []int64) error {
	var order []string
	subsFor := make(map[string][]string)
	subSeen := make(map[string]map[string]bool)

	for _, id := range sources {
		rows, err := s.db.Query(`
			SELECT i.ingredient, sub.sub_ingredient
			FROM ingredients i
			LEFT JOIN sub_ingredients sub ON i.id = sub.ingredient_id
			WHERE i.fdc_id = ?
			ORDER BY i.id, sub.id`, id)
		if err != nil {
			return fmt.Errorf("ingredients for %d: %w", id, err)
		}
		for rows.Next() {
			var name string
			var sub sql.NullString
			if err := rows.Scan(&name, &sub); err != nil {
				rows.Close()
				return fmt.Errorf("scan ingredient row: %w", err)
			}
			if subSeen[name] == nil {
				subSeen[name] = make(map[string]bool)
				order = append(order, name)
			}
			if sub.Valid && !subSeen[name][sub.String] {
				subSeen[name][sub.String] = true
				subsFor[name] = append(subsFor[name], sub.String)
			}
		}
		if err := rows.Err(); err != nil {
			rows.Close()
			return err
		}
		rows.Close()
	}

	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.Exec(
		`DELETE FROM sub_ingredients WHERE ingredient_id IN (SELECT id FROM ingredients WHERE fdc_id = ?)`, keeper,
	); err != nil {
		return fmt.Errorf("clear keeper sub-ingredients: %w", err)
	}
	if _, err := tx.Exec(`DELETE FROM ingredients WHERE fdc_id = ?`, keeper); err != nil {
		return fmt.Errorf("clear keeper ingredients: %w", err)
	}

	for _, name := range order {
		result, err := tx.Exec(`INSERT INTO ingredients (fdc_id, ingredient) VALUES (?, ?)`, keeper, name)
		if err != nil {
			return fmt.Errorf("insert merged ingredient: %w", err)
		}
		ingID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("merged ingredient id: %w", err)
		}
		for _, sub := range subsFor[name] {
			if _, err := tx.Exec(`INSERT INTO sub_ingredients (ingredient_id, sub_ingredient) VALUES (?, ?)`, ingID, sub); err != nil {
				return fmt.Errorf("insert merged sub-ingredient: %w", err)
			}
		}
	}

	return tx.Commit()
}
