package store

import (
	"database/sql"
	"fmt"
	"time"

	"github.com/morselapp/morsel/internal/model"
	"github.com/morselapp/morsel/internal/snapshot"
)

type LogStore struct {
	db *sql.DB
}

func NewLogStore(db *sql.DB) *LogStore {
	return &LogStore{db: db}
}

// GetOrCreateDailyLog returns the id of the user's log for the given date
// (model.DateLayout), creating it if needed.
func (s *LogStore) GetOrCreateDailyLog(userID int64, date string) (int64, error) {
	if _, err := s.db.Exec(
		`INSERT OR IGNORE INTO daily_logs (user_id, date) VALUES (?, ?)`, userID, date,
	); err != nil {
		return 0, fmt.Errorf("insert daily log: %w", err)
	}
	var id int64
	err := s.db.QueryRow(
		`SELECT id FROM daily_logs WHERE user_id = ? AND date = ?`, userID, date,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("find daily log: %w", err)
	}
	return id, nil
}

// LogMeal records the given foods at one time of day. Two or more foods are
// grouped under a fresh meal id; a single food is logged ungrouped. Returns
// the meal id, or nil for an ungrouped entry.
func (s *LogStore) LogMeal(userID int64, date, timeOfDay string, fdcIDs []int64, notes string) (*int64, error) {
	if len(fdcIDs) == 0 {
		return nil, nil
	}

	logID, err := s.GetOrCreateDailyLog(userID, date)
	if err != nil {
		return nil, err
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	var mealID *int64
	if len(fdcIDs) > 1 {
		var next int64
		if err := tx.QueryRow(
			`SELECT COALESCE(MAX(meal_id), 0) + 1 FROM food_log_entries WHERE meal_id IS NOT NULL`,
		).Scan(&next); err != nil {
			return nil, fmt.Errorf("next meal id: %w", err)
		}
		mealID = &next
	}

	for _, fdcID := range fdcIDs {
		if _, err := tx.Exec(
			`INSERT INTO food_log_entries (daily_log_id, fdc_id, meal_id, time, notes) VALUES (?, ?, ?, ?, ?)`,
			logID, fdcID, mealID, timeOfDay, notes,
		); err != nil {
			return nil, fmt.Errorf("insert food entry: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return mealID, nil
}

// findOrCreateSymptom is race-safe: a concurrent insert of the same name
// resolves to the winner's row.
func (s *LogStore) findOrCreateSymptom(name string) (int64, error) {
	if _, err := s.db.Exec(`INSERT OR IGNORE INTO symptoms (name) VALUES (?)`, name); err != nil {
		if !IsConstraint(err) {
			return 0, fmt.Errorf("insert symptom: %w", err)
		}
	}
	var id int64
	if err := s.db.QueryRow(`SELECT id FROM symptoms WHERE name = ?`, name).Scan(&id); err != nil {
		return 0, fmt.Errorf("find symptom: %w", err)
	}
	return id, nil
}

// LogSymptom records one occurrence of a symptom (severity 1-10), creating
// the symptom type on first use.
func (s *LogStore) LogSymptom(userID int64, name string, severity int, date, timeOfDay, notes string) error {
	symptomID, err := s.findOrCreateSymptom(name)
	if err != nil {
		return err
	}
	logID, err := s.GetOrCreateDailyLog(userID, date)
	if err != nil {
		return err
	}
	if _, err := s.db.Exec(
		`INSERT INTO symptom_log_entries (daily_log_id, symptom_id, time, severity, notes) VALUES (?, ?, ?, ?, ?)`,
		logID, symptomID, timeOfDay, severity, notes,
	); err != nil {
		return fmt.Errorf("insert symptom entry: %w", err)
	}
	return nil
}

// LogSymptomRange records the symptom once per day from startDate through
// endDate inclusive, the storage form of a multi-day symptom.
func (s *LogStore) LogSymptomRange(userID int64, name string, severity int, startDate, endDate, timeOfDay, notes string) error {
	start, err := time.Parse(model.DateLayout, startDate)
	if err != nil {
		return fmt.Errorf("parse start date: %w", err)
	}
	end, err := time.Parse(model.DateLayout, endDate)
	if err != nil {
		return fmt.Errorf("parse end date: %w", err)
	}
	for d := start; !d.After(end); d = d.AddDate(0, 0, 1) {
		if err := s.LogSymptom(userID, name, severity, d.Format(model.DateLayout), timeOfDay, notes); err != nil {
			return err
		}
	}
	return nil
}

// DeleteMeal removes every food entry sharing the meal id, scoped to the
// user's own daily logs.
func (s *LogStore) DeleteMeal(userID, mealID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM food_log_entries WHERE meal_id = ? AND daily_log_id IN (SELECT id FROM daily_logs WHERE user_id = ?)`,
		mealID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete meal: %w", err)
	}
	return nil
}

// DeleteFoodEntry removes one food entry, scoped to the user's daily logs.
func (s *LogStore) DeleteFoodEntry(userID, entryID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM food_log_entries WHERE id = ? AND daily_log_id IN (SELECT id FROM daily_logs WHERE user_id = ?)`,
		entryID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete food entry: %w", err)
	}
	return nil
}

// DeleteSymptomEntry removes one symptom entry, scoped to the user's daily logs.
func (s *LogStore) DeleteSymptomEntry(userID, entryID int64) error {
	_, err := s.db.Exec(
		`DELETE FROM symptom_log_entries WHERE id = ? AND daily_log_id IN (SELECT id FROM daily_logs WHERE user_id = ?)`,
		entryID, userID,
	)
	if err != nil {
		return fmt.Errorf("delete symptom entry: %w", err)
	}
	return nil
}

// LoadSnapshot materializes the user's full log snapshot: logs, entries, and
// the ingredient graph for every food the user has ever logged. Satisfies
// snapshot.Loader.
func (s *LogStore) LoadSnapshot(userID int64) (*snapshot.Data, error) {
	data := &snapshot.Data{LoadedAt: time.Now()}

	rows, err := s.db.Query(`SELECT id, user_id, date FROM daily_logs WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("daily logs: %w", err)
	}
	for rows.Next() {
		var dl model.DailyLog
		if err := rows.Scan(&dl.ID, &dl.UserID, &dl.Date); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan daily log: %w", err)
		}
		data.DailyLogs = append(data.DailyLogs, dl)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`
		SELECT fle.id, fle.daily_log_id, fle.fdc_id, fle.meal_id, fle.time, fle.notes, dl.date
		FROM food_log_entries fle
		JOIN daily_logs dl ON fle.daily_log_id = dl.id
		WHERE dl.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("food entries: %w", err)
	}
	for rows.Next() {
		var e model.FoodLogEntry
		var mealID sql.NullInt64
		if err := rows.Scan(&e.ID, &e.DailyLogID, &e.FDCID, &mealID, &e.TimeOfDay, &e.Notes, &e.Date); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan food entry: %w", err)
		}
		if mealID.Valid {
			e.MealID = &mealID.Int64
		}
		data.FoodEntries = append(data.FoodEntries, e)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`
		SELECT sle.id, sle.daily_log_id, sle.symptom_id, sle.time, sle.severity, sle.notes, dl.date, sym.name
		FROM symptom_log_entries sle
		JOIN daily_logs dl ON sle.daily_log_id = dl.id
		JOIN symptoms sym ON sle.symptom_id = sym.id
		WHERE dl.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("symptom entries: %w", err)
	}
	for rows.Next() {
		var e model.SymptomLogEntry
		if err := rows.Scan(&e.ID, &e.DailyLogID, &e.SymptomID, &e.TimeOfDay, &e.Severity, &e.Notes, &e.Date, &e.SymptomName); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan symptom entry: %w", err)
		}
		data.SymptomEntries = append(data.SymptomEntries, e)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`
		SELECT DISTINCT f.fdc_id, f.description, f.category, f.created_at
		FROM foods f
		JOIN food_log_entries fle ON f.fdc_id = fle.fdc_id
		JOIN daily_logs dl ON fle.daily_log_id = dl.id
		WHERE dl.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("foods: %w", err)
	}
	for rows.Next() {
		f, err := scanFood(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan food: %w", err)
		}
		data.Foods = append(data.Foods, *f)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`
		SELECT DISTINCT i.id, i.fdc_id, i.ingredient
		FROM ingredients i
		JOIN food_log_entries fle ON i.fdc_id = fle.fdc_id
		JOIN daily_logs dl ON fle.daily_log_id = dl.id
		WHERE dl.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("ingredients: %w", err)
	}
	for rows.Next() {
		var ing model.Ingredient
		if err := rows.Scan(&ing.ID, &ing.FDCID, &ing.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan ingredient: %w", err)
		}
		data.Ingredients = append(data.Ingredients, ing)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	rows, err = s.db.Query(`
		SELECT DISTINCT si.id, si.ingredient_id, si.sub_ingredient
		FROM sub_ingredients si
		JOIN ingredients i ON si.ingredient_id = i.id
		JOIN food_log_entries fle ON i.fdc_id = fle.fdc_id
		JOIN daily_logs dl ON fle.daily_log_id = dl.id
		WHERE dl.user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("sub-ingredients: %w", err)
	}
	for rows.Next() {
		var si model.SubIngredient
		if err := rows.Scan(&si.ID, &si.IngredientID, &si.Name); err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan sub-ingredient: %w", err)
		}
		data.SubIngredients = append(data.SubIngredients, si)
	}
	if err := closeRows(rows); err != nil {
		return nil, err
	}

	return data, nil
}

func closeRows(rows *sql.Rows) error {
	err := rows.Err()
	rows.Close()
	return err
}
