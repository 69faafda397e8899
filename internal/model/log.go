package model

import "time"

const (
	// DateLayout is how daily log dates are stored.
	DateLayout = "2006-01-02"
	// TimeLayout is how entry times of day are stored.
	TimeLayout = "15:04"
)

// DailyLog anchors everything a user logged on one calendar date.
type DailyLog struct {
	ID     int64  `json:"id"`
	UserID int64  `json:"user_id"`
	Date   string `json:"date"`
}

// FoodLogEntry records one food consumed at a time of day. Entries saved
// together as a meal share a MealID; a food logged on its own has none.
type FoodLogEntry struct {
	ID         int64  `json:"id"`
	DailyLogID int64  `json:"daily_log_id"`
	FDCID      int64  `json:"fdc_id"`
	MealID     *int64 `json:"meal_id"`
	Date       string `json:"date"`
	TimeOfDay  string `json:"time"`
	Notes      string `json:"notes"`
}

// At returns the entry's full timestamp. Entries with an unparseable date or
// time yield the zero time.
func (e FoodLogEntry) At() time.Time {
	return combine(e.Date, e.TimeOfDay)
}

// Symptom is a global symptom type, created on first use.
type Symptom struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
}

// SymptomLogEntry records one occurrence of a symptom with a 1-10 severity.
// SymptomName is joined in when loading; multi-day symptoms are stored as one
// entry per day.
type SymptomLogEntry struct {
	ID          int64  `json:"id"`
	DailyLogID  int64  `json:"daily_log_id"`
	SymptomID   int64  `json:"symptom_id"`
	SymptomName string `json:"symptom_name"`
	Date        string `json:"date"`
	TimeOfDay   string `json:"time"`
	Severity    int    `json:"severity"`
	Notes       string `json:"notes"`
}

// At returns the entry's full timestamp, or the zero time if unparseable.
func (e SymptomLogEntry) At() time.Time {
	return combine(e.Date, e.TimeOfDay)
}

func combine(date, timeOfDay string) time.Time {
	for _, layout := range []string{
		DateLayout + " " + TimeLayout,
		DateLayout + " 15:04:05",
	} {
		if t, err := time.Parse(layout, date+" "+timeOfDay); err == nil {
			return t
		}
	}
	return time.Time{}
}
