package analysis

import (
	"math"
	"testing"
	"time"

	"github.com/morselapp/morsel/internal/model"
	"github.com/morselapp/morsel/internal/snapshot"
)

func foodEntry(id, fdcID int64, date, timeOfDay string) model.FoodLogEntry {
	return model.FoodLogEntry{ID: id, DailyLogID: 1, FDCID: fdcID, Date: date, TimeOfDay: timeOfDay}
}

func symptomEntry(id int64, name, date, timeOfDay string, severity int) model.SymptomLogEntry {
	return model.SymptomLogEntry{ID: id, DailyLogID: 1, SymptomID: 1, SymptomName: name, Date: date, TimeOfDay: timeOfDay, Severity: severity}
}

// fixture: peanut butter (fdc 1) with PEANUTS and SALT, bread (fdc 2) with
// WHEAT FLOUR and SALT, and a sub-ingredient MOLASSES under bread's flour.
func testData() *snapshot.Data {
	return &snapshot.Data{
		Foods: []model.Food{
			{FDCID: 1, Description: "PEANUT BUTTER"},
			{FDCID: 2, Description: "BREAD"},
		},
		Ingredients: []model.Ingredient{
			{ID: 10, FDCID: 1, Name: "PEANUTS"},
			{ID: 11, FDCID: 1, Name: "SALT"},
			{ID: 20, FDCID: 2, Name: "WHEAT FLOUR"},
			{ID: 21, FDCID: 2, Name: "SALT"},
		},
		SubIngredients: []model.SubIngredient{
			{ID: 30, IngredientID: 20, Name: "MOLASSES"},
		},
	}
}

func findIngredient(t *testing.T, report *Report, name string) IngredientStat {
	t.Helper()
	for _, s := range report.Ingredients {
		if s.Name == name {
			return s
		}
	}
	t.Fatalf("ingredient %q not in report", name)
	return IngredientStat{}
}

func findFood(t *testing.T, report *Report, desc string) FoodStat {
	t.Helper()
	for _, s := range report.Foods {
		if s.Description == desc {
			return s
		}
	}
	t.Fatalf("food %q not in report", desc)
	return FoodStat{}
}

func TestAnalyzeNoOccurrences(t *testing.T) {
	data := testData()
	data.FoodEntries = []model.FoodLogEntry{foodEntry(1, 1, "2025-03-01", "08:00")}

	report := Analyze(data, "Headache", 0)
	if report.Symptom != "Headache" {
		t.Errorf("symptom = %q, want Headache", report.Symptom)
	}
	if report.TotalOccurrences != 0 {
		t.Errorf("total occurrences = %d, want 0", report.TotalOccurrences)
	}
	if len(report.Ingredients) != 0 || len(report.Foods) != 0 {
		t.Errorf("expected empty stats, got %d ingredients and %d foods",
			len(report.Ingredients), len(report.Foods))
	}
}

func TestAnalyzeCorrelation(t *testing.T) {
	data := testData()
	// Peanut butter before both headaches, bread only before the first.
	data.FoodEntries = []model.FoodLogEntry{
		foodEntry(1, 1, "2025-03-01", "08:00"),
		foodEntry(2, 2, "2025-03-01", "08:00"),
		foodEntry(3, 1, "2025-03-03", "08:00"),
		foodEntry(4, 2, "2025-03-05", "08:00"),
	}
	data.SymptomEntries = []model.SymptomLogEntry{
		symptomEntry(1, "Headache", "2025-03-01", "20:00", 3),
		symptomEntry(2, "Headache", "2025-03-03", "20:00", 5),
	}

	report := Analyze(data, "Headache", 0)
	if report.TotalOccurrences != 2 {
		t.Fatalf("total occurrences = %d, want 2", report.TotalOccurrences)
	}
	if got := report.AverageSeverity; got != 4 {
		t.Errorf("average severity = %v, want 4", got)
	}

	peanuts := findIngredient(t, report, "PEANUTS")
	if peanuts.TimesBeforeSymptom != 2 {
		t.Errorf("PEANUTS times before symptom = %d, want 2", peanuts.TimesBeforeSymptom)
	}
	if peanuts.OccurrencePct != 100 {
		t.Errorf("PEANUTS occurrence pct = %v, want 100", peanuts.OccurrencePct)
	}
	if peanuts.TotalConsumed != 2 || peanuts.CorrelationRate != 100 {
		t.Errorf("PEANUTS consumed %d rate %v, want 2 and 100",
			peanuts.TotalConsumed, peanuts.CorrelationRate)
	}

	flour := findIngredient(t, report, "WHEAT FLOUR")
	if flour.TimesBeforeSymptom != 1 {
		t.Errorf("WHEAT FLOUR times before symptom = %d, want 1", flour.TimesBeforeSymptom)
	}
	if flour.TotalConsumed != 2 || flour.CorrelationRate != 50 {
		t.Errorf("WHEAT FLOUR consumed %d rate %v, want 2 and 50",
			flour.TotalConsumed, flour.CorrelationRate)
	}

	// SALT is carried by both foods: 4 entries total, present before both
	// occurrences.
	salt := findIngredient(t, report, "SALT")
	if salt.TotalConsumed != 4 || salt.CorrelationRate != 50 {
		t.Errorf("SALT consumed %d rate %v, want 4 and 50", salt.TotalConsumed, salt.CorrelationRate)
	}

	// Sub-ingredients share the ingredient namespace.
	molasses := findIngredient(t, report, "MOLASSES")
	if molasses.TimesBeforeSymptom != 1 {
		t.Errorf("MOLASSES times before symptom = %d, want 1", molasses.TimesBeforeSymptom)
	}

	if report.Ingredients[0].Name != "PEANUTS" {
		t.Errorf("top ranked ingredient = %q, want PEANUTS", report.Ingredients[0].Name)
	}

	pb := findFood(t, report, "PEANUT BUTTER")
	if pb.TimesBeforeSymptom != 2 || pb.CorrelationRate != 100 {
		t.Errorf("PEANUT BUTTER times %d rate %v, want 2 and 100",
			pb.TimesBeforeSymptom, pb.CorrelationRate)
	}
	bread := findFood(t, report, "BREAD")
	if bread.TimesBeforeSymptom != 1 || bread.TotalConsumed != 2 {
		t.Errorf("BREAD times %d consumed %d, want 1 and 2",
			bread.TimesBeforeSymptom, bread.TotalConsumed)
	}
}

func TestAnalyzeWindowBoundaries(t *testing.T) {
	data := testData()
	data.FoodEntries = []model.FoodLogEntry{
		// Exactly 24h before the occurrence: included.
		foodEntry(1, 1, "2025-03-01", "20:00"),
		// Exactly at the occurrence: excluded.
		foodEntry(2, 2, "2025-03-02", "20:00"),
	}
	data.SymptomEntries = []model.SymptomLogEntry{
		symptomEntry(1, "Nausea", "2025-03-02", "20:00", 2),
	}

	report := Analyze(data, "Nausea", 24*time.Hour)
	findIngredient(t, report, "PEANUTS")
	for _, s := range report.Ingredients {
		if s.Name == "WHEAT FLOUR" {
			t.Errorf("entry at the occurrence instant must not count")
		}
	}
	findFood(t, report, "PEANUT BUTTER")
	if len(report.Foods) != 1 {
		t.Errorf("foods = %d, want 1", len(report.Foods))
	}
}

func TestAnalyzePerOccurrenceDedup(t *testing.T) {
	data := testData()
	// Peanut butter eaten three times inside one window counts once for
	// the occurrence but all three feed the consumption denominator.
	data.FoodEntries = []model.FoodLogEntry{
		foodEntry(1, 1, "2025-03-01", "08:00"),
		foodEntry(2, 1, "2025-03-01", "12:00"),
		foodEntry(3, 1, "2025-03-01", "18:00"),
	}
	data.SymptomEntries = []model.SymptomLogEntry{
		symptomEntry(1, "Nausea", "2025-03-01", "22:00", 4),
	}

	report := Analyze(data, "Nausea", 0)
	peanuts := findIngredient(t, report, "PEANUTS")
	if peanuts.TimesBeforeSymptom != 1 {
		t.Errorf("times before symptom = %d, want 1", peanuts.TimesBeforeSymptom)
	}
	if peanuts.TotalConsumed != 3 {
		t.Errorf("total consumed = %d, want 3", peanuts.TotalConsumed)
	}
	if want := 100.0 / 3.0; math.Abs(peanuts.CorrelationRate-want) > 1e-9 {
		t.Errorf("correlation rate = %v, want %v", peanuts.CorrelationRate, want)
	}
}

func TestAnalyzeDenominatorFloor(t *testing.T) {
	// A food logged only inside windows can never exceed a 100% rate even
	// if history is thinner than the occurrence count suggests.
	data := testData()
	data.FoodEntries = []model.FoodLogEntry{
		foodEntry(1, 1, "2025-03-01", "08:00"),
	}
	data.SymptomEntries = []model.SymptomLogEntry{
		symptomEntry(1, "Nausea", "2025-03-01", "10:00", 1),
		symptomEntry(2, "Nausea", "2025-03-01", "12:00", 1),
	}

	report := Analyze(data, "Nausea", 0)
	peanuts := findIngredient(t, report, "PEANUTS")
	if peanuts.TimesBeforeSymptom != 2 {
		t.Fatalf("times before symptom = %d, want 2", peanuts.TimesBeforeSymptom)
	}
	if peanuts.TotalConsumed != 2 {
		t.Errorf("total consumed = %d, want floor at 2", peanuts.TotalConsumed)
	}
	if peanuts.CorrelationRate > 100 {
		t.Errorf("correlation rate %v exceeds 100", peanuts.CorrelationRate)
	}
}

func TestAnalyzeOccurrenceDetail(t *testing.T) {
	data := testData()
	data.FoodEntries = []model.FoodLogEntry{
		foodEntry(1, 1, "2025-03-01", "08:00"),
		foodEntry(2, 2, "2025-03-01", "09:00"),
	}
	data.SymptomEntries = []model.SymptomLogEntry{
		symptomEntry(1, "Nausea", "2025-03-01", "20:00", 3),
	}

	report := Analyze(data, "Nausea", 0)
	if len(report.Occurrences) != 1 {
		t.Fatalf("occurrences = %d, want 1", len(report.Occurrences))
	}
	occ := report.Occurrences[0]
	if occ.Severity != 3 {
		t.Errorf("severity = %d, want 3", occ.Severity)
	}
	wantItems := []string{"MOLASSES", "PEANUTS", "SALT", "WHEAT FLOUR"}
	if len(occ.Items) != len(wantItems) {
		t.Fatalf("items = %v, want %v", occ.Items, wantItems)
	}
	for i, item := range wantItems {
		if occ.Items[i] != item {
			t.Errorf("items[%d] = %q, want %q", i, occ.Items[i], item)
		}
	}
	saltFoods := occ.ItemFoods["SALT"]
	if len(saltFoods) != 2 || saltFoods[0] != "BREAD" || saltFoods[1] != "PEANUT BUTTER" {
		t.Errorf("SALT foods = %v, want [BREAD PEANUT BUTTER]", saltFoods)
	}
}
