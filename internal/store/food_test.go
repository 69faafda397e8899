package store

import (
	"testing"

	"github.com/morselapp/morsel/internal/label"
)

func TestFoodCreateParsesIngredients(t *testing.T) {
	db := newTestDB(t)
	foods := NewFoodStore(db)

	fdcID, err := foods.Create("Peanut Butter", "Ingredients: Roasted Peanuts (Peanuts, Peanut Oil), Salt.", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if fdcID == 0 {
		t.Fatal("expected a generated fdc_id")
	}

	got, err := foods.IngredientsByFDCID(fdcID)
	if err != nil {
		t.Fatalf("ingredients: %v", err)
	}
	want := []string{"ROASTED PEANUTS (PEANUTS, PEANUT OIL)", "SALT"}
	if len(got) != len(want) {
		t.Fatalf("ingredients = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ingredients[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestFoodCreateFindsExisting(t *testing.T) {
	db := newTestDB(t)
	foods := NewFoodStore(db)

	first, err := foods.Create("Oat Milk", "Water, Oats", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	second, err := foods.Create("Oat Milk", "completely different text", nil)
	if err != nil {
		t.Fatalf("second create: %v", err)
	}
	if first != second {
		t.Errorf("second create returned %d, want existing %d", second, first)
	}
}

func TestFoodGetByIDMissing(t *testing.T) {
	db := newTestDB(t)
	foods := NewFoodStore(db)

	f, err := foods.GetByID(999999)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f != nil {
		t.Errorf("expected nil for missing food, got %+v", f)
	}
}

func TestFoodSearch(t *testing.T) {
	db := newTestDB(t)
	foods := NewFoodStore(db)

	for _, desc := range []string{"APPLE JUICE", "APPLE SAUCE", "GRAPE JUICE"} {
		if _, err := foods.Create(desc, "", nil); err != nil {
			t.Fatalf("create %q: %v", desc, err)
		}
	}

	results, err := foods.Search("apple", 0)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(results) != 2 {
		t.Fatalf("search apple = %d results, want 2", len(results))
	}
	if results[0].Description != "APPLE JUICE" || results[1].Description != "APPLE SAUCE" {
		t.Errorf("results out of order: %q, %q", results[0].Description, results[1].Description)
	}

	limited, err := foods.Search("JUICE", 1)
	if err != nil {
		t.Fatalf("limited search: %v", err)
	}
	if len(limited) != 1 {
		t.Errorf("limited search = %d results, want 1", len(limited))
	}
}

func TestFoodRemoveCascades(t *testing.T) {
	db := newTestDB(t)
	foods := NewFoodStore(db)

	fdcID, err := foods.Create("Crackers", "Wheat Flour (Niacin, Iron), Salt", nil)
	if err != nil {
		t.Fatalf("create: %v", err)
	}
	if err := foods.Remove(fdcID); err != nil {
		t.Fatalf("remove: %v", err)
	}

	var n int
	for _, q := range []string{
		`SELECT COUNT(*) FROM foods WHERE fdc_id = ?`,
		`SELECT COUNT(*) FROM ingredients WHERE fdc_id = ?`,
	} {
		if err := db.QueryRow(q, fdcID).Scan(&n); err != nil {
			t.Fatalf("count: %v", err)
		}
		if n != 0 {
			t.Errorf("%s left %d rows", q, n)
		}
	}
	if err := db.QueryRow(`SELECT COUNT(*) FROM sub_ingredients`).Scan(&n); err != nil {
		t.Fatalf("count subs: %v", err)
	}
	if n != 0 {
		t.Errorf("sub_ingredients left %d rows", n)
	}
}

func TestFoodCreateCombination(t *testing.T) {
	db := newTestDB(t)
	foods := NewFoodStore(db)

	bread, err := foods.Create("Bread", "Wheat Flour, Salt", nil)
	if err != nil {
		t.Fatalf("create bread: %v", err)
	}
	pb, err := foods.Create("Peanut Butter", "Peanuts, Salt", nil)
	if err != nil {
		t.Fatalf("create peanut butter: %v", err)
	}

	comboID, err := foods.CreateCombination("PB Sandwich", []int64{bread, pb})
	if err != nil {
		t.Fatalf("create combination: %v", err)
	}

	combo, err := foods.GetByID(comboID)
	if err != nil {
		t.Fatalf("get combination: %v", err)
	}
	if combo == nil || combo.Category == nil || *combo.Category != "User Created Meal" {
		t.Fatalf("combination = %+v, want category User Created Meal", combo)
	}

	got, err := foods.IngredientsByFDCID(comboID)
	if err != nil {
		t.Fatalf("ingredients: %v", err)
	}
	want := []string{"WHEAT FLOUR", "SALT", "PEANUTS"}
	if len(got) != len(want) {
		t.Fatalf("ingredients = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ingredients[%d] = %q, want %q", i, got[i], want[i])
		}
	}

	again, err := foods.CreateCombination("PB Sandwich", []int64{bread})
	if err != nil {
		t.Fatalf("recreate combination: %v", err)
	}
	if again != comboID {
		t.Errorf("recreate returned %d, want existing %d", again, comboID)
	}
}

func TestImportBatchUpsert(t *testing.T) {
	db := newTestDB(t)
	foods := NewFoodStore(db)

	desc := "GRANOLA BAR"
	category := "Snacks"
	batch := []ImportFood{
		{FDCID: 100, Description: &desc},
		{FDCID: 100, Category: &category, Ingredients: []label.Parsed{
			{Name: "OATS"},
			{Name: "HONEY", Subs: []string{"CLOVER HONEY"}},
		}},
	}
	if err := foods.ImportBatch(batch); err != nil {
		t.Fatalf("import: %v", err)
	}

	f, err := foods.GetByID(100)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f == nil {
		t.Fatal("food 100 missing after import")
	}
	if f.Description != "GRANOLA BAR" {
		t.Errorf("description = %q, want GRANOLA BAR", f.Description)
	}
	if f.Category == nil || *f.Category != "Snacks" {
		t.Errorf("category = %v, want Snacks", f.Category)
	}

	got, err := foods.IngredientsByFDCID(100)
	if err != nil {
		t.Fatalf("ingredients: %v", err)
	}
	want := []string{"OATS", "HONEY (CLOVER HONEY)"}
	if len(got) != len(want) {
		t.Fatalf("ingredients = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("ingredients[%d] = %q, want %q", i, got[i], want[i])
		}
	}
}

func TestImportBatchDoesNotClobberDescription(t *testing.T) {
	db := newTestDB(t)
	foods := NewFoodStore(db)

	desc := "YOGURT"
	if err := foods.ImportBatch([]ImportFood{{FDCID: 5, Description: &desc}}); err != nil {
		t.Fatalf("first import: %v", err)
	}
	category := "Dairy"
	if err := foods.ImportBatch([]ImportFood{{FDCID: 5, Category: &category}}); err != nil {
		t.Fatalf("second import: %v", err)
	}

	f, err := foods.GetByID(5)
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if f.Description != "YOGURT" {
		t.Errorf("description = %q, want YOGURT preserved", f.Description)
	}
	if f.Category == nil || *f.Category != "Dairy" {
		t.Errorf("category = %v, want Dairy", f.Category)
	}
}
