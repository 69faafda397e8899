// Package analysis associates symptom occurrences with the foods and
// ingredients consumed in a look-back window before each occurrence, and
// ranks likely culprits by correlation rate.
package analysis

import (
	"sort"
	"time"

	"github.com/morselapp/morsel/internal/snapshot"
)

// DefaultWindow is the look-back duration tying consumption to a later
// symptom.
const DefaultWindow = 24 * time.Hour

// IngredientStat is one consumed item's aggregate across all occurrences of
// a symptom. Ingredients and sub-ingredients share one namespace: the same
// literal name is the same item.
type IngredientStat struct {
	Name               string  `json:"ingredient"`
	TimesBeforeSymptom int     `json:"times_before_symptom"`
	TotalOccurrences   int     `json:"total_occurrences"`
	OccurrencePct      float64 `json:"percentage"`
	TotalConsumed      int     `json:"total_consumed"`
	CorrelationRate    float64 `json:"correlation_rate"`
}

// FoodStat is the food-level analogue of IngredientStat, keyed by food
// description.
type FoodStat struct {
	Description        string  `json:"food"`
	TimesBeforeSymptom int     `json:"times_before_symptom"`
	TotalOccurrences   int     `json:"total_occurrences"`
	OccurrencePct      float64 `json:"percentage"`
	TotalConsumed      int     `json:"total_consumed"`
	CorrelationRate    float64 `json:"correlation_rate"`
}

// Occurrence is the per-occurrence audit detail: when the symptom struck,
// how bad, and which items (grouped by source food) preceded it.
type Occurrence struct {
	At        time.Time           `json:"at"`
	Severity  int                 `json:"severity"`
	Notes     string              `json:"notes"`
	Items     []string            `json:"items"`
	ItemFoods map[string][]string `json:"item_foods"`
}

// Report is the full analysis result for one symptom.
type Report struct {
	Symptom          string           `json:"symptom"`
	TotalOccurrences int              `json:"total_occurrences"`
	AverageSeverity  float64          `json:"average_severity"`
	Ingredients      []IngredientStat `json:"ingredients"`
	Foods            []FoodStat       `json:"foods"`
	Occurrences      []Occurrence     `json:"occurrences"`
}

// Analyze computes ranked culprit statistics for the named symptom over the
// user's snapshot. window <= 0 selects DefaultWindow. A symptom with no
// logged occurrences yields an empty report, not an error.
//
// For each occurrence at time T the half-open window [T-window, T) selects
// the food entries whose ingredients (and sub-ingredients) count as consumed
// before that occurrence; an entry at exactly T is excluded, one at exactly
// T-window included. Each item counts once per occurrence no matter how
// often it was eaten inside the window.
func Analyze(data *snapshot.Data, symptomName string, window time.Duration) *Report {
	if window <= 0 {
		window = DefaultWindow
	}
	report := &Report{Symptom: symptomName}

	var occurrences []int
	for i, e := range data.SymptomEntries {
		if e.SymptomName == symptomName {
			occurrences = append(occurrences, i)
		}
	}
	if len(occurrences) == 0 {
		return report
	}
	report.TotalOccurrences = len(occurrences)

	foodDesc := make(map[int64]string, len(data.Foods))
	for _, f := range data.Foods {
		foodDesc[f.FDCID] = f.Description
	}

	// Ingredient and sub-ingredient names per food, deduplicated so one
	// food entry never counts the same item twice.
	ingredientNames := make(map[int64][]string)
	seenIng := make(map[int64]map[string]bool)
	for _, ing := range data.Ingredients {
		if seenIng[ing.FDCID] == nil {
			seenIng[ing.FDCID] = make(map[string]bool)
		}
		if !seenIng[ing.FDCID][ing.Name] {
			seenIng[ing.FDCID][ing.Name] = true
			ingredientNames[ing.FDCID] = append(ingredientNames[ing.FDCID], ing.Name)
		}
	}
	ingredientFDC := make(map[int64]int64, len(data.Ingredients))
	for _, ing := range data.Ingredients {
		ingredientFDC[ing.ID] = ing.FDCID
	}
	subNames := make(map[int64][]string)
	seenSub := make(map[int64]map[string]bool)
	for _, sub := range data.SubIngredients {
		fdc, ok := ingredientFDC[sub.IngredientID]
		if !ok {
			continue
		}
		if seenSub[fdc] == nil {
			seenSub[fdc] = make(map[string]bool)
		}
		if !seenSub[fdc][sub.Name] {
			seenSub[fdc][sub.Name] = true
			subNames[fdc] = append(subNames[fdc], sub.Name)
		}
	}

	itemFrequency := make(map[string]int)
	foodFrequency := make(map[string]int)

	for _, idx := range occurrences {
		sym := data.SymptomEntries[idx]
		at := sym.At()
		start := at.Add(-window)

		fdcSet := make(map[int64]bool)
		descSet := make(map[string]bool)
		for _, fe := range data.FoodEntries {
			t := fe.At()
			if (t.After(start) || t.Equal(start)) && t.Before(at) {
				fdcSet[fe.FDCID] = true
				if desc, ok := foodDesc[fe.FDCID]; ok {
					descSet[desc] = true
				}
			}
		}

		items := make(map[string]bool)
		itemFoods := make(map[string][]string)
		itemFoodSeen := make(map[string]map[string]bool)
		addItem := func(item string, fdc int64) {
			items[item] = true
			desc, ok := foodDesc[fdc]
			if !ok {
				return
			}
			if itemFoodSeen[item] == nil {
				itemFoodSeen[item] = make(map[string]bool)
			}
			if !itemFoodSeen[item][desc] {
				itemFoodSeen[item][desc] = true
				itemFoods[item] = append(itemFoods[item], desc)
			}
		}
		for fdc := range fdcSet {
			for _, name := range ingredientNames[fdc] {
				addItem(name, fdc)
			}
			for _, name := range subNames[fdc] {
				addItem(name, fdc)
			}
		}

		for item := range items {
			itemFrequency[item]++
		}
		for desc := range descSet {
			foodFrequency[desc]++
		}

		occ := Occurrence{
			At:        at,
			Severity:  sym.Severity,
			Notes:     sym.Notes,
			ItemFoods: itemFoods,
		}
		for item := range items {
			occ.Items = append(occ.Items, item)
		}
		sort.Strings(occ.Items)
		for _, foods := range occ.ItemFoods {
			sort.Strings(foods)
		}
		report.Occurrences = append(report.Occurrences, occ)
	}

	sort.Slice(report.Occurrences, func(i, j int) bool {
		return report.Occurrences[i].At.Before(report.Occurrences[j].At)
	})

	var severitySum int
	for _, idx := range occurrences {
		severitySum += data.SymptomEntries[idx].Severity
	}
	report.AverageSeverity = float64(severitySum) / float64(len(occurrences))

	// Total consumption over all history: the number of distinct food
	// entries whose food carries the item as an ingredient plus the number
	// whose food carries it as a sub-ingredient. Floored at the pre-symptom
	// frequency so a rate never exceeds 100% and the denominator is never
	// zero.
	itemEntryCount := make(map[string]int)
	foodEntryCount := make(map[string]int)
	for _, fe := range data.FoodEntries {
		for _, name := range ingredientNames[fe.FDCID] {
			itemEntryCount[name]++
		}
		for _, name := range subNames[fe.FDCID] {
			itemEntryCount[name]++
		}
		if desc, ok := foodDesc[fe.FDCID]; ok {
			foodEntryCount[desc]++
		}
	}

	total := len(occurrences)
	for item, freq := range itemFrequency {
		consumed := itemEntryCount[item]
		if consumed < freq {
			consumed = freq
		}
		report.Ingredients = append(report.Ingredients, IngredientStat{
			Name:               item,
			TimesBeforeSymptom: freq,
			TotalOccurrences:   total,
			OccurrencePct:      float64(freq) / float64(total) * 100,
			TotalConsumed:      consumed,
			CorrelationRate:    float64(freq) / float64(consumed) * 100,
		})
	}
	for desc, freq := range foodFrequency {
		consumed := foodEntryCount[desc]
		if consumed < freq {
			consumed = freq
		}
		report.Foods = append(report.Foods, FoodStat{
			Description:        desc,
			TimesBeforeSymptom: freq,
			TotalOccurrences:   total,
			OccurrencePct:      float64(freq) / float64(total) * 100,
			TotalConsumed:      consumed,
			CorrelationRate:    float64(freq) / float64(consumed) * 100,
		})
	}

	sort.Slice(report.Ingredients, func(i, j int) bool {
		a, b := report.Ingredients[i], report.Ingredients[j]
		if a.CorrelationRate != b.CorrelationRate {
			return a.CorrelationRate > b.CorrelationRate
		}
		if a.TimesBeforeSymptom != b.TimesBeforeSymptom {
			return a.TimesBeforeSymptom > b.TimesBeforeSymptom
		}
		return a.Name < b.Name
	})
	sort.Slice(report.Foods, func(i, j int) bool {
		a, b := report.Foods[i], report.Foods[j]
		if a.CorrelationRate != b.CorrelationRate {
			return a.CorrelationRate > b.CorrelationRate
		}
		if a.TimesBeforeSymptom != b.TimesBeforeSymptom {
			return a.TimesBeforeSymptom > b.TimesBeforeSymptom
		}
		return a.Description < b.Description
	})

	return report
}
