package model

import "time"

// Food is a catalog entry keyed by its fdc_id. User-saved meal combinations
// get fresh ids from the same sequence as imported rows.
type Food struct {
	FDCID       int64     `json:"fdc_id"`
	Description string    `json:"description"`
	Category    *string   `json:"category"`
	CreatedAt   time.Time `json:"created_at"`
}

type Ingredient struct {
	ID    int64  `json:"id"`
	FDCID int64  `json:"fdc_id"`
	Name  string `json:"ingredient"`
}

type SubIngredient struct {
	ID           int64  `json:"id"`
	IngredientID int64  `json:"ingredient_id"`
	Name         string `json:"sub_ingredient"`
}
