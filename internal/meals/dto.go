package meals

// MealRequest is the body for adding or replacing a meal.
type MealRequest struct {
	Title       string `json:"title" validate:"required"`
	Description string `json:"description"`
	Time        *int64 `json:"time" validate:"required,min=0"`
	Calories    *int   `json:"calories" validate:"required,min=0"`
}

func (r MealRequest) input() MealInput {
	in := MealInput{Title: r.Title, Description: r.Description}
	if r.Time != nil {
		in.Time = *r.Time
	}
	if r.Calories != nil {
		in.Calories = *r.Calories
	}
	return in
}
