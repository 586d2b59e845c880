package meals

import (
	"time"
)

const dayLayout = "2006-01-02"

// Meal is one logged meal. Time is the epoch-millisecond instant it was eaten.
type Meal struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Time        int64     `json:"time"`
	Calories    int       `json:"calories"`
	CreatedAt   time.Time `json:"createdAt"`
	UpdatedAt   time.Time `json:"updatedAt"`
}

// MealInput carries the persisted fields of a meal.
type MealInput struct {
	Title       string
	Description string
	Time        int64
	Calories    int
}

// Window bounds a meal query by epoch milliseconds, both ends inclusive.
// Nil ends are open.
type Window struct {
	From *int64
	To   *int64
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t int64) bool {
	if w.From != nil && t < *w.From {
		return false
	}
	if w.To != nil && t > *w.To {
		return false
	}
	return true
}

// UserMeals is the meal listing response.
type UserMeals struct {
	ID    string `json:"id"`
	Meals []Meal `json:"meals"`
}

// DaySummary totals the calories eaten on one UTC day.
type DaySummary struct {
	Date         string `json:"date"`
	Calories     int    `json:"calories"`
	Meals        int    `json:"meals"`
	WithinTarget bool   `json:"withinTarget"`
}

// Summary is the per-day calorie report for a window.
type Summary struct {
	ID             string       `json:"id"`
	From           int64        `json:"from"`
	To             int64        `json:"to"`
	TargetCalories *int         `json:"targetCalories,omitempty"`
	Days           []DaySummary `json:"days"`
}

// DefaultWindow returns the UTC day-aligned window covering the last days
// days up to the end of the current day.
func DefaultWindow(now time.Time, days int) (int64, int64) {
	if days < 1 {
		days = 1
	}
	now = now.UTC()
	midnight := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	from := midnight.AddDate(0, 0, -(days - 1))
	to := midnight.AddDate(0, 0, 1).Add(-time.Millisecond)
	return from.UnixMilli(), to.UnixMilli()
}

// Summarize groups meals by UTC day. A nil target marks every day within target.
func Summarize(meals []Meal, target *int) []DaySummary {
	days := make([]DaySummary, 0)
	index := make(map[string]int)
	for _, meal := range meals {
		date := time.UnixMilli(meal.Time).UTC().Format(dayLayout)
		i, ok := index[date]
		if !ok {
			i = len(days)
			index[date] = i
			days = append(days, DaySummary{Date: date})
		}
		days[i].Calories += meal.Calories
		days[i].Meals++
	}
	for i := range days {
		days[i].WithinTarget = target == nil || days[i].Calories <= *target
	}
	return days
}
