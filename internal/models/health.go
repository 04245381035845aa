// Package models defines health record structures shared across modules.
package models

import (
	"time"
)

// DateLayout is the wire format for calendar dates (YYYY-MM-DD).
const DateLayout = "2006-01-02"

// MealType identifies which meal of the day a record belongs to.
type MealType string

const (
	// MealTypeBreakfast is the morning meal (roughly 05:00-10:00).
	MealTypeBreakfast MealType = "breakfast"
	// MealTypeLunch is the midday meal (roughly 10:00-15:00).
	MealTypeLunch MealType = "lunch"
	// MealTypeDinner is the evening meal (roughly 15:00-21:00).
	MealTypeDinner MealType = "dinner"
	// MealTypeSnack covers everything outside the main meal windows.
	MealTypeSnack MealType = "snack"
)

// IsValidMealType checks if the given meal type is supported.
func IsValidMealType(mt MealType) bool {
	switch mt {
	case MealTypeBreakfast, MealTypeLunch, MealTypeDinner, MealTypeSnack:
		return true
	default:
		return false
	}
}

// MealTypeLabel returns the Korean display label for a meal type.
func MealTypeLabel(mt MealType) string {
	switch mt {
	case MealTypeBreakfast:
		return "아침"
	case MealTypeLunch:
		return "점심"
	case MealTypeDinner:
		return "저녁"
	case MealTypeSnack:
		return "간식"
	default:
		return ""
	}
}

// InferMealType guesses the meal type from the hour of day.
func InferMealType(t time.Time) MealType {
	hour := t.Hour()
	switch {
	case hour >= 5 && hour < 10:
		return MealTypeBreakfast
	case hour >= 10 && hour < 15:
		return MealTypeLunch
	case hour >= 15 && hour < 21:
		return MealTypeDinner
	default:
		return MealTypeSnack
	}
}

// FoodItem is one food entry inside a meal.
type FoodItem struct {
	Name     string  `json:"name"`
	Quantity float64 `json:"quantity"` // servings, defaults to 1
	Calories int     `json:"calories"` // kcal, already scaled by quantity
	Protein  float64 `json:"protein"`  // grams
	Carbs    float64 `json:"carbs"`    // grams
	Fat      float64 `json:"fat"`      // grams
}

// Meal is one logged meal: a date+type slot holding food items.
type Meal struct {
	ID            string     `json:"id"`
	UserID        string     `json:"user_id"`
	Date          string     `json:"date"` // YYYY-MM-DD
	MealType      MealType   `json:"meal_type"`
	Items         []FoodItem `json:"items"`
	TotalCalories int        `json:"total_calories"`
	CreatedAt     time.Time  `json:"created_at"`
	UpdatedAt     time.Time  `json:"updated_at"`
}

// Profile holds the user's coaching targets and latest self-reported numbers.
type Profile struct {
	UserID          string    `json:"user_id"`
	TargetCalories  int       `json:"target_calories"`
	CurrentWeightKg float64   `json:"current_weight_kg"`
	GoalWeightKg    float64   `json:"goal_weight_kg"`
	PhoneNumber     string    `json:"phone_number,omitempty"` // E.164, for medication reminders
	UpdatedAt       time.Time `json:"updated_at"`
}

// WeightEntry is one body-weight measurement.
type WeightEntry struct {
	Date     string  `json:"date"` // YYYY-MM-DD
	WeightKg float64 `json:"weight_kg"`
}

// DailyCalories is one day's summed calorie intake.
type DailyCalories struct {
	Date     string `json:"date"` // YYYY-MM-DD
	Calories int    `json:"calories"`
}

// UserContext is the request-scoped snapshot of recent user state used to
// ground a coach response. It is built fresh per request and never cached.
type UserContext struct {
	Today           string          `json:"today"` // YYYY-MM-DD
	TodayCalories   int             `json:"today_calories"`
	TargetCalories  int             `json:"target_calories"`
	TodayFoods      []string        `json:"today_foods"` // "label:name" entries
	CurrentWeight   float64         `json:"current_weight"`
	GoalWeight      float64         `json:"goal_weight"`
	RecentWeights   []WeightEntry   `json:"recent_weights"` // ascending, at most 7 days
	WeightTrend     TrendDirection  `json:"weight_trend"`
	WeeklyAvgCals   int             `json:"weekly_avg_calories"`
	RecentDailyCals []DailyCalories `json:"recent_daily_calories"` // ascending, at most 7 days
	ConsecutiveDays int             `json:"consecutive_days"`
}

// MedicationFrequency describes how often a medication is scheduled.
type MedicationFrequency string

const (
	// FrequencyOnceDaily schedules one dose per day.
	FrequencyOnceDaily MedicationFrequency = "once_daily"
	// FrequencyTwiceDaily schedules two doses per day.
	FrequencyTwiceDaily MedicationFrequency = "twice_daily"
	// FrequencyThreeTimesDaily schedules three doses per day.
	FrequencyThreeTimesDaily MedicationFrequency = "three_times_daily"
	// FrequencyWeekly schedules one dose per week.
	FrequencyWeekly MedicationFrequency = "weekly"
)

// IsValidFrequency checks if the given medication frequency is supported.
func IsValidFrequency(f MedicationFrequency) bool {
	switch f {
	case FrequencyOnceDaily, FrequencyTwiceDaily, FrequencyThreeTimesDaily, FrequencyWeekly:
		return true
	default:
		return false
	}
}

// DosesPerDay returns the expected dose count per day for a frequency.
// Weekly medications prorate to 1/7.
func (f MedicationFrequency) DosesPerDay() float64 {
	switch f {
	case FrequencyTwiceDaily:
		return 2
	case FrequencyThreeTimesDaily:
		return 3
	case FrequencyWeekly:
		return 1.0 / 7.0
	default:
		return 1
	}
}

// Medication is one prescribed or self-managed drug the user tracks.
type Medication struct {
	ID         string              `json:"id"`
	UserID     string              `json:"user_id"`
	Name       string              `json:"name"`
	Dosage     string              `json:"dosage,omitempty"` // e.g. "0.25mg"
	Frequency  MedicationFrequency `json:"frequency"`
	TimesOfDay []string            `json:"times_of_day,omitempty"` // "HH:MM" reminder times
	Active     bool                `json:"is_active"`
	CreatedAt  time.Time           `json:"created_at"`
}

// MedicationLogStatus records whether a scheduled dose was taken.
type MedicationLogStatus string

const (
	// DoseTaken marks a dose the user confirmed taking.
	DoseTaken MedicationLogStatus = "taken"
	// DoseSkipped marks a dose the user explicitly skipped.
	DoseSkipped MedicationLogStatus = "skipped"
)

// MedicationLog is one dose event for a medication.
type MedicationLog struct {
	ID           string              `json:"id"`
	MedicationID string              `json:"medication_id"`
	UserID       string              `json:"user_id"`
	TakenAt      time.Time           `json:"taken_at"`
	Status       MedicationLogStatus `json:"status"`
}
