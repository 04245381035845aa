package coach

import (
	"log/slog"
	"math"
	"sort"
	"time"

	"github.com/BTreeMap/DietCoach/internal/models"
	"github.com/BTreeMap/DietCoach/internal/store"
)

// Context assembly parameters.
const (
	// DefaultTargetCalories is assumed when the user has no profile.
	DefaultTargetCalories = 2000
	// contextWindowDays is how far back weight and calorie series reach.
	contextWindowDays = 7
	// trendThresholdKg is the weight delta below which the trend reads stable.
	trendThresholdKg = 0.3
	// maxStreakDays caps the consecutive-logging streak walk.
	maxStreakDays = 7
)

// Assembler builds the per-request user context that grounds coach responses.
type Assembler struct {
	store store.Store
}

// NewAssembler creates an assembler over the given store.
func NewAssembler(st store.Store) *Assembler {
	return &Assembler{store: st}
}

// Assemble gathers the user's recent state as of now. Every lookup degrades
// independently: a failed read logs a warning and leaves that field at its
// neutral default instead of failing the request.
func (a *Assembler) Assemble(userID string, now time.Time) models.UserContext {
	today := now.Format(models.DateLayout)
	weekAgo := now.AddDate(0, 0, -(contextWindowDays - 1)).Format(models.DateLayout)

	uc := models.UserContext{
		Today:          today,
		TargetCalories: DefaultTargetCalories,
		WeightTrend:    models.TrendUnknown,
	}

	// Today's meals: calorie total plus "label:name" food entries.
	todayMeals, err := a.store.ListMeals(userID, today)
	if err != nil {
		slog.Warn("Assembler.Assemble: today's meals lookup failed", "userID", userID, "error", err)
	}
	for _, meal := range todayMeals {
		uc.TodayCalories += meal.TotalCalories
		label := models.MealTypeLabel(meal.MealType)
		for _, item := range meal.Items {
			uc.TodayFoods = append(uc.TodayFoods, label+":"+item.Name)
		}
	}

	// Profile: target calories and goal weight.
	var profileWeight float64
	profile, err := a.store.GetProfile(userID)
	if err != nil {
		slog.Warn("Assembler.Assemble: profile lookup failed", "userID", userID, "error", err)
	} else if profile != nil {
		if profile.TargetCalories > 0 {
			uc.TargetCalories = profile.TargetCalories
		}
		uc.GoalWeight = profile.GoalWeightKg
		profileWeight = profile.CurrentWeightKg
	}

	// Weight series, ascending. Current weight prefers the latest
	// measurement over the profile snapshot.
	weights, err := a.store.ListWeights(userID, weekAgo, today)
	if err != nil {
		slog.Warn("Assembler.Assemble: weight lookup failed", "userID", userID, "error", err)
	}
	uc.RecentWeights = weights
	if len(weights) > 0 {
		uc.CurrentWeight = weights[len(weights)-1].WeightKg
	} else {
		uc.CurrentWeight = profileWeight
	}
	if len(weights) >= 2 {
		diff := weights[len(weights)-1].WeightKg - weights[0].WeightKg
		switch {
		case diff > trendThresholdKg:
			uc.WeightTrend = models.TrendUp
		case diff < -trendThresholdKg:
			uc.WeightTrend = models.TrendDown
		default:
			uc.WeightTrend = models.TrendStable
		}
	}

	// Daily calorie series and weekly average. Only days with at least one
	// meal record count toward the average.
	rangeMeals, err := a.store.ListMealsRange(userID, weekAgo, today)
	if err != nil {
		slog.Warn("Assembler.Assemble: weekly meals lookup failed", "userID", userID, "error", err)
	}
	if len(rangeMeals) > 0 {
		daily := make(map[string]int)
		for _, meal := range rangeMeals {
			daily[meal.Date] += meal.TotalCalories
		}
		dates := make([]string, 0, len(daily))
		for d := range daily {
			dates = append(dates, d)
		}
		sort.Strings(dates)
		total := 0
		for _, d := range dates {
			uc.RecentDailyCals = append(uc.RecentDailyCals, models.DailyCalories{Date: d, Calories: daily[d]})
			total += daily[d]
		}
		uc.WeeklyAvgCals = int(math.Round(float64(total) / float64(len(dates))))
	}

	// Streak: walk back from yesterday while each day has a meal record.
	for i := 1; i <= maxStreakDays; i++ {
		day := now.AddDate(0, 0, -i).Format(models.DateLayout)
		meals, err := a.store.ListMeals(userID, day)
		if err != nil {
			slog.Warn("Assembler.Assemble: streak lookup failed", "userID", userID, "date", day, "error", err)
			break
		}
		if len(meals) == 0 {
			break
		}
		uc.ConsecutiveDays++
	}

	slog.Debug("Assembler.Assemble: context built",
		"userID", userID,
		"todayCalories", uc.TodayCalories,
		"weights", len(uc.RecentWeights),
		"trend", uc.WeightTrend,
		"streak", uc.ConsecutiveDays)
	return uc
}
