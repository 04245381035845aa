// Package summary aggregates tracked meals, weights, and medication logs
// into daily, weekly, and monthly report structures for the dashboard API.
package summary

import (
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"github.com/BTreeMap/DietCoach/internal/models"
	"github.com/BTreeMap/DietCoach/internal/store"
)

const (
	// defaultTargetCalories is used when the user has no profile target.
	defaultTargetCalories = 1800

	// defaultAdherenceDays is the adherence window when none is requested.
	defaultAdherenceDays = 7
)

// Request validation errors for monthly reports.
var (
	ErrInvalidMonth = errors.New("month must be between 1 and 12")
	ErrFutureMonth  = errors.New("month is in the future")
)

// TodaySummary reports the current day's intake against the user's target.
type TodaySummary struct {
	CaloriesConsumed  int     `json:"calories_consumed"`
	CaloriesTarget    int     `json:"calories_target"`
	CaloriesRemaining int     `json:"calories_remaining"`
	ProteinG          float64 `json:"protein_g"`
	CarbsG            float64 `json:"carbs_g"`
	FatG              float64 `json:"fat_g"`
	MealsLogged       int     `json:"meals_logged"`
	Date              string  `json:"date"`
}

// DailyCalorie is one day's row in a weekly summary. Days without records
// are still listed with zero values.
type DailyCalorie struct {
	Date       string `json:"date"`
	Calories   int    `json:"calories"`
	MealsCount int    `json:"meals_count"`
}

// WeeklySummary covers the 7-day window ending today. Weight fields are nil
// when no weigh-ins fall inside the window.
type WeeklySummary struct {
	DailyCalories       []DailyCalorie `json:"daily_calories"`
	TotalCalories       int            `json:"total_calories"`
	AverageCalories     float64        `json:"average_calories"`
	WeightStart         *float64       `json:"weight_start"`
	WeightEnd           *float64       `json:"weight_end"`
	WeightChange        *float64       `json:"weight_change"`
	MedicationAdherence float64        `json:"medication_adherence"`
	StartDate           string         `json:"start_date"`
	EndDate             string         `json:"end_date"`
}

// MedicationAdherenceEntry is the per-medication breakdown row.
type MedicationAdherenceEntry struct {
	MedicationID  string  `json:"medication_id"`
	Name          string  `json:"name"`
	ExpectedDoses int     `json:"expected_doses"`
	Taken         int     `json:"taken"`
	Skipped       int     `json:"skipped"`
	AdherenceRate float64 `json:"adherence_rate"`
}

// MedicationAdherence reports dose compliance over a trailing day window.
// Rates are percentages and may exceed 100 when the user logged more doses
// than the schedule expects.
type MedicationAdherence struct {
	Days           int                        `json:"days"`
	TotalScheduled int                        `json:"total_scheduled"`
	TotalTaken     int                        `json:"total_taken"`
	TotalSkipped   int                        `json:"total_skipped"`
	AdherenceRate  float64                    `json:"adherence_rate"`
	ByMedication   []MedicationAdherenceEntry `json:"by_medication"`
}

// WeekBreakdown is one calendar-week slice of a monthly report.
type WeekBreakdown struct {
	WeekStart     string  `json:"week_start"`
	WeekEnd       string  `json:"week_end"`
	TotalCalories int     `json:"total_calories"`
	DaysLogged    int     `json:"days_logged"`
	AverageDaily  float64 `json:"average_daily"`
}

// MonthlyReport covers one calendar month, clamped at today for the
// current month.
type MonthlyReport struct {
	Year                 int             `json:"year"`
	Month                int             `json:"month"`
	TotalDays            int             `json:"total_days"`
	DaysLogged           int             `json:"days_logged"`
	TotalCalories        int             `json:"total_calories"`
	AverageDailyCalories float64         `json:"average_daily_calories"`
	WeightStart          *float64        `json:"weight_start"`
	WeightEnd            *float64        `json:"weight_end"`
	WeightChange         *float64        `json:"weight_change"`
	MedicationAdherence  float64         `json:"medication_adherence"`
	WeeklyBreakdown      []WeekBreakdown `json:"weekly_breakdown"`
}

// Service computes summary reports from the store. Store errors propagate
// to the caller; nothing here degrades silently.
type Service struct {
	store store.Store
	now   func() time.Time
}

// NewService creates a summary service backed by the given store.
func NewService(st store.Store) *Service {
	return &Service{
		store: st,
		now:   time.Now,
	}
}

// Today summarizes the current day's intake for the user.
func (s *Service) Today(userID string) (*TodaySummary, error) {
	today := s.now().Format(models.DateLayout)

	target := defaultTargetCalories
	profile, err := s.store.GetProfile(userID)
	if err != nil {
		return nil, fmt.Errorf("failed to load profile for today summary: %w", err)
	}
	if profile != nil && profile.TargetCalories > 0 {
		target = profile.TargetCalories
	}

	meals, err := s.store.ListMeals(userID, today)
	if err != nil {
		return nil, fmt.Errorf("failed to load meals for today summary: %w", err)
	}

	consumed := 0
	var protein, carbs, fat float64
	for _, meal := range meals {
		consumed += meal.TotalCalories
		for _, item := range meal.Items {
			protein += item.Protein
			carbs += item.Carbs
			fat += item.Fat
		}
	}

	remaining := target - consumed
	if remaining < 0 {
		remaining = 0
	}

	slog.Debug("summary.Today computed", "userID", userID, "date", today, "consumed", consumed, "meals", len(meals))
	return &TodaySummary{
		CaloriesConsumed:  consumed,
		CaloriesTarget:    target,
		CaloriesRemaining: remaining,
		ProteinG:          round1(protein),
		CarbsG:            round1(carbs),
		FatG:              round1(fat),
		MealsLogged:       len(meals),
		Date:              today,
	}, nil
}

// Weekly summarizes the 7-day window ending today.
func (s *Service) Weekly(userID string) (*WeeklySummary, error) {
	now := s.now()
	start := now.AddDate(0, 0, -6)
	startDate := start.Format(models.DateLayout)
	endDate := now.Format(models.DateLayout)

	meals, err := s.store.ListMealsRange(userID, startDate, endDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load meals for weekly summary: %w", err)
	}

	days := make([]DailyCalorie, 7)
	index := make(map[string]int, 7)
	for i := 0; i < 7; i++ {
		date := start.AddDate(0, 0, i).Format(models.DateLayout)
		days[i] = DailyCalorie{Date: date}
		index[date] = i
	}
	for _, meal := range meals {
		i, ok := index[meal.Date]
		if !ok {
			continue
		}
		days[i].Calories += meal.TotalCalories
		days[i].MealsCount++
	}

	total := 0
	logged := 0
	for _, day := range days {
		total += day.Calories
		if day.MealsCount > 0 {
			logged++
		}
	}
	average := 0.0
	if logged > 0 {
		average = round1(float64(total) / float64(logged))
	}

	weightStart, weightEnd, weightChange, err := s.weightWindow(userID, startDate, endDate)
	if err != nil {
		return nil, err
	}

	adherence, err := s.Adherence(userID, 7)
	if err != nil {
		return nil, err
	}

	slog.Debug("summary.Weekly computed", "userID", userID, "start", startDate, "end", endDate, "total", total, "daysLogged", logged)
	return &WeeklySummary{
		DailyCalories:       days,
		TotalCalories:       total,
		AverageCalories:     average,
		WeightStart:         weightStart,
		WeightEnd:           weightEnd,
		WeightChange:        weightChange,
		MedicationAdherence: adherence.AdherenceRate,
		StartDate:           startDate,
		EndDate:             endDate,
	}, nil
}

// Adherence reports dose compliance over the trailing day window. The window
// starts at midnight days-1 days ago so that partial first days count whole.
// Expected doses are truncated to whole numbers, so a weekly medication
// expects 1 dose over 7 days and 4 over 30.
func (s *Service) Adherence(userID string, days int) (*MedicationAdherence, error) {
	if days <= 0 {
		days = defaultAdherenceDays
	}
	now := s.now()
	start := now.AddDate(0, 0, -(days - 1))
	start = time.Date(start.Year(), start.Month(), start.Day(), 0, 0, 0, 0, start.Location())

	meds, err := s.store.ListMedications(userID, true)
	if err != nil {
		return nil, fmt.Errorf("failed to load medications for adherence: %w", err)
	}

	report := &MedicationAdherence{
		Days:          days,
		AdherenceRate: 100,
		ByMedication:  []MedicationAdherenceEntry{},
	}
	if len(meds) == 0 {
		return report, nil
	}

	logs, err := s.store.ListMedicationLogs(userID, start, now)
	if err != nil {
		return nil, fmt.Errorf("failed to load medication logs for adherence: %w", err)
	}
	takenBy := make(map[string]int)
	skippedBy := make(map[string]int)
	for _, entry := range logs {
		switch entry.Status {
		case models.DoseTaken:
			takenBy[entry.MedicationID]++
		case models.DoseSkipped:
			skippedBy[entry.MedicationID]++
		}
	}

	for _, med := range meds {
		expected := int(med.Frequency.DosesPerDay() * float64(days))
		taken := takenBy[med.ID]
		skipped := skippedBy[med.ID]
		rate := 100.0
		if expected > 0 {
			rate = round1(float64(taken) / float64(expected) * 100)
		}
		report.ByMedication = append(report.ByMedication, MedicationAdherenceEntry{
			MedicationID:  med.ID,
			Name:          med.Name,
			ExpectedDoses: expected,
			Taken:         taken,
			Skipped:       skipped,
			AdherenceRate: rate,
		})
		report.TotalScheduled += expected
		report.TotalTaken += taken
		report.TotalSkipped += skipped
	}
	if report.TotalScheduled > 0 {
		report.AdherenceRate = round1(float64(report.TotalTaken) / float64(report.TotalScheduled) * 100)
	}

	slog.Debug("summary.Adherence computed", "userID", userID, "days", days, "scheduled", report.TotalScheduled, "taken", report.TotalTaken)
	return report, nil
}

// Monthly reports one calendar month. Zero year or month defaults to the
// current one. The month must not lie in the future; the current month is
// clamped at today.
func (s *Service) Monthly(userID string, year, month int) (*MonthlyReport, error) {
	now := s.now()
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		return nil, fmt.Errorf("invalid month %d: %w", month, ErrInvalidMonth)
	}

	first := time.Date(year, time.Month(month), 1, 0, 0, 0, 0, now.Location())
	last := first.AddDate(0, 1, -1)
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, now.Location())
	if last.After(today) {
		last = today
	}
	if last.Before(first) {
		return nil, fmt.Errorf("month %04d-%02d: %w", year, month, ErrFutureMonth)
	}
	totalDays := 0
	for d := first; !d.After(last); d = d.AddDate(0, 0, 1) {
		totalDays++
	}

	firstDate := first.Format(models.DateLayout)
	lastDate := last.Format(models.DateLayout)
	meals, err := s.store.ListMealsRange(userID, firstDate, lastDate)
	if err != nil {
		return nil, fmt.Errorf("failed to load meals for monthly report: %w", err)
	}
	dailyCalories := make(map[string]int)
	total := 0
	for _, meal := range meals {
		dailyCalories[meal.Date] += meal.TotalCalories
		total += meal.TotalCalories
	}
	daysLogged := len(dailyCalories)
	average := 0.0
	if daysLogged > 0 {
		average = round1(float64(total) / float64(daysLogged))
	}

	weightStart, weightEnd, weightChange, err := s.weightWindow(userID, firstDate, lastDate)
	if err != nil {
		return nil, err
	}

	adherence, err := s.Adherence(userID, totalDays)
	if err != nil {
		return nil, err
	}

	var weeks []WeekBreakdown
	for weekStart := first; !weekStart.After(last); {
		weekEnd := weekStart.AddDate(0, 0, 6)
		if weekEnd.After(last) {
			weekEnd = last
		}
		calories := 0
		logged := 0
		for d := weekStart; !d.After(weekEnd); d = d.AddDate(0, 0, 1) {
			date := d.Format(models.DateLayout)
			calories += dailyCalories[date]
			if _, ok := dailyCalories[date]; ok {
				logged++
			}
		}
		averageDaily := 0.0
		if logged > 0 {
			averageDaily = round1(float64(calories) / float64(logged))
		}
		weeks = append(weeks, WeekBreakdown{
			WeekStart:     weekStart.Format(models.DateLayout),
			WeekEnd:       weekEnd.Format(models.DateLayout),
			TotalCalories: calories,
			DaysLogged:    logged,
			AverageDaily:  averageDaily,
		})
		weekStart = weekEnd.AddDate(0, 0, 1)
	}

	slog.Debug("summary.Monthly computed", "userID", userID, "year", year, "month", month, "daysLogged", daysLogged, "total", total)
	return &MonthlyReport{
		Year:                 year,
		Month:                month,
		TotalDays:            totalDays,
		DaysLogged:           daysLogged,
		TotalCalories:        total,
		AverageDailyCalories: average,
		WeightStart:          weightStart,
		WeightEnd:            weightEnd,
		WeightChange:         weightChange,
		MedicationAdherence:  adherence.AdherenceRate,
		WeeklyBreakdown:      weeks,
	}, nil
}

// weightWindow returns the first and last weigh-ins between the given dates
// and the rounded difference. All three are nil when the window is empty.
func (s *Service) weightWindow(userID, from, to string) (*float64, *float64, *float64, error) {
	weights, err := s.store.ListWeights(userID, from, to)
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to load weights for summary window: %w", err)
	}
	if len(weights) == 0 {
		return nil, nil, nil, nil
	}
	first := weights[0].WeightKg
	last := weights[len(weights)-1].WeightKg
	change := round1(last - first)
	return &first, &last, &change, nil
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
