// Package store provides storage backends for DietCoach.
//
// This file implements the PostgreSQL-backed store.
package store

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "embed"

	"github.com/google/uuid"
	_ "github.com/lib/pq"

	"github.com/BTreeMap/DietCoach/internal/models"
)

// Database connection pool configuration constants
const (
	// DefaultMaxOpenConns is the default maximum number of open connections to the database
	DefaultMaxOpenConns = 25
	// DefaultMaxIdleConns is the default maximum number of idle connections in the pool
	DefaultMaxIdleConns = 25
	// DefaultConnMaxLifetime is the default maximum amount of time a connection may be reused
	DefaultConnMaxLifetime = 5 * time.Minute
)

//go:embed migrations_postgres.sql
var postgresMigrations string

type PostgresStore struct {
	db *sql.DB
}

// Compile-time check that PostgresStore implements Store.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new Postgres store based on provided options.
func NewPostgresStore(opts ...Option) (*PostgresStore, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	slog.Debug("NewPostgresStore invoked", "DSN_set", cfg.DSN != "")

	dsn := cfg.DSN
	if dsn == "" {
		slog.Error("PostgresStore DSN not set")
		return nil, fmt.Errorf("database DSN not set")
	}

	db, err := sql.Open("postgres", dsn)
	if err != nil {
		slog.Error("Failed to open Postgres connection", "error", err)
		return nil, err
	}

	// Configure connection pool for better performance
	db.SetMaxOpenConns(DefaultMaxOpenConns)
	db.SetMaxIdleConns(DefaultMaxIdleConns)
	db.SetConnMaxLifetime(DefaultConnMaxLifetime)

	if err := db.Ping(); err != nil {
		slog.Error("Postgres ping failed", "error", err)
		return nil, err
	}

	slog.Debug("Running Postgres migrations")
	if _, err := db.Exec(postgresMigrations); err != nil {
		slog.Error("Failed to run migrations", "error", err)
		return nil, fmt.Errorf("failed to run migrations: %w", err)
	}
	slog.Debug("Postgres migrations applied successfully")

	return &PostgresStore{db: db}, nil
}

// Close closes the Postgres database connection.
func (s *PostgresStore) Close() error {
	slog.Debug("Closing Postgres database connection")
	err := s.db.Close()
	if err != nil {
		slog.Error("Failed to close Postgres database", "error", err)
	}
	return err
}

// GetProfile retrieves a user profile. Returns nil when no profile exists.
func (s *PostgresStore) GetProfile(userID string) (*models.Profile, error) {
	query := `SELECT user_id, target_calories, current_weight_kg, goal_weight_kg, phone_number, updated_at
			  FROM profiles WHERE user_id = $1`

	var p models.Profile
	var currentWeight, goalWeight sql.NullFloat64
	var phone sql.NullString

	err := s.db.QueryRow(query, userID).Scan(&p.UserID, &p.TargetCalories, &currentWeight, &goalWeight, &phone, &p.UpdatedAt)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetProfile not found", "userID", userID)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetProfile failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to get profile for %s: %w", userID, err)
	}
	p.CurrentWeightKg = currentWeight.Float64
	p.GoalWeightKg = goalWeight.Float64
	p.PhoneNumber = phone.String
	return &p, nil
}

// SaveProfile stores or updates a user profile.
func (s *PostgresStore) SaveProfile(profile models.Profile) error {
	if profile.UpdatedAt.IsZero() {
		profile.UpdatedAt = time.Now()
	}
	query := `INSERT INTO profiles (user_id, target_calories, current_weight_kg, goal_weight_kg, phone_number, updated_at)
			  VALUES ($1, $2, $3, $4, $5, $6)
			  ON CONFLICT (user_id) DO UPDATE SET
				  target_calories = EXCLUDED.target_calories,
				  current_weight_kg = EXCLUDED.current_weight_kg,
				  goal_weight_kg = EXCLUDED.goal_weight_kg,
				  phone_number = EXCLUDED.phone_number,
				  updated_at = EXCLUDED.updated_at`

	_, err := s.db.Exec(query, profile.UserID, profile.TargetCalories,
		nilIfZero(profile.CurrentWeightKg), nilIfZero(profile.GoalWeightKg),
		nilIfEmpty(profile.PhoneNumber), profile.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveProfile failed", "error", err, "userID", profile.UserID)
		return fmt.Errorf("failed to save profile for %s: %w", profile.UserID, err)
	}
	slog.Debug("PostgresStore SaveProfile succeeded", "userID", profile.UserID)
	return nil
}

// GetMeal retrieves the meal for one user, date, and meal type. Returns nil
// when no meal was logged for that slot.
func (s *PostgresStore) GetMeal(userID, date string, mealType models.MealType) (*models.Meal, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, date, meal_type, items, total_calories, created_at, updated_at
		 FROM meals WHERE user_id = $1 AND date = $2 AND meal_type = $3`,
		userID, date, string(mealType))

	m, err := scanMealRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetMeal not found", "userID", userID, "date", date, "mealType", mealType)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetMeal failed", "error", err, "userID", userID, "date", date)
		return nil, fmt.Errorf("failed to get meal: %w", err)
	}
	return &m, nil
}

// ListMeals retrieves all meals for one user and date.
func (s *PostgresStore) ListMeals(userID, date string) ([]models.Meal, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, date, meal_type, items, total_calories, created_at, updated_at
		 FROM meals WHERE user_id = $1 AND date = $2 ORDER BY created_at ASC`,
		userID, date)
	if err != nil {
		slog.Error("PostgresStore ListMeals query failed", "error", err, "userID", userID, "date", date)
		return nil, fmt.Errorf("failed to query meals: %w", err)
	}
	defer rows.Close()

	var meals []models.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			slog.Error("PostgresStore ListMeals scan failed", "error", err)
			return nil, err
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListMeals rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate meal rows: %w", err)
	}
	slog.Debug("PostgresStore ListMeals succeeded", "userID", userID, "date", date, "count", len(meals))
	return meals, nil
}

// ListMealsRange retrieves all meals for one user between two dates inclusive.
func (s *PostgresStore) ListMealsRange(userID, fromDate, toDate string) ([]models.Meal, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, date, meal_type, items, total_calories, created_at, updated_at
		 FROM meals WHERE user_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC, created_at ASC`,
		userID, fromDate, toDate)
	if err != nil {
		slog.Error("PostgresStore ListMealsRange query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query meals range: %w", err)
	}
	defer rows.Close()

	var meals []models.Meal
	for rows.Next() {
		m, err := scanMeal(rows)
		if err != nil {
			slog.Error("PostgresStore ListMealsRange scan failed", "error", err)
			return nil, err
		}
		meals = append(meals, m)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListMealsRange rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate meal rows: %w", err)
	}
	slog.Debug("PostgresStore ListMealsRange succeeded", "userID", userID, "from", fromDate, "to", toDate, "count", len(meals))
	return meals, nil
}

// SaveMeal stores or updates the meal occupying one user/date/type slot.
func (s *PostgresStore) SaveMeal(meal models.Meal) error {
	now := time.Now()
	if meal.ID == "" {
		meal.ID = uuid.NewString()
	}
	if meal.CreatedAt.IsZero() {
		meal.CreatedAt = now
	}
	meal.UpdatedAt = now

	itemsJSON, err := marshalJSONColumn(meal.Items)
	if err != nil {
		slog.Error("PostgresStore SaveMeal items marshal failed", "error", err, "userID", meal.UserID)
		return fmt.Errorf("failed to marshal meal items: %w", err)
	}

	res, err := s.db.Exec(
		`UPDATE meals SET items = $1, total_calories = $2, updated_at = $3
		 WHERE user_id = $4 AND date = $5 AND meal_type = $6`,
		itemsJSON, meal.TotalCalories, meal.UpdatedAt, meal.UserID, meal.Date, string(meal.MealType))
	if err != nil {
		slog.Error("PostgresStore SaveMeal update failed", "error", err, "userID", meal.UserID)
		return fmt.Errorf("failed to update meal: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("PostgresStore SaveMeal updated", "userID", meal.UserID, "date", meal.Date, "mealType", meal.MealType)
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO meals (id, user_id, date, meal_type, items, total_calories, created_at, updated_at)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
		meal.ID, meal.UserID, meal.Date, string(meal.MealType), itemsJSON, meal.TotalCalories, meal.CreatedAt, meal.UpdatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveMeal insert failed", "error", err, "userID", meal.UserID)
		return fmt.Errorf("failed to insert meal: %w", err)
	}
	slog.Debug("PostgresStore SaveMeal inserted", "userID", meal.UserID, "date", meal.Date, "mealType", meal.MealType)
	return nil
}

// DeleteMeal removes a meal by id.
func (s *PostgresStore) DeleteMeal(id string) error {
	_, err := s.db.Exec(`DELETE FROM meals WHERE id = $1`, id)
	if err != nil {
		slog.Error("PostgresStore DeleteMeal failed", "error", err, "id", id)
		return fmt.Errorf("failed to delete meal %s: %w", id, err)
	}
	slog.Debug("PostgresStore DeleteMeal succeeded", "id", id)
	return nil
}

// SaveWeight stores or updates the weight entry for one user and date.
func (s *PostgresStore) SaveWeight(userID string, entry models.WeightEntry) error {
	res, err := s.db.Exec(
		`UPDATE weight_logs SET weight_kg = $1 WHERE user_id = $2 AND date = $3`,
		entry.WeightKg, userID, entry.Date)
	if err != nil {
		slog.Error("PostgresStore SaveWeight update failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to update weight: %w", err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		slog.Debug("PostgresStore SaveWeight updated", "userID", userID, "date", entry.Date)
		return nil
	}

	_, err = s.db.Exec(
		`INSERT INTO weight_logs (id, user_id, date, weight_kg, created_at) VALUES ($1, $2, $3, $4, $5)`,
		uuid.NewString(), userID, entry.Date, entry.WeightKg, time.Now())
	if err != nil {
		slog.Error("PostgresStore SaveWeight insert failed", "error", err, "userID", userID)
		return fmt.Errorf("failed to insert weight: %w", err)
	}
	slog.Debug("PostgresStore SaveWeight inserted", "userID", userID, "date", entry.Date)
	return nil
}

// ListWeights retrieves weight entries for one user between two dates
// inclusive, ascending by date.
func (s *PostgresStore) ListWeights(userID, fromDate, toDate string) ([]models.WeightEntry, error) {
	rows, err := s.db.Query(
		`SELECT date, weight_kg FROM weight_logs
		 WHERE user_id = $1 AND date >= $2 AND date <= $3 ORDER BY date ASC`,
		userID, fromDate, toDate)
	if err != nil {
		slog.Error("PostgresStore ListWeights query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query weights: %w", err)
	}
	defer rows.Close()

	var entries []models.WeightEntry
	for rows.Next() {
		var e models.WeightEntry
		if err := rows.Scan(&e.Date, &e.WeightKg); err != nil {
			slog.Error("PostgresStore ListWeights scan failed", "error", err)
			return nil, fmt.Errorf("failed to scan weight row: %w", err)
		}
		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListWeights rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate weight rows: %w", err)
	}
	slog.Debug("PostgresStore ListWeights succeeded", "userID", userID, "count", len(entries))
	return entries, nil
}

// SaveMedication stores or updates a medication.
func (s *PostgresStore) SaveMedication(med models.Medication) error {
	if med.ID == "" {
		med.ID = uuid.NewString()
	}
	if med.CreatedAt.IsZero() {
		med.CreatedAt = time.Now()
	}
	timesJSON, err := marshalJSONColumn(med.TimesOfDay)
	if err != nil {
		slog.Error("PostgresStore SaveMedication times marshal failed", "error", err, "id", med.ID)
		return fmt.Errorf("failed to marshal medication times: %w", err)
	}

	query := `INSERT INTO medications (id, user_id, name, dosage, frequency, times_of_day, is_active, created_at)
			  VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
			  ON CONFLICT (id) DO UPDATE SET
				  name = EXCLUDED.name,
				  dosage = EXCLUDED.dosage,
				  frequency = EXCLUDED.frequency,
				  times_of_day = EXCLUDED.times_of_day,
				  is_active = EXCLUDED.is_active`
	_, err = s.db.Exec(query, med.ID, med.UserID, med.Name, nilIfEmpty(med.Dosage),
		string(med.Frequency), timesJSON, med.Active, med.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveMedication failed", "error", err, "id", med.ID)
		return fmt.Errorf("failed to save medication %s: %w", med.ID, err)
	}
	slog.Debug("PostgresStore SaveMedication succeeded", "id", med.ID, "name", med.Name)
	return nil
}

// GetMedication retrieves a medication by id. Returns nil when not found.
func (s *PostgresStore) GetMedication(id string) (*models.Medication, error) {
	row := s.db.QueryRow(
		`SELECT id, user_id, name, dosage, frequency, times_of_day, is_active, created_at
		 FROM medications WHERE id = $1`, id)

	med, err := scanMedicationRow(row)
	if err == sql.ErrNoRows {
		slog.Debug("PostgresStore GetMedication not found", "id", id)
		return nil, nil
	}
	if err != nil {
		slog.Error("PostgresStore GetMedication failed", "error", err, "id", id)
		return nil, fmt.Errorf("failed to get medication %s: %w", id, err)
	}
	return &med, nil
}

// ListMedications retrieves medications for one user, optionally only active ones.
func (s *PostgresStore) ListMedications(userID string, activeOnly bool) ([]models.Medication, error) {
	query := `SELECT id, user_id, name, dosage, frequency, times_of_day, is_active, created_at
			  FROM medications WHERE user_id = $1`
	if activeOnly {
		query += ` AND is_active = TRUE`
	}
	query += ` ORDER BY created_at ASC`

	rows, err := s.db.Query(query, userID)
	if err != nil {
		slog.Error("PostgresStore ListMedications query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query medications: %w", err)
	}
	defer rows.Close()

	var meds []models.Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			slog.Error("PostgresStore ListMedications scan failed", "error", err)
			return nil, err
		}
		meds = append(meds, med)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListMedications rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate medication rows: %w", err)
	}
	slog.Debug("PostgresStore ListMedications succeeded", "userID", userID, "count", len(meds))
	return meds, nil
}

// ListAllActiveMedications retrieves active medications across all users.
// Used by reminder recovery at startup.
func (s *PostgresStore) ListAllActiveMedications() ([]models.Medication, error) {
	rows, err := s.db.Query(
		`SELECT id, user_id, name, dosage, frequency, times_of_day, is_active, created_at
		 FROM medications WHERE is_active = TRUE ORDER BY user_id ASC, created_at ASC`)
	if err != nil {
		slog.Error("PostgresStore ListAllActiveMedications query failed", "error", err)
		return nil, fmt.Errorf("failed to query active medications: %w", err)
	}
	defer rows.Close()

	var meds []models.Medication
	for rows.Next() {
		med, err := scanMedication(rows)
		if err != nil {
			slog.Error("PostgresStore ListAllActiveMedications scan failed", "error", err)
			return nil, err
		}
		meds = append(meds, med)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListAllActiveMedications rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate medication rows: %w", err)
	}
	slog.Debug("PostgresStore ListAllActiveMedications succeeded", "count", len(meds))
	return meds, nil
}

// SaveMedicationLog stores one intake record.
func (s *PostgresStore) SaveMedicationLog(log models.MedicationLog) error {
	if log.ID == "" {
		log.ID = uuid.NewString()
	}
	if log.TakenAt.IsZero() {
		log.TakenAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO medication_logs (id, medication_id, user_id, taken_at, status) VALUES ($1, $2, $3, $4, $5)`,
		log.ID, log.MedicationID, log.UserID, log.TakenAt, string(log.Status))
	if err != nil {
		slog.Error("PostgresStore SaveMedicationLog failed", "error", err, "medicationID", log.MedicationID)
		return fmt.Errorf("failed to save medication log: %w", err)
	}
	slog.Debug("PostgresStore SaveMedicationLog succeeded", "medicationID", log.MedicationID, "status", log.Status)
	return nil
}

// ListMedicationLogs retrieves intake records for one user between two times.
func (s *PostgresStore) ListMedicationLogs(userID string, from, to time.Time) ([]models.MedicationLog, error) {
	rows, err := s.db.Query(
		`SELECT id, medication_id, user_id, taken_at, status FROM medication_logs
		 WHERE user_id = $1 AND taken_at >= $2 AND taken_at <= $3 ORDER BY taken_at ASC`,
		userID, from, to)
	if err != nil {
		slog.Error("PostgresStore ListMedicationLogs query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query medication logs: %w", err)
	}
	defer rows.Close()

	var logs []models.MedicationLog
	for rows.Next() {
		l, err := scanMedicationLog(rows)
		if err != nil {
			slog.Error("PostgresStore ListMedicationLogs scan failed", "error", err)
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListMedicationLogs rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate medication log rows: %w", err)
	}
	slog.Debug("PostgresStore ListMedicationLogs succeeded", "userID", userID, "count", len(logs))
	return logs, nil
}

// ListRecentMedicationLogs retrieves the most recent intake records for one
// medication, newest first.
func (s *PostgresStore) ListRecentMedicationLogs(medicationID string, limit int) ([]models.MedicationLog, error) {
	rows, err := s.db.Query(
		`SELECT id, medication_id, user_id, taken_at, status FROM medication_logs
		 WHERE medication_id = $1 ORDER BY taken_at DESC LIMIT $2`,
		medicationID, limit)
	if err != nil {
		slog.Error("PostgresStore ListRecentMedicationLogs query failed", "error", err, "medicationID", medicationID)
		return nil, fmt.Errorf("failed to query recent medication logs: %w", err)
	}
	defer rows.Close()

	var logs []models.MedicationLog
	for rows.Next() {
		l, err := scanMedicationLog(rows)
		if err != nil {
			slog.Error("PostgresStore ListRecentMedicationLogs scan failed", "error", err)
			return nil, err
		}
		logs = append(logs, l)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListRecentMedicationLogs rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate medication log rows: %w", err)
	}
	return logs, nil
}

// SaveChatMessage stores one conversation turn.
func (s *PostgresStore) SaveChatMessage(msg models.ChatMessage) error {
	if msg.ID == "" {
		msg.ID = uuid.NewString()
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now()
	}
	_, err := s.db.Exec(
		`INSERT INTO chat_messages (id, user_id, role, content, chat_type, created_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		msg.ID, msg.UserID, string(msg.Role), msg.Content, string(msg.Channel), msg.CreatedAt)
	if err != nil {
		slog.Error("PostgresStore SaveChatMessage failed", "error", err, "userID", msg.UserID, "role", msg.Role)
		return fmt.Errorf("failed to save chat message: %w", err)
	}
	slog.Debug("PostgresStore SaveChatMessage succeeded", "userID", msg.UserID, "role", msg.Role, "channel", msg.Channel)
	return nil
}

// ListChatMessages retrieves the most recent messages for one user and
// channel in ascending chronological order.
func (s *PostgresStore) ListChatMessages(userID string, channel models.ChatChannel, limit int) ([]models.ChatMessage, error) {
	if limit <= 0 {
		limit = models.DefaultHistoryLimit
	}
	rows, err := s.db.Query(
		`SELECT id, user_id, role, content, chat_type, created_at FROM chat_messages
		 WHERE user_id = $1 AND chat_type = $2 ORDER BY created_at DESC LIMIT $3`,
		userID, string(channel), limit)
	if err != nil {
		slog.Error("PostgresStore ListChatMessages query failed", "error", err, "userID", userID)
		return nil, fmt.Errorf("failed to query chat messages: %w", err)
	}
	defer rows.Close()

	var messages []models.ChatMessage
	for rows.Next() {
		msg, err := scanChatMessage(rows)
		if err != nil {
			slog.Error("PostgresStore ListChatMessages scan failed", "error", err)
			return nil, err
		}
		messages = append(messages, msg)
	}
	if err := rows.Err(); err != nil {
		slog.Error("PostgresStore ListChatMessages rows iteration failed", "error", err)
		return nil, fmt.Errorf("failed to iterate chat message rows: %w", err)
	}

	// Query returns newest first; callers want chronological order.
	for i, j := 0, len(messages)-1; i < j; i, j = i+1, j-1 {
		messages[i], messages[j] = messages[j], messages[i]
	}
	slog.Debug("PostgresStore ListChatMessages succeeded", "userID", userID, "channel", channel, "count", len(messages))
	return messages, nil
}

// DeleteChatMessages removes all messages for one user and channel.
func (s *PostgresStore) DeleteChatMessages(userID string, channel models.ChatChannel) error {
	_, err := s.db.Exec(
		`DELETE FROM chat_messages WHERE user_id = $1 AND chat_type = $2`,
		userID, string(channel))
	if err != nil {
		slog.Error("PostgresStore DeleteChatMessages failed", "error", err, "userID", userID, "channel", channel)
		return fmt.Errorf("failed to delete chat messages: %w", err)
	}
	slog.Debug("PostgresStore DeleteChatMessages succeeded", "userID", userID, "channel", channel)
	return nil
}
