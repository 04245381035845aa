package store

import (
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/BTreeMap/DietCoach/internal/models"
)

// nilIfEmpty returns nil if s is empty, otherwise returns s.
// Used for nullable database columns.
func nilIfEmpty(s string) interface{} {
	if s == "" {
		return nil
	}
	return s
}

// nilIfZero returns nil if f is zero, otherwise returns f.
// Used for nullable numeric columns where zero means unset.
func nilIfZero(f float64) interface{} {
	if f == 0 {
		return nil
	}
	return f
}

// marshalJSONColumn serializes a slice for storage in a TEXT column, keeping
// empty slices as "[]" so the column is never NULL.
func marshalJSONColumn(v interface{}) (string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return "", err
	}
	if string(data) == "null" {
		return "[]", nil
	}
	return string(data), nil
}

// scanMeal scans a Meal from sql.Rows.
func scanMeal(rows *sql.Rows) (models.Meal, error) {
	var m models.Meal
	var mealType, itemsJSON string
	err := rows.Scan(&m.ID, &m.UserID, &m.Date, &mealType, &itemsJSON, &m.TotalCalories, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, fmt.Errorf("scan meal failed: %w", err)
	}
	m.MealType = models.MealType(mealType)
	if itemsJSON != "" {
		if err := json.Unmarshal([]byte(itemsJSON), &m.Items); err != nil {
			return m, fmt.Errorf("unmarshal meal items failed: %w", err)
		}
	}
	return m, nil
}

// scanMealRow scans a Meal from a single sql.Row.
func scanMealRow(row *sql.Row) (models.Meal, error) {
	var m models.Meal
	var mealType, itemsJSON string
	err := row.Scan(&m.ID, &m.UserID, &m.Date, &mealType, &itemsJSON, &m.TotalCalories, &m.CreatedAt, &m.UpdatedAt)
	if err != nil {
		return m, err
	}
	m.MealType = models.MealType(mealType)
	if itemsJSON != "" {
		if err := json.Unmarshal([]byte(itemsJSON), &m.Items); err != nil {
			return m, fmt.Errorf("unmarshal meal items failed: %w", err)
		}
	}
	return m, nil
}

// scanMedication scans a Medication from sql.Rows.
func scanMedication(rows *sql.Rows) (models.Medication, error) {
	var med models.Medication
	var frequency, timesJSON string
	var dosage sql.NullString
	err := rows.Scan(&med.ID, &med.UserID, &med.Name, &dosage, &frequency, &timesJSON, &med.Active, &med.CreatedAt)
	if err != nil {
		return med, fmt.Errorf("scan medication failed: %w", err)
	}
	med.Dosage = dosage.String
	med.Frequency = models.MedicationFrequency(frequency)
	if timesJSON != "" {
		if err := json.Unmarshal([]byte(timesJSON), &med.TimesOfDay); err != nil {
			return med, fmt.Errorf("unmarshal medication times failed: %w", err)
		}
	}
	return med, nil
}

// scanMedicationRow scans a Medication from a single sql.Row.
func scanMedicationRow(row *sql.Row) (models.Medication, error) {
	var med models.Medication
	var frequency, timesJSON string
	var dosage sql.NullString
	err := row.Scan(&med.ID, &med.UserID, &med.Name, &dosage, &frequency, &timesJSON, &med.Active, &med.CreatedAt)
	if err != nil {
		return med, err
	}
	med.Dosage = dosage.String
	med.Frequency = models.MedicationFrequency(frequency)
	if timesJSON != "" {
		if err := json.Unmarshal([]byte(timesJSON), &med.TimesOfDay); err != nil {
			return med, fmt.Errorf("unmarshal medication times failed: %w", err)
		}
	}
	return med, nil
}

// scanChatMessage scans a ChatMessage from sql.Rows.
func scanChatMessage(rows *sql.Rows) (models.ChatMessage, error) {
	var msg models.ChatMessage
	var role, channel string
	err := rows.Scan(&msg.ID, &msg.UserID, &role, &msg.Content, &channel, &msg.CreatedAt)
	if err != nil {
		return msg, fmt.Errorf("scan chat message failed: %w", err)
	}
	msg.Role = models.ChatRole(role)
	msg.Channel = models.ChatChannel(channel)
	return msg, nil
}

// scanMedicationLog scans a MedicationLog from sql.Rows.
func scanMedicationLog(rows *sql.Rows) (models.MedicationLog, error) {
	var log models.MedicationLog
	var status string
	err := rows.Scan(&log.ID, &log.MedicationID, &log.UserID, &log.TakenAt, &status)
	if err != nil {
		return log, fmt.Errorf("scan medication log failed: %w", err)
	}
	log.Status = models.MedicationLogStatus(status)
	return log, nil
}
