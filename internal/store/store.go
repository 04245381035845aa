// Package store provides storage backends for DietCoach.
//
// Two backends implement the Store interface: SQLiteStore for single-node
// deployments and PostgresStore for shared databases. The backend is selected
// from the DSN via functional options.
package store

import (
	"strings"
	"time"

	"github.com/BTreeMap/DietCoach/internal/models"
)

// Store is the persistence interface used by the coach pipeline, the summary
// service, and the reminder service.
type Store interface {
	// Profiles
	GetProfile(userID string) (*models.Profile, error)
	SaveProfile(profile models.Profile) error

	// Meals. Dates are YYYY-MM-DD strings; one meal row exists per
	// (user, date, meal type).
	GetMeal(userID, date string, mealType models.MealType) (*models.Meal, error)
	ListMeals(userID, date string) ([]models.Meal, error)
	ListMealsRange(userID, fromDate, toDate string) ([]models.Meal, error)
	SaveMeal(meal models.Meal) error
	DeleteMeal(id string) error

	// Weights. One entry per user and date, ascending by date.
	SaveWeight(userID string, entry models.WeightEntry) error
	ListWeights(userID, fromDate, toDate string) ([]models.WeightEntry, error)

	// Medications and intake logs.
	SaveMedication(med models.Medication) error
	GetMedication(id string) (*models.Medication, error)
	ListMedications(userID string, activeOnly bool) ([]models.Medication, error)
	ListAllActiveMedications() ([]models.Medication, error)
	SaveMedicationLog(log models.MedicationLog) error
	ListMedicationLogs(userID string, from, to time.Time) ([]models.MedicationLog, error)
	ListRecentMedicationLogs(medicationID string, limit int) ([]models.MedicationLog, error)

	// Chat history per user and channel. ListChatMessages returns the most
	// recent messages in ascending chronological order.
	SaveChatMessage(msg models.ChatMessage) error
	ListChatMessages(userID string, channel models.ChatChannel, limit int) ([]models.ChatMessage, error)
	DeleteChatMessages(userID string, channel models.ChatChannel) error

	Close() error
}

// Opts holds store configuration applied via functional options.
type Opts struct {
	DSN string
}

// Option configures the store during construction.
type Option func(*Opts)

// WithPostgresDSN sets the PostgreSQL connection string.
func WithPostgresDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// WithSQLiteDSN sets the SQLite database file path.
func WithSQLiteDSN(dsn string) Option {
	return func(o *Opts) { o.DSN = dsn }
}

// DetectDSNType reports which backend a DSN belongs to: "postgres" for
// connection URLs or key=value strings, "sqlite" for file paths.
func DetectDSNType(dsn string) string {
	if strings.HasPrefix(dsn, "postgres://") || strings.HasPrefix(dsn, "postgresql://") || strings.Contains(dsn, "host=") {
		return "postgres"
	}
	return "sqlite"
}

// NewStore creates the backend matching the configured DSN.
func NewStore(opts ...Option) (Store, error) {
	var cfg Opts
	for _, opt := range opts {
		opt(&cfg)
	}
	if DetectDSNType(cfg.DSN) == "postgres" {
		return NewPostgresStore(opts...)
	}
	return NewSQLiteStore(opts...)
}
