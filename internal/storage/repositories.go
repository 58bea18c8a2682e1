package storage

// Repositories bundles all repositories together.
type Repositories struct {
	FAQs        *FAQRepository
	Escalations *EscalationRepository
	Settings    *SettingsRepository
}

// NewRepositories creates all repositories with the given database connection.
func NewRepositories(db DB, driver string, defaultThreshold float64) *Repositories {
	return &Repositories{
		FAQs:        NewFAQRepository(db, driver),
		Escalations: NewEscalationRepository(db, driver),
		Settings:    NewSettingsRepository(db, driver, defaultThreshold),
	}
}
