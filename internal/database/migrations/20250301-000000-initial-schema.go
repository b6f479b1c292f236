package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250301-000000",
		Description: "Initial schema",
		Up: []string{
			// Saved widgets - one row per client business profile.
			// user_id is a placeholder owner identity in single-operator
			// deployments (no multi-tenant auth).
			`CREATE TABLE IF NOT EXISTS widgets (
				id TEXT PRIMARY KEY,
				user_id TEXT NOT NULL,
				name TEXT NOT NULL,
				profile TEXT NOT NULL,
				created_at TEXT NOT NULL,
				updated_at TEXT NOT NULL
			)`,
			`CREATE INDEX IF NOT EXISTS idx_widgets_user_id ON widgets(user_id)`,
		},
	})
}
