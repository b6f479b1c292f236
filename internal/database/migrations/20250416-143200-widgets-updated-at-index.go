package migrations

func init() {
	Register(Migration{
		Timestamp:   "20250416-143200",
		Description: "Index widgets by update time for dashboard listing",
		Up: []string{
			`CREATE INDEX IF NOT EXISTS idx_widgets_updated_at ON widgets(updated_at DESC)`,
		},
	})
}
