package model

// All lists every relational model for auto-migration.
func All() []any {
	return []any{
		&User{},
		&SystemPrompt{},
		&Conversation{},
		&Session{},
		&Message{},
		&Setting{},
	}
}
