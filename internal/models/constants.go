package models

// setup defaults and bounds
const (
	DefaultRole          = "Software Engineer"
	DefaultQuestionCount = 3
	DefaultTimeLimit     = 120
	DefaultPressure      = 50
	DefaultFocus         = 50

	MinQuestionCount = 1
	MaxQuestionCount = 10
	MinTimeLimit     = 30
	MaxTimeLimit     = 300

	// prompt contract, not enforced on stored records
	MaxMistakes = 5
)

// contains all valid auth form modes (in lowercase)
var ValidAuthModes = map[string]bool{
	"login":    true,
	"register": true,
}

func ValidAuthModesList() []string {
	return []string{"login", "register"}
}
