package tui

import (
	"fmt"
	"os"

	"github.com/charmbracelet/huh"
)

// Choice is a labelled option of a selection prompt.
type Choice[T comparable] struct {
	Label string
	Value T
}

// Credentials are the fields of the login form.
type Credentials struct {
	Identifier string
	Password   string
}

// PromptForCredentials displays the login form. The identifier may be an
// email address or a matricule; the password is never echoed.
func PromptForCredentials(defaultIdentifier string) (Credentials, error) {
	creds := Credentials{Identifier: defaultIdentifier}

	form := huh.NewForm(huh.NewGroup(
		huh.NewInput().
			Title("Email or matricule").
			Value(&creds.Identifier).
			Validate(required("identifier")),
		huh.NewInput().
			Title("Password").
			EchoMode(huh.EchoModePassword).
			Value(&creds.Password).
			Validate(required("password")),
	))

	if err := form.Run(); err != nil {
		return Credentials{}, fmt.Errorf("prompt failed: %w", err)
	}

	return creds, nil
}

// PromptForChoice displays a selection prompt and returns the chosen value.
func PromptForChoice[T comparable](message string, choices []Choice[T]) (T, error) {
	var selected T
	if len(choices) == 0 {
		return selected, fmt.Errorf("no options provided")
	}

	options := make([]huh.Option[T], len(choices))
	for i, c := range choices {
		options[i] = huh.NewOption(c.Label, c.Value)
	}

	field := huh.NewSelect[T]().
		Title(message).
		Options(options...).
		Value(&selected)

	if err := huh.NewForm(huh.NewGroup(field)).Run(); err != nil {
		return selected, fmt.Errorf("prompt failed: %w", err)
	}

	return selected, nil
}

// PromptForConfirmation displays a yes/no confirmation prompt
func PromptForConfirmation(message string, defaultValue bool) (bool, error) {
	confirmed := defaultValue

	confirm := huh.NewConfirm().
		Title(message).
		Value(&confirmed)

	if err := huh.NewForm(huh.NewGroup(confirm)).Run(); err != nil {
		return false, fmt.Errorf("prompt failed: %w", err)
	}

	return confirmed, nil
}

func required(field string) func(string) error {
	return func(s string) error {
		if s == "" {
			return fmt.Errorf("%s is required", field)
		}
		return nil
	}
}

// IsInteractive returns true if stdin is a terminal (not piped)
func IsInteractive() bool {
	return isTerminal(os.Stdin)
}

// isTerminal reports whether f is attached to a character device.
func isTerminal(f *os.File) bool {
	fileInfo, err := f.Stat()
	if err != nil {
		return false
	}
	return (fileInfo.Mode() & os.ModeCharDevice) != 0
}

// StderrIsTerminal reports whether notifications can use terminal effects.
func StderrIsTerminal() bool {
	return isTerminal(os.Stderr)
}

// ShouldPrompt returns true if prompts should be shown based on environment
// Prompts are disabled in CI environments or when stdin is not a terminal
func ShouldPrompt() bool {
	ciEnvVars := []string{
		"CI",
		"GITHUB_ACTIONS",
		"GITLAB_CI",
		"JENKINS_URL",
		"BUILDKITE",
		"SCHOOLCTL_NO_PROMPT",
	}

	for _, envVar := range ciEnvVars {
		if os.Getenv(envVar) != "" {
			return false
		}
	}

	return IsInteractive()
}
