package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/BurntSushi/toml"
	"golang.org/x/term"
)

const baseCredPath = "newsbrief/creds.toml"

// DefaultGeminiModel is used when the credentials file does not name one.
const DefaultGeminiModel = "gemini-2.0-flash"

// Credentials holds all application credentials
type Credentials struct {
	Gemini GeminiCredentials `toml:"gemini"`
}

// GeminiCredentials holds Google Gemini API credentials
type GeminiCredentials struct {
	APIKey string `toml:"api_key"`
	Model  string `toml:"model"` // e.g., "gemini-2.0-flash"
}

// IsValid checks if Gemini credentials are fully populated
func (gc GeminiCredentials) IsValid() bool {
	return gc.APIKey != "" && gc.Model != ""
}

// ReadCredentials reads credentials from the specified path
func ReadCredentials(path string) (Credentials, error) {
	var creds Credentials

	data, err := os.ReadFile(path)
	if err != nil {
		return creds, err
	}

	if _, err := toml.Decode(string(data), &creds); err != nil {
		return creds, fmt.Errorf("failed to decode credentials at %s: %w", path, err)
	}

	return creds, nil
}

// WriteCredentials writes credentials to the specified path
func WriteCredentials(path string, creds Credentials) error {
	blob, err := toml.Marshal(creds)
	if err != nil {
		return fmt.Errorf("failed to encode credentials: %w", err)
	}

	basePath := filepath.Dir(path)
	if err := os.MkdirAll(basePath, 0755); err != nil {
		return fmt.Errorf("failed to create credentials directory at '%s': %w", basePath, err)
	}

	// Write with restrictive permissions (only owner can read/write)
	if err := os.WriteFile(path, blob, 0600); err != nil {
		return fmt.Errorf("failed to write credentials file at '%s': %w", path, err)
	}

	return nil
}

// DefaultCredentialsPath returns the default path for credentials file
func DefaultCredentialsPath() string {
	var xdgHome = os.Getenv("XDG_CONFIG_HOME")
	if xdgHome != "" {
		return filepath.Join(xdgHome, baseCredPath)
	}

	var home = os.Getenv("HOME")
	if home != "" {
		return filepath.Join(home, ".config", baseCredPath)
	}

	panic("unable to determine credentials file path")
}

// PromptGeminiCredentials prompts the user for a Gemini API key
func PromptGeminiCredentials() (GeminiCredentials, error) {
	creds := GeminiCredentials{Model: DefaultGeminiModel}

	fmt.Println("Gemini credentials not found. To get an API key:")
	fmt.Println("  1. Go to https://aistudio.google.com/apikey")
	fmt.Println("  2. Create a new API key")
	fmt.Println()

	fmt.Print("Enter Gemini API key: ")
	byteKey, err := term.ReadPassword(int(syscall.Stdin))
	if err != nil {
		return creds, fmt.Errorf("failed to read API key: %w", err)
	}
	fmt.Println() // Add newline after password input
	creds.APIKey = strings.TrimSpace(string(byteKey))

	if !creds.IsValid() {
		return creds, fmt.Errorf("API key is required")
	}

	return creds, nil
}

// LoadOrPromptGeminiCredentials loads Gemini credentials from the file,
// falling back to the GEMINI_API_KEY/GOOGLE_API_KEY environment
// variables, and finally to an interactive prompt.
func LoadOrPromptGeminiCredentials(credPath string) (GeminiCredentials, error) {
	// Try to load existing credentials
	creds, err := ReadCredentials(credPath)
	if err == nil && creds.Gemini.APIKey != "" {
		if creds.Gemini.Model == "" {
			creds.Gemini.Model = DefaultGeminiModel
		}
		return creds.Gemini, nil
	}

	for _, name := range []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"} {
		if key := os.Getenv(name); key != "" {
			return GeminiCredentials{APIKey: key, Model: DefaultGeminiModel}, nil
		}
	}

	if !term.IsTerminal(int(syscall.Stdin)) {
		return GeminiCredentials{}, fmt.Errorf(
			"gemini API key not configured: set GEMINI_API_KEY or add api_key to %s", credPath)
	}

	geminiCreds, err := PromptGeminiCredentials()
	if err != nil {
		return GeminiCredentials{}, err
	}

	// Save credentials
	creds.Gemini = geminiCreds
	if err := WriteCredentials(credPath, creds); err != nil {
		return geminiCreds, fmt.Errorf("failed to save credentials: %w", err)
	}

	fmt.Printf("Credentials saved to %s\n", credPath)
	fmt.Println()

	return geminiCreds, nil
}
