package notify

import (
	"bufio"
	"fmt"
	"os"
	"strings"
)

// Credentials are the Telegram bot token and chat ID used for operator
// notifications.
type Credentials struct {
	Token  string
	ChatID string
}

// Valid reports whether both keys are present.
func (c Credentials) Valid() bool {
	return c.Token != "" && c.ChatID != ""
}

// LoadCredentials parses a KEY=VALUE env file. Blank lines and lines
// starting with # are ignored; unknown keys are ignored. A missing file is
// not an error: it returns zero Credentials, which disables notification.
func LoadCredentials(path string) (Credentials, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Credentials{}, nil
		}
		return Credentials{}, fmt.Errorf("opening credentials file: %w", err)
	}
	defer f.Close()

	var creds Credentials
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		key, value, found := strings.Cut(line, "=")
		if !found {
			continue
		}
		switch strings.TrimSpace(key) {
		case "TG_TOKEN":
			creds.Token = strings.TrimSpace(value)
		case "TG_CHAT_ID":
			creds.ChatID = strings.TrimSpace(value)
		}
	}
	if err := scanner.Err(); err != nil {
		return Credentials{}, fmt.Errorf("reading credentials file: %w", err)
	}
	return creds, nil
}
