package types

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"testing"
)

const testSecret = "postgres://alerts:hunter2@db/alerts"

func TestSecretString_FormattingDoesNotLeak(t *testing.T) {
	s := SecretString(testSecret)

	for _, verb := range []string{"%s", "%v", "%+v"} {
		result := fmt.Sprintf(verb, s)
		if strings.Contains(result, testSecret) {
			t.Errorf("fmt.Sprintf(%q) leaked the raw secret: %s", verb, result)
		}
		if result != redactedPlaceholder {
			t.Errorf("fmt.Sprintf(%q) = %q, want %q", verb, result, redactedPlaceholder)
		}
	}
}

func TestSecretString_MarshalJSON_InStruct(t *testing.T) {
	type supportConfig struct {
		APIKey SecretString `json:"api_key"`
		URL    string       `json:"url"`
	}

	data, err := json.Marshal(supportConfig{APIKey: SecretString(testSecret), URL: "https://support.example"})
	if err != nil {
		t.Fatalf("json.Marshal returned error: %v", err)
	}

	result := string(data)
	if strings.Contains(result, testSecret) {
		t.Errorf("json.Marshal of struct leaked the raw secret: %s", result)
	}
	if !strings.Contains(result, `"api_key":"`+redactedPlaceholder+`"`) {
		t.Errorf("json.Marshal of struct did not contain redacted placeholder: %s", result)
	}
}

func TestSecretString_SlogDoesNotLeak(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))

	logger.Info("config loaded", "database_url", SecretString(testSecret))

	if strings.Contains(buf.String(), testSecret) {
		t.Errorf("slog output leaked the raw secret: %s", buf.String())
	}
	if !strings.Contains(buf.String(), redactedPlaceholder) {
		t.Errorf("slog output missing placeholder: %s", buf.String())
	}
}

func TestSecretString_Unmask(t *testing.T) {
	s := SecretString(testSecret)

	if s.Unmask() != testSecret {
		t.Errorf("Unmask() = %q, want %q", s.Unmask(), testSecret)
	}
	if SecretString("").Unmask() != "" {
		t.Errorf("Unmask() on empty SecretString should be empty")
	}
}
