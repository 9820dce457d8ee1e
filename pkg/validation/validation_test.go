package validation

import (
	"testing"
)

func TestValidateHost(t *testing.T) {
	tests := []struct {
		host    string
		wantErr bool
	}{
		{"icecast.example.org", false},
		{"localhost", false},
		{"10.0.0.5", false},
		{"::1", false},
		{"[::1]", false},
		{"", true},
		{"   ", true},
		{"http://icecast", true},
		{"icecast:8000", true},
		{"-bad.example", true},
	}

	for _, tt := range tests {
		t.Run(tt.host, func(t *testing.T) {
			err := ValidateHost(tt.host, "icecast.host")
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateHost(%q) error = %v, wantErr %v", tt.host, err, tt.wantErr)
			}
		})
	}
}

func TestValidatePort(t *testing.T) {
	tests := []struct {
		port    int
		wantErr bool
	}{
		{1, false},
		{8000, false},
		{65535, false},
		{0, true},
		{-1, true},
		{65536, true},
	}

	for _, tt := range tests {
		err := ValidatePort(tt.port, "port")
		if (err != nil) != tt.wantErr {
			t.Errorf("ValidatePort(%d) error = %v, wantErr %v", tt.port, err, tt.wantErr)
		}
	}
}

func TestValidateScheme(t *testing.T) {
	if err := ValidateScheme("http", "scheme"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateScheme("https", "scheme"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateScheme("ftp", "scheme"); err == nil {
		t.Error("expected error for ftp")
	}
}

func TestValidateURL(t *testing.T) {
	tests := []struct {
		url     string
		wantErr bool
	}{
		{"http://localhost:14268/api/traces", false},
		{"https://jaeger.example.com/api/traces", false},
		{"", true},
		{"ws://example.com", true},
		{"http://", true},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			err := ValidateURL(tt.url, "tracing.jaeger_url")
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateURL(%q) error = %v, wantErr %v", tt.url, err, tt.wantErr)
			}
		})
	}
}

func TestValidateNonEmptyString(t *testing.T) {
	if err := ValidateNonEmptyString("radio", "user"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateNonEmptyString("  ", "user"); err == nil {
		t.Error("expected error for blank string")
	}
}

func TestValidateOneOf(t *testing.T) {
	if err := ValidateOneOf("exit", "collector.on_error", "exit", "continue"); err != nil {
		t.Errorf("unexpected error: %v", err)
	}
	if err := ValidateOneOf("retry", "collector.on_error", "exit", "continue"); err == nil {
		t.Error("expected error for unknown option")
	}
}
