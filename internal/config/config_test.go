package config

import (
	"os"
	"reflect"
	"testing"
)

func TestLoadConfigFromTOML(t *testing.T) {
	tomlContent := `
[netlink]
recv_buffer_size = 524288

[router]
hosted_mode = true
settle_period_ms = 250
settle_max_ticks = 10

[logging]
level = "debug"
format = "json"
`

	tmpFile, err := os.CreateTemp("", "ueventd_config_*.toml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())

	if _, writeErr := tmpFile.WriteString(tomlContent); writeErr != nil {
		t.Fatalf("failed to write temp file: %v", writeErr)
	}
	tmpFile.Close()

	opts := &Options{Config: tmpFile.Name()}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.NetlinkRecvBufferSize != 524288 {
		t.Errorf("NetlinkRecvBufferSize = %d, want 524288", opts.NetlinkRecvBufferSize)
	}
	if !opts.HostedMode {
		t.Error("HostedMode = false, want true")
	}
	if opts.SettlePeriodMs != 250 {
		t.Errorf("SettlePeriodMs = %d, want 250", opts.SettlePeriodMs)
	}
	if opts.SettleMaxTicks != 10 {
		t.Errorf("SettleMaxTicks = %d, want 10", opts.SettleMaxTicks)
	}
	if opts.LoggingLevel != "debug" {
		t.Errorf("LoggingLevel = %q, want debug", opts.LoggingLevel)
	}
	if opts.LoggingFormat != "json" {
		t.Errorf("LoggingFormat = %q, want json", opts.LoggingFormat)
	}
}

func TestLoadConfigFromEnvVars(t *testing.T) {
	os.Setenv("UEVENTD_HOSTED_MODE", "true")
	os.Setenv("UEVENTD_LOGGING_LEVEL", "warn")
	defer func() {
		os.Unsetenv("UEVENTD_HOSTED_MODE")
		os.Unsetenv("UEVENTD_LOGGING_LEVEL")
	}()

	opts := &Options{}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if !opts.HostedMode {
		t.Error("HostedMode = false, want true (from env)")
	}
	if opts.LoggingLevel != "warn" {
		t.Errorf("LoggingLevel = %q, want warn (from env)", opts.LoggingLevel)
	}
}

func TestLoadConfigEnvOverridesToml(t *testing.T) {
	tomlContent := `
[logging]
level = "debug"
`
	tmpFile, err := os.CreateTemp("", "ueventd_config_*.toml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	if _, writeErr := tmpFile.WriteString(tomlContent); writeErr != nil {
		t.Fatalf("failed to write temp file: %v", writeErr)
	}
	tmpFile.Close()

	os.Setenv("UEVENTD_LOGGING_LEVEL", "error")
	defer os.Unsetenv("UEVENTD_LOGGING_LEVEL")

	opts := &Options{Config: tmpFile.Name()}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig failed: %v", err)
	}

	if opts.LoggingLevel != "error" {
		t.Errorf("LoggingLevel = %q, want error (env overrides toml)", opts.LoggingLevel)
	}
}

func TestLoadConfigMissingFile(t *testing.T) {
	opts := &Options{Config: "nonexistent_file.toml"}
	if err := LoadConfig(opts, nil); err != nil {
		t.Fatalf("LoadConfig should not fail for missing file: %v", err)
	}
}

func TestLoadConfigInvalidTOML(t *testing.T) {
	invalidToml := "[router\nnot valid toml\n"

	tmpFile, err := os.CreateTemp("", "ueventd_invalid_*.toml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	defer os.Remove(tmpFile.Name())
	if _, writeErr := tmpFile.WriteString(invalidToml); writeErr != nil {
		t.Fatalf("failed to write temp file: %v", writeErr)
	}
	tmpFile.Close()

	opts := &Options{Config: tmpFile.Name()}
	if err := LoadConfig(opts, nil); err == nil {
		t.Fatal("LoadConfig should fail for invalid TOML")
	}
}

func TestGetNestedValue(t *testing.T) {
	data := map[string]any{
		"router": map[string]any{
			"hosted_mode": true,
		},
		"logging": map[string]any{
			"level": "debug",
		},
	}

	tests := []struct {
		path     string
		expected any
	}{
		{"router.hosted_mode", true},
		{"logging.level", "debug"},
		{"nonexistent", nil},
		{"router.nonexistent", nil},
	}

	for _, tt := range tests {
		got := getNestedValue(data, tt.path)
		if got != tt.expected {
			t.Errorf("getNestedValue(%q) = %v, want %v", tt.path, got, tt.expected)
		}
	}
}

func TestSetFieldValueFromString(t *testing.T) {
	type testStruct struct {
		StringField string
		BoolField   bool
		IntField    int
	}

	s := &testStruct{}
	v := reflect.ValueOf(s).Elem()

	setFieldValueFromString(v.FieldByName("StringField"), "hello")
	if s.StringField != "hello" {
		t.Errorf("StringField = %q, want hello", s.StringField)
	}

	setFieldValueFromString(v.FieldByName("BoolField"), "true")
	if !s.BoolField {
		t.Error("BoolField = false, want true")
	}

	setFieldValueFromString(v.FieldByName("IntField"), "123")
	if s.IntField != 123 {
		t.Errorf("IntField = %d, want 123", s.IntField)
	}
}
