package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"unicode"

	"github.com/pelletier/go-toml/v2"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// Options is the daemon's flat, flag-and-TOML-bound configuration.
type Options struct {
	Config string `toml:"-"`

	// Netlink settings
	NetlinkRecvBufferSize int `toml:"netlink.recv_buffer_size" env:"NETLINK_RECV_BUFFER_SIZE"`

	// Hosted-mode mirrors cmld_is_hostedmode_active: when true the NIC
	// mover's settle-timer path for new physical interfaces is skipped.
	HostedMode bool `toml:"router.hosted_mode" env:"HOSTED_MODE"`

	// NIC settle timer
	SettlePeriodMs  int    `toml:"router.settle_period_ms" env:"SETTLE_PERIOD_MS"`
	SettleMaxTicks  int    `toml:"router.settle_max_ticks" env:"SETTLE_MAX_TICKS"`
	SysfsDevicesDir string `toml:"router.sysfs_devices_dir" env:"SYSFS_DEVICES_DIR"`

	// Logging settings
	LoggingLevel  string `toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `toml:"logging.format" env:"LOGGING_FORMAT"`
	LoggingUevent string `toml:"logging.uevent" env:"LOGGING_UEVENT"`
	LoggingNic    string `toml:"logging.nic" env:"LOGGING_NIC"`
	LoggingUsb    string `toml:"logging.usb" env:"LOGGING_USB"`
	LoggingInject string `toml:"logging.inject" env:"LOGGING_INJECT"`

	// Self-update settings
	UpdateRepository   string `toml:"update.repository" env:"UPDATE_REPOSITORY"`
	UpdatePrerelease   bool   `toml:"update.prerelease" env:"UPDATE_PRERELEASE"`
	UpdateCheckMinutes int    `toml:"update.check_minutes" env:"UPDATE_CHECK_MINUTES"`
	UpdateAutoApply    bool   `toml:"update.auto_apply" env:"UPDATE_AUTO_APPLY"`
}

// LoadConfig loads configuration with precedence: CLI flags > env vars >
// config file > struct defaults. If cmd is provided, flags explicitly set
// via CLI are never overwritten by file or env values.
func LoadConfig(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	changedFlags := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changedFlags[f.Name] = true
			}
		})
	}

	var configPath string
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Name == "Config" {
			configPath = v.Field(i).String()
			break
		}
	}

	if configPath != "" {
		if data, err := os.ReadFile(configPath); err == nil {
			var raw map[string]any
			if err := toml.Unmarshal(data, &raw); err != nil {
				return fmt.Errorf("parse config %s: %w", configPath, err)
			}
			for i := 0; i < v.NumField(); i++ {
				field := v.Field(i)
				fieldType := t.Field(i)
				flagName := fieldNameToFlag(fieldType.Name)
				if changedFlags[flagName] {
					continue
				}
				tomlPath := fieldType.Tag.Get("toml")
				if tomlPath == "" || tomlPath == "-" {
					continue
				}
				if value := getNestedValue(raw, tomlPath); value != nil {
					setFieldValue(field, value)
				}
			}
		}
	}

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)
		flagName := fieldNameToFlag(fieldType.Name)
		if changedFlags[flagName] {
			continue
		}
		envKey := fieldType.Tag.Get("env")
		if envKey == "" {
			continue
		}
		if envValue := os.Getenv("UEVENTD_" + envKey); envValue != "" {
			setFieldValueFromString(field, envValue)
		}
	}

	return nil
}

func fieldNameToFlag(fieldName string) string {
	var result []rune
	for i, r := range fieldName {
		if i > 0 && unicode.IsUpper(r) {
			result = append(result, '-')
		}
		result = append(result, unicode.ToLower(r))
	}
	return string(result)
}

func getNestedValue(data map[string]any, path string) any {
	parts := strings.Split(path, ".")
	current := data
	for i, part := range parts {
		if i == len(parts)-1 {
			return current[part]
		}
		next, ok := current[part].(map[string]any)
		if !ok {
			return nil
		}
		current = next
	}
	return nil
}

func setFieldValue(field reflect.Value, value any) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		if s, ok := value.(string); ok {
			field.SetString(s)
		}
	case reflect.Bool:
		if b, ok := value.(bool); ok {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, ok := value.(int64); ok {
			field.SetInt(i)
		} else if i, ok := value.(int); ok {
			field.SetInt(int64(i))
		}
	}
}

func setFieldValueFromString(field reflect.Value, value string) {
	if !field.CanSet() {
		return
	}
	switch field.Kind() {
	case reflect.String:
		field.SetString(value)
	case reflect.Bool:
		if b, err := strconv.ParseBool(value); err == nil {
			field.SetBool(b)
		}
	case reflect.Int:
		if i, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(i)
		}
	}
}
