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

	"github.com/smazurov/streamrelay/internal/logging"
)

// envPrefix namespaces environment overrides, e.g. STREAMRELAY_PORT.
const envPrefix = "STREAMRELAY_"

// Load fills opts with values in precedence order: CLI flags beat
// environment variables beat the TOML config file. Fields opt in via
// struct tags: `toml:"server.port"` maps a dotted file path, `env:"PORT"`
// maps an environment key. The field named Config holds the file path.
func Load(opts any, cmd *cobra.Command) error {
	v := reflect.ValueOf(opts).Elem()
	t := v.Type()

	changed := make(map[string]bool)
	if cmd != nil {
		cmd.Flags().VisitAll(func(f *pflag.Flag) {
			if f.Changed {
				changed[f.Name] = true
			}
		})
	}

	var path string
	for i := 0; i < v.NumField(); i++ {
		if t.Field(i).Name == "Config" {
			path = v.Field(i).String()
			break
		}
	}

	if path != "" {
		if data, err := os.ReadFile(path); err == nil {
			var file map[string]any
			if err := toml.Unmarshal(data, &file); err != nil {
				return fmt.Errorf("parse config file %s: %w", path, err)
			}
			for i := 0; i < v.NumField(); i++ {
				ft := t.Field(i)
				if changed[flagName(ft.Name)] {
					continue
				}
				key := ft.Tag.Get("toml")
				if key == "" {
					continue
				}
				if value := lookupPath(file, key); value != nil {
					assign(v.Field(i), value)
				}
			}
		}
	}

	for i := 0; i < v.NumField(); i++ {
		ft := t.Field(i)
		if changed[flagName(ft.Name)] {
			continue
		}
		key := ft.Tag.Get("env")
		if key == "" {
			continue
		}
		if value := os.Getenv(envPrefix + key); value != "" {
			assignString(v.Field(i), value)
		}
	}

	return nil
}

// flagName derives the CLI flag for a struct field: MetricsPort
// becomes metrics-port.
func flagName(field string) string {
	var out []rune
	for i, r := range field {
		if i > 0 && unicode.IsUpper(r) {
			out = append(out, '-')
		}
		out = append(out, unicode.ToLower(r))
	}
	return string(out)
}

// lookupPath walks nested TOML tables along a dotted key.
func lookupPath(data map[string]any, path string) any {
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

func assign(field reflect.Value, value any) {
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
		switch n := value.(type) {
		case int64:
			field.SetInt(n)
		case int:
			field.SetInt(int64(n))
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		if arr, ok := value.([]any); ok {
			out := make([]string, 0, len(arr))
			for _, item := range arr {
				if s, ok := item.(string); ok {
					out = append(out, s)
				}
			}
			field.Set(reflect.ValueOf(out))
		}
	}
}

func assignString(field reflect.Value, value string) {
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
		if n, err := strconv.ParseInt(value, 10, 64); err == nil {
			field.SetInt(n)
		}
	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return
		}
		parts := strings.Split(value, ",")
		out := make([]string, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		field.Set(reflect.ValueOf(out))
	}
}

// LoadLogging extracts the [logging] table from the config file. Missing
// or unreadable files yield the defaults.
func LoadLogging(path string) logging.Config {
	cfg := logging.Config{
		Level:   "info",
		Format:  "text",
		Modules: make(map[string]string),
	}
	if path == "" {
		return cfg
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return cfg
	}

	var file struct {
		Logging map[string]string `toml:"logging"`
	}
	if err := toml.Unmarshal(data, &file); err != nil {
		return cfg
	}

	for key, value := range file.Logging {
		switch key {
		case "level":
			cfg.Level = value
		case "format":
			cfg.Format = value
		default:
			cfg.Modules[key] = value
		}
	}
	return cfg
}
