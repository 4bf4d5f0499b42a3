package config

import (
	"errors"
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"
)

// Load reads configuration from environment variables.
// It applies defaults for unset values and validates the result.
// Returns an error if required values are missing or validation fails.
func Load() (*Config, error) {
	cfg := &Config{}

	if err := loadStruct(reflect.ValueOf(cfg).Elem()); err != nil {
		return nil, fmt.Errorf("config load: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation: %w", err)
	}

	return cfg, nil
}

var durationType = reflect.TypeOf(time.Duration(0))

// envTag is the parsed form of a field's env/envAlt/default/required tags.
type envTag struct {
	names    []string // primary first
	fallback string
	required bool
}

func parseEnvTag(f reflect.StructField) (envTag, bool) {
	name := f.Tag.Get("env")
	if name == "" {
		return envTag{}, false
	}
	tag := envTag{
		names:    []string{name},
		fallback: f.Tag.Get("default"),
		required: f.Tag.Get("required") == "true",
	}
	if alt := f.Tag.Get("envAlt"); alt != "" {
		tag.names = append(tag.names, alt)
	}
	return tag, true
}

// resolve returns the first non-empty variable, then the default.
func (t envTag) resolve() (string, error) {
	for _, name := range t.names {
		if v := os.Getenv(name); v != "" {
			return v, nil
		}
	}
	if t.required {
		return "", fmt.Errorf("required environment variable %s is not set", t.names[0])
	}
	return t.fallback, nil
}

// loadStruct populates exported fields of v, recursing into section structs.
func loadStruct(v reflect.Value) error {
	t := v.Type()

	for i := 0; i < t.NumField(); i++ {
		field, fv := t.Field(i), v.Field(i)
		if !fv.CanSet() {
			continue
		}

		if field.Type.Kind() == reflect.Struct {
			if err := loadStruct(fv); err != nil {
				return err
			}
			continue
		}

		tag, ok := parseEnvTag(field)
		if !ok {
			continue
		}

		raw, err := tag.resolve()
		if err != nil {
			return err
		}
		if raw == "" {
			continue
		}

		if err := setField(fv, raw); err != nil {
			return fmt.Errorf("invalid value for %s=%q: %w", tag.names[0], raw, err)
		}
	}

	return nil
}

// setField assigns raw to field according to the field's type.
func setField(field reflect.Value, raw string) error {
	if field.Type() == durationType {
		d, err := time.ParseDuration(raw)
		if err != nil {
			return fmt.Errorf("invalid duration: %w", err)
		}
		field.SetInt(int64(d))
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(raw)

	case reflect.Int, reflect.Int32, reflect.Int64:
		n, err := strconv.ParseInt(raw, 10, field.Type().Bits())
		if err != nil {
			return fmt.Errorf("invalid integer: %w", err)
		}
		field.SetInt(n)

	case reflect.Bool:
		b, err := strconv.ParseBool(raw)
		if err != nil {
			return fmt.Errorf("invalid boolean: %w", err)
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() != reflect.String {
			return fmt.Errorf("unsupported slice type: %s", field.Type().Elem().Kind())
		}
		field.Set(reflect.ValueOf(splitList(raw)))

	default:
		return fmt.Errorf("unsupported field type: %s", field.Kind())
	}

	return nil
}

// splitList splits a comma-separated value, dropping blanks.
func splitList(raw string) []string {
	parts := strings.Split(raw, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}

// MinSessionSecretLen is the shortest accepted SESSION_SECRET.
const MinSessionSecretLen = 32

// problems collects validation failures across sections.
type problems []string

func (p *problems) addf(format string, args ...any) {
	*p = append(*p, fmt.Sprintf(format, args...))
}

func (p *problems) check(ok bool, format string, args ...any) {
	if !ok {
		p.addf(format, args...)
	}
}

// Validate checks that the configuration is valid.
// Returns an error describing all validation failures.
func (c *Config) Validate() error {
	var p problems

	c.Database.validate(&p)
	c.Server.validate(&p)
	c.Upload.validate(&p)
	c.Rate.validate(&p)
	c.Security.validate(&p)
	c.Auth.validate(&p)
	c.Storage.validate(&p)

	p.check(c.Redis.DB >= 0, "REDIS_DB must be non-negative")
	p.check(len(c.Events.Brokers) == 0 || c.Events.Topic != "", "KAFKA_TOPIC is required when KAFKA_BROKERS is set")

	c.Logging.validate(&p)

	if len(p) > 0 {
		return errors.New("validation failed:\n  - " + strings.Join(p, "\n  - "))
	}
	return nil
}

func (d *DatabaseConfig) validate(p *problems) {
	p.check(d.URL != "", "DATABASE_URL is required")
	p.check(d.MaxConns >= d.MinConns, "DB_MAX_CONNS (%d) must be >= DB_MIN_CONNS (%d)", d.MaxConns, d.MinConns)
	p.check(d.MaxConns > 0, "DB_MAX_CONNS must be positive")
	p.check(d.MinConns >= 0, "DB_MIN_CONNS must be non-negative")
}

func (s *ServerConfig) validate(p *problems) {
	p.check(s.Port > 0 && s.Port <= 65535, "SERVER_PORT (%d) must be 1-65535", s.Port)
	p.check(s.ReadTimeout >= 0, "SERVER_READ_TIMEOUT must be non-negative")
	p.check(s.ShutdownTimeout > 0, "SERVER_SHUTDOWN_TIMEOUT must be positive")
	p.check(s.RequestTimeout > 0, "SERVER_REQUEST_TIMEOUT must be positive")
}

func (u *UploadConfig) validate(p *problems) {
	p.check(u.MaxFileSize > 0, "UPLOAD_MAX_FILE_SIZE must be positive")
	p.check(u.MaxConcurrent > 0, "UPLOAD_MAX_CONCURRENT must be positive")
	p.check(u.MaxWaitTime > 0, "UPLOAD_MAX_WAIT_TIME must be positive")
}

func (r *RateLimitConfig) validate(p *problems) {
	if !r.Enabled {
		return
	}
	p.check(r.RequestsPerMinute > 0, "RATE_LIMIT_REQUESTS_PER_MINUTE must be positive when rate limiting is enabled")
	p.check(r.UploadLimit > 0, "RATE_LIMIT_UPLOAD must be positive when rate limiting is enabled")
}

func (s *SecurityConfig) validate(p *problems) {
	p.check(len(s.SessionSecret) >= MinSessionSecretLen, "SESSION_SECRET must be at least %d bytes", MinSessionSecretLen)
	p.check(s.SessionTTL > 0, "SESSION_TTL must be positive")
}

func (a *AuthConfig) validate(p *problems) {
	p.check(a.GoogleClientID != "" && a.GoogleClientSecret != "", "GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET are required")
	p.check(a.RedirectURL != "", "GOOGLE_REDIRECT_URL is required")
}

func (s *StorageConfig) validate(p *problems) {
	switch strings.ToLower(s.Driver) {
	case "minio":
		p.check(s.Endpoint != "", "STORAGE_ENDPOINT is required for the minio driver")
		p.check(s.AccessKey != "" && s.SecretKey != "", "STORAGE_ACCESS_KEY and STORAGE_SECRET_KEY are required for the minio driver")
		p.check(s.Bucket != "", "STORAGE_BUCKET is required for the minio driver")
	case "memory":
	default:
		p.addf("STORAGE_DRIVER (%q) must be one of: minio, memory", s.Driver)
	}
}

func (l *LoggingConfig) validate(p *problems) {
	switch strings.ToLower(l.Level) {
	case "debug", "info", "warn", "error":
	default:
		p.addf("LOG_LEVEL (%q) must be one of: debug, info, warn, error", l.Level)
	}
	switch strings.ToLower(l.Format) {
	case "text", "json":
	default:
		p.addf("LOG_FORMAT (%q) must be one of: text, json", l.Format)
	}
}

// String returns a safe string representation of the config for logging.
// Secrets and database URLs are masked.
func (c *Config) String() string {
	sections := []string{
		fmt.Sprintf("Server: {Addr: %q}", c.Server.Addr()),
		fmt.Sprintf("Database: {URL: [MASKED], MaxConns: %d, MinConns: %d, AutoMigrate: %v}",
			c.Database.MaxConns, c.Database.MinConns, c.Database.AutoMigrate),
		fmt.Sprintf("Upload: {MaxFileSize: %d, MaxConcurrent: %d, SkipHeader: %v}",
			c.Upload.MaxFileSize, c.Upload.MaxConcurrent, c.Upload.SkipHeader),
		fmt.Sprintf("Rate: {Enabled: %v, RequestsPerMinute: %d, UploadLimit: %d}",
			c.Rate.Enabled, c.Rate.RequestsPerMinute, c.Rate.UploadLimit),
		fmt.Sprintf("Security: {SessionSecret: [MASKED], SessionTTL: %s, Admins: %d}",
			c.Security.SessionTTL, len(c.Security.AdminEmails)),
		fmt.Sprintf("Auth: {GoogleClientID: %q, GoogleClientSecret: [MASKED]}", c.Auth.GoogleClientID),
		fmt.Sprintf("Storage: {Driver: %q, Endpoint: %q, Bucket: %q, SecretKey: [MASKED]}",
			c.Storage.Driver, c.Storage.Endpoint, c.Storage.Bucket),
		fmt.Sprintf("Redis: {Addr: %q, Password: [MASKED]}", c.Redis.Addr),
		fmt.Sprintf("Events: {Brokers: %d, Topic: %q}", len(c.Events.Brokers), c.Events.Topic),
		fmt.Sprintf("Logging: {Level: %q, Format: %q}", c.Logging.Level, c.Logging.Format),
	}
	return "Config{" + strings.Join(sections, ", ") + "}"
}
