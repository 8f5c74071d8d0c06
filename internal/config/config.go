package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

type ServerConfig struct {
	Port string `yaml:"port"`
	Mode string `yaml:"mode"`
}

// SMTPConfig describes the mail relay used by the contact endpoint.
type SMTPConfig struct {
	Host     string        `yaml:"host"`
	Port     int           `yaml:"port"`
	Secure   bool          `yaml:"secure"`
	User     string        `yaml:"user"`
	Pass     string        `yaml:"pass"`
	To       string        `yaml:"to"`
	FromName string        `yaml:"from_name"`
	Timeout  time.Duration `yaml:"timeout"`
}

// Recipient returns the configured inbox, falling back to the sender address.
func (s SMTPConfig) Recipient() string {
	if s.To != "" {
		return s.To
	}
	return s.User
}

type ContactConfig struct {
	EscapeHTML bool `yaml:"escape_html"`
}

type AdminConfig struct {
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	Secret   string `yaml:"secret"`
}

type DBConfig struct {
	Path string `yaml:"path"`
}

type Config struct {
	Server  ServerConfig  `yaml:"server"`
	SMTP    SMTPConfig    `yaml:"smtp"`
	Contact ContactConfig `yaml:"contact"`
	Admin   AdminConfig   `yaml:"admin"`
	DB      DBConfig      `yaml:"db"`
}

var ErrMissingCredentials = errors.New("SMTP credentials not configured")

// Default returns the configuration used when neither a file nor the
// environment says otherwise.
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: "8080", Mode: "release"},
		SMTP: SMTPConfig{
			Host:     "smtp.gmail.com",
			Port:     465,
			Secure:   true,
			FromName: "Portfolio Contact",
			Timeout:  15 * time.Second,
		},
		Contact: ContactConfig{EscapeHTML: true},
		DB:      DBConfig{Path: "portfolio.db"},
	}
}

// Load reads the YAML file at path (if it exists) over the defaults and then
// applies environment overrides.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case err == nil:
			if err := yaml.Unmarshal(data, cfg); err != nil {
				return nil, fmt.Errorf("failed to decode %s: %w", path, err)
			}
		case errors.Is(err, os.ErrNotExist):
		default:
			return nil, fmt.Errorf("failed to read %s: %w", path, err)
		}
	}

	if err := overrideFromEnv(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate reports configuration that would make every contact submission fail.
func (c *Config) Validate() error {
	if c.SMTP.User == "" || c.SMTP.Pass == "" {
		return ErrMissingCredentials
	}
	return nil
}

func overrideFromEnv(cfg *Config) error {
	if port := os.Getenv("PORT"); port != "" {
		cfg.Server.Port = port
	}
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		cfg.Server.Mode = mode
	}

	setString(&cfg.SMTP.Host, "SMTP_HOST")
	setString(&cfg.SMTP.User, "SMTP_USER", "GMAIL_USER")
	setString(&cfg.SMTP.Pass, "SMTP_PASS", "GMAIL_PASS")
	setString(&cfg.SMTP.To, "TO_EMAIL", "GMAIL_TO")
	setString(&cfg.SMTP.FromName, "CONTACT_FROM_NAME")

	if port := os.Getenv("SMTP_PORT"); port != "" {
		p, err := strconv.Atoi(port)
		if err != nil {
			return fmt.Errorf("invalid SMTP_PORT %q: %w", port, err)
		}
		cfg.SMTP.Port = p
	}
	if err := setBool(&cfg.SMTP.Secure, "SMTP_SECURE"); err != nil {
		return err
	}
	if timeout := os.Getenv("SMTP_TIMEOUT"); timeout != "" {
		d, err := time.ParseDuration(timeout)
		if err != nil {
			return fmt.Errorf("invalid SMTP_TIMEOUT %q: %w", timeout, err)
		}
		cfg.SMTP.Timeout = d
	}
	if err := setBool(&cfg.Contact.EscapeHTML, "CONTACT_HTML_ESCAPE"); err != nil {
		return err
	}

	setString(&cfg.Admin.Username, "ADMIN_USERNAME")
	setString(&cfg.Admin.Password, "ADMIN_PASSWORD")
	setString(&cfg.Admin.Secret, "ADMIN_SECRET")
	setString(&cfg.DB.Path, "DATABASE_PATH")
	return nil
}

// setString assigns the first non-empty variable among keys; earlier keys win.
func setString(dst *string, keys ...string) {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			*dst = v
			return
		}
	}
}

func setBool(dst *bool, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = b
	return nil
}
