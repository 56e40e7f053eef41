package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const envPrefix = "CERTBOT_"

// Config holds the application configuration
type Config struct {
	DataDir         string `yaml:"data_dir"`
	CertificatesDir string `yaml:"certificates_dir"`
	ContactsDir     string `yaml:"contacts_dir"`
	GoogleKeyFile   string `yaml:"google_key_file"`

	Sheets      SheetsConfig      `yaml:"sheets"`
	Morpher     MorpherConfig     `yaml:"morpher"`
	SMTP        SMTPConfig        `yaml:"smtp"`
	Mail        MailConfig        `yaml:"mail"`
	Certificate CertificateConfig `yaml:"certificate"`
	Pacing      PacingConfig      `yaml:"pacing"`
	S3          S3Config          `yaml:"s3"`
	WhatsApp    WhatsAppConfig    `yaml:"whatsapp"`
}

type SheetsConfig struct {
	ParticipantsWorksheet string `yaml:"participants_worksheet"`
	CertificatesWorksheet string `yaml:"certificates_worksheet"`
	RosterFirstRow        int    `yaml:"roster_first_row"`
}

type MorpherConfig struct {
	URL       string        `yaml:"url"`
	Token     string        `yaml:"token"`
	MaxTries  int           `yaml:"max_tries"`
	Timeout   time.Duration `yaml:"timeout"`
	CacheSize int           `yaml:"cache_size"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
	SSL      bool   `yaml:"ssl"`
}

type MailConfig struct {
	Bcc             []string `yaml:"bcc"`
	MessageTemplate string   `yaml:"message_template"`
}

type CertificateConfig struct {
	Template string `yaml:"template"`
	Heading  string `yaml:"heading"`
}

type PacingConfig struct {
	FillInterval time.Duration `yaml:"fill_interval"`
	SendInterval time.Duration `yaml:"send_interval"`
}

// S3Config enables the certificate archive when Bucket is set. Without a key
// pair the default AWS credential chain is used.
type S3Config struct {
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
}

type WhatsAppConfig struct {
	Notify bool `yaml:"notify"`
}

// Requirement names a group of settings a command cannot run without
type Requirement int

const (
	RequireSheets Requirement = iota
	RequireSMTP
)

// Default returns the built-in configuration
func Default() *Config {
	return &Config{
		DataDir:       "data",
		GoogleKeyFile: "key.json",
		Sheets: SheetsConfig{
			ParticipantsWorksheet: "участники",
			CertificatesWorksheet: "сертификаты",
			RosterFirstRow:        5,
		},
		Morpher: MorpherConfig{
			URL:       "https://ws3.morpher.ru/russian/declension",
			MaxTries:  3,
			Timeout:   15 * time.Second,
			CacheSize: 1024,
		},
		SMTP: SMTPConfig{
			Host: "smtp.gmail.com",
			Port: 587,
		},
		Mail: MailConfig{
			MessageTemplate: "Здравствуйте, {name}! Благодарю вас за участие.",
		},
		Pacing: PacingConfig{
			FillInterval: time.Second,
			SendInterval: 3 * time.Second,
		},
		S3: S3Config{
			Prefix: "certificates",
		},
	}
}

// LoadConfig reads .env, then the optional YAML file at path, then
// CERTBOT_* environment variables. Later sources win.
func LoadConfig(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := Default()
	if path != "" {
		if err := cfg.loadFile(path); err != nil {
			return nil, err
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.fillDerived()
	return cfg, nil
}

func (c *Config) loadFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() error {
	var errs []error
	intEnv := func(key string, fallback int) int {
		v, err := getEnvInt(key, fallback)
		errs = append(errs, err)
		return v
	}
	durEnv := func(key string, fallback time.Duration) time.Duration {
		v, err := getEnvDuration(key, fallback)
		errs = append(errs, err)
		return v
	}
	boolEnv := func(key string, fallback bool) bool {
		v, err := getEnvBool(key, fallback)
		errs = append(errs, err)
		return v
	}

	c.DataDir = getEnv("DATA_DIR", c.DataDir)
	c.CertificatesDir = getEnv("CERTIFICATES_DIR", c.CertificatesDir)
	c.ContactsDir = getEnv("CONTACTS_DIR", c.ContactsDir)
	c.GoogleKeyFile = getEnv("GOOGLE_KEY_FILE", c.GoogleKeyFile)

	c.Sheets.ParticipantsWorksheet = getEnv("PARTICIPANTS_WORKSHEET", c.Sheets.ParticipantsWorksheet)
	c.Sheets.CertificatesWorksheet = getEnv("CERTIFICATES_WORKSHEET", c.Sheets.CertificatesWorksheet)
	c.Sheets.RosterFirstRow = intEnv("ROSTER_FIRST_ROW", c.Sheets.RosterFirstRow)

	c.Morpher.URL = getEnv("MORPHER_URL", c.Morpher.URL)
	c.Morpher.Token = getEnv("MORPHER_TOKEN", c.Morpher.Token)
	c.Morpher.MaxTries = intEnv("MORPHER_MAX_TRIES", c.Morpher.MaxTries)
	c.Morpher.Timeout = durEnv("MORPHER_TIMEOUT", c.Morpher.Timeout)
	c.Morpher.CacheSize = intEnv("MORPH_CACHE_SIZE", c.Morpher.CacheSize)

	c.SMTP.Host = getEnv("SMTP_HOST", c.SMTP.Host)
	c.SMTP.Port = intEnv("SMTP_PORT", c.SMTP.Port)
	c.SMTP.Username = getEnv("SMTP_USERNAME", c.SMTP.Username)
	c.SMTP.Password = getEnv("SMTP_PASSWORD", c.SMTP.Password)
	c.SMTP.From = getEnv("SMTP_FROM", c.SMTP.From)
	c.SMTP.SSL = boolEnv("SMTP_SSL", c.SMTP.SSL)

	if bcc := getEnv("BCC", ""); bcc != "" {
		c.Mail.Bcc = splitTrim(bcc, ",")
	}
	c.Mail.MessageTemplate = getEnv("MESSAGE_TEMPLATE", c.Mail.MessageTemplate)

	c.Certificate.Template = getEnv("CERT_TEMPLATE", c.Certificate.Template)
	c.Certificate.Heading = getEnv("CERT_HEADING", c.Certificate.Heading)

	c.Pacing.FillInterval = durEnv("FILL_INTERVAL", c.Pacing.FillInterval)
	c.Pacing.SendInterval = durEnv("SEND_INTERVAL", c.Pacing.SendInterval)

	c.S3.Bucket = getEnv("S3_BUCKET", c.S3.Bucket)
	c.S3.Region = getEnv("S3_REGION", c.S3.Region)
	c.S3.Prefix = getEnv("S3_PREFIX", c.S3.Prefix)
	c.S3.AccessKeyID = getEnv("S3_ACCESS_KEY_ID", c.S3.AccessKeyID)
	c.S3.SecretAccessKey = getEnv("S3_SECRET_ACCESS_KEY", c.S3.SecretAccessKey)

	c.WhatsApp.Notify = boolEnv("WHATSAPP_NOTIFY", c.WhatsApp.Notify)

	return errors.Join(errs...)
}

func (c *Config) fillDerived() {
	if c.CertificatesDir == "" {
		c.CertificatesDir = filepath.Join(c.DataDir, "certificates")
	}
	if c.ContactsDir == "" {
		c.ContactsDir = filepath.Join(c.DataDir, "contacts")
	}
}

// DatabasePath is the SQLite file holding webinars and name morphs
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "certbot.db")
}

// WebinarCertificatesDir is where the certificates of one webinar go
func (c *Config) WebinarCertificatesDir(dates string, year int) string {
	return filepath.Join(c.CertificatesDir, strings.TrimSpace(dates)+" "+strconv.Itoa(year))
}

// Validate reports every missing setting needed by reqs
func (c *Config) Validate(reqs ...Requirement) error {
	var errs []error
	for _, r := range reqs {
		switch r {
		case RequireSheets:
			if c.GoogleKeyFile == "" {
				errs = append(errs, errors.New(envPrefix+"GOOGLE_KEY_FILE is required"))
			}
		case RequireSMTP:
			if c.SMTP.Host == "" {
				errs = append(errs, errors.New(envPrefix+"SMTP_HOST is required"))
			}
			if c.SMTP.Username == "" {
				errs = append(errs, errors.New(envPrefix+"SMTP_USERNAME is required"))
			}
			if c.SMTP.Password == "" {
				errs = append(errs, errors.New(envPrefix+"SMTP_PASSWORD is required"))
			}
		}
	}
	if c.Pacing.FillInterval < 0 || c.Pacing.SendInterval < 0 {
		errs = append(errs, errors.New("pacing intervals must not be negative"))
	}
	return errors.Join(errs...)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(envPrefix + key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) (int, error) {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	n, err := strconv.Atoi(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return n, nil
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return d, nil
}

func getEnvBool(key string, defaultValue bool) (bool, error) {
	value := os.Getenv(envPrefix + key)
	if value == "" {
		return defaultValue, nil
	}
	b, err := strconv.ParseBool(value)
	if err != nil {
		return defaultValue, fmt.Errorf("%s%s: %w", envPrefix, key, err)
	}
	return b, nil
}

func splitTrim(s, sep string) []string {
	var out []string
	for _, v := range strings.Split(s, sep) {
		if t := strings.TrimSpace(v); t != "" {
			out = append(out, t)
		}
	}
	return out
}
