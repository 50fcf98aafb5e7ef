package cli

import (
	"io"
	"os"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

const DefaultConfigFile = "strata.yaml"

const configFileStub = `version: "1"
migrations:
  local_folder: ./migrations
  database_url: "%%DATABASE_URL%%"
  table: migrations
`

var ErrDatabaseURLMissing = errors.New("database url was not defined")

type (
	Config struct {
		DatabaseURL      string
		MigrationsFolder string
		MigrationsTable  string
		Color            bool
	}

	migrations struct {
		LocalFolder string `yaml:"local_folder"`
		DatabaseURL string `yaml:"database_url"`
		Table       string `yaml:"table"`
	}

	configFile struct {
		Version    string     `yaml:"version"`
		Migrations migrations `yaml:"migrations"`
	}
)

// LoadConfig reads a yaml config file. Values written as %%NAME%% are
// taken from the NAME environment variable.
func LoadConfig(path string) (Config, error) {
	var cfg Config

	b, err := os.ReadFile(path)
	if err != nil {
		return cfg, errors.Wrap(err, "could not read strata configuration file")
	}

	var cfgFile configFile
	if err := yaml.Unmarshal(b, &cfgFile); err != nil {
		return cfg, errors.Wrap(err, "could not parse strata configuration file")
	}

	cfg.DatabaseURL = fromEnv(cfgFile.Migrations.DatabaseURL)
	cfg.MigrationsFolder = fromEnv(cfgFile.Migrations.LocalFolder)
	cfg.MigrationsTable = fromEnv(cfgFile.Migrations.Table)

	return cfg, nil
}

// Override replaces every field of cfg that is set in other.
func (cfg Config) Override(other Config) Config {
	if other.DatabaseURL != "" {
		cfg.DatabaseURL = other.DatabaseURL
	}

	if other.MigrationsFolder != "" {
		cfg.MigrationsFolder = other.MigrationsFolder
	}

	if other.MigrationsTable != "" {
		cfg.MigrationsTable = other.MigrationsTable
	}

	cfg.Color = other.Color

	return cfg
}

func (cfg Config) Validate() error {
	if cfg.DatabaseURL == "" {
		return ErrDatabaseURLMissing
	}

	return nil
}

func fromEnv(value string) string {
	if len(value) > 4 && strings.HasPrefix(value, "%%") && strings.HasSuffix(value, "%%") {
		return os.Getenv(strings.Trim(value, "%"))
	}

	return value
}

func InitCfg(path string) (err error) {
	if FileExists(path) {
		return errors.Errorf("config file [%s] already exists", path)
	}

	f, createErr := os.Create(path)
	if createErr != nil {
		return errors.Wrap(createErr, "could not create config file")
	}

	defer func() {
		if closeErr := f.Close(); closeErr != nil && err == nil {
			err = closeErr
		}
	}()

	if _, err := io.Copy(f, strings.NewReader(configFileStub)); err != nil {
		return errors.Wrap(err, "could not write config file")
	}

	return nil
}

func FileExists(path string) bool {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return false
	}

	return err == nil && !info.IsDir()
}
