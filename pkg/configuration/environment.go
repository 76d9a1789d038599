package configuration

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"
	"github.com/go-faster/errors"
	"github.com/go-playground/validator/v10"
	"github.com/iota-uz/utils/fs"
	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"

	"github.com/iota-uz/admissions/pkg/logging"
)

var DefaultEnvFiles = []string{".env", ".env.local"}

func LoadEnv(envFiles []string) (int, error) {
	existingFiles := make([]string, 0, len(envFiles))
	for _, file := range envFiles {
		if fs.FileExists(file) {
			existingFiles = append(existingFiles, file)
		}
	}

	if len(existingFiles) == 0 {
		return 0, nil
	}

	return len(existingFiles), godotenv.Load(existingFiles...)
}

type FileOptions struct {
	Rankings string `env:"ADMISSIONS_RANK_FILE" envDefault:"university_rankings.xlsx" validate:"required"`
	Aliases  string `env:"ADMISSIONS_ALIAS_FILE" envDefault:"university_aliases.xlsx" validate:"required"`
	Util     string `env:"ADMISSIONS_UTIL_FILE" envDefault:"admissions_util.xlsx" validate:"required"`
}

type ResolverOptions struct {
	// Fuzzy scores at or above this are aliased without asking. 100 only accepts
	// case and punctuation-insensitive equality.
	AutoAcceptScore int `env:"ADMISSIONS_AUTO_ACCEPT_SCORE" envDefault:"100" validate:"min=1,max=100"`
	DefaultRank     int `env:"ADMISSIONS_DEFAULT_RANK" envDefault:"200" validate:"min=1,max=200"`
}

type ReadingOptions struct {
	ReadersPerCandidate int `env:"ADMISSIONS_READERS_PER_CANDIDATE" envDefault:"2" validate:"min=1"`
	MaxDrawAttempts     int `env:"ADMISSIONS_MAX_DRAW_ATTEMPTS" envDefault:"100" validate:"min=1"`
	MaxRestarts         int `env:"ADMISSIONS_MAX_RESTARTS" envDefault:"1" validate:"min=0"`
}

type Configuration struct {
	Files    FileOptions
	Resolver ResolverOptions
	Reading  ReadingOptions

	Backup      bool   `env:"ADMISSIONS_BACKUP" envDefault:"true"`
	MetricsFile string `env:"ADMISSIONS_METRICS_FILE"`
	LogLevel    string `env:"LOG_LEVEL" envDefault:"info" validate:"oneof=silent error warn info debug"`
}

// Load reads .env files into the process environment, then fills unset keys from an
// optional TOML file keyed by environment variable names.
func Load(tomlPath string, envFiles []string) (*Configuration, error) {
	n, err := LoadEnv(envFiles)
	if err != nil {
		return nil, errors.Wrap(err, "load env files")
	}
	if n == 0 && len(envFiles) > 0 {
		wd, _ := os.Getwd()
		for _, file := range envFiles {
			log.Printf("env file not found: %s", filepath.Join(wd, file))
		}
	}

	environment := env.ToMap(os.Environ())
	if tomlPath != "" {
		fileVars, err := readTOML(tomlPath)
		if err != nil {
			return nil, err
		}
		for k, v := range fileVars {
			if _, set := environment[k]; !set {
				environment[k] = v
			}
		}
	}

	return Parse(environment)
}

// Parse builds a configuration from an explicit variable set.
func Parse(environment map[string]string) (*Configuration, error) {
	c := &Configuration{}
	if err := env.ParseWithOptions(c, env.Options{Environment: environment}); err != nil {
		return nil, errors.Wrap(err, "parse environment")
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Configuration) Validate() error {
	c.LogLevel = strings.ToLower(strings.TrimSpace(c.LogLevel))
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fmt.Sprintf("%s: failed %s=%s (got %v)", fe.Namespace(), fe.Tag(), fe.Param(), fe.Value()))
			}
			return errors.Errorf("invalid configuration: %s", strings.Join(msgs, "; "))
		}
		return errors.Wrap(err, "validate configuration")
	}
	return nil
}

func (c *Configuration) LogrusLogLevel() logrus.Level {
	return logging.ParseLevel(c.LogLevel)
}

// TableFiles lists every persisted table file in a stable order.
func (c *Configuration) TableFiles() []string {
	return []string{c.Files.Rankings, c.Files.Aliases, c.Files.Util}
}

func readTOML(path string) (map[string]string, error) {
	raw := map[string]any{}
	if _, err := toml.DecodeFile(path, &raw); err != nil {
		return nil, errors.Wrapf(err, "decode %s", path)
	}
	out := make(map[string]string, len(raw))
	for k, v := range raw {
		switch v.(type) {
		case map[string]any, []any, []map[string]any:
			return nil, errors.Errorf("%s: key %s must be a scalar", path, k)
		}
		out[strings.ToUpper(k)] = fmt.Sprint(v)
	}
	return out, nil
}
