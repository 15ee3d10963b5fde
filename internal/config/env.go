package config

import (
	"errors"
	"io/fs"
	"os"
	"strings"

	"github.com/aleister1102/overwatch/internal/common"
	"github.com/joho/godotenv"
)

// DefaultEnvFile is read when --env-file is not given.
const DefaultEnvFile = ".env"

// LoadEnvFile seeds the process environment from a dotenv file. Variables that are
// already set win over the file. A missing file is not an error.
func LoadEnvFile(path string) error {
	if path == "" {
		return nil
	}
	if err := godotenv.Load(path); err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil
		}
		return common.WrapErrorf(err, "failed to load env file '%s'", path)
	}
	return nil
}

// Token returns the tracker token named by TokenEnv.
func (tc TrackerConfig) Token() (string, error) {
	token := strings.TrimSpace(os.Getenv(tc.TokenEnv))
	if token == "" {
		return "", common.WrapErrorf(common.ErrMissingCredentials, "%s not found in environment", tc.TokenEnv)
	}
	return token, nil
}
