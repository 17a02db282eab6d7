package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variables read by ApplyEnv.
const (
	EnvURL       = "URL"
	EnvMaxCount  = "MAX_DATA_LEN"
	EnvStartPage = "START_PAGE"
	EnvLastPage  = "LAST_PAGE"
	EnvProxy     = "TENDERSCAN_PROXY"
)

// ApplyEnv overrides cfg with the environment variables that are set and
// non-empty. A nil getenv reads the process environment. A variable that
// does not parse as an integer is reported by name.
func ApplyEnv(cfg *Config, getenv func(string) string) error {
	if getenv == nil {
		getenv = os.Getenv
	}

	if v := strings.TrimSpace(getenv(EnvURL)); v != "" {
		cfg.BaseURL = v
	}
	if v := strings.TrimSpace(getenv(EnvProxy)); v != "" {
		cfg.Proxy = v
	}

	ints := []struct {
		name string
		dst  *int
	}{
		{EnvMaxCount, &cfg.MaxCount},
		{EnvStartPage, &cfg.StartPage},
		{EnvLastPage, &cfg.LastPage},
	}
	for _, e := range ints {
		v := strings.TrimSpace(getenv(e.name))
		if v == "" {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("%w %s=%q: not an integer", ErrInvalidEnv, e.name, v)
		}
		*e.dst = n
	}
	return nil
}
