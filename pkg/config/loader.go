package config

import (
	"os"
	"regexp"

	"gopkg.in/yaml.v3"

	"github.com/ajitpratap0/nebula-columnar/pkg/nebulaerrors"
)

var envVar = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// Load reads a YAML file into cfg after substituting ${VAR} references with
// environment values. Fields absent from the file keep their current value,
// so loading into NewTransferConfig keeps its defaults.
func Load(filePath string, cfg any) error {
	data, err := os.ReadFile(filePath) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "failed to read config file").
			WithDetail("path", filePath)
	}
	return Parse(data, cfg)
}

// Parse decodes YAML bytes into cfg with ${VAR} substitution.
func Parse(data []byte, cfg any) error {
	content := substituteEnvVars(string(data))
	if err := yaml.Unmarshal([]byte(content), cfg); err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "failed to parse YAML")
	}
	return nil
}

// Save writes cfg to a YAML file.
func Save(filePath string, cfg any) error {
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeConfig, "failed to marshal YAML")
	}
	if err := os.WriteFile(filePath, data, 0o600); err != nil {
		return nebulaerrors.Wrap(err, nebulaerrors.ErrorTypeFile, "failed to write config file").
			WithDetail("path", filePath)
	}
	return nil
}

// substituteEnvVars replaces ${VAR_NAME} with the environment value; unset
// variables become empty.
func substituteEnvVars(content string) string {
	return envVar.ReplaceAllStringFunc(content, func(m string) string {
		return os.Getenv(envVar.FindStringSubmatch(m)[1])
	})
}
