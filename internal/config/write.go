package config

import (
	"bytes"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

const fileHeader = `# sitepipe configuration.
# Every key can be overridden with SITEPIPE_<SECTION>_<KEY>, e.g. SITEPIPE_SERVER_PORT=9000.
`

// MarshalYAML writes the debounce as a duration string so the file stays
// readable and round-trips through viper.
func (w WatchConfig) MarshalYAML() (interface{}, error) {
	return map[string]string{"debounce": w.Debounce.String()}, nil
}

// Marshal renders cfg as a commented YAML document.
func Marshal(cfg Config) ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteString(fileHeader)

	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(cfg); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("encoding config: %w", err)
	}
	return buf.Bytes(), nil
}

// WriteFile writes cfg to path. An existing file is only replaced when
// overwrite is set.
func WriteFile(path string, cfg Config, overwrite bool) error {
	if !overwrite {
		if _, err := os.Stat(path); err == nil {
			return fmt.Errorf("%s already exists (use --force to overwrite)", path)
		}
	}
	data, err := Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}
