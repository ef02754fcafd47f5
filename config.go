package delphes

import "encoding/json"

// Config is a nested key-value document decoded from JSON, the same
// serialization the teacher uses for its preset documents. The typed
// accessors (Int, Float, Bool, String, Array) return a ConfigError
// rather than injecting a default when a key is absent or mistyped; the
// *Default variants below return a fallback value instead.
type Config struct {
	module string
	values map[string]any
}

// NewConfig wraps an already-decoded document, tagging it with the
// module name used in error messages.
func NewConfig(module string, values map[string]any) *Config {
	if values == nil {
		values = map[string]any{}
	}
	return &Config{module: module, values: values}
}

// ParseConfig decodes a JSON document into a Config for the named module.
func ParseConfig(module string, raw []byte) (*Config, error) {
	var values map[string]any
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &values); err != nil {
			return nil, &ConfigError{Module: module, Reason: "invalid json: " + err.Error()}
		}
	}
	return NewConfig(module, values), nil
}

func (c *Config) lookup(key string) (any, error) {
	v, ok := c.values[key]
	if !ok {
		return nil, &ConfigError{Module: c.module, Reason: "missing key " + key}
	}
	return v, nil
}

func (c *Config) Int(key string) (int, error) {
	v, err := c.lookup(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case int:
		return n, nil
	case float64:
		return int(n), nil
	default:
		return 0, &ConfigError{Module: c.module, Reason: "key " + key + " is not a number"}
	}
}

func (c *Config) Float(key string) (float64, error) {
	v, err := c.lookup(key)
	if err != nil {
		return 0, err
	}
	switch n := v.(type) {
	case float64:
		return n, nil
	case int:
		return float64(n), nil
	default:
		return 0, &ConfigError{Module: c.module, Reason: "key " + key + " is not a number"}
	}
}

func (c *Config) Bool(key string) (bool, error) {
	v, err := c.lookup(key)
	if err != nil {
		return false, err
	}
	b, ok := v.(bool)
	if !ok {
		return false, &ConfigError{Module: c.module, Reason: "key " + key + " is not a bool"}
	}
	return b, nil
}

func (c *Config) String(key string) (string, error) {
	v, err := c.lookup(key)
	if err != nil {
		return "", err
	}
	s, ok := v.(string)
	if !ok {
		return "", &ConfigError{Module: c.module, Reason: "key " + key + " is not a string"}
	}
	return s, nil
}

func (c *Config) Array(key string) ([]any, error) {
	v, err := c.lookup(key)
	if err != nil {
		return nil, err
	}
	a, ok := v.([]any)
	if !ok {
		return nil, &ConfigError{Module: c.module, Reason: "key " + key + " is not an array"}
	}
	return a, nil
}

// IntDefault and friends return def when the key is absent or mistyped.
// Every module in this package reads its parameters through these
// accessors, so an omitted parameter takes the module's built-in
// default and does not make Init fail.
func (c *Config) IntDefault(key string, def int) int {
	if v, err := c.Int(key); err == nil {
		return v
	}
	return def
}

func (c *Config) FloatDefault(key string, def float64) float64 {
	if v, err := c.Float(key); err == nil {
		return v
	}
	return def
}

func (c *Config) BoolDefault(key string, def bool) bool {
	if v, err := c.Bool(key); err == nil {
		return v
	}
	return def
}

func (c *Config) StringDefault(key string, def string) string {
	if v, err := c.String(key); err == nil {
		return v
	}
	return def
}
