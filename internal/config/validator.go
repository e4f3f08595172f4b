package config

import "github.com/go-playground/validator/v10"

// validator instance (package-level singleton)
var v = validator.New()

// validateStruct returns the first validation error, or nil on success. It
// runs after the merged tree is unmarshalled so the binary never starts with
// partial or malformed configuration.
func validateStruct(c *Config) error {
	return v.Struct(c)
}
