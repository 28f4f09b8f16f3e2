package env

import (
	"fmt"

	"github.com/joho/godotenv"
)

// LoadDotEnv parses a .env file and returns its key-value pairs as a scope.
// Supports: KEY=value, KEY="quoted value", KEY='single quoted', # comments,
// and export prefixes. Nothing is exported to the OS environment.
func LoadDotEnv(path string) (Scope, error) {
	vars, err := godotenv.Read(path)
	if err != nil {
		return nil, fmt.Errorf("cannot read env file: %w", err)
	}
	return Scope(vars), nil
}
