// Package config loads the service configuration from defaults, an optional
// YAML file, an optional .env file and environment variables, then validates
// it. The provider API key is read from GEMINI_API_KEY or API_KEY and the
// listen port from PORT.
package config
