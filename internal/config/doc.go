// Package config loads the server's YAML configuration, expanding
// ${VAR_NAME} environment references and applying defaults before
// validation.
package config
