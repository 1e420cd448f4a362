// Copyright (c) 2026 bodhi contributors
// This program is free software: you can redistribute it and/or modify
// it under the terms of the GNU Affero General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
// See the LICENSE.txt file for the full license text.

package main

import (
	"github.com/kelseyhightower/envconfig"
)

// EnvConfig is the one-time process configuration decoded from the
// environment at startup, before the settings service exists to layer
// anything on top of it: where bodhi's state lives, how it talks to an
// identity provider, and the master secret that unseals everything else
// in internal/secrets. Everything a deployment might want to change
// after install belongs in settings.yaml or the database instead, via
// internal/settings.Service.
type EnvConfig struct {
	Home string `envconfig:"BODHI_HOME"`

	Host string `envconfig:"BODHI_HOST" default:"127.0.0.1"`
	Port int    `envconfig:"BODHI_PORT" default:"1135"`

	LlamaServerExec string `envconfig:"BODHI_LLAMACPP_EXEC" default:"llama-server"`
	HFToken         string `envconfig:"HF_TOKEN"`

	KeycloakBaseURL     string `envconfig:"BODHI_KEYCLOAK_URL"`
	KeycloakRealm       string `envconfig:"BODHI_KEYCLOAK_REALM" default:"bodhi"`
	OAuthClientID       string `envconfig:"BODHI_OAUTH_CLIENT_ID"`
	OAuthClientSecret   string `envconfig:"BODHI_OAUTH_CLIENT_SECRET"`
	OAuthRedirectURI    string `envconfig:"BODHI_OAUTH_REDIRECT_URI"`

	MasterSecret string `envconfig:"BODHI_MASTER_SECRET"`

	LogJSON  bool `envconfig:"BODHI_LOG_JSON"`
	LogQuiet bool `envconfig:"BODHI_LOG_QUIET"`
}

// loadEnvConfig decodes the process environment into an EnvConfig,
// applying envconfig's declared defaults for anything unset.
func loadEnvConfig() (EnvConfig, error) {
	var cfg EnvConfig
	if err := envconfig.Process("", &cfg); err != nil {
		return EnvConfig{}, err
	}
	return cfg, nil
}
