package config

import (
	"github.com/joho/godotenv"
)

type Config interface {
	EnvConfig
	IdentityConfig
	BridgeConfig
}

type EnvConfig interface {
	GetAppName() string
	GetEnv() string
	GetLogLevel() string
}

type mainConfig struct {
	EnvVars
	Identity
	Bridge
}

// New loads an optional .env file from the working directory and returns a
// Config backed by the process environment. Variables already set in the
// environment win over the file.
func New(envFiles ...string) Config {
	_ = godotenv.Load(envFiles...)
	return mainConfig{}
}
