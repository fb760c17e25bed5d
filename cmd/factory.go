package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"
	"github.com/spf13/viper"

	"github.com/8b-is/feedgate/internal/cliconfig"
	"github.com/8b-is/feedgate/internal/config"
	"github.com/8b-is/feedgate/pkg/client"
)

const (
	EnvToken  = "FEEDGATE_TOKEN"
	EnvAPIKey = "FEEDGATE_API_KEY"

	DefaultConfigPath = "feedgate.yaml"
)

type Factory struct {
	// RemoteAddr is the address of the feedgate server to connect to.
	RemoteAddr string

	// ConfigPath is the server configuration file used by serve and config commands.
	ConfigPath string
}

func NewFactory() *Factory {
	return &Factory{}
}

// ServerAddr resolves the remote server from the flag, then config/env.
func (f *Factory) ServerAddr() (string, error) {
	server := f.RemoteAddr // prio 1: command-line flag
	if server == "" {
		server = viper.GetString(ServerAddrKey) // prio 2: config/env
	}
	if server == "" {
		return "", fmt.Errorf("server address not configured (use --server or set %s_SERVER)", EnvPrefix)
	}
	return server, nil
}

// GetClient returns a client for the configured server. Credentials are taken from
// FEEDGATE_TOKEN, then the session saved by login, then FEEDGATE_API_KEY.
func (f *Factory) GetClient() (*client.Client, error) {
	server, err := f.ServerAddr()
	if err != nil {
		return nil, err
	}

	if envToken := os.Getenv(EnvToken); envToken != "" {
		return client.New(server, client.WithToken(envToken))
	}

	cfg, err := cliconfig.Load()
	if err != nil {
		return nil, err
	}
	cred, err := cfg.GetCredential(server)
	switch {
	case err == nil && !cred.Expired(time.Now()):
		return client.New(server, client.WithToken(cred.Token))
	case err == nil:
		log.Warn().Str("subject", cred.Subject).Msg("saved session has expired, run 'feedgate login' again")
	case !errors.Is(err, cliconfig.ErrCredentialNotFound):
		return nil, err
	}

	if apiKey := os.Getenv(EnvAPIKey); apiKey != "" {
		return client.New(server, client.WithAPIKey(apiKey))
	}
	return client.New(server)
}

func (f *Factory) LoadConfig() (*config.Config, error) {
	path := f.ConfigPath
	if path == "" {
		path = DefaultConfigPath
	}
	return config.Load(path)
}

func (f *Factory) bindConfigFlag(flags *pflag.FlagSet) {
	flags.StringVarP(&f.ConfigPath, "config", "c", "", "The feedgate server config file (default is "+DefaultConfigPath+")")
}
