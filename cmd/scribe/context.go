package main

import (
	"strings"
	"sync"

	"scribe/internal/config"
)

type commandContext struct {
	configFlag *string
	serverFlag *string
	userFlag   *string

	configOnce sync.Once
	config     *config.Config
	configErr  error
}

func newCommandContext(configFlag, serverFlag, userFlag *string) *commandContext {
	return &commandContext{
		configFlag: configFlag,
		serverFlag: serverFlag,
		userFlag:   userFlag,
	}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.configFlag != nil {
			path = strings.TrimSpace(*c.configFlag)
		}
		cfg, _, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
	})
	return c.config, c.configErr
}

// client builds an API client from flags and config. The --server flag wins
// over the configured bind address.
func (c *commandContext) client() (*apiClient, error) {
	cfg, err := c.ensureConfig()
	if err != nil {
		return nil, err
	}

	server := ""
	if c.serverFlag != nil {
		server = strings.TrimSpace(*c.serverFlag)
	}
	if server == "" {
		server = cfg.Paths.APIBind
	}

	userID := ""
	if c.userFlag != nil {
		userID = strings.TrimSpace(*c.userFlag)
	}

	return newAPIClient(server, cfg.Auth.SharedSecret, userID), nil
}
