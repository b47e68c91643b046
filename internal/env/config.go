package env

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/sethvargo/go-envconfig"

	"github.com/jrwilson/substrate/protocol"
)

type Config struct {
	DebugHTTP bool   `env:"RFB_DEBUG_HTTP"`
	LogLevel  string `env:"RFB_LOG_LEVEL,default=info"`

	// Size of the served desktop
	Width  int `env:"RFB_WIDTH,default=240"`
	Height int `env:"RFB_HEIGHT,default=160"`

	DesktopName string `env:"RFB_DESKTOP_NAME,default=substrate"`

	// Version is the highest protocol version offered to clients
	Version string `env:"RFB_VERSION,default=3.8"`

	UpdateInterval time.Duration `env:"RFB_UPDATE_INTERVAL,default=1s"`

	// Source is the image source, noise or pattern
	Source string `env:"RFB_SOURCE,default=noise"`
}

func LoadConfig(ctx context.Context) (*Config, error) {
	config := Config{}

	if err := godotenv.Load(".env.local"); err != nil {
		if !os.IsNotExist(err) {
			return nil, fmt.Errorf("Failed to load '.env.local': %w", err)
		}
	}

	if err := envconfig.Process(ctx, &config); err != nil {
		return nil, err
	}

	if config.Width <= 0 || config.Height <= 0 || config.Width > 0xffff || config.Height > 0xffff {
		return nil, fmt.Errorf("Invalid desktop size %dx%d", config.Width, config.Height)
	}

	return &config, nil
}

// ProtocolVersion parses the configured version.
func (c *Config) ProtocolVersion() (protocol.ProtocolVersion, error) {
	return protocol.ParseVersionString(c.Version)
}
