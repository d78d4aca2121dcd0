// Package config loads server settings from the environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// Config holds every setting of the server process.
type Config struct {
	MongoURI      string `env:"MONGODB_URI,required"`
	MongoDatabase string `env:"MONGODB_DATABASE" envDefault:"chat_db"`

	JWTSecret    string        `env:"JWT_SECRET"`
	JWTKeys      string        `env:"JWT_KEYS"` // kid:secret,kid2:secret2
	JWTActiveKid string        `env:"JWT_ACTIVE_KID"`
	JWTTTL       time.Duration `env:"JWT_TTL" envDefault:"24h"`

	Port       string `env:"PORT" envDefault:"50051"`
	HTTPAddr   string `env:"HTTP_ADDR" envDefault:":8080"`
	TLSCert    string `env:"TLS_CERT"`
	TLSKey     string `env:"TLS_KEY"`
	RequireTLS bool   `env:"REQUIRE_TLS" envDefault:"false"`

	RateLimitRPM int    `env:"RATE_LIMIT_RPM" envDefault:"10"`
	AdminPIN     string `env:"ADMIN_PIN,required"`

	MediaMaxBytes     int64  `env:"MEDIA_MAX_BYTES" envDefault:"104857600"`
	ImageMaxBytes     int    `env:"IMAGE_MAX_BYTES" envDefault:"1048576"`
	ImageMaxDimension int    `env:"IMAGE_MAX_DIMENSION" envDefault:"1920"`
	ImageMaxPixels    int    `env:"IMAGE_MAX_PIXELS" envDefault:"40000000"`
	VideoMaxHeight    int    `env:"VIDEO_MAX_HEIGHT" envDefault:"720"`
	VideoBitrate      string `env:"VIDEO_BITRATE" envDefault:"1M"`
	FFmpegPath        string `env:"FFMPEG_PATH" envDefault:"ffmpeg"`

	AssetUploadURL    string        `env:"ASSET_UPLOAD_URL"`
	AssetUploadPreset string        `env:"ASSET_UPLOAD_PRESET"`
	AssetTimeout      time.Duration `env:"ASSET_TIMEOUT" envDefault:"2m"`

	PresenceIdle  time.Duration `env:"PRESENCE_IDLE" envDefault:"2m"`
	PresenceSweep time.Duration `env:"PRESENCE_SWEEP" envDefault:"30s"`

	CORSOrigins []string `env:"CORS_ORIGINS" envSeparator:"," envDefault:"*"`

	LogLevel  string `env:"LOG_LEVEL" envDefault:"info"`
	LogFormat string `env:"LOG_FORMAT" envDefault:"text"`
	LogFile   string `env:"LOG_FILE"`
}

// Load reads an optional .env file (or the given files) and parses the
// environment into a validated Config.
func Load(files ...string) (*Config, error) {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		// A missing file is fine; real deployments set the environment directly
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", f, err)
		}
	}

	cfg, err := env.ParseAs[Config]()
	if err != nil {
		return nil, fmt.Errorf("parse environment: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that depend on each other.
func (c *Config) Validate() error {
	if c.JWTSecret == "" && c.JWTKeys == "" {
		return errors.New("either JWT_SECRET or JWT_KEYS must be set")
	}
	if c.JWTKeys != "" {
		keys, err := c.SigningKeys()
		if err != nil {
			return err
		}
		if _, ok := keys[c.JWTActiveKid]; !ok {
			return fmt.Errorf("JWT_ACTIVE_KID %q is not in JWT_KEYS", c.JWTActiveKid)
		}
	}
	if (c.TLSCert == "") != (c.TLSKey == "") {
		return errors.New("TLS_CERT and TLS_KEY must be set together")
	}
	if c.RequireTLS && c.TLSCert == "" {
		return errors.New("REQUIRE_TLS is true but TLS_CERT/TLS_KEY are not configured")
	}
	if c.RateLimitRPM <= 0 {
		return fmt.Errorf("RATE_LIMIT_RPM must be positive, got %d", c.RateLimitRPM)
	}
	if c.PresenceSweep <= 0 || c.PresenceIdle <= 0 {
		return errors.New("PRESENCE_IDLE and PRESENCE_SWEEP must be positive")
	}
	return nil
}

// SigningKeys parses JWT_KEYS into a kid -> secret map.
func (c *Config) SigningKeys() (map[string]string, error) {
	keys := map[string]string{}
	for _, p := range strings.Split(c.JWTKeys, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		kid, secret, ok := strings.Cut(p, ":")
		if !ok || kid == "" || secret == "" {
			return nil, fmt.Errorf("invalid JWT_KEYS entry: %s", p)
		}
		keys[kid] = secret
	}
	return keys, nil
}

// GRPCAddr is the listen address of the gRPC server.
func (c *Config) GRPCAddr() string { return ":" + c.Port }
