package internal

import (
	"chat-fanout/errors"
	"fmt"
	"strings"
	"time"

	"github.com/Netflix/go-env"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

type Config struct {
	Host              string        `env:"HOST,default=localhost"`
	Port              int           `env:"PORT,default=8080" validate:"min=1,max=65535"`
	HealthPort        int           `env:"HEALTH_PORT,default=0" validate:"min=0,max=65535"`
	LogLevel          string        `env:"LOG_LEVEL,default=INFO"`
	BadgerFilepath    string        `env:"BADGER_FILEPATH,required=true" validate:"required"`
	LimitMessages     *int          `env:"LIMIT_MESSAGES" validate:"omitempty,min=1"`
	PersistTimeout    time.Duration `env:"PERSIST_TIMEOUT,default=2s" validate:"gt=0"`
	DeliveryTimeout   time.Duration `env:"DELIVERY_TIMEOUT,default=1s" validate:"gt=0"`
	MaxContentLength  int           `env:"MAX_CONTENT_LENGTH,default=4000" validate:"min=1"`
	SendBufferSize    int           `env:"SEND_BUFFER_SIZE,default=256" validate:"min=1"`
	WriteWait         time.Duration `env:"WRITE_WAIT,default=10s" validate:"gt=0"`
	PongWait          time.Duration `env:"PONG_WAIT,default=60s" validate:"gt=0"`
	PingPeriod        time.Duration `env:"PING_PERIOD,default=54s" validate:"gt=0,ltfield=PongWait"`
	MaxFrameSize      int64         `env:"MAX_FRAME_SIZE,default=65536" validate:"min=512"`
	LivenessTimeout   time.Duration `env:"LIVENESS_TIMEOUT,default=90s" validate:"gtfield=PongWait"`
	ReapInterval      time.Duration `env:"REAP_INTERVAL,default=30s" validate:"gt=0"`
	HealthInterval    time.Duration `env:"HEALTH_INTERVAL,default=30s" validate:"gt=0"`
	RestartInterval   time.Duration `env:"RESTART_INTERVAL,default=1s" validate:"gt=0"`
	JWTSecret         string        `env:"JWT_SECRET,required=true" validate:"min=32"`
	TokenIssuer       string        `env:"TOKEN_ISSUER,default=chat-fanout"`
	TokenDuration     time.Duration `env:"AUTH_TOKEN_DURATION,default=24h" validate:"gt=0"`
	AllowedOrigins    string        `env:"ALLOWED_ORIGINS"`
	CensoredWordsFile string        `env:"CENSORED_WORDS_FILE"`
	CensorCharacter   string        `env:"CENSOR_CHARACTER,default=*"`
}

var validate = validator.New()

// Load reads the optional .env files then the environment.
// Variables already set in the environment win over the files.
func Load(files ...string) (Config, error) {
	if err := godotenv.Load(files...); err != nil && len(files) > 0 {
		return Config{}, fmt.Errorf("load %s: %w", strings.Join(files, ","), err)
	}
	var config Config
	if _, err := env.UnmarshalFromEnviron(&config); err != nil {
		return Config{}, fmt.Errorf("config error: %w", err)
	}
	if err := validate.Struct(config); err != nil {
		return Config{}, fmt.Errorf("%w: %v", errors.ErrValidation, err)
	}
	if _, err := config.CensorRune(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// Origins splits ALLOWED_ORIGINS on commas.
func (c Config) Origins() []string {
	var origins []string
	for _, origin := range strings.Split(c.AllowedOrigins, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}

func (c Config) CensorRune() (rune, error) {
	r := []rune(c.CensorCharacter)
	if len(r) != 1 {
		return 0, fmt.Errorf("%w: CENSOR_CHARACTER must be a single character, got %q",
			errors.ErrValidation, c.CensorCharacter)
	}
	return r[0], nil
}
