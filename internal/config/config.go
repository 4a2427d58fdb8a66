// Package config assembles daemon settings from flags, an optional .env file
// and the environment. Explicit flags win over the environment, which wins
// over defaults.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/joho/godotenv"
	cli "github.com/spf13/pflag"

	"carevox/internal/ipc"
	"carevox/internal/nlu"
	"carevox/internal/reminder"
)

const (
	BackendGemini = "gemini"
	BackendOpenAI = "openai"
)

type Config struct {
	EnvFile  string
	LogLevel string
	Proxy    string

	DataDir  string
	InMemory bool

	Tick time.Duration
	Lead time.Duration

	WhisperModel string
	Beep         string
	Input        string
	Voice        string

	HTTPAddr      string
	Socket        string
	BusURL        string
	Notifications bool

	Backend    string
	Model      string
	APIKey     string
	NLUTimeout time.Duration
}

func defaultDataDir() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "carevox")
	}
	return ".carevox"
}

// Load parses args (without the program name) and resolves the environment.
func Load(args []string) (Config, error) {
	var c Config

	flags := cli.NewFlagSet("carevox-daemon", cli.ContinueOnError)
	flags.StringVarP(&c.EnvFile, "env", "e", ".env", "Env file path")
	flags.StringVarP(&c.LogLevel, "log", "l", "info", "Log level (debug|info|warn|error)")
	flags.StringVarP(&c.Proxy, "proxy", "p", "", "Socks proxy address for NLU traffic")
	flags.StringVarP(&c.DataDir, "data", "d", defaultDataDir(), "Data directory")
	flags.BoolVar(&c.InMemory, "memory", false, "Keep data in memory only")
	flags.DurationVar(&c.Tick, "tick", reminder.DefaultTickInterval, "Reminder tick interval")
	flags.DurationVar(&c.Lead, "lead", reminder.DefaultLeadTime, "Appointment reminder lead time")
	flags.StringVarP(&c.WhisperModel, "whisper-model", "w", "third_party/whisper.cpp/models/ggml-base.en.bin", "Whisper model path")
	flags.StringVar(&c.Beep, "beep", "", "mp3 cue played when listening starts")
	flags.StringVarP(&c.Input, "input", "i", "", "Transcribe this audio file instead of the microphone")
	flags.StringVar(&c.Voice, "voice", "en", "espeak-ng voice")
	flags.StringVar(&c.HTTPAddr, "http", "127.0.0.1:8093", "HTTP API address, empty disables")
	flags.StringVarP(&c.Socket, "socket", "s", ipc.DefaultSocketPath(), "Control socket path")
	flags.StringVar(&c.BusURL, "bus", "", "Websocket bus url, empty disables")
	flags.BoolVar(&c.Notifications, "notifications", true, "Post desktop notifications")
	flags.StringVar(&c.Backend, "nlu", BackendGemini, "NLU backend (gemini|openai)")
	flags.StringVar(&c.Model, "model", "", "NLU model, empty for the backend default")
	flags.DurationVar(&c.NLUTimeout, "nlu-timeout", 20*time.Second, "NLU request timeout")

	if err := flags.Parse(args); err != nil {
		return Config{}, err
	}

	if err := godotenv.Load(c.EnvFile); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", c.EnvFile, err)
	}

	fromEnv(flags, "data", "CAREVOX_DATA_DIR", &c.DataDir)
	fromEnv(flags, "http", "CAREVOX_HTTP_ADDR", &c.HTTPAddr)
	fromEnv(flags, "bus", "CAREVOX_BUS_URL", &c.BusURL)
	fromEnv(flags, "nlu", "CAREVOX_NLU", &c.Backend)
	fromEnv(flags, "model", "CAREVOX_MODEL", &c.Model)

	switch c.Backend {
	case BackendGemini:
		c.APIKey = os.Getenv("GEMINI_API_KEY")
		if c.Model == "" {
			c.Model = nlu.DefaultGeminiModel
		}
	case BackendOpenAI:
		c.APIKey = os.Getenv("OPENAI_API_KEY")
		if c.Model == "" {
			c.Model = nlu.DefaultOpenAIModel
		}
	}

	return c, c.Validate()
}

func fromEnv(flags *cli.FlagSet, name, env string, dst *string) {
	if flags.Changed(name) {
		return
	}
	if v, ok := os.LookupEnv(env); ok {
		*dst = v
	}
}

func (c Config) Validate() error {
	var errs []error
	switch c.Backend {
	case BackendGemini:
		if c.APIKey == "" {
			errs = append(errs, errors.New("GEMINI_API_KEY not set"))
		}
	case BackendOpenAI:
		if c.APIKey == "" {
			errs = append(errs, errors.New("OPENAI_API_KEY not set"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown nlu backend %q", c.Backend))
	}
	if c.Tick < time.Second {
		errs = append(errs, fmt.Errorf("tick %s is shorter than 1s", c.Tick))
	}
	if c.Lead <= 0 {
		errs = append(errs, fmt.Errorf("lead %s must be positive", c.Lead))
	}
	if c.NLUTimeout <= 0 {
		errs = append(errs, errors.New("nlu timeout must be positive"))
	}
	if !c.InMemory && c.DataDir == "" {
		errs = append(errs, errors.New("data directory not set"))
	}
	if c.Socket == "" {
		errs = append(errs, errors.New("socket path not set"))
	}
	return errors.Join(errs...)
}
