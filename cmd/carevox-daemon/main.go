package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	log "log/slog"

	"golang.org/x/sync/errgroup"

	"carevox/internal/api"
	"carevox/internal/audio"
	"carevox/internal/bus"
	"carevox/internal/config"
	"carevox/internal/dispatch"
	"carevox/internal/ipc"
	"carevox/internal/kv"
	"carevox/internal/logging"
	"carevox/internal/nlu"
	"carevox/internal/notify"
	"carevox/internal/proxy"
	"carevox/internal/reminder"
	"carevox/internal/speech"
	"carevox/internal/store"
	"carevox/internal/stt"
	"carevox/internal/tts"
	"carevox/internal/tts/espeak"
)

func main() {
	cfg, err := config.Load(os.Args[1:])
	log.SetDefault(logging.New(os.Stdout, cfg.LogLevel))
	if err != nil {
		log.Error("Bad configuration", "err", err)
		os.Exit(1)
	}

	log.Info("Booting up")

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		log.Error("Daemon failed", "err", err)
		os.Exit(1)
	}
	log.Info("Shut down")
}

func run(ctx context.Context, cfg config.Config) error {
	backend, err := openKV(cfg)
	if err != nil {
		return err
	}
	defer backend.Close()

	st, err := store.Open(ctx, backend, store.Options{Logger: log.Default()})
	if err != nil {
		return err
	}
	log.Debug("Loaded store")

	client, err := newClient(ctx, cfg)
	if err != nil {
		return err
	}
	interp := nlu.NewInterpreter(client, func(o *nlu.Options) {
		o.Timeout = cfg.NLUTimeout
	})
	log.Debug("Loaded NLU", "backend", cfg.Backend, "model", cfg.Model)

	speaker, closeSpeaker := newSpeaker(cfg)
	defer closeSpeaker()
	announcer := announcers{logAnnouncer{}}

	var hub *bus.Bus
	if cfg.BusURL != "" {
		hub, err = bus.New(cfg.BusURL, log.Default())
		if err != nil {
			return err
		}
		defer hub.Close()
		announcer = append(announcer, hub)
	}

	dopts := dispatch.Options{
		Speaker:   speaker,
		Announcer: announcer,
		Logger:    log.Default(),
	}
	if hub != nil {
		dopts.Navigator = hub
	}
	a := newApp(st, interp, dispatch.New(st, dopts))
	a.haptic = notify.NewHaptic(cfg.Beep, log.Default())

	if engine, closeEngine := newEngine(cfg); engine != nil {
		defer closeEngine()
		a.session = speech.NewSession(engine, speech.Options{
			OnTranscript: a.onTranscript,
			OnStateChange: func(s speech.State) {
				log.Info("Speech session", "state", s)
				if hub != nil {
					hub.State(s == speech.Listening)
				}
			},
			Logger: log.Default(),
		})
		defer a.session.Close()
	}

	notifier := notify.NewNotifier(notify.NotifierOptions{
		Enabled: cfg.Notifications,
		Logger:  log.Default(),
	})
	defer notifier.Wait()
	sched := reminder.New(st, notifier, speaker, reminder.Config{
		TickInterval: cfg.Tick,
		LeadTime:     cfg.Lead,
	}, log.Default())
	sched.Start()
	defer sched.Stop()

	srv, err := ipc.Listen(cfg.Socket, log.Default())
	if err != nil {
		return err
	}
	log.Debug("Listening for control", "socket", srv.Addr())

	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return srv.Serve(ctx, a.control)
	})

	if cfg.HTTPAddr != "" {
		httpSrv := &http.Server{
			Addr: cfg.HTTPAddr,
			Handler: api.NewHandler(st, api.Options{
				Commander: a,
				Mic:       a,
				Logger:    log.Default(),
			}).Routes(),
			ReadHeaderTimeout: 10 * time.Second,
		}
		g.Go(func() error {
			log.Info("Serving HTTP API", "addr", cfg.HTTPAddr)
			if err := httpSrv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
				return fmt.Errorf("http api: %w", err)
			}
			return nil
		})
		g.Go(func() error {
			<-ctx.Done()
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return httpSrv.Shutdown(sctx)
		})
	}

	if hub != nil {
		g.Go(func() error {
			hub.Run(ctx, func(m bus.Message) {
				switch m.Kind {
				case bus.KindCommand:
					a.submit(event{text: m.Content})
				case bus.KindListen:
					a.Toggle()
				}
			})
			return nil
		})
	}

	g.Go(func() error {
		a.loop(ctx)
		return nil
	})

	log.Info("Boot up - successful")

	if cfg.Input != "" && a.session != nil {
		a.session.Start()
	}

	return g.Wait()
}

func openKV(cfg config.Config) (kv.Store, error) {
	if cfg.InMemory {
		return kv.NewMemory(), nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, err
	}
	return kv.OpenBadger(kv.BadgerOptions{Dir: filepath.Join(cfg.DataDir, "db")})
}

func newClient(ctx context.Context, cfg config.Config) (nlu.Client, error) {
	httpClient, err := proxy.NewHTTPClient(cfg.Proxy)
	if err != nil {
		return nil, err
	}
	switch cfg.Backend {
	case config.BackendOpenAI:
		return nlu.NewOpenAIClient(cfg.APIKey, cfg.Model, httpClient, log.Default())
	default:
		return nlu.NewGeminiClient(ctx, cfg.APIKey, cfg.Model, httpClient)
	}
}

// newSpeaker degrades to a log-only speaker when espeak-ng is unavailable.
func newSpeaker(cfg config.Config) (*tts.Speaker, func()) {
	engine, err := espeak.New(cfg.Voice)
	if err != nil {
		log.Warn("Speech output unavailable", "err", err)
		return tts.NewSpeaker(nil, log.Default()), func() {}
	}
	return tts.NewSpeaker(engine, log.Default()), func() {
		if err := engine.Close(); err != nil {
			log.Warn("Failed to close espeak", "err", err)
		}
	}
}

// newEngine picks the file engine for --input and the microphone otherwise.
// It returns a nil engine when speech input cannot work at all.
func newEngine(cfg config.Config) (speech.Engine, func()) {
	tr, err := stt.NewTranscriber(cfg.WhisperModel, stt.Options{InitialPrompt: stt.DefaultPrompt})
	if err != nil {
		log.Warn("Speech input unavailable", "model", cfg.WhisperModel, "err", err)
		return nil, nil
	}
	log.Debug("Loaded whisper")

	if cfg.Input != "" {
		return audio.NewFileEngine(cfg.Input, tr, log.Default()), func() { tr.Close() }
	}

	if err := audio.Init(); err != nil {
		log.Warn("Microphone unavailable", "err", err)
		tr.Close()
		return nil, nil
	}
	engine := audio.NewMicEngine(tr, audio.MicOptions{
		SilenceTimeout: 800 * time.Millisecond,
		Ducker:         audio.NewDucker(audio.DuckerOptions{Self: []string{notify.AppName}, Fade: 200 * time.Millisecond}),
		Logger:         log.Default(),
	})
	return engine, func() {
		audio.Terminate()
		tr.Close()
	}
}

type announcers []dispatch.Announcer

func (as announcers) Announce(text string) {
	for _, a := range as {
		a.Announce(text)
	}
}

type logAnnouncer struct{}

func (logAnnouncer) Announce(text string) {
	log.Info("──────── CAREVOX ────────", "say", text)
}
