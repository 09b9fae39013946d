package main

import (
	"errors"
	"io"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	monitoring "github.com/adit-codes/vyuhathon-final-health-monitoring"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/client"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/config"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/flow"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/logging"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/notify"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/runner"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/session"
	"github.com/adit-codes/vyuhathon-final-health-monitoring/workflow"
)

// runtime is the wired application shared by every command.
type runtime struct {
	cfg          config.Config
	logger       logging.Logger
	sessions     *session.Store[workflow.State]
	controller   *workflow.Controller
	recoverPanic func(funcName string, fields ...map[string]any)
	closers      []io.Closer
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func newRuntime(cli CLI) (*runtime, error) {
	cfg, err := config.Load(config.LoadOptions{EnvFile: cli.EnvFile, ConfigFile: cli.Config})
	if err != nil {
		return nil, err
	}
	if lvl := strings.TrimSpace(cli.LogLevel); lvl != "" {
		cfg.Log.Level = lvl
	}
	if driver := strings.TrimSpace(cli.Store); driver != "" {
		cfg.Store.Driver = driver
	}

	rt := &runtime{cfg: cfg}
	logger, logCloser := logging.New(cfg.LogOptions())
	rt.logger = logger
	rt.closers = append(rt.closers, logCloser)
	rt.recoverPanic = monitoring.MakePanicHandler(func(funcName string, err any, stack []byte, fields ...map[string]any) {
		logger.Error(monitoring.FormatPanic(funcName, err, stack, fields...))
	})

	backend, dbCloser, err := session.OpenBackend(cfg.Store.Driver, cfg.Store.Path)
	if err != nil {
		rt.Close()
		return nil, err
	}
	rt.closers = append(rt.closers, dbCloser)
	rt.sessions = session.New[workflow.State](backend,
		session.WithTTL(cfg.Store.SessionTTL),
		session.WithLogger(logger),
	)

	sender := client.New(cfg.Endpoints(),
		client.WithLogger(logger),
		client.WithTimeout(cfg.HTTP.Timeout),
		client.WithMultipartBatches(cfg.HTTP.BatchMultipart),
		client.WithFetchRetries(cfg.HTTP.FetchRetries, runner.ExponentialBackoffStrategy{
			Base: 250 * time.Millisecond, Factor: 2, Max: 4 * time.Second,
		}),
	)

	var hooks []flow.TransitionLifecycleHook
	if cfg.MQTT.Enabled() {
		mq, err := notify.Connect(cfg.MQTT, logger)
		if err != nil {
			// events are best effort, the workflow runs without them
			logger.Warn("MQTT unavailable, lifecycle events will not be published: %v", err)
		} else {
			rt.closers = append(rt.closers, disconnect(mq))
			hooks = append(hooks, notify.NewHook(mq, cfg.MQTT.Topic, notify.WithLogger(logger)))
		}
	}

	rt.controller, err = workflow.NewController(rt.sessions, sender,
		workflow.WithLogger(logger),
		workflow.WithLifecycleHooks(hooks...),
	)
	if err != nil {
		rt.Close()
		return nil, err
	}
	return rt, nil
}

func disconnect(c mqtt.Client) io.Closer {
	return closerFunc(func() error {
		c.Disconnect(250)
		return nil
	})
}

// Close releases resources in reverse order of acquisition.
func (rt *runtime) Close() error {
	var errs []error
	for i := len(rt.closers) - 1; i >= 0; i-- {
		if err := rt.closers[i].Close(); err != nil {
			errs = append(errs, err)
		}
	}
	rt.closers = nil
	return errors.Join(errs...)
}
