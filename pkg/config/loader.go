package config

import (
	"fmt"
	"time"

	"gopkg.in/ini.v1"
)

// LoadFile reads an INI file shaped like:
//
//	[timeouts]
//	pdu = 2ms
//	state_transition = 2s
//	mailbox_echo = 100ms
//	wait_loop_delay = 1ms
//	mailbox_response = 100ms
//
//	[config]
//	dc_static_sync_iterations = 500
//	retry_behaviour = 3
//
// Keys absent from the file keep DefaultConfig's value. This mirrors
// the teacher's EDS loader (od_parser.go's ini.Load + Section/Key
// walk), generalised from object-dictionary entries to the master's
// own timeout/retry tunables.
func LoadFile(path string) (Config, error) {
	f, err := ini.Load(path)
	if err != nil {
		return Config{}, fmt.Errorf("config: load %s: %w", path, err)
	}
	return fromFile(f)
}

// LoadBytes behaves like LoadFile but reads from an in-memory buffer,
// used by tests.
func LoadBytes(data []byte) (Config, error) {
	f, err := ini.Load(data)
	if err != nil {
		return Config{}, fmt.Errorf("config: load: %w", err)
	}
	return fromFile(f)
}

func fromFile(f *ini.File) (Config, error) {
	cfg := DefaultConfig()

	t := f.Section("timeouts")
	var err error
	if cfg.Timeouts.Pdu, err = durationKey(t, "pdu", cfg.Timeouts.Pdu); err != nil {
		return Config{}, err
	}
	if cfg.Timeouts.StateTransition, err = durationKey(t, "state_transition", cfg.Timeouts.StateTransition); err != nil {
		return Config{}, err
	}
	if cfg.Timeouts.MailboxEcho, err = durationKey(t, "mailbox_echo", cfg.Timeouts.MailboxEcho); err != nil {
		return Config{}, err
	}
	if cfg.Timeouts.WaitLoopDelay, err = durationKey(t, "wait_loop_delay", cfg.Timeouts.WaitLoopDelay); err != nil {
		return Config{}, err
	}
	if cfg.Timeouts.MailboxResponse, err = durationKey(t, "mailbox_response", cfg.Timeouts.MailboxResponse); err != nil {
		return Config{}, err
	}

	c := f.Section("config")
	if c.HasKey("dc_static_sync_iterations") {
		n, err := c.Key("dc_static_sync_iterations").Int()
		if err != nil {
			return Config{}, fmt.Errorf("config: dc_static_sync_iterations: %w", err)
		}
		cfg.DcStaticSyncIterations = n
	}
	if c.HasKey("retry_behaviour") {
		n, err := c.Key("retry_behaviour").Int()
		if err != nil {
			return Config{}, fmt.Errorf("config: retry_behaviour: %w", err)
		}
		cfg.RetryBehaviour = n
	}

	return cfg, nil
}

func durationKey(s *ini.Section, key string, fallback time.Duration) (time.Duration, error) {
	if !s.HasKey(key) {
		return fallback, nil
	}
	d, err := time.ParseDuration(s.Key(key).String())
	if err != nil {
		return 0, fmt.Errorf("config: %s: %w", key, err)
	}
	return d, nil
}
