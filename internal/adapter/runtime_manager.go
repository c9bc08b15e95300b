package adapter

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"sync"

	"github.com/regnantlabs/regent/internal/concurrency"
	"github.com/regnantlabs/regent/internal/config"
	"github.com/regnantlabs/regent/internal/surface"
)

// RuntimeManager owns the lifecycle of every enabled chat adapter and keeps
// the surface registry in sync with what is actually running.
type RuntimeManager struct {
	mu       sync.RWMutex
	inputs   []InputAdapter
	outputs  []OutputAdapter
	registry *surface.Registry
	started  bool
}

func NewRuntimeManager(cfg config.AdaptersConfig, commander *Commander, registry *surface.Registry) (*RuntimeManager, error) {
	m := &RuntimeManager{registry: registry}

	if cfg.Slack.Enabled {
		if strings.TrimSpace(cfg.Slack.SigningSecret) == "" && strings.TrimSpace(os.Getenv("SLACK_SIGNING_SECRET")) == "" {
			return nil, fmt.Errorf("adapters.slack.signing_secret is required when slack adapter is enabled")
		}
		if strings.TrimSpace(cfg.Slack.BotToken) == "" && strings.TrimSpace(os.Getenv("SLACK_BOT_TOKEN")) == "" {
			return nil, fmt.Errorf("adapters.slack.bot_token is required when slack adapter is enabled")
		}

		slackAdapter := NewSlackAdapter(cfg.Slack.Port, cfg.Slack.SigningSecret, cfg.Slack.BotToken, commander)
		m.inputs = append(m.inputs, slackAdapter)
		m.outputs = append(m.outputs, slackAdapter)
	}

	if cfg.Telegram.Enabled {
		token := strings.TrimSpace(cfg.Telegram.BotToken)
		if token == "" {
			return nil, fmt.Errorf("adapters.telegram.bot_token is required when telegram adapter is enabled")
		}

		telegramAdapter := NewTelegramAdapter(token, commander, cfg.Telegram.UpdateTimeout)
		m.inputs = append(m.inputs, telegramAdapter)
		m.outputs = append(m.outputs, telegramAdapter)
	}

	return m, nil
}

func (m *RuntimeManager) OutputAdapters() []OutputAdapter {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]OutputAdapter, len(m.outputs))
	copy(out, m.outputs)
	return out
}

// Start registers each adapter's surface and begins its listen loop.
func (m *RuntimeManager) Start(ctx context.Context) error {
	m.mu.Lock()
	if m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = true
	inputs := make([]InputAdapter, len(m.inputs))
	copy(inputs, m.inputs)
	m.mu.Unlock()

	for _, input := range inputs {
		err := m.registry.Register(surface.Definition{
			ID:         input.Name(),
			Type:       surface.TypeDelivery,
			Name:       input.Name() + " adapter",
			Permission: surface.PermissionOperator,
		})
		if err != nil {
			return fmt.Errorf("register surface %s: %w", input.Name(), err)
		}

		adapter := input
		concurrency.SafeGo(func() {
			slog.Info("starting input adapter", "adapter", adapter.Name())
			if err := adapter.Start(ctx); err != nil && ctx.Err() == nil {
				slog.Error("input adapter stopped with error", "adapter", adapter.Name(), "error", err)
			}
		}, func(r interface{}) {
			slog.Error("input adapter panicked", "adapter", adapter.Name(), "panic", r)
		})
	}
	return nil
}

func (m *RuntimeManager) Stop(ctx context.Context) error {
	m.mu.Lock()
	if !m.started {
		m.mu.Unlock()
		return nil
	}
	m.started = false
	inputs := make([]InputAdapter, len(m.inputs))
	copy(inputs, m.inputs)
	m.mu.Unlock()

	var errs []string
	for _, input := range inputs {
		if err := input.Stop(ctx); err != nil {
			errs = append(errs, fmt.Sprintf("%s: %v", input.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("failed to stop adapters: %s", strings.Join(errs, "; "))
	}
	return nil
}

func (m *RuntimeManager) Health(ctx context.Context) error {
	m.mu.RLock()
	inputs := make([]InputAdapter, len(m.inputs))
	copy(inputs, m.inputs)
	m.mu.RUnlock()

	for _, input := range inputs {
		if err := input.Health(ctx); err != nil {
			return fmt.Errorf("adapter %s unhealthy: %w", input.Name(), err)
		}
	}
	return nil
}
