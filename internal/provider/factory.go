package provider

import (
	"fmt"
	"sync"

	"github.com/ignite/outreach-orchestrator/internal/config"
	"github.com/ignite/outreach-orchestrator/internal/pkg/logger"
)

// Factory instantiates providers on first use and caches one instance per
// channel slot. Provider selection comes from configuration; construction
// validates config before the instance is cached.
type Factory struct {
	mu  sync.Mutex
	cfg *config.Config

	email    EmailProvider
	linkedin LinkedInProvider
	video    VideoProvider
}

// NewFactory creates a factory bound to the given configuration.
func NewFactory(cfg *config.Config) *Factory {
	return &Factory{cfg: cfg}
}

var (
	defaultFactory *Factory
	defaultOnce    sync.Once
)

// Default returns the process-wide factory, initializing it on first call.
func Default(cfg *config.Config) *Factory {
	defaultOnce.Do(func() {
		defaultFactory = NewFactory(cfg)
	})
	return defaultFactory
}

// CreateEmailProvider returns the configured email provider, constructing
// and caching it on first call.
func (f *Factory) CreateEmailProvider() (EmailProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.email != nil {
		return f.email, nil
	}

	name := f.cfg.Providers.Email
	var p EmailProvider
	switch name {
	case "lemlist":
		p = NewLemlist(f.cfg.Providers.Lemlist)
	case "postmark":
		p = NewPostmark(f.cfg.Providers.Postmark)
	case "smartlead", "instantly":
		return nil, NewConfigError(name, fmt.Sprintf("%s is not yet implemented, available in a later phase", name))
	default:
		return nil, NewConfigError(name, fmt.Sprintf("unknown email provider %q", name))
	}

	if err := p.ValidateConfig(); err != nil {
		return nil, err
	}
	f.email = p
	logger.Info("[ProviderFactory] email provider initialized", "provider", name)
	return p, nil
}

// CreateLinkedInProvider returns the configured LinkedIn provider,
// constructing and caching it on first call.
func (f *Factory) CreateLinkedInProvider() (LinkedInProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.linkedin != nil {
		return f.linkedin, nil
	}

	name := f.cfg.Providers.LinkedIn
	var p LinkedInProvider
	switch name {
	case "phantombuster":
		p = NewPhantomBuster(f.cfg.Providers.PhantomBuster)
	case "expandi":
		return nil, NewConfigError(name, "expandi is not yet implemented, available in a later phase")
	default:
		return nil, NewConfigError(name, fmt.Sprintf("unknown linkedin provider %q", name))
	}

	if err := p.ValidateConfig(); err != nil {
		return nil, err
	}
	f.linkedin = p
	logger.Info("[ProviderFactory] linkedin provider initialized", "provider", name)
	return p, nil
}

// CreateVideoProvider returns the configured video provider, constructing
// and caching it on first call.
func (f *Factory) CreateVideoProvider() (VideoProvider, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.video != nil {
		return f.video, nil
	}

	name := f.cfg.Providers.Video
	var p VideoProvider
	switch name {
	case "heygen":
		p = NewHeyGen(f.cfg.Providers.HeyGen)
	case "synthesia":
		return nil, NewConfigError(name, "synthesia is not yet implemented, available in a later phase")
	default:
		return nil, NewConfigError(name, fmt.Sprintf("unknown video provider %q", name))
	}

	if err := p.ValidateConfig(); err != nil {
		return nil, err
	}
	f.video = p
	logger.Info("[ProviderFactory] video provider initialized", "provider", name)
	return p, nil
}

// ClearCache drops all cached instances. The next Create call rebuilds from
// the current configuration.
func (f *Factory) ClearCache() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.email = nil
	f.linkedin = nil
	f.video = nil
}

// Reload swaps the configuration and drops cached instances, for
// config-reload flows.
func (f *Factory) Reload(cfg *config.Config) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cfg = cfg
	f.email = nil
	f.linkedin = nil
	f.video = nil
}
