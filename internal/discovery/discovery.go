// Package discovery enumerates scanner devices through a platform-keyed
// provider strategy instead of inline branching on the host OS. Each
// provider models one platform enumeration protocol.
package discovery

import (
	"context"
	"fmt"
	"runtime"
	"sort"
	"sync"

	"github.com/scanhub/scanhub/internal/model"
)

// Provider is the interface all discovery strategies implement.
type Provider interface {
	// Discover enumerates the devices visible to this provider. The context
	// carries cancellation for the simulated protocol delays.
	Discover(ctx context.Context) ([]model.Device, error)

	// APILabel reports the platform scanning API this provider models
	// (WIA, ImageCaptureCore, SANE).
	APILabel() string
}

// ProviderInfo pairs a platform key with its provider's API label.
type ProviderInfo struct {
	Platform string `json:"platform"`
	APILabel string `json:"api_label"`
}

// Providers holds registered discovery providers keyed by platform.
type Providers struct {
	mu        sync.RWMutex
	providers map[string]Provider
}

// NewProviders creates an empty provider registry.
func NewProviders() *Providers {
	return &Providers{
		providers: make(map[string]Provider),
	}
}

// Register adds a provider for the given platform key.
func (p *Providers) Register(platform string, prov Provider) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.providers[platform] = prov
}

// Resolve returns the provider for the given platform.
func (p *Providers) Resolve(platform string) (Provider, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	prov, ok := p.providers[platform]
	if !ok {
		return nil, fmt.Errorf("no discovery provider for platform %q", platform)
	}
	return prov, nil
}

// List returns information about all registered providers, sorted by
// platform for a stable API response.
func (p *Providers) List() []ProviderInfo {
	p.mu.RLock()
	defer p.mu.RUnlock()

	infos := make([]ProviderInfo, 0, len(p.providers))
	for platform, prov := range p.providers {
		infos = append(infos, ProviderInfo{
			Platform: platform,
			APILabel: prov.APILabel(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].Platform < infos[j].Platform
	})
	return infos
}

// HostPlatform maps the running OS to a system class, defaulting to linux
// for anything that is not windows or darwin.
func HostPlatform() string {
	switch runtime.GOOS {
	case "windows":
		return model.SystemWindows
	case "darwin":
		return model.SystemMacOS
	default:
		return model.SystemLinux
	}
}
