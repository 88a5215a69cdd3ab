package gateway

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"sync"
)

// Manual is the gateway recorded on admin-created memberships and free
// checkouts. It never receives webhooks.
const Manual = "manual"

type Config struct {
	Name          string `json:"name"`
	DisplayName   string `json:"display_name"`
	WebhookSecret string `json:"webhook_secret"`
	Enabled       bool   `json:"enabled"`
}

type GatewaysFile struct {
	Gateways []Config `json:"gateways"`
}

type Registry struct {
	mu       sync.RWMutex
	gateways map[string]*Config
}

func NewRegistry() *Registry {
	return &Registry{
		gateways: make(map[string]*Config),
	}
}

func LoadFromFile(path string) (*Registry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read gateways config: %w", err)
	}

	var file GatewaysFile
	if err := json.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse gateways config: %w", err)
	}

	registry := NewRegistry()
	for i := range file.Gateways {
		if file.Gateways[i].Name == "" {
			return nil, fmt.Errorf("gateway %d has no name", i)
		}
		registry.Register(&file.Gateways[i])
	}
	return registry, nil
}

func (r *Registry) Register(cfg *Config) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.gateways[cfg.Name] = cfg
}

func (r *Registry) Get(name string) *Config {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.gateways[name]
}

// Enabled reports whether name is registered and accepting traffic. The
// manual gateway is always available.
func (r *Registry) Enabled(name string) bool {
	if name == Manual {
		return true
	}
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.gateways[name]
	return ok && cfg.Enabled
}

// Names returns the registered gateways in a stable order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.gateways)
}

func (r *Registry) WebhookSecret(name string) string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	cfg, ok := r.gateways[name]
	if !ok {
		return ""
	}
	return cfg.WebhookSecret
}
