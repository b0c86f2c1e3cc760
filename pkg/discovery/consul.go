// Package discovery registers services with a Consul agent.
package discovery

import (
	"fmt"
	"os"

	"github.com/hashicorp/consul/api"
	"github.com/pharmacy/pharmacy-backend/pkg/config"
	"github.com/pharmacy/pharmacy-backend/pkg/logger"
)

// ServiceConfig describes one service instance
type ServiceConfig struct {
	Name    string
	ID      string
	Address string
	Port    int
	Tags    []string
}

// Registrar registers and deregisters this instance with Consul
type Registrar struct {
	client *api.Client
	logger *logger.Logger
}

// NewRegistrar connects to the Consul agent described by cfg.
func NewRegistrar(cfg config.ConsulConfig, log *logger.Logger) (*Registrar, error) {
	apiCfg := api.DefaultConfig()
	apiCfg.Address = fmt.Sprintf("%s:%d", cfg.Host, cfg.Port)

	client, err := api.NewClient(apiCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Consul client: %w", err)
	}

	if _, err := client.Agent().Self(); err != nil {
		return nil, fmt.Errorf("failed to connect to Consul: %w", err)
	}

	log.Info().Str("address", apiCfg.Address).Msg("connected to Consul")

	return &Registrar{client: client, logger: log}, nil
}

// Register registers the service with an HTTP check against its /health endpoint
func (r *Registrar) Register(svc ServiceConfig) error {
	if err := r.client.Agent().ServiceRegister(registration(svc)); err != nil {
		return fmt.Errorf("failed to register service: %w", err)
	}

	r.logger.Info().
		Str("service", svc.Name).
		Str("service_id", svc.ID).
		Str("address", svc.Address).
		Int("port", svc.Port).
		Msg("registered service with Consul")
	return nil
}

// Deregister removes a service from Consul
func (r *Registrar) Deregister(serviceID string) error {
	if err := r.client.Agent().ServiceDeregister(serviceID); err != nil {
		return fmt.Errorf("failed to deregister service: %w", err)
	}

	r.logger.Info().Str("service_id", serviceID).Msg("deregistered service from Consul")
	return nil
}

func registration(svc ServiceConfig) *api.AgentServiceRegistration {
	return &api.AgentServiceRegistration{
		ID:      svc.ID,
		Name:    svc.Name,
		Port:    svc.Port,
		Address: svc.Address,
		Tags:    svc.Tags,
		Check: &api.AgentServiceCheck{
			HTTP:                           fmt.Sprintf("http://%s:%d/health", svc.Address, svc.Port),
			Interval:                       "10s",
			Timeout:                        "5s",
			DeregisterCriticalServiceAfter: "30s",
		},
	}
}

// RegisterService registers the named service when the registry is enabled and
// returns the matching deregistration. Registry failures are logged and never
// stop the service.
func RegisterService(cfg *config.Config, name string, log *logger.Logger) (deregister func()) {
	deregister = func() {}
	if !cfg.Consul.Enabled {
		return deregister
	}

	registrar, err := NewRegistrar(cfg.Consul, log)
	if err != nil {
		log.Error().Err(err).Msg("service registry unavailable")
		return deregister
	}

	svc := Instance(cfg, name)
	if err := registrar.Register(svc); err != nil {
		log.Error().Err(err).Msg("failed to register with Consul")
		return deregister
	}

	return func() {
		if err := registrar.Deregister(svc.ID); err != nil {
			log.Warn().Err(err).Msg("failed to deregister from Consul")
		}
	}
}

// Instance describes this process as a registry entry
func Instance(cfg *config.Config, name string) ServiceConfig {
	hostname, _ := os.Hostname()
	return ServiceConfig{
		Name:    name,
		ID:      fmt.Sprintf("%s-%s-%d", name, hostname, cfg.Server.Port),
		Address: cfg.Consul.ServiceHost,
		Port:    cfg.Server.Port,
		Tags:    []string{"pharmacy", cfg.Server.Environment},
	}
}
