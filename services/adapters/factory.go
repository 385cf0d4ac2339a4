package adapters

import (
	"fmt"

	"visaflow/config"
	"visaflow/models"
)

// Build turns one adapter definition into its registry descriptor and its
// unguarded implementation.
func Build(cfg config.AdapterConfig) (models.AdapterDescriptor, Adapter, error) {
	desc := Describe(cfg)
	if cfg.ID == "" {
		return desc, nil, fmt.Errorf("adapter definition without id")
	}
	if cfg.BaseURL == "" {
		return desc, nil, fmt.Errorf("adapter %s: baseUrl is required", cfg.ID)
	}

	opts := []Option{WithRateLimit(cfg.RateLimitPerMinute)}
	if cfg.Timeout > 0 {
		opts = append(opts, WithHTTPTimeout(cfg.Timeout))
	}
	if cfg.UserAgent != "" {
		opts = append(opts, WithUserAgent(cfg.UserAgent))
	}

	switch desc.Kind {
	case models.KindOfficial:
		return desc, NewOfficialAdapter(cfg.ID, cfg.BaseURL, cfg.APIKey, opts...), nil
	case models.KindPartner:
		return desc, NewPartnerAdapter(cfg.ID, cfg.BaseURL, cfg.APIKey, opts...), nil
	case models.KindScraping:
		return desc, NewScrapingAdapter(cfg.ID, cfg.BaseURL, opts...), nil
	default:
		return desc, nil, fmt.Errorf("adapter %s: unknown kind %q", cfg.ID, cfg.Kind)
	}
}

// Describe maps an adapter definition onto a registry descriptor.
func Describe(cfg config.AdapterConfig) models.AdapterDescriptor {
	coverage := make([]models.Coverage, 0, len(cfg.Coverage))
	for _, c := range cfg.Coverage {
		coverage = append(coverage, models.Coverage{Country: c.Country, VisaTypes: c.VisaTypes})
	}
	name := cfg.Name
	if name == "" {
		name = cfg.ID
	}
	return models.AdapterDescriptor{
		ID:          cfg.ID,
		Name:        name,
		Kind:        models.AdapterKind(cfg.Kind),
		Coverage:    coverage,
		Reliability: cfg.Reliability,
		AvgLatency:  cfg.AvgLatency,
		Pricing: models.Pricing{
			Setup:          cfg.Pricing.Setup,
			Monthly:        cfg.Pricing.Monthly,
			PerTransaction: cfg.Pricing.PerTransaction,
		},
		Enabled:           cfg.Enabled,
		LegalConfirmation: cfg.LegalConfirmation,
		MaxUrgency:        models.Urgency(cfg.MaxUrgency),
		Healthy:           true,
	}
}
