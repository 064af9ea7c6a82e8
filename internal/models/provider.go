package models

// GymProvider is a row of the provider directory.
type GymProvider struct {
	State        string `json:"state" yaml:"state"`
	ProviderName string `json:"provider_name" yaml:"provider_name"`
}
