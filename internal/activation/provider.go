// Package activation supplies activation codes for new downloads.
package activation

import (
	"context"

	"esims/internal/provisioning/models"
)

// Provider returns the activation code a carrier has issued for this device.
type Provider interface {
	ActivationCode(ctx context.Context) (string, error)
}

// Static always returns the same code.
type Static struct {
	code string
}

// NewStatic validates code and returns a provider for it.
func NewStatic(code string) (*Static, error) {
	if err := models.ValidateActivationCode(code); err != nil {
		return nil, err
	}
	return &Static{code: code}, nil
}

// ActivationCode implements Provider.
func (s *Static) ActivationCode(context.Context) (string, error) {
	return s.code, nil
}
