package provider

import (
	"context"

	"github.com/ambaglabs/ambag/pkg/provider"
)

// TemplateGenerator produces messages from numeric fields only. It is
// both the default generator and the shape of the fallback path used
// when an external text-generation service misbehaves.
type TemplateGenerator struct{}

// NewTemplateGenerator returns a generator that never fails.
func NewTemplateGenerator() *TemplateGenerator {
	return &TemplateGenerator{}
}

// Generate renders the templated message for the given context.
func (TemplateGenerator) Generate(_ context.Context, mc provider.MessageContext) (provider.Recommendation, error) {
	return provider.Recommendation{
		Message:      provider.TemplateMessage(mc),
		UrgencyLevel: mc.Urgency,
	}, nil
}
