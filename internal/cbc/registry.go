package cbc

import (
	"fmt"
	"time"

	"github.com/alphagov/emergency-alerts-api-sub001/internal/types"
)

// Family identifies a payload family.
type Family string

const (
	FamilyCAP  Family = FormatCAP
	FamilyIBAG Family = FormatIBAG
)

// providerFamilies maps each provider to its payload family.
var providerFamilies = map[types.Provider]Family{
	types.ProviderEE:       FamilyCAP,
	types.ProviderThree:    FamilyCAP,
	types.ProviderO2:       FamilyCAP,
	types.ProviderVodafone: FamilyIBAG,
}

// FamilyOf returns the payload family of p.
func FamilyOf(p types.Provider) (Family, bool) {
	f, ok := providerFamilies[p]
	return f, ok
}

// ProxyNames resolves the proxy Lambda names of a provider.
type ProxyNames func(p types.Provider) (primary, secondary string, ok bool)

// Registry holds one Client per configured provider.
type Registry struct {
	clients map[types.Provider]*Client
}

// NewRegistry builds clients for providers. names supplies the proxy
// function names; numbers backs the IBAG message number sequence.
func NewRegistry(providers []types.Provider, names ProxyNames, api LambdaInvoker, numbers MessageNumberSource, timeout time.Duration, logger types.Logger) (*Registry, error) {
	r := &Registry{clients: make(map[types.Provider]*Client, len(providers))}
	for _, p := range providers {
		family, ok := FamilyOf(p)
		if !ok {
			return nil, fmt.Errorf("no payload family for provider %q", p)
		}
		primary, secondary, ok := names(p)
		if !ok || primary == "" {
			return nil, fmt.Errorf("no proxy lambda configured for provider %q", p)
		}

		c := &Client{
			provider:  p,
			transport: NewTransport(p, primary, secondary, api, timeout, logger),
			numbers:   numbers,
		}
		switch family {
		case FamilyIBAG:
			c.formatter = ibagFormatter{}
			c.sequenced = true
		default:
			c.formatter = capFormatter{}
		}
		r.clients[p] = c
	}
	return r, nil
}

// Client returns the client for p.
func (r *Registry) Client(p types.Provider) (*Client, error) {
	c, ok := r.clients[p]
	if !ok {
		return nil, fmt.Errorf("no cbc client for provider %q", p)
	}
	return c, nil
}
