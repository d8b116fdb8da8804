package polyglot

// Configuration holds the resolution switches of an engine.
type Configuration struct {
	// RaiseOnMissingResource makes a missing message without a default an
	// error instead of the "???name???" placeholder.
	RaiseOnMissingResource bool
	// CacheInstances shares one instance per (contract, locale, provider).
	CacheInstances bool
}

// DefaultConfiguration is the configuration engines start with.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		RaiseOnMissingResource: false,
		CacheInstances:         true,
	}
}

// Configuration returns a copy of the current configuration.
func (e *Engine) Configuration() Configuration {
	return *e.config.Load()
}

// SetConfiguration replaces the configuration of e. Later calls on existing
// instances observe the new values.
func (e *Engine) SetConfiguration(cfg *Configuration) error {
	if cfg == nil {
		return invalidArgument("configuration is nil")
	}
	c := *cfg
	e.config.Store(&c)
	return nil
}
