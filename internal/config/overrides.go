package config

// Overrides are values taken from flags or the environment. Empty or zero
// fields leave the file value alone.
type Overrides struct {
	Addr              string
	BasePath          string
	ReasoningMode     string
	ReasoningURL      string
	ReasoningTimeout  int
	ReasoningModel    string
	ReasoningAPIKey   string
	DirectoryURL      string
	DirectorySnapshot string
	LogLevel          string
	LogFormat         string
}

// Apply writes the non-empty overrides into c and revalidates.
func (o Overrides) Apply(c *Config) error {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Server.Addr, o.Addr)
	set(&c.Server.BasePath, o.BasePath)
	set(&c.Reasoning.Mode, o.ReasoningMode)
	set(&c.Reasoning.BaseURL, o.ReasoningURL)
	set(&c.Reasoning.Model, o.ReasoningModel)
	set(&c.Reasoning.APIKey, o.ReasoningAPIKey)
	set(&c.Directory.BaseURL, o.DirectoryURL)
	set(&c.Directory.SnapshotPath, o.DirectorySnapshot)
	set(&c.Log.Level, o.LogLevel)
	set(&c.Log.Format, o.LogFormat)
	if o.ReasoningTimeout > 0 {
		c.Reasoning.TimeoutMS = o.ReasoningTimeout
	}
	return c.Validate()
}
