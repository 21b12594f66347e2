package engine

import (
	"fmt"
	"time"

	"github.com/edekker/vigil/pkg/models"
)

// Config controls rule filtering, scheduling, and execution defaults.
type Config struct {
	// EnabledCategories is the allow-list of rule categories to run. Empty
	// means every known category.
	EnabledCategories []models.Category
	// MaxConcurrentValidations caps how many rules run at once inside a
	// dependency batch.
	MaxConcurrentValidations int
	// Timeout bounds a single rule execution attempt when the rule sets no
	// timeout of its own.
	Timeout time.Duration
	// Retries is the number of re-attempts after a failed execution when
	// the rule sets no count of its own.
	Retries int
	// RetryBaseDelay is the unit of the linear wait between attempts: the
	// wait after attempt n is RetryBaseDelay * (n+1).
	RetryBaseDelay time.Duration
	// FailOnError makes ValidateTask return an error when any rule in the
	// report failed. The report is still returned alongside the error.
	FailOnError bool
	// ReportingEnabled attaches the per-category result lists to the
	// report summaries. Counts are always populated.
	ReportingEnabled bool
	// StrictDependencies skips rules whose dependencies failed instead of
	// running them. The historical behavior, kept as the default, gates
	// dependents on completion only.
	StrictDependencies bool
	// Mode is the execution-mode tag attached to report metadata.
	Mode string
}

// DefaultConfig returns the recommended engine configuration.
func DefaultConfig() Config {
	return Config{
		EnabledCategories:        models.Categories(),
		MaxConcurrentValidations: 3,
		Timeout:                  30 * time.Second,
		Retries:                  2,
		RetryBaseDelay:           time.Second,
		ReportingEnabled:         true,
		Mode:                     "concurrent",
	}
}

// withDefaults fills in zero-valued fields without overriding explicit
// choices.
func (c Config) withDefaults() Config {
	if len(c.EnabledCategories) == 0 {
		c.EnabledCategories = models.Categories()
	}
	if c.MaxConcurrentValidations <= 0 {
		c.MaxConcurrentValidations = 3
	}
	if c.Timeout <= 0 {
		c.Timeout = 30 * time.Second
	}
	if c.Retries < 0 {
		c.Retries = 0
	}
	if c.RetryBaseDelay <= 0 {
		c.RetryBaseDelay = time.Second
	}
	if c.Mode == "" {
		c.Mode = "concurrent"
	}
	return c
}

// Validate reports configuration the engine cannot act on.
func (c Config) Validate() error {
	for _, cat := range c.EnabledCategories {
		if !cat.Valid() {
			return fmt.Errorf("invalid enabled category %q", cat)
		}
	}
	return nil
}
