package features

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/samber/lo"
)

// Flag represents a feature flag with metadata
type Flag struct {
	Name        string    `json:"name"`
	Enabled     bool      `json:"enabled"`
	Description string    `json:"description"`
	UpdatedAt   time.Time `json:"updated_at"`
	Tags        []string  `json:"tags,omitempty"`
}

const (
	// FlagScheduledMessages allows messages to carry a future delivery time.
	FlagScheduledMessages = "scheduled_messages"
	// FlagTypingIndicators relays typing presence between sessions.
	FlagTypingIndicators = "typing_indicators"
	// FlagTranslation enables the message translation endpoint.
	FlagTranslation = "translation"
)

// EnvPrefix is the prefix of per-flag environment overrides, e.g.
// CHITCHAT_FEATURE_TRANSLATION=false.
const EnvPrefix = "CHITCHAT_FEATURE_"

// FlagDefinition contains metadata about a flag
type FlagDefinition struct {
	Name         string
	Description  string
	DefaultValue bool
	Tags         []string
}

var DefaultFlags = []FlagDefinition{
	{FlagScheduledMessages, "Accept scheduledFor on submitted messages", true, []string{"messaging"}},
	{FlagTypingIndicators, "Relay typing-started/typing-stopped presence events", true, []string{"fanout"}},
	{FlagTranslation, "Enable message translation", true, []string{"messaging", "external"}},
}

// FlagManager manages feature flags with thread-safe operations
type FlagManager struct {
	flags map[string]*Flag
	mu    sync.RWMutex
}

// NewFlagManager returns a manager holding every default flag.
func NewFlagManager() *FlagManager {
	fm := &FlagManager{flags: make(map[string]*Flag)}
	now := time.Now()
	for _, def := range DefaultFlags {
		fm.flags[def.Name] = &Flag{
			Name:        def.Name,
			Enabled:     def.DefaultValue,
			Description: def.Description,
			UpdatedAt:   now,
			Tags:        def.Tags,
		}
	}
	return fm
}

// IsEnabled reports whether a flag is on. Unknown flags are off. A nil
// manager treats every flag as enabled.
func (fm *FlagManager) IsEnabled(flagName string) bool {
	if fm == nil {
		return true
	}
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	flag, exists := fm.flags[flagName]
	return exists && flag.Enabled
}

func (fm *FlagManager) Enable(flagName string) error {
	return fm.set(flagName, true)
}

func (fm *FlagManager) Disable(flagName string) error {
	return fm.set(flagName, false)
}

func (fm *FlagManager) set(flagName string, enabled bool) error {
	fm.mu.Lock()
	defer fm.mu.Unlock()

	flag, exists := fm.flags[flagName]
	if !exists {
		return ErrFlagNotFound{Name: flagName}
	}
	flag.Enabled = enabled
	flag.UpdatedAt = time.Now()
	return nil
}

// LoadFromConfig applies the "features" section of the config file.
// Unknown names are rejected so typos do not silently pass.
func (fm *FlagManager) LoadFromConfig(values map[string]bool) error {
	fm.mu.RLock()
	unknown := lo.Filter(lo.Keys(values), func(name string, _ int) bool {
		_, ok := fm.flags[name]
		return !ok
	})
	fm.mu.RUnlock()
	if len(unknown) > 0 {
		sort.Strings(unknown)
		return fmt.Errorf("unknown feature flags: %s", strings.Join(unknown, ", "))
	}

	for name, enabled := range values {
		if err := fm.set(name, enabled); err != nil {
			return err
		}
	}
	return nil
}

// LoadFromEnvironment applies CHITCHAT_FEATURE_<NAME>=true|false overrides.
// Malformed values and unknown names are ignored.
func (fm *FlagManager) LoadFromEnvironment() {
	for _, env := range os.Environ() {
		key, value, ok := strings.Cut(env, "=")
		if !ok || !strings.HasPrefix(key, EnvPrefix) {
			continue
		}
		enabled, err := strconv.ParseBool(value)
		if err != nil {
			continue
		}
		_ = fm.set(strings.ToLower(strings.TrimPrefix(key, EnvPrefix)), enabled)
	}
}

// ListFlags returns copies of all flags sorted by name.
func (fm *FlagManager) ListFlags() []Flag {
	fm.mu.RLock()
	defer fm.mu.RUnlock()

	result := make([]Flag, 0, len(fm.flags))
	for _, flag := range fm.flags {
		flagCopy := *flag
		flagCopy.Tags = append([]string(nil), flag.Tags...)
		result = append(result, flagCopy)
	}
	sort.Slice(result, func(i, j int) bool { return result[i].Name < result[j].Name })
	return result
}

type ErrFlagNotFound struct {
	Name string
}

func (e ErrFlagNotFound) Error() string {
	return "feature flag not found: " + e.Name
}
