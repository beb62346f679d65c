package message

import (
	"errors"
	"sort"
	"strings"

	"go.uber.org/zap"
)

type flattenConfig struct {
	prefix    string
	prefixSet bool
	baseline  *Object
}

type FlattenOption func(*flattenConfig)

// WithPrefix sets the prefix prepended to every source key. Pass "" to
// flatten without a prefix on purpose.
func WithPrefix(prefix string) FlattenOption {
	return func(c *flattenConfig) {
		c.prefix = prefix
		c.prefixSet = true
	}
}

// WithBaseline suppresses keys whose string value equals the one already
// present in baseline, usually the batch's common properties.
func WithBaseline(baseline *Object) FlattenOption {
	return func(c *flattenConfig) {
		c.baseline = baseline
	}
}

// Flatten writes every entry of src into dst as lowercase(prefix+key) mapped
// to the value's string form. Source keys are visited in ascending order.
//
// A nil src or dst is a no-op. Values that cannot be rendered are skipped and
// reported together in the returned error; every other key is still written.
func (b *Builder) Flatten(dst *Object, src map[string]any, opts ...FlattenOption) error {
	if src == nil || dst == nil {
		return nil
	}

	var cfg flattenConfig
	for _, opt := range opts {
		opt(&cfg)
	}
	if !cfg.prefixSet {
		b.logger.Warn("Unfolding properties without a prefix, make sure the keys are unique",
			zap.Int("properties", len(src)),
		)
	}

	keys := make([]string, 0, len(src))
	for k := range src {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	var errs []error
	for _, key := range keys {
		flatKey := strings.ToLower(cfg.prefix + key)

		value, err := stringify(src[key])
		if err != nil {
			errs = append(errs, &PropertyError{Key: flatKey, Err: err})
			continue
		}

		if cfg.baseline != nil {
			if common, ok := cfg.baseline.GetString(flatKey); ok && common == value {
				continue
			}
		}

		dst.Put(flatKey, value)
	}

	return errors.Join(errs...)
}
