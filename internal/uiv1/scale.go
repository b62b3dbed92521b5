package uiv1

import (
	"fmt"
	"log/slog"
	"strings"
)

// Scale is the overall UI size class.
type Scale uint8

const (
	ScaleSmall Scale = iota
	ScaleMedium
	ScaleLarge
)

// ScaleEnv overrides the "auto" scale setting.
const ScaleEnv = "UIV1_UI_SCALE"

func (s Scale) String() string {
	switch s {
	case ScaleSmall:
		return "small"
	case ScaleMedium:
		return "medium"
	case ScaleLarge:
		return "large"
	}
	return fmt.Sprintf("scale(%d)", uint8(s))
}

// ParseScale parses small, medium or large.
func ParseScale(s string) (Scale, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "small":
		return ScaleSmall, nil
	case "medium":
		return ScaleMedium, nil
	case "large":
		return ScaleLarge, nil
	}
	return ScaleMedium, fmt.Errorf("invalid ui scale %q", s)
}

// ResolveScale picks the scale from the configured value. "auto" or empty
// defers to the environment, which defaults to medium. Invalid values are
// logged and resolve to medium.
func ResolveScale(configured string, getenv func(string) string, logger *slog.Logger) Scale {
	if logger == nil {
		logger = slog.Default()
	}
	value := configured
	if value == "" || value == "auto" {
		value = ""
		if getenv != nil {
			value = getenv(ScaleEnv)
		}
		if value == "" {
			return ScaleMedium
		}
	}

	scale, err := ParseScale(value)
	if err != nil {
		logger.Error("invalid ui scale, using medium", "value", value)
	}
	return scale
}
