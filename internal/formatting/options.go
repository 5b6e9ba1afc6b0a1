package formatting

import (
	"fmt"
	"os"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"
)

// Options controls call-to-action and hashtag handling across platforms
type Options struct {
	AddCTA  bool   `yaml:"addCta" json:"addCta"`
	CTAText string `yaml:"ctaText" json:"ctaText,omitempty" validate:"required_if=AddCTA true"`
	CTAURL  string `yaml:"ctaUrl" json:"ctaUrl,omitempty" validate:"omitempty,url"`
	// MaxHashtags overrides the per-platform hashtag cap when positive
	MaxHashtags int `yaml:"maxHashtags" json:"maxHashtags,omitempty" validate:"gte=0"`
}

// Validate checks option consistency
func (o *Options) Validate() error {
	validate := validator.New()
	return validate.Struct(o)
}

// LoadOptions reads formatting options from a YAML file
func LoadOptions(path string) (Options, error) {
	var opts Options

	raw, err := os.ReadFile(path)
	if err != nil {
		return opts, fmt.Errorf("failed to read formatting options %s: %w", path, err)
	}
	if err := yaml.Unmarshal(raw, &opts); err != nil {
		return opts, fmt.Errorf("failed to parse formatting options %s: %w", path, err)
	}
	if err := opts.Validate(); err != nil {
		return opts, fmt.Errorf("invalid formatting options %s: %w", path, err)
	}
	return opts, nil
}

func (o Options) hashtagCap(platformDefault int) int {
	if o.MaxHashtags > 0 {
		return o.MaxHashtags
	}
	return platformDefault
}
