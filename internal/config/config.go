// Package config loads bridge settings from a YAML file overlaid with
// command-line flags.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/v2"
	"github.com/samber/oops"
	"github.com/spf13/pflag"

	"github.com/joeblew999/plat-mapbridge/internal/assets"
	"github.com/joeblew999/plat-mapbridge/internal/model"
)

// Config is the bridge configuration.
type Config struct {
	Mapbox  Mapbox            `koanf:"mapbox"`
	Plugins map[string]Bundle `koanf:"plugins"`
	Assets  Assets            `koanf:"assets"`
	Relay   Relay             `koanf:"relay"`
}

// Mapbox configures the wrapped library.
type Mapbox struct {
	AccessToken string `koanf:"access_token"`
	Style       string `koanf:"style"`
	LibraryJS   string `koanf:"library_js"`
	LibraryCSS  string `koanf:"library_css"`
}

// Bundle locates a plugin's script and stylesheet.
type Bundle struct {
	JS  string `koanf:"js"`
	CSS string `koanf:"css"`
}

// Assets configures bundle fetching.
type Assets struct {
	Attempts int           `koanf:"attempts"`
	Timeout  time.Duration `koanf:"timeout"`
	Backoff  time.Duration `koanf:"backoff"`
}

// Relay configures event delivery to host subscribers.
type Relay struct {
	Buffer int `koanf:"buffer"`
}

// Default returns the built-in configuration.
func Default() Config {
	src := assets.DefaultSources()
	plugins := make(map[string]Bundle)
	for _, kind := range model.PluginKinds() {
		names := assets.PluginAssets(kind)
		plugins[string(kind)] = Bundle{CSS: src[names[0]], JS: src[names[1]]}
	}
	return Config{
		Mapbox: Mapbox{
			Style:      model.StyleStreets,
			LibraryJS:  src[assets.LibraryJS],
			LibraryCSS: src[assets.LibraryCSS],
		},
		Plugins: plugins,
		Assets:  Assets{Attempts: 3, Timeout: 30 * time.Second, Backoff: 200 * time.Millisecond},
		Relay:   Relay{Buffer: 64},
	}
}

// RegisterFlags adds the overridable settings to fs.
func RegisterFlags(fs *pflag.FlagSet) {
	d := Default()
	fs.String("mapbox.access-token", d.Mapbox.AccessToken, "Map library access token")
	fs.String("mapbox.style", d.Mapbox.Style, "Default style URL")
	fs.Int("assets.attempts", d.Assets.Attempts, "Tries per asset fetch")
	fs.Duration("assets.timeout", d.Assets.Timeout, "Timeout per asset fetch attempt")
	fs.Int("relay.buffer", d.Relay.Buffer, "Events queued per stream subscriber")
}

// Load reads the YAML file at path, when set, then applies flags that were
// set explicitly or name keys the file lacks.
func Load(path string, fs *pflag.FlagSet) (Config, error) {
	k := koanf.New(".")
	if path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return Config{}, oops.With("path", path).Wrapf(err, "load config file")
		}
	}
	if fs != nil {
		flags := posflag.ProviderWithFlag(fs, ".", k, func(f *pflag.Flag) (string, any) {
			if !strings.Contains(f.Name, ".") {
				return "", nil
			}
			return strings.ReplaceAll(f.Name, "-", "_"), posflag.FlagVal(fs, f)
		})
		if err := k.Load(flags, nil); err != nil {
			return Config{}, oops.Wrapf(err, "load flags")
		}
	}

	cfg := Default()
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, oops.With("path", path).Wrapf(err, "decode config")
	}
	if err := cfg.Validate(); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

// Validate checks the settings.
func (c Config) Validate() error {
	var problems []string
	if c.Mapbox.LibraryJS == "" || c.Mapbox.LibraryCSS == "" {
		problems = append(problems, "mapbox.library_js and mapbox.library_css are required")
	}
	for name, b := range c.Plugins {
		if !model.PluginKind(name).Valid() {
			problems = append(problems, fmt.Sprintf("unknown plugin %q", name))
		} else if b.JS == "" || b.CSS == "" {
			problems = append(problems, fmt.Sprintf("plugin %s needs js and css", name))
		}
	}
	if c.Assets.Attempts < 1 {
		problems = append(problems, "assets.attempts must be at least 1")
	}
	if c.Assets.Timeout <= 0 {
		problems = append(problems, "assets.timeout must be positive")
	}
	if c.Relay.Buffer < 1 {
		problems = append(problems, "relay.buffer must be at least 1")
	}
	if len(problems) > 0 {
		return oops.Code("INVALID_CONFIG").With("problems", problems).Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// Sources returns the asset table for the asset cache.
func (c Config) Sources() map[string]string {
	src := map[string]string{
		assets.LibraryJS:  c.Mapbox.LibraryJS,
		assets.LibraryCSS: c.Mapbox.LibraryCSS,
	}
	for name, b := range c.Plugins {
		names := assets.PluginAssets(model.PluginKind(name))
		src[names[0]] = b.CSS
		src[names[1]] = b.JS
	}
	return src
}
