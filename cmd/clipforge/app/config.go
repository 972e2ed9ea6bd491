package app

import (
	"fmt"
	"os"
	"path"
	"strings"

	"github.com/knadh/koanf"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/posflag"
	"github.com/knadh/koanf/providers/structs"

	"github.com/clipforge/clipforge/pkg/logging"
	"github.com/spf13/pflag"
)

type ServerConfig struct {
	LogFormat     string `json:"logformat"`
	LogLevel      string `json:"loglevel"`
	Port          int    `json:"port"`
	TimeoutS      int    `json:"timeoutS"`
	DataDir       string `json:"datadir"`
	PromptDir     string `json:"promptdir"`
	FFmpegPath    string `json:"ffmpeg"`
	FFprobePath   string `json:"ffprobe"`
	MaxConcurrent int    `json:"maxconcurrent"`
	MaxRequests   int    `json:"maxrequests"`
	ReqLimitIntS  int    `json:"reqlimitintS"`
	CertPath      string `json:"certpath"`
	KeyPath       string `json:"keypath"`
}

var DefaultConfig = ServerConfig{
	LogFormat:     "text",
	LogLevel:      "info",
	Port:          8787,
	TimeoutS:      0,
	DataDir:       "./data",
	PromptDir:     "./prompts",
	FFmpegPath:    "ffmpeg",
	FFprobePath:   "ffprobe",
	MaxConcurrent: 1,
	MaxRequests:   0,
	ReqLimitIntS:  60,
}

// LoadConfig loads defaults, config file, command line, and finally applies environment variables.
//
// DataDir and PromptDir are made absolute relative to cwd.
func LoadConfig(args []string, cwd string) (*ServerConfig, error) {
	// First set default values
	k := koanf.New(".")
	defaults := DefaultConfig
	k.Load(structs.Provider(defaults, "json"), nil)

	f := pflag.NewFlagSet("clipforge", pflag.ContinueOnError)
	f.Usage = func() {
		parts := strings.Split(args[0], "/")
		name := parts[len(parts)-1]
		fmt.Fprintf(os.Stderr, "Run as %s [options]:\n", name)
		f.PrintDefaults()
	}
	// Path to a config file to load into koanf along with some config params.
	cfgFile := f.String("cfg", "", "path to a JSON config file")
	f.Int("port", k.Int("port"), "HTTP port")
	lf := strings.Join(logging.LogFormats, ", ")
	f.String("logformat", k.String("logformat"), fmt.Sprintf("log format [%s]", lf))
	ll := strings.Join(logging.LogLevels, ", ")
	f.String("loglevel", k.String("loglevel"), fmt.Sprintf("log level [%s]", ll))
	f.String("datadir", k.String("datadir"), "root directory for projects and settings")
	f.String("promptdir", k.String("promptdir"), "directory with per-category prompt files")
	f.String("ffmpeg", k.String("ffmpeg"), "ffmpeg binary")
	f.String("ffprobe", k.String("ffprobe"), "ffprobe binary")
	f.Int("maxconcurrent", k.Int("maxconcurrent"), "max number of concurrently processing projects")
	f.Int("maxrequests", k.Int("maxrequests"), "max nr of requests per IP address per interval (0 = no limit)")
	f.Int("timeout", k.Int("timeoutS"), "timeout for all requests (seconds, 0 = no timeout)")
	if err := f.Parse(args[1:]); err != nil {
		return nil, fmt.Errorf("command line parse: %w", err)
	}

	// Load the config file provided on the command line.
	if *cfgFile != "" {
		cf := file.Provider(*cfgFile)
		if err := k.Load(cf, json.Parser()); err != nil {
			return nil, fmt.Errorf("load config file: %w", err)
		}
	}

	// Possibly override config file with commandline parameters
	if err := k.Load(posflag.Provider(f, ".", k), nil); err != nil {
		return nil, fmt.Errorf("parsing cli: %v", err)
	}

	// Overload with environment variables
	k.Load(env.Provider("CLIPFORGE_", ".", func(s string) string {
		return strings.Replace(strings.ToLower(
			strings.TrimPrefix(s, "CLIPFORGE_")), "_", ".", -1)
	}), nil)

	// Make directories absolute in case they are not already
	abs := map[string]any{}
	for _, key := range []string{"datadir", "promptdir"} {
		dir := k.String(key)
		if dir != "" && !path.IsAbs(dir) {
			abs[key] = path.Join(cwd, dir)
		}
	}
	if len(abs) > 0 {
		k.Load(confmap.Provider(abs, "."), nil)
	}

	// Unmarshal into cfg. The json tags name the koanf keys, so the
	// decoder must match on them rather than on the field names.
	var cfg ServerConfig
	if err := k.UnmarshalWithConf("", &cfg, koanf.UnmarshalConf{Tag: "json"}); err != nil {
		return nil, err
	}
	if cfg.MaxConcurrent < 1 {
		cfg.MaxConcurrent = 1
	}

	return &cfg, nil
}
