package config

import (
	"crypto/md5"
	"encoding/hex"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"time"

	"github.com/creasty/defaults"
	jsoniter "github.com/json-iterator/go"
	"github.com/pelletier/go-toml/v2"
	"gopkg.in/yaml.v3"
)

type Format string

const (
	FormatUnknown Format = "unknown"
	FormatYAML    Format = "yaml"
	FormatJSON    Format = "json"
	FormatTOML    Format = "toml"
)

// configFetchTimeout bounds how long loading a config over HTTP may take.
var configFetchTimeout = 10 * time.Second

// formatFromFilename returns the format of the file based on the filename extension.
func formatFromFilename(filename string) Format {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".yaml", ".yml":
		return FormatYAML
	case ".toml":
		return FormatTOML
	case ".json":
		return FormatJSON
	default:
		return FormatUnknown
	}
}

// formatFromResponse returns the format of the file based on the Content-Type
// header. Parameters such as charset are ignored.
func formatFromResponse(resp *http.Response) Format {
	mediaType, _, err := mime.ParseMediaType(resp.Header.Get("Content-Type"))
	if err != nil {
		return FormatUnknown
	}
	switch mediaType {
	case "application/json", "text/json":
		return FormatJSON
	case "application/x-toml", "application/toml", "text/x-toml", "text/toml":
		return FormatTOML
	case "application/x-yaml", "application/yaml", "text/x-yaml", "text/yaml":
		return FormatYAML
	default:
		return FormatUnknown
	}
}

// getReaderFor opens a config given as a file path, a file:// URL, or an
// http(s) URL. The format comes from the Content-Type header when there is
// one, and from the extension otherwise.
func getReaderFor(u string) (io.ReadCloser, Format, error) {
	if u == "" {
		return nil, FormatUnknown, fmt.Errorf("empty url")
	}
	uu, err := url.Parse(u)
	if err != nil {
		return nil, FormatUnknown, err
	}
	switch uu.Scheme {
	case "file", "":
		r, err := os.Open(uu.Path)
		if err != nil {
			return nil, FormatUnknown, err
		}
		return r, formatFromFilename(uu.Path), nil
	case "http", "https":
		client := &http.Client{Timeout: configFetchTimeout}
		resp, err := client.Get(u)
		if err != nil {
			return nil, FormatUnknown, err
		}
		if resp.StatusCode < 200 || resp.StatusCode > 299 {
			resp.Body.Close()
			return nil, FormatUnknown, fmt.Errorf("fetching %s: %s", u, resp.Status)
		}
		format := formatFromResponse(resp)
		if format == FormatUnknown {
			format = formatFromFilename(uu.Path)
		}
		return resp.Body, format, nil
	default:
		return nil, FormatUnknown, fmt.Errorf("unknown scheme %q", uu.Scheme)
	}
}

// load decodes r into into. An empty YAML or TOML document is valid and
// leaves into unchanged.
func load(r io.Reader, format Format, into any) error {
	var err error
	switch format {
	case FormatYAML:
		err = yaml.NewDecoder(r).Decode(into)
		if err == io.EOF {
			err = nil
		}
	case FormatTOML:
		err = toml.NewDecoder(r).Decode(into)
	case FormatJSON:
		err = jsoniter.ConfigCompatibleWithStandardLibrary.NewDecoder(r).Decode(into)
	default:
		err = fmt.Errorf("unable to determine data format")
	}
	return err
}

// This loads all the named configs into destination in the order they are listed.
// It returns the MD5 hash of the collected configs as a string (if there's only one
// config, this is the hash of that config; if there are multiple, it's the hash of
// all of them concatenated together).
func loadConfigsInto(dest any, locations []string) (string, error) {
	h := md5.New()
	for _, location := range locations {
		location := strings.TrimSpace(location)
		if location == "" {
			continue
		}
		if err := loadOneConfigInto(dest, location, h); err != nil {
			return "", err
		}
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

func loadOneConfigInto(dest any, location string, h io.Writer) error {
	r, format, err := getReaderFor(location)
	if err != nil {
		return err
	}
	defer r.Close()

	// when working on a struct, load only overwrites destination values that are
	// explicitly named, so successive files layer on top of each other.
	if err := load(io.TeeReader(r, h), format, dest); err != nil {
		return fmt.Errorf("loadConfigsInto unable to load config %s: %w", location, err)
	}
	return nil
}

// readConfigInto applies defaults to dest, then reads the config from the
// given locations over them, then applies command line options. Defaults go
// first so that an explicit zero in a file (a zero InitialHeartbeatDelay, say)
// is kept.
func readConfigInto(dest any, locations []string, opts *CmdEnv) (string, error) {
	if err := defaults.Set(dest); err != nil {
		return "", fmt.Errorf("readConfigInto unable to apply defaults: %w", err)
	}

	hash, err := loadConfigsInto(dest, locations)
	if err != nil {
		return hash, err
	}

	// don't apply options if we're not given any
	if opts == nil {
		return hash, nil
	}

	if err := opts.ApplyTags(reflect.ValueOf(dest)); err != nil {
		return hash, fmt.Errorf("readConfigInto unable to apply command line options: %w", err)
	}

	return hash, nil
}
