package navconfig

import (
	"bytes"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/nexusnav/nexusnav/internal/errors"
)

// Format is the encoding of a config file.
type Format string

const (
	FormatJSON Format = "json"
	FormatYAML Format = "yaml"
)

// FormatOf picks the format from a file extension. Anything that is not
// .yaml or .yml is JSON.
func FormatOf(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return FormatYAML
	}
	return FormatJSON
}

// Decode reads data into v. Fields missing from data keep v's values.
func Decode(data []byte, format Format, v interface{}) error {
	var err error
	if format == FormatYAML {
		err = yaml.Unmarshal(data, v)
	} else {
		dec := json.NewDecoder(bytes.NewReader(data))
		err = dec.Decode(v)
	}
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Invalid config "+string(format),
			"Fix the syntax error and reload.")
	}
	return nil
}

// Encode renders v as indented JSON or two-space YAML.
func Encode(v interface{}, format Format) ([]byte, error) {
	var buf bytes.Buffer
	if format == FormatYAML {
		enc := yaml.NewEncoder(&buf)
		enc.SetIndent(2)
		if err := enc.Encode(v); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig, "Cannot encode config", "")
		}
		if err := enc.Close(); err != nil {
			return nil, errors.WrapWithCode(err, errors.ErrConfig, "Cannot encode config", "")
		}
		return buf.Bytes(), nil
	}
	enc := json.NewEncoder(&buf)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Cannot encode config", "")
	}
	return buf.Bytes(), nil
}

// Hash is the base64 sha256 of data, stored to detect file changes.
func Hash(data []byte) string {
	sum := sha256.Sum256(data)
	return base64.StdEncoding.EncodeToString(sum[:])
}

// readOptional returns nil, nil when path does not exist.
func readOptional(path string) ([]byte, error) {
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.WrapWithCode(err, errors.ErrConfig, "Cannot read config file: "+path,
			"Check the file permissions.")
	}
	return data, nil
}

// writeAtomic replaces path through a temp file in the same directory.
func writeAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Cannot create config directory: "+dir, "")
	}
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return errors.WrapWithCode(err, errors.ErrConfig, "Cannot write config file: "+path, "")
	}
	name := tmp.Name()
	_, err = tmp.Write(data)
	if err == nil {
		err = tmp.Sync()
	}
	if cerr := tmp.Close(); err == nil {
		err = cerr
	}
	if err == nil {
		err = os.Rename(name, path)
	}
	if err != nil {
		_ = os.Remove(name)
		return errors.WrapWithCode(err, errors.ErrConfig, "Cannot write config file: "+path, "")
	}
	return nil
}

// restore puts back a previous file body, or removes the file when there was none.
func restore(path string, previous []byte) error {
	if previous == nil {
		if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
			return errors.WrapWithCode(err, errors.ErrConfig, "Cannot restore config file: "+path, "")
		}
		return nil
	}
	return writeAtomic(path, previous)
}
