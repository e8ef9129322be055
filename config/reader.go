package config

import (
	"bytes"
	"encoding/json"
	"io"
	"reflect"
	"time"

	"github.com/a8m/envsubst"
	"github.com/go-viper/mapstructure/v2"
	"github.com/pkg/errors"
)

// Read reads a config from the given file. ${VAR} references are expanded from the
// environment and anything the file leaves out keeps its default.
func Read(filePath string) (*Config, error) {
	buf, err := envsubst.ReadFile(filePath)
	if err != nil {
		return nil, err
	}
	return FromReader(filePath, bytes.NewReader(buf))
}

// FromReader reads a config from the given reader and specifies
// where, if applicable, the file the reader originated from.
func FromReader(originalPath string, r io.Reader) (*Config, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var attrs map[string]interface{}
	if err := dec.Decode(&attrs); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config from json")
	}

	cfg := Default()
	decoder, err := mapstructure.NewDecoder(&mapstructure.DecoderConfig{
		TagName:     "json",
		Result:      cfg,
		ErrorUnused: true,
		DecodeHook: mapstructure.ComposeDecodeHookFunc(
			jsonNumberToDurationHook,
			mapstructure.StringToTimeDurationHookFunc(),
		),
	})
	if err != nil {
		return nil, err
	}
	if err := decoder.Decode(attrs); err != nil {
		return nil, errors.Wrapf(err, "failed to decode Config attributes")
	}
	cfg.ConfigFilePath = originalPath
	return cfg, nil
}

// jsonNumberToDurationHook reads bare numbers as nanoseconds.
func jsonNumberToDurationHook(from, to reflect.Type, data interface{}) (interface{}, error) {
	if to != reflect.TypeOf(time.Duration(0)) {
		return data, nil
	}
	n, ok := data.(json.Number)
	if !ok || from != reflect.TypeOf(json.Number("")) {
		return data, nil
	}
	ns, err := n.Int64()
	if err != nil {
		return nil, errors.Wrapf(err, "duration %q", n)
	}
	return time.Duration(ns), nil
}
