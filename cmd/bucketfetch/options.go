package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"github.com/pitabwire/bucketbackend/config"
)

var errUnknownOptionsFormat = errors.New("options file must be .yaml, .yml or .toml")

// loadOptionsFile reads connection options from a yaml or toml file, the
// format is picked by extension.
func loadOptionsFile(path string) (config.Partial, error) {
	var partial config.Partial

	data, err := os.ReadFile(path)
	if err != nil {
		return partial, fmt.Errorf("could not read options file: %w", err)
	}

	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &partial)
	case ".toml":
		err = toml.Unmarshal(data, &partial)
	default:
		return partial, fmt.Errorf("%s: %w", path, errUnknownOptionsFormat)
	}
	if err != nil {
		return partial, fmt.Errorf("could not parse options file %s: %w", path, err)
	}

	return partial, nil
}

// overlay replaces the fields of base that are set in top.
func overlay(base, top config.Partial) config.Partial {
	if top.BucketName != "" {
		base.BucketName = top.BucketName
	}
	if top.GoogleProject != "" {
		base.GoogleProject = top.GoogleProject
	}
	if top.CredentialsPath != "" {
		base.CredentialsPath = top.CredentialsPath
	}
	if top.APIEndpoint != "" {
		base.APIEndpoint = top.APIEndpoint
	}
	if top.BucketURL != "" {
		base.BucketURL = top.BucketURL
	}
	return base
}
