package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the monitoring setup: notifiers first, then the checks that
// bind them.
//
//	notifiers:
//	  - kind: slack
//	    webhook: https://hooks.slack.com/services/...
//	checks:
//	  - kind: dns
//	    server: 9.9.9.9
//	    name: example.com
//	    type: A
//	    acceptable: [192.0.2.1]
type File struct {
	Notifiers []Record `yaml:"notifiers"`
	Checks    []Record `yaml:"checks"`
}

func LoadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read %s: %w", path, err)
	}
	f, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return f, nil
}

func Parse(data []byte) (*File, error) {
	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, &Error{Kind: "file", Msg: err.Error()}
	}
	for i, r := range f.Notifiers {
		if err := requireKind(r, fmt.Sprintf("notifiers[%d]", i)); err != nil {
			return nil, err
		}
	}
	for i, r := range f.Checks {
		if err := requireKind(r, fmt.Sprintf("checks[%d]", i)); err != nil {
			return nil, err
		}
	}
	return &f, nil
}

func requireKind(r Record, where string) error {
	if r == nil {
		return &Error{Kind: where, Msg: "is empty"}
	}
	k, ok := r["kind"].(string)
	if !ok || k == "" {
		return &Error{Kind: where, Key: "kind", Msg: "is mandatory"}
	}
	return nil
}
