/*
   Copyright 2016 Erik Karulf

   Licensed under the Apache License, Version 2.0 (the "License");
   you may not use this file except in compliance with the License.
   You may obtain a copy of the License at

       https://www.apache.org/licenses/LICENSE-2.0

   Unless required by applicable law or agreed to in writing, software
   distributed under the License is distributed on an "AS IS" BASIS,
   WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
   See the License for the specific language governing permissions and
   limitations under the License.
*/

package config

import (
	"errors"
	"fmt"
	"io/ioutil"

	"github.com/cesanta/glog"
	yaml "gopkg.in/yaml.v2"

	"github.com/ekarulf/authchain/api"
	"github.com/ekarulf/authchain/authn"
	"github.com/ekarulf/authchain/policy"
)

// Config assembles a pipeline from YAML. The stage sections configure the
// policy stages, the verifier sections the credential backends; Stages
// picks the stage order and defaults to the canonical one when omitted.
type Config struct {
	Stages            []string            `yaml:"stages,omitempty,flow"`
	DefaultDomain     string              `yaml:"default_domain,omitempty"`
	RequireDomain     []string            `yaml:"require_domain,omitempty,flow"`
	RequireValidEmail bool                `yaml:"require_valid_email,omitempty"`
	Cache             *policy.CacheConfig `yaml:"cache,omitempty"`
	LimitFailures     *policy.LimitConfig `yaml:"limit_failures,omitempty"`

	Users  map[string]*authn.Requirements `yaml:"users,omitempty"`
	Remote *authn.RemoteConfig            `yaml:"remote,omitempty"`
	LDAP   *authn.LDAPConfig              `yaml:"ldap,omitempty"`
	SQL    *authn.SQLConfig               `yaml:"sql,omitempty"`
	Mongo  *authn.MongoConfig             `yaml:"mongo,omitempty"`
}

var stageNames = map[string]bool{
	"default_domain":      true,
	"require_valid_email": true,
	"require_domain":      true,
	"cache":               true,
	"limit_failures":      true,
}

func validate(c *Config) error {
	if c.Users == nil && c.Remote == nil && c.LDAP == nil && c.SQL == nil && c.Mongo == nil {
		return errors.New("no verifiers are configured, this is probably a mistake. Use an empty user map if you really want to deny everyone.")
	}
	for _, name := range c.Stages {
		if !stageNames[name] {
			return fmt.Errorf("unknown stage %q", name)
		}
	}
	if c.Cache != nil && c.Cache.TTL <= 0 {
		return fmt.Errorf("cache.ttl must be positive, got %s", c.Cache.TTL)
	}
	if lf := c.LimitFailures; lf != nil {
		if lf.MaxFailures < 1 {
			return fmt.Errorf("limit_failures.max_failures must be at least 1, got %d", lf.MaxFailures)
		}
		if lf.Window <= 0 {
			return fmt.Errorf("limit_failures.window must be positive, got %s", lf.Window)
		}
	}
	return nil
}

func LoadConfig(fileName string) (*Config, error) {
	contents, err := ioutil.ReadFile(fileName)
	if err != nil {
		return nil, fmt.Errorf("could not read %s: %s", fileName, err)
	}
	c := &Config{}
	if err = yaml.Unmarshal(contents, c); err != nil {
		return nil, fmt.Errorf("could not parse config: %s", err)
	}
	if err = validate(c); err != nil {
		return nil, fmt.Errorf("invalid config: %s", err)
	}
	return c, nil
}

// NewPipeline builds the configured verifier chain and policy stages.
func (c *Config) NewPipeline() (*policy.Pipeline, error) {
	verifier, err := c.newVerifier()
	if err != nil {
		return nil, err
	}
	names := c.Stages
	if len(names) == 0 {
		names = c.defaultStages()
	}
	stages := make([]policy.Stage, 0, len(names))
	for _, name := range names {
		s, err := c.newStage(name)
		if err != nil {
			return nil, err
		}
		stages = append(stages, s)
	}
	glog.Infof("Pipeline: verifier %s, stages %v", verifier.Name(), names)
	return policy.NewPipeline(verifier, stages...)
}

func (c *Config) newVerifier() (api.Verifier, error) {
	var verifiers []api.Verifier
	if c.Users != nil {
		verifiers = append(verifiers, authn.NewStaticUsers(c.Users))
	}
	if c.Remote != nil {
		v, err := authn.NewRemote(c.Remote)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, v)
	}
	if c.LDAP != nil {
		v, err := authn.NewLDAP(c.LDAP)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, v)
	}
	if c.SQL != nil {
		v, err := authn.NewSQL(c.SQL)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, v)
	}
	if c.Mongo != nil {
		v, err := authn.NewMongo(c.Mongo)
		if err != nil {
			return nil, err
		}
		verifiers = append(verifiers, v)
	}
	if len(verifiers) == 0 {
		return nil, errors.New("no verifiers are configured")
	}
	if len(verifiers) == 1 {
		return verifiers[0], nil
	}
	return authn.NewSequence(verifiers...)
}

// defaultStages lists the configured stages in canonical order: name
// completion first, then validation and restriction, then the cache, then
// the failure limit.
func (c *Config) defaultStages() []string {
	var names []string
	if c.DefaultDomain != "" {
		names = append(names, "default_domain")
	}
	if c.RequireValidEmail {
		names = append(names, "require_valid_email")
	}
	if len(c.RequireDomain) > 0 {
		names = append(names, "require_domain")
	}
	if c.Cache != nil {
		names = append(names, "cache")
	}
	if c.LimitFailures != nil {
		names = append(names, "limit_failures")
	}
	return names
}

func (c *Config) newStage(name string) (policy.Stage, error) {
	switch name {
	case "default_domain":
		if c.DefaultDomain == "" {
			return nil, fmt.Errorf("stage %s is listed but not configured", name)
		}
		return policy.NewDefaultDomain(c.DefaultDomain)
	case "require_valid_email":
		return policy.NewRequireValidEmail(), nil
	case "require_domain":
		if len(c.RequireDomain) == 0 {
			return nil, fmt.Errorf("stage %s is listed but not configured", name)
		}
		return policy.NewRequireDomain(c.RequireDomain...)
	case "cache":
		if c.Cache == nil {
			return nil, fmt.Errorf("stage %s is listed but not configured", name)
		}
		return policy.NewCache(*c.Cache)
	case "limit_failures":
		if c.LimitFailures == nil {
			return nil, fmt.Errorf("stage %s is listed but not configured", name)
		}
		return policy.NewLimitFailures(*c.LimitFailures)
	}
	return nil, fmt.Errorf("unknown stage %q", name)
}
