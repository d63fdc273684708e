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

package authn

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"

	"github.com/cesanta/glog"
	"github.com/go-ldap/ldap"

	"github.com/ekarulf/authchain/api"
)

type LDAPConfig struct {
	Host           string `yaml:"host,omitempty"`
	Port           int    `yaml:"port,omitempty"`
	TLS            bool   `yaml:"tls,omitempty"`
	Insecure       bool   `yaml:"insecure,omitempty"`
	BindDNTemplate string `yaml:"bind_dn_template,omitempty"`
}

type ldapAuth struct {
	config *LDAPConfig
}

// NewLDAP verifies credentials by binding to an LDAP server.
// BindDNTemplate turns a user name into a DN, e.g.
// "uid=%s,ou=people,dc=example,dc=com"; when unset the user name is the
// bind DN.
func NewLDAP(c *LDAPConfig) (api.Verifier, error) {
	if c.Host == "" {
		return nil, errors.New("ldap host is required")
	}
	if c.Port == 0 {
		if c.TLS {
			c.Port = 636
		} else {
			c.Port = 389
		}
	}
	return &ldapAuth{config: c}, nil
}

// A single *ldap.Conn cannot carry concurrent binds, so each Verify dials
// its own connection.
func (la *ldapAuth) connect() (*ldap.Conn, error) {
	addr := fmt.Sprintf("%s:%d", la.config.Host, la.config.Port)
	if la.config.TLS {
		tlsConfig := &tls.Config{ServerName: la.config.Host}
		if la.config.Insecure {
			tlsConfig = &tls.Config{InsecureSkipVerify: true}
		}
		return ldap.DialTLS("tcp", addr, tlsConfig)
	}
	return ldap.Dial("tcp", addr)
}

func (la *ldapAuth) Verify(ctx context.Context, user string, password api.PasswordString) (bool, error) {
	if user == "" {
		return false, api.NoMatch
	}
	if password == "" {
		// An empty password would make the bind anonymous.
		glog.V(2).Infof("Empty password for %s, denying", user)
		return false, nil
	}
	conn, err := la.connect()
	if err != nil {
		return false, err
	}
	defer conn.Close()
	bindDN := user
	if la.config.BindDNTemplate != "" {
		bindDN = fmt.Sprintf(la.config.BindDNTemplate, user)
	}
	glog.V(2).Infof("Binding as %s", bindDN)
	if err := conn.Bind(bindDN, string(password)); err != nil {
		if ldap.IsErrorWithCode(err, ldap.LDAPResultInvalidCredentials) {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

func (la *ldapAuth) Stop() {
}

func (la *ldapAuth) Name() string {
	return "ldap"
}
