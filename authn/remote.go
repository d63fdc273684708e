/*
   Copyright 2015 Erik Karulf

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
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/ioutil"
	"net/http"
	"time"

	"github.com/cesanta/glog"

	"github.com/ekarulf/authchain/api"
	"github.com/ekarulf/authchain/policy"
)

type RemoteConfig struct {
	URL          string `yaml:"url,omitempty"`
	HTTPTimeout  int    `yaml:"http_timeout,omitempty"`
	RequireEmail bool   `yaml:"require_email,omitempty"`
}

type verifyRequest struct {
	User     string `json:"user"`
	Password string `json:"password"`
}

type verifyResponse struct {
	// Returned in case of error.
	Error            string `json:"error,omitempty"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type remote struct {
	config *RemoteConfig
	client *http.Client
}

// NewRemote verifies credentials against an external HTTP endpoint.
// Credentials are POSTed as JSON; a 2xx response allows, 401 and 403 deny,
// anything else is a verifier error. When RequireEmail is set, identities
// that are not email addresses are not forwarded at all.
func NewRemote(c *RemoteConfig) (api.Verifier, error) {
	if c.URL == "" {
		return nil, errors.New("remote url is required")
	}
	timeout := c.HTTPTimeout
	if timeout <= 0 {
		timeout = 10
	}
	return &remote{
		config: c,
		client: &http.Client{Timeout: time.Duration(timeout) * time.Second},
	}, nil
}

func (ra *remote) Verify(ctx context.Context, user string, password api.PasswordString) (bool, error) {
	if ra.config.RequireEmail && !policy.ValidEmail(user) {
		glog.V(2).Infof("%s is not an email address, not forwarding", user)
		return false, api.NoMatch
	}
	body, err := json.Marshal(verifyRequest{User: user, Password: string(password)})
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, "POST", ra.config.URL, bytes.NewReader(body))
	if err != nil {
		return false, err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := ra.client.Do(req)
	if err != nil {
		return false, fmt.Errorf("error talking to verification endpoint: %s", err)
	}
	respBody, _ := ioutil.ReadAll(resp.Body)
	resp.Body.Close()
	glog.V(2).Infof("%s %s -> %d", ra.config.URL, user, resp.StatusCode)
	switch {
	case resp.StatusCode >= 200 && resp.StatusCode < 300:
		return true, nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return false, nil
	}
	et := fmt.Sprintf("status %d", resp.StatusCode)
	var vr verifyResponse
	if json.Unmarshal(respBody, &vr) == nil && vr.Error != "" {
		et = fmt.Sprintf("%s: %s", vr.Error, vr.ErrorDescription)
	}
	return false, fmt.Errorf("verification endpoint error: %s", et)
}

func (ra *remote) Stop() {
}

func (ra *remote) Name() string {
	return "remote"
}
