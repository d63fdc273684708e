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

package policy

import (
	"context"
	"errors"
	"strings"

	"github.com/cesanta/glog"
	mapset "github.com/deckarep/golang-set"

	"github.com/ekarulf/authchain/api"
)

type defaultDomain struct {
	domain string
}

// NewDefaultDomain returns a stage that completes bare user names with domain
// before they travel further down the pipeline. Names that already are email
// addresses pass through untouched, and so do names that would not form a
// valid address even with the domain appended. The stage never denies.
func NewDefaultDomain(domain string) (Stage, error) {
	if domain == "" {
		return nil, errors.New("default_domain requires a domain")
	}
	return &defaultDomain{domain: domain}, nil
}

func (dd *defaultDomain) Handle(ctx context.Context, user string, password api.PasswordString, next Next) (bool, error) {
	if ValidEmail(user) {
		return next(ctx, user, password)
	}
	full := user + "@" + dd.domain
	if !ValidEmail(full) {
		return next(ctx, user, password)
	}
	glog.V(2).Infof("Completed user name %s -> %s", user, full)
	return next(ctx, full, password)
}

func (dd *defaultDomain) Name() string {
	return "default_domain"
}

type requireDomain struct {
	domains mapset.Set
}

// NewRequireDomain returns a stage that denies any user whose address is not
// in one of the given domains. Comparison is case-insensitive; user names
// that do not parse as email addresses are denied outright.
func NewRequireDomain(domains ...string) (Stage, error) {
	if len(domains) == 0 {
		return nil, errors.New("require_domain needs at least one domain")
	}
	set := mapset.NewSet()
	for _, d := range domains {
		if d == "" {
			return nil, errors.New("require_domain: domain must not be empty")
		}
		set.Add(strings.ToLower(d))
	}
	return &requireDomain{domains: set}, nil
}

func (rd *requireDomain) Handle(ctx context.Context, user string, password api.PasswordString, next Next) (bool, error) {
	_, domain, ok := ParseEmail(user)
	if !ok || !rd.domains.Contains(strings.ToLower(domain)) {
		glog.V(2).Infof("Rejected %s: not in an allowed domain", user)
		return false, nil
	}
	return next(ctx, user, password)
}

func (rd *requireDomain) Name() string {
	return "require_domain"
}

type requireValidEmail struct{}

// NewRequireValidEmail returns a stage that denies user names that are not
// syntactically valid email addresses.
func NewRequireValidEmail() Stage {
	return requireValidEmail{}
}

func (rv requireValidEmail) Handle(ctx context.Context, user string, password api.PasswordString, next Next) (bool, error) {
	if !ValidEmail(user) {
		glog.V(2).Infof("Rejected %s: not an email address", user)
		return false, nil
	}
	return next(ctx, user, password)
}

func (rv requireValidEmail) Name() string {
	return "require_valid_email"
}
