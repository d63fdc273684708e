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
	"context"
	"encoding/json"

	"golang.org/x/crypto/bcrypt"

	"github.com/ekarulf/authchain/api"
)

// Requirements a static user must meet. Password holds a bcrypt hash;
// nil means any password is accepted.
type Requirements struct {
	Password *api.PasswordString `yaml:"password,omitempty" json:"password,omitempty"`
}

func (r Requirements) String() string {
	p := r.Password
	if p != nil {
		pm := api.PasswordString("***")
		r.Password = &pm
	}
	b, _ := json.Marshal(r)
	r.Password = p
	return string(b)
}

type staticUsers struct {
	users map[string]*Requirements
}

// NewStaticUsers verifies against a fixed map of users.
func NewStaticUsers(users map[string]*Requirements) api.Verifier {
	return &staticUsers{users: users}
}

func (su *staticUsers) Verify(ctx context.Context, user string, password api.PasswordString) (bool, error) {
	reqs := su.users[user]
	if reqs == nil {
		return false, api.NoMatch
	}
	if reqs.Password != nil {
		if bcrypt.CompareHashAndPassword([]byte(*reqs.Password), []byte(password)) != nil {
			return false, nil
		}
	}
	return true, nil
}

func (su *staticUsers) Stop() {
}

func (su *staticUsers) Name() string {
	return "static"
}
