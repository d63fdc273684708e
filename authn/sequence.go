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
	"errors"
	"fmt"

	"github.com/cesanta/glog"

	"github.com/ekarulf/authchain/api"
)

// sequence consults verifiers in order. A verifier that does not know the
// user returns api.NoMatch and the next one is tried; the first decisive
// verdict or real error wins.
type sequence struct {
	verifiers []api.Verifier
}

// NewSequence combines several verifiers into one.
func NewSequence(verifiers ...api.Verifier) (api.Verifier, error) {
	if len(verifiers) == 0 {
		return nil, errors.New("sequence requires at least one verifier")
	}
	return &sequence{verifiers: verifiers}, nil
}

func (s *sequence) Verify(ctx context.Context, user string, password api.PasswordString) (bool, error) {
	for i, v := range s.verifiers {
		result, err := v.Verify(ctx, user, password)
		glog.V(2).Infof("Verify %s %s -> %t, %v", v.Name(), user, result, err)
		if err != nil {
			if err == api.NoMatch {
				continue
			}
			err = fmt.Errorf("verifier #%d returned error: %s", i+1, err)
			glog.Errorf("%s: %s", user, err)
			return false, err
		}
		return result, nil
	}
	// Deny by default.
	glog.Warningf("%s did not match any verifier", user)
	return false, nil
}

func (s *sequence) Stop() {
	for _, v := range s.verifiers {
		v.Stop()
	}
}

func (s *sequence) Name() string {
	return "sequence"
}
