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

	"github.com/cesanta/glog"

	"github.com/ekarulf/authchain/api"
)

// Next invokes the remainder of the pipeline. Stages pass a possibly
// rewritten user name; the password travels unchanged.
type Next func(ctx context.Context, user string, password api.PasswordString) (bool, error)

// Policy stage interface.
type Stage interface {
	// Given a user name and a password, either decides the request on its own,
	// or hands it to next, possibly with a rewritten user name.
	// Error should only be reported if the request could not be serviced, not if it
	// should be denied.
	// Implementations must be goroutine-safe; a stage owns whatever mutable state
	// it keeps between requests.
	Handle(ctx context.Context, user string, password api.PasswordString, next Next) (bool, error)

	// Human-readable name of the stage.
	Name() string
}

// Pipeline is a verifier wrapped in zero or more policy stages. The first
// stage handed to NewPipeline is the outermost; the verifier sits innermost.
type Pipeline struct {
	verifier api.Verifier
	stages   []Stage
	entry    Next
}

func NewPipeline(verifier api.Verifier, stages ...Stage) (*Pipeline, error) {
	if verifier == nil {
		return nil, errors.New("a pipeline requires a verifier")
	}
	next := Next(func(ctx context.Context, user string, password api.PasswordString) (bool, error) {
		result, err := verifier.Verify(ctx, user, password)
		if err == api.NoMatch {
			// An unknown user is a verified deny, not a verifier failure,
			// so the cache and the failure limiter treat it like any other
			// wrong password.
			glog.V(2).Infof("%s is not known to the verifier, denying", user)
			return false, nil
		}
		return result, err
	})
	for i := len(stages) - 1; i >= 0; i-- {
		next = wrap(stages[i], next)
	}
	return &Pipeline{verifier: verifier, stages: stages, entry: next}, nil
}

func wrap(s Stage, next Next) Next {
	return func(ctx context.Context, user string, password api.PasswordString) (bool, error) {
		result, err := s.Handle(ctx, user, password, next)
		glog.V(3).Infof("Stage %s %s -> %t, %v", s.Name(), user, result, err)
		return result, err
	}
}

// Verify runs the credentials through every stage and, unless one of them
// decides first, the verifier. The error is non-nil only when the verdict
// could not be computed; such verdicts are never cached or counted upstream.
func (p *Pipeline) Verify(ctx context.Context, user string, password api.PasswordString) (bool, error) {
	return p.entry(ctx, user, password)
}

// Authenticate is the boundary form of Verify for server hooks that expect
// a plain yes or no. Verifier errors are logged and collapse to a deny.
func (p *Pipeline) Authenticate(ctx context.Context, user string, password api.PasswordString) bool {
	result, err := p.Verify(ctx, user, password)
	if err != nil {
		glog.Errorf("verifier error for %s: %s", user, err)
		return false
	}
	if !result {
		glog.Warningf("Failed authentication for %s", user)
	}
	return result
}

// Stop finalizes the verifier in preparation for shutdown.
func (p *Pipeline) Stop() {
	p.verifier.Stop()
	glog.Infof("Pipeline stopped")
}
