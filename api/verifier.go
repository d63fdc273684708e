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

package api

import (
	"context"
	"errors"
)

// Credential verifier interface.
type Verifier interface {
	// Given a user name and a password (plain text), responds with the verdict or an error.
	// Error should only be reported if the request could not be serviced, not if it should
	// be denied.
	// A special NoMatch error is returned if the verifier does not know the user at all,
	// e.g. the name is absent from its backing store; combinators use it to fall through
	// to the next verifier.
	// Implementations must be goroutine-safe.
	Verify(ctx context.Context, user string, password PasswordString) (bool, error)

	// Finalize resources in preparation for shutdown.
	// When this call is made there are guaranteed to be no Verify requests in flight
	// and there will be no more calls made to this instance.
	Stop()

	// Human-readable name of the verifier.
	Name() string
}

var NoMatch = errors.New("user not known to this verifier")

// VerifierFunc adapts a plain function to the Verifier interface.
type VerifierFunc func(ctx context.Context, user string, password PasswordString) (bool, error)

func (f VerifierFunc) Verify(ctx context.Context, user string, password PasswordString) (bool, error) {
	return f(ctx, user, password)
}

func (f VerifierFunc) Stop() {
}

func (f VerifierFunc) Name() string {
	return "func"
}

type PasswordString string

func (ps PasswordString) String() string {
	if len(ps) == 0 {
		return ""
	}
	return "***"
}
