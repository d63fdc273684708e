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

// Package httpauth guards an http.Handler with a policy pipeline.
package httpauth

import (
	"context"
	"fmt"
	"net/http"

	"github.com/cesanta/glog"

	"github.com/ekarulf/authchain/api"
	"github.com/ekarulf/authchain/policy"
)

type contextKey int

const userKey contextKey = 0

// User returns the user name, as presented in the Basic-Auth header, that
// Handler authenticated for this request, or "" if there is none.
func User(req *http.Request) string {
	user, _ := req.Context().Value(userKey).(string)
	return user
}

type handler struct {
	pipeline *policy.Pipeline
	realm    string
	next     http.Handler
}

// Handler guards next with the pipeline: requests without passing
// Basic-Auth credentials are answered with a 401 challenge for realm.
// The authenticated user name travels in the request context, see User.
func Handler(p *policy.Pipeline, realm string, next http.Handler) http.Handler {
	return &handler{pipeline: p, realm: realm, next: next}
}

func (h *handler) ServeHTTP(rw http.ResponseWriter, req *http.Request) {
	user, password, haveBasicAuth := req.BasicAuth()
	if !haveBasicAuth {
		h.challenge(rw, "Authentication required.")
		return
	}
	if !h.pipeline.Authenticate(req.Context(), user, api.PasswordString(password)) {
		glog.Warningf("Auth failed: %s %s for %s", req.Method, req.URL.Path, user)
		h.challenge(rw, "Auth failed.")
		return
	}
	glog.V(2).Infof("Authenticated %s", user)
	h.next.ServeHTTP(rw, req.WithContext(context.WithValue(req.Context(), userKey, user)))
}

func (h *handler) challenge(rw http.ResponseWriter, msg string) {
	rw.Header()["WWW-Authenticate"] = []string{fmt.Sprintf(`Basic realm="%s"`, h.realm)}
	http.Error(rw, msg, http.StatusUnauthorized)
}
