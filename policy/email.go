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
	"regexp"
	"strings"
)

// Dot-atom or quoted local part, dotted domain, 2-6 letter TLD.
// Stricter than RFC 5322: "user@localhost" does not pass.
var emailRegexp = regexp.MustCompile(`(?i)^(?:[-!#$%&'*+/=?^_` + "`" + `{}|~0-9A-Z]+(?:\.[-!#$%&'*+/=?^_` + "`" + `{}|~0-9A-Z]+)*` +
	`|"(?:[\x01-\x08\x0b\x0c\x0e-\x1f!#-\[\]-\x7f]|\\[\x01-\x09\x0b\x0c\x0e-\x7f])*")` +
	`@(?:[A-Z0-9](?:[A-Z0-9-]{0,61}[A-Z0-9])?\.)+[A-Z]{2,6}$`)

// ValidEmail reports whether s is a syntactically valid email address.
func ValidEmail(s string) bool {
	return emailRegexp.MatchString(s)
}

// ParseEmail splits s into its local and domain parts. ok is false when s is
// not a valid address; callers treat that as "not an email", never as a failure.
func ParseEmail(s string) (local, domain string, ok bool) {
	if !ValidEmail(s) {
		return "", "", false
	}
	// A quoted local part may itself contain "@".
	i := strings.LastIndex(s, "@")
	return s[:i], s[i+1:], true
}
