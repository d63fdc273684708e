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

package policy

import (
	"container/list"
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/cesanta/glog"

	"github.com/ekarulf/authchain/api"
)

const DefaultLimitMaxRecords = 8192

type LimitConfig struct {
	MaxFailures int           `yaml:"max_failures,omitempty"`
	Window      time.Duration `yaml:"window,omitempty"`
	MaxRecords  int           `yaml:"max_records,omitempty"`
}

// LimitFailures denies a user outright once they have failed MaxFailures
// times within Window, without consuming a verifier call. Counts are keyed
// by user name alone and reset on the first success.
type LimitFailures struct {
	maxFailures int
	window      time.Duration
	maxRecords  int

	mu      sync.Mutex
	records map[string]*list.Element
	order   *list.List // least recently touched at the front
}

type failureRecord struct {
	user        string
	count       int
	windowStart time.Time
}

func NewLimitFailures(c LimitConfig) (*LimitFailures, error) {
	if c.MaxFailures < 1 {
		return nil, fmt.Errorf("limit_failures max_failures must be at least 1, got %d", c.MaxFailures)
	}
	if c.Window <= 0 {
		return nil, fmt.Errorf("limit_failures window must be positive, got %s", c.Window)
	}
	if c.MaxRecords < 0 {
		return nil, fmt.Errorf("limit_failures max_records must not be negative, got %d", c.MaxRecords)
	}
	maxRecords := c.MaxRecords
	if maxRecords == 0 {
		maxRecords = DefaultLimitMaxRecords
	}
	return &LimitFailures{
		maxFailures: c.MaxFailures,
		window:      c.Window,
		maxRecords:  maxRecords,
		records:     make(map[string]*list.Element),
		order:       list.New(),
	}, nil
}

func (lf *LimitFailures) Handle(ctx context.Context, user string, password api.PasswordString, next Next) (bool, error) {
	if lf.limited(user) {
		glog.Warningf("Too many failures for %s, denying without verification", user)
		return false, nil
	}
	result, err := next(ctx, user, password)
	if err != nil {
		// A verifier outage is not the user's fault; the count stays put.
		return result, err
	}
	if result {
		lf.clear(user)
	} else {
		lf.record(user)
	}
	return result, nil
}

func (lf *LimitFailures) Name() string {
	return "limit_failures"
}

// Len returns the number of users currently tracked.
func (lf *LimitFailures) Len() int {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	return len(lf.records)
}

// Fixed window: a record older than one full window no longer counts and is
// dropped on sight, there is no sweeper.
func (lf *LimitFailures) limited(user string) bool {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	elem, ok := lf.records[user]
	if !ok {
		return false
	}
	rec := elem.Value.(*failureRecord)
	if time.Since(rec.windowStart) >= lf.window {
		lf.order.Remove(elem)
		delete(lf.records, user)
		return false
	}
	return rec.count >= lf.maxFailures
}

func (lf *LimitFailures) record(user string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	now := time.Now()
	if elem, ok := lf.records[user]; ok {
		rec := elem.Value.(*failureRecord)
		if now.Sub(rec.windowStart) >= lf.window {
			rec.count = 0
			rec.windowStart = now
		}
		rec.count++
		lf.order.MoveToBack(elem)
		return
	}
	lf.records[user] = lf.order.PushBack(&failureRecord{user: user, count: 1, windowStart: now})
	for len(lf.records) > lf.maxRecords {
		oldest := lf.order.Front()
		lf.order.Remove(oldest)
		delete(lf.records, oldest.Value.(*failureRecord).user)
	}
}

func (lf *LimitFailures) clear(user string) {
	lf.mu.Lock()
	defer lf.mu.Unlock()
	if elem, ok := lf.records[user]; ok {
		lf.order.Remove(elem)
		delete(lf.records, user)
	}
}
