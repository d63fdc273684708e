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

package config

import (
	"context"
	"fmt"
	"time"

	"github.com/cesanta/glog"
	"gopkg.in/fsnotify.v1"
)

// WatchConfig watches fileName and invokes onChange with the freshly
// loaded config whenever the file changes and still validates, so hosts
// can rebuild their pipeline without a restart. Blocks until ctx is done.
// Editors that replace the file drop the watch; it is re-established on
// the next tick.
func WatchConfig(ctx context.Context, fileName string, onChange func(*Config)) error {
	w, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %s", err)
	}
	defer w.Close()

	err = w.Add(fileName)
	watching, needReload := err == nil, false
	if err != nil {
		glog.Errorf("Failed to set up config watcher: %s", err)
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case <-time.After(1 * time.Second):
			if !watching {
				if err := w.Add(fileName); err != nil {
					glog.Errorf("Failed to set up config watcher: %s", err)
				} else {
					watching, needReload = true, true
				}
			} else if needReload {
				needReload = false
				c, err := LoadConfig(fileName)
				if err != nil {
					glog.Errorf("Failed to reload config (%s), using the old one", err)
					continue
				}
				glog.Infof("Config reloaded from %s", fileName)
				onChange(c)
			}
		case ev := <-w.Events:
			glog.V(3).Infof("Config file event: %s", ev)
			if ev.Op&(fsnotify.Remove|fsnotify.Rename) != 0 {
				w.Remove(fileName)
				watching = false
			} else if ev.Op&(fsnotify.Write|fsnotify.Chmod) != 0 {
				needReload = true
			}
		case err := <-w.Errors:
			glog.Errorf("Watcher error: %s", err)
		}
	}
}
