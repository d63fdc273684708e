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

// authtest loads a config, builds the pipeline and checks credentials
// typed at the terminal against it.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/cesanta/glog"
	"golang.org/x/term"

	"github.com/ekarulf/authchain/api"
	"github.com/ekarulf/authchain/config"
)

// Set by the linker.
var (
	Version = "dev"
	BuildID = ""
)

func main() {
	flag.Parse()

	configFile := flag.Arg(0)
	if configFile == "" {
		glog.Exitf("Config file not specified")
	}
	glog.Infof("authtest %s build %s", Version, BuildID)
	c, err := config.LoadConfig(configFile)
	if err != nil {
		glog.Exitf("Failed to load config: %s", err)
	}
	p, err := c.NewPipeline()
	if err != nil {
		glog.Exitf("Failed to build pipeline: %s", err)
	}
	defer p.Stop()

	in := bufio.NewReader(os.Stdin)
	for {
		fmt.Print("User: ")
		user, err := in.ReadString('\n')
		if err != nil {
			break
		}
		user = strings.TrimSpace(user)
		fmt.Print("Password: ")
		password, err := term.ReadPassword(int(os.Stdin.Fd()))
		fmt.Println()
		if err != nil {
			glog.Exitf("Failed to read password: %s", err)
		}
		result, err := p.Verify(context.Background(), user, api.PasswordString(password))
		switch {
		case err != nil:
			fmt.Printf("Verifier error: %s\n", err)
		case result:
			fmt.Println("Password correct!")
		default:
			fmt.Println("Password incorrect")
		}
		fmt.Print("Again (yes/No)? ")
		again, err := in.ReadString('\n')
		if err != nil || !strings.HasPrefix(strings.ToLower(strings.TrimSpace(again)), "y") {
			break
		}
	}
}
