/*
   Copyright 2020 Erik Karulf

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
	"fmt"

	"golang.org/x/crypto/bcrypt"

	_ "github.com/go-sql-driver/mysql"
	_ "github.com/lib/pq"
	"xorm.io/xorm"

	"github.com/ekarulf/authchain/api"
)

// Set by the sqlite3 build tag; the driver needs cgo.
var EnableSQLite3 = false

type SQLConfig struct {
	DatabaseType string `yaml:"database_type,omitempty"`
	ConnString   string `yaml:"conn_string,omitempty"`
}

type sqlUser struct {
	Id           int64  `xorm:"pk autoincr"`
	Username     string `xorm:"VARCHAR(128) NOT NULL"`
	PasswordHash string `xorm:"VARCHAR(128) NOT NULL"`
}

type sqlAuth struct {
	config *SQLConfig
	engine *xorm.Engine
}

// NewSQL verifies against a user table reachable through any of the
// supported database/sql drivers (mysql, postgres, sqlite3).
func NewSQL(c *SQLConfig) (api.Verifier, error) {
	if c.DatabaseType == "sqlite3" && !EnableSQLite3 {
		return nil, fmt.Errorf("sqlite3 is not enabled in this build, use -tags sqlite3")
	}
	e, err := xorm.NewEngine(c.DatabaseType, c.ConnString)
	if err != nil {
		return nil, err
	}
	if err := e.Sync2(new(sqlUser)); err != nil {
		return nil, fmt.Errorf("Sync2: %v", err)
	}
	return &sqlAuth{config: c, engine: e}, nil
}

func (sa *sqlAuth) Verify(ctx context.Context, user string, password api.PasswordString) (bool, error) {
	if user == "" {
		return false, api.NoMatch
	}
	var su sqlUser
	has, err := sa.engine.Context(ctx).Where("username = ?", user).Desc("id").Get(&su)
	if err != nil {
		return false, err
	}
	if !has {
		return false, api.NoMatch
	}
	if bcrypt.CompareHashAndPassword([]byte(su.PasswordHash), []byte(password)) != nil {
		return false, nil
	}
	return true, nil
}

func (sa *sqlAuth) Stop() {
	if sa.engine != nil {
		sa.engine.Close()
	}
}

func (sa *sqlAuth) Name() string {
	return "sql"
}
