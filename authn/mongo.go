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

package authn

import (
	"context"
	"errors"
	"time"

	"github.com/cesanta/glog"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
	"golang.org/x/crypto/bcrypt"

	"github.com/ekarulf/authchain/api"
)

type MongoConfig struct {
	URI        string        `yaml:"uri,omitempty"`
	Database   string        `yaml:"database,omitempty"`
	Collection string        `yaml:"collection,omitempty"`
	Timeout    time.Duration `yaml:"timeout,omitempty"`
}

func (c *MongoConfig) Validate() error {
	if c.URI == "" {
		return errors.New("mongo.uri is required")
	}
	if c.Database == "" {
		return errors.New("mongo.database is required")
	}
	if c.Collection == "" {
		return errors.New("mongo.collection is required")
	}
	return nil
}

type mongoUser struct {
	Username     string `bson:"username"`
	PasswordHash string `bson:"password_hash"`
}

type mongoAuth struct {
	config *MongoConfig
	client *mongo.Client
}

// NewMongo verifies against a collection of {username, password_hash}
// documents.
func NewMongo(c *MongoConfig) (api.Verifier, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if c.Timeout <= 0 {
		c.Timeout = 10 * time.Second
	}
	glog.V(2).Infof("Connecting to MongoDB at %s (operation timeout %s)", c.URI, c.Timeout)
	ctx, cancel := context.WithTimeout(context.Background(), c.Timeout)
	defer cancel()
	client, err := mongo.Connect(ctx, options.Client().ApplyURI(c.URI))
	if err != nil {
		return nil, err
	}
	return &mongoAuth{config: c, client: client}, nil
}

func (ma *mongoAuth) Verify(ctx context.Context, user string, password api.PasswordString) (bool, error) {
	if user == "" {
		return false, api.NoMatch
	}
	ctx, cancel := context.WithTimeout(ctx, ma.config.Timeout)
	defer cancel()
	glog.V(2).Infof("Checking user %s against %s.%s", user, ma.config.Database, ma.config.Collection)
	collection := ma.client.Database(ma.config.Database).Collection(ma.config.Collection)
	var mu mongoUser
	err := collection.FindOne(ctx, bson.M{"username": user}).Decode(&mu)
	if err == mongo.ErrNoDocuments {
		return false, api.NoMatch
	} else if err != nil {
		return false, err
	}
	if bcrypt.CompareHashAndPassword([]byte(mu.PasswordHash), []byte(password)) != nil {
		return false, nil
	}
	return true, nil
}

func (ma *mongoAuth) Stop() {
	ctx, cancel := context.WithTimeout(context.Background(), ma.config.Timeout)
	defer cancel()
	if err := ma.client.Disconnect(ctx); err != nil {
		glog.Errorf("Failed to disconnect from MongoDB: %s", err)
	}
}

func (ma *mongoAuth) Name() string {
	return "mongo"
}
