// Copyright 2025 gorse Project Authors
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
// http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package data

import (
	"os"
	"testing"

	"github.com/stretchr/testify/suite"
)

var mongoUri = os.Getenv("MONGO_URI")

type MongoTestSuite struct {
	baseTestSuite
}

func (suite *MongoTestSuite) SetupSuite() {
	var err error
	suite.Database, err = Open(mongoUri, "rs_")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func TestMongo(t *testing.T) {
	if mongoUri == "" {
		t.Skip("MONGO_URI is not set")
	}
	suite.Run(t, new(MongoTestSuite))
}
