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

var (
	mySqlDSN    = os.Getenv("MYSQL_URI")
	postgresDSN = os.Getenv("POSTGRES_URI")
)

type MySQLTestSuite struct {
	baseTestSuite
}

func (suite *MySQLTestSuite) SetupSuite() {
	var err error
	suite.Database, err = Open(mySqlDSN, "rs_")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func TestMySQL(t *testing.T) {
	if mySqlDSN == "" {
		t.Skip("MYSQL_URI is not set")
	}
	suite.Run(t, new(MySQLTestSuite))
}

type PostgresTestSuite struct {
	baseTestSuite
}

func (suite *PostgresTestSuite) SetupSuite() {
	var err error
	suite.Database, err = Open(postgresDSN, "rs_")
	suite.NoError(err)
	suite.NoError(suite.Database.Init())
}

func TestPostgres(t *testing.T) {
	if postgresDSN == "" {
		t.Skip("POSTGRES_URI is not set")
	}
	suite.Run(t, new(PostgresTestSuite))
}

func TestSQLDriver(t *testing.T) {
	for driver, name := range map[SQLDriver]string{MySQL: "mysql", Postgres: "postgres", SQLite: "sqlite"} {
		if driver.String() != name {
			t.Fatalf("expect %s, got %s", name, driver.String())
		}
	}
}
