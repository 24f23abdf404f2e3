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

package config

import (
	"strings"
	"sync"

	"github.com/go-playground/validator/v10"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/storage"
)

var dataStorePrefixes = []string{
	storage.SQLitePrefix,
	storage.MySQLPrefix,
	storage.PostgresPrefix,
	storage.PostgreSQLPrefix,
	storage.MongoPrefix,
	storage.MongoSrvPrefix,
}

var (
	validate     *validator.Validate
	validateOnce sync.Once
)

func getValidator() *validator.Validate {
	validateOnce.Do(func() {
		validate = validator.New()
		if err := validate.RegisterValidation("data_store", func(fl validator.FieldLevel) bool {
			return isDataStore(fl.Field().String())
		}); err != nil {
			panic(err)
		}
	})
	return validate
}

func isDataStore(uri string) bool {
	for _, prefix := range dataStorePrefixes {
		if strings.HasPrefix(uri, prefix) {
			return true
		}
	}
	return false
}

// Validate checks field constraints and reports the first failing field.
func (config *Config) Validate() error {
	if err := getValidator().Struct(config); err != nil {
		var validationErrors validator.ValidationErrors
		if errors.As(err, &validationErrors) && len(validationErrors) > 0 {
			fieldError := validationErrors[0]
			return errors.NotValidf("%s (%s=%s, got %v)",
				fieldError.Namespace(), fieldError.Tag(), fieldError.Param(), fieldError.Value())
		}
		return errors.Trace(err)
	}
	return nil
}
