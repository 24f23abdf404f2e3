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
	"time"

	"github.com/go-viper/mapstructure/v2"
	"github.com/juju/errors"
	"github.com/reelsense/reelsense/base/log"
	"github.com/reelsense/reelsense/logics"
	"github.com/reelsense/reelsense/model"
	"github.com/spf13/viper"
	"go.uber.org/zap"
)

const EnvPrefix = "REELSENSE"

// Config is the configuration of ReelSense.
type Config struct {
	Database   DatabaseConfig   `mapstructure:"database"`
	Blob       BlobConfig       `mapstructure:"blob"`
	Cache      CacheConfig      `mapstructure:"cache"`
	Model      ModelConfig      `mapstructure:"model"`
	Recommend  RecommendConfig  `mapstructure:"recommend"`
	Diversity  DiversityConfig  `mapstructure:"diversity"`
	Evaluation EvaluationConfig `mapstructure:"evaluation"`
	Server     ServerConfig     `mapstructure:"server"`
}

// DatabaseConfig is the configuration for the rating store.
type DatabaseConfig struct {
	DataStore   string `mapstructure:"data_store" validate:"required,data_store"`
	TablePrefix string `mapstructure:"table_prefix"`
}

// BlobConfig is the configuration for model blobs.
type BlobConfig struct {
	URI   string          `mapstructure:"uri" validate:"required"`
	S3    S3Config        `mapstructure:"s3"`
	GCS   GCSConfig       `mapstructure:"gcs"`
	Azure AzureBlobConfig `mapstructure:"azure"`
}

type S3Config struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
}

type GCSConfig struct {
	CredentialsFile string `mapstructure:"credentials_file"`
}

type AzureBlobConfig struct {
	ConnectionString string `mapstructure:"connection_string"`
	AccountName      string `mapstructure:"account_name"`
	AccountKey       string `mapstructure:"account_key"`
	Endpoint         string `mapstructure:"endpoint"`
}

// CacheConfig is the configuration for the response cache. An empty store
// keeps responses in memory.
type CacheConfig struct {
	Store    string        `mapstructure:"store"`
	TTL      time.Duration `mapstructure:"ttl" validate:"gte=0"`
	Capacity uint64        `mapstructure:"capacity"`
}

// ModelConfig is the configuration for training.
type ModelConfig struct {
	Type         string  `mapstructure:"type" validate:"oneof=svd svdpp"`
	NFactors     int     `mapstructure:"n_factors" validate:"gt=0"`
	NEpochs      int     `mapstructure:"n_epochs" validate:"gt=0"`
	Lr           float32 `mapstructure:"lr" validate:"gt=0"`
	Reg          float32 `mapstructure:"reg" validate:"gte=0"`
	InitStdDev   float32 `mapstructure:"init_std_dev" validate:"gte=0"`
	RandomState  int     `mapstructure:"random_state"`
	MaxFeatures  int     `mapstructure:"max_features" validate:"gt=0"`
	TestRatio    float32 `mapstructure:"test_ratio" validate:"gte=0,lt=1"`
	Jobs         int     `mapstructure:"jobs" validate:"gt=0"`
	Verbose      int     `mapstructure:"verbose" validate:"gte=0"`
	SearchTrials int     `mapstructure:"search_trials" validate:"gte=0"`
}

// GetParams returns hyper-parameters for the collaborative filtering model.
func (c *ModelConfig) GetParams() model.Params {
	return model.Params{
		model.NFactors:    c.NFactors,
		model.NEpochs:     c.NEpochs,
		model.Lr:          c.Lr,
		model.Reg:         c.Reg,
		model.InitStdDev:  c.InitStdDev,
		model.RandomState: c.RandomState,
	}
}

// GetContentParams returns hyper-parameters for the content model.
func (c *ModelConfig) GetContentParams() model.Params {
	return model.Params{model.MaxFeatures: c.MaxFeatures}
}

type RecommendConfig struct {
	CFWeight    float32 `mapstructure:"cf_weight" validate:"gte=0,lte=1"`
	TopK        int     `mapstructure:"top_k" validate:"gt=0"`
	PoolCap     int     `mapstructure:"pool_cap" validate:"gt=0"`
	ProfileSize int     `mapstructure:"profile_size" validate:"gt=0"`
	MinRatings  int     `mapstructure:"min_ratings" validate:"gte=0"`
}

type DiversityConfig struct {
	Enable                  bool    `mapstructure:"enable"`
	Lambda                  float32 `mapstructure:"lambda" validate:"gte=0,lte=1"`
	logics.DiversityOptions `mapstructure:",squash"`
}

type EvaluationConfig struct {
	NumUsers    int `mapstructure:"num_users" validate:"gt=0"`
	RandomState int `mapstructure:"random_state"`
}

type ServerConfig struct {
	Host      string  `mapstructure:"host"`
	Port      int     `mapstructure:"port" validate:"gte=0,lte=65535"`
	RateLimit float64 `mapstructure:"rate_limit" validate:"gte=0"`
}

func GetDefaultConfig() *Config {
	return &Config{
		Database: DatabaseConfig{
			DataStore: "sqlite://reelsense.db",
		},
		Blob: BlobConfig{
			URI: "models",
		},
		Cache: CacheConfig{
			TTL:      5 * time.Minute,
			Capacity: 10000,
		},
		Model: ModelConfig{
			Type:         "svd",
			NFactors:     50,
			NEpochs:      20,
			Lr:           0.005,
			Reg:          0.02,
			InitStdDev:   0.1,
			RandomState:  model.DefaultRandomState,
			MaxFeatures:  5000,
			TestRatio:    0.2,
			Jobs:         1,
			Verbose:      10,
			SearchTrials: 10,
		},
		Recommend: RecommendConfig{
			CFWeight:    logics.DefaultCFWeight,
			TopK:        logics.DefaultTopK,
			PoolCap:     logics.DefaultPoolCap,
			ProfileSize: logics.DefaultProfileSize,
			MinRatings:  logics.DefaultMinRatings,
		},
		Diversity: DiversityConfig{
			Lambda:           logics.DefaultLambda,
			DiversityOptions: logics.DefaultDiversityOptions(),
		},
		Evaluation: EvaluationConfig{
			NumUsers:    50,
			RandomState: 42,
		},
		Server: ServerConfig{
			Host: "0.0.0.0",
			Port: 5000,
		},
	}
}

func setDefault(v *viper.Viper) {
	defaultConfig := GetDefaultConfig()
	// [database]
	v.SetDefault("database.data_store", defaultConfig.Database.DataStore)
	v.SetDefault("database.table_prefix", defaultConfig.Database.TablePrefix)
	// [blob]
	v.SetDefault("blob.uri", defaultConfig.Blob.URI)
	v.SetDefault("blob.s3.endpoint", defaultConfig.Blob.S3.Endpoint)
	v.SetDefault("blob.s3.access_key_id", defaultConfig.Blob.S3.AccessKeyID)
	v.SetDefault("blob.s3.secret_access_key", defaultConfig.Blob.S3.SecretAccessKey)
	v.SetDefault("blob.s3.use_ssl", defaultConfig.Blob.S3.UseSSL)
	v.SetDefault("blob.gcs.credentials_file", defaultConfig.Blob.GCS.CredentialsFile)
	v.SetDefault("blob.azure.connection_string", defaultConfig.Blob.Azure.ConnectionString)
	v.SetDefault("blob.azure.account_name", defaultConfig.Blob.Azure.AccountName)
	v.SetDefault("blob.azure.account_key", defaultConfig.Blob.Azure.AccountKey)
	v.SetDefault("blob.azure.endpoint", defaultConfig.Blob.Azure.Endpoint)
	// [cache]
	v.SetDefault("cache.store", defaultConfig.Cache.Store)
	v.SetDefault("cache.ttl", defaultConfig.Cache.TTL)
	v.SetDefault("cache.capacity", defaultConfig.Cache.Capacity)
	// [model]
	v.SetDefault("model.type", defaultConfig.Model.Type)
	v.SetDefault("model.n_factors", defaultConfig.Model.NFactors)
	v.SetDefault("model.n_epochs", defaultConfig.Model.NEpochs)
	v.SetDefault("model.lr", defaultConfig.Model.Lr)
	v.SetDefault("model.reg", defaultConfig.Model.Reg)
	v.SetDefault("model.init_std_dev", defaultConfig.Model.InitStdDev)
	v.SetDefault("model.random_state", defaultConfig.Model.RandomState)
	v.SetDefault("model.max_features", defaultConfig.Model.MaxFeatures)
	v.SetDefault("model.test_ratio", defaultConfig.Model.TestRatio)
	v.SetDefault("model.jobs", defaultConfig.Model.Jobs)
	v.SetDefault("model.verbose", defaultConfig.Model.Verbose)
	v.SetDefault("model.search_trials", defaultConfig.Model.SearchTrials)
	// [recommend]
	v.SetDefault("recommend.cf_weight", defaultConfig.Recommend.CFWeight)
	v.SetDefault("recommend.top_k", defaultConfig.Recommend.TopK)
	v.SetDefault("recommend.pool_cap", defaultConfig.Recommend.PoolCap)
	v.SetDefault("recommend.profile_size", defaultConfig.Recommend.ProfileSize)
	v.SetDefault("recommend.min_ratings", defaultConfig.Recommend.MinRatings)
	// [diversity]
	v.SetDefault("diversity.enable", defaultConfig.Diversity.Enable)
	v.SetDefault("diversity.lambda", defaultConfig.Diversity.Lambda)
	v.SetDefault("diversity.max_genre_ratio", defaultConfig.Diversity.MaxGenreRatio)
	v.SetDefault("diversity.genre_penalty", defaultConfig.Diversity.GenrePenalty)
	v.SetDefault("diversity.decade_bonus", defaultConfig.Diversity.DecadeBonus)
	v.SetDefault("diversity.long_tail_threshold", defaultConfig.Diversity.LongTailThreshold)
	v.SetDefault("diversity.long_tail_bonus", defaultConfig.Diversity.LongTailBonus)
	v.SetDefault("diversity.max_long_tail_ratio", defaultConfig.Diversity.MaxLongTailRatio)
	v.SetDefault("diversity.serendipity", defaultConfig.Diversity.Serendipity)
	v.SetDefault("diversity.serendipity_window", defaultConfig.Diversity.SerendipityWindow)
	v.SetDefault("diversity.serendipity_genres", defaultConfig.Diversity.SerendipityGenres)
	// [evaluation]
	v.SetDefault("evaluation.num_users", defaultConfig.Evaluation.NumUsers)
	v.SetDefault("evaluation.random_state", defaultConfig.Evaluation.RandomState)
	// [server]
	v.SetDefault("server.host", defaultConfig.Server.Host)
	v.SetDefault("server.port", defaultConfig.Server.Port)
	v.SetDefault("server.rate_limit", defaultConfig.Server.RateLimit)
}

type configBinding struct {
	key string
	env string
}

func bindEnv(v *viper.Viper) {
	bindings := []configBinding{
		{"database.data_store", "REELSENSE_DATA_STORE"},
		{"database.table_prefix", "REELSENSE_TABLE_PREFIX"},
		{"blob.uri", "REELSENSE_BLOB_URI"},
		{"blob.s3.endpoint", "S3_ENDPOINT"},
		{"blob.s3.access_key_id", "S3_ACCESS_KEY_ID"},
		{"blob.s3.secret_access_key", "S3_SECRET_ACCESS_KEY"},
		{"blob.gcs.credentials_file", "GCS_CREDENTIALS_FILE"},
		{"blob.azure.connection_string", "AZURE_STORAGE_CONNECTION_STRING"},
		{"cache.store", "REELSENSE_CACHE_STORE"},
		{"model.jobs", "REELSENSE_MODEL_JOBS"},
		{"server.host", "REELSENSE_SERVER_HOST"},
		{"server.port", "REELSENSE_SERVER_PORT"},
	}
	for _, binding := range bindings {
		if err := v.BindEnv(binding.key, binding.env); err != nil {
			log.Logger().Fatal("failed to bind a Viper key to a ENV variable", zap.Error(err))
		}
	}
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
}

func decodeHook() viper.DecoderConfigOption {
	return viper.DecodeHook(mapstructure.ComposeDecodeHookFunc(
		mapstructure.StringToTimeDurationHookFunc(),
		mapstructure.StringToSliceHookFunc(","),
	))
}

// LoadConfig loads configuration from a TOML or YAML file. Values not in the
// file fall back to defaults and every key can be overridden by environment
// variables. An empty path loads defaults and environment only.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefault(v)
	bindEnv(v)
	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, errors.Annotatef(err, "failed to read config %s", path)
		}
	}
	var conf Config
	if err := v.Unmarshal(&conf, decodeHook()); err != nil {
		return nil, errors.Trace(err)
	}
	if err := conf.Validate(); err != nil {
		return nil, errors.Trace(err)
	}
	return &conf, nil
}
