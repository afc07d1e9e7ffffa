// Package engine is the composition root: it turns an engine.Config into
// a fully wired Dispatcher. LoadConfig reads the YAML file into its
// on-disk shape and translates that into the domain-shaped Config.
package engine

import (
	"fmt"
	"os"
	"time"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"github.com/srviswan/positionengine/internal/position"
)

// yamlConfig is the on-disk shape of the YAML config file.
type yamlConfig struct {
	Messaging struct {
		Provider string `yaml:"provider"` // kafka|solace (neither has a concrete binding in this module)
	} `yaml:"messaging"`
	Cache struct {
		Type string `yaml:"type"` // redis|memory
	} `yaml:"cache"`
	ContractService struct {
		Type    string `yaml:"type"` // rest|mock
		BaseURL string `yaml:"baseUrl"`
	} `yaml:"contract_service"`
	Partitions struct {
		Count uint32 `yaml:"count"`
	} `yaml:"partitions"`
	Idempotency struct {
		RetentionMinutes int `yaml:"retentionMinutes"`
	} `yaml:"idempotency"`
	Coldpath struct {
		ProvisionalStaleAfterMinutes int `yaml:"provisionalStaleAfterMinutes"`
	} `yaml:"coldpath"`
	TaxLot struct {
		DefaultMethod string `yaml:"defaultMethod"` // FIFO|LIFO|HIFO
	} `yaml:"taxlot"`
	Reconciliation struct {
		BreakTolerance string `yaml:"breakTolerance"` // decimal string, e.g. "0.05"
	} `yaml:"reconciliation"`
	WorkerQueueDepth int    `yaml:"workerQueueDepth"`
	Timezone         string `yaml:"timezone"`
	MySQLDSN         string `yaml:"mysqlDsn"`
}

// Config is the domain-shaped configuration the composition root consumes.
// Timezone is parsed and stored, but New does not pass it to any
// component: the hotpath, coldpath and dispatcher take "today" from
// time.Now.
type Config struct {
	MessagingProvider             string
	CacheType                     string
	ContractServiceType           string
	ContractServiceBaseURL        string
	PartitionsCount               uint32
	IdempotencyRetention          time.Duration
	ColdpathProvisionalStaleAfter time.Duration
	TaxLotDefaultMethod           position.TaxLotMethod
	ReconciliationBreakTolerance  decimal.Decimal
	WorkerQueueDepth              int
	Timezone                      *time.Location
	MySQLDSN                      string
}

// LoadConfig reads and parses path into a Config: read the file, unmarshal
// the YAML, then translate it into the domain shape.
func LoadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}
	var raw yamlConfig
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse config YAML: %w", err)
	}
	return raw.toConfig()
}

func (raw yamlConfig) toConfig() (*Config, error) {
	c := &Config{
		MessagingProvider:             raw.Messaging.Provider,
		CacheType:                     raw.Cache.Type,
		ContractServiceType:           raw.ContractService.Type,
		ContractServiceBaseURL:        raw.ContractService.BaseURL,
		PartitionsCount:               raw.Partitions.Count,
		IdempotencyRetention:          time.Duration(raw.Idempotency.RetentionMinutes) * time.Minute,
		ColdpathProvisionalStaleAfter: time.Duration(raw.Coldpath.ProvisionalStaleAfterMinutes) * time.Minute,
		TaxLotDefaultMethod:           position.TaxLotMethod(raw.TaxLot.DefaultMethod),
		WorkerQueueDepth:              raw.WorkerQueueDepth,
		MySQLDSN:                      raw.MySQLDSN,
	}
	if c.PartitionsCount == 0 {
		c.PartitionsCount = 16
	}
	if c.WorkerQueueDepth == 0 {
		c.WorkerQueueDepth = 64
	}
	if c.TaxLotDefaultMethod == "" {
		c.TaxLotDefaultMethod = position.MethodFIFO
	}
	if raw.Reconciliation.BreakTolerance != "" {
		tol, err := decimal.NewFromString(raw.Reconciliation.BreakTolerance)
		if err != nil {
			return nil, fmt.Errorf("invalid reconciliation.breakTolerance: %w", err)
		}
		c.ReconciliationBreakTolerance = tol
	}
	loc := time.UTC
	if raw.Timezone != "" {
		l, err := time.LoadLocation(raw.Timezone)
		if err != nil {
			return nil, fmt.Errorf("invalid timezone %q: %w", raw.Timezone, err)
		}
		loc = l
	}
	c.Timezone = loc
	return c, nil
}
