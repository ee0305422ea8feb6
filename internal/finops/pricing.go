package finops

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	_ "embed"

	"gopkg.in/yaml.v3"

	"github.com/insolvia/case-audit/internal/core/domain"
)

//go:embed pricing.yaml
var embeddedPricing []byte

// PricingTable is a static, versioned cost-per-token table. Estimation is a
// pure function: same inputs produce the same cost across runs and
// deployments, and the content fingerprint ties every ledger entry to the
// exact pricing assumptions used.
type PricingTable struct {
	version     string
	models      map[string]ModelPrice
	fingerprint string
}

type ModelPrice struct {
	Provider       string  `yaml:"provider"`
	InputPer1KUSD  float64 `yaml:"input_per_1k_usd"`
	OutputPer1KUSD float64 `yaml:"output_per_1k_usd"`
}

type PricingInfo struct {
	Version     string `json:"version"`
	Fingerprint string `json:"fingerprint"`
}

type pricingFile struct {
	Version string                `yaml:"version"`
	Models  map[string]ModelPrice `yaml:"models"`
}

// LoadPricingTable parses the embedded table.
func LoadPricingTable() (*PricingTable, error) {
	return ParsePricingTable(embeddedPricing)
}

func ParsePricingTable(data []byte) (*PricingTable, error) {
	var file pricingFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, domain.WrapError(domain.ErrPricingTable, "parse pricing table", err)
	}
	if file.Version == "" {
		return nil, domain.WrapError(domain.ErrPricingTable, "parse pricing table", errors.New("missing version"))
	}
	if len(file.Models) == 0 {
		return nil, domain.WrapError(domain.ErrPricingTable, "parse pricing table", errors.New("no models"))
	}

	t := &PricingTable{
		version: file.Version,
		models:  file.Models,
	}
	t.fingerprint = fingerprintTable(file)
	return t, nil
}

// fingerprintTable hashes a canonical serialization: model names sorted, one
// line per model. Stable across map iteration order.
func fingerprintTable(file pricingFile) string {
	names := make([]string, 0, len(file.Models))
	for name := range file.Models {
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	b.WriteString("version=" + file.Version + "\n")
	for _, name := range names {
		price := file.Models[name]
		b.WriteString(name)
		b.WriteByte('|')
		b.WriteString(price.Provider)
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(price.InputPer1KUSD, 'f', -1, 64))
		b.WriteByte('|')
		b.WriteString(strconv.FormatFloat(price.OutputPer1KUSD, 'f', -1, 64))
		b.WriteByte('\n')
	}
	sum := sha256.Sum256([]byte(b.String()))
	return hex.EncodeToString(sum[:])
}

// EstimateUSD computes the cost of a call. An unknown model is an error,
// never a silent zero cost.
func (t *PricingTable) EstimateUSD(model string, inputTokens, outputTokens int) (float64, error) {
	price, ok := t.models[model]
	if !ok {
		return 0, domain.WrapError(
			domain.ErrPricingTable,
			"estimate cost",
			fmt.Errorf("model %q not in pricing table version %s", model, t.version),
		)
	}
	if inputTokens < 0 || outputTokens < 0 {
		return 0, domain.WrapError(
			domain.ErrPricingTable,
			"estimate cost",
			fmt.Errorf("negative token counts: in=%d out=%d", inputTokens, outputTokens),
		)
	}
	cost := float64(inputTokens)/1000.0*price.InputPer1KUSD + float64(outputTokens)/1000.0*price.OutputPer1KUSD
	return cost, nil
}

// Provider returns the provider label for a known model, empty otherwise.
func (t *PricingTable) Provider(model string) string {
	return t.models[model].Provider
}

func (t *PricingTable) Info() PricingInfo {
	return PricingInfo{Version: t.version, Fingerprint: t.fingerprint}
}
